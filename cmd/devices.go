package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/smazurov/torchnode/internal/logging"
	"github.com/smazurov/torchnode/internal/torch"
	"github.com/spf13/cobra"
)

// CreateDevicesCmd creates the devices command.
func CreateDevicesCmd() *cobra.Command {
	var sysfsRoot string

	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List flash-capable LEDs",
		Long:  `Lists the flash LEDs found under the LED class directory together with their maximum strength level.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := logging.GetLogger("hardware")
			return listDevices(cmd.OutOrStdout(), torch.NewHardware(sysfsRoot, logger))
		},
	}

	cmd.Flags().StringVar(&sysfsRoot, "sysfs-root", torch.DefaultSysfsRoot, "LED class directory")

	return cmd
}

func listDevices(out io.Writer, hw torch.Hardware) error {
	ids, err := hw.ListAvailableDevices()
	if err != nil {
		return fmt.Errorf("failed to list devices: %w", err)
	}
	if len(ids) == 0 {
		_, err = fmt.Fprintln(out, "no flash-capable devices found")
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DEVICE\tMAX LEVEL")
	for _, id := range ids {
		level, err := hw.QueryMaxStrengthLevel(id)
		if err != nil {
			fmt.Fprintf(w, "%s\terror: %v\n", id, err)
			continue
		}
		fmt.Fprintf(w, "%s\t%d\n", id, level)
	}
	return w.Flush()
}
