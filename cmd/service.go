package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/smazurov/torchnode/internal/systemd"
	"github.com/spf13/cobra"
)

// CreateServiceCmd creates the service command.
func CreateServiceCmd() *cobra.Command {
	var unit string
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "service <status|start|stop|restart>",
		Short: "Manage the torchnode systemd user unit",
		Args:  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{
			systemd.ActionStatus,
			systemd.ActionStart,
			systemd.ActionStop,
			systemd.ActionRestart,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			mgr, err := systemd.NewManager(ctx)
			if err != nil {
				return err
			}
			defer mgr.Close()

			state, err := mgr.Control(ctx, args[0], unit)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", unit, state)
			return nil
		},
	}

	cmd.Flags().StringVar(&unit, "unit", systemd.DefaultUnit, "Systemd unit name")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "How long to wait for the job to finish")

	return cmd
}
