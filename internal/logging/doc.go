// Package logging sets up slog for torchnode with one level per module.
//
// Call [Initialize] once, then fetch loggers by module name:
//
//	logging.Initialize(logging.Config{
//		Level:   "info",
//		Format:  "text",
//		Modules: map[string]string{"torch": "debug", "console": "warn"},
//	})
//	logger := logging.GetLogger("torch").With("job_id", id)
//	logger.Debug("Signal job started", "pattern", "sos")
//
// Loggers returned before Initialize keep working: each module owns a
// slog.LevelVar, so [Initialize] and [UpdateLevels] retune existing loggers
// in place. The config watcher calls [UpdateLevels] when config.toml changes.
//
// Records fan out to up to three sinks:
//
//	stdout    text or JSON, when stdout is a terminal, pipe or file
//	journal   structured fields, when journald is reachable
//	buffer    in-memory ring read by the console "logs" command
//
// Journal fields are upper-cased attribute keys, so a torch fault can be
// found with:
//
//	journalctl -t torchnode MODULE=torch OP=strength
//
// The TOML form accepts a [logging.modules] table or flat per-module keys:
//
//	[logging]
//	level = "info"
//	torch = "debug"
//
//	[logging.modules]
//	led = "warn"
package logging
