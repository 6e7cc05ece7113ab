// Package logging sets up slog for camsnap with one logger per module.
//
// Call Initialize once at startup, then take loggers by module name:
//
//	logging.Initialize(logging.Config{
//		Level:   "info",
//		Format:  "text",
//		Modules: map[string]string{"native": "debug"},
//	})
//	log := logging.GetLogger("capture")
//	log.Info("Streaming", "device", dev.Name, "format", f.String())
//
// Every record carries a module attribute. Module levels live in
// slog.LevelVar values, so SetModuleLevel and config reloads take effect on
// loggers that were handed out earlier, including ones obtained before
// Initialize.
//
// Records go to stdout (text or JSON) when it is connected, to the systemd
// journal when journald is running, and always to an in-memory ring buffer
// that backs GET /api/logs. In the journal, attribute keys become
// upper-case fields, so entries can be filtered with
//
//	journalctl -t camsnap MODULE=capture
//	journalctl -t camsnap -p warning SOURCE=gpio17
//
// The same levels are set from the CLI with flags such as --logging-capture
// or the CAMSNAP_LOGGING_CAPTURE environment variable.
package logging
