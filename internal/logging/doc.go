// Package logging provides structured logging with per-module log levels.
//
// # Overview
//
// The logging system is built on Go's slog package with automatic output
// routing:
//   - systemd journal when available (Linux systems with journald)
//   - stdout when a terminal, pipe, or file is connected
//   - an in-memory ring buffer that feeds the log history and streaming
//     endpoints
//
// # Usage
//
// Initialize the logging system once at startup:
//
//	logging.Initialize(logging.Config{
//		Level:  "info",      // Global log level: debug, info, warn, error
//		Format: "text",      // Output format: text or json
//		Modules: map[string]string{
//			"driver": "debug",   // Per-module overrides
//			"api":    "warn",
//		},
//	})
//
// Get a logger for your module:
//
//	logger := logging.GetLogger("driver")
//	logger.Info("streaming started", "width", 1280, "height", 720)
//	logger.Warn("dropping frame", "reason", "zero dimensions")
//	logger.Error("open failed", "error", err)
//
// Add contextual attributes:
//
//	logger := logging.GetLogger("uvc").With("serial", serial)
//	logger.Info("device opened")  // Includes serial in all logs
//
// Loggers are cached by module name. A logger fetched before Initialize
// stays valid; its level is adjusted in place once the configuration is
// applied.
//
// # Viewing Logs
//
// When running as a systemd service or on a system with journald:
//
//	journalctl -t uvcnode              # All uvcnode logs
//	journalctl -t uvcnode -f           # Follow live
//	journalctl -t uvcnode --since "5m" # Last 5 minutes
//	journalctl -t uvcnode -p err       # Errors only
//
// Filter by structured fields:
//
//	journalctl -t uvcnode MODULE=driver
//	journalctl -t uvcnode SERIAL=8A31F2C0
//
// # Configuration
//
// Module-specific levels override the global level for that module only.
// Example TOML configuration:
//
//	[logging]
//	level = "info"
//	format = "text"
//
//	[logging.modules]
//	driver = "debug"
//	uvc = "debug"
//	api = "warn"
package logging
