// Package logging provides structured logging with per-module log level configuration.
//
// # Overview
//
// The logging system uses Go's slog package with automatic output routing:
//   - Logs to systemd journal when available (Linux systems with journald)
//   - Logs to stdout when a terminal, pipe, or file is connected
//   - Logs to both when both are available
//
// # Usage
//
// Initialize the logging system once at startup:
//
//	logging.Initialize(logging.Config{
//		Level:  "info",      // Global log level: debug, info, warn, error
//		Format: "text",      // Output format: text or json
//		Modules: map[string]string{
//			"npem": "debug",  // Per-module overrides
//			"api":  "warn",
//		},
//	})
//
// Get a logger for your module:
//
//	logger := logging.GetLogger("npem")
//	logger.Info("Engine attached", "address", addr)
//
// Add contextual attributes:
//
//	logger := logging.GetLogger("npem").With("address", addr)
//	logger.Info("Write completed")  // Includes address in all logs
//
// # Viewing Logs
//
// When running as a systemd service or on a system with journald:
//
//	journalctl -t pcileds              # All pcileds logs
//	journalctl -t pcileds -f           # Follow live
//	journalctl -t pcileds MODULE=npem  # Filter by module
//
// # Configuration
//
// Log levels can be set globally or per-module. Module-specific levels
// override the global level for that module only.
//
// Example TOML configuration:
//
//	[logging]
//	level = "info"
//	format = "text"
//
//	[logging.modules]
//	npem = "debug"
//	api = "warn"
package logging
