// Package logging provides structured logging for novaremote.
//
// This package wraps a package-level zap logger. Logging is silent unless a
// level is set with the --log-level flag or the NOVAREMOTE_LOG_LEVEL
// environment variable, so the interactive remote never has log lines drawn
// over it by accident. Output goes to stderr.
//
// # Log Levels
//
//   - Debug: every control exchange and discovery datagram (ascii dumps)
//   - Info: discovery results, connection open/close
//   - Warn: discarded candidates with transport errors, keep-alive failures
//   - Error: failures surfaced to the user
//
// # Structured Logging
//
//	logging.Info("Device found",
//	    zap.String("ip", dev.IP),
//	    zap.String("name", dev.Name),
//	)
//
// # Configuration
//
//	if err := logging.Initialize("debug"); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Sync()
package logging
