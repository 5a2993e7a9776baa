// Package ui renders the novaremote terminal output.
//
// Two kinds of output live here:
//
//   - Printer: headers and success/error boxes for the one-shot commands
//     (scan, send, keys), plus the y/N Confirm prompt. Errors are shown with
//     a short message and a troubleshooting hint derived from the error's type.
//   - RemoteModel: the Bubble Tea model behind the interactive remote. It
//     discovers the TV (or uses the given address), opens the control
//     session, maps terminal keys to key codes through the configured
//     bindings and closes the session on quit.
//
// Logging is silent unless NOVAREMOTE_LOG_LEVEL or --log-level is set, so
// the curated output is not interleaved with log lines.
package ui
