// Package config manages the novaremote configuration file.
//
// The file is YAML and holds discovery tuning, control session tuning and the
// terminal key bindings used by the interactive remote. Discovered TVs are
// never written to it.
//
// # Configuration File Location
//
//   - Linux: $XDG_CONFIG_HOME/novaremote/config.yaml or $HOME/.config/novaremote/config.yaml
//   - macOS: $HOME/.config/novaremote/config.yaml
//   - Windows: %LOCALAPPDATA%\novaremote\config.yaml
//
// # Usage Example
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	dev, err := cfg.Scanner().Discover(ctx)
//	...
//	sess, err := session.Open(ctx, dev.IP, dev.Name, cfg.SessionConfig())
//
// A missing file yields the defaults; a partial file has its missing fields
// filled in. Durations are written as Go duration strings ("15s").
//
// Watch follows edits to the file while the interactive remote is running so
// new bindings apply without a restart.
//
// # Thread Safety
//
// Load uses sync.Once for safe initialization across goroutines.
// Writes are protected by a mutex and are atomic (temp file + rename).
package config
