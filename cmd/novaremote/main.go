// Novaremote is a network remote control for Novatek-based smart TVs.
//
// It finds the TV on the local network with SSDP, opens the TV's control
// connection (TCP port 4123) and sends remote-control key codes, keeping the
// connection alive while it is open.
//
// Usage:
//
//	novaremote [command] [flags]
//
// Running without arguments launches the interactive remote.
// See 'novaremote --help' for available commands.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/novaremote/internal/config"
	"github.com/muurk/novaremote/internal/logging"
	"github.com/muurk/novaremote/internal/version"
)

func main() {
	defer logging.Sync()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// Global flags
var (
	deviceIP    string
	deviceName  string
	configPath  string
	logLevel    string
	scanTimeout time.Duration
	attempts    int
	controlPort int
	dialTimeout time.Duration
)

// cfg is the effective configuration: the config file plus flag overrides
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "novaremote",
	Short: "Network remote control for Novatek smart TVs",
	Long: `A terminal remote control for Novatek-based smart TVs.

The TV is found with SSDP (or given with --device), then key presses are sent
over its control connection, which is kept alive while the remote is open.

If no command is specified, the interactive remote launches automatically.`,
	Version:           version.Version,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	RunE:              runRemote,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&deviceIP, "device", "", "TV IP address (skips discovery)")
	flags.StringVar(&deviceName, "name", "", "Display name for the TV")
	flags.StringVar(&configPath, "config", "", "Config file (default is the user config dir)")
	flags.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (default: $NOVAREMOTE_LOG_LEVEL, else silent)")
	flags.DurationVar(&scanTimeout, "timeout", 0, "Discovery timeout (overrides config)")
	flags.IntVar(&attempts, "attempts", 0, "Discovery probe rounds (overrides config)")
	flags.IntVar(&controlPort, "port", 0, "TV control port (overrides config)")
	flags.DurationVar(&dialTimeout, "dial-timeout", 0, "Control connection timeout (overrides config)")

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("novaremote %s\n", version.Full())
	},
}

// setup initializes logging and loads the effective configuration
func setup(cmd *cobra.Command, args []string) error {
	if err := logging.Initialize(logLevel); err != nil {
		return err
	}

	// config init must work even when the current file does not load
	if cmd == configInitCmd {
		return nil
	}

	var err error
	if configPath != "" {
		cfg, err = config.LoadFrom(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}

	return applyOverrides(cmd, cfg)
}

// applyOverrides copies explicitly set flags over the config values
func applyOverrides(cmd *cobra.Command, c *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("timeout") {
		c.Discovery.Timeout = scanTimeout
	}
	if flags.Changed("attempts") {
		c.Discovery.Attempts = attempts
	}
	if flags.Changed("port") {
		c.Session.Port = controlPort
	}
	if flags.Changed("dial-timeout") {
		c.Session.DialTimeout = dialTimeout
	}
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid flag value: %w", err)
	}
	return nil
}
