package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/muurk/novaremote/internal/command"
	"github.com/muurk/novaremote/internal/config"
	"github.com/muurk/novaremote/internal/discovery"
	"github.com/muurk/novaremote/internal/logging"
	"github.com/muurk/novaremote/internal/session"
	"github.com/muurk/novaremote/internal/ui"
	"github.com/muurk/novaremote/internal/version"
)

// remoteLogFile receives log output while the interactive remote runs
const remoteLogFile = "novaremote.log"

// Command flags
var (
	sendDelay   time.Duration
	forceConfig bool
)

func init() {
	rootCmd.AddCommand(remoteCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(keysCmd)
	rootCmd.AddCommand(configCmd)
}

// remoteCmd launches the interactive remote
var remoteCmd = &cobra.Command{
	Use:   "remote",
	Short: "Launch the interactive remote",
	Long: `Launch the interactive terminal remote.

The remote discovers the TV (unless --device is given), connects, and sends a
key code for every bound key you press. Press ? to list the bindings and q to
quit. The bindings can be changed in the config file.`,
	Example: `  # Discover the TV and open the remote
  novaremote
  novaremote remote

  # Skip discovery
  novaremote remote --device 192.168.1.50`,
	RunE: runRemote,
}

func runRemote(cmd *cobra.Command, args []string) error {
	// The remote owns the terminal; log lines on stderr would tear the screen
	if logging.Enabled() {
		logPath, err := redirectLogs()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Logging to %s\n", logPath)
	}

	model := ui.NewRemoteModel(ui.RemoteOptions{
		Discover: cfg.Scanner().Discover,
		Connect:  connectRemote,
		Device:   presetDevice(),
		Bindings: cfg.Bindings,
		Version:  version.Version,
	})

	p := tea.NewProgram(model, tea.WithAltScreen())

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	watchBindings(ctx, p)

	final, err := p.Run()

	if m, ok := final.(ui.RemoteModel); ok && m.Remote() != nil {
		_ = m.Remote().Close()
	}
	if err != nil {
		return fmt.Errorf("remote error: %w", err)
	}
	return nil
}

// redirectLogs sends log output to remoteLogFile next to the config file
func redirectLogs() (string, error) {
	cfgPath, err := effectiveConfigPath()
	if err != nil {
		return "", err
	}
	dir := filepath.Dir(cfgPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("failed to create log directory: %w", err)
	}
	path := filepath.Join(dir, remoteLogFile)
	if err := logging.ToFile(path); err != nil {
		return "", err
	}
	return path, nil
}

// watchBindings pushes edited bindings into the running remote
func watchBindings(ctx context.Context, p *tea.Program) {
	path, err := effectiveConfigPath()
	if err != nil {
		return
	}
	go func() {
		err := config.Watch(ctx, path, func(c *config.Config) {
			p.Send(ui.BindingsMsg{Bindings: c.Bindings})
		})
		if err != nil {
			logging.Debug("Not watching config file", zap.Error(err))
		}
	}()
}

func connectRemote(ctx context.Context, dev *discovery.Device, onKeepAliveError func(error)) (ui.Remote, error) {
	sc := cfg.SessionConfig()
	sc.OnKeepAliveError = onKeepAliveError

	sess, err := session.Open(ctx, dev.IP, dev.Name, sc)
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// scanCmd runs discovery only
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Find the TV on the network",
	Long: `Search the local network for a Novatek TV using SSDP.

Probes are sent to 239.255.255.250:1900. Every answering device's description
is fetched and the first one whose manufacturer is Novatek is reported.`,
	Example: `  # Scan with the configured timeout (15s by default)
  novaremote scan

  # Quick scan
  novaremote scan --timeout 3s --attempts 3

  # See every datagram and description fetch
  novaremote scan --log-level debug`,
	Args: cobra.NoArgs,
	RunE: runScan,
}

func runScan(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	p := ui.NewPrinter(cmd.OutOrStdout())
	p.PrintHeader("novaremote scan",
		ui.Detail{Key: "Timeout", Value: cfg.Discovery.Timeout.String()},
		ui.Detail{Key: "Attempts", Value: fmt.Sprint(cfg.Discovery.Attempts)},
	)

	dev, err := cfg.Scanner().Discover(ctx)
	if errors.Is(err, discovery.ErrNotFound) {
		p.PrintError("No TV found", err)
		return nil
	}
	if err != nil {
		p.PrintError("Discovery failed", err)
		return fmt.Errorf("scan failed: %w", err)
	}

	p.PrintSuccess("TV found",
		ui.Detail{Key: "Name", Value: dev.Name},
		ui.Detail{Key: "Address", Value: dev.IP},
		ui.Detail{Key: "Control", Value: dev.ControlAddr(cfg.Session.Port)},
		ui.Detail{Key: "Description", Value: dev.Location},
	)
	p.Println(fmt.Sprintf("Use 'novaremote --device %s' to skip discovery next time", dev.IP))
	return nil
}

// sendCmd sends key codes and exits
var sendCmd = &cobra.Command{
	Use:   "send KEY...",
	Short: "Send one or more keys to the TV",
	Long: `Open a control session, send each key in order, and close the session.

A KEY is a bound terminal key from the config (e.g. "up", "enter"), a full
key code (e.g. "TR_KEY_VOL_UP") or a code without the TR_KEY_ prefix
(e.g. "vol_up").`,
	Example: `  # Power toggle
  novaremote send power

  # Open the menu and move down twice, pausing between keys
  novaremote send --delay 300ms menu down down --device 192.168.1.50`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSend,
}

func init() {
	sendCmd.Flags().DurationVar(&sendDelay, "delay", 0, "Pause between keys")
}

func runSend(cmd *cobra.Command, args []string) error {
	codes, err := resolveKeyCodes(cfg, args)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	p := ui.NewPrinter(cmd.OutOrStdout())

	dev := presetDevice()
	if dev == nil {
		dev, err = cfg.Scanner().Discover(ctx)
		if err != nil {
			p.PrintError("No TV to send to", err)
			return fmt.Errorf("discovery failed: %w", err)
		}
		if deviceName != "" {
			dev.Name = deviceName
		}
	}

	sess, err := session.Open(ctx, dev.IP, dev.Name, cfg.SessionConfig())
	if err != nil {
		p.PrintError("Cannot connect to "+dev.String(), err)
		return err
	}
	defer sess.Close()

	for i, code := range codes {
		if i > 0 && sendDelay > 0 {
			select {
			case <-time.After(sendDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if err := sess.SendKey(code); err != nil {
			p.PrintError(fmt.Sprintf("Failed sending %s (%d of %d)", code, i+1, len(codes)), err)
			return err
		}
		logging.Debug("Key sent", zap.String("code", string(code)))
	}

	p.PrintSuccess(fmt.Sprintf("Sent %d key(s)", len(codes)),
		ui.Detail{Key: "Device", Value: dev.String()},
		ui.Detail{Key: "Keys", Value: joinCodes(codes)},
	)
	return nil
}

// keysCmd lists the bindings in effect
var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List the key bindings of the interactive remote",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		p := ui.NewPrinter(cmd.OutOrStdout())
		rows := make([]ui.Detail, 0, len(cfg.Bindings))
		for _, k := range cfg.BoundKeys() {
			rows = append(rows, ui.Detail{Key: k, Value: cfg.Bindings[k]})
		}
		p.PrintTable(rows)
	},
}

// configCmd groups the config file commands
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := effectiveConfigPath()
		if err != nil {
			return err
		}
		err = config.CreateDefaultConfig(path, forceConfig)
		if errors.Is(err, config.ErrExists) && term.IsTerminal(int(os.Stdin.Fd())) {
			p := ui.NewPrinter(cmd.OutOrStdout())
			if !p.Confirm(cmd.InOrStdin(), "Overwrite "+path+"?", "Edited bindings and timeouts will be replaced by the defaults") {
				return nil
			}
			err = config.CreateDefaultConfig(path, true)
		}
		if err != nil {
			if errors.Is(err, config.ErrExists) {
				return fmt.Errorf("%w (use --force to overwrite)", err)
			}
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration (file plus flags)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := effectiveConfigPath()
		if err != nil {
			return err
		}
		data, err := cfg.Marshal()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "# %s\n%s", path, data)
		return nil
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&forceConfig, "force", false, "Overwrite an existing file")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
}

func effectiveConfigPath() (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	return config.GetConfigPath()
}

// presetDevice returns the device given with --device, or nil
func presetDevice() *discovery.Device {
	if deviceIP == "" {
		return nil
	}
	return &discovery.Device{IP: deviceIP, Name: deviceName, DiscoveredAt: time.Now()}
}

// resolveKeyCodes maps command-line keys to key codes: a bound terminal key,
// a full TR_ code, or a code without the TR_KEY_ prefix.
func resolveKeyCodes(c *config.Config, args []string) ([]command.KeyCode, error) {
	codes := make([]command.KeyCode, 0, len(args))
	for _, arg := range args {
		if arg == "" {
			return nil, fmt.Errorf("empty key")
		}
		code, ok := c.KeyCode(arg)
		if !ok {
			upper := strings.ToUpper(arg)
			if strings.HasPrefix(upper, "TR_") {
				code = command.KeyCode(upper)
			} else {
				code = command.KeyCode("TR_KEY_" + upper)
			}
		}
		if err := code.Validate(); err != nil {
			return nil, fmt.Errorf("invalid key %q: %w", arg, err)
		}
		codes = append(codes, code)
	}
	return codes, nil
}

func joinCodes(codes []command.KeyCode) string {
	parts := make([]string, len(codes))
	for i, c := range codes {
		parts[i] = string(c)
	}
	return strings.Join(parts, " ")
}
