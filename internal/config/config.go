package config

import (
	"fmt"
	"sort"
	"time"

	"github.com/muurk/novaremote/internal/command"
	"github.com/muurk/novaremote/internal/discovery"
	"github.com/muurk/novaremote/internal/session"
)

// CurrentVersion is the config file format version
const CurrentVersion = 1

// Config represents the entire user configuration file.
// Discovered devices are never stored; every run discovers again.
type Config struct {
	Version   int               `yaml:"version"`
	Discovery *DiscoveryPrefs   `yaml:"discovery,omitempty"`
	Session   *SessionPrefs     `yaml:"session,omitempty"`
	Bindings  map[string]string `yaml:"bindings,omitempty"` // Terminal key -> TV key code
}

// DiscoveryPrefs tunes the SSDP scan.
type DiscoveryPrefs struct {
	Timeout          time.Duration `yaml:"timeout"`                      // Overall discovery budget
	Attempts         int           `yaml:"attempts"`                     // Probe rounds
	PollWindow       time.Duration `yaml:"poll_window"`                  // Wait per round after the last reply
	Manufacturer     string        `yaml:"manufacturer"`                 // Exact vendor string to accept
	ProbeRepliesOnly bool          `yaml:"probe_replies_only,omitempty"` // Don't bind the SSDP port
}

// SessionPrefs tunes the control connection.
type SessionPrefs struct {
	Port              int           `yaml:"port"`
	KeepAliveInterval time.Duration `yaml:"keepalive_interval"`
	DialTimeout       time.Duration `yaml:"dial_timeout"`
	IOTimeout         time.Duration `yaml:"io_timeout,omitempty"` // 0 = wait for the TV indefinitely
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		Version:   CurrentVersion,
		Discovery: defaultDiscovery(),
		Session:   defaultSession(),
		Bindings:  DefaultBindings(),
	}
}

func defaultDiscovery() *DiscoveryPrefs {
	return &DiscoveryPrefs{
		Timeout:      discovery.DefaultTimeout,
		Attempts:     discovery.DefaultMaxAttempts,
		PollWindow:   discovery.DefaultPollWindow,
		Manufacturer: discovery.DefaultManufacturer,
	}
}

func defaultSession() *SessionPrefs {
	return &SessionPrefs{
		Port:              session.DefaultPort,
		KeepAliveInterval: session.DefaultKeepAliveInterval,
		DialTimeout:       session.DefaultDialTimeout,
	}
}

// DefaultBindings maps terminal keys to the TV's remote key codes.
// Key names follow Bubble Tea's KeyMsg.String().
func DefaultBindings() map[string]string {
	b := map[string]string{
		"up":        "TR_KEY_UP",
		"down":      "TR_KEY_DOWN",
		"left":      "TR_KEY_LEFT",
		"right":     "TR_KEY_RIGHT",
		"enter":     "TR_KEY_OK",
		"backspace": "TR_KEY_BACK",
		"esc":       "TR_KEY_EXIT",
		"h":         "TR_KEY_HOME",
		"m":         "TR_KEY_MENU",
		"i":         "TR_KEY_INFO",
		"s":         "TR_KEY_SOURCE",
		"p":         "TR_KEY_POWER",
		"x":         "TR_KEY_MUTE",
		"+":         "TR_KEY_VOL_UP",
		"-":         "TR_KEY_VOL_DOWN",
		"pgup":      "TR_KEY_CH_UP",
		"pgdown":    "TR_KEY_CH_DOWN",
	}
	for d := 0; d <= 9; d++ {
		b[fmt.Sprint(d)] = fmt.Sprintf("TR_KEY_%d", d)
	}
	return b
}

// applyDefaults fills sections and fields missing from a loaded file
func (c *Config) applyDefaults() {
	if c.Discovery == nil {
		c.Discovery = defaultDiscovery()
	} else {
		d := defaultDiscovery()
		if c.Discovery.Timeout == 0 {
			c.Discovery.Timeout = d.Timeout
		}
		if c.Discovery.Attempts == 0 {
			c.Discovery.Attempts = d.Attempts
		}
		if c.Discovery.PollWindow == 0 {
			c.Discovery.PollWindow = d.PollWindow
		}
		if c.Discovery.Manufacturer == "" {
			c.Discovery.Manufacturer = d.Manufacturer
		}
	}

	if c.Session == nil {
		c.Session = defaultSession()
	} else {
		s := defaultSession()
		if c.Session.Port == 0 {
			c.Session.Port = s.Port
		}
		if c.Session.KeepAliveInterval == 0 {
			c.Session.KeepAliveInterval = s.KeepAliveInterval
		}
		if c.Session.DialTimeout == 0 {
			c.Session.DialTimeout = s.DialTimeout
		}
	}

	if len(c.Bindings) == 0 {
		c.Bindings = DefaultBindings()
	}
}

// Validate checks the configuration for values the remote cannot work with.
func (c *Config) Validate() error {
	if c.Version != CurrentVersion {
		return fmt.Errorf("unsupported config version: %d (expected %d)", c.Version, CurrentVersion)
	}

	if d := c.Discovery; d != nil {
		if d.Timeout <= 0 {
			return fmt.Errorf("discovery.timeout must be positive, got %s", d.Timeout)
		}
		if d.Attempts <= 0 {
			return fmt.Errorf("discovery.attempts must be positive, got %d", d.Attempts)
		}
		if d.PollWindow <= 0 {
			return fmt.Errorf("discovery.poll_window must be positive, got %s", d.PollWindow)
		}
	}

	if s := c.Session; s != nil {
		if s.Port <= 0 || s.Port > 65535 {
			return fmt.Errorf("session.port out of range: %d", s.Port)
		}
		if s.KeepAliveInterval <= 0 {
			return fmt.Errorf("session.keepalive_interval must be positive, got %s", s.KeepAliveInterval)
		}
		if s.DialTimeout <= 0 {
			return fmt.Errorf("session.dial_timeout must be positive, got %s", s.DialTimeout)
		}
		if s.IOTimeout < 0 {
			return fmt.Errorf("session.io_timeout must not be negative, got %s", s.IOTimeout)
		}
	}

	for key, code := range c.Bindings {
		if key == "" {
			return fmt.Errorf("binding with empty key for %q", code)
		}
		if code == "" {
			return fmt.Errorf("binding %q has an empty key code", key)
		}
		if err := command.KeyCode(code).Validate(); err != nil {
			return fmt.Errorf("binding %q: %w", key, err)
		}
	}

	return nil
}

// KeyCode returns the TV key code bound to a terminal key
func (c *Config) KeyCode(key string) (command.KeyCode, bool) {
	code, ok := c.Bindings[key]
	if !ok || code == "" {
		return "", false
	}
	return command.KeyCode(code), true
}

// BoundKeys returns the bound terminal keys in sorted order
func (c *Config) BoundKeys() []string {
	keys := make([]string, 0, len(c.Bindings))
	for k := range c.Bindings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Scanner returns a discovery scanner using these preferences
func (c *Config) Scanner() *discovery.Scanner {
	s := discovery.NewScanner()
	if d := c.Discovery; d != nil {
		s.Timeout = d.Timeout
		s.MaxAttempts = d.Attempts
		s.PollWindow = d.PollWindow
		s.Manufacturer = d.Manufacturer
		s.Listen = !d.ProbeRepliesOnly
	}
	return s
}

// SessionConfig returns session settings using these preferences
func (c *Config) SessionConfig() *session.Config {
	cfg := session.DefaultConfig()
	if s := c.Session; s != nil {
		cfg.Port = s.Port
		cfg.KeepAliveInterval = s.KeepAliveInterval
		cfg.DialTimeout = s.DialTimeout
		cfg.IOTimeout = s.IOTimeout
	}
	return cfg
}
