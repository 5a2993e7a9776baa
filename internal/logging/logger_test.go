package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observe(t *testing.T, level zapcore.Level) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(level)
	SetLogger(zap.New(core))
	t.Cleanup(func() { SetLogger(nil) })
	return logs
}

func TestInitialize_SilentByDefault(t *testing.T) {
	t.Setenv(LogLevelEnvVar, "")

	if err := Initialize(""); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}

	if GetLogger().Core().Enabled(zapcore.ErrorLevel) {
		t.Error("logger should be silent when no level is configured")
	}
}

func TestInitialize_Levels(t *testing.T) {
	tests := []struct {
		name    string
		flag    string
		env     string
		enabled zapcore.Level
		silent  zapcore.Level
	}{
		{"flag", "debug", "", zapcore.DebugLevel, zapcore.DebugLevel - 1},
		{"env", "", "warn", zapcore.WarnLevel, zapcore.InfoLevel},
		{"flag wins over env", "error", "debug", zapcore.ErrorLevel, zapcore.WarnLevel},
		{"case insensitive", "INFO", "", zapcore.InfoLevel, zapcore.DebugLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(LogLevelEnvVar, tt.env)
			t.Cleanup(func() { SetLogger(nil) })

			if err := Initialize(tt.flag); err != nil {
				t.Fatalf("Initialize() error = %v", err)
			}

			core := GetLogger().Core()
			if !core.Enabled(tt.enabled) {
				t.Errorf("%v should be enabled", tt.enabled)
			}
			if core.Enabled(tt.silent) {
				t.Errorf("%v should be disabled", tt.silent)
			}
		})
	}
}

func TestInitialize_UnknownLevel(t *testing.T) {
	t.Cleanup(func() { SetLogger(nil) })

	err := Initialize("chatty")
	if err == nil || !strings.Contains(err.Error(), "chatty") {
		t.Errorf("Initialize(chatty) error = %v, want invalid level", err)
	}
}

func TestLogExchange_DebugOnly(t *testing.T) {
	logs := observe(t, zapcore.InfoLevel)

	LogExchange("192.168.1.50:4123", "sent", "keepalive", []byte("nop"))
	if logs.Len() != 0 {
		t.Errorf("LogExchange at info level wrote %d entries, want 0", logs.Len())
	}

	logs = observe(t, zapcore.DebugLevel)

	LogExchange("192.168.1.50:4123", "sent", "keepalive", []byte("nop\r\n"))
	if logs.Len() != 1 {
		t.Fatalf("LogExchange at debug level wrote %d entries, want 1", logs.Len())
	}

	fields := logs.All()[0].ContextMap()
	if fields["ascii"] != "nop.." {
		t.Errorf("ascii field = %v, want %q", fields["ascii"], "nop..")
	}
	if fields["direction"] != "sent" {
		t.Errorf("direction field = %v, want sent", fields["direction"])
	}
	if _, ok := fields["hex"]; ok {
		t.Error("text payloads should not carry a hex dump")
	}
}

func TestLogPayload_BinaryGetsHex(t *testing.T) {
	logs := observe(t, zapcore.DebugLevel)

	LogPayload("Reply", []byte{0xde, 0xad, 'o', 'k'})

	fields := logs.All()[0].ContextMap()
	if fields["hex"] != "dead6f6b" {
		t.Errorf("hex field = %v, want dead6f6b", fields["hex"])
	}
	if fields["ascii"] != "..ok" {
		t.Errorf("ascii field = %v, want ..ok", fields["ascii"])
	}
}

func TestDumps_Truncate(t *testing.T) {
	long := []byte(strings.Repeat("a", maxDump+10))

	if got := asciiDump(long); !strings.HasSuffix(got, "...") || len(got) != maxDump+3 {
		t.Errorf("asciiDump(long) length = %d, want %d with ellipsis", len(got), maxDump+3)
	}
	if got := hexDump(long); len(got) != 2*maxDump+3 {
		t.Errorf("hexDump(long) length = %d, want %d", len(got), 2*maxDump+3)
	}
	if got := asciiDump(nil); got != "" {
		t.Errorf("asciiDump(nil) = %q, want empty", got)
	}
}

func TestToFile(t *testing.T) {
	t.Setenv(LogLevelEnvVar, "")
	t.Cleanup(func() { SetLogger(nil) })

	if err := Initialize("info"); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "novaremote.log")
	if err := ToFile(path); err != nil {
		t.Fatalf("ToFile() error = %v", err)
	}

	Debug("below level")
	Info("Connection event", zap.String("event", "connected"))
	Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	out := string(data)
	if !strings.Contains(out, "Connection event") || !strings.Contains(out, "connected") {
		t.Errorf("log file missing entry:\n%s", out)
	}
	if strings.Contains(out, "below level") {
		t.Error("ToFile should keep the configured level")
	}
	if strings.Contains(out, "\x1b[") {
		t.Error("log file should not contain color codes")
	}
}

func TestToFile_SilentOpensNothing(t *testing.T) {
	t.Setenv(LogLevelEnvVar, "")
	t.Cleanup(func() { SetLogger(nil) })

	if err := Initialize(""); err != nil {
		t.Fatal(err)
	}
	if Enabled() {
		t.Error("Enabled() = true while silent")
	}

	path := filepath.Join(t.TempDir(), "novaremote.log")
	if err := ToFile(path); err != nil {
		t.Fatalf("ToFile() error = %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("ToFile created %s while logging is silent", path)
	}
}
