package logging

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevelEnvVar selects the log level when no --log-level flag is given.
// Unset or empty means no output at all.
const LogLevelEnvVar = "NOVAREMOTE_LOG_LEVEL"

// maxDump caps how many payload bytes end up in a single log entry
const maxDump = 256

var (
	logger = zap.NewNop()

	// level is the configured level, nil while silent
	level *zap.AtomicLevel
)

// Initialize installs a console logger on stderr at the named level ("debug",
// "info", "warn" or "error"). An empty name falls back to NOVAREMOTE_LOG_LEVEL,
// and if that is empty too the logger stays silent.
func Initialize(name string) error {
	if name == "" {
		name = os.Getenv(LogLevelEnvVar)
	}
	if name == "" {
		logger, level = zap.NewNop(), nil
		return nil
	}

	lvl, err := zapcore.ParseLevel(strings.ToLower(name))
	if err != nil {
		return fmt.Errorf("invalid log level %q (want debug, info, warn or error)", name)
	}

	al := zap.NewAtomicLevelAt(lvl)
	l, err := build(al, "stderr", true)
	if err != nil {
		return err
	}

	logger, level = l, &al
	return nil
}

// ToFile moves log output from stderr to path (appended, created if missing)
// for full-screen UIs that own the terminal. The level is unchanged; when
// logging is silent nothing is opened.
func ToFile(path string) error {
	if level == nil {
		return nil
	}
	l, err := build(*level, path, false)
	if err != nil {
		return err
	}
	_ = logger.Sync()
	logger = l
	return nil
}

// Enabled reports whether any log output is configured
func Enabled() bool {
	return level != nil
}

func build(lvl zap.AtomicLevel, output string, color bool) (*zap.Logger, error) {
	encoder := zap.NewDevelopmentEncoderConfig()
	encoder.EncodeLevel = zapcore.CapitalLevelEncoder
	if color {
		encoder.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	encoder.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder.EncodeCaller = zapcore.ShortCallerEncoder

	l, err := zap.Config{
		Level:            lvl,
		Encoding:         "console",
		EncoderConfig:    encoder,
		OutputPaths:      []string{output},
		ErrorOutputPaths: []string{output},
	}.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return l, nil
}

// SetLogger replaces the global logger (tests use an observer core).
// nil restores silence.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l, level = zap.NewNop(), nil
	}
	logger = l
}

// GetLogger returns the global logger
func GetLogger() *zap.Logger {
	return logger
}

func Info(msg string, fields ...zap.Field)  { logger.Info(msg, fields...) }
func Debug(msg string, fields ...zap.Field) { logger.Debug(msg, fields...) }
func Warn(msg string, fields ...zap.Field)  { logger.Warn(msg, fields...) }
func Error(msg string, fields ...zap.Field) { logger.Error(msg, fields...) }

// LogConnection logs a control connection lifecycle event
// ("connected", "closed", ...)
func LogConnection(remoteAddr, event string) {
	Info("Connection event",
		zap.String("remote_addr", remoteAddr),
		zap.String("event", event),
	)
}

// LogExchange logs one side of a command/reply exchange on the control
// connection. direction is "sent" or "received".
func LogExchange(remoteAddr, direction, label string, data []byte) {
	LogPayload("Control exchange", data,
		zap.String("remote_addr", remoteAddr),
		zap.String("direction", direction),
		zap.String("payload", label),
	)
}

// LogDatagram logs a received discovery datagram
func LogDatagram(from string, data []byte) {
	LogPayload("Discovery datagram", data, zap.String("from", from))
}

// LogPayload logs data at debug level with its length and a printable dump.
// Nothing is formatted unless debug logging is on.
func LogPayload(msg string, data []byte, fields ...zap.Field) {
	if !logger.Core().Enabled(zapcore.DebugLevel) {
		return
	}
	fields = append(fields,
		zap.Int("length", len(data)),
		zap.String("ascii", asciiDump(data)),
	)
	if !isText(data) {
		fields = append(fields, zap.String("hex", hexDump(data)))
	}
	Debug(msg, fields...)
}

// isText reports whether data is printable ASCII apart from CR, LF and tab
func isText(data []byte) bool {
	for _, b := range data {
		if (b < 32 || b > 126) && b != '\r' && b != '\n' && b != '\t' {
			return false
		}
	}
	return true
}

func hexDump(data []byte) string {
	if len(data) > maxDump {
		return hex.EncodeToString(data[:maxDump]) + "..."
	}
	return hex.EncodeToString(data)
}

func asciiDump(data []byte) string {
	n := min(len(data), maxDump)

	var b strings.Builder
	b.Grow(n + 3)
	for _, c := range data[:n] {
		if c >= 32 && c <= 126 {
			b.WriteByte(c)
		} else {
			b.WriteByte('.')
		}
	}
	if len(data) > maxDump {
		b.WriteString("...")
	}
	return b.String()
}

// Sync flushes any buffered log entries
func Sync() {
	_ = logger.Sync()
}
