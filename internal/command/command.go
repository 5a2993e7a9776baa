// Package command builds the payloads written on the TV control connection.
//
// The control protocol has exactly two message shapes: the literal keep-alive
// "nop" and a setKey action carrying a key code as an XML attribute. There is
// no framing and no escaping; see Encode.
package command

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// KeyCode identifies one remote-control button (e.g. "TR_KEY_UP").
// The vocabulary is defined by callers; the encoder passes it through as-is.
type KeyCode string

// KeepAlive is the no-op payload that stops the TV from dropping an idle connection
const KeepAlive = "nop"

const (
	payloadPrefix = `<?xml version="1.0" encoding="utf-8"?><root><action name="setKey" eventAction="TR_DOWN" keyCode="`
	payloadSuffix = `" /></root>`
)

// keyCodePattern extracts the keyCode attribute from an encoded payload
var keyCodePattern = regexp.MustCompile(`keyCode="([^"]*)"`)

// ErrInvalidKeyCode is returned by KeyCode.Validate
var ErrInvalidKeyCode = errors.New("invalid key code")

// Validate rejects codes that cannot be embedded in a payload unescaped:
// empty codes and codes containing whitespace, '"', '<', '>' or '&'.
func (k KeyCode) Validate() error {
	if k == "" {
		return fmt.Errorf("%w: empty", ErrInvalidKeyCode)
	}
	for _, r := range string(k) {
		if unicode.IsSpace(r) || strings.ContainsRune(`"<>&`, r) {
			return fmt.Errorf("%w: %q contains %q", ErrInvalidKeyCode, string(k), r)
		}
	}
	return nil
}

// Encode returns the setKey payload for code.
//
// The code is embedded verbatim: a code containing a double quote, '<' or '&'
// produces a malformed payload. Codes typed on the command line or read from
// the config file are checked with Validate first.
func Encode(code KeyCode) []byte {
	buf := make([]byte, 0, len(payloadPrefix)+len(code)+len(payloadSuffix))
	buf = append(buf, payloadPrefix...)
	buf = append(buf, code...)
	buf = append(buf, payloadSuffix...)
	return buf
}

// KeyCodeOf extracts the key code from a payload produced by Encode.
// Returns false for the keep-alive payload or anything else without a keyCode.
func KeyCodeOf(payload []byte) (KeyCode, bool) {
	m := keyCodePattern.FindSubmatch(payload)
	if m == nil {
		return "", false
	}
	return KeyCode(m[1]), true
}

// IsKeepAlive reports whether payload is the keep-alive message
func IsKeepAlive(payload []byte) bool {
	return string(payload) == KeepAlive
}

// Describe returns a short label for a payload, used in logs
func Describe(payload []byte) string {
	if IsKeepAlive(payload) {
		return "keepalive"
	}
	if code, ok := KeyCodeOf(payload); ok {
		return "key " + string(code)
	}
	return "raw"
}
