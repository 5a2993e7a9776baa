package neterr

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"strings"
	"syscall"
)

// ErrorType represents the category of transport failure
type ErrorType int

const (
	// TypeNetwork is a generic network-level failure
	TypeNetwork ErrorType = iota
	// TypeTimeout indicates a dial, read or write deadline was exceeded
	TypeTimeout
	// TypeConnectionRefused indicates the device refused the TCP connection
	TypeConnectionRefused
	// TypeHostUnreachable indicates no route to the device
	TypeHostUnreachable
	// TypeNetworkUnreachable indicates the local network is unreachable
	TypeNetworkUnreachable
	// TypeDNS indicates a name resolution failure
	TypeDNS
	// TypeHTTP indicates a non-2xx HTTP status from the device
	TypeHTTP
	// TypeClosed indicates the peer closed the connection
	TypeClosed
)

// String returns a human-readable name for the error type
func (t ErrorType) String() string {
	switch t {
	case TypeNetwork:
		return "Network Error"
	case TypeTimeout:
		return "Timeout"
	case TypeConnectionRefused:
		return "Connection Refused"
	case TypeHostUnreachable:
		return "Host Unreachable"
	case TypeNetworkUnreachable:
		return "Network Unreachable"
	case TypeDNS:
		return "DNS Error"
	case TypeHTTP:
		return "HTTP Error"
	case TypeClosed:
		return "Connection Closed"
	default:
		return fmt.Sprintf("ErrorType(%d)", int(t))
	}
}

// Error is a transport failure talking to a device.
type Error struct {
	Type       ErrorType // Category of error
	Op         string    // Operation that failed (dial, write, read, fetch)
	Addr       string    // Device address or URL, for context
	StatusCode int       // HTTP status code (TypeHTTP only)
	Err        error     // Underlying error (if any)
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Type.String())
	if e.Op != "" {
		b.WriteString(": ")
		b.WriteString(e.Op)
	}
	if e.Addr != "" {
		b.WriteString(" ")
		b.WriteString(e.Addr)
	}
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, " (caused by: %v)", e.Err)
	}
	return b.String()
}

// Unwrap returns the underlying error for error chain inspection
func (e *Error) Unwrap() error {
	return e.Err
}

// Classify analyzes err and wraps it in an *Error with the most specific type.
// Returns nil for a nil err. An err that already is an *Error keeps its type and
// only gains op/addr if they were empty.
func Classify(op, addr string, err error) *Error {
	if err == nil {
		return nil
	}

	var existing *Error
	if errors.As(err, &existing) {
		if existing.Op == "" {
			existing.Op = op
		}
		if existing.Addr == "" {
			existing.Addr = addr
		}
		return existing
	}

	return &Error{Type: classifyType(err), Op: op, Addr: addr, Err: err}
}

func classifyType(err error) ErrorType {
	if os.IsTimeout(err) || errors.Is(err, os.ErrDeadlineExceeded) {
		return TypeTimeout
	}

	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, net.ErrClosed) || errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) {
		return TypeClosed
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return TypeDNS
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		switch {
		case errors.Is(opErr.Err, syscall.ECONNREFUSED):
			return TypeConnectionRefused
		case errors.Is(opErr.Err, syscall.EHOSTUNREACH):
			return TypeHostUnreachable
		case errors.Is(opErr.Err, syscall.ENETUNREACH):
			return TypeNetworkUnreachable
		}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil && urlErr.Err != err {
		return classifyType(urlErr.Err)
	}

	return TypeNetwork
}

// NewHTTPError creates an error for a non-2xx HTTP response
func NewHTTPError(addr string, statusCode int) *Error {
	return &Error{Type: TypeHTTP, Op: "fetch", Addr: addr, StatusCode: statusCode}
}

func isType(err error, types ...ErrorType) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	for _, t := range types {
		if e.Type == t {
			return true
		}
	}
	return false
}

// IsTransportError reports whether err is any classified transport failure
func IsTransportError(err error) bool {
	var e *Error
	return errors.As(err, &e)
}

// IsTimeout checks if an error is a timeout
func IsTimeout(err error) bool {
	return isType(err, TypeTimeout)
}

// IsRefused checks if the device refused the connection
func IsRefused(err error) bool {
	return isType(err, TypeConnectionRefused)
}

// IsUnreachable checks if the device or its network could not be reached
func IsUnreachable(err error) bool {
	return isType(err, TypeHostUnreachable, TypeNetworkUnreachable)
}

// IsClosed checks if the peer closed the connection
func IsClosed(err error) bool {
	return isType(err, TypeClosed)
}

// IsHTTPError checks if an error is an HTTP status error
func IsHTTPError(err error) bool {
	return isType(err, TypeHTTP)
}

// ShortMessage returns a concise, user-friendly error message
func ShortMessage(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return err.Error()
	}

	switch e.Type {
	case TypeTimeout:
		return "Device not responding (timeout)"
	case TypeConnectionRefused:
		return "Device refused the control connection"
	case TypeHostUnreachable:
		return "Device unreachable - check network connection"
	case TypeNetworkUnreachable:
		return "Network unreachable - check your connection"
	case TypeDNS:
		return "Cannot resolve device hostname"
	case TypeHTTP:
		return fmt.Sprintf("Device error (HTTP %d)", e.StatusCode)
	case TypeClosed:
		return "Device closed the connection"
	default:
		return "Network error - check connection"
	}
}

// TroubleshootingHint returns user-facing advice for a transport error
func TroubleshootingHint(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return "An unexpected error occurred. Please try again."
	}

	switch e.Type {
	case TypeTimeout:
		return strings.Join([]string{
			"The device did not respond in time.",
			"Troubleshooting:",
			"  • Check that the TV is powered on (not in deep standby)",
			"  • Verify this computer is on the same network as the TV",
			"  • Try increasing --dial-timeout",
		}, "\n")

	case TypeConnectionRefused:
		return strings.Join([]string{
			"The device refused the control connection.",
			"Troubleshooting:",
			"  • Another remote app may be holding the control port",
			"  • Check the control port (default is 4123)",
			"  • Power-cycle the TV",
		}, "\n")

	case TypeHostUnreachable, TypeNetworkUnreachable:
		return strings.Join([]string{
			"The device is not reachable on the network.",
			"Troubleshooting:",
			"  • Verify the device IP address is correct",
			"  • Check that you're on the same network as the device",
			"  • Try pinging the device: ping " + hostOf(e.Addr),
		}, "\n")

	case TypeClosed:
		return strings.Join([]string{
			"The device closed the connection.",
			"Troubleshooting:",
			"  • Reconnect; the TV drops idle or competing sessions",
			"  • Lower session.keepalive_interval if the TV drops idle connections",
		}, "\n")

	default:
		return strings.Join([]string{
			"Network communication failed.",
			"Troubleshooting:",
			"  • Check your network connection",
			"  • Verify the device is powered on",
		}, "\n")
	}
}

func hostOf(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
