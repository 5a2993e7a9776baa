package discovery

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strings"
)

// ErrMalformedResponse is returned for datagrams that cannot identify a device
var ErrMalformedResponse = errors.New("malformed probe response")

// ipv4Pattern matches dotted-quad candidates; octet ranges are checked separately
var ipv4Pattern = regexp.MustCompile(`\b\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}\b`)

// ProbeResponse is the useful part of one SSDP datagram
type ProbeResponse struct {
	// Location is the LOCATION header value (description URL)
	Location string

	// IPv4 is the dotted-quad address found in Location
	IPv4 string

	// Headers holds every header in the datagram, keys upper-cased
	Headers map[string]string

	// From is the sender's address (ip:port); empty when parsed from bare bytes
	From string
}

// ParseProbeResponse extracts LOCATION and the device IPv4 address from an
// SSDP datagram. Both M-SEARCH replies ("HTTP/1.1 200 OK") and NOTIFY
// announcements are accepted; header names are matched case-insensitively.
// Returns an error wrapping ErrMalformedResponse when LOCATION is missing or
// holds no valid IPv4 address.
func ParseProbeResponse(data []byte) (*ProbeResponse, error) {
	headers := parseHeaders(string(data))

	location := headers["LOCATION"]
	if location == "" {
		return nil, fmt.Errorf("%w: no LOCATION header", ErrMalformedResponse)
	}

	ip := extractIPv4(location)
	if ip == "" {
		return nil, fmt.Errorf("%w: no IPv4 address in LOCATION %q", ErrMalformedResponse, location)
	}

	return &ProbeResponse{
		Location: location,
		IPv4:     ip,
		Headers:  headers,
	}, nil
}

// parseHeaders splits "Key: value" lines. The start line has no colon-separated
// key and is skipped naturally. The first occurrence of a header wins.
func parseHeaders(text string) map[string]string {
	hdr := map[string]string{}
	for _, ln := range strings.Split(text, "\n") {
		ln = strings.TrimRight(ln, "\r")
		i := strings.Index(ln, ":")
		if i <= 0 {
			continue
		}
		k := strings.ToUpper(strings.TrimSpace(ln[:i]))
		if strings.ContainsAny(k, " \t") {
			continue
		}
		if _, dup := hdr[k]; dup {
			continue
		}
		hdr[k] = strings.TrimSpace(ln[i+1:])
	}
	return hdr
}

// extractIPv4 returns the IPv4 host of a URL, or failing that the first valid
// dotted quad anywhere in the string.
func extractIPv4(location string) string {
	if u, err := url.Parse(location); err == nil {
		if ip := net.ParseIP(u.Hostname()); ip != nil && ip.To4() != nil {
			return ip.To4().String()
		}
	}

	for _, candidate := range ipv4Pattern.FindAllString(location, -1) {
		if ip := net.ParseIP(candidate); ip != nil && ip.To4() != nil {
			return ip.To4().String()
		}
	}
	return ""
}
