package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/ipv4"

	"github.com/muurk/novaremote/internal/description"
	"github.com/muurk/novaremote/internal/logging"
	"github.com/muurk/novaremote/internal/neterr"
)

const (
	// DefaultGroupAddr is the SSDP multicast group and port
	DefaultGroupAddr = "239.255.255.250:1900"

	// DefaultSearchTarget is the ST header sent in probes
	DefaultSearchTarget = "upnp:rootdevice"

	// DefaultManufacturer is the only vendor string discovery accepts
	DefaultManufacturer = "Novatek"

	// DefaultTimeout bounds a whole discovery pass
	DefaultTimeout = 15 * time.Second

	// DefaultMaxAttempts is the number of probe rounds
	DefaultMaxAttempts = 10

	// DefaultPollWindow is how long a round waits for the next datagram
	DefaultPollWindow = 1 * time.Second

	// maxDatagramSize is large enough for any SSDP message seen in practice
	maxDatagramSize = 8192

	// multicastTTL keeps probes on the local segment plus one router hop
	multicastTTL = 2
)

// ErrNotFound means no matching device answered within the attempt/time budget.
// It is an expected outcome, not a failure.
var ErrNotFound = errors.New("no matching device found on the network")

// Describer fetches and parses a description document
type Describer interface {
	Describe(ctx context.Context, url string) (*description.Description, error)
}

// Scanner finds the TV with SSDP
type Scanner struct {
	// Timeout is the maximum time a discovery pass may take (0 = no limit)
	Timeout time.Duration

	// MaxAttempts is the number of probe rounds
	MaxAttempts int

	// PollWindow is how long a round keeps listening after the last datagram
	PollWindow time.Duration

	// Manufacturer is the exact vendor string a device must report
	Manufacturer string

	// SearchTarget is the ST header of the probe
	SearchTarget string

	// GroupAddr is where probes are sent. A non-multicast address (used in
	// tests) disables group membership.
	GroupAddr string

	// Listen enables the port-1900 group listener for NOTIFY announcements and
	// devices that answer to the group. Replies to the probe itself always
	// arrive on the sending socket.
	Listen bool

	// Describer fetches description documents
	Describer Describer
}

// NewScanner creates a new SSDP scanner with default settings
func NewScanner() *Scanner {
	return &Scanner{
		Timeout:      DefaultTimeout,
		MaxAttempts:  DefaultMaxAttempts,
		PollWindow:   DefaultPollWindow,
		Manufacturer: DefaultManufacturer,
		SearchTarget: DefaultSearchTarget,
		GroupAddr:    DefaultGroupAddr,
		Listen:       true,
		Describer:    description.NewClient(),
	}
}

type datagram struct {
	from string
	data []byte
}

// Discover runs probe rounds until a device from Manufacturer answers.
// Returns ErrNotFound when the attempts or the timeout run out first, and
// ctx.Err() if the caller cancels. Socket setup failures are returned as
// errors; candidates that fail to fetch or parse are skipped.
func (s *Scanner) Discover(ctx context.Context) (*Device, error) {
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	group, err := net.ResolveUDPAddr("udp4", s.GroupAddr)
	if err != nil {
		return nil, fmt.Errorf("invalid group address %q: %w", s.GroupAddr, err)
	}

	sender, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero, Port: 0})
	if err != nil {
		return nil, neterr.Classify("listen", "udp4", err)
	}
	conns := []*net.UDPConn{sender}

	if group.IP.IsMulticast() {
		pc := ipv4.NewPacketConn(sender)
		_ = pc.SetMulticastTTL(multicastTTL)
		_ = pc.SetMulticastLoopback(true)

		if s.Listen {
			listener, err := listenGroup(group)
			if err != nil {
				// Port 1900 is often held by a local SSDP daemon; unicast replies still work
				logging.Warn("SSDP group listener unavailable, using probe replies only",
					zap.String("group", group.String()),
					zap.Error(err),
				)
			} else {
				conns = append(conns, listener)
			}
		}
	}

	// Readers get their own context so that returning early (a match) stops
	// them even while they are blocked handing over a datagram
	readCtx, stopReaders := context.WithCancel(ctx)
	datagrams := make(chan datagram, 16)
	var wg sync.WaitGroup
	for _, c := range conns {
		wg.Add(1)
		go func(c *net.UDPConn) {
			defer wg.Done()
			readDatagrams(readCtx, c, datagrams)
		}(c)
	}
	defer func() {
		stopReaders()
		for _, c := range conns {
			_ = c.Close()
		}
		wg.Wait()
	}()

	logging.Info("Starting SSDP discovery",
		zap.String("group", group.String()),
		zap.String("st", s.SearchTarget),
		zap.Int("max_attempts", s.MaxAttempts),
		zap.Duration("timeout", s.Timeout),
	)

	probe := s.probe()
	rejected := make(map[string]bool)

	for attempt := 1; attempt <= s.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, s.stopReason(err)
		}

		logging.Debug("Sending SSDP probe", zap.Int("attempt", attempt))
		if _, err := sender.WriteToUDP(probe, group); err != nil {
			return nil, neterr.Classify("probe", group.String(), err)
		}

		if dev, err := s.poll(ctx, datagrams, rejected); dev != nil || err != nil {
			return dev, err
		}
	}

	logging.Info("Discovery finished without a match", zap.Int("attempts", s.MaxAttempts))
	return nil, ErrNotFound
}

// poll consumes datagrams until one is accepted or PollWindow passes with no
// datagram arriving.
func (s *Scanner) poll(ctx context.Context, datagrams <-chan datagram, rejected map[string]bool) (*Device, error) {
	timer := time.NewTimer(s.PollWindow)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, s.stopReason(ctx.Err())

		case <-timer.C:
			return nil, nil

		case dg := <-datagrams:
			if dev := s.evaluate(ctx, dg, rejected); dev != nil {
				return dev, nil
			}
			timer.Reset(s.PollWindow)
		}
	}
}

// evaluate checks one datagram and returns the device if it is accepted.
// Locations whose description was read and rejected are remembered so that
// repeated answers from the same device are not fetched again.
func (s *Scanner) evaluate(ctx context.Context, dg datagram, rejected map[string]bool) *Device {
	logging.LogDatagram(dg.from, dg.data)

	resp, err := parseDatagram(dg)
	if err != nil {
		logging.Debug("Discarding datagram", zap.String("from", dg.from), zap.Error(err))
		return nil
	}

	if rejected[resp.Location] {
		return nil
	}

	desc, err := s.Describer.Describe(ctx, resp.Location)
	if err != nil {
		if errors.Is(err, description.ErrMissingField) {
			rejected[resp.Location] = true
			logging.Debug("Discarding candidate with incomplete description",
				zap.String("location", resp.Location),
				zap.Error(err),
			)
		} else {
			logging.Warn("Failed to fetch device description",
				zap.String("location", resp.Location),
				zap.Error(err),
			)
		}
		return nil
	}

	if strings.TrimSpace(desc.Manufacturer) != s.Manufacturer {
		rejected[resp.Location] = true
		logging.Debug("Discarding device from another vendor",
			zap.String("location", resp.Location),
			zap.String("manufacturer", desc.Manufacturer),
		)
		return nil
	}

	dev := &Device{
		IP:           resp.IPv4,
		Name:         desc.FriendlyName,
		Location:     resp.Location,
		DiscoveredAt: time.Now(),
	}
	logging.Info("Device found",
		zap.String("ip", dev.IP),
		zap.String("name", dev.Name),
		zap.String("location", dev.Location),
		zap.String("from", resp.From),
	)
	return dev
}

// parseDatagram parses dg and records its sender
func parseDatagram(dg datagram) (*ProbeResponse, error) {
	resp, err := ParseProbeResponse(dg.data)
	if err != nil {
		return nil, err
	}
	resp.From = dg.from
	return resp, nil
}

// stopReason maps a finished context to the error Discover returns
func (s *Scanner) stopReason(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		logging.Info("Discovery timed out", zap.Duration("timeout", s.Timeout))
		return ErrNotFound
	}
	return err
}

// probe builds the M-SEARCH request
func (s *Scanner) probe() []byte {
	return []byte("M-SEARCH * HTTP/1.1\r\n" +
		"HOST: " + s.GroupAddr + "\r\n" +
		"MAN: \"ssdp:discover\"\r\n" +
		"MX: 1\r\n" +
		"ST: " + s.SearchTarget + "\r\n\r\n")
}

// readDatagrams forwards everything read from c until c is closed
func readDatagrams(ctx context.Context, c *net.UDPConn, out chan<- datagram) {
	buf := make([]byte, maxDatagramSize)
	for {
		n, addr, err := c.ReadFromUDP(buf)
		if err != nil {
			return
		}
		data := make([]byte, n)
		copy(data, buf[:n])

		select {
		case out <- datagram{from: addr.String(), data: data}:
		case <-ctx.Done():
			return
		}
	}
}

// listenGroup binds the SSDP port and joins the group on every multicast
// capable IPv4 interface, falling back to the system default interface.
func listenGroup(group *net.UDPAddr) (*net.UDPConn, error) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero, Port: group.Port})
	if err != nil {
		return nil, err
	}

	pc := ipv4.NewPacketConn(conn)
	joined := 0
	for _, ifi := range multicastInterfaces() {
		if err := pc.JoinGroup(&ifi, &net.UDPAddr{IP: group.IP}); err == nil {
			joined++
		}
	}
	if joined == 0 {
		if err := pc.JoinGroup(nil, &net.UDPAddr{IP: group.IP}); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("failed to join %s: %w", group.IP, err)
		}
	}

	_ = conn.SetReadBuffer(1 << 20)
	return conn, nil
}

// multicastInterfaces returns up, non-loopback, multicast interfaces with an IPv4 address
func multicastInterfaces() []net.Interface {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil
	}

	var out []net.Interface
	for _, ifi := range ifaces {
		if ifi.Flags&net.FlagUp == 0 || ifi.Flags&net.FlagMulticast == 0 || ifi.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, _ := ifi.Addrs()
		for _, a := range addrs {
			if ipnet, ok := a.(*net.IPNet); ok && ipnet.IP.To4() != nil {
				out = append(out, ifi)
				break
			}
		}
	}
	return out
}

// Discover finds the TV with a default Scanner, the given overall timeout and
// number of probe rounds. It returns ErrNotFound when nothing matched.
func Discover(timeout time.Duration, maxAttempts int) (*Device, error) {
	scanner := NewScanner()
	scanner.Timeout = timeout
	scanner.MaxAttempts = maxAttempts
	return scanner.Discover(context.Background())
}
