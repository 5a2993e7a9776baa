package session

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/novaremote/internal/command"
	"github.com/muurk/novaremote/internal/logging"
	"github.com/muurk/novaremote/internal/neterr"
)

// ErrClosed is returned by SendKey after Close
var ErrClosed = errors.New("session closed")

// Session is an open control connection to one TV
type Session struct {
	addr string
	name string
	cfg  Config
	conn net.Conn

	// mu serializes exchanges and guards buf
	mu  sync.Mutex
	buf []byte

	exchanges atomic.Int64

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	errMu sync.Mutex
	err   error
}

// Open connects to the TV at address, confirms the connection with one
// keep-alive exchange and starts the keep-alive task. address is an IP or
// hostname; cfg.Port is appended unless address already carries a port.
// name is informational. A nil cfg uses DefaultConfig.
func Open(ctx context.Context, address, name string, cfg *Config) (*Session, error) {
	c := cfg.withDefaults()
	target := controlAddr(address, c.Port)

	dialCtx := ctx
	if c.DialTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, c.DialTimeout)
		defer cancel()
	}

	logging.Info("Opening control session",
		zap.String("addr", target),
		zap.String("name", name),
	)

	conn, err := c.Dial(dialCtx, "tcp", target)
	if err != nil {
		return nil, neterr.Classify("dial", target, err)
	}
	logging.LogConnection(target, "connected")

	s := &Session{
		addr: target,
		name: name,
		cfg:  c,
		conn: conn,
		buf:  make([]byte, c.BufferSize),
		done: make(chan struct{}),
	}

	// Cancelling ctx aborts the opening exchange; the TV may accept and never answer
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	err = s.exchange([]byte(command.KeepAlive))
	stop()
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	if err != nil {
		_ = conn.Close()
		logging.LogConnection(target, "closed")
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("open %s: %w", target, ctxErr)
		}
		return nil, fmt.Errorf("initial keep-alive failed: %w", err)
	}

	if c.KeepAliveInterval > 0 {
		s.wg.Add(1)
		go func() {
			err := s.keepAlive()
			s.wg.Done()
			// Called after Done so the callback may Close the session
			if err != nil && c.OnKeepAliveError != nil {
				c.OnKeepAliveError(err)
			}
		}()
	}

	return s, nil
}

func controlAddr(address string, port int) string {
	if _, _, err := net.SplitHostPort(address); err == nil {
		return address
	}
	return net.JoinHostPort(address, strconv.Itoa(port))
}

// Address returns the host:port of the control connection
func (s *Session) Address() string {
	return s.addr
}

// Name returns the device name given to Open
func (s *Session) Name() string {
	return s.name
}

// Exchanges returns the number of completed exchanges, keep-alives included
func (s *Session) Exchanges() int64 {
	return s.exchanges.Load()
}

// Err returns the error that stopped the keep-alive task, or nil
func (s *Session) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

// SendKey sends one setKey command and waits for the acknowledgement.
// Safe for concurrent use; exchanges never interleave.
func (s *Session) SendKey(code command.KeyCode) error {
	if err := s.exchange(command.Encode(code)); err != nil {
		if errors.Is(err, ErrClosed) {
			return err
		}
		return fmt.Errorf("send %s: %w", code, err)
	}
	return nil
}

// Close stops the keep-alive task and closes the connection.
// Calling Close more than once is safe; later calls return nil.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		// Closing the conn unblocks an exchange stuck in Read
		err = s.conn.Close()
		s.wg.Wait()
		logging.LogConnection(s.addr, "closed")
	})
	return err
}

func (s *Session) closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// exchange writes payload and reads one acknowledgement under the exchange lock
func (s *Session) exchange(payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed() {
		return ErrClosed
	}

	label := command.Describe(payload)

	if s.cfg.IOTimeout > 0 {
		_ = s.conn.SetDeadline(time.Now().Add(s.cfg.IOTimeout))
		defer func() { _ = s.conn.SetDeadline(time.Time{}) }()
	}

	if _, err := s.conn.Write(payload); err != nil {
		return s.fail("write", err)
	}
	logging.LogExchange(s.addr, "sent", label, payload)

	n, err := s.conn.Read(s.buf)
	if err != nil {
		return s.fail("read", err)
	}
	logging.LogExchange(s.addr, "received", label, s.buf[:n])

	s.exchanges.Add(1)
	return nil
}

func (s *Session) fail(op string, err error) error {
	if s.closed() {
		return ErrClosed
	}
	return neterr.Classify(op, s.addr, err)
}

// keepAlive sends a keep-alive every KeepAliveInterval, measured from the end
// of the previous exchange, until Close or the first failure. It returns the
// failure, or nil when stopped by Close.
func (s *Session) keepAlive() error {
	timer := time.NewTimer(s.cfg.KeepAliveInterval)
	defer timer.Stop()

	for {
		select {
		case <-s.done:
			return nil
		case <-timer.C:
		}

		err := s.exchange([]byte(command.KeepAlive))
		if errors.Is(err, ErrClosed) {
			return nil
		}
		if err != nil {
			s.errMu.Lock()
			s.err = err
			s.errMu.Unlock()

			logging.Warn("Keep-alive failed, stopping",
				zap.String("addr", s.addr),
				zap.Error(err),
			)
			return err
		}

		timer.Reset(s.cfg.KeepAliveInterval)
	}
}
