package session

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muurk/novaremote/internal/command"
	"github.com/muurk/novaremote/internal/neterr"
)

// mockConn acknowledges every write and records whether a second write ever
// arrived before the previous one was answered.
type mockConn struct {
	readDelay time.Duration
	failAt    int // 1-based read that returns EOF (0 = never)
	blockFrom int // reads from this one on block until Close (0 = never)

	mu          sync.Mutex
	inFlight    bool
	interleaved int
	writes      [][]byte
	reads       int

	closeOnce sync.Once
	closeCh   chan struct{}
}

func newMockConn() *mockConn {
	return &mockConn{closeCh: make(chan struct{})}
}

func (c *mockConn) Write(b []byte) (int, error) {
	select {
	case <-c.closeCh:
		return 0, net.ErrClosed
	default:
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inFlight {
		c.interleaved++
	}
	c.inFlight = true
	c.writes = append(c.writes, append([]byte(nil), b...))
	return len(b), nil
}

func (c *mockConn) Read(b []byte) (int, error) {
	c.mu.Lock()
	c.reads++
	idx := c.reads
	c.mu.Unlock()

	if c.blockFrom > 0 && idx >= c.blockFrom {
		<-c.closeCh
		return 0, net.ErrClosed
	}
	if c.readDelay > 0 {
		select {
		case <-time.After(c.readDelay):
		case <-c.closeCh:
			return 0, net.ErrClosed
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.inFlight = false
	if c.failAt > 0 && idx == c.failAt {
		return 0, io.EOF
	}
	return copy(b, "<ack/>"), nil
}

func (c *mockConn) Close() error {
	c.closeOnce.Do(func() { close(c.closeCh) })
	return nil
}

func (c *mockConn) isClosed() bool {
	select {
	case <-c.closeCh:
		return true
	default:
		return false
	}
}

func (c *mockConn) LocalAddr() net.Addr                { return &net.TCPAddr{} }
func (c *mockConn) RemoteAddr() net.Addr               { return &net.TCPAddr{} }
func (c *mockConn) SetDeadline(t time.Time) error      { return nil }
func (c *mockConn) SetReadDeadline(t time.Time) error  { return nil }
func (c *mockConn) SetWriteDeadline(t time.Time) error { return nil }

func (c *mockConn) count(payload string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, w := range c.writes {
		if string(w) == payload {
			n++
		}
	}
	return n
}

func (c *mockConn) writeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.writes)
}

func (c *mockConn) interleavings() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.interleaved
}

func dialMock(c *mockConn) DialFunc {
	return func(ctx context.Context, network, address string) (net.Conn, error) {
		return c, nil
	}
}

func openMock(t *testing.T, c *mockConn, cfg *Config) *Session {
	t.Helper()
	if cfg == nil {
		cfg = DefaultConfig()
	}
	cfg.Dial = dialMock(c)

	sess, err := Open(context.Background(), "192.168.1.50", "LivingRoomTV", cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sess.Close() })
	return sess
}

// fakeDevice is a TCP server that acknowledges each read and records payloads
type fakeDevice struct {
	ln       net.Listener
	payloads chan string
	silent   bool
}

func startDevice(t *testing.T, silent bool) *fakeDevice {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	d := &fakeDevice{ln: ln, payloads: make(chan string, 64), silent: silent}
	go d.serve()
	return d
}

func (d *fakeDevice) serve() {
	conn, err := d.ln.Accept()
	if err != nil {
		return
	}
	defer conn.Close()

	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			return
		}
		d.payloads <- string(buf[:n])
		if d.silent {
			continue
		}
		if _, err := conn.Write([]byte("<ok/>")); err != nil {
			return
		}
	}
}

func (d *fakeDevice) port(t *testing.T) int {
	_, p, err := net.SplitHostPort(d.ln.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(p)
	require.NoError(t, err)
	return port
}

func (d *fakeDevice) next(t *testing.T) string {
	t.Helper()
	select {
	case p := <-d.payloads:
		return p
	case <-time.After(2 * time.Second):
		t.Fatal("device received nothing")
		return ""
	}
}

func TestOpen_SendKeyOverTCP(t *testing.T) {
	dev := startDevice(t, false)

	cfg := DefaultConfig()
	cfg.Port = dev.port(t)

	sess, err := Open(context.Background(), "127.0.0.1", "LivingRoomTV", cfg)
	require.NoError(t, err)
	defer sess.Close()

	assert.Equal(t, command.KeepAlive, dev.next(t), "open confirms the connection with a keep-alive")

	require.NoError(t, sess.SendKey("TR_KEY_UP"))
	assert.Equal(t,
		`<?xml version="1.0" encoding="utf-8"?><root><action name="setKey" eventAction="TR_DOWN" keyCode="TR_KEY_UP" /></root>`,
		dev.next(t))

	assert.Equal(t, int64(2), sess.Exchanges())
	assert.Equal(t, net.JoinHostPort("127.0.0.1", strconv.Itoa(cfg.Port)), sess.Address())
	assert.Equal(t, "LivingRoomTV", sess.Name())
	assert.NoError(t, sess.Err())
}

func TestOpen_Refused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	sess, err := Open(context.Background(), addr, "", nil)
	assert.Nil(t, sess)
	require.Error(t, err)
	assert.True(t, neterr.IsRefused(err), "got %v", err)
}

func TestOpen_IOTimeout(t *testing.T) {
	dev := startDevice(t, true)

	cfg := DefaultConfig()
	cfg.Port = dev.port(t)
	cfg.IOTimeout = 100 * time.Millisecond

	sess, err := Open(context.Background(), "127.0.0.1", "", cfg)
	assert.Nil(t, sess)
	require.Error(t, err)
	assert.True(t, neterr.IsTimeout(err), "got %v", err)
}

func TestOpen_CanceledWhileTVSilent(t *testing.T) {
	dev := startDevice(t, true)

	cfg := DefaultConfig()
	cfg.Port = dev.port(t)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	type result struct {
		sess *Session
		err  error
	}
	done := make(chan result, 1)
	go func() {
		sess, err := Open(ctx, "127.0.0.1", "", cfg)
		done <- result{sess, err}
	}()

	select {
	case r := <-done:
		assert.Nil(t, r.sess)
		assert.ErrorIs(t, r.err, context.Canceled)
	case <-time.After(3 * time.Second):
		t.Fatal("Open still blocked after cancel")
	}
}

func TestOpen_InitialKeepAliveFailureClosesConn(t *testing.T) {
	conn := newMockConn()
	conn.failAt = 1

	cfg := DefaultConfig()
	cfg.Dial = dialMock(conn)

	sess, err := Open(context.Background(), "192.168.1.50", "", cfg)
	assert.Nil(t, sess)
	require.Error(t, err)
	assert.True(t, neterr.IsClosed(err), "got %v", err)
	assert.True(t, conn.isClosed())
}

func TestSession_NoInterleaving(t *testing.T) {
	conn := newMockConn()
	conn.readDelay = time.Millisecond

	cfg := DefaultConfig()
	cfg.KeepAliveInterval = 2 * time.Millisecond
	sess := openMock(t, conn, cfg)

	const senders = 50
	var wg sync.WaitGroup
	errs := make(chan error, senders)
	for i := 0; i < senders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- sess.SendKey(command.KeyCode("TR_KEY_" + strconv.Itoa(i)))
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}

	// let a few keep-alives run on an idle connection too
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, sess.Close())

	assert.Zero(t, conn.interleavings(), "a write arrived before the previous exchange was answered")

	keys := 0
	for i := 0; i < senders; i++ {
		keys += conn.count(string(command.Encode(command.KeyCode("TR_KEY_" + strconv.Itoa(i)))))
	}
	assert.Equal(t, senders, keys)
	assert.GreaterOrEqual(t, conn.count(command.KeepAlive), 2)

	// an exchange cut short by Close is written but never counted
	pending := int64(conn.writeCount()) - sess.Exchanges()
	assert.GreaterOrEqual(t, pending, int64(0))
	assert.LessOrEqual(t, pending, int64(1))
}

func TestSession_KeepAliveRepeats(t *testing.T) {
	conn := newMockConn()

	cfg := DefaultConfig()
	cfg.KeepAliveInterval = 10 * time.Millisecond
	sess := openMock(t, conn, cfg)

	assert.Eventually(t, func() bool {
		return conn.count(command.KeepAlive) >= 4
	}, 2*time.Second, 5*time.Millisecond)
	assert.NoError(t, sess.Err())
}

func TestSession_KeepAliveDisabled(t *testing.T) {
	conn := newMockConn()

	cfg := DefaultConfig()
	cfg.KeepAliveInterval = -1
	openMock(t, conn, cfg)

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 1, conn.count(command.KeepAlive), "only the opening keep-alive")
}

func TestSession_KeepAliveFailure(t *testing.T) {
	conn := newMockConn()
	conn.failAt = 2

	failures := make(chan error, 4)
	cfg := DefaultConfig()
	cfg.KeepAliveInterval = 5 * time.Millisecond
	cfg.OnKeepAliveError = func(err error) { failures <- err }
	sess := openMock(t, conn, cfg)

	var got error
	select {
	case got = <-failures:
	case <-time.After(2 * time.Second):
		t.Fatal("keep-alive failure was not reported")
	}

	assert.True(t, neterr.IsClosed(got), "got %v", got)
	assert.Equal(t, got, sess.Err())

	// the task stops after the first failure
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 2, conn.count(command.KeepAlive))
	assert.Empty(t, failures)
}

func TestSession_CloseFromKeepAliveCallback(t *testing.T) {
	conn := newMockConn()
	conn.failAt = 2

	var sess *Session
	ready := make(chan struct{})
	closed := make(chan error, 1)

	cfg := DefaultConfig()
	cfg.KeepAliveInterval = 5 * time.Millisecond
	cfg.OnKeepAliveError = func(error) {
		<-ready
		closed <- sess.Close()
	}
	sess = openMock(t, conn, cfg)
	close(ready)

	select {
	case err := <-closed:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Close from the callback did not return")
	}
	assert.True(t, conn.isClosed())
}

func TestSession_CloseIsIdempotent(t *testing.T) {
	conn := newMockConn()

	cfg := DefaultConfig()
	cfg.KeepAliveInterval = 5 * time.Millisecond
	sess := openMock(t, conn, cfg)

	require.NoError(t, sess.Close())
	assert.True(t, conn.isClosed())
	assert.NoError(t, sess.Close())

	err := sess.SendKey("TR_KEY_OK")
	assert.ErrorIs(t, err, ErrClosed)

	written := conn.writeCount()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, written, conn.writeCount(), "nothing is sent after Close")
}

func TestSession_CloseUnblocksPendingSend(t *testing.T) {
	conn := newMockConn()
	conn.blockFrom = 2

	cfg := DefaultConfig()
	cfg.KeepAliveInterval = -1
	sess := openMock(t, conn, cfg)

	result := make(chan error, 1)
	go func() { result <- sess.SendKey("TR_KEY_POWER") }()

	assert.Eventually(t, func() bool { return conn.writeCount() == 2 }, time.Second, time.Millisecond)
	require.NoError(t, sess.Close())

	select {
	case err := <-result:
		assert.ErrorIs(t, err, ErrClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("SendKey still blocked after Close")
	}
	assert.Equal(t, int64(1), sess.Exchanges())
}

func TestSendKey_WrapsTransportErrors(t *testing.T) {
	conn := newMockConn()
	conn.failAt = 2

	cfg := DefaultConfig()
	cfg.KeepAliveInterval = -1
	sess := openMock(t, conn, cfg)

	err := sess.SendKey("TR_KEY_MUTE")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TR_KEY_MUTE")

	var nerr *neterr.Error
	require.True(t, errors.As(err, &nerr))
	assert.Equal(t, "read", nerr.Op)
	assert.Equal(t, "192.168.1.50:4123", nerr.Addr)
}

func TestControlAddr(t *testing.T) {
	tests := []struct {
		address string
		port    int
		want    string
	}{
		{"192.168.1.50", 4123, "192.168.1.50:4123"},
		{"192.168.1.50:9000", 4123, "192.168.1.50:9000"},
		{"tv.local", 4123, "tv.local:4123"},
		{"fe80::1", 4123, "[fe80::1]:4123"},
	}

	for _, tt := range tests {
		t.Run(tt.address, func(t *testing.T) {
			assert.Equal(t, tt.want, controlAddr(tt.address, tt.port))
		})
	}
}

func TestConfig_WithDefaults(t *testing.T) {
	var nilCfg *Config
	c := nilCfg.withDefaults()
	assert.Equal(t, DefaultPort, c.Port)
	assert.Equal(t, DefaultKeepAliveInterval, c.KeepAliveInterval)
	assert.Equal(t, DefaultDialTimeout, c.DialTimeout)
	assert.Equal(t, DefaultBufferSize, c.BufferSize)
	assert.NotNil(t, c.Dial)

	c = (&Config{KeepAliveInterval: -1, BufferSize: 16}).withDefaults()
	assert.Equal(t, time.Duration(-1), c.KeepAliveInterval)
	assert.Equal(t, 16, c.BufferSize)
}

func TestSession_ReadsIntoBoundedBuffer(t *testing.T) {
	conn := newMockConn()

	cfg := DefaultConfig()
	cfg.KeepAliveInterval = -1
	sess := openMock(t, conn, cfg)

	assert.Len(t, sess.buf, DefaultBufferSize)
	assert.True(t, bytes.Equal(conn.writes[0], []byte(command.KeepAlive)))
}
