package connection

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"bcstcp/pkg/protocol"
)

const (
	// ClientVersion is reported by Version and the CLI.
	ClientVersion = "v0.1"

	// DefaultMaxIterations is used by WaitForScan when the caller passes a
	// budget below 1. With the default poll interval this is about 11.5 days,
	// i.e. effectively no limit.
	DefaultMaxIterations = 1000000

	DefaultPollInterval = time.Second

	// ReadBufferSize caps a single receive. One receive is one response.
	ReadBufferSize = 8192

	cmdListCommands = "ListCommands"
	cmdRunningScan  = "RunningScan"
	scanIdleMarker  = "None"
)

// TCPConnection owns one TCP stream to a command server.
//
// Exactly one request may be outstanding at a time: responses are matched to
// requests purely by order. Every write+read round-trip holds mu, so
// concurrent callers are serialized rather than interleaved. Close does not
// take mu and unblocks a round-trip stuck in a read.
type TCPConnection struct {
	id           string
	conn         net.Conn
	timeout      time.Duration
	pollInterval time.Duration
	lenient      bool
	log          zerolog.Logger

	mu     sync.Mutex
	closed atomic.Bool
}

type Option func(*TCPConnection)

// WithPollInterval sets the pause between RunningScan polls.
func WithPollInterval(d time.Duration) Option {
	return func(c *TCPConnection) {
		c.pollInterval = d
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *TCPConnection) {
		c.log = l
	}
}

// WithLenientReads makes Call swallow receive errors and return "" instead,
// matching Read.
func WithLenientReads() Option {
	return func(c *TCPConnection) {
		c.lenient = true
	}
}

// Open dials host:port and returns a ready connection. timeout bounds every
// later read and write; zero or negative disables deadlines. There are no
// retries.
func Open(ctx context.Context, host string, port int, timeout time.Duration, opts ...Option) (*TCPConnection, error) {
	addr := net.JoinHostPort(host, strconv.Itoa(port))

	var d net.Dialer
	raw, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, classifyDialError(err)
	}

	c := NewTCPConnection(raw, timeout, opts...)
	c.log.Info().Str("addr", addr).Dur("timeout", timeout).Msg("connected")
	return c, nil
}

// NewTCPConnection wraps an already established stream.
func NewTCPConnection(conn net.Conn, timeout time.Duration, opts ...Option) *TCPConnection {
	c := &TCPConnection{
		id:           uuid.NewString(),
		conn:         conn,
		timeout:      timeout,
		pollInterval: DefaultPollInterval,
		log:          zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With().Str("conn_id", c.id).Logger()
	return c
}

// ID is the connection's log correlation id.
func (c *TCPConnection) ID() string {
	return c.id
}

// Version returns the client version. No I/O.
func (c *TCPConnection) Version() string {
	return ClientVersion
}

// Call sends name(args...) and returns the raw text of exactly one receive.
// Underscores in name become spaces on the wire.
func (c *TCPConnection) Call(name string, args ...any) (string, error) {
	msg := protocol.NewMessage(name, args...)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.log.Debug().Str("cmd", msg.String()).Msg("call")
	if err := c.write(context.Background(), "call", msg.Encode()); err != nil {
		return "", err
	}

	reply, err := c.receive(context.Background())
	if err != nil {
		if c.lenient {
			c.log.Debug().Err(err).Str("cmd", msg.String()).Msg("receive failed, returning empty reply")
			return "", nil
		}
		return "", err
	}
	return reply, nil
}

// Command binds a command name so it can be invoked like a method:
//
//	moveStage := conn.Command("Move_Stage")
//	reply, err := moveStage(10, 20)
func (c *TCPConnection) Command(name string) func(args ...any) (string, error) {
	return func(args ...any) (string, error) {
		return c.Call(name, args...)
	}
}

// Send writes cmd followed by CRLF in a single write.
func (c *TCPConnection) Send(cmd string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.write(context.Background(), "send", protocol.EncodeLine(cmd))
}

// Receive performs one read of up to ReadBufferSize bytes. The error, if
// any, is an *Error of kind Timeout, ConnectionClosed, TransportFailure or
// DecodeFailure.
func (c *TCPConnection) Receive() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.receive(context.Background())
}

// Read is Receive with every failure collapsed to "". Callers cannot tell a
// timeout from an empty response; use Receive when that matters.
func (c *TCPConnection) Read() string {
	reply, err := c.Receive()
	if err != nil {
		c.log.Debug().Err(err).Msg("read failed, returning empty reply")
		return ""
	}
	return reply
}

// Test sends ListCommands and prints whatever comes back to w.
func (c *TCPConnection) Test(w io.Writer) error {
	reply, err := c.roundTrip(context.Background(), "test", cmdListCommands)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, reply+"\n")
	return err
}

// WaitForScan polls RunningScan until the reply reports no running scan
// (contains "None") or the iteration budget runs out.
//
// The first loop keeps polling, at most twice, while the reply still says
// "None"; this gives a scan that was just started time to show up. The
// second loop then polls while a scan is reported. Both loops share one
// counter, and only the second loop checks it against maxIterations.
// A budget below 1 means DefaultMaxIterations.
//
// It returns true once the scan is no longer running and false when the
// budget is exhausted. Transport errors are returned as-is. Cancelling ctx
// also interrupts a poll blocked waiting for its reply; the connection should
// be closed afterwards since that reply may still arrive.
func (c *TCPConnection) WaitForScan(ctx context.Context, maxIterations int) (bool, error) {
	maxIterations = EffectiveMaxIterations(maxIterations)

	stop := context.AfterFunc(ctx, func() {
		c.conn.SetDeadline(time.Now())
	})
	defer stop()

	count := 0
	reply := scanIdleMarker

	for strings.Contains(reply, scanIdleMarker) && count < 2 {
		var err error
		if reply, err = c.pollScan(ctx, count, "warmup"); err != nil {
			return false, err
		}
		count++
	}

	for !strings.Contains(reply, scanIdleMarker) {
		var err error
		if reply, err = c.pollScan(ctx, count, "active"); err != nil {
			return false, err
		}
		count++
		if count >= maxIterations {
			c.log.Warn().Int("iterations", count).Msg("scan still running, giving up")
			return false, nil
		}
	}

	c.log.Debug().Int("iterations", count).Msg("scan finished")
	return true, nil
}

func (c *TCPConnection) pollScan(ctx context.Context, iteration int, phase string) (string, error) {
	reply, err := c.roundTrip(ctx, "wait_for_scan", cmdRunningScan)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", err
	}
	c.log.Debug().
		Int("iteration", iteration).
		Str("phase", phase).
		Bool("running", !strings.Contains(reply, scanIdleMarker)).
		Msg("polled scan status")

	timer := time.NewTimer(c.pollInterval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-timer.C:
	}
	return reply, nil
}

func (c *TCPConnection) roundTrip(ctx context.Context, op, cmd string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.write(ctx, op, protocol.EncodeLine(cmd)); err != nil {
		return "", err
	}
	return c.receive(ctx)
}

// Close closes the stream once. A concurrent round-trip fails with
// ConnectionClosed.
func (c *TCPConnection) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.log.Debug().Msg("closing connection")
	return c.conn.Close()
}

func (c *TCPConnection) IsClosed() bool {
	return c.closed.Load()
}

// EffectiveMaxIterations returns the poll budget WaitForScan applies for n.
func EffectiveMaxIterations(n int) int {
	if n < 1 {
		return DefaultMaxIterations
	}
	return n
}

func (c *TCPConnection) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

// deadline is now+timeout, or none when timeout is not positive.
func (c *TCPConnection) deadline() time.Time {
	if c.timeout > 0 {
		return time.Now().Add(c.timeout)
	}
	return time.Time{}
}

// write and receive expect mu to be held. ctx is checked after the deadline
// is armed so a cancellation racing with it is never overwritten.
func (c *TCPConnection) write(ctx context.Context, op string, buf []byte) error {
	if c.closed.Load() {
		return newError(ConnectionClosed, op, nil)
	}
	if err := c.conn.SetWriteDeadline(c.deadline()); err != nil {
		return classifyIOError(op, err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := c.conn.Write(buf); err != nil {
		return classifyIOError(op, err)
	}
	return nil
}

func (c *TCPConnection) receive(ctx context.Context) (string, error) {
	const op = "receive"
	if c.closed.Load() {
		return "", newError(ConnectionClosed, op, nil)
	}
	if err := c.conn.SetReadDeadline(c.deadline()); err != nil {
		return "", classifyIOError(op, err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	buf := make([]byte, ReadBufferSize)
	n, err := c.conn.Read(buf)
	if n == 0 && err != nil {
		return "", classifyIOError(op, err)
	}
	if !utf8.Valid(buf[:n]) {
		return "", newError(DecodeFailure, op, nil)
	}
	return string(buf[:n]), nil
}

func classifyDialError(err error) error {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return newError(DnsFailure, "open", err)
	}
	return newError(ConnectFailure, "open", err)
}

func classifyIOError(op string, err error) error {
	var netErr net.Error
	switch {
	case errors.Is(err, os.ErrDeadlineExceeded):
		return newError(Timeout, op, err)
	case errors.As(err, &netErr) && netErr.Timeout():
		return newError(Timeout, op, err)
	case errors.Is(err, io.EOF),
		errors.Is(err, io.ErrClosedPipe),
		errors.Is(err, net.ErrClosed),
		errors.Is(err, syscall.EPIPE),
		errors.Is(err, syscall.ECONNRESET):
		return newError(ConnectionClosed, op, err)
	default:
		return newError(TransportFailure, op, err)
	}
}
