// Package notify announces freshly published chunks to a remote consumer
// over a ZeroMQ PUSH socket.
package notify

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/go-zeromq/zmq4"
	"github.com/go-zeromq/zmq4/transport"
	"github.com/pkg/errors"
)

// ErrTransportClosed is returned by Push after Close
var ErrTransportClosed = errors.New("transport closed")

// boundedScheme is a tcp transport whose connections are bound to the
// socket context, so the ZMTP handshake cannot outlive a push.
const boundedScheme = "tcp+bounded"

func init() {
	if err := zmq4.RegisterTransport(boundedScheme, boundedTCP{Transport: transport.New("tcp")}); err != nil {
		panic(err)
	}
}

// boundedTCP applies the context deadline to every dialed connection and
// closes it when the context is done.
type boundedTCP struct {
	transport.Transport
}

func (b boundedTCP) Dial(ctx context.Context, dialer transport.Dialer, addr string) (net.Conn, error) {
	conn, err := b.Transport.Dial(ctx, dialer, addr)
	if err != nil {
		return nil, err
	}
	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			conn.Close()
			return nil, err
		}
	}
	context.AfterFunc(ctx, func() { conn.Close() })
	return conn, nil
}

// Transport delivers one message to an endpoint
type Transport interface {
	Push(ctx context.Context, endpoint string, payload []byte) error
	Close() error
}

// ZMQTransport pushes each message over a short-lived ZeroMQ PUSH socket.
// One transport is created per process; Close aborts every in-flight push.
type ZMQTransport struct {
	root   context.Context
	cancel context.CancelFunc

	dialRetry time.Duration
	timeout   time.Duration

	mu     sync.Mutex
	closed bool
}

// NewZMQTransport creates the process-wide transport. dialRetry is the pause
// between connection attempts and timeout bounds dial and send.
func NewZMQTransport(dialRetry, timeout time.Duration) *ZMQTransport {
	root, cancel := context.WithCancel(context.Background())
	return &ZMQTransport{
		root:      root,
		cancel:    cancel,
		dialRetry: dialRetry,
		timeout:   timeout,
	}
}

// Push dials endpoint over tcp, sends payload as a single frame and closes
// the socket. Dial, handshake and send all finish within the transport
// timeout or the ctx deadline, whichever comes first.
func (t *ZMQTransport) Push(ctx context.Context, endpoint string, payload []byte) error {
	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()
	if closed {
		return ErrTransportClosed
	}

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	stop := context.AfterFunc(t.root, cancel)
	defer stop()

	sock := zmq4.NewPush(ctx,
		zmq4.WithDialerRetry(t.dialRetry),
		zmq4.WithDialerTimeout(t.timeout),
		zmq4.WithTimeout(t.timeout),
	)
	defer sock.Close()

	if err := sock.Dial(boundedScheme + "://" + endpoint); err != nil {
		return errors.Wrapf(err, "dial %s", endpoint)
	}
	if err := sock.Send(zmq4.NewMsg(payload)); err != nil {
		return errors.Wrapf(err, "send to %s", endpoint)
	}
	return nil
}

// Close cancels in-flight pushes and rejects new ones
func (t *ZMQTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	t.cancel()
	return nil
}
