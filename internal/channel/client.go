package channel

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

var (
	ErrClientClosed = errors.New("channel: client closed")
	ErrNackFrame    = errors.New("channel: server rejected batch")
	ErrBadAck       = errors.New("channel: unexpected ack frame")
)

// Client is the secondary-side endpoint of one application's forwarding
// channel. It owns a single connection per Send attempt; Close releases
// whatever connection is held.
type Client struct {
	appName string
	path    string
	cfg     Config

	mu      sync.Mutex
	conn    net.Conn
	closed  bool
	onError func(error)

	seq atomic.Uint64
}

// NewClient constructs a client bound to one application name.
func NewClient(appName string, cfg Config) *Client {
	cfg = cfg.WithDefaults()
	return &Client{
		appName: appName,
		path:    SocketPath(cfg.SocketDir, appName),
		cfg:     cfg,
	}
}

// OnError registers a listener for asynchronous client failures, such as
// errors while releasing the connection. Errors returned from Send are not
// repeated here.
func (c *Client) OnError(fn func(error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onError = fn
}

// Send connects to the primary and delivers one argument batch, waiting for
// the server ack. The whole attempt is bounded by ctx; dial failures are
// retried with backoff until ctx expires.
func (c *Client) Send(ctx context.Context, batch []string) error {
	conn, err := c.dial(ctx)
	if err != nil {
		return err
	}

	msgID := c.seq.Add(1)
	frame := Frame{
		Header:  Header{MessageID: msgID, MessageType: MsgArgs},
		Payload: EncodeArgs(batch),
	}

	deadline := time.Now().Add(c.cfg.WriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetWriteDeadline(deadline)
	if err := WriteFrame(conn, frame, c.cfg.Limits); err != nil {
		return c.wrapDeadline(ctx, err)
	}

	ackDeadline := time.Now().Add(c.cfg.AckTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(ackDeadline) {
		ackDeadline = d
	}
	_ = conn.SetReadDeadline(ackDeadline)
	ack, err := ReadFrame(conn, c.cfg.Limits)
	if err != nil {
		return c.wrapDeadline(ctx, err)
	}
	if ack.Header.MessageType != MsgAck || ack.Header.Flags&FlagIsResponse == 0 {
		return ErrBadAck
	}
	if ack.Header.MessageID != msgID {
		return fmt.Errorf("%w: message_id=%d want=%d", ErrBadAck, ack.Header.MessageID, msgID)
	}
	if ack.Header.Flags&FlagIsError != 0 {
		msg, _ := DecodeError(ack.Payload)
		if msg != "" {
			return fmt.Errorf("%w: %s", ErrNackFrame, msg)
		}
		return ErrNackFrame
	}
	return nil
}

// dial connects to the channel socket, retrying with backoff while ctx allows.
func (c *Client) dial(ctx context.Context) (net.Conn, error) {
	dialer := net.Dialer{Timeout: c.cfg.DialTimeout}
	attempt := 0
	for {
		attempt++
		conn, err := dialer.DialContext(ctx, "unix", c.path)
		if err == nil {
			c.mu.Lock()
			if c.closed {
				c.mu.Unlock()
				_ = conn.Close()
				return nil, ErrClientClosed
			}
			c.conn = conn
			c.mu.Unlock()
			return conn, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		select {
		case <-time.After(NextBackoffDelay(c.cfg.Backoff, attempt, nil)):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// wrapDeadline maps socket deadline expiry back onto the attempt context so
// callers can tell a bounded-timeout failure from a genuine transport error.
func (c *Client) wrapDeadline(ctx context.Context, err error) error {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// Close releases the held connection. Safe to call on every Send exit path
// and more than once.
func (c *Client) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.closed = true
	onError := c.onError
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	if err := conn.Close(); err != nil {
		if onError != nil {
			onError(fmt.Errorf("channel: client close: %w", err))
		}
		return err
	}
	return nil
}
