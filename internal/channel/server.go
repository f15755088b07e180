package channel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

var (
	ErrNotListening   = errors.New("channel: server not listening")
	ErrAlreadyListens = errors.New("channel: server already listening")
)

// Server is the primary-side endpoint of one application's forwarding
// channel. It accepts one connecting client at a time and republishes each
// received argument batch through OnMessage in arrival order.
type Server struct {
	appName string
	path    string
	cfg     Config

	mu        sync.Mutex
	ln        net.Listener
	closed    bool
	onMessage func([]string)
	onError   func(error)

	clientCount atomic.Int64
}

// NewServer constructs a server bound to one application name.
func NewServer(appName string, cfg Config) *Server {
	cfg = cfg.WithDefaults()
	return &Server{
		appName: appName,
		path:    SocketPath(cfg.SocketDir, appName),
		cfg:     cfg,
	}
}

// SocketPath reports the unix socket path this server binds.
func (s *Server) SocketPath() string { return s.path }

// OnMessage registers the argument-batch listener. Must be set before Serve.
func (s *Server) OnMessage(fn func([]string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onMessage = fn
}

// OnError registers a listener for asynchronous server failures.
func (s *Server) OnError(fn func(error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onError = fn
}

// Listen binds the channel socket. A socket file left behind by a dead
// primary is removed first; a live primary still holds the exclusivity
// claim, so reaching Listen means the previous holder is gone or being
// recovered.
func (s *Server) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln != nil {
		return ErrAlreadyListens
	}
	if s.closed {
		return ErrNotListening
	}
	_ = os.Remove(s.path)
	ln, err := net.Listen("unix", s.path)
	if err != nil {
		return fmt.Errorf("channel: listen %s: %w", s.path, err)
	}
	s.ln = ln
	return nil
}

// RelaxPermissions lets other local users' processes connect to the socket.
func (s *Server) RelaxPermissions() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return ErrNotListening
	}
	return os.Chmod(s.path, 0o666)
}

// Serve runs the accept loop until ctx is cancelled or the server is closed.
// Clients are handled one at a time; batch arrival order is connection order.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	ln := s.ln
	s.mu.Unlock()
	if ln == nil {
		return ErrNotListening
	}
	log.Info().Str("app", s.appName).Str("socket", s.path).Msg("channel.server listening")

	go func() {
		<-ctx.Done()
		_ = s.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || s.isClosed() {
				return nil
			}
			return err
		}
		s.handleConn(conn)
	}
}

// handleConn reads framed batches off one client connection until it hangs
// up, acking each frame. Malformed traffic is reported and drops the
// connection without taking the server down.
func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()
	active := s.clientCount.Add(1)
	log.Debug().Str("app", s.appName).Int64("active_clients", active).Msg("channel.server client connected")
	defer func() {
		remaining := s.clientCount.Add(-1)
		log.Debug().Str("app", s.appName).Int64("active_clients", remaining).Msg("channel.server client disconnected")
	}()

	for {
		_ = conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		frame, err := ReadFrame(conn, s.cfg.Limits)
		if err != nil {
			if !errors.Is(err, ErrShortHeader) && !errors.Is(err, io.EOF) {
				s.reportError(fmt.Errorf("channel: read frame: %w", err))
			}
			return
		}
		if frame.Header.MessageType != MsgArgs {
			s.writeAck(conn, frame.Header.MessageID, fmt.Sprintf("unexpected message type %d", frame.Header.MessageType))
			continue
		}
		batch, err := DecodeArgs(frame.Payload)
		if err != nil {
			s.reportError(fmt.Errorf("channel: decode args: %w", err))
			s.writeAck(conn, frame.Header.MessageID, err.Error())
			return
		}
		if batch == nil {
			batch = []string{}
		}
		s.deliver(batch)
		s.writeAck(conn, frame.Header.MessageID, "")
	}
}

func (s *Server) deliver(batch []string) {
	s.mu.Lock()
	fn := s.onMessage
	s.mu.Unlock()
	if fn != nil {
		fn(batch)
	}
}

func (s *Server) reportError(err error) {
	s.mu.Lock()
	fn := s.onError
	s.mu.Unlock()
	if fn != nil {
		fn(err)
	}
}

// writeAck responds to one frame; errMsg non-empty marks the ack as a nack.
func (s *Server) writeAck(conn net.Conn, msgID uint64, errMsg string) {
	ack := Frame{Header: Header{MessageID: msgID, MessageType: MsgAck, Flags: FlagIsResponse}}
	if errMsg != "" {
		ack.Header.Flags |= FlagIsError
		ack.Payload = EncodeError(errMsg)
	}
	_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	if err := WriteFrame(conn, ack, s.cfg.Limits); err != nil {
		s.reportError(fmt.Errorf("channel: write ack: %w", err))
	}
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close stops the listener and removes the socket file. Idempotent.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.ln == nil {
		return nil
	}
	err := s.ln.Close()
	s.ln = nil
	_ = os.Remove(s.path)
	return err
}
