package ipc

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultReadTimeout bounds how long a connection may take to deliver its event.
const DefaultReadTimeout = 5 * time.Second

const maxAcceptDelay = time.Second

// ConnInfo identifies an accepted connection in logs.
type ConnInfo struct {
	ID         string
	RemoteAddr net.Addr
}

// Handler receives the outcome of every accepted connection. Each call runs
// on the connection's own goroutine, so implementations must be safe for
// concurrent use.
type Handler interface {
	HandleEvent(ctx context.Context, conn ConnInfo, e Event)
	HandleError(ctx context.Context, conn ConnInfo, err error)
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithReadTimeout sets the per-connection read deadline. Zero disables it.
func WithReadTimeout(d time.Duration) ServerOption {
	return func(s *Server) {
		s.readTimeout = d
	}
}

// Server is the TCP listener side of the protocol.
type Server struct {
	listener    net.Listener
	readTimeout time.Duration
	wg          sync.WaitGroup
}

// NewServer binds the server to b. The returned error is a *BindError.
func NewServer(b Binding, opts ...ServerOption) (*Server, error) {
	listener, err := net.Listen("tcp", b.Addr())
	if err != nil {
		return nil, &BindError{Addr: b.Addr(), Err: err}
	}

	s := &Server{
		listener:    listener,
		readTimeout: DefaultReadTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Addr returns the address the server is bound to.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Serve accepts connections until ctx is cancelled or Close is called, then
// waits for in-flight connections to finish. It returns nil on a clean stop.
func (s *Server) Serve(ctx context.Context, h Handler) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-ctx.Done()
		s.Close()
	}()
	defer s.wg.Wait()

	var delay time.Duration
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			if delay == 0 {
				delay = 5 * time.Millisecond
			} else {
				delay = min(delay*2, maxAcceptDelay)
			}
			slog.Warn("Accept failed, retrying", "err", err, "delay", delay)
			select {
			case <-time.After(delay):
				continue
			case <-ctx.Done():
				return nil
			}
		}
		delay = 0

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(ctx, conn, h)
		}()
	}
}

func (s *Server) handleConnection(ctx context.Context, conn net.Conn, h Handler) {
	info := ConnInfo{ID: uuid.NewString(), RemoteAddr: conn.RemoteAddr()}

	if s.readTimeout > 0 {
		if err := conn.SetReadDeadline(time.Now().Add(s.readTimeout)); err != nil {
			conn.Close()
			h.HandleError(ctx, info, err)
			return
		}
	}
	e, err := ReadEvent(conn)
	// The connection is done with either way; emitting must not hold it open.
	conn.Close()

	if err != nil {
		h.HandleError(ctx, info, err)
		return
	}
	h.HandleEvent(ctx, info, e)
}

// Close closes the server's listener. It is safe to call more than once.
func (s *Server) Close() error {
	err := s.listener.Close()
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}
