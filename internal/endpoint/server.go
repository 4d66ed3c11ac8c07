package endpoint

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"

	"github.com/rs/zerolog"
)

// AcceptFunc produces a fresh Handler for one accepted channel.
type AcceptFunc func(ch Channel) Handler

// Server listens on a TCP address and feeds each accepted connection's
// bytes to its handler one at a time.
type Server struct {
	addr   string
	accept AcceptFunc
	logger zerolog.Logger

	ln net.Listener

	connsMu sync.Mutex
	conns   map[net.Conn]struct{}
}

func NewServer(addr string, accept AcceptFunc, logger zerolog.Logger) *Server {
	return &Server{
		addr:   addr,
		accept: accept,
		logger: logger,
		conns:  make(map[net.Conn]struct{}),
	}
}

// Listen binds the listen socket without accepting. Serve handles
// connections afterwards.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.ln = ln
	s.logger.Info().Str("addr", ln.Addr().String()).Msg("endpoint listening")
	return nil
}

// Addr returns the bound listen address. Valid after Listen.
func (s *Server) Addr() net.Addr {
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Serve accepts connections until ctx is done or the listener fails.
func (s *Server) Serve(ctx context.Context) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			s.closeAllConns()
			_ = s.ln.Close()
		case <-done:
		}
	}()

	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		s.trackConn(conn)
		go s.handleConn(conn)
	}
}

// Close disconnects the listener and every tracked connection.
func (s *Server) Close() error {
	s.closeAllConns()
	if s.ln == nil {
		return nil
	}
	return s.ln.Close()
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()
	defer s.untrackConn(conn)
	ch := newConnChannel(conn)
	h := s.accept(ch)
	s.logger.Debug().Str("channel", ch.ID()).Str("remote", ch.RemoteAddr()).Msg("channel open")
	pump(conn, ch, h, "server")
	s.logger.Debug().Str("channel", ch.ID()).Msg("channel closed")
}

func (s *Server) trackConn(conn net.Conn) {
	s.connsMu.Lock()
	s.conns[conn] = struct{}{}
	s.connsMu.Unlock()
}

func (s *Server) untrackConn(conn net.Conn) {
	s.connsMu.Lock()
	delete(s.conns, conn)
	s.connsMu.Unlock()
}

func (s *Server) closeAllConns() {
	s.connsMu.Lock()
	for conn := range s.conns {
		_ = conn.Close()
	}
	s.connsMu.Unlock()
}

// pump delivers the connection's stream byte-at-a-time until EOF or a
// fault. A clean EOF ends the pump silently; anything else goes to the
// handler's error path exactly once.
func pump(conn net.Conn, ch Channel, h Handler, source string) {
	var buf [512]byte
	for {
		n, err := conn.Read(buf[:])
		for i := 0; i < n; i++ {
			h.HandleByte(ch, buf[i])
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				return
			}
			h.HandleError(ch, Error{
				Code:    CodeReadFailure,
				Message: err.Error(),
				Source:  source,
			})
			return
		}
	}
}
