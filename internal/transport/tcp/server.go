package tcp

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/linechat-server/internal/core"
)

// Server accepts line-protocol connections and runs one core session per
// client.
type Server struct {
	addr    string
	reg     *core.Registry
	dir     *core.Directory
	bus     *core.Bus
	reports core.ReportSink
	log     *zerolog.Logger

	ln net.Listener
}

// NewServer builds a server; call Listen before Serve.
func NewServer(addr string, reg *core.Registry, dir *core.Directory, bus *core.Bus, reports core.ReportSink, logger *zerolog.Logger) *Server {
	return &Server{
		addr:    addr,
		reg:     reg,
		dir:     dir,
		bus:     bus,
		reports: reports,
		log:     logger,
	}
}

// Listen binds the listening socket. A bind failure here is fatal for the
// caller; there is no retry.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.addr, err)
	}
	s.ln = ln
	return nil
}

// Addr returns the bound address. Only valid after Listen.
func (s *Server) Addr() string {
	if s.ln == nil {
		return s.addr
	}
	return s.ln.Addr().String()
}

// Serve accepts connections until ctx is cancelled or the listener fails.
// Each accepted connection gets its own session goroutine; a failing
// connection never affects the others.
func (s *Server) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.ln.Close()
	}()

	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}
		s.log.Debug().Str("remote", conn.RemoteAddr().String()).Msg("connection accepted")

		sess := core.NewSession(conn, s.reg, s.dir, s.bus, s.reports, s.log)
		go sess.Run(ctx)
	}
}
