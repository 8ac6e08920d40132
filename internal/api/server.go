package api

import (
	"context"
	"net"
	"net/http"

	"github.com/earthring/scenecast/internal/config"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Server is the data-plane HTTP listener
type Server struct {
	httpServer *http.Server
	listener   net.Listener
	errs       chan error
}

// NewServer creates a server for handler using the configured address and timeouts
func NewServer(cfg config.ServerConfig, handler http.Handler) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:         cfg.ListenAddress(),
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
		errs: make(chan error, 1),
	}
}

// Start binds the listen address and serves in the background. Bind errors
// are returned directly; later serve errors arrive on Errors.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return errors.Wrapf(err, "listen on %s", s.httpServer.Addr)
	}
	s.listener = ln
	log.WithField("addr", ln.Addr().String()).Info("Data plane listening")

	go func() {
		defer close(s.errs)
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.errs <- errors.Wrap(err, "serve")
		}
	}()
	return nil
}

// Addr returns the bound address, useful when listening on port 0
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.httpServer.Addr
	}
	return s.listener.Addr().String()
}

// Errors is closed when the server stops and carries any serve failure
func (s *Server) Errors() <-chan error {
	return s.errs
}

// Shutdown stops accepting connections and waits for in-flight requests
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
