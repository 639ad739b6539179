package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// DefaultPath is where metrics are served when no path is configured.
const DefaultPath = "/metrics"

// Server exposes a metrics handler on its own listener.
type Server struct {
	server *http.Server
	addr   string
	logger *slog.Logger
}

// NewServer creates a metrics server on port serving handler at path.
func NewServer(port int, path string, handler http.Handler, logger *slog.Logger) *Server {
	if path == "" {
		path = DefaultPath
	}
	mux := http.NewServeMux()
	mux.Handle(path, handler)

	addr := fmt.Sprintf(":%d", port)
	return &Server{
		server: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		addr:   addr,
		logger: logger,
	}
}

// Start listens and serves until Shutdown. It returns nil after a graceful
// shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("metrics listener: %w", err)
	}
	return s.Serve(ln)
}

// Serve serves metrics on an existing listener.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("starting metrics server", "address", ln.Addr().String())
	if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down metrics server")
	return s.server.Shutdown(ctx)
}
