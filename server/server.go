// Package server holds the HTTP scaffolding shared by both relays: routing,
// CORS, middleware, the error boundary and graceful shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"corpanalyst/config"
	"corpanalyst/utils"
)

// ErrForcedShutdown is returned by Serve when in-flight requests did not
// drain within the shutdown timeout and connections were closed.
var ErrForcedShutdown = errors.New("forced shutdown: connections did not drain in time")

// Options describes one relay instance
type Options struct {
	// Name is used in logs and the health payload
	Name string
	// FailureTitle is the envelope "error" field for errors without their own title
	FailureTitle string
}

// Server is an HTTP relay with the shared middleware stack
type Server struct {
	name            string
	failureTitle    string
	router          *mux.Router
	httpServer      *http.Server
	logger          *utils.Logger
	cors            *cors.Cors
	requestTimeout  time.Duration
	shutdownTimeout time.Duration
	now             func() time.Time
}

// New creates a server configured from cfg. Routes are added with Handle.
func New(cfg *config.Config, opts Options, logger *utils.Logger) *Server {
	router := mux.NewRouter()
	router.NotFoundHandler = http.HandlerFunc(notFoundHandler)
	// a known path with the wrong method is still an unknown route
	router.MethodNotAllowedHandler = http.HandlerFunc(notFoundHandler)

	s := &Server{
		name:            opts.Name,
		failureTitle:    opts.FailureTitle,
		router:          router,
		logger:          logger,
		requestTimeout:  cfg.Server.GetRequestTimeout(),
		shutdownTimeout: cfg.Server.GetShutdownTimeout(),
		now:             time.Now,
		cors: cors.New(cors.Options{
			AllowedOrigins: cfg.CORS.AllowedOrigins,
			AllowedMethods: cfg.CORS.AllowedMethods,
			AllowedHeaders: cfg.CORS.AllowedHeaders,
		}),
	}
	if s.failureTitle == "" {
		s.failureTitle = "Internal server error"
	}

	s.httpServer = &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Name returns the relay name
func (s *Server) Name() string {
	return s.name
}

// Handle registers fn for path, restricted to methods when given
func (s *Server) Handle(path string, fn HandlerFunc, methods ...string) {
	route := s.router.Handle(path, s.wrap(fn))
	if len(methods) > 0 {
		route.Methods(methods...)
	}
}

// Handler returns the router wrapped in the middleware stack, outermost first:
// CORS, request ID, logging, panic recovery, request timeout.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.router
	h = s.timeoutMiddleware(h)
	h = s.recoveryMiddleware(h)
	h = s.loggingMiddleware(h)
	h = requestIDMiddleware(h)
	return s.cors.Handler(h)
}

// Run listens on the configured address and serves until ctx is cancelled
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.httpServer.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then stops
// accepting and waits for in-flight requests. If they have not finished
// within the shutdown timeout the remaining connections are closed and
// ErrForcedShutdown is returned.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpServer.Serve(ln)
	}()

	s.logger.Info().
		Str("addr", ln.Addr().String()).
		Str("relay", s.name).
		Msg("Server listening")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info().
		Dur("timeout", s.shutdownTimeout).
		Msg("Shutdown signal received, draining in-flight requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error().Err(err).Msg("Could not drain connections in time, forcing shutdown")
		s.httpServer.Close()
		return fmt.Errorf("%w: %v", ErrForcedShutdown, err)
	}

	<-errCh
	s.logger.Info().Msg("Server stopped")
	return nil
}
