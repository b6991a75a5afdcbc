package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/ironsheep/toolbox-api/internal/classifier"
	"github.com/ironsheep/toolbox-api/internal/geocode"
	"github.com/ironsheep/toolbox-api/internal/imaging"
	"github.com/ironsheep/toolbox-api/internal/mailer"
)

// Geocoder resolves place names.
type Geocoder interface {
	Geocode(ctx context.Context, query string) (*geocode.Location, error)
}

// Predictor labels a feature vector. Implementations must be safe for
// concurrent use and must not change between calls.
type Predictor interface {
	Predict(f classifier.Features) (string, error)
}

// Mailer sends one message to every recipient and reports per-recipient
// outcomes.
type Mailer interface {
	SendAll(ctx context.Context, msg mailer.Message, recipients []string) []mailer.Result
}

// Speaker plays text aloud and returns once playback has finished.
type Speaker interface {
	Speak(ctx context.Context, text string) error
}

// Deps are the collaborators behind the routes. All are required.
type Deps struct {
	Blurrer   *imaging.Blurrer
	Capture   *imaging.CaptureStore
	Geocoder  Geocoder
	Predictor Predictor
	Mailer    Mailer
	Speaker   Speaker
	Logger    *slog.Logger
}

// Options configures the listener.
type Options struct {
	Addr            string
	MaxUploadBytes  int64
	ReadTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// Server serves the toolbox routes.
type Server struct {
	opts    Options
	deps    Deps
	logger  *slog.Logger
	router  *http.ServeMux
	handler http.Handler
}

// New validates the collaborators and builds the route table.
func New(opts Options, deps Deps) (*Server, error) {
	switch {
	case deps.Blurrer == nil:
		return nil, errors.New("server: blurrer is required")
	case deps.Capture == nil:
		return nil, errors.New("server: capture store is required")
	case deps.Geocoder == nil:
		return nil, errors.New("server: geocoder is required")
	case deps.Predictor == nil:
		return nil, errors.New("server: predictor is required")
	case deps.Mailer == nil:
		return nil, errors.New("server: mailer is required")
	case deps.Speaker == nil:
		return nil, errors.New("server: speaker is required")
	}

	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 10 << 20
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	s := &Server{
		opts:   opts,
		deps:   deps,
		logger: logger,
		router: http.NewServeMux(),
	}
	s.registerRoutes()
	s.handler = s.applyMiddleware(s.router)

	return s, nil
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run listens on the configured address and serves until ctx is cancelled,
// then shuts down gracefully, waiting up to ShutdownTimeout for in-flight
// requests.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.opts.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	httpServer := &http.Server{
		Handler:     s.handler,
		ReadTimeout: s.opts.ReadTimeout,
		IdleTimeout: 60 * time.Second,
		ErrorLog:    slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		errCh <- httpServer.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down HTTP server", "timeout", s.opts.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	s.logger.Info("HTTP server stopped")
	return nil
}

// applyMiddleware wraps the handler with middleware in the correct order
func (s *Server) applyMiddleware(handler http.Handler) http.Handler {
	// Apply middleware in reverse order (last one wraps first)
	handler = RecoveryMiddleware(s.logger)(handler)
	handler = LoggingMiddleware(s.logger)(handler)
	handler = RequestIDMiddleware()(handler)
	handler = CORSMiddleware()(handler)
	return handler
}
