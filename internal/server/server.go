// Package server exposes the Themis workflows over HTTP.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/AdeilsonR/puppeteer-themis/internal/config"
	"github.com/AdeilsonR/puppeteer-themis/internal/observability"
	"github.com/AdeilsonR/puppeteer-themis/internal/themis"
)

const (
	// LivenessMessage is the body of GET /.
	LivenessMessage = "🚀 Puppeteer Themis ativo (Lambda-ready)!"

	readHeaderTimeout      = 10 * time.Second
	defaultShutdownTimeout = 30 * time.Second
)

// Workflow is the automation the handlers drive. *themis.Service satisfies it.
type Workflow interface {
	Search(ctx context.Context, caseID string) (*themis.CaseRecord, error)
	Register(ctx context.Context, caseID string, payload themis.RegistrationPayload) (*themis.RegistrationResult, error)
}

// Server is the HTTP front end.
type Server struct {
	cfg         config.ServerConfig
	metrics     config.MetricsConfig
	workflow    Workflow
	browserMode string
	logger      *zap.Logger
	router      chi.Router
}

// New builds the server and its routes. browserMode is reported by /healthz.
func New(cfg *config.Config, workflow Workflow, browserMode string, logger *zap.Logger) *Server {
	s := &Server{
		cfg:         cfg.Server,
		metrics:     cfg.Metrics,
		workflow:    workflow,
		browserMode: browserMode,
		logger:      logger.Named("http"),
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if s.cfg.RequestTimeout > 0 {
		r.Use(requestDeadline(s.cfg.RequestTimeout))
	}
	r.Use(s.requestLogger)

	r.Get("/", s.handleRoot)
	r.Get("/healthz", s.handleHealthz)
	r.Post("/buscar-processo", s.handleSearch)
	r.Post("/cadastrar-processo", s.handleRegister)
	if s.metrics.Enabled {
		r.Method(http.MethodGet, s.metrics.Path, observability.MetricsHandler())
	}
	return r
}

// Handler returns the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Run listens on the configured address until ctx is canceled, then drains
// in-flight requests for up to the shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	httpServer := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	serverErr := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening.", zap.String("address", ln.Addr().String()))
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}
	s.logger.Info("Shutting down HTTP server.", zap.Duration("timeout", timeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-serverErr
}
