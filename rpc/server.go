package rpc

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"lockdrop/core"
	"lockdrop/core/events"
	"lockdrop/observability"
	"lockdrop/rpc/middleware"
)

type Config struct {
	Auth              middleware.AuthConfig
	RateLimit         middleware.RateLimit
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
	Logger            *slog.Logger
	// Events enables the /ws/events stream when set. The hub must also be
	// registered as the node's event sink.
	Events *events.Hub
	// OriginPatterns restricts websocket origins; empty allows only
	// same-host requests.
	OriginPatterns []string
}

// Server exposes the node over JSON-RPC.
type Server struct {
	node    *core.Node
	cfg     Config
	logger  *slog.Logger
	auth    *middleware.Authenticator
	limiter *middleware.RateLimiter
}

func NewServer(node *core.Node, cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ReadHeaderTimeout <= 0 {
		cfg.ReadHeaderTimeout = 10 * time.Second
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	limiter := middleware.NewRateLimiter(cfg.RateLimit)
	limiter.OnReject(func(*http.Request) {
		observability.RPC().RecordRejection("rate_limit")
	})
	limiter.DeniedHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		writeError(w, http.StatusTooManyRequests, nil, codeRateLimited, "rate limit exceeded", nil)
	}))
	return &Server{
		node:    node,
		cfg:     cfg,
		logger:  logger.With("component", "rpc"),
		auth:    middleware.NewAuthenticator(cfg.Auth, logger),
		limiter: limiter,
	}
}

// Handler returns the HTTP routes: JSON-RPC on POST /, health and Prometheus
// endpoints, and the event stream when a hub is configured.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if _, err := s.node.Phase(r.Context()); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.With(s.limiter.Middleware(), s.auth.Middleware()).
		Method(http.MethodPost, "/", otelhttp.NewHandler(http.HandlerFunc(s.handle), "lockdrop.rpc"))
	if s.cfg.Events != nil {
		r.With(s.limiter.Middleware()).Get("/ws/events", s.handleEventsWS)
	}
	return r
}

// Serve listens on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.ServeListener(ctx, ln)
}

func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	httpServer := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
		IdleTimeout:       60 * time.Second,
	}
	errs := make(chan error, 1)
	go func() {
		s.logger.Info("json-rpc server listening", "address", ln.Addr().String(), "auth", s.auth.Enabled())
		errs <- httpServer.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			_ = httpServer.Close()
			return err
		}
		return nil
	case err := <-errs:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
