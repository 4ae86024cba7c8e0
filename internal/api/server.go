package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/ramonehamilton/deckforge/internal/api/handlers"
	"github.com/ramonehamilton/deckforge/internal/config"
	"github.com/ramonehamilton/deckforge/internal/metrics"
)

// Backend is everything the API serves. *service.Service satisfies it.
type Backend interface {
	handlers.DeckService
	handlers.CollectionService
	handlers.AnalyticsService
	handlers.CardService
	handlers.SystemService
}

// Server represents the REST API server.
type Server struct {
	router     *chi.Mux
	httpServer *http.Server
	config     Config
	backend    Backend
	metrics    *metrics.Engine
	logger     *slog.Logger
}

// Config holds configuration for the API server.
type Config struct {
	Addr           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	RequestTimeout time.Duration
	AllowedOrigins []string
}

// DefaultConfig returns the default API server configuration.
func DefaultConfig() Config {
	return Config{
		Addr:           "127.0.0.1:8080",
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   60 * time.Second,
		RequestTimeout: 30 * time.Second,
		AllowedOrigins: []string{"http://localhost:*", "http://127.0.0.1:*"},
	}
}

// ConfigFrom converts the validated [server] section of the config file.
func ConfigFrom(sc config.ServerConfig) Config {
	cfg := DefaultConfig()
	if sc.Addr != "" {
		cfg.Addr = sc.Addr
	}
	if sc.ReadTimeout != "" {
		cfg.ReadTimeout = config.Duration(sc.ReadTimeout)
	}
	if sc.WriteTimeout != "" {
		cfg.WriteTimeout = config.Duration(sc.WriteTimeout)
	}
	if sc.RequestTimeout != "" {
		cfg.RequestTimeout = config.Duration(sc.RequestTimeout)
	}
	if len(sc.AllowedOrigins) > 0 {
		cfg.AllowedOrigins = sc.AllowedOrigins
	}
	return cfg
}

// NewServer creates a new API server in front of backend. m may be nil.
func NewServer(cfg Config, backend Backend, m *metrics.Engine, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultConfig().RequestTimeout
	}

	s := &Server{
		router:  chi.NewRouter(),
		config:  cfg,
		backend: backend,
		metrics: m,
		logger:  logger.With("component", "api"),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// setupMiddleware configures the middleware stack.
func (s *Server) setupMiddleware() {
	// Request ID for tracing
	s.router.Use(middleware.RequestID)

	// Real IP detection
	s.router.Use(middleware.RealIP)

	// Logging
	s.router.Use(s.requestLogger)

	// Panic recovery
	s.router.Use(middleware.Recoverer)

	// Engine calls inherit this deadline through the request context.
	s.router.Use(middleware.Timeout(s.config.RequestTimeout))

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.config.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Content-Type enforcement for POST/PUT/PATCH only (not GET/DELETE/OPTIONS)
	s.router.Use(jsonContentTypeMiddleware)
}

// requestLogger logs one line per request at debug level, or warn for
// server errors.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		level := slog.LevelDebug
		if ww.Status() >= http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		s.logger.Log(r.Context(), level, "request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// jsonContentTypeMiddleware enforces application/json content-type for requests with bodies.
func jsonContentTypeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			// Skip if there's no content
			if r.ContentLength == 0 {
				next.ServeHTTP(w, r)
				return
			}

			contentType := r.Header.Get("Content-Type")
			if contentType != "application/json" && !strings.HasPrefix(contentType, "application/json;") {
				http.Error(w, "Content-Type must be application/json", http.StatusUnsupportedMediaType)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on the configured address and serves in a goroutine. The
// listener is bound before Start returns so address errors surface here.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Addr, err)
	}

	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadTimeout:       s.config.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      s.config.WriteTimeout,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		s.logger.Info("API server starting", "addr", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}

	s.logger.Info("shutting down API server")
	return s.httpServer.Shutdown(ctx)
}

// Addr returns the address the server is configured to listen on.
func (s *Server) Addr() string {
	return s.config.Addr
}
