// Package api serves the report service over HTTP and WebSocket.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/ramonehamilton/GCG-Companion/internal/api/handlers"
	"github.com/ramonehamilton/GCG-Companion/internal/api/websocket"
	"github.com/ramonehamilton/GCG-Companion/internal/logger"
	"github.com/ramonehamilton/GCG-Companion/internal/metrics"
)

// Server represents the REST API server.
type Server struct {
	router         *chi.Mux
	httpServer     *http.Server
	port           int
	requestTimeout time.Duration

	// WebSocket hub for report replies
	wsHub *websocket.Hub

	reports  handlers.ReportService
	metrics  *metrics.ReportMetrics
	provider handlers.ProviderStats
	log      *logger.Logger
}

// Config holds configuration for the API server.
type Config struct {
	Port           int
	RequestTimeout time.Duration
}

// DefaultConfig returns the default API server configuration.
func DefaultConfig() *Config {
	return &Config{
		Port:           8080,
		RequestTimeout: 60 * time.Second,
	}
}

// Dependencies are the services the API exposes. Hub is optional; a new
// hub is created when nil so the report service can be wired to it later.
type Dependencies struct {
	Reports  handlers.ReportService
	Metrics  *metrics.ReportMetrics
	Provider handlers.ProviderStats
	Hub      *websocket.Hub
	Logger   *logger.Logger
}

// NewServer creates a new API server.
func NewServer(cfg *Config, deps Dependencies) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if deps.Logger == nil {
		deps.Logger = logger.Nop()
	}
	if deps.Hub == nil {
		deps.Hub = websocket.NewHub(deps.Logger)
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultConfig().RequestTimeout
	}

	s := &Server{
		router:         chi.NewRouter(),
		port:           cfg.Port,
		requestTimeout: timeout,
		wsHub:          deps.Hub,
		reports:        deps.Reports,
		metrics:        deps.Metrics,
		provider:       deps.Provider,
		log:            deps.Logger.With("component", "api"),
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

	s.router.Use(s.requestLogger)

	// Panic recovery
	s.router.Use(middleware.Recoverer)

	// CORS configuration
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "http://127.0.0.1:*", "https://localhost:*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Link", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Content-Type enforcement for POST/PUT/PATCH only (not GET/DELETE/OPTIONS)
	s.router.Use(s.jsonContentTypeMiddleware)
}

// requestLogger logs each request through the service logger.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("request",
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
func (s *Server) jsonContentTypeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			// Skip if there's no content
			if r.ContentLength == 0 {
				next.ServeHTTP(w, r)
				return
			}

			contentType := r.Header.Get("Content-Type")
			if contentType == "" || (contentType != "application/json" && !strings.HasPrefix(contentType, "application/json;")) {
				http.Error(w, "Content-Type must be application/json", http.StatusUnsupportedMediaType)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// Handler returns the server's root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the hub and the API server in background goroutines. The
// listener is opened before returning so bind errors are reported.
func (s *Server) Start() error {
	go s.wsHub.Run()

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.router,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      s.requestTimeout + 5*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		s.wsHub.Stop()
		return fmt.Errorf("listen on port %d: %w", s.port, err)
	}

	go func() {
		s.log.Info("API server starting", "port", s.port)
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Shutdown gracefully shuts down the API server and the hub.
func (s *Server) Shutdown(ctx context.Context) error {
	s.wsHub.Stop()
	if s.httpServer == nil {
		return nil
	}

	s.log.Info("shutting down API server")
	return s.httpServer.Shutdown(ctx)
}

// Port returns the port the server is configured to listen on.
func (s *Server) Port() int {
	return s.port
}

// WebSocketHub returns the WebSocket hub. It implements report.ReplySink.
func (s *Server) WebSocketHub() *websocket.Hub {
	return s.wsHub
}
