// Package server provides the HTTP server implementation.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/storefront/internal/config"
	"github.com/vyrodovalexey/storefront/internal/event"
	"github.com/vyrodovalexey/storefront/internal/handler"
	"github.com/vyrodovalexey/storefront/internal/middleware"
	"github.com/vyrodovalexey/storefront/internal/respond"
	"github.com/vyrodovalexey/storefront/internal/store"
)

// Server represents the API server and its optional probe server.
type Server struct {
	httpServer  *http.Server
	probeServer *http.Server
	router      *mux.Router
	handler     http.Handler
	probeRouter *mux.Router
	config      *config.Config
	logger      *zap.Logger
	wsHandler   *handler.WebSocketHandler
}

// New creates a new Server instance.
func New(
	cfg *config.Config,
	logger *zap.Logger,
	products store.ProductStore,
	carts store.CartStore,
	broker *event.Broker,
) *Server {
	s := &Server{
		router:      mux.NewRouter(),
		probeRouter: mux.NewRouter(),
		config:      cfg,
		logger:      logger,
	}

	health := handler.NewHealthHandler(products, carts, logger)

	s.setupMiddleware()
	s.setupRoutes(health, products, carts, broker)
	s.setupProbeRoutes(health)

	// CORS answers preflights from the routes registered above.
	s.handler = middleware.CORS(
		s.router,
		cfg.AllowedOrigins(),
		[]string{"Content-Type", middleware.RequestIDHeader},
	)
	s.setupHTTPServers()

	return s
}

// setupMiddleware configures the router middleware. Middleware registered
// with mux only runs for matched routes; unmatched requests get the JSON
// 404 and 405 envelopes instead.
func (s *Server) setupMiddleware() {
	// First applied is outermost.
	s.router.Use(
		mux.MiddlewareFunc(middleware.RequestID()),
		mux.MiddlewareFunc(middleware.Recovery(s.logger)),
		mux.MiddlewareFunc(middleware.Tracing()),
	)

	if s.config.MetricsEnabled {
		s.router.Use(mux.MiddlewareFunc(middleware.Metrics()))
	}

	s.router.Use(mux.MiddlewareFunc(middleware.Logging(s.logger)))

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		respond.Error(w, s.logger, http.StatusNotFound, "resource not found")
	})
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		respond.Error(w, s.logger, http.StatusMethodNotAllowed, "method not allowed")
	})
}

// setupRoutes configures the API routes.
func (s *Server) setupRoutes(
	health *handler.HealthHandler,
	products store.ProductStore,
	carts store.CartStore,
	broker *event.Broker,
) {
	health.RegisterRoutes(s.router)
	health.RegisterPing(s.router)

	handler.NewProductHandler(products, s.logger).RegisterRoutes(s.router)
	handler.NewCartHandler(carts, s.logger).RegisterRoutes(s.router)

	s.wsHandler = handler.NewWebSocketHandler(broker, s.logger)
	s.wsHandler.RegisterRoutes(s.router)

	if s.config.MetricsEnabled {
		s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	}
}

// setupProbeRoutes configures the probe routes. The probe router carries no
// middleware.
func (s *Server) setupProbeRoutes(health *handler.HealthHandler) {
	health.RegisterRoutes(s.probeRouter)

	if s.config.MetricsEnabled {
		s.probeRouter.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	}
}

// setupHTTPServers configures the API server and, when a probe port is set,
// the probe server.
func (s *Server) setupHTTPServers() {
	s.httpServer = &http.Server{
		Addr:              s.config.Address(),
		Handler:           s.handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MB
	}

	if s.config.ProbePort == 0 {
		return
	}

	s.probeServer = &http.Server{
		Addr:              s.config.ProbeAddress(),
		Handler:           s.probeRouter,
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
		WriteTimeout:      5 * time.Second,
		IdleTimeout:       30 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}
}

// Start starts the API server. It returns nil once the server is shut down.
func (s *Server) Start() error {
	s.logger.Info("starting server",
		zap.String("address", s.config.Address()),
		zap.Bool("metrics_enabled", s.config.MetricsEnabled),
		zap.Bool("tracing_enabled", s.config.TracingEnabled()),
	)

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server listen and serve: %w", err)
	}

	return nil
}

// StartProbe starts the probe server. It returns immediately when the probe
// server is disabled.
func (s *Server) StartProbe() error {
	if s.probeServer == nil {
		return nil
	}

	s.logger.Info("starting probe server", zap.String("address", s.config.ProbeAddress()))

	if err := s.probeServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("probe server listen and serve: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down both servers.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")

	// WebSocket connections are hijacked and not tracked by http.Server.
	if s.wsHandler != nil {
		s.wsHandler.CloseAllConnections()
	}

	var errs []error
	if err := s.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown: %w", err))
	}

	if s.probeServer != nil {
		if err := s.probeServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("probe server shutdown: %w", err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return err
	}

	s.logger.Info("server shutdown complete")
	return nil
}

// Handler returns the full API handler: the router behind CORS.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Router returns the server's router for testing purposes.
func (s *Server) Router() *mux.Router {
	return s.router
}

// ProbeRouter returns the probe router for testing purposes.
func (s *Server) ProbeRouter() *mux.Router {
	return s.probeRouter
}
