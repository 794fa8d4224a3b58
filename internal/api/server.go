package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vaidashi/storefront-api/internal/config"
	"github.com/vaidashi/storefront-api/internal/metrics"
	"github.com/vaidashi/storefront-api/internal/outbox"
	"github.com/vaidashi/storefront-api/internal/repository"
	"github.com/vaidashi/storefront-api/internal/service"
	"github.com/vaidashi/storefront-api/pkg/auth"
	"github.com/vaidashi/storefront-api/pkg/circuitbreaker"
	"github.com/vaidashi/storefront-api/pkg/logger"
	"github.com/vaidashi/storefront-api/pkg/middleware"
	"github.com/vaidashi/storefront-api/pkg/ratelimit"
)

// Dependencies are the collaborators the HTTP layer dispatches to
type Dependencies struct {
	Store       repository.Store
	Orders      *service.OrderService
	Queries     *service.QueryService
	Products    *service.ProductService
	Payments    *service.PaymentService
	DeadLetters *outbox.DeadLetters
	Tokens      *auth.TokenManager
	Metrics     *metrics.Metrics
	Gatherer    prometheus.Gatherer
	Breakers    []*circuitbreaker.CircuitBreaker
}

type Server struct {
	config       *config.Config
	logger       logger.Logger
	router       *mux.Router
	httpServer   *http.Server
	deps         Dependencies
	orderLimiter *middleware.RateLimiterMiddleware
}

// NewServer creates a new API server with the given configuration and logger.
func NewServer(cfg *config.Config, deps Dependencies, logger logger.Logger) *Server {
	r := mux.NewRouter()

	s := &Server{
		config: cfg,
		logger: logger,
		router: r,
		deps:   deps,
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      r,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}

	s.orderLimiter = middleware.NewRateLimiterMiddleware(middleware.RateLimiterConfig{
		Burst:     cfg.RateLimit.OrdersBurst,
		PerSecond: cfg.RateLimit.OrdersPerSecond,
		KeyFunc: func(r *http.Request) string {
			if id, ok := identityFrom(r.Context()); ok {
				return "user:" + id.UserID
			}
			return ""
		},
		TrustForwardedFor: !cfg.IsProduction(),
		OnLimited: func(r *http.Request) {
			deps.Metrics.RateLimited(routeTemplate(r))
		},
	}, logger)

	s.setupRoutes()
	return s
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// OrderLimiter returns the limiter guarding order placement
func (s *Server) OrderLimiter() *ratelimit.KeyedLimiter {
	return s.orderLimiter.Limiter()
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("HTTP server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// setupRoutes configures all the routes for our API
func (s *Server) setupRoutes() {
	// RequestLogger wraps Recoverer so panics are logged and counted as 500s
	s.router.Use(
		middleware.RequestLogger(s.logger, s.observe),
		middleware.Recoverer(s.logger),
		middleware.Timeout(s.config.RequestTimeout),
	)

	if s.deps.Gatherer != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/health", s.healthCheckHandler).Methods(http.MethodGet)

	// Catalogue
	api.HandleFunc("/products", s.listProductsHandler).Methods(http.MethodGet)
	api.HandleFunc("/products/{id}", s.getProductHandler).Methods(http.MethodGet)

	// Customer orders
	orders := api.PathPrefix("/orders").Subrouter()
	orders.Use(s.authenticate)
	orders.Handle("", s.orderLimiter.Middleware(http.HandlerFunc(s.createOrderHandler))).Methods(http.MethodPost)
	orders.HandleFunc("/me", s.listMyOrdersHandler).Methods(http.MethodGet)
	orders.HandleFunc("/{id}", s.getOrderHandler).Methods(http.MethodGet)
	orders.HandleFunc("/{id}/cancel", s.cancelOrderHandler).Methods(http.MethodPut)

	payments := api.PathPrefix("/payments").Subrouter()
	payments.Use(s.authenticate)
	payments.HandleFunc("/intent", s.createPaymentIntentHandler).Methods(http.MethodPost)
	payments.HandleFunc("/confirm", s.confirmPaymentHandler).Methods(http.MethodPost)

	// Admin API
	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(s.authenticate, s.requireAdmin)
	admin.HandleFunc("/products", s.createProductHandler).Methods(http.MethodPost)
	admin.HandleFunc("/products/{id}", s.adminGetProductHandler).Methods(http.MethodGet)
	admin.HandleFunc("/products/{id}", s.updateProductHandler).Methods(http.MethodPut)
	admin.HandleFunc("/products/{id}", s.deleteProductHandler).Methods(http.MethodDelete)
	admin.HandleFunc("/products/{id}/stock", s.adjustStockHandler).Methods(http.MethodPatch)
	admin.HandleFunc("/orders", s.listAllOrdersHandler).Methods(http.MethodGet)
	admin.HandleFunc("/orders/stats", s.orderStatsHandler).Methods(http.MethodGet)
	admin.HandleFunc("/orders/{id}/status", s.updateOrderStatusHandler).Methods(http.MethodPatch)
	admin.HandleFunc("/orders/{id}", s.deleteOrderHandler).Methods(http.MethodDelete)
	admin.HandleFunc("/outbox/failed", s.listFailedMessagesHandler).Methods(http.MethodGet)
	admin.HandleFunc("/outbox/{id}/retry", s.retryFailedMessageHandler).Methods(http.MethodPost)
	admin.HandleFunc("/circuit-breakers", s.circuitBreakersHandler).Methods(http.MethodGet)
}

func (s *Server) observe(r *http.Request, status int, elapsed time.Duration) {
	s.deps.Metrics.ObserveHTTP(r.Method, routeTemplate(r), status, elapsed)
}

// routeTemplate keeps metric labels bounded by using the matched template
func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}
