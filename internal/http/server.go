// Package http exposes the expense service as a JSON API.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"expenses/internal/config"
	"expenses/internal/log"
	"expenses/internal/middleware/cors"
	"expenses/internal/middleware/ratelimit"
	"expenses/internal/middleware/security"
	"expenses/internal/middleware/trace"
	"expenses/internal/services"
)

// Server wraps http.Server and holds the expense service and middleware
// state needed by the handlers.
type Server struct {
	*http.Server
	svc            *services.ExpenseService
	logger         *log.Logger
	detector       *security.Detector
	limiter        *ratelimit.Limiter
	tracer         *trace.Middleware
	requestTimeout time.Duration
}

// NewServer builds the router and middleware chain for cfg.
func NewServer(cfg *config.Config, svc *services.ExpenseService, logger *log.Logger) (*Server, error) {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	httpLogger := logger.WithComponent(log.ComponentHTTP)

	detector, err := security.NewDetector(cfg.TrustedProxies...)
	if err != nil {
		return nil, err
	}

	s := &Server{
		svc:            svc,
		logger:         httpLogger,
		detector:       detector,
		limiter:        ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: cfg.RateLimitPerMinute}),
		requestTimeout: cfg.RequestTimeout,
	}
	s.tracer = trace.NewMiddleware(httpLogger, s.detector.ExtractClientIP)

	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(s.handleNotFound)
	r.MethodNotAllowedHandler = http.HandlerFunc(s.handleMethodNotAllowed)

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.handleReady).Methods(http.MethodGet)

	// Same routes with and without the /api prefix.
	s.registerRoutes(r)
	s.registerRoutes(r.PathPrefix("/api").Subrouter())

	var handler http.Handler = r
	handler = s.withTimeout(handler)
	handler = s.limiter.Middleware(s.detector.ExtractClientIP, s.handleRateLimited)(handler)
	handler = cors.New(cfg.CORSAllowedOrigins).Middleware(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = s.detector.Middleware(handler)
	handler = s.tracer.Middleware(handler)

	s.Server = &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

func (s *Server) registerRoutes(r *mux.Router) {
	// Fixed paths first so "clear" and "summary" never reach the id routes.
	r.HandleFunc("/expenses", s.handleListExpenses).Methods(http.MethodGet)
	r.HandleFunc("/expenses", s.handleCreateExpense).Methods(http.MethodPost)
	r.HandleFunc("/expenses/clear", s.handleClearExpenses).Methods(http.MethodDelete)
	r.HandleFunc("/expenses/import", s.handleImportExpenses).Methods(http.MethodPost)
	r.HandleFunc("/expenses/categories", s.handleCategories).Methods(http.MethodGet)

	r.HandleFunc("/expenses/summary/stats", s.handleSummary).Methods(http.MethodGet)
	r.HandleFunc("/expenses/summary/statistics", s.handleStatistics).Methods(http.MethodGet)
	r.HandleFunc("/expenses/summary/dashboard", s.handleDashboard).Methods(http.MethodGet)

	r.HandleFunc("/expenses/export/csv", s.handleExportCSV).Methods(http.MethodGet)
	r.HandleFunc("/expenses/export/json", s.handleExportJSON).Methods(http.MethodGet)
	r.HandleFunc("/expenses/export/pdf", s.handleExportPDF).Methods(http.MethodGet)

	r.HandleFunc("/expenses/{id:[0-9]+}", s.handleGetExpense).Methods(http.MethodGet)
	r.HandleFunc("/expenses/{id:[0-9]+}", s.handleUpdateExpense).Methods(http.MethodPut)
	r.HandleFunc("/expenses/{id:[0-9]+}", s.handleDeleteExpense).Methods(http.MethodDelete)
}

// withTimeout bounds the context every handler and store call runs under.
func (s *Server) withTimeout(next http.Handler) http.Handler {
	if s.requestTimeout <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), s.requestTimeout)
		defer cancel()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Shutdown gracefully shuts down the server and stops the rate limiter.
// Middleware counters are logged on the way out.
func (s *Server) Shutdown(ctx context.Context) error {
	m := s.Metrics()
	s.logger.InfoContext(ctx, "Shutting down HTTP server",
		log.FieldOperation, log.OpShutdown,
		"total_requests", m.Requests.TotalRequests,
		"rate_limited", m.RateLimit.TotalHits,
		"suspicious_requests", m.Detection.SuspiciousRequests,
		"non_json_bodies", m.Detection.NonJSONBodies)

	s.limiter.Stop()

	if err := s.Server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}

// Metrics is a point-in-time view of middleware counters.
type Metrics struct {
	Requests  trace.Metrics
	RateLimit ratelimit.Metrics
	Detection security.DetectionMetrics
}

func (s *Server) Metrics() Metrics {
	return Metrics{
		Requests:  s.tracer.GetMetrics(),
		RateLimit: s.limiter.GetMetrics(),
		Detection: s.detector.GetMetrics(),
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Message("ok").Write(w)
}

// handleReady reports 503 while the record store is unreachable.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Ping(r.Context()); err != nil {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", log.FieldError, err)
		ErrorResponse(http.StatusServiceUnavailable, "Storage unavailable").Header("Retry-After", "5").Write(w)
		return
	}
	NewJSONResponse().Message("ready").Write(w)
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	NotFoundError("Route not found").Write(w)
}

func (s *Server) handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	ErrorResponse(http.StatusMethodNotAllowed, "Method not allowed").Write(w)
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WithComponent(log.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.detector.ExtractClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path,
		"active_clients", s.limiter.ActiveClients())
	TooManyRequestsError("Rate limit exceeded. Please try again later.").Write(w)
}
