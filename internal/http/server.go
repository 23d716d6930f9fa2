// Package http serves the JSON API over the services layer.
package http

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"lovemoney/internal/auth"
	"lovemoney/internal/log"
	"lovemoney/internal/middleware/ratelimit"
	"lovemoney/internal/middleware/security"
	"lovemoney/internal/middleware/trace"
	"lovemoney/internal/records"
	"lovemoney/internal/services"
)

const (
	readTimeout    = 7 * time.Second
	writeTimeout   = 10 * time.Second
	idleTimeout    = 60 * time.Second
	requestTimeout = 8 * time.Second
	readyTimeout   = 2 * time.Second
)

// Deps are the services the API exposes.
type Deps struct {
	Repo      *records.Repository
	Loader    *services.Loader
	View      *services.PeriodView
	Mutations *services.Mutations
	Forms     *services.Forms
	Dashboard *services.Dashboard
	Verifier  *auth.Verifier
	Logger    *log.Logger

	// RateLimit bounds mutating requests per client. Zero values use the defaults.
	RateLimit ratelimit.Config
	// TrustedProxies are CIDRs whose forwarded headers are believed.
	TrustedProxies []string
}

// Server is the API server.
type Server struct {
	http.Server

	deps     Deps
	logger   *log.Logger
	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware
	now      func() time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, deps Deps) (*Server, error) {
	logger := deps.Logger
	if logger == nil {
		logger = log.Discard()
	}
	if deps.Verifier == nil {
		deps.Verifier = auth.NewVerifier("")
	}

	s := &Server{
		Server: http.Server{
			Addr:         addr,
			ReadTimeout:  readTimeout,
			WriteTimeout: writeTimeout,
			IdleTimeout:  idleTimeout,
		},
		deps:     deps,
		logger:   logger.WithComponent(log.ComponentHTTP),
		limiter:  ratelimit.NewLimiter(deps.RateLimit),
		detector: security.NewDetector(),
		now:      time.Now,
	}
	for _, cidr := range deps.TrustedProxies {
		if err := s.detector.AddTrustedProxy(cidr); err != nil {
			s.limiter.Stop()
			return nil, err
		}
	}
	s.tracer = trace.NewMiddleware(logger, s.detector.ExtractClientIP)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.Handle("GET /api/users/{uid}/summary", s.user(s.handleSummary))
	mux.Handle("PUT /api/users/{uid}/selection", s.user(s.handleSelect))
	mux.Handle("GET /api/users/{uid}/subscriptions/active", s.user(s.handleActiveSubscriptions))
	mux.Handle("GET /api/users/{uid}/dashboard", s.user(s.handleDashboard))

	mux.Handle("POST /api/users/{uid}/expenses", s.user(s.handleCreateExpense))
	mux.Handle("POST /api/users/{uid}/subscriptions", s.user(s.handleCreateSubscription))
	mux.Handle("POST /api/users/{uid}/installments", s.user(s.handleCreateInstallments))
	mux.Handle("POST /api/users/{uid}/cards", s.user(s.handleCreateCard))
	mux.Handle("POST /api/users/{uid}/cards/{cardId}/purchases", s.user(s.handleCreatePurchase))

	mux.Handle("POST /api/users/{uid}/records/{kind}/{id}/cancel", s.user(s.handleCancel))
	mux.Handle("DELETE /api/users/{uid}/records/{kind}/{id}", s.user(s.handleDelete))
	mux.Handle("PATCH /api/users/{uid}/records/{kind}/{id}/amount", s.user(s.handleEditAmount))
	mux.Handle("PATCH /api/users/{uid}/records/{kind}/{id}", s.user(s.handleEditMember))
	mux.Handle("POST /api/users/{uid}/records/{kind}/{id}/reschedule", s.user(s.handleReschedule))

	var h http.Handler = mux
	h = s.limiter.Middleware(s.detector.ExtractClientIP, ratelimit.Mutating, s.onRateLimit)(h)
	h = s.detector.Middleware(logger)(h)
	h = security.Headers(security.DefaultHeadersConfig())(h)
	h = s.tracer.Handler(h)
	s.Handler = h

	return s, nil
}

// user wraps a per-user handler with the bearer-token check and a deadline.
func (s *Server) user(h http.HandlerFunc) http.Handler {
	authed := auth.Middleware(s.deps.Verifier,
		func(r *http.Request) string { return r.PathValue("uid") },
		writeError,
	)
	return authed(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()
		h(w, r.WithContext(ctx))
	}))
}

func (s *Server) onRateLimit(w http.ResponseWriter, r *http.Request) {
	s.logger.WithComponent(log.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.detector.ExtractClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	NewJSONResponse().
		Status(http.StatusTooManyRequests).
		Body(errorBody{Error: "rate limit exceeded", RequestID: trace.GetRequestID(r.Context())}).
		Write(w)
}

// Start serves until Shutdown. It returns nil after a clean shutdown.
func (s *Server) Start() error {
	s.logger.Info("HTTP server listening", "addr", s.Addr)
	if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, drains in-flight ones and stops the
// limiter's cleanup goroutine.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
		m := s.tracer.GetMetrics()
		s.logger.Info("HTTP server stopped",
			"total_requests", m.TotalRequests,
			"avg_response_time", m.AverageResponseTime.String(),
			"rate_limited", s.limiter.Hits(),
			"suspicious_requests", s.detector.GetMetrics().SuspiciousRequests)
	})
	return shutdownErr
}
