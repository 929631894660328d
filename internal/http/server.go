package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"susu/internal/auth"
	"susu/internal/core"
	"susu/internal/log"
	"susu/internal/metrics"
	authmw "susu/internal/middleware/auth"
	"susu/internal/middleware/ratelimit"
	"susu/internal/middleware/security"
	"susu/internal/middleware/trace"
	"susu/internal/services"
)

// Pinger reports whether the storage backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Services bundles the application services the handlers call.
type Services struct {
	Slots     *services.SlotService
	Groups    *services.GroupService
	Members   *services.MemberService
	Payments  *services.PaymentService
	Analytics *services.AnalyticsService
	Users     *services.UserService
}

// Options configures the server. Metrics and Logger are optional.
type Options struct {
	Addr           string
	RateLimitRPM   int
	TrustedProxies []string
	JWT            *auth.JWTManager
	Store          Pinger
	Metrics        *metrics.Metrics
	Logger         *log.Logger
}

type Server struct {
	http.Server
	mux     *http.ServeMux
	svc     Services
	store   Pinger
	jwt     *auth.JWTManager
	metrics *metrics.Metrics
	logger  *log.Logger
	started time.Time

	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware

	shutdownOnce sync.Once
}

// NewServer wires routes and middleware, returning a ready-to-run server.
func NewServer(opts Options, svc Services) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	s := &Server{
		mux:              http.NewServeMux(),
		svc:              svc,
		store:            opts.Store,
		jwt:              opts.JWT,
		metrics:          opts.Metrics,
		logger:           logger,
		started:          time.Now(),
		securityDetector: security.NewDetector(),
		rateLimiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: opts.RateLimitRPM,
		}),
	}
	for _, cidr := range opts.TrustedProxies {
		if err := s.securityDetector.AddTrustedProxy(cidr); err != nil {
			logger.Warn("Ignoring invalid trusted proxy", "cidr", cidr, log.FieldError, err)
		}
	}
	s.traceMiddleware = trace.NewMiddleware(s.securityDetector.ExtractClientIP, logger, s.observe)
	s.registerMetrics()
	s.routes()

	var h http.Handler = s.mux
	h = s.rateLimiter.Middleware(s.securityDetector.ExtractClientIP, s.handleRateLimited)(h)
	h = s.securityDetector.Middleware(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = log.RequestIDMiddleware(trace.RequestID)(h)
	h = log.Middleware(logger)(h)
	h = s.traceMiddleware.Middleware(h)

	s.Addr = opts.Addr
	s.Handler = h
	s.ReadHeaderTimeout = 5 * time.Second
	s.ReadTimeout = 15 * time.Second
	s.WriteTimeout = 30 * time.Second
	s.IdleTimeout = 60 * time.Second
	return s
}

func (s *Server) routes() {
	mux := s.mux

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}

	mux.Handle("POST /auth/login", log.ComponentMiddleware(log.ComponentUsers)(http.HandlerFunc(s.handleLogin)))

	mux.Handle("GET /users", s.admin(log.ComponentUsers, s.handleListUsers))
	mux.Handle("POST /users", s.admin(log.ComponentUsers, s.handleCreateUser))
	mux.Handle("DELETE /users/{id}", s.admin(log.ComponentUsers, s.handleDeleteUser))

	mux.Handle("GET /months", s.viewer(log.ComponentSlots, s.handleExpandMonths))

	mux.Handle("GET /groups", s.viewer(log.ComponentGroups, s.handleListGroups))
	mux.Handle("POST /groups", s.admin(log.ComponentGroups, s.handleCreateGroup))
	mux.Handle("GET /groups/{id}", s.viewer(log.ComponentGroups, s.handleGetGroup))
	mux.Handle("PUT /groups/{id}", s.admin(log.ComponentGroups, s.handleUpdateGroup))
	mux.Handle("DELETE /groups/{id}", s.admin(log.ComponentGroups, s.handleDeleteGroup))
	mux.Handle("GET /groups/{id}/months", s.viewer(log.ComponentSlots, s.handleGroupMonths))
	mux.Handle("GET /groups/{id}/orphans", s.viewer(log.ComponentSlots, s.handleGroupOrphans))
	mux.Handle("GET /groups/{id}/stats", s.viewer(log.ComponentAnalytics, s.handleGroupStats))
	mux.Handle("POST /groups/{id}/assignments", s.admin(log.ComponentSlots, s.handleAssign))
	mux.Handle("DELETE /groups/{id}/members/{memberID}/assignments", s.admin(log.ComponentSlots, s.handleUnassign))

	mux.Handle("GET /members", s.viewer(log.ComponentMembers, s.handleListMembers))
	mux.Handle("POST /members", s.admin(log.ComponentMembers, s.handleCreateMember))
	mux.Handle("GET /members/{id}", s.viewer(log.ComponentMembers, s.handleGetMember))
	mux.Handle("PUT /members/{id}", s.admin(log.ComponentMembers, s.handleUpdateMember))
	mux.Handle("DELETE /members/{id}", s.admin(log.ComponentMembers, s.handleDeleteMember))
	mux.Handle("GET /members/{id}/assignments", s.viewer(log.ComponentMembers, s.handleMemberAssignments))
	mux.Handle("POST /members/{id}/totals", s.admin(log.ComponentMembers, s.handleRefreshMemberTotals))
	mux.Handle("GET /members/{id}/messages", s.viewer(log.ComponentMembers, s.handleMemberMessages))
	mux.Handle("POST /messages/{id}/read", s.admin(log.ComponentMembers, s.handleMarkMessageRead))

	mux.Handle("GET /payments", s.viewer(log.ComponentPayments, s.handleListPayments))
	mux.Handle("POST /payments", s.admin(log.ComponentPayments, s.handleRecordPayment))
	mux.Handle("GET /payments/{id}", s.viewer(log.ComponentPayments, s.handleGetPayment))
	mux.Handle("PATCH /payments/{id}/status", s.admin(log.ComponentPayments, s.handleUpdatePaymentStatus))

	mux.Handle("GET /dashboard", s.viewer(log.ComponentAnalytics, s.handleDashboard))
}

// viewer requires any authenticated user and logs under component.
func (s *Server) viewer(component string, h http.HandlerFunc) http.Handler {
	return log.ComponentMiddleware(component)(authmw.RequireAuth(s.jwt)(h))
}

// admin requires an authenticated administrator and logs under component.
func (s *Server) admin(component string, h http.HandlerFunc) http.Handler {
	return log.ComponentMiddleware(component)(authmw.RequireAuth(s.jwt)(authmw.RequireRole(core.RoleAdmin)(h)))
}

func (s *Server) observe(r *http.Request, status int, d time.Duration) {
	if s.metrics == nil {
		return
	}
	_, route := s.mux.Handler(r)
	if route == "" {
		route = "unmatched"
	}
	s.metrics.ObserveRequest(r.Method, route, status, d)
}

func (s *Server) registerMetrics() {
	if s.metrics == nil {
		return
	}
	s.metrics.CounterFunc("rate_limit_hits_total", "Requests rejected by the rate limiter.", nil, func() float64 {
		return float64(s.rateLimiter.GetMetrics().TotalHits)
	})
	s.metrics.GaugeFunc("rate_limit_clients", "Clients tracked by the rate limiter.", nil, func() float64 {
		return float64(s.rateLimiter.ActiveClients())
	})
	s.metrics.CounterFunc("suspicious_requests_total", "Requests flagged by the security detector.", nil, func() float64 {
		return float64(s.securityDetector.GetMetrics().SuspiciousRequests)
	})
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	ErrorResponse(http.StatusTooManyRequests, "rate_limited", "rate limit exceeded, try again later").Write(w)
}

// fail logs err at a level matching its class and writes the mapped response.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	resp := ErrorFrom(err)
	logger := log.FromContext(r.Context())
	fields := log.NewFields().WithError(err).WithOperation(op)
	if resp.statusCode >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "Request failed", fields.WithErrorType(errorType(resp.statusCode)).ToSlice()...)
	} else {
		logger.DebugContext(r.Context(), "Request rejected", fields.WithErrorType(errorType(resp.statusCode)).ToSlice()...)
	}
	resp.Write(w)
}

func errorType(status int) string {
	switch status {
	case http.StatusUnprocessableEntity, http.StatusBadRequest:
		return log.ErrorTypeValidation
	case http.StatusConflict:
		return log.ErrorTypeConflict
	case http.StatusNotFound:
		return log.ErrorTypeNotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		return log.ErrorTypeAuth
	case http.StatusServiceUnavailable:
		return log.ErrorTypeDatabase
	default:
		return log.ErrorTypeInternal
	}
}

// Shutdown stops the rate limiter and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
