package http

import (
	"context"
	"net/http"
	"time"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewResponse().JSON(map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	}).Write(w)
}

// handleReady checks that storage answers a ping.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := map[string]interface{}{}

	if s.store == nil {
		checks["storage"] = "not_configured"
		status, httpStatus = "not_ready", http.StatusServiceUnavailable
	} else if err := s.store.Ping(ctx); err != nil {
		checks["storage"] = "failed: " + err.Error()
		status, httpStatus = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["storage"] = "ok"
	}

	checks["rate_limiter"] = map[string]interface{}{
		"active_clients": s.rateLimiter.ActiveClients(),
	}

	NewResponse().Status(httpStatus).JSON(map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks":    checks,
	}).Write(w)
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := DecodeJSON(r, &req); err != nil {
		s.fail(w, r, "login", err)
		return
	}
	session, err := s.svc.Users.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.fail(w, r, "login", err)
		return
	}
	NewResponse().JSON(session).Write(w)
}

// handleExpandMonths lists every month between start and end inclusive.
func (s *Server) handleExpandMonths(w http.ResponseWriter, r *http.Request) {
	months, err := s.svc.Slots.ExpandMonths(QueryString(r, "start"), QueryString(r, "end"))
	if err != nil {
		s.fail(w, r, "expand_months", err)
		return
	}
	NewResponse().JSON(map[string]interface{}{"months": months}).Write(w)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := s.svc.Analytics.Dashboard(r.Context())
	if err != nil {
		s.fail(w, r, "dashboard", err)
		return
	}
	NewResponse().JSON(d).Write(w)
}

// listBody wraps collections so the response shape can grow.
func listBody[T any](items []T) map[string]interface{} {
	if items == nil {
		items = []T{}
	}
	return map[string]interface{}{"items": items, "count": len(items)}
}
