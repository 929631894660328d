package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	jwtauth "susu/internal/auth"
	"susu/internal/core"
	"susu/internal/log"
)

type contextKey string

const claimsKey contextKey = "claims"

// Claims returns the authenticated claims, or nil before authentication.
func Claims(ctx context.Context) *jwtauth.Claims {
	c, _ := ctx.Value(claimsKey).(*jwtauth.Claims)
	return c
}

// GetUserID extracts the user ID from the context.
// Returns empty string if not found.
func GetUserID(ctx context.Context) string {
	if c := Claims(ctx); c != nil {
		return c.UserID
	}
	return ""
}

// WithClaims stores claims on the context.
func WithClaims(ctx context.Context, c *jwtauth.Claims) context.Context {
	return context.WithValue(ctx, claimsKey, c)
}

// RequireAuth validates the Bearer token and stores its claims on the context.
func RequireAuth(m *jwtauth.JWTManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				deny(w, r, http.StatusUnauthorized, jwtauth.ErrMissingToken)
				return
			}
			scheme, token, ok := strings.Cut(header, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
				deny(w, r, http.StatusUnauthorized, jwtauth.ErrInvalidToken)
				return
			}
			claims, err := m.Validate(strings.TrimSpace(token))
			if err != nil {
				deny(w, r, http.StatusUnauthorized, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// RequireRole admits only callers holding one of roles. It must run after RequireAuth.
func RequireRole(roles ...core.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c := Claims(r.Context())
			if c == nil {
				deny(w, r, http.StatusUnauthorized, jwtauth.ErrMissingToken)
				return
			}
			for _, role := range roles {
				if c.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			deny(w, r, http.StatusForbidden, jwtauth.ErrForbidden)
		})
	}
}

func deny(w http.ResponseWriter, r *http.Request, status int, err error) {
	msg := err.Error()
	if errors.Is(err, jwtauth.ErrInvalidToken) {
		// do not echo parser details
		msg = jwtauth.ErrInvalidToken.Error()
	}
	slog.WarnContext(r.Context(), "Request rejected",
		log.FieldComponent, log.ComponentHTTP,
		log.FieldErrorType, log.ErrorTypeAuth,
		log.FieldPath, r.URL.Path,
		log.FieldStatusCode, status,
		log.FieldError, err.Error())
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer realm="susu"`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
