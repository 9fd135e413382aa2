package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ledgerdesk/ledgerdesk/internal/platform/httpx"
	"github.com/ledgerdesk/ledgerdesk/internal/shared"
)

// Middleware authenticates bearer tokens and enforces roles.
type Middleware struct {
	service    *Service
	cookieName string
	logger     *slog.Logger
}

// NewMiddleware constructs the auth middleware.
func NewMiddleware(service *Service, cookieName string, logger *slog.Logger) *Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return &Middleware{service: service, cookieName: cookieName, logger: logger}
}

// TokenFromRequest reads the bearer token from the Authorization header,
// falling back to the auth cookie.
func TokenFromRequest(r *http.Request, cookieName string) string {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	if cookie, err := r.Cookie(cookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// RequireAuth rejects requests without a valid token and stores the caller in context.
func (m *Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := TokenFromRequest(r, m.cookieName)
		if raw == "" {
			httpx.Fail(w, http.StatusUnauthorized, "authorization token not provided")
			return
		}
		identity, _, err := m.service.Authenticate(r.Context(), raw)
		if err != nil {
			if errors.Is(err, ErrInvalidToken) {
				httpx.Fail(w, http.StatusUnauthorized, err.Error())
				return
			}
			m.logger.Error("authenticate token", slog.Any("error", err))
			httpx.RespondError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(shared.ContextWithIdentity(r.Context(), identity)))
	})
}

// RequireRole rejects authenticated callers lacking the role.
func (m *Middleware) RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := shared.IdentityFromContext(r.Context())
			if !ok {
				httpx.Fail(w, http.StatusUnauthorized, "authorization token not provided")
				return
			}
			if identity.Role != role {
				httpx.Fail(w, http.StatusForbidden, "insufficient role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
