package auth

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ledgerdesk/ledgerdesk/internal/platform/httpx"
	"github.com/ledgerdesk/ledgerdesk/internal/shared"
)

// CookieOptions controls the auth cookie attributes.
type CookieOptions struct {
	Name   string
	Secure bool
}

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger  *slog.Logger
	service *Service
	mw      *Middleware
	cookie  CookieOptions
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, mw *Middleware, cookie CookieOptions) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, mw: mw, cookie: cookie}
}

// MountRoutes registers auth routes on provided router. Login and register
// are public; the router applies a stricter rate limit to this group.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/register", h.handleRegister)
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
	r.With(h.mw.RequireAuth).Get("/me", h.handleMe)
}

// MountAdminRoutes registers admin-only account routes.
func (h *Handler) MountAdminRoutes(r chi.Router) {
	r.Use(h.mw.RequireAuth, h.mw.RequireRole(shared.RoleAdmin))
	r.Get("/users", h.handleListUsers)
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var input RegisterInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	session, err := h.service.Register(r.Context(), input)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.setCookie(w, session.Token, session.ExpiresAt)
	httpx.OK(w, http.StatusCreated, session)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var input LoginInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	session, err := h.service.Login(r.Context(), input)
	if err != nil {
		h.logger.Info("login failed", slog.String("email", input.Email))
		httpx.RespondError(w, err)
		return
	}
	h.setCookie(w, session.Token, session.ExpiresAt)
	httpx.OK(w, http.StatusOK, session)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if raw := TokenFromRequest(r, h.cookie.Name); raw != "" {
		if err := h.service.Logout(r.Context(), raw); err != nil {
			h.logger.Warn("revoke token", slog.Any("error", err))
		}
	}
	h.setCookie(w, "", time.Unix(0, 0))
	httpx.OKMessage(w, http.StatusOK, nil, "logged out")
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	caller, _ := shared.IdentityFromContext(r.Context())
	user, err := h.service.Me(r.Context(), caller)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, user)
}

func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	caller, _ := shared.IdentityFromContext(r.Context())
	users, err := h.service.ListUsers(r.Context(), caller)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if users == nil {
		users = []User{}
	}
	httpx.OK(w, http.StatusOK, users)
}

func (h *Handler) setCookie(w http.ResponseWriter, value string, expires time.Time) {
	cookie := &http.Cookie{
		Name:     h.cookie.Name,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteStrictMode,
	}
	if value == "" {
		cookie.MaxAge = -1
	}
	http.SetCookie(w, cookie)
}
