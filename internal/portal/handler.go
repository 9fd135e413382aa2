package portal

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ledgerdesk/ledgerdesk/internal/platform/httpx"
)

// Handler exposes the public endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers public routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/invoices/{publicID}", h.invoice)
	r.Post("/invoices/{publicID}/pay", h.pay)
	r.Get("/portal/{token}", h.portal)
}

func (h *Handler) invoice(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.Invoice(r.Context(), chi.URLParam(r, "publicID"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, view)
}

func (h *Handler) pay(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.Pay(r.Context(), chi.URLParam(r, "publicID"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.logger.Info("public invoice payment", slog.String("public_id", view.PublicID.String()), slog.String("amount", view.AmountPaid.StringFixed(2)))
	httpx.OKMessage(w, http.StatusOK, view, "payment received")
}

func (h *Handler) portal(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.Portal(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, view)
}
