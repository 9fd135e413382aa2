package invoices

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ledgerdesk/ledgerdesk/internal/platform/httpx"
	"github.com/ledgerdesk/ledgerdesk/internal/shared"
)

// Handler exposes invoice endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers invoice routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.show)
	r.Put("/{id}", h.update)
	r.Delete("/{id}", h.remove)
	r.Post("/{id}/payment", h.payment)
	r.Post("/{id}/send", h.send)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	caller, _ := shared.IdentityFromContext(r.Context())
	q := r.URL.Query()
	clientID, _ := strconv.ParseInt(q.Get("clientId"), 10, 64)
	includeRemoved, _ := strconv.ParseBool(q.Get("includeRemoved"))
	filter := ListFilter{
		ListParams: shared.ListParams{
			Page:    httpx.QueryInt(r, "page", 1),
			PerPage: httpx.QueryInt(r, "perPage", 20),
			Search:  q.Get("q"),
		},
		Status:         Status(q.Get("status")),
		PaymentStatus:  PaymentStatus(q.Get("paymentStatus")),
		ClientID:       clientID,
		IncludeRemoved: includeRemoved,
	}
	items, page, err := h.service.List(r.Context(), caller, filter)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if items == nil {
		items = []Invoice{}
	}
	httpx.OK(w, http.StatusOK, httpx.Page{Items: items, Page: page.Page, PerPage: page.PerPage, Total: page.Total, TotalPages: page.TotalPages})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	caller, _ := shared.IdentityFromContext(r.Context())
	var input Input
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	inv, err := h.service.Create(r.Context(), caller, input)
	if err != nil {
		if inv.ID != 0 {
			h.logger.Warn("invoice created with stock error", slog.Int64("invoice_id", inv.ID), slog.Any("error", err))
			httpx.OKMessage(w, http.StatusCreated, inv, "invoice created; stock not updated")
			return
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, http.StatusCreated, inv)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	caller, _ := shared.IdentityFromContext(r.Context())
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	inv, err := h.service.Get(r.Context(), caller, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, inv)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	caller, _ := shared.IdentityFromContext(r.Context())
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var input Input
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	inv, err := h.service.Update(r.Context(), caller, id, input)
	if err != nil {
		if inv.ID != 0 {
			h.logger.Warn("invoice updated with stock error", slog.Int64("invoice_id", inv.ID), slog.Any("error", err))
			httpx.OKMessage(w, http.StatusOK, inv, "invoice updated; stock not updated")
			return
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, inv)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	caller, _ := shared.IdentityFromContext(r.Context())
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Delete(r.Context(), caller, id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OKMessage(w, http.StatusOK, nil, "invoice removed")
}

func (h *Handler) payment(w http.ResponseWriter, r *http.Request) {
	caller, _ := shared.IdentityFromContext(r.Context())
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var input PaymentInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	inv, err := h.service.RecordPayment(r.Context(), caller, id, input)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OKMessage(w, http.StatusOK, inv, "payment recorded")
}

func (h *Handler) send(w http.ResponseWriter, r *http.Request) {
	caller, _ := shared.IdentityFromContext(r.Context())
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	inv, err := h.service.Send(r.Context(), caller, id)
	if err != nil {
		h.logger.Warn("invoice send failed", slog.Int64("invoice_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.OKMessage(w, http.StatusOK, inv, "invoice sent")
}
