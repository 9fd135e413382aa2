package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ledgerdesk/ledgerdesk/internal/auth"
	"github.com/ledgerdesk/ledgerdesk/internal/clients"
	"github.com/ledgerdesk/ledgerdesk/internal/dashboard"
	"github.com/ledgerdesk/ledgerdesk/internal/expenses"
	"github.com/ledgerdesk/ledgerdesk/internal/invoices"
	"github.com/ledgerdesk/ledgerdesk/internal/observability"
	"github.com/ledgerdesk/ledgerdesk/internal/platform/httpx"
	"github.com/ledgerdesk/ledgerdesk/internal/portal"
	"github.com/ledgerdesk/ledgerdesk/internal/products"
	"github.com/ledgerdesk/ledgerdesk/internal/quotes"
	"github.com/ledgerdesk/ledgerdesk/internal/reports"
	"github.com/ledgerdesk/ledgerdesk/internal/settings"
	"github.com/ledgerdesk/ledgerdesk/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger  *slog.Logger
	Config  *Config
	Metrics *observability.Metrics

	AuthMiddleware   *auth.Middleware
	AuthHandler      *auth.Handler
	ClientsHandler   *clients.Handler
	ProductsHandler  *products.Handler
	InvoicesHandler  *invoices.Handler
	QuotesHandler    *quotes.Handler
	ExpensesHandler  *expenses.Handler
	SettingsHandler  *settings.Handler
	DashboardHandler *dashboard.Handler
	ReportsHandler   *reports.Handler
	PortalHandler    *portal.Handler
	JobHandler       *jobs.Handler
}

// NewRouter constructs the chi.Router serving the JSON API under /api.
func NewRouter(params RouterParams) http.Handler {
	httpx.DefaultResponder = httpx.Responder{Debug: !params.Config.IsProduction()}

	r := chi.NewRouter()
	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httpx.Fail(w, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httpx.Fail(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Use(RateLimit(loginRequestsPerMinute))
			params.AuthHandler.MountRoutes(r)
		})
		r.Route("/admin", params.AuthHandler.MountAdminRoutes)
		r.Route("/public", func(r chi.Router) {
			r.Use(RateLimit(publicRequestsPerMinute))
			params.PortalHandler.MountRoutes(r)
		})

		r.Group(func(r chi.Router) {
			r.Use(params.AuthMiddleware.RequireAuth)
			r.Route("/clients", params.ClientsHandler.MountRoutes)
			r.Route("/products", params.ProductsHandler.MountRoutes)
			r.Route("/invoices", params.InvoicesHandler.MountRoutes)
			r.Route("/quotes", params.QuotesHandler.MountRoutes)
			r.Route("/expenses", params.ExpensesHandler.MountRoutes)
			r.Route("/settings", params.SettingsHandler.MountRoutes)
			r.Route("/dashboard", params.DashboardHandler.MountRoutes)
			r.Route("/reports", params.ReportsHandler.MountRoutes)
		})
	})

	return r
}
