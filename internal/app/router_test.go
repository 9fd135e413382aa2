package app_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerdesk/ledgerdesk/internal/app"
	"github.com/ledgerdesk/ledgerdesk/internal/auth"
	"github.com/ledgerdesk/ledgerdesk/internal/clients"
	"github.com/ledgerdesk/ledgerdesk/internal/dashboard"
	"github.com/ledgerdesk/ledgerdesk/internal/expenses"
	"github.com/ledgerdesk/ledgerdesk/internal/invoices"
	"github.com/ledgerdesk/ledgerdesk/internal/observability"
	"github.com/ledgerdesk/ledgerdesk/internal/portal"
	"github.com/ledgerdesk/ledgerdesk/internal/products"
	"github.com/ledgerdesk/ledgerdesk/internal/quotes"
	"github.com/ledgerdesk/ledgerdesk/internal/reports"
	"github.com/ledgerdesk/ledgerdesk/internal/settings"
	_ "github.com/ledgerdesk/ledgerdesk/internal/testing/guard"
	"github.com/ledgerdesk/ledgerdesk/jobs"
)

// newTestRouter mounts every handler without backing services; the tests
// below only exercise paths that stop before a service is reached.
func newTestRouter(t *testing.T) (http.Handler, *observability.Metrics) {
	t.Helper()
	metrics := observability.NewMetrics()
	mw := auth.NewMiddleware(nil, "ledgerdesk_token", nil)
	router := app.NewRouter(app.RouterParams{
		Logger:           app.NewLogger(&app.Config{LogLevel: "error"}),
		Config:           &app.Config{AppEnv: "test"},
		Metrics:          metrics,
		AuthMiddleware:   mw,
		AuthHandler:      auth.NewHandler(nil, nil, mw, auth.CookieOptions{Name: "ledgerdesk_token"}),
		ClientsHandler:   clients.NewHandler(nil, nil),
		ProductsHandler:  products.NewHandler(nil, nil),
		InvoicesHandler:  invoices.NewHandler(nil, nil),
		QuotesHandler:    quotes.NewHandler(nil, nil),
		ExpensesHandler:  expenses.NewHandler(nil, nil),
		SettingsHandler:  settings.NewHandler(nil, nil),
		DashboardHandler: dashboard.NewHandler(nil, nil),
		ReportsHandler:   reports.NewHandler(nil, nil),
		PortalHandler:    portal.NewHandler(nil, nil),
		JobHandler:       jobs.NewHandler(nil, nil),
	})
	return router, metrics
}

func serve(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthzAndSecurityHeaders(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := serve(router, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	router, _ := newTestRouter(t)

	for _, path := range []string{"/api/clients", "/api/invoices/1", "/api/dashboard", "/api/reports/tax", "/api/admin/users"} {
		rec := serve(router, http.MethodGet, path, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
		assert.Contains(t, rec.Body.String(), `"success":false`, path)
	}
}

func TestUnknownRouteUsesEnvelope(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := serve(router, http.MethodGet, "/api/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"success":false,"message":"route not found"}`, rec.Body.String())
}

func TestLoginIsRateLimited(t *testing.T) {
	router, _ := newTestRouter(t)

	var last *httptest.ResponseRecorder
	for i := 0; i < 11; i++ {
		last = serve(router, http.MethodPost, "/api/auth/login", "{broken")
		if i < 10 {
			require.Equal(t, http.StatusBadRequest, last.Code, "request %d", i)
		}
	}
	assert.Equal(t, http.StatusTooManyRequests, last.Code)
}

func TestMetricsRecordRoutePattern(t *testing.T) {
	router, _ := newTestRouter(t)

	serve(router, http.MethodGet, "/api/invoices/42", "")
	rec := serve(router, http.MethodGet, "/metrics", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `ledgerdesk_http_requests_total{code="401",route="/api/invoices`)
}

func TestJobsHealthMounted(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := serve(router, http.MethodGet, "/jobs/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestInTestModeFromGuard(t *testing.T) {
	app.RefreshTestMode()
	assert.True(t, app.InTestMode())
}
