package expenses

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/ledgerdesk/ledgerdesk/internal/shared"
)

type memoryRepo struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]Expense
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{rows: make(map[int64]Expense)}
}

func (m *memoryRepo) visible(scope shared.Scope, e Expense) bool {
	return e.CreatedBy == scope.OwnerID && (scope.Visibility == shared.IncludeRemoved || !e.Removed)
}

func (m *memoryRepo) Create(_ context.Context, e Expense) (Expense, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	e.ID = m.nextID
	m.rows[e.ID] = e
	return e, nil
}

func (m *memoryRepo) Get(_ context.Context, scope shared.Scope, id int64) (Expense, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.rows[id]
	if !ok || !m.visible(scope, e) {
		return Expense{}, ErrNotFound
	}
	return e, nil
}

func (m *memoryRepo) List(_ context.Context, scope shared.Scope, filter ListFilter) ([]Expense, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Expense
	for _, e := range m.rows {
		if m.visible(scope, e) && (filter.Category == "" || e.Category == filter.Category) {
			out = append(out, e)
		}
	}
	return out, len(out), nil
}

func (m *memoryRepo) Update(_ context.Context, scope shared.Scope, e Expense) (Expense, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.rows[e.ID]; !ok || !m.visible(scope, existing) {
		return Expense{}, ErrNotFound
	}
	m.rows[e.ID] = e
	return e, nil
}

func (m *memoryRepo) SoftDelete(_ context.Context, scope shared.Scope, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.rows[id]
	if !ok || !m.visible(scope, e) {
		return ErrNotFound
	}
	e.Removed = true
	m.rows[id] = e
	return nil
}

func newTestRouter(svc *Service, caller shared.Identity) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(shared.ContextWithIdentity(req.Context(), caller)))
		})
	})
	r.Route("/expenses", NewHandler(nil, svc).MountRoutes)
	return r
}

func TestCreateExpenseEndpoint(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil)
	router := newTestRouter(svc, shared.Identity{UserID: 1})

	body, _ := json.Marshal(map[string]any{
		"description": "Train to client",
		"amount":      42.5,
		"category":    "travel",
		"date":        time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC),
	})
	res := httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodPost, "/expenses/", bytes.NewReader(body)))
	require.Equal(t, http.StatusCreated, res.Code)

	var env struct {
		Success bool    `json:"success"`
		Data    Expense `json:"data"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&env))
	require.True(t, env.Success)
	require.True(t, decimal.RequireFromString("42.5").Equal(env.Data.Amount))
	require.Equal(t, CategoryTravel, env.Data.Category)
}

func TestCreateExpenseRejectsUnknownCategory(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil)
	router := newTestRouter(svc, shared.Identity{UserID: 1})

	body, _ := json.Marshal(map[string]any{
		"description": "Mystery",
		"amount":      10,
		"category":    "snacks",
		"date":        time.Now(),
	})
	res := httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodPost, "/expenses/", bytes.NewReader(body)))
	require.Equal(t, http.StatusBadRequest, res.Code)
	require.Contains(t, res.Body.String(), "category must be one of")
}

func TestCreateExpenseRejectsNonPositiveAmount(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil)
	_, err := svc.Create(context.Background(), shared.Identity{UserID: 1}, Input{
		Description: "Refund", Amount: decimal.NewFromInt(-5), Category: CategoryOther, Date: time.Now(),
	})
	require.Error(t, err)
}

func TestDeleteExpenseHidesIt(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	caller := shared.Identity{UserID: 1}
	e, err := svc.Create(context.Background(), caller, Input{
		Description: "Paper", Amount: decimal.NewFromInt(5), Category: CategorySupplies, Date: time.Now(),
	})
	require.NoError(t, err)

	router := newTestRouter(svc, caller)
	res := httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodDelete, "/expenses/1", nil))
	require.Equal(t, http.StatusOK, res.Code)

	res = httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/expenses/1", nil))
	require.Equal(t, http.StatusNotFound, res.Code)
	require.True(t, repo.rows[e.ID].Removed)
}
