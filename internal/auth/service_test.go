package auth_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/ledgerdesk/ledgerdesk/internal/auth"
	"github.com/ledgerdesk/ledgerdesk/internal/platform/httpx"
	"github.com/ledgerdesk/ledgerdesk/internal/shared"
	_ "github.com/ledgerdesk/ledgerdesk/internal/testing/guard"
)

type memoryRepo struct {
	mu     sync.Mutex
	nextID int64
	users  []auth.User
}

func (m *memoryRepo) FindByEmail(_ context.Context, email string) (auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return auth.User{}, auth.ErrUserNotFound
}

func (m *memoryRepo) FindByID(_ context.Context, id int64) (auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ID == id {
			return u, nil
		}
	}
	return auth.User{}, auth.ErrUserNotFound
}

func (m *memoryRepo) Create(_ context.Context, user auth.User) (auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, user.Email) {
			return auth.User{}, auth.ErrEmailTaken
		}
	}
	m.nextID++
	user.ID = m.nextID
	user.IsActive = true
	user.CreatedAt = time.Now()
	m.users = append(m.users, user)
	return user, nil
}

func (m *memoryRepo) CountUsers(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.users), nil
}

func (m *memoryRepo) ListUsers(_ context.Context) ([]auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]auth.User(nil), m.users...), nil
}

func newTestService(t *testing.T) (*auth.Service, *memoryRepo) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	repo := &memoryRepo{}
	svc := auth.NewService(repo, auth.NewTokenIssuer("unit-test-secret", time.Hour), auth.NewDenylist(client), nil)
	return svc, repo
}

func TestRegisterFirstUserIsAdmin(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.Register(ctx, auth.RegisterInput{Name: "Ada", Email: "Ada@Example.com", Password: "password123"})
	require.NoError(t, err)
	require.Equal(t, shared.RoleAdmin, first.User.Role)
	require.Equal(t, "ada@example.com", first.User.Email)
	require.NotEmpty(t, first.Token)

	second, err := svc.Register(ctx, auth.RegisterInput{Name: "Bob", Email: "bob@example.com", Password: "password123"})
	require.NoError(t, err)
	require.Equal(t, shared.RoleUser, second.User.Role)

	_, err = svc.Register(ctx, auth.RegisterInput{Name: "Ada", Email: "ada@example.com", Password: "password123"})
	require.ErrorIs(t, err, httpx.ErrDuplicate)
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Register(context.Background(), auth.RegisterInput{Name: "Ada", Email: "not-an-email", Password: "short"})
	require.Error(t, err)
}

func TestLoginChecksPassword(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.Register(ctx, auth.RegisterInput{Name: "Ada", Email: "ada@example.com", Password: "password123"})
	require.NoError(t, err)

	_, err = svc.Login(ctx, auth.LoginInput{Email: "ada@example.com", Password: "wrongpass"})
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
	require.ErrorIs(t, err, httpx.ErrUnauthorized)

	_, err = svc.Login(ctx, auth.LoginInput{Email: "nobody@example.com", Password: "password123"})
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)

	session, err := svc.Login(ctx, auth.LoginInput{Email: "ada@example.com", Password: "password123"})
	require.NoError(t, err)

	identity, _, err := svc.Authenticate(ctx, session.Token)
	require.NoError(t, err)
	require.Equal(t, session.User.ID, identity.UserID)
	require.Equal(t, shared.RoleAdmin, identity.Role)
}

func TestLogoutRevokesToken(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	session, err := svc.Register(ctx, auth.RegisterInput{Name: "Ada", Email: "ada@example.com", Password: "password123"})
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, session.Token))

	_, _, err = svc.Authenticate(ctx, session.Token)
	require.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestListUsersRequiresAdmin(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	admin, err := svc.Register(ctx, auth.RegisterInput{Name: "Ada", Email: "ada@example.com", Password: "password123"})
	require.NoError(t, err)
	user, err := svc.Register(ctx, auth.RegisterInput{Name: "Bob", Email: "bob@example.com", Password: "password123"})
	require.NoError(t, err)

	_, err = svc.ListUsers(ctx, user.User.Identity())
	require.ErrorIs(t, err, httpx.ErrForbidden)

	users, err := svc.ListUsers(ctx, admin.User.Identity())
	require.NoError(t, err)
	require.Len(t, users, 2)
}

func TestTokenIssuerRejectsTampering(t *testing.T) {
	issuer := auth.NewTokenIssuer("secret-a", time.Hour)
	other := auth.NewTokenIssuer("secret-b", time.Hour)
	token, _, err := issuer.Issue(auth.User{ID: 7, Email: "x@example.com", Role: shared.RoleUser})
	require.NoError(t, err)

	_, err = other.Parse(token)
	require.ErrorIs(t, err, auth.ErrInvalidToken)

	claims, err := issuer.Parse(token)
	require.NoError(t, err)
	require.Equal(t, int64(7), claims.Identity().UserID)
}
