package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/ledgerdesk/ledgerdesk/internal/platform/httpx"
	"github.com/ledgerdesk/ledgerdesk/internal/shared"
)

// Service wraps authentication business rules.
type Service struct {
	repo     Repository
	tokens   *TokenIssuer
	denylist *Denylist
	validate *validator.Validate
	logger   *slog.Logger
	hashCost int
}

// NewService constructs a new Service.
func NewService(repo Repository, tokens *TokenIssuer, denylist *Denylist, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     repo,
		tokens:   tokens,
		denylist: denylist,
		validate: validator.New(),
		logger:   logger,
		hashCost: bcrypt.DefaultCost,
	}
}

// Register creates an account and signs it in. The first account becomes admin.
func (s *Service) Register(ctx context.Context, input RegisterInput) (Session, error) {
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	input.Name = strings.TrimSpace(input.Name)
	if err := s.validate.Struct(input); err != nil {
		return Session{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), s.hashCost)
	if err != nil {
		return Session{}, fmt.Errorf("hash password: %w", err)
	}
	count, err := s.repo.CountUsers(ctx)
	if err != nil {
		return Session{}, err
	}
	role := shared.RoleUser
	if count == 0 {
		role = shared.RoleAdmin
	}
	user, err := s.repo.Create(ctx, User{Name: input.Name, Email: input.Email, PasswordHash: string(hash), Role: role})
	if err != nil {
		return Session{}, err
	}
	s.logger.Info("user registered", slog.Int64("user_id", user.ID), slog.String("role", role))
	return s.issue(user)
}

// Login validates email/password credentials and issues a token.
func (s *Service) Login(ctx context.Context, input LoginInput) (Session, error) {
	if err := s.validate.Struct(input); err != nil {
		return Session{}, err
	}
	user, err := s.repo.FindByEmail(ctx, input.Email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return Session{}, shared.ErrInvalidCredentials
		}
		return Session{}, err
	}
	if !user.IsActive {
		return Session{}, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		return Session{}, shared.ErrInvalidCredentials
	}
	return s.issue(user)
}

func (s *Service) issue(user User) (Session, error) {
	token, claims, err := s.tokens.Issue(user)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, ExpiresAt: claims.ExpiresAt.Time, User: user}, nil
}

// Authenticate verifies a bearer token and returns the caller it names.
func (s *Service) Authenticate(ctx context.Context, raw string) (shared.Identity, Claims, error) {
	claims, err := s.tokens.Parse(raw)
	if err != nil {
		return shared.Identity{}, Claims{}, err
	}
	if s.denylist != nil {
		revoked, err := s.denylist.IsRevoked(ctx, claims.ID)
		if err != nil {
			return shared.Identity{}, Claims{}, fmt.Errorf("check token denylist: %w", err)
		}
		if revoked {
			return shared.Identity{}, Claims{}, ErrInvalidToken
		}
	}
	return claims.Identity(), claims, nil
}

// Logout revokes the presented token.
func (s *Service) Logout(ctx context.Context, raw string) error {
	claims, err := s.tokens.Parse(raw)
	if err != nil {
		return nil
	}
	if s.denylist == nil {
		return nil
	}
	return s.denylist.Revoke(ctx, claims.ID, claims.ExpiresAt.Time)
}

// Me returns the account for the caller.
func (s *Service) Me(ctx context.Context, caller shared.Identity) (User, error) {
	if err := caller.Require(); err != nil {
		return User{}, err
	}
	return s.repo.FindByID(ctx, caller.UserID)
}

// ListUsers returns all accounts. Admin only.
func (s *Service) ListUsers(ctx context.Context, caller shared.Identity) ([]User, error) {
	if err := caller.Require(); err != nil {
		return nil, err
	}
	if !caller.IsAdmin() {
		return nil, httpx.ErrForbidden
	}
	return s.repo.ListUsers(ctx)
}
