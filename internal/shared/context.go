package shared

import "context"

// Role names carried in access tokens.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Identity is the authenticated caller every core operation acts on behalf of.
type Identity struct {
	UserID int64  `json:"userId"`
	Email  string `json:"email"`
	Role   string `json:"role"`
}

// Valid reports whether the identity names a user.
func (i Identity) Valid() bool {
	return i.UserID > 0
}

// IsAdmin reports whether the identity carries the admin role.
func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

// Require returns ErrMissingIdentity for an empty identity.
func (i Identity) Require() error {
	if !i.Valid() {
		return ErrMissingIdentity
	}
	return nil
}

type identityContextKey struct{}

// ContextWithIdentity stores the caller in context. Only HTTP middleware should
// call this; services receive the Identity as an explicit parameter.
func ContextWithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// IdentityFromContext extracts the caller from context.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(Identity)
	return id, ok && id.Valid()
}
