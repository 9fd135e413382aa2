package shared

import (
	"fmt"

	"github.com/ledgerdesk/ledgerdesk/internal/platform/httpx"
)

var (
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = fmt.Errorf("invalid credentials: %w", httpx.ErrUnauthorized)
	// ErrMissingIdentity is returned when a core operation runs without a caller.
	ErrMissingIdentity = fmt.Errorf("caller identity required: %w", httpx.ErrUnauthorized)
)
