package auth

import (
	"context"

	"donation-ledger/internal/domain/users"
)

const RoleAdmin = "admin"

// Verifier turns a bearer token into the caller's identity.
type Verifier interface {
	Verify(ctx context.Context, rawToken string) (*users.Identity, error)
}
