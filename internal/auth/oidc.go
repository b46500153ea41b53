package auth

import (
	"context"
	"fmt"

	"donation-ledger/internal/domain/users"
	"donation-ledger/pkg/apperrors"

	"github.com/coreos/go-oidc/v3/oidc"
)

// OIDCVerifier accepts ID tokens from an OpenID Connect issuer such as Google or Firebase.
type OIDCVerifier struct {
	verifier *oidc.IDTokenVerifier
}

// NewOIDCVerifier discovers the issuer's signing keys. audience is the expected client id.
func NewOIDCVerifier(ctx context.Context, issuer, audience string) (*OIDCVerifier, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("init oidc provider %s: %w", issuer, err)
	}
	return &OIDCVerifier{verifier: provider.Verifier(oidcConfig(audience))}, nil
}

// NewOIDCVerifierWithKeys skips discovery and checks signatures against keys.
func NewOIDCVerifierWithKeys(issuer, audience string, keys oidc.KeySet) *OIDCVerifier {
	return &OIDCVerifier{verifier: oidc.NewVerifier(issuer, keys, oidcConfig(audience))}
}

func oidcConfig(audience string) *oidc.Config {
	if audience == "" {
		return &oidc.Config{SkipClientIDCheck: true}
	}
	return &oidc.Config{ClientID: audience}
}

type idClaims struct {
	Sub   string `json:"sub"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

func (v *OIDCVerifier) Verify(ctx context.Context, rawToken string) (*users.Identity, error) {
	token, err := v.verifier.Verify(ctx, rawToken)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid id token", apperrors.ErrUnauthorized)
	}

	var claims idClaims
	if err := token.Claims(&claims); err != nil {
		return nil, fmt.Errorf("%w: failed to decode token claims", apperrors.ErrUnauthorized)
	}
	if claims.Sub == "" {
		return nil, fmt.Errorf("%w: token missing subject", apperrors.ErrUnauthorized)
	}

	return &users.Identity{
		UserID:      claims.Sub,
		Email:       claims.Email,
		DisplayName: claims.Name,
		Role:        claims.Role,
	}, nil
}
