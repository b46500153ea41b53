package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"donation-ledger/internal/domain/users"
	"donation-ledger/pkg/apperrors"

	"github.com/golang-jwt/jwt/v5"
)

// HMACVerifier accepts HS256 app tokens signed with the shared JWT secret.
type HMACVerifier struct {
	secret []byte
}

func NewHMACVerifier(secret string) (*HMACVerifier, error) {
	if secret == "" {
		return nil, errors.New("JWT secret not configured")
	}
	return &HMACVerifier{secret: []byte(secret)}, nil
}

func (v *HMACVerifier) Verify(_ context.Context, rawToken string) (*users.Identity, error) {
	token, err := jwt.Parse(rawToken, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: invalid or expired token", apperrors.ErrUnauthorized)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("%w: invalid token claims", apperrors.ErrUnauthorized)
	}

	id := &users.Identity{
		UserID:      userID(claims),
		Email:       stringClaim(claims, "email"),
		DisplayName: stringClaim(claims, "name"),
		Role:        stringClaim(claims, "role"),
	}
	if id.UserID == "" {
		return nil, fmt.Errorf("%w: token has no subject", apperrors.ErrUnauthorized)
	}
	return id, nil
}

// IssueToken signs an app token for id, valid for ttl.
func (v *HMACVerifier) IssueToken(id users.Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": id.UserID,
		"email":   id.Email,
		"name":    id.DisplayName,
		"role":    id.Role,
		"iat":     now.Unix(),
		"exp":     now.Add(ttl).Unix(),
	})
	return t.SignedString(v.secret)
}

// userID reads user_id, which older tokens carry as a number, falling back to sub.
func userID(claims jwt.MapClaims) string {
	switch v := claims["user_id"].(type) {
	case string:
		if v != "" {
			return v
		}
	case float64:
		return strconv.FormatInt(int64(v), 10)
	}
	return stringClaim(claims, "sub")
}

func stringClaim(claims jwt.MapClaims, key string) string {
	s, _ := claims[key].(string)
	return s
}
