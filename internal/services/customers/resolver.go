package customers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"donation-ledger/internal/domain/users"
	"donation-ledger/internal/infra/stripe"
	"donation-ledger/internal/repository"
	"donation-ledger/pkg/apperrors"
	"donation-ledger/pkg/logger"

	"go.uber.org/zap"
)

// Resolver maps an authenticated user to their provider customer, creating one on first use.
type Resolver struct {
	users           repository.UserRepository
	gateway         stripe.Gateway
	log             *logger.Logger
	storeTimeout    time.Duration
	providerTimeout time.Duration
}

func NewResolver(userRepo repository.UserRepository, gateway stripe.Gateway, log *logger.Logger, storeTimeout, providerTimeout time.Duration) *Resolver {
	return &Resolver{
		users:           userRepo,
		gateway:         gateway,
		log:             log,
		storeTimeout:    storeTimeout,
		providerTimeout: providerTimeout,
	}
}

// Resolve returns the customer id stored for the user. Concurrent first calls for one user may
// each reach the provider; the first mapping written wins and every caller gets that one.
func (r *Resolver) Resolve(ctx context.Context, id users.Identity) (string, error) {
	userID := strings.TrimSpace(id.UserID)
	if userID == "" {
		return "", apperrors.ErrUnauthorized
	}

	user, err := r.getUser(ctx, userID)
	switch {
	case err == nil:
		if user.StripeCustomerID != nil && *user.StripeCustomerID != "" {
			return *user.StripeCustomerID, nil
		}
	case errors.Is(err, apperrors.ErrNotFound):
		user, err = r.createUser(ctx, id)
		if err != nil {
			return "", err
		}
	default:
		return "", fmt.Errorf("load user %s: %w", userID, err)
	}

	email := user.Email
	if email == "" {
		email = id.Email
	}
	name := user.DisplayName
	if name == "" {
		name = id.DisplayName
	}

	customerID, err := r.createCustomer(ctx, stripe.CustomerInput{
		UserID:         userID,
		Email:          email,
		Name:           name,
		IdempotencyKey: "customer-" + userID,
	})
	if err != nil {
		return "", err
	}

	storeCtx, cancel := context.WithTimeout(ctx, r.storeTimeout)
	defer cancel()
	stored, err := r.users.SetStripeCustomerIfAbsent(storeCtx, userID, customerID)
	if err != nil {
		return "", fmt.Errorf("save customer mapping for %s: %w", userID, err)
	}
	if stored != customerID {
		r.log.WithContext(ctx).Warn("customer mapping already set by a concurrent request",
			zap.String("user_id", userID),
			zap.String("kept", stored),
			zap.String("orphaned", customerID))
	} else {
		r.log.WithContext(ctx).Info("stripe customer created", zap.String("user_id", userID), zap.String("customer_id", customerID))
	}
	return stored, nil
}

func (r *Resolver) getUser(ctx context.Context, userID string) (*users.User, error) {
	ctx, cancel := context.WithTimeout(ctx, r.storeTimeout)
	defer cancel()
	return r.users.GetByID(ctx, userID)
}

func (r *Resolver) createUser(ctx context.Context, id users.Identity) (*users.User, error) {
	ctx, cancel := context.WithTimeout(ctx, r.storeTimeout)
	defer cancel()

	u := &users.User{
		ID:          strings.TrimSpace(id.UserID),
		Email:       strings.ToLower(strings.TrimSpace(id.Email)),
		DisplayName: strings.TrimSpace(id.DisplayName),
	}
	if _, err := r.users.CreateIfAbsent(ctx, u); err != nil {
		return nil, fmt.Errorf("create user %s: %w", u.ID, err)
	}
	// Another request may have created the row first; read back what is stored.
	stored, err := r.users.GetByID(ctx, u.ID)
	if err != nil {
		return nil, fmt.Errorf("load user %s: %w", u.ID, err)
	}
	return stored, nil
}

func (r *Resolver) createCustomer(ctx context.Context, in stripe.CustomerInput) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.providerTimeout)
	defer cancel()
	customerID, err := r.gateway.CreateCustomer(ctx, in)
	if err != nil {
		return "", fmt.Errorf("%w: %v", apperrors.ErrUpstream, err)
	}
	if customerID == "" {
		return "", fmt.Errorf("%w: provider returned an empty customer id", apperrors.ErrUpstream)
	}
	return customerID, nil
}
