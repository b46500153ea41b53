// Package docstore implements the repositories on Cloud Firestore. Conditional writes use
// DocumentRef.Create, which fails with AlreadyExists, and aggregates use firestore.Increment.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"donation-ledger/internal/domain/campaigns"
	"donation-ledger/internal/domain/donations"
	"donation-ledger/internal/domain/emails"
	"donation-ledger/internal/domain/users"
	"donation-ledger/internal/domain/webhooks"
	"donation-ledger/internal/repository"
	"donation-ledger/pkg/apperrors"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	colDonations     = "donations"
	colCampaigns     = "campaigns"
	colLedgerEntries = "ledgerEntries"
	colUsers         = "users"
	colEmailEvents   = "emailEvents"
	colWebhookEvents = "webhookEvents"
)

func NewStore(client *firestore.Client) *repository.Store {
	return &repository.Store{
		Donations:     &donationRepository{client: client},
		Campaigns:     &campaignRepository{client: client},
		Users:         &userRepository{client: client},
		EmailEvents:   &emailEventRepository{client: client},
		WebhookEvents: &webhookEventRepository{client: client},
	}
}

func isNotFound(err error) bool     { return status.Code(err) == codes.NotFound }
func isAlreadyExists(err error) bool { return status.Code(err) == codes.AlreadyExists }

func get[T any](ctx context.Context, ref *firestore.DocumentRef, what string) (*T, error) {
	snap, err := ref.Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%s %s: %w", what, ref.ID, apperrors.ErrNotFound)
		}
		return nil, err
	}
	var v T
	if err := snap.DataTo(&v); err != nil {
		return nil, fmt.Errorf("decode %s %s: %w", what, ref.ID, err)
	}
	return &v, nil
}

// --- donations ---

type donationRepository struct {
	client *firestore.Client
}

func (r *donationRepository) CreateIfAbsent(ctx context.Context, d *donations.Donation) (bool, *donations.Donation, error) {
	ref := r.client.Collection(colDonations).Doc(d.ID)
	if _, err := ref.Create(ctx, d); err != nil {
		if !isAlreadyExists(err) {
			return false, nil, fmt.Errorf("create donation %s: %w", d.ID, err)
		}
		existing, err := get[donations.Donation](ctx, ref, "donation")
		if err != nil {
			return false, nil, err
		}
		return false, existing, nil
	}
	return true, nil, nil
}

func (r *donationRepository) GetByID(ctx context.Context, id string) (*donations.Donation, error) {
	return get[donations.Donation](ctx, r.client.Collection(colDonations).Doc(id), "donation")
}

// --- campaigns ---

type campaignRepository struct {
	client *firestore.Client
}

func (r *campaignRepository) GetByID(ctx context.Context, id string) (*campaigns.Campaign, error) {
	return get[campaigns.Campaign](ctx, r.client.Collection(colCampaigns).Doc(id), "campaign")
}

func (r *campaignRepository) Upsert(ctx context.Context, c *campaigns.Campaign) error {
	now := time.Now().UTC()
	_, err := r.client.Collection(colCampaigns).Doc(c.ID).Set(ctx, map[string]interface{}{
		"id":             c.ID,
		"name":           c.Name,
		"organizationId": c.OrganizationID,
		"lastUpdated":    now,
	}, firestore.MergeAll)
	return err
}

func (r *campaignRepository) SetProductIfAbsent(ctx context.Context, campaignID, productID string) (string, error) {
	ref := r.client.Collection(colCampaigns).Doc(campaignID)
	stored := productID
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			if isNotFound(err) {
				return fmt.Errorf("campaign %s: %w", campaignID, apperrors.ErrNotFound)
			}
			return err
		}
		var c campaigns.Campaign
		if err := snap.DataTo(&c); err != nil {
			return err
		}
		if c.StripeProductID != nil && *c.StripeProductID != "" {
			stored = *c.StripeProductID
			return nil
		}
		stored = productID
		return tx.Update(ref, []firestore.Update{
			{Path: "stripeProductId", Value: productID},
			{Path: "lastUpdated", Value: time.Now().UTC()},
		})
	})
	if err != nil {
		return "", err
	}
	return stored, nil
}

func (r *campaignRepository) ApplyLedgerEntry(ctx context.Context, e campaigns.LedgerEntry) (bool, error) {
	if e.AppliedAt.IsZero() {
		e.AppliedAt = time.Now().UTC()
	}
	entryRef := r.client.Collection(colLedgerEntries).Doc(e.DonationID)
	campaignRef := r.client.Collection(colCampaigns).Doc(e.CampaignID)

	applied := false
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		applied = false
		if _, err := tx.Get(entryRef); err == nil {
			return nil
		} else if !isNotFound(err) {
			return err
		}
		if err := tx.Create(entryRef, e); err != nil {
			return err
		}
		if err := tx.Set(campaignRef, map[string]interface{}{
			"id":              e.CampaignID,
			"collectedAmount": firestore.Increment(e.AmountDelta),
			"donationCount":   firestore.Increment(e.CountDelta),
			"lastUpdated":     e.AppliedAt,
		}, firestore.MergeAll); err != nil {
			return err
		}
		applied = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("apply ledger entry for donation %s: %w", e.DonationID, err)
	}
	return applied, nil
}

// --- users ---

type userRepository struct {
	client *firestore.Client
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*users.User, error) {
	return get[users.User](ctx, r.client.Collection(colUsers).Doc(id), "user")
}

func (r *userRepository) CreateIfAbsent(ctx context.Context, u *users.User) (bool, error) {
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	if _, err := r.client.Collection(colUsers).Doc(u.ID).Create(ctx, u); err != nil {
		if isAlreadyExists(err) {
			return false, nil
		}
		return false, fmt.Errorf("create user %s: %w", u.ID, err)
	}
	return true, nil
}

func (r *userRepository) SetStripeCustomerIfAbsent(ctx context.Context, userID, customerID string) (string, error) {
	ref := r.client.Collection(colUsers).Doc(userID)
	stored := customerID
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			if isNotFound(err) {
				return fmt.Errorf("user %s: %w", userID, apperrors.ErrNotFound)
			}
			return err
		}
		var u users.User
		if err := snap.DataTo(&u); err != nil {
			return err
		}
		if u.StripeCustomerID != nil && *u.StripeCustomerID != "" {
			stored = *u.StripeCustomerID
			return nil
		}
		stored = customerID
		return tx.Update(ref, []firestore.Update{
			{Path: "stripeCustomerId", Value: customerID},
			{Path: "updatedAt", Value: time.Now().UTC()},
		})
	})
	if err != nil {
		return "", err
	}
	return stored, nil
}

// --- email audit ---

type emailEventRepository struct {
	client *firestore.Client
}

func (r *emailEventRepository) Append(ctx context.Context, e *emails.Event) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := r.client.Collection(colEmailEvents).Doc(e.ID).Create(ctx, e)
	return err
}

func (r *emailEventRepository) HasSuccessfulSend(ctx context.Context, eventType, donationID, recipient string) (bool, error) {
	it := r.client.Collection(colEmailEvents).
		Where("eventType", "==", eventType).
		Where("status", "==", emails.StatusSuccess).
		Where("donationId", "==", donationID).
		Where("recipient", "==", recipient).
		Limit(1).
		Documents(ctx)
	defer it.Stop()

	_, err := it.Next()
	if errors.Is(err, iterator.Done) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// --- webhook delivery log ---

type webhookEventRepository struct {
	client *firestore.Client
}

func (r *webhookEventRepository) Begin(ctx context.Context, id, eventType string) (*webhooks.Event, error) {
	ref := r.client.Collection(colWebhookEvents).Doc(id)
	var previous *webhooks.Event
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		previous = nil
		now := time.Now().UTC()
		snap, err := tx.Get(ref)
		if err != nil {
			if !isNotFound(err) {
				return err
			}
			return tx.Create(ref, webhooks.Event{
				ID:         id,
				Type:       eventType,
				Status:     webhooks.StatusProcessing,
				Attempts:   1,
				ReceivedAt: now,
				UpdatedAt:  now,
			})
		}
		var ev webhooks.Event
		if err := snap.DataTo(&ev); err != nil {
			return err
		}
		previous = &ev
		return tx.Update(ref, []firestore.Update{
			{Path: "attempts", Value: firestore.Increment(1)},
			{Path: "updatedAt", Value: now},
		})
	})
	if err != nil {
		return nil, fmt.Errorf("record webhook event %s: %w", id, err)
	}
	return previous, nil
}

func (r *webhookEventRepository) Finish(ctx context.Context, id, status, errMsg string) error {
	now := time.Now().UTC()
	fields := map[string]interface{}{
		"status":    status,
		"error":     errMsg,
		"updatedAt": now,
	}
	if status == webhooks.StatusProcessed || status == webhooks.StatusIgnored {
		fields["processedAt"] = now
	}
	_, err := r.client.Collection(colWebhookEvents).Doc(id).Set(ctx, fields, firestore.MergeAll)
	return err
}
