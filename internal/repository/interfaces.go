package repository

import (
	"context"

	"donation-ledger/internal/domain/campaigns"
	"donation-ledger/internal/domain/donations"
	"donation-ledger/internal/domain/emails"
	"donation-ledger/internal/domain/users"
	"donation-ledger/internal/domain/webhooks"
)

type DonationRepository interface {
	// CreateIfAbsent inserts d unless a donation with the same id exists. When it does, created is
	// false and existing holds the stored record.
	CreateIfAbsent(ctx context.Context, d *donations.Donation) (created bool, existing *donations.Donation, err error)
	GetByID(ctx context.Context, id string) (*donations.Donation, error)
}

type CampaignRepository interface {
	GetByID(ctx context.Context, id string) (*campaigns.Campaign, error)
	Upsert(ctx context.Context, c *campaigns.Campaign) error
	// SetProductIfAbsent stores productID unless the campaign already has one, and returns the
	// product id that is stored afterwards.
	SetProductIfAbsent(ctx context.Context, campaignID, productID string) (string, error)
	// ApplyLedgerEntry claims e.DonationID and increments the campaign aggregate by the entry's
	// deltas in one atomic unit. applied is false when the donation was already applied.
	ApplyLedgerEntry(ctx context.Context, e campaigns.LedgerEntry) (applied bool, err error)
}

type UserRepository interface {
	GetByID(ctx context.Context, id string) (*users.User, error)
	CreateIfAbsent(ctx context.Context, u *users.User) (bool, error)
	// SetStripeCustomerIfAbsent returns the customer id that is stored after the call, which is
	// the caller's only if no other writer got there first.
	SetStripeCustomerIfAbsent(ctx context.Context, userID, customerID string) (string, error)
}

type EmailEventRepository interface {
	Append(ctx context.Context, e *emails.Event) error
	HasSuccessfulSend(ctx context.Context, eventType, donationID, recipient string) (bool, error)
}

type WebhookEventRepository interface {
	// Begin records a delivery of the event. previous is nil on the first delivery.
	Begin(ctx context.Context, id, eventType string) (previous *webhooks.Event, err error)
	Finish(ctx context.Context, id, status, errMsg string) error
}

// Store groups the repositories a backend provides.
type Store struct {
	Donations     DonationRepository
	Campaigns     CampaignRepository
	Users         UserRepository
	EmailEvents   EmailEventRepository
	WebhookEvents WebhookEventRepository
}
