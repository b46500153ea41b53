package repository

import (
	"errors"
	"fmt"

	"donation-ledger/internal/domain/campaigns"
	"donation-ledger/internal/domain/donations"
	"donation-ledger/internal/domain/emails"
	"donation-ledger/internal/domain/users"
	"donation-ledger/internal/domain/webhooks"
	"donation-ledger/pkg/apperrors"

	"gorm.io/gorm"
)

// Models lists every table the gorm backend owns, in migration order.
func Models() []interface{} {
	return []interface{}{
		&campaigns.Campaign{},
		&campaigns.LedgerEntry{},
		&donations.Donation{},
		&users.User{},
		&emails.Event{},
		&webhooks.Event{},
	}
}

// NewGormStore wires every repository to db.
func NewGormStore(db *gorm.DB) *Store {
	return &Store{
		Donations:     NewDonationRepository(db),
		Campaigns:     NewCampaignRepository(db),
		Users:         NewUserRepository(db),
		EmailEvents:   NewEmailEventRepository(db),
		WebhookEvents: NewWebhookEventRepository(db),
	}
}

func notFound(err error, what, id string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s %s: %w", what, id, apperrors.ErrNotFound)
	}
	return err
}
