package repository

import (
	"context"
	"time"

	"donation-ledger/internal/domain/emails"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type emailEventRepository struct {
	db *gorm.DB
}

func NewEmailEventRepository(db *gorm.DB) EmailEventRepository {
	return &emailEventRepository{db: db}
}

func (r *emailEventRepository) Append(ctx context.Context, e *emails.Event) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	return r.db.WithContext(ctx).Create(e).Error
}

func (r *emailEventRepository) HasSuccessfulSend(ctx context.Context, eventType, donationID, recipient string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&emails.Event{}).
		Where("event_type = ? AND donation_id = ? AND recipient = ? AND status = ?",
			eventType, donationID, recipient, emails.StatusSuccess).
		Limit(1).
		Count(&count).Error
	return count > 0, err
}
