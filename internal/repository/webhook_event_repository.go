package repository

import (
	"context"
	"fmt"
	"time"

	"donation-ledger/internal/domain/webhooks"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type webhookEventRepository struct {
	db *gorm.DB
}

func NewWebhookEventRepository(db *gorm.DB) WebhookEventRepository {
	return &webhookEventRepository{db: db}
}

func (r *webhookEventRepository) Begin(ctx context.Context, id, eventType string) (*webhooks.Event, error) {
	now := time.Now().UTC()
	ev := webhooks.Event{
		ID:         id,
		Type:       eventType,
		Status:     webhooks.StatusProcessing,
		Attempts:   1,
		ReceivedAt: now,
		UpdatedAt:  now,
	}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		Create(&ev)
	if res.Error != nil {
		return nil, fmt.Errorf("record webhook event %s: %w", id, res.Error)
	}
	if res.RowsAffected == 1 {
		return nil, nil
	}

	var previous webhooks.Event
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&previous).Error; err != nil {
		return nil, notFound(err, "webhook event", id)
	}
	if err := r.db.WithContext(ctx).Model(&webhooks.Event{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"attempts":   gorm.Expr("attempts + 1"),
			"updated_at": now,
		}).Error; err != nil {
		return nil, fmt.Errorf("bump webhook event %s: %w", id, err)
	}
	return &previous, nil
}

func (r *webhookEventRepository) Finish(ctx context.Context, id, status, errMsg string) error {
	now := time.Now().UTC()
	updates := map[string]any{
		"status":     status,
		"error":      errMsg,
		"updated_at": now,
	}
	if status == webhooks.StatusProcessed || status == webhooks.StatusIgnored {
		updates["processed_at"] = now
	}
	return r.db.WithContext(ctx).Model(&webhooks.Event{}).Where("id = ?", id).Updates(updates).Error
}
