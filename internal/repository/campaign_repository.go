package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"donation-ledger/internal/domain/campaigns"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type campaignRepository struct {
	db *gorm.DB
}

func NewCampaignRepository(db *gorm.DB) CampaignRepository {
	return &campaignRepository{db: db}
}

func (r *campaignRepository) GetByID(ctx context.Context, id string) (*campaigns.Campaign, error) {
	var c campaigns.Campaign
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, notFound(err, "campaign", id)
	}
	return &c, nil
}

// Upsert only touches descriptive columns; the aggregate is left alone.
func (r *campaignRepository) Upsert(ctx context.Context, c *campaigns.Campaign) error {
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.LastUpdated = now
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"name":            c.Name,
			"organization_id": c.OrganizationID,
			"last_updated":    now,
		}),
	}).Omit("collected_amount", "donation_count", "stripe_product_id").Create(c).Error
}

func (r *campaignRepository) SetProductIfAbsent(ctx context.Context, campaignID, productID string) (string, error) {
	res := r.db.WithContext(ctx).Model(&campaigns.Campaign{}).
		Where("id = ? AND (stripe_product_id IS NULL OR stripe_product_id = '')", campaignID).
		Updates(map[string]any{
			"stripe_product_id": productID,
			"last_updated":      time.Now().UTC(),
		})
	if res.Error != nil {
		return "", fmt.Errorf("set product for campaign %s: %w", campaignID, res.Error)
	}
	if res.RowsAffected == 1 {
		return productID, nil
	}

	c, err := r.GetByID(ctx, campaignID)
	if err != nil {
		return "", err
	}
	if c.StripeProductID == nil || *c.StripeProductID == "" {
		return "", errors.New("campaign product id not stored")
	}
	return *c.StripeProductID, nil
}

func (r *campaignRepository) ApplyLedgerEntry(ctx context.Context, e campaigns.LedgerEntry) (bool, error) {
	if e.AppliedAt.IsZero() {
		e.AppliedAt = time.Now().UTC()
	}

	applied := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		claim := tx.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "donation_id"}}, DoNothing: true}).
			Create(&e)
		if claim.Error != nil {
			return claim.Error
		}
		if claim.RowsAffected == 0 {
			return nil
		}

		// The campaign row may not exist yet; the insert seeds it with the delta and the conflict
		// branch adds the delta to whatever is stored.
		seed := campaigns.Campaign{
			ID:              e.CampaignID,
			CollectedAmount: e.AmountDelta,
			DonationCount:   e.CountDelta,
			LastUpdated:     e.AppliedAt,
			CreatedAt:       e.AppliedAt,
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"collected_amount": gorm.Expr("campaigns.collected_amount + ?", e.AmountDelta),
				"donation_count":   gorm.Expr("campaigns.donation_count + ?", e.CountDelta),
				"last_updated":     e.AppliedAt,
			}),
		}).Create(&seed).Error; err != nil {
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
