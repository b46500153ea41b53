package repository

import (
	"context"
	"fmt"

	"donation-ledger/internal/domain/donations"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type donationRepository struct {
	db *gorm.DB
}

func NewDonationRepository(db *gorm.DB) DonationRepository {
	return &donationRepository{db: db}
}

func (r *donationRepository) CreateIfAbsent(ctx context.Context, d *donations.Donation) (bool, *donations.Donation, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		Create(d)
	if res.Error != nil {
		return false, nil, fmt.Errorf("insert donation %s: %w", d.ID, res.Error)
	}
	if res.RowsAffected == 1 {
		return true, nil, nil
	}

	existing, err := r.GetByID(ctx, d.ID)
	if err != nil {
		return false, nil, err
	}
	return false, existing, nil
}

func (r *donationRepository) GetByID(ctx context.Context, id string) (*donations.Donation, error) {
	var d donations.Donation
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&d).Error; err != nil {
		return nil, notFound(err, "donation", id)
	}
	return &d, nil
}
