package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"donation-ledger/internal/domain/users"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*users.User, error) {
	var u users.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, notFound(err, "user", id)
	}
	return &u, nil
}

func (r *userRepository) CreateIfAbsent(ctx context.Context, u *users.User) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		Create(u)
	if res.Error != nil {
		return false, fmt.Errorf("insert user %s: %w", u.ID, res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *userRepository) SetStripeCustomerIfAbsent(ctx context.Context, userID, customerID string) (string, error) {
	res := r.db.WithContext(ctx).Model(&users.User{}).
		Where("id = ? AND (stripe_customer_id IS NULL OR stripe_customer_id = '')", userID).
		Updates(map[string]any{
			"stripe_customer_id": customerID,
			"updated_at":         time.Now().UTC(),
		})
	if res.Error != nil {
		return "", fmt.Errorf("store stripe customer for user %s: %w", userID, res.Error)
	}
	if res.RowsAffected == 1 {
		return customerID, nil
	}

	u, err := r.GetByID(ctx, userID)
	if err != nil {
		return "", err
	}
	if u.StripeCustomerID == nil || *u.StripeCustomerID == "" {
		return "", errors.New("stripe customer id not stored")
	}
	return *u.StripeCustomerID, nil
}
