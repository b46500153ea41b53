package users

import "time"

// User is keyed by the authenticated subject (the token's user id). StripeCustomerID is the
// customer mapping; once set it is never replaced.
type User struct {
	ID               string    `gorm:"primaryKey;size:255" json:"id" firestore:"id"`
	Email            string    `gorm:"size:320" json:"email" firestore:"email"`
	DisplayName      string    `gorm:"column:display_name" json:"display_name" firestore:"displayName"`
	StripeCustomerID *string   `gorm:"column:stripe_customer_id;uniqueIndex:idx_users_stripe_customer_id" json:"stripe_customer_id,omitempty" firestore:"stripeCustomerId"`
	CreatedAt        time.Time `json:"created_at" firestore:"createdAt"`
	UpdatedAt        time.Time `json:"updated_at" firestore:"updatedAt"`
}

// Identity is what the auth layer knows about the caller.
type Identity struct {
	UserID      string
	Email       string
	DisplayName string
	Role        string
}
