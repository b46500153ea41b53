package campaigns

import "time"

// Campaign carries the fundraising aggregate. CollectedAmount and DonationCount are only ever
// changed through an atomic increment, never by writing back a value that was read.
type Campaign struct {
	ID              string    `gorm:"primaryKey;size:255" json:"id" firestore:"id"`
	Name            string    `json:"name" firestore:"name"`
	OrganizationID  string    `gorm:"column:organization_id;size:255;index" json:"organization_id" firestore:"organizationId"`
	CollectedAmount int64     `gorm:"column:collected_amount;not null;default:0" json:"collected_amount" firestore:"collectedAmount"`
	DonationCount   int64     `gorm:"column:donation_count;not null;default:0" json:"donation_count" firestore:"donationCount"`
	StripeProductID *string   `gorm:"column:stripe_product_id;size:255" json:"stripe_product_id,omitempty" firestore:"stripeProductId"`
	LastUpdated     time.Time `gorm:"column:last_updated" json:"last_updated" firestore:"lastUpdated"`
	CreatedAt       time.Time `json:"created_at" firestore:"createdAt"`
}
