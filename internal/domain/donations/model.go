package donations

import "time"

const (
	KindOneTime   = "one_time"
	KindRecurring = "recurring"

	StatusSucceeded = "succeeded"
)

// Donation is keyed by the provider's payment intent (or invoice) id, which is also the
// idempotency key for webhook re-delivery. Rows are written once and never updated.
type Donation struct {
	ID               string    `gorm:"primaryKey;size:255" json:"id" firestore:"id"`
	CampaignID       string    `gorm:"column:campaign_id;size:255;not null;index" json:"campaign_id" firestore:"campaignId"`
	Amount           int64     `gorm:"not null" json:"amount" firestore:"amount"`
	Currency         string    `gorm:"size:3;not null" json:"currency" firestore:"currency"`
	DonorID          *string   `gorm:"column:donor_id;size:255;index" json:"donor_id,omitempty" firestore:"donorId"`
	DonorName        string    `gorm:"column:donor_name" json:"donor_name" firestore:"donorName"`
	IsGiftAid        bool      `gorm:"column:is_gift_aid;not null;default:false" json:"is_gift_aid" firestore:"isGiftAid"`
	Platform         string    `gorm:"size:50" json:"platform" firestore:"platform"`
	PaymentStatus    string    `gorm:"column:payment_status;size:30;not null" json:"payment_status" firestore:"paymentStatus"`
	Kind             string    `gorm:"size:20;not null;default:'one_time'" json:"kind" firestore:"kind"`
	SubscriptionID   *string   `gorm:"column:subscription_id;size:255;index" json:"subscription_id,omitempty" firestore:"subscriptionId"`
	StripeCustomerID *string   `gorm:"column:stripe_customer_id;size:255" json:"stripe_customer_id,omitempty" firestore:"stripeCustomerId"`
	CreatedAt        time.Time `json:"created_at" firestore:"createdAt"`
}
