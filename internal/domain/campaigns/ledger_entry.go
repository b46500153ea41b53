package campaigns

import "time"

// LedgerEntry records that a donation's delta has been applied to its campaign. The donation id
// is the primary key, so an entry can exist at most once.
type LedgerEntry struct {
	DonationID  string    `gorm:"primaryKey;size:255" json:"donation_id" firestore:"donationId"`
	CampaignID  string    `gorm:"column:campaign_id;size:255;not null;index" json:"campaign_id" firestore:"campaignId"`
	AmountDelta int64     `gorm:"column:amount_delta;not null" json:"amount_delta" firestore:"amountDelta"`
	CountDelta  int64     `gorm:"column:count_delta;not null" json:"count_delta" firestore:"countDelta"`
	AppliedAt   time.Time `gorm:"column:applied_at" json:"applied_at" firestore:"appliedAt"`
}
