package emails

import "time"

const (
	EventTypeThankYou = "donation_thank_you"

	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Event is one row of the append-only email audit trail.
type Event struct {
	ID                string    `gorm:"primaryKey;size:36" json:"id" firestore:"id"`
	EventType         string    `gorm:"column:event_type;size:50;not null;index:idx_email_events_dedup,priority:1" json:"event_type" firestore:"eventType"`
	DonationID        string    `gorm:"column:donation_id;size:255;index:idx_email_events_dedup,priority:2" json:"donation_id" firestore:"donationId"`
	Recipient         string    `gorm:"size:320;not null;index:idx_email_events_dedup,priority:3" json:"recipient" firestore:"recipient"`
	Status            string    `gorm:"size:20;not null;index:idx_email_events_dedup,priority:4" json:"status" firestore:"status"`
	OrganizationID    string    `gorm:"column:organization_id;size:255" json:"organization_id" firestore:"organizationId"`
	ProviderMessageID string    `gorm:"column:provider_message_id" json:"provider_message_id" firestore:"providerMessageId"`
	ErrorMessage      string    `gorm:"column:error_message;type:text" json:"error_message,omitempty" firestore:"errorMessage"`
	CreatedAt         time.Time `json:"created_at" firestore:"createdAt"`
}

func (Event) TableName() string { return "email_events" }
