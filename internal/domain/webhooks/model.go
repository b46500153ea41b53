package webhooks

import "time"

const (
	StatusProcessing = "processing"
	StatusProcessed  = "processed"
	StatusIgnored    = "ignored"
	StatusFailed     = "failed"
)

// Event is the delivery log for verified provider events, keyed by the provider event id.
type Event struct {
	ID          string     `gorm:"primaryKey;size:255" json:"id" firestore:"id"`
	Type        string     `gorm:"size:100;not null;index" json:"type" firestore:"type"`
	Status      string     `gorm:"size:20;not null;index" json:"status" firestore:"status"`
	Attempts    int        `gorm:"not null;default:0" json:"attempts" firestore:"attempts"`
	Error       string     `gorm:"type:text" json:"error,omitempty" firestore:"error"`
	ReceivedAt  time.Time  `gorm:"column:received_at" json:"received_at" firestore:"receivedAt"`
	ProcessedAt *time.Time `gorm:"column:processed_at" json:"processed_at,omitempty" firestore:"processedAt"`
	UpdatedAt   time.Time  `json:"updated_at" firestore:"updatedAt"`
}

func (Event) TableName() string { return "webhook_events" }
