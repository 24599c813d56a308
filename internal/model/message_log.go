package model

import "time"

// MessageLog is the immutable record of one provider send attempt.
// Rows are only ever inserted; delivery reports stamp delivered_at/read_at
// on the row matching the provider message id, nothing else is rewritten.
// A recipient that was retried has one row per attempt.
type MessageLog struct {
	ID                int        `db:"id" json:"id"`
	CompanyID         int        `db:"company_id" json:"company_id"`
	CampaignID        int        `db:"campaign_id" json:"campaign_id"`
	ContactID         int        `db:"contact_id" json:"contact_id"`
	Phone             string     `db:"phone" json:"phone"`
	MessageContent    string     `db:"message_content" json:"message_content"`
	Status            string     `db:"status" json:"status"` // sent, failed
	ProviderMessageID string     `db:"provider_message_id" json:"provider_message_id,omitempty"`
	ProviderResponse  string     `db:"provider_response" json:"provider_response,omitempty"`
	ErrorMessage      string     `db:"error_message" json:"error_message,omitempty"`
	SentAt            *time.Time `db:"sent_at" json:"sent_at,omitempty"`
	DeliveredAt       *time.Time `db:"delivered_at" json:"delivered_at,omitempty"`
	ReadAt            *time.Time `db:"read_at" json:"read_at,omitempty"`
}

const (
	LogStatusSent   = "sent"
	LogStatusFailed = "failed"
)
