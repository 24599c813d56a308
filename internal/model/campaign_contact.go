package model

import "time"

// ContactStatus is the per-recipient delivery state within one campaign.
//
// pending -> sent or failed; sent -> delivered (optional, never reverts).
// failed is terminal unless an operator explicitly retries the recipient,
// which resets it to pending.
type ContactStatus string

const (
	ContactPending   ContactStatus = "pending"
	ContactSent      ContactStatus = "sent"
	ContactDelivered ContactStatus = "delivered"
	ContactFailed    ContactStatus = "failed"
)

// IsTerminal reports whether the recipient needs no further dispatch work.
func (s ContactStatus) IsTerminal() bool {
	return s == ContactSent || s == ContactDelivered || s == ContactFailed
}

// CampaignContact links one contact to one campaign and tracks its outcome.
// Uniquely keyed by (campaign_id, contact_id).
type CampaignContact struct {
	ID           int           `db:"id" json:"id"`
	CampaignID   int           `db:"campaign_id" json:"campaign_id"`
	ContactID    int           `db:"contact_id" json:"contact_id"`
	Status       ContactStatus `db:"status" json:"status"`
	SentAt       *time.Time    `db:"sent_at" json:"sent_at,omitempty"`
	DeliveredAt  *time.Time    `db:"delivered_at" json:"delivered_at,omitempty"`
	ErrorMessage string        `db:"error_message" json:"error_message,omitempty"`
}

// PendingRecipient is the join row the orchestrator fans out over when
// a campaign is sent: the recipient link plus the contact fields needed
// to render and address the message.
type PendingRecipient struct {
	ContactID int
	Phone     string
	FirstName string
	LastName  string
}
