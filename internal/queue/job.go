package queue

import (
	"time"

	"github.com/google/uuid"
)

// SendJob is the queue payload for one provider call. It exists only inside
// the broker and the worker that pulled it; the message_logs row it produces
// is its durable trace.
type SendJob struct {
	ID                string            `json:"id"`
	CampaignID        int               `json:"campaign_id"`
	ContactID         int               `json:"contact_id"`
	Phone             string            `json:"phone"`
	MessageContent    string            `json:"message_content"`
	TemplateVariables map[string]string `json:"template_variables,omitempty"`
	CompanyID         int               `json:"company_id"`
	IntegrationID     int               `json:"integration_id"`
	RetryCount        int               `json:"retry_count"`
	CreatedAt         time.Time         `json:"created_at"`
}

// NewSendJob builds a fresh job with retry_count 0.
func NewSendJob(campaignID, contactID, companyID, integrationID int, phone, content string, vars map[string]string) SendJob {
	return SendJob{
		ID:                uuid.NewString(),
		CampaignID:        campaignID,
		ContactID:         contactID,
		Phone:             phone,
		MessageContent:    content,
		TemplateVariables: vars,
		CompanyID:         companyID,
		IntegrationID:     integrationID,
		RetryCount:        0,
		CreatedAt:         time.Now().UTC(),
	}
}
