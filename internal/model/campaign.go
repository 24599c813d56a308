package model

import "time"

// CampaignStatus is the closed set of campaign lifecycle states.
type CampaignStatus string

const (
	StatusDraft     CampaignStatus = "draft"
	StatusScheduled CampaignStatus = "scheduled"
	StatusRunning   CampaignStatus = "running"
	StatusPaused    CampaignStatus = "paused"
	StatusCompleted CampaignStatus = "completed"
	StatusCancelled CampaignStatus = "cancelled"
)

// transitions is the full lifecycle table. Anything not listed here is illegal.
var transitions = map[CampaignStatus][]CampaignStatus{
	StatusDraft:     {StatusScheduled, StatusRunning, StatusCancelled},
	StatusScheduled: {StatusRunning, StatusCancelled},
	StatusRunning:   {StatusPaused, StatusCompleted, StatusCancelled},
	StatusPaused:    {StatusRunning, StatusCancelled},
	StatusCompleted: {},
	StatusCancelled: {},
}

// CanTransitionTo reports whether moving from s to next is a legal lifecycle edge.
func (s CampaignStatus) CanTransitionTo(next CampaignStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transition is defined out of s.
func (s CampaignStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

type Campaign struct {
	ID             int               `db:"id" json:"id"`
	CompanyID      int               `db:"company_id" json:"company_id"`
	Name           string            `db:"name" json:"name"`
	TemplateID     int               `db:"template_id" json:"template_id"`
	IntegrationID  int               `db:"integration_id" json:"integration_id"`
	Status         CampaignStatus    `db:"status" json:"status"`
	ScheduledAt    *time.Time        `db:"scheduled_at" json:"scheduled_at,omitempty"`
	StartedAt      *time.Time        `db:"started_at" json:"started_at,omitempty"`
	CompletedAt    *time.Time        `db:"completed_at" json:"completed_at,omitempty"`
	TotalContacts  int               `db:"total_contacts" json:"total_contacts"`
	SentCount      int               `db:"sent_count" json:"sent_count"`
	DeliveredCount int               `db:"delivered_count" json:"delivered_count"`
	FailedCount    int               `db:"failed_count" json:"failed_count"`
	Variables      map[string]string `db:"variables" json:"variables,omitempty"`
	CreatedAt      time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt      *time.Time        `db:"updated_at" json:"updated_at,omitempty"`
}
