package appErrors

import (
	"fmt"
	"time"
)

// ErrCampaignNotFound is a sentinel error. Cross-tenant access is reported
// through this same error so existence never leaks across companies.
type ErrCampaignNotFound struct {
	CampaignID int
}

func (e *ErrCampaignNotFound) Error() string {
	return fmt.Sprintf("campaign with ID %d not found", e.CampaignID)
}

// Helper constructor
func NewCampaignNotFound(id int) error {
	return &ErrCampaignNotFound{CampaignID: id}
}

// ErrInvalidTransition means the requested lifecycle operation is not a legal
// edge from the campaign's current status.
type ErrInvalidTransition struct {
	CampaignID int
	From       string
	To         string
}

func (e *ErrInvalidTransition) Error() string {
	return fmt.Sprintf("campaign %d cannot transition from %s to %s", e.CampaignID, e.From, e.To)
}

func NewInvalidTransition(id int, from, to string) error {
	return &ErrInvalidTransition{CampaignID: id, From: from, To: to}
}

// ErrCampaignLocked means the campaign no longer accepts recipient changes:
// only draft and scheduled campaigns can be edited.
type ErrCampaignLocked struct {
	CampaignID int
	Status     string
}

func (e *ErrCampaignLocked) Error() string {
	return fmt.Sprintf("campaign %d no longer accepts recipients (status %s)", e.CampaignID, e.Status)
}

func NewCampaignLocked(id int, status string) error {
	return &ErrCampaignLocked{CampaignID: id, Status: status}
}

// ErrEmptyRecipientSet means send was attempted with no attached recipients.
type ErrEmptyRecipientSet struct {
	CampaignID int
}

func (e *ErrEmptyRecipientSet) Error() string {
	return fmt.Sprintf("campaign %d has no recipients attached", e.CampaignID)
}

func NewEmptyRecipientSet(id int) error {
	return &ErrEmptyRecipientSet{CampaignID: id}
}

// ErrScheduleInPast means schedule was called with a time that is not
// strictly in the future.
type ErrScheduleInPast struct {
	At time.Time
}

func (e *ErrScheduleInPast) Error() string {
	return fmt.Sprintf("scheduled_at %s is not in the future", e.At.Format(time.RFC3339))
}

func NewScheduleInPast(at time.Time) error {
	return &ErrScheduleInPast{At: at}
}

// ErrQueuePublishFailure means the broker rejected or was unreachable while
// enqueueing send jobs; the campaign transition has been rolled back.
type ErrQueuePublishFailure struct {
	CampaignID int
	Err        error
}

func (e *ErrQueuePublishFailure) Error() string {
	return fmt.Sprintf("failed to enqueue jobs for campaign %d: %v", e.CampaignID, e.Err)
}

func (e *ErrQueuePublishFailure) Unwrap() error { return e.Err }

func NewQueuePublishFailure(id int, err error) error {
	return &ErrQueuePublishFailure{CampaignID: id, Err: err}
}

// ErrRecipientNotFound means the (campaign, contact) link does not exist or
// is not in a state the operation accepts.
type ErrRecipientNotFound struct {
	CampaignID int
	ContactID  int
}

func (e *ErrRecipientNotFound) Error() string {
	return fmt.Sprintf("recipient %d not found on campaign %d", e.ContactID, e.CampaignID)
}

func NewRecipientNotFound(campaignID, contactID int) error {
	return &ErrRecipientNotFound{CampaignID: campaignID, ContactID: contactID}
}

// ErrTemplateNotFound is the template equivalent of ErrCampaignNotFound.
type ErrTemplateNotFound struct {
	TemplateID int
}

func (e *ErrTemplateNotFound) Error() string {
	return fmt.Sprintf("template with ID %d not found", e.TemplateID)
}

func NewTemplateNotFound(id int) error {
	return &ErrTemplateNotFound{TemplateID: id}
}
