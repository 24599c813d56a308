package service

import (
	"log"
	"time"

	appErrors "github.com/sendflock/sendflock-backend/internal/errors"
	"github.com/sendflock/sendflock-backend/internal/model"
	"github.com/sendflock/sendflock-backend/internal/queue"
	"github.com/sendflock/sendflock-backend/internal/repository"
)

// CampaignService is the orchestrator: it owns every campaign lifecycle
// transition and the job fan-out on send. All reads are tenant-scoped.
type CampaignService struct {
	CampaignRepo  repository.CampaignRepositoryInterface
	RecipientRepo repository.CampaignContactRepositoryInterface
	ContactRepo   repository.ContactRepositoryInterface
	TemplateRepo  repository.TemplateRepositoryInterface
	LogRepo       repository.MessageLogRepositoryInterface
	Queue         queue.Publisher
}

// Result struct for Send
type SendCampaignResult struct {
	CampaignID     int                  `json:"campaign_id"`
	MessagesQueued int                  `json:"messages_queued"`
	Status         model.CampaignStatus `json:"status"`
}

type CampaignDetails struct {
	Campaign *model.Campaign `json:"campaign"`
	Stats    map[string]int  `json:"stats"`
}

func (s *CampaignService) CreateCampaign(companyID int, name string, templateID, integrationID int, variables map[string]string, scheduledAt *time.Time) (*model.Campaign, error) {
	if _, err := s.TemplateRepo.GetByID(companyID, templateID); err != nil {
		return nil, err
	}

	c := &model.Campaign{
		CompanyID:     companyID,
		Name:          name,
		TemplateID:    templateID,
		IntegrationID: integrationID,
		Status:        model.StatusDraft,
		Variables:     variables,
	}

	if scheduledAt != nil {
		if !scheduledAt.After(time.Now()) {
			return nil, appErrors.NewScheduleInPast(*scheduledAt)
		}
		c.Status = model.StatusScheduled
		c.ScheduledAt = scheduledAt
	}

	if err := s.CampaignRepo.Create(c); err != nil {
		return nil, err
	}
	return c, nil
}

// AttachContacts links contacts to a campaign as pending recipients. Allowed
// only while the campaign is draft or scheduled. Duplicates and contacts of
// other companies are skipped; total_contacts is recomputed atomically with
// the insert. Returns the new distinct total.
func (s *CampaignService) AttachContacts(companyID, campaignID int, contactIDs []int) (int, error) {
	c, err := s.CampaignRepo.GetByID(companyID, campaignID)
	if err != nil {
		return 0, err
	}
	if c.Status != model.StatusDraft && c.Status != model.StatusScheduled {
		return 0, appErrors.NewCampaignLocked(campaignID, string(c.Status))
	}
	// The repository re-checks the status under a row lock, so an attach
	// racing a send cannot slip rows onto a running campaign.
	return s.RecipientRepo.Attach(campaignID, companyID, contactIDs)
}

// PreviewMessage renders the campaign's template for one contact without
// sending anything, so operators can eyeball the message before a send.
func (s *CampaignService) PreviewMessage(companyID, campaignID, contactID int) (string, error) {
	c, err := s.CampaignRepo.GetByID(companyID, campaignID)
	if err != nil {
		return "", err
	}

	contact, err := s.ContactRepo.GetByID(companyID, contactID)
	if err != nil {
		return "", err
	}
	if contact == nil {
		return "", appErrors.NewRecipientNotFound(campaignID, contactID)
	}

	tmpl, err := s.TemplateRepo.GetByID(companyID, c.TemplateID)
	if err != nil {
		return "", err
	}

	vars := RecipientVariables(c.Variables, model.PendingRecipient{
		ContactID: contact.ID,
		Phone:     contact.Phone,
		FirstName: contact.FirstName,
		LastName:  contact.LastName,
	})
	return RenderTemplate(tmpl.Content, vars), nil
}

// Send transitions the campaign to running and publishes one SendJob per
// pending recipient. Callable from draft (operator send) and scheduled (the
// promoter path). When publishing fails partway the transition is rolled
// back; jobs already published are acceptable duplicates under at-least-once
// delivery.
func (s *CampaignService) Send(companyID, campaignID, integrationID int) (*SendCampaignResult, error) {
	c, err := s.CampaignRepo.GetByID(companyID, campaignID)
	if err != nil {
		return nil, err
	}
	if c.Status != model.StatusDraft && c.Status != model.StatusScheduled {
		return nil, appErrors.NewInvalidTransition(campaignID, string(c.Status), string(model.StatusRunning))
	}

	total, err := s.RecipientRepo.CountAll(campaignID)
	if err != nil {
		return nil, err
	}
	if total == 0 {
		return nil, appErrors.NewEmptyRecipientSet(campaignID)
	}

	tmpl, err := s.TemplateRepo.GetByID(companyID, c.TemplateID)
	if err != nil {
		return nil, err
	}

	if integrationID == 0 {
		integrationID = c.IntegrationID
	}

	ok, err := s.CampaignRepo.MarkRunning(campaignID, c.Status, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if !ok {
		// Someone else won the transition between our read and the update.
		return nil, appErrors.NewInvalidTransition(campaignID, string(c.Status), string(model.StatusRunning))
	}

	// List recipients only after winning the transition. An attach that
	// committed while the campaign was still editable is visible here and
	// gets a job; once the campaign is running the repository's row lock
	// rejects further attaches, so no pending row can miss the fan-out.
	recipients, err := s.RecipientRepo.ListPendingWithContacts(campaignID)
	if err != nil {
		if revertErr := s.CampaignRepo.RevertSend(campaignID, c.Status); revertErr != nil {
			log.Println("⚠️ rollback failed for campaign", campaignID, ":", revertErr)
		}
		return nil, err
	}

	queued := 0
	for _, rec := range recipients {
		vars := RecipientVariables(c.Variables, rec)
		content := RenderTemplate(tmpl.Content, vars)
		job := queue.NewSendJob(campaignID, rec.ContactID, companyID, integrationID, rec.Phone, content, vars)

		if err := s.Queue.Publish(job); err != nil {
			log.Println("⚠️ enqueue failed for campaign", campaignID, "- rolling back to", c.Status, ":", err)
			if revertErr := s.CampaignRepo.RevertSend(campaignID, c.Status); revertErr != nil {
				log.Println("⚠️ rollback failed for campaign", campaignID, ":", revertErr)
			}
			return nil, appErrors.NewQueuePublishFailure(campaignID, err)
		}
		queued++
	}

	log.Println("✅ campaign", campaignID, "running,", queued, "jobs queued")
	return &SendCampaignResult{
		CampaignID:     campaignID,
		MessagesQueued: queued,
		Status:         model.StatusRunning,
	}, nil
}

// Schedule moves a draft campaign to scheduled at a strictly future time.
func (s *CampaignService) Schedule(companyID, campaignID int, whenUTC time.Time) (*model.Campaign, error) {
	c, err := s.CampaignRepo.GetByID(companyID, campaignID)
	if err != nil {
		return nil, err
	}
	if !c.Status.CanTransitionTo(model.StatusScheduled) {
		return nil, appErrors.NewInvalidTransition(campaignID, string(c.Status), string(model.StatusScheduled))
	}
	if !whenUTC.After(time.Now()) {
		return nil, appErrors.NewScheduleInPast(whenUTC)
	}

	ok, err := s.CampaignRepo.MarkScheduled(campaignID, whenUTC)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, appErrors.NewInvalidTransition(campaignID, string(c.Status), string(model.StatusScheduled))
	}
	return s.CampaignRepo.GetByID(companyID, campaignID)
}

// Pause stops workers from acting on the campaign's queued jobs. In-flight
// provider calls are not revoked.
func (s *CampaignService) Pause(companyID, campaignID int) (*model.Campaign, error) {
	return s.transition(companyID, campaignID, model.StatusPaused, func(id int) (bool, error) {
		return s.CampaignRepo.MarkPaused(id)
	})
}

// Resume puts a paused campaign back to running; its queued jobs become
// actionable again.
func (s *CampaignService) Resume(companyID, campaignID int) (*model.Campaign, error) {
	return s.transition(companyID, campaignID, model.StatusRunning, func(id int) (bool, error) {
		return s.CampaignRepo.MarkResumed(id)
	})
}

// Cancel terminates a campaign from any non-terminal state. Queued jobs are
// purged best-effort: all campaigns share one queue, so the broker cannot
// drop them selectively; the worker's per-job status re-check acks them
// without calling the provider.
func (s *CampaignService) Cancel(companyID, campaignID int) (*model.Campaign, error) {
	return s.transition(companyID, campaignID, model.StatusCancelled, func(id int) (bool, error) {
		return s.CampaignRepo.MarkCancelled(id, time.Now().UTC())
	})
}

func (s *CampaignService) transition(companyID, campaignID int, to model.CampaignStatus, mark func(id int) (bool, error)) (*model.Campaign, error) {
	c, err := s.CampaignRepo.GetByID(companyID, campaignID)
	if err != nil {
		return nil, err
	}
	if !c.Status.CanTransitionTo(to) {
		return nil, appErrors.NewInvalidTransition(campaignID, string(c.Status), string(to))
	}

	ok, err := mark(campaignID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, appErrors.NewInvalidTransition(campaignID, string(c.Status), string(to))
	}
	return s.CampaignRepo.GetByID(companyID, campaignID)
}

// RetryRecipient is the operator-initiated retry of a failed recipient: it
// resets the link to pending and enqueues a fresh job with retry count 0.
// Only terminally failed recipients qualify, so this can never race the
// automatic retry budget of a job still in flight.
func (s *CampaignService) RetryRecipient(companyID, campaignID, contactID int) error {
	c, err := s.CampaignRepo.GetByID(companyID, campaignID)
	if err != nil {
		return err
	}
	if c.Status != model.StatusRunning {
		return appErrors.NewInvalidTransition(campaignID, string(c.Status), string(model.StatusRunning))
	}

	ok, err := s.RecipientRepo.ResetFailed(campaignID, contactID)
	if err != nil {
		return err
	}
	if !ok {
		return appErrors.NewRecipientNotFound(campaignID, contactID)
	}

	tmpl, err := s.TemplateRepo.GetByID(companyID, c.TemplateID)
	if err != nil {
		return err
	}

	recipients, err := s.RecipientRepo.ListPendingWithContacts(campaignID)
	if err != nil {
		return err
	}
	for _, rec := range recipients {
		if rec.ContactID != contactID {
			continue
		}
		vars := RecipientVariables(c.Variables, rec)
		content := RenderTemplate(tmpl.Content, vars)
		job := queue.NewSendJob(campaignID, rec.ContactID, companyID, c.IntegrationID, rec.Phone, content, vars)
		if err := s.Queue.Publish(job); err != nil {
			return appErrors.NewQueuePublishFailure(campaignID, err)
		}
		return nil
	}
	return appErrors.NewRecipientNotFound(campaignID, contactID)
}

// GetCampaignWithStats fetches a campaign and its per-status recipient
// counts.
func (s *CampaignService) GetCampaignWithStats(companyID, campaignID int) (*CampaignDetails, error) {
	c, err := s.CampaignRepo.GetByID(companyID, campaignID)
	if err != nil {
		return nil, err
	}

	counts, err := s.RecipientRepo.CountByStatus(campaignID)
	if err != nil {
		return nil, err
	}

	stats := map[string]int{
		"total":     c.TotalContacts,
		"pending":   counts[model.ContactPending],
		"sent":      counts[model.ContactSent],
		"delivered": counts[model.ContactDelivered],
		"failed":    counts[model.ContactFailed],
	}
	return &CampaignDetails{Campaign: c, Stats: stats}, nil
}

// ListCampaigns fetches campaigns with pagination
func (s *CampaignService) ListCampaigns(companyID, page, pageSize int, status string) ([]model.Campaign, map[string]int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	offset := (page - 1) * pageSize

	ptrs, total, err := s.CampaignRepo.ListCampaigns(companyID, offset, pageSize, status)
	if err != nil {
		return nil, nil, err
	}

	campaigns := make([]model.Campaign, len(ptrs))
	for i, c := range ptrs {
		campaigns[i] = *c
	}

	totalPages := (total + pageSize - 1) / pageSize
	pagination := map[string]int{
		"page":        page,
		"page_size":   pageSize,
		"total_count": total,
		"total_pages": totalPages,
	}

	return campaigns, pagination, nil
}

// ListMessageLogs fetches a campaign's per-message audit trail, newest first.
// The ownership check runs first so cross-tenant requests look like a missing
// campaign.
func (s *CampaignService) ListMessageLogs(companyID, campaignID, page, pageSize int) ([]*model.MessageLog, error) {
	if _, err := s.CampaignRepo.GetByID(companyID, campaignID); err != nil {
		return nil, err
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	return s.LogRepo.ListByCampaign(campaignID, (page-1)*pageSize, pageSize)
}
