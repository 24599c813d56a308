package service_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	appErrors "github.com/sendflock/sendflock-backend/internal/errors"
	"github.com/sendflock/sendflock-backend/internal/model"
	"github.com/sendflock/sendflock-backend/internal/provider"
	"github.com/sendflock/sendflock-backend/internal/queue"
	"github.com/sendflock/sendflock-backend/internal/repository"
)

// ---- campaign repo ----

type fakeCampaignRepo struct {
	mu        sync.Mutex
	nextID    int
	campaigns map[int]*model.Campaign

	// completable is what ListCompletable reports; scheduler tests set it.
	completable []int
}

func newFakeCampaignRepo(cs ...*model.Campaign) *fakeCampaignRepo {
	r := &fakeCampaignRepo{campaigns: map[int]*model.Campaign{}, nextID: 1}
	for _, c := range cs {
		if c.ID == 0 {
			c.ID = r.nextID
		}
		if c.ID >= r.nextID {
			r.nextID = c.ID + 1
		}
		r.campaigns[c.ID] = c
	}
	return r
}

func (r *fakeCampaignRepo) Create(c *model.Campaign) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c.ID = r.nextID
	r.nextID++
	c.CreatedAt = time.Now()
	r.campaigns[c.ID] = c
	return nil
}

func (r *fakeCampaignRepo) GetByID(companyID, id int) (*model.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[id]
	if !ok || c.CompanyID != companyID {
		return nil, appErrors.NewCampaignNotFound(id)
	}
	cp := *c
	return &cp, nil
}

func (r *fakeCampaignRepo) ListCampaigns(companyID, offset, limit int, status string) ([]*model.Campaign, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := []*model.Campaign{}
	for _, c := range r.campaigns {
		if c.CompanyID != companyID {
			continue
		}
		if status != "" && string(c.Status) != status {
			continue
		}
		cp := *c
		all = append(all, &cp)
	}
	total := len(all)
	if offset > len(all) {
		offset = len(all)
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (r *fakeCampaignRepo) mark(id int, allowed func(model.CampaignStatus) bool, apply func(*model.Campaign)) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[id]
	if !ok || !allowed(c.Status) {
		return false, nil
	}
	apply(c)
	return true, nil
}

func (r *fakeCampaignRepo) MarkRunning(id int, from model.CampaignStatus, startedAt time.Time) (bool, error) {
	return r.mark(id, func(s model.CampaignStatus) bool { return s == from }, func(c *model.Campaign) {
		c.Status = model.StatusRunning
		c.StartedAt = &startedAt
	})
}

func (r *fakeCampaignRepo) MarkScheduled(id int, at time.Time) (bool, error) {
	return r.mark(id, func(s model.CampaignStatus) bool { return s == model.StatusDraft }, func(c *model.Campaign) {
		c.Status = model.StatusScheduled
		c.ScheduledAt = &at
	})
}

func (r *fakeCampaignRepo) MarkPaused(id int) (bool, error) {
	return r.mark(id, func(s model.CampaignStatus) bool { return s == model.StatusRunning }, func(c *model.Campaign) {
		c.Status = model.StatusPaused
	})
}

func (r *fakeCampaignRepo) MarkResumed(id int) (bool, error) {
	return r.mark(id, func(s model.CampaignStatus) bool { return s == model.StatusPaused }, func(c *model.Campaign) {
		c.Status = model.StatusRunning
	})
}

func (r *fakeCampaignRepo) MarkCompleted(id int, at time.Time) (bool, error) {
	return r.mark(id, func(s model.CampaignStatus) bool { return s == model.StatusRunning }, func(c *model.Campaign) {
		c.Status = model.StatusCompleted
		c.CompletedAt = &at
	})
}

func (r *fakeCampaignRepo) MarkCancelled(id int, at time.Time) (bool, error) {
	return r.mark(id, func(s model.CampaignStatus) bool { return !s.IsTerminal() }, func(c *model.Campaign) {
		c.Status = model.StatusCancelled
		c.CompletedAt = &at
	})
}

func (r *fakeCampaignRepo) RevertSend(id int, prev model.CampaignStatus) error {
	_, err := r.mark(id, func(s model.CampaignStatus) bool { return s == model.StatusRunning }, func(c *model.Campaign) {
		c.Status = prev
		c.StartedAt = nil
	})
	return err
}

func (r *fakeCampaignRepo) UpdateCounts(id, sent, delivered, failed int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.campaigns[id]; ok {
		c.SentCount = sent
		c.DeliveredCount = delivered
		c.FailedCount = failed
	}
	return nil
}

func (r *fakeCampaignRepo) ListDueScheduled(now time.Time, limit int) ([]*model.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	due := []*model.Campaign{}
	for _, c := range r.campaigns {
		if c.Status == model.StatusScheduled && c.ScheduledAt != nil && !c.ScheduledAt.After(now) {
			cp := *c
			due = append(due, &cp)
		}
	}
	return due, nil
}

func (r *fakeCampaignRepo) ListCompletable(limit int) ([]*model.Campaign, error) {
	r.mu.Lock()
	completable := r.completable
	r.mu.Unlock()
	out := []*model.Campaign{}
	for _, id := range completable {
		if c, ok := r.campaigns[id]; ok && c.Status == model.StatusRunning {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeCampaignRepo) get(id int) *model.Campaign {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.campaigns[id]
}

var _ repository.CampaignRepositoryInterface = (*fakeCampaignRepo)(nil)

// ---- recipient repo ----

type fakeRecipientRepo struct {
	mu       sync.Mutex
	rows     map[int]map[int]*model.CampaignContact // campaign -> contact -> link
	contacts map[int]model.PendingRecipient         // contact fields used for rendering

	// campaigns, when set, mirrors the row-lock status guard the SQL
	// repository applies inside the attach transaction.
	campaigns *fakeCampaignRepo
}

func newFakeRecipientRepo() *fakeRecipientRepo {
	return &fakeRecipientRepo{
		rows:     map[int]map[int]*model.CampaignContact{},
		contacts: map[int]model.PendingRecipient{},
	}
}

func (r *fakeRecipientRepo) addContact(contactID int, phone, first, last string) {
	r.contacts[contactID] = model.PendingRecipient{ContactID: contactID, Phone: phone, FirstName: first, LastName: last}
}

func (r *fakeRecipientRepo) Attach(campaignID, companyID int, contactIDs []int) (int, error) {
	if r.campaigns != nil {
		if c := r.campaigns.get(campaignID); c != nil &&
			c.Status != model.StatusDraft && c.Status != model.StatusScheduled {
			return 0, appErrors.NewCampaignLocked(campaignID, string(c.Status))
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rows[campaignID] == nil {
		r.rows[campaignID] = map[int]*model.CampaignContact{}
	}
	for _, id := range contactIDs {
		if _, exists := r.rows[campaignID][id]; exists {
			continue
		}
		if _, known := r.contacts[id]; !known {
			continue // unknown or cross-tenant contact
		}
		r.rows[campaignID][id] = &model.CampaignContact{
			CampaignID: campaignID,
			ContactID:  id,
			Status:     model.ContactPending,
		}
	}
	return len(r.rows[campaignID]), nil
}

func (r *fakeRecipientRepo) ListPendingWithContacts(campaignID int) ([]model.PendingRecipient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []model.PendingRecipient{}
	for id, link := range r.rows[campaignID] {
		if link.Status == model.ContactPending {
			out = append(out, r.contacts[id])
		}
	}
	return out, nil
}

func (r *fakeRecipientRepo) CountByStatus(campaignID int) (map[model.ContactStatus]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := map[model.ContactStatus]int{
		model.ContactPending:   0,
		model.ContactSent:      0,
		model.ContactDelivered: 0,
		model.ContactFailed:    0,
	}
	for _, link := range r.rows[campaignID] {
		counts[link.Status]++
	}
	return counts, nil
}

func (r *fakeRecipientRepo) CountAll(campaignID int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows[campaignID]), nil
}

func (r *fakeRecipientRepo) setStatus(campaignID, contactID int, from, to model.ContactStatus) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	link, ok := r.rows[campaignID][contactID]
	if !ok || link.Status != from {
		return false
	}
	link.Status = to
	return true
}

func (r *fakeRecipientRepo) MarkSent(campaignID, contactID int, at time.Time) error {
	if r.setStatus(campaignID, contactID, model.ContactPending, model.ContactSent) {
		r.mu.Lock()
		r.rows[campaignID][contactID].SentAt = &at
		r.mu.Unlock()
	}
	return nil
}

func (r *fakeRecipientRepo) MarkDelivered(campaignID, contactID int, at time.Time) error {
	if r.setStatus(campaignID, contactID, model.ContactSent, model.ContactDelivered) {
		r.mu.Lock()
		r.rows[campaignID][contactID].DeliveredAt = &at
		r.mu.Unlock()
	}
	return nil
}

func (r *fakeRecipientRepo) MarkFailed(campaignID, contactID int, errorMessage string) error {
	if r.setStatus(campaignID, contactID, model.ContactPending, model.ContactFailed) {
		r.mu.Lock()
		r.rows[campaignID][contactID].ErrorMessage = errorMessage
		r.mu.Unlock()
	}
	return nil
}

func (r *fakeRecipientRepo) ResetFailed(campaignID, contactID int) (bool, error) {
	return r.setStatus(campaignID, contactID, model.ContactFailed, model.ContactPending), nil
}

func (r *fakeRecipientRepo) status(campaignID, contactID int) model.ContactStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	if link, ok := r.rows[campaignID][contactID]; ok {
		return link.Status
	}
	return ""
}

var _ repository.CampaignContactRepositoryInterface = (*fakeRecipientRepo)(nil)

// ---- contact repo ----

// fakeContactRepo serves the same contact set the recipient repo knows about.
type fakeContactRepo struct {
	recipients *fakeRecipientRepo
}

func (r *fakeContactRepo) GetByID(companyID, id int) (*model.Contact, error) {
	rec, ok := r.recipients.contacts[id]
	if !ok {
		return nil, nil
	}
	return &model.Contact{
		ID:        rec.ContactID,
		CompanyID: companyID,
		Phone:     rec.Phone,
		FirstName: rec.FirstName,
		LastName:  rec.LastName,
	}, nil
}

func (r *fakeContactRepo) ListByCompany(companyID int) ([]model.Contact, error) {
	out := []model.Contact{}
	for _, rec := range r.recipients.contacts {
		out = append(out, model.Contact{
			ID:        rec.ContactID,
			CompanyID: companyID,
			Phone:     rec.Phone,
			FirstName: rec.FirstName,
			LastName:  rec.LastName,
		})
	}
	return out, nil
}

var _ repository.ContactRepositoryInterface = (*fakeContactRepo)(nil)

// ---- template repo ----

type fakeTemplateRepo struct {
	templates map[int]*model.Template
}

func newFakeTemplateRepo(ts ...*model.Template) *fakeTemplateRepo {
	r := &fakeTemplateRepo{templates: map[int]*model.Template{}}
	for _, t := range ts {
		r.templates[t.ID] = t
	}
	return r
}

func (r *fakeTemplateRepo) Create(t *model.Template) error {
	r.templates[t.ID] = t
	return nil
}

func (r *fakeTemplateRepo) GetByID(companyID, id int) (*model.Template, error) {
	t, ok := r.templates[id]
	if !ok || t.CompanyID != companyID {
		return nil, appErrors.NewTemplateNotFound(id)
	}
	return t, nil
}

var _ repository.TemplateRepositoryInterface = (*fakeTemplateRepo)(nil)

// ---- message log repo ----

type fakeLogRepo struct {
	mu   sync.Mutex
	logs []*model.MessageLog
}

func (r *fakeLogRepo) Create(l *model.MessageLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l.ID = len(r.logs) + 1
	r.logs = append(r.logs, l)
	return nil
}

func (r *fakeLogRepo) MarkDelivered(providerMessageID string, at time.Time) (*model.MessageLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.logs {
		if l.ProviderMessageID == providerMessageID && l.Status == model.LogStatusSent && l.DeliveredAt == nil {
			l.DeliveredAt = &at
			cp := *l
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeLogRepo) MarkRead(providerMessageID string, at time.Time) (*model.MessageLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.logs {
		if l.ProviderMessageID == providerMessageID && l.Status == model.LogStatusSent && l.ReadAt == nil {
			l.ReadAt = &at
			cp := *l
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeLogRepo) ListByCampaign(campaignID, offset, limit int) ([]*model.MessageLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*model.MessageLog{}
	for _, l := range r.logs {
		if l.CampaignID == campaignID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (r *fakeLogRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.logs)
}

var _ repository.MessageLogRepositoryInterface = (*fakeLogRepo)(nil)

// ---- queue publisher ----

type retryCall struct {
	job   queue.SendJob
	delay time.Duration
}

type fakePublisher struct {
	mu        sync.Mutex
	published []queue.SendJob
	retries   []retryCall

	failAfter int // publish fails once this many jobs have been accepted; -1 never
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{failAfter: -1}
}

func (p *fakePublisher) Publish(job queue.SendJob) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failAfter >= 0 && len(p.published) >= p.failAfter {
		return fmt.Errorf("broker unreachable")
	}
	p.published = append(p.published, job)
	return nil
}

func (p *fakePublisher) PublishRetry(job queue.SendJob, delay time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.retries = append(p.retries, retryCall{job: job, delay: delay})
	return nil
}

var _ queue.Publisher = (*fakePublisher)(nil)

// ---- provider sender ----

// scriptedSender returns errors in order; once the script runs out it
// succeeds. A nil script entry means success for that call.
type scriptedSender struct {
	mu     sync.Mutex
	script []error
	calls  int
}

func (s *scriptedSender) Send(ctx context.Context, req provider.SendRequest) (*provider.SendResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var err error
	if s.calls < len(s.script) {
		err = s.script[s.calls]
	}
	s.calls++
	if err != nil {
		return nil, err
	}
	return &provider.SendResponse{
		MessageID:   fmt.Sprintf("prov-%d", s.calls),
		RawResponse: `{"status":"accepted"}`,
	}, nil
}

// ---- stats ----

type fakeStats struct {
	mu    sync.Mutex
	calls []int
}

func (s *fakeStats) Recompute(campaignID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, campaignID)
	return nil
}
