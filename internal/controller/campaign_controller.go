package controller

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	appErrors "github.com/sendflock/sendflock-backend/internal/errors"
	"github.com/sendflock/sendflock-backend/internal/model"
	"github.com/sendflock/sendflock-backend/internal/service"
)

type CampaignController struct {
	CampaignService *service.CampaignService
}

// companyID reads the tenant from the X-Company-ID header. Authentication is
// handled upstream; by the time a request gets here the header is trusted.
func companyID(r *http.Request) (int, bool) {
	id, err := strconv.Atoi(r.Header.Get("X-Company-ID"))
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func campaignID(r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// writeError maps the typed service errors onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	var (
		notFound   *appErrors.ErrCampaignNotFound
		tmplGone   *appErrors.ErrTemplateNotFound
		recGone    *appErrors.ErrRecipientNotFound
		invalid    *appErrors.ErrInvalidTransition
		locked     *appErrors.ErrCampaignLocked
		empty      *appErrors.ErrEmptyRecipientSet
		inPast     *appErrors.ErrScheduleInPast
		pubFailure *appErrors.ErrQueuePublishFailure
	)

	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &notFound), errors.As(err, &tmplGone), errors.As(err, &recGone):
		status = http.StatusNotFound
	case errors.As(err, &invalid), errors.As(err, &locked):
		status = http.StatusConflict
	case errors.As(err, &empty), errors.As(err, &inPast):
		status = http.StatusUnprocessableEntity
	case errors.As(err, &pubFailure):
		status = http.StatusBadGateway
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (c *CampaignController) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	company, ok := companyID(r)
	if !ok {
		http.Error(w, "missing company", http.StatusBadRequest)
		return
	}

	var body struct {
		Name          string            `json:"name"`
		TemplateID    int               `json:"template_id"`
		IntegrationID int               `json:"integration_id"`
		Variables     map[string]string `json:"variables"`
		ScheduledAt   *time.Time        `json:"scheduled_at"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	campaign, err := c.CampaignService.CreateCampaign(company, body.Name, body.TemplateID, body.IntegrationID, body.Variables, body.ScheduledAt)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, campaign)
}

func (c *CampaignController) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	company, ok := companyID(r)
	if !ok {
		http.Error(w, "missing company", http.StatusBadRequest)
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	status := r.URL.Query().Get("status")

	campaigns, pagination, err := c.CampaignService.ListCampaigns(company, page, pageSize, status)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"data":       campaigns,
		"pagination": pagination,
	})
}

func (c *CampaignController) GetCampaign(w http.ResponseWriter, r *http.Request) {
	company, ok := companyID(r)
	if !ok {
		http.Error(w, "missing company", http.StatusBadRequest)
		return
	}
	id, ok := campaignID(r)
	if !ok {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return
	}

	details, err := c.CampaignService.GetCampaignWithStats(company, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, details)
}

func (c *CampaignController) AttachContacts(w http.ResponseWriter, r *http.Request) {
	company, ok := companyID(r)
	if !ok {
		http.Error(w, "missing company", http.StatusBadRequest)
		return
	}
	id, ok := campaignID(r)
	if !ok {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return
	}

	var body struct {
		ContactIDs []int `json:"contact_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	total, err := c.CampaignService.AttachContacts(company, id, body.ContactIDs)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{
		"campaign_id":    id,
		"total_contacts": total,
	})
}

func (c *CampaignController) ListMessageLogs(w http.ResponseWriter, r *http.Request) {
	company, ok := companyID(r)
	if !ok {
		http.Error(w, "missing company", http.StatusBadRequest)
		return
	}
	id, ok := campaignID(r)
	if !ok {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))

	logs, err := c.CampaignService.ListMessageLogs(company, id, page, pageSize)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"campaign_id": id,
		"data":        logs,
	})
}

func (c *CampaignController) PreviewMessage(w http.ResponseWriter, r *http.Request) {
	company, ok := companyID(r)
	if !ok {
		http.Error(w, "missing company", http.StatusBadRequest)
		return
	}
	id, ok := campaignID(r)
	if !ok {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return
	}

	var body struct {
		ContactID int `json:"contact_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	rendered, err := c.CampaignService.PreviewMessage(company, id, body.ContactID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"campaign_id":      id,
		"contact_id":       body.ContactID,
		"rendered_message": rendered,
	})
}

func (c *CampaignController) SendCampaign(w http.ResponseWriter, r *http.Request) {
	company, ok := companyID(r)
	if !ok {
		http.Error(w, "missing company", http.StatusBadRequest)
		return
	}
	id, ok := campaignID(r)
	if !ok {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return
	}

	var body struct {
		IntegrationID int `json:"integration_id"`
	}
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&body) // optional body
	}

	result, err := c.CampaignService.Send(company, id, body.IntegrationID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (c *CampaignController) ScheduleCampaign(w http.ResponseWriter, r *http.Request) {
	company, ok := companyID(r)
	if !ok {
		http.Error(w, "missing company", http.StatusBadRequest)
		return
	}
	id, ok := campaignID(r)
	if !ok {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return
	}

	var body struct {
		ScheduledAt time.Time `json:"scheduled_at"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	campaign, err := c.CampaignService.Schedule(company, id, body.ScheduledAt.UTC())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, campaign)
}

func (c *CampaignController) PauseCampaign(w http.ResponseWriter, r *http.Request) {
	c.lifecycle(w, r, c.CampaignService.Pause)
}

func (c *CampaignController) ResumeCampaign(w http.ResponseWriter, r *http.Request) {
	c.lifecycle(w, r, c.CampaignService.Resume)
}

func (c *CampaignController) CancelCampaign(w http.ResponseWriter, r *http.Request) {
	c.lifecycle(w, r, c.CampaignService.Cancel)
}

func (c *CampaignController) lifecycle(w http.ResponseWriter, r *http.Request, op func(companyID, campaignID int) (*model.Campaign, error)) {
	company, ok := companyID(r)
	if !ok {
		http.Error(w, "missing company", http.StatusBadRequest)
		return
	}
	id, ok := campaignID(r)
	if !ok {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return
	}

	campaign, err := op(company, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, campaign)
}

func (c *CampaignController) RetryRecipient(w http.ResponseWriter, r *http.Request) {
	company, ok := companyID(r)
	if !ok {
		http.Error(w, "missing company", http.StatusBadRequest)
		return
	}
	id, ok := campaignID(r)
	if !ok {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return
	}
	contactID, err := strconv.Atoi(chi.URLParam(r, "contactId"))
	if err != nil || contactID <= 0 {
		http.Error(w, "invalid contact id", http.StatusBadRequest)
		return
	}

	if err := c.CampaignService.RetryRecipient(company, id, contactID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "queued"})
}

func (c *CampaignController) GetStats(w http.ResponseWriter, r *http.Request) {
	company, ok := companyID(r)
	if !ok {
		http.Error(w, "missing company", http.StatusBadRequest)
		return
	}
	id, ok := campaignID(r)
	if !ok {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return
	}

	details, err := c.CampaignService.GetCampaignWithStats(company, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, details.Stats)
}
