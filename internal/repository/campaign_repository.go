package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	appErrors "github.com/sendflock/sendflock-backend/internal/errors"
	"github.com/sendflock/sendflock-backend/internal/model"
)

type CampaignRepositoryInterface interface {
	Create(c *model.Campaign) error
	GetByID(companyID, id int) (*model.Campaign, error)
	ListCampaigns(companyID, offset, limit int, status string) ([]*model.Campaign, int, error)

	// Guarded transitions: each updates status only when the row is still in
	// the expected source state and reports whether a row changed, so two
	// concurrent callers can never both win the same edge.
	MarkRunning(id int, from model.CampaignStatus, startedAt time.Time) (bool, error)
	MarkScheduled(id int, at time.Time) (bool, error)
	MarkPaused(id int) (bool, error)
	MarkResumed(id int) (bool, error)
	MarkCompleted(id int, at time.Time) (bool, error)
	MarkCancelled(id int, at time.Time) (bool, error)
	RevertSend(id int, prev model.CampaignStatus) error

	UpdateCounts(id, sent, delivered, failed int) error
	ListDueScheduled(now time.Time, limit int) ([]*model.Campaign, error)
	ListCompletable(limit int) ([]*model.Campaign, error)
}

type CampaignRepository struct {
	DB *sql.DB
}

const campaignColumns = `id, company_id, name, template_id, integration_id, status,
	scheduled_at, started_at, completed_at,
	total_contacts, sent_count, delivered_count, failed_count,
	variables, created_at, updated_at`

func (r *CampaignRepository) Create(c *model.Campaign) error {
	c.CreatedAt = time.Now()
	if c.Status == "" {
		c.Status = model.StatusDraft
	}

	vars, err := json.Marshal(c.Variables)
	if err != nil {
		return fmt.Errorf("failed to marshal variables: %w", err)
	}

	query := `
		INSERT INTO campaigns (company_id, name, template_id, integration_id, status, scheduled_at, variables, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	return r.DB.QueryRow(query,
		c.CompanyID, c.Name, c.TemplateID, c.IntegrationID, c.Status, c.ScheduledAt, vars, c.CreatedAt,
	).Scan(&c.ID)
}

func (r *CampaignRepository) GetByID(companyID, id int) (*model.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE id=$1 AND company_id=$2`
	c, err := r.scanCampaign(r.DB.QueryRow(query, id, companyID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.NewCampaignNotFound(id)
		}
		return nil, err
	}
	return c, nil
}

func (r *CampaignRepository) ListCampaigns(companyID, offset, limit int, status string) ([]*model.Campaign, int, error) {
	campaigns := []*model.Campaign{}
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE company_id=$1`
	args := []interface{}{companyID}
	argPos := 2

	if status != "" {
		query += fmt.Sprintf(" AND status=$%d", argPos)
		args = append(args, status)
		argPos++
	}

	query += fmt.Sprintf(" ORDER BY id DESC LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, limit, offset)

	rows, err := r.DB.Query(query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	for rows.Next() {
		c, err := r.scanCampaign(rows)
		if err != nil {
			return nil, 0, err
		}
		campaigns = append(campaigns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	countQuery := `SELECT COUNT(*) FROM campaigns WHERE company_id=$1`
	countArgs := []interface{}{companyID}
	if status != "" {
		countQuery += " AND status=$2"
		countArgs = append(countArgs, status)
	}

	var total int
	if err := r.DB.QueryRow(countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	return campaigns, total, nil
}

// ====================== Guarded transitions ======================

func (r *CampaignRepository) MarkRunning(id int, from model.CampaignStatus, startedAt time.Time) (bool, error) {
	query := `UPDATE campaigns SET status=$1, started_at=$2, updated_at=NOW() WHERE id=$3 AND status=$4`
	return r.guardedExec(query, model.StatusRunning, startedAt, id, from)
}

func (r *CampaignRepository) MarkScheduled(id int, at time.Time) (bool, error) {
	query := `UPDATE campaigns SET status=$1, scheduled_at=$2, updated_at=NOW() WHERE id=$3 AND status=$4`
	return r.guardedExec(query, model.StatusScheduled, at, id, model.StatusDraft)
}

func (r *CampaignRepository) MarkPaused(id int) (bool, error) {
	query := `UPDATE campaigns SET status=$1, updated_at=NOW() WHERE id=$2 AND status=$3`
	return r.guardedExec(query, model.StatusPaused, id, model.StatusRunning)
}

func (r *CampaignRepository) MarkResumed(id int) (bool, error) {
	query := `UPDATE campaigns SET status=$1, updated_at=NOW() WHERE id=$2 AND status=$3`
	return r.guardedExec(query, model.StatusRunning, id, model.StatusPaused)
}

func (r *CampaignRepository) MarkCompleted(id int, at time.Time) (bool, error) {
	query := `UPDATE campaigns SET status=$1, completed_at=$2, updated_at=NOW() WHERE id=$3 AND status=$4`
	return r.guardedExec(query, model.StatusCompleted, at, id, model.StatusRunning)
}

func (r *CampaignRepository) MarkCancelled(id int, at time.Time) (bool, error) {
	query := `
		UPDATE campaigns SET status=$1, completed_at=$2, updated_at=NOW()
		WHERE id=$3 AND status IN ('draft', 'scheduled', 'running', 'paused')
	`
	return r.guardedExec(query, model.StatusCancelled, at, id)
}

// RevertSend undoes a running transition after the job fan-out failed.
func (r *CampaignRepository) RevertSend(id int, prev model.CampaignStatus) error {
	query := `UPDATE campaigns SET status=$1, started_at=NULL, updated_at=NOW() WHERE id=$2 AND status=$3`
	_, err := r.DB.Exec(query, prev, id, model.StatusRunning)
	return err
}

func (r *CampaignRepository) guardedExec(query string, args ...interface{}) (bool, error) {
	res, err := r.DB.Exec(query, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ====================== Aggregates ======================

func (r *CampaignRepository) UpdateCounts(id, sent, delivered, failed int) error {
	query := `
		UPDATE campaigns
		SET sent_count=$1, delivered_count=$2, failed_count=$3, updated_at=NOW()
		WHERE id=$4
	`
	_, err := r.DB.Exec(query, sent, delivered, failed, id)
	return err
}

func (r *CampaignRepository) ListDueScheduled(now time.Time, limit int) ([]*model.Campaign, error) {
	query := `
		SELECT ` + campaignColumns + ` FROM campaigns
		WHERE status=$1 AND scheduled_at <= $2
		ORDER BY scheduled_at ASC LIMIT $3
	`
	return r.queryCampaigns(query, model.StatusScheduled, now, limit)
}

// ListCompletable returns running campaigns where every recipient has reached
// a terminal status.
func (r *CampaignRepository) ListCompletable(limit int) ([]*model.Campaign, error) {
	query := `
		SELECT ` + campaignColumns + ` FROM campaigns c
		WHERE c.status=$1
		  AND NOT EXISTS (
			SELECT 1 FROM campaign_contacts cc
			WHERE cc.campaign_id = c.id AND cc.status = 'pending'
		  )
		ORDER BY c.id ASC LIMIT $2
	`
	return r.queryCampaigns(query, model.StatusRunning, limit)
}

func (r *CampaignRepository) queryCampaigns(query string, args ...interface{}) ([]*model.Campaign, error) {
	rows, err := r.DB.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	campaigns := []*model.Campaign{}
	for rows.Next() {
		c, err := r.scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		campaigns = append(campaigns, c)
	}
	return campaigns, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *CampaignRepository) scanCampaign(row rowScanner) (*model.Campaign, error) {
	var c model.Campaign
	var vars []byte
	err := row.Scan(
		&c.ID, &c.CompanyID, &c.Name, &c.TemplateID, &c.IntegrationID, &c.Status,
		&c.ScheduledAt, &c.StartedAt, &c.CompletedAt,
		&c.TotalContacts, &c.SentCount, &c.DeliveredCount, &c.FailedCount,
		&vars, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(vars) > 0 {
		if err := json.Unmarshal(vars, &c.Variables); err != nil {
			return nil, fmt.Errorf("failed to unmarshal variables for campaign %d: %w", c.ID, err)
		}
	}
	return &c, nil
}

var _ CampaignRepositoryInterface = (*CampaignRepository)(nil)
