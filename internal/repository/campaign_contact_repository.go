package repository

import (
	"database/sql"
	"time"

	"github.com/lib/pq"

	appErrors "github.com/sendflock/sendflock-backend/internal/errors"
	"github.com/sendflock/sendflock-backend/internal/model"
)

type CampaignContactRepositoryInterface interface {
	// Attach inserts one pending row per contact, skipping duplicates and
	// contacts outside the campaign's company, and recomputes total_contacts
	// in the same transaction. The campaign row is locked for the duration,
	// so an attach either commits while the campaign is still draft or
	// scheduled, or fails with ErrCampaignLocked. Returns the new distinct
	// total.
	Attach(campaignID, companyID int, contactIDs []int) (int, error)

	ListPendingWithContacts(campaignID int) ([]model.PendingRecipient, error)
	CountByStatus(campaignID int) (map[model.ContactStatus]int, error)
	CountAll(campaignID int) (int, error)

	// Monotonic status updates: each guards on the expected source status so
	// a redelivered job or a late delivery report can never move a recipient
	// backwards.
	MarkSent(campaignID, contactID int, at time.Time) error
	MarkDelivered(campaignID, contactID int, at time.Time) error
	MarkFailed(campaignID, contactID int, errorMessage string) error

	// ResetFailed is the operator-initiated retry: failed -> pending.
	ResetFailed(campaignID, contactID int) (bool, error)
}

type CampaignContactRepository struct {
	DB *sql.DB
}

func (r *CampaignContactRepository) Attach(campaignID, companyID int, contactIDs []int) (int, error) {
	tx, err := r.DB.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	// Lock the campaign row so this attach serializes against a concurrent
	// send: either the insert commits while the campaign is still editable
	// and the send's post-transition fan-out sees the new rows, or the
	// campaign already won its transition and the attach fails.
	var status model.CampaignStatus
	lock := `SELECT status FROM campaigns WHERE id=$1 AND company_id=$2 FOR UPDATE`
	if err := tx.QueryRow(lock, campaignID, companyID).Scan(&status); err != nil {
		if err == sql.ErrNoRows {
			return 0, appErrors.NewCampaignNotFound(campaignID)
		}
		return 0, err
	}
	if status != model.StatusDraft && status != model.StatusScheduled {
		return 0, appErrors.NewCampaignLocked(campaignID, string(status))
	}

	insert := `
		INSERT INTO campaign_contacts (campaign_id, contact_id, status)
		SELECT $1, c.id, 'pending'
		FROM contacts c
		WHERE c.company_id = $2 AND c.id = ANY($3)
		ON CONFLICT (campaign_id, contact_id) DO NOTHING
	`
	if _, err := tx.Exec(insert, campaignID, companyID, pq.Array(contactIDs)); err != nil {
		return 0, err
	}

	var total int
	recount := `
		UPDATE campaigns
		SET total_contacts = (SELECT COUNT(*) FROM campaign_contacts WHERE campaign_id=$1),
		    updated_at = NOW()
		WHERE id=$1
		RETURNING total_contacts
	`
	if err := tx.QueryRow(recount, campaignID).Scan(&total); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return total, nil
}

func (r *CampaignContactRepository) ListPendingWithContacts(campaignID int) ([]model.PendingRecipient, error) {
	query := `
		SELECT cc.contact_id, c.phone, c.first_name, c.last_name
		FROM campaign_contacts cc
		JOIN contacts c ON c.id = cc.contact_id
		WHERE cc.campaign_id = $1 AND cc.status = 'pending'
		ORDER BY cc.id
	`
	rows, err := r.DB.Query(query, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	recipients := []model.PendingRecipient{}
	for rows.Next() {
		var p model.PendingRecipient
		if err := rows.Scan(&p.ContactID, &p.Phone, &p.FirstName, &p.LastName); err != nil {
			return nil, err
		}
		recipients = append(recipients, p)
	}
	return recipients, rows.Err()
}

func (r *CampaignContactRepository) CountByStatus(campaignID int) (map[model.ContactStatus]int, error) {
	query := `SELECT status, COUNT(*) FROM campaign_contacts WHERE campaign_id=$1 GROUP BY status`
	rows, err := r.DB.Query(query, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := map[model.ContactStatus]int{
		model.ContactPending:   0,
		model.ContactSent:      0,
		model.ContactDelivered: 0,
		model.ContactFailed:    0,
	}
	for rows.Next() {
		var status model.ContactStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

func (r *CampaignContactRepository) CountAll(campaignID int) (int, error) {
	var count int
	err := r.DB.QueryRow(`SELECT COUNT(*) FROM campaign_contacts WHERE campaign_id=$1`, campaignID).Scan(&count)
	return count, err
}

func (r *CampaignContactRepository) MarkSent(campaignID, contactID int, at time.Time) error {
	query := `
		UPDATE campaign_contacts SET status='sent', sent_at=$3, error_message=''
		WHERE campaign_id=$1 AND contact_id=$2 AND status='pending'
	`
	_, err := r.DB.Exec(query, campaignID, contactID, at)
	return err
}

func (r *CampaignContactRepository) MarkDelivered(campaignID, contactID int, at time.Time) error {
	query := `
		UPDATE campaign_contacts SET status='delivered', delivered_at=$3
		WHERE campaign_id=$1 AND contact_id=$2 AND status='sent'
	`
	_, err := r.DB.Exec(query, campaignID, contactID, at)
	return err
}

func (r *CampaignContactRepository) MarkFailed(campaignID, contactID int, errorMessage string) error {
	query := `
		UPDATE campaign_contacts SET status='failed', error_message=$3
		WHERE campaign_id=$1 AND contact_id=$2 AND status='pending'
	`
	_, err := r.DB.Exec(query, campaignID, contactID, errorMessage)
	return err
}

func (r *CampaignContactRepository) ResetFailed(campaignID, contactID int) (bool, error) {
	query := `
		UPDATE campaign_contacts SET status='pending', sent_at=NULL, delivered_at=NULL, error_message=''
		WHERE campaign_id=$1 AND contact_id=$2 AND status='failed'
	`
	res, err := r.DB.Exec(query, campaignID, contactID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

var _ CampaignContactRepositoryInterface = (*CampaignContactRepository)(nil)
