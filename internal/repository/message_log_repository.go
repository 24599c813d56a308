package repository

import (
	"database/sql"
	"time"

	"github.com/sendflock/sendflock-backend/internal/model"
)

type MessageLogRepositoryInterface interface {
	Create(l *model.MessageLog) error

	// MarkDelivered and MarkRead stamp the log row matching a provider
	// message id and return it so the caller can locate the recipient.
	// They return nil without error when no row matches.
	MarkDelivered(providerMessageID string, at time.Time) (*model.MessageLog, error)
	MarkRead(providerMessageID string, at time.Time) (*model.MessageLog, error)

	ListByCampaign(campaignID, offset, limit int) ([]*model.MessageLog, error)
}

type MessageLogRepository struct {
	DB *sql.DB
}

func (r *MessageLogRepository) Create(l *model.MessageLog) error {
	query := `
		INSERT INTO message_logs
		(company_id, campaign_id, contact_id, phone, message_content, status,
		 provider_message_id, provider_response, error_message, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`
	// provider_response is JSONB; failed attempts have no response body, so
	// write NULL rather than an empty string the column would reject.
	response := sql.NullString{String: l.ProviderResponse, Valid: l.ProviderResponse != ""}
	return r.DB.QueryRow(query,
		l.CompanyID, l.CampaignID, l.ContactID, l.Phone, l.MessageContent, l.Status,
		l.ProviderMessageID, response, l.ErrorMessage, l.SentAt,
	).Scan(&l.ID)
}

const logColumns = `id, company_id, campaign_id, contact_id, phone, message_content, status,
	provider_message_id, provider_response, error_message, sent_at, delivered_at, read_at`

func (r *MessageLogRepository) MarkDelivered(providerMessageID string, at time.Time) (*model.MessageLog, error) {
	query := `
		UPDATE message_logs SET delivered_at=$2
		WHERE provider_message_id=$1 AND status='sent' AND delivered_at IS NULL
		RETURNING ` + logColumns
	return r.scanLog(r.DB.QueryRow(query, providerMessageID, at))
}

func (r *MessageLogRepository) MarkRead(providerMessageID string, at time.Time) (*model.MessageLog, error) {
	query := `
		UPDATE message_logs SET read_at=$2
		WHERE provider_message_id=$1 AND status='sent' AND read_at IS NULL
		RETURNING ` + logColumns
	return r.scanLog(r.DB.QueryRow(query, providerMessageID, at))
}

func (r *MessageLogRepository) ListByCampaign(campaignID, offset, limit int) ([]*model.MessageLog, error) {
	query := `SELECT ` + logColumns + ` FROM message_logs WHERE campaign_id=$1 ORDER BY id DESC LIMIT $2 OFFSET $3`
	rows, err := r.DB.Query(query, campaignID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := []*model.MessageLog{}
	for rows.Next() {
		l, err := r.scanLog(rows)
		if err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

func (r *MessageLogRepository) scanLog(row rowScanner) (*model.MessageLog, error) {
	var l model.MessageLog
	var providerMessageID, providerResponse, errorMessage sql.NullString
	err := row.Scan(
		&l.ID, &l.CompanyID, &l.CampaignID, &l.ContactID, &l.Phone, &l.MessageContent, &l.Status,
		&providerMessageID, &providerResponse, &errorMessage, &l.SentAt, &l.DeliveredAt, &l.ReadAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	l.ProviderMessageID = providerMessageID.String
	l.ProviderResponse = providerResponse.String
	l.ErrorMessage = errorMessage.String
	return &l, nil
}

var _ MessageLogRepositoryInterface = (*MessageLogRepository)(nil)
