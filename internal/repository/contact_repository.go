package repository

import (
	"database/sql"

	"github.com/sendflock/sendflock-backend/internal/model"
)

// ContactRepositoryInterface defines the contact reads the core needs.
type ContactRepositoryInterface interface {
	GetByID(companyID, id int) (*model.Contact, error)
	ListByCompany(companyID int) ([]model.Contact, error)
}

type ContactRepository struct {
	DB *sql.DB
}

// GetByID fetches a contact scoped to its company.
func (r *ContactRepository) GetByID(companyID, id int) (*model.Contact, error) {
	query := `
		SELECT id, company_id, phone, first_name, last_name
		FROM contacts
		WHERE id = $1 AND company_id = $2
	`
	row := r.DB.QueryRow(query, id, companyID)

	var c model.Contact
	if err := row.Scan(&c.ID, &c.CompanyID, &c.Phone, &c.FirstName, &c.LastName); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // not found
		}
		return nil, err
	}
	return &c, nil
}

// ListByCompany fetches all contacts for a company.
func (r *ContactRepository) ListByCompany(companyID int) ([]model.Contact, error) {
	query := `
		SELECT id, company_id, phone, first_name, last_name
		FROM contacts
		WHERE company_id = $1
	`
	rows, err := r.DB.Query(query, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	contacts := []model.Contact{}
	for rows.Next() {
		var c model.Contact
		if err := rows.Scan(&c.ID, &c.CompanyID, &c.Phone, &c.FirstName, &c.LastName); err != nil {
			return nil, err
		}
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}

var _ ContactRepositoryInterface = (*ContactRepository)(nil)
