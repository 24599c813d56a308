package repository

import (
	"database/sql"
	"time"

	appErrors "github.com/sendflock/sendflock-backend/internal/errors"
	"github.com/sendflock/sendflock-backend/internal/model"
)

type TemplateRepositoryInterface interface {
	Create(t *model.Template) error
	GetByID(companyID, id int) (*model.Template, error)
}

type TemplateRepository struct {
	DB *sql.DB
}

func (r *TemplateRepository) Create(t *model.Template) error {
	t.CreatedAt = time.Now()
	query := `
		INSERT INTO templates (company_id, name, content, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	return r.DB.QueryRow(query, t.CompanyID, t.Name, t.Content, t.CreatedAt).Scan(&t.ID)
}

func (r *TemplateRepository) GetByID(companyID, id int) (*model.Template, error) {
	query := `
		SELECT id, company_id, name, content, created_at
		FROM templates
		WHERE id = $1 AND company_id = $2
	`
	var t model.Template
	err := r.DB.QueryRow(query, id, companyID).Scan(&t.ID, &t.CompanyID, &t.Name, &t.Content, &t.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.NewTemplateNotFound(id)
		}
		return nil, err
	}
	return &t, nil
}

var _ TemplateRepositoryInterface = (*TemplateRepository)(nil)
