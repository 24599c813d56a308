package controller

import (
	"encoding/json"
	"net/http"

	"github.com/sendflock/sendflock-backend/internal/model"
	"github.com/sendflock/sendflock-backend/internal/repository"
)

// TemplateController manages the message templates campaigns render from.
type TemplateController struct {
	TemplateRepo repository.TemplateRepositoryInterface
}

func (c *TemplateController) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	company, ok := companyID(r)
	if !ok {
		http.Error(w, "missing company", http.StatusBadRequest)
		return
	}

	var body struct {
		Name    string `json:"name"`
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if body.Content == "" {
		http.Error(w, "content is required", http.StatusBadRequest)
		return
	}

	t := &model.Template{
		CompanyID: company,
		Name:      body.Name,
		Content:   body.Content,
	}
	if err := c.TemplateRepo.Create(t); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}
