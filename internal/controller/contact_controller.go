package controller

import (
	"net/http"

	"github.com/sendflock/sendflock-backend/internal/repository"
)

// ContactController exposes the contact reads operators need when building
// a campaign's recipient list.
type ContactController struct {
	ContactRepo repository.ContactRepositoryInterface
}

func (c *ContactController) ListContacts(w http.ResponseWriter, r *http.Request) {
	company, ok := companyID(r)
	if !ok {
		http.Error(w, "missing company", http.StatusBadRequest)
		return
	}

	contacts, err := c.ContactRepo.ListByCompany(company)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"data": contacts})
}
