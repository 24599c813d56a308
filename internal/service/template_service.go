package service

import (
	"strings"

	"github.com/sendflock/sendflock-backend/internal/model"
)

// RenderTemplate substitutes {key} placeholders with values. Pure and
// idempotent: a second pass over already-rendered content changes nothing.
func RenderTemplate(template string, data map[string]string) string {
	result := template
	for k, v := range data {
		if v == "" {
			v = "<unknown>"
		}
		result = strings.ReplaceAll(result, "{"+k+"}", v)
	}
	return result
}

// RecipientVariables merges the campaign-level variable bindings with the
// per-recipient contact fields. Contact fields win on key collisions.
func RecipientVariables(campaignVars map[string]string, rec model.PendingRecipient) map[string]string {
	vars := make(map[string]string, len(campaignVars)+3)
	for k, v := range campaignVars {
		vars[k] = v
	}
	vars["first_name"] = rec.FirstName
	vars["last_name"] = rec.LastName
	vars["phone"] = rec.Phone
	return vars
}
