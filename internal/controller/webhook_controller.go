package controller

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/sendflock/sendflock-backend/internal/service"
)

// WebhookController receives provider delivery reports.
type WebhookController struct {
	Reports *service.DeliveryReportService
}

func (c *WebhookController) DeliveryReport(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ProviderMessageID string     `json:"provider_message_id"`
		Status            string     `json:"status"`
		Timestamp         *time.Time `json:"timestamp"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if body.ProviderMessageID == "" {
		http.Error(w, "missing provider_message_id", http.StatusBadRequest)
		return
	}

	at := time.Now().UTC()
	if body.Timestamp != nil {
		at = body.Timestamp.UTC()
	}

	if err := c.Reports.HandleReport(body.ProviderMessageID, body.Status, at); err != nil {
		log.Println("⚠️ failed to apply delivery report:", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
