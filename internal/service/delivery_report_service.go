package service

import (
	"fmt"
	"time"

	"github.com/sendflock/sendflock-backend/internal/repository"
)

// DeliveryReportService applies provider delivery reports: it stamps the
// matching message log row and, for delivered reports, upgrades the
// recipient from sent to delivered. Reports for unknown or already-stamped
// messages are ignored, so redelivered webhooks are harmless.
type DeliveryReportService struct {
	LogRepo       repository.MessageLogRepositoryInterface
	RecipientRepo repository.CampaignContactRepositoryInterface
	Stats         StatsRecomputer
}

func (s *DeliveryReportService) HandleReport(providerMessageID, status string, at time.Time) error {
	switch status {
	case "delivered":
		entry, err := s.LogRepo.MarkDelivered(providerMessageID, at)
		if err != nil {
			return err
		}
		if entry == nil {
			return nil
		}
		if err := s.RecipientRepo.MarkDelivered(entry.CampaignID, entry.ContactID, at); err != nil {
			return err
		}
		return s.Stats.Recompute(entry.CampaignID)

	case "read":
		_, err := s.LogRepo.MarkRead(providerMessageID, at)
		return err

	default:
		return fmt.Errorf("unknown delivery report status: %s", status)
	}
}
