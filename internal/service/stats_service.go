package service

import (
	"github.com/sendflock/sendflock-backend/internal/model"
	"github.com/sendflock/sendflock-backend/internal/repository"
)

// StatsRecomputer is what the worker and webhook need from the aggregator.
type StatsRecomputer interface {
	Recompute(campaignID int) error
}

// StatsService derives the campaign counters from the persisted recipient
// statuses. Because counts are recomputed from ground truth rather than
// incremented in place, concurrent invocations for the same campaign are
// safe: last write wins and never drifts.
type StatsService struct {
	CampaignRepo repository.CampaignRepositoryInterface
	ContactRepo  repository.CampaignContactRepositoryInterface
}

func (s *StatsService) Recompute(campaignID int) error {
	counts, err := s.ContactRepo.CountByStatus(campaignID)
	if err != nil {
		return err
	}

	// A delivered recipient was necessarily sent first.
	sent := counts[model.ContactSent] + counts[model.ContactDelivered]
	return s.CampaignRepo.UpdateCounts(campaignID, sent, counts[model.ContactDelivered], counts[model.ContactFailed])
}

var _ StatsRecomputer = (*StatsService)(nil)
