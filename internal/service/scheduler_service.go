package service

import (
	"errors"
	"log"
	"time"

	appErrors "github.com/sendflock/sendflock-backend/internal/errors"
	"github.com/sendflock/sendflock-backend/internal/repository"
)

const defaultSchedulerBatch = 100

// SchedulerService runs the two periodic maintenance passes: promoting due
// scheduled campaigns and completing campaigns whose recipients are all
// terminal. Both passes are idempotent; the guarded status updates make
// overlapping invocations harmless.
type SchedulerService struct {
	CampaignRepo repository.CampaignRepositoryInterface
	Orchestrator *CampaignService
	BatchSize    int
}

func (s *SchedulerService) batchSize() int {
	if s.BatchSize > 0 {
		return s.BatchSize
	}
	return defaultSchedulerBatch
}

// PromoteDue sends every scheduled campaign whose scheduled_at has passed.
// A campaign already promoted by an overlapping run fails its transition
// guard and is simply skipped.
func (s *SchedulerService) PromoteDue(now time.Time) error {
	due, err := s.CampaignRepo.ListDueScheduled(now, s.batchSize())
	if err != nil {
		return err
	}

	for _, c := range due {
		result, err := s.Orchestrator.Send(c.CompanyID, c.ID, c.IntegrationID)
		if err != nil {
			var invalid *appErrors.ErrInvalidTransition
			if errors.As(err, &invalid) {
				// Lost the race to a concurrent promoter; already running.
				continue
			}
			log.Println("⚠️ failed to promote scheduled campaign", c.ID, ":", err)
			continue
		}
		log.Println("✅ promoted scheduled campaign", c.ID, "-", result.MessagesQueued, "jobs queued")
	}
	return nil
}

// CompleteFinished marks running campaigns with no pending recipients as
// completed.
func (s *SchedulerService) CompleteFinished(now time.Time) error {
	done, err := s.CampaignRepo.ListCompletable(s.batchSize())
	if err != nil {
		return err
	}

	for _, c := range done {
		ok, err := s.CampaignRepo.MarkCompleted(c.ID, now)
		if err != nil {
			log.Println("⚠️ failed to complete campaign", c.ID, ":", err)
			continue
		}
		if ok {
			log.Println("✅ campaign", c.ID, "completed")
		}
	}
	return nil
}
