package service

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/streadway/amqp"

	appErrors "github.com/sendflock/sendflock-backend/internal/errors"
	"github.com/sendflock/sendflock-backend/internal/model"
	"github.com/sendflock/sendflock-backend/internal/provider"
	"github.com/sendflock/sendflock-backend/internal/queue"
	"github.com/sendflock/sendflock-backend/internal/repository"
)

const (
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 5 * time.Second
	DefaultConcurrency = 5
)

// Outcome tells the consumer loop what to do with the broker delivery.
type Outcome int

const (
	// OutcomeAck removes the delivery: the job succeeded, was skipped, or
	// its retry has already been republished.
	OutcomeAck Outcome = iota

	// OutcomeDeadLetter rejects the delivery without requeue, routing it to
	// the dead-letter queue.
	OutcomeDeadLetter
)

// DispatchWorker consumes SendJobs, calls the provider and records the
// outcome. Provider errors never escape the worker; they are only observable
// through recipient state and the message log.
type DispatchWorker struct {
	CampaignRepo  repository.CampaignRepositoryInterface
	RecipientRepo repository.CampaignContactRepositoryInterface
	LogRepo       repository.MessageLogRepositoryInterface
	Stats         StatsRecomputer
	Queue         queue.Publisher
	Sender        provider.Sender

	MaxRetries  int           // automatic retry budget per job (default 3)
	RetryDelay  time.Duration // delay before a transient retry (default 5s)
	Concurrency int           // jobs processed at once per process (default 5)
}

func (w *DispatchWorker) maxRetries() int {
	if w.MaxRetries > 0 {
		return w.MaxRetries
	}
	return DefaultMaxRetries
}

func (w *DispatchWorker) retryDelay() time.Duration {
	if w.RetryDelay > 0 {
		return w.RetryDelay
	}
	return DefaultRetryDelay
}

// Run drains deliveries until the channel closes or ctx is cancelled,
// processing at most Concurrency jobs at a time. In-flight jobs finish
// before Run returns.
func (w *DispatchWorker) Run(ctx context.Context, deliveries <-chan amqp.Delivery) {
	concurrency := w.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			return
		case d, ok := <-deliveries:
			if !ok {
				wg.Wait()
				return
			}
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				// Leave the delivery unacked; the broker requeues it when
				// the channel closes.
				wg.Wait()
				return
			}
			wg.Add(1)
			go func(d amqp.Delivery) {
				defer wg.Done()
				defer func() { <-sem }()
				w.handleDelivery(ctx, d)
			}(d)
		}
	}
}

func (w *DispatchWorker) handleDelivery(ctx context.Context, d amqp.Delivery) {
	var job queue.SendJob
	if err := json.Unmarshal(d.Body, &job); err != nil {
		log.Println("⚠️ invalid job payload, dead-lettering:", err)
		d.Nack(false, false)
		return
	}

	switch w.HandleJob(ctx, job) {
	case OutcomeDeadLetter:
		d.Nack(false, false)
	default:
		d.Ack(false)
	}
}

// HandleJob runs one job to its outcome: provider call, outcome bookkeeping,
// retry scheduling or dead-lettering.
func (w *DispatchWorker) HandleJob(ctx context.Context, job queue.SendJob) Outcome {
	campaign, err := w.CampaignRepo.GetByID(job.CompanyID, job.CampaignID)
	if err != nil {
		var nf *appErrors.ErrCampaignNotFound
		if errors.As(err, &nf) {
			log.Println("⚠️ campaign", job.CampaignID, "gone, dropping job", job.ID)
			return OutcomeAck
		}
		// Store hiccup: requeue through the retry budget instead of burning
		// the recipient.
		return w.scheduleRetry(job, err)
	}

	// Re-check immediately before the provider call: paused and cancelled
	// campaigns get their queued jobs acked without side effect.
	if campaign.Status == model.StatusPaused || campaign.Status == model.StatusCancelled {
		log.Println("📩 campaign", job.CampaignID, "is", campaign.Status, "- skipping job", job.ID)
		return OutcomeAck
	}

	// Idempotent second render pass fills any placeholders left over when
	// the job was built.
	content := RenderTemplate(job.MessageContent, job.TemplateVariables)
	now := time.Now().UTC()

	resp, err := w.Sender.Send(ctx, provider.SendRequest{
		Phone:         job.Phone,
		Content:       content,
		CompanyID:     job.CompanyID,
		IntegrationID: job.IntegrationID,
	})
	if err == nil {
		w.recordSuccess(job, content, resp, now)
		return OutcomeAck
	}

	if provider.IsPermanent(err) {
		log.Println("⚠️ permanent failure for job", job.ID, ":", err)
		w.recordFailure(job, content, err, now)
		return OutcomeAck
	}

	log.Printf("⚠️ transient failure for job %s (attempt %d): %v\n", job.ID, job.RetryCount+1, err)
	w.appendLog(&model.MessageLog{
		CompanyID:      job.CompanyID,
		CampaignID:     job.CampaignID,
		ContactID:      job.ContactID,
		Phone:          job.Phone,
		MessageContent: content,
		Status:         model.LogStatusFailed,
		ErrorMessage:   err.Error(),
		SentAt:         &now,
	})

	if job.RetryCount+1 > w.maxRetries() {
		log.Println("⚠️ retry budget exhausted for job", job.ID, "- dead-lettering")
		w.markFailed(job, err)
		return OutcomeDeadLetter
	}
	return w.scheduleRetry(job, err)
}

// scheduleRetry republishes the job with an incremented retry count after
// the configured delay. The original delivery is acked by the caller, so
// worker capacity is freed immediately; the delayed copy lives in the broker
// and survives a worker crash.
func (w *DispatchWorker) scheduleRetry(job queue.SendJob, cause error) Outcome {
	if job.RetryCount+1 > w.maxRetries() {
		w.markFailed(job, cause)
		return OutcomeDeadLetter
	}
	job.RetryCount++
	if err := w.Queue.PublishRetry(job, w.retryDelay()); err != nil {
		log.Println("⚠️ failed to schedule retry for job", job.ID, "- dead-lettering:", err)
		w.markFailed(job, cause)
		return OutcomeDeadLetter
	}
	return OutcomeAck
}

func (w *DispatchWorker) recordSuccess(job queue.SendJob, content string, resp *provider.SendResponse, now time.Time) {
	w.appendLog(&model.MessageLog{
		CompanyID:         job.CompanyID,
		CampaignID:        job.CampaignID,
		ContactID:         job.ContactID,
		Phone:             job.Phone,
		MessageContent:    content,
		Status:            model.LogStatusSent,
		ProviderMessageID: resp.MessageID,
		ProviderResponse:  resp.RawResponse,
		SentAt:            &now,
	})

	if err := w.RecipientRepo.MarkSent(job.CampaignID, job.ContactID, now); err != nil {
		log.Println("⚠️ failed to mark recipient sent:", err)
	}
	w.recompute(job.CampaignID)
	log.Println("✅ job", job.ID, "sent to", job.Phone)
}

func (w *DispatchWorker) recordFailure(job queue.SendJob, content string, cause error, now time.Time) {
	w.appendLog(&model.MessageLog{
		CompanyID:      job.CompanyID,
		CampaignID:     job.CampaignID,
		ContactID:      job.ContactID,
		Phone:          job.Phone,
		MessageContent: content,
		Status:         model.LogStatusFailed,
		ErrorMessage:   cause.Error(),
		SentAt:         &now,
	})
	w.markFailed(job, cause)
}

func (w *DispatchWorker) markFailed(job queue.SendJob, cause error) {
	if err := w.RecipientRepo.MarkFailed(job.CampaignID, job.ContactID, cause.Error()); err != nil {
		log.Println("⚠️ failed to mark recipient failed:", err)
	}
	w.recompute(job.CampaignID)
}

func (w *DispatchWorker) appendLog(l *model.MessageLog) {
	if err := w.LogRepo.Create(l); err != nil {
		log.Println("⚠️ failed to write message log:", err)
	}
}

func (w *DispatchWorker) recompute(campaignID int) {
	if err := w.Stats.Recompute(campaignID); err != nil {
		log.Println("⚠️ failed to recompute stats for campaign", campaignID, ":", err)
	}
}
