package service

import (
	"context"
	"errors"
	"math/rand"
	"regexp"
	"time"

	"github.com/disparoja/dispatch-backend/internal/channel"
	appErrors "github.com/disparoja/dispatch-backend/internal/errors"
	"github.com/disparoja/dispatch-backend/internal/model"
	"github.com/disparoja/dispatch-backend/internal/queue"
	"github.com/disparoja/dispatch-backend/internal/repository"
	"go.uber.org/zap"
)

const (
	// Anti-throttling jitter before each send. Skipped for the first job
	// of a batch so the operator gets immediate feedback.
	minSendJitter = 30 * time.Second
	maxSendJitter = 5 * time.Minute

	// PausePollInterval is how long a job parks itself while its campaign
	// is paused. Polling keeps paused campaigns resumable with no blocked
	// worker and no extra signaling.
	PausePollInterval = 5 * time.Minute

	// QuotaRetryDelay parks a job that found the daily quota spent at
	// dispatch time. Tomorrow is a new counter.
	QuotaRetryDelay = 24 * time.Hour

	defaultLeadName = "there"
)

var namePlaceholder = regexp.MustCompile(`(?i)\{\{\s*(name|nome)\s*\}\}`)

// DispatchService executes one queued send attempt. Every step that can be
// reached twice (queue redelivery, pause/resume races) re-checks durable
// state first, so replays are no-ops.
type DispatchService struct {
	CampaignRepo repository.CampaignRepositoryInterface
	LeadRepo     repository.LeadRepositoryInterface
	ContactRepo  repository.ContactRepositoryInterface
	Usage        *UsageService
	Channel      channel.Adapter
	Log          *zap.Logger

	// Jitter is a hook for tests; nil means the random window above.
	Jitter func() time.Duration
}

// Process runs the per-job state machine. Returning a non-zero duration asks
// the queue to redeliver the same job later; returning an error hands the
// job to the queue's bounded retry.
func (s *DispatchService) Process(ctx context.Context, job queue.DispatchJob) (time.Duration, error) {
	log := s.Log.With(
		zap.String("campaign_id", job.CampaignID),
		zap.String("lead_id", job.LeadID),
		zap.String("instance", job.InstanceName),
	)

	// Campaign gate.
	campaign, err := s.CampaignRepo.GetByID(job.CampaignID, job.TenantID)
	if err != nil {
		var notFound *appErrors.CampaignNotFoundError
		if errors.As(err, &notFound) {
			log.Info("dropping job: campaign no longer exists")
			return 0, nil
		}
		return 0, err
	}
	if campaign.Status.Terminal() {
		log.Info("dropping job: campaign reached terminal state", zap.String("status", string(campaign.Status)))
		return 0, nil
	}
	if campaign.Status == model.CampaignPaused {
		log.Info("campaign paused, parking job", zap.Duration("recheck_in", PausePollInterval))
		return PausePollInterval, nil
	}

	// Lead gate: a lead leaves pending exactly once.
	lead, err := s.LeadRepo.GetByID(job.LeadID)
	if err != nil {
		return 0, err
	}
	if lead == nil || lead.Status != model.LeadPending {
		log.Info("dropping job: lead already processed")
		return 0, nil
	}

	if job.Recipient == "" {
		log.Error("lead has no recipient identifier")
		return 0, s.markFailed(lead.ID, model.LeadFailed, "missing recipient", campaign)
	}

	// CRM gate: a contact a human is already talking to must not receive
	// an automated blast. Marking the lead sent keeps the campaign from
	// ever picking it up again.
	contact, err := s.ContactRepo.FindByExternalID(job.TenantID, job.Recipient)
	if err != nil {
		return 0, err
	}
	if !contact.ColdStage() {
		log.Info("suppressing send: contact already engaged", zap.String("stage", contact.Stage))
		if err := s.LeadRepo.MarkSent(lead.ID, time.Now()); err != nil {
			return 0, err
		}
		return 0, s.maybeComplete(campaign)
	}

	if !job.IsFirst {
		delay := s.jitter()
		log.Info("waiting organic interval before send", zap.Duration("delay", delay))
		if err := sleepCtx(ctx, delay); err != nil {
			return 0, err
		}
	}

	// Quota re-check: the admission-time reservation can be stale when
	// several campaigns share an instance.
	remaining, err := s.Usage.RemainingQuota(job.TenantID, job.InstanceName, FeatureWhatsAppMessages, job.DailyLimit)
	if err != nil {
		return 0, err
	}
	if remaining <= 0 {
		log.Warn("daily limit spent at dispatch time, deferring to tomorrow")
		return QuotaRetryDelay, nil
	}

	message := s.renderMessage(job, lead)

	externalID, sendErr := s.Channel.SendText(ctx, job.TenantID, job.InstanceName, job.Recipient, message)
	if sendErr != nil {
		var notFound *appErrors.RecipientNotFoundError
		if errors.As(sendErr, &notFound) {
			log.Warn("recipient does not exist, marking lead invalid", zap.String("recipient", job.Recipient))
			return 0, s.markFailed(lead.ID, model.LeadInvalid, sendErr.Error(), campaign)
		}
		log.Error("send failed", zap.Error(sendErr))
		if err := s.markFailed(lead.ID, model.LeadFailed, sendErr.Error(), campaign); err != nil {
			return 0, err
		}
		return 0, sendErr
	}

	if err := s.LeadRepo.MarkSent(lead.ID, time.Now()); err != nil {
		return 0, err
	}

	// Self-healing cross-reference: the contact moves to contacted and is
	// pinned to the instance that actually reached it.
	s.updateContactAfterSend(log, job, contact)

	if err := s.Usage.Increment(job.TenantID, job.InstanceName, FeatureWhatsAppMessages, 1); err != nil {
		log.Warn("failed to increment usage counter", zap.Error(err))
	}

	log.Info("message sent", zap.String("external_message_id", externalID))
	return 0, s.maybeComplete(campaign)
}

func (s *DispatchService) renderMessage(job queue.DispatchJob, lead *model.Lead) string {
	message := job.Message
	if len(job.Variations) > 0 {
		message = job.Variations[rand.Intn(len(job.Variations))]
	}
	name := job.LeadName
	if name == "" {
		name = lead.Name
	}
	if name == "" {
		name = defaultLeadName
	}
	return namePlaceholder.ReplaceAllString(message, name)
}

func (s *DispatchService) updateContactAfterSend(log *zap.Logger, job queue.DispatchJob, contact *model.Contact) {
	if contact == nil {
		// The recipient may be stored under its normalized digits.
		found, err := s.ContactRepo.FindByExternalID(job.TenantID, channel.DigitsOnly(job.Recipient))
		if err != nil || found == nil {
			return
		}
		contact = found
	}
	if err := s.ContactRepo.UpdateStage(job.TenantID, contact.ID, model.StageContacted, job.InstanceName); err != nil {
		log.Warn("failed to update contact stage", zap.Error(err))
		return
	}
	log.Info("contact moved to contacted stage", zap.String("contact_id", contact.ID))
}

func (s *DispatchService) markFailed(leadID string, status model.LeadStatus, reason string, campaign *model.Campaign) error {
	if err := s.LeadRepo.MarkFailed(leadID, status, reason); err != nil {
		return err
	}
	return s.maybeComplete(campaign)
}

// maybeComplete flips a running campaign to completed once its last lead
// reached a terminal status. Jobs still queued for this campaign hit the
// lead gate and drop.
func (s *DispatchService) maybeComplete(campaign *model.Campaign) error {
	if campaign.Status != model.CampaignRunning {
		return nil
	}
	counts, err := s.LeadRepo.CountByStatus(campaign.ID)
	if err != nil {
		return err
	}
	if counts[model.LeadPending] > 0 {
		return nil
	}
	s.Log.Info("all leads processed, completing campaign", zap.String("campaign_id", campaign.ID))
	return s.CampaignRepo.UpdateStatus(campaign.ID, model.CampaignCompleted)
}

func (s *DispatchService) jitter() time.Duration {
	if s.Jitter != nil {
		return s.Jitter()
	}
	window := maxSendJitter - minSendJitter
	return minSendJitter + time.Duration(rand.Int63n(int64(window)+1))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
