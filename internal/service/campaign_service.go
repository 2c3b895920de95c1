package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	appErrors "github.com/disparoja/dispatch-backend/internal/errors"
	"github.com/disparoja/dispatch-backend/internal/model"
	"github.com/disparoja/dispatch-backend/internal/queue"
	"github.com/disparoja/dispatch-backend/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// StaggerInterval spaces the scheduled send times of one admission
	// batch. The i-th job of a batch is delayed i*StaggerInterval; the
	// first job goes out immediately so the operator sees activity.
	StaggerInterval = 30 * time.Second

	// Enqueue in chunks to bound connection pressure on big batches.
	enqueueChunkSize = 50

	// Daily send caps by channel class. Unofficial bridge instances get
	// banned quickly, hence the low cap.
	evolutionDailyLimit = 40
	officialDailyLimit  = 1000
)

type CampaignService struct {
	CampaignRepo    repository.CampaignRepositoryInterface
	LeadRepo        repository.LeadRepositoryInterface
	IntegrationRepo repository.IntegrationRepositoryInterface
	ContactRepo     repository.ContactRepositoryInterface
	AuditRepo       repository.AuditRepositoryInterface
	Usage           *UsageService
	Queue           queue.Queue
	Locks           StartLocker
	Log             *zap.Logger
}

type StartResult struct {
	CampaignID   string `json:"campaign_id"`
	LeadsQueued  int    `json:"leads_queued"`
	InstanceName string `json:"instance_name"`
	DailyLimit   int    `json:"daily_limit"`
	Status       string `json:"status"`
}

type CampaignDetails struct {
	Campaign *model.Campaign `json:"campaign"`
	Stats    map[string]int  `json:"stats"`
}

func dailyLimitFor(provider string) int {
	if provider == model.ProviderEvolution {
		return evolutionDailyLimit
	}
	return officialDailyLimit
}

// Start is the admission cycle: validate the campaign, resolve its channel
// instance and daily cap, select as many pending leads as today's quota
// allows, reserve that quota, flip the campaign to running and enqueue one
// staggered job per lead. The batch size *is* the backpressure: no more work
// enters the queue than can legally be sent today.
func (s *CampaignService) Start(ctx context.Context, campaignID, tenantID, userID string) (*StartResult, error) {
	acquired, err := s.Locks.Acquire(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if !acquired {
		return nil, appErrors.NewAlreadyRunning(campaignID)
	}
	defer s.Locks.Release(ctx, campaignID)

	campaign, err := s.CampaignRepo.GetByID(campaignID, tenantID)
	if err != nil {
		return nil, err
	}
	if campaign.Status == model.CampaignRunning {
		return nil, appErrors.NewAlreadyRunning(campaignID)
	}

	integration, err := s.IntegrationRepo.GetByID(campaign.IntegrationID, tenantID)
	if err != nil {
		return nil, err
	}
	if integration == nil || strings.TrimSpace(integration.InstanceName) == "" {
		s.Log.Error("could not resolve instance for campaign",
			zap.String("campaign_id", campaignID),
			zap.String("integration_id", campaign.IntegrationID))
		return nil, appErrors.NewInstanceUnresolved(campaignID, campaign.IntegrationID)
	}
	instanceName := strings.TrimSpace(integration.InstanceName)
	dailyLimit := dailyLimitFor(integration.Provider)

	s.Log.Info("starting admission",
		zap.String("campaign_id", campaignID),
		zap.String("instance", instanceName),
		zap.Int("daily_limit", dailyLimit))

	remaining, err := s.Usage.RemainingQuota(tenantID, instanceName, FeatureWhatsAppMessages, dailyLimit)
	if err != nil {
		return nil, err
	}
	if remaining <= 0 {
		return nil, appErrors.NewQuotaExceeded(instanceName, dailyLimit, dailyLimit, 0)
	}

	leads, err := s.LeadRepo.FindPending(campaignID, remaining)
	if err != nil {
		return nil, err
	}
	if len(leads) == 0 {
		return nil, s.classifyEmptyBatch(campaignID, remaining)
	}

	if err := s.Usage.Reserve(tenantID, instanceName, FeatureWhatsAppMessages, len(leads), dailyLimit); err != nil {
		return nil, err
	}

	if err := s.CampaignRepo.UpdateStatus(campaignID, model.CampaignRunning); err != nil {
		return nil, err
	}

	if userID != "" {
		if err := s.AuditRepo.Record(tenantID, userID, "CAMPAIGN_START", map[string]interface{}{
			"campaign_id":   campaignID,
			"campaign_name": campaign.Name,
			"leads_count":   len(leads),
			"instance_name": instanceName,
		}); err != nil {
			s.Log.Warn("failed to record audit entry", zap.Error(err))
		}
	}

	if err := s.enqueueBatch(campaign, leads, instanceName, dailyLimit); err != nil {
		return nil, err
	}

	s.Log.Info("campaign started",
		zap.String("campaign_id", campaignID),
		zap.Int("leads_queued", len(leads)))

	return &StartResult{
		CampaignID:   campaignID,
		LeadsQueued:  len(leads),
		InstanceName: instanceName,
		DailyLimit:   dailyLimit,
		Status:       string(model.CampaignRunning),
	}, nil
}

// classifyEmptyBatch tells the operator precisely why nothing was selected.
func (s *CampaignService) classifyEmptyBatch(campaignID string, remaining int) error {
	counts, err := s.LeadRepo.CountByStatus(campaignID)
	if err != nil {
		return err
	}
	total := 0
	for _, n := range counts {
		total += n
	}
	if total == 0 {
		return appErrors.NewEmptyCampaign(campaignID)
	}
	if counts[model.LeadPending] == 0 {
		return &appErrors.AllLeadsProcessedError{
			CampaignID: campaignID,
			Total:      total,
			Sent:       counts[model.LeadSent],
			Failed:     counts[model.LeadFailed],
			Invalid:    counts[model.LeadInvalid],
		}
	}
	return fmt.Errorf("could not select pending leads for campaign %s (quota: %d, pending: %d)",
		campaignID, remaining, counts[model.LeadPending])
}

func (s *CampaignService) enqueueBatch(campaign *model.Campaign, leads []*model.Lead, instanceName string, dailyLimit int) error {
	for i := 0; i < len(leads); i += enqueueChunkSize {
		end := i + enqueueChunkSize
		if end > len(leads) {
			end = len(leads)
		}
		for j, lead := range leads[i:end] {
			globalIndex := i + j
			job := queue.DispatchJob{
				LeadID:       lead.ID,
				LeadName:     lead.Name,
				CampaignID:   campaign.ID,
				TenantID:     campaign.TenantID,
				Recipient:    lead.ExternalID,
				Message:      campaign.MessageTemplate,
				Variations:   campaign.Variations,
				InstanceName: instanceName,
				DailyLimit:   dailyLimit,
				IsFirst:      globalIndex == 0,
			}
			delay := time.Duration(globalIndex) * StaggerInterval
			if job.IsFirst {
				delay = 0
			}
			if err := s.Queue.Enqueue(job, delay); err != nil {
				return fmt.Errorf("enqueue lead %d of %d for campaign %s: %w",
					globalIndex+1, len(leads), campaign.ID, err)
			}
		}
		s.Log.Info("chunk enqueued",
			zap.String("campaign_id", campaign.ID),
			zap.Int("chunk", i/enqueueChunkSize+1),
			zap.Int("chunks", (len(leads)+enqueueChunkSize-1)/enqueueChunkSize))
	}
	return nil
}

// Pause flips the campaign to paused, unconditionally. Pausing an already
// paused campaign is a no-op, which makes the button safe to mash. In-flight
// jobs see the status on their next campaign gate and re-delay themselves.
func (s *CampaignService) Pause(campaignID, tenantID string) (*model.Campaign, error) {
	campaign, err := s.CampaignRepo.GetByID(campaignID, tenantID)
	if err != nil {
		return nil, err
	}
	if err := s.CampaignRepo.UpdateStatus(campaignID, model.CampaignPaused); err != nil {
		return nil, err
	}
	campaign.Status = model.CampaignPaused
	s.Log.Info("campaign paused", zap.String("campaign_id", campaignID))
	return campaign, nil
}

type LeadInput struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

type CreateCampaignInput struct {
	Name                string      `json:"name"`
	MessageTemplate     string      `json:"message_template"`
	Variations          []string    `json:"variations"`
	IntegrationID       string      `json:"integration_id"`
	ScheduledAt         *string     `json:"scheduled_at"`
	Leads               []LeadInput `json:"leads"`
	UseExistingContacts bool        `json:"use_existing_contacts"`
}

// Create stores a campaign in pending state together with its leads, either
// from the uploaded list or from the tenant's existing CRM contacts.
// Uploaded recipients are normalized at import time so dispatch never sees
// raw formatting.
func (s *CampaignService) Create(tenantID string, input CreateCampaignInput) (*model.Campaign, error) {
	campaign := &model.Campaign{
		ID:              uuid.NewString(),
		TenantID:        tenantID,
		Name:            input.Name,
		MessageTemplate: input.MessageTemplate,
		Variations:      input.Variations,
		IntegrationID:   input.IntegrationID,
		Status:          model.CampaignPending,
	}
	if input.ScheduledAt != nil {
		t, err := time.Parse(time.RFC3339, *input.ScheduledAt)
		if err != nil {
			return nil, fmt.Errorf("invalid scheduled_at: %w", err)
		}
		campaign.ScheduledAt = &t
	}
	if err := s.CampaignRepo.Create(campaign); err != nil {
		return nil, err
	}

	instanceName := "default"
	if input.IntegrationID != "" {
		if integration, err := s.IntegrationRepo.GetByID(input.IntegrationID, tenantID); err == nil && integration != nil {
			if name := strings.TrimSpace(integration.InstanceName); name != "" {
				instanceName = name
			}
		}
	}

	var leads []*model.Lead
	switch {
	case len(input.Leads) > 0:
		leads = s.importLeads(tenantID, campaign.ID, instanceName, input.Leads)
	case input.UseExistingContacts:
		contacts, err := s.ContactRepo.ListByTenant(tenantID)
		if err != nil {
			return nil, err
		}
		for _, c := range contacts {
			phone := c.ExternalID
			if phone == "" {
				phone = c.PhoneNumber
			}
			if phone == "" {
				continue
			}
			leads = append(leads, &model.Lead{
				ID:         uuid.NewString(),
				CampaignID: campaign.ID,
				Name:       c.Name,
				ExternalID: phone,
				Status:     model.LeadPending,
			})
		}
	}

	for i := 0; i < len(leads); i += enqueueChunkSize {
		end := i + enqueueChunkSize
		if end > len(leads) {
			end = len(leads)
		}
		if err := s.LeadRepo.CreateBatch(leads[i:end]); err != nil {
			return nil, err
		}
	}

	s.Log.Info("campaign created",
		zap.String("campaign_id", campaign.ID),
		zap.Int("leads", len(leads)))
	return campaign, nil
}

func (s *CampaignService) importLeads(tenantID, campaignID, instanceName string, inputs []LeadInput) []*model.Lead {
	leads := make([]*model.Lead, 0, len(inputs))
	for _, in := range inputs {
		phone := normalizeImportPhone(in.Phone)
		if phone == "" {
			s.Log.Warn("skipping lead without usable phone", zap.String("name", in.Name))
			continue
		}
		name := strings.TrimSpace(in.Name)
		if name == "" {
			name = defaultLeadName
		}

		if err := s.ContactRepo.EnsureContact(&model.Contact{
			ID:          uuid.NewString(),
			TenantID:    tenantID,
			Name:        name,
			PhoneNumber: phone,
			ExternalID:  phone,
			Stage:       model.StageNew,
			Instance:    instanceName,
		}); err != nil {
			s.Log.Warn("failed to upsert contact for lead", zap.String("phone", phone), zap.Error(err))
		}

		leads = append(leads, &model.Lead{
			ID:         uuid.NewString(),
			CampaignID: campaignID,
			Name:       name,
			ExternalID: phone,
			Status:     model.LeadPending,
		})
	}
	return leads
}

func (s *CampaignService) ListCampaigns(tenantID string) ([]*model.Campaign, error) {
	return s.CampaignRepo.ListByTenant(tenantID)
}

func (s *CampaignService) GetCampaignDetails(campaignID, tenantID string) (*CampaignDetails, error) {
	campaign, err := s.CampaignRepo.GetByID(campaignID, tenantID)
	if err != nil {
		return nil, err
	}
	counts, err := s.LeadRepo.CountByStatus(campaignID)
	if err != nil {
		return nil, err
	}
	stats := map[string]int{
		"total":   0,
		"pending": 0,
		"sent":    0,
		"failed":  0,
		"invalid": 0,
	}
	for status, n := range counts {
		stats[string(status)] = n
		stats["total"] += n
	}
	return &CampaignDetails{Campaign: campaign, Stats: stats}, nil
}

// normalizeImportPhone coerces an uploaded phone into digits with a country
// code: strip non-digits and any leading zero, then assume Brazilian local
// format for 10/11-digit numbers. Fewer than 8 digits is unusable.
func normalizeImportPhone(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteByte(byte(r))
		}
	}
	n := b.String()
	n = strings.TrimPrefix(n, "0")
	if len(n) == 10 || len(n) == 11 {
		n = "55" + n
	}
	if len(n) < 8 {
		return ""
	}
	return n
}
