// Package scheduler auto-starts campaigns whose scheduled time has passed.
package scheduler

import (
	"context"
	"time"

	"github.com/disparoja/dispatch-backend/internal/repository"
	"github.com/disparoja/dispatch-backend/internal/service"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

type Scheduler struct {
	Campaigns repository.CampaignRepositoryInterface
	Service   *service.CampaignService
	Log       *zap.Logger

	cron *cron.Cron
}

func (s *Scheduler) Start() {
	s.cron = cron.New()
	s.cron.AddFunc("@every 1m", s.sweep)
	s.cron.Start()
	s.Log.Info("campaign scheduler started")
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
}

// sweep starts every due pending campaign. A successful start moves the
// campaign out of pending, so it is never picked up twice; failed starts
// (quota spent, empty list) stay due and are retried next sweep.
func (s *Scheduler) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	due, err := s.Campaigns.ListScheduledDue(time.Now())
	if err != nil {
		s.Log.Error("scheduled sweep failed", zap.Error(err))
		return
	}

	for _, campaign := range due {
		result, err := s.Service.Start(ctx, campaign.ID, campaign.TenantID, "")
		if err != nil {
			s.Log.Warn("scheduled start failed",
				zap.String("campaign_id", campaign.ID),
				zap.Error(err))
			continue
		}
		s.Log.Info("scheduled campaign started",
			zap.String("campaign_id", campaign.ID),
			zap.Int("leads_queued", result.LeadsQueued))
	}
}
