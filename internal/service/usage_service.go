package service

import (
	"time"

	appErrors "github.com/disparoja/dispatch-backend/internal/errors"
	"github.com/disparoja/dispatch-backend/internal/repository"
	"go.uber.org/zap"
)

// FeatureWhatsAppMessages is the ledger feature key for campaign sends.
const FeatureWhatsAppMessages = "whatsapp_messages"

// UsageService is the quota ledger. Counters key on
// (tenant, instance, UTC day, feature); a new day starts a fresh counter, so
// there is no reset job, only new rows.
type UsageService struct {
	Repo repository.UsageRepositoryInterface
	Log  *zap.Logger

	// Now is a hook for day-boundary tests; nil means time.Now.
	Now func() time.Time
}

func (s *UsageService) today() string {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	return now().UTC().Format("2006-01-02")
}

func (s *UsageService) RemainingQuota(tenantID, instanceName, feature string, limit int) (int, error) {
	count, err := s.Repo.CountToday(tenantID, instanceName, s.today(), feature)
	if err != nil {
		return 0, err
	}
	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// Reserve atomically claims amount units of today's quota. Failure leaves
// the counter untouched.
func (s *UsageService) Reserve(tenantID, instanceName, feature string, amount, limit int) error {
	day := s.today()
	ok, err := s.Repo.Reserve(tenantID, instanceName, day, feature, amount, limit)
	if err != nil {
		return err
	}
	if !ok {
		used, countErr := s.Repo.CountToday(tenantID, instanceName, day, feature)
		if countErr != nil {
			used = limit
		}
		s.Log.Warn("quota reservation rejected",
			zap.String("instance", instanceName),
			zap.Int("used", used),
			zap.Int("limit", limit),
			zap.Int("requested", amount))
		return appErrors.NewQuotaExceeded(instanceName, used, limit, amount)
	}
	return nil
}

// Increment records an actual confirmed send. Unconditional: the ledger
// tracks reality, the coarse batch reservation already enforced the limit.
func (s *UsageService) Increment(tenantID, instanceName, feature string, amount int) error {
	return s.Repo.Increment(tenantID, instanceName, s.today(), feature, amount)
}

// Reset zeroes today's counter for an instance. Operator override.
func (s *UsageService) Reset(tenantID, instanceName, feature string) error {
	s.Log.Info("resetting quota", zap.String("instance", instanceName), zap.String("feature", feature))
	return s.Repo.Reset(tenantID, instanceName, s.today(), feature)
}

// UsedToday reports today's counter, for the operator usage endpoint.
func (s *UsageService) UsedToday(tenantID, instanceName, feature string) (int, error) {
	return s.Repo.CountToday(tenantID, instanceName, s.today(), feature)
}
