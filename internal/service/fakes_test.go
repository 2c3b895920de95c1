package service_test

import (
	"context"
	"strings"
	"sync"
	"time"

	appErrors "github.com/disparoja/dispatch-backend/internal/errors"
	"github.com/disparoja/dispatch-backend/internal/model"
	"github.com/disparoja/dispatch-backend/internal/queue"
)

// In-memory fakes backing the service tests. They mimic the SQL
// implementations' contracts, including the conditional quota reserve and
// the pending-only lead transitions.

type fakeCampaignRepo struct {
	mu        sync.Mutex
	campaigns map[string]*model.Campaign
}

func newFakeCampaignRepo(campaigns ...*model.Campaign) *fakeCampaignRepo {
	r := &fakeCampaignRepo{campaigns: map[string]*model.Campaign{}}
	for _, c := range campaigns {
		r.campaigns[c.ID] = c
	}
	return r
}

func (r *fakeCampaignRepo) Create(c *model.Campaign) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c.Status == "" {
		c.Status = model.CampaignPending
	}
	r.campaigns[c.ID] = c
	return nil
}

func (r *fakeCampaignRepo) GetByID(id, tenantID string) (*model.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[id]
	if !ok || c.TenantID != tenantID {
		return nil, appErrors.NewCampaignNotFound(id)
	}
	copied := *c
	return &copied, nil
}

func (r *fakeCampaignRepo) UpdateStatus(id string, status model.CampaignStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.campaigns[id]; ok {
		c.Status = status
	}
	return nil
}

func (r *fakeCampaignRepo) ListByTenant(tenantID string) ([]*model.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*model.Campaign{}
	for _, c := range r.campaigns {
		if c.TenantID == tenantID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *fakeCampaignRepo) ListScheduledDue(now time.Time) ([]*model.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*model.Campaign{}
	for _, c := range r.campaigns {
		if c.Status == model.CampaignPending && c.ScheduledAt != nil && !c.ScheduledAt.After(now) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *fakeCampaignRepo) status(id string) model.CampaignStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.campaigns[id].Status
}

type fakeLeadRepo struct {
	mu    sync.Mutex
	leads map[string]*model.Lead
	order []string
}

func newFakeLeadRepo(leads ...*model.Lead) *fakeLeadRepo {
	r := &fakeLeadRepo{leads: map[string]*model.Lead{}}
	for _, l := range leads {
		if l.Status == "" {
			l.Status = model.LeadPending
		}
		r.leads[l.ID] = l
		r.order = append(r.order, l.ID)
	}
	return r
}

func (r *fakeLeadRepo) CreateBatch(leads []*model.Lead) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range leads {
		if l.Status == "" {
			l.Status = model.LeadPending
		}
		r.leads[l.ID] = l
		r.order = append(r.order, l.ID)
	}
	return nil
}

func (r *fakeLeadRepo) GetByID(id string) (*model.Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.leads[id]
	if !ok {
		return nil, nil
	}
	copied := *l
	return &copied, nil
}

func (r *fakeLeadRepo) FindPending(campaignID string, limit int) ([]*model.Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*model.Lead{}
	for _, id := range r.order {
		l := r.leads[id]
		if l.CampaignID == campaignID && l.Status == model.LeadPending {
			out = append(out, l)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (r *fakeLeadRepo) CountByStatus(campaignID string) (map[model.LeadStatus]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := map[model.LeadStatus]int{}
	for _, l := range r.leads {
		if l.CampaignID == campaignID {
			counts[l.Status]++
		}
	}
	return counts, nil
}

func (r *fakeLeadRepo) MarkSent(id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l, ok := r.leads[id]; ok && l.Status == model.LeadPending {
		l.Status = model.LeadSent
		l.SentAt = &at
		l.ErrorReason = nil
	}
	return nil
}

func (r *fakeLeadRepo) MarkFailed(id string, status model.LeadStatus, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l, ok := r.leads[id]; ok && l.Status == model.LeadPending {
		l.Status = status
		l.ErrorReason = &reason
	}
	return nil
}

func (r *fakeLeadRepo) get(id string) *model.Lead {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.leads[id]
}

type fakeUsageRepo struct {
	mu     sync.Mutex
	counts map[string]int
}

func newFakeUsageRepo() *fakeUsageRepo {
	return &fakeUsageRepo{counts: map[string]int{}}
}

func usageKey(tenantID, instanceName, day, feature string) string {
	return strings.Join([]string{tenantID, instanceName, day, feature}, "|")
}

func (r *fakeUsageRepo) CountToday(tenantID, instanceName, day, feature string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[usageKey(tenantID, instanceName, day, feature)], nil
}

func (r *fakeUsageRepo) Reserve(tenantID, instanceName, day, feature string, amount, limit int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := usageKey(tenantID, instanceName, day, feature)
	if r.counts[key]+amount > limit {
		return false, nil
	}
	r.counts[key] += amount
	return true, nil
}

func (r *fakeUsageRepo) Increment(tenantID, instanceName, day, feature string, amount int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts[usageKey(tenantID, instanceName, day, feature)] += amount
	return nil
}

func (r *fakeUsageRepo) Reset(tenantID, instanceName, day, feature string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts[usageKey(tenantID, instanceName, day, feature)] = 0
	return nil
}

type fakeIntegrationRepo struct {
	integrations map[string]*model.Integration
}

func newFakeIntegrationRepo(integrations ...*model.Integration) *fakeIntegrationRepo {
	r := &fakeIntegrationRepo{integrations: map[string]*model.Integration{}}
	for _, i := range integrations {
		r.integrations[i.ID] = i
	}
	return r
}

func (r *fakeIntegrationRepo) GetByID(id, tenantID string) (*model.Integration, error) {
	i, ok := r.integrations[id]
	if !ok || i.TenantID != tenantID {
		return nil, nil
	}
	return i, nil
}

type fakeContactRepo struct {
	mu       sync.Mutex
	contacts map[string]*model.Contact // keyed by tenant|external_id
}

func newFakeContactRepo(contacts ...*model.Contact) *fakeContactRepo {
	r := &fakeContactRepo{contacts: map[string]*model.Contact{}}
	for _, c := range contacts {
		r.contacts[c.TenantID+"|"+c.ExternalID] = c
	}
	return r
}

func (r *fakeContactRepo) FindByExternalID(tenantID, externalID string) (*model.Contact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.contacts[tenantID+"|"+externalID]
	if !ok {
		return nil, nil
	}
	copied := *c
	return &copied, nil
}

func (r *fakeContactRepo) ListByTenant(tenantID string) ([]*model.Contact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*model.Contact{}
	for _, c := range r.contacts {
		if c.TenantID == tenantID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *fakeContactRepo) UpdateStage(tenantID, contactID, stage, instance string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.contacts {
		if c.TenantID == tenantID && c.ID == contactID {
			c.Stage = stage
			c.Instance = instance
		}
	}
	return nil
}

func (r *fakeContactRepo) EnsureContact(c *model.Contact) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := c.TenantID + "|" + c.ExternalID
	if existing, ok := r.contacts[key]; ok {
		existing.Name = c.Name
		existing.PhoneNumber = c.PhoneNumber
		existing.Instance = c.Instance
		return nil
	}
	r.contacts[key] = c
	return nil
}

func (r *fakeContactRepo) get(tenantID, externalID string) *model.Contact {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.contacts[tenantID+"|"+externalID]
}

type auditRecord struct {
	TenantID string
	UserID   string
	Action   string
	Metadata map[string]interface{}
}

type fakeAuditRepo struct {
	mu      sync.Mutex
	records []auditRecord
}

func (r *fakeAuditRepo) Record(tenantID, userID, action string, metadata map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, auditRecord{TenantID: tenantID, UserID: userID, Action: action, Metadata: metadata})
	return nil
}

type enqueuedJob struct {
	Job   queue.DispatchJob
	Delay time.Duration
}

type fakeQueue struct {
	mu   sync.Mutex
	jobs []enqueuedJob
}

func (q *fakeQueue) Enqueue(job queue.DispatchJob, delay time.Duration) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, enqueuedJob{Job: job, Delay: delay})
	return nil
}

type fakeLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{held: map[string]bool{}}
}

func (l *fakeLocker) Acquire(ctx context.Context, campaignID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[campaignID] {
		return false, nil
	}
	l.held[campaignID] = true
	return true, nil
}

func (l *fakeLocker) Release(ctx context.Context, campaignID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, campaignID)
	return nil
}

type sentMessage struct {
	TenantID     string
	InstanceName string
	Recipient    string
	Text         string
}

type fakeAdapter struct {
	mu       sync.Mutex
	sent     []sentMessage
	sendErr  error
	returnID string
}

func (a *fakeAdapter) SendText(ctx context.Context, tenantID, instanceName, recipient, text string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.sendErr != nil {
		return "", a.sendErr
	}
	a.sent = append(a.sent, sentMessage{TenantID: tenantID, InstanceName: instanceName, Recipient: recipient, Text: text})
	return a.returnID, nil
}

func (a *fakeAdapter) calls() []sentMessage {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]sentMessage{}, a.sent...)
}
