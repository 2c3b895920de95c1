// internal/errors/errors.go
package appErrors

import "fmt"

// CampaignNotFoundError is returned when a campaign does not exist for the
// requesting tenant.
type CampaignNotFoundError struct {
	CampaignID string
}

func (e *CampaignNotFoundError) Error() string {
	return fmt.Sprintf("campaign %s not found", e.CampaignID)
}

func NewCampaignNotFound(id string) error {
	return &CampaignNotFoundError{CampaignID: id}
}

// AlreadyRunningError rejects a start call for a campaign that is running, or
// whose admission cycle is currently in flight.
type AlreadyRunningError struct {
	CampaignID string
}

func (e *AlreadyRunningError) Error() string {
	return fmt.Sprintf("campaign %s is already running", e.CampaignID)
}

func NewAlreadyRunning(id string) error {
	return &AlreadyRunningError{CampaignID: id}
}

// InstanceUnresolvedError means the campaign's integration does not yield a
// usable channel instance name. Fatal for admission.
type InstanceUnresolvedError struct {
	CampaignID    string
	IntegrationID string
}

func (e *InstanceUnresolvedError) Error() string {
	return fmt.Sprintf("no instance name resolved for campaign %s (integration %q)", e.CampaignID, e.IntegrationID)
}

func NewInstanceUnresolved(campaignID, integrationID string) error {
	return &InstanceUnresolvedError{CampaignID: campaignID, IntegrationID: integrationID}
}

// EmptyCampaignError means the campaign has no leads at all.
type EmptyCampaignError struct {
	CampaignID string
}

func (e *EmptyCampaignError) Error() string {
	return fmt.Sprintf("campaign %s is empty: add leads before starting it", e.CampaignID)
}

func NewEmptyCampaign(id string) error {
	return &EmptyCampaignError{CampaignID: id}
}

// AllLeadsProcessedError means every lead already reached a terminal status.
// The counts let the operator see what happened without a second query.
type AllLeadsProcessedError struct {
	CampaignID string
	Total      int
	Sent       int
	Failed     int
	Invalid    int
}

func (e *AllLeadsProcessedError) Error() string {
	return fmt.Sprintf(
		"all %d leads of campaign %s were already processed (sent: %d, failed: %d, invalid: %d); recreate the campaign or reset its leads to send again",
		e.Total, e.CampaignID, e.Sent, e.Failed, e.Invalid,
	)
}

// QuotaExceededError is the admission/backpressure failure: the instance's
// daily counter cannot absorb the requested amount.
type QuotaExceededError struct {
	InstanceName string
	Used         int
	Limit        int
	Requested    int
}

func (e *QuotaExceededError) Error() string {
	remaining := e.Limit - e.Used
	if remaining < 0 {
		remaining = 0
	}
	return fmt.Sprintf(
		"daily limit reached for instance %s: %d/%d messages used today, %d remaining, %d requested; try a smaller batch or wait until tomorrow",
		e.InstanceName, e.Used, e.Limit, remaining, e.Requested,
	)
}

func NewQuotaExceeded(instance string, used, limit, requested int) error {
	return &QuotaExceededError{InstanceName: instance, Used: used, Limit: limit, Requested: requested}
}

// RecipientNotFoundError is the permanent delivery failure: the channel says
// the recipient does not exist. Leads hitting this become invalid and are
// never retried.
type RecipientNotFoundError struct {
	Recipient string
	Detail    string
}

func (e *RecipientNotFoundError) Error() string {
	return fmt.Sprintf("recipient %s does not exist on the channel: %s", e.Recipient, e.Detail)
}

func NewRecipientNotFound(recipient, detail string) error {
	return &RecipientNotFoundError{Recipient: recipient, Detail: detail}
}

// ChannelError is any other channel delivery failure. Transient from the
// queue's point of view.
type ChannelError struct {
	StatusCode int
	Detail     string
}

func (e *ChannelError) Error() string {
	return fmt.Sprintf("channel send failed (status %d): %s", e.StatusCode, e.Detail)
}
