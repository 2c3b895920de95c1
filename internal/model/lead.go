package model

import "time"

type LeadStatus string

const (
	LeadPending LeadStatus = "pending"
	LeadSent    LeadStatus = "sent"
	LeadFailed  LeadStatus = "failed"
	LeadInvalid LeadStatus = "invalid"
)

// Lead is one recipient of a campaign. A lead leaves pending exactly once;
// every queued job re-checks the status before doing anything.
type Lead struct {
	ID          string     `db:"id" json:"id"`
	CampaignID  string     `db:"campaign_id" json:"campaign_id"`
	Name        string     `db:"name" json:"name"`
	ExternalID  string     `db:"external_id" json:"external_id"`
	Status      LeadStatus `db:"status" json:"status"`
	ErrorReason *string    `db:"error_reason" json:"error_reason,omitempty"`
	SentAt      *time.Time `db:"sent_at" json:"sent_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
}
