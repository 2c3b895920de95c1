package model

import (
	"time"

	"github.com/lib/pq"
)

type CampaignStatus string

const (
	CampaignPending   CampaignStatus = "pending"
	CampaignRunning   CampaignStatus = "running"
	CampaignPaused    CampaignStatus = "paused"
	CampaignCompleted CampaignStatus = "completed"
	CampaignFailed    CampaignStatus = "failed"
)

// Terminal reports whether no further dispatch may happen for the campaign.
func (s CampaignStatus) Terminal() bool {
	return s == CampaignCompleted || s == CampaignFailed
}

type Campaign struct {
	ID              string         `db:"id" json:"id"`
	TenantID        string         `db:"tenant_id" json:"tenant_id"`
	Name            string         `db:"name" json:"name"`
	MessageTemplate string         `db:"message_template" json:"message_template"`
	Variations      pq.StringArray `db:"variations" json:"variations,omitempty"`
	IntegrationID   string         `db:"integration_id" json:"integration_id"`
	Status          CampaignStatus `db:"status" json:"status"`
	ScheduledAt     *time.Time     `db:"scheduled_at" json:"scheduled_at,omitempty"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt       *time.Time     `db:"updated_at" json:"updated_at,omitempty"`
}
