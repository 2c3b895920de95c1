package model

import (
	"strings"
	"time"
)

// Pipeline stages considered "cold". Anything beyond these means a human is
// already talking to the contact and automated sends must back off.
const (
	StageNew       = "NOVO"
	StageLead      = "LEAD"
	StageContacted = "CONTACTED"
)

// Contact is the CRM record for a recipient. The CRM itself is an external
// collaborator; the dispatch engine only reads the stage and writes back the
// stage/instance binding after a send.
type Contact struct {
	ID          string    `db:"id" json:"id"`
	TenantID    string    `db:"tenant_id" json:"tenant_id"`
	Name        string    `db:"name" json:"name"`
	PhoneNumber string    `db:"phone_number" json:"phone_number"`
	ExternalID  string    `db:"external_id" json:"external_id"`
	Stage       string    `db:"stage" json:"stage"`
	Instance    string    `db:"instance" json:"instance"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// ColdStage reports whether the contact may still receive automated sends.
func (c *Contact) ColdStage() bool {
	if c == nil {
		return true
	}
	stage := strings.ToUpper(strings.TrimSpace(c.Stage))
	return stage == "" || stage == StageNew || stage == StageLead
}
