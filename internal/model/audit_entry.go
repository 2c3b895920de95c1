package model

import (
	"encoding/json"
	"time"
)

type AuditEntry struct {
	ID        string          `db:"id" json:"id"`
	TenantID  string          `db:"tenant_id" json:"tenant_id"`
	UserID    string          `db:"user_id" json:"user_id"`
	Action    string          `db:"action" json:"action"`
	Metadata  json.RawMessage `db:"metadata" json:"metadata,omitempty"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}
