package model

import "time"

// DailyUsage is one quota ledger row, unique per
// (tenant, instance, day, feature). Rows for past days are kept as an audit
// trail; a new day simply starts a new row at zero.
type DailyUsage struct {
	ID           string    `db:"id" json:"id"`
	TenantID     string    `db:"tenant_id" json:"tenant_id"`
	InstanceName string    `db:"instance_name" json:"instance_name"`
	Day          string    `db:"day" json:"day"` // YYYY-MM-DD (UTC)
	Feature      string    `db:"feature" json:"feature"`
	Count        int       `db:"count" json:"count"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}
