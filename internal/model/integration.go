package model

import "time"

const (
	// ProviderEvolution is an unofficial bridge; instances get banned if
	// pushed hard, so it carries a low daily send limit.
	ProviderEvolution = "evolution"
	// ProviderWhatsAppCloud is the official API with a high limit.
	ProviderWhatsAppCloud = "whatsapp_cloud"
)

type Integration struct {
	ID           string    `db:"id" json:"id"`
	TenantID     string    `db:"tenant_id" json:"tenant_id"`
	Provider     string    `db:"provider" json:"provider"`
	InstanceName string    `db:"instance_name" json:"instance_name"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}
