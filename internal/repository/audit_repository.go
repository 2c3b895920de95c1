package repository

import (
	"database/sql"
	"encoding/json"

	"github.com/google/uuid"
)

type AuditRepositoryInterface interface {
	Record(tenantID, userID, action string, metadata map[string]interface{}) error
}

// AuditRepository is insert-only; entries are never updated or deleted.
type AuditRepository struct {
	DB *sql.DB
}

func (r *AuditRepository) Record(tenantID, userID, action string, metadata map[string]interface{}) error {
	payload, err := json.Marshal(metadata)
	if err != nil {
		return err
	}
	query := `
        INSERT INTO audit_log (id, tenant_id, user_id, action, metadata, created_at)
        VALUES ($1, $2, $3, $4, $5, NOW())
    `
	_, err = r.DB.Exec(query, uuid.NewString(), tenantID, userID, action, payload)
	return err
}

var _ AuditRepositoryInterface = (*AuditRepository)(nil)
