package repository

import (
	"database/sql"
	"time"

	"github.com/disparoja/dispatch-backend/internal/model"
	"github.com/google/uuid"
)

// ContactRepositoryInterface is the CRM collaborator surface the dispatch
// engine needs: stage lookup before a send, stage/instance write-back after.
type ContactRepositoryInterface interface {
	FindByExternalID(tenantID, externalID string) (*model.Contact, error)
	ListByTenant(tenantID string) ([]*model.Contact, error)
	UpdateStage(tenantID, contactID, stage, instance string) error
	EnsureContact(c *model.Contact) error
}

type ContactRepository struct {
	DB *sql.DB
}

func (r *ContactRepository) FindByExternalID(tenantID, externalID string) (*model.Contact, error) {
	query := `
        SELECT id, tenant_id, name, phone_number, external_id, stage, instance, created_at
        FROM contacts
        WHERE tenant_id=$1 AND external_id=$2
    `
	var c model.Contact
	err := r.DB.QueryRow(query, tenantID, externalID).Scan(
		&c.ID, &c.TenantID, &c.Name, &c.PhoneNumber, &c.ExternalID, &c.Stage, &c.Instance, &c.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

func (r *ContactRepository) ListByTenant(tenantID string) ([]*model.Contact, error) {
	query := `
        SELECT id, tenant_id, name, phone_number, external_id, stage, instance, created_at
        FROM contacts
        WHERE tenant_id=$1
        ORDER BY created_at
    `
	rows, err := r.DB.Query(query, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	contacts := []*model.Contact{}
	for rows.Next() {
		var c model.Contact
		if err := rows.Scan(&c.ID, &c.TenantID, &c.Name, &c.PhoneNumber, &c.ExternalID, &c.Stage, &c.Instance, &c.CreatedAt); err != nil {
			return nil, err
		}
		contacts = append(contacts, &c)
	}
	return contacts, rows.Err()
}

func (r *ContactRepository) UpdateStage(tenantID, contactID, stage, instance string) error {
	query := `UPDATE contacts SET stage=$1, instance=$2 WHERE tenant_id=$3 AND id=$4`
	_, err := r.DB.Exec(query, stage, instance, tenantID, contactID)
	return err
}

// EnsureContact upserts by (tenant, external id). Existing contacts keep
// their stage; lead imports must not knock a contact back to cold.
func (r *ContactRepository) EnsureContact(c *model.Contact) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	query := `
        INSERT INTO contacts (id, tenant_id, name, phone_number, external_id, stage, instance, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        ON CONFLICT (tenant_id, external_id) DO UPDATE SET
            name = EXCLUDED.name,
            phone_number = EXCLUDED.phone_number,
            instance = EXCLUDED.instance
    `
	_, err := r.DB.Exec(query, c.ID, c.TenantID, c.Name, c.PhoneNumber, c.ExternalID, c.Stage, c.Instance, c.CreatedAt)
	return err
}

var _ ContactRepositoryInterface = (*ContactRepository)(nil)
