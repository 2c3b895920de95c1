package repository

import (
	"database/sql"

	"github.com/disparoja/dispatch-backend/internal/model"
)

type IntegrationRepositoryInterface interface {
	GetByID(id, tenantID string) (*model.Integration, error)
}

type IntegrationRepository struct {
	DB *sql.DB
}

func (r *IntegrationRepository) GetByID(id, tenantID string) (*model.Integration, error) {
	query := `
        SELECT id, tenant_id, provider, instance_name, created_at
        FROM integrations
        WHERE id=$1 AND tenant_id=$2
    `
	var i model.Integration
	err := r.DB.QueryRow(query, id, tenantID).Scan(&i.ID, &i.TenantID, &i.Provider, &i.InstanceName, &i.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &i, nil
}

var _ IntegrationRepositoryInterface = (*IntegrationRepository)(nil)
