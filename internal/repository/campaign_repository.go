package repository

import (
	"database/sql"
	"time"

	appErrors "github.com/disparoja/dispatch-backend/internal/errors"
	"github.com/disparoja/dispatch-backend/internal/model"
	"github.com/lib/pq"
)

type CampaignRepositoryInterface interface {
	Create(c *model.Campaign) error
	GetByID(id, tenantID string) (*model.Campaign, error)
	UpdateStatus(id string, status model.CampaignStatus) error
	ListByTenant(tenantID string) ([]*model.Campaign, error)

	// ListScheduledDue returns pending campaigns whose scheduled_at has
	// passed, across all tenants. Used by the auto-start sweep.
	ListScheduledDue(now time.Time) ([]*model.Campaign, error)
}

type CampaignRepository struct {
	DB *sql.DB
}

const campaignColumns = `id, tenant_id, name, message_template, variations, integration_id, status, scheduled_at, created_at, updated_at`

func (r *CampaignRepository) Create(c *model.Campaign) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	if c.Status == "" {
		c.Status = model.CampaignPending
	}
	query := `
        INSERT INTO campaigns (id, tenant_id, name, message_template, variations, integration_id, status, scheduled_at, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
    `
	_, err := r.DB.Exec(query,
		c.ID, c.TenantID, c.Name, c.MessageTemplate, pq.Array(c.Variations),
		c.IntegrationID, c.Status, c.ScheduledAt, c.CreatedAt,
	)
	return err
}

func (r *CampaignRepository) GetByID(id, tenantID string) (*model.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE id=$1 AND tenant_id=$2`
	c, err := scanCampaign(r.DB.QueryRow(query, id, tenantID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.NewCampaignNotFound(id)
		}
		return nil, err
	}
	return c, nil
}

func (r *CampaignRepository) UpdateStatus(id string, status model.CampaignStatus) error {
	query := `UPDATE campaigns SET status=$1, updated_at=$2 WHERE id=$3`
	_, err := r.DB.Exec(query, status, time.Now(), id)
	return err
}

func (r *CampaignRepository) ListByTenant(tenantID string) ([]*model.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE tenant_id=$1 ORDER BY created_at DESC`
	rows, err := r.DB.Query(query, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectCampaigns(rows)
}

func (r *CampaignRepository) ListScheduledDue(now time.Time) ([]*model.Campaign, error) {
	query := `SELECT ` + campaignColumns + `
        FROM campaigns
        WHERE status=$1 AND scheduled_at IS NOT NULL AND scheduled_at <= $2
        ORDER BY scheduled_at`
	rows, err := r.DB.Query(query, model.CampaignPending, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectCampaigns(rows)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCampaign(row rowScanner) (*model.Campaign, error) {
	var c model.Campaign
	err := row.Scan(
		&c.ID, &c.TenantID, &c.Name, &c.MessageTemplate, &c.Variations,
		&c.IntegrationID, &c.Status, &c.ScheduledAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func collectCampaigns(rows *sql.Rows) ([]*model.Campaign, error) {
	campaigns := []*model.Campaign{}
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		campaigns = append(campaigns, c)
	}
	return campaigns, rows.Err()
}

var _ CampaignRepositoryInterface = (*CampaignRepository)(nil)
