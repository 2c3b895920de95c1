package repository

import (
	"database/sql"
	"time"

	"github.com/disparoja/dispatch-backend/internal/model"
)

type LeadRepositoryInterface interface {
	CreateBatch(leads []*model.Lead) error
	GetByID(id string) (*model.Lead, error)
	FindPending(campaignID string, limit int) ([]*model.Lead, error)
	CountByStatus(campaignID string) (map[model.LeadStatus]int, error)

	// MarkSent and MarkFailed only touch leads still pending, so a job that
	// fires twice cannot overwrite the first outcome.
	MarkSent(id string, at time.Time) error
	MarkFailed(id string, status model.LeadStatus, reason string) error
}

type LeadRepository struct {
	DB *sql.DB
}

const leadColumns = `id, campaign_id, name, external_id, status, error_reason, sent_at, created_at`

func (r *LeadRepository) CreateBatch(leads []*model.Lead) error {
	if len(leads) == 0 {
		return nil
	}
	tx, err := r.DB.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare(`
        INSERT INTO leads (id, campaign_id, name, external_id, status, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)
    `)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	now := time.Now()
	for _, l := range leads {
		if l.Status == "" {
			l.Status = model.LeadPending
		}
		if l.CreatedAt.IsZero() {
			l.CreatedAt = now
		}
		if _, err := stmt.Exec(l.ID, l.CampaignID, l.Name, l.ExternalID, l.Status, l.CreatedAt); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (r *LeadRepository) GetByID(id string) (*model.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE id=$1`
	var l model.Lead
	err := r.DB.QueryRow(query, id).Scan(
		&l.ID, &l.CampaignID, &l.Name, &l.ExternalID, &l.Status,
		&l.ErrorReason, &l.SentAt, &l.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &l, nil
}

func (r *LeadRepository) FindPending(campaignID string, limit int) ([]*model.Lead, error) {
	query := `SELECT ` + leadColumns + `
        FROM leads
        WHERE campaign_id=$1 AND status=$2
        ORDER BY created_at
        LIMIT $3`
	rows, err := r.DB.Query(query, campaignID, model.LeadPending, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	leads := []*model.Lead{}
	for rows.Next() {
		var l model.Lead
		if err := rows.Scan(
			&l.ID, &l.CampaignID, &l.Name, &l.ExternalID, &l.Status,
			&l.ErrorReason, &l.SentAt, &l.CreatedAt,
		); err != nil {
			return nil, err
		}
		leads = append(leads, &l)
	}
	return leads, rows.Err()
}

func (r *LeadRepository) CountByStatus(campaignID string) (map[model.LeadStatus]int, error) {
	query := `SELECT status, COUNT(*) FROM leads WHERE campaign_id=$1 GROUP BY status`
	rows, err := r.DB.Query(query, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := map[model.LeadStatus]int{}
	for rows.Next() {
		var status model.LeadStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

func (r *LeadRepository) MarkSent(id string, at time.Time) error {
	query := `UPDATE leads SET status=$1, sent_at=$2, error_reason=NULL WHERE id=$3 AND status=$4`
	_, err := r.DB.Exec(query, model.LeadSent, at, id, model.LeadPending)
	return err
}

func (r *LeadRepository) MarkFailed(id string, status model.LeadStatus, reason string) error {
	query := `UPDATE leads SET status=$1, error_reason=$2 WHERE id=$3 AND status=$4`
	_, err := r.DB.Exec(query, status, reason, id, model.LeadPending)
	return err
}

var _ LeadRepositoryInterface = (*LeadRepository)(nil)
