package repository

import (
	"database/sql"

	"github.com/google/uuid"
)

// UsageRepositoryInterface is the quota ledger store. Reserve folds the
// availability check and the increment into a single conditional UPDATE, so
// concurrent reservations against the same row can never push the counter
// past the limit.
type UsageRepositoryInterface interface {
	CountToday(tenantID, instanceName, day, feature string) (int, error)
	Reserve(tenantID, instanceName, day, feature string, amount, limit int) (bool, error)
	Increment(tenantID, instanceName, day, feature string, amount int) error
	Reset(tenantID, instanceName, day, feature string) error
}

type UsageRepository struct {
	DB *sql.DB
}

func (r *UsageRepository) ensureRow(tenantID, instanceName, day, feature string) error {
	query := `
        INSERT INTO daily_usage (id, tenant_id, instance_name, day, feature, count, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, 0, NOW(), NOW())
        ON CONFLICT (tenant_id, instance_name, day, feature) DO NOTHING
    `
	_, err := r.DB.Exec(query, uuid.NewString(), tenantID, instanceName, day, feature)
	return err
}

func (r *UsageRepository) CountToday(tenantID, instanceName, day, feature string) (int, error) {
	query := `SELECT count FROM daily_usage WHERE tenant_id=$1 AND instance_name=$2 AND day=$3 AND feature=$4`
	var count int
	err := r.DB.QueryRow(query, tenantID, instanceName, day, feature).Scan(&count)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, nil
		}
		return 0, err
	}
	return count, nil
}

func (r *UsageRepository) Reserve(tenantID, instanceName, day, feature string, amount, limit int) (bool, error) {
	if err := r.ensureRow(tenantID, instanceName, day, feature); err != nil {
		return false, err
	}
	query := `
        UPDATE daily_usage
        SET count = count + $1, updated_at = NOW()
        WHERE tenant_id=$2 AND instance_name=$3 AND day=$4 AND feature=$5
          AND count + $1 <= $6
    `
	res, err := r.DB.Exec(query, amount, tenantID, instanceName, day, feature, limit)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

func (r *UsageRepository) Increment(tenantID, instanceName, day, feature string, amount int) error {
	if err := r.ensureRow(tenantID, instanceName, day, feature); err != nil {
		return err
	}
	query := `
        UPDATE daily_usage
        SET count = count + $1, updated_at = NOW()
        WHERE tenant_id=$2 AND instance_name=$3 AND day=$4 AND feature=$5
    `
	_, err := r.DB.Exec(query, amount, tenantID, instanceName, day, feature)
	return err
}

func (r *UsageRepository) Reset(tenantID, instanceName, day, feature string) error {
	query := `
        UPDATE daily_usage
        SET count = 0, updated_at = NOW()
        WHERE tenant_id=$1 AND instance_name=$2 AND day=$3 AND feature=$4
    `
	_, err := r.DB.Exec(query, tenantID, instanceName, day, feature)
	return err
}

var _ UsageRepositoryInterface = (*UsageRepository)(nil)
