// internal/db/db.go
package db

import (
	"database/sql"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

func Connect(databaseURL string, log *zap.Logger) (*sql.DB, error) {
	conn, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	if err := conn.Ping(); err != nil {
		return nil, err
	}
	log.Info("postgres connected")
	return conn, nil
}
