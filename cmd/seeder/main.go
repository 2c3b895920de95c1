// cmd/seeder/main.go
package main

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/disparoja/dispatch-backend/internal/config"
	"github.com/disparoja/dispatch-backend/internal/db"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()

	conn, err := db.Connect(cfg.DatabaseURL, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer conn.Close()

	if err := db.RunMigrations(conn, cfg.MigrationsDir, log); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	seedFiles := []string{
		"seed/integrations.sql",
		"seed/contacts.sql",
		"seed/campaigns.sql",
	}

	for _, file := range seedFiles {
		content, err := os.ReadFile(file)
		if err != nil {
			log.Fatal(fmt.Sprintf("failed to read %s", file), zap.Error(err))
		}
		if _, err := conn.Exec(string(content)); err != nil {
			log.Fatal(fmt.Sprintf("failed to execute %s", file), zap.Error(err))
		}
		log.Info("seeded", zap.String("file", file))
	}

	log.Info("database seeding completed")
}
