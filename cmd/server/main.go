// cmd/server/main.go
package main

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/streadway/amqp"
	"go.uber.org/zap"

	"github.com/disparoja/dispatch-backend/internal/config"
	"github.com/disparoja/dispatch-backend/internal/controller"
	"github.com/disparoja/dispatch-backend/internal/db"
	"github.com/disparoja/dispatch-backend/internal/queue"
	"github.com/disparoja/dispatch-backend/internal/repository"
	"github.com/disparoja/dispatch-backend/internal/scheduler"
	"github.com/disparoja/dispatch-backend/internal/service"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	ctx := context.Background()

	conn, err := db.Connect(cfg.DatabaseURL, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer conn.Close()

	if err := db.RunMigrations(conn, cfg.MigrationsDir, log); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	amqpConn, err := amqp.Dial(cfg.AMQPURL)
	if err != nil {
		log.Fatal("failed to connect to rabbitmq", zap.Error(err))
	}
	defer amqpConn.Close()

	dispatchQueue, err := queue.NewAMQPQueue(amqpConn, log)
	if err != nil {
		log.Fatal("failed to set up dispatch queue", zap.Error(err))
	}

	campaignRepo := &repository.CampaignRepository{DB: conn}
	leadRepo := &repository.LeadRepository{DB: conn}
	integrationRepo := &repository.IntegrationRepository{DB: conn}
	contactRepo := &repository.ContactRepository{DB: conn}
	usageRepo := &repository.UsageRepository{DB: conn}
	auditRepo := &repository.AuditRepository{DB: conn}

	usageService := &service.UsageService{Repo: usageRepo, Log: log}

	campaignService := &service.CampaignService{
		CampaignRepo:    campaignRepo,
		LeadRepo:        leadRepo,
		IntegrationRepo: integrationRepo,
		ContactRepo:     contactRepo,
		AuditRepo:       auditRepo,
		Usage:           usageService,
		Queue:           dispatchQueue,
		Locks:           &service.RedisStartLock{Client: rdb},
		Log:             log,
	}

	if cfg.SchedulerEnabled {
		autoStarter := &scheduler.Scheduler{
			Campaigns: campaignRepo,
			Service:   campaignService,
			Log:       log,
		}
		autoStarter.Start()
		defer autoStarter.Stop()
	}

	campaignController := &controller.CampaignController{CampaignService: campaignService}
	usageController := &controller.UsageController{Usage: usageService}

	r := chi.NewRouter()

	r.Post("/campaigns", campaignController.CreateCampaign)
	r.Get("/campaigns", campaignController.ListCampaigns)
	r.Get("/campaigns/{id}", campaignController.GetCampaignDetails)
	r.Post("/campaigns/{id}/start", campaignController.StartCampaign)
	r.Post("/campaigns/{id}/pause", campaignController.PauseCampaign)

	r.Get("/usage/{instanceName}", usageController.GetInstanceUsage)
	r.Delete("/usage/{instanceName}", usageController.ResetInstanceUsage)

	log.Info("server listening", zap.String("addr", cfg.ServerAddr))
	if err := http.ListenAndServe(cfg.ServerAddr, r); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}
