// cmd/worker/main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/streadway/amqp"
	"go.uber.org/zap"

	"github.com/disparoja/dispatch-backend/internal/channel"
	"github.com/disparoja/dispatch-backend/internal/config"
	"github.com/disparoja/dispatch-backend/internal/db"
	"github.com/disparoja/dispatch-backend/internal/queue"
	"github.com/disparoja/dispatch-backend/internal/repository"
	"github.com/disparoja/dispatch-backend/internal/service"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conn, err := db.Connect(cfg.DatabaseURL, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer conn.Close()

	amqpConn, err := amqp.Dial(cfg.AMQPURL)
	if err != nil {
		log.Fatal("failed to connect to rabbitmq", zap.Error(err))
	}
	defer amqpConn.Close()

	dispatchQueue, err := queue.NewAMQPQueue(amqpConn, log)
	if err != nil {
		log.Fatal("failed to set up dispatch queue", zap.Error(err))
	}

	dispatch := &service.DispatchService{
		CampaignRepo: &repository.CampaignRepository{DB: conn},
		LeadRepo:     &repository.LeadRepository{DB: conn},
		ContactRepo:  &repository.ContactRepository{DB: conn},
		Usage:        &service.UsageService{Repo: &repository.UsageRepository{DB: conn}, Log: log},
		Channel:      channel.NewEvolutionClient(cfg.EvolutionAPIURL, cfg.EvolutionAPIKey, log),
		Log:          log,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("shutting down worker")
		cancel()
	}()

	log.Info("worker running, waiting for jobs")
	if err := dispatchQueue.Consume(ctx, dispatch.Process); err != nil && err != context.Canceled {
		log.Fatal("consumer stopped", zap.Error(err))
	}
}
