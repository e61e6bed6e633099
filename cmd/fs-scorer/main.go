package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"FlowSentry/internal/alerter"
	"FlowSentry/internal/analytics"
	"FlowSentry/internal/artifact"
	"FlowSentry/internal/config"
	"FlowSentry/internal/event"
	"FlowSentry/internal/model"
	"FlowSentry/internal/notification"
	"FlowSentry/internal/scoring"
	"FlowSentry/internal/store"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to the configuration file.")
	flag.Parse()

	log.Println("Starting fs-scorer...")

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	log.Println("Configuration loaded successfully.")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := store.NewStore(ctx, cfg.Storage.PostgresDSN)
	if err != nil {
		log.Fatalf("Failed to connect to record store: %v", err)
	}
	defer db.Close()
	if err := db.EnsureSchema(ctx); err != nil {
		log.Fatalf("Failed to ensure record store schema: %v", err)
	}

	leaseTTL, _ := time.ParseDuration(cfg.Storage.LeaseTTL)
	repo := store.NewRepository(db, leaseTTL)

	artifacts, err := artifact.NewStore(cfg.Artifacts.RootPath)
	if err != nil {
		log.Fatalf("Failed to open artifact store: %v", err)
	}

	var events model.EventPublisher
	if cfg.Events.Enabled {
		pub, err := event.NewPublisher(cfg.Events.NATSURL, cfg.Events.SubjectPrefix)
		if err != nil {
			log.Fatalf("Failed to connect event publisher: %v", err)
		}
		defer pub.Close()
		events = pub
	}

	var runs model.RunSink
	if cfg.Analytics.Enabled {
		writer, err := analytics.NewClickHouseWriter(cfg.Analytics.ClickHouse)
		if err != nil {
			log.Fatalf("Failed to connect analytics writer: %v", err)
		}
		runs = writer
	}

	trainer := scoring.NewTrainer(repo, artifacts, events, cfg.Training)
	predictor := scoring.NewPredictor(repo, artifacts, trainer, events, runs, cfg.Predict)

	// The alerter turns scoring events into emails when both the event bus
	// and SMTP are configured.
	if cfg.Events.Enabled && cfg.SMTP.Host != "" {
		sub, err := event.NewSubscriber(cfg.Events.NATSURL, cfg.Events.SubjectPrefix)
		if err != nil {
			log.Fatalf("Failed to connect event subscriber: %v", err)
		}
		al := alerter.NewAlerter(sub, notification.NewEmailNotifier(cfg.SMTP))
		if err := al.Start(); err != nil {
			log.Fatalf("Failed to start alerter: %v", err)
		}
		defer al.Stop()
	}

	trainInterval, _ := time.ParseDuration(cfg.Training.Interval)
	predictInterval, _ := time.ParseDuration(cfg.Predict.Interval)

	go runScheduler(ctx, trainer, predictor, trainInterval, predictInterval)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutdown signal received, stopping scorer...")
	cancel()
	log.Println("Shutdown complete.")
}

// runScheduler drives periodic training and prediction until ctx is done.
// An initial training pass runs at startup so prediction never has to wait a
// full interval for its first artifact.
func runScheduler(ctx context.Context, trainer *scoring.Trainer, predictor *scoring.Predictor,
	trainInterval, predictInterval time.Duration) {

	if err := trainer.Train(ctx); err != nil {
		log.Printf("Initial training failed: %v", err)
	}

	trainTicker := time.NewTicker(trainInterval)
	defer trainTicker.Stop()
	predictTicker := time.NewTicker(predictInterval)
	defer predictTicker.Stop()

	for {
		select {
		case <-trainTicker.C:
			if err := trainer.Train(ctx); err != nil {
				log.Printf("Training run failed: %v", err)
			}
		case <-predictTicker.C:
			count, err := predictor.Predict(ctx, nil, 0)
			if err != nil {
				log.Printf("Prediction run failed: %v", err)
			} else if count > 0 {
				log.Printf("Prediction run processed %d records", count)
			}
		case <-ctx.Done():
			return
		}
	}
}
