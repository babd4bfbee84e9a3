package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jogardn/saleco-docs/internal/assets"
	"github.com/jogardn/saleco-docs/internal/config"
	"github.com/jogardn/saleco-docs/internal/document"
	"github.com/jogardn/saleco-docs/internal/events"
	"github.com/jogardn/saleco-docs/internal/pdfform"
	"github.com/jogardn/saleco-docs/internal/saleco"
	"github.com/jogardn/saleco-docs/internal/store"
	"github.com/jogardn/saleco-docs/internal/submission"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg := config.Load()
	logger := cfg.NewLogger()
	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("Invalid configuration")
	}
	if !cfg.KafkaEnabled() {
		logger.Fatal("KAFKA_BROKERS is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		logger.Info("Shutting down regenerator...")
		cancel()
	}()

	if cfg.RegeneratorMode == config.ModeReplayDLQ {
		replayDLQ(ctx, cfg, logger)
		return
	}
	regenerate(ctx, cfg, logger)
}

func regenerate(ctx context.Context, cfg *config.Config, logger *logrus.Logger) {
	client := saleco.NewClient(cfg.SaleCoAPIURL, cfg.SaleCoAPIToken, cfg.HTTPTimeout, logger)

	var source document.Source
	if cfg.TemplateDir != "" {
		source = assets.NewDirSource(cfg.TemplateDir, cfg.TemplateFile, cfg.FontFile)
	} else {
		source = assets.NewHTTPSource(cfg.TemplateBaseURL, cfg.TemplateVersion, cfg.TemplateFile, cfg.FontFile, cfg.HTTPTimeout, logger)
	}
	opener, err := pdfform.NewOpener(cfg.PDFConfigDir, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to set up PDF backend")
	}
	engine := document.NewEngine(source, opener, document.DefaultLayout(), nil, logger)

	var artifacts submission.ArtifactStore = client
	if cfg.ArtifactStore == config.StorePostgres {
		db, err := store.OpenDatabase(ctx, store.DatabaseConfig{
			Host:     cfg.DBHost,
			Port:     cfg.DBPort,
			User:     cfg.DBUser,
			Password: cfg.DBPassword,
			Name:     cfg.DBName,
		}, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect to database")
		}
		defer db.Close()
		artifacts = store.NewPostgresStore(db, cfg.PublicBaseURL, logger)
	}

	regenerator := submission.NewRegenerator(client, engine, artifacts, logger)
	consumer, err := events.NewRegenerationConsumer(cfg.KafkaBrokers, cfg.KafkaGroupID, regenerator, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create regeneration consumer")
	}
	defer consumer.Close()

	logger.WithField("topic", events.DocumentRegenerateTopic).Info("Starting document regenerator")
	if err := consumer.Start(ctx); err != nil {
		logger.WithError(err).Error("Regeneration consumer stopped")
	}

	metrics := consumer.Metrics()
	logger.WithFields(logrus.Fields{
		"processed": metrics.ProcessedCount,
		"succeeded": metrics.SuccessCount,
		"retries":   metrics.RetryCount,
		"dlq":       metrics.DLQCount,
	}).Info("Document regenerator stopped")
}

func replayDLQ(ctx context.Context, cfg *config.Config, logger *logrus.Logger) {
	processor, err := events.NewDLQProcessor(cfg.KafkaBrokers, cfg.KafkaGroupID+"-dlq", cfg.DLQReplayDelay, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create DLQ processor")
	}
	defer processor.Close()

	logger.WithFields(logrus.Fields{
		"from":  events.DocumentRegenerateDLQTopic,
		"to":    events.DocumentRegenerateTopic,
		"delay": cfg.DLQReplayDelay,
	}).Info("Starting DLQ replay")
	if err := processor.ProcessDLQ(ctx); err != nil {
		logger.WithError(err).Error("DLQ processor stopped")
	}

	metrics := processor.Metrics()
	logger.WithFields(logrus.Fields{
		"replayed": metrics.ReplayedCount,
		"parked":   metrics.ParkedCount,
		"failed":   metrics.FailedCount,
	}).Info("DLQ replay stopped")
}
