package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jogardn/saleco-docs/internal/api"
	"github.com/jogardn/saleco-docs/internal/assets"
	"github.com/jogardn/saleco-docs/internal/circuitbreaker"
	"github.com/jogardn/saleco-docs/internal/config"
	"github.com/jogardn/saleco-docs/internal/document"
	"github.com/jogardn/saleco-docs/internal/events"
	"github.com/jogardn/saleco-docs/internal/notify"
	"github.com/jogardn/saleco-docs/internal/pdfform"
	"github.com/jogardn/saleco-docs/internal/saleco"
	"github.com/jogardn/saleco-docs/internal/store"
	"github.com/jogardn/saleco-docs/internal/submission"
	"github.com/jogardn/saleco-docs/internal/websocket"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg := config.Load()
	logger := cfg.NewLogger()
	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("Invalid configuration")
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	client := saleco.NewClient(cfg.SaleCoAPIURL, cfg.SaleCoAPIToken, cfg.HTTPTimeout, logger)
	opener, err := pdfform.NewOpener(cfg.PDFConfigDir, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to set up PDF backend")
	}
	engine := document.NewEngine(newSource(cfg, logger), opener, document.DefaultLayout(), nil, logger)

	hub := websocket.NewHub(cfg.AllowedOrigins, logger)
	go hub.Run(ctx)

	channels := []submission.Channel{
		{Name: "dashboard", ID: "dashboard", Sender: hub},
	}
	if len(cfg.TelegramChatIDs) > 0 {
		telegram := notify.NewTelegramSender(cfg.TelegramAPIURL, cfg.TelegramBotToken, cfg.HTTPTimeout, logger)
		for _, chatID := range cfg.TelegramChatIDs {
			name := "telegram:" + chatID
			breaker := circuitbreaker.New(circuitbreaker.Config{Name: name, MaxFailures: 3, Cooldown: time.Minute}, logger)
			channels = append(channels, submission.Channel{Name: name, ID: chatID, Sender: notify.NewGuardedSender(telegram, breaker)})
		}
	}

	pipelineConfig := submission.Config{
		Records:     client,
		Allocations: client,
		Renderer:    engine,
		Store:       client,
	}

	if cfg.KafkaEnabled() {
		producer, err := events.NewKafkaProducer(cfg.KafkaBrokers, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to create Kafka producer")
		}
		defer producer.Close()
		pipelineConfig.Regeneration = producer
		channels = append(channels, submission.Channel{Name: "kafka", ID: events.DocumentCreatedTopic, Sender: producer})
	} else {
		logger.Info("Kafka brokers not configured, regeneration queue disabled")
	}
	pipelineConfig.Channels = channels

	var documents *store.PostgresStore
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

		documents = store.NewPostgresStore(db, cfg.PublicBaseURL, logger)
		if err := documents.CreateTables(ctx); err != nil {
			logger.WithError(err).Fatal("Failed to create tables")
		}
		pipelineConfig.Store = documents
	}

	pipeline := submission.NewPipeline(pipelineConfig, logger)
	handler := api.NewHandler(pipeline, engine, submission.NewNCWorkflow(client, logger), logger)
	if documents != nil {
		handler.SetDocumentReader(documents)
		handler.SetPinger(documents)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      api.NewRouter(handler, hub, cfg.AllowedOrigins, logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * cfg.HTTPTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.WithFields(logrus.Fields{
			"port":           cfg.Port,
			"artifact_store": cfg.ArtifactStore,
			"channels":       len(channels),
		}).Info("Starting document service")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Failed to start server")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}
	stop()

	logger.Info("Server gracefully stopped")
}

func newSource(cfg *config.Config, logger *logrus.Logger) document.Source {
	if cfg.TemplateDir != "" {
		logger.WithField("dir", cfg.TemplateDir).Info("Loading template assets from directory")
		return assets.NewDirSource(cfg.TemplateDir, cfg.TemplateFile, cfg.FontFile)
	}
	return assets.NewHTTPSource(cfg.TemplateBaseURL, cfg.TemplateVersion, cfg.TemplateFile, cfg.FontFile, cfg.HTTPTimeout, logger)
}
