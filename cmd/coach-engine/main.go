package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/orato/coach-engine/internal/analysis"
	"github.com/orato/coach-engine/internal/api"
	"github.com/orato/coach-engine/internal/config"
	"github.com/orato/coach-engine/internal/database"
	"github.com/orato/coach-engine/internal/feedback"
	"github.com/orato/coach-engine/internal/notify"
	"github.com/orato/coach-engine/internal/storage"
	"github.com/orato/coach-engine/internal/transcribe"
)

var version = "dev"

func main() {
	startTime := time.Now()

	// Config
	cfg, err := config.Load(".env")
	if err != nil {
		early := zerolog.New(os.Stderr).With().Timestamp().Logger()
		early.Fatal().Err(err).Msg("failed to load config")
	}

	// Logger
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stdout).With().Timestamp().Logger().Level(level)
	log.Info().Str("version", version).Msg("coach-engine starting")

	// Context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Database
	dbLog := log.With().Str("component", "database").Logger()
	db, err := database.Connect(ctx, cfg.DatabaseURL, dbLog)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	// Audio archive
	storeLog := log.With().Str("component", "storage").Logger()
	store, err := storage.New(cfg.S3, cfg.AudioDir, storeLog)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize audio storage")
	}
	log.Info().Str("backend", store.Type()).Msg("audio storage ready")

	// Transcription providers, in fallback order
	registry := buildRegistry(cfg)
	if registry.Len() == 0 {
		log.Fatal().Msg("no transcription providers configured")
	}
	for _, d := range registry.Providers() {
		log.Info().Str("provider", d.ID).Str("kind", string(d.Kind)).
			Int("priority", d.Priority).Msg("transcription provider registered")
	}

	pollerLog := log.With().Str("component", "poller").Logger()
	poller := transcribe.NewPoller(transcribe.DefaultPollPolicy, pollerLog)

	seqLog := log.With().Str("component", "sequencer").Logger()
	sequencer := transcribe.NewSequencer(registry, poller, cfg.ProviderTimeout, seqLog)

	// Filler lexicon, hot-reloaded on file change
	lexLog := log.With().Str("component", "lexicon").Logger()
	lexicon := analysis.NewLexiconSource(cfg.LexiconFile, lexLog)
	if cfg.LexiconFile != "" {
		if err := lexicon.Watch(); err != nil {
			log.Warn().Err(err).Msg("lexicon file watcher unavailable, edits require restart")
		}
		defer lexicon.Close()
	}

	// Coaching feedback LLM (optional)
	var fb *feedback.Client
	if cfg.FeedbackURL != "" {
		fb = feedback.NewClient(feedback.Options{
			BaseURL: cfg.FeedbackURL,
			APIKey:  cfg.FeedbackAPIKey,
			Model:   cfg.FeedbackModel,
			Timeout: cfg.FeedbackTimeout,
			Log:     log.With().Str("component", "feedback").Logger(),
		})
		log.Info().Str("model", cfg.FeedbackModel).Msg("coaching feedback enabled")
	}

	// MQTT completion notifications (optional)
	var notifier *notify.Publisher
	if cfg.MQTTBrokerURL != "" {
		mqttLog := log.With().Str("component", "mqtt").Logger()
		notifier, err = notify.Connect(notify.Options{
			BrokerURL: cfg.MQTTBrokerURL,
			ClientID:  cfg.MQTTClientID,
			Username:  cfg.MQTTUsername,
			Password:  cfg.MQTTPassword,
			Log:       mqttLog,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to mqtt broker")
		}
		defer notifier.Close()
	}

	// HTTP Server
	httpLog := log.With().Str("component", "http").Logger()
	srv := api.NewServer(cfg, api.Deps{
		DB:        db,
		Store:     store,
		Notifier:  notifier,
		Sequencer: sequencer,
		Registry:  registry,
		Lexicon:   lexicon,
		Feedback:  fb,
		Version:   version,
		StartTime: startTime,
	}, httpLog)

	// Start HTTP server in background
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	// Wait for shutdown signal or server error
	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("http server error")
		}
	}

	// Graceful shutdown with 10s timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown error")
	}

	log.Info().Msg("coach-engine stopped")
}

// buildRegistry registers every provider that has credentials configured.
// Priority encodes the fallback order: the local model first, free cloud
// backends next, the commercial API last.
func buildRegistry(cfg *config.Config) *transcribe.Registry {
	var providers []transcribe.Provider

	if cfg.WhisperURL != "" {
		providers = append(providers,
			transcribe.NewWhisperClient(cfg.WhisperURL, cfg.WhisperModel, cfg.ProviderTimeout, 0))
	}
	if cfg.HuggingFaceAPIKey != "" {
		providers = append(providers,
			transcribe.NewHuggingFaceClient(cfg.HuggingFaceAPIKey, cfg.HuggingFaceModel, cfg.ProviderTimeout, 1))
	}
	if cfg.DeepInfraAPIKey != "" {
		providers = append(providers,
			transcribe.NewDeepInfraClient(cfg.DeepInfraAPIKey, cfg.DeepInfraModel, cfg.ProviderTimeout, 2))
	}
	if cfg.AssemblyAIAPIKey != "" {
		providers = append(providers,
			transcribe.NewAssemblyAIClient(cfg.AssemblyAIAPIKey, cfg.ProviderTimeout, 3))
	}

	return transcribe.NewRegistry(providers...)
}
