package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/orato/coach-engine/internal/analysis"
	"github.com/orato/coach-engine/internal/config"
	"github.com/orato/coach-engine/internal/database"
	"github.com/orato/coach-engine/internal/feedback"
	"github.com/orato/coach-engine/internal/notify"
	"github.com/orato/coach-engine/internal/storage"
	"github.com/orato/coach-engine/internal/transcribe"
)

// Deps bundles everything the API surface needs. Notifier and Feedback
// are nil when not configured.
type Deps struct {
	DB        *database.DB
	Store     storage.AudioStore
	Notifier  *notify.Publisher
	Sequencer *transcribe.Sequencer
	Registry  *transcribe.Registry
	Lexicon   *analysis.LexiconSource
	Feedback  *feedback.Client
	Version   string
	StartTime time.Time
}

type Server struct {
	http *http.Server
	log  zerolog.Logger
}

func NewServer(cfg *config.Config, deps Deps, log zerolog.Logger) *Server {
	r := chi.NewRouter()

	// Global middleware
	r.Use(RequestID)
	r.Use(Recoverer)
	r.Use(CORS)
	r.Use(Logger(log))

	// Unauthenticated: health and metrics
	health := NewHealthHandler(deps.DB, connChecker(deps.Notifier), deps.Registry, deps.Version, deps.StartTime)
	r.Get("/api/v1/health", health.ServeHTTP)
	r.Handle("/metrics", promhttp.Handler())

	// Authenticated routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(BearerAuth(cfg.AuthToken))

		transcriptions := NewTranscriptionHandler(
			deps.Sequencer,
			deps.DB,
			deps.Store,
			deps.Lexicon,
			feedbackGen(deps.Feedback),
			notifier(deps.Notifier),
			cfg.MaxUploadMB,
			log,
		)
		transcriptions.Routes(r)

		recordings := NewRecordingsHandler(deps.DB, deps.Store, log)
		recordings.Routes(r)
	})

	return &Server{
		http: &http.Server{
			Addr:         cfg.HTTPAddr,
			Handler:      r,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
		log: log,
	}
}

// connChecker converts a possibly-nil concrete publisher to the handler
// interface without producing a non-nil interface holding a nil pointer.
func connChecker(p *notify.Publisher) ConnectionChecker {
	if p == nil {
		return nil
	}
	return p
}

func feedbackGen(c *feedback.Client) FeedbackGenerator {
	if c == nil {
		return nil
	}
	return c
}

func notifier(p *notify.Publisher) Notifier {
	if p == nil {
		return nil
	}
	return p
}

func (s *Server) Start() error {
	s.log.Info().Str("addr", s.http.Addr).Msg("http server starting")
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("http server shutting down")
	return s.http.Shutdown(ctx)
}
