// Package storage archives uploaded recordings so users can replay them.
// Clips are stored exactly as received; the orchestrator itself never
// persists audio.
package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/orato/coach-engine/internal/config"
	"github.com/rs/zerolog"
)

// AudioStore abstracts recording storage backends.
// Key format: {user_id}/{YYYY-MM-DD}/{recording}.{ext}
type AudioStore interface {
	// Save stores a recording.
	Save(ctx context.Context, key string, data []byte, contentType string) error

	// URL returns a presigned URL for the recording, or "" for
	// local-only backends.
	URL(ctx context.Context, key string) (string, error)

	// Open returns a reader for the recording.
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// Exists checks whether a recording is stored.
	Exists(ctx context.Context, key string) bool

	// Type returns "local" or "s3".
	Type() string
}

// New creates an AudioStore from config: S3 when a bucket is configured,
// the local audio directory otherwise. S3 credentials and bucket access
// are verified at startup.
func New(cfg config.S3Config, audioDir string, log zerolog.Logger) (AudioStore, error) {
	if !cfg.Enabled() {
		return NewLocalStore(audioDir), nil
	}

	s3store, err := NewS3Store(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("S3 init failed: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s3store.HeadBucket(ctx); err != nil {
		return nil, fmt.Errorf("S3 startup check failed (bucket=%q endpoint=%q): %w",
			cfg.Bucket, cfg.Endpoint, err)
	}
	log.Info().Str("bucket", cfg.Bucket).Str("endpoint", cfg.Endpoint).Msg("S3 connection verified")

	return s3store, nil
}
