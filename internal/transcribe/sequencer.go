package transcribe

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/orato/coach-engine/internal/metrics"
	"github.com/rs/zerolog"
)

// Outcome is the result of one provider in batch mode.
type Outcome struct {
	Success   bool    `json:"success"`
	Result    *Result `json:"result,omitempty"`
	Error     string  `json:"error,omitempty"`
	ElapsedMs int64   `json:"elapsed_ms"`
}

// Sequencer produces one transcript per clip by walking the registry in
// priority order, or fans out to every provider at once in batch mode.
// It is stateless between calls; the registry is its only shared data
// and is read-only.
type Sequencer struct {
	registry *Registry
	poller   *Poller
	timeout  time.Duration // per-provider budget
	log      zerolog.Logger
}

// NewSequencer creates a sequencer over the given registry. perProvider
// bounds each individual attempt; async jobs are additionally bounded by
// the poller's attempt budget.
func NewSequencer(registry *Registry, poller *Poller, perProvider time.Duration, log zerolog.Logger) *Sequencer {
	return &Sequencer{
		registry: registry,
		poller:   poller,
		timeout:  perProvider,
		log:      log,
	}
}

// Transcribe tries providers in priority order and returns the first
// success. Every failure is recorded as an attempt and logged; if the
// whole registry is exhausted the call fails with an AllFailedError
// carrying one reason per provider.
func (s *Sequencer) Transcribe(ctx context.Context, clip Clip) (*Result, error) {
	attempts := make([]Attempt, 0, s.registry.Len())

	for rank, p := range s.registry.ordered {
		id := p.Descriptor().ID
		raw, elapsed, err := s.attempt(ctx, p, clip)
		if err != nil {
			attempts = append(attempts, Attempt{Provider: id, Err: err, Elapsed: elapsed})
			s.observe(id, "failure", elapsed)
			s.log.Warn().Str("provider", id).Dur("elapsed", elapsed).Err(err).
				Msg("transcription attempt failed, falling through")
			if ctx.Err() != nil {
				// The request itself is gone; trying further providers
				// would fail the same way.
				break
			}
			continue
		}

		result, err := Normalize(id, raw)
		if err != nil {
			attempts = append(attempts, Attempt{Provider: id, Err: err, Elapsed: elapsed})
			s.observe(id, "malformed", elapsed)
			s.log.Warn().Str("provider", id).Err(err).Msg("provider returned malformed response")
			continue
		}

		result.ElapsedMs = elapsed.Milliseconds()
		result.UsedFallback = rank > 0
		s.observe(id, "success", elapsed)
		s.log.Info().Str("provider", id).Dur("elapsed", elapsed).
			Bool("used_fallback", result.UsedFallback).
			Int("attempts", len(attempts)+1).
			Msg("transcription succeeded")
		return result, nil
	}

	return nil, &AllFailedError{Attempts: attempts}
}

// TranscribeAll runs every provider concurrently and waits for all to
// settle. It never fails as a whole: callers inspect the per-provider
// outcomes. There is no ordering guarantee between attempts.
func (s *Sequencer) TranscribeAll(ctx context.Context, clip Clip) map[string]Outcome {
	outcomes := make(map[string]Outcome, s.registry.Len())
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, p := range s.registry.ordered {
		wg.Add(1)
		go func(p Provider) {
			defer wg.Done()
			id := p.Descriptor().ID

			raw, elapsed, err := s.attempt(ctx, p, clip)
			var result *Result
			if err == nil {
				result, err = Normalize(id, raw)
			}

			out := Outcome{ElapsedMs: elapsed.Milliseconds()}
			if err != nil {
				out.Error = reason(err)
				s.observe(id, "failure", elapsed)
				s.log.Warn().Str("provider", id).Dur("elapsed", elapsed).Err(err).
					Msg("batch transcription attempt failed")
			} else {
				result.ElapsedMs = elapsed.Milliseconds()
				out.Success = true
				out.Result = result
				s.observe(id, "success", elapsed)
				s.log.Info().Str("provider", id).Dur("elapsed", elapsed).
					Msg("batch transcription attempt succeeded")
			}

			mu.Lock()
			outcomes[id] = out
			mu.Unlock()
		}(p)
	}

	wg.Wait()
	return outcomes
}

// attempt runs a single provider with the per-provider timeout applied,
// dispatching on capability: sync providers are one call, async providers
// go through the poller.
func (s *Sequencer) attempt(ctx context.Context, p Provider, clip Clip) (Raw, time.Duration, error) {
	attemptCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	var raw Raw
	var err error

	switch client := p.(type) {
	case SyncProvider:
		raw, err = client.Transcribe(attemptCtx, clip)
	case AsyncProvider:
		raw, err = s.poller.Await(attemptCtx, client, clip)
	default:
		err = fmt.Errorf("provider %s implements neither capability", p.Descriptor().ID)
	}

	elapsed := time.Since(start)
	if err != nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		// A timeout falls through like any failure but keeps a distinct
		// reason for observability.
		err = fmt.Errorf("%w after %s: %v", ErrTimedOut, elapsed.Round(time.Millisecond), err)
	}
	return raw, elapsed, err
}

func (s *Sequencer) observe(provider, outcome string, elapsed time.Duration) {
	metrics.TranscribeAttemptsTotal.WithLabelValues(provider, outcome).Inc()
	metrics.TranscribeDuration.WithLabelValues(provider).Observe(elapsed.Seconds())
}

// reason formats an attempt error for the per-provider outcome map,
// collapsing timeouts to a stable string.
func reason(err error) string {
	if errors.Is(err, ErrTimedOut) {
		return "timed out"
	}
	return err.Error()
}
