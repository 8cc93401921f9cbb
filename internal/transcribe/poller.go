package transcribe

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// PollPolicy controls the backoff schedule for async jobs. The numbers
// are a compatibility contract with existing callers: do not change them
// without coordinating with the clients.
type PollPolicy struct {
	InitialDelay time.Duration
	Growth       float64
	MaxDelay     time.Duration
	MaxAttempts  int
}

// DefaultPollPolicy waits 2s between polls initially, growing 1.2x per
// non-terminal response up to 10s, giving up after 30 polls (roughly 90s
// of polling in the worst case).
var DefaultPollPolicy = PollPolicy{
	InitialDelay: 2 * time.Second,
	Growth:       1.2,
	MaxDelay:     10 * time.Second,
	MaxAttempts:  30,
}

// Poller drives an async provider's job to a terminal state. One job is
// one call to Await; the poller itself holds no per-job state.
type Poller struct {
	policy PollPolicy
	log    zerolog.Logger

	// sleep is replaced in tests to observe the delay schedule.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewPoller creates a poller with the given policy.
func NewPoller(policy PollPolicy, log zerolog.Logger) *Poller {
	return &Poller{
		policy: policy,
		log:    log,
		sleep:  sleepCtx,
	}
}

// Await submits the clip to the provider and polls the resulting job
// until it completes, fails, or the attempt budget runs out. Cancelling
// ctx stops polling immediately; a poll loop never outlives its request.
func (p *Poller) Await(ctx context.Context, provider AsyncProvider, clip Clip) (Raw, error) {
	id := provider.Descriptor().ID

	jobID, err := provider.Submit(ctx, clip)
	if err != nil {
		return nil, fmt.Errorf("%s submit: %w", id, err)
	}
	p.log.Debug().Str("provider", id).Str("job_id", jobID).Msg("async job submitted")

	delay := p.policy.InitialDelay
	for attempt := 1; attempt <= p.policy.MaxAttempts; attempt++ {
		update, err := provider.Poll(ctx, jobID)
		if err != nil {
			return nil, fmt.Errorf("%s poll: %w", id, err)
		}

		switch update.Status {
		case StatusCompleted:
			p.log.Debug().Str("provider", id).Str("job_id", jobID).
				Int("polls", attempt).Msg("async job completed")
			return update.Raw, nil
		case StatusError:
			// Propagate the provider's message verbatim, tagged with its id.
			return nil, fmt.Errorf("%s job failed: %s", id, update.Err)
		case StatusQueued, StatusProcessing:
			// fall through to the backoff sleep
		default:
			return nil, fmt.Errorf("%s job %s: unexpected status %q", id, jobID, update.Status)
		}

		if attempt == p.policy.MaxAttempts {
			break
		}
		if err := p.sleep(ctx, delay); err != nil {
			return nil, err
		}
		delay = time.Duration(float64(delay) * p.policy.Growth)
		if delay > p.policy.MaxDelay {
			delay = p.policy.MaxDelay
		}
	}

	return nil, fmt.Errorf("%s job %s still not terminal after %d polls: %w",
		id, jobID, p.policy.MaxAttempts, ErrTimedOut)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
