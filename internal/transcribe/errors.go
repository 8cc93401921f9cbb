package transcribe

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrTimedOut marks failures caused by a per-call timeout or an exhausted
// poll budget. It falls through to the next provider like any other
// failure, but carries a distinct reason for observability.
var ErrTimedOut = errors.New("timed out")

// ConfigurationError reports a provider id that is not in the registry.
// It is fatal and never retried.
type ConfigurationError struct {
	Provider string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("unknown transcription provider %q", e.Provider)
}

// MalformedResponseError reports a 2xx provider response that is missing
// the mandatory transcript text. Partial payloads are not trusted.
type MalformedResponseError struct {
	Provider string
	Field    string
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("%s: malformed response: missing %s", e.Provider, e.Field)
}

// Attempt records the outcome of trying one provider for one clip. It is
// created per call and discarded once aggregated.
type Attempt struct {
	Provider string
	Err      error
	Elapsed  time.Duration
}

// Reason returns a short human-readable failure reason for diagnostics.
func (a Attempt) Reason() string {
	if a.Err == nil {
		return "ok"
	}
	if errors.Is(a.Err, ErrTimedOut) {
		return "timed out"
	}
	return a.Err.Error()
}

// AllFailedError is the terminal error for sequential mode: every provider
// in the registry was tried and failed. It carries one attempt per
// provider so callers can show what was tried and why.
type AllFailedError struct {
	Attempts []Attempt
}

func (e *AllFailedError) Error() string {
	parts := make([]string, len(e.Attempts))
	for i, a := range e.Attempts {
		parts[i] = fmt.Sprintf("%s: %s", a.Provider, a.Reason())
	}
	return fmt.Sprintf("all %d transcription providers failed: %s",
		len(e.Attempts), strings.Join(parts, "; "))
}
