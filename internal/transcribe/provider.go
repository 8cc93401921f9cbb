package transcribe

import (
	"context"
	"sort"
)

// Kind distinguishes providers that return a transcript in one call from
// providers that return a job handle requiring polling.
type Kind string

const (
	KindSync  Kind = "sync"
	KindAsync Kind = "async"
)

// Clip is one audio recording to transcribe. The caller owns the bytes for
// the duration of the request; the orchestrator never persists them.
type Clip struct {
	Data     []byte
	MIME     string  // e.g. "audio/webm", "audio/wav"
	Duration float64 // wall-clock seconds as reported by the recorder
}

// Descriptor is the static metadata for one transcription backend.
type Descriptor struct {
	ID       string
	Label    string
	Kind     Kind
	Priority int // lower tries first
}

// Provider is a speech-to-text backend registered with the orchestrator.
// Concrete providers implement either SyncProvider or AsyncProvider.
type Provider interface {
	Descriptor() Descriptor
}

// SyncProvider returns a transcript in a single call.
type SyncProvider interface {
	Provider
	Transcribe(ctx context.Context, clip Clip) (Raw, error)
}

// AsyncProvider returns a job handle on submit and is polled to completion.
type AsyncProvider interface {
	Provider
	Submit(ctx context.Context, clip Clip) (string, error)
	Poll(ctx context.Context, jobID string) (*JobUpdate, error)
}

// Job status values reported by async providers. These match the wire
// contract of the commercial API and must not be renamed.
const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusError      = "error"
)

// JobUpdate is one poll response from an async provider.
type JobUpdate struct {
	Status string // queued|processing|completed|error
	Err    string // provider error message when Status == error
	Raw    Raw    // full payload; normalized when Status == completed
}

// Registry holds the ordered set of configured providers. It is built once
// at startup and read-only afterwards, so concurrent lookups are safe.
type Registry struct {
	ordered []Provider
	byID    map[string]Provider
}

// NewRegistry builds a registry from the given providers, ordered by
// ascending Priority.
func NewRegistry(providers ...Provider) *Registry {
	ordered := make([]Provider, len(providers))
	copy(ordered, providers)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Descriptor().Priority < ordered[j].Descriptor().Priority
	})

	byID := make(map[string]Provider, len(ordered))
	for _, p := range ordered {
		byID[p.Descriptor().ID] = p
	}
	return &Registry{ordered: ordered, byID: byID}
}

// Providers returns descriptors in priority order.
func (r *Registry) Providers() []Descriptor {
	out := make([]Descriptor, len(r.ordered))
	for i, p := range r.ordered {
		out[i] = p.Descriptor()
	}
	return out
}

// Client returns the provider registered under id.
func (r *Registry) Client(id string) (Provider, error) {
	p, ok := r.byID[id]
	if !ok {
		return nil, &ConfigurationError{Provider: id}
	}
	return p, nil
}

// Len returns the number of registered providers.
func (r *Registry) Len() int { return len(r.ordered) }
