package transcribe

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// fakeSync is a scripted synchronous provider for sequencer tests.
type fakeSync struct {
	desc  Descriptor
	raw   Raw
	err   error
	delay time.Duration
	calls int
}

func (f *fakeSync) Descriptor() Descriptor { return f.desc }

func (f *fakeSync) Transcribe(ctx context.Context, clip Clip) (Raw, error) {
	f.calls++
	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(f.delay):
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.raw, nil
}

func syncProvider(id string, priority int, raw Raw, err error) *fakeSync {
	return &fakeSync{
		desc: Descriptor{ID: id, Label: id, Kind: KindSync, Priority: priority},
		raw:  raw,
		err:  err,
	}
}

func testClip() Clip {
	return Clip{Data: []byte("RIFF"), MIME: "audio/wav", Duration: 60}
}

func newTestSequencer(timeout time.Duration, providers ...Provider) *Sequencer {
	reg := NewRegistry(providers...)
	poller := NewPoller(DefaultPollPolicy, zerolog.Nop())
	return NewSequencer(reg, poller, timeout, zerolog.Nop())
}

func TestSequencer_FirstProviderWins(t *testing.T) {
	p1 := syncProvider("one", 0, &HuggingFaceRaw{Text: "hello there"}, nil)
	p2 := syncProvider("two", 1, &HuggingFaceRaw{Text: "should not be used"}, nil)
	s := newTestSequencer(0, p1, p2)

	result, err := s.Transcribe(context.Background(), testClip())
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if result.Text != "hello there" {
		t.Errorf("Text = %q, want %q", result.Text, "hello there")
	}
	if result.Provider != "one" {
		t.Errorf("Provider = %q, want %q", result.Provider, "one")
	}
	if result.UsedFallback {
		t.Error("UsedFallback = true for primary provider")
	}
	if p2.calls != 0 {
		t.Errorf("provider two called %d times, want 0", p2.calls)
	}
}

func TestSequencer_FallsThroughInOrder(t *testing.T) {
	p1 := syncProvider("one", 0, nil, errors.New("boom"))
	p2 := syncProvider("two", 1, nil, errors.New("boom"))
	p3 := syncProvider("three", 2, &HuggingFaceRaw{Text: "third time lucky"}, nil)
	s := newTestSequencer(0, p1, p2, p3)

	result, err := s.Transcribe(context.Background(), testClip())
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if result.Provider != "three" {
		t.Errorf("Provider = %q, want %q", result.Provider, "three")
	}
	if !result.UsedFallback {
		t.Error("UsedFallback = false after two failures")
	}
	for _, p := range []*fakeSync{p1, p2, p3} {
		if p.calls != 1 {
			t.Errorf("provider %s called %d times, want 1", p.desc.ID, p.calls)
		}
	}
}

func TestSequencer_PriorityOrderNotRegistrationOrder(t *testing.T) {
	low := syncProvider("low", 5, &HuggingFaceRaw{Text: "low"}, nil)
	high := syncProvider("high", 0, &HuggingFaceRaw{Text: "high"}, nil)
	s := newTestSequencer(0, low, high)

	result, err := s.Transcribe(context.Background(), testClip())
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if result.Provider != "high" {
		t.Errorf("Provider = %q, want high (priority 0)", result.Provider)
	}
}

func TestSequencer_AllFail(t *testing.T) {
	p1 := syncProvider("one", 0, nil, errors.New("connection refused"))
	p2 := syncProvider("two", 1, nil, errors.New("status 500"))
	p3 := syncProvider("three", 2, nil, errors.New("status 403"))
	s := newTestSequencer(0, p1, p2, p3)

	_, err := s.Transcribe(context.Background(), testClip())
	var all *AllFailedError
	if !errors.As(err, &all) {
		t.Fatalf("error = %v, want AllFailedError", err)
	}
	if len(all.Attempts) != 3 {
		t.Fatalf("attempts = %d, want 3", len(all.Attempts))
	}
	wantOrder := []string{"one", "two", "three"}
	for i, a := range all.Attempts {
		if a.Provider != wantOrder[i] {
			t.Errorf("attempt %d provider = %q, want %q", i, a.Provider, wantOrder[i])
		}
	}
	if !strings.Contains(err.Error(), "connection refused") {
		t.Errorf("aggregate error %q missing individual reason", err.Error())
	}
}

func TestSequencer_MalformedResponseFallsThrough(t *testing.T) {
	p1 := syncProvider("one", 0, &HuggingFaceRaw{Text: "   "}, nil)
	p2 := syncProvider("two", 1, &HuggingFaceRaw{Text: "recovered"}, nil)
	s := newTestSequencer(0, p1, p2)

	result, err := s.Transcribe(context.Background(), testClip())
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if result.Provider != "two" {
		t.Errorf("Provider = %q, want two", result.Provider)
	}
}

func TestSequencer_TimeoutFallsThrough(t *testing.T) {
	slow := syncProvider("slow", 0, &HuggingFaceRaw{Text: "too late"}, nil)
	slow.delay = 200 * time.Millisecond
	fast := syncProvider("fast", 1, &HuggingFaceRaw{Text: "quick"}, nil)
	s := newTestSequencer(20*time.Millisecond, slow, fast)

	result, err := s.Transcribe(context.Background(), testClip())
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if result.Provider != "fast" {
		t.Errorf("Provider = %q, want fast", result.Provider)
	}
}

func TestSequencer_BatchAllSettle(t *testing.T) {
	p1 := syncProvider("one", 0, &HuggingFaceRaw{Text: "alpha"}, nil)
	p2 := syncProvider("two", 1, nil, errors.New("status 502"))
	p3 := syncProvider("three", 2, &HuggingFaceRaw{Text: "gamma"}, nil)
	s := newTestSequencer(0, p1, p2, p3)

	outcomes := s.TranscribeAll(context.Background(), testClip())
	if len(outcomes) != 3 {
		t.Fatalf("outcomes = %d, want 3", len(outcomes))
	}
	if !outcomes["one"].Success || outcomes["one"].Result.Text != "alpha" {
		t.Errorf("outcome one = %+v, want success with text alpha", outcomes["one"])
	}
	if outcomes["two"].Success {
		t.Error("outcome two should be a failure")
	}
	if outcomes["two"].Error == "" {
		t.Error("failed outcome missing error reason")
	}
	if !outcomes["three"].Success {
		t.Error("outcome three should be a success")
	}
}

func TestSequencer_BatchTimeoutReason(t *testing.T) {
	p1 := syncProvider("one", 0, &HuggingFaceRaw{Text: "alpha"}, nil)
	p2 := syncProvider("two", 1, &HuggingFaceRaw{Text: "never"}, nil)
	p2.delay = 500 * time.Millisecond
	p3 := syncProvider("three", 2, &HuggingFaceRaw{Text: "gamma"}, nil)
	s := newTestSequencer(30*time.Millisecond, p1, p2, p3)

	outcomes := s.TranscribeAll(context.Background(), testClip())
	if len(outcomes) != 3 {
		t.Fatalf("outcomes = %d, want 3", len(outcomes))
	}
	if outcomes["two"].Success {
		t.Error("slow provider should have timed out")
	}
	if outcomes["two"].Error != "timed out" {
		t.Errorf("timeout reason = %q, want %q", outcomes["two"].Error, "timed out")
	}
	if !outcomes["one"].Success || !outcomes["three"].Success {
		t.Error("fast providers should both succeed")
	}
}

func TestSequencer_BatchNeverFailsAsWhole(t *testing.T) {
	p1 := syncProvider("one", 0, nil, errors.New("down"))
	p2 := syncProvider("two", 1, nil, errors.New("down"))
	s := newTestSequencer(0, p1, p2)

	outcomes := s.TranscribeAll(context.Background(), testClip())
	if len(outcomes) != 2 {
		t.Fatalf("outcomes = %d, want 2", len(outcomes))
	}
	for id, o := range outcomes {
		if o.Success {
			t.Errorf("outcome %s unexpectedly succeeded", id)
		}
	}
}
