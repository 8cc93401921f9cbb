package transcribe

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// fakeAsync is a scripted async provider. Each Poll consumes the next
// status from the script; the last status repeats once the script runs out.
type fakeAsync struct {
	desc      Descriptor
	submitErr error
	script    []string
	errMsg    string
	raw       Raw
	submits   int
	polls     int
}

func (f *fakeAsync) Descriptor() Descriptor { return f.desc }

func (f *fakeAsync) Submit(ctx context.Context, clip Clip) (string, error) {
	f.submits++
	if f.submitErr != nil {
		return "", f.submitErr
	}
	return "job-123", nil
}

func (f *fakeAsync) Poll(ctx context.Context, jobID string) (*JobUpdate, error) {
	status := f.script[len(f.script)-1]
	if f.polls < len(f.script) {
		status = f.script[f.polls]
	}
	f.polls++

	u := &JobUpdate{Status: status}
	if status == StatusError {
		u.Err = f.errMsg
	}
	if status == StatusCompleted {
		u.Raw = f.raw
	}
	return u, nil
}

func asyncProvider(script ...string) *fakeAsync {
	return &fakeAsync{
		desc:   Descriptor{ID: "async", Label: "Async", Kind: KindAsync, Priority: 0},
		script: script,
		raw:    &AssemblyAIRaw{Status: StatusCompleted, Text: "done"},
	}
}

// recordingPoller returns a poller whose sleeps are captured instead of slept.
func recordingPoller(policy PollPolicy) (*Poller, *[]time.Duration) {
	p := NewPoller(policy, zerolog.Nop())
	var delays []time.Duration
	p.sleep = func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		return ctx.Err()
	}
	return p, &delays
}

func TestPoller_BackoffSchedule(t *testing.T) {
	// Five processing responses then completed: exactly six polls, with
	// sleeps of 2s, 2.4s, 2.88s, 3.456s and 4.147s between them.
	fake := asyncProvider(
		StatusProcessing, StatusProcessing, StatusProcessing,
		StatusProcessing, StatusProcessing, StatusCompleted,
	)
	p, delays := recordingPoller(DefaultPollPolicy)

	raw, err := p.Await(context.Background(), fake, testClip())
	if err != nil {
		t.Fatalf("Await: %v", err)
	}
	if raw == nil {
		t.Fatal("Await returned nil raw on success")
	}
	if fake.polls != 6 {
		t.Errorf("polls = %d, want 6", fake.polls)
	}

	want := []float64{2.0, 2.4, 2.88, 3.456, 4.1472}
	if len(*delays) != len(want) {
		t.Fatalf("sleeps = %d, want %d (%v)", len(*delays), len(want), *delays)
	}
	for i, w := range want {
		got := (*delays)[i].Seconds()
		if math.Abs(got-w) > 0.001 {
			t.Errorf("delay %d = %.4fs, want %.4fs", i, got, w)
		}
	}
}

func TestPoller_DelayCap(t *testing.T) {
	script := make([]string, 30)
	for i := range script {
		script[i] = StatusProcessing
	}
	fake := asyncProvider(script...)
	p, delays := recordingPoller(DefaultPollPolicy)

	_, err := p.Await(context.Background(), fake, testClip())
	if !errors.Is(err, ErrTimedOut) {
		t.Fatalf("error = %v, want ErrTimedOut", err)
	}
	last := (*delays)[len(*delays)-1]
	if last != 10*time.Second {
		t.Errorf("final delay = %s, want capped at 10s", last)
	}
	for _, d := range *delays {
		if d > 10*time.Second {
			t.Errorf("delay %s exceeds cap", d)
		}
	}
}

func TestPoller_AttemptBudget(t *testing.T) {
	// Always processing: give up after exactly 30 polls, never a 31st.
	fake := asyncProvider(StatusProcessing)
	p, _ := recordingPoller(DefaultPollPolicy)

	_, err := p.Await(context.Background(), fake, testClip())
	if !errors.Is(err, ErrTimedOut) {
		t.Fatalf("error = %v, want ErrTimedOut", err)
	}
	if fake.polls != 30 {
		t.Errorf("polls = %d, want exactly 30", fake.polls)
	}
}

func TestPoller_TerminalError(t *testing.T) {
	fake := asyncProvider(StatusQueued, StatusError)
	fake.errMsg = "audio too short"
	p, _ := recordingPoller(DefaultPollPolicy)

	_, err := p.Await(context.Background(), fake, testClip())
	if err == nil {
		t.Fatal("Await succeeded, want provider error")
	}
	if !strings.Contains(err.Error(), "audio too short") {
		t.Errorf("error %q missing verbatim provider message", err.Error())
	}
	if !strings.Contains(err.Error(), "async") {
		t.Errorf("error %q missing provider id tag", err.Error())
	}
	if fake.polls != 2 {
		t.Errorf("polls = %d, want 2", fake.polls)
	}
}

func TestPoller_SubmitError(t *testing.T) {
	fake := asyncProvider(StatusProcessing)
	fake.submitErr = errors.New("status 401")
	p, _ := recordingPoller(DefaultPollPolicy)

	_, err := p.Await(context.Background(), fake, testClip())
	if err == nil {
		t.Fatal("Await succeeded, want submit error")
	}
	if fake.polls != 0 {
		t.Errorf("polls = %d, want 0 after failed submit", fake.polls)
	}
}

func TestPoller_CancellationStopsPolling(t *testing.T) {
	fake := asyncProvider(StatusProcessing)
	p := NewPoller(DefaultPollPolicy, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	polled := 0
	p.sleep = func(ctx context.Context, d time.Duration) error {
		polled++
		if polled == 3 {
			cancel()
		}
		return ctx.Err()
	}

	_, err := p.Await(ctx, fake, testClip())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if fake.polls > 3 {
		t.Errorf("polls = %d after cancellation, want <= 3", fake.polls)
	}
}

func TestPoller_ImmediateCompletion(t *testing.T) {
	fake := asyncProvider(StatusCompleted)
	p, delays := recordingPoller(DefaultPollPolicy)

	raw, err := p.Await(context.Background(), fake, testClip())
	if err != nil {
		t.Fatalf("Await: %v", err)
	}
	if raw == nil {
		t.Fatal("raw = nil")
	}
	if len(*delays) != 0 {
		t.Errorf("sleeps = %d for immediately completed job, want 0", len(*delays))
	}
}

func TestPoller_UnexpectedStatus(t *testing.T) {
	fake := asyncProvider("exploded")
	p, _ := recordingPoller(DefaultPollPolicy)

	_, err := p.Await(context.Background(), fake, testClip())
	if err == nil || !strings.Contains(err.Error(), "exploded") {
		t.Fatalf("error = %v, want unexpected status error", err)
	}
}
