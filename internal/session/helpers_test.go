package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prepforge/session-backend/internal/clock"
	"github.com/prepforge/session-backend/internal/genapi"
	"github.com/prepforge/session-backend/internal/model"
	"github.com/rs/zerolog"
)

// fakeClock hands out manually driven tickers. Tests receive each created
// ticker from the created channel and push ticks into it.
type fakeClock struct {
	now     time.Time
	created chan *fakeTicker
}

func newFakeClock() *fakeClock {
	return &fakeClock{
		now:     time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
		created: make(chan *fakeTicker, 4),
	}
}

func (f *fakeClock) Now() time.Time { return f.now }

func (f *fakeClock) NewTicker(time.Duration) clock.Ticker {
	t := &fakeTicker{c: make(chan time.Time, 16)}
	f.created <- t
	return t
}

// awaitTicker returns the next ticker handed out by the clock.
func (f *fakeClock) awaitTicker(t *testing.T) *fakeTicker {
	t.Helper()
	select {
	case tk := <-f.created:
		return tk
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a ticker to be created")
		return nil
	}
}

type fakeTicker struct {
	c chan time.Time
}

func (t *fakeTicker) C() <-chan time.Time { return t.c }
func (t *fakeTicker) Stop()               {}

func (t *fakeTicker) tick() {
	t.c <- time.Time{}
}

// fakeAPI is a scriptable genapi.Service.
type fakeAPI struct {
	mu sync.Mutex

	startFn  func(ctx context.Context, cardID string) (*genapi.StartResult, error)
	pollFn   func(ctx context.Context, handle string) (*genapi.StatusResult, error)
	loadFn   func(ctx context.Context, sessionRef string) (*genapi.FixedSetResult, error)
	submitFn func(ctx context.Context, sessionRef string, answers []model.AnswerSubmission, elapsedSeconds int) (*model.SubmissionResult, error)

	startCalls  int
	pollCalls   int
	loadCalls   int
	submitCalls int

	lastSubmitted []model.AnswerSubmission
	lastElapsed   int
}

var _ genapi.Service = (*fakeAPI)(nil)

func (f *fakeAPI) StartGeneration(ctx context.Context, cardID string) (*genapi.StartResult, error) {
	f.mu.Lock()
	f.startCalls++
	fn := f.startFn
	f.mu.Unlock()
	return fn(ctx, cardID)
}

func (f *fakeAPI) PollGenerationStatus(ctx context.Context, handle string) (*genapi.StatusResult, error) {
	f.mu.Lock()
	f.pollCalls++
	fn := f.pollFn
	f.mu.Unlock()
	return fn(ctx, handle)
}

func (f *fakeAPI) LoadFixedQuestions(ctx context.Context, sessionRef string) (*genapi.FixedSetResult, error) {
	f.mu.Lock()
	f.loadCalls++
	fn := f.loadFn
	f.mu.Unlock()
	return fn(ctx, sessionRef)
}

func (f *fakeAPI) SubmitAnswers(ctx context.Context, sessionRef string, answers []model.AnswerSubmission, elapsedSeconds int) (*model.SubmissionResult, error) {
	f.mu.Lock()
	f.submitCalls++
	f.lastSubmitted = answers
	f.lastElapsed = elapsedSeconds
	fn := f.submitFn
	f.mu.Unlock()
	return fn(ctx, sessionRef, answers, elapsedSeconds)
}

func (f *fakeAPI) counts() (start, poll, load, submit int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.startCalls, f.pollCalls, f.loadCalls, f.submitCalls
}

func (f *fakeAPI) setSubmitFn(fn func(ctx context.Context, sessionRef string, answers []model.AnswerSubmission, elapsedSeconds int) (*model.SubmissionResult, error)) {
	f.mu.Lock()
	f.submitFn = fn
	f.mu.Unlock()
}

func makeQuestions(n int) []model.Question {
	qs := make([]model.Question, 0, n)
	for i := 0; i < n; i++ {
		qs = append(qs, model.Question{
			ID:            uuid.New(),
			Prompt:        "prompt",
			Options:       []string{"a", "b", "c", "d"},
			CorrectOption: "A",
		})
	}
	return qs
}

func okSubmit(ctx context.Context, sessionRef string, answers []model.AnswerSubmission, elapsedSeconds int) (*model.SubmissionResult, error) {
	return &model.SubmissionResult{Score: 8, Percentage: 80, RemainingAttempts: 2}, nil
}

// completeStart scripts a start that delivers the whole set up front, so no
// poller is spawned.
func completeStart(qs []model.Question, durationSeconds int) func(context.Context, string) (*genapi.StartResult, error) {
	return func(context.Context, string) (*genapi.StartResult, error) {
		return &genapi.StartResult{
			GenerationHandle: "gen-handle-1",
			DurationSeconds:  durationSeconds,
			Questions:        qs,
			Progress: model.GenerationProgress{
				GeneratedCount: len(qs),
				TotalNeeded:    len(qs),
				IsComplete:     true,
			},
		}, nil
	}
}

func newTestController(api genapi.Service, clk clock.Clock) *Controller {
	return NewController(api, clk, zerolog.Nop(), Config{
		PollInterval:    time.Second,
		MaxPollFailures: 3,
		SubmitTimeout:   time.Second,
		DefaultDuration: time.Hour,
	})
}

// awaitEvent drains the event stream until an event of the wanted type shows
// up.
func awaitEvent(t *testing.T, events <-chan Event, typ EventType) Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-events:
			if ev.Type == typ {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %q event", typ)
		}
	}
}
