package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prepforge/session-backend/internal/genapi"
	"github.com/prepforge/session-backend/internal/model"
)

func TestStartFreshAttempt(t *testing.T) {
	qs := makeQuestions(10)
	api := &fakeAPI{startFn: completeStart(qs, 1800), submitFn: okSubmit}
	c := newTestController(api, newFakeClock())
	defer c.Close()

	if err := c.StartFreshAttempt(context.Background(), "card-1"); err != nil {
		t.Fatalf("StartFreshAttempt: %v", err)
	}

	snap := c.Snapshot()
	if snap.Phase != PhaseInstructions {
		t.Errorf("phase = %s, want %s", snap.Phase, PhaseInstructions)
	}
	if snap.SessionID != "gen-handle-1" {
		t.Errorf("session id = %q, want the generation handle", snap.SessionID)
	}
	if snap.DurationSeconds != 1800 || snap.RemainingSeconds != 1800 {
		t.Errorf("duration/remaining = %d/%d, want 1800/1800", snap.DurationSeconds, snap.RemainingSeconds)
	}
	if snap.QuestionCount != 10 || !snap.CanStart {
		t.Errorf("count=%d canStart=%v, want 10/true", snap.QuestionCount, snap.CanStart)
	}
	if c.Identifier() != "card-1" {
		t.Errorf("identifier = %q, want card-1", c.Identifier())
	}
}

func TestStartFreshAttemptDefaultDuration(t *testing.T) {
	api := &fakeAPI{startFn: completeStart(makeQuestions(3), 0), submitFn: okSubmit}
	c := newTestController(api, newFakeClock())
	defer c.Close()

	if err := c.StartFreshAttempt(context.Background(), "card-1"); err != nil {
		t.Fatalf("StartFreshAttempt: %v", err)
	}
	if got := c.Snapshot().DurationSeconds; got != 3600 {
		t.Errorf("duration = %d, want config default 3600", got)
	}
}

func TestDuplicateStartRejected(t *testing.T) {
	api := &fakeAPI{startFn: completeStart(makeQuestions(5), 600), submitFn: okSubmit}
	c := newTestController(api, newFakeClock())
	defer c.Close()

	if err := c.StartFreshAttempt(context.Background(), "card-1"); err != nil {
		t.Fatalf("first start: %v", err)
	}
	if err := c.StartFreshAttempt(context.Background(), "card-1"); !errors.Is(err, ErrStartInFlight) {
		t.Fatalf("second start err = %v, want ErrStartInFlight", err)
	}

	if starts, _, _, _ := api.counts(); starts != 1 {
		t.Errorf("remote start calls = %d, want exactly 1", starts)
	}
}

func TestDuplicateStartRejectedWhileRequestInFlight(t *testing.T) {
	gate := make(chan struct{})
	entered := make(chan struct{})
	api := &fakeAPI{
		startFn: func(ctx context.Context, cardID string) (*genapi.StartResult, error) {
			close(entered)
			<-gate
			return completeStart(makeQuestions(5), 600)(ctx, cardID)
		},
		submitFn: okSubmit,
	}
	c := newTestController(api, newFakeClock())
	defer c.Close()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := c.StartFreshAttempt(context.Background(), "card-1"); err != nil {
			t.Errorf("first start: %v", err)
		}
	}()

	<-entered
	// The admission flag is set before the remote call goes out, so the
	// second start is rejected even though the first has not returned yet.
	if err := c.StartFreshAttempt(context.Background(), "card-1"); !errors.Is(err, ErrStartInFlight) {
		t.Errorf("concurrent start err = %v, want ErrStartInFlight", err)
	}
	close(gate)
	wg.Wait()

	if starts, _, _, _ := api.counts(); starts != 1 {
		t.Errorf("remote start calls = %d, want exactly 1", starts)
	}
}

func TestStartFailure(t *testing.T) {
	api := &fakeAPI{
		startFn: func(context.Context, string) (*genapi.StartResult, error) {
			return nil, errors.New("generator unavailable")
		},
		submitFn: okSubmit,
	}
	c := newTestController(api, newFakeClock())
	defer c.Close()

	err := c.StartFreshAttempt(context.Background(), "card-1")
	if !errors.Is(err, ErrStartFailed) {
		t.Fatalf("err = %v, want ErrStartFailed", err)
	}

	snap := c.Snapshot()
	if snap.Phase != PhaseFailed || snap.Failure != FailureStart {
		t.Errorf("phase/failure = %s/%s, want FAILED/START_FAILED", snap.Phase, snap.Failure)
	}
}

func TestStartReattempt(t *testing.T) {
	qs := makeQuestions(8)
	api := &fakeAPI{
		loadFn: func(context.Context, string) (*genapi.FixedSetResult, error) {
			return &genapi.FixedSetResult{DurationSeconds: 900, Questions: qs}, nil
		},
		submitFn: okSubmit,
	}
	c := newTestController(api, newFakeClock())
	defer c.Close()

	if err := c.StartReattempt(context.Background(), "sess-42"); err != nil {
		t.Fatalf("StartReattempt: %v", err)
	}

	snap := c.Snapshot()
	if snap.Phase != PhaseInstructions || !snap.IsReattempt {
		t.Errorf("phase/reattempt = %s/%v, want INSTRUCTIONS/true", snap.Phase, snap.IsReattempt)
	}
	if snap.SessionID != "sess-42" || snap.QuestionCount != 8 {
		t.Errorf("session/count = %q/%d, want sess-42/8", snap.SessionID, snap.QuestionCount)
	}
	if _, _, loads, _ := api.counts(); loads != 1 {
		t.Errorf("load calls = %d, want 1", loads)
	}
}

func TestBeginRequiresQuestions(t *testing.T) {
	api := &fakeAPI{
		startFn: func(context.Context, string) (*genapi.StartResult, error) {
			return &genapi.StartResult{GenerationHandle: "h", DurationSeconds: 600}, nil
		},
		pollFn: func(context.Context, string) (*genapi.StatusResult, error) {
			return &genapi.StatusResult{}, nil
		},
		submitFn: okSubmit,
	}
	c := newTestController(api, newFakeClock())
	defer c.Close()

	if err := c.StartFreshAttempt(context.Background(), "card-1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := c.Begin(); !errors.Is(err, ErrNotStartable) {
		t.Errorf("Begin with zero questions err = %v, want ErrNotStartable", err)
	}
}

func TestBeginOutsideInstructions(t *testing.T) {
	api := &fakeAPI{startFn: completeStart(makeQuestions(3), 600), submitFn: okSubmit}
	c := newTestController(api, newFakeClock())
	defer c.Close()

	if err := c.Begin(); !errors.Is(err, ErrInvalidPhase) {
		t.Errorf("Begin while idle err = %v, want ErrInvalidPhase", err)
	}
}

func TestApplyAnswerRules(t *testing.T) {
	qs := makeQuestions(3)
	api := &fakeAPI{startFn: completeStart(qs, 600), submitFn: okSubmit}
	clk := newFakeClock()
	c := newTestController(api, clk)
	defer c.Close()

	if err := c.StartFreshAttempt(context.Background(), "card-1"); err != nil {
		t.Fatalf("start: %v", err)
	}

	// Answers are rejected while reading instructions.
	if err := c.ApplyAnswer(qs[0].ID, 0); !errors.Is(err, ErrInvalidPhase) {
		t.Errorf("answer before begin err = %v, want ErrInvalidPhase", err)
	}

	if err := c.Begin(); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	clk.awaitTicker(t) // countdown ticker; never driven in this test

	if err := c.ApplyAnswer(qs[0].ID, 4); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("out-of-range index err = %v, want ErrInvalidArgument", err)
	}
	if err := c.ApplyAnswer(uuid.New(), 1); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("unknown question err = %v, want ErrInvalidArgument", err)
	}

	// Last write wins.
	if err := c.ApplyAnswer(qs[0].ID, 1); err != nil {
		t.Fatalf("answer: %v", err)
	}
	if err := c.ApplyAnswer(qs[0].ID, 3); err != nil {
		t.Fatalf("re-answer: %v", err)
	}

	snap := c.Snapshot()
	if got := snap.Answers[qs[0].ID.String()]; got != 3 {
		t.Errorf("stored option = %d, want 3 (last write)", got)
	}
	if snap.AnsweredCount != 1 || snap.UnansweredCount != 2 {
		t.Errorf("answered/unanswered = %d/%d, want 1/2", snap.AnsweredCount, snap.UnansweredCount)
	}
}

func TestToggleFlag(t *testing.T) {
	qs := makeQuestions(2)
	api := &fakeAPI{startFn: completeStart(qs, 600), submitFn: okSubmit}
	c := newTestController(api, newFakeClock())
	defer c.Close()

	if err := c.StartFreshAttempt(context.Background(), "card-1"); err != nil {
		t.Fatalf("start: %v", err)
	}

	// Flagging is allowed on the instructions screen already.
	flagged, err := c.ToggleFlag(qs[1].ID)
	if err != nil || !flagged {
		t.Fatalf("first toggle = %v/%v, want true/nil", flagged, err)
	}
	flagged, err = c.ToggleFlag(qs[1].ID)
	if err != nil || flagged {
		t.Fatalf("second toggle = %v/%v, want false/nil", flagged, err)
	}

	if _, err := c.ToggleFlag(uuid.New()); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("unknown question err = %v, want ErrInvalidArgument", err)
	}
}

func TestCountdownAndAutoSubmit(t *testing.T) {
	qs := makeQuestions(2)
	api := &fakeAPI{startFn: completeStart(qs, 2), submitFn: okSubmit}
	clk := newFakeClock()
	c := newTestController(api, clk)
	defer c.Close()

	if err := c.StartFreshAttempt(context.Background(), "card-1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := c.Begin(); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	tk := clk.awaitTicker(t)

	tk.tick()
	ev := awaitEvent(t, c.Events(), EventTimer)
	if ev.RemainingSeconds != 1 {
		t.Errorf("remaining after first tick = %d, want 1", ev.RemainingSeconds)
	}

	// The zero tick fires auto-submission exactly once.
	tk.tick()
	awaitEvent(t, c.Events(), EventCompleted)

	snap := c.Snapshot()
	if snap.Phase != PhaseCompleted {
		t.Fatalf("phase = %s, want COMPLETED", snap.Phase)
	}
	if snap.RemainingSeconds != 0 {
		t.Errorf("remaining = %d, want 0", snap.RemainingSeconds)
	}
	if snap.Result == nil || snap.Result.Score != 8 {
		t.Errorf("result = %+v, want score 8", snap.Result)
	}
	if _, _, _, submits := api.counts(); submits != 1 {
		t.Errorf("submit calls = %d, want exactly 1", submits)
	}

	// Terminal phase: further answers are rejected.
	if err := c.ApplyAnswer(qs[0].ID, 0); !errors.Is(err, ErrInvalidPhase) {
		t.Errorf("answer after completion err = %v, want ErrInvalidPhase", err)
	}
}

func TestMergeIsIdempotent(t *testing.T) {
	first := makeQuestions(10)
	api := &fakeAPI{startFn: completeStart(first, 600), submitFn: okSubmit}
	c := newTestController(api, newFakeClock())
	defer c.Close()

	if err := c.StartFreshAttempt(context.Background(), "card-1"); err != nil {
		t.Fatalf("start: %v", err)
	}

	// Re-delivering an already merged snapshot adds nothing.
	if added := c.MergeGeneratedQuestions(first); added != 0 {
		t.Errorf("re-merge added %d, want 0", added)
	}

	// A superset snapshot only adds the unseen tail, preserving order.
	more := append(append([]model.Question{}, first...), makeQuestions(40)...)
	if added := c.MergeGeneratedQuestions(more); added != 40 {
		t.Errorf("superset merge added %d, want 40", added)
	}

	snap := c.Snapshot()
	if snap.QuestionCount != 50 {
		t.Errorf("question count = %d, want 50", snap.QuestionCount)
	}
	if snap.Phase != PhaseInstructions {
		t.Errorf("phase = %s, merging must not change the phase", snap.Phase)
	}
	for i, q := range first {
		if snap.Questions[i].ID != q.ID {
			t.Fatalf("question %d reordered by merge", i)
		}
	}
}

func TestMergeDuringActiveKeepsPhase(t *testing.T) {
	api := &fakeAPI{startFn: completeStart(makeQuestions(10), 600), submitFn: okSubmit}
	clk := newFakeClock()
	c := newTestController(api, clk)
	defer c.Close()

	if err := c.StartFreshAttempt(context.Background(), "card-1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := c.Begin(); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	clk.awaitTicker(t)

	if added := c.MergeGeneratedQuestions(makeQuestions(40)); added != 40 {
		t.Errorf("merge added %d, want 40", added)
	}
	snap := c.Snapshot()
	if snap.Phase != PhaseActive || snap.QuestionCount != 50 {
		t.Errorf("phase/count = %s/%d, want ACTIVE/50", snap.Phase, snap.QuestionCount)
	}
}

func TestGenerationPartialUsable(t *testing.T) {
	api := &fakeAPI{startFn: completeStart(makeQuestions(23), 600), submitFn: okSubmit}
	c := newTestController(api, newFakeClock())
	defer c.Close()

	if err := c.StartFreshAttempt(context.Background(), "card-1"); err != nil {
		t.Fatalf("start: %v", err)
	}

	c.GenerationPartialUsable(model.GenerationProgress{
		GeneratedCount: 23,
		TotalNeeded:    50,
		HasError:       true,
		CanUsePartial:  true,
		ErrorMessage:   "generator budget exhausted",
	})

	snap := c.Snapshot()
	if snap.Phase != PhaseInstructions {
		t.Errorf("phase = %s, a partial set must not fail the session", snap.Phase)
	}
	if snap.Warning != "generator budget exhausted" {
		t.Errorf("warning = %q, want the generator's message", snap.Warning)
	}
	if !snap.CanStart {
		t.Error("session with a partial set must remain startable")
	}
}

func TestGenerationFatalWhileActive(t *testing.T) {
	api := &fakeAPI{startFn: completeStart(makeQuestions(5), 600), submitFn: okSubmit}
	clk := newFakeClock()
	c := newTestController(api, clk)
	defer c.Close()

	if err := c.StartFreshAttempt(context.Background(), "card-1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := c.Begin(); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	clk.awaitTicker(t)

	c.GenerationFailed("generation backend crashed")

	snap := c.Snapshot()
	if snap.Phase != PhaseFailed || snap.Failure != FailureGeneration {
		t.Errorf("phase/failure = %s/%s, want FAILED/GENERATION_FATAL", snap.Phase, snap.Failure)
	}
}

func TestGenerationFatalIgnoredAfterCompletion(t *testing.T) {
	api := &fakeAPI{startFn: completeStart(makeQuestions(5), 600), submitFn: okSubmit}
	clk := newFakeClock()
	c := newTestController(api, clk)
	defer c.Close()

	if err := c.StartFreshAttempt(context.Background(), "card-1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := c.Begin(); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	clk.awaitTicker(t)
	if err := c.RequestSubmit(context.Background()); err != nil {
		t.Fatalf("submit: %v", err)
	}

	// A stale background failure must not knock over a finished session.
	c.GenerationFailed("late failure")

	snap := c.Snapshot()
	if snap.Phase != PhaseCompleted || snap.Failure != FailureNone {
		t.Errorf("phase/failure = %s/%s, want COMPLETED untouched", snap.Phase, snap.Failure)
	}
}

func TestSubmitIdempotentWhileSubmitting(t *testing.T) {
	gate := make(chan struct{})
	entered := make(chan struct{})
	api := &fakeAPI{startFn: completeStart(makeQuestions(2), 600)}
	api.submitFn = func(context.Context, string, []model.AnswerSubmission, int) (*model.SubmissionResult, error) {
		close(entered)
		<-gate
		return &model.SubmissionResult{Score: 5}, nil
	}
	clk := newFakeClock()
	c := newTestController(api, clk)
	defer c.Close()

	if err := c.StartFreshAttempt(context.Background(), "card-1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := c.Begin(); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	clk.awaitTicker(t)

	done := make(chan error, 1)
	go func() { done <- c.RequestSubmit(context.Background()) }()

	<-entered
	// A second trigger while the submission is in flight is a silent no-op:
	// the manual button and the timer expiry cannot double-submit.
	if err := c.RequestSubmit(context.Background()); err != nil {
		t.Errorf("concurrent submit err = %v, want nil no-op", err)
	}
	close(gate)
	if err := <-done; err != nil {
		t.Fatalf("submit: %v", err)
	}

	if _, _, _, submits := api.counts(); submits != 1 {
		t.Errorf("remote submit calls = %d, want exactly 1", submits)
	}
}

func TestSubmissionFailureIsRetriable(t *testing.T) {
	qs := makeQuestions(3)
	api := &fakeAPI{startFn: completeStart(qs, 600)}
	api.submitFn = func(context.Context, string, []model.AnswerSubmission, int) (*model.SubmissionResult, error) {
		return nil, errors.New("grading service timeout")
	}
	clk := newFakeClock()
	c := newTestController(api, clk)
	defer c.Close()

	if err := c.StartFreshAttempt(context.Background(), "card-1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := c.Begin(); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	clk.awaitTicker(t)

	if err := c.ApplyAnswer(qs[0].ID, 2); err != nil {
		t.Fatalf("answer: %v", err)
	}
	if err := c.ApplyAnswer(qs[1].ID, 0); err != nil {
		t.Fatalf("answer: %v", err)
	}

	err := c.RequestSubmit(context.Background())
	if !errors.Is(err, ErrSubmissionFailed) {
		t.Fatalf("submit err = %v, want ErrSubmissionFailed", err)
	}

	snap := c.Snapshot()
	if snap.Phase != PhaseFailed || snap.Failure != FailureSubmission {
		t.Fatalf("phase/failure = %s/%s, want FAILED/SUBMISSION_FAILED", snap.Phase, snap.Failure)
	}
	if snap.AnsweredCount != 2 {
		t.Errorf("answers lost by a failed submission: answered = %d, want 2", snap.AnsweredCount)
	}

	// The retry succeeds with the identical answer set.
	api.setSubmitFn(okSubmit)
	if err := c.RequestSubmit(context.Background()); err != nil {
		t.Fatalf("retry submit: %v", err)
	}
	snap = c.Snapshot()
	if snap.Phase != PhaseCompleted {
		t.Fatalf("phase after retry = %s, want COMPLETED", snap.Phase)
	}

	api.mu.Lock()
	payload := api.lastSubmitted
	api.mu.Unlock()
	if len(payload) != 3 {
		t.Fatalf("payload entries = %d, want one per question", len(payload))
	}
	if payload[0].Selected != "C" || payload[1].Selected != "A" || payload[2].Selected != model.AnswerUnanswered {
		t.Errorf("payload = %v, want C/A/UNANSWERED", payload)
	}
}

func TestOnCompletedHook(t *testing.T) {
	api := &fakeAPI{startFn: completeStart(makeQuestions(2), 600), submitFn: okSubmit}
	clk := newFakeClock()
	c := newTestController(api, clk)
	defer c.Close()

	var (
		hookCalls int
		hookSnap  Snapshot
		hookRes   model.SubmissionResult
	)
	c.OnCompleted = func(snap Snapshot, res model.SubmissionResult) {
		hookCalls++
		hookSnap = snap
		hookRes = res
	}

	if err := c.StartFreshAttempt(context.Background(), "card-1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := c.Begin(); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	clk.awaitTicker(t)
	if err := c.RequestSubmit(context.Background()); err != nil {
		t.Fatalf("submit: %v", err)
	}

	if hookCalls != 1 {
		t.Fatalf("OnCompleted calls = %d, want 1", hookCalls)
	}
	if hookSnap.Phase != PhaseCompleted || hookRes.Score != 8 {
		t.Errorf("hook got phase %s / score %v, want COMPLETED / 8", hookSnap.Phase, hookRes.Score)
	}
}

func TestSubmitOutsideActive(t *testing.T) {
	api := &fakeAPI{startFn: completeStart(makeQuestions(2), 600), submitFn: okSubmit}
	c := newTestController(api, newFakeClock())
	defer c.Close()

	if err := c.RequestSubmit(context.Background()); !errors.Is(err, ErrInvalidPhase) {
		t.Errorf("submit while idle err = %v, want ErrInvalidPhase", err)
	}

	if err := c.StartFreshAttempt(context.Background(), "card-1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := c.RequestSubmit(context.Background()); !errors.Is(err, ErrInvalidPhase) {
		t.Errorf("submit from instructions err = %v, want ErrInvalidPhase", err)
	}
}

func TestPollerFeedsController(t *testing.T) {
	first := makeQuestions(10)
	rest := makeQuestions(40)
	api := &fakeAPI{
		startFn: func(context.Context, string) (*genapi.StartResult, error) {
			return &genapi.StartResult{
				GenerationHandle: "h-7",
				DurationSeconds:  600,
				Questions:        first,
				Progress:         model.GenerationProgress{GeneratedCount: 10, TotalNeeded: 50},
			}, nil
		},
		pollFn: func(context.Context, string) (*genapi.StatusResult, error) {
			return &genapi.StatusResult{
				Progress:  model.GenerationProgress{GeneratedCount: 50, TotalNeeded: 50, IsComplete: true},
				Questions: append(append([]model.Question{}, first...), rest...),
			}, nil
		},
		submitFn: okSubmit,
	}
	clk := newFakeClock()
	c := newTestController(api, clk)
	defer c.Close()

	if err := c.StartFreshAttempt(context.Background(), "card-1"); err != nil {
		t.Fatalf("start: %v", err)
	}

	tk := clk.awaitTicker(t) // the poller's ticker
	tk.tick()
	awaitEvent(t, c.Events(), EventProgress)

	snap := c.Snapshot()
	if snap.QuestionCount != 50 {
		t.Errorf("question count = %d, want 50 after the poll merge", snap.QuestionCount)
	}
	if snap.Phase != PhaseInstructions {
		t.Errorf("phase = %s, completion of generation must not move the user", snap.Phase)
	}
}

func TestCloseDuringStartSpawnsNoPoller(t *testing.T) {
	gate := make(chan struct{})
	entered := make(chan struct{})
	api := &fakeAPI{
		startFn: func(context.Context, string) (*genapi.StartResult, error) {
			close(entered)
			<-gate
			return &genapi.StartResult{
				GenerationHandle: "h-9",
				DurationSeconds:  600,
				Questions:        makeQuestions(10),
				Progress:         model.GenerationProgress{GeneratedCount: 10, TotalNeeded: 50},
			}, nil
		},
	}
	clk := newFakeClock()
	c := newTestController(api, clk)

	done := make(chan error, 1)
	go func() { done <- c.StartFreshAttempt(context.Background(), "card-1") }()

	// Dispose the controller while the start request is still in flight.
	<-entered
	c.Close()
	close(gate)
	if err := <-done; err != nil {
		t.Fatalf("start: %v", err)
	}

	select {
	case <-clk.created:
		t.Fatal("a poller ticker was created after Close")
	case <-time.After(50 * time.Millisecond):
	}
	if _, polls, _, _ := api.counts(); polls != 0 {
		t.Errorf("poll calls = %d, want 0 on a closed controller", polls)
	}
	if err := c.Begin(); !errors.Is(err, ErrInvalidPhase) {
		t.Errorf("Begin on a closed controller err = %v, want ErrInvalidPhase", err)
	}
}

func TestPollerStoppedAfterGenerationCompletes(t *testing.T) {
	first := makeQuestions(10)
	pollCtx := make(chan context.Context, 1)
	api := &fakeAPI{
		startFn: func(context.Context, string) (*genapi.StartResult, error) {
			return &genapi.StartResult{
				GenerationHandle: "h-7",
				DurationSeconds:  600,
				Questions:        first,
				Progress:         model.GenerationProgress{GeneratedCount: 10, TotalNeeded: 50},
			}, nil
		},
		pollFn: func(ctx context.Context, _ string) (*genapi.StatusResult, error) {
			pollCtx <- ctx
			return &genapi.StatusResult{
				Progress:  model.GenerationProgress{GeneratedCount: 50, TotalNeeded: 50, IsComplete: true},
				Questions: append(append([]model.Question{}, first...), makeQuestions(40)...),
			}, nil
		},
	}
	clk := newFakeClock()
	c := newTestController(api, clk)
	defer c.Close()

	if err := c.StartFreshAttempt(context.Background(), "card-1"); err != nil {
		t.Fatalf("start: %v", err)
	}

	tk := clk.awaitTicker(t)
	tk.tick()
	awaitEvent(t, c.Events(), EventProgress)

	// Completion must release the poller's context, not just drop it.
	if ctx := <-pollCtx; !errors.Is(ctx.Err(), context.Canceled) {
		t.Errorf("poll context err = %v, want Canceled after completion", ctx.Err())
	}
}
