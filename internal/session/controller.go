package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prepforge/session-backend/internal/clock"
	"github.com/prepforge/session-backend/internal/genapi"
	"github.com/prepforge/session-backend/internal/model"
	"github.com/rs/zerolog"
)

// Config tunes one controller.
type Config struct {
	PollInterval    time.Duration
	MaxPollFailures int
	SubmitTimeout   time.Duration
	DefaultDuration time.Duration
}

// Controller drives one test attempt from start through submission. It owns
// the TestSession and AnswerStore; a single mutex serializes every mutation
// (timer ticks, poll results, user actions), so the countdown goroutine and
// the poller goroutine can never race user calls.
//
// One controller per attempt. A controller is never restarted; retrying a
// failed start means building a new one.
type Controller struct {
	api   genapi.Service
	clk   clock.Clock
	log   zerolog.Logger
	cfg   Config
	coord *SubmissionCoordinator

	// OnCompleted, if set, is invoked after a successful submission with the
	// final snapshot. Used to queue attempt-history persistence. Must not
	// call back into the controller.
	OnCompleted func(snap Snapshot, res model.SubmissionResult)

	mu         sync.Mutex
	closed     bool
	sess       *TestSession
	store      *AnswerStore
	identifier string // card id / session ref recorded before the start call goes out
	handle     string
	warning    string
	failure    FailureKind
	result     *model.SubmissionResult

	pollCancel  context.CancelFunc
	timerCancel context.CancelFunc

	events chan Event
}

// NewController creates an idle controller.
func NewController(api genapi.Service, clk clock.Clock, log zerolog.Logger, cfg Config) *Controller {
	if cfg.DefaultDuration <= 0 {
		cfg.DefaultDuration = time.Hour
	}
	return &Controller{
		api:    api,
		clk:    clk,
		log:    log.With().Str("component", "session_controller").Logger(),
		cfg:    cfg,
		coord:  NewSubmissionCoordinator(api, cfg.SubmitTimeout),
		sess:   newTestSession(),
		store:  NewAnswerStore(),
		events: make(chan Event, 64),
	}
}

// Events exposes the engine event stream. Slow consumers lose events; the
// snapshot endpoint always has the authoritative state.
func (c *Controller) Events() <-chan Event {
	return c.events
}

// Identifier returns the card id or session ref this controller was started
// with, or "" while idle. Set synchronously before the remote start call, so
// duplicate-start checks cannot race the request.
func (c *Controller) Identifier() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.identifier
}

// Phase returns the current phase.
func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess.Phase
}

// ─── Start paths ────────────────────────────────────────────────────

// StartFreshAttempt triggers chunked generation for a test card. The
// admission flag is recorded before the remote call is issued, so a second
// start on this controller is rejected even while the first is in flight.
func (c *Controller) StartFreshAttempt(ctx context.Context, cardID string) error {
	if err := c.admit(cardID, false); err != nil {
		return err
	}

	res, err := c.api.StartGeneration(ctx, cardID)
	if err != nil {
		c.failStart(err)
		return fmt.Errorf("%w: %v", ErrStartFailed, err)
	}

	c.mu.Lock()
	c.handle = res.GenerationHandle
	c.sess.SessionID = res.GenerationHandle
	c.sess.DurationSeconds = c.durationSeconds(res.DurationSeconds)
	c.sess.RemainingSeconds = c.sess.DurationSeconds
	c.sess.appendNew(res.Questions)
	c.sess.Phase = PhaseInstructions
	count := len(c.sess.Questions)
	complete := res.Progress.IsComplete
	c.mu.Unlock()

	c.log.Info().
		Str("card_id", cardID).
		Str("handle", res.GenerationHandle).
		Int("initial_questions", count).
		Bool("generation_complete", complete).
		Msg("Fresh attempt started")
	c.publish(Event{Type: EventPhase, Phase: PhaseInstructions, QuestionCount: count})

	if !complete {
		c.startPoller()
	}
	return nil
}

// StartReattempt loads the fixed question set of a previous session in one
// call. No generation, no poller.
func (c *Controller) StartReattempt(ctx context.Context, sessionRef string) error {
	if err := c.admit(sessionRef, true); err != nil {
		return err
	}

	res, err := c.api.LoadFixedQuestions(ctx, sessionRef)
	if err != nil {
		c.failStart(err)
		return fmt.Errorf("%w: %v", ErrStartFailed, err)
	}

	c.mu.Lock()
	c.sess.SessionID = sessionRef
	c.sess.DurationSeconds = c.durationSeconds(res.DurationSeconds)
	c.sess.RemainingSeconds = c.sess.DurationSeconds
	c.sess.appendNew(res.Questions)
	c.sess.Phase = PhaseInstructions
	count := len(c.sess.Questions)
	c.mu.Unlock()

	c.log.Info().
		Str("session_ref", sessionRef).
		Int("questions", count).
		Msg("Re-attempt started")
	c.publish(Event{Type: EventPhase, Phase: PhaseInstructions, QuestionCount: count})
	return nil
}

// admit records the start synchronously. Exactly one start per controller.
func (c *Controller) admit(identifier string, reattempt bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess.Phase != PhaseIdle {
		return ErrStartInFlight
	}
	c.identifier = identifier
	c.sess.IsReattempt = reattempt
	c.sess.Phase = PhaseGenerating
	return nil
}

func (c *Controller) failStart(cause error) {
	c.mu.Lock()
	c.sess.Phase = PhaseFailed
	c.failure = FailureStart
	c.mu.Unlock()
	c.log.Error().Err(cause).Msg("Initial start request failed")
	c.publish(Event{Type: EventFailed, Phase: PhaseFailed, Failure: FailureStart, Error: cause.Error()})
}

func (c *Controller) durationSeconds(remote int) int {
	if remote > 0 {
		return remote
	}
	return int(c.cfg.DefaultDuration / time.Second)
}

// ─── Instructions → Active ──────────────────────────────────────────

// Begin leaves the instructions screen and starts the countdown. Gated on at
// least the initial chunk being present; generation may still be running.
func (c *Controller) Begin() error {
	c.mu.Lock()
	if c.closed || c.sess.Phase != PhaseInstructions {
		c.mu.Unlock()
		return ErrInvalidPhase
	}
	if len(c.sess.Questions) == 0 {
		c.mu.Unlock()
		return ErrNotStartable
	}
	c.sess.Phase = PhaseActive
	ctx, cancel := context.WithCancel(context.Background())
	c.timerCancel = cancel
	remaining := c.sess.RemainingSeconds
	c.mu.Unlock()

	c.log.Info().Int("duration_seconds", remaining).Msg("Test activated")
	c.publish(Event{Type: EventPhase, Phase: PhaseActive, RemainingSeconds: remaining})

	go c.runTimer(ctx)
	return nil
}

// runTimer decrements the countdown once per second while the session is
// Active and triggers auto-submission exactly once at zero.
func (c *Controller) runTimer(ctx context.Context) {
	t := c.clk.NewTicker(time.Second)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C():
			expired, remaining, active := c.tick()
			if !active {
				return
			}
			c.publish(Event{Type: EventTimer, RemainingSeconds: remaining})
			if expired {
				c.log.Info().Msg("Time expired, auto-submitting")
				if err := c.RequestSubmit(context.Background()); err != nil {
					c.log.Error().Err(err).Msg("Auto-submission failed")
				}
				return
			}
		}
	}
}

// tick applies one countdown decrement, floored at zero. A tick that lands
// after the session left Active is a no-op.
func (c *Controller) tick() (expired bool, remaining int, active bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess.Phase != PhaseActive {
		return false, 0, false
	}
	if c.sess.RemainingSeconds > 0 {
		c.sess.RemainingSeconds--
	}
	return c.sess.RemainingSeconds == 0, c.sess.RemainingSeconds, true
}

// ─── User actions ───────────────────────────────────────────────────

// ApplyAnswer records the selected option for a question. Active phase only;
// overwrites any prior selection.
func (c *Controller) ApplyAnswer(questionID uuid.UUID, optionIndex int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess.Phase != PhaseActive {
		return ErrInvalidPhase
	}
	if optionIndex < 0 || optionIndex >= model.OptionCount {
		return fmt.Errorf("%w: option index %d out of range", ErrInvalidArgument, optionIndex)
	}
	if !c.sess.has(questionID) {
		return fmt.Errorf("%w: unknown question %s", ErrInvalidArgument, questionID)
	}
	c.store.Set(questionID, optionIndex)
	return nil
}

// ToggleFlag flips the review flag on a question. Allowed while reading
// instructions or taking the test.
func (c *Controller) ToggleFlag(questionID uuid.UUID) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess.Phase != PhaseInstructions && c.sess.Phase != PhaseActive {
		return false, ErrInvalidPhase
	}
	if !c.sess.has(questionID) {
		return false, fmt.Errorf("%w: unknown question %s", ErrInvalidArgument, questionID)
	}
	return c.store.ToggleFlag(questionID), nil
}

// ─── Poller sink ────────────────────────────────────────────────────

func (c *Controller) startPoller() {
	c.mu.Lock()
	// A Close that landed while the start request was in flight wins: no
	// poller may outlive a disposed controller.
	if c.closed {
		c.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.pollCancel = cancel
	handle := c.handle
	c.mu.Unlock()

	p := NewPoller(c.api, c.clk, c.log, c.cfg.PollInterval, c.cfg.MaxPollFailures)
	go p.Run(ctx, handle, c)
}

// MergeGeneratedQuestions appends unseen questions in arrival order. Safe in
// any phase except the terminal ones.
func (c *Controller) MergeGeneratedQuestions(qs []model.Question) int {
	c.mu.Lock()
	if c.sess.Phase.Terminal() {
		c.mu.Unlock()
		return 0
	}
	added := c.sess.appendNew(qs)
	count := len(c.sess.Questions)
	c.mu.Unlock()

	if added > 0 {
		c.publish(Event{Type: EventQuestions, QuestionCount: count})
	}
	return added
}

// GenerationComplete records that the full set arrived. The user's phase is
// unaffected; they may still be reading instructions.
func (c *Controller) GenerationComplete(p model.GenerationProgress) {
	c.mu.Lock()
	c.stopPollerLocked()
	count := len(c.sess.Questions)
	c.mu.Unlock()

	c.log.Info().Int("questions", count).Msg("Generation complete")
	c.publish(Event{Type: EventProgress, QuestionCount: count, Progress: &p})
}

// GenerationPartialUsable records a non-fatal generation error: the session
// proceeds with whatever was generated, and the UI shows a warning banner.
func (c *Controller) GenerationPartialUsable(p model.GenerationProgress) {
	msg := p.ErrorMessage
	if msg == "" {
		msg = "question generation stopped early; the test continues with the generated questions"
	}

	c.mu.Lock()
	c.stopPollerLocked()
	c.warning = msg
	count := len(c.sess.Questions)
	c.mu.Unlock()

	c.log.Warn().Int("questions", count).Str("reason", msg).Msg("Generation partial")
	c.publish(Event{Type: EventPartial, QuestionCount: count, Progress: &p, Warning: msg})
}

// GenerationFailed handles a fatal generation error. Ignored once the
// session is submitting or done — a submission already in flight always
// outranks a background error.
func (c *Controller) GenerationFailed(message string) {
	c.mu.Lock()
	if c.sess.Phase == PhaseSubmitting || c.sess.Phase.Terminal() {
		c.mu.Unlock()
		return
	}
	c.sess.Phase = PhaseFailed
	c.failure = FailureGeneration
	c.stopPollerLocked()
	c.stopTimerLocked()
	c.mu.Unlock()

	c.log.Error().Str("reason", message).Msg("Generation fatal")
	c.publish(Event{Type: EventFailed, Phase: PhaseFailed, Failure: FailureGeneration, Error: message})
}

// ─── Submission ─────────────────────────────────────────────────────

// RequestSubmit drives Active → Submitting → Completed/Failed. Idempotent: a
// trigger while already Submitting is a no-op, so the manual button and the
// timer expiry cannot double-submit. May be re-invoked after a submission
// failure; answers are untouched by failed attempts.
func (c *Controller) RequestSubmit(ctx context.Context) error {
	c.mu.Lock()
	switch {
	case c.sess.Phase == PhaseSubmitting:
		c.mu.Unlock()
		return nil
	case c.sess.Phase == PhaseActive:
	case c.sess.Phase == PhaseFailed && c.failure == FailureSubmission:
		// Sanctioned retry path.
	default:
		c.mu.Unlock()
		return ErrInvalidPhase
	}

	c.sess.Phase = PhaseSubmitting
	c.failure = FailureNone
	c.stopTimerLocked()
	c.stopPollerLocked()

	payload := BuildPayload(c.sess.Questions, c.store)
	elapsed := c.sess.DurationSeconds - c.sess.RemainingSeconds
	ref := c.sess.SessionID
	c.mu.Unlock()

	c.publish(Event{Type: EventPhase, Phase: PhaseSubmitting})

	res, err := c.coord.Submit(ctx, ref, payload, elapsed)
	if err != nil {
		c.mu.Lock()
		c.sess.Phase = PhaseFailed
		c.failure = FailureSubmission
		c.mu.Unlock()
		c.log.Error().Err(err).Msg("Submission failed, retriable")
		c.publish(Event{Type: EventFailed, Phase: PhaseFailed, Failure: FailureSubmission, Error: err.Error()})
		return err
	}

	c.mu.Lock()
	c.result = res
	c.sess.Phase = PhaseCompleted
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.log.Info().
		Float64("score", res.Score).
		Float64("percentage", res.Percentage).
		Int("answered", snap.AnsweredCount).
		Int("questions", snap.QuestionCount).
		Msg("Attempt completed")
	c.publish(Event{Type: EventCompleted, Phase: PhaseCompleted, Result: res})

	if c.OnCompleted != nil {
		c.OnCompleted(snap, *res)
	}
	return nil
}

// ─── Lifecycle ──────────────────────────────────────────────────────

// Close cancels the poller and timer. Called when the owning view is torn
// down or the controller is replaced; effective before their next tick. A
// closed controller spawns no new goroutines, so a Close racing an in-flight
// start still wins.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	c.stopTimerLocked()
	c.stopPollerLocked()
	c.mu.Unlock()
}

func (c *Controller) stopTimerLocked() {
	if c.timerCancel != nil {
		c.timerCancel()
		c.timerCancel = nil
	}
}

func (c *Controller) stopPollerLocked() {
	if c.pollCancel != nil {
		c.pollCancel()
		c.pollCancel = nil
	}
}

// ─── Read side ──────────────────────────────────────────────────────

// Snapshot returns the full UI-facing view of the session.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	views := make([]model.QuestionView, 0, len(c.sess.Questions))
	for _, q := range c.sess.Questions {
		views = append(views, q.View())
	}

	total := len(c.sess.Questions)
	snap := Snapshot{
		SessionID:        c.sess.SessionID,
		Phase:            c.sess.Phase,
		IsReattempt:      c.sess.IsReattempt,
		CanStart:         c.sess.Phase == PhaseInstructions && total > 0,
		Questions:        views,
		QuestionCount:    total,
		Answers:          c.store.Answers(),
		Flagged:          c.store.FlaggedIDs(),
		AnsweredCount:    c.store.AnsweredCount(),
		UnansweredCount:  c.store.UnansweredCount(total),
		DurationSeconds:  c.sess.DurationSeconds,
		RemainingSeconds: c.sess.RemainingSeconds,
		RemainingDisplay: FormatRemaining(c.sess.RemainingSeconds),
		Warning:          c.warning,
		Failure:          c.failure,
	}
	if c.sess.Phase == PhaseCompleted {
		snap.Result = c.result
	}
	return snap
}

// publish pushes an event without blocking; a full buffer drops the event.
func (c *Controller) publish(ev Event) {
	select {
	case c.events <- ev:
	default:
		c.log.Debug().Str("type", string(ev.Type)).Msg("Event buffer full, dropped")
	}
}
