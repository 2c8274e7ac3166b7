package service

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prepforge/session-backend/internal/clock"
	"github.com/prepforge/session-backend/internal/config"
	"github.com/prepforge/session-backend/internal/genapi"
	"github.com/prepforge/session-backend/internal/model"
	"github.com/prepforge/session-backend/internal/session"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ErrNoActiveSession is returned when a user has no live test session.
var ErrNoActiveSession = errors.New("no active test session")

// liveSession pairs a controller with the identifier it was started for.
// The identifier is recorded under the registry lock BEFORE the remote start
// call is issued, which closes the duplicate-start race window: a concurrent
// start for the same identifier finds the entry and reuses it instead of
// invoking the expensive, non-idempotent generator a second time.
type liveSession struct {
	identifier string
	reattempt  bool
	ctrl       *session.Controller
}

// SessionService keeps at most one live test controller per user and routes
// all session operations through it. It also mirrors answers/flags into
// redis (best effort, for UI state recovery) and queues completed attempts
// for history persistence.
type SessionService struct {
	api genapi.Service
	clk clock.Clock
	rdb *redis.Client
	log zerolog.Logger
	cfg session.Config

	mu   sync.Mutex
	live map[int]*liveSession
}

// NewSessionService creates a SessionService. rdb may be nil in tests; the
// redis mirror is then skipped entirely.
func NewSessionService(api genapi.Service, clk clock.Clock, rdb *redis.Client, appCfg *config.Config, log zerolog.Logger) *SessionService {
	return &SessionService{
		api: api,
		clk: clk,
		rdb: rdb,
		log: log.With().Str("component", "session_service").Logger(),
		cfg: session.Config{
			PollInterval:    appCfg.PollInterval,
			MaxPollFailures: appCfg.MaxPollFailures,
			SubmitTimeout:   appCfg.SubmitTimeout,
			DefaultDuration: appCfg.DefaultDuration,
		},
		live: make(map[int]*liveSession),
	}
}

// StartFresh starts chunked generation for a test card. A repeated start for
// the identifier already in flight reuses the live session (one generator
// invocation, no matter how often the UI retries the button). A start for a
// different identifier disposes the previous session first.
func (s *SessionService) StartFresh(ctx context.Context, userID int, cardID string) (session.Snapshot, error) {
	return s.start(ctx, userID, cardID, false)
}

// StartReattempt loads the fixed question set of a previous session.
func (s *SessionService) StartReattempt(ctx context.Context, userID int, sessionRef string) (session.Snapshot, error) {
	return s.start(ctx, userID, sessionRef, true)
}

func (s *SessionService) start(ctx context.Context, userID int, identifier string, reattempt bool) (session.Snapshot, error) {
	var replaced string

	s.mu.Lock()
	if ls, ok := s.live[userID]; ok {
		if ls.identifier == identifier && ls.reattempt == reattempt && !ls.ctrl.Phase().Terminal() {
			snap := ls.ctrl.Snapshot()
			s.mu.Unlock()
			s.log.Debug().Int("user_id", userID).Str("identifier", identifier).Msg("Reusing in-flight session")
			return snap, nil
		}
		// Different attempt requested: dispose the old session first.
		replaced = ls.ctrl.Snapshot().SessionID
		ls.ctrl.Close()
		delete(s.live, userID)
	}

	ctrl := session.NewController(s.api, s.clk, s.log, s.cfg)
	ctrl.OnCompleted = s.completionHook(userID)
	ls := &liveSession{identifier: identifier, reattempt: reattempt, ctrl: ctrl}
	s.live[userID] = ls
	s.mu.Unlock()

	if replaced != "" {
		s.dropMirrors(ctx, userID, replaced)
	}

	var err error
	if reattempt {
		err = ctrl.StartReattempt(ctx, identifier)
	} else {
		err = ctrl.StartFreshAttempt(ctx, identifier)
	}
	if err != nil {
		// A failed start is discarded so the caller can simply re-invoke.
		s.mu.Lock()
		if s.live[userID] == ls {
			delete(s.live, userID)
		}
		s.mu.Unlock()
		ctrl.Close()
		return session.Snapshot{}, err
	}

	// The registry may have moved on while the remote call was in flight
	// (Abandon, or a start for a different card). The controller is already
	// closed in that case; don't resurrect it as the user's live session.
	s.mu.Lock()
	if s.live[userID] != ls {
		s.mu.Unlock()
		ctrl.Close()
		return session.Snapshot{}, ErrNoActiveSession
	}
	s.mu.Unlock()

	snap := ctrl.Snapshot()
	s.mirrorActive(userID, snap.SessionID)
	return snap, nil
}

// Begin confirms the instructions screen and starts the countdown.
func (s *SessionService) Begin(userID int) (session.Snapshot, error) {
	ctrl, err := s.controller(userID)
	if err != nil {
		return session.Snapshot{}, err
	}
	if err := ctrl.Begin(); err != nil {
		return session.Snapshot{}, err
	}
	return ctrl.Snapshot(), nil
}

// Answer applies a selected option and mirrors it to redis.
func (s *SessionService) Answer(ctx context.Context, userID int, questionID uuid.UUID, optionIndex int) error {
	ctrl, err := s.controller(userID)
	if err != nil {
		return err
	}
	if err := ctrl.ApplyAnswer(questionID, optionIndex); err != nil {
		return err
	}

	if s.rdb != nil {
		key := config.CacheKey.UserAnswersKey(userID, ctrl.Snapshot().SessionID)
		if err := s.rdb.HSet(ctx, key, questionID.String(), strconv.Itoa(optionIndex)).Err(); err != nil {
			s.log.Warn().Err(err).Int("user_id", userID).Msg("Answer mirror write failed")
		}
	}
	return nil
}

// Flag toggles the review flag on a question and mirrors the new state.
func (s *SessionService) Flag(ctx context.Context, userID int, questionID uuid.UUID) (bool, error) {
	ctrl, err := s.controller(userID)
	if err != nil {
		return false, err
	}
	flagged, err := ctrl.ToggleFlag(questionID)
	if err != nil {
		return false, err
	}

	if s.rdb != nil {
		key := config.CacheKey.UserFlagsKey(userID, ctrl.Snapshot().SessionID)
		if flagged {
			err = s.rdb.HSet(ctx, key, questionID.String(), "1").Err()
		} else {
			err = s.rdb.HDel(ctx, key, questionID.String()).Err()
		}
		if err != nil {
			s.log.Warn().Err(err).Int("user_id", userID).Msg("Flag mirror write failed")
		}
	}
	return flagged, nil
}

// Submit triggers manual submission.
func (s *SessionService) Submit(ctx context.Context, userID int) (session.Snapshot, error) {
	ctrl, err := s.controller(userID)
	if err != nil {
		return session.Snapshot{}, err
	}
	if err := ctrl.RequestSubmit(ctx); err != nil {
		return session.Snapshot{}, err
	}
	return ctrl.Snapshot(), nil
}

// State returns the current session snapshot.
func (s *SessionService) State(userID int) (session.Snapshot, error) {
	ctrl, err := s.controller(userID)
	if err != nil {
		return session.Snapshot{}, err
	}
	return ctrl.Snapshot(), nil
}

// Events exposes the live session's event stream for the WebSocket handler.
func (s *SessionService) Events(userID int) (<-chan session.Event, error) {
	ctrl, err := s.controller(userID)
	if err != nil {
		return nil, err
	}
	return ctrl.Events(), nil
}

// Abandon disposes the live session: poller and timer are cancelled before
// their next tick, mirrors are dropped.
func (s *SessionService) Abandon(ctx context.Context, userID int) error {
	s.mu.Lock()
	ls, ok := s.live[userID]
	if ok {
		delete(s.live, userID)
	}
	s.mu.Unlock()
	if !ok {
		return ErrNoActiveSession
	}

	sessionID := ls.ctrl.Snapshot().SessionID
	ls.ctrl.Close()
	s.dropMirrors(ctx, userID, sessionID)
	s.log.Info().Int("user_id", userID).Str("session_id", sessionID).Msg("Session abandoned")
	return nil
}

func (s *SessionService) controller(userID int) (*session.Controller, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ls, ok := s.live[userID]
	if !ok {
		return nil, ErrNoActiveSession
	}
	return ls.ctrl, nil
}

// ─── Persistence side effects ───────────────────────────────────────

// attemptPayload is the queue entry the history worker consumes.
type attemptPayload struct {
	UserID         int       `json:"user_id"`
	SessionID      string    `json:"session_id"`
	Score          float64   `json:"score"`
	Percentage     float64   `json:"percentage"`
	QuestionCount  int       `json:"question_count"`
	AnsweredCount  int       `json:"answered_count"`
	ElapsedSeconds int       `json:"elapsed_seconds"`
	IsReattempt    bool      `json:"is_reattempt"`
	CompletedAt    time.Time `json:"completed_at"`
}

// completionHook queues the finished attempt for persistence and clears the
// redis mirrors. Runs on the controller's goroutine; must not call back in.
func (s *SessionService) completionHook(userID int) func(session.Snapshot, model.SubmissionResult) {
	return func(snap session.Snapshot, res model.SubmissionResult) {
		if s.rdb == nil {
			return
		}
		ctx := context.Background()

		payload, _ := json.Marshal(attemptPayload{
			UserID:         userID,
			SessionID:      snap.SessionID,
			Score:          res.Score,
			Percentage:     res.Percentage,
			QuestionCount:  snap.QuestionCount,
			AnsweredCount:  snap.AnsweredCount,
			ElapsedSeconds: snap.DurationSeconds - snap.RemainingSeconds,
			IsReattempt:    snap.IsReattempt,
			CompletedAt:    s.clk.Now(),
		})
		if err := s.rdb.RPush(ctx, config.WorkerKey.PersistAttemptsQueue, payload).Err(); err != nil {
			s.log.Error().Err(err).Int("user_id", userID).Msg("Attempt queue push failed")
		}

		s.dropMirrors(ctx, userID, snap.SessionID)
	}
}

func (s *SessionService) mirrorActive(userID int, sessionID string) {
	if s.rdb == nil {
		return
	}
	key := config.CacheKey.UserActiveTestKey(userID)
	if err := s.rdb.Set(context.Background(), key, sessionID, 0).Err(); err != nil {
		s.log.Warn().Err(err).Int("user_id", userID).Msg("Active test mirror write failed")
	}
}

func (s *SessionService) dropMirrors(ctx context.Context, userID int, sessionID string) {
	if s.rdb == nil {
		return
	}
	pipe := s.rdb.Pipeline()
	pipe.Del(ctx, config.CacheKey.UserAnswersKey(userID, sessionID))
	pipe.Del(ctx, config.CacheKey.UserFlagsKey(userID, sessionID))
	pipe.Del(ctx, config.CacheKey.UserActiveTestKey(userID))
	if _, err := pipe.Exec(ctx); err != nil {
		s.log.Warn().Err(err).Int("user_id", userID).Msg("Mirror cleanup failed")
	}
}
