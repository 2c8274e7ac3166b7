package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/prepforge/session-backend/internal/config"
	"github.com/prepforge/session-backend/internal/model"
	"github.com/prepforge/session-backend/internal/repository"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const historyPollTimeout = 1 * time.Second

// HistoryWorker consumes persist_attempts_queue and writes completed
// attempts to PostgreSQL. Persistence is decoupled from the submission path
// so a slow database can never delay result delivery to the user.
type HistoryWorker struct {
	repo *repository.AttemptRepository
	rdb  *redis.Client
	log  zerolog.Logger
}

// NewHistoryWorker creates a new HistoryWorker.
func NewHistoryWorker(repo *repository.AttemptRepository, rdb *redis.Client, log zerolog.Logger) *HistoryWorker {
	return &HistoryWorker{
		repo: repo,
		rdb:  rdb,
		log:  log.With().Str("component", "history_worker").Logger(),
	}
}

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

// Start begins the worker loop. Call in a goroutine; cancel ctx to stop.
func (w *HistoryWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopping...")
			// Drain remaining items before exit.
			w.drain(context.Background())
			w.log.Info().Msg("Worker stopped")
			return
		default:
			w.processNext(ctx)
		}
	}
}

func (w *HistoryWorker) processNext(ctx context.Context) {
	// BLPop blocks until an item is available or the poll timeout elapses.
	result, err := w.rdb.BLPop(ctx, historyPollTimeout, config.WorkerKey.PersistAttemptsQueue).Result()
	if err != nil {
		if err != redis.Nil && ctx.Err() == nil {
			w.log.Error().Err(err).Msg("BLPop error")
		}
		return
	}

	if len(result) < 2 {
		return
	}

	var p attemptPayload
	if err := json.Unmarshal([]byte(result[1]), &p); err != nil {
		w.log.Error().Err(err).Msg("Unmarshal error")
		return
	}

	if err := w.persist(ctx, &p); err != nil {
		w.log.Error().Err(err).
			Int("user_id", p.UserID).
			Str("session_id", p.SessionID).
			Msg("Persist error, retrying in 5s")
		// Push back to queue for retry.
		w.rdb.RPush(ctx, config.WorkerKey.PersistAttemptsQueue, result[1])
		time.Sleep(5 * time.Second)
	}
}

func (w *HistoryWorker) persist(ctx context.Context, p *attemptPayload) error {
	return w.repo.Insert(ctx, &model.Attempt{
		UserID:         p.UserID,
		SessionID:      p.SessionID,
		Score:          p.Score,
		Percentage:     p.Percentage,
		QuestionCount:  p.QuestionCount,
		AnsweredCount:  p.AnsweredCount,
		ElapsedSeconds: p.ElapsedSeconds,
		IsReattempt:    p.IsReattempt,
		CompletedAt:    p.CompletedAt,
	})
}

// drain processes all remaining items in the queue before shutdown.
func (w *HistoryWorker) drain(ctx context.Context) {
	drained := 0
	for {
		result, err := w.rdb.LPop(ctx, config.WorkerKey.PersistAttemptsQueue).Result()
		if err != nil {
			break
		}

		var p attemptPayload
		if err := json.Unmarshal([]byte(result), &p); err != nil {
			w.log.Error().Err(err).Msg("Drain unmarshal error")
			continue
		}

		if err := w.persist(ctx, &p); err != nil {
			w.log.Error().Err(err).Msg("Drain persist error")
			w.rdb.RPush(ctx, config.WorkerKey.PersistAttemptsQueue, result)
			break
		}
		drained++
	}

	if drained > 0 {
		w.log.Info().Int("count", drained).Msg("Drained remaining items")
	}
}
