package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prepforge/session-backend/internal/model"
)

// AttemptRepository handles attempt-history data access.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

// Insert records one completed attempt.
func (r *AttemptRepository) Insert(ctx context.Context, a *model.Attempt) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO attempt_history
		   (user_id, session_id, score, percentage, question_count,
		    answered_count, elapsed_seconds, is_reattempt, completed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id`,
		a.UserID, a.SessionID, a.Score, a.Percentage, a.QuestionCount,
		a.AnsweredCount, a.ElapsedSeconds, a.IsReattempt, a.CompletedAt,
	).Scan(&a.ID)
}

// ListByUser retrieves a user's attempts, most recent first.
func (r *AttemptRepository) ListByUser(ctx context.Context, userID, limit int) ([]model.Attempt, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, session_id, score, percentage, question_count,
		        answered_count, elapsed_seconds, is_reattempt, completed_at
		 FROM attempt_history
		 WHERE user_id = $1
		 ORDER BY completed_at DESC
		 LIMIT $2`, userID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []model.Attempt
	for rows.Next() {
		var a model.Attempt
		if err := rows.Scan(&a.ID, &a.UserID, &a.SessionID, &a.Score, &a.Percentage,
			&a.QuestionCount, &a.AnsweredCount, &a.ElapsedSeconds, &a.IsReattempt, &a.CompletedAt); err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}
