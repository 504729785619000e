// Package repository persists the draft save outcome journal.
// It uses pgx directly (no ORM).
package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Shivanand-hulikatti/foundation-portal/internal/model"
)

// DB is the subset of *pgxpool.Pool the repository uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// OutcomeRepository stores one row per draft save.
type OutcomeRepository struct {
	db DB
}

// NewOutcomeRepository constructs an OutcomeRepository.
func NewOutcomeRepository(db DB) *OutcomeRepository {
	return &OutcomeRepository{db: db}
}

// Record inserts o, assigning an id and timestamp when missing.
func (r *OutcomeRepository) Record(ctx context.Context, o model.SaveOutcome) error {
	if o.ID == "" {
		o.ID = uuid.New().String()
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}
	failed := o.FailedUploads
	if failed == nil {
		failed = []string{}
	}

	_, err := r.db.Exec(ctx,
		`INSERT INTO draft_save_outcomes (id, user_id, outcome, draft_id, failed_uploads, reason, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		o.ID, o.UserID, o.Outcome, o.DraftID, failed, o.Reason, o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert save outcome: %w", err)
	}
	return nil
}

// ListRecent returns the newest outcomes, optionally for one user only
// (userID 0 means every user).
func (r *OutcomeRepository) ListRecent(ctx context.Context, userID, limit int) ([]model.SaveOutcome, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(ctx,
		`SELECT id::text, user_id, outcome, draft_id, failed_uploads, reason, created_at
		 FROM draft_save_outcomes
		 WHERE $1 = 0 OR user_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list save outcomes: %w", err)
	}
	defer rows.Close()

	var out []model.SaveOutcome
	for rows.Next() {
		var o model.SaveOutcome
		if err := rows.Scan(&o.ID, &o.UserID, &o.Outcome, &o.DraftID, &o.FailedUploads, &o.Reason, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan save outcome: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
