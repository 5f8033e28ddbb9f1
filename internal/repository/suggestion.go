package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/daheeyun/haruplan/internal/apperr"
	"github.com/daheeyun/haruplan/internal/database"
	"github.com/daheeyun/haruplan/internal/models"
)

type SuggestionRepository struct {
	db *database.DB
}

func NewSuggestionRepository(db *database.DB) *SuggestionRepository {
	return &SuggestionRepository{db: db}
}

const suggestionColumns = `suggestion_id, member_id, content, category, status, target_hash, repeat_rule, invalidated_at, created_at`

func scanSuggestion(row pgx.Row) (*models.Suggestion, error) {
	s := &models.Suggestion{}
	err := row.Scan(&s.SuggestionID, &s.MemberID, &s.Content, &s.Category, &s.Status,
		&s.TargetHash, &s.RepeatRule, &s.InvalidatedAt, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *SuggestionRepository) Create(ctx context.Context, s *models.Suggestion) error {
	return r.db.Pool.QueryRow(ctx,
		`INSERT INTO suggestions (member_id, content, category, status, target_hash, repeat_rule)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING suggestion_id, created_at`,
		s.MemberID, s.Content, s.Category, s.Status, s.TargetHash, s.RepeatRule,
	).Scan(&s.SuggestionID, &s.CreatedAt)
}

func (r *SuggestionRepository) GetByID(ctx context.Context, suggestionID int64) (*models.Suggestion, error) {
	s, err := scanSuggestion(r.db.Pool.QueryRow(ctx,
		`SELECT `+suggestionColumns+` FROM suggestions WHERE suggestion_id = $1`,
		suggestionID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.New(apperr.CodeSuggestionNotFound, fmt.Sprintf("suggestion %d not found", suggestionID))
	}
	return s, err
}

func (r *SuggestionRepository) FindActiveByHash(ctx context.Context, memberID int64, hash string) ([]*models.Suggestion, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT `+suggestionColumns+` FROM suggestions
		 WHERE member_id = $1 AND target_hash = $2 AND invalidated_at IS NULL
		 ORDER BY created_at DESC`,
		memberID, hash,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSuggestions(rows)
}

func (r *SuggestionRepository) FindActiveByMember(ctx context.Context, memberID int64) ([]*models.Suggestion, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT `+suggestionColumns+` FROM suggestions
		 WHERE member_id = $1 AND invalidated_at IS NULL
		 ORDER BY created_at DESC`,
		memberID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSuggestions(rows)
}

// UpdateStatus applies a monotonic status transition. The current row is
// locked so the check and the write commit together.
func (r *SuggestionRepository) UpdateStatus(ctx context.Context, suggestionID int64, status models.SuggestionStatus) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var current models.SuggestionStatus
	err = tx.QueryRow(ctx,
		`SELECT status FROM suggestions WHERE suggestion_id = $1 FOR UPDATE`,
		suggestionID,
	).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.New(apperr.CodeSuggestionNotFound, fmt.Sprintf("suggestion %d not found", suggestionID))
	}
	if err != nil {
		return err
	}
	if !current.CanTransitionTo(status) {
		return apperr.New(apperr.CodeInternal,
			fmt.Sprintf("suggestion %d: illegal transition %s -> %s", suggestionID, current, status))
	}
	if _, err := tx.Exec(ctx,
		`UPDATE suggestions SET status = $1 WHERE suggestion_id = $2`,
		status, suggestionID,
	); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *SuggestionRepository) InvalidateByHash(ctx context.Context, memberID int64, hash string, at time.Time) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx,
		`UPDATE suggestions SET invalidated_at = $1
		 WHERE member_id = $2 AND target_hash = $3 AND invalidated_at IS NULL`,
		at, memberID, hash,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func collectSuggestions(rows pgx.Rows) ([]*models.Suggestion, error) {
	var suggestions []*models.Suggestion
	for rows.Next() {
		s, err := scanSuggestion(rows)
		if err != nil {
			return nil, err
		}
		suggestions = append(suggestions, s)
	}
	return suggestions, rows.Err()
}
