package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/daheeyun/haruplan/internal/database"
	"github.com/daheeyun/haruplan/internal/models"
)

type ExceptionRepository struct {
	db *database.DB
}

func NewExceptionRepository(db *database.DB) *ExceptionRepository {
	return &ExceptionRepository{db: db}
}

func (r *ExceptionRepository) Create(ctx context.Context, tx pgx.Tx, e *models.RecurrenceException) error {
	return tx.QueryRow(ctx,
		`INSERT INTO recurrence_exceptions (event_id, member_id, occurrence_time, new_time, change_type, scope)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING exception_id, created_at`,
		e.EventID, e.MemberID, e.OccurrenceTime, e.NewTime, e.ChangeType, e.Scope,
	).Scan(&e.ExceptionID, &e.CreatedAt)
}

func (r *ExceptionRepository) ListByEvent(ctx context.Context, eventID int64) ([]*models.RecurrenceException, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT exception_id, event_id, member_id, occurrence_time, new_time, change_type, scope, created_at
		 FROM recurrence_exceptions WHERE event_id = $1 ORDER BY occurrence_time ASC`,
		eventID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var exceptions []*models.RecurrenceException
	for rows.Next() {
		e := &models.RecurrenceException{}
		if err := rows.Scan(&e.ExceptionID, &e.EventID, &e.MemberID, &e.OccurrenceTime,
			&e.NewTime, &e.ChangeType, &e.Scope, &e.CreatedAt); err != nil {
			return nil, err
		}
		exceptions = append(exceptions, e)
	}
	return exceptions, rows.Err()
}
