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

type EventRepository struct {
	db *database.DB
}

func NewEventRepository(db *database.DB) *EventRepository {
	return &EventRepository{db: db}
}

const eventColumns = `event_id, member_id, title, location, description, start_time, duration, repeat_rule, repeat_group_id, created_at`

func scanEvent(row pgx.Row) (*models.Event, error) {
	e := &models.Event{}
	err := row.Scan(&e.EventID, &e.MemberID, &e.Title, &e.Location, &e.Description,
		&e.StartTime, &e.Duration, &e.RepeatRule, &e.RepeatGroupID, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (r *EventRepository) Create(ctx context.Context, tx pgx.Tx, event *models.Event) error {
	return tx.QueryRow(ctx,
		`INSERT INTO events (member_id, title, location, description, start_time, duration, repeat_rule, repeat_group_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING event_id, created_at`,
		event.MemberID, event.Title, event.Location, event.Description, event.StartTime,
		event.Duration, event.RepeatRule, event.RepeatGroupID,
	).Scan(&event.EventID, &event.CreatedAt)
}

func (r *EventRepository) GetByID(ctx context.Context, eventID int64) (*models.Event, error) {
	event, err := scanEvent(r.db.Pool.QueryRow(ctx,
		`SELECT `+eventColumns+` FROM events WHERE event_id = $1`,
		eventID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.New(apperr.CodeEventNotFound, fmt.Sprintf("event %d not found", eventID))
	}
	return event, err
}

func (r *EventRepository) Update(ctx context.Context, tx pgx.Tx, event *models.Event) error {
	_, err := tx.Exec(ctx,
		`UPDATE events SET title = $1, location = $2, description = $3, start_time = $4, duration = $5, repeat_rule = $6
		 WHERE event_id = $7 AND member_id = $8`,
		event.Title, event.Location, event.Description, event.StartTime, event.Duration,
		event.RepeatRule, event.EventID, event.MemberID,
	)
	return err
}

func (r *EventRepository) Delete(ctx context.Context, tx pgx.Tx, eventID, memberID int64) error {
	_, err := tx.Exec(ctx,
		`DELETE FROM events WHERE event_id = $1 AND member_id = $2`,
		eventID, memberID,
	)
	return err
}

// ListByMember returns every event the member owns, ordered by anchor time.
func (r *EventRepository) ListByMember(ctx context.Context, memberID int64) ([]*models.Event, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT `+eventColumns+` FROM events WHERE member_id = $1 ORDER BY start_time ASC`,
		memberID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*models.Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// repeatedGroup is a (member, title, location) group of past one-off events
// that looks like it might actually be recurring.
type repeatedGroup struct {
	MemberID int64
	Title    string
	Location string
}

// ListRepeatedOneOffGroups finds groups of past non-recurring events sharing
// a normalized title and location, with at least minCount instances.
func (r *EventRepository) ListRepeatedOneOffGroups(ctx context.Context, minCount int) ([]repeatedGroup, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT member_id, min(title), min(location)
		 FROM events
		 WHERE repeat_rule IS NULL AND start_time < NOW()
		 GROUP BY member_id, lower(title), lower(location)
		 HAVING count(*) >= $1`,
		minCount,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []repeatedGroup
	for rows.Next() {
		var g repeatedGroup
		if err := rows.Scan(&g.MemberID, &g.Title, &g.Location); err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// OccurrenceHistory returns the past start times of one-off events in a
// group, oldest first.
func (r *EventRepository) OccurrenceHistory(ctx context.Context, memberID int64, title, location string, limit int) ([]time.Time, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT start_time FROM events
		 WHERE member_id = $1 AND lower(title) = lower($2) AND lower(location) = lower($3)
		   AND repeat_rule IS NULL AND start_time < NOW()
		 ORDER BY start_time ASC LIMIT $4`,
		memberID, title, location, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var times []time.Time
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		times = append(times, t)
	}
	return times, rows.Err()
}
