package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/daheeyun/haruplan/internal/database"
	"github.com/daheeyun/haruplan/internal/models"
)

type ReminderRepository struct {
	db *database.DB
}

func NewReminderRepository(db *database.DB) *ReminderRepository {
	return &ReminderRepository{db: db}
}

const reminderColumns = `reminder_id, member_id, title, occurrence_time, target_type, target_id, interaction_status, lifecycle_status, created_at`

func scanReminder(row pgx.Row) (*models.Reminder, error) {
	r := &models.Reminder{}
	err := row.Scan(&r.ReminderID, &r.MemberID, &r.Title, &r.OccurrenceTime, &r.TargetType,
		&r.TargetID, &r.InteractionStatus, &r.LifecycleStatus, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (r *ReminderRepository) Create(ctx context.Context, reminder *models.Reminder) error {
	return r.db.Pool.QueryRow(ctx,
		`INSERT INTO reminders (member_id, title, occurrence_time, target_type, target_id, interaction_status, lifecycle_status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING reminder_id, created_at`,
		reminder.MemberID, reminder.Title, reminder.OccurrenceTime, reminder.TargetType,
		reminder.TargetID, reminder.InteractionStatus, reminder.LifecycleStatus,
	).Scan(&reminder.ReminderID, &reminder.CreatedAt)
}

func (r *ReminderRepository) Update(ctx context.Context, reminder *models.Reminder) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE reminders SET title = $1, occurrence_time = $2, interaction_status = $3, lifecycle_status = $4
		 WHERE reminder_id = $5`,
		reminder.Title, reminder.OccurrenceTime, reminder.InteractionStatus,
		reminder.LifecycleStatus, reminder.ReminderID,
	)
	return err
}

func (r *ReminderRepository) FindCurrentByTarget(ctx context.Context, targetType models.TargetType, targetID int64) (*models.Reminder, error) {
	reminder, err := scanReminder(r.db.Pool.QueryRow(ctx,
		`SELECT `+reminderColumns+` FROM reminders
		 WHERE target_type = $1 AND target_id = $2 AND lifecycle_status <> 'TERMINATED'
		 ORDER BY occurrence_time ASC LIMIT 1`,
		targetType, targetID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return reminder, err
}

func (r *ReminderRepository) FindExpired(ctx context.Context, asOf time.Time) ([]*models.Reminder, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT `+reminderColumns+` FROM reminders
		 WHERE lifecycle_status IN ('ACTIVE', 'INACTIVE') AND occurrence_time <= $1
		 ORDER BY occurrence_time ASC`,
		asOf,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectReminders(rows)
}

func (r *ReminderRepository) FindDueActive(ctx context.Context, by time.Time) ([]*models.Reminder, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT `+reminderColumns+` FROM reminders
		 WHERE lifecycle_status = 'ACTIVE' AND interaction_status = 'PENDING' AND occurrence_time <= $1
		 ORDER BY occurrence_time ASC`,
		by,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectReminders(rows)
}

func (r *ReminderRepository) TerminateByTarget(ctx context.Context, targetType models.TargetType, targetID int64, from time.Time, scope models.DeletionScope) (int64, error) {
	query := `UPDATE reminders SET lifecycle_status = 'TERMINATED'
		 WHERE target_type = $1 AND target_id = $2 AND lifecycle_status <> 'TERMINATED'`
	args := []any{targetType, targetID}
	if !from.IsZero() {
		if scope == models.ScopeThisOnly {
			query += ` AND occurrence_time = $3`
		} else {
			query += ` AND occurrence_time >= $3`
		}
		args = append(args, from)
	}
	tag, err := r.db.Pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *ReminderRepository) DeleteTerminated(ctx context.Context) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx,
		`DELETE FROM reminders WHERE lifecycle_status = 'TERMINATED'`,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func collectReminders(rows pgx.Rows) ([]*models.Reminder, error) {
	var reminders []*models.Reminder
	for rows.Next() {
		reminder, err := scanReminder(rows)
		if err != nil {
			return nil, err
		}
		reminders = append(reminders, reminder)
	}
	return reminders, rows.Err()
}
