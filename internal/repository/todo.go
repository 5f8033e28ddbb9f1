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

type TodoRepository struct {
	db *database.DB
}

func NewTodoRepository(db *database.DB) *TodoRepository {
	return &TodoRepository{db: db}
}

const todoColumns = `todo_id, member_id, title, priority, description, due_time, repeat_rule, completed_at, created_at`

func scanTodo(row pgx.Row) (*models.Todo, error) {
	t := &models.Todo{}
	err := row.Scan(&t.TodoID, &t.MemberID, &t.Title, &t.Priority, &t.Description,
		&t.DueTime, &t.RepeatRule, &t.CompletedAt, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (r *TodoRepository) Create(ctx context.Context, tx pgx.Tx, todo *models.Todo) error {
	return tx.QueryRow(ctx,
		`INSERT INTO todos (member_id, title, priority, description, due_time, repeat_rule)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING todo_id, created_at`,
		todo.MemberID, todo.Title, todo.Priority, todo.Description, todo.DueTime, todo.RepeatRule,
	).Scan(&todo.TodoID, &todo.CreatedAt)
}

func (r *TodoRepository) GetByID(ctx context.Context, todoID int64) (*models.Todo, error) {
	todo, err := scanTodo(r.db.Pool.QueryRow(ctx,
		`SELECT `+todoColumns+` FROM todos WHERE todo_id = $1`,
		todoID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.New(apperr.CodeTodoNotFound, fmt.Sprintf("todo %d not found", todoID))
	}
	return todo, err
}

func (r *TodoRepository) Update(ctx context.Context, tx pgx.Tx, todo *models.Todo) error {
	_, err := tx.Exec(ctx,
		`UPDATE todos SET title = $1, priority = $2, description = $3, due_time = $4, repeat_rule = $5
		 WHERE todo_id = $6 AND member_id = $7`,
		todo.Title, todo.Priority, todo.Description, todo.DueTime, todo.RepeatRule,
		todo.TodoID, todo.MemberID,
	)
	return err
}

func (r *TodoRepository) Complete(ctx context.Context, tx pgx.Tx, todoID, memberID int64, at time.Time) error {
	_, err := tx.Exec(ctx,
		`UPDATE todos SET completed_at = $1 WHERE todo_id = $2 AND member_id = $3`,
		at, todoID, memberID,
	)
	return err
}

func (r *TodoRepository) Delete(ctx context.Context, tx pgx.Tx, todoID, memberID int64) error {
	_, err := tx.Exec(ctx,
		`DELETE FROM todos WHERE todo_id = $1 AND member_id = $2`,
		todoID, memberID,
	)
	return err
}

// repeatedTodoGroup is a (member, title) group of completed one-off todos.
type repeatedTodoGroup struct {
	MemberID int64
	Title    string
}

// ListRepeatedCompletedGroups finds groups of completed non-recurring todos
// sharing a normalized title, with at least minCount instances.
func (r *TodoRepository) ListRepeatedCompletedGroups(ctx context.Context, minCount int) ([]repeatedTodoGroup, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT member_id, min(title)
		 FROM todos
		 WHERE repeat_rule IS NULL AND completed_at IS NOT NULL AND due_time IS NOT NULL
		 GROUP BY member_id, lower(title)
		 HAVING count(*) >= $1`,
		minCount,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []repeatedTodoGroup
	for rows.Next() {
		var g repeatedTodoGroup
		if err := rows.Scan(&g.MemberID, &g.Title); err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// CompletedHistory returns the past due times of completed one-off todos in
// a group, oldest first.
func (r *TodoRepository) CompletedHistory(ctx context.Context, memberID int64, title string, limit int) ([]time.Time, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT due_time FROM todos
		 WHERE member_id = $1 AND lower(title) = lower($2)
		   AND repeat_rule IS NULL AND completed_at IS NOT NULL AND due_time IS NOT NULL
		 ORDER BY due_time ASC LIMIT $3`,
		memberID, title, limit,
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
