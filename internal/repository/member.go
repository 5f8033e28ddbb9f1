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

type MemberRepository struct {
	db *database.DB
}

func NewMemberRepository(db *database.DB) *MemberRepository {
	return &MemberRepository{db: db}
}

func (r *MemberRepository) Create(ctx context.Context, m *models.Member) error {
	return r.db.Pool.QueryRow(ctx,
		`INSERT INTO members (nickname, timezone) VALUES ($1, $2)
		 RETURNING member_id, created_at`,
		m.Nickname, m.Timezone,
	).Scan(&m.MemberID, &m.CreatedAt)
}

func (r *MemberRepository) GetByID(ctx context.Context, memberID int64) (*models.Member, error) {
	m := &models.Member{}
	err := r.db.Pool.QueryRow(ctx,
		`SELECT member_id, nickname, timezone, deleted_at, created_at
		 FROM members WHERE member_id = $1`,
		memberID,
	).Scan(&m.MemberID, &m.Nickname, &m.Timezone, &m.DeletedAt, &m.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.New(apperr.CodeMemberNotFound, fmt.Sprintf("member %d not found", memberID))
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

// SoftDelete tombstones the member. The scheduled sweep removes the row once
// the retention window passes.
func (r *MemberRepository) SoftDelete(ctx context.Context, memberID int64, at time.Time) error {
	tag, err := r.db.Pool.Exec(ctx,
		`UPDATE members SET deleted_at = $1 WHERE member_id = $2 AND deleted_at IS NULL`,
		at, memberID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.New(apperr.CodeMemberNotFound, fmt.Sprintf("member %d not found or already deleted", memberID))
	}
	return nil
}

// HardDeleteExpired removes members tombstoned before the cutoff, along with
// everything they own. Each member is deleted in its own transaction so one
// failure does not abort the sweep.
func (r *MemberRepository) HardDeleteExpired(ctx context.Context, cutoff time.Time) (deleted int64, failed []int64, err error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT member_id FROM members WHERE deleted_at IS NOT NULL AND deleted_at < $1`,
		cutoff,
	)
	if err != nil {
		return 0, nil, err
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, nil, err
	}

	for _, id := range ids {
		if err := r.hardDeleteOne(ctx, id); err != nil {
			failed = append(failed, id)
			continue
		}
		deleted++
	}
	return deleted, failed, nil
}

func (r *MemberRepository) hardDeleteOne(ctx context.Context, memberID int64) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, stmt := range []string{
		`DELETE FROM reminders WHERE member_id = $1`,
		`DELETE FROM suggestions WHERE member_id = $1`,
		`DELETE FROM recurrence_exceptions WHERE member_id = $1`,
		`DELETE FROM events WHERE member_id = $1`,
		`DELETE FROM todos WHERE member_id = $1`,
		`DELETE FROM members WHERE member_id = $1`,
	} {
		if _, err := tx.Exec(ctx, stmt, memberID); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}
