package models

import "time"

// Member is an account row. Deletion is a tombstone: DeletedAt is set first,
// and a scheduled sweep removes the row once the retention window has passed.
type Member struct {
	MemberID  int64      `json:"member_id"`
	Nickname  string     `json:"nickname"`
	Timezone  string     `json:"timezone"`
	DeletedAt *time.Time `json:"deleted_at"`
	CreatedAt time.Time  `json:"created_at"`
}

func (m *Member) IsDeleted() bool {
	return m.DeletedAt != nil
}
