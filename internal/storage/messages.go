package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"susu/internal/core"
)

func scanMessage(rs rowScanner) (core.Message, error) {
	var (
		m         core.Message
		createdAt string
		readAt    sql.NullString
	)
	if err := rs.Scan(&m.ID, &m.MemberID, &m.GroupID, &m.Kind, &m.Subject, &m.Body, &createdAt, &readAt); err != nil {
		return m, err
	}
	var err error
	if m.CreatedAt, err = parseTime(createdAt); err != nil {
		return m, err
	}
	if m.ReadAt, err = parseNullTime(readAt); err != nil {
		return m, err
	}
	return m, nil
}

func (r *SQLiteRepository) CreateMessage(ctx context.Context, m core.Message) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO messages (id, member_id, group_id, kind, subject, body, created_at, read_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.MemberID, m.GroupID, m.Kind, m.Subject, m.Body, formatTime(m.CreatedAt), nullTime(m.ReadAt),
	)
	switch classify(err) {
	case kindUnique:
		return fmt.Errorf("message %s: %w", m.ID, core.ErrConflict)
	case kindForeignKey:
		return core.NewNotFound("member", m.MemberID)
	}
	return mapError("create message", err)
}

func (r *SQLiteRepository) ListMessages(ctx context.Context, memberID string) ([]core.Message, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, member_id, group_id, kind, subject, body, created_at, read_at
		FROM messages WHERE member_id = ? ORDER BY created_at DESC, id`, memberID)
	if err != nil {
		return nil, mapError("list messages", err)
	}
	defer rows.Close()

	var out []core.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, mapError("scan message", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("list messages", err)
	}
	return out, nil
}

// MarkMessageRead keeps the first read timestamp.
func (r *SQLiteRepository) MarkMessageRead(ctx context.Context, id string, at time.Time) error {
	return r.execAffecting(ctx, "mark message read", "message", id,
		`UPDATE messages SET read_at = COALESCE(read_at, ?) WHERE id = ?`, formatTime(at), id)
}
