package storage

import (
	"context"
	"strings"

	"susu/internal/core"
	"susu/internal/store"
)

func scanAssignment(rs rowScanner) (core.Assignment, error) {
	var (
		a         core.Assignment
		month     string
		createdAt string
	)
	if err := rs.Scan(&a.ID, &a.GroupID, &a.MemberID, &month, &createdAt, &a.MemberName); err != nil {
		return a, err
	}
	var err error
	if a.Month, err = core.ParseMonth(month); err != nil {
		return a, err
	}
	if a.CreatedAt, err = parseTime(createdAt); err != nil {
		return a, err
	}
	return a, nil
}

// CreateAssignment relies on UNIQUE(group_id, month) to reject a second claim.
func (r *SQLiteRepository) CreateAssignment(ctx context.Context, a core.Assignment) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO assignments (id, group_id, member_id, month, created_at) VALUES (?, ?, ?, ?, ?)`,
		a.ID, a.GroupID, a.MemberID, a.Month.String(), formatTime(a.CreatedAt),
	)
	switch classify(err) {
	case kindUnique:
		return &core.DuplicateMonthClaimError{GroupID: a.GroupID, Month: a.Month, HeldBy: r.holderName(ctx, a.GroupID, a.Month)}
	case kindForeignKey:
		if ok, _ := r.exists(ctx, "savings_groups", a.GroupID); !ok {
			return core.NewNotFound("group", a.GroupID)
		}
		return core.NewNotFound("member", a.MemberID)
	}
	return mapError("create assignment", err)
}

// holderName is best effort; an empty name still yields a valid duplicate error.
func (r *SQLiteRepository) holderName(ctx context.Context, groupID string, m core.Month) string {
	var name string
	err := r.db.QueryRowContext(ctx,
		`SELECT mem.name FROM assignments a JOIN members mem ON mem.id = a.member_id
		WHERE a.group_id = ? AND a.month = ?`, groupID, m.String()).Scan(&name)
	if err != nil {
		return ""
	}
	return name
}

// DeleteAssignments removes claims; ON DELETE SET NULL detaches their payments.
func (r *SQLiteRepository) DeleteAssignments(ctx context.Context, groupID, memberID string, month *core.Month) (int, error) {
	query := `DELETE FROM assignments WHERE group_id = ? AND member_id = ?`
	args := []any{groupID, memberID}
	if month != nil {
		query += ` AND month = ?`
		args = append(args, month.String())
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, mapError("delete assignments", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, mapError("delete assignments", err)
	}
	return int(n), nil
}

func (r *SQLiteRepository) ListAssignments(ctx context.Context, f store.AssignmentFilter) ([]core.Assignment, error) {
	var (
		where []string
		args  []any
	)
	if f.GroupID != "" {
		where = append(where, "a.group_id = ?")
		args = append(args, f.GroupID)
	}
	if f.MemberID != "" {
		where = append(where, "a.member_id = ?")
		args = append(args, f.MemberID)
	}
	query := `SELECT a.id, a.group_id, a.member_id, a.month, a.created_at, m.name
		FROM assignments a JOIN members m ON m.id = a.member_id`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY a.month, a.member_id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError("list assignments", err)
	}
	defer rows.Close()

	var out []core.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, mapError("scan assignment", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("list assignments", err)
	}
	return out, nil
}
