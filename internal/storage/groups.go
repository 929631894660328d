package storage

import (
	"context"
	"database/sql"
	"fmt"

	"susu/internal/core"
)

const groupColumns = `id, name, description, contribution, max_members, start_month, end_month,
	deadline_day, late_fine_percent, late_fine_amount, created_at, updated_at`

func scanGroup(rs rowScanner) (core.Group, error) {
	var (
		g                    core.Group
		start, end           string
		deadline             sql.NullInt64
		createdAt, updatedAt string
	)
	if err := rs.Scan(&g.ID, &g.Name, &g.Description, &g.Contribution, &g.MaxMembers,
		&start, &end, &deadline, &g.LateFinePercent, &g.LateFineAmount, &createdAt, &updatedAt); err != nil {
		return g, err
	}
	var err error
	if g.StartMonth, err = core.ParseMonth(start); err != nil {
		return g, fmt.Errorf("group %s start month: %w", g.ID, err)
	}
	if g.EndMonth, err = core.ParseMonth(end); err != nil {
		return g, fmt.Errorf("group %s end month: %w", g.ID, err)
	}
	if deadline.Valid {
		d := int(deadline.Int64)
		g.DeadlineDay = &d
	}
	if g.CreatedAt, err = parseTime(createdAt); err != nil {
		return g, err
	}
	if g.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return g, err
	}
	return g, nil
}

func (r *SQLiteRepository) CreateGroup(ctx context.Context, g core.Group) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO savings_groups (`+groupColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		g.ID, g.Name, g.Description, g.Contribution, g.MaxMembers, g.StartMonth.String(), g.EndMonth.String(),
		nullInt(g.DeadlineDay), g.LateFinePercent, g.LateFineAmount, formatTime(g.CreatedAt), formatTime(g.UpdatedAt),
	)
	if classify(err) == kindUnique {
		return fmt.Errorf("group %s: %w", g.ID, core.ErrConflict)
	}
	return mapError("create group", err)
}

func (r *SQLiteRepository) UpdateGroup(ctx context.Context, g core.Group) error {
	return r.execAffecting(ctx, "update group", "group", g.ID,
		`UPDATE savings_groups SET name = ?, description = ?, contribution = ?, max_members = ?,
			start_month = ?, end_month = ?, deadline_day = ?, late_fine_percent = ?, late_fine_amount = ?,
			updated_at = ?
		WHERE id = ?`,
		g.Name, g.Description, g.Contribution, g.MaxMembers, g.StartMonth.String(), g.EndMonth.String(),
		nullInt(g.DeadlineDay), g.LateFinePercent, g.LateFineAmount, formatTime(g.UpdatedAt), g.ID,
	)
}

func (r *SQLiteRepository) DeleteGroup(ctx context.Context, id string) error {
	return r.execAffecting(ctx, "delete group", "group", id, `DELETE FROM savings_groups WHERE id = ?`, id)
}

func (r *SQLiteRepository) GetGroup(ctx context.Context, id string) (core.Group, error) {
	g, err := scanGroup(r.db.QueryRowContext(ctx, `SELECT `+groupColumns+` FROM savings_groups WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return g, core.NewNotFound("group", id)
	}
	if err != nil {
		return g, mapError("get group", err)
	}
	return g, nil
}

func (r *SQLiteRepository) ListGroups(ctx context.Context) ([]core.Group, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+groupColumns+` FROM savings_groups ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, mapError("list groups", err)
	}
	defer rows.Close()

	var out []core.Group
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, mapError("scan group", err)
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("list groups", err)
	}
	return out, nil
}
