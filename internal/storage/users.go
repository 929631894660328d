package storage

import (
	"context"
	"database/sql"
	"fmt"

	"susu/internal/core"
)

const userColumns = `id, email, display_name, password_hash, role, created_at`

func scanUser(rs rowScanner) (core.User, error) {
	var (
		u         core.User
		role      string
		createdAt string
	)
	if err := rs.Scan(&u.ID, &u.Email, &u.DisplayName, &u.PasswordHash, &role, &createdAt); err != nil {
		return u, err
	}
	u.Role = core.Role(role)
	var err error
	if u.CreatedAt, err = parseTime(createdAt); err != nil {
		return u, err
	}
	return u, nil
}

func (r *SQLiteRepository) CreateUser(ctx context.Context, u core.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.DisplayName, u.PasswordHash, string(u.Role), formatTime(u.CreatedAt),
	)
	if classify(err) == kindUnique {
		return fmt.Errorf("email %s already registered: %w", u.Email, core.ErrConflict)
	}
	return mapError("create user", err)
}

func (r *SQLiteRepository) getUser(ctx context.Context, column, value string) (core.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE `+column+` = ?`, value))
	if err == sql.ErrNoRows {
		return u, core.NewNotFound("user", value)
	}
	if err != nil {
		return u, mapError("get user", err)
	}
	return u, nil
}

// GetUserByEmail matches case-insensitively through the column collation.
func (r *SQLiteRepository) GetUserByEmail(ctx context.Context, email string) (core.User, error) {
	return r.getUser(ctx, "email", email)
}

func (r *SQLiteRepository) GetUserByID(ctx context.Context, id string) (core.User, error) {
	return r.getUser(ctx, "id", id)
}

func (r *SQLiteRepository) ListUsers(ctx context.Context) ([]core.User, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY email`)
	if err != nil {
		return nil, mapError("list users", err)
	}
	defer rows.Close()

	var out []core.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, mapError("scan user", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("list users", err)
	}
	return out, nil
}

func (r *SQLiteRepository) DeleteUser(ctx context.Context, id string) error {
	return r.execAffecting(ctx, "delete user", "user", id, `DELETE FROM users WHERE id = ?`, id)
}
