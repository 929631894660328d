package storage

import (
	"context"
	"database/sql"
	"fmt"

	"susu/internal/core"
	"susu/internal/store"
)

const memberColumns = `id, name, phone, email, address, bank_name, account_number, registered_at,
	total_received, last_payment_at, next_payment_month`

func scanMember(rs rowScanner) (core.Member, error) {
	var (
		m            core.Member
		registeredAt string
		lastPayment  sql.NullString
		nextMonth    sql.NullString
	)
	if err := rs.Scan(&m.ID, &m.Name, &m.Phone, &m.Email, &m.Address, &m.BankName, &m.AccountNumber,
		&registeredAt, &m.TotalReceived, &lastPayment, &nextMonth); err != nil {
		return m, err
	}
	var err error
	if m.RegisteredAt, err = parseTime(registeredAt); err != nil {
		return m, err
	}
	if m.LastPaymentAt, err = parseNullTime(lastPayment); err != nil {
		return m, err
	}
	if m.NextPaymentMonth, err = parseNullMonth(nextMonth); err != nil {
		return m, fmt.Errorf("member %s next payment month: %w", m.ID, err)
	}
	return m, nil
}

func (r *SQLiteRepository) CreateMember(ctx context.Context, m core.Member) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO members (`+memberColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.Name, m.Phone, m.Email, m.Address, m.BankName, m.AccountNumber, formatTime(m.RegisteredAt),
		m.TotalReceived, nullTime(m.LastPaymentAt), nullMonth(m.NextPaymentMonth),
	)
	if classify(err) == kindUnique {
		return fmt.Errorf("member %s: %w", m.ID, core.ErrConflict)
	}
	return mapError("create member", err)
}

func (r *SQLiteRepository) UpdateMember(ctx context.Context, m core.Member) error {
	return r.execAffecting(ctx, "update member", "member", m.ID,
		`UPDATE members SET name = ?, phone = ?, email = ?, address = ?, bank_name = ?, account_number = ?
		WHERE id = ?`,
		m.Name, m.Phone, m.Email, m.Address, m.BankName, m.AccountNumber, m.ID,
	)
}

func (r *SQLiteRepository) UpdateMemberTotals(ctx context.Context, id string, t store.MemberTotals) error {
	return r.execAffecting(ctx, "update member totals", "member", id,
		`UPDATE members SET total_received = ?, last_payment_at = ?, next_payment_month = ? WHERE id = ?`,
		t.TotalReceived, nullTime(t.LastPaymentAt), nullMonth(t.NextPaymentMonth), id,
	)
}

func (r *SQLiteRepository) DeleteMember(ctx context.Context, id string) error {
	return r.execAffecting(ctx, "delete member", "member", id, `DELETE FROM members WHERE id = ?`, id)
}

func (r *SQLiteRepository) GetMember(ctx context.Context, id string) (core.Member, error) {
	m, err := scanMember(r.db.QueryRowContext(ctx, `SELECT `+memberColumns+` FROM members WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return m, core.NewNotFound("member", id)
	}
	if err != nil {
		return m, mapError("get member", err)
	}
	return m, nil
}

func (r *SQLiteRepository) ListMembers(ctx context.Context) ([]core.Member, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+memberColumns+` FROM members ORDER BY name, id`)
	if err != nil {
		return nil, mapError("list members", err)
	}
	defer rows.Close()

	var out []core.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, mapError("scan member", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("list members", err)
	}
	return out, nil
}
