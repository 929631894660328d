package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"susu/internal/core"
	"susu/internal/store"
)

const paymentColumns = `id, assignment_id, group_id, member_id, month, amount, fine, paid_at, method, status,
	sender_bank, receiver_bank, notes, created_at, updated_at`

func scanPayment(rs rowScanner) (core.Payment, error) {
	var (
		p                    core.Payment
		assignmentID         sql.NullString
		month, paidAt        string
		method, status       string
		createdAt, updatedAt string
	)
	if err := rs.Scan(&p.ID, &assignmentID, &p.GroupID, &p.MemberID, &month, &p.Amount, &p.Fine, &paidAt,
		&method, &status, &p.SenderBank, &p.ReceiverBank, &p.Notes, &createdAt, &updatedAt); err != nil {
		return p, err
	}
	if assignmentID.Valid {
		id := assignmentID.String
		p.AssignmentID = &id
	}
	p.Method = core.PaymentMethod(method)
	p.Status = core.PaymentStatus(status)
	var err error
	if p.Month, err = core.ParseMonth(month); err != nil {
		return p, err
	}
	if p.PaidAt, err = parseTime(paidAt); err != nil {
		return p, err
	}
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return p, err
	}
	if p.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return p, err
	}
	return p, nil
}

func (r *SQLiteRepository) CreatePayment(ctx context.Context, p core.Payment) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO payments (`+paymentColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, nullString(p.AssignmentID), p.GroupID, p.MemberID, p.Month.String(), p.Amount, p.Fine,
		formatTime(p.PaidAt), string(p.Method), string(p.Status), p.SenderBank, p.ReceiverBank, p.Notes,
		formatTime(p.CreatedAt), formatTime(p.UpdatedAt),
	)
	switch classify(err) {
	case kindUnique:
		return fmt.Errorf("payment %s: %w", p.ID, core.ErrConflict)
	case kindForeignKey:
		if ok, _ := r.exists(ctx, "savings_groups", p.GroupID); !ok {
			return core.NewNotFound("group", p.GroupID)
		}
		if ok, _ := r.exists(ctx, "members", p.MemberID); !ok {
			return core.NewNotFound("member", p.MemberID)
		}
		if p.AssignmentID != nil {
			return core.NewNotFound("assignment", *p.AssignmentID)
		}
	}
	return mapError("create payment", err)
}

func (r *SQLiteRepository) UpdatePaymentStatus(ctx context.Context, id string, status core.PaymentStatus, at time.Time) error {
	return r.execAffecting(ctx, "update payment status", "payment", id,
		`UPDATE payments SET status = ?, updated_at = ? WHERE id = ?`, string(status), formatTime(at), id)
}

func (r *SQLiteRepository) GetPayment(ctx context.Context, id string) (core.Payment, error) {
	p, err := scanPayment(r.db.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return p, core.NewNotFound("payment", id)
	}
	if err != nil {
		return p, mapError("get payment", err)
	}
	return p, nil
}

func (r *SQLiteRepository) ListPayments(ctx context.Context, f store.PaymentFilter) ([]core.Payment, error) {
	var (
		where []string
		args  []any
	)
	if f.GroupID != "" {
		where = append(where, "group_id = ?")
		args = append(args, f.GroupID)
	}
	if f.MemberID != "" {
		where = append(where, "member_id = ?")
		args = append(args, f.MemberID)
	}
	if f.Month != nil {
		where = append(where, "month = ?")
		args = append(args, f.Month.String())
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}
	query := `SELECT ` + paymentColumns + ` FROM payments`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY paid_at DESC, id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError("list payments", err)
	}
	defer rows.Close()

	var out []core.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, mapError("scan payment", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("list payments", err)
	}
	return out, nil
}
