package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/transfa/freight-billing-service/internal/domain"
)

const invoiceColumns = `
	id, customer_id, invoice_number, total_amount::TEXT, currency, issued_at, due_date,
	status, dunning_level, paid_at, created_at, updated_at
`

func scanInvoice(row pgx.Row) (*domain.Invoice, error) {
	var invoice domain.Invoice
	if err := row.Scan(
		&invoice.ID,
		&invoice.CustomerID,
		&invoice.InvoiceNumber,
		&invoice.Total.Amount,
		&invoice.Total.CurrencyCode,
		&invoice.IssuedAt,
		&invoice.DueDate,
		&invoice.Status,
		&invoice.DunningLevel,
		&invoice.PaidAt,
		&invoice.CreatedAt,
		&invoice.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &invoice, nil
}

// GetInvoiceByID retrieves a single invoice.
func (r *Repository) GetInvoiceByID(ctx context.Context, invoiceID uuid.UUID) (*domain.Invoice, error) {
	invoice, err := scanInvoice(r.db.QueryRow(ctx, "SELECT "+invoiceColumns+" FROM invoices WHERE id = $1", invoiceID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvoiceNotFound
		}
		return nil, err
	}
	return invoice, nil
}

// ListOpenInvoices returns every sent or overdue invoice, grouped by customer.
func (r *Repository) ListOpenInvoices(ctx context.Context) ([]domain.Invoice, error) {
	rows, err := r.db.Query(ctx, "SELECT "+invoiceColumns+`
		FROM invoices
		WHERE status IN ('sent', 'overdue')
		ORDER BY customer_id, due_date
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invoices []domain.Invoice
	for rows.Next() {
		invoice, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, *invoice)
	}
	return invoices, rows.Err()
}

// CountOpenInvoicesByCustomerID counts the customer's unpaid sent/overdue invoices.
func (r *Repository) CountOpenInvoicesByCustomerID(ctx context.Context, customerID uuid.UUID) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM invoices WHERE customer_id = $1 AND status IN ('sent', 'overdue')
	`, customerID).Scan(&count)
	return count, err
}

// MarkInvoiceOverdue moves a sent invoice to overdue. Other states are left alone.
func (r *Repository) MarkInvoiceOverdue(ctx context.Context, invoiceID uuid.UUID, now time.Time) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE invoices SET status = 'overdue', updated_at = $2
		WHERE id = $1 AND status = 'sent'
	`, invoiceID, now)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// MarkInvoicePaid records full payment of an open invoice.
func (r *Repository) MarkInvoicePaid(ctx context.Context, invoiceID uuid.UUID, paidAt time.Time) (*domain.Invoice, error) {
	invoice, err := scanInvoice(r.db.QueryRow(ctx, `
		UPDATE invoices SET status = 'paid', paid_at = $2, updated_at = $2
		WHERE id = $1 AND status IN ('sent', 'overdue')
		RETURNING `+invoiceColumns, invoiceID, paidAt))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvoiceNotFound
		}
		return nil, err
	}
	return invoice, nil
}

// ApplyDunningLevel records the fee for a dunning level and raises the
// invoice's applied level. It reports false when the level was already applied.
func (r *Repository) ApplyDunningLevel(ctx context.Context, invoiceID uuid.UUID, level int, fee domain.Money, appliedAt time.Time) (bool, error) {
	applied := false
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			INSERT INTO invoice_dunning_fees (invoice_id, level, fee_amount, currency, applied_at)
			VALUES ($1, $2, $3::NUMERIC, $4, $5)
			ON CONFLICT (invoice_id, level) DO NOTHING
		`, invoiceID, level, numeric(fee.Amount), fee.CurrencyCode, appliedAt)
		if err != nil {
			return fmt.Errorf("insert dunning fee: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return nil
		}

		if _, err := tx.Exec(ctx, `
			UPDATE invoices SET dunning_level = GREATEST(dunning_level, $2), updated_at = $3
			WHERE id = $1
		`, invoiceID, level, appliedAt); err != nil {
			return fmt.Errorf("raise invoice dunning level: %w", err)
		}
		applied = true
		return nil
	})
	return applied, err
}

// ListCollectionAttempts returns the attempt history of an invoice, oldest first.
func (r *Repository) ListCollectionAttempts(ctx context.Context, invoiceID uuid.UUID) ([]domain.CollectionAttempt, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, invoice_id, method, attempted_at, result, COALESCE(notes, ''), COALESCE(recorded_by, ''), created_at
		FROM invoice_collection_attempts
		WHERE invoice_id = $1
		ORDER BY attempted_at, created_at
	`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	attempts := []domain.CollectionAttempt{}
	for rows.Next() {
		var a domain.CollectionAttempt
		if err := rows.Scan(&a.ID, &a.InvoiceID, &a.Method, &a.Date, &a.Result, &a.Notes, &a.RecordedBy, &a.CreatedAt); err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

// InsertCollectionAttempt appends an attempt to an invoice's history.
func (r *Repository) InsertCollectionAttempt(ctx context.Context, attempt domain.CollectionAttempt) (*domain.CollectionAttempt, error) {
	err := r.db.QueryRow(ctx, `
		INSERT INTO invoice_collection_attempts (id, invoice_id, method, attempted_at, result, notes, recorded_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`, attempt.ID, attempt.InvoiceID, string(attempt.Method), attempt.Date, attempt.Result, attempt.Notes, attempt.RecordedBy).Scan(&attempt.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

// SetServiceSuspended flips the customer's suspension flag and reports
// whether it changed.
func (r *Repository) SetServiceSuspended(ctx context.Context, customerID uuid.UUID, suspended bool, at time.Time) (bool, error) {
	if !suspended {
		tag, err := r.db.Exec(ctx, `
			UPDATE customer_billing_status
			SET service_suspended = FALSE, reactivated_at = $2, updated_at = $2
			WHERE customer_id = $1 AND service_suspended
		`, customerID, at)
		if err != nil {
			return false, err
		}
		return tag.RowsAffected() == 1, nil
	}

	tag, err := r.db.Exec(ctx, `
		INSERT INTO customer_billing_status (customer_id, service_suspended, suspended_at, updated_at)
		VALUES ($1, TRUE, $2, $2)
		ON CONFLICT (customer_id) DO UPDATE SET
			service_suspended = TRUE,
			suspended_at = EXCLUDED.suspended_at,
			updated_at = EXCLUDED.updated_at
		WHERE NOT customer_billing_status.service_suspended
	`, customerID, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// IsServiceSuspended reports whether the customer's service is suspended.
func (r *Repository) IsServiceSuspended(ctx context.Context, customerID uuid.UUID) (bool, error) {
	var suspended bool
	err := r.db.QueryRow(ctx, `
		SELECT service_suspended FROM customer_billing_status WHERE customer_id = $1
	`, customerID).Scan(&suspended)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	return suspended, err
}

// ListSuspendedCustomerIDs returns every customer whose service is suspended.
func (r *Repository) ListSuspendedCustomerIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.db.Query(ctx, `SELECT customer_id FROM customer_billing_status WHERE service_suspended`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
