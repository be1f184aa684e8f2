// Package invoicing is the SQLite-backed invoice collaborator used by the
// booking lifecycle. It shares the booking store's connection so invoice
// writes join the caller's transaction.
package invoicing

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	"roombook/internal/database"
	"roombook/internal/domain"
	"roombook/internal/models"

	"github.com/rs/zerolog"
)

const invoiceSequence = "invoice_number"

type Store struct {
	db     *database.DB
	logger zerolog.Logger
}

func NewStore(db *database.DB, logger *zerolog.Logger) *Store {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Store{db: db, logger: logger.With().Str("component", "invoicing").Logger()}
}

// CreateInvoice issues a new invoice whose total is the sum of its items.
func (s *Store) CreateInvoice(ctx context.Context, clientID int64, items []models.InvoiceItem, bookingID *int64) (*models.InvoiceHandle, error) {
	if len(items) == 0 {
		return nil, domain.Validationf("invoice needs at least one line item")
	}

	n, err := s.db.NextSequence(ctx, invoiceSequence)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate invoice number: %w", err)
	}
	number := fmt.Sprintf("INV-%06d", n)

	var total float64
	for _, it := range items {
		total += it.Amount
	}

	q := s.db.Conn(ctx)
	result, err := q.ExecContext(ctx,
		`INSERT INTO invoices (number, client_id, booking_id, status, total, paid_amount, issued_at)
         VALUES (?, ?, ?, ?, ?, 0, ?)`,
		number, clientID, bookingID, models.InvoiceIssued, round2(total), time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to create invoice: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get last insert id: %w", err)
	}
	if err := s.insertItems(ctx, id, items); err != nil {
		return nil, err
	}

	s.logger.Info().Int64("invoice_id", id).Str("number", number).Float64("total", total).Msg("Invoice issued")
	return &models.InvoiceHandle{ID: id, Number: number}, nil
}

// UpdateInvoiceLineItem replaces the items of an unpaid invoice with a single
// line and recomputes the total.
func (s *Store) UpdateInvoiceLineItem(ctx context.Context, invoiceID int64, amounts models.LineAmounts) error {
	inv, err := s.GetInvoice(ctx, invoiceID)
	if err != nil {
		return err
	}
	if inv.Status.Settled() || inv.Status == models.InvoiceCancelled {
		return domain.Invariantf("invoice %s is %s and cannot be changed", inv.Number, inv.Status)
	}

	q := s.db.Conn(ctx)
	if _, err := q.ExecContext(ctx, `DELETE FROM invoice_items WHERE invoice_id = ?`, invoiceID); err != nil {
		return fmt.Errorf("failed to clear invoice items: %w", err)
	}
	item := models.InvoiceItem{
		Description: amounts.Description,
		Quantity:    amounts.Quantity,
		UnitPrice:   amounts.UnitPrice,
		Amount:      amounts.Amount,
	}
	if err := s.insertItems(ctx, invoiceID, []models.InvoiceItem{item}); err != nil {
		return err
	}
	if _, err := q.ExecContext(ctx, `UPDATE invoices SET total = ? WHERE id = ?`, round2(amounts.Amount), invoiceID); err != nil {
		return fmt.Errorf("failed to update invoice total: %w", err)
	}
	return nil
}

func (s *Store) insertItems(ctx context.Context, invoiceID int64, items []models.InvoiceItem) error {
	q := s.db.Conn(ctx)
	for _, it := range items {
		if _, err := q.ExecContext(ctx,
			`INSERT INTO invoice_items (invoice_id, description, quantity, unit_price, amount) VALUES (?, ?, ?, ?, ?)`,
			invoiceID, it.Description, it.Quantity, it.UnitPrice, it.Amount); err != nil {
			return fmt.Errorf("failed to save invoice item: %w", err)
		}
	}
	return nil
}

func (s *Store) GetInvoice(ctx context.Context, id int64) (*models.Invoice, error) {
	invoices, err := s.query(ctx, `WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(invoices) == 0 {
		return nil, domain.NotFoundf("invoice %d", id)
	}
	return invoices[0], nil
}

// InvoicesForBooking returns every invoice linked to the booking, cancelled
// ones included, oldest first.
func (s *Store) InvoicesForBooking(ctx context.Context, bookingID int64) ([]*models.Invoice, error) {
	return s.query(ctx, `WHERE booking_id = ? ORDER BY id`, bookingID)
}

func (s *Store) query(ctx context.Context, where string, args ...any) ([]*models.Invoice, error) {
	q := s.db.Conn(ctx)
	rows, err := q.QueryContext(ctx,
		`SELECT id, number, client_id, booking_id, status, total, paid_amount, issued_at, paid_at FROM invoices `+where, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query invoices: %w", err)
	}
	defer rows.Close()

	var out []*models.Invoice
	for rows.Next() {
		var (
			inv     models.Invoice
			booking sql.NullInt64
			paidAt  sql.NullTime
		)
		if err := rows.Scan(&inv.ID, &inv.Number, &inv.ClientID, &booking, &inv.Status, &inv.Total,
			&inv.PaidAmount, &inv.IssuedAt, &paidAt); err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		if booking.Valid {
			inv.BookingID = &booking.Int64
		}
		if paidAt.Valid {
			inv.PaidAt = &paidAt.Time
		}
		out = append(out, &inv)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	for _, inv := range out {
		if err := s.loadItems(ctx, inv); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *Store) loadItems(ctx context.Context, inv *models.Invoice) error {
	rows, err := s.db.Conn(ctx).QueryContext(ctx,
		`SELECT id, invoice_id, description, quantity, unit_price, amount FROM invoice_items WHERE invoice_id = ? ORDER BY id`, inv.ID)
	if err != nil {
		return fmt.Errorf("failed to query invoice items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var it models.InvoiceItem
		if err := rows.Scan(&it.ID, &it.InvoiceID, &it.Description, &it.Quantity, &it.UnitPrice, &it.Amount); err != nil {
			return fmt.Errorf("failed to scan invoice item: %w", err)
		}
		inv.Items = append(inv.Items, it)
	}
	return rows.Err()
}

// CancelInvoice cancels an unsettled invoice. Cancelling twice is a no-op.
func (s *Store) CancelInvoice(ctx context.Context, invoiceID int64) error {
	inv, err := s.GetInvoice(ctx, invoiceID)
	if err != nil {
		return err
	}
	switch {
	case inv.Status == models.InvoiceCancelled:
		return nil
	case inv.Status.Settled():
		return domain.Invariantf("invoice %s is %s and cannot be cancelled", inv.Number, inv.Status)
	}
	if _, err := s.db.Conn(ctx).ExecContext(ctx,
		`UPDATE invoices SET status = ? WHERE id = ?`, models.InvoiceCancelled, invoiceID); err != nil {
		return fmt.Errorf("failed to cancel invoice: %w", err)
	}
	return nil
}

// MarkPaid settles the full invoice total.
func (s *Store) MarkPaid(ctx context.Context, invoiceID int64) (*models.Invoice, error) {
	inv, err := s.GetInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	switch inv.Status {
	case models.InvoiceCancelled:
		return nil, domain.Invariantf("invoice %s is cancelled", inv.Number)
	case models.InvoicePaid:
		return nil, domain.Invariantf("invoice %s is already paid", inv.Number)
	}

	now := time.Now()
	if _, err := s.db.Conn(ctx).ExecContext(ctx,
		`UPDATE invoices SET status = ?, paid_amount = total, paid_at = ? WHERE id = ?`,
		models.InvoicePaid, now, invoiceID); err != nil {
		return nil, fmt.Errorf("failed to mark invoice paid: %w", err)
	}
	inv.Status = models.InvoicePaid
	inv.PaidAmount = inv.Total
	inv.PaidAt = &now
	return inv, nil
}

// RecordPayment registers a partial or full payment against an invoice.
func (s *Store) RecordPayment(ctx context.Context, invoiceID int64, amount float64) (*models.Invoice, error) {
	if amount <= 0 {
		return nil, domain.Validationf("payment amount must be positive")
	}
	inv, err := s.GetInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv.Status == models.InvoiceCancelled || inv.Status == models.InvoicePaid {
		return nil, domain.Invariantf("invoice %s is %s", inv.Number, inv.Status)
	}

	paid := round2(inv.PaidAmount + amount)
	status := models.InvoicePartiallyPaid
	var paidAt *time.Time
	if paid >= inv.Total {
		now := time.Now()
		paid, status, paidAt = inv.Total, models.InvoicePaid, &now
	}
	if _, err := s.db.Conn(ctx).ExecContext(ctx,
		`UPDATE invoices SET status = ?, paid_amount = ?, paid_at = ? WHERE id = ?`,
		status, paid, paidAt, invoiceID); err != nil {
		return nil, fmt.Errorf("failed to record payment: %w", err)
	}
	inv.Status, inv.PaidAmount, inv.PaidAt = status, paid, paidAt
	return inv, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

var _ domain.Invoicing = (*Store)(nil)

