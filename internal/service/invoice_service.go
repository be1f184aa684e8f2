package service

import (
	"context"
	"errors"
	"fmt"

	"roombook/internal/domain"
	"roombook/internal/metrics"
	"roombook/internal/models"

	"github.com/rs/zerolog"
)

// InvoiceService runs bulk invoice operations in a single transaction bound
// by the batch timeout.
type InvoiceService struct {
	repo      domain.Repository
	invoicing domain.Invoicing
	opts      Options
	logger    zerolog.Logger
}

func NewInvoiceService(repo domain.Repository, invoicing domain.Invoicing, opts Options, logger *zerolog.Logger) *InvoiceService {
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "invoice_service").Logger()
	}
	return &InvoiceService{repo: repo, invoicing: invoicing, opts: opts.withDefaults(), logger: l}
}

// BatchCreateInvoices issues an invoice for every listed booking that has no
// open one. Unknown, cancelled and already invoiced bookings are skipped.
func (s *InvoiceService) BatchCreateInvoices(ctx context.Context, bookingIDs []int64) (*models.BatchResult, error) {
	if len(bookingIDs) == 0 {
		return nil, domain.Validationf("no booking ids given")
	}
	result := &models.BatchResult{Succeeded: []int64{}, Skipped: []models.BatchSkip{}}
	err := s.repo.WithTx(ctx, s.opts.BatchTxTimeout, func(ctx context.Context) error {
		for _, id := range bookingIDs {
			b, err := s.repo.GetBooking(ctx, id)
			if errors.Is(err, domain.ErrNotFound) {
				result.Skipped = append(result.Skipped, models.BatchSkip{ID: id, Reason: "booking not found"})
				continue
			}
			if err != nil {
				return err
			}
			if b.Status == models.StatusCancelled {
				result.Skipped = append(result.Skipped, models.BatchSkip{ID: id, Reason: "booking is cancelled"})
				continue
			}
			inv, err := activeInvoice(ctx, s.invoicing, b.ID)
			if err != nil {
				return err
			}
			if inv != nil {
				result.Skipped = append(result.Skipped, models.BatchSkip{
					ID: id, Reason: fmt.Sprintf("invoice %s already exists", inv.Number),
				})
				continue
			}
			if _, err := issueInvoice(ctx, s.invoicing, b); err != nil {
				return err
			}
			result.Succeeded = append(result.Succeeded, id)
		}
		return nil
	})
	if err != nil {
		metrics.IncBookingOp("batch_create_invoices", outcome(err))
		s.logger.Error().Err(err).Int("count", len(bookingIDs)).Msg("batch invoice creation failed")
		return nil, err
	}
	metrics.IncBookingOp("batch_create_invoices", "ok")
	s.logger.Info().Int("created", len(result.Succeeded)).Int("skipped", len(result.Skipped)).Msg("batch invoices created")
	return result, nil
}

// BatchMarkPaid settles every listed invoice. Unknown, cancelled and already
// paid invoices are reported as skipped.
func (s *InvoiceService) BatchMarkPaid(ctx context.Context, invoiceIDs []int64) (*models.BatchResult, error) {
	if len(invoiceIDs) == 0 {
		return nil, domain.Validationf("no invoice ids given")
	}
	result := &models.BatchResult{Succeeded: []int64{}, Skipped: []models.BatchSkip{}}
	err := s.repo.WithTx(ctx, s.opts.BatchTxTimeout, func(ctx context.Context) error {
		for _, id := range invoiceIDs {
			_, err := s.invoicing.MarkPaid(ctx, id)
			switch {
			case err == nil:
				result.Succeeded = append(result.Succeeded, id)
			case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrInvariant):
				result.Skipped = append(result.Skipped, models.BatchSkip{ID: id, Reason: err.Error()})
			default:
				return err
			}
		}
		return nil
	})
	if err != nil {
		metrics.IncBookingOp("batch_mark_paid", outcome(err))
		s.logger.Error().Err(err).Int("count", len(invoiceIDs)).Msg("batch mark paid failed")
		return nil, err
	}
	metrics.IncBookingOp("batch_mark_paid", "ok")
	s.logger.Info().Int("paid", len(result.Succeeded)).Int("skipped", len(result.Skipped)).Msg("batch invoices paid")
	return result, nil
}

// RecordPayment books a payment against one invoice. A payment short of the
// outstanding amount leaves the invoice partially paid.
func (s *InvoiceService) RecordPayment(ctx context.Context, invoiceID int64, amount float64) (*models.Invoice, error) {
	var inv *models.Invoice
	err := s.repo.WithTx(ctx, s.opts.CreateTxTimeout, func(ctx context.Context) error {
		var err error
		inv, err = s.invoicing.RecordPayment(ctx, invoiceID, amount)
		return err
	})
	if err != nil {
		metrics.IncBookingOp("record_payment", outcome(err))
		s.logger.Warn().Err(err).Int64("invoice_id", invoiceID).Float64("amount", amount).Msg("payment rejected")
		return nil, err
	}
	metrics.IncBookingOp("record_payment", "ok")
	s.logger.Info().Int64("invoice_id", invoiceID).Float64("amount", amount).
		Str("status", string(inv.Status)).Msg("payment recorded")
	return inv, nil
}
