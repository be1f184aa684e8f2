package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"roombook/internal/domain"
	"roombook/internal/events"
	"roombook/internal/metrics"
	"roombook/internal/models"
	"roombook/internal/pricing"
	"roombook/internal/timeslot"

	"github.com/rs/zerolog"
)

// Options bounds the work of lifecycle operations.
type Options struct {
	CreateTxTimeout time.Duration
	BatchTxTimeout  time.Duration
	MaxRangeDays    int
}

func (o Options) withDefaults() Options {
	if o.CreateTxTimeout <= 0 {
		o.CreateTxTimeout = 30 * time.Second
	}
	if o.BatchTxTimeout <= 0 {
		o.BatchTxTimeout = 120 * time.Second
	}
	if o.MaxRangeDays <= 0 {
		o.MaxRangeDays = timeslot.MaxRangeDays
	}
	return o
}

// Deps are the collaborators of BookingService. Events and Invalidator may be nil.
type Deps struct {
	Repo         domain.Repository
	Availability *AvailabilityService
	Invoicing    domain.Invoicing
	Clients      domain.ClientDirectory
	Events       domain.EventPublisher
	Invalidator  domain.OccupancyInvalidator
}

type BookingService struct {
	repo         domain.Repository
	availability *AvailabilityService
	invoicing    domain.Invoicing
	clients      domain.ClientDirectory
	events       domain.EventPublisher
	invalidator  domain.OccupancyInvalidator
	opts         Options
	logger       zerolog.Logger
}

func NewBookingService(deps Deps, opts Options, logger *zerolog.Logger) *BookingService {
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "booking_service").Logger()
	}
	return &BookingService{
		repo:         deps.Repo,
		availability: deps.Availability,
		invoicing:    deps.Invoicing,
		clients:      deps.Clients,
		events:       deps.Events,
		invalidator:  deps.Invalidator,
		opts:         opts.withDefaults(),
		logger:       l,
	}
}

// CalculatePrice quotes a request without persisting anything. An adjusted
// price replaces the unit price.
func (s *BookingService) CalculatePrice(ctx context.Context, req models.BookingRequest) (*models.PriceQuote, error) {
	if err := validateAdjustment(req.AdjustedPrice, req.AdjustmentReason); err != nil {
		return nil, err
	}
	res, err := resolveResources(ctx, s.repo, req.RentalType, req.Resource)
	if err != nil {
		return nil, err
	}
	quote, _, err := s.quote(req.RentalType, res, req.Period)
	if err != nil {
		return nil, err
	}
	if req.AdjustedPrice != nil {
		quote.UnitPrice = *req.AdjustedPrice
		quote.TotalPrice = pricing.Total(*req.AdjustedPrice, quote.Quantity)
	}
	return &quote, nil
}

// Create validates, prices and conflict-checks the request, then persists
// the booking with its slots in one transaction.
func (s *BookingService) Create(ctx context.Context, req models.BookingRequest) (*models.Booking, error) {
	var booking *models.Booking
	err := s.repo.WithTx(ctx, s.opts.CreateTxTimeout, func(ctx context.Context) error {
		var err error
		booking, err = s.create(ctx, req, nil)
		return err
	})
	if err != nil {
		s.fail("create", err, 0)
		return nil, err
	}
	s.succeed("create", events.EventBookingCreated, booking, booking.Slots)
	return booking, nil
}

func (s *BookingService) create(ctx context.Context, req models.BookingRequest, extendedFrom *int64) (*models.Booking, error) {
	paymentType, err := validateRequest(req)
	if err != nil {
		return nil, err
	}
	client, err := s.clients.GetClient(ctx, req.ClientID)
	if err != nil {
		return nil, err
	}
	res, err := resolveResources(ctx, s.repo, req.RentalType, req.Resource)
	if err != nil {
		return nil, err
	}
	quote, period, err := s.quote(req.RentalType, res, req.Period)
	if err != nil {
		return nil, err
	}
	if !req.IgnoreConflicts {
		if err := s.availability.ensureAvailable(ctx, req.RentalType, res, period, 0); err != nil {
			return nil, err
		}
	}

	status := models.StatusDraft
	if req.Submit {
		status = models.StatusPending
	}
	b := &models.Booking{
		ClientID:       client.ID,
		ClientName:     client.Name,
		PaymentType:    paymentType,
		Status:         status,
		Comment:        req.Comment,
		ExtendedFromID: extendedFrom,
	}
	applySchedule(b, req.RentalType, req.Resource, period)
	applyPrice(b, quote, req.AdjustedPrice, req.AdjustmentReason)

	slots, err := s.planSlots(b, res, period)
	if err != nil {
		return nil, err
	}
	if err := s.repo.CreateBooking(ctx, b, slots); err != nil {
		return nil, err
	}
	return b, nil
}

// Update edits a non-terminal booking. Schedule changes regenerate all slots
// and the linked unpaid invoice follows the new totals.
func (s *BookingService) Update(ctx context.Context, id int64, req models.BookingRequest) (*models.Booking, error) {
	var (
		booking *models.Booking
		touched []models.Slot
	)
	err := s.repo.WithTx(ctx, s.opts.CreateTxTimeout, func(ctx context.Context) error {
		b, err := s.repo.GetBooking(ctx, id)
		if err != nil {
			return err
		}
		inv, err := s.activeInvoice(ctx, b.ID)
		if err != nil {
			return err
		}
		if reason := editBlocker(b, inv); reason != "" {
			return domain.Invariantf("booking %s: %s", b.Number, reason)
		}

		paymentType, err := validateRequest(req)
		if err != nil {
			return err
		}
		client, err := s.clients.GetClient(ctx, req.ClientID)
		if err != nil {
			return err
		}
		res, err := resolveResources(ctx, s.repo, req.RentalType, req.Resource)
		if err != nil {
			return err
		}
		quote, period, err := s.quote(req.RentalType, res, req.Period)
		if err != nil {
			return err
		}

		rescheduled := !sameSchedule(b, req.RentalType, req.Resource, period)
		if rescheduled && !req.IgnoreConflicts {
			if err := s.availability.ensureAvailable(ctx, req.RentalType, res, period, b.ID); err != nil {
				return err
			}
		}

		oldSlots := b.Slots
		oldQty, oldTotal := b.Quantity, b.TotalPrice
		b.ClientID, b.ClientName = client.ID, client.Name
		b.PaymentType = paymentType
		b.Comment = req.Comment
		applySchedule(b, req.RentalType, req.Resource, period)
		applyPrice(b, quote, req.AdjustedPrice, req.AdjustmentReason)
		repriced := b.Quantity != oldQty || b.TotalPrice != oldTotal

		if err := s.repo.UpdateBooking(ctx, b); err != nil {
			return err
		}
		if rescheduled || repriced {
			slots, err := s.planSlots(b, res, period)
			if err != nil {
				return err
			}
			if err := s.repo.ReplaceSlots(ctx, b.ID, slots); err != nil {
				return err
			}
			if b.Slots, err = s.repo.GetSlots(ctx, b.ID); err != nil {
				return err
			}
			touched = append(oldSlots, b.Slots...)
		}
		if repriced && inv != nil && !inv.Status.Settled() {
			if err := s.invoicing.UpdateInvoiceLineItem(ctx, inv.ID, invoiceLine(b)); err != nil {
				return err
			}
		}
		booking = b
		return nil
	})
	if err != nil {
		s.fail("update", err, id)
		return nil, err
	}
	s.succeed("update", events.EventBookingUpdated, booking, touched)
	return booking, nil
}

// Confirm re-runs the availability check, issues an invoice unless one is
// already open, and moves the booking to CONFIRMED.
func (s *BookingService) Confirm(ctx context.Context, id int64) (*models.Booking, error) {
	var booking *models.Booking
	err := s.repo.WithTx(ctx, s.opts.CreateTxTimeout, func(ctx context.Context) error {
		b, err := s.repo.GetBooking(ctx, id)
		if err != nil {
			return err
		}
		if b.Status != models.StatusDraft && b.Status != models.StatusPending {
			return domain.Invariantf("booking %s cannot be confirmed from %s", b.Number, b.Status)
		}

		res, err := resolveResources(ctx, s.repo, b.RentalType, selectorOf(b))
		if err != nil {
			return err
		}
		if err := s.availability.ensureAvailable(ctx, b.RentalType, res, periodOf(b), b.ID); err != nil {
			return err
		}

		inv, err := s.activeInvoice(ctx, b.ID)
		if err != nil {
			return err
		}
		if inv == nil {
			if _, err := s.issueInvoice(ctx, b); err != nil {
				return err
			}
		}
		if err := s.setStatus(ctx, b, models.StatusConfirmed); err != nil {
			return err
		}
		booking = b
		return nil
	})
	if err != nil {
		s.fail("confirm", err, id)
		return nil, err
	}
	s.succeed("confirm", events.EventBookingConfirmed, booking, nil)
	return booking, nil
}

// Submit moves a draft to PENDING.
func (s *BookingService) Submit(ctx context.Context, id int64) (*models.Booking, error) {
	return s.transition(ctx, id, "submit", events.EventBookingSubmitted, models.StatusPending, models.StatusDraft)
}

// Activate marks a confirmed booking as running.
func (s *BookingService) Activate(ctx context.Context, id int64) (*models.Booking, error) {
	return s.transition(ctx, id, "activate", events.EventBookingActivated, models.StatusActive, models.StatusConfirmed)
}

func (s *BookingService) Complete(ctx context.Context, id int64) (*models.Booking, error) {
	return s.transition(ctx, id, "complete", events.EventBookingCompleted, models.StatusCompleted, models.StatusActive)
}

func (s *BookingService) transition(ctx context.Context, id int64, op, event string, to models.Status, from ...models.Status) (*models.Booking, error) {
	var booking *models.Booking
	err := s.repo.WithTx(ctx, s.opts.CreateTxTimeout, func(ctx context.Context) error {
		b, err := s.repo.GetBooking(ctx, id)
		if err != nil {
			return err
		}
		allowed := false
		for _, st := range from {
			allowed = allowed || b.Status == st
		}
		if !allowed {
			return domain.Invariantf("booking %s cannot go from %s to %s", b.Number, b.Status, to)
		}
		if err := s.setStatus(ctx, b, to); err != nil {
			return err
		}
		booking = b
		return nil
	})
	if err != nil {
		s.fail(op, err, id)
		return nil, err
	}
	s.succeed(op, event, booking, nil)
	return booking, nil
}

// Cancel releases the slots, cancels unsettled invoices and marks the
// booking CANCELLED.
func (s *BookingService) Cancel(ctx context.Context, id int64) (*models.Booking, error) {
	var booking *models.Booking
	err := s.repo.WithTx(ctx, s.opts.CreateTxTimeout, func(ctx context.Context) error {
		b, err := s.repo.GetBooking(ctx, id)
		if err != nil {
			return err
		}
		if b.Status.Terminal() {
			return domain.Invariantf("booking %s is already %s", b.Number, b.Status)
		}
		if err := s.repo.CancelSlots(ctx, b.ID); err != nil {
			return err
		}
		if err := s.cancelOpenInvoices(ctx, b.ID); err != nil {
			return err
		}
		if err := s.setStatus(ctx, b, models.StatusCancelled); err != nil {
			return err
		}
		for i := range b.Slots {
			b.Slots[i].Cancelled = true
		}
		booking = b
		return nil
	})
	if err != nil {
		s.fail("cancel", err, id)
		return nil, err
	}
	s.succeed("cancel", events.EventBookingCancelled, booking, booking.Slots)
	return booking, nil
}

// Delete removes a booking and its slots. A paid or partially paid invoice
// blocks the deletion.
func (s *BookingService) Delete(ctx context.Context, id int64) error {
	var booking *models.Booking
	err := s.repo.WithTx(ctx, s.opts.CreateTxTimeout, func(ctx context.Context) error {
		b, err := s.repo.GetBooking(ctx, id)
		if err != nil {
			return err
		}
		invoices, err := s.invoicing.InvoicesForBooking(ctx, b.ID)
		if err != nil {
			return err
		}
		for _, inv := range invoices {
			if inv.Status.Settled() {
				return domain.Invariantf("booking %s has %s invoice %s; refund it first", b.Number, inv.Status, inv.Number)
			}
		}
		if err := s.cancelOpenInvoices(ctx, b.ID); err != nil {
			return err
		}
		if err := s.repo.DeleteBooking(ctx, b.ID); err != nil {
			return err
		}
		booking = b
		return nil
	})
	if err != nil {
		s.fail("delete", err, id)
		return err
	}
	s.succeed("delete", events.EventBookingDeleted, booking, booking.Slots)
	return nil
}

// Extend creates a follow-up booking with the same resource, pricing and
// period shape. A zero start date continues the day after the original ends.
func (s *BookingService) Extend(ctx context.Context, id int64, req models.ExtendRequest) (*models.Booking, error) {
	var booking *models.Booking
	err := s.repo.WithTx(ctx, s.opts.CreateTxTimeout, func(ctx context.Context) error {
		orig, err := s.repo.GetBooking(ctx, id)
		if err != nil {
			return err
		}
		if orig.Status == models.StatusCancelled {
			return domain.Invariantf("booking %s is cancelled and cannot be extended", orig.Number)
		}
		period, err := extendedPeriod(orig, req)
		if err != nil {
			return err
		}
		origID := orig.ID
		booking, err = s.create(ctx, models.BookingRequest{
			RentalType:       orig.RentalType,
			Resource:         selectorOf(orig),
			ClientID:         orig.ClientID,
			Period:           period,
			AdjustedPrice:    orig.AdjustedPrice,
			AdjustmentReason: orig.AdjustmentReason,
			PaymentType:      orig.PaymentType,
			Comment:          orig.Comment,
			IgnoreConflicts:  req.IgnoreConflicts,
		}, &origID)
		return err
	})
	if err != nil {
		s.fail("extend", err, id)
		return nil, err
	}
	s.succeed("extend", events.EventBookingExtended, booking, booking.Slots)
	return booking, nil
}

func extendedPeriod(orig *models.Booking, req models.ExtendRequest) (models.Period, error) {
	p := periodOf(orig)
	if len(req.SelectedDays) > 0 {
		p.Type = models.PeriodSpecificDays
		p.SelectedDays = req.SelectedDays
		p.StartDate, p.EndDate = time.Time{}, time.Time{}
		return p, nil
	}
	if p.Type == models.PeriodSpecificDays {
		return p, domain.Validationf("extending a specific-days booking requires selected days")
	}

	start := req.StartDate
	if start.IsZero() {
		start = timeslot.Day(orig.EndDate).AddDate(0, 0, 1)
	}
	end := req.EndDate
	if end.IsZero() && p.Type == models.PeriodRange {
		end = start.AddDate(0, 0, timeslot.DaysInclusive(orig.StartDate, orig.EndDate)-1)
	}
	p.StartDate, p.EndDate = start, end
	return p, nil
}

// RemoveSlot drops one slot of a DRAFT or CONFIRMED booking and reprices
// the remainder. The last slot cannot be removed, and neither can a slot
// that is only part of a billing unit.
func (s *BookingService) RemoveSlot(ctx context.Context, bookingID, slotID int64) (*models.Booking, error) {
	var (
		booking *models.Booking
		removed models.Slot
	)
	err := s.repo.WithTx(ctx, s.opts.CreateTxTimeout, func(ctx context.Context) error {
		b, err := s.repo.GetBooking(ctx, bookingID)
		if err != nil {
			return err
		}
		if b.Status != models.StatusDraft && b.Status != models.StatusConfirmed {
			return domain.Invariantf("slots of a %s booking cannot be removed", b.Status)
		}
		idx := -1
		for i, sl := range b.Slots {
			if sl.ID == slotID {
				idx = i
			}
		}
		if idx < 0 {
			return domain.NotFoundf("slot %d of booking %s", slotID, b.Number)
		}
		if len(b.Slots) == 1 {
			return domain.Invariantf("cannot remove the last slot of booking %s; delete the booking instead", b.Number)
		}
		inv, err := s.activeInvoice(ctx, b.ID)
		if err != nil {
			return err
		}
		if inv != nil && inv.Status.Settled() {
			return domain.Invariantf("booking %s has %s invoice %s", b.Number, inv.Status, inv.Number)
		}

		removed = b.Slots[idx]
		qty, total, rest, err := pricing.AfterSlotRemoval(b, idx)
		if err != nil {
			return err
		}
		b.Quantity, b.TotalPrice = qty, total
		if err := s.repo.DeleteSlot(ctx, b.ID, slotID); err != nil {
			return err
		}
		if err := s.repo.UpdateSlotPrices(ctx, b.ID, rest); err != nil {
			return err
		}
		if err := s.repo.UpdateBooking(ctx, b); err != nil {
			return err
		}
		if inv != nil {
			if err := s.invoicing.UpdateInvoiceLineItem(ctx, inv.ID, invoiceLine(b)); err != nil {
				return err
			}
		}
		if b.Slots, err = s.repo.GetSlots(ctx, b.ID); err != nil {
			return err
		}
		booking = b
		return nil
	})
	if err != nil {
		s.fail("remove_slot", err, bookingID)
		return nil, err
	}
	s.succeed("remove_slot", events.EventBookingSlotRemoved, booking, []models.Slot{removed})
	return booking, nil
}

func (s *BookingService) Get(ctx context.Context, id int64) (*models.Booking, error) {
	return s.repo.GetBooking(ctx, id)
}

// List returns one page of bookings and the total number of matches.
func (s *BookingService) List(ctx context.Context, filter models.BookingFilter) ([]*models.Booking, int, error) {
	for _, st := range filter.Statuses {
		if !st.Valid() {
			return nil, 0, domain.Validationf("unknown status %q", st)
		}
	}
	if filter.RentalType != "" && !filter.RentalType.Valid() {
		return nil, 0, domain.Validationf("unknown rental type %q", filter.RentalType)
	}
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return nil, 0, domain.Validationf("date range ends before it starts")
	}
	return s.repo.ListBookings(ctx, filter)
}

// GetEditStatus applies the same rules as Update without changing anything.
func (s *BookingService) GetEditStatus(ctx context.Context, id int64) (*models.EditStatus, error) {
	b, err := s.repo.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	inv, err := s.activeInvoice(ctx, b.ID)
	if err != nil {
		return nil, err
	}
	st := &models.EditStatus{Editable: true}
	if inv != nil {
		st.HasInvoice = true
		st.InvoiceID = &inv.ID
		st.InvoiceStatus = &inv.Status
	}
	if reason := editBlocker(b, inv); reason != "" {
		st.Editable = false
		st.Reason = reason
	}
	return st, nil
}

func editBlocker(b *models.Booking, inv *models.Invoice) string {
	if b.Status.Terminal() {
		return fmt.Sprintf("booking is %s", b.Status)
	}
	if inv != nil && inv.Status.Settled() {
		return fmt.Sprintf("invoice %s is %s", inv.Number, inv.Status)
	}
	return ""
}

// activeInvoice returns the newest non-cancelled invoice of the booking.
func (s *BookingService) activeInvoice(ctx context.Context, bookingID int64) (*models.Invoice, error) {
	return activeInvoice(ctx, s.invoicing, bookingID)
}

func activeInvoice(ctx context.Context, invoicing domain.Invoicing, bookingID int64) (*models.Invoice, error) {
	invoices, err := invoicing.InvoicesForBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	for i := len(invoices) - 1; i >= 0; i-- {
		if invoices[i].Status != models.InvoiceCancelled {
			return invoices[i], nil
		}
	}
	return nil, nil
}

func (s *BookingService) issueInvoice(ctx context.Context, b *models.Booking) (*models.InvoiceHandle, error) {
	return issueInvoice(ctx, s.invoicing, b)
}

func issueInvoice(ctx context.Context, invoicing domain.Invoicing, b *models.Booking) (*models.InvoiceHandle, error) {
	line := invoiceLine(b)
	id := b.ID
	return invoicing.CreateInvoice(ctx, b.ClientID, []models.InvoiceItem{{
		Description: line.Description,
		Quantity:    line.Quantity,
		UnitPrice:   line.UnitPrice,
		Amount:      line.Amount,
	}}, &id)
}

func (s *BookingService) cancelOpenInvoices(ctx context.Context, bookingID int64) error {
	invoices, err := s.invoicing.InvoicesForBooking(ctx, bookingID)
	if err != nil {
		return err
	}
	for _, inv := range invoices {
		if inv.Status == models.InvoiceCancelled || inv.Status.Settled() {
			continue
		}
		if err := s.invoicing.CancelInvoice(ctx, inv.ID); err != nil {
			return err
		}
	}
	return nil
}

func invoiceLine(b *models.Booking) models.LineAmounts {
	return models.LineAmounts{
		Description: fmt.Sprintf("Booking %s: %s, %s to %s", b.Number, b.RentalType,
			timeslot.FormatDate(b.StartDate), timeslot.FormatDate(b.EndDate)),
		Quantity:  b.Quantity,
		UnitPrice: b.UnitPrice(),
		Amount:    b.TotalPrice,
	}
}

func (s *BookingService) setStatus(ctx context.Context, b *models.Booking, to models.Status) error {
	if err := s.repo.UpdateBookingStatus(ctx, b.ID, b.Version, to); err != nil {
		return err
	}
	b.Status = to
	b.Version++
	return nil
}

func (s *BookingService) quote(rt models.RentalType, res *resources, p models.Period) (models.PriceQuote, models.Period, error) {
	period, err := pricing.NormalizePeriod(rt, p, s.opts.MaxRangeDays)
	if err != nil {
		return models.PriceQuote{}, period, err
	}
	quote, err := pricing.Calculate(pricing.Input{
		RentalType: rt,
		RoomID:     res.roomID,
		Rooms:      res.rooms,
		Workspaces: res.workspaces,
		Period:     period,
		MaxDays:    s.opts.MaxRangeDays,
	})
	return quote, period, err
}

func (s *BookingService) planSlots(b *models.Booking, res *resources, period models.Period) ([]models.Slot, error) {
	return pricing.PlanSlots(b.RentalType, period, res.roomID, res.workspaces, b.UnitPrice(), b.TotalPrice, s.opts.MaxRangeDays)
}

func validateRequest(req models.BookingRequest) (models.PaymentType, error) {
	if req.ClientID <= 0 {
		return "", domain.Validationf("client is required")
	}
	if err := validateAdjustment(req.AdjustedPrice, req.AdjustmentReason); err != nil {
		return "", err
	}
	switch req.PaymentType {
	case "":
		return models.PaymentPrepaid, nil
	case models.PaymentPrepaid, models.PaymentPostpaid:
		return req.PaymentType, nil
	default:
		return "", domain.Validationf("unknown payment type %q", req.PaymentType)
	}
}

func validateAdjustment(price *float64, reason string) error {
	if price == nil {
		return nil
	}
	if *price < 0 {
		return domain.Validationf("adjusted price cannot be negative")
	}
	if strings.TrimSpace(reason) == "" {
		return domain.Validationf("adjusted price requires a reason")
	}
	return nil
}

func applySchedule(b *models.Booking, rt models.RentalType, sel models.ResourceSelector, p models.Period) {
	b.RentalType = rt
	b.RoomID = nil
	b.WorkspaceIDs = nil
	if rt.IsWorkspace() {
		b.WorkspaceIDs = sortedIDs(sel.WorkspaceIDs)
	} else if sel.RoomID != nil {
		id := *sel.RoomID
		b.RoomID = &id
	}
	b.PeriodType = p.Type
	b.StartDate = p.StartDate
	b.EndDate = p.EndDate
	b.SelectedDays = p.SelectedDays
	b.StartTime, b.EndTime, b.HourlySlots = "", "", nil
	if rt == models.RentalHourly {
		b.StartTime, b.EndTime = p.StartTime, p.EndTime
		b.HourlySlots = p.HourlySlots
	}
}

func applyPrice(b *models.Booking, q models.PriceQuote, adjusted *float64, reason string) {
	b.BasePrice = q.UnitPrice
	b.AdjustedPrice = nil
	b.AdjustmentReason = ""
	if adjusted != nil {
		v := *adjusted
		b.AdjustedPrice = &v
		b.AdjustmentReason = strings.TrimSpace(reason)
	}
	b.Quantity = q.Quantity
	b.TotalPrice = pricing.Total(b.UnitPrice(), q.Quantity)
}

func sameSchedule(b *models.Booking, rt models.RentalType, sel models.ResourceSelector, p models.Period) bool {
	if b.RentalType != rt || b.PeriodType != p.Type {
		return false
	}
	if b.ResourceRoomID() != derefID(sel.RoomID) || !equalIDs(b.WorkspaceIDs, sortedIDs(sel.WorkspaceIDs)) {
		return false
	}
	if !b.StartDate.Equal(p.StartDate) || !b.EndDate.Equal(p.EndDate) || !equalDays(b.SelectedDays, p.SelectedDays) {
		return false
	}
	if rt != models.RentalHourly {
		return true
	}
	if b.StartTime != p.StartTime || b.EndTime != p.EndTime || len(b.HourlySlots) != len(p.HourlySlots) {
		return false
	}
	for i := range b.HourlySlots {
		if b.HourlySlots[i] != p.HourlySlots[i] {
			return false
		}
	}
	return true
}

func selectorOf(b *models.Booking) models.ResourceSelector {
	if b.RentalType.IsWorkspace() {
		return models.ResourceSelector{WorkspaceIDs: append([]int64(nil), b.WorkspaceIDs...)}
	}
	return models.ResourceSelector{RoomID: b.RoomID}
}

func periodOf(b *models.Booking) models.Period {
	return models.Period{
		Type:         b.PeriodType,
		StartDate:    b.StartDate,
		EndDate:      b.EndDate,
		SelectedDays: b.SelectedDays,
		StartTime:    b.StartTime,
		EndTime:      b.EndTime,
		HourlySlots:  b.HourlySlots,
	}
}

func sortedIDs(ids []int64) []int64 {
	out := append([]int64(nil), ids...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func equalIDs(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func equalDays(a, b []time.Time) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

func derefID(id *int64) int64 {
	if id == nil {
		return 0
	}
	return *id
}

// succeed runs the post-commit side effects. None of them can fail the operation.
func (s *BookingService) succeed(op, event string, b *models.Booking, touched []models.Slot) {
	metrics.IncBookingOp(op, "ok")
	s.logger.Info().Str("op", op).Int64("booking_id", b.ID).Str("number", b.Number).
		Str("status", string(b.Status)).Msg("booking operation committed")

	if s.events != nil {
		if err := s.events.PublishJSON(event, events.NewBookingPayload(b)); err != nil {
			s.logger.Warn().Err(err).Str("event", event).Int64("booking_id", b.ID).Msg("failed to publish event")
		}
	}
	s.invalidate(touched)
}

func (s *BookingService) invalidate(slots []models.Slot) {
	if s.invalidator == nil || len(slots) == 0 {
		return
	}
	byRoom := map[int64][]time.Time{}
	seen := map[string]bool{}
	for _, sl := range slots {
		key := fmt.Sprintf("%d/%s", sl.RoomID, timeslot.FormatDate(sl.Date))
		if seen[key] {
			continue
		}
		seen[key] = true
		byRoom[sl.RoomID] = append(byRoom[sl.RoomID], sl.Date)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for roomID, dates := range byRoom {
		s.invalidator.Invalidate(ctx, roomID, dates)
	}
}

func (s *BookingService) fail(op string, err error, bookingID int64) {
	result := outcome(err)
	metrics.IncBookingOp(op, result)

	var ev *zerolog.Event
	switch result {
	case "conflict", "invariant", "invalid", "not_found":
		ev = s.logger.Warn()
	default:
		ev = s.logger.Error()
	}
	ev.Err(err).Str("op", op).Int64("booking_id", bookingID).Msg("booking operation rejected")
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrConflict):
		return "conflict"
	case errors.Is(err, domain.ErrValidation):
		return "invalid"
	case errors.Is(err, domain.ErrInvariant):
		return "invariant"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}
