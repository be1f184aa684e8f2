package models

import "time"

type InvoiceStatus string

const (
	InvoiceIssued        InvoiceStatus = "issued"
	InvoicePartiallyPaid InvoiceStatus = "partially_paid"
	InvoicePaid          InvoiceStatus = "paid"
	InvoiceCancelled     InvoiceStatus = "cancelled"
)

// Settled invoices block edits and deletion of their booking.
func (s InvoiceStatus) Settled() bool {
	return s == InvoicePaid || s == InvoicePartiallyPaid
}

type Invoice struct {
	ID         int64         `json:"id"`
	Number     string        `json:"number"`
	ClientID   int64         `json:"client_id"`
	BookingID  *int64        `json:"booking_id,omitempty"`
	Status     InvoiceStatus `json:"status"`
	Total      float64       `json:"total"`
	PaidAmount float64       `json:"paid_amount"`
	Items      []InvoiceItem `json:"items,omitempty"`
	IssuedAt   time.Time     `json:"issued_at"`
	PaidAt     *time.Time    `json:"paid_at,omitempty"`
}

type InvoiceItem struct {
	ID          int64   `json:"id"`
	InvoiceID   int64   `json:"invoice_id"`
	Description string  `json:"description"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	Amount      float64 `json:"amount"`
}

// InvoiceHandle identifies an invoice created by the invoicing collaborator.
type InvoiceHandle struct {
	ID     int64  `json:"id"`
	Number string `json:"number"`
}

// LineAmounts replaces the single booking line of an unpaid invoice.
type LineAmounts struct {
	Description string
	Quantity    int
	UnitPrice   float64
	Amount      float64
}
