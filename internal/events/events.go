// Package events is the in-process bus booking lifecycle transitions are
// published on once they commit.
package events

import (
	"encoding/json"
	"sync"
	"time"

	"roombook/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	EventBookingCreated     = "booking.created"
	EventBookingUpdated     = "booking.updated"
	EventBookingSubmitted   = "booking.submitted"
	EventBookingConfirmed   = "booking.confirmed"
	EventBookingActivated   = "booking.activated"
	EventBookingCompleted   = "booking.completed"
	EventBookingCancelled   = "booking.cancelled"
	EventBookingDeleted     = "booking.deleted"
	EventBookingExtended    = "booking.extended"
	EventBookingSlotRemoved = "booking.slot_removed"
)

// LifecycleEvents lists every event type the booking service emits.
var LifecycleEvents = []string{
	EventBookingCreated,
	EventBookingUpdated,
	EventBookingSubmitted,
	EventBookingConfirmed,
	EventBookingActivated,
	EventBookingCompleted,
	EventBookingCancelled,
	EventBookingDeleted,
	EventBookingExtended,
	EventBookingSlotRemoved,
}

// BookingEventPayload is the booking snapshot sent to event consumers.
type BookingEventPayload struct {
	EventID        string             `json:"event_id"`
	BookingID      int64              `json:"booking_id"`
	Number         string             `json:"number"`
	ClientID       int64              `json:"client_id"`
	ClientName     string             `json:"client_name,omitempty"`
	RentalType     models.RentalType  `json:"rental_type"`
	RoomID         *int64             `json:"room_id,omitempty"`
	WorkspaceIDs   []int64            `json:"workspace_ids,omitempty"`
	Status         models.Status      `json:"status"`
	StartDate      string             `json:"start_date"`
	EndDate        string             `json:"end_date"`
	TotalPrice     float64            `json:"total_price"`
	PaymentType    models.PaymentType `json:"payment_type"`
	ExtendedFromID *int64             `json:"extended_from_id,omitempty"`
	InvoiceNumber  string             `json:"invoice_number,omitempty"`
	OccurredAt     time.Time          `json:"occurred_at"`
}

// NewBookingPayload snapshots b under a fresh event id.
func NewBookingPayload(b *models.Booking) BookingEventPayload {
	return BookingEventPayload{
		EventID:        uuid.NewString(),
		BookingID:      b.ID,
		Number:         b.Number,
		ClientID:       b.ClientID,
		ClientName:     b.ClientName,
		RentalType:     b.RentalType,
		RoomID:         b.RoomID,
		WorkspaceIDs:   b.WorkspaceIDs,
		Status:         b.Status,
		StartDate:      b.StartDate.Format("2006-01-02"),
		EndDate:        b.EndDate.Format("2006-01-02"),
		TotalPrice:     b.TotalPrice,
		PaymentType:    b.PaymentType,
		ExtendedFromID: b.ExtendedFromID,
		OccurredAt:     time.Now().UTC(),
	}
}

// Event represents a lightweight domain event.
type Event struct {
	ID        string
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
	logger      zerolog.Logger
}

func NewEventBus(logger *zerolog.Logger) *EventBus {
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "events").Logger()
	}
	return &EventBus{subscribers: make(map[string][]EventHandler), logger: l}
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// SubscribeAll registers handler for every lifecycle event.
func (b *EventBus) SubscribeAll(handler EventHandler) {
	for _, t := range LifecycleEvents {
		b.Subscribe(t, handler)
	}
}

// Publish notifies subscribers of the event type. Handler errors are logged
// and never reach the publisher.
func (b *EventBus) Publish(event *Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}

	for _, handler := range handlers {
		if err := handler(event); err != nil {
			b.logger.Warn().Err(err).Str("event", event.Type).Str("event_id", event.ID).Msg("event handler failed")
		}
	}
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	event, err := NewJSONEvent(eventType, payload)
	if err != nil {
		return err
	}
	b.Publish(&event)
	return nil
}

// NewJSONEvent builds an Event with JSON payload for manual publishing.
func NewJSONEvent(eventType string, payload interface{}) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}

	id := uuid.NewString()
	if p, ok := payload.(BookingEventPayload); ok && p.EventID != "" {
		id = p.EventID
	}
	return Event{ID: id, Type: eventType, Payload: raw, CreatedAt: time.Now()}, nil
}
