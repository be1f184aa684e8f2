package events

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"roombook/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBus() *EventBus {
	logger := zerolog.Nop()
	return NewEventBus(&logger)
}

func TestEventBus(t *testing.T) {
	bus := newBus()

	var received *Event
	var callCount int
	bus.Subscribe(EventBookingCreated, func(event *Event) error {
		received = event
		callCount++
		return nil
	})

	require.NoError(t, bus.PublishJSON(EventBookingCreated, map[string]string{"foo": "bar"}))
	assert.Equal(t, 1, callCount)
	require.NotNil(t, received)
	assert.Equal(t, EventBookingCreated, received.Type)
	assert.NotEmpty(t, received.ID)

	var decoded map[string]string
	require.NoError(t, json.Unmarshal(received.Payload, &decoded))
	assert.Equal(t, "bar", decoded["foo"])
}

func TestEventBusHandlerErrorsAreContained(t *testing.T) {
	bus := newBus()
	var second int
	bus.Subscribe("event", func(_ *Event) error { return errors.New("boom") })
	bus.Subscribe("event", func(_ *Event) error { second++; return nil })

	bus.Publish(&Event{Type: "event"})
	assert.Equal(t, 1, second)
}

func TestSubscribeAll(t *testing.T) {
	bus := newBus()
	seen := map[string]int{}
	bus.SubscribeAll(func(e *Event) error { seen[e.Type]++; return nil })

	for _, typ := range LifecycleEvents {
		bus.Publish(&Event{Type: typ})
	}
	bus.Publish(&Event{Type: "unrelated"})

	assert.Len(t, seen, len(LifecycleEvents))
	assert.Zero(t, seen["unrelated"])
}

func TestNilBusPublish(t *testing.T) {
	var bus *EventBus
	assert.NoError(t, bus.PublishJSON(EventBookingCreated, nil))
}

func TestBookingPayload(t *testing.T) {
	room := int64(3)
	b := &models.Booking{
		ID:         12,
		Number:     "0000012",
		ClientID:   4,
		RentalType: models.RentalRoomDaily,
		RoomID:     &room,
		Status:     models.StatusConfirmed,
		StartDate:  time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		EndDate:    time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC),
		TotalPrice: 18000,
	}
	p := NewBookingPayload(b)
	assert.Equal(t, "2025-03-01", p.StartDate)
	assert.Equal(t, "2025-03-03", p.EndDate)
	assert.NotEmpty(t, p.EventID)

	event, err := NewJSONEvent(EventBookingConfirmed, p)
	require.NoError(t, err)
	assert.Equal(t, p.EventID, event.ID)

	var decoded BookingEventPayload
	require.NoError(t, json.Unmarshal(event.Payload, &decoded))
	assert.Equal(t, "0000012", decoded.Number)
	assert.Equal(t, models.StatusConfirmed, decoded.Status)
}
