package events

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBus(t *testing.T) {
	bus := NewEventBus(nil)

	var received *Event
	var callCount int

	bus.Subscribe(EventBookingStatusChanged, func(event *Event) error {
		received = event
		callCount++
		return nil
	})

	at := time.Date(2026, 10, 19, 5, 0, 0, 0, time.UTC)
	err := bus.PublishJSON(EventBookingStatusChanged, BookingEventPayload{
		BookingID:   7,
		UserID:      42,
		CRMLeadID:   9001,
		Status:      "confirmed",
		Campus:      "yunusabad",
		ScheduledAt: at,
		ChangedBy:   ChangedByParent,
	})
	require.NoError(t, err)
	require.Equal(t, 1, callCount)
	assert.Equal(t, EventBookingStatusChanged, received.Type)
	assert.False(t, received.CreatedAt.IsZero())

	var decoded BookingEventPayload
	require.NoError(t, received.Decode(&decoded))
	assert.Equal(t, int64(7), decoded.BookingID)
	assert.Equal(t, int64(9001), decoded.CRMLeadID)
	assert.Equal(t, "confirmed", decoded.Status)
	assert.True(t, at.Equal(decoded.ScheduledAt))
}

func TestEventBusMultipleSubscribers(t *testing.T) {
	bus := NewEventBus(nil)
	var count1, count2 int

	bus.Subscribe(EventTourBooked, func(_ *Event) error { count1++; return nil })
	bus.Subscribe(EventTourBooked, func(_ *Event) error { count2++; return nil })

	bus.Publish(&Event{Type: EventTourBooked})

	assert.Equal(t, 1, count1)
	assert.Equal(t, 1, count2)
}

func TestEventBusNoSubscribers(t *testing.T) {
	bus := NewEventBus(nil)
	assert.NotPanics(t, func() {
		bus.Publish(&Event{Type: "nobody_listens"})
	})
}

func TestEventBusHandlerErrorLogged(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	bus := NewEventBus(&logger)

	var second bool
	bus.Subscribe(EventLeadQualified, func(_ *Event) error { return errors.New("queue full") })
	bus.Subscribe(EventLeadQualified, func(_ *Event) error { second = true; return nil })

	require.NoError(t, bus.PublishJSON(EventLeadQualified, LeadEventPayload{UserID: 1}))
	assert.True(t, second)
	assert.Contains(t, buf.String(), "queue full")
	assert.Contains(t, buf.String(), EventLeadQualified)
}

func TestPublishJSONNilBus(t *testing.T) {
	var bus *EventBus
	assert.NoError(t, bus.PublishJSON(EventTourBooked, nil))
}

func TestPublishJSONMarshalError(t *testing.T) {
	bus := NewEventBus(nil)
	assert.Error(t, bus.PublishJSON(EventTourBooked, make(chan int)))
}
