package kafka

import (
	"context"
	"time"

	"parksphere/pkg/model"
)

const (
	EventBookingCreated   = "booking.created"
	EventBookingCancelled = "booking.cancelled"

	bookingSchemaVersion = "1"
)

// BookingEvent is the payload published after a booking transaction commits.
type BookingEvent struct {
	EventType    string     `json:"event_type"`
	BookingID    string     `json:"booking_id"`
	LotID        string     `json:"lot_id"`
	RequesterID  string     `json:"requester_id"`
	Date         string     `json:"date"`
	StartTime    string     `json:"start_time"`
	EndTime      string     `json:"end_time"`
	Status       string     `json:"status"`
	TotalCost    float64    `json:"total_cost"`
	SlotReleased *bool      `json:"slot_released,omitempty"`
	CancelledAt  *time.Time `json:"cancelled_at,omitempty"`
	OccurredAt   time.Time  `json:"occurred_at"`

	// CorrelationID travels as a message header, not in the payload.
	CorrelationID string `json:"-"`
}

func NewBookingEvent(eventType string, b *model.Booking, occurredAt time.Time) BookingEvent {
	return BookingEvent{
		EventType:   eventType,
		BookingID:   b.ID,
		LotID:       b.LotID,
		RequesterID: b.RequesterID,
		Date:        b.Date,
		StartTime:   b.StartTime,
		EndTime:     b.EndTime,
		Status:      b.Status,
		TotalCost:   b.TotalCost,
		CancelledAt: b.CancelledAt,
		OccurredAt:  occurredAt,
	}
}

// EventPublisher is what the booking engine needs from a message bus.
type EventPublisher interface {
	PublishBookingEvent(ctx context.Context, event BookingEvent) error
}

type BookingEventPublisher struct {
	producer *Producer
	source   string
}

func NewBookingEventPublisher(producer *Producer, source string) *BookingEventPublisher {
	return &BookingEventPublisher{producer: producer, source: source}
}

// PublishBookingEvent keys events by lot so per-lot ordering is kept within
// a partition.
func (p *BookingEventPublisher) PublishBookingEvent(ctx context.Context, event BookingEvent) error {
	msg, err := NewMessage().
		WithKey(event.LotID).
		WithValue(event).
		WithEventType(event.EventType).
		WithSchemaVersion(bookingSchemaVersion).
		WithSource(p.source).
		WithCorrelationID(event.CorrelationID).
		Build()
	if err != nil {
		return err
	}
	return p.producer.Publish(ctx, msg)
}

type NoopPublisher struct{}

func (NoopPublisher) PublishBookingEvent(context.Context, BookingEvent) error {
	return nil
}
