package repository

import (
	"context"
	"time"

	"parksphere/pkg/db"
	"parksphere/pkg/model"
)

const CollectionName = "Bookings"

// BookingRepository is the reservation ledger. Times are "HH:MM" strings and
// dates "YYYY-MM-DD", so lexical comparison matches chronological order.
type BookingRepository interface {
	Create(ctx context.Context, booking *model.Booking) error
	FindByID(ctx context.Context, id string) (*model.Booking, error)
	// FindByRequester returns the requester's bookings, newest first.
	FindByRequester(ctx context.Context, requesterID string) ([]*model.Booking, error)

	// CountOverlapping counts confirmed bookings of the lot on date whose
	// [start_time, end_time) intersects [start, end).
	CountOverlapping(ctx context.Context, lotID, date, start, end string) (int64, error)
	// CountActiveAt counts confirmed bookings with start_time <= at < end_time.
	CountActiveAt(ctx context.Context, lotID, date, at string) (int64, error)

	// MarkCancelled moves a confirmed booking to cancelled. It returns
	// ErrNotCancellable when the booking was not confirmed at update time.
	MarkCancelled(ctx context.Context, id string, at time.Time) error

	ExecuteTransaction(ctx context.Context, fn db.TransactionFunc) error
}
