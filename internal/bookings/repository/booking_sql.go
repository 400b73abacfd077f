package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	bookingserrors "parksphere/internal/bookings/errors"
	"parksphere/pkg/db"
	sqldb "parksphere/pkg/db/sql"
	"parksphere/pkg/model"
)

const (
	TableName      = "bookings"
	bookingColumns = "id, lot_id, requester_id, vehicle_tag, date, start_time, end_time, duration_hours, total_cost, status, created_at, cancelled_at"
)

type sqlBookingRepository struct {
	db *sqldb.DB
}

func NewSQLBookingRepository(db *sqldb.DB) BookingRepository {
	return &sqlBookingRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(row rowScanner) (*model.Booking, error) {
	var (
		b           model.Booking
		cancelledAt sql.NullTime
	)
	err := row.Scan(
		&b.ID,
		&b.LotID,
		&b.RequesterID,
		&b.VehicleTag,
		&b.Date,
		&b.StartTime,
		&b.EndTime,
		&b.DurationHours,
		&b.TotalCost,
		&b.Status,
		&b.CreatedAt,
		&cancelledAt,
	)
	if err != nil {
		return nil, err
	}
	if cancelledAt.Valid {
		t := cancelledAt.Time
		b.CancelledAt = &t
	}
	return &b, nil
}

func (r *sqlBookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	if booking.CreatedAt.IsZero() {
		booking.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	}

	var cancelledAt sql.NullTime
	if booking.CancelledAt != nil {
		cancelledAt = sql.NullTime{Time: *booking.CancelledAt, Valid: true}
	}

	query := r.db.Dialect().Rebind(`INSERT INTO ` + TableName + ` (` + bookingColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := r.db.Executor(ctx).ExecContext(ctx, query,
		booking.ID,
		booking.LotID,
		booking.RequesterID,
		booking.VehicleTag,
		booking.Date,
		booking.StartTime,
		booking.EndTime,
		booking.DurationHours,
		booking.TotalCost,
		booking.Status,
		booking.CreatedAt,
		cancelledAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}
	return nil
}

func (r *sqlBookingRepository) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	query := r.db.Dialect().Rebind(`SELECT ` + bookingColumns + ` FROM ` + TableName + ` WHERE id = ?`)

	booking, err := scanBooking(r.db.Executor(ctx).QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", bookingserrors.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to find booking: %w", err)
	}
	return booking, nil
}

func (r *sqlBookingRepository) FindByRequester(ctx context.Context, requesterID string) ([]*model.Booking, error) {
	query := r.db.Dialect().Rebind(`SELECT ` + bookingColumns + ` FROM ` + TableName +
		` WHERE requester_id = ? ORDER BY created_at DESC, id DESC`)

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, requesterID)
	if err != nil {
		return nil, fmt.Errorf("failed to query bookings: %w", err)
	}
	defer rows.Close()

	bookings := []*model.Booking{}
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to decode booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate bookings: %w", err)
	}
	return bookings, nil
}

func (r *sqlBookingRepository) CountOverlapping(ctx context.Context, lotID, date, start, end string) (int64, error) {
	return r.count(ctx,
		`lot_id = ? AND date = ? AND status = ? AND start_time < ? AND end_time > ?`,
		lotID, date, model.StatusConfirmed, end, start,
	)
}

func (r *sqlBookingRepository) CountActiveAt(ctx context.Context, lotID, date, at string) (int64, error) {
	return r.count(ctx,
		`lot_id = ? AND date = ? AND status = ? AND start_time <= ? AND end_time > ?`,
		lotID, date, model.StatusConfirmed, at, at,
	)
}

func (r *sqlBookingRepository) count(ctx context.Context, where string, args ...any) (int64, error) {
	query := r.db.Dialect().Rebind(`SELECT COUNT(*) FROM ` + TableName + ` WHERE ` + where)

	var count int64
	if err := r.db.Executor(ctx).QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count bookings: %w", err)
	}
	return count, nil
}

func (r *sqlBookingRepository) MarkCancelled(ctx context.Context, id string, at time.Time) error {
	query := r.db.Dialect().Rebind(`UPDATE ` + TableName + ` SET status = ?, cancelled_at = ? WHERE id = ? AND status = ?`)

	res, err := r.db.Executor(ctx).ExecContext(ctx, query, model.StatusCancelled, at, id, model.StatusConfirmed)
	if err != nil {
		return fmt.Errorf("failed to cancel booking: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return bookingserrors.ErrNotCancellable
	}
	return nil
}

func (r *sqlBookingRepository) ExecuteTransaction(ctx context.Context, fn db.TransactionFunc) error {
	return r.db.ExecuteTransaction(ctx, fn)
}
