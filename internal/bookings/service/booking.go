package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	bookingserrors "parksphere/internal/bookings/errors"
	"parksphere/internal/bookings/repository"
	"parksphere/internal/bookings/validator"
	lotserrors "parksphere/internal/lots/errors"
	lotsrepository "parksphere/internal/lots/repository"
	"parksphere/pkg/config"
	apperrors "parksphere/pkg/errors"
	"parksphere/pkg/kafka"
	"parksphere/pkg/metrics"
	"parksphere/pkg/middleware"
	"parksphere/pkg/model"
	"parksphere/pkg/sanitizer"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	msgLotFull        = "This parking lot is currently full. No slots available."
	msgWindowBooked   = "No slots available for this time period. All %d slots are booked between %s and %s."
	msgLostRace       = "No parking slots available. Someone may have just booked the last one."
	msgAlreadyCancel  = "This booking is already cancelled"
	msgCompleted      = "Cannot cancel a completed booking"
	msgNotOwner       = "You can only cancel your own bookings"
	msgCancelConflict = "Failed to cancel booking. It may have already been cancelled."

	RefundReleased    = "Slot has been released. Refund will be processed."
	RefundNotReleased = "No refund — booking time has already passed"
)

type BookingService interface {
	Create(ctx context.Context, req *model.BookingRequest) (*model.BookingView, error)
	Cancel(ctx context.Context, id string, requesterID string) (*model.BookingView, error)
	GetByID(ctx context.Context, id string) (*model.BookingView, error)
	GetByRequester(ctx context.Context, requesterID string) ([]*model.BookingView, error)
	Occupancy(ctx context.Context, lotID, date, at string) (*model.Occupancy, error)
}

type Option func(*bookingService)

// WithClock replaces time.Now for past-date and elapsed-start decisions.
func WithClock(now func() time.Time) Option {
	return func(s *bookingService) {
		s.now = now
	}
}

type bookingService struct {
	repo      repository.BookingRepository
	lots      lotsrepository.LotRepository
	validator *validator.BookingValidator
	publisher kafka.EventPublisher
	cfg       *config.Config
	now       func() time.Time
	tracer    trace.Tracer
}

func NewBookingService(
	repo repository.BookingRepository,
	lots lotsrepository.LotRepository,
	validator *validator.BookingValidator,
	publisher kafka.EventPublisher,
	cfg *config.Config,
	opts ...Option,
) BookingService {
	if publisher == nil {
		publisher = kafka.NoopPublisher{}
	}
	s := &bookingService{
		repo:      repo,
		lots:      lots,
		validator: validator,
		publisher: publisher,
		cfg:       cfg,
		now:       time.Now,
		tracer:    otel.Tracer("parksphere/bookings"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create admits a booking. The static available check runs before the
// transaction; inside it the lot is locked, the window's overlap count is
// compared with the lot's capacity, a slot is taken with a conditional
// decrement and the booking row is written. Any failure rolls all of it back.
func (s *bookingService) Create(ctx context.Context, req *model.BookingRequest) (*model.BookingView, error) {
	ctx, span := s.tracer.Start(ctx, "bookings.Create")
	defer span.End()

	s.sanitize(req)
	span.SetAttributes(attribute.String("lot_id", req.LotID))

	now := s.now()
	window, err := s.validator.Validate(req, now)
	if err != nil {
		s.cfg.Log.Warn("Booking validation failed",
			"lot_id", req.LotID,
			"requester_id", req.RequesterID,
			"error", err,
		)
		return nil, s.reject(span, metrics.ReasonInvalid, toAppError(err))
	}

	lot, err := s.lots.FindByID(ctx, req.LotID)
	if err != nil {
		if errors.Is(err, lotserrors.ErrNotFound) {
			return nil, s.reject(span, metrics.ReasonNotFound, lotNotFound(req.LotID))
		}
		s.cfg.Log.Error("Failed to load parking lot", "lot_id", req.LotID, "error", err)
		return nil, s.fail(span, apperrors.Internal("Failed to create booking", err))
	}
	if lot.IsFull() {
		return nil, s.reject(span, metrics.ReasonLotFull, apperrors.Conflict(msgLotFull))
	}

	booking := &model.Booking{
		ID:            uuid.NewString(),
		LotID:         lot.ID,
		RequesterID:   req.RequesterID,
		VehicleTag:    req.VehicleTag,
		Date:          req.Date,
		StartTime:     req.StartTime,
		EndTime:       req.EndTime,
		DurationHours: roundMoney(window.DurationHours),
		Status:        model.StatusConfirmed,
		CreatedAt:     now.UTC().Truncate(time.Millisecond),
	}

	var (
		updated *model.Lot
		reason  string
	)
	err = s.repo.ExecuteTransaction(ctx, func(txCtx context.Context) error {
		updated, reason = nil, ""

		locked, err := s.lots.FindByIDForUpdate(txCtx, lot.ID)
		if err != nil {
			if errors.Is(err, lotserrors.ErrNotFound) {
				reason = metrics.ReasonNotFound
				return lotNotFound(lot.ID)
			}
			return fmt.Errorf("failed to lock parking lot: %w", err)
		}

		overlapping, err := s.repo.CountOverlapping(txCtx, lot.ID, booking.Date, booking.StartTime, booking.EndTime)
		if err != nil {
			return fmt.Errorf("failed to count overlapping bookings: %w", err)
		}
		if overlapping >= int64(locked.TotalSlots) {
			reason = metrics.ReasonWindowBooked
			return apperrors.Conflict(fmt.Sprintf(msgWindowBooked, locked.TotalSlots, booking.StartTime, booking.EndTime)).
				WithDetails(map[string]any{
					"total_slots": locked.TotalSlots,
					"booked":      overlapping,
				})
		}

		updated, err = s.lots.DecrementAvailable(txCtx, lot.ID)
		if err != nil {
			if errors.Is(err, lotserrors.ErrNoAvailableSlot) {
				reason = metrics.ReasonLostRace
				return apperrors.Conflict(msgLostRace)
			}
			return fmt.Errorf("failed to reserve slot: %w", err)
		}

		booking.TotalCost = roundMoney(s.rate(locked) * window.DurationHours)
		if err := s.repo.Create(txCtx, booking); err != nil {
			return fmt.Errorf("failed to record booking: %w", err)
		}
		return nil
	})
	if err != nil {
		if reason != "" {
			s.cfg.Log.Info("Booking rejected",
				"lot_id", lot.ID,
				"requester_id", booking.RequesterID,
				"date", booking.Date,
				"start_time", booking.StartTime,
				"end_time", booking.EndTime,
				"reason", reason,
			)
			return nil, s.reject(span, reason, err)
		}
		s.cfg.Log.Error("Failed to create booking",
			"lot_id", lot.ID,
			"requester_id", booking.RequesterID,
			"error", err,
		)
		return nil, s.fail(span, toTransactionError("Failed to create booking", err))
	}

	metrics.BookingsAdmitted.Inc()
	s.cfg.Log.Info("Booking created successfully",
		"id", booking.ID,
		"lot_id", booking.LotID,
		"requester_id", booking.RequesterID,
		"date", booking.Date,
		"start_time", booking.StartTime,
		"end_time", booking.EndTime,
		"available_slots", updated.AvailableSlots,
	)

	s.publish(ctx, kafka.NewBookingEvent(kafka.EventBookingCreated, booking, now.UTC()))

	return model.NewBookingView(booking, updated).WithCapacity(updated), nil
}

// Cancel moves a confirmed booking to cancelled. The slot goes back to the
// lot only when the booking's start has not yet passed.
func (s *bookingService) Cancel(ctx context.Context, id string, requesterID string) (*model.BookingView, error) {
	ctx, span := s.tracer.Start(ctx, "bookings.Cancel")
	defer span.End()

	id = sanitizer.SanitizeID(id)
	requesterID = sanitizer.SanitizeID(requesterID)
	if id == "" {
		return nil, s.fail(span, apperrors.InvalidInput("Booking ID cannot be empty"))
	}
	span.SetAttributes(attribute.String("booking_id", id))

	booking, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.fail(span, s.lookupError(id, err))
	}

	switch booking.Status {
	case model.StatusCancelled:
		return nil, s.fail(span, apperrors.InvalidState(msgAlreadyCancel))
	case model.StatusCompleted:
		return nil, s.fail(span, apperrors.InvalidState(msgCompleted))
	}

	if requesterID != "" && requesterID != booking.RequesterID {
		s.cfg.Log.Warn("Cancellation by non-owner rejected",
			"id", id,
			"requester_id", requesterID,
		)
		return nil, s.fail(span, apperrors.Forbidden(msgNotOwner))
	}

	now := s.now()
	start, err := s.validator.At(booking.Date, booking.StartTime)
	if err != nil {
		return nil, s.fail(span, apperrors.Internal("Stored booking has an invalid start", err))
	}
	isPast := start.Before(now)
	cancelledAt := now.UTC().Truncate(time.Millisecond)

	var (
		lot      *model.Lot
		released bool
	)
	err = s.repo.ExecuteTransaction(ctx, func(txCtx context.Context) error {
		lot, released = nil, false

		if err := s.repo.MarkCancelled(txCtx, id, cancelledAt); err != nil {
			if errors.Is(err, bookingserrors.ErrNotCancellable) {
				return apperrors.Conflict(msgCancelConflict)
			}
			return fmt.Errorf("failed to mark booking cancelled: %w", err)
		}

		if isPast {
			return nil
		}

		updated, err := s.lots.IncrementAvailable(txCtx, booking.LotID)
		if err != nil {
			if errors.Is(err, lotserrors.ErrSlotsAtCapacity) {
				s.cfg.Log.Warn("Lot already at full capacity on release",
					"id", id,
					"lot_id", booking.LotID,
				)
				return nil
			}
			return fmt.Errorf("failed to release slot: %w", err)
		}
		lot, released = updated, true
		return nil
	})
	if err != nil {
		if !apperrors.IsAppError(err) {
			s.cfg.Log.Error("Failed to cancel booking", "id", id, "error", err)
		}
		return nil, s.fail(span, toTransactionError("Failed to cancel booking", err))
	}

	booking.Status = model.StatusCancelled
	booking.CancelledAt = &cancelledAt

	metrics.ObserveCancellation(released)
	s.cfg.Log.Info("Booking cancelled successfully",
		"id", id,
		"lot_id", booking.LotID,
		"past", isPast,
		"slot_released", released,
	)

	event := kafka.NewBookingEvent(kafka.EventBookingCancelled, booking, now.UTC())
	event.SlotReleased = &released
	s.publish(ctx, event)

	if lot == nil {
		lot = s.displayLot(ctx, booking.LotID)
	}
	view := model.NewBookingView(booking, lot)
	if released {
		view.WithCapacity(lot)
	}
	if isPast {
		view.RefundNote = RefundNotReleased
	} else {
		view.RefundNote = RefundReleased
	}
	return view, nil
}

func (s *bookingService) GetByID(ctx context.Context, id string) (*model.BookingView, error) {
	ctx, span := s.tracer.Start(ctx, "bookings.GetByID")
	defer span.End()

	id = sanitizer.SanitizeID(id)
	if id == "" {
		return nil, s.fail(span, apperrors.InvalidInput("Booking ID cannot be empty"))
	}

	booking, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.fail(span, s.lookupError(id, err))
	}

	return model.NewBookingView(booking, s.displayLot(ctx, booking.LotID)), nil
}

func (s *bookingService) GetByRequester(ctx context.Context, requesterID string) ([]*model.BookingView, error) {
	ctx, span := s.tracer.Start(ctx, "bookings.GetByRequester")
	defer span.End()

	requesterID = sanitizer.SanitizeID(requesterID)
	if requesterID == "" {
		return nil, s.fail(span, apperrors.InvalidInput("Requester ID cannot be empty"))
	}

	bookings, err := s.repo.FindByRequester(ctx, requesterID)
	if err != nil {
		s.cfg.Log.Error("Failed to list bookings", "requester_id", requesterID, "error", err)
		return nil, s.fail(span, apperrors.Internal("Failed to retrieve bookings", err))
	}

	seen := make(map[string]struct{}, len(bookings))
	lotIDs := make([]string, 0, len(bookings))
	for _, b := range bookings {
		if _, ok := seen[b.LotID]; !ok {
			seen[b.LotID] = struct{}{}
			lotIDs = append(lotIDs, b.LotID)
		}
	}

	lots, err := s.lots.FindByIDs(ctx, lotIDs)
	if err != nil {
		s.cfg.Log.Error("Failed to load parking lots", "requester_id", requesterID, "error", err)
		return nil, s.fail(span, apperrors.Internal("Failed to retrieve bookings", err))
	}

	views := make([]*model.BookingView, 0, len(bookings))
	for _, b := range bookings {
		views = append(views, model.NewBookingView(b, lots[b.LotID]))
	}
	return views, nil
}

// Occupancy counts confirmed bookings of the lot active at date/at.
func (s *bookingService) Occupancy(ctx context.Context, lotID, date, at string) (*model.Occupancy, error) {
	ctx, span := s.tracer.Start(ctx, "bookings.Occupancy")
	defer span.End()

	lotID = sanitizer.SanitizeID(lotID)
	date = sanitizer.SanitizeDate(date)
	at = sanitizer.SanitizeClock(at)

	if lotID == "" || date == "" || at == "" {
		return nil, s.fail(span, apperrors.InvalidInput("lot id, date and time are required"))
	}
	if _, err := s.validator.At(date, at); err != nil {
		return nil, s.fail(span, apperrors.InvalidInput("date must be YYYY-MM-DD and time HH:MM"))
	}

	lot, err := s.lots.FindByID(ctx, lotID)
	if err != nil {
		if errors.Is(err, lotserrors.ErrNotFound) {
			return nil, s.fail(span, lotNotFound(lotID))
		}
		return nil, s.fail(span, apperrors.Internal("Failed to retrieve parking lot", err))
	}

	active, err := s.repo.CountActiveAt(ctx, lotID, date, at)
	if err != nil {
		s.cfg.Log.Error("Failed to count active bookings", "lot_id", lotID, "error", err)
		return nil, s.fail(span, apperrors.Internal("Failed to count active bookings", err))
	}

	return &model.Occupancy{
		LotID:      lotID,
		Date:       date,
		Time:       at,
		Active:     active,
		TotalSlots: lot.TotalSlots,
	}, nil
}

func (s *bookingService) sanitize(req *model.BookingRequest) {
	req.LotID = sanitizer.SanitizeID(req.LotID)
	req.RequesterID = sanitizer.SanitizeID(req.RequesterID)
	req.VehicleTag = sanitizer.SanitizeVehicleTag(req.VehicleTag)
	req.Date = sanitizer.SanitizeDate(req.Date)
	req.StartTime = sanitizer.SanitizeClock(req.StartTime)
	req.EndTime = sanitizer.SanitizeClock(req.EndTime)
}

func (s *bookingService) rate(lot *model.Lot) float64 {
	if lot.PricePerHour > 0 {
		return lot.PricePerHour
	}
	return s.cfg.DefaultPricePerHour
}

// displayLot loads the lot for display only; a missing lot leaves the
// display fields empty.
func (s *bookingService) displayLot(ctx context.Context, lotID string) *model.Lot {
	lot, err := s.lots.FindByID(ctx, lotID)
	if err != nil {
		if !errors.Is(err, lotserrors.ErrNotFound) {
			s.cfg.Log.Warn("Failed to load parking lot for display", "lot_id", lotID, "error", err)
		}
		return nil
	}
	return lot
}

func (s *bookingService) lookupError(id string, err error) error {
	if errors.Is(err, bookingserrors.ErrNotFound) {
		return apperrors.NotFoundWithID("Booking", id)
	}
	s.cfg.Log.Error("Failed to get booking by ID", "id", id, "error", err)
	return apperrors.Internal("Failed to retrieve booking", err)
}

func (s *bookingService) publish(ctx context.Context, event kafka.BookingEvent) {
	event.CorrelationID = middleware.RequestIDFromContext(ctx)
	if err := s.publisher.PublishBookingEvent(ctx, event); err != nil {
		s.cfg.Log.Warn("Failed to publish booking event",
			"event_type", event.EventType,
			"booking_id", event.BookingID,
			"error", err,
		)
	}
}

func (s *bookingService) reject(span trace.Span, reason string, err error) error {
	metrics.BookingsRejected.WithLabelValues(reason).Inc()
	span.SetAttributes(attribute.String("rejection_reason", reason))
	return s.fail(span, err)
}

func (s *bookingService) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func lotNotFound(id string) *apperrors.AppError {
	return apperrors.NotFoundWithID("Parking lot", id)
}

func toAppError(err error) error {
	var ruleErr *validator.RuleError
	if errors.As(err, &ruleErr) {
		return apperrors.InvalidInput(ruleErr.Message)
	}
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		return apperrors.Validation("Booking validation failed", map[string]any{
			"fields": []validator.ValidationError(validationErrs),
		})
	}
	return apperrors.Internal("Failed to validate booking", err)
}

func toTransactionError(message string, err error) error {
	if apperrors.IsAppError(err) {
		return apperrors.AsAppError(err)
	}
	return apperrors.Internal(message, err)
}

func roundMoney(x float64) float64 {
	return math.Round(x*100) / 100
}
