package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	bookingserrors "parksphere/internal/bookings/errors"
	"parksphere/internal/bookings/validator"
	lotserrors "parksphere/internal/lots/errors"
	"parksphere/pkg/config"
	"parksphere/pkg/db"
	apperrors "parksphere/pkg/errors"
	"parksphere/pkg/kafka"
	"parksphere/pkg/logger"
	"parksphere/pkg/middleware"
	"parksphere/pkg/model"
)

type mockBookingRepository struct {
	createFunc           func(ctx context.Context, b *model.Booking) error
	findByIDFunc         func(ctx context.Context, id string) (*model.Booking, error)
	findByRequesterFunc  func(ctx context.Context, requesterID string) ([]*model.Booking, error)
	countOverlappingFunc func(ctx context.Context, lotID, date, start, end string) (int64, error)
	markCancelledFunc    func(ctx context.Context, id string, at time.Time) error
	txCalls              int
}

func (m *mockBookingRepository) Create(ctx context.Context, b *model.Booking) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, b)
	}
	return nil
}

func (m *mockBookingRepository) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return nil, errors.New("unexpected FindByID")
}

func (m *mockBookingRepository) FindByRequester(ctx context.Context, requesterID string) ([]*model.Booking, error) {
	if m.findByRequesterFunc != nil {
		return m.findByRequesterFunc(ctx, requesterID)
	}
	return []*model.Booking{}, nil
}

func (m *mockBookingRepository) CountOverlapping(ctx context.Context, lotID, date, start, end string) (int64, error) {
	if m.countOverlappingFunc != nil {
		return m.countOverlappingFunc(ctx, lotID, date, start, end)
	}
	return 0, nil
}

func (m *mockBookingRepository) CountActiveAt(ctx context.Context, lotID, date, at string) (int64, error) {
	return 0, nil
}

func (m *mockBookingRepository) MarkCancelled(ctx context.Context, id string, at time.Time) error {
	if m.markCancelledFunc != nil {
		return m.markCancelledFunc(ctx, id, at)
	}
	return nil
}

func (m *mockBookingRepository) ExecuteTransaction(ctx context.Context, fn db.TransactionFunc) error {
	m.txCalls++
	return fn(ctx)
}

type mockLotRepository struct {
	lot            *model.Lot
	findCalls      int
	decrementErr   error
	incrementErr   error
	incrementCalls int
}

func (m *mockLotRepository) Create(ctx context.Context, lot *model.Lot) error { return nil }

func (m *mockLotRepository) FindByID(ctx context.Context, id string) (*model.Lot, error) {
	m.findCalls++
	if m.lot == nil || m.lot.ID != id {
		return nil, lotserrors.ErrNotFound
	}
	copied := *m.lot
	return &copied, nil
}

func (m *mockLotRepository) FindByIDForUpdate(ctx context.Context, id string) (*model.Lot, error) {
	return m.FindByID(ctx, id)
}

func (m *mockLotRepository) FindByIDs(ctx context.Context, ids []string) (map[string]*model.Lot, error) {
	result := map[string]*model.Lot{}
	for _, id := range ids {
		if m.lot != nil && m.lot.ID == id {
			result[id] = m.lot
		}
	}
	return result, nil
}

func (m *mockLotRepository) FindAll(ctx context.Context, limit int, offset int64) ([]*model.Lot, error) {
	return nil, nil
}

func (m *mockLotRepository) Count(ctx context.Context) (int64, error) { return 0, nil }

func (m *mockLotRepository) DecrementAvailable(ctx context.Context, id string) (*model.Lot, error) {
	if m.decrementErr != nil {
		return nil, m.decrementErr
	}
	m.lot.AvailableSlots--
	copied := *m.lot
	return &copied, nil
}

func (m *mockLotRepository) IncrementAvailable(ctx context.Context, id string) (*model.Lot, error) {
	m.incrementCalls++
	if m.incrementErr != nil {
		return nil, m.incrementErr
	}
	m.lot.AvailableSlots++
	copied := *m.lot
	return &copied, nil
}

type recordingPublisher struct {
	events []kafka.BookingEvent
	err    error
}

func (p *recordingPublisher) PublishBookingEvent(ctx context.Context, event kafka.BookingEvent) error {
	p.events = append(p.events, event)
	return p.err
}

var fixedNow = time.Date(2030, 1, 1, 8, 0, 0, 0, time.UTC)

func newMockService(repo *mockBookingRepository, lots *mockLotRepository, pub kafka.EventPublisher) BookingService {
	log := logger.Discard()
	cfg := &config.Config{Log: log, DefaultPricePerHour: 20}
	return NewBookingService(repo, lots, validator.NewBookingValidator(log, 12, time.UTC), pub, cfg,
		WithClock(func() time.Time { return fixedNow }))
}

func request(start, end string) *model.BookingRequest {
	return &model.BookingRequest{
		LotID:       "lot-1",
		RequesterID: "user-1",
		Date:        "2030-01-01",
		StartTime:   start,
		EndTime:     end,
	}
}

func assertAppError(t *testing.T, err error, code, message string) {
	t.Helper()
	appErr := apperrors.AsAppError(err)
	if err == nil || appErr.Code != code {
		t.Fatalf("error = %v, want code %s", err, code)
	}
	if message != "" && appErr.Message != message {
		t.Errorf("message = %q, want %q", appErr.Message, message)
	}
}

func TestCreate_InvalidRequestTouchesNoStore(t *testing.T) {
	repo := &mockBookingRepository{}
	lots := &mockLotRepository{lot: &model.Lot{ID: "lot-1", TotalSlots: 1, AvailableSlots: 1}}
	svc := newMockService(repo, lots, nil)

	req := request("09:00", "08:30")
	req.LotID = "missing"

	_, err := svc.Create(context.Background(), req)
	assertAppError(t, err, apperrors.CodeInvalidInput, validator.MsgStartAfterEnd)
	if lots.findCalls != 0 || repo.txCalls != 0 {
		t.Errorf("store was touched: findCalls=%d txCalls=%d", lots.findCalls, repo.txCalls)
	}
}

func TestCreate_MissingFields(t *testing.T) {
	svc := newMockService(&mockBookingRepository{}, &mockLotRepository{}, nil)

	_, err := svc.Create(context.Background(), &model.BookingRequest{LotID: "lot-1", Date: "2030-01-01"})
	assertAppError(t, err, apperrors.CodeInvalidInput, validator.MsgAllFieldsRequired)
}

func TestCreate_LotNotFound(t *testing.T) {
	repo := &mockBookingRepository{}
	svc := newMockService(repo, &mockLotRepository{}, nil)

	_, err := svc.Create(context.Background(), request("09:00", "10:00"))
	assertAppError(t, err, apperrors.CodeNotFound, "Parking lot not found")
	if repo.txCalls != 0 {
		t.Error("transaction should not start for an unknown lot")
	}
}

func TestCreate_LotFullRejectedBeforeTransaction(t *testing.T) {
	repo := &mockBookingRepository{}
	lots := &mockLotRepository{lot: &model.Lot{ID: "lot-1", TotalSlots: 3, AvailableSlots: 0}}
	svc := newMockService(repo, lots, nil)

	_, err := svc.Create(context.Background(), request("09:00", "10:00"))
	assertAppError(t, err, apperrors.CodeConflict, msgLotFull)
	if repo.txCalls != 0 {
		t.Error("transaction should not start when the lot is full")
	}
}

func TestCreate_WindowFullyBooked(t *testing.T) {
	created := false
	repo := &mockBookingRepository{
		countOverlappingFunc: func(ctx context.Context, lotID, date, start, end string) (int64, error) {
			return 2, nil
		},
		createFunc: func(ctx context.Context, b *model.Booking) error {
			created = true
			return nil
		},
	}
	lots := &mockLotRepository{lot: &model.Lot{ID: "lot-1", TotalSlots: 2, AvailableSlots: 1}}
	svc := newMockService(repo, lots, nil)

	_, err := svc.Create(context.Background(), request("09:00", "10:00"))
	assertAppError(t, err, apperrors.CodeConflict,
		"No slots available for this time period. All 2 slots are booked between 09:00 and 10:00.")
	if details := apperrors.AsAppError(err).Details; details["total_slots"] != 2 || details["booked"] != int64(2) {
		t.Errorf("details = %v, want total_slots 2 and booked 2", details)
	}
	if created || lots.lot.AvailableSlots != 1 {
		t.Errorf("nothing should change: created=%v available=%d", created, lots.lot.AvailableSlots)
	}
}

func TestCreate_EventCarriesRequestID(t *testing.T) {
	pub := &recordingPublisher{}
	svc := newMockService(&mockBookingRepository{}, &mockLotRepository{lot: &model.Lot{ID: "lot-1", TotalSlots: 2, AvailableSlots: 2}}, pub)

	ctx := context.WithValue(context.Background(), middleware.RequestIDKey, "req-7")
	if _, err := svc.Create(ctx, request("09:00", "10:00")); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if len(pub.events) != 1 || pub.events[0].CorrelationID != "req-7" {
		t.Errorf("events = %+v, want one event correlated to req-7", pub.events)
	}
}

func TestCreate_LostRace(t *testing.T) {
	repo := &mockBookingRepository{}
	lots := &mockLotRepository{
		lot:          &model.Lot{ID: "lot-1", TotalSlots: 1, AvailableSlots: 1},
		decrementErr: lotserrors.ErrNoAvailableSlot,
	}
	svc := newMockService(repo, lots, nil)

	_, err := svc.Create(context.Background(), request("09:00", "10:00"))
	assertAppError(t, err, apperrors.CodeConflict, msgLostRace)
}

func TestCreate_StoreFailureIsInternal(t *testing.T) {
	repo := &mockBookingRepository{
		createFunc: func(ctx context.Context, b *model.Booking) error {
			return errors.New("disk full")
		},
	}
	lots := &mockLotRepository{lot: &model.Lot{ID: "lot-1", TotalSlots: 1, AvailableSlots: 1}}
	svc := newMockService(repo, lots, nil)

	_, err := svc.Create(context.Background(), request("09:00", "10:00"))
	assertAppError(t, err, apperrors.CodeInternal, "Failed to create booking")
}

func TestCreate_CostAndEvent(t *testing.T) {
	tests := []struct {
		name     string
		rate     float64
		start    string
		end      string
		wantCost float64
	}{
		{name: "lot rate", rate: 12.5, start: "09:00", end: "10:30", wantCost: 18.75},
		{name: "zero rate falls back to default", rate: 0, start: "09:00", end: "11:00", wantCost: 40},
		{name: "rounded to cents", rate: 10, start: "09:00", end: "09:20", wantCost: 3.33},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stored *model.Booking
			repo := &mockBookingRepository{
				createFunc: func(ctx context.Context, b *model.Booking) error {
					stored = b
					return nil
				},
			}
			lots := &mockLotRepository{lot: &model.Lot{ID: "lot-1", Name: "Central", TotalSlots: 2, AvailableSlots: 2, PricePerHour: tt.rate}}
			pub := &recordingPublisher{}
			svc := newMockService(repo, lots, pub)

			view, err := svc.Create(context.Background(), request(tt.start, tt.end))
			if err != nil {
				t.Fatalf("Create() error = %v", err)
			}
			if stored == nil || stored.TotalCost != tt.wantCost {
				t.Fatalf("stored cost = %v, want %v", stored, tt.wantCost)
			}
			if view.Status != model.StatusConfirmed || view.LotName != "Central" {
				t.Errorf("view = %+v", view)
			}
			if view.AvailableSlots == nil || *view.AvailableSlots != 1 || *view.TotalSlots != 2 {
				t.Errorf("capacity = %v/%v, want 1/2", view.AvailableSlots, view.TotalSlots)
			}
			if len(pub.events) != 1 || pub.events[0].EventType != kafka.EventBookingCreated {
				t.Errorf("events = %+v", pub.events)
			}
		})
	}
}

func TestCreate_PublishFailureDoesNotFailBooking(t *testing.T) {
	lots := &mockLotRepository{lot: &model.Lot{ID: "lot-1", TotalSlots: 1, AvailableSlots: 1}}
	svc := newMockService(&mockBookingRepository{}, lots, &recordingPublisher{err: errors.New("broker down")})

	if _, err := svc.Create(context.Background(), request("09:00", "10:00")); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
}

func TestCreate_SanitizesInput(t *testing.T) {
	var stored *model.Booking
	repo := &mockBookingRepository{
		createFunc: func(ctx context.Context, b *model.Booking) error {
			stored = b
			return nil
		},
	}
	lots := &mockLotRepository{lot: &model.Lot{ID: "lot-1", TotalSlots: 1, AvailableSlots: 1}}
	svc := newMockService(repo, lots, nil)

	req := request("9:00", "10:00")
	req.RequesterID = "  user-1 "
	req.VehicleTag = " ab  123 cd "

	if _, err := svc.Create(context.Background(), req); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if stored.RequesterID != "user-1" || stored.VehicleTag != "AB 123 CD" || stored.StartTime != "09:00" {
		t.Errorf("stored = %+v", stored)
	}
}

func confirmedBooking() *model.Booking {
	return &model.Booking{
		ID:          "b-1",
		LotID:       "lot-1",
		RequesterID: "user-1",
		Date:        "2030-01-01",
		StartTime:   "09:00",
		EndTime:     "10:00",
		Status:      model.StatusConfirmed,
	}
}

func TestCancel_StateChecks(t *testing.T) {
	tests := []struct {
		name        string
		status      string
		requesterID string
		wantCode    string
		wantMsg     string
	}{
		{name: "already cancelled", status: model.StatusCancelled, wantCode: apperrors.CodeInvalidState, wantMsg: msgAlreadyCancel},
		{name: "completed", status: model.StatusCompleted, wantCode: apperrors.CodeInvalidState, wantMsg: msgCompleted},
		{name: "cancelled wins over wrong owner", status: model.StatusCancelled, requesterID: "intruder", wantCode: apperrors.CodeInvalidState, wantMsg: msgAlreadyCancel},
		{name: "wrong owner", status: model.StatusConfirmed, requesterID: "intruder", wantCode: apperrors.CodeForbidden, wantMsg: msgNotOwner},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockBookingRepository{
				findByIDFunc: func(ctx context.Context, id string) (*model.Booking, error) {
					b := confirmedBooking()
					b.Status = tt.status
					return b, nil
				},
			}
			svc := newMockService(repo, &mockLotRepository{}, nil)

			_, err := svc.Cancel(context.Background(), "b-1", tt.requesterID)
			assertAppError(t, err, tt.wantCode, tt.wantMsg)
			if repo.txCalls != 0 {
				t.Error("transaction should not start")
			}
		})
	}
}

func TestCancel_LostTransition(t *testing.T) {
	lots := &mockLotRepository{lot: &model.Lot{ID: "lot-1", TotalSlots: 1, AvailableSlots: 0}}
	repo := &mockBookingRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Booking, error) {
			return confirmedBooking(), nil
		},
		markCancelledFunc: func(ctx context.Context, id string, at time.Time) error {
			return bookingserrors.ErrNotCancellable
		},
	}
	svc := newMockService(repo, lots, nil)

	_, err := svc.Cancel(context.Background(), "b-1", "")
	assertAppError(t, err, apperrors.CodeConflict, msgCancelConflict)
	if lots.incrementCalls != 0 {
		t.Error("slot must not be released when the transition was lost")
	}
}

func TestCancel_AtCapacityStillCancels(t *testing.T) {
	lots := &mockLotRepository{
		lot:          &model.Lot{ID: "lot-1", TotalSlots: 1, AvailableSlots: 1},
		incrementErr: lotserrors.ErrSlotsAtCapacity,
	}
	repo := &mockBookingRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Booking, error) {
			return confirmedBooking(), nil
		},
	}
	svc := newMockService(repo, lots, nil)

	view, err := svc.Cancel(context.Background(), "b-1", "user-1")
	if err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	if view.Status != model.StatusCancelled || view.AvailableSlots != nil {
		t.Errorf("view = %+v", view)
	}
}

func TestCancel_NotFound(t *testing.T) {
	repo := &mockBookingRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Booking, error) {
			return nil, fmt.Errorf("%w: %s", bookingserrors.ErrNotFound, id)
		},
	}
	svc := newMockService(repo, &mockLotRepository{}, nil)

	_, err := svc.Cancel(context.Background(), "b-404", "")
	assertAppError(t, err, apperrors.CodeNotFound, "Booking not found")
}

func TestGetByRequester_RequiresID(t *testing.T) {
	svc := newMockService(&mockBookingRepository{}, &mockLotRepository{}, nil)

	_, err := svc.GetByRequester(context.Background(), "   ")
	assertAppError(t, err, apperrors.CodeInvalidInput, "")
}

func TestOccupancy_InvalidInstant(t *testing.T) {
	lots := &mockLotRepository{lot: &model.Lot{ID: "lot-1", TotalSlots: 1}}
	svc := newMockService(&mockBookingRepository{}, lots, nil)

	_, err := svc.Occupancy(context.Background(), "lot-1", "2030-01-01", "25:99")
	assertAppError(t, err, apperrors.CodeInvalidInput, "")
}
