package service

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"parksphere/internal/bookings/repository"
	"parksphere/internal/bookings/validator"
	lotsrepository "parksphere/internal/lots/repository"
	sqlmigration "parksphere/internal/migrations/sql"
	"parksphere/pkg/config"
	sqldb "parksphere/pkg/db/sql"
	apperrors "parksphere/pkg/errors"
	"parksphere/pkg/logger"
	"parksphere/pkg/model"
)

// engine runs the service against the SQL repositories on a temporary
// SQLite database with a controllable clock.
type engine struct {
	svc      BookingService
	lots     lotsrepository.LotRepository
	bookings repository.BookingRepository
	mu       sync.Mutex
	now      time.Time
}

func (e *engine) clock() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.now
}

func (e *engine) setNow(t time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.now = t
}

func newEngine(t *testing.T) *engine {
	t.Helper()
	ctx := context.Background()

	conn, err := sqldb.Open(ctx, sqldb.Config{
		Driver: sqldb.DialectSQLite,
		DSN:    sqldb.SQLiteDSN(filepath.Join(t.TempDir(), "engine.db")),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	log := logger.Discard()
	if err := sqlmigration.Apply(ctx, conn, log); err != nil {
		t.Fatalf("apply schema: %v", err)
	}

	e := &engine{
		lots:     lotsrepository.NewSQLLotRepository(conn),
		bookings: repository.NewSQLBookingRepository(conn),
		now:      time.Date(2030, 1, 1, 8, 0, 0, 0, time.UTC),
	}
	cfg := &config.Config{Log: log, DefaultPricePerHour: 20}
	e.svc = NewBookingService(e.bookings, e.lots, validator.NewBookingValidator(log, 12, time.UTC), nil, cfg,
		WithClock(e.clock))
	return e
}

func (e *engine) addLot(t *testing.T, id string, total, available int) {
	t.Helper()
	lot := &model.Lot{ID: id, Name: "Lot " + id, TotalSlots: total, AvailableSlots: available, PricePerHour: 10}
	if err := e.lots.Create(context.Background(), lot); err != nil {
		t.Fatalf("create lot: %v", err)
	}
}

func (e *engine) available(t *testing.T, id string) int {
	t.Helper()
	lot, err := e.lots.FindByID(context.Background(), id)
	if err != nil {
		t.Fatalf("find lot: %v", err)
	}
	if lot.AvailableSlots < 0 || lot.AvailableSlots > lot.TotalSlots {
		t.Fatalf("capacity invariant broken: available=%d total=%d", lot.AvailableSlots, lot.TotalSlots)
	}
	return lot.AvailableSlots
}

func (e *engine) book(lotID, requester, start, end string) (*model.BookingView, error) {
	return e.svc.Create(context.Background(), &model.BookingRequest{
		LotID:       lotID,
		RequesterID: requester,
		Date:        "2030-01-01",
		StartTime:   start,
		EndTime:     end,
	})
}

func TestEngine_SingleSlotScenario(t *testing.T) {
	e := newEngine(t)
	e.addLot(t, "lot-1", 1, 1)

	a, err := e.book("lot-1", "alice", "09:00", "11:00")
	if err != nil {
		t.Fatalf("book A: %v", err)
	}
	if *a.AvailableSlots != 0 || e.available(t, "lot-1") != 0 {
		t.Fatalf("available after A = %d, want 0", *a.AvailableSlots)
	}

	_, err = e.book("lot-1", "bob", "10:00", "12:00")
	assertAppError(t, err, apperrors.CodeConflict, "")

	_, err = e.book("lot-1", "carol", "11:00", "13:00")
	assertAppError(t, err, apperrors.CodeConflict, msgLotFull)

	if got := e.available(t, "lot-1"); got != 0 {
		t.Errorf("available = %d, want 0", got)
	}
}

func TestEngine_OverlapRuleIsHalfOpen(t *testing.T) {
	e := newEngine(t)
	e.addLot(t, "lot-1", 1, 1)

	// A booking recorded outside the engine leaves the live counter at 1,
	// so only the window check stands between a request and the slot.
	seeded := &model.Booking{
		ID: "seed", LotID: "lot-1", RequesterID: "alice", Date: "2030-01-01",
		StartTime: "09:00", EndTime: "11:00", DurationHours: 2, TotalCost: 20,
		Status: model.StatusConfirmed,
	}
	if err := e.bookings.Create(context.Background(), seeded); err != nil {
		t.Fatalf("seed booking: %v", err)
	}

	_, err := e.book("lot-1", "bob", "10:00", "12:00")
	assertAppError(t, err, apperrors.CodeConflict,
		"No slots available for this time period. All 1 slots are booked between 10:00 and 12:00.")
	if got := e.available(t, "lot-1"); got != 1 {
		t.Fatalf("rejected request changed available to %d", got)
	}

	if _, err := e.book("lot-1", "carol", "11:00", "13:00"); err != nil {
		t.Fatalf("adjacent window should be admitted: %v", err)
	}
	if got := e.available(t, "lot-1"); got != 0 {
		t.Errorf("available = %d, want 0", got)
	}
}

func TestEngine_CancelBeforeStartReleasesSlot(t *testing.T) {
	e := newEngine(t)
	e.addLot(t, "lot-1", 1, 1)

	a, err := e.book("lot-1", "alice", "09:00", "11:00")
	if err != nil {
		t.Fatalf("book: %v", err)
	}

	view, err := e.svc.Cancel(context.Background(), a.ID, "alice")
	if err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	if view.RefundNote != RefundReleased {
		t.Errorf("RefundNote = %q, want %q", view.RefundNote, RefundReleased)
	}
	if view.AvailableSlots == nil || *view.AvailableSlots != 1 {
		t.Errorf("view available = %v, want 1", view.AvailableSlots)
	}
	if view.CancelledAt == nil {
		t.Error("expected cancelled_at")
	}
	if got := e.available(t, "lot-1"); got != 1 {
		t.Errorf("available = %d, want 1", got)
	}

	stored, err := e.svc.GetByID(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if stored.Status != model.StatusCancelled || stored.CancelledAt == nil {
		t.Errorf("stored = %+v", stored.Booking)
	}
}

func TestEngine_CancelAfterStartKeepsSlot(t *testing.T) {
	e := newEngine(t)
	e.addLot(t, "lot-1", 1, 1)

	a, err := e.book("lot-1", "alice", "09:00", "11:00")
	if err != nil {
		t.Fatalf("book: %v", err)
	}

	e.setNow(time.Date(2030, 1, 1, 9, 30, 0, 0, time.UTC))

	view, err := e.svc.Cancel(context.Background(), a.ID, "")
	if err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	if view.RefundNote != RefundNotReleased {
		t.Errorf("RefundNote = %q, want %q", view.RefundNote, RefundNotReleased)
	}
	if view.AvailableSlots != nil {
		t.Errorf("available should be absent when no slot was released")
	}
	if got := e.available(t, "lot-1"); got != 0 {
		t.Errorf("available = %d, want 0", got)
	}
}

func TestEngine_CancelTwiceNeverDoubleReleases(t *testing.T) {
	e := newEngine(t)
	e.addLot(t, "lot-1", 2, 2)

	a, err := e.book("lot-1", "alice", "09:00", "11:00")
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	if _, err := e.svc.Cancel(context.Background(), a.ID, ""); err != nil {
		t.Fatalf("first cancel: %v", err)
	}

	_, err = e.svc.Cancel(context.Background(), a.ID, "")
	assertAppError(t, err, apperrors.CodeInvalidState, msgAlreadyCancel)

	if got := e.available(t, "lot-1"); got != 2 {
		t.Errorf("available = %d, want 2", got)
	}
}

func TestEngine_ConcurrentCancelsReleaseOnce(t *testing.T) {
	e := newEngine(t)
	e.addLot(t, "lot-1", 2, 2)

	a, err := e.book("lot-1", "alice", "09:00", "11:00")
	if err != nil {
		t.Fatalf("book: %v", err)
	}

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = e.svc.Cancel(context.Background(), a.ID, "")
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		if !apperrors.HasCode(err, apperrors.CodeConflict) && !apperrors.HasCode(err, apperrors.CodeInvalidState) {
			t.Errorf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Errorf("successful cancels = %d, want 1", succeeded)
	}
	if got := e.available(t, "lot-1"); got != 2 {
		t.Errorf("available = %d, want 2", got)
	}
}

func TestEngine_ConcurrentAdmissionLastSlot(t *testing.T) {
	e := newEngine(t)
	e.addLot(t, "lot-1", 1, 1)

	const n = 12
	var wg sync.WaitGroup
	errs := make([]error, n)
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			window := fmt.Sprintf("%02d:00", 8+i%4)
			end := fmt.Sprintf("%02d:30", 8+i%4)
			_, errs[i] = e.book("lot-1", fmt.Sprintf("user-%d", i), window, end)
		}(i)
	}
	close(start)
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		if !apperrors.HasCode(err, apperrors.CodeConflict) {
			t.Errorf("loser got %v, want CONFLICT", err)
		}
	}
	if succeeded != 1 {
		t.Errorf("admitted = %d, want exactly 1", succeeded)
	}
	if got := e.available(t, "lot-1"); got != 0 {
		t.Errorf("available = %d, want 0", got)
	}
}

func TestEngine_ConcurrentAdmissionNoOversell(t *testing.T) {
	e := newEngine(t)
	e.addLot(t, "lot-1", 3, 3)

	const n = 10
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = e.book("lot-1", fmt.Sprintf("user-%d", i), "09:00", "10:00")
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		}
	}
	if succeeded != 3 {
		t.Errorf("admitted = %d, want 3", succeeded)
	}

	active, err := e.bookings.CountActiveAt(context.Background(), "lot-1", "2030-01-01", "09:30")
	if err != nil {
		t.Fatalf("CountActiveAt() error = %v", err)
	}
	if active != 3 {
		t.Errorf("active at 09:30 = %d, want 3", active)
	}
}

type failingCreateRepository struct {
	repository.BookingRepository
}

func (failingCreateRepository) Create(ctx context.Context, b *model.Booking) error {
	return fmt.Errorf("constraint violation")
}

func TestEngine_FailedInsertRollsBackDecrement(t *testing.T) {
	e := newEngine(t)
	e.addLot(t, "lot-1", 1, 1)

	log := logger.Discard()
	svc := NewBookingService(failingCreateRepository{e.bookings}, e.lots,
		validator.NewBookingValidator(log, 12, time.UTC), nil,
		&config.Config{Log: log}, WithClock(e.clock))

	_, err := svc.Create(context.Background(), &model.BookingRequest{
		LotID: "lot-1", RequesterID: "alice", Date: "2030-01-01", StartTime: "09:00", EndTime: "10:00",
	})
	assertAppError(t, err, apperrors.CodeInternal, "")

	if got := e.available(t, "lot-1"); got != 1 {
		t.Errorf("available after rollback = %d, want 1", got)
	}
}

func TestEngine_RequesterBookingsNewestFirst(t *testing.T) {
	e := newEngine(t)
	e.addLot(t, "lot-1", 5, 5)

	first, err := e.book("lot-1", "alice", "09:00", "10:00")
	if err != nil {
		t.Fatalf("book first: %v", err)
	}
	e.setNow(e.clock().Add(time.Minute))
	second, err := e.book("lot-1", "alice", "12:00", "13:00")
	if err != nil {
		t.Fatalf("book second: %v", err)
	}
	if _, err := e.book("lot-1", "bob", "12:00", "13:00"); err != nil {
		t.Fatalf("book other requester: %v", err)
	}

	views, err := e.svc.GetByRequester(context.Background(), "alice")
	if err != nil {
		t.Fatalf("GetByRequester() error = %v", err)
	}
	if len(views) != 2 || views[0].ID != second.ID || views[1].ID != first.ID {
		t.Fatalf("order = %v", views)
	}
	if views[0].LotName != "Lot lot-1" || views[0].PricePerHour != 10 {
		t.Errorf("lot display fields missing: %+v", views[0])
	}
}

func TestEngine_Occupancy(t *testing.T) {
	e := newEngine(t)
	e.addLot(t, "lot-1", 3, 3)

	for _, w := range [][2]string{{"09:00", "11:00"}, {"10:00", "12:00"}, {"11:00", "13:00"}} {
		if _, err := e.book("lot-1", "alice", w[0], w[1]); err != nil {
			t.Fatalf("book %v: %v", w, err)
		}
	}

	tests := map[string]int64{"08:59": 0, "09:00": 1, "10:30": 2, "11:00": 2, "12:59": 1, "13:00": 0}
	for at, want := range tests {
		occ, err := e.svc.Occupancy(context.Background(), "lot-1", "2030-01-01", at)
		if err != nil {
			t.Fatalf("Occupancy(%s) error = %v", at, err)
		}
		if occ.Active != want || occ.TotalSlots != 3 {
			t.Errorf("Occupancy(%s) = %d/%d, want %d/3", at, occ.Active, occ.TotalSlots, want)
		}
	}
}
