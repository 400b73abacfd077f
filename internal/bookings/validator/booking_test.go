package validator

import (
	"errors"
	"testing"
	"time"

	"parksphere/pkg/logger"
	"parksphere/pkg/model"
)

var testNow = time.Date(2030, 6, 15, 14, 0, 0, 0, time.UTC)

func validRequest() *model.BookingRequest {
	return &model.BookingRequest{
		LotID:       "lot-1",
		RequesterID: "user-1",
		Date:        "2030-06-15",
		StartTime:   "09:00",
		EndTime:     "11:00",
	}
}

func TestValidate_Order(t *testing.T) {
	v := NewBookingValidator(logger.Discard(), 12, time.UTC)

	tests := []struct {
		name    string
		mutate  func(r *model.BookingRequest)
		wantMsg string
	}{
		{
			name:    "missing requester wins over past date",
			mutate:  func(r *model.BookingRequest) { r.RequesterID = ""; r.Date = "2020-01-01" },
			wantMsg: MsgAllFieldsRequired,
		},
		{
			name:    "past date wins over inverted range",
			mutate:  func(r *model.BookingRequest) { r.Date = "2030-06-14"; r.StartTime = "12:00"; r.EndTime = "10:00" },
			wantMsg: MsgPastDate,
		},
		{
			name:    "end before start",
			mutate:  func(r *model.BookingRequest) { r.EndTime = "08:30" },
			wantMsg: MsgStartAfterEnd,
		},
		{
			name:    "equal start and end",
			mutate:  func(r *model.BookingRequest) { r.EndTime = "09:00" },
			wantMsg: MsgStartAfterEnd,
		},
		{
			name:    "twelve and a half hours",
			mutate:  func(r *model.BookingRequest) { r.EndTime = "21:30" },
			wantMsg: "Maximum booking duration is 12 hours",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(req)

			_, err := v.Validate(req, testNow)
			var ruleErr *RuleError
			if !errors.As(err, &ruleErr) {
				t.Fatalf("Validate() error = %v, want RuleError", err)
			}
			if ruleErr.Message != tt.wantMsg {
				t.Errorf("message = %q, want %q", ruleErr.Message, tt.wantMsg)
			}
		})
	}
}

func TestValidate_TodayIsNotPast(t *testing.T) {
	v := NewBookingValidator(logger.Discard(), 12, time.UTC)

	// The start already elapsed today, but only the date is compared.
	window, err := v.Validate(validRequest(), testNow)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if window.DurationHours != 2 {
		t.Errorf("DurationHours = %v, want 2", window.DurationHours)
	}
}

func TestValidate_ExactlyMaxDuration(t *testing.T) {
	v := NewBookingValidator(logger.Discard(), 12, time.UTC)
	req := validRequest()
	req.StartTime, req.EndTime = "08:00", "20:00"

	window, err := v.Validate(req, testNow)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if window.DurationHours != 12 {
		t.Errorf("DurationHours = %v, want 12", window.DurationHours)
	}
}

func TestValidate_FractionalDuration(t *testing.T) {
	v := NewBookingValidator(logger.Discard(), 12, time.UTC)
	req := validRequest()
	req.StartTime, req.EndTime = "09:15", "10:00"

	window, err := v.Validate(req, testNow)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if window.DurationHours != 0.75 {
		t.Errorf("DurationHours = %v, want 0.75", window.DurationHours)
	}
}

func TestValidate_Formats(t *testing.T) {
	v := NewBookingValidator(logger.Discard(), 12, time.UTC)

	tests := []struct {
		name      string
		mutate    func(r *model.BookingRequest)
		wantField string
	}{
		{"bad date", func(r *model.BookingRequest) { r.Date = "15/06/2030" }, "Date"},
		{"bad start", func(r *model.BookingRequest) { r.StartTime = "9am" }, "StartTime"},
		{"bad end", func(r *model.BookingRequest) { r.EndTime = "25:00" }, "EndTime"},
		{"long vehicle tag", func(r *model.BookingRequest) { r.VehicleTag = "ABCDEFGHIJKLMNOPQRSTUVWXYZ" }, "VehicleTag"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(req)

			_, err := v.Validate(req, testNow)
			var verrs ValidationErrors
			if !errors.As(err, &verrs) {
				t.Fatalf("Validate() error = %v, want ValidationErrors", err)
			}
			if verrs[0].Field != tt.wantField {
				t.Errorf("Field = %s, want %s", verrs[0].Field, tt.wantField)
			}
		})
	}
}

func TestAt_UsesConfiguredLocation(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	v := NewBookingValidator(logger.Discard(), 12, loc)

	at, err := v.At("2030-06-15", "09:00")
	if err != nil {
		t.Fatalf("At() error = %v", err)
	}
	if want := time.Date(2030, 6, 15, 7, 0, 0, 0, time.UTC); !at.Equal(want) {
		t.Errorf("At() = %v, want %v", at, want)
	}
}

func TestValidate_DurationIsWallClockOnDSTDays(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("time zone data unavailable: %v", err)
	}
	v := NewBookingValidator(logger.Discard(), 12, loc)
	now := time.Date(2030, 1, 2, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name         string
		date         string
		start, end   string
		wantDuration float64
	}{
		{"spring forward spans the gap", "2030-03-10", "01:00", "04:00", 3},
		{"spring forward starts in the gap", "2030-03-10", "02:00", "03:00", 1},
		{"fall back repeats an hour", "2030-11-03", "00:30", "12:00", 11.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			req.Date, req.StartTime, req.EndTime = tt.date, tt.start, tt.end

			window, err := v.Validate(req, now)
			if err != nil {
				t.Fatalf("Validate() error = %v", err)
			}
			if window.DurationHours != tt.wantDuration {
				t.Errorf("DurationHours = %v, want %v", window.DurationHours, tt.wantDuration)
			}
		})
	}
}
