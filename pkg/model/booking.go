package model

import (
	"time"
)

const (
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
	StatusCompleted = "completed"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// Booking is one confirmed claim on a slot of a lot for a same-day time range.
// Only Status and CancelledAt change after creation.
type Booking struct {
	ID            string     `json:"id" bson:"_id"`
	LotID         string     `json:"lot_id" bson:"lot_id"`
	RequesterID   string     `json:"requester_id" bson:"requester_id"`
	VehicleTag    string     `json:"vehicle_tag,omitempty" bson:"vehicle_tag,omitempty"`
	Date          string     `json:"date" bson:"date"`
	StartTime     string     `json:"start_time" bson:"start_time"`
	EndTime       string     `json:"end_time" bson:"end_time"`
	DurationHours float64    `json:"duration_hours" bson:"duration_hours"`
	TotalCost     float64    `json:"total_cost" bson:"total_cost"`
	Status        string     `json:"status" bson:"status"`
	CreatedAt     time.Time  `json:"created_at" bson:"created_at"`
	CancelledAt   *time.Time `json:"cancelled_at,omitempty" bson:"cancelled_at,omitempty"`
}

type BookingRequest struct {
	LotID       string `json:"lot_id" validate:"required,max=64"`
	RequesterID string `json:"requester_id" validate:"required,max=128"`
	VehicleTag  string `json:"vehicle_tag,omitempty" validate:"omitempty,max=20"`
	Date        string `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime   string `json:"start_time" validate:"required,datetime=15:04"`
	EndTime     string `json:"end_time" validate:"required,datetime=15:04"`
}

type CancelRequest struct {
	RequesterID string `json:"requester_id,omitempty"`
}

// BookingView is a booking joined with the display fields of its lot.
// AvailableSlots and TotalSlots are only set right after a create or a
// cancellation that released a slot.
type BookingView struct {
	Booking `bson:",inline"`

	LotName        string  `json:"lot_name,omitempty"`
	LotAddress     string  `json:"lot_address,omitempty"`
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	PricePerHour   float64 `json:"price_per_hour"`
	AvailableSlots *int    `json:"available_slots,omitempty"`
	TotalSlots     *int    `json:"total_slots,omitempty"`
	RefundNote     string  `json:"refund_note,omitempty"`
}

func NewBookingView(b *Booking, lot *Lot) *BookingView {
	view := &BookingView{Booking: *b}
	if lot != nil {
		view.LotName = lot.Name
		view.LotAddress = lot.Address
		view.Latitude = lot.Latitude
		view.Longitude = lot.Longitude
		view.PricePerHour = lot.PricePerHour
	}
	return view
}

// WithCapacity copies the lot's current counters onto the view.
func (v *BookingView) WithCapacity(lot *Lot) *BookingView {
	available, total := lot.AvailableSlots, lot.TotalSlots
	v.AvailableSlots = &available
	v.TotalSlots = &total
	return v
}

// Occupancy is the number of confirmed bookings covering one instant.
type Occupancy struct {
	LotID      string `json:"lot_id"`
	Date       string `json:"date"`
	Time       string `json:"time"`
	Active     int64  `json:"active"`
	TotalSlots int    `json:"total_slots"`
}
