package model

import "time"

// Lot is a parking facility with a fixed number of slots. AvailableSlots is
// only ever changed by the registry's conditional increment/decrement.
type Lot struct {
	ID             string    `json:"id" bson:"_id"`
	Name           string    `json:"name" bson:"name" validate:"required,min=2,max=120"`
	Address        string    `json:"address" bson:"address" validate:"omitempty,max=250"`
	Latitude       float64   `json:"latitude" bson:"latitude" validate:"gte=-90,lte=90"`
	Longitude      float64   `json:"longitude" bson:"longitude" validate:"gte=-180,lte=180"`
	TotalSlots     int       `json:"total_slots" bson:"total_slots" validate:"gte=0,lte=100000"`
	AvailableSlots int       `json:"available_slots" bson:"available_slots"`
	PricePerHour   float64   `json:"price_per_hour" bson:"price_per_hour" validate:"gte=0"`
	CreatedAt      time.Time `json:"created_at" bson:"created_at"`
}

// IsFull reports whether no slot is free right now.
func (l *Lot) IsFull() bool {
	return l.AvailableSlots <= 0
}
