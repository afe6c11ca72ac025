package appointment

import (
	"errors"
	"time"
)

// Appointment statuses. The clinic front office works in Spanish; the wire
// values are kept as-is so existing clients keep working.
const (
	StatusActive    = "ACTIVA"
	StatusCancelled = "CANCELADA"
)

type Appointment struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Date      time.Time `json:"date"`
	Location  string    `json:"location"`
	Type      string    `json:"type"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

var (
	ErrNotFound         = errors.New("appointment not found")
	ErrDayTaken         = errors.New("user already has an appointment that day")
	ErrSameDayBooking   = errors.New("cannot book an appointment for the current day")
	ErrAlreadyCancelled = errors.New("appointment is already cancelled")
	ErrTooLateToCancel  = errors.New("appointment is less than 24 hours away")
)

type CreateAppointmentRequest struct {
	// UserID comes from the verified token, never from the body.
	UserID   string    `json:"-"`
	Date     time.Time `json:"date" binding:"required"`
	Location string    `json:"location" binding:"required,min=2,max=120"`
	Type     string    `json:"type" binding:"required,min=2,max=80"`
}
