package jobs

import "errors"

type Type string

const (
	// TypeAppointmentConfirmation notifies a patient that a booking was made.
	TypeAppointmentConfirmation Type = "appointment.confirmation"
	// TypeAppointmentCancellation notifies a patient that a booking was cancelled.
	TypeAppointmentCancellation Type = "appointment.cancellation"
)

var (
	ErrInvalidJobType    = errors.New("invalid job type")
	ErrInvalidJobPayload = errors.New("invalid job payload")
)

func (t Type) IsValid() bool {
	switch t {
	case TypeAppointmentConfirmation, TypeAppointmentCancellation:
		return true
	default:
		return false
	}
}
