package notifications

import (
	"context"
	"errors"
	"time"
)

// Delivery outcomes surfaced by the deliveries store.
var (
	ErrAlreadySent = errors.New("notification already sent")
	ErrInProgress  = errors.New("notification delivery in progress")
)

type AppointmentConfirmationInput struct {
	AppointmentID string
	Email         string
	Name          string
	Date          time.Time
	Location      string
}

type AppointmentCancellationInput struct {
	AppointmentID string
	Email         string
	Name          string
	Date          time.Time
}

type Notifier interface {
	SendAppointmentConfirmation(ctx context.Context, input AppointmentConfirmationInput) error
	SendAppointmentCancellation(ctx context.Context, input AppointmentCancellationInput) error
}
