package jobs

import (
	"encoding/json"
	"time"
)

// Payloads stay minimal and ID-based; the worker loads anything else from the DB.

type AppointmentConfirmationPayload struct {
	AppointmentID string    `json:"appointmentId"`
	UserID        string    `json:"userId"`
	Email         string    `json:"email"`
	Name          string    `json:"name"`
	Date          time.Time `json:"date"`
	Location      string    `json:"location"`
	RequestedAt   time.Time `json:"requestedAt"`
}

func (p AppointmentConfirmationPayload) JSON() (json.RawMessage, error) {
	b, err := json.Marshal(p)

	if err != nil {
		return nil, err
	}
	return json.RawMessage(b), nil
}

type AppointmentCancellationPayload struct {
	AppointmentID string    `json:"appointmentId"`
	UserID        string    `json:"userId"`
	Email         string    `json:"email"`
	Name          string    `json:"name"`
	Date          time.Time `json:"date"`
	RequestedAt   time.Time `json:"requestedAt"`
}

func (p AppointmentCancellationPayload) JSON() (json.RawMessage, error) {
	b, err := json.Marshal(p)

	if err != nil {
		return nil, err
	}
	return json.RawMessage(b), nil
}
