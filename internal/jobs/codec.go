package jobs

import (
	"encoding/json"
	"fmt"

	"github.com/clinicbook/clinicbook/internal/domain/job"
)

// DecodePayload unmarshals a claimed job's payload into the typed struct for
// its job type. Unknown types are an error so the worker dead-letters them
// instead of retrying forever.
func DecodePayload(j job.Job) (any, error) {
	if !Type(j.Type).IsValid() {
		return nil, ErrInvalidJobType
	}
	if len(j.Payload) == 0 {
		return nil, ErrInvalidJobPayload
	}

	switch Type(j.Type) {
	case TypeAppointmentConfirmation:
		var p AppointmentConfirmationPayload
		if err := json.Unmarshal(j.Payload, &p); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidJobPayload, err)
		}
		if p.AppointmentID == "" || p.Email == "" {
			return nil, ErrInvalidJobPayload
		}
		return p, nil

	case TypeAppointmentCancellation:
		var p AppointmentCancellationPayload
		if err := json.Unmarshal(j.Payload, &p); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidJobPayload, err)
		}
		if p.AppointmentID == "" || p.Email == "" {
			return nil, ErrInvalidJobPayload
		}
		return p, nil

	default:
		return nil, ErrInvalidJobType
	}
}
