package appointment

import (
	"time"

	"github.com/google/uuid"
)

// NewFromCreateRequest builds an active Appointment from the incoming DTO.
func NewFromCreateRequest(req CreateAppointmentRequest) Appointment {
	now := time.Now().UTC()

	return Appointment{
		ID:        uuid.NewString(),
		UserID:    req.UserID,
		Date:      req.Date,
		Location:  req.Location,
		Type:      req.Type,
		Status:    StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
