package appointment

import "time"

// CancelLeadTime is the minimum interval between "now" and the appointment
// date for a cancellation to be accepted.
const CancelLeadTime = 24 * time.Hour

// SameCalendarDay reports whether two instants fall on the same calendar day
// once both are normalized to UTC. Day identity, not a 24h window.
func SameCalendarDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

// ValidateBookingDate rejects bookings on the current calendar day,
// whatever the time of day.
func ValidateBookingDate(date, now time.Time) error {
	if SameCalendarDay(date, now) {
		return ErrSameDayBooking
	}
	return nil
}

// CanCancel applies the cancellation cutoff: the date must be strictly more
// than CancelLeadTime ahead of now. Exactly 24h of lead time is too late.
func CanCancel(date, now time.Time) bool {
	return date.After(now.Add(CancelLeadTime))
}

// ValidateCancel checks both the state machine and the cutoff. Only active
// appointments can transition to cancelled.
func (a Appointment) ValidateCancel(now time.Time) error {
	if a.Status != StatusActive {
		return ErrAlreadyCancelled
	}
	if !CanCancel(a.Date, now) {
		return ErrTooLateToCancel
	}
	return nil
}
