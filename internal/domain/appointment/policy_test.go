package appointment

import (
	"errors"
	"testing"
	"time"
)

func TestSameCalendarDay(t *testing.T) {
	base := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

	tests := []struct {
		name string
		a    time.Time
		b    time.Time
		want bool
	}{
		{
			name: "same_instant",
			a:    base,
			b:    base,
			want: true,
		},
		{
			name: "same_day_different_times",
			a:    base,
			b:    time.Date(2026, 3, 14, 23, 59, 59, 0, time.UTC),
			want: true,
		},
		{
			name: "next_day",
			a:    base,
			b:    base.AddDate(0, 0, 1),
			want: false,
		},
		{
			name: "same_day_across_zones",
			// 01:00+02:00 is 23:00 UTC the previous day
			a:    time.Date(2026, 3, 15, 1, 0, 0, 0, time.FixedZone("EET", 2*3600)),
			b:    time.Date(2026, 3, 14, 23, 30, 0, 0, time.UTC),
			want: true,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			got := SameCalendarDay(tt.a, tt.b)

			if got != tt.want {
				t.Fatalf("SameCalendarDay(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestValidateBookingDate(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	// any time of day on "today" must be rejected
	for _, hour := range []int{0, 12, 23} {
		date := time.Date(2026, 3, 14, hour, 0, 0, 0, time.UTC)

		err := ValidateBookingDate(date, now)

		if !errors.Is(err, ErrSameDayBooking) {
			t.Fatalf("hour %d: got %v, want ErrSameDayBooking", hour, err)
		}
	}

	if err := ValidateBookingDate(now.AddDate(0, 0, 1), now); err != nil {
		t.Fatalf("tomorrow should be bookable, got %v", err)
	}
}

func TestCanCancel(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		date time.Time
		want bool
	}{
		{"thirty_hours_ahead", now.Add(30 * time.Hour), true},
		{"just_over_24h", now.Add(24*time.Hour + time.Second), true},
		{"exactly_24h_is_too_late", now.Add(24 * time.Hour), false},
		{"under_24h", now.Add(23 * time.Hour), false},
		{"in_the_past", now.Add(-time.Hour), false},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			if got := CanCancel(tt.date, now); got != tt.want {
				t.Fatalf("CanCancel(%v) = %v, want %v", tt.date, got, tt.want)
			}
		})
	}
}

func TestValidateCancel(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	active := Appointment{Status: StatusActive, Date: now.Add(48 * time.Hour)}

	if err := active.ValidateCancel(now); err != nil {
		t.Fatalf("active appointment 48h out should cancel, got %v", err)
	}

	cancelled := Appointment{Status: StatusCancelled, Date: now.Add(48 * time.Hour)}

	if err := cancelled.ValidateCancel(now); !errors.Is(err, ErrAlreadyCancelled) {
		t.Fatalf("got %v, want ErrAlreadyCancelled", err)
	}

	tooSoon := Appointment{Status: StatusActive, Date: now.Add(12 * time.Hour)}

	if err := tooSoon.ValidateCancel(now); !errors.Is(err, ErrTooLateToCancel) {
		t.Fatalf("got %v, want ErrTooLateToCancel", err)
	}
}
