package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"
)

// LogNotifier stands in for a real mail/SMS provider. It keeps the worker
// pipeline exercisable end to end without external credentials.
type LogNotifier struct{}

func NewLogNotifier() *LogNotifier { return &LogNotifier{} }

func (n *LogNotifier) simulate(ctx context.Context) error {
	if msStr := os.Getenv("NOTIFIER_SLEEP_MS"); msStr != "" {
		ms, _ := strconv.Atoi(msStr)
		if ms > 0 {
			select {
			case <-time.After(time.Duration(ms) * time.Millisecond):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	if os.Getenv("NOTIFIER_FAIL") == "1" {
		return fmt.Errorf("provider down (simulated)")
	}

	return nil
}

func (n *LogNotifier) SendAppointmentConfirmation(ctx context.Context, in AppointmentConfirmationInput) error {
	if err := n.simulate(ctx); err != nil {
		return err
	}

	slog.Default().InfoContext(ctx, "notification.appointment_confirmation",
		"email", in.Email,
		"name", in.Name,
		"appointment", in.AppointmentID,
		"date", in.Date.Format(time.RFC3339),
		"location", in.Location,
	)
	return nil
}

func (n *LogNotifier) SendAppointmentCancellation(ctx context.Context, in AppointmentCancellationInput) error {
	if err := n.simulate(ctx); err != nil {
		return err
	}

	slog.Default().InfoContext(ctx, "notification.appointment_cancellation",
		"email", in.Email,
		"name", in.Name,
		"appointment", in.AppointmentID,
		"date", in.Date.Format(time.RFC3339),
	)
	return nil
}
