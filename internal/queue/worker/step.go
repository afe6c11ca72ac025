package worker

import (
	"context"
	"errors"
	"time"

	"github.com/clinicbook/clinicbook/internal/domain/job"
	"github.com/clinicbook/clinicbook/internal/jobs"
	"github.com/clinicbook/clinicbook/internal/notifications"
)

// ProcessOne claims and runs a single job. It returns false when the queue is
// empty so the poll loop can go back to sleep.
func (w *Worker) ProcessOne(ctx context.Context) (bool, error) {
	claimCtx, cancel := context.WithTimeout(ctx, 2*time.Second)

	j, err := w.repo.ClaimNext(claimCtx, w.cfg.WorkerID)
	cancel()

	if err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			return false, nil
		}

		return false, err
	}

	start := time.Now()

	if w.prom != nil {
		w.prom.JobsInFlight.Inc()
	}

	err = w.execute(ctx, j)

	if w.prom != nil {
		w.prom.JobsInFlight.Dec()
	}

	if err != nil {
		result := w.handleFailure(ctx, j, err)
		w.observeJob(j.Type, result, time.Since(start))
		return true, nil
	}

	err = w.repo.MarkDone(ctx, j.ID)

	if err != nil {
		_ = w.repo.MarkFailed(ctx, j.ID, "mark_done_failed: "+err.Error())
		w.observeJob(j.Type, "failed", time.Since(start))
		return true, err
	}

	w.observeJob(j.Type, "done", time.Since(start))
	return true, nil
}

func (w *Worker) execute(ctx context.Context, j job.Job) error {
	decoded, err := jobs.DecodePayload(j)

	if err != nil {
		return err
	}

	switch p := decoded.(type) {
	case jobs.AppointmentConfirmationPayload:
		return w.deliver(ctx, string(jobs.TypeAppointmentConfirmation), p.AppointmentID, j.ID, p.Email, func() error {
			return w.notifier.SendAppointmentConfirmation(ctx, notifications.AppointmentConfirmationInput{
				AppointmentID: p.AppointmentID,
				Email:         p.Email,
				Name:          p.Name,
				Date:          p.Date,
				Location:      p.Location,
			})
		})

	case jobs.AppointmentCancellationPayload:
		return w.deliver(ctx, string(jobs.TypeAppointmentCancellation), p.AppointmentID, j.ID, p.Email, func() error {
			return w.notifier.SendAppointmentCancellation(ctx, notifications.AppointmentCancellationInput{
				AppointmentID: p.AppointmentID,
				Email:         p.Email,
				Name:          p.Name,
				Date:          p.Date,
			})
		})

	default:
		return jobs.ErrInvalidJobType
	}
}

// deliver runs the exactly-once dance: claim the delivery row, send, record
// the outcome. A job retried after a crash finds the row already sent and
// exits cleanly.
func (w *Worker) deliver(ctx context.Context, kind, appointmentID, jobID, recipient string, send func() error) error {
	err := w.deliveries.TryStart(ctx, kind, appointmentID, jobID, recipient)

	if err != nil {
		if errors.Is(err, notifications.ErrAlreadySent) {
			// previous attempt made it through
			return nil
		}
		return err
	}

	if err := send(); err != nil {
		_ = w.deliveries.MarkFailed(ctx, kind, appointmentID, err.Error())
		return err
	}

	return w.deliveries.MarkSent(ctx, kind, appointmentID, nil)
}

// handleFailure decides between dead-lettering and rescheduling, and reports
// which happened for metrics.
func (w *Worker) handleFailure(ctx context.Context, j job.Job, execErr error) string {
	// malformed jobs never get better with retries
	if errors.Is(execErr, jobs.ErrInvalidJobType) || errors.Is(execErr, jobs.ErrInvalidJobPayload) {
		if err := w.repo.MarkFailed(ctx, j.ID, execErr.Error()); err != nil {
			w.log.Error("mark failed error", "job_id", j.ID, "err", err)
		}
		return "failed"
	}

	nextAttempt := j.Attempts + 1

	if nextAttempt >= j.MaxAttempts {
		if err := w.repo.MarkFailed(ctx, j.ID, execErr.Error()); err != nil {
			w.log.Error("mark failed error", "job_id", j.ID, "err", err)
		}

		w.log.Error("job dead-lettered", "job_id", j.ID, "type", j.Type, "attempts", nextAttempt, "err", execErr)
		return "failed"
	}

	runAt := time.Now().UTC().Add(ExponentialBackoff(j.Attempts))

	if err := w.repo.Reschedule(ctx, j.ID, runAt, execErr.Error()); err != nil {
		w.log.Error("reschedule error", "job_id", j.ID, "err", err)
		return "failed"
	}

	w.log.Warn("job rescheduled", "job_id", j.ID, "type", j.Type, "attempt", nextAttempt, "run_at", runAt, "err", execErr)
	return "retry"
}

func (w *Worker) observeJob(jobType, result string, elapsed time.Duration) {
	if w.prom == nil {
		return
	}

	w.prom.JobResults.WithLabelValues(jobType, result).Inc()
	w.prom.JobDuration.WithLabelValues(jobType, result).Observe(elapsed.Seconds())
}
