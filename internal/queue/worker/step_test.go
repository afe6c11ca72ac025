package worker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/clinicbook/clinicbook/internal/domain/job"
	"github.com/clinicbook/clinicbook/internal/jobs"
	"github.com/clinicbook/clinicbook/internal/notifications"
)

type fakeJobs struct {
	next        *job.Job
	doneIDs     []string
	failedIDs   []string
	rescheduled []string
}

func (f *fakeJobs) ClaimNext(ctx context.Context, workerID string) (job.Job, error) {
	if f.next == nil {
		return job.Job{}, job.ErrJobNotFound
	}
	j := *f.next
	f.next = nil
	return j, nil
}

func (f *fakeJobs) MarkDone(ctx context.Context, id string) error {
	f.doneIDs = append(f.doneIDs, id)
	return nil
}

func (f *fakeJobs) MarkFailed(ctx context.Context, id string, errMsg string) error {
	f.failedIDs = append(f.failedIDs, id)
	return nil
}

func (f *fakeJobs) Reschedule(ctx context.Context, id string, runAt time.Time, errMsg string) error {
	f.rescheduled = append(f.rescheduled, id)
	return nil
}

func (f *fakeJobs) RequeueStaleProcessing(ctx context.Context, lockTTL time.Duration) (int64, error) {
	return 0, nil
}

type fakeDeliveries struct {
	startErr error
	sent     []string
	failed   []string
}

func (f *fakeDeliveries) TryStart(ctx context.Context, kind, appointmentID, jobID, recipient string) error {
	return f.startErr
}

func (f *fakeDeliveries) MarkSent(ctx context.Context, kind, appointmentID string, providerMessageID *string) error {
	f.sent = append(f.sent, appointmentID)
	return nil
}

func (f *fakeDeliveries) MarkFailed(ctx context.Context, kind, appointmentID string, errMsg string) error {
	f.failed = append(f.failed, appointmentID)
	return nil
}

type fakeNotifier struct {
	err   error
	calls int
}

func (f *fakeNotifier) SendAppointmentConfirmation(ctx context.Context, in notifications.AppointmentConfirmationInput) error {
	f.calls++
	return f.err
}

func (f *fakeNotifier) SendAppointmentCancellation(ctx context.Context, in notifications.AppointmentCancellationInput) error {
	f.calls++
	return f.err
}

func confirmationJob(t *testing.T, attempts, maxAttempts int) *job.Job {
	t.Helper()

	payload := jobs.AppointmentConfirmationPayload{
		AppointmentID: "appt-1",
		UserID:        "user-1",
		Email:         "maria@example.com",
		Name:          "Maria Perez",
		Date:          time.Now().UTC().Add(48 * time.Hour),
		Location:      "Sede Norte",
		RequestedAt:   time.Now().UTC(),
	}

	raw, err := payload.JSON()
	if err != nil {
		t.Fatalf("payload: %v", err)
	}

	return &job.Job{
		ID:          "job-1",
		Type:        string(jobs.TypeAppointmentConfirmation),
		Payload:     raw,
		Status:      job.StatusProcessing,
		Attempts:    attempts,
		MaxAttempts: maxAttempts,
	}
}

func newTestWorker(repo *fakeJobs, deliveries *fakeDeliveries, notifier notifications.Notifier) *Worker {
	return New(Config{WorkerID: "test-worker"}, repo, deliveries, notifier, nil, slog.Default())
}

func TestProcessOne_EmptyQueue(t *testing.T) {
	w := newTestWorker(&fakeJobs{}, &fakeDeliveries{}, &fakeNotifier{})

	processed, err := w.ProcessOne(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if processed {
		t.Fatalf("empty queue must report processed=false")
	}
}

func TestProcessOne_Success(t *testing.T) {
	repo := &fakeJobs{next: confirmationJob(t, 0, 10)}
	deliveries := &fakeDeliveries{}
	notifier := &fakeNotifier{}

	w := newTestWorker(repo, deliveries, notifier)

	processed, err := w.ProcessOne(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !processed {
		t.Fatalf("expected a processed job")
	}

	if notifier.calls != 1 {
		t.Fatalf("expected one send, got %d", notifier.calls)
	}
	if len(deliveries.sent) != 1 || deliveries.sent[0] != "appt-1" {
		t.Fatalf("delivery not marked sent: %+v", deliveries.sent)
	}
	if len(repo.doneIDs) != 1 || repo.doneIDs[0] != "job-1" {
		t.Fatalf("job not marked done: %+v", repo.doneIDs)
	}
}

func TestProcessOne_SendFailureReschedules(t *testing.T) {
	repo := &fakeJobs{next: confirmationJob(t, 0, 10)}
	deliveries := &fakeDeliveries{}
	notifier := &fakeNotifier{err: errors.New("smtp down")}

	w := newTestWorker(repo, deliveries, notifier)

	processed, err := w.ProcessOne(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !processed {
		t.Fatalf("expected a processed job")
	}

	if len(repo.rescheduled) != 1 {
		t.Fatalf("expected a reschedule, got done=%v failed=%v", repo.doneIDs, repo.failedIDs)
	}
	if len(deliveries.failed) != 1 {
		t.Fatalf("delivery must record the failure")
	}
}

func TestProcessOne_LastAttemptDeadLetters(t *testing.T) {
	repo := &fakeJobs{next: confirmationJob(t, 9, 10)}
	notifier := &fakeNotifier{err: errors.New("smtp down")}

	w := newTestWorker(repo, &fakeDeliveries{}, notifier)

	if _, err := w.ProcessOne(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(repo.failedIDs) != 1 {
		t.Fatalf("expected dead-letter on final attempt, got rescheduled=%v", repo.rescheduled)
	}
}

func TestProcessOne_AlreadySentIsSuccess(t *testing.T) {
	repo := &fakeJobs{next: confirmationJob(t, 3, 10)}
	deliveries := &fakeDeliveries{startErr: notifications.ErrAlreadySent}
	notifier := &fakeNotifier{}

	w := newTestWorker(repo, deliveries, notifier)

	if _, err := w.ProcessOne(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if notifier.calls != 0 {
		t.Fatalf("must not re-send an already delivered notification")
	}
	if len(repo.doneIDs) != 1 {
		t.Fatalf("already-sent job must be marked done")
	}
}

func TestProcessOne_MalformedPayloadDeadLetters(t *testing.T) {
	bad := &job.Job{
		ID:          "job-bad",
		Type:        string(jobs.TypeAppointmentConfirmation),
		Payload:     json.RawMessage(`{"appointmentId": ""}`),
		Status:      job.StatusProcessing,
		Attempts:    0,
		MaxAttempts: 10,
	}

	repo := &fakeJobs{next: bad}
	w := newTestWorker(repo, &fakeDeliveries{}, &fakeNotifier{})

	if _, err := w.ProcessOne(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(repo.failedIDs) != 1 {
		t.Fatalf("malformed payload must dead-letter, got rescheduled=%v", repo.rescheduled)
	}
	if len(repo.rescheduled) != 0 {
		t.Fatalf("malformed payload must not be retried")
	}
}

func TestExponentialBackoff(t *testing.T) {
	if d := ExponentialBackoff(0); d < 2*time.Second || d > 3*time.Second {
		t.Fatalf("attempt 0: got %v", d)
	}
	if d := ExponentialBackoff(2); d < 8*time.Second || d > 9*time.Second {
		t.Fatalf("attempt 2: got %v", d)
	}
	// large attempts cap at 5 minutes (plus jitter)
	if d := ExponentialBackoff(30); d > 5*time.Minute+time.Second {
		t.Fatalf("cap exceeded: got %v", d)
	}
}
