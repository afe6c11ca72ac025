package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/clinicbook/clinicbook/internal/notifications"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DeliveriesRepo tracks one row per (kind, appointment) notification so a
// retried job can never send the same email twice.
type DeliveriesRepo struct {
	pool *pgxpool.Pool
}

func NewDeliveriesRepo(pool *pgxpool.Pool) *DeliveriesRepo {
	return &DeliveriesRepo{pool: pool}
}

// TryStart claims the delivery for this worker. Exactly one of three things
// happens: the row is inserted as 'sending', a previously failed row is
// flipped back to 'sending', or the caller learns the delivery is already
// sent / in progress.
func (r *DeliveriesRepo) TryStart(
	ctx context.Context,
	kind string,
	appointmentID string,
	jobID string,
	recipient string,
) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO notification_deliveries (kind, appointment_id, job_id, recipient, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 'sending', NOW(), NOW())
	`, kind, appointmentID, jobID, recipient)

	if err == nil {
		return nil
	}
	if !IsUniqueViolation(err) {
		return err
	}

	// Row exists. Claiming a failed row for retry is atomic: only one worker
	// can flip failed -> sending.
	tag, uErr := r.pool.Exec(ctx, `
		UPDATE notification_deliveries
		SET status = 'sending',
		    job_id = $3,
		    recipient = $4,
		    last_error = NULL,
		    updated_at = NOW()
		WHERE kind = $1 AND appointment_id = $2 AND status = 'failed'
	`, kind, appointmentID, jobID, recipient)

	if uErr != nil {
		return uErr
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var status string
	var sentAt *time.Time

	qErr := r.pool.QueryRow(ctx, `
		SELECT status, sent_at
		FROM notification_deliveries
		WHERE kind = $1 AND appointment_id = $2
	`, kind, appointmentID).Scan(&status, &sentAt)

	if qErr != nil {
		if errors.Is(qErr, pgx.ErrNoRows) {
			// row disappeared; let caller retry
			return nil
		}
		return qErr
	}

	if sentAt != nil || status == "sent" {
		return notifications.ErrAlreadySent
	}

	return notifications.ErrInProgress
}

func (r *DeliveriesRepo) MarkSent(ctx context.Context, kind, appointmentID string, providerMessageID *string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE notification_deliveries
		SET status = 'sent',
		    sent_at = NOW(),
		    provider_message_id = $3,
		    last_error = NULL,
		    updated_at = NOW()
		WHERE kind = $1 AND appointment_id = $2
	`, kind, appointmentID, providerMessageID)

	return err
}

func (r *DeliveriesRepo) MarkFailed(ctx context.Context, kind, appointmentID string, errMsg string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE notification_deliveries
		SET status = 'failed',
		    last_error = $3,
		    updated_at = NOW()
		WHERE kind = $1 AND appointment_id = $2
	`, kind, appointmentID, errMsg)

	return err
}
