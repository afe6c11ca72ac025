package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/clinicbook/clinicbook/internal/domain/appointment"
	"github.com/clinicbook/clinicbook/internal/domain/user"
	"github.com/clinicbook/clinicbook/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type AppointmentsRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewAppointmentsRepo(pool *pgxpool.Pool, prom *observability.Prom) *AppointmentsRepo {
	return &AppointmentsRepo{
		pool: pool,
		prom: prom,
	}
}

func (repo *AppointmentsRepo) observe(op string, fn func() error) error {
	if repo.prom != nil {
		return repo.prom.ObserveDB(op, fn)
	}
	return fn()
}

func (repo *AppointmentsRepo) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return repo.pool.BeginTx(ctx, pgx.TxOptions{})
}

// CreateTx books an appointment inside the caller's transaction. The duplicate
// check covers every status: a cancelled booking still blocks the day. The
// unique index appointments_user_day_uniq closes the remaining race window.
func (repo *AppointmentsRepo) CreateTx(ctx context.Context, tx pgx.Tx, req appointment.CreateAppointmentRequest) (appt appointment.Appointment, err error) {
	// owner must exist
	var userExists bool

	err = repo.observe("appointments.create_tx.user_check", func() error {
		return tx.QueryRow(ctx, `SELECT EXISTS(
			SELECT 1 FROM users WHERE id = $1
		)`, req.UserID).Scan(&userExists)
	})

	if err != nil {
		return
	}

	if !userExists {
		err = user.ErrNotFound
		return
	}

	var dayTaken bool

	err = repo.observe("appointments.create_tx.day_check", func() error {
		return tx.QueryRow(ctx, `SELECT EXISTS(
			SELECT 1 FROM appointments
			WHERE user_id = $1
			  AND (date AT TIME ZONE 'UTC')::date = ($2 AT TIME ZONE 'UTC')::date
		)`, req.UserID, req.Date).Scan(&dayTaken)
	})

	if err != nil {
		return
	}

	if dayTaken {
		err = appointment.ErrDayTaken
		return
	}

	appt = appointment.NewFromCreateRequest(req)

	err = repo.observe("appointments.create_tx.insert", func() error {
		_, e := tx.Exec(ctx, `
		INSERT INTO appointments (id, user_id, date, location, type, status, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, appt.ID, appt.UserID, appt.Date, appt.Location, appt.Type, appt.Status, appt.CreatedAt, appt.UpdatedAt)
		return e
	})

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == "appointments_user_day_uniq" {
			err = appointment.ErrDayTaken
			return
		}
		return
	}

	return
}

func (repo *AppointmentsRepo) Create(ctx context.Context, req appointment.CreateAppointmentRequest) (appt appointment.Appointment, err error) {
	tx, err := repo.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	appt, err = repo.CreateTx(ctx, tx, req)

	if err != nil {
		return
	}

	err = tx.Commit(ctx)

	return
}

func (repo *AppointmentsRepo) GetByID(ctx context.Context, id string) (appointment.Appointment, error) {
	var a appointment.Appointment

	err := repo.observe("appointments.get_by_id", func() error {
		return repo.pool.QueryRow(ctx,
			`SELECT id, user_id, date, location, type, status, created_at, updated_at
			 FROM appointments
			 WHERE id = $1`,
			id,
		).Scan(&a.ID, &a.UserID, &a.Date, &a.Location, &a.Type, &a.Status, &a.CreatedAt, &a.UpdatedAt)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return appointment.Appointment{}, appointment.ErrNotFound
		}
		return appointment.Appointment{}, err
	}

	return a, nil
}

func (repo *AppointmentsRepo) ListByUser(ctx context.Context, userID string) (appts []appointment.Appointment, err error) {
	var rows pgx.Rows

	err = repo.observe("appointments.list_by_user", func() error {
		rows, err = repo.pool.Query(ctx,
			`SELECT id, user_id, date, location, type, status, created_at, updated_at
			 FROM appointments
			 WHERE user_id = $1
			 ORDER BY date ASC, id ASC`,
			userID,
		)
		return err
	})

	if err != nil {
		return
	}

	defer rows.Close()

	appts = make([]appointment.Appointment, 0)

	for rows.Next() {
		var a appointment.Appointment

		e := rows.Scan(&a.ID, &a.UserID, &a.Date, &a.Location, &a.Type, &a.Status, &a.CreatedAt, &a.UpdatedAt)

		if e != nil {
			err = e
			return
		}
		appts = append(appts, a)
	}

	err = rows.Err()

	return
}

func (repo *AppointmentsRepo) ListAll(ctx context.Context) (appts []appointment.Appointment, err error) {
	var rows pgx.Rows

	err = repo.observe("appointments.list_all", func() error {
		rows, err = repo.pool.Query(ctx,
			`SELECT id, user_id, date, location, type, status, created_at, updated_at
			 FROM appointments
			 ORDER BY date ASC, id ASC`,
		)
		return err
	})

	if err != nil {
		return
	}

	defer rows.Close()

	appts = make([]appointment.Appointment, 0)

	for rows.Next() {
		var a appointment.Appointment

		e := rows.Scan(&a.ID, &a.UserID, &a.Date, &a.Location, &a.Type, &a.Status, &a.CreatedAt, &a.UpdatedAt)

		if e != nil {
			err = e
			return
		}
		appts = append(appts, a)
	}

	err = rows.Err()

	return
}

// CancelTx flips an active appointment to CANCELADA inside the caller's
// transaction. The row is locked first so the cutoff check and the status
// write see the same state.
func (repo *AppointmentsRepo) CancelTx(ctx context.Context, tx pgx.Tx, id string, now time.Time) (appt appointment.Appointment, err error) {
	var a appointment.Appointment

	err = repo.observe("appointments.cancel_tx.lock", func() error {
		return tx.QueryRow(ctx,
			`SELECT id, user_id, date, location, type, status, created_at, updated_at
			 FROM appointments
			 WHERE id = $1
			 FOR UPDATE`,
			id,
		).Scan(&a.ID, &a.UserID, &a.Date, &a.Location, &a.Type, &a.Status, &a.CreatedAt, &a.UpdatedAt)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = appointment.ErrNotFound
		}
		return
	}

	if err = a.ValidateCancel(now); err != nil {
		return
	}

	err = repo.observe("appointments.cancel_tx.update", func() error {
		_, e := tx.Exec(ctx,
			`UPDATE appointments
			 SET status = $2,
			     updated_at = NOW()
			 WHERE id = $1`,
			id, appointment.StatusCancelled,
		)
		return e
	})

	if err != nil {
		return
	}

	a.Status = appointment.StatusCancelled
	appt = a
	return
}

func (repo *AppointmentsRepo) Delete(ctx context.Context, id string) (err error) {
	var tag pgconn.CommandTag

	err = repo.observe("appointments.delete", func() error {
		var e error
		tag, e = repo.pool.Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id)
		return e
	})

	if err != nil {
		return
	}

	if tag.RowsAffected() == 0 {
		err = appointment.ErrNotFound
		return
	}

	return
}
