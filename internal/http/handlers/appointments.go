package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/clinicbook/clinicbook/internal/cache"
	"github.com/clinicbook/clinicbook/internal/config"
	"github.com/clinicbook/clinicbook/internal/domain/appointment"
	"github.com/clinicbook/clinicbook/internal/domain/job"
	"github.com/clinicbook/clinicbook/internal/domain/user"
	"github.com/clinicbook/clinicbook/internal/http/middlewares"
	"github.com/clinicbook/clinicbook/internal/jobs"
	"github.com/clinicbook/clinicbook/internal/repo/postgres"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const adminListCacheKey = "appointments:all"

type AppointmentStore interface {
	BeginTx(ctx context.Context) (pgx.Tx, error)
	CreateTx(ctx context.Context, tx pgx.Tx, req appointment.CreateAppointmentRequest) (appointment.Appointment, error)
	GetByID(ctx context.Context, id string) (appointment.Appointment, error)
	ListByUser(ctx context.Context, userID string) ([]appointment.Appointment, error)
	ListAll(ctx context.Context) ([]appointment.Appointment, error)
	CancelTx(ctx context.Context, tx pgx.Tx, id string, now time.Time) (appointment.Appointment, error)
	Delete(ctx context.Context, id string) error
}

type JobsCreator interface {
	CreateTx(ctx context.Context, tx pgx.Tx, req job.CreateRequest) (job.Job, error)
}

type AppointmentsHandler struct {
	repo     AppointmentStore
	jobsRepo JobsCreator
	cache    *cache.Cache
}

func NewAppointmentsHandler(repo AppointmentStore, jobsRepo JobsCreator, listCache *cache.Cache) *AppointmentsHandler {
	return &AppointmentsHandler{
		repo:     repo,
		jobsRepo: jobsRepo,
		cache:    listCache,
	}
}

func (h *AppointmentsHandler) Create(ctx *gin.Context) {
	var req appointment.CreateAppointmentRequest

	if !BindJSON(ctx, &req) {
		return
	}

	// owner always comes from the verified token

	identity, ok := middlewares.IdentityFromContext(ctx)

	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity")
		return
	}

	req.UserID = identity.UserID

	now := time.Now().UTC()

	if err := appointment.ValidateBookingDate(req.Date, now); err != nil {
		RespondBadRequest(ctx, "Appointments cannot be booked for the current day.", gin.H{
			"field": "date",
		})
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)

	defer cancel()

	tx, err := h.repo.BeginTx(cctx)

	if err != nil {
		RespondInternal(ctx, "Could not book appointment")
		return
	}

	defer func() { _ = tx.Rollback(cctx) }()

	appt, err := h.repo.CreateTx(cctx, tx, req)

	if err != nil {
		switch {
		case errors.Is(err, appointment.ErrDayTaken):
			RespondConflict(ctx, "day_taken", "You already have an appointment on that day.")
		case errors.Is(err, user.ErrNotFound):
			RespondBadRequest(ctx, "Booking user does not exist", nil)
		default:
			RespondInternal(ctx, "Could not book appointment")
			slog.Default().ErrorContext(cctx, "appointment_create_failed", "err", err)
		}
		return
	}

	payload := jobs.AppointmentConfirmationPayload{
		AppointmentID: appt.ID,
		UserID:        appt.UserID,
		Email:         identity.Email,
		Name:          identity.Name,
		Date:          appt.Date,
		Location:      appt.Location,
		RequestedAt:   now,
	}

	raw, err := payload.JSON()

	if err != nil {
		RespondInternal(ctx, "Could not book appointment")
		return
	}

	// idempotency key keeps retries from double-sending the confirmation
	key := "appointment:confirm:" + appt.ID
	uid := appt.UserID

	_, err = h.jobsRepo.CreateTx(cctx, tx, job.CreateRequest{
		Type:           string(jobs.TypeAppointmentConfirmation),
		Payload:        raw,
		RunAt:          now,
		MaxAttempts:    10,
		IdempotencyKey: &key,
		UserID:         &uid,
	})
	if err != nil {
		if !postgres.IsUniqueViolation(err) {
			RespondInternal(ctx, "Could not book appointment")
			slog.Default().ErrorContext(cctx, "confirmation_enqueue_failed", "err", err)
			return
		}
	}

	err = tx.Commit(cctx)
	if err != nil {
		RespondInternal(ctx, "Could not book appointment")
		return
	}

	h.cache.Delete(adminListCacheKey)

	ctx.JSON(http.StatusCreated, appt)
}

func (h *AppointmentsHandler) Get(ctx *gin.Context) {
	id := ctx.Param("id")

	if _, err := uuid.Parse(id); err != nil {
		RespondBadRequest(ctx, "appointment id must be a valid UUID", gin.H{"field": "id"})
		return
	}

	identity, ok := middlewares.IdentityFromContext(ctx)

	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity")
		return
	}

	role, _ := middlewares.RoleFromContext(ctx)

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	appt, err := h.repo.GetByID(cctx, id)

	if err != nil {
		if errors.Is(err, appointment.ErrNotFound) {
			RespondNotFound(ctx, "Appointment not found")
			return
		}

		RespondInternal(ctx, "Could not load appointment")
		return
	}

	if role != user.RoleAdmin && appt.UserID != identity.UserID {
		RespondForbidden(ctx, "You can only view your own appointments")
		return
	}

	ctx.JSON(http.StatusOK, appt)
}

func (h *AppointmentsHandler) ListMine(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)

	if !ok || userID == "" {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity")
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	appts, err := h.repo.ListByUser(cctx, userID)

	if err != nil {
		RespondInternal(ctx, "Could not list appointments")
		return
	}

	// an empty list is reported as not found
	if len(appts) == 0 {
		RespondNotFound(ctx, "No appointments found")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"items": appts,
		"count": len(appts),
	})
}

func (h *AppointmentsHandler) ListAll(ctx *gin.Context) {
	if cached, ok := h.cache.Get(adminListCacheKey); ok {
		if appts, ok := cached.([]appointment.Appointment); ok {
			h.respondList(ctx, appts)
			return
		}
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	appts, err := h.repo.ListAll(cctx)

	if err != nil {
		RespondInternal(ctx, "Could not list appointments")
		return
	}

	h.cache.Set(adminListCacheKey, appts)

	h.respondList(ctx, appts)
}

func (h *AppointmentsHandler) respondList(ctx *gin.Context, appts []appointment.Appointment) {
	if len(appts) == 0 {
		RespondNotFound(ctx, "No appointments found")
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, gin.H{
		"items": appts,
		"count": len(appts),
	})
}

func (h *AppointmentsHandler) Cancel(ctx *gin.Context) {
	id := ctx.Param("id")

	if _, err := uuid.Parse(id); err != nil {
		RespondBadRequest(ctx, "appointment id must be a valid UUID", gin.H{"field": "id"})
		return
	}

	identity, ok := middlewares.IdentityFromContext(ctx)

	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity")
		return
	}

	role, _ := middlewares.RoleFromContext(ctx)

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	// load first so the ownership check fires before any state change

	appt, err := h.repo.GetByID(cctx, id)

	if err != nil {
		if errors.Is(err, appointment.ErrNotFound) {
			RespondNotFound(ctx, "Appointment not found")
			return
		}

		RespondInternal(ctx, "Could not cancel appointment")
		return
	}

	if role != user.RoleAdmin && appt.UserID != identity.UserID {
		RespondForbidden(ctx, "You can only cancel your own appointments")
		return
	}

	now := time.Now().UTC()

	tx, err := h.repo.BeginTx(cctx)

	if err != nil {
		RespondInternal(ctx, "Could not cancel appointment")
		return
	}

	defer func() { _ = tx.Rollback(cctx) }()

	cancelled, err := h.repo.CancelTx(cctx, tx, id, now)

	if err != nil {
		switch {
		case errors.Is(err, appointment.ErrNotFound):
			RespondNotFound(ctx, "Appointment not found")
		case errors.Is(err, appointment.ErrAlreadyCancelled):
			RespondConflict(ctx, "already_cancelled", "Appointment is already cancelled.")
		case errors.Is(err, appointment.ErrTooLateToCancel):
			RespondBadRequest(ctx, "Appointments can only be cancelled more than 24 hours in advance.", nil)
		default:
			RespondInternal(ctx, "Could not cancel appointment")
			slog.Default().ErrorContext(cctx, "appointment_cancel_failed", "err", err)
		}
		return
	}

	payload := jobs.AppointmentCancellationPayload{
		AppointmentID: cancelled.ID,
		UserID:        cancelled.UserID,
		Email:         identity.Email,
		Name:          identity.Name,
		Date:          cancelled.Date,
		RequestedAt:   now,
	}

	raw, err := payload.JSON()

	if err != nil {
		RespondInternal(ctx, "Could not cancel appointment")
		return
	}

	key := "appointment:cancel:" + cancelled.ID
	uid := cancelled.UserID

	_, err = h.jobsRepo.CreateTx(cctx, tx, job.CreateRequest{
		Type:           string(jobs.TypeAppointmentCancellation),
		Payload:        raw,
		RunAt:          now,
		MaxAttempts:    10,
		IdempotencyKey: &key,
		UserID:         &uid,
	})
	if err != nil {
		if !postgres.IsUniqueViolation(err) {
			RespondInternal(ctx, "Could not cancel appointment")
			slog.Default().ErrorContext(cctx, "cancellation_enqueue_failed", "err", err)
			return
		}
	}

	err = tx.Commit(cctx)
	if err != nil {
		RespondInternal(ctx, "Could not cancel appointment")
		return
	}

	h.cache.Delete(adminListCacheKey)

	ctx.Status(http.StatusNoContent)
}

func (h *AppointmentsHandler) Delete(ctx *gin.Context) {
	id := ctx.Param("id")

	if _, err := uuid.Parse(id); err != nil {
		RespondBadRequest(ctx, "appointment id must be a valid UUID", gin.H{"field": "id"})
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	err := h.repo.Delete(cctx, id)

	if err != nil {
		if errors.Is(err, appointment.ErrNotFound) {
			RespondNotFound(ctx, "Appointment not found")
			return
		}

		RespondInternal(ctx, "Could not delete appointment")
		return
	}

	h.cache.Delete(adminListCacheKey)

	ctx.Status(http.StatusNoContent)
}
