package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/clinicbook/clinicbook/internal/auth"
	"github.com/clinicbook/clinicbook/internal/config"
	"github.com/clinicbook/clinicbook/internal/domain/user"
	"github.com/clinicbook/clinicbook/internal/repo/postgres"
	"github.com/clinicbook/clinicbook/internal/security"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
)

type UserReader interface {
	GetByUsername(ctx context.Context, username string) (user.User, error)
}

type UserWriter interface {
	Create(ctx context.Context, u user.User) (user.User, error)
}

type SessionStore interface {
	BeginTx(ctx context.Context) (pgx.Tx, error)
	Create(ctx context.Context, tx pgx.Tx, row postgres.SessionRow) error
	GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (postgres.SessionRow, error)
	Revoke(ctx context.Context, tx pgx.Tx, id string, replacedBy *string) error
	RevokeAllForUser(ctx context.Context, tx pgx.Tx, userID string) error
}

type AuthHandler struct {
	users      UserReader
	userWriter UserWriter
	jwt        *auth.Manager
	sessions   SessionStore
	cfg        config.Config
}

func NewAuthHandler(users UserReader, userWriter UserWriter, jwtManager *auth.Manager, sessions SessionStore, cfg config.Config) *AuthHandler {
	return &AuthHandler{
		users:      users,
		userWriter: userWriter,
		jwt:        jwtManager,
		sessions:   sessions,
		cfg:        cfg,
	}
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func identityOf(u user.User) auth.Identity {
	return auth.Identity{
		UserID:   u.ID,
		Username: u.Username,
		Role:     u.Role,
		Name:     u.Name,
		Email:    u.Email,
		Phone:    u.Phone,
	}
}

func (h *AuthHandler) Register(ctx *gin.Context) {
	var req user.RegisterRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)

	defer cancel()

	hash, err := security.HashPassword(req.Password)

	if err != nil {
		RespondInternal(ctx, "Could not create user")
		return
	}

	// role is always USER at signup; admins come from the seed path

	u, err := h.userWriter.Create(cctx, user.NewFromRegisterRequest(req, hash))

	if err != nil {
		if errors.Is(err, user.ErrUsernameTaken) {
			RespondConflict(ctx, "username_taken", "Username is already in use.")
			return
		}

		RespondInternal(ctx, "Could not create user")
		return
	}

	ctx.JSON(http.StatusCreated, u)
}

func (h *AuthHandler) Login(ctx *gin.Context) {
	var req LoginRequest

	if !BindJSON(ctx, &req) {
		return
	}
	// short timeout for DB lookup
	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	foundUser, err := h.users.GetByUsername(cctx, req.Username)
	if err != nil {
		RespondUnAuthorized(ctx, "invalid_credentials", "Username or password is incorrect.")
		return
	}

	err = security.CheckPassword(foundUser.PasswordHash, req.Password)

	if err != nil {
		RespondUnAuthorized(ctx, "invalid_credentials", "Username or password is incorrect.")
		return
	}

	id := identityOf(foundUser)

	accessToken, err := h.jwt.GenerateAccessToken(id)

	if err != nil {
		RespondInternal(ctx, "Could not generate access token")
		return
	}

	rawSession, jti, expiresAt, err := h.jwt.GenerateSessionToken(id)

	if err != nil {
		RespondInternal(ctx, "Could not create session")
		return
	}

	if err := h.storeSession(cctx, foundUser.ID, jti, rawSession, expiresAt); err != nil {
		RespondInternal(ctx, "Could not create session")
		return
	}

	h.setSessionCookie(ctx, rawSession, expiresAt)

	ctx.JSON(http.StatusOK, gin.H{
		"token": accessToken,
	})
}

// Refresh rotates the session token and issues a fresh access token.

func (h *AuthHandler) Refresh(ctx *gin.Context) {
	raw, err := ctx.Cookie(h.sessionCookieName())

	if err != nil || raw == "" {
		RespondUnAuthorized(ctx, "no_session", "Missing session token")
		return
	}

	claims, err := h.jwt.VerifySessionToken(raw)

	if err != nil {
		RespondUnAuthorized(ctx, "invalid_session", "Invalid session token")
		return
	}

	// rotation runs in a tx with a row lock

	cctx, cancel := config.WithTimeout(3 * time.Second)

	defer cancel()

	tx, err := h.sessions.BeginTx(cctx)

	if err != nil {
		RespondInternal(ctx, "Could not refresh session")
		return
	}

	defer func() { _ = tx.Rollback(cctx) }()

	row, err := h.sessions.GetForUpdate(cctx, tx, claims.JTI)

	if err != nil {
		RespondUnAuthorized(ctx, "invalid_session", "Invalid session token")
		return
	}

	if row.RevokedAt != nil {
		// a rotated token coming back means the raw value leaked somewhere;
		// revoke every live session for the user, not just this one
		_ = h.sessions.RevokeAllForUser(cctx, tx, row.UserID)
		_ = tx.Commit(cctx)

		RespondUnAuthorized(ctx, "invalid_session", "Invalid session token")
		return
	}

	if time.Now().UTC().After(row.ExpiresAt) {
		RespondUnAuthorized(ctx, "expired_session", "Session expired.")
		return
	}

	// hash must match the presented token (prevents token substitution)

	if row.TokenHash != h.jwt.HashSessionToken(raw) {
		RespondUnAuthorized(ctx, "invalid_session", "Invalid session token")
		return
	}

	id := auth.Identity{
		UserID:   row.UserID,
		Username: claims.Username,
		Role:     claims.Role,
		Name:     claims.Name,
		Email:    claims.Email,
		Phone:    claims.Phone,
	}

	newRaw, newJTI, newExpiresAt, err := h.jwt.GenerateSessionToken(id)
	if err != nil {
		RespondInternal(ctx, "Could not refresh session")
		return
	}

	// revoke old, insert new

	err = h.sessions.Revoke(cctx, tx, row.ID, &newJTI)

	if err != nil {
		RespondInternal(ctx, "Could not refresh session")
		return
	}

	newRow := postgres.SessionRow{
		ID:        newJTI,
		UserID:    row.UserID,
		TokenHash: h.jwt.HashSessionToken(newRaw),
		ExpiresAt: newExpiresAt,
		CreatedAt: time.Now().UTC(),
	}

	err = h.sessions.Create(cctx, tx, newRow)

	if err != nil {
		RespondInternal(ctx, "Could not refresh session")
		return
	}

	err = tx.Commit(cctx)

	if err != nil {
		RespondInternal(ctx, "Could not refresh session")
		return
	}

	accessToken, err := h.jwt.GenerateAccessToken(id)
	if err != nil {
		RespondInternal(ctx, "Could not generate access token")
		return
	}

	h.setSessionCookie(ctx, newRaw, newExpiresAt)

	ctx.JSON(http.StatusOK, gin.H{
		"token": accessToken,
	})
}

func (h *AuthHandler) Logout(ctx *gin.Context) {
	raw, err := ctx.Cookie(h.sessionCookieName())

	if err != nil || raw == "" {
		// still clear cookie to be safe
		h.clearSessionCookie(ctx)
		ctx.Status(http.StatusNoContent)
		return
	}

	claims, err := h.jwt.VerifySessionToken(raw)
	if err != nil {
		h.clearSessionCookie(ctx)
		ctx.Status(http.StatusNoContent)
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	tx, err := h.sessions.BeginTx(cctx)
	if err != nil {
		h.clearSessionCookie(ctx)
		ctx.Status(http.StatusNoContent)
		return
	}
	defer func() { _ = tx.Rollback(cctx) }()

	// revoke that one session (idempotent)
	_ = h.sessions.Revoke(cctx, tx, claims.JTI, nil)
	_ = tx.Commit(cctx)

	h.clearSessionCookie(ctx)
	ctx.Status(http.StatusNoContent)
}

// Helpers

func (h *AuthHandler) storeSession(ctx context.Context, userID, jti, raw string, expiresAt time.Time) error {
	tx, err := h.sessions.BeginTx(ctx)

	if err != nil {
		return err
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	row := postgres.SessionRow{
		ID:        jti,
		UserID:    userID,
		TokenHash: h.jwt.HashSessionToken(raw),
		ExpiresAt: expiresAt,
		CreatedAt: time.Now().UTC(),
	}

	err = h.sessions.Create(ctx, tx, row)

	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (h *AuthHandler) sessionCookieName() string {
	return "session_token"
}

func (h *AuthHandler) setSessionCookie(ctx *gin.Context, raw string, expiresAt time.Time) {
	secure := h.cfg.Env == "prod"

	maxAge := int(time.Until(expiresAt).Seconds())

	ctx.SetSameSite(http.SameSiteStrictMode)

	ctx.SetCookie(
		h.sessionCookieName(),
		raw,
		maxAge,
		"/auth",
		"",
		secure,
		true, // HttpOnly.
	)
}

func (h *AuthHandler) clearSessionCookie(ctx *gin.Context) {
	secure := h.cfg.Env == "prod"
	ctx.SetSameSite(http.SameSiteStrictMode)
	ctx.SetCookie(
		h.sessionCookieName(),
		"",
		-1,
		"/auth",
		"",
		secure,
		true,
	)
}
