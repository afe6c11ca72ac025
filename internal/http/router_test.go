package http_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/clinicbook/clinicbook/internal/auth"
	"github.com/clinicbook/clinicbook/internal/config"
	"github.com/clinicbook/clinicbook/internal/domain/user"
	httpx "github.com/clinicbook/clinicbook/internal/http"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testRouter(t *testing.T) (*gin.Engine, *auth.Manager) {
	t.Helper()

	mgr := auth.NewManager("test-secret-please-rotate", "clinicbook", "clinicbook-web", 2*time.Hour, 7*24*time.Hour)

	r := httpx.NewRouter(httpx.Deps{
		Cfg: config.Config{Env: "test", ServiceName: "clinicbook-api"},
		JWT: mgr,
	})

	return r, mgr
}

func tokenFor(t *testing.T, mgr *auth.Manager, role string) string {
	t.Helper()

	token, err := mgr.GenerateAccessToken(auth.Identity{
		UserID:   uuid.NewString(),
		Username: "maria.perez",
		Role:     role,
		Name:     "Maria Perez",
		Email:    "maria@example.com",
		Phone:    "5550001111",
	})
	if err != nil {
		t.Fatalf("access token: %v", err)
	}

	return token
}

// Role gates are wired at the router, so they are checked through the real
// route table rather than a hand-mounted handler.

func TestRouterRoleGates(t *testing.T) {
	r, mgr := testRouter(t)

	tests := []struct {
		name           string
		method         string
		url            string
		role           string
		wantStatusCode int
	}{
		{
			name:           "admin_cannot_book",
			method:         http.MethodPost,
			url:            "/appointments",
			role:           user.RoleAdmin,
			wantStatusCode: http.StatusForbidden,
		},
		{
			name:           "admin_has_no_personal_listing",
			method:         http.MethodGet,
			url:            "/appointments",
			role:           user.RoleAdmin,
			wantStatusCode: http.StatusForbidden,
		},
		{
			name:           "user_cannot_list_all",
			method:         http.MethodGet,
			url:            "/appointments/admin",
			role:           user.RoleUser,
			wantStatusCode: http.StatusForbidden,
		},
		{
			name:           "user_cannot_delete",
			method:         http.MethodDelete,
			url:            "/appointments/" + uuid.NewString(),
			role:           user.RoleUser,
			wantStatusCode: http.StatusForbidden,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.url, nil)
			req.Header.Set("Authorization", "Bearer "+tokenFor(t, mgr, tt.role))

			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}
		})
	}
}

func TestRouterRejectsMissingToken(t *testing.T) {
	r, _ := testRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/appointments", nil))

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("got status %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestRouterHealthz(t *testing.T) {
	r, _ := testRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, want %d", w.Code, http.StatusOK)
	}
}
