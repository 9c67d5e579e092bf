package auth_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/townboard/backend/internal/auth"
	"github.com/townboard/backend/internal/middleware"
)

const cookieName = "board_admin"

func setupRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	accounts := auth.NewMemoryAccounts()
	_, err := auth.CreateAdmin(context.Background(), accounts, "mod", "correct horse")
	require.NoError(t, err)

	sessions := auth.NewSessionManager("secret", time.Hour, auth.NewMemorySessions())
	h := auth.NewHandler(accounts, sessions, auth.CookieOptions{Name: cookieName}, nil)

	r := gin.New()
	r.POST("/admin/login", h.Login)
	protected := r.Group("/admin", middleware.AdminSession(sessions, cookieName))
	protected.POST("/logout", h.Logout)
	protected.GET("/whoami", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(middleware.ContextAdminUsername)) })
	return r
}

func login(t *testing.T, r *gin.Engine, username, password string) *httptest.ResponseRecorder {
	t.Helper()
	body, _ := json.Marshal(auth.LoginRequest{Username: username, Password: password})
	req := httptest.NewRequest(http.MethodPost, "/admin/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func sessionCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == cookieName {
			return c
		}
	}
	t.Fatal("session cookie not set")
	return nil
}

func TestLoginLogout(t *testing.T) {
	r := setupRouter(t)

	w := login(t, r, "mod", "correct horse")
	require.Equal(t, http.StatusOK, w.Code)
	cookie := sessionCookie(t, w)
	assert.True(t, cookie.HttpOnly)

	req := httptest.NewRequest(http.MethodGet, "/admin/whoami", nil)
	req.AddCookie(cookie)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "mod", w.Body.String())

	req = httptest.NewRequest(http.MethodPost, "/admin/logout", nil)
	req.AddCookie(cookie)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/admin/whoami", nil)
	req.AddCookie(cookie)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	r := setupRouter(t)

	tests := []struct {
		name     string
		username string
		password string
		status   int
	}{
		{"wrong password", "mod", "wrong horse", http.StatusUnauthorized},
		{"unknown user", "nobody", "correct horse", http.StatusUnauthorized},
		{"missing password", "mod", "", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := login(t, r, tt.username, tt.password)
			assert.Equal(t, tt.status, w.Code)
			assert.Empty(t, w.Result().Cookies())
		})
	}
}

func TestBearerTokenAccepted(t *testing.T) {
	r := setupRouter(t)
	w := login(t, r, "mod", "correct horse")
	require.Equal(t, http.StatusOK, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/admin/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+sessionCookie(t, w).Value)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestProtectedRouteWithoutSession(t *testing.T) {
	r := setupRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/admin/whoami", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
