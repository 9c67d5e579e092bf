package auth

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/townboard/backend/pkg/response"
)

// ContextSessionID is the gin context key under which the session middleware stores the session ID.
const ContextSessionID = "admin_session_id"

// LoginRequest is the body for POST /admin/login.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// CookieOptions controls the admin session cookie.
type CookieOptions struct {
	Name   string
	Secure bool
}

// Handler handles admin login and logout.
type Handler struct {
	accounts Accounts
	sessions *SessionManager
	cookie   CookieOptions
	logger   *zap.Logger
}

// NewHandler creates an auth handler.
func NewHandler(accounts Accounts, sessions *SessionManager, cookie CookieOptions, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{accounts: accounts, sessions: sessions, cookie: cookie, logger: logger}
}

// Login handles POST /admin/login.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "username and password are required")
		return
	}

	admin, err := h.accounts.GetByUsername(c.Request.Context(), req.Username)
	if err != nil {
		if !errors.Is(err, ErrAdminNotFound) {
			h.logger.Error("admin lookup", zap.Error(err))
			response.Internal(c, "server error")
			return
		}
		response.Unauthorized(c, "invalid username or password")
		return
	}
	if !CheckPassword(req.Password, admin.PasswordHash) {
		response.Unauthorized(c, "invalid username or password")
		return
	}

	token, err := h.sessions.Start(c.Request.Context(), admin.ID, admin.Username)
	if err != nil {
		h.logger.Error("start admin session", zap.Error(err))
		response.Internal(c, "failed to start session")
		return
	}

	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(h.cookie.Name, token, int(h.sessions.TTL().Seconds()), "/", "", h.cookie.Secure, true)
	h.logger.Info("admin logged in", zap.String("username", admin.Username))
	response.OK(c, gin.H{"token": token, "admin": admin})
}

// Logout handles POST /admin/logout. It needs the session middleware to have run.
func (h *Handler) Logout(c *gin.Context) {
	sessionID := c.GetString(ContextSessionID)
	if sessionID != "" {
		if err := h.sessions.End(c.Request.Context(), sessionID); err != nil {
			h.logger.Warn("end admin session", zap.Error(err))
		}
	}
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(h.cookie.Name, "", -1, "/", "", h.cookie.Secure, true)
	response.OK(c, gin.H{"logged_out": true})
}
