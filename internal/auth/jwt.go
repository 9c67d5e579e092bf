package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	// ErrSessionNotFound means the session was destroyed or expired server side.
	ErrSessionNotFound = errors.New("session not found")
)

// Claims identify an admin session. RegisteredClaims.ID is the session ID.
type Claims struct {
	AdminID  uuid.UUID `json:"admin_id"`
	Username string    `json:"username"`
	jwt.RegisteredClaims
}

// SessionManager issues signed session tokens and checks them against the session store,
// so a logout invalidates a token before it expires.
type SessionManager struct {
	secret []byte
	ttl    time.Duration
	store  SessionStore
	now    func() time.Time
}

// NewSessionManager creates a session manager.
func NewSessionManager(secret string, ttl time.Duration, store SessionStore) *SessionManager {
	return &SessionManager{
		secret: []byte(secret),
		ttl:    ttl,
		store:  store,
		now:    time.Now,
	}
}

// TTL returns the session lifetime.
func (s *SessionManager) TTL() time.Duration { return s.ttl }

// Start records a new session for admin and returns its signed token.
func (s *SessionManager) Start(ctx context.Context, admin uuid.UUID, username string) (string, error) {
	sessionID := uuid.New().String()
	if err := s.store.Save(ctx, sessionID, admin, s.ttl); err != nil {
		return "", fmt.Errorf("save session: %w", err)
	}
	now := s.now()
	claims := Claims{
		AdminID:  admin,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        sessionID,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Validate parses a token and confirms its session is still live.
func (s *SessionManager) Validate(ctx context.Context, tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.ID == "" {
		return nil, ErrInvalidToken
	}
	owner, err := s.store.Lookup(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if owner != claims.AdminID {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// End destroys a session. Unknown sessions are not an error.
func (s *SessionManager) End(ctx context.Context, sessionID string) error {
	return s.store.Delete(ctx, sessionID)
}
