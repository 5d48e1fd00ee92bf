package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"
)

const (
	// DefaultSessionDuration is 7 days
	DefaultSessionDuration = 7 * 24 * time.Hour
	// SessionKeyPrefix maps a session id (JWT jti) to its user id
	SessionKeyPrefix = "session:"
	// UserSessionKeyPrefix maps a user id to their current session id
	UserSessionKeyPrefix = "user_session:"

	sessionIssuer = "municipal-portal"
)

// SessionClaims are carried in the signed session token.
type SessionClaims struct {
	UserID string `json:"uid"`
	jwt.RegisteredClaims
}

// Session is a validated, live session.
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
}

// IssuedSession is returned to the client after login or refresh.
type IssuedSession struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SessionManager issues HS256 session tokens and keeps the live-session
// registry in Redis, so logout and re-login revoke tokens before expiry.
// A user holds at most one session.
type SessionManager struct {
	rdb    *redis.Client
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewSessionManager(rdb *redis.Client, secret string, ttl time.Duration) *SessionManager {
	if ttl <= 0 {
		ttl = DefaultSessionDuration
	}
	return &SessionManager{rdb: rdb, secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Create starts a new session for userID, replacing any previous one.
func (m *SessionManager) Create(ctx context.Context, userID string) (*IssuedSession, error) {
	if err := m.InvalidateUser(ctx, userID); err != nil {
		return nil, err
	}

	now := m.now()
	expiresAt := now.Add(m.ttl)
	jti := ulid.Make().String()

	claims := &SessionClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    sessionIssuer,
			Subject:   userID,
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return nil, fmt.Errorf("sign session token: %w", err)
	}

	pipe := m.rdb.TxPipeline()
	pipe.Set(ctx, SessionKeyPrefix+jti, userID, m.ttl)
	pipe.Set(ctx, UserSessionKeyPrefix+userID, jti, m.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}

	return &IssuedSession{Token: token, ExpiresAt: expiresAt}, nil
}

// Validate checks the token signature and expiry and that the session is still registered.
func (m *SessionManager) Validate(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, ErrInvalidSession
	}
	claims, err := m.parse(token, true)
	if err != nil {
		return nil, ErrInvalidSession
	}

	userID, err := m.rdb.Get(ctx, SessionKeyPrefix+claims.ID).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrInvalidSession
	}
	if err != nil {
		return nil, fmt.Errorf("lookup session: %w", err)
	}
	if userID != claims.UserID {
		return nil, ErrInvalidSession
	}

	return &Session{ID: claims.ID, UserID: claims.UserID, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// Refresh swaps a live session for a new one with a fresh expiry.
func (m *SessionManager) Refresh(ctx context.Context, token string) (*IssuedSession, error) {
	s, err := m.Validate(ctx, token)
	if err != nil {
		return nil, err
	}
	return m.Create(ctx, s.UserID)
}

// Invalidate removes the session behind token. Expired or malformed tokens
// are not an error: there is nothing left to revoke.
func (m *SessionManager) Invalidate(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	claims, err := m.parse(token, false)
	if err != nil {
		return nil
	}

	pipe := m.rdb.TxPipeline()
	pipe.Del(ctx, SessionKeyPrefix+claims.ID)
	// Only drop the user mapping if it still points at this session.
	current, err := m.rdb.Get(ctx, UserSessionKeyPrefix+claims.UserID).Result()
	if err == nil && current == claims.ID {
		pipe.Del(ctx, UserSessionKeyPrefix+claims.UserID)
	} else if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	_, err = pipe.Exec(ctx)
	return err
}

// InvalidateUser removes the current session of userID, if any.
func (m *SessionManager) InvalidateUser(ctx context.Context, userID string) error {
	userKey := UserSessionKeyPrefix + userID
	jti, err := m.rdb.Get(ctx, userKey).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("lookup user session: %w", err)
	}
	return m.rdb.Del(ctx, SessionKeyPrefix+jti, userKey).Err()
}

func (m *SessionManager) parse(token string, validate bool) (*SessionClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(sessionIssuer),
		jwt.WithTimeFunc(m.now),
	}
	if !validate {
		opts = append(opts, jwt.WithoutClaimsValidation())
	}
	claims := &SessionClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	if claims.ID == "" || claims.UserID == "" {
		return nil, ErrInvalidSession
	}
	return claims, nil
}
