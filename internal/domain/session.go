package domain

import (
	"context"
	"time"
)

// Session is the authenticated identity issued by the hosted auth service.
type Session struct {
	UserID      string    `json:"user_id"`
	Phone       string    `json:"phone,omitempty"`
	Email       string    `json:"email,omitempty"`
	AccessToken string    `json:"-"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Expired reports whether the session's access token has lapsed at now.
func (s *Session) Expired(now time.Time) bool {
	return s == nil || !now.Before(s.ExpiresAt)
}

// WithSession returns a copy of ctx carrying s.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, KeySession, s)
}

// SessionFromContext returns the session placed on ctx by the auth middleware.
func SessionFromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(KeySession).(*Session)
	return s, ok && s != nil
}

// SessionProvider exposes the current session to usecases. It is injected rather
// than read from a package-level singleton.
type SessionProvider interface {
	Current(ctx context.Context) (*Session, bool)
}

// TokenPair is the credential bundle handed back to the client after sign-in or refresh.
type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	UserID       string    `json:"user_id"`
}

type SessionUsecase interface {
	SessionProvider
	Refresh(ctx context.Context, refreshToken string) (*TokenPair, error)
	SignOut(ctx context.Context) error
}
