// Package memory holds process-local stores used when Redis is not configured.
package memory

import (
	"context"
	"sync"
	"time"

	"go-events-backend/internal/domain"
)

type attemptEntry struct {
	attempt   domain.Attempt
	expiresAt time.Time
}

// OTPStore keeps OTP state in memory. State is lost on restart and is not shared
// between replicas.
type OTPStore struct {
	mu       sync.Mutex
	attempts map[string]attemptEntry
	windows  map[string]time.Time
	now      func() time.Time
}

// NewOTPStore returns an empty store. now defaults to time.Now.
func NewOTPStore(now func() time.Time) *OTPStore {
	if now == nil {
		now = time.Now
	}
	return &OTPStore{
		attempts: make(map[string]attemptEntry),
		windows:  make(map[string]time.Time),
		now:      now,
	}
}

func (s *OTPStore) GetAttempt(ctx context.Context, phone string) (domain.Attempt, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.attempts[phone]
	if !ok {
		return domain.Attempt{}, false, nil
	}
	if !s.now().Before(e.expiresAt) {
		delete(s.attempts, phone)
		return domain.Attempt{}, false, nil
	}
	return e.attempt, true, nil
}

func (s *OTPStore) SetAttempt(ctx context.Context, phone string, a domain.Attempt, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.attempts[phone] = attemptEntry{attempt: a, expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *OTPStore) ClaimResend(ctx context.Context, phone string, window time.Duration) (bool, time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if until, ok := s.windows[phone]; ok && now.Before(until) {
		return false, until.Sub(now), nil
	}
	s.windows[phone] = now.Add(window)
	return true, window, nil
}

func (s *OTPStore) ReleaseResend(ctx context.Context, phone string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.windows, phone)
	return nil
}

func (s *OTPStore) ResendRemaining(ctx context.Context, phone string) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	until, ok := s.windows[phone]
	if !ok {
		return 0, nil
	}
	left := until.Sub(s.now())
	if left <= 0 {
		delete(s.windows, phone)
		return 0, nil
	}
	return left, nil
}

var _ domain.OTPStateStore = (*OTPStore)(nil)
