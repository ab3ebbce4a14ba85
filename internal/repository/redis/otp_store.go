// Package redis stores OTP flow state in Redis so every replica sees the same
// attempts and resend windows.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go-events-backend/internal/domain"
	"go-events-backend/pkg/security"

	goredis "github.com/redis/go-redis/v9"
)

const (
	attemptPrefix = "otp:attempt:"
	resendPrefix  = "otp:resend:"
)

type OTPStore struct {
	rdb goredis.Cmdable
}

func NewOTPStore(rdb goredis.Cmdable) *OTPStore {
	return &OTPStore{rdb: rdb}
}

// Phone numbers never appear in key names.
func attemptKey(phone string) string { return attemptPrefix + security.HashValue(phone) }
func resendKey(phone string) string  { return resendPrefix + security.HashValue(phone) }

func (s *OTPStore) GetAttempt(ctx context.Context, phone string) (domain.Attempt, bool, error) {
	raw, err := s.rdb.Get(ctx, attemptKey(phone)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return domain.Attempt{}, false, nil
	}
	if err != nil {
		return domain.Attempt{}, false, fmt.Errorf("get attempt: %w", err)
	}

	var a domain.Attempt
	if err := json.Unmarshal(raw, &a); err != nil {
		return domain.Attempt{}, false, fmt.Errorf("decode attempt: %w", err)
	}
	return a, true, nil
}

func (s *OTPStore) SetAttempt(ctx context.Context, phone string, a domain.Attempt, ttl time.Duration) error {
	raw, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode attempt: %w", err)
	}
	if err := s.rdb.Set(ctx, attemptKey(phone), raw, ttl).Err(); err != nil {
		return fmt.Errorf("set attempt: %w", err)
	}
	return nil
}

// ClaimResend uses SET NX PX so exactly one caller opens each window.
func (s *OTPStore) ClaimResend(ctx context.Context, phone string, window time.Duration) (bool, time.Duration, error) {
	key := resendKey(phone)
	ok, err := s.rdb.SetNX(ctx, key, time.Now().UTC().Unix(), window).Result()
	if err != nil {
		return false, 0, fmt.Errorf("claim resend: %w", err)
	}
	if ok {
		return true, window, nil
	}

	left, err := s.remaining(ctx, key)
	if err != nil {
		return false, 0, err
	}
	return false, left, nil
}

func (s *OTPStore) ReleaseResend(ctx context.Context, phone string) error {
	if err := s.rdb.Del(ctx, resendKey(phone)).Err(); err != nil {
		return fmt.Errorf("release resend: %w", err)
	}
	return nil
}

func (s *OTPStore) ResendRemaining(ctx context.Context, phone string) (time.Duration, error) {
	return s.remaining(ctx, resendKey(phone))
}

func (s *OTPStore) remaining(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := s.rdb.PTTL(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("resend ttl: %w", err)
	}
	// -2 (missing) and -1 (no expiry) both mean no active window.
	if ttl < 0 {
		return 0, nil
	}
	return ttl, nil
}

var _ domain.OTPStateStore = (*OTPStore)(nil)
