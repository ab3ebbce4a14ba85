package domain

import (
	"context"
	"errors"
	"time"
)

// AttemptState is the per-phone verification progress.
type AttemptState string

const (
	AttemptIdle       AttemptState = "IDLE"
	AttemptSubmitting AttemptState = "SUBMITTING"
	AttemptSuccess    AttemptState = "SUCCESS"
	AttemptFailure    AttemptState = "FAILURE"
)

// Attempt never stores the submitted code; a failed attempt leaves nothing to replay.
type Attempt struct {
	State     AttemptState `json:"state"`
	LastError string       `json:"last_error,omitempty"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// Retryable reports whether the user may submit another code for this attempt.
func (a Attempt) Retryable() bool {
	return a.State == AttemptIdle || a.State == AttemptFailure
}

var (
	ErrInvalidCode         = errors.New("invalid or expired verification code")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrAlreadyVerified     = errors.New("code already used; request a new one")
)

// AuthGateway is the hosted auth API surface used by the OTP flow.
type AuthGateway interface {
	SendOTP(ctx context.Context, phone string) error
	// VerifyOTP returns ErrInvalidCode when the backend rejects the code.
	VerifyOTP(ctx context.Context, phone, code string) (*TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*TokenPair, error)
	SignOut(ctx context.Context, accessToken string) error
}

// OTPStateStore keeps attempts and resend windows. Implementations must make
// ClaimResend atomic across concurrent callers.
type OTPStateStore interface {
	GetAttempt(ctx context.Context, phone string) (Attempt, bool, error)
	SetAttempt(ctx context.Context, phone string, a Attempt, ttl time.Duration) error
	// ClaimResend opens a resend window of length window if none is open.
	// When one is already open it returns claimed=false and the time left.
	ClaimResend(ctx context.Context, phone string, window time.Duration) (claimed bool, remaining time.Duration, err error)
	// ReleaseResend closes the window early, used when the send itself failed.
	ReleaseResend(ctx context.Context, phone string) error
	ResendRemaining(ctx context.Context, phone string) (time.Duration, error)
}

type SendResult struct {
	Sent     bool `json:"sent"`
	ResendIn int  `json:"resend_in"`
}

type VerifyResult struct {
	State     AttemptState `json:"state"`
	Retryable bool         `json:"retryable"`
	Error     string       `json:"error,omitempty"`
	Tokens    *TokenPair   `json:"tokens,omitempty"`
}

type OTPStatus struct {
	State     AttemptState `json:"state"`
	LastError string       `json:"last_error,omitempty"`
	Retryable bool         `json:"retryable"`
	ResendIn  int          `json:"resend_in"`
}

type OTPRequest struct {
	Phone string `json:"phone" validate:"required,valid_phone"`
}

type OTPVerifyRequest struct {
	Phone string `json:"phone" validate:"required,valid_phone"`
	Code  string `json:"code" validate:"required,otp_code"`
}

type OTPUsecase interface {
	Send(ctx context.Context, phone string) (SendResult, error)
	Resend(ctx context.Context, phone string) (SendResult, error)
	Verify(ctx context.Context, req OTPVerifyRequest) (VerifyResult, error)
	Status(ctx context.Context, phone string) (OTPStatus, error)
}
