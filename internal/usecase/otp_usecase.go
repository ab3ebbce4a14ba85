package usecase

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go-events-backend/internal/domain"
	"go-events-backend/pkg/apperror"
	"go-events-backend/pkg/logger"
	"go-events-backend/pkg/metrics"
	"go-events-backend/pkg/security"
	"go-events-backend/pkg/validation"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/singleflight"
)

// attemptTTL bounds how long a verification attempt is remembered after its last change.
const attemptTTL = 10 * time.Minute

const (
	invalidCodeMessage = "Invalid or expired verification code"
	upstreamMessage    = "Verification service unavailable. Please try again"
)

type OTPOptions struct {
	ResendWindow time.Duration
	Metrics      *metrics.Metrics
	Security     *security.SecurityLogger
	Now          func() time.Time
}

type otpUsecase struct {
	gateway  domain.AuthGateway
	store    domain.OTPStateStore
	validate *validator.Validate
	window   time.Duration
	metrics  *metrics.Metrics
	sec      *security.SecurityLogger
	now      func() time.Time

	// flights collapses concurrent submissions for the same phone into one upstream call.
	flights singleflight.Group
}

func NewOTPUsecase(gateway domain.AuthGateway, store domain.OTPStateStore, validate *validator.Validate, opts OTPOptions) domain.OTPUsecase {
	u := &otpUsecase{
		gateway:  gateway,
		store:    store,
		validate: validate,
		window:   opts.ResendWindow,
		metrics:  opts.Metrics,
		sec:      opts.Security,
		now:      opts.Now,
	}
	if u.window <= 0 {
		u.window = 60 * time.Second
	}
	if u.metrics == nil {
		u.metrics = metrics.New(nil)
	}
	if u.sec == nil {
		u.sec = security.Nop()
	}
	if u.now == nil {
		u.now = time.Now
	}
	return u
}

// wholeSeconds rounds a positive remainder up so a countdown never shows 0 while still locked.
func wholeSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}

// ============================================================================
// Send / Resend
// ============================================================================

func (u *otpUsecase) Send(ctx context.Context, phone string) (domain.SendResult, error) {
	return u.send(ctx, phone, false)
}

func (u *otpUsecase) Resend(ctx context.Context, phone string) (domain.SendResult, error) {
	return u.send(ctx, phone, true)
}

func (u *otpUsecase) send(ctx context.Context, phone string, resend bool) (domain.SendResult, error) {
	if err := u.validate.Struct(domain.OTPRequest{Phone: phone}); err != nil {
		return domain.SendResult{}, apperror.BadRequest("Validation failed").WithDetails(validation.FormatValidationErrors(err))
	}

	claimed, remaining, err := u.store.ClaimResend(ctx, phone, u.window)
	if err != nil {
		return domain.SendResult{}, apperror.ServiceUnavailable("Verification service unavailable", err)
	}
	if !claimed {
		u.countResend(resend, "throttled")
		u.sec.LogOTP(ctx, security.EventOTPResendThrottled, phone, "")
		return domain.SendResult{Sent: false, ResendIn: wholeSeconds(remaining)}, nil
	}

	if err := u.gateway.SendOTP(ctx, phone); err != nil {
		// Reopen the window so the user can try again right away.
		if relErr := u.store.ReleaseResend(ctx, phone); relErr != nil {
			logger.Log.WarnContext(ctx, "otp: release resend window failed", "error", relErr)
		}
		u.countResend(resend, "failed")
		return domain.SendResult{}, apperror.ServiceUnavailable("Could not send verification code", err)
	}

	if err := u.store.SetAttempt(ctx, phone, domain.Attempt{State: domain.AttemptIdle, UpdatedAt: u.now()}, attemptTTL); err != nil {
		logger.Log.WarnContext(ctx, "otp: reset attempt failed", "error", err)
	}

	u.countResend(resend, "sent")
	u.sec.LogOTP(ctx, security.EventOTPRequested, phone, "")
	return domain.SendResult{Sent: true, ResendIn: wholeSeconds(u.window)}, nil
}

func (u *otpUsecase) countResend(resend bool, result string) {
	if resend {
		u.metrics.OTPResends.WithLabelValues(result).Inc()
	}
}

// ============================================================================
// Verify
// ============================================================================

// Verify submits code for phone. Submissions arriving while one is in flight share
// its outcome instead of calling the auth backend again.
func (u *otpUsecase) Verify(ctx context.Context, req domain.OTPVerifyRequest) (domain.VerifyResult, error) {
	if err := u.validate.Struct(req); err != nil {
		return domain.VerifyResult{State: domain.AttemptIdle, Retryable: true},
			apperror.BadRequest("Validation failed").WithDetails(validation.FormatValidationErrors(err))
	}

	// The flight outlives the caller that started it; joiners still need the answer.
	flightCtx := context.WithoutCancel(ctx)
	v, err, shared := u.flights.Do(req.Phone, func() (interface{}, error) {
		return u.submit(flightCtx, req)
	})
	if shared {
		logger.Log.DebugContext(ctx, "otp: submission joined in-flight verify")
	}

	res, _ := v.(domain.VerifyResult)
	return res, err
}

func (u *otpUsecase) submit(ctx context.Context, req domain.OTPVerifyRequest) (domain.VerifyResult, error) {
	attempt, found, err := u.store.GetAttempt(ctx, req.Phone)
	if err != nil {
		return domain.VerifyResult{State: domain.AttemptIdle, Retryable: true},
			apperror.ServiceUnavailable("Verification service unavailable", err)
	}
	if found && attempt.State == domain.AttemptSuccess {
		u.metrics.OTPSubmissions.WithLabelValues("already_verified").Inc()
		return domain.VerifyResult{State: domain.AttemptSuccess}, apperror.Conflict(domain.ErrAlreadyVerified.Error())
	}

	u.setAttempt(ctx, req.Phone, domain.Attempt{State: domain.AttemptSubmitting})

	pair, err := u.gateway.VerifyOTP(ctx, req.Phone, req.Code)
	if err != nil {
		return u.fail(ctx, req.Phone, err)
	}

	u.setAttempt(ctx, req.Phone, domain.Attempt{State: domain.AttemptSuccess})
	u.metrics.OTPSubmissions.WithLabelValues("success").Inc()
	u.sec.LogOTP(ctx, security.EventOTPVerified, req.Phone, "")
	return domain.VerifyResult{State: domain.AttemptSuccess, Tokens: pair}, nil
}

// fail records FAILURE. The code itself is never kept, and the attempt stays retryable.
func (u *otpUsecase) fail(ctx context.Context, phone string, cause error) (domain.VerifyResult, error) {
	var appErr *apperror.AppError
	reason := "upstream_error"
	if errors.Is(cause, domain.ErrInvalidCode) {
		reason = "invalid_code"
		appErr = apperror.New(http.StatusUnauthorized, invalidCodeMessage, cause)
	} else {
		appErr = apperror.ServiceUnavailable(upstreamMessage, cause)
	}

	u.setAttempt(ctx, phone, domain.Attempt{State: domain.AttemptFailure, LastError: appErr.Message})
	u.metrics.OTPSubmissions.WithLabelValues(reason).Inc()
	u.sec.LogOTP(ctx, security.EventOTPFailed, phone, reason)

	res := domain.VerifyResult{State: domain.AttemptFailure, Retryable: true, Error: appErr.Message}
	return res, appErr.WithDetails(res)
}

func (u *otpUsecase) setAttempt(ctx context.Context, phone string, a domain.Attempt) {
	a.UpdatedAt = u.now()
	if err := u.store.SetAttempt(ctx, phone, a, attemptTTL); err != nil {
		logger.Log.WarnContext(ctx, "otp: persist attempt failed", "state", a.State, "error", err)
	}
}

// ============================================================================
// Status
// ============================================================================

func (u *otpUsecase) Status(ctx context.Context, phone string) (domain.OTPStatus, error) {
	if !validation.IsValidPhone(phone) {
		return domain.OTPStatus{}, apperror.BadRequest("Phone number must be in international format, e.g. +15551234567")
	}

	attempt, found, err := u.store.GetAttempt(ctx, phone)
	if err != nil {
		return domain.OTPStatus{}, apperror.ServiceUnavailable("Verification service unavailable", err)
	}
	if !found {
		attempt = domain.Attempt{State: domain.AttemptIdle}
	}

	remaining, err := u.store.ResendRemaining(ctx, phone)
	if err != nil {
		return domain.OTPStatus{}, apperror.ServiceUnavailable("Verification service unavailable", err)
	}

	return domain.OTPStatus{
		State:     attempt.State,
		LastError: attempt.LastError,
		Retryable: attempt.Retryable(),
		ResendIn:  wholeSeconds(remaining),
	}, nil
}
