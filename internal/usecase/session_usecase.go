package usecase

import (
	"context"
	"errors"

	"go-events-backend/internal/domain"
	"go-events-backend/pkg/apperror"
	"go-events-backend/pkg/security"
)

type sessionUsecase struct {
	gateway domain.AuthGateway
	sec     *security.SecurityLogger
}

func NewSessionUsecase(gateway domain.AuthGateway, sec *security.SecurityLogger) domain.SessionUsecase {
	if sec == nil {
		sec = security.Nop()
	}
	return &sessionUsecase{gateway: gateway, sec: sec}
}

// Current returns the session the auth middleware verified for this request.
func (u *sessionUsecase) Current(ctx context.Context) (*domain.Session, bool) {
	return domain.SessionFromContext(ctx)
}

func (u *sessionUsecase) Refresh(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	if refreshToken == "" {
		return nil, apperror.BadRequest("Refresh token is required")
	}

	pair, err := u.gateway.Refresh(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidRefreshToken) {
			return nil, apperror.Unauthorized("Session expired. Please sign in again")
		}
		return nil, apperror.ServiceUnavailable("Auth service unavailable", err)
	}
	return pair, nil
}

func (u *sessionUsecase) SignOut(ctx context.Context) error {
	session, ok := u.Current(ctx)
	if !ok {
		return apperror.Unauthorized("User not authenticated")
	}

	if err := u.gateway.SignOut(ctx, session.AccessToken); err != nil {
		return apperror.ServiceUnavailable("Auth service unavailable", err)
	}

	u.sec.Log(ctx, security.SecurityEvent{
		Event:        security.EventSignedOut,
		SubjectType:  "user_id",
		SubjectValue: security.HashValue(session.UserID),
	})
	return nil
}
