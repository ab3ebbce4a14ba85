// Package gotrue adapts the hosted auth REST client to the OTP flow.
package gotrue

import (
	"context"
	"fmt"
	"time"

	"go-events-backend/internal/domain"
	"go-events-backend/pkg/supabase"
)

type Gateway struct {
	client *supabase.Client
	now    func() time.Time
}

func NewGateway(client *supabase.Client) *Gateway {
	return &Gateway{client: client, now: time.Now}
}

func (g *Gateway) SendOTP(ctx context.Context, phone string) error {
	return g.client.SendOTP(ctx, phone)
}

func (g *Gateway) VerifyOTP(ctx context.Context, phone, code string) (*domain.TokenPair, error) {
	tr, err := g.client.VerifyOTP(ctx, phone, code)
	if err != nil {
		if supabase.IsClientError(err) {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidCode, err)
		}
		return nil, err
	}
	return g.pair(tr), nil
}

func (g *Gateway) Refresh(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	tr, err := g.client.RefreshSession(ctx, refreshToken)
	if err != nil {
		if supabase.IsClientError(err) {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidRefreshToken, err)
		}
		return nil, err
	}
	return g.pair(tr), nil
}

// SignOut treats an already revoked token as signed out.
func (g *Gateway) SignOut(ctx context.Context, accessToken string) error {
	if err := g.client.SignOut(ctx, accessToken); err != nil && !supabase.IsClientError(err) {
		return err
	}
	return nil
}

func (g *Gateway) pair(tr *supabase.TokenResponse) *domain.TokenPair {
	expires := g.now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	if tr.ExpiresAt > 0 {
		expires = time.Unix(tr.ExpiresAt, 0).UTC()
	}
	return &domain.TokenPair{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		ExpiresAt:    expires,
		UserID:       tr.User.ID,
	}
}

var _ domain.AuthGateway = (*Gateway)(nil)
