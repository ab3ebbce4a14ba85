package localauth_test

import (
	"context"
	"testing"
	"time"

	"go-events-backend/internal/domain"
	"go-events-backend/internal/repository/localauth"
	"go-events-backend/pkg/auth"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	secret = "local-dev-secret-at-least-32-bytes!!"
	phone  = "+15551234567"
)

func newGateway(t *testing.T) *localauth.Gateway {
	t.Helper()
	g, err := localauth.NewGateway(secret)
	require.NoError(t, err)
	return g
}

func TestNewGatewayRequiresSecret(t *testing.T) {
	_, err := localauth.NewGateway("")
	assert.Error(t, err)
}

func TestVerifyIssuedCode(t *testing.T) {
	g := newGateway(t)
	ctx := context.Background()

	require.NoError(t, g.SendOTP(ctx, phone))
	code, err := g.Code(phone)
	require.NoError(t, err)
	assert.Len(t, code, 6)

	pair, err := g.VerifyOTP(ctx, phone, code)
	require.NoError(t, err)
	assert.Equal(t, localauth.UserID(phone), pair.UserID)

	claims, err := auth.NewVerifier(secret, nil).Verify(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, pair.UserID, claims.Subject)
	assert.Equal(t, phone, claims.Phone)
}

func TestVerifyRejectsWrongCode(t *testing.T) {
	g := newGateway(t)
	code, err := g.Code(phone)
	require.NoError(t, err)

	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	_, err = g.VerifyOTP(context.Background(), phone, wrong)
	assert.ErrorIs(t, err, domain.ErrInvalidCode)
}

func TestCodeExpires(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	g := newGateway(t).WithClock(func() time.Time { return now })
	code, err := g.Code(phone)
	require.NoError(t, err)

	now = now.Add(time.Hour)
	_, err = g.VerifyOTP(context.Background(), phone, code)
	assert.ErrorIs(t, err, domain.ErrInvalidCode)
}

func TestRefresh(t *testing.T) {
	g := newGateway(t)
	ctx := context.Background()
	code, _ := g.Code(phone)
	pair, err := g.VerifyOTP(ctx, phone, code)
	require.NoError(t, err)

	next, err := g.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, pair.UserID, next.UserID)
	assert.NotEqual(t, pair.RefreshToken, next.RefreshToken)

	_, err = g.Refresh(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, domain.ErrInvalidRefreshToken, "access tokens are not refresh tokens")
}

func TestRefreshTokenIsNotABearerToken(t *testing.T) {
	g := newGateway(t)
	code, _ := g.Code(phone)
	pair, err := g.VerifyOTP(context.Background(), phone, code)
	require.NoError(t, err)

	_, err = auth.NewVerifier(secret, nil).Verify(pair.RefreshToken)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestUserIDStable(t *testing.T) {
	assert.Equal(t, localauth.UserID(phone), localauth.UserID(phone))
	assert.NotEqual(t, localauth.UserID(phone), localauth.UserID("+15557654321"))
}
