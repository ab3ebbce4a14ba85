// Package localauth is an offline stand-in for the hosted auth service, selected
// with OTP_PROVIDER=local. Codes are TOTP values derived from the phone number and
// sessions are HS256 tokens signed with the project JWT secret, so the regular
// auth middleware accepts them.
package localauth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base32"
	"errors"
	"fmt"
	"time"

	"go-events-backend/internal/domain"
	"go-events-backend/pkg/auth"
	"go-events-backend/pkg/logger"
	"go-events-backend/pkg/security"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	issuer          = "localauth"
	accessTTL       = time.Hour
	refreshTTL      = 30 * 24 * time.Hour
)

var codeOpts = totp.ValidateOpts{
	Period:    300,
	Skew:      1,
	Digits:    otp.DigitsSix,
	Algorithm: otp.AlgorithmSHA1,
}

type refreshClaims struct {
	Typ   string `json:"typ"`
	Phone string `json:"phone"`
	jwt.RegisteredClaims
}

type Gateway struct {
	secret []byte
	now    func() time.Time
}

func NewGateway(jwtSecret string) (*Gateway, error) {
	if jwtSecret == "" {
		return nil, errors.New("localauth: SUPABASE_JWT_SECRET is required")
	}
	return &Gateway{secret: []byte(jwtSecret), now: time.Now}, nil
}

// WithClock replaces the time source, for tests.
func (g *Gateway) WithClock(now func() time.Time) *Gateway {
	g.now = now
	return g
}

// UserID is stable per phone so profiles survive restarts.
func UserID(phone string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("tel:"+phone)).String()
}

func (g *Gateway) otpSecret(phone string) string {
	mac := hmac.New(sha256.New, g.secret)
	mac.Write([]byte("otp:" + phone))
	return base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(mac.Sum(nil))
}

// Code returns the code currently valid for phone.
func (g *Gateway) Code(phone string) (string, error) {
	return totp.GenerateCodeCustom(g.otpSecret(phone), g.now(), codeOpts)
}

// SendOTP logs the code instead of texting it.
func (g *Gateway) SendOTP(ctx context.Context, phone string) error {
	code, err := g.Code(phone)
	if err != nil {
		return fmt.Errorf("localauth: generate code: %w", err)
	}
	logger.Log.InfoContext(ctx, "localauth: verification code issued", "phone", security.MaskPhone(phone), "code", code)
	return nil
}

func (g *Gateway) VerifyOTP(ctx context.Context, phone, code string) (*domain.TokenPair, error) {
	ok, err := totp.ValidateCustom(code, g.otpSecret(phone), g.now(), codeOpts)
	if err != nil || !ok {
		return nil, domain.ErrInvalidCode
	}
	return g.mint(phone)
}

func (g *Gateway) Refresh(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	claims := &refreshClaims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(g.now),
	)
	_, err := parser.ParseWithClaims(refreshToken, claims, func(*jwt.Token) (interface{}, error) {
		return g.secret, nil
	})
	if err != nil || claims.Typ != auth.RefreshTokenTyp || claims.Phone == "" {
		return nil, domain.ErrInvalidRefreshToken
	}
	return g.mint(claims.Phone)
}

// SignOut has nothing to revoke; tokens simply expire.
func (g *Gateway) SignOut(ctx context.Context, accessToken string) error {
	return nil
}

func (g *Gateway) mint(phone string) (*domain.TokenPair, error) {
	now := g.now().UTC()
	userID := UserID(phone)
	expires := now.Add(accessTTL)

	access := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{
		Phone: phone,
		Role:  "authenticated",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   userID,
			Audience:  jwt.ClaimStrings{"authenticated"},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	})
	accessToken, err := access.SignedString(g.secret)
	if err != nil {
		return nil, fmt.Errorf("localauth: sign access token: %w", err)
	}

	refresh := jwt.NewWithClaims(jwt.SigningMethodHS256, refreshClaims{
		Typ:   auth.RefreshTokenTyp,
		Phone: phone,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   userID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(refreshTTL)),
		},
	})
	refreshToken, err := refresh.SignedString(g.secret)
	if err != nil {
		return nil, fmt.Errorf("localauth: sign refresh token: %w", err)
	}

	return &domain.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    expires,
		UserID:       userID,
	}, nil
}

var _ domain.AuthGateway = (*Gateway)(nil)
