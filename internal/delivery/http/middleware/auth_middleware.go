package middleware

import (
	"net/http"
	"strings"
	"time"

	"go-events-backend/internal/delivery/http/response"
	"go-events-backend/internal/domain"
	"go-events-backend/pkg/auth"
	"go-events-backend/pkg/security"

	"github.com/gin-gonic/gin"
)

// TokenVerifier is satisfied by *auth.Verifier.
type TokenVerifier interface {
	Verify(tokenString string) (*auth.Claims, error)
}

// bearerToken reads the Authorization header first, then the auth_token cookie.
func bearerToken(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); h != "" {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	if cookie, err := c.Cookie("auth_token"); err == nil {
		return cookie
	}
	return ""
}

func sessionFromClaims(claims *auth.Claims, token string) *domain.Session {
	s := &domain.Session{
		UserID:      claims.Subject,
		Phone:       claims.Phone,
		Email:       claims.Email,
		AccessToken: token,
	}
	if claims.ExpiresAt != nil {
		s.ExpiresAt = claims.ExpiresAt.Time
	}
	return s
}

func requestIDOf(c *gin.Context) string {
	v, _ := c.Get(string(domain.KeyRequestID))
	id, _ := v.(string)
	return id
}

// OptionalAuth attaches a session when a valid token is present. Requests without
// a token, or with a bad one, continue anonymously.
func OptionalAuth(verifier TokenVerifier, sec *security.SecurityLogger) gin.HandlerFunc {
	if sec == nil {
		sec = security.Nop()
	}
	return func(c *gin.Context) {
		authenticate(c, verifier, sec)
		c.Next()
	}
}

// RequireAuth rejects the request with 401 unless a valid token is present.
func RequireAuth(verifier TokenVerifier, sec *security.SecurityLogger) gin.HandlerFunc {
	if sec == nil {
		sec = security.Nop()
	}
	return func(c *gin.Context) {
		_, ok := domain.SessionFromContext(c.Request.Context())
		if !ok && !c.GetBool(authCheckedKey) {
			ok = authenticate(c, verifier, sec)
		}
		if !ok {
			response.Error(c, http.StatusUnauthorized, "Authorization header or auth_token cookie required", nil)
			c.Abort()
			return
		}
		c.Next()
	}
}

// authCheckedKey marks a request whose token was already examined by OptionalAuth.
const authCheckedKey = "auth.checked"

func authenticate(c *gin.Context, verifier TokenVerifier, sec *security.SecurityLogger) bool {
	c.Set(authCheckedKey, true)
	token := bearerToken(c)
	if token == "" {
		return false
	}

	claims, err := verifier.Verify(token)
	if err != nil {
		sec.LogUnauthorized(c.Request.Context(), c.ClientIP(), requestIDOf(c), err.Error())
		return false
	}

	session := sessionFromClaims(claims, token)
	if session.Expired(time.Now()) {
		sec.LogUnauthorized(c.Request.Context(), c.ClientIP(), requestIDOf(c), "session expired")
		return false
	}
	c.Request = c.Request.WithContext(domain.WithSession(c.Request.Context(), session))
	c.Set(string(domain.KeySession), session)
	c.Set(string(domain.KeyUserID), session.UserID)
	return true
}
