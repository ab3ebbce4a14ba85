package middleware

import (
	"net/http"

	"go-events-backend/internal/delivery/http/response"
	"go-events-backend/internal/domain"
	"go-events-backend/pkg/metrics"

	"github.com/gin-gonic/gin"
)

// RequireOnboarded admits only sessions whose onboarding is complete. It runs the
// same decision as the gate endpoint in protected mode, so it must follow RequireAuth.
func RequireOnboarded(onboarding domain.OnboardingUsecase, m *metrics.Metrics) gin.HandlerFunc {
	if m == nil {
		m = metrics.New(nil)
	}
	return func(c *gin.Context) {
		session, hasSession := domain.SessionFromContext(c.Request.Context())
		st := onboarding.Resolve(c.Request.Context(), session)
		if hasSession && st.Error != "" {
			// The fallback step is a guess; do not send onboarded users back to it.
			response.Error(c, http.StatusServiceUnavailable, st.Error, nil)
			c.Abort()
			return
		}

		state := domain.Decide(domain.GateInput{
			Mode:       domain.ModeProtected,
			HasSession: hasSession,
			IsComplete: st.IsComplete,
		})
		m.GateDecisions.WithLabelValues(string(state)).Inc()

		if state != domain.GateMainApp {
			response.Error(c, http.StatusForbidden, "Complete onboarding to continue", domain.GateDecision{
				State:         state,
				Authorization: domain.Authorize(hasSession, st.IsComplete),
				NextStep:      st.CurrentStep,
			})
			c.Abort()
			return
		}
		c.Next()
	}
}
