package v1

import (
	"net/http"
	"time"

	"go-events-backend/config"
	"go-events-backend/internal/delivery/http/middleware"
	"go-events-backend/internal/delivery/http/response"
	"go-events-backend/internal/domain"
	"go-events-backend/internal/usecase"
	"go-events-backend/pkg/metrics"
	"go-events-backend/pkg/security"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

type RouterDeps struct {
	OTPUC        domain.OTPUsecase
	SessionUC    domain.SessionUsecase
	OnboardingUC domain.OnboardingUsecase
	PollUC       domain.PollUsecase
	HealthUC     usecase.HealthUsecase
	Verifier     middleware.TokenVerifier
	RateLimiter  *middleware.RateLimiter
	Security     *security.SecurityLogger
	Metrics      *metrics.Metrics
	// Gatherer backs /metrics. Nil skips the endpoint.
	Gatherer prometheus.Gatherer
	Config   *config.Config
}

func NewRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()

	cfg := deps.Config
	if cfg == nil {
		cfg = &config.Config{}
	}
	limiter := deps.RateLimiter
	if limiter == nil {
		limiter = middleware.NewRateLimiter(nil, deps.Security)
	}

	// Global Middlewares
	r.Use(middleware.CORSMiddleware(cfg.CORSAllowedOrigins, cfg.IsProduction())) // CORS must be first!
	r.Use(gin.Recovery())
	r.Use(gin.Logger())
	r.Use(middleware.RequestID())
	r.Use(middleware.SecurityHeadersMiddleware(cfg.IsProduction()))
	r.Use(middleware.ErrorHandler())

	if deps.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	v1 := r.Group("/v1")

	v1.GET("/health", func(c *gin.Context) {
		if deps.HealthUC == nil {
			response.Success(c, http.StatusOK, "System operational", nil)
			return
		}
		status, healthy := deps.HealthUC.Check(c.Request.Context())
		if !healthy {
			response.Error(c, http.StatusServiceUnavailable, "System degraded", status)
			return
		}
		response.Success(c, http.StatusOK, "System operational", status)
	})

	// Swagger
	v1.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	window := time.Duration(max(1, cfg.RateLimitWindowSeconds)) * time.Second
	if cfg.RateLimitGlobalThreshold > 0 {
		v1.Use(limiter.Middleware(middleware.GlobalRateLimitConfig(cfg.RateLimitGlobalThreshold, window)))
	}

	// Optional auth: anonymous requests still get a gate decision.
	public := v1.Group("")
	public.Use(middleware.OptionalAuth(deps.Verifier, deps.Security))

	otp := public.Group("")
	otp.Use(limiter.Middleware(middleware.OTPRateLimitConfig(max(1, cfg.RateLimitOTPThreshold), window)))

	protected := public.Group("")
	protected.Use(middleware.RequireAuth(deps.Verifier, deps.Security))

	onboarded := protected.Group("")
	onboarded.Use(middleware.RequireOnboarded(deps.OnboardingUC, deps.Metrics))

	NewAuthHandler(otp, public, protected, deps.OTPUC, deps.SessionUC)
	NewOnboardingHandler(public, protected, deps.OnboardingUC, deps.Metrics)
	NewPollHandler(onboarded, deps.PollUC)

	return r
}
