package v1_test

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go-events-backend/config"
	"go-events-backend/internal/delivery/http/middleware"
	"go-events-backend/internal/delivery/http/response"
	v1 "go-events-backend/internal/delivery/http/v1"
	"go-events-backend/internal/domain"
	"go-events-backend/internal/repository/memory"
	"go-events-backend/internal/usecase"
	"go-events-backend/pkg/apperror"
	"go-events-backend/pkg/auth"
	"go-events-backend/pkg/metrics"
	"go-events-backend/pkg/validation"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const userToken = "user-token"

type staticVerifier struct{}

func (staticVerifier) Verify(token string) (*auth.Claims, error) {
	if token != userToken {
		return nil, auth.ErrInvalidToken
	}
	return &auth.Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "user-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}, nil
}

type stubGateway struct{}

func (stubGateway) SendOTP(ctx context.Context, phone string) error { return nil }
func (stubGateway) VerifyOTP(ctx context.Context, phone, code string) (*domain.TokenPair, error) {
	if code != "123456" {
		return nil, domain.ErrInvalidCode
	}
	return &domain.TokenPair{AccessToken: "at", RefreshToken: "rt", UserID: "user-1"}, nil
}
func (stubGateway) Refresh(ctx context.Context, token string) (*domain.TokenPair, error) {
	return nil, domain.ErrInvalidRefreshToken
}
func (stubGateway) SignOut(ctx context.Context, token string) error { return nil }

type MockOnboarding struct {
	mock.Mock
}

func (m *MockOnboarding) Resolve(ctx context.Context, s *domain.Session) domain.OnboardingStatus {
	args := m.Called(s != nil)
	return args.Get(0).(domain.OnboardingStatus)
}

func (m *MockOnboarding) GetProfile(ctx context.Context, s *domain.Session) (*domain.Profile, error) {
	args := m.Called(s.UserID)
	p, _ := args.Get(0).(*domain.Profile)
	return p, args.Error(1)
}

func (m *MockOnboarding) CompleteStep(ctx context.Context, s *domain.Session, step domain.Step, sub domain.StepSubmission) (domain.OnboardingStatus, error) {
	args := m.Called(step, sub)
	return args.Get(0).(domain.OnboardingStatus), args.Error(1)
}

func (m *MockOnboarding) UploadAvatar(ctx context.Context, s *domain.Session, up domain.AvatarUpload) (domain.OnboardingStatus, error) {
	args := m.Called(up.Filename, len(up.Data) > 0)
	return args.Get(0).(domain.OnboardingStatus), args.Error(1)
}

type MockPolls struct {
	mock.Mock
}

func (m *MockPolls) Create(ctx context.Context, s *domain.Session, req domain.CreatePollRequest) (*domain.Poll, error) {
	args := m.Called(req)
	p, _ := args.Get(0).(*domain.Poll)
	return p, args.Error(1)
}

func (m *MockPolls) Get(ctx context.Context, s *domain.Session, id string) (*domain.Poll, error) {
	args := m.Called(id)
	p, _ := args.Get(0).(*domain.Poll)
	return p, args.Error(1)
}

func (m *MockPolls) Vote(ctx context.Context, s *domain.Session, id string, req domain.VoteRequest) (*domain.Poll, error) {
	args := m.Called(id, req.OptionID)
	p, _ := args.Get(0).(*domain.Poll)
	return p, args.Error(1)
}

type testServer struct {
	router     *gin.Engine
	onboarding *MockOnboarding
	polls      *MockPolls
	metrics    *metrics.Metrics
}

func newServer(t *testing.T) *testServer {
	t.Helper()
	return newServerWith(t, &config.Config{RateLimitWindowSeconds: 60, RateLimitOTPThreshold: 100})
}

func newServerWith(t *testing.T, cfg *config.Config) *testServer {
	t.Helper()
	m := metrics.New(nil)
	onboarding := new(MockOnboarding)
	polls := new(MockPolls)
	gateway := stubGateway{}

	router := v1.NewRouter(v1.RouterDeps{
		OTPUC:        usecase.NewOTPUsecase(gateway, memory.NewOTPStore(nil), validation.New(), usecase.OTPOptions{Metrics: m}),
		SessionUC:    usecase.NewSessionUsecase(gateway, nil),
		OnboardingUC: onboarding,
		PollUC:       polls,
		Verifier:     staticVerifier{},
		RateLimiter:  middleware.NewRateLimiter(nil, nil),
		Metrics:      m,
		Gatherer:     prometheus.NewRegistry(),
		Config:       cfg,
	})
	return &testServer{router: router, onboarding: onboarding, polls: polls, metrics: m}
}

func (s *testServer) do(method, path string, body interface{}, token string) (*httptest.ResponseRecorder, response.Response) {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var resp response.Response
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	return w, resp
}

func boolPtr(b bool) *bool { return &b }

func TestHealthAndMetrics(t *testing.T) {
	s := newServer(t)

	w, _ := s.do(http.MethodGet, "/v1/health", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = s.do(http.MethodGet, "/metrics", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestOTPFlow(t *testing.T) {
	s := newServer(t)
	phone := map[string]string{"phone": "+15551234567"}

	w, resp := s.do(http.MethodPost, "/v1/auth/otp", phone, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]interface{}{"sent": true, "resend_in": float64(60)}, resp.Data)

	w, resp = s.do(http.MethodPost, "/v1/auth/otp/resend", phone, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, resp.Data.(map[string]interface{})["sent"])

	w, resp = s.do(http.MethodPost, "/v1/auth/otp/verify", map[string]string{"phone": "+15551234567", "code": "000000"}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	detail := resp.Error.(map[string]interface{})
	assert.Equal(t, string(domain.AttemptFailure), detail["state"])
	assert.Equal(t, true, detail["retryable"])

	w, resp = s.do(http.MethodGet, "/v1/auth/otp/status?phone=%2B15551234567", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, string(domain.AttemptFailure), resp.Data.(map[string]interface{})["state"])

	w, resp = s.do(http.MethodPost, "/v1/auth/otp/verify", map[string]string{"phone": "+15551234567", "code": "123456"}, "")
	require.Equal(t, http.StatusOK, w.Code)
	tokens := resp.Data.(map[string]interface{})["tokens"].(map[string]interface{})
	assert.Equal(t, "at", tokens["access_token"])

	w, _ = s.do(http.MethodPost, "/v1/auth/otp/verify", map[string]string{"phone": "+15551234567", "code": "12"}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSessionRoutes(t *testing.T) {
	s := newServer(t)

	_, resp := s.do(http.MethodGet, "/v1/session", nil, "")
	assert.Nil(t, resp.Data)

	_, resp = s.do(http.MethodGet, "/v1/session", nil, userToken)
	assert.Equal(t, "user-1", resp.Data.(map[string]interface{})["user_id"])

	w, _ := s.do(http.MethodPost, "/v1/auth/refresh", map[string]string{"refresh_token": "stale"}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = s.do(http.MethodPost, "/v1/auth/logout", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = s.do(http.MethodPost, "/v1/auth/logout", nil, userToken)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRefreshIsRateLimited(t *testing.T) {
	s := newServerWith(t, &config.Config{RateLimitWindowSeconds: 60, RateLimitOTPThreshold: 2})
	body := map[string]string{"refresh_token": "stale"}

	codes := make([]int, 3)
	for i := range codes {
		w, _ := s.do(http.MethodPost, "/v1/auth/refresh", body, "")
		codes[i] = w.Code
	}
	assert.Equal(t, []int{http.StatusUnauthorized, http.StatusUnauthorized, http.StatusTooManyRequests}, codes)
}

func TestGate(t *testing.T) {
	cases := []struct {
		name   string
		mode   string
		token  string
		status domain.OnboardingStatus
		state  domain.GateState
	}{
		{"root anonymous", "root", "", domain.OnboardingStatus{CurrentStep: domain.StepPhoneAuth, IsComplete: boolPtr(false)}, domain.GateAuthFlow},
		{"protected anonymous", "protected", "", domain.OnboardingStatus{CurrentStep: domain.StepPhoneAuth, IsComplete: boolPtr(false)}, domain.GateBlocked},
		{"root incomplete", "", userToken, domain.OnboardingStatus{CurrentStep: domain.StepHobbies, IsComplete: boolPtr(false)}, domain.GateAuthFlow},
		{"loading", "root", userToken, domain.OnboardingStatus{Loading: true}, domain.GateLoading},
		{"complete", "protected", userToken, domain.OnboardingStatus{CurrentStep: domain.StepComplete, IsComplete: boolPtr(true)}, domain.GateMainApp},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newServer(t)
			s.onboarding.On("Resolve", tc.token != "").Return(tc.status)

			w, resp := s.do(http.MethodGet, "/v1/gate?mode="+tc.mode, nil, tc.token)
			require.Equal(t, http.StatusOK, w.Code)
			data := resp.Data.(map[string]interface{})
			assert.Equal(t, string(tc.state), data["state"])
			assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.GateDecisions.WithLabelValues(string(tc.state))))
		})
	}

	t.Run("Should reject unknown mode", func(t *testing.T) {
		s := newServer(t)
		w, _ := s.do(http.MethodGet, "/v1/gate?mode=sideways", nil, "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestOnboardingRoutes(t *testing.T) {
	t.Run("Should resolve status without a session", func(t *testing.T) {
		s := newServer(t)
		s.onboarding.On("Resolve", false).Return(domain.OnboardingStatus{CurrentStep: domain.StepPhoneAuth, IsComplete: boolPtr(false)})

		w, resp := s.do(http.MethodGet, "/v1/onboarding/status", nil, "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "PhoneAuth", resp.Data.(map[string]interface{})["current_step"])
	})

	t.Run("Should require auth for step submission", func(t *testing.T) {
		s := newServer(t)
		w, _ := s.do(http.MethodPut, "/v1/onboarding/steps/NameInput", map[string]string{"full_name": "Ada"}, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("Should pass step and payload through", func(t *testing.T) {
		s := newServer(t)
		s.onboarding.On("CompleteStep", domain.StepNameInput, domain.StepSubmission{FullName: "Ada Lovelace"}).
			Return(domain.OnboardingStatus{CurrentStep: domain.StepAvatarPick, IsComplete: boolPtr(false)}, nil)

		w, resp := s.do(http.MethodPut, "/v1/onboarding/steps/NameInput", map[string]string{"full_name": "Ada Lovelace"}, userToken)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "AvatarPick", resp.Data.(map[string]interface{})["current_step"])
	})

	t.Run("Should render usecase errors", func(t *testing.T) {
		s := newServer(t)
		s.onboarding.On("CompleteStep", domain.Step("Nope"), mock.Anything).
			Return(domain.OnboardingStatus{}, apperror.BadRequest("Unknown onboarding step: Nope"))

		w, resp := s.do(http.MethodPut, "/v1/onboarding/steps/Nope", map[string]string{}, userToken)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Unknown onboarding step: Nope", resp.Message)
	})

	t.Run("Should return profile", func(t *testing.T) {
		s := newServer(t)
		name := "Ada"
		s.onboarding.On("GetProfile", "user-1").Return(&domain.Profile{ID: "user-1", FullName: &name}, nil)

		w, resp := s.do(http.MethodGet, "/v1/profile", nil, userToken)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "Ada", resp.Data.(map[string]interface{})["full_name"])
	})
}

func TestUploadAvatar(t *testing.T) {
	s := newServer(t)
	s.onboarding.On("UploadAvatar", "me.png", true).
		Return(domain.OnboardingStatus{CurrentStep: domain.StepPermissions, IsComplete: boolPtr(false)}, nil)

	var img bytes.Buffer
	require.NoError(t, png.Encode(&img, image.NewRGBA(image.Rect(0, 0, 8, 8))))

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("avatar", "me.png")
	require.NoError(t, err)
	_, _ = part.Write(img.Bytes())
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/profile/avatar", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+userToken)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	s.onboarding.AssertExpectations(t)

	req = httptest.NewRequest(http.MethodPost, "/v1/profile/avatar", nil)
	req.Header.Set("Authorization", "Bearer "+userToken)
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPollRoutes(t *testing.T) {
	complete := domain.OnboardingStatus{CurrentStep: domain.StepComplete, IsComplete: boolPtr(true)}

	t.Run("Should block users mid-onboarding", func(t *testing.T) {
		s := newServer(t)
		s.onboarding.On("Resolve", true).Return(domain.OnboardingStatus{CurrentStep: domain.StepHobbies, IsComplete: boolPtr(false)})

		w, resp := s.do(http.MethodGet, "/v1/polls/01HZX", nil, userToken)
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Equal(t, "Hobbies", resp.Error.(map[string]interface{})["next_step"])
		s.polls.AssertNotCalled(t, "Get", mock.Anything)
	})

	t.Run("Should create and vote", func(t *testing.T) {
		s := newServer(t)
		s.onboarding.On("Resolve", true).Return(complete)
		req := domain.CreatePollRequest{Question: "Which day?", Options: []string{"Sat", "Sun"}}
		poll := &domain.Poll{ID: "p1", Question: "Which day?", Options: []domain.PollOption{{ID: "o1", Label: "Sat"}, {ID: "o2", Label: "Sun"}}}
		s.polls.On("Create", req).Return(poll, nil)

		voted := *poll
		voted.TotalVotes = 1
		s.polls.On("Vote", "p1", "o2").Return(&voted, nil)

		w, resp := s.do(http.MethodPost, "/v1/polls", req, userToken)
		require.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, "p1", resp.Data.(map[string]interface{})["id"])

		w, resp = s.do(http.MethodPost, "/v1/polls/p1/votes", domain.VoteRequest{OptionID: "o2"}, userToken)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, float64(1), resp.Data.(map[string]interface{})["total_votes"])
	})

	t.Run("Should map missing poll", func(t *testing.T) {
		s := newServer(t)
		s.onboarding.On("Resolve", true).Return(complete)
		s.polls.On("Get", "gone").Return(nil, apperror.NotFound("Poll not found"))

		w, _ := s.do(http.MethodGet, "/v1/polls/gone", nil, userToken)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
