package v1

import (
	"io"
	"net/http"

	"go-events-backend/internal/delivery/http/response"
	"go-events-backend/internal/domain"
	"go-events-backend/pkg/imaging"
	"go-events-backend/pkg/metrics"

	"github.com/gin-gonic/gin"
)

type OnboardingHandler struct {
	onboardingUC domain.OnboardingUsecase
	metrics      *metrics.Metrics
}

func NewOnboardingHandler(public, protected *gin.RouterGroup, onboardingUC domain.OnboardingUsecase, m *metrics.Metrics) {
	if m == nil {
		m = metrics.New(nil)
	}
	handler := &OnboardingHandler{onboardingUC: onboardingUC, metrics: m}

	public.GET("/onboarding/status", handler.GetStatus)
	public.GET("/gate", handler.Gate)

	protected.PUT("/onboarding/steps/:step", handler.CompleteStep)
	protected.GET("/profile", handler.GetProfile)
	protected.POST("/profile/avatar", handler.UploadAvatar)
}

func currentSession(c *gin.Context) (*domain.Session, bool) {
	return domain.SessionFromContext(c.Request.Context())
}

// GetStatus godoc
// @Summary      Get onboarding status
// @Description  Resolves the next onboarding screen. Without a session the first auth step is returned.
// @Tags         onboarding
// @Produce      json
// @Success      200  {object}  response.Response{data=domain.OnboardingStatus}
// @Router       /onboarding/status [get]
// @Security     BearerAuth
func (h *OnboardingHandler) GetStatus(c *gin.Context) {
	session, _ := currentSession(c)
	response.Success(c, http.StatusOK, "Onboarding status retrieved", h.onboardingUC.Resolve(c.Request.Context(), session))
}

// Gate godoc
// @Summary      Decide which surface to render
// @Description  root mode yields AUTH_FLOW for unauthorized users, protected mode yields BLOCKED.
// @Tags         onboarding
// @Produce      json
// @Param        mode  query     string  false  "root or protected"  default(root)
// @Success      200   {object}  response.Response{data=domain.GateDecision}
// @Failure      400   {object}  response.Response
// @Router       /gate [get]
// @Security     BearerAuth
func (h *OnboardingHandler) Gate(c *gin.Context) {
	mode := domain.GateMode(c.Query("mode"))
	if mode == "" {
		mode = domain.ModeRoot
	}
	if !mode.IsValid() {
		response.Error(c, http.StatusBadRequest, "mode must be root or protected", nil)
		return
	}

	session, hasSession := currentSession(c)
	st := h.onboardingUC.Resolve(c.Request.Context(), session)

	decision := domain.GateDecision{
		State: domain.Decide(domain.GateInput{
			Mode:              mode,
			OnboardingLoading: st.Loading,
			HasSession:        hasSession,
			IsComplete:        st.IsComplete,
		}),
		Authorization: domain.Authorize(hasSession, st.IsComplete),
		NextStep:      st.CurrentStep,
	}
	h.metrics.GateDecisions.WithLabelValues(string(decision.State)).Inc()

	response.Success(c, http.StatusOK, "Gate decision computed", decision)
}

// CompleteStep godoc
// @Summary      Submit one onboarding screen
// @Description  Validates and stores the fields of the named step, then returns the next step.
// @Tags         onboarding
// @Accept       json
// @Produce      json
// @Param        step     path      string                 true  "Step token, e.g. NameInput"
// @Param        request  body      domain.StepSubmission  true  "Step fields"
// @Success      200      {object}  response.Response{data=domain.OnboardingStatus}
// @Failure      400      {object}  response.Response
// @Failure      401      {object}  response.Response
// @Router       /onboarding/steps/{step} [put]
// @Security     BearerAuth
func (h *OnboardingHandler) CompleteStep(c *gin.Context) {
	session, _ := currentSession(c)

	var req domain.StepSubmission
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "Invalid request body", nil)
		return
	}

	st, err := h.onboardingUC.CompleteStep(c.Request.Context(), session, domain.Step(c.Param("step")), req)
	if err != nil {
		c.Error(err)
		return
	}
	response.Success(c, http.StatusOK, "Step saved", st)
}

// GetProfile godoc
// @Summary      Get my profile
// @Tags         profile
// @Produce      json
// @Success      200  {object}  response.Response{data=domain.Profile}
// @Failure      401  {object}  response.Response
// @Router       /profile [get]
// @Security     BearerAuth
func (h *OnboardingHandler) GetProfile(c *gin.Context) {
	session, _ := currentSession(c)

	profile, err := h.onboardingUC.GetProfile(c.Request.Context(), session)
	if err != nil {
		c.Error(err)
		return
	}
	response.Success(c, http.StatusOK, "Profile retrieved", profile)
}

// UploadAvatar godoc
// @Summary      Upload an avatar
// @Description  The image is downscaled to 1024px and stored as JPEG. Max 5MB.
// @Tags         profile
// @Accept       multipart/form-data
// @Produce      json
// @Param        avatar  formData  file  true  "Image file"
// @Success      200     {object}  response.Response{data=domain.OnboardingStatus}
// @Failure      400     {object}  response.Response
// @Failure      401     {object}  response.Response
// @Router       /profile/avatar [post]
// @Security     BearerAuth
func (h *OnboardingHandler) UploadAvatar(c *gin.Context) {
	session, _ := currentSession(c)

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, imaging.MaxUploadBytes+1<<20)
	fileHeader, err := c.FormFile("avatar")
	if err != nil {
		response.Error(c, http.StatusBadRequest, "avatar file is required (max 5MB)", nil)
		return
	}
	if fileHeader.Size > imaging.MaxUploadBytes {
		response.Error(c, http.StatusBadRequest, "Avatar must be at most 5MB", nil)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, http.StatusBadRequest, "Could not read avatar file", nil)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "Could not read avatar file", nil)
		return
	}

	st, err := h.onboardingUC.UploadAvatar(c.Request.Context(), session, domain.AvatarUpload{
		Filename: fileHeader.Filename,
		Data:     data,
	})
	if err != nil {
		c.Error(err)
		return
	}
	response.Success(c, http.StatusOK, "Avatar uploaded", st)
}
