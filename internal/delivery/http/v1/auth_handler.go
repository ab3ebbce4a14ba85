package v1

import (
	"net/http"

	"go-events-backend/internal/delivery/http/response"
	"go-events-backend/internal/domain"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	otpUC     domain.OTPUsecase
	sessionUC domain.SessionUsecase
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// NewAuthHandler mounts the routes that call the hosted auth service on otp
// (rate limited) and the session routes on public and protected.
func NewAuthHandler(otp, public, protected *gin.RouterGroup, otpUC domain.OTPUsecase, sessionUC domain.SessionUsecase) {
	handler := &AuthHandler{otpUC: otpUC, sessionUC: sessionUC}

	otp.POST("/auth/otp", handler.SendOTP)
	otp.POST("/auth/otp/resend", handler.ResendOTP)
	otp.POST("/auth/otp/verify", handler.VerifyOTP)
	public.GET("/auth/otp/status", handler.OTPStatus)
	otp.POST("/auth/refresh", handler.Refresh)
	public.GET("/session", handler.Session)
	protected.POST("/auth/logout", handler.Logout)
}

// SendOTP godoc
// @Summary      Send a verification code
// @Description  Texts a 6 digit code and arms the resend countdown. Inside the countdown nothing is sent.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request  body      domain.OTPRequest  true  "Phone in E.164 format"
// @Success      200      {object}  response.Response{data=domain.SendResult}
// @Failure      400      {object}  response.Response
// @Failure      429      {object}  response.Response
// @Failure      503      {object}  response.Response
// @Router       /auth/otp [post]
func (h *AuthHandler) SendOTP(c *gin.Context) {
	var req domain.OTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "Invalid request body", nil)
		return
	}

	res, err := h.otpUC.Send(c.Request.Context(), req.Phone)
	if err != nil {
		c.Error(err)
		return
	}
	response.Success(c, http.StatusOK, sendMessage(res), res)
}

// ResendOTP godoc
// @Summary      Resend the verification code
// @Description  No-op while the countdown runs; afterwards exactly one code is sent and the countdown restarts.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request  body      domain.OTPRequest  true  "Phone in E.164 format"
// @Success      200      {object}  response.Response{data=domain.SendResult}
// @Failure      400      {object}  response.Response
// @Failure      503      {object}  response.Response
// @Router       /auth/otp/resend [post]
func (h *AuthHandler) ResendOTP(c *gin.Context) {
	var req domain.OTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "Invalid request body", nil)
		return
	}

	res, err := h.otpUC.Resend(c.Request.Context(), req.Phone)
	if err != nil {
		c.Error(err)
		return
	}
	response.Success(c, http.StatusOK, sendMessage(res), res)
}

func sendMessage(res domain.SendResult) string {
	if res.Sent {
		return "Verification code sent"
	}
	return "Please wait before requesting another code"
}

// VerifyOTP godoc
// @Summary      Verify the code
// @Description  Concurrent submissions for the same phone share one upstream call. Failures stay retryable.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request  body      domain.OTPVerifyRequest  true  "Phone and code"
// @Success      200      {object}  response.Response{data=domain.VerifyResult}
// @Failure      400      {object}  response.Response
// @Failure      401      {object}  response.Response{error=domain.VerifyResult}
// @Failure      409      {object}  response.Response
// @Failure      503      {object}  response.Response{error=domain.VerifyResult}
// @Router       /auth/otp/verify [post]
func (h *AuthHandler) VerifyOTP(c *gin.Context) {
	var req domain.OTPVerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "Invalid request body", nil)
		return
	}

	res, err := h.otpUC.Verify(c.Request.Context(), req)
	if err != nil {
		c.Error(err)
		return
	}
	response.Success(c, http.StatusOK, "Phone verified", res)
}

// OTPStatus godoc
// @Summary      Get verification state
// @Tags         auth
// @Produce      json
// @Param        phone  query     string  true  "Phone in E.164 format"
// @Success      200    {object}  response.Response{data=domain.OTPStatus}
// @Failure      400    {object}  response.Response
// @Router       /auth/otp/status [get]
func (h *AuthHandler) OTPStatus(c *gin.Context) {
	st, err := h.otpUC.Status(c.Request.Context(), c.Query("phone"))
	if err != nil {
		c.Error(err)
		return
	}
	response.Success(c, http.StatusOK, "Verification state retrieved", st)
}

// Refresh godoc
// @Summary      Refresh the session
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request  body      RefreshRequest  true  "Refresh token"
// @Success      200      {object}  response.Response{data=domain.TokenPair}
// @Failure      400      {object}  response.Response
// @Failure      401      {object}  response.Response
// @Router       /auth/refresh [post]
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "Invalid request body", nil)
		return
	}

	pair, err := h.sessionUC.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		c.Error(err)
		return
	}
	response.Success(c, http.StatusOK, "Session refreshed", pair)
}

// Session godoc
// @Summary      Get the current session
// @Description  Returns null data when the request carries no valid token.
// @Tags         auth
// @Produce      json
// @Success      200  {object}  response.Response{data=domain.Session}
// @Router       /session [get]
// @Security     BearerAuth
func (h *AuthHandler) Session(c *gin.Context) {
	session, ok := h.sessionUC.Current(c.Request.Context())
	if !ok {
		response.Success(c, http.StatusOK, "No active session", nil)
		return
	}
	response.Success(c, http.StatusOK, "Session retrieved", session)
}

// Logout godoc
// @Summary      Sign out
// @Tags         auth
// @Produce      json
// @Success      200  {object}  response.Response
// @Failure      401  {object}  response.Response
// @Router       /auth/logout [post]
// @Security     BearerAuth
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.sessionUC.SignOut(c.Request.Context()); err != nil {
		c.Error(err)
		return
	}
	c.SetCookie("auth_token", "", -1, "/", "", true, true)
	response.Success(c, http.StatusOK, "Signed out", nil)
}
