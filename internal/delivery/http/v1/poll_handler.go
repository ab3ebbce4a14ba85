package v1

import (
	"net/http"

	"go-events-backend/internal/delivery/http/response"
	"go-events-backend/internal/domain"

	"github.com/gin-gonic/gin"
)

type PollHandler struct {
	pollUC domain.PollUsecase
}

// NewPollHandler expects r to already require an onboarded session.
func NewPollHandler(r *gin.RouterGroup, pollUC domain.PollUsecase) {
	handler := &PollHandler{pollUC: pollUC}

	polls := r.Group("/polls")
	{
		polls.POST("", handler.Create)
		polls.GET("/:id", handler.Get)
		polls.POST("/:id/votes", handler.Vote)
	}
}

// Create godoc
// @Summary      Create a poll
// @Tags         polls
// @Accept       json
// @Produce      json
// @Param        request  body      domain.CreatePollRequest  true  "Question and 2 to 10 options"
// @Success      201      {object}  response.Response{data=domain.Poll}
// @Failure      400      {object}  response.Response
// @Failure      403      {object}  response.Response{error=domain.GateDecision}
// @Router       /polls [post]
// @Security     BearerAuth
func (h *PollHandler) Create(c *gin.Context) {
	session, _ := currentSession(c)

	var req domain.CreatePollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "Invalid request body", nil)
		return
	}

	poll, err := h.pollUC.Create(c.Request.Context(), session, req)
	if err != nil {
		c.Error(err)
		return
	}
	response.Success(c, http.StatusCreated, "Poll created", poll)
}

// Get godoc
// @Summary      Get a poll with current tallies
// @Tags         polls
// @Produce      json
// @Param        id   path      string  true  "Poll ID"
// @Success      200  {object}  response.Response{data=domain.Poll}
// @Failure      404  {object}  response.Response
// @Router       /polls/{id} [get]
// @Security     BearerAuth
func (h *PollHandler) Get(c *gin.Context) {
	session, _ := currentSession(c)

	poll, err := h.pollUC.Get(c.Request.Context(), session, c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}
	response.Success(c, http.StatusOK, "Poll retrieved", poll)
}

// Vote godoc
// @Summary      Vote on a poll
// @Description  One vote per user; voting again moves the vote. Tallies come from the same transaction.
// @Tags         polls
// @Accept       json
// @Produce      json
// @Param        id       path      string              true  "Poll ID"
// @Param        request  body      domain.VoteRequest  true  "Option"
// @Success      200      {object}  response.Response{data=domain.Poll}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /polls/{id}/votes [post]
// @Security     BearerAuth
func (h *PollHandler) Vote(c *gin.Context) {
	session, _ := currentSession(c)

	var req domain.VoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "Invalid request body", nil)
		return
	}

	poll, err := h.pollUC.Vote(c.Request.Context(), session, c.Param("id"), req)
	if err != nil {
		c.Error(err)
		return
	}
	response.Success(c, http.StatusOK, "Vote recorded", poll)
}
