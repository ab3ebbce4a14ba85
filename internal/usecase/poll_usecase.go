package usecase

import (
	"context"
	"errors"
	"strings"

	"go-events-backend/internal/domain"
	"go-events-backend/pkg/apperror"
	"go-events-backend/pkg/idx"
	"go-events-backend/pkg/metrics"
	"go-events-backend/pkg/validation"

	"github.com/go-playground/validator/v10"
)

type pollUsecase struct {
	repo     domain.PollRepository
	validate *validator.Validate
	metrics  *metrics.Metrics
}

func NewPollUsecase(repo domain.PollRepository, validate *validator.Validate, m *metrics.Metrics) domain.PollUsecase {
	if m == nil {
		m = metrics.New(nil)
	}
	return &pollUsecase{repo: repo, validate: validate, metrics: m}
}

func (u *pollUsecase) Create(ctx context.Context, session *domain.Session, req domain.CreatePollRequest) (*domain.Poll, error) {
	if session == nil {
		return nil, apperror.Unauthorized("User not authenticated")
	}

	req.Question = strings.TrimSpace(req.Question)
	req.Options = trimAll(req.Options)
	if err := u.validate.Struct(req); err != nil {
		return nil, apperror.BadRequest("Validation failed").WithDetails(validation.FormatValidationErrors(err))
	}

	poll := &domain.Poll{
		ID:        idx.New(),
		EventID:   req.EventID,
		Question:  req.Question,
		CreatedBy: session.UserID,
		Options:   make([]domain.PollOption, len(req.Options)),
	}
	for i, label := range req.Options {
		poll.Options[i] = domain.PollOption{ID: idx.New(), Label: label, Position: i}
	}

	if err := u.repo.Create(ctx, poll); err != nil {
		return nil, apperror.ServiceUnavailable("Failed to create poll", err)
	}
	return poll, nil
}

func (u *pollUsecase) Get(ctx context.Context, session *domain.Session, pollID string) (*domain.Poll, error) {
	if session == nil {
		return nil, apperror.Unauthorized("User not authenticated")
	}
	id, err := idx.Parse(pollID)
	if err != nil {
		return nil, apperror.NotFound("Poll not found")
	}

	poll, err := u.repo.Get(ctx, id, session.UserID)
	if err != nil {
		return nil, pollError(err)
	}
	return poll, nil
}

// Vote returns the tallies as stored after the write; callers must not adjust them.
func (u *pollUsecase) Vote(ctx context.Context, session *domain.Session, pollID string, req domain.VoteRequest) (*domain.Poll, error) {
	if session == nil {
		return nil, apperror.Unauthorized("User not authenticated")
	}
	if err := u.validate.Struct(req); err != nil {
		return nil, apperror.BadRequest("Validation failed").WithDetails(validation.FormatValidationErrors(err))
	}

	id, err := idx.Parse(pollID)
	if err != nil {
		return nil, apperror.NotFound("Poll not found")
	}
	optionID, err := idx.Parse(req.OptionID)
	if err != nil {
		return nil, apperror.BadRequest(domain.ErrOptionNotFound.Error())
	}

	poll, err := u.repo.Vote(ctx, idx.New(), id, optionID, session.UserID)
	if err != nil {
		return nil, pollError(err)
	}

	u.metrics.PollVotes.Inc()
	return poll, nil
}

func pollError(err error) error {
	switch {
	case errors.Is(err, domain.ErrPollNotFound):
		return apperror.NotFound("Poll not found")
	case errors.Is(err, domain.ErrOptionNotFound):
		return apperror.BadRequest(domain.ErrOptionNotFound.Error())
	default:
		return apperror.ServiceUnavailable("Poll service unavailable", err)
	}
}
