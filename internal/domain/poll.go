package domain

import (
	"context"
	"errors"
	"time"
)

type Poll struct {
	ID         string       `json:"id"`
	EventID    *string      `json:"event_id,omitempty"`
	Question   string       `json:"question"`
	CreatedBy  string       `json:"created_by"`
	CreatedAt  time.Time    `json:"created_at"`
	Options    []PollOption `json:"options"`
	TotalVotes int          `json:"total_votes"`
	// MyVote is the caller's current option, if any.
	MyVote *string `json:"my_vote,omitempty"`
}

// PollOption.Votes is always read from the database, never incremented client-side.
type PollOption struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	Position int    `json:"position"`
	Votes    int    `json:"votes"`
}

type CreatePollRequest struct {
	EventID  *string  `json:"event_id,omitempty" validate:"omitempty,max=64"`
	Question string   `json:"question" validate:"required,min=3,max=200,no_emoji"`
	Options  []string `json:"options" validate:"required,min=2,max=10,unique,dive,required,max=80"`
}

type VoteRequest struct {
	OptionID string `json:"option_id" validate:"required"`
}

var (
	ErrPollNotFound   = errors.New("poll not found")
	ErrOptionNotFound = errors.New("option does not belong to poll")
)

type PollRepository interface {
	Create(ctx context.Context, poll *Poll) error
	// Get returns the poll with tallies; viewerID selects MyVote.
	Get(ctx context.Context, pollID, viewerID string) (*Poll, error)
	// Vote records or moves the user's vote and returns the tallies read in the same transaction.
	Vote(ctx context.Context, voteID, pollID, optionID, userID string) (*Poll, error)
}

type PollUsecase interface {
	Create(ctx context.Context, session *Session, req CreatePollRequest) (*Poll, error)
	Get(ctx context.Context, session *Session, pollID string) (*Poll, error)
	Vote(ctx context.Context, session *Session, pollID string, req VoteRequest) (*Poll, error)
}
