package postgres

import (
	"context"
	"errors"
	"fmt"

	"go-events-backend/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier is the part of pgxpool.Pool and pgx.Tx the poll reads go through.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type pollRepo struct {
	db *pgxpool.Pool
}

func NewPollRepository(db *pgxpool.Pool) domain.PollRepository {
	return &pollRepo{db: db}
}

func (r *pollRepo) Create(ctx context.Context, poll *domain.Poll) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		INSERT INTO polls (id, event_id, question, created_by)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`, poll.ID, poll.EventID, poll.Question, poll.CreatedBy).Scan(&poll.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert poll: %w", err)
	}

	for _, opt := range poll.Options {
		_, err := tx.Exec(ctx, `
			INSERT INTO poll_options (id, poll_id, label, position)
			VALUES ($1, $2, $3, $4)
		`, opt.ID, poll.ID, opt.Label, opt.Position)
		if err != nil {
			return fmt.Errorf("failed to insert poll option: %w", err)
		}
	}

	return tx.Commit(ctx)
}

func (r *pollRepo) Get(ctx context.Context, pollID, viewerID string) (*domain.Poll, error) {
	return loadPoll(ctx, r.db, pollID, viewerID)
}

// Vote upserts the user's single vote and reads tallies back before commit, so the
// response reflects exactly what was stored.
func (r *pollRepo) Vote(ctx context.Context, voteID, pollID, optionID, userID string) (*domain.Poll, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var belongs bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM poll_options WHERE id = $1 AND poll_id = $2)
	`, optionID, pollID).Scan(&belongs)
	if err != nil {
		return nil, fmt.Errorf("failed to check option: %w", err)
	}
	if !belongs {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM polls WHERE id = $1)`, pollID).Scan(&exists); err != nil {
			return nil, fmt.Errorf("failed to check poll: %w", err)
		}
		if !exists {
			return nil, domain.ErrPollNotFound
		}
		return nil, domain.ErrOptionNotFound
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO poll_votes (id, poll_id, option_id, user_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (poll_id, user_id)
		DO UPDATE SET option_id = EXCLUDED.option_id, updated_at = NOW()
	`, voteID, pollID, optionID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to record vote: %w", err)
	}

	poll, err := loadPoll(ctx, tx, pollID, userID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit vote: %w", err)
	}
	return poll, nil
}

func loadPoll(ctx context.Context, q querier, pollID, viewerID string) (*domain.Poll, error) {
	var poll domain.Poll
	err := q.QueryRow(ctx, `
		SELECT id, event_id, question, created_by::text, created_at
		FROM polls
		WHERE id = $1
	`, pollID).Scan(&poll.ID, &poll.EventID, &poll.Question, &poll.CreatedBy, &poll.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPollNotFound
		}
		return nil, fmt.Errorf("failed to get poll: %w", err)
	}

	rows, err := q.Query(ctx, `
		SELECT o.id, o.label, o.position, COUNT(v.id)
		FROM poll_options o
		LEFT JOIN poll_votes v ON v.option_id = o.id
		WHERE o.poll_id = $1
		GROUP BY o.id, o.label, o.position
		ORDER BY o.position ASC
	`, pollID)
	if err != nil {
		return nil, fmt.Errorf("failed to count votes: %w", err)
	}
	defer rows.Close()

	poll.Options = []domain.PollOption{}
	for rows.Next() {
		var opt domain.PollOption
		if err := rows.Scan(&opt.ID, &opt.Label, &opt.Position, &opt.Votes); err != nil {
			return nil, fmt.Errorf("failed to scan poll option: %w", err)
		}
		poll.TotalVotes += opt.Votes
		poll.Options = append(poll.Options, opt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating poll options: %w", err)
	}

	if viewerID != "" {
		var mine string
		err := q.QueryRow(ctx, `
			SELECT option_id FROM poll_votes WHERE poll_id = $1 AND user_id = $2
		`, pollID, viewerID).Scan(&mine)
		switch {
		case err == nil:
			poll.MyVote = &mine
		case !errors.Is(err, pgx.ErrNoRows):
			return nil, fmt.Errorf("failed to get own vote: %w", err)
		}
	}

	return &poll, nil
}
