package postgres

import (
	"context"
	"errors"
	"fmt"

	"go-events-backend/internal/domain"
	"go-events-backend/pkg/validation"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgreSQL error codes
const (
	pgUniqueViolation = "23505"
)

type profileRepo struct {
	db *pgxpool.Pool
}

func NewProfileRepository(db *pgxpool.Pool) domain.ProfileRepository {
	return &profileRepo{db: db}
}

func (r *profileRepo) GetByID(ctx context.Context, userID string) (*domain.Profile, error) {
	query := `
		SELECT id::text, full_name, avatar_url, permissions_granted, birth_date,
		       path, preferences, hobbies, created_at, updated_at
		FROM profiles
		WHERE id = $1
	`

	var p domain.Profile
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&p.ID, &p.FullName, &p.AvatarURL, &p.PermissionsGranted, &p.BirthDate,
		&p.Path, &p.Preferences, &p.Hobbies, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return &p, nil
}

func (r *profileRepo) Create(ctx context.Context, userID string) error {
	_, err := r.db.Exec(ctx, `INSERT INTO profiles (id) VALUES ($1)`, userID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return domain.ErrProfileExists
		}
		return fmt.Errorf("failed to create profile: %w", err)
	}
	return nil
}

// Update writes only the non-nil fields of update.
func (r *profileRepo) Update(ctx context.Context, userID string, update domain.ProfileUpdate) error {
	query := `
		UPDATE profiles SET
			full_name           = COALESCE($2, full_name),
			avatar_url          = COALESCE($3, avatar_url),
			permissions_granted = COALESCE($4, permissions_granted),
			birth_date          = COALESCE($5::date, birth_date),
			path                = COALESCE($6, path),
			preferences         = COALESCE($7::text[], preferences),
			hobbies             = COALESCE($8::text[], hobbies),
			updated_at          = NOW()
		WHERE id = $1
	`

	// Dates travel as plain YYYY-MM-DD so the simple protocol never sends a time part.
	var birthDate *string
	if update.BirthDate != nil {
		s := update.BirthDate.Format(validation.DateLayout)
		birthDate = &s
	}

	tag, err := r.db.Exec(ctx, query, userID,
		update.FullName, update.AvatarURL, update.PermissionsGranted, birthDate,
		update.Path, update.Preferences, update.Hobbies,
	)
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrProfileNotFound
	}
	return nil
}
