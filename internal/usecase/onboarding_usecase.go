package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go-events-backend/internal/domain"
	"go-events-backend/pkg/apperror"
	"go-events-backend/pkg/imaging"
	"go-events-backend/pkg/logger"
	"go-events-backend/pkg/metrics"
	"go-events-backend/pkg/validation"

	"github.com/go-playground/validator/v10"
)

// fetchFailedMessage is shown when the profile cannot be read; the client still
// lands on the fallback step.
const fetchFailedMessage = "We could not load your profile. Please try again."

type onboardingUsecase struct {
	repo     domain.ProfileRepository
	storage  domain.ObjectStorage
	bucket   string
	validate *validator.Validate
	metrics  *metrics.Metrics
	now      func() time.Time
}

func NewOnboardingUsecase(repo domain.ProfileRepository, storage domain.ObjectStorage, bucket string, validate *validator.Validate, m *metrics.Metrics) domain.OnboardingUsecase {
	if m == nil {
		m = metrics.New(nil)
	}
	return &onboardingUsecase{
		repo:     repo,
		storage:  storage,
		bucket:   bucket,
		validate: validate,
		metrics:  m,
		now:      time.Now,
	}
}

func status(step domain.Step) domain.OnboardingStatus {
	complete := step == domain.StepComplete
	return domain.OnboardingStatus{CurrentStep: step, IsComplete: &complete}
}

// ============================================================================
// Resolve
// ============================================================================

func (u *onboardingUsecase) Resolve(ctx context.Context, session *domain.Session) domain.OnboardingStatus {
	if session == nil {
		u.metrics.OnboardingResolutions.WithLabelValues(string(domain.FirstStep)).Inc()
		return status(domain.FirstStep)
	}

	profile, err := u.loadOrCreate(ctx, session.UserID)
	if err != nil {
		logger.Log.ErrorContext(ctx, "onboarding: profile fetch failed", "user_id", session.UserID, "error", err)
		u.metrics.OnboardingResolutions.WithLabelValues("error").Inc()
		st := status(domain.FallbackStep)
		st.Error = fetchFailedMessage
		return st
	}

	step := domain.NextStep(profile)
	if step == domain.StepPhoneAuth {
		// A signed-in user must never be sent back to phone entry.
		logger.Log.WarnContext(ctx, "onboarding: computed first auth step for an active session, overriding",
			"user_id", session.UserID, "override", domain.FallbackStep)
		u.metrics.StepOverrides.Inc()
		step = domain.FallbackStep
	}

	u.metrics.OnboardingResolutions.WithLabelValues(string(step)).Inc()
	return status(step)
}

// loadOrCreate returns the profile row, inserting a blank one on first sight.
// A nil profile with a nil error means the row was created but is not yet visible.
func (u *onboardingUsecase) loadOrCreate(ctx context.Context, userID string) (*domain.Profile, error) {
	profile, err := u.repo.GetByID(ctx, userID)
	if err == nil {
		return profile, nil
	}
	if !errors.Is(err, domain.ErrProfileNotFound) {
		return nil, fmt.Errorf("get profile: %w", err)
	}

	if err := u.repo.Create(ctx, userID); err != nil && !errors.Is(err, domain.ErrProfileExists) {
		return nil, fmt.Errorf("create profile: %w", err)
	}

	profile, err = u.repo.GetByID(ctx, userID)
	if errors.Is(err, domain.ErrProfileNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("refetch profile: %w", err)
	}
	return profile, nil
}

func (u *onboardingUsecase) GetProfile(ctx context.Context, session *domain.Session) (*domain.Profile, error) {
	if session == nil {
		return nil, apperror.Unauthorized("User not authenticated")
	}
	profile, err := u.loadOrCreate(ctx, session.UserID)
	if err != nil {
		return nil, apperror.ServiceUnavailable("Failed to load profile", err)
	}
	if profile == nil {
		return nil, apperror.NotFound("Profile not found")
	}
	return profile, nil
}

// ============================================================================
// Step submissions
// ============================================================================

type nameInput struct {
	FullName string `validate:"required,min=2,max=100,valid_name,no_emoji"`
}

type avatarInput struct {
	AvatarURL string `validate:"required,url,max=2048"`
}

type permissionsInput struct {
	PermissionsGranted *bool `validate:"required"`
}

type birthDateInput struct {
	BirthDate string `validate:"required,birth_date"`
}

type pathInput struct {
	Path string `validate:"required,max=50,no_emoji"`
}

type preferencesInput struct {
	Preferences []string `validate:"required,min=1,max=20,unique,dive,required,max=50"`
}

type hobbiesInput struct {
	Hobbies []string `validate:"required,min=1,max=20,unique,dive,required,max=50"`
}

func (u *onboardingUsecase) CompleteStep(ctx context.Context, session *domain.Session, step domain.Step, sub domain.StepSubmission) (domain.OnboardingStatus, error) {
	if session == nil {
		return domain.OnboardingStatus{}, apperror.Unauthorized("User not authenticated")
	}
	if !step.IsValid() {
		return domain.OnboardingStatus{}, apperror.BadRequest("Unknown onboarding step: " + string(step)).WithDetails(writableSteps())
	}
	if !step.Writable() {
		return domain.OnboardingStatus{}, apperror.BadRequest("Step " + string(step) + " cannot be submitted").WithDetails(writableSteps())
	}

	update, err := u.buildUpdate(session, step, sub)
	if err != nil {
		return domain.OnboardingStatus{}, err
	}

	if err := u.save(ctx, session.UserID, update); err != nil {
		return domain.OnboardingStatus{}, err
	}
	return u.Resolve(ctx, session), nil
}

func writableSteps() map[string][]domain.Step {
	var out []domain.Step
	for _, s := range domain.Steps() {
		if s.Writable() {
			out = append(out, s)
		}
	}
	return map[string][]domain.Step{"writable_steps": out}
}

func (u *onboardingUsecase) buildUpdate(session *domain.Session, step domain.Step, sub domain.StepSubmission) (domain.ProfileUpdate, error) {
	var update domain.ProfileUpdate

	switch step {
	case domain.StepNameInput:
		in := nameInput{FullName: strings.TrimSpace(sub.FullName)}
		if err := u.check(in); err != nil {
			return update, err
		}
		update.FullName = &in.FullName

	case domain.StepAvatarPick:
		in := avatarInput{AvatarURL: strings.TrimSpace(sub.AvatarURL)}
		if err := u.check(in); err != nil {
			return update, err
		}
		if !strings.HasPrefix(in.AvatarURL, u.storage.PublicURL(u.bucket, session.UserID+"/")) {
			return update, apperror.BadRequest("Avatar must be uploaded through /v1/profile/avatar")
		}
		update.AvatarURL = &in.AvatarURL

	case domain.StepPermissions:
		in := permissionsInput{PermissionsGranted: sub.PermissionsGranted}
		if err := u.check(in); err != nil {
			return update, err
		}
		update.PermissionsGranted = in.PermissionsGranted

	case domain.StepBirthDate:
		in := birthDateInput{BirthDate: strings.TrimSpace(sub.BirthDate)}
		if err := u.check(in); err != nil {
			return update, err
		}
		bd, err := time.Parse(validation.DateLayout, in.BirthDate)
		if err != nil {
			return update, apperror.BadRequest("Invalid birth date")
		}
		update.BirthDate = &bd

	case domain.StepPathSelect:
		in := pathInput{Path: strings.TrimSpace(sub.Path)}
		if err := u.check(in); err != nil {
			return update, err
		}
		update.Path = &in.Path

	case domain.StepPreferences:
		in := preferencesInput{Preferences: trimAll(sub.Preferences)}
		if err := u.check(in); err != nil {
			return update, err
		}
		update.Preferences = in.Preferences

	case domain.StepHobbies:
		in := hobbiesInput{Hobbies: trimAll(sub.Hobbies)}
		if err := u.check(in); err != nil {
			return update, err
		}
		update.Hobbies = in.Hobbies
	}

	return update, nil
}

func (u *onboardingUsecase) check(in interface{}) error {
	if err := u.validate.Struct(in); err != nil {
		return apperror.BadRequest("Validation failed").WithDetails(validation.FormatValidationErrors(err))
	}
	return nil
}

func trimAll(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.TrimSpace(s)
	}
	return out
}

// save makes sure the row exists before writing the step's columns.
func (u *onboardingUsecase) save(ctx context.Context, userID string, update domain.ProfileUpdate) error {
	if _, err := u.loadOrCreate(ctx, userID); err != nil {
		return apperror.ServiceUnavailable("Failed to load profile", err)
	}
	if err := u.repo.Update(ctx, userID, update); err != nil {
		if errors.Is(err, domain.ErrProfileNotFound) {
			return apperror.NotFound("Profile not found")
		}
		return apperror.ServiceUnavailable("Failed to save profile", err)
	}
	return nil
}

// ============================================================================
// Avatar upload
// ============================================================================

func (u *onboardingUsecase) UploadAvatar(ctx context.Context, session *domain.Session, upload domain.AvatarUpload) (domain.OnboardingStatus, error) {
	if session == nil {
		return domain.OnboardingStatus{}, apperror.Unauthorized("User not authenticated")
	}
	if len(upload.Data) == 0 {
		return domain.OnboardingStatus{}, apperror.BadRequest("Avatar file is empty")
	}

	compressed, err := imaging.Compress(upload.Data, imaging.AvatarMaxDimension, imaging.AvatarQuality)
	switch {
	case errors.Is(err, imaging.ErrNotImage):
		return domain.OnboardingStatus{}, apperror.BadRequest("Avatar must be an image")
	case errors.Is(err, imaging.ErrTooLarge):
		return domain.OnboardingStatus{}, apperror.BadRequest("Avatar must be at most 5MB")
	case err != nil:
		return domain.OnboardingStatus{}, apperror.BadRequest("Avatar image could not be read")
	}

	logger.Log.DebugContext(ctx, "onboarding: avatar compressed",
		"user_id", session.UserID, "filename", upload.Filename, "before", len(upload.Data), "after", len(compressed))

	name := fmt.Sprintf("%s/avatar_%d.jpg", session.UserID, u.now().UnixNano())
	if err := u.storage.Upload(ctx, u.bucket, name, "image/jpeg", compressed); err != nil {
		return domain.OnboardingStatus{}, apperror.ServiceUnavailable("Avatar upload failed", err)
	}

	url := u.storage.PublicURL(u.bucket, name)
	if err := u.save(ctx, session.UserID, domain.ProfileUpdate{AvatarURL: &url}); err != nil {
		return domain.OnboardingStatus{}, err
	}
	return u.Resolve(ctx, session), nil
}
