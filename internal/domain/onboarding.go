package domain

import (
	"context"
	"errors"
	"time"
)

// ============================================================================
// Profile record (one row per user id)
// ============================================================================

type Profile struct {
	ID                 string     `json:"id"`
	FullName           *string    `json:"full_name"`
	AvatarURL          *string    `json:"avatar_url"`
	PermissionsGranted bool       `json:"permissions_granted"`
	BirthDate          *time.Time `json:"birth_date"`
	Path               *string    `json:"path"`
	Preferences        []string   `json:"preferences"`
	Hobbies            []string   `json:"hobbies"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// ProfileUpdate carries the columns a single onboarding screen writes. Nil fields are left alone.
type ProfileUpdate struct {
	FullName           *string
	AvatarURL          *string
	PermissionsGranted *bool
	BirthDate          *time.Time
	Path               *string
	Preferences        []string
	Hobbies            []string
}

var (
	ErrProfileNotFound = errors.New("profile not found")
	ErrProfileExists   = errors.New("profile already exists")
)

type ProfileRepository interface {
	GetByID(ctx context.Context, userID string) (*Profile, error)
	// Create inserts a blank row. A concurrent insert surfaces as ErrProfileExists.
	Create(ctx context.Context, userID string) error
	Update(ctx context.Context, userID string, update ProfileUpdate) error
}

// ============================================================================
// Onboarding step tokens
// ============================================================================

type Step string

const (
	StepPhoneAuth   Step = "PhoneAuth"
	StepNameInput   Step = "NameInput"
	StepAvatarPick  Step = "AvatarPick"
	StepPermissions Step = "Permissions"
	StepBirthDate   Step = "BirthDate"
	StepPathSelect  Step = "PathSelect"
	StepPreferences Step = "Preferences"
	StepHobbies     Step = "Hobbies"
	StepComplete    Step = "complete"
)

// FirstStep is the first auth screen; FallbackStep is where a signed-in user lands
// when the profile cannot be read.
const (
	FirstStep    = StepPhoneAuth
	FallbackStep = StepNameInput
)

type requirement struct {
	step      Step
	satisfied func(*Profile) bool
}

// checklist is walked in order; the first unmet requirement names the next screen.
// A nil profile fails every requirement, including the first.
var checklist = []requirement{
	{StepPhoneAuth, func(p *Profile) bool { return p != nil }},
	{StepNameInput, func(p *Profile) bool { return nonEmpty(p.FullName) }},
	{StepAvatarPick, func(p *Profile) bool { return nonEmpty(p.AvatarURL) }},
	{StepPermissions, func(p *Profile) bool { return p.PermissionsGranted }},
	{StepBirthDate, func(p *Profile) bool { return p.BirthDate != nil && !p.BirthDate.IsZero() }},
	{StepPathSelect, func(p *Profile) bool { return nonEmpty(p.Path) }},
	{StepPreferences, func(p *Profile) bool { return len(p.Preferences) > 0 }},
	{StepHobbies, func(p *Profile) bool { return len(p.Hobbies) > 0 }},
}

func nonEmpty(s *string) bool {
	return s != nil && *s != ""
}

// Steps returns the ordered onboarding checklist.
func Steps() []Step {
	out := make([]Step, len(checklist))
	for i, r := range checklist {
		out[i] = r.step
	}
	return out
}

// NextStep returns the first unmet step for p, or StepComplete.
func NextStep(p *Profile) Step {
	for _, r := range checklist {
		if !r.satisfied(p) {
			return r.step
		}
	}
	return StepComplete
}

// IsValid reports whether s is a known token, including StepComplete.
func (s Step) IsValid() bool {
	if s == StepComplete {
		return true
	}
	for _, r := range checklist {
		if r.step == s {
			return true
		}
	}
	return false
}

// Writable reports whether a client can submit data for s.
func (s Step) Writable() bool {
	return s.IsValid() && s != StepPhoneAuth && s != StepComplete
}

// ============================================================================
// Resolver output
// ============================================================================

// OnboardingStatus is the resolver result. After a successful fetch exactly one of
// "CurrentStep is a known step" or "CurrentStep is complete" holds, and IsComplete is never nil.
type OnboardingStatus struct {
	CurrentStep Step   `json:"current_step"`
	IsComplete  *bool  `json:"is_complete"`
	Loading     bool   `json:"loading"`
	Error       string `json:"error,omitempty"`
}

// Complete is the nil-safe reading of IsComplete.
func (s OnboardingStatus) Complete() bool {
	return s.IsComplete != nil && *s.IsComplete
}

// StepSubmission is the body of an onboarding screen. Only the fields for the
// submitted step are read.
type StepSubmission struct {
	FullName           string   `json:"full_name,omitempty"`
	AvatarURL          string   `json:"avatar_url,omitempty"`
	PermissionsGranted *bool    `json:"permissions_granted,omitempty"`
	BirthDate          string   `json:"birth_date,omitempty"`
	Path               string   `json:"path,omitempty"`
	Preferences        []string `json:"preferences,omitempty"`
	Hobbies            []string `json:"hobbies,omitempty"`
}

type AvatarUpload struct {
	Filename string
	Data     []byte
}

// ObjectStorage is the slice of the hosted storage API used for avatars.
type ObjectStorage interface {
	Upload(ctx context.Context, bucket, name, contentType string, data []byte) error
	PublicURL(bucket, name string) string
}

// ============================================================================
// Usecase Interface
// ============================================================================

type OnboardingUsecase interface {
	// Resolve never fails: errors degrade to FallbackStep with Error populated.
	Resolve(ctx context.Context, session *Session) OnboardingStatus
	GetProfile(ctx context.Context, session *Session) (*Profile, error)
	CompleteStep(ctx context.Context, session *Session, step Step, sub StepSubmission) (OnboardingStatus, error)
	UploadAvatar(ctx context.Context, session *Session, upload AvatarUpload) (OnboardingStatus, error)
}
