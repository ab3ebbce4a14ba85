package domain_test

import (
	"testing"
	"time"

	"go-events-backend/internal/domain"

	"github.com/stretchr/testify/assert"
)

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

func fullProfile() *domain.Profile {
	bd := time.Date(1995, 4, 2, 0, 0, 0, 0, time.UTC)
	return &domain.Profile{
		ID:                 "user-1",
		FullName:           strPtr("Ada"),
		AvatarURL:          strPtr("https://cdn/avatar.jpg"),
		PermissionsGranted: true,
		BirthDate:          &bd,
		Path:               strPtr("creator"),
		Preferences:        []string{"music"},
		Hobbies:            []string{"climbing"},
	}
}

func TestNextStep(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *domain.Profile) *domain.Profile
		want   domain.Step
	}{
		{"nil profile", func(p *domain.Profile) *domain.Profile { return nil }, domain.StepPhoneAuth},
		{"missing name", func(p *domain.Profile) *domain.Profile { p.FullName = nil; return p }, domain.StepNameInput},
		{"blank name", func(p *domain.Profile) *domain.Profile { p.FullName = strPtr(""); return p }, domain.StepNameInput},
		{"name but no avatar", func(p *domain.Profile) *domain.Profile { p.AvatarURL = nil; return p }, domain.StepAvatarPick},
		{"permissions denied", func(p *domain.Profile) *domain.Profile { p.PermissionsGranted = false; return p }, domain.StepPermissions},
		{"no birth date", func(p *domain.Profile) *domain.Profile { p.BirthDate = nil; return p }, domain.StepBirthDate},
		{"no path", func(p *domain.Profile) *domain.Profile { p.Path = nil; return p }, domain.StepPathSelect},
		{"no preferences", func(p *domain.Profile) *domain.Profile { p.Preferences = []string{}; return p }, domain.StepPreferences},
		{"no hobbies", func(p *domain.Profile) *domain.Profile { p.Hobbies = nil; return p }, domain.StepHobbies},
		{"all populated", func(p *domain.Profile) *domain.Profile { return p }, domain.StepComplete},
		{"earliest gap wins", func(p *domain.Profile) *domain.Profile { p.AvatarURL = nil; p.Hobbies = nil; return p }, domain.StepAvatarPick},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, domain.NextStep(tt.mutate(fullProfile())))
		})
	}
}

func TestStepsOrder(t *testing.T) {
	assert.Equal(t, []domain.Step{
		domain.StepPhoneAuth, domain.StepNameInput, domain.StepAvatarPick, domain.StepPermissions,
		domain.StepBirthDate, domain.StepPathSelect, domain.StepPreferences, domain.StepHobbies,
	}, domain.Steps())
}

func TestStepWritable(t *testing.T) {
	assert.True(t, domain.StepNameInput.Writable())
	assert.True(t, domain.StepHobbies.Writable())
	assert.False(t, domain.StepPhoneAuth.Writable())
	assert.False(t, domain.StepComplete.Writable())
	assert.False(t, domain.Step("Bogus").Writable())
	assert.True(t, domain.StepComplete.IsValid())
}

func TestAuthorize(t *testing.T) {
	assert.Equal(t, domain.Authorization{Reason: domain.DenyNoSession}, domain.Authorize(false, boolPtr(true)))
	assert.Equal(t, domain.Authorization{Reason: domain.DenyOnboardingIncomplete}, domain.Authorize(true, nil))
	assert.Equal(t, domain.Authorization{Reason: domain.DenyOnboardingIncomplete}, domain.Authorize(true, boolPtr(false)))
	assert.Equal(t, domain.Authorization{Authorized: true}, domain.Authorize(true, boolPtr(true)))
}

func TestDecide(t *testing.T) {
	tests := []struct {
		name string
		in   domain.GateInput
		want domain.GateState
	}{
		{"session loading", domain.GateInput{Mode: domain.ModeRoot, SessionLoading: true, HasSession: true, IsComplete: boolPtr(true)}, domain.GateLoading},
		{"onboarding loading", domain.GateInput{Mode: domain.ModeProtected, OnboardingLoading: true}, domain.GateLoading},
		{"root without session", domain.GateInput{Mode: domain.ModeRoot}, domain.GateAuthFlow},
		{"protected without session", domain.GateInput{Mode: domain.ModeProtected}, domain.GateBlocked},
		{"root incomplete", domain.GateInput{Mode: domain.ModeRoot, HasSession: true, IsComplete: boolPtr(false)}, domain.GateAuthFlow},
		{"protected unknown completion", domain.GateInput{Mode: domain.ModeProtected, HasSession: true}, domain.GateBlocked},
		{"root complete", domain.GateInput{Mode: domain.ModeRoot, HasSession: true, IsComplete: boolPtr(true)}, domain.GateMainApp},
		{"protected complete", domain.GateInput{Mode: domain.ModeProtected, HasSession: true, IsComplete: boolPtr(true)}, domain.GateMainApp},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, domain.Decide(tt.in))
		})
	}
}

func TestAttemptRetryable(t *testing.T) {
	assert.True(t, domain.Attempt{State: domain.AttemptIdle}.Retryable())
	assert.True(t, domain.Attempt{State: domain.AttemptFailure}.Retryable())
	assert.False(t, domain.Attempt{State: domain.AttemptSubmitting}.Retryable())
	assert.False(t, domain.Attempt{State: domain.AttemptSuccess}.Retryable())
}

func TestSessionExpired(t *testing.T) {
	now := time.Now()
	var nilSession *domain.Session
	assert.True(t, nilSession.Expired(now))
	assert.True(t, (&domain.Session{ExpiresAt: now}).Expired(now))
	assert.False(t, (&domain.Session{ExpiresAt: now.Add(time.Minute)}).Expired(now))
}
