package domain

// GateState is what the client should render.
type GateState string

const (
	GateLoading  GateState = "LOADING"
	GateBlocked  GateState = "BLOCKED"
	GateAuthFlow GateState = "AUTH_FLOW"
	GateMainApp  GateState = "MAIN_APP"
)

// GateMode selects how a failed authorization is presented.
type GateMode string

const (
	// ModeRoot is the root decider: unauthorized users get the step-by-step wizard.
	ModeRoot GateMode = "root"
	// ModeProtected is used by screens that show an error state instead of redirecting.
	ModeProtected GateMode = "protected"
)

func (m GateMode) IsValid() bool {
	return m == ModeRoot || m == ModeProtected
}

type DenyReason string

const (
	DenyNoSession            DenyReason = "no_session"
	DenyOnboardingIncomplete DenyReason = "onboarding_incomplete"
)

// Authorization is the single authorization decision shared by every presentation path.
type Authorization struct {
	Authorized bool       `json:"authorized"`
	Reason     DenyReason `json:"reason,omitempty"`
}

// Authorize requires a session and an onboarding status that is explicitly complete;
// a nil isComplete counts as incomplete.
func Authorize(hasSession bool, isComplete *bool) Authorization {
	if !hasSession {
		return Authorization{Reason: DenyNoSession}
	}
	if isComplete == nil || !*isComplete {
		return Authorization{Reason: DenyOnboardingIncomplete}
	}
	return Authorization{Authorized: true}
}

type GateInput struct {
	Mode              GateMode
	SessionLoading    bool
	OnboardingLoading bool
	HasSession        bool
	IsComplete        *bool
}

// Decide is a pure function of its input and is recomputed on every request.
func Decide(in GateInput) GateState {
	if in.SessionLoading || in.OnboardingLoading {
		return GateLoading
	}
	if !Authorize(in.HasSession, in.IsComplete).Authorized {
		if in.Mode == ModeProtected {
			return GateBlocked
		}
		return GateAuthFlow
	}
	return GateMainApp
}

// GateDecision is the payload returned to the client.
type GateDecision struct {
	State         GateState     `json:"state"`
	Authorization Authorization `json:"authorization"`
	NextStep      Step          `json:"next_step"`
}
