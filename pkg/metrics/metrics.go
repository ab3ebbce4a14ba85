// Package metrics holds the prometheus collectors for gating and OTP decisions.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	OTPSubmissions        *prometheus.CounterVec
	OTPResends            *prometheus.CounterVec
	OnboardingResolutions *prometheus.CounterVec
	StepOverrides         prometheus.Counter
	GateDecisions         *prometheus.CounterVec
	UpstreamRetries       prometheus.Counter
	PollVotes             prometheus.Counter
}

// New creates the collectors and registers them on reg. A nil reg skips registration.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		OTPSubmissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "events",
			Name:      "otp_submissions_total",
			Help:      "OTP verification submissions by outcome.",
		}, []string{"result"}),
		OTPResends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "events",
			Name:      "otp_resends_total",
			Help:      "OTP resend requests by outcome (sent, throttled, failed).",
		}, []string{"result"}),
		OnboardingResolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "events",
			Name:      "onboarding_resolutions_total",
			Help:      "Resolved onboarding steps.",
		}, []string{"step"}),
		StepOverrides: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "events",
			Name:      "onboarding_step_override_total",
			Help:      "Sessions whose computed step was the first auth screen and got moved to the second step.",
		}),
		GateDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "events",
			Name:      "gate_decisions_total",
			Help:      "Route gate decisions by state.",
		}, []string{"state"}),
		UpstreamRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "events",
			Name:      "upstream_retries_total",
			Help:      "Retries issued by the hosted backend request wrapper.",
		}),
		PollVotes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "events",
			Name:      "poll_votes_total",
			Help:      "Poll votes recorded.",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.OTPSubmissions,
			m.OTPResends,
			m.OnboardingResolutions,
			m.StepOverrides,
			m.GateDecisions,
			m.UpstreamRetries,
			m.PollVotes,
		)
	}
	return m
}
