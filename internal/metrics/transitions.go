// SPDX-License-Identifier: MIT
package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "statetrail_transitions_total",
		Help: "Observations applied to interval streams by domain and outcome",
	}, []string{"domain", "outcome"}) // outcome=opened|unchanged|transitioned

	transitionErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "statetrail_transition_errors_total",
		Help: "Rejected observations by domain and reason",
	}, []string{"domain", "reason"}) // reason=conflict|out_of_order|invalid_interval|not_found|storage

	voiceSessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "statetrail_voice_sessions_active",
		Help: "Voice sessions currently open",
	})
)

// IncTransition records an applied observation with normalized labels.
// Label allowlists are intentionally strict to cap cardinality: the domain
// label collapses per-type and per-flag streams to their family name.
func IncTransition(domain, outcome string) {
	transitionsTotal.WithLabelValues(normalizeDomainLabel(domain), normalizeOutcomeLabel(outcome)).Inc()
}

// IncTransitionError records a rejected observation.
func IncTransitionError(domain, reason string) {
	transitionErrorsTotal.WithLabelValues(normalizeDomainLabel(domain), normalizeReasonLabel(reason)).Inc()
}

// VoiceSessionOpened increments the active-session gauge.
func VoiceSessionOpened() { voiceSessionsActive.Inc() }

// VoiceSessionClosed decrements the active-session gauge.
func VoiceSessionClosed() { voiceSessionsActive.Dec() }

func normalizeDomainLabel(domain string) string {
	d := strings.ToLower(strings.TrimSpace(domain))
	switch {
	case d == "name", d == "presence", d == "voice_session":
		return d
	case strings.HasPrefix(d, "activity:"):
		return "activity"
	case strings.HasPrefix(d, "flag:"):
		return "voice_flag"
	default:
		return "unknown"
	}
}

func normalizeOutcomeLabel(outcome string) string {
	switch strings.ToLower(strings.TrimSpace(outcome)) {
	case "opened", "unchanged", "transitioned":
		return strings.ToLower(strings.TrimSpace(outcome))
	default:
		return "unknown"
	}
}

func normalizeReasonLabel(reason string) string {
	switch strings.ToLower(strings.TrimSpace(reason)) {
	case "conflict", "out_of_order", "invalid_interval", "not_found", "storage":
		return strings.ToLower(strings.TrimSpace(reason))
	default:
		return "unknown"
	}
}
