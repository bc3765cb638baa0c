package service

import (
	"time"

	"dripmail/internal/domain"
)

// SkipReason explains why a rule produced no send for an event.
type SkipReason string

const (
	SkipNone             SkipReason = ""
	SkipRuleInactive     SkipReason = "rule_inactive"
	SkipConditionsUnmet  SkipReason = "conditions_unmet"
	SkipOutsideWindow    SkipReason = "outside_window"
	SkipTemplateMissing  SkipReason = "template_missing"
	SkipTemplateInactive SkipReason = "template_inactive"
	SkipInCooldown       SkipReason = "in_cooldown"
)

// EligibilityInput carries everything needed to decide whether a rule fires
// for an event. Payload is the event's payload, matched against the rule's
// conditions. LastAttemptAt is the most recent delivery attempt of the rule's
// template to the same user, nil when there has been none.
type EligibilityInput struct {
	Rule          domain.DripRule
	Template      *domain.Template
	EventAt       time.Time
	Payload       map[string]string
	LastAttemptAt *time.Time
	Now           time.Time
}

// EvaluateEligibility returns when the send becomes due, or the reason the
// rule is skipped. The rule's schedule window is checked at the send's due
// time rather than at evaluation time so a rule that activates between the
// event and the delayed send still fires.
func EvaluateEligibility(in EligibilityInput) (time.Time, SkipReason) {
	if !in.Rule.Active {
		return time.Time{}, SkipRuleInactive
	}

	if !in.Rule.MatchesPayload(in.Payload) {
		return time.Time{}, SkipConditionsUnmet
	}

	scheduledFor := in.EventAt.Add(in.Rule.Delay)
	if !in.Rule.ActiveAt(scheduledFor) {
		return time.Time{}, SkipOutsideWindow
	}

	if in.Template == nil {
		return time.Time{}, SkipTemplateMissing
	}
	if !in.Template.Active {
		return time.Time{}, SkipTemplateInactive
	}

	if in.Rule.Cooldown > 0 && in.LastAttemptAt != nil {
		if in.Now.Sub(*in.LastAttemptAt) < in.Rule.Cooldown {
			return time.Time{}, SkipInCooldown
		}
	}

	return scheduledFor, SkipNone
}
