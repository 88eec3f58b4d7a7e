// Package events publishes steward lifecycle events (audit runs, policy
// toggles) for downstream dashboards and compliance consumers. Keep the
// Event shape transport-agnostic so publishers can fan out.
package events

import (
	"context"
	"time"
)

// Type enumerates the emitted event kinds.
type Type string

const (
	EventRunStarted    Type = "audit_run_started"
	EventRunCompleted  Type = "audit_run_completed"
	EventRunFailed     Type = "audit_run_failed"
	EventPolicyToggled Type = "policy_toggled"
	EventPolicyAutoFix Type = "policy_autofix_toggled"
)

// Event is one emitted lifecycle record.
type Event struct {
	Type      Type      `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	RunID     string    `json:"run_id,omitempty"`
	PolicyID  string    `json:"policy_id,omitempty"`
	// Detail carries small free-form context: finding totals, the toggle
	// direction, the abort reason.
	Detail map[string]string `json:"detail,omitempty"`
}

// Publisher delivers events to an external sink.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close()
}

// Noop discards events; used when no broker is configured.
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }
func (Noop) Close()                               {}
