package approval

import (
	"fmt"
	"time"
)

// Subject is the entity being approved: a business-data submission, a payment
// request, or a verification case. The workflow core never interprets Payload
// beyond the amount and identity fields used for display and export.
type Subject struct {
	ID               int64     `json:"id"`
	Reference        string    `json:"reference"`
	WorkflowType     string    `json:"workflow_type"`
	Status           Status    `json:"status"`
	CurrentLevel     int       `json:"current_level"`
	MaxLevel         int       `json:"max_level"`
	Payload          string    `json:"payload"`
	AmountCents      int64     `json:"amount_cents"`
	SubmitterID      string    `json:"submitter_id"`
	Assignee         string    `json:"assignee,omitempty"`
	PendingReason    string    `json:"pending_reason,omitempty"`
	RejectionReason  string    `json:"rejection_reason,omitempty"`
	LastTransitionAt time.Time `json:"last_transition_at"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`

	// History is the ordered, append-only audit trail. Loaded alongside the
	// subject; appended only inside the same transaction as a status change.
	History []HistoryEntry `json:"history,omitempty"`
}

// HistoryEntry records a single applied transition
type HistoryEntry struct {
	ID         int64     `json:"id"`
	SubjectID  int64     `json:"subject_id"`
	ActorID    string    `json:"actor_id"`
	ActorRole  string    `json:"actor_role"`
	Action     string    `json:"action"`
	FromStatus Status    `json:"from_status"`
	ToStatus   Status    `json:"to_status"`
	FromLevel  int       `json:"from_level"`
	ToLevel    int       `json:"to_level"`
	Note       string    `json:"note,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Action is a transient command against a subject. It is never persisted on
// its own; a permitted action produces a history entry instead.
type Action struct {
	SubjectID int64  `json:"subject_id"`
	ActorID   string `json:"actor_id"`
	ActorRole string `json:"actor_role"`
	Intent    Intent `json:"intent"`
	Note      string `json:"note,omitempty"`
}

// Validate checks the action carries enough identity to be audited
func (a Action) Validate() error {
	if a.SubjectID == 0 {
		return fmt.Errorf("%w: subject id is required", ErrValidation)
	}
	if a.ActorID == "" {
		return fmt.Errorf("%w: actor id is required", ErrValidation)
	}
	if a.ActorRole == "" {
		return fmt.Errorf("%w: actor role is required", ErrValidation)
	}
	if !a.Intent.IsValid() {
		return fmt.Errorf("%w: unknown intent %q", ErrValidation, a.Intent)
	}
	return nil
}

// Submission is the inbound payload that creates a subject
type Submission struct {
	WorkflowType string                 `json:"workflow_type"`
	Reference    string                 `json:"reference"`
	SubmitterID  string                 `json:"submitter_id"`
	AmountCents  int64                  `json:"amount_cents"`
	Payload      map[string]interface{} `json:"payload,omitempty"`
}

// Validate checks the required numeric and identity fields
func (s Submission) Validate() error {
	if s.WorkflowType == "" {
		return fmt.Errorf("%w: workflow type is required", ErrValidation)
	}
	if s.SubmitterID == "" {
		return fmt.Errorf("%w: submitter id is required", ErrValidation)
	}
	if s.Reference == "" {
		return fmt.Errorf("%w: business reference is required", ErrValidation)
	}
	if s.AmountCents <= 0 {
		return fmt.Errorf("%w: amount must be positive", ErrValidation)
	}
	return nil
}
