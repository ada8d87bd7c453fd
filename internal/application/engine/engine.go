package engine

import (
	"context"

	"github.com/coverdesk/approvalflow/internal/domain/approval"
)

// Engine orchestrates approval workflow transitions: it validates actions
// against the approval policy, applies them to the record store through
// compare-and-swap, and emits domain events.
type Engine interface {
	// Submit validates the payload, creates a subject in (PENDING, 0) and
	// emits a submitted event
	Submit(ctx context.Context, sub approval.Submission) (*approval.Subject, error)

	// Act applies an approve/reject/process command. A refused command leaves
	// no state change and no history entry. Conflicting concurrent mutations
	// are retried a bounded number of times before surfacing as ErrConflict.
	Act(ctx context.Context, act approval.Action) (*approval.Subject, error)

	// Get returns the current subject snapshot including its history
	Get(ctx context.Context, id int64) (*approval.Subject, error)

	// WorkflowType resolves a configured workflow type by name
	WorkflowType(name string) (approval.WorkflowType, bool)
}
