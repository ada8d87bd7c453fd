package port

import (
	"context"

	"github.com/coverdesk/approvalflow/internal/domain/approval"
)

// Filter narrows subject listings. Zero values mean "any".
type Filter struct {
	Status       approval.Status
	Level        *int
	Assignee     string
	WorkflowType string
	// Month restricts to subjects created in the given month, format "2006-01"
	Month string
}

// Mutator applies an in-place change to a subject inside a compare-and-swap.
// It must append exactly the history entries describing the change it makes.
type Mutator func(subject *approval.Subject) (*approval.HistoryEntry, error)

// SubjectRepository defines persistence operations for approval subjects.
// CompareAndSwap is the sole mutation path after creation: it applies the
// mutator only when the stored (status, level) pair still matches the
// caller's expectation and persists the status change and the history entry
// atomically, failing with approval.ErrConflict otherwise.
// GetByID and List both return subjects with their history populated.
type SubjectRepository interface {
	Create(ctx context.Context, subject *approval.Subject) error
	GetByID(ctx context.Context, id int64) (*approval.Subject, error)
	List(ctx context.Context, filter Filter) ([]*approval.Subject, error)
	CompareAndSwap(ctx context.Context, id int64, expectedStatus approval.Status, expectedLevel int, mutate Mutator) (*approval.Subject, error)
}

// HistoryRepository defines read access to the audit trail
type HistoryRepository interface {
	GetBySubjectID(ctx context.Context, subjectID int64) ([]approval.HistoryEntry, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
