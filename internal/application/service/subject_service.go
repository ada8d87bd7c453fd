package service

import (
	"context"

	"github.com/coverdesk/approvalflow/internal/application/port"
	"github.com/coverdesk/approvalflow/internal/domain/approval"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// historyTailLength bounds the history slice included in table snapshots
const historyTailLength = 5

// Snapshot is the read model handed to table-rendering consumers
type Snapshot struct {
	ID              int64                   `json:"id"`
	Reference       string                  `json:"reference"`
	WorkflowType    string                  `json:"workflow_type"`
	Status          approval.Status         `json:"status"`
	CurrentLevel    int                     `json:"current_level"`
	MaxLevel        int                     `json:"max_level"`
	AmountCents     int64                   `json:"amount_cents"`
	SubmitterID     string                  `json:"submitter_id"`
	Assignee        string                  `json:"assignee,omitempty"`
	PendingReason   string                  `json:"pending_reason,omitempty"`
	RejectionReason string                  `json:"rejection_reason,omitempty"`
	HistoryTail     []approval.HistoryEntry `json:"history_tail,omitempty"`
}

// SubjectService produces subject snapshots for listing and table rendering
type SubjectService interface {
	List(ctx context.Context, filter port.Filter) ([]Snapshot, error)
	Get(ctx context.Context, id int64) (*approval.Subject, error)
}

type subjectServiceImpl struct {
	repo   port.SubjectRepository
	logger Logger
}

// NewSubjectService creates a new SubjectService
func NewSubjectService(repo port.SubjectRepository, logger Logger) SubjectService {
	return &subjectServiceImpl{repo: repo, logger: logger}
}

// List returns snapshots of subjects matching the filter, insertion ordered
func (s *subjectServiceImpl) List(ctx context.Context, filter port.Filter) ([]Snapshot, error) {
	subjects, err := s.repo.List(ctx, filter)
	if err != nil {
		s.logger.Error("Failed to list subjects", "error", err)
		return nil, err
	}

	snapshots := make([]Snapshot, 0, len(subjects))
	for _, subject := range subjects {
		snapshots = append(snapshots, makeSnapshot(subject))
	}
	return snapshots, nil
}

// Get returns the full subject including its complete history
func (s *subjectServiceImpl) Get(ctx context.Context, id int64) (*approval.Subject, error) {
	subject, err := s.repo.GetByID(ctx, id)
	if err != nil {
		s.logger.Error("Failed to get subject", "error", err, "id", id)
		return nil, err
	}
	return subject, nil
}

func makeSnapshot(subject *approval.Subject) Snapshot {
	tail := subject.History
	if len(tail) > historyTailLength {
		tail = tail[len(tail)-historyTailLength:]
	}
	return Snapshot{
		ID:              subject.ID,
		Reference:       subject.Reference,
		WorkflowType:    subject.WorkflowType,
		Status:          subject.Status,
		CurrentLevel:    subject.CurrentLevel,
		MaxLevel:        subject.MaxLevel,
		AmountCents:     subject.AmountCents,
		SubmitterID:     subject.SubmitterID,
		Assignee:        subject.Assignee,
		PendingReason:   subject.PendingReason,
		RejectionReason: subject.RejectionReason,
		HistoryTail:     tail,
	}
}
