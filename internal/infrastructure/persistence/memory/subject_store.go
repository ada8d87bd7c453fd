// Package memory provides an in-memory SubjectRepository. It backs tests and
// single-process deployments; the sqlite repository is the durable variant.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/coverdesk/approvalflow/internal/application/port"
	"github.com/coverdesk/approvalflow/internal/domain/approval"
)

// SubjectStore is a mutex-guarded in-memory record store
type SubjectStore struct {
	mu       sync.Mutex
	nextID   int64
	subjects map[int64]*approval.Subject
	order    []int64
}

// NewSubjectStore creates an empty in-memory store
func NewSubjectStore() *SubjectStore {
	return &SubjectStore{
		nextID:   1,
		subjects: make(map[int64]*approval.Subject),
	}
}

// Create assigns an id and stores the subject
func (s *SubjectStore) Create(ctx context.Context, subject *approval.Subject) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	subject.ID = s.nextID
	s.nextID++

	stored := cloneSubject(subject)
	s.subjects[subject.ID] = stored
	s.order = append(s.order, subject.ID)
	return nil
}

// GetByID returns a copy of the stored subject
func (s *SubjectStore) GetByID(ctx context.Context, id int64) (*approval.Subject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.subjects[id]
	if !ok {
		return nil, fmt.Errorf("%w: id %d", approval.ErrNotFound, id)
	}
	return cloneSubject(stored), nil
}

// List returns subjects matching the filter in insertion order
func (s *SubjectStore) List(ctx context.Context, filter port.Filter) ([]*approval.Subject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []*approval.Subject
	for _, id := range s.order {
		subject := s.subjects[id]
		if !matches(subject, filter) {
			continue
		}
		result = append(result, cloneSubject(subject))
	}
	return result, nil
}

// CompareAndSwap applies the mutator only when the stored (status, level)
// pair still matches the caller's expectation
func (s *SubjectStore) CompareAndSwap(ctx context.Context, id int64, expectedStatus approval.Status, expectedLevel int, mutate port.Mutator) (*approval.Subject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.subjects[id]
	if !ok {
		return nil, fmt.Errorf("%w: id %d", approval.ErrNotFound, id)
	}
	if stored.Status != expectedStatus || stored.CurrentLevel != expectedLevel {
		return nil, fmt.Errorf("%w: subject %d is at (%s, %d), expected (%s, %d)",
			approval.ErrConflict, id, stored.Status, stored.CurrentLevel, expectedStatus, expectedLevel)
	}

	// Mutate a copy so a failing mutator leaves the stored subject untouched.
	candidate := cloneSubject(stored)
	entry, err := mutate(candidate)
	if err != nil {
		return nil, err
	}
	if entry != nil {
		entry.ID = int64(len(candidate.History) + 1)
		entry.SubjectID = id
		candidate.History = append(candidate.History, *entry)
	}

	s.subjects[id] = candidate
	return cloneSubject(candidate), nil
}

func matches(subject *approval.Subject, filter port.Filter) bool {
	if filter.Status != "" && subject.Status != filter.Status {
		return false
	}
	if filter.Level != nil && subject.CurrentLevel != *filter.Level {
		return false
	}
	if filter.Assignee != "" && subject.Assignee != filter.Assignee {
		return false
	}
	if filter.WorkflowType != "" && subject.WorkflowType != filter.WorkflowType {
		return false
	}
	if filter.Month != "" && !strings.HasPrefix(subject.CreatedAt.Format("2006-01"), filter.Month) {
		return false
	}
	return true
}

func cloneSubject(subject *approval.Subject) *approval.Subject {
	clone := *subject
	clone.History = make([]approval.HistoryEntry, len(subject.History))
	copy(clone.History, subject.History)
	return &clone
}

// Verify interface compliance
var _ port.SubjectRepository = (*SubjectStore)(nil)
