package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go/v5"

	"github.com/coverdesk/approvalflow/internal/application/dispatcher"
	"github.com/coverdesk/approvalflow/internal/application/port"
	"github.com/coverdesk/approvalflow/internal/domain/approval"
	"github.com/coverdesk/approvalflow/internal/domain/event"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// engineImpl is the concrete implementation of Engine
type engineImpl struct {
	repo       port.SubjectRepository
	policy     *approval.Policy
	types      map[string]approval.WorkflowType
	dispatcher dispatcher.Dispatcher
	logger     Logger
	clock      func() time.Time
	attempts   uint
}

// Option configures the workflow engine
type Option func(*engineImpl)

// WithDispatcher sets the event dispatcher for emitting domain events
func WithDispatcher(d dispatcher.Dispatcher) Option {
	return func(e *engineImpl) {
		e.dispatcher = d
	}
}

// WithClock overrides the time source, used by tests
func WithClock(clock func() time.Time) Option {
	return func(e *engineImpl) {
		e.clock = clock
	}
}

// WithRetryAttempts bounds the compare-and-swap conflict retry loop
func WithRetryAttempts(n uint) Option {
	return func(e *engineImpl) {
		e.attempts = n
	}
}

// New creates a workflow engine over the given record store, policy and
// workflow type configuration
func New(repo port.SubjectRepository, policy *approval.Policy, types map[string]approval.WorkflowType, logger Logger, opts ...Option) Engine {
	e := &engineImpl{
		repo:     repo,
		policy:   policy,
		types:    make(map[string]approval.WorkflowType, len(types)),
		logger:   logger,
		clock:    time.Now,
		attempts: 3,
	}
	for name, wf := range types {
		wf.Name = name
		e.types[name] = wf
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Submit validates the payload and creates a subject in (PENDING, 0)
func (e *engineImpl) Submit(ctx context.Context, sub approval.Submission) (*approval.Subject, error) {
	if err := sub.Validate(); err != nil {
		return nil, err
	}

	wf, ok := e.types[sub.WorkflowType]
	if !ok {
		return nil, fmt.Errorf("%w: unknown workflow type %q", approval.ErrValidation, sub.WorkflowType)
	}

	payload := "{}"
	if len(sub.Payload) > 0 {
		raw, err := json.Marshal(sub.Payload)
		if err != nil {
			return nil, fmt.Errorf("%w: payload not serializable: %v", approval.ErrValidation, err)
		}
		payload = string(raw)
	}

	now := e.clock()
	subject := &approval.Subject{
		Reference:        sub.Reference,
		WorkflowType:     wf.Name,
		Status:           approval.StatusPending,
		CurrentLevel:     0,
		MaxLevel:         wf.MaxLevel,
		Payload:          payload,
		AmountCents:      sub.AmountCents,
		SubmitterID:      sub.SubmitterID,
		LastTransitionAt: now,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := e.repo.Create(ctx, subject); err != nil {
		e.logger.Error("Failed to create subject", "error", err, "reference", sub.Reference)
		return nil, err
	}

	e.logger.Info("Subject submitted",
		"id", subject.ID,
		"workflow_type", wf.Name,
		"reference", sub.Reference,
		"submitter_id", sub.SubmitterID,
	)

	e.emit(ctx, event.New(event.TypeSubjectSubmitted, subject.ID, wf.Name, map[string]interface{}{
		"reference":    subject.Reference,
		"amount_cents": subject.AmountCents,
		"submitter_id": subject.SubmitterID,
	}))

	return subject, nil
}

// Act applies an approve/reject/process command to a subject
func (e *engineImpl) Act(ctx context.Context, act approval.Action) (*approval.Subject, error) {
	if err := act.Validate(); err != nil {
		return nil, err
	}

	var updated *approval.Subject

	r := retry.New(
		retry.Context(ctx),
		retry.Attempts(e.attempts),
		retry.LastErrorOnly(true),
	)

	// Each attempt re-reads and re-decides, so a conflict caused by another
	// actor's transition is evaluated against the fresh state.
	err := r.Do(func() error {
		subject, err := e.repo.GetByID(ctx, act.SubjectID)
		if err != nil {
			return retry.Unrecoverable(err)
		}

		wf, ok := e.types[subject.WorkflowType]
		if !ok {
			return retry.Unrecoverable(fmt.Errorf("%w: subject %d has unconfigured workflow type %q",
				approval.ErrValidation, subject.ID, subject.WorkflowType))
		}

		decision := e.policy.Decide(subject.Status, subject.CurrentLevel, wf, act.ActorRole, act.Intent)
		if !decision.Permit {
			return retry.Unrecoverable(fmt.Errorf("%w: %s", approval.ErrPolicyViolation, decision.Reason))
		}

		updated, err = e.repo.CompareAndSwap(ctx, subject.ID, subject.Status, subject.CurrentLevel,
			func(s *approval.Subject) (*approval.HistoryEntry, error) {
				now := e.clock()
				entry := &approval.HistoryEntry{
					SubjectID:  s.ID,
					ActorID:    act.ActorID,
					ActorRole:  act.ActorRole,
					Action:     act.Intent.String(),
					FromStatus: s.Status,
					ToStatus:   decision.NextStatus,
					FromLevel:  s.CurrentLevel,
					ToLevel:    decision.NextLevel,
					Note:       act.Note,
					Timestamp:  now,
				}
				s.Status = decision.NextStatus
				s.CurrentLevel = decision.NextLevel
				if act.Intent == approval.IntentReject {
					s.RejectionReason = act.Note
				}
				s.LastTransitionAt = now
				s.UpdatedAt = now
				return entry, nil
			})
		if err != nil {
			if errors.Is(err, approval.ErrConflict) {
				return err
			}
			return retry.Unrecoverable(err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, approval.ErrConflict) {
			e.logger.Error("Action lost compare-and-swap race",
				"subject_id", act.SubjectID, "actor_id", act.ActorID, "intent", act.Intent)
		}
		return nil, err
	}

	e.logger.Info("Action applied",
		"subject_id", updated.ID,
		"actor_id", act.ActorID,
		"actor_role", act.ActorRole,
		"intent", act.Intent,
		"status", updated.Status,
		"level", updated.CurrentLevel,
	)

	e.emitTransition(ctx, updated, act)

	return updated, nil
}

// Get returns the current subject snapshot including its history
func (e *engineImpl) Get(ctx context.Context, id int64) (*approval.Subject, error) {
	return e.repo.GetByID(ctx, id)
}

// WorkflowType resolves a configured workflow type by name
func (e *engineImpl) WorkflowType(name string) (approval.WorkflowType, bool) {
	wf, ok := e.types[name]
	return wf, ok
}

// emitTransition emits a status-changed event and, for terminal transitions,
// the corresponding terminal event. Dispatch is asynchronous: a slow or
// failing notifier never rolls back the committed transition.
func (e *engineImpl) emitTransition(ctx context.Context, subject *approval.Subject, act approval.Action) {
	payload := map[string]interface{}{
		"status":       subject.Status.String(),
		"level":        subject.CurrentLevel,
		"actor_id":     act.ActorID,
		"actor_role":   act.ActorRole,
		"intent":       act.Intent.String(),
		"amount_cents": subject.AmountCents,
		"submitter_id": subject.SubmitterID,
		"reference":    subject.Reference,
	}

	e.emit(ctx, event.New(event.TypeStatusChanged, subject.ID, subject.WorkflowType, payload))

	if terminal, ok := e.terminalEventType(subject); ok {
		e.emit(ctx, event.New(terminal, subject.ID, subject.WorkflowType, payload))
	}
}

func (e *engineImpl) terminalEventType(subject *approval.Subject) (event.Type, bool) {
	wf := e.types[subject.WorkflowType]
	switch subject.Status {
	case approval.StatusRejected:
		return event.TypeSubjectRejected, true
	case approval.StatusPaid:
		return event.TypeSubjectPaid, true
	case approval.StatusVerified:
		return event.TypeSubjectVerified, true
	case wf.ApprovedStatus:
		return event.TypeSubjectApproved, true
	default:
		return "", false
	}
}

func (e *engineImpl) emit(ctx context.Context, evt *event.Event) {
	if e.dispatcher == nil {
		return
	}
	e.dispatcher.DispatchAsync(ctx, evt)
}
