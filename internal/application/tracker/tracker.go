// Package tracker generalizes the approve/reject ladder into an ordered
// pipeline of named steps, used by the 64VB verification flow. A subject is
// in exactly one step at a time; advancing records a pending reason and an
// assignee alongside the transition.
package tracker

import (
	"context"
	"fmt"
	"math"
	"time"

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

// Pipeline is an ordered sequence of named steps
type Pipeline struct {
	Name  string
	Steps []string
}

// Verification64VB is the default 64VB reconciliation pipeline
func Verification64VB() Pipeline {
	return Pipeline{
		Name:  "64vb",
		Steps: []string{"Policy Details", "Payment Reconciliation", "API Integration", "Confirmation"},
	}
}

// AdvanceRequest moves a subject into its next step
type AdvanceRequest struct {
	SubjectID int64  `json:"subject_id"`
	ToStep    int    `json:"to_step"`
	Reason    string `json:"reason,omitempty"`
	Assignee  string `json:"assignee,omitempty"`
	ActorID   string `json:"actor_id"`
	ActorRole string `json:"actor_role"`
}

// Tracker advances subjects through a pipeline. The subject's current step
// index lives in CurrentLevel; completing the final step marks the subject
// VERIFIED through the same compare-and-swap path the ladder uses.
type Tracker struct {
	repo       port.SubjectRepository
	pipeline   Pipeline
	dispatcher dispatcher.Dispatcher
	logger     Logger
	clock      func() time.Time
}

// Option configures the tracker
type Option func(*Tracker)

// WithDispatcher sets the event dispatcher
func WithDispatcher(d dispatcher.Dispatcher) Option {
	return func(t *Tracker) {
		t.dispatcher = d
	}
}

// WithClock overrides the time source, used by tests
func WithClock(clock func() time.Time) Option {
	return func(t *Tracker) {
		t.clock = clock
	}
}

// New creates a tracker for the given pipeline
func New(repo port.SubjectRepository, pipeline Pipeline, logger Logger, opts ...Option) *Tracker {
	t := &Tracker{
		repo:     repo,
		pipeline: pipeline,
		logger:   logger,
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Advance moves a subject from its current step to the next one. Skipping is
// never permitted; reaching the step past the last one closes the pipeline.
func (t *Tracker) Advance(ctx context.Context, req AdvanceRequest) (*approval.Subject, error) {
	if req.ActorID == "" {
		return nil, fmt.Errorf("%w: actor id is required", approval.ErrValidation)
	}

	subject, err := t.repo.GetByID(ctx, req.SubjectID)
	if err != nil {
		return nil, err
	}
	if subject.Status == approval.StatusRejected || subject.Status == approval.StatusVerified {
		return nil, fmt.Errorf("%w: workflow closed", approval.ErrPolicyViolation)
	}
	if subject.MaxLevel != len(t.pipeline.Steps) {
		return nil, fmt.Errorf("%w: subject %d has %d levels, pipeline %q has %d steps",
			approval.ErrValidation, subject.ID, subject.MaxLevel, t.pipeline.Name, len(t.pipeline.Steps))
	}
	if req.ToStep != subject.CurrentLevel+1 {
		return nil, fmt.Errorf("%w: cannot move from step %d to step %d, steps are strictly sequential",
			approval.ErrPolicyViolation, subject.CurrentLevel, req.ToStep)
	}

	final := req.ToStep == len(t.pipeline.Steps)
	nextStatus := approval.ApprovedLevel(req.ToStep)
	if final {
		nextStatus = approval.StatusVerified
	}

	updated, err := t.repo.CompareAndSwap(ctx, subject.ID, subject.Status, subject.CurrentLevel,
		func(s *approval.Subject) (*approval.HistoryEntry, error) {
			now := t.clock()
			entry := &approval.HistoryEntry{
				SubjectID:  s.ID,
				ActorID:    req.ActorID,
				ActorRole:  req.ActorRole,
				Action:     "ADVANCE",
				FromStatus: s.Status,
				ToStatus:   nextStatus,
				FromLevel:  s.CurrentLevel,
				ToLevel:    req.ToStep,
				Note:       req.Reason,
				Timestamp:  now,
			}
			s.Status = nextStatus
			s.CurrentLevel = req.ToStep
			s.PendingReason = req.Reason
			s.Assignee = req.Assignee
			if final {
				s.PendingReason = ""
				s.Assignee = ""
			}
			s.LastTransitionAt = now
			s.UpdatedAt = now
			return entry, nil
		})
	if err != nil {
		return nil, err
	}

	t.logger.Info("Stage advanced",
		"subject_id", updated.ID,
		"pipeline", t.pipeline.Name,
		"step", req.ToStep,
		"assignee", req.Assignee,
	)

	if t.dispatcher != nil {
		payload := map[string]interface{}{
			"step":         req.ToStep,
			"step_name":    t.StepName(updated),
			"assignee":     req.Assignee,
			"reason":       req.Reason,
			"amount_cents": updated.AmountCents,
			"submitter_id": updated.SubmitterID,
			"reference":    updated.Reference,
		}
		t.dispatcher.DispatchAsync(ctx, event.New(event.TypeStageAdvanced, updated.ID, updated.WorkflowType, payload))
		if final {
			t.dispatcher.DispatchAsync(ctx, event.New(event.TypeSubjectVerified, updated.ID, updated.WorkflowType, payload))
		}
	}

	return updated, nil
}

// StepName returns the name of the step the subject is currently in, or
// "completed" once the pipeline is done
func (t *Tracker) StepName(subject *approval.Subject) string {
	if subject.CurrentLevel >= len(t.pipeline.Steps) {
		return "completed"
	}
	return t.pipeline.Steps[subject.CurrentLevel]
}

// Progress returns the completion percentage, derived from the step index so
// it can never drift from the stored position
func (t *Tracker) Progress(subject *approval.Subject) int {
	total := len(t.pipeline.Steps)
	if total == 0 {
		return 0
	}
	return int(math.Round(100 * float64(subject.CurrentLevel) / float64(total)))
}

// DaysInCurrentStage returns whole days elapsed since the last transition
func (t *Tracker) DaysInCurrentStage(subject *approval.Subject, now time.Time) int {
	if subject.LastTransitionAt.IsZero() || now.Before(subject.LastTransitionAt) {
		return 0
	}
	return int(now.Sub(subject.LastTransitionAt).Hours() / 24)
}
