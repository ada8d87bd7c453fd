package tracker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/coverdesk/approvalflow/internal/domain/approval"
	"github.com/coverdesk/approvalflow/internal/infrastructure/persistence/memory"
)

type noopLogger struct{}

func (noopLogger) Info(msg string, keysAndValues ...interface{})  {}
func (noopLogger) Error(msg string, keysAndValues ...interface{}) {}

func newCase(t *testing.T, store *memory.SubjectStore) *approval.Subject {
	t.Helper()
	now := time.Now()
	subject := &approval.Subject{
		Reference:        "64VB-2026-001",
		WorkflowType:     "64vb",
		Status:           approval.StatusPending,
		MaxLevel:         4,
		Payload:          "{}",
		AmountCents:      180000,
		SubmitterID:      "insurer-3",
		LastTransitionAt: now,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := store.Create(context.Background(), subject); err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	return subject
}

func TestAdvance_SequentialSteps(t *testing.T) {
	store := memory.NewSubjectStore()
	tr := New(store, Verification64VB(), noopLogger{})
	subject := newCase(t, store)
	ctx := context.Background()

	updated, err := tr.Advance(ctx, AdvanceRequest{
		SubjectID: subject.ID, ToStep: 1, Reason: "awaiting insurer receipt",
		Assignee: "ops-4", ActorID: "ops-4", ActorRole: "verifier",
	})
	if err != nil {
		t.Fatalf("Advance() failed: %v", err)
	}
	if updated.CurrentLevel != 1 || updated.Status != approval.ApprovedLevel(1) {
		t.Errorf("after step 1 = (%s, %d), want (APPROVED_L1, 1)", updated.Status, updated.CurrentLevel)
	}
	if updated.PendingReason != "awaiting insurer receipt" || updated.Assignee != "ops-4" {
		t.Errorf("stage metadata = (%q, %q), want reason and assignee recorded", updated.PendingReason, updated.Assignee)
	}
	if tr.StepName(updated) != "Payment Reconciliation" {
		t.Errorf("StepName() = %q, want Payment Reconciliation", tr.StepName(updated))
	}

	// Skipping a step is refused.
	if _, err := tr.Advance(ctx, AdvanceRequest{SubjectID: subject.ID, ToStep: 3, ActorID: "ops-4"}); !errors.Is(err, approval.ErrPolicyViolation) {
		t.Errorf("skipping error = %v, want ErrPolicyViolation", err)
	}

	// Moving backwards is refused.
	if _, err := tr.Advance(ctx, AdvanceRequest{SubjectID: subject.ID, ToStep: 1, ActorID: "ops-4"}); !errors.Is(err, approval.ErrPolicyViolation) {
		t.Errorf("backwards error = %v, want ErrPolicyViolation", err)
	}
}

func TestAdvance_CompletionVerifiesSubject(t *testing.T) {
	store := memory.NewSubjectStore()
	tr := New(store, Verification64VB(), noopLogger{})
	subject := newCase(t, store)
	ctx := context.Background()

	var updated *approval.Subject
	var err error
	for step := 1; step <= 4; step++ {
		updated, err = tr.Advance(ctx, AdvanceRequest{SubjectID: subject.ID, ToStep: step, ActorID: "ops-4", ActorRole: "verifier"})
		if err != nil {
			t.Fatalf("Advance(step %d) failed: %v", step, err)
		}
	}

	if updated.Status != approval.StatusVerified || updated.CurrentLevel != 4 {
		t.Errorf("final = (%s, %d), want (VERIFIED, 4)", updated.Status, updated.CurrentLevel)
	}
	if updated.PendingReason != "" || updated.Assignee != "" {
		t.Error("completion must clear pending reason and assignee")
	}
	if len(updated.History) != 4 {
		t.Errorf("history length = %d, want 4", len(updated.History))
	}
	if tr.Progress(updated) != 100 {
		t.Errorf("Progress() = %d, want 100", tr.Progress(updated))
	}

	// A verified case is closed.
	if _, err := tr.Advance(ctx, AdvanceRequest{SubjectID: subject.ID, ToStep: 5, ActorID: "ops-4"}); !errors.Is(err, approval.ErrPolicyViolation) {
		t.Errorf("advance on verified case = %v, want ErrPolicyViolation", err)
	}
}

func TestProgress_DerivedFromStepIndex(t *testing.T) {
	tr := New(memory.NewSubjectStore(), Verification64VB(), noopLogger{})

	tests := []struct {
		level    int
		progress int
	}{
		{0, 0},
		{1, 25},
		{2, 50},
		{3, 75},
		{4, 100},
	}
	for _, tt := range tests {
		subject := &approval.Subject{CurrentLevel: tt.level}
		if got := tr.Progress(subject); got != tt.progress {
			t.Errorf("Progress(level %d) = %d, want %d", tt.level, got, tt.progress)
		}
	}
}

func TestDaysInCurrentStage(t *testing.T) {
	tr := New(memory.NewSubjectStore(), Verification64VB(), noopLogger{})
	now := time.Date(2026, 6, 10, 12, 0, 0, 0, time.UTC)

	// A 4-step case at step 2, last moved 3 days ago: 3 days in stage, 50% done.
	subject := &approval.Subject{
		CurrentLevel:     2,
		LastTransitionAt: now.Add(-72 * time.Hour),
	}
	if got := tr.DaysInCurrentStage(subject, now); got != 3 {
		t.Errorf("DaysInCurrentStage() = %d, want 3", got)
	}
	if got := tr.Progress(subject); got != 50 {
		t.Errorf("Progress() = %d, want 50", got)
	}

	fresh := &approval.Subject{CurrentLevel: 0, LastTransitionAt: now.Add(-2 * time.Hour)}
	if got := tr.DaysInCurrentStage(fresh, now); got != 0 {
		t.Errorf("DaysInCurrentStage(fresh) = %d, want 0", got)
	}
}

func TestAdvance_PipelineMismatch(t *testing.T) {
	store := memory.NewSubjectStore()
	tr := New(store, Verification64VB(), noopLogger{})

	now := time.Now()
	subject := &approval.Subject{
		Reference: "PAY-1", WorkflowType: "payment", Status: approval.StatusPending,
		MaxLevel: 2, Payload: "{}", AmountCents: 100, SubmitterID: "a",
		LastTransitionAt: now, CreatedAt: now, UpdatedAt: now,
	}
	if err := store.Create(context.Background(), subject); err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	_, err := tr.Advance(context.Background(), AdvanceRequest{SubjectID: subject.ID, ToStep: 1, ActorID: "ops-4"})
	if !errors.Is(err, approval.ErrValidation) {
		t.Errorf("Advance() error = %v, want ErrValidation for mismatched ladder", err)
	}
}
