package notify

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/coverdesk/approvalflow/internal/application/dispatcher"
	"github.com/coverdesk/approvalflow/internal/domain/event"
)

type capturingSender struct {
	mu       sync.Mutex
	messages []Message
	err      error
}

func (s *capturingSender) Send(_ context.Context, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.messages = append(s.messages, msg)
	return nil
}

func (s *capturingSender) sent() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.messages...)
}

func terminalEvent(t event.Type) *event.Event {
	return event.New(t, 7, "payment", map[string]interface{}{
		"status":       "PAID",
		"reference":    "CLM-1001",
		"submitter_id": "agent-7",
		"actor_role":   "finance-manager",
	})
}

func TestNotifier_Handle_SendsToSubmitter(t *testing.T) {
	sender := &capturingSender{}
	notifier := NewNotifier(sender, zap.NewNop())

	if err := notifier.Handle(context.Background(), terminalEvent(event.TypeSubjectPaid)); err != nil {
		t.Fatalf("Handle() failed: %v", err)
	}

	msgs := sender.sent()
	if len(msgs) != 1 {
		t.Fatalf("sent %d messages, want 1", len(msgs))
	}
	if msgs[0].Recipient != "agent-7" {
		t.Errorf("recipient = %q, want agent-7", msgs[0].Recipient)
	}
	if msgs[0].Subject != "Payment processed: CLM-1001" {
		t.Errorf("subject = %q", msgs[0].Subject)
	}
}

func TestNotifier_Handle_SwallowsSendFailure(t *testing.T) {
	sender := &capturingSender{err: errors.New("gateway down")}
	notifier := NewNotifier(sender, zap.NewNop())

	if err := notifier.Handle(context.Background(), terminalEvent(event.TypeSubjectRejected)); err != nil {
		t.Errorf("Handle() = %v, want nil on delivery failure", err)
	}
}

func TestNotifier_Handle_MissingSubmitter(t *testing.T) {
	sender := &capturingSender{}
	notifier := NewNotifier(sender, zap.NewNop())

	evt := event.New(event.TypeSubjectApproved, 7, "payment", map[string]interface{}{
		"reference": "CLM-1001",
	})
	if err := notifier.Handle(context.Background(), evt); err != nil {
		t.Errorf("Handle() = %v, want nil", err)
	}
	if len(sender.sent()) != 0 {
		t.Error("expected no message for event without submitter")
	}
}

func TestNotifier_Register_ReceivesTerminalEvents(t *testing.T) {
	sender := &capturingSender{}
	notifier := NewNotifier(sender, zap.NewNop())

	d := dispatcher.New()
	notifier.Register(d)

	for _, typ := range []event.Type{
		event.TypeSubjectApproved,
		event.TypeSubjectRejected,
		event.TypeSubjectPaid,
		event.TypeSubjectVerified,
	} {
		if err := d.Dispatch(context.Background(), terminalEvent(typ)); err != nil {
			t.Fatalf("Dispatch(%s) failed: %v", typ, err)
		}
	}

	if got := len(sender.sent()); got != 4 {
		t.Errorf("sent %d messages, want 4", got)
	}

	// status-changed is informational, not a notification trigger
	if err := d.Dispatch(context.Background(), terminalEvent(event.TypeStatusChanged)); err != nil {
		t.Fatalf("Dispatch() failed: %v", err)
	}
	if got := len(sender.sent()); got != 4 {
		t.Errorf("sent %d messages after status-changed, want 4", got)
	}
}
