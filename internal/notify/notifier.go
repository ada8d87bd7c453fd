// Package notify delivers terminal-outcome notifications to submitters.
// Delivery is best effort: the workflow transition has already committed by
// the time a notification is attempted, so failures are logged and dropped.
package notify

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/coverdesk/approvalflow/internal/application/dispatcher"
	"github.com/coverdesk/approvalflow/internal/domain/event"
)

// Message is a rendered notification ready for a delivery channel
type Message struct {
	Recipient string
	Subject   string
	Body      string
}

// Sender delivers a rendered message over some channel
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Notifier turns terminal workflow events into submitter notifications
type Notifier struct {
	sender Sender
	logger *zap.Logger
}

// NewNotifier creates a new notifier
func NewNotifier(sender Sender, logger *zap.Logger) *Notifier {
	return &Notifier{
		sender: sender,
		logger: logger,
	}
}

// Register subscribes the notifier to every terminal event type
func (n *Notifier) Register(d dispatcher.Dispatcher) {
	for _, t := range []event.Type{
		event.TypeSubjectApproved,
		event.TypeSubjectRejected,
		event.TypeSubjectPaid,
		event.TypeSubjectVerified,
	} {
		d.Subscribe(t, "terminal-notifier", n.Handle)
	}
}

// Handle renders and sends the notification for a terminal event. It always
// returns nil: a delivery failure must not surface as a dispatch error.
func (n *Notifier) Handle(ctx context.Context, evt *event.Event) error {
	recipient := evt.GetPayloadString("submitter_id")
	if recipient == "" {
		n.logger.Warn("Terminal event without submitter, dropping notification",
			zap.String("event_id", evt.ID),
			zap.Int64("subject_id", evt.SubjectID))
		return nil
	}

	msg := Message{
		Recipient: recipient,
		Subject:   n.subjectLine(evt),
		Body:      n.body(evt),
	}

	if err := n.sender.Send(ctx, msg); err != nil {
		n.logger.Error("Failed to deliver notification",
			zap.String("event_id", evt.ID),
			zap.Int64("subject_id", evt.SubjectID),
			zap.String("recipient", recipient),
			zap.Error(err))
		return nil
	}

	n.logger.Info("Notification delivered",
		zap.String("event_type", evt.Type.String()),
		zap.Int64("subject_id", evt.SubjectID),
		zap.String("recipient", recipient))
	return nil
}

func (n *Notifier) subjectLine(evt *event.Event) string {
	reference := evt.GetPayloadString("reference")

	switch evt.Type {
	case event.TypeSubjectApproved:
		return fmt.Sprintf("Approved: %s", reference)
	case event.TypeSubjectRejected:
		return fmt.Sprintf("Rejected: %s", reference)
	case event.TypeSubjectPaid:
		return fmt.Sprintf("Payment processed: %s", reference)
	case event.TypeSubjectVerified:
		return fmt.Sprintf("Verification complete: %s", reference)
	default:
		return fmt.Sprintf("Update: %s", reference)
	}
}

func (n *Notifier) body(evt *event.Event) string {
	reference := evt.GetPayloadString("reference")
	status := evt.GetPayloadString("status")
	actorRole := evt.GetPayloadString("actor_role")

	body := fmt.Sprintf("Your submission %s has reached status %s.", reference, status)
	if actorRole != "" {
		body += fmt.Sprintf(" Final action taken by %s.", actorRole)
	}
	return body
}

// LogSender is the default delivery channel: it records the message in the
// application log. Deployments with a real mail gateway swap in their own
// Sender.
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender creates a log-backed sender
func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// Send writes the message to the log
func (s *LogSender) Send(_ context.Context, msg Message) error {
	s.logger.Info("Outbound notification",
		zap.String("recipient", msg.Recipient),
		zap.String("subject", msg.Subject),
		zap.String("body", msg.Body))
	return nil
}

// Verify interface compliance
var _ Sender = (*LogSender)(nil)
