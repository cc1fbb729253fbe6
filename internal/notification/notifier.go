package notification

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/frahmantamala/leave-management/internal/core/events"
	"github.com/frahmantamala/leave-management/internal/core/metrics"
)

// Inbox persists in-app notifications.
type Inbox interface {
	Create(ctx context.Context, employeeID int64, title, message string, leaveRequestID int64) error
}

// Notifier turns leave events into emails and in-app notifications.
type Notifier struct {
	sender     EmailSender
	inbox      Inbox
	dispatcher *Dispatcher
	logger     *slog.Logger
}

func NewNotifier(sender EmailSender, inbox Inbox, dispatcher *Dispatcher, logger *slog.Logger) *Notifier {
	return &Notifier{
		sender:     sender,
		inbox:      inbox,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

func (n *Notifier) Register(bus *events.EventBus) {
	bus.Subscribe(events.EventTypeLeaveSubmitted, n.handleSubmitted)
	bus.Subscribe(events.EventTypeLeaveStageDecided, n.handleStageDecided)
	bus.Subscribe(events.EventTypeLeaveManagerApproved, n.handleManagerApproved)
}

func (n *Notifier) handleSubmitted(ctx context.Context, e events.Event) error {
	ev, ok := e.(*events.LeaveSubmittedEvent)
	if !ok {
		return fmt.Errorf("unexpected event payload %T", e)
	}
	data := TemplateData{RecipientName: ev.Manager.Name, Leave: ev.Leave}
	return n.Deliver(ctx, ev.Manager, KindNewRequestToManager, data, ev.Leave.RequestID)
}

func (n *Notifier) handleStageDecided(ctx context.Context, e events.Event) error {
	ev, ok := e.(*events.LeaveStageDecidedEvent)
	if !ok {
		return fmt.Errorf("unexpected event payload %T", e)
	}
	kind, ok := DecisionKind(ev.Stage)
	if !ok {
		return fmt.Errorf("no template for stage %q", ev.Stage)
	}
	data := TemplateData{
		RecipientName: ev.Employee.Name,
		Leave:         ev.Leave,
		Decision:      ev.Decision,
		Comment:       ev.Comment,
		DecidedBy:     ev.DecidedBy,
	}
	return n.Deliver(ctx, ev.Employee, kind, data, ev.Leave.RequestID)
}

// handleManagerApproved queues one job per HR officer and never fails the
// publisher.
func (n *Notifier) handleManagerApproved(ctx context.Context, e events.Event) error {
	ev, ok := e.(*events.LeaveManagerApprovedEvent)
	if !ok {
		return fmt.Errorf("unexpected event payload %T", e)
	}

	for _, hr := range ev.HROfficers {
		recipient := hr
		data := TemplateData{RecipientName: recipient.Name, Leave: ev.Leave}
		run := func(ctx context.Context) error {
			return n.Deliver(ctx, recipient, KindNewRequestToHR, data, ev.Leave.RequestID)
		}

		if n.dispatcher == nil {
			if err := run(ctx); err != nil {
				n.logger.Warn("hr notification failed", "employee_id", recipient.EmployeeID, "error", err)
			}
			continue
		}
		n.dispatcher.Enqueue(Job{
			Name: fmt.Sprintf("hr-review:%d:%d", ev.Leave.RequestID, recipient.EmployeeID),
			Run:  run,
		})
	}
	return nil
}

// Deliver emails the recipient and records an in-app notification. The
// in-app record is written even when the email fails, with a note appended.
// Only the email error is returned.
func (n *Notifier) Deliver(ctx context.Context, to events.Recipient, kind Kind, data TemplateData, leaveRequestID int64) error {
	rendered, err := Render(kind, data)
	if err != nil {
		return err
	}

	emailErr := n.sender.Send(ctx, Email{To: to.Email, Subject: rendered.Subject, Body: rendered.Body})
	message := rendered.Body
	if emailErr != nil {
		n.logger.Warn("email delivery failed",
			"error", emailErr,
			"kind", kind,
			"employee_id", to.EmployeeID,
			"leave_request_id", leaveRequestID)
		metrics.ObserveNotification("email", "failed")
		message += "\n\n(Email delivery failed: " + emailErr.Error() + ")"
	} else {
		metrics.ObserveNotification("email", "sent")
	}

	if err := n.inbox.Create(ctx, to.EmployeeID, rendered.Title, message, leaveRequestID); err != nil {
		n.logger.Error("failed to store in-app notification",
			"error", err,
			"kind", kind,
			"employee_id", to.EmployeeID,
			"leave_request_id", leaveRequestID)
		metrics.ObserveNotification("in_app", "failed")
	} else {
		metrics.ObserveNotification("in_app", "created")
	}

	return emailErr
}
