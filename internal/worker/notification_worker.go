package worker

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/events"
)

const mailQueueSize = 256

type emailMessage struct {
	To      []string
	Subject string
	Body    string
}

// NotificationWorker turns domain events into outbound emails. Mail delivery
// runs on its own goroutine behind a bounded queue: a slow or unavailable
// relay never blocks the request path, and a full queue drops the message
// with a log line rather than backing up.
type NotificationWorker struct {
	dispatcher events.Dispatcher
	mailer     Mailer
	logger     *zap.Logger
	cfg        config.NotificationConfig

	queue chan emailMessage
	stop  chan struct{}
	wg    sync.WaitGroup
}

// NewNotificationWorker constructs the worker.
func NewNotificationWorker(dispatcher events.Dispatcher, mailer Mailer, logger *zap.Logger, cfg config.NotificationConfig) *NotificationWorker {
	return &NotificationWorker{
		dispatcher: dispatcher,
		mailer:     mailer,
		logger:     logger,
		cfg:        cfg,
		queue:      make(chan emailMessage, mailQueueSize),
		stop:       make(chan struct{}),
	}
}

// Start subscribes to events and launches the delivery loop.
func (w *NotificationWorker) Start() {
	if w.dispatcher != nil {
		w.dispatcher.Subscribe(events.EventTicketCreated, w.handleEvent)
		w.dispatcher.Subscribe(events.EventTicketStatusChanged, w.handleEvent)
		w.dispatcher.Subscribe(events.EventTicketAssigned, w.handleEvent)
		w.dispatcher.Subscribe(events.EventTicketCommented, w.handleEvent)
		w.dispatcher.Subscribe(events.EventSLAWarning, w.handleEvent)
		w.dispatcher.Subscribe(events.EventSLABreach, w.handleEvent)
	}

	w.wg.Add(1)
	go w.deliverLoop()
}

// Stop drains the queue and waits for the delivery loop to finish.
func (w *NotificationWorker) Stop() {
	close(w.stop)
	w.wg.Wait()
}

func (w *NotificationWorker) deliverLoop() {
	defer w.wg.Done()
	for {
		select {
		case msg := <-w.queue:
			w.deliver(msg)
		case <-w.stop:
			for {
				select {
				case msg := <-w.queue:
					w.deliver(msg)
				default:
					return
				}
			}
		}
	}
}

func (w *NotificationWorker) deliver(msg emailMessage) {
	if len(msg.To) == 0 {
		return
	}
	if err := w.mailer.Send(msg.To, msg.Subject, msg.Body); err != nil {
		w.logger.Error("email delivery failed",
			zap.String("subject", msg.Subject),
			zap.Int("recipients", len(msg.To)),
			zap.Error(err))
	}
}

func (w *NotificationWorker) enqueue(msg emailMessage) {
	if len(msg.To) == 0 {
		return
	}
	select {
	case w.queue <- msg:
	default:
		w.logger.Warn("email queue full, dropping message",
			zap.String("subject", msg.Subject))
	}
}

func (w *NotificationWorker) handleEvent(ctx context.Context, event events.Event) error {
	msg, ok := w.compose(event)
	if !ok {
		return nil
	}
	w.enqueue(msg)
	return nil
}

func (w *NotificationWorker) compose(event events.Event) (emailMessage, bool) {
	link := w.cfg.BaseURL + "/tickets/" + fmt.Sprint(event.TicketID)

	switch payload := event.Payload.(type) {
	case events.TicketCreatedPayload:
		return emailMessage{
			To:      recipients(payload.RequesterEmail),
			Subject: fmt.Sprintf("[%s] Ticket created: %s", event.TicketCode, payload.Title),
			Body:    fmt.Sprintf("Your ticket %s has been created.\n\n%s", event.TicketCode, link),
		}, true

	case events.TicketStatusChangedPayload:
		body := fmt.Sprintf("Ticket %s moved from %s to %s.",
			event.TicketCode, payload.OldStatus.Label(), payload.NewStatus.Label())
		if strings.TrimSpace(payload.Comment) != "" {
			body += "\n\n" + payload.Comment
		}
		body += "\n\n" + link
		return emailMessage{
			To:      recipients(payload.RequesterEmail, payload.AssigneeEmail),
			Subject: fmt.Sprintf("[%s] Status changed to %s", event.TicketCode, payload.NewStatus.Label()),
			Body:    body,
		}, true

	case events.TicketAssignedPayload:
		body := fmt.Sprintf("Ticket %s was assigned to %s.", event.TicketCode, payload.AssigneeName)
		if strings.TrimSpace(payload.Reason) != "" {
			body += "\nReason: " + payload.Reason
		}
		body += "\n\n" + link
		return emailMessage{
			To:      recipients(payload.AssigneeEmail, payload.RequesterEmail),
			Subject: fmt.Sprintf("[%s] Ticket assigned", event.TicketCode),
			Body:    body,
		}, true

	case events.TicketCommentedPayload:
		if payload.IsInternal {
			return emailMessage{}, false
		}
		return emailMessage{
			To:      recipients(payload.RequesterEmail),
			Subject: fmt.Sprintf("[%s] New comment", event.TicketCode),
			Body:    fmt.Sprintf("%s wrote:\n\n%s\n\n%s", payload.AuthorName, payload.Body, link),
		}, true

	case events.SLAEventPayload:
		kind := "SLA warning"
		if event.Type == events.EventSLABreach {
			kind = "SLA breach"
		}
		return emailMessage{
			To:      recipients(payload.RecipientEmails...),
			Subject: fmt.Sprintf("[%s] %s: %s", event.TicketCode, kind, payload.Title),
			Body: fmt.Sprintf("%s on ticket %s.\nDue at %s.\n\n%s",
				kind, event.TicketCode, payload.DueAt.Format("2006-01-02 15:04 MST"), link),
		}, true
	}
	return emailMessage{}, false
}

func recipients(emails ...string) []string {
	var out []string
	seen := map[string]bool{}
	for _, email := range emails {
		email = strings.TrimSpace(email)
		if email == "" || seen[email] {
			continue
		}
		seen[email] = true
		out = append(out, email)
	}
	return out
}
