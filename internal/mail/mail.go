// Package mail is the outbound mail sender boundary and the worker that
// drains the reserved folivafy-mail system collection (spec §6). The
// sender itself is a thin net/smtp wrapper: no pack example repo carries
// an SMTP client library, so this one boundary is deliberately built on
// the standard library rather than a third-party mailer.
package mail

import (
	"context"
	"fmt"
	"net/smtp"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/goccy/go-json"

	"github.com/foliva/folivafy/internal/apierr"
	"github.com/foliva/folivafy/internal/collection"
	"github.com/foliva/folivafy/internal/events"
	"github.com/foliva/folivafy/internal/logger"
	"github.com/foliva/folivafy/internal/query"
)

// Message is the payload shape of one document in the folivafy-mail
// collection: an outbound message plus its delivery state.
type Message struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	State   string `json:"state"`
}

// The three states a Message's document moves through. The worker records
// Sent or Failed by replacing the document (which appends a category-1
// event) and by posting a lifecycle-marker event.
const (
	StatePending = "Pending"
	StateSent    = "Sent"
	StateFailed  = "Failed"
)

// Sender delivers one message over SMTP.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPSender sends mail through a configured SMTP relay.
type SMTPSender struct {
	host, port, from string
}

// NewSMTPSender builds a Sender for the given relay.
func NewSMTPSender(host, port, from string) *SMTPSender {
	return &SMTPSender{host: host, port: port, from: from}
}

// Send delivers msg via smtp.SendMail using the server's default anonymous
// auth; relays that require authentication are out of scope for this
// sender, matching the minimal configuration surface of spec §6.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	addr := fmt.Sprintf("%s:%s", s.host, s.port)
	body := []byte(fmt.Sprintf("To: %s\r\nSubject: %s\r\n\r\n%s\r\n", msg.To, msg.Subject, msg.Body))
	return smtp.SendMail(addr, nil, s.from, []string{msg.To}, body)
}

// Worker periodically drains the folivafy-mail collection, sending every
// Pending message and recording the outcome as a category-1 event.
type Worker struct {
	facade *collection.Façade
	sender Sender
	system collection.Principal
}

// NewWorker builds a Worker. system is the principal the worker acts as
// when posting events back to the mail collection — it must carry the
// folivafy-mail collection's admin role, so it can read every pending
// message regardless of owner, and its editor role, so it can record each
// outcome.
func NewWorker(facade *collection.Façade, sender Sender, system collection.Principal) *Worker {
	return &Worker{facade: facade, sender: sender, system: system}
}

// Run schedules the drain to run every intervalMinutes via robfig/cron,
// blocking until ctx is canceled.
func (w *Worker) Run(ctx context.Context, intervalMinutes int) {
	c := cron.New()
	spec := fmt.Sprintf("@every %dm", intervalMinutes)
	_, err := c.AddFunc(spec, func() { w.drain(ctx) })
	if err != nil {
		logger.FromContext(ctx).WithError(err).Error("mail: invalid cron spec")
		return
	}
	c.Start()
	defer c.Stop()
	<-ctx.Done()
}

func (w *Worker) drain(ctx context.Context) {
	rlog := logger.FromContext(ctx)
	result, err := w.facade.Search(ctx, w.system, collection.SystemMailCollection, query.Params{
		Filter: query.Filter{F: "state", O: query.OpEq, V: StatePending},
		Limit:  query.MaxLimit,
	})
	if err != nil {
		rlog.WithError(err).Error("mail: list pending messages")
		return
	}

	for _, item := range result.Items {
		id, err := uuid.Parse(item.ID)
		if err != nil {
			continue
		}
		doc, _, err := w.facade.GetDocument(ctx, w.system, collection.SystemMailCollection, id)
		if err != nil {
			rlog.WithError(err).Warnf("mail: read message %s", id)
			continue
		}
		var msg Message
		if err := json.Unmarshal(doc.Payload, &msg); err != nil {
			rlog.WithError(err).Warnf("mail: decode message %s", id)
			continue
		}

		state := StateSent
		sendErr := w.sender.Send(ctx, msg)
		if sendErr != nil {
			state = StateFailed
			rlog.WithError(sendErr).Warnf("mail: send message %s", id)
		}
		msg.State = state
		payload, _ := json.Marshal(msg)
		if err := w.facade.ReplaceDocument(ctx, w.system, collection.SystemMailCollection, id, payload); err != nil {
			if apiErr, ok := apierr.As(err); !ok || apiErr.Kind != apierr.NotFound {
				rlog.WithError(err).Warnf("mail: record outcome for %s", id)
			}
		}
		_, err = w.facade.PostEvent(ctx, w.system, collection.SystemMailCollection, id, events.CategoryLifecycleMarker, []byte(`{"state":"`+state+`"}`))
		if err != nil {
			rlog.WithError(err).Warnf("mail: record lifecycle event for %s", id)
		}
	}
}
