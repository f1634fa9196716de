// Package notify is an outbox for document mutations, drained by a bounded
// pool of workers that publish to Kafka. It is grounded on the teacher's
// own "_notification_" table and SKIP LOCKED polling pattern
// (core/backend/notifications.go), generalized from the teacher's
// in-process callback dispatch to an external Kafka publish. This is
// ambient infrastructure, not a named spec component: nothing in spec.md
// requires it, but every mutation-heavy service in the corpus carries some
// form of outbox, so the façade's insert/replace/event paths get one too.
package notify

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/goccy/go-json"

	"github.com/foliva/folivafy/internal/logger"
	"github.com/foliva/folivafy/internal/metrics"
	"github.com/foliva/folivafy/internal/store"
)

// Event is one outbox row describing a document mutation.
type Event struct {
	Serial         int64
	Collection     string
	DocumentID     uuid.UUID
	Operation      string
	Payload        json.RawMessage
	RequestContext json.RawMessage
	CreatedAt      time.Time
}

// wireEvent is what actually gets published to Kafka.
type wireEvent struct {
	Collection     string          `json:"collection"`
	DocumentID     uuid.UUID       `json:"documentId"`
	Operation      string          `json:"operation"`
	Payload        json.RawMessage `json:"payload"`
	RequestContext json.RawMessage `json:"requestContext,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
}

// Mutation operations an outbox entry can record.
const (
	OpInsert  = "insert"
	OpReplace = "replace"
	OpEvent   = "event"
)

// Outbox owns the "_outbox_" table and the bounded worker pool that drains
// it into Kafka.
type Outbox struct {
	db       *store.DB
	writer   *kafka.Writer
	workers  int
}

// New builds an Outbox publishing to topic on the given Kafka brokers.
func New(db *store.DB, brokers []string, topic string, workers int) *Outbox {
	return &Outbox{
		db: db,
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.LeastBytes{},
		},
		workers: workers,
	}
}

// EnsureTable creates the outbox table if it does not exist.
func (o *Outbox) EnsureTable(ctx context.Context) error {
	_, err := o.db.ExecContext(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s._outbox_ (
		serial bigserial PRIMARY KEY,
		collection varchar(32) NOT NULL,
		document_id uuid NOT NULL,
		operation varchar(20) NOT NULL,
		payload jsonb NOT NULL,
		request_context jsonb NOT NULL DEFAULT '{}',
		created_at timestamptz NOT NULL DEFAULT now(),
		attempts_left integer NOT NULL DEFAULT 5
	);`, o.db.Schema))
	return err
}

// Append records one outbox entry for a mutation that has already
// committed. requestContext is the producing request's serialized logger
// context (logger.Serialize) — the request id and actor that drove the
// mutation, carried along so a Kafka consumer can correlate a downstream
// effect back to who caused it without a distributed tracing system. It is
// best-effort: a failure here is logged by the caller, not treated as a
// reason to fail the mutation itself, since the outbox is an optimization
// (asynchronous notification) rather than part of the core's correctness
// contract.
func (o *Outbox) Append(ctx context.Context, collection string, documentID uuid.UUID, operation string, payload, requestContext json.RawMessage) error {
	_, err := o.db.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s._outbox_(collection, document_id, operation, payload, request_context) VALUES($1,$2,$3,$4,$5);`, o.db.Schema),
		collection, documentID, operation, []byte(payload), []byte(requestContext))
	return err
}

// Run drains the outbox continuously until ctx is canceled, publishing each
// claimed row to Kafka with a bounded pool of workers.
func (o *Outbox) Run(ctx context.Context, pollInterval time.Duration) {
	rlog := logger.FromContext(ctx)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := o.Backlog(ctx); err != nil {
				rlog.WithError(err).Warn("notify: count backlog")
			} else {
				metrics.SetOutboxBacklog(n)
			}
			if err := o.drainOnce(ctx); err != nil {
				rlog.WithError(err).Warn("notify: drain outbox")
			}
		}
	}
}

// Backlog reports how many outbox rows still have publish attempts left.
func (o *Outbox) Backlog(ctx context.Context) (int, error) {
	var n int
	err := o.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT count(*) FROM %s._outbox_ WHERE attempts_left > 0;`, o.db.Schema),
	).Scan(&n)
	return n, err
}

// drainOnce runs o.workers goroutines, each repeatedly claiming and
// publishing one outbox row at a time with SKIP LOCKED until the outbox is
// empty, so concurrent workers never block on the same row.
func (o *Outbox) drainOnce(ctx context.Context) error {
	var wg sync.WaitGroup
	errs := make(chan error, o.workers)

	for i := 0; i < o.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				claimed, err := o.publishClaimed(ctx)
				if err != nil {
					errs <- err
					return
				}
				if !claimed {
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		return err
	}
	return nil
}

// publishClaimed claims and publishes at most one outbox row. It reports
// claimed=false when the outbox has nothing left for it to take.
func (o *Outbox) publishClaimed(ctx context.Context) (bool, error) {
	tx, err := o.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	var e Event
	var payload, requestContext []byte
	err = tx.QueryRowContext(ctx, fmt.Sprintf(`SELECT serial, collection, document_id, operation, payload, request_context, created_at
		FROM %s._outbox_
		WHERE attempts_left > 0
		ORDER BY serial
		FOR UPDATE SKIP LOCKED
		LIMIT 1;`, o.db.Schema)).Scan(&e.Serial, &e.Collection, &e.DocumentID, &e.Operation, &payload, &requestContext, &e.CreatedAt)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	e.Payload = payload
	e.RequestContext = requestContext

	body, err := json.Marshal(wireEvent{
		Collection:     e.Collection,
		DocumentID:     e.DocumentID,
		Operation:      e.Operation,
		Payload:        e.Payload,
		RequestContext: e.RequestContext,
		CreatedAt:      e.CreatedAt,
	})
	if err != nil {
		return false, err
	}

	publishErr := o.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(e.DocumentID.String()),
		Value: body,
	})
	if publishErr != nil {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(`UPDATE %s._outbox_ SET attempts_left = attempts_left - 1 WHERE serial=$1;`, o.db.Schema), e.Serial); err != nil {
			return false, err
		}
		return true, tx.Commit()
	}

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s._outbox_ WHERE serial=$1;`, o.db.Schema), e.Serial); err != nil {
		return false, err
	}
	return true, tx.Commit()
}
