package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/jmehdipour/utility-billing/internal/kafka"
	"github.com/jmehdipour/utility-billing/internal/metrics"
	"github.com/jmehdipour/utility-billing/internal/model"
	"github.com/jmehdipour/utility-billing/internal/repository"
)

const channelEmail = "email"

type Consumer interface {
	Fetch(ctx context.Context) (kafka.Message, error)
	Commit(ctx context.Context, m kafka.Message) error
}

type Sender interface {
	Send(ctx context.Context, msg model.Message) error
}

type CustomerLookup interface {
	GetCustomer(ctx context.Context, id string) (*model.Customer, error)
}

// NotificationSink persists a batch of delivery outcomes atomically.
type NotificationSink interface {
	Save(ctx context.Context, rows []model.Notification) error
}

// Notifier:
// - fetches lifecycle envelopes from Kafka,
// - tells the customer through the provider dispatcher,
// - batches the delivery outcomes into the notifications table.
type Notifier struct {
	Consumer  Consumer
	Customers CustomerLookup
	Sender    Sender
	Sink      NotificationSink
	Log       *zap.Logger

	Workers   int           // goroutines processing messages
	BatchSize int           // max buffered rows per flush
	BatchWait time.Duration // max time to wait before flush
}

func NewNotifier(consumer Consumer, customers CustomerLookup, sender Sender, sink NotificationSink, log *zap.Logger) *Notifier {
	return &Notifier{
		Consumer:  consumer,
		Customers: customers,
		Sender:    sender,
		Sink:      sink,
		Log:       log,
		Workers:   8,
		BatchSize: 100,
		BatchWait: 300 * time.Millisecond,
	}
}

// Run blocks until ctx is cancelled, then flushes what is buffered.
func (w *Notifier) Run(ctx context.Context) error {
	if w.Workers <= 0 {
		w.Workers = 8
	}
	if w.BatchSize <= 0 {
		w.BatchSize = 100
	}
	if w.BatchWait <= 0 {
		w.BatchWait = 300 * time.Millisecond
	}
	if w.Log == nil {
		w.Log = zap.NewNop()
	}

	updates := make(chan outcome, w.BatchSize*2)
	msgCh := make(chan kafka.Message, w.Workers*2)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		w.runBatchWriter(ctx, updates)
	}()

	// Fetcher goroutine
	go func() {
		defer close(msgCh)
		for {
			m, err := w.Consumer.Fetch(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				w.Log.Warn("kafka fetch failed", zap.Error(err))
				select {
				case <-ctx.Done():
					return
				case <-time.After(200 * time.Millisecond):
				}
				continue
			}
			select {
			case msgCh <- m:
			case <-ctx.Done():
				return
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < w.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for m := range msgCh {
				if ctx.Err() != nil {
					return
				}
				w.processOne(ctx, m, updates)
			}
		}()
	}

	wg.Wait()
	close(updates)
	<-writerDone
	return nil
}

// outcome carries a fetched message to the batch writer. Row is nil when
// the message needs no notification row; the offset is still committed
// with the batch it lands in.
type outcome struct {
	msg kafka.Message
	row *model.Notification
}

func (w *Notifier) processOne(ctx context.Context, m kafka.Message, out chan<- outcome) {
	o := outcome{msg: m}
	defer func() {
		select {
		case out <- o:
		case <-ctx.Done():
		}
	}()

	var env model.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil || env.ID == "" {
		metrics.NotificationsTotal.WithLabelValues("skipped").Inc()
		w.Log.Warn("bad envelope, skipping", zap.Int64("offset", m.Offset), zap.Error(err))
		return
	}

	row := model.Notification{
		EventID:    env.ID,
		CustomerID: env.Request.CustomerID,
		RequestID:  env.Request.ID,
		Channel:    channelEmail,
		Status:     model.NotificationFailed,
	}

	c, err := w.Customers.GetCustomer(ctx, env.Request.CustomerID)
	switch {
	case err != nil:
		w.Log.Error("customer lookup failed", zap.String("event_id", env.ID), zap.Error(err))
	case c == nil:
		metrics.NotificationsTotal.WithLabelValues("skipped").Inc()
		w.Log.Warn("event for unknown customer", zap.String("event_id", env.ID), zap.String("customer_id", env.Request.CustomerID))
		return
	default:
		if serr := w.Sender.Send(ctx, MessageFor(env, *c)); serr != nil {
			w.Log.Warn("notification send failed", zap.String("event_id", env.ID), zap.Error(serr))
		} else {
			row.Status = model.NotificationSent
		}
	}

	metrics.NotificationsTotal.WithLabelValues(string(row.Status)).Inc()
	o.row = &row
}

// MessageFor renders the customer-facing text of a lifecycle event.
func MessageFor(env model.Envelope, c model.Customer) model.Message {
	r := env.Request
	msg := model.Message{To: c.Email}
	if msg.To == "" {
		msg.To = c.PhoneNumber
	}

	switch env.Type {
	case model.EventRequestSubmitted:
		msg.Subject = "Service request received"
		msg.Text = fmt.Sprintf("Hi %s, your %s %s request %s was received and is pending review.",
			c.FirstName, r.UtilityType, r.Action, r.ID)
	case model.EventRequestProvisioningDeferred:
		msg.Subject = "Service request on hold"
		msg.Text = fmt.Sprintf("Hi %s, request %s was approved but is waiting for a service account to be set up.",
			c.FirstName, r.ID)
	default:
		msg.Subject = fmt.Sprintf("Service request %s", r.Status)
		msg.Text = fmt.Sprintf("Hi %s, your %s %s request %s was %s.",
			c.FirstName, r.UtilityType, r.Action, r.ID, r.Status)
		if env.MeterID != "" {
			msg.Text += fmt.Sprintf(" Meter %s is now active.", env.MeterID)
		}
	}
	return msg
}

// runBatchWriter does size/time-based flush of notification rows. Offsets
// are committed only once the batch holding their rows is saved, so a failed
// save leaves the messages to be redelivered.
func (w *Notifier) runBatchWriter(ctx context.Context, in <-chan outcome) {
	tick := time.NewTicker(w.BatchWait)
	defer tick.Stop()

	var (
		pending = make([]model.Notification, 0, w.BatchSize)
		msgs    = make([]kafka.Message, 0, w.BatchSize)
	)

	commit := func(ctx context.Context) {
		for _, m := range msgs {
			// at-least-once; event_id makes the insert idempotent
			if err := w.Consumer.Commit(ctx, m); err != nil {
				w.Log.Warn("kafka commit failed", zap.Int64("offset", m.Offset), zap.Error(err))
			}
		}
		msgs = msgs[:0]
	}

	flush := func(ctx context.Context) {
		if len(msgs) == 0 {
			return
		}
		if len(pending) > 0 {
			if err := w.Sink.Save(ctx, pending); err != nil {
				w.Log.Error("notification batch save failed", zap.Int("rows", len(pending)), zap.Error(err))
				if len(pending) < 4*w.BatchSize {
					return // retry on next flush
				}
				w.Log.Error("dropping notification rows", zap.Int("rows", len(pending)))
			} else {
				w.Log.Debug("notifications flushed", zap.Int("rows", len(pending)))
			}
		}
		pending = pending[:0]
		commit(ctx)
	}

	for {
		select {
		case o, ok := <-in:
			if !ok {
				// ctx may already be done; give the last flush its own deadline
				fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
				flush(fctx)
				cancel()
				return
			}
			msgs = append(msgs, o.msg)
			if o.row != nil {
				pending = append(pending, *o.row)
			}
			if len(pending) >= w.BatchSize || len(msgs) >= 4*w.BatchSize {
				flush(ctx)
			}

		case <-tick.C:
			flush(ctx)
		}
	}
}

// SQLSink writes notification batches in one MySQL transaction.
type SQLSink struct {
	DB   *sqlx.DB
	Repo repository.NotificationsRepository
}

func (s SQLSink) Save(ctx context.Context, rows []model.Notification) error {
	tx, err := s.DB.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.Repo.InsertBatch(ctx, tx, rows); err != nil {
		return err
	}
	return tx.Commit()
}
