package kafka

import (
	"context"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
)

// Producer publishes messages whose Topic is set per message. Messages with
// the same key land on the same partition.
type Producer struct {
	w *kafka.Writer
}

func NewProducer(brokers []string) *Producer {
	return &Producer{w: &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}}
}

// Publish writes msgs synchronously. On partial failure the returned slice
// holds one error per message (nil for delivered ones).
func (p *Producer) Publish(ctx context.Context, msgs ...Message) ([]error, error) {
	err := p.w.WriteMessages(ctx, msgs...)
	if err == nil {
		return nil, nil
	}
	var we kafka.WriteErrors
	if errors.As(err, &we) {
		return []error(we), err
	}
	return nil, err
}

func (p *Producer) Close() error { return p.w.Close() }
