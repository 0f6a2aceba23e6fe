// Package transport moves command lines and responses over Kafka.
// Commands are partitioned by user id so that each worker sees a given
// user's commands in order; responses are published fire-and-forget.
package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// Handler processes one command line and returns its response text.
type Handler interface {
	Handle(ctx context.Context, line string) string
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, line string) string

func (f HandlerFunc) Handle(ctx context.Context, line string) string {
	return f(ctx, line)
}

// Publisher writes messages keyed by user id, so all of one user's
// traffic lands on one partition.
type Publisher struct {
	writer *kafka.Writer
	logger *slog.Logger
}

// NewPublisher creates a Publisher for topic.
func NewPublisher(brokers []string, topic string, logger *slog.Logger) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			AllowAutoTopicCreation: true,
			RequiredAcks:           kafka.RequireOne,
			BatchTimeout:           50 * time.Millisecond,
		},
		logger: logger,
	}
}

// Publish writes one message keyed by userID.
func (p *Publisher) Publish(ctx context.Context, userID, value string) error {
	err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(userID),
		Value: []byte(value),
	})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", p.writer.Topic, err)
	}
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// Consumer reads command lines from the command topic, hands each to
// the handler, and publishes the single response. A response publish
// failure is logged and dropped rather than retried: the command has
// already executed, and re-running it would double its effect.
type Consumer struct {
	reader    *kafka.Reader
	handler   Handler
	responses *Publisher
	logger    *slog.Logger
}

// NewConsumer creates a Consumer in the given consumer group. A nil
// responses publisher makes the consumer read-only, for tailing a
// topic without producing anything.
func NewConsumer(brokers []string, topic, groupID string, handler Handler, responses *Publisher, logger *slog.Logger) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			Topic:    topic,
			GroupID:  groupID,
			MinBytes: 1e3,
			MaxBytes: 1e6,
			MaxWait:  500 * time.Millisecond,
		}),
		handler:   handler,
		responses: responses,
		logger:    logger,
	}
}

// Run consumes until ctx is cancelled. Every consumed message produces
// exactly one handler call and one response publish attempt.
func (c *Consumer) Run(ctx context.Context) error {
	defer c.reader.Close()
	for {
		m, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("read command: %w", err)
		}

		resp := c.handler.Handle(ctx, string(m.Value))
		if c.responses == nil {
			continue
		}
		if err := c.responses.Publish(ctx, string(m.Key), resp); err != nil {
			c.logger.Error("publish response",
				slog.String("user", string(m.Key)),
				slog.String("error", err.Error()),
			)
		}
	}
}
