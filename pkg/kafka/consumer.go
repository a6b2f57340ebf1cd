// Package kafka provides Kafka producer and consumer clients backed by
// segmentio/kafka-go. The producer serialises events as JSON, while the
// consumer hands raw messages to the caller and commits them on request.
package kafka

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/catalog-indexer/pkg/config"
	"github.com/segmentio/kafka-go"
)

// Message is a fetched Kafka message.
type Message = kafka.Message

// Consumer reads messages from a Kafka topic within a consumer group.
type Consumer struct {
	reader *kafka.Reader
	logger *slog.Logger
}

// NewConsumer creates a Consumer for the given topic.
func NewConsumer(cfg config.KafkaConfig, topic string) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       topic,
		GroupID:     cfg.ConsumerGroup,
		MinBytes:    1e3,
		MaxBytes:    10e6,
		StartOffset: kafka.FirstOffset,
	})

	return &Consumer{
		reader: r,
		logger: slog.Default().With("component", "kafka-consumer", "topic", topic),
	}
}

// Poll fetches the next message without committing it. It returns io.EOF
// when no message arrives within idle, and ctx.Err() if ctx ends first.
func (c *Consumer) Poll(ctx context.Context, idle time.Duration) (Message, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, idle)
	defer cancel()
	msg, err := c.reader.FetchMessage(fetchCtx)
	if err != nil {
		if ctx.Err() != nil {
			return Message{}, ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) {
			c.logger.Debug("no message within idle timeout", "idle", idle)
			return Message{}, io.EOF
		}
		return Message{}, err
	}
	c.logger.Debug("message received",
		"partition", msg.Partition,
		"offset", msg.Offset,
		"key", string(msg.Key),
		"value_size", len(msg.Value),
	)
	return msg, nil
}

// Commit marks msgs as processed for the consumer group.
func (c *Consumer) Commit(ctx context.Context, msgs ...Message) error {
	if len(msgs) == 0 {
		return nil
	}
	if err := c.reader.CommitMessages(ctx, msgs...); err != nil {
		c.logger.Error("failed to commit messages", "count", len(msgs), "error", err)
		return err
	}
	return nil
}

// Close closes the underlying Kafka reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}
