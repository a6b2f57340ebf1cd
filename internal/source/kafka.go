package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/catalog-indexer/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/catalog-indexer/pkg/kafka"
)

// MessagePoller is the subset of kafka.Consumer used by KafkaSource.
type MessagePoller interface {
	Poll(ctx context.Context, idle time.Duration) (kafka.Message, error)
	Commit(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaSource drains product records from a Kafka topic. The topic is
// considered exhausted once no message arrives within the idle timeout.
// Offsets are only committed through Commit, after the build has been
// exported.
type KafkaSource struct {
	poller MessagePoller
	idle   time.Duration
	count  int
	// highest fetched offset per partition, values dropped
	latest map[partitionKey]kafka.Message
}

type partitionKey struct {
	topic     string
	partition int
}

// NewKafkaSource creates a KafkaSource over poller.
func NewKafkaSource(poller MessagePoller, idle time.Duration) *KafkaSource {
	return &KafkaSource{poller: poller, idle: idle, latest: make(map[partitionKey]kafka.Message)}
}

// Next returns the next message value. Line is the 1-based message count.
func (s *KafkaSource) Next(ctx context.Context) (Raw, error) {
	msg, err := s.poller.Poll(ctx, s.idle)
	if err != nil {
		if errors.Is(err, io.EOF) || ctx.Err() != nil {
			return Raw{}, err
		}
		return Raw{}, fmt.Errorf("%w: fetching kafka message: %v", apperrors.ErrSourceUnreadable, err)
	}
	s.count++
	key := partitionKey{topic: msg.Topic, partition: msg.Partition}
	if prev, ok := s.latest[key]; !ok || msg.Offset > prev.Offset {
		mark := msg
		mark.Key, mark.Value, mark.Headers = nil, nil, nil
		s.latest[key] = mark
	}
	return Raw{Line: s.count, Data: msg.Value}, nil
}

// Commit acknowledges every message fetched so far by committing the
// highest offset seen on each partition.
func (s *KafkaSource) Commit(ctx context.Context) error {
	if len(s.latest) == 0 {
		return nil
	}
	marks := make([]kafka.Message, 0, len(s.latest))
	for _, msg := range s.latest {
		marks = append(marks, msg)
	}
	if err := s.poller.Commit(ctx, marks...); err != nil {
		return fmt.Errorf("committing offsets on %d partitions: %w", len(marks), err)
	}
	clear(s.latest)
	return nil
}
