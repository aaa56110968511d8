package audit

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/redis/go-redis/v9"

	"github.com/mohammad-safakhou/chimera/internal/queue/streams"
)

// StreamSink publishes records to a Redis stream as schema-checked envelopes.
type StreamSink struct {
	publisher *streams.Publisher
	stream    string
	logger    *log.Logger
}

// NewStreamSink builds a sink over client. The audit schemas are registered so
// every payload is validated before XADD.
func NewStreamSink(client *redis.Client, stream string, maxLen int64) (*StreamSink, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if stream == "" {
		return nil, fmt.Errorf("stream name is required")
	}
	registry, err := streams.NewSchemaRegistry()
	if err != nil {
		return nil, fmt.Errorf("audit schema registry: %w", err)
	}
	return &StreamSink{
		publisher: streams.NewPublisher(client, registry, maxLen),
		stream:    stream,
		logger:    log.New(os.Stdout, "[AUDIT] ", log.LstdFlags),
	}, nil
}

func (s *StreamSink) Record(ctx context.Context, rec Record) {
	rec = rec.stamped()
	if _, err := s.publisher.PublishPayload(ctx, s.stream, rec.EventType(), rec.SessionID, rec.Checksum, rec.At, rec); err != nil {
		s.logger.Printf("publish %s for session %s: %v", rec.EventType(), rec.SessionID, err)
	}
}

// Tail reads the newest n records back from the stream, newest first.
func Tail(ctx context.Context, client *redis.Client, stream string, n int64) ([]streams.Message, error) {
	return streams.Recent(ctx, client, stream, n)
}
