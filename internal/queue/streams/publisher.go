package streams

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Publisher appends schema-checked envelopes to a Redis stream.
type Publisher struct {
	client   *redis.Client
	registry *SchemaRegistry
	maxLen   int64
}

// NewPublisher creates a Publisher. maxLen > 0 trims the stream approximately.
func NewPublisher(client *redis.Client, registry *SchemaRegistry, maxLen int64) *Publisher {
	return &Publisher{client: client, registry: registry, maxLen: maxLen}
}

// Publish validates the envelope and appends it to the given Redis stream.
func (p *Publisher) Publish(ctx context.Context, stream string, envelope Envelope) (string, error) {
	if stream == "" {
		return "", fmt.Errorf("stream name is required")
	}
	if envelope.EventID == "" {
		envelope.EventID = uuid.NewString()
	}
	if err := envelope.ValidateBasic(); err != nil {
		return "", err
	}
	if p.registry != nil {
		if err := p.registry.Validate(envelope.EventType, envelope.PayloadVersion, envelope.Data); err != nil {
			recordPublish(ctx, envelope.EventType, false)
			return "", err
		}
	}

	raw, err := json.Marshal(envelope)
	if err != nil {
		return "", err
	}
	args := &redis.XAddArgs{
		Stream: stream,
		Values: map[string]interface{}{"envelope": raw},
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}
	id, err := p.client.XAdd(ctx, args).Result()
	if err != nil {
		recordPublish(ctx, envelope.EventType, false)
		return "", fmt.Errorf("xadd: %w", err)
	}
	recordPublish(ctx, envelope.EventType, true)
	return id, nil
}

// PublishPayload marshals payload into a v1 envelope and publishes it.
func (p *Publisher) PublishPayload(ctx context.Context, stream, eventType, sessionID, checksum string, at time.Time, payload interface{}) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	return p.Publish(ctx, stream, Envelope{
		EventType:      eventType,
		OccurredAt:     at.UTC(),
		SessionID:      sessionID,
		SchemaChecksum: checksum,
		PayloadVersion: "v1",
		Data:           data,
	})
}

// Message is a stream entry read back by Recent.
type Message struct {
	ID       string
	Envelope Envelope
}

// Recent returns up to n newest envelopes, newest first. Entries that fail
// to decode are skipped.
func Recent(ctx context.Context, client *redis.Client, stream string, n int64) ([]Message, error) {
	if n <= 0 {
		n = 50
	}
	entries, err := client.XRevRangeN(ctx, stream, "+", "-", n).Result()
	if err != nil {
		return nil, fmt.Errorf("xrevrange: %w", err)
	}
	out := make([]Message, 0, len(entries))
	for _, entry := range entries {
		env, err := DecodeEnvelope(entry.Values["envelope"])
		if err != nil {
			continue
		}
		out = append(out, Message{ID: entry.ID, Envelope: env})
	}
	return out, nil
}
