package audit_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	tcRedis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/mohammad-safakhou/chimera/internal/audit"
)

func TestStreamSinkRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()

	redisC, err := tcRedis.RunContainer(ctx, testcontainers.WithWaitStrategy(wait.ForListeningPort("6379/tcp")))
	if err != nil {
		t.Fatalf("redis container: %v", err)
	}
	defer func() { _ = redisC.Terminate(ctx) }()

	host, err := redisC.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := redisC.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: fmt.Sprintf("%s:%s", host, port.Port())})
	defer func() { _ = client.Close() }()

	sink, err := audit.NewStreamSink(client, "chimera:audit:test", 100)
	if err != nil {
		t.Fatalf("new stream sink: %v", err)
	}
	sink.Record(ctx, audit.Record{
		Kind:      audit.KindMerge,
		SessionID: "s-1",
		Agent:     "stylist",
		Checksum:  "abc",
		Merge: &audit.Merge{
			Decisions: []audit.Decision{{Field: "sanitized_output", Allowed: true}},
			Merged:    1,
		},
	})
	// Missing agent fails schema validation and is dropped.
	sink.Record(ctx, audit.Record{Kind: audit.KindAccess, SessionID: "s-1", Access: &audit.Access{}})

	msgs, err := audit.Tail(ctx, client, "chimera:audit:test", 10)
	if err != nil {
		t.Fatalf("tail: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected 1 stream entry, got %d", len(msgs))
	}
	env := msgs[0].Envelope
	if env.EventType != "audit.merge" || env.SessionID != "s-1" || env.SchemaChecksum != "abc" {
		t.Fatalf("unexpected envelope: %+v", env)
	}
	var rec audit.Record
	if err := json.Unmarshal(env.Data, &rec); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	if rec.Merge == nil || rec.Merge.Merged != 1 {
		t.Fatalf("unexpected record: %+v", rec)
	}
}
