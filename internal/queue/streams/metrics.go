package streams

import (
	"context"
	"log"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"
)

var (
	streamMetricsOnce sync.Once
	publishTotal      otelmetric.Int64Counter
)

func initStreamMetrics() {
	meter := otel.Meter("chimera/queue/streams")
	var err error
	publishTotal, err = meter.Int64Counter(
		"audit_stream_publish_total",
		otelmetric.WithDescription("Audit envelopes published to Redis Streams"),
	)
	if err != nil {
		log.Printf("queue streams metrics init: audit_stream_publish_total: %v", err)
	}
}

func recordPublish(ctx context.Context, eventType string, ok bool) {
	streamMetricsOnce.Do(initStreamMetrics)
	if publishTotal == nil {
		return
	}
	publishTotal.Add(ctx, 1, otelmetric.WithAttributes(
		attribute.String("event_type", eventType),
		attribute.Bool("ok", ok),
	))
}
