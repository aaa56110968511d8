package supervisor

import (
	"context"
	"log"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"

	"github.com/mohammad-safakhou/chimera/internal/capability"
)

var (
	supervisorMetricsOnce sync.Once

	invocationsTotal  otelmetric.Int64Counter
	invocationSeconds otelmetric.Float64Histogram
	mergedFields      otelmetric.Int64Counter
	blockedWrites     otelmetric.Int64Counter
	accessBytes       otelmetric.Int64Histogram
	passesTotal       otelmetric.Int64Counter
)

func initSupervisorMetrics() {
	meter := otel.Meter("chimera/supervisor")
	var err error
	if invocationsTotal, err = meter.Int64Counter("supervisor_agent_invocations_total",
		otelmetric.WithDescription("Agent invocations by outcome")); err != nil {
		log.Printf("supervisor metrics init: invocations: %v", err)
	}
	if invocationSeconds, err = meter.Float64Histogram("supervisor_agent_duration_seconds",
		otelmetric.WithUnit("s"),
		otelmetric.WithDescription("Agent invocation latency")); err != nil {
		log.Printf("supervisor metrics init: duration: %v", err)
	}
	if mergedFields, err = meter.Int64Counter("supervisor_merged_fields_total",
		otelmetric.WithDescription("Fields applied by the merge engine")); err != nil {
		log.Printf("supervisor metrics init: merged: %v", err)
	}
	if blockedWrites, err = meter.Int64Counter("supervisor_blocked_writes_total",
		otelmetric.WithDescription("Unauthorized field writes dropped by the merge engine")); err != nil {
		log.Printf("supervisor metrics init: blocked: %v", err)
	}
	if accessBytes, err = meter.Int64Histogram("supervisor_view_bytes",
		otelmetric.WithUnit("By"),
		otelmetric.WithDescription("Serialized size of filtered agent views")); err != nil {
		log.Printf("supervisor metrics init: view bytes: %v", err)
	}
	if passesTotal, err = meter.Int64Counter("supervisor_passes_total",
		otelmetric.WithDescription("Supervisor passes by execution mode")); err != nil {
		log.Printf("supervisor metrics init: passes: %v", err)
	}
}

func recordInvocation(ctx context.Context, agent capability.Agent, elapsed time.Duration, ok bool) {
	supervisorMetricsOnce.Do(initSupervisorMetrics)
	attrs := otelmetric.WithAttributes(attribute.String("agent", string(agent)), attribute.Bool("ok", ok))
	if invocationsTotal != nil {
		invocationsTotal.Add(ctx, 1, attrs)
	}
	if invocationSeconds != nil {
		invocationSeconds.Record(ctx, elapsed.Seconds(), attrs)
	}
}

func recordMerge(ctx context.Context, agent capability.Agent, merged, blocked int) {
	supervisorMetricsOnce.Do(initSupervisorMetrics)
	attrs := otelmetric.WithAttributes(attribute.String("agent", string(agent)))
	if mergedFields != nil && merged > 0 {
		mergedFields.Add(ctx, int64(merged), attrs)
	}
	if blockedWrites != nil && blocked > 0 {
		blockedWrites.Add(ctx, int64(blocked), attrs)
	}
}

func recordAccess(ctx context.Context, agent capability.Agent, size int) {
	supervisorMetricsOnce.Do(initSupervisorMetrics)
	if accessBytes != nil {
		accessBytes.Record(ctx, int64(size), otelmetric.WithAttributes(attribute.String("agent", string(agent))))
	}
}

func recordPass(ctx context.Context, mode Mode) {
	supervisorMetricsOnce.Do(initSupervisorMetrics)
	if passesTotal != nil {
		passesTotal.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("mode", string(mode))))
	}
}
