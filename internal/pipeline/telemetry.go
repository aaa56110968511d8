package pipeline

import (
	"context"
	"log"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"

	"github.com/mohammad-safakhou/chimera/internal/state"
)

// TurnTracker keeps in-process counters of handled turns.
type TurnTracker struct {
	mu        sync.RWMutex
	logger    *log.Logger
	total     int64
	failed    int64
	totalTime time.Duration
	intents   map[string]int64
}

// TurnSnapshot is a point-in-time copy of the tracker counters.
type TurnSnapshot struct {
	TotalTurns        int64            `json:"total_turns"`
	SuccessfulTurns   int64            `json:"successful_turns"`
	FailedTurns       int64            `json:"failed_turns"`
	AverageTurnMillis int64            `json:"average_turn_ms"`
	Intents           map[string]int64 `json:"intents"`
}

func NewTurnTracker(logger *log.Logger) *TurnTracker {
	if logger == nil {
		logger = log.New(log.Writer(), "[TELEMETRY] ", log.LstdFlags)
	}
	return &TurnTracker{logger: logger, intents: make(map[string]int64)}
}

// Record adds one finished turn.
func (t *TurnTracker) Record(elapsed time.Duration, ok bool, intent state.Intent) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.total++
	t.totalTime += elapsed
	if !ok {
		t.failed++
		t.logger.Printf("turn failed after %v", elapsed)
		return
	}
	name := string(intent)
	if name == "" {
		name = "unset"
	}
	t.intents[name]++
}

func (t *TurnTracker) Snapshot() TurnSnapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s := TurnSnapshot{
		TotalTurns:      t.total,
		SuccessfulTurns: t.total - t.failed,
		FailedTurns:     t.failed,
		Intents:         make(map[string]int64, len(t.intents)),
	}
	if t.total > 0 {
		s.AverageTurnMillis = (t.totalTime / time.Duration(t.total)).Milliseconds()
	}
	for k, v := range t.intents {
		s.Intents[k] = v
	}
	return s
}

var (
	pipelineMetricsOnce sync.Once

	turnsTotal  otelmetric.Int64Counter
	turnSeconds otelmetric.Float64Histogram
)

func initPipelineMetrics() {
	meter := otel.Meter("chimera/pipeline")
	var err error
	if turnsTotal, err = meter.Int64Counter("pipeline_turns_total",
		otelmetric.WithDescription("Handled chat turns by outcome")); err != nil {
		log.Printf("pipeline metrics init: turns: %v", err)
	}
	if turnSeconds, err = meter.Float64Histogram("pipeline_turn_duration_seconds",
		otelmetric.WithUnit("s"),
		otelmetric.WithDescription("End-to-end turn latency")); err != nil {
		log.Printf("pipeline metrics init: duration: %v", err)
	}
}

func recordTurn(ctx context.Context, elapsed time.Duration, ok bool) {
	pipelineMetricsOnce.Do(initPipelineMetrics)
	attrs := otelmetric.WithAttributes(attribute.Bool("ok", ok))
	if turnsTotal != nil {
		turnsTotal.Add(ctx, 1, attrs)
	}
	if turnSeconds != nil {
		turnSeconds.Record(ctx, elapsed.Seconds(), attrs)
	}
}
