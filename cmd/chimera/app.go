package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"

	"github.com/mohammad-safakhou/chimera/config"
	"github.com/mohammad-safakhou/chimera/internal/agents"
	"github.com/mohammad-safakhou/chimera/internal/audit"
	"github.com/mohammad-safakhou/chimera/internal/budget"
	"github.com/mohammad-safakhou/chimera/internal/capability"
	"github.com/mohammad-safakhou/chimera/internal/crm"
	"github.com/mohammad-safakhou/chimera/internal/knowledge"
	"github.com/mohammad-safakhou/chimera/internal/llm"
	"github.com/mohammad-safakhou/chimera/internal/pipeline"
	"github.com/mohammad-safakhou/chimera/internal/runtime"
	"github.com/mohammad-safakhou/chimera/internal/session"
	"github.com/mohammad-safakhou/chimera/internal/state"
	"github.com/mohammad-safakhou/chimera/internal/store"
	"github.com/mohammad-safakhou/chimera/internal/supervisor"
)

// app is the wired process: every collaborator built once from config.
type app struct {
	cfg       *config.Config
	telemetry *runtime.Telemetry
	registry  *capability.Registry
	redis     *redis.Client
	store     *store.Store
	ingester  *knowledge.Ingester
	pipeline  *pipeline.Pipeline
	logger    *log.Logger
}

func loadConfig() (*config.Config, error) {
	return config.Load(viper.New(), cfgPath)
}

func bootstrap(ctx context.Context, service string) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	a := &app{cfg: cfg, logger: log.New(os.Stdout, "[CHIMERA] ", log.LstdFlags)}

	if a.telemetry, err = runtime.SetupTelemetry(ctx, cfg.Telemetry, runtime.TelemetryOptions{ServiceName: service, ServiceVersion: version}); err != nil {
		return nil, err
	}
	if a.registry, err = runtime.LoadCapabilities(cfg.Capability); err != nil {
		a.Close(ctx)
		return nil, err
	}
	if a.redis, err = runtime.OpenRedis(ctx, cfg.Storage.Redis); err != nil {
		a.Close(ctx)
		return nil, err
	}
	if a.store, err = runtime.OpenStore(ctx, cfg.Storage.Postgres); err != nil {
		a.Close(ctx)
		return nil, err
	}

	var (
		model    llm.ChatModel
		embedder llm.Embedder
	)
	client, err := llm.New(cfg.LLM)
	switch {
	case errors.Is(err, llm.ErrDisabled):
		a.logger.Printf("no llm api key configured; replies fall back to canned text")
	case err != nil:
		a.Close(ctx)
		return nil, err
	default:
		model, embedder = budget.Wrap(client, budget.FromConfig(cfg.Budget), nil), client
	}

	index, err := knowledge.NewIndex(embedder, cfg.Knowledge.ChunkChars, nil)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	a.ingester = knowledge.NewIngester(index, nil, cfg.Knowledge, nil)
	a.ingester.Load(ctx, cfg.Knowledge.Documents)

	all, err := agents.All(agents.Deps{
		Knowledge: index,
		Model:     model,
		CRM:       crm.New(cfg.CRM, nil),
		LLM:       cfg.LLM,
		Scheduler: cfg.Scheduler,
	})
	if err != nil {
		a.Close(ctx)
		return nil, err
	}

	sinks := audit.Multi{audit.NewLoggerSink(nil, cfg.Audit.LogAccess)}
	if a.redis != nil {
		stream, err := audit.NewStreamSink(a.redis, cfg.Audit.Stream, cfg.Audit.MaxLen)
		if err != nil {
			a.Close(ctx)
			return nil, err
		}
		sinks = append(sinks, stream)
	}
	sup, err := supervisor.New(cfg.Supervisor, a.registry, sinks, nil, all...)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}

	sessions, err := session.NewStore(session.StoreType(cfg.Session.Store), cfg.Session.TTL, a.redis)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	opts := pipeline.Options{
		Brand:       state.BrandProfile{Tone: cfg.Brand.Tone, Voice: cfg.Brand.Voice},
		Summarizer:  model,
		TurnTimeout: cfg.General.TurnTimeout,
	}
	if a.store != nil {
		opts.Sink = a.store
	}
	a.pipeline = pipeline.New(sup, sessions, opts)
	return a, nil
}

// Close releases connections and flushes telemetry.
func (a *app) Close(ctx context.Context) {
	if a.ingester != nil {
		_ = a.ingester.Index().Close()
	}
	if a.store != nil {
		_ = a.store.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if err := a.telemetry.Shutdown(ctx); err != nil {
		a.logger.Printf("telemetry shutdown: %v", err)
	}
}
