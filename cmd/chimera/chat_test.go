package main

import (
	"bytes"
	"context"
	"io"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/mohammad-safakhou/chimera/config"
	"github.com/mohammad-safakhou/chimera/internal/agents"
	"github.com/mohammad-safakhou/chimera/internal/pipeline"
	"github.com/mohammad-safakhou/chimera/internal/session"
	"github.com/mohammad-safakhou/chimera/internal/supervisor"
)

func TestREPL(t *testing.T) {
	quiet := log.New(io.Discard, "", 0)
	all, err := agents.All(agents.Deps{Scheduler: config.SchedulerConfig{TimeZone: "UTC"}, Output: io.Discard})
	if err != nil {
		t.Fatalf("agents: %v", err)
	}
	sup, err := supervisor.New(config.SupervisorConfig{}, nil, nil, quiet, all...)
	if err != nil {
		t.Fatalf("supervisor: %v", err)
	}
	sessions, _ := session.NewStore(session.StoreInMemory, time.Hour, nil)
	p := pipeline.New(sup, sessions, pipeline.Options{Logger: quiet})

	in := strings.NewReader("hello there\n\n/stats\n/summary\n/clear\n/quit\nnever read\n")
	var out bytes.Buffer
	if err := repl(context.Background(), p, "cli-1", in, &out); err != nil {
		t.Fatalf("repl: %v", err)
	}
	got := out.String()
	for _, want := range []string{
		"session cli-1",
		"Chimera: " + agents.FallbackReply,
		"conversations=1 messages=2 avg=2.00",
		"summary unavailable",
		"cleared=true",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("output missing %q:\n%s", want, got)
		}
	}
}
