package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `{"brand": {"tone": "friendly"}}`)

	cfg, err := Load(viper.New(), path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Supervisor.MaxIterations != 10 {
		t.Fatalf("expected max_iterations 10, got %d", cfg.Supervisor.MaxIterations)
	}
	if cfg.Supervisor.AgentTimeout != 30*time.Second {
		t.Fatalf("expected agent timeout 30s, got %v", cfg.Supervisor.AgentTimeout)
	}
	if cfg.Brand.Tone != "friendly" || cfg.Brand.Voice != "helpful" {
		t.Fatalf("unexpected brand %+v", cfg.Brand)
	}
	if cfg.Scheduler.Availability != "0 10 * * 1-5" || cfg.Scheduler.MaxSlots != 5 {
		t.Fatalf("unexpected scheduler defaults %+v", cfg.Scheduler)
	}
	if cfg.Session.Store != "inmemory" {
		t.Fatalf("expected inmemory session store, got %q", cfg.Session.Store)
	}
	if cfg.LLM.Model != "gpt-4o-mini" || cfg.LLM.StylistModel != "gpt-4o-mini" {
		t.Fatalf("unexpected llm defaults %+v", cfg.LLM)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("CHIMERA_SUPERVISOR_MAX_ITERATIONS", "4")
	path := writeConfig(t, `{}`)

	cfg, err := Load(viper.New(), path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Supervisor.MaxIterations != 4 {
		t.Fatalf("expected env override to 4, got %d", cfg.Supervisor.MaxIterations)
	}
}

func TestLoadRejectsRedisSessionWithoutHost(t *testing.T) {
	path := writeConfig(t, `{"session": {"store": "redis"}}`)
	if _, err := Load(viper.New(), path); err == nil {
		t.Fatalf("expected error for redis session store without redis host")
	}
}

func TestLoadRejectsUnknownSessionStore(t *testing.T) {
	path := writeConfig(t, `{"session": {"store": "memcached"}}`)
	if _, err := Load(viper.New(), path); err == nil {
		t.Fatalf("expected error for unknown session store")
	}
}

func TestPostgresDSN(t *testing.T) {
	p := PostgresConfig{Host: "db", User: "u", Password: "p", DBName: "chimera"}
	want := "postgres://u:p@db:5432/chimera?sslmode=disable"
	if got := p.DSN(); got != want {
		t.Fatalf("dsn = %q, want %q", got, want)
	}
	p.URL = "postgres://override"
	if got := p.DSN(); got != "postgres://override" {
		t.Fatalf("expected url to win, got %q", got)
	}
}

func TestLoadRejectsNegativeBudget(t *testing.T) {
	path := writeConfig(t, `{"budget": {"max_calls": -1}}`)
	if _, err := Load(viper.New(), path); err == nil {
		t.Fatalf("expected error for negative budget")
	}
}

func TestLoadRejectsIterationsAboveCap(t *testing.T) {
	path := writeConfig(t, `{"supervisor": {"max_iterations": 11}}`)
	if _, err := Load(viper.New(), path); err == nil {
		t.Fatalf("expected error for max_iterations above %d", MaxSupervisorIterations)
	}
	path = writeConfig(t, `{"supervisor": {"max_iterations": 10}}`)
	if _, err := Load(viper.New(), path); err != nil {
		t.Fatalf("max_iterations at cap: %v", err)
	}
}
