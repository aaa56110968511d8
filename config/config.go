package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the assistant service
type Config struct {
	General    GeneralConfig    `mapstructure:"general"`
	Server     ServerConfig     `mapstructure:"server"`
	LLM        LLMConfig        `mapstructure:"llm"`
	Budget     BudgetConfig     `mapstructure:"budget"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
	Capability CapabilityConfig `mapstructure:"capability"`
	Supervisor SupervisorConfig `mapstructure:"supervisor"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	Brand      BrandConfig      `mapstructure:"brand"`
	Knowledge  KnowledgeConfig  `mapstructure:"knowledge"`
	CRM        CRMConfig        `mapstructure:"crm"`
	Audit      AuditConfig      `mapstructure:"audit"`
	Session    SessionConfig    `mapstructure:"session"`
	Storage    StorageConfig    `mapstructure:"storage"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Debug       bool          `mapstructure:"debug"`
	LogLevel    string        `mapstructure:"log_level"`
	TurnTimeout time.Duration `mapstructure:"turn_timeout"`
}

// ServerConfig contains HTTP server and auth settings
type ServerConfig struct {
	Address   string `mapstructure:"address"`
	JWTSecret string `mapstructure:"jwt_secret"`
}

// LLMConfig configures the chat completion and embedding backend.
type LLMConfig struct {
	APIKey         string        `mapstructure:"api_key"`
	BaseURL        string        `mapstructure:"base_url"`
	Model          string        `mapstructure:"model"`
	StylistModel   string        `mapstructure:"stylist_model"`
	EmbeddingModel string        `mapstructure:"embedding_model"`
	Temperature    float32       `mapstructure:"temperature"`
	MaxTokens      int           `mapstructure:"max_tokens"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

// Normalize fills model defaults.
func (c LLMConfig) Normalize() LLMConfig {
	if strings.TrimSpace(c.Model) == "" {
		c.Model = "gpt-4o-mini"
	}
	if strings.TrimSpace(c.StylistModel) == "" {
		c.StylistModel = c.Model
	}
	if strings.TrimSpace(c.EmbeddingModel) == "" {
		c.EmbeddingModel = "text-embedding-3-small"
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	return c
}

// Enabled reports whether an API key has been configured.
func (c LLMConfig) Enabled() bool { return strings.TrimSpace(c.APIKey) != "" }

// BudgetConfig caps completion calls and estimated tokens per window.
// Zero limits are unbounded.
type BudgetConfig struct {
	MaxCalls  int64         `mapstructure:"max_calls"`
	MaxTokens int64         `mapstructure:"max_tokens"`
	Window    time.Duration `mapstructure:"window"`
}

func (b BudgetConfig) Validate() error {
	if b.MaxCalls < 0 || b.MaxTokens < 0 {
		return fmt.Errorf("budget limits cannot be negative")
	}
	if b.Window < 0 {
		return fmt.Errorf("budget.window cannot be negative")
	}
	return nil
}

// TelemetryConfig contains telemetry and monitoring settings
type TelemetryConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	MetricsPort  int    `mapstructure:"metrics_port"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
}

func (t TelemetryConfig) Validate() error {
	if t.Enabled && t.MetricsPort <= 0 {
		return fmt.Errorf("telemetry.metrics_port must be > 0 when telemetry is enabled")
	}
	return nil
}

// CapabilityConfig controls capability schema signing.
type CapabilityConfig struct {
	SigningSecret string `mapstructure:"signing_secret"`
	Signature     string `mapstructure:"signature"`
}

// MaxSupervisorIterations is the hard cap on supervisor passes per turn.
const MaxSupervisorIterations = 10

// SupervisorConfig bounds the supervisor loop.
type SupervisorConfig struct {
	MaxIterations         int           `mapstructure:"max_iterations"`
	AgentTimeout          time.Duration `mapstructure:"agent_timeout"`
	ConcurrentIndependent bool          `mapstructure:"concurrent_independent"`
	MaxConcurrentAgents   int           `mapstructure:"max_concurrent_agents"`
}

// Normalize applies defaults for unset supervisor values.
func (c SupervisorConfig) Normalize() SupervisorConfig {
	if c.MaxIterations <= 0 {
		c.MaxIterations = MaxSupervisorIterations
	}
	if c.MaxConcurrentAgents <= 0 {
		c.MaxConcurrentAgents = 2
	}
	return c
}

func (c SupervisorConfig) Validate() error {
	if c.AgentTimeout < 0 {
		return fmt.Errorf("supervisor.agent_timeout cannot be negative")
	}
	if c.MaxIterations > MaxSupervisorIterations {
		return fmt.Errorf("supervisor.max_iterations cannot exceed %d", MaxSupervisorIterations)
	}
	return nil
}

// SchedulerConfig describes bookable demo availability.
type SchedulerConfig struct {
	Availability    string `mapstructure:"availability"`
	HorizonDays     int    `mapstructure:"horizon_days"`
	MaxSlots        int    `mapstructure:"max_slots"`
	DurationMinutes int    `mapstructure:"duration_minutes"`
	TimeZone        string `mapstructure:"time_zone"`
}

// Normalize applies weekday-morning defaults.
func (c SchedulerConfig) Normalize() SchedulerConfig {
	if strings.TrimSpace(c.Availability) == "" {
		c.Availability = "0 10 * * 1-5"
	}
	if c.HorizonDays <= 0 {
		c.HorizonDays = 5
	}
	if c.MaxSlots <= 0 || c.MaxSlots > 5 {
		c.MaxSlots = 5
	}
	if c.DurationMinutes <= 0 {
		c.DurationMinutes = 30
	}
	if strings.TrimSpace(c.TimeZone) == "" {
		c.TimeZone = "Local"
	}
	return c
}

func (c SchedulerConfig) Validate() error {
	if _, err := time.LoadLocation(c.TimeZone); err != nil {
		return fmt.Errorf("scheduler.time_zone: %w", err)
	}
	return nil
}

// BrandConfig is the default brand profile applied to new sessions.
type BrandConfig struct {
	Tone  string `mapstructure:"tone"`
	Voice string `mapstructure:"voice"`
}

// CRMConfig configures the outbound CRM push.
type CRMConfig struct {
	Endpoint string        `mapstructure:"endpoint"`
	APIKey   string        `mapstructure:"api_key"`
	Timeout  time.Duration `mapstructure:"timeout"`
	Retries  int           `mapstructure:"retries"`
}

// AuditConfig selects where capability audit records go.
type AuditConfig struct {
	Stream    string `mapstructure:"stream"`
	MaxLen    int64  `mapstructure:"max_len"`
	LogAccess bool   `mapstructure:"log_access"`
}

// SessionConfig selects the conversation state backend.
type SessionConfig struct {
	Store string        `mapstructure:"store"` // inmemory or redis
	TTL   time.Duration `mapstructure:"ttl"`
}

func (s SessionConfig) Validate() error {
	switch s.Store {
	case "", "inmemory", "redis":
		return nil
	default:
		return fmt.Errorf("session.store must be inmemory or redis, got %q", s.Store)
	}
}

// StorageConfig contains storage and persistence settings
type StorageConfig struct {
	Redis    RedisConfig    `mapstructure:"redis"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// RedisConfig contains Redis connection settings
type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// Configured reports whether a Redis endpoint is set.
func (r RedisConfig) Configured() bool { return strings.TrimSpace(r.Host) != "" }

// Addr returns host:port.
func (r RedisConfig) Addr() string {
	port := r.Port
	if port == "" {
		port = "6379"
	}
	return fmt.Sprintf("%s:%s", r.Host, port)
}

func (r RedisConfig) Validate() error {
	if !r.Configured() {
		return nil
	}
	if strings.TrimSpace(r.Port) == "" {
		return fmt.Errorf("storage.redis.port required")
	}
	return nil
}

// PostgresConfig contains Postgres connection settings
type PostgresConfig struct {
	URL      string        `mapstructure:"url"`
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	User     string        `mapstructure:"user"`
	Password string        `mapstructure:"password"`
	DBName   string        `mapstructure:"dbname"`
	SSLMode  string        `mapstructure:"sslmode"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// Configured reports whether Postgres persistence is enabled.
func (p PostgresConfig) Configured() bool {
	return strings.TrimSpace(p.URL) != "" || strings.TrimSpace(p.Host) != ""
}

// DSN builds a connection string, preferring an explicit url.
func (p PostgresConfig) DSN() string {
	if p.URL != "" {
		return p.URL
	}
	port := p.Port
	if port == "" {
		port = "5432"
	}
	ssl := p.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Password, p.Host, port, p.DBName, ssl)
}

func (p PostgresConfig) Validate() error {
	if strings.TrimSpace(p.URL) != "" || strings.TrimSpace(p.Host) == "" {
		return nil
	}
	if strings.TrimSpace(p.DBName) == "" {
		return fmt.Errorf("storage.postgres.dbname required when url is not provided")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":10001")
	v.SetDefault("general.turn_timeout", "60s")
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.max_tokens", 512)
	v.SetDefault("llm.embedding_model", "text-embedding-3-small")
	v.SetDefault("budget.window", "1h")
	v.SetDefault("supervisor.max_iterations", 10)
	v.SetDefault("supervisor.agent_timeout", "30s")
	v.SetDefault("supervisor.max_concurrent_agents", 2)
	v.SetDefault("scheduler.availability", "0 10 * * 1-5")
	v.SetDefault("scheduler.horizon_days", 5)
	v.SetDefault("scheduler.max_slots", 5)
	v.SetDefault("scheduler.duration_minutes", 30)
	v.SetDefault("brand.tone", "professional")
	v.SetDefault("brand.voice", "helpful")
	v.SetDefault("knowledge.top_k", 3)
	v.SetDefault("knowledge.max_chars", 20000)
	v.SetDefault("knowledge.fetch_timeout", "15s")
	v.SetDefault("crm.timeout", "10s")
	v.SetDefault("crm.retries", 2)
	v.SetDefault("audit.stream", "chimera:audit")
	v.SetDefault("audit.max_len", 10000)
	v.SetDefault("session.store", "inmemory")
	v.SetDefault("session.ttl", "24h")
}

// LoadConfig loads config from file
func LoadConfig(path string) *Config {
	cfg, err := Load(viper.GetViper(), path)
	if err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}
	return cfg
}

// Load reads, normalizes and validates configuration using the given viper instance.
// A missing config file is not an error when no explicit path was provided.
func Load(v *viper.Viper, path string) (*Config, error) {
	v.SetConfigName("config")
	v.SetConfigType("json")
	setDefaults(v)

	if path == "" {
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
		exe, _ := os.Executable()
		exeDir := filepath.Dir(exe)
		v.AddConfigPath(exeDir)
		v.AddConfigPath(filepath.Join(exeDir, "..", "config"))
	} else {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix("CHIMERA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv() // CHIMERA_*

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}
	config.LLM = config.LLM.Normalize()
	config.Supervisor = config.Supervisor.Normalize()
	config.Scheduler = config.Scheduler.Normalize()
	config.Knowledge = config.Knowledge.Normalize()

	validators := []func() error{
		config.Budget.Validate,
		config.Telemetry.Validate,
		config.Supervisor.Validate,
		config.Scheduler.Validate,
		config.Knowledge.Validate,
		config.Session.Validate,
		config.Storage.Redis.Validate,
		config.Storage.Postgres.Validate,
	}
	for _, validate := range validators {
		if err := validate(); err != nil {
			return nil, err
		}
	}
	if config.Session.Store == "redis" && !config.Storage.Redis.Configured() {
		return nil, fmt.Errorf("session.store=redis requires storage.redis.host")
	}
	return &config, nil
}
