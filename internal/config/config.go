package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mounikasaka1/hackai/internal/domain"
	"github.com/mounikasaka1/hackai/internal/features"
	"github.com/mounikasaka1/hackai/internal/logger"
	"github.com/mounikasaka1/hackai/internal/model"
)

// Default configuration values.
const (
	defaultServiceName      = "hackai"
	defaultServiceVersion   = "1.0.0"
	defaultServicePort      = 8090
	defaultConcurrency      = 8
	defaultReadTimeout      = 15 * time.Second
	defaultWriteTimeout     = 30 * time.Second
	defaultShutdownTimeout  = 10 * time.Second
	defaultMode             = "rules"
	defaultArtifactDir      = "models/current"
	defaultTestSize         = 0.2
	defaultDBDriver         = "sqlite3"
	defaultSQLitePath       = "hackai.db"
	defaultDBHost           = "localhost"
	defaultDBPort           = 5432
	defaultDBUser           = "postgres"
	defaultDBName           = "hackai"
	defaultDBSSLMode        = "disable"
	defaultDBMaxConns       = 10
	defaultDBMaxIdleConns   = 5
	defaultDBConnLifetime   = 5 * time.Minute
	defaultRedisTimeout     = 2 * time.Second
	defaultCacheTTL         = 24 * time.Hour
	defaultESMaxRetries     = 3
	defaultESTimeout        = 30 * time.Second
	defaultESIndexPrefix    = "hackai"
	defaultJWTIssuer        = "hackai"
	defaultRateLimitRPS     = 10
	defaultRateLimitBurst   = 20
	defaultPyroscopeURL     = "http://localhost:4040"
	defaultPyroscopeEnv     = "development"
	defaultHistoryLimit     = 50
	defaultMaxHistoryLimit  = 500
	maxPort                 = 65535
)

// Config holds all configuration for the hackai binary.
type Config struct {
	Service        ServiceConfig        `yaml:"service"`
	Logging        logger.Config        `yaml:"logging"`
	Patterns       PatternsConfig       `yaml:"patterns"`
	Classification ClassificationConfig `yaml:"classification"`
	Model          ModelConfig          `yaml:"model"`
	Training       TrainingConfig       `yaml:"training"`
	Database       DatabaseConfig       `yaml:"database"`
	Redis          RedisConfig          `yaml:"redis"`
	Elasticsearch  ElasticsearchConfig  `yaml:"elasticsearch"`
	Auth           AuthConfig           `yaml:"auth"`
	RateLimit      RateLimitConfig      `yaml:"rate_limit"`
	Profiling      ProfilingConfig      `yaml:"profiling"`
}

// ServiceConfig holds process-level settings.
type ServiceConfig struct {
	Name            string        `yaml:"name"`
	Version         string        `yaml:"version"`
	Host            string        `env:"HACKAI_HOST"        yaml:"host"`
	Port            int           `env:"HACKAI_PORT"        yaml:"port"`
	Debug           bool          `env:"APP_DEBUG"          yaml:"debug"`
	Concurrency     int           `env:"HACKAI_CONCURRENCY" yaml:"concurrency"`
	BatchTimeout    time.Duration `yaml:"batch_timeout"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	HistoryLimit    int           `yaml:"history_limit"`
	MaxHistoryLimit int           `yaml:"max_history_limit"`
}

// Address returns host:port.
func (s ServiceConfig) Address() string {
	return s.Host + ":" + strconv.Itoa(s.Port)
}

// PatternsConfig points at an optional pattern registry file. Empty means the
// built-in tables.
type PatternsConfig struct {
	Path string `env:"HACKAI_PATTERNS" yaml:"path"`
}

// ClassificationConfig selects the backend and the rule policy.
type ClassificationConfig struct {
	Mode                  string   `env:"HACKAI_MODE" yaml:"mode"`
	AllowEmpty            bool     `yaml:"allow_empty"`
	InferEmotion          bool     `yaml:"infer_emotion"`
	TrustedSenderOverride bool     `yaml:"trusted_sender_override"`
	TrustedSenders        []string `env:"HACKAI_TRUSTED_SENDERS" yaml:"trusted_senders"`
}

// ModelConfig locates the trained artifact.
type ModelConfig struct {
	ArtifactDir string `env:"HACKAI_MODEL_DIR" yaml:"artifact_dir"`
}

// TrainingConfig controls feature extraction and forest training.
type TrainingConfig struct {
	Features features.Options `yaml:"features"`
	Forest   model.Params     `yaml:"forest"`
	TestSize float64          `yaml:"test_size"`
}

// DatabaseConfig holds the history store connection. Driver is "postgres"
// or "sqlite3"; an empty driver disables history.
type DatabaseConfig struct {
	Enabled         bool          `env:"DB_ENABLED"        yaml:"enabled"`
	Driver          string        `env:"DB_DRIVER"         yaml:"driver"`
	Path            string        `env:"SQLITE_PATH"       yaml:"path"`
	Host            string        `env:"POSTGRES_HOST"     yaml:"host"`
	Port            int           `env:"POSTGRES_PORT"     yaml:"port"`
	User            string        `env:"POSTGRES_USER"     yaml:"user"`
	Password        string        `env:"POSTGRES_PASSWORD" yaml:"password"`
	Database        string        `env:"POSTGRES_DB"       yaml:"database"`
	SSLMode         string        `env:"POSTGRES_SSLMODE"  yaml:"sslmode"`
	MaxConnections  int           `yaml:"max_connections"`
	MaxIdleConns    int           `yaml:"max_idle_connections"`
	ConnMaxLifetime time.Duration `yaml:"connection_max_lifetime"`
}

// DSN returns the driver-specific connection string.
func (c DatabaseConfig) DSN() string {
	if c.Driver == "sqlite3" {
		return c.Path
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// RedisConfig holds the result cache connection. An empty URL disables the
// cache.
type RedisConfig struct {
	URL      string        `env:"REDIS_URL"      yaml:"url"`
	Password string        `env:"REDIS_PASSWORD" yaml:"password"`
	Database int           `yaml:"database"`
	Timeout  time.Duration `yaml:"timeout"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// ElasticsearchConfig holds the result index connection. An empty URL
// disables indexing.
type ElasticsearchConfig struct {
	URL         string        `env:"ELASTICSEARCH_URL" yaml:"url"`
	Username    string        `yaml:"username"`
	Password    string        `env:"ELASTICSEARCH_PASSWORD" yaml:"password"`
	MaxRetries  int           `yaml:"max_retries"`
	Timeout     time.Duration `yaml:"timeout"`
	IndexPrefix string        `yaml:"index_prefix"`
}

// IndexName returns the classified-messages index.
func (c ElasticsearchConfig) IndexName() string {
	return c.IndexPrefix + "_classified_messages"
}

// AuthConfig holds API authentication. An empty secret disables JWT checks.
type AuthConfig struct {
	JWTSecret string `env:"AUTH_JWT_SECRET" yaml:"jwt_secret"`
	Issuer    string `yaml:"issuer"`
}

// RateLimitConfig throttles the public /analyze route.
type RateLimitConfig struct {
	Enabled           bool    `yaml:"enabled"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// ProfilingConfig enables continuous profiling.
type ProfilingConfig struct {
	Enabled     bool   `env:"ENABLE_CONTINUOUS_PROFILING" yaml:"enabled"`
	ServerURL   string `env:"PYROSCOPE_SERVER_URL"        yaml:"server_url"`
	Environment string `env:"PYROSCOPE_ENVIRONMENT"       yaml:"environment"`
}

// Load reads path and applies defaults.
func Load(path string) (*Config, error) {
	cfg, err := LoadWithDefaults[Config](path, SetDefaults)
	if err != nil {
		return nil, &domain.ConfigError{Source: path, Reason: "load", Err: err}
	}
	return cfg, nil
}

// Default returns a config with every default applied and no file.
func Default() *Config {
	cfg := &Config{}
	SetDefaults(cfg)
	return cfg
}

// SetDefaults fills unset fields in every section.
func SetDefaults(cfg *Config) {
	setServiceDefaults(&cfg.Service)
	cfg.Logging.SetDefaults()
	setClassificationDefaults(&cfg.Classification)
	setModelDefaults(&cfg.Model)
	setTrainingDefaults(&cfg.Training)
	setDatabaseDefaults(&cfg.Database)
	setRedisDefaults(&cfg.Redis)
	setElasticsearchDefaults(&cfg.Elasticsearch)
	setAuthDefaults(&cfg.Auth)
	setRateLimitDefaults(&cfg.RateLimit)
	setProfilingDefaults(&cfg.Profiling)
}

func setServiceDefaults(s *ServiceConfig) {
	if s.Name == "" {
		s.Name = defaultServiceName
	}
	if s.Version == "" {
		s.Version = defaultServiceVersion
	}
	if s.Port == 0 {
		s.Port = defaultServicePort
	}
	if s.Concurrency == 0 {
		s.Concurrency = defaultConcurrency
	}
	if s.ReadTimeout == 0 {
		s.ReadTimeout = defaultReadTimeout
	}
	if s.WriteTimeout == 0 {
		s.WriteTimeout = defaultWriteTimeout
	}
	if s.ShutdownTimeout == 0 {
		s.ShutdownTimeout = defaultShutdownTimeout
	}
	if s.HistoryLimit == 0 {
		s.HistoryLimit = defaultHistoryLimit
	}
	if s.MaxHistoryLimit == 0 {
		s.MaxHistoryLimit = defaultMaxHistoryLimit
	}
}

func setClassificationDefaults(c *ClassificationConfig) {
	if c.Mode == "" {
		c.Mode = defaultMode
	}
}

func setModelDefaults(m *ModelConfig) {
	if m.ArtifactDir == "" {
		m.ArtifactDir = defaultArtifactDir
	}
}

func setTrainingDefaults(t *TrainingConfig) {
	d := features.DefaultOptions()
	if t.Features.NGramMin == 0 {
		t.Features.NGramMin = d.NGramMin
	}
	if t.Features.NGramMax == 0 {
		t.Features.NGramMax = d.NGramMax
	}
	if t.Features.MinDF == 0 {
		t.Features.MinDF = d.MinDF
	}
	if t.Features.MaxDF == 0 {
		t.Features.MaxDF = d.MaxDF
	}
	if t.Features.MaxFeatures == 0 {
		t.Features.MaxFeatures = d.MaxFeatures
	}

	p := model.DefaultParams()
	if t.Forest.Trees == 0 {
		t.Forest.Trees = p.Trees
	}
	if t.Forest.MaxDepth == 0 {
		t.Forest.MaxDepth = p.MaxDepth
	}
	if t.Forest.MinSamplesSplit == 0 {
		t.Forest.MinSamplesSplit = p.MinSamplesSplit
	}
	if t.Forest.Seed == 0 {
		t.Forest.Seed = p.Seed
	}
	if t.TestSize == 0 {
		t.TestSize = defaultTestSize
	}
}

func setDatabaseDefaults(d *DatabaseConfig) {
	if d.Driver == "" {
		d.Driver = defaultDBDriver
	}
	if d.Path == "" {
		d.Path = defaultSQLitePath
	}
	if d.Host == "" {
		d.Host = defaultDBHost
	}
	if d.Port == 0 {
		d.Port = defaultDBPort
	}
	if d.User == "" {
		d.User = defaultDBUser
	}
	if d.Database == "" {
		d.Database = defaultDBName
	}
	if d.SSLMode == "" {
		d.SSLMode = defaultDBSSLMode
	}
	if d.MaxConnections == 0 {
		d.MaxConnections = defaultDBMaxConns
	}
	if d.MaxIdleConns == 0 {
		d.MaxIdleConns = defaultDBMaxIdleConns
	}
	if d.ConnMaxLifetime == 0 {
		d.ConnMaxLifetime = defaultDBConnLifetime
	}
}

func setRedisDefaults(r *RedisConfig) {
	if r.Timeout == 0 {
		r.Timeout = defaultRedisTimeout
	}
	if r.CacheTTL == 0 {
		r.CacheTTL = defaultCacheTTL
	}
}

func setElasticsearchDefaults(e *ElasticsearchConfig) {
	if e.MaxRetries == 0 {
		e.MaxRetries = defaultESMaxRetries
	}
	if e.Timeout == 0 {
		e.Timeout = defaultESTimeout
	}
	if e.IndexPrefix == "" {
		e.IndexPrefix = defaultESIndexPrefix
	}
}

func setAuthDefaults(a *AuthConfig) {
	if a.Issuer == "" {
		a.Issuer = defaultJWTIssuer
	}
}

func setRateLimitDefaults(r *RateLimitConfig) {
	if r.RequestsPerSecond == 0 {
		r.RequestsPerSecond = defaultRateLimitRPS
	}
	if r.Burst == 0 {
		r.Burst = defaultRateLimitBurst
	}
}

func setProfilingDefaults(p *ProfilingConfig) {
	if p.ServerURL == "" {
		p.ServerURL = defaultPyroscopeURL
	}
	if p.Environment == "" {
		p.Environment = defaultPyroscopeEnv
	}
}

// Validate checks values that defaults cannot repair.
func (c *Config) Validate() error {
	invalid := func(field, reason string) error {
		return &domain.ConfigError{Source: field, Reason: reason}
	}

	switch strings.ToLower(c.Classification.Mode) {
	case "rules", "model":
	default:
		return invalid("classification.mode", fmt.Sprintf("unknown mode %q, want rules or model", c.Classification.Mode))
	}
	if strings.EqualFold(c.Classification.Mode, "model") && c.Model.ArtifactDir == "" {
		return invalid("model.artifact_dir", "required in model mode")
	}
	if c.Service.Port < 1 || c.Service.Port > maxPort {
		return invalid("service.port", "must be between 1 and 65535")
	}
	if c.Service.Concurrency < 1 {
		return invalid("service.concurrency", "must be at least 1")
	}
	if !logger.ValidLevel(c.Logging.Level) {
		return invalid("logging.level", fmt.Sprintf("unknown level %q", c.Logging.Level))
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return invalid("logging.format", "must be json or console")
	}
	if c.Database.Enabled {
		switch c.Database.Driver {
		case "postgres", "sqlite3":
		default:
			return invalid("database.driver", fmt.Sprintf("unsupported driver %q", c.Database.Driver))
		}
	}
	if c.Training.TestSize <= 0 || c.Training.TestSize >= 1 {
		return invalid("training.test_size", "must be in (0, 1)")
	}
	if c.Training.Features.NGramMin > c.Training.Features.NGramMax {
		return invalid("training.features", "ngram_min exceeds ngram_max")
	}
	if c.RateLimit.Enabled && c.RateLimit.RequestsPerSecond <= 0 {
		return invalid("rate_limit.requests_per_second", "must be positive")
	}
	return nil
}
