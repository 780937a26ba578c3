package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	BackendMongo    = "mongo"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

type ServerConfig struct {
	Host        string        `yaml:"host"`
	Port        int           `yaml:"port"`
	Mode        string        `yaml:"mode"`
	Timeout     time.Duration `yaml:"timeout"`
	CORSOrigins []string      `yaml:"cors_origins"`
	TLS         TLSConfig     `yaml:"tls"`
}

type MongoConfig struct {
	URI                    string        `yaml:"uri"`
	Database               string        `yaml:"database"`
	MaxPoolSize            uint64        `yaml:"max_pool_size"`
	MinPoolSize            uint64        `yaml:"min_pool_size"`
	ConnectTimeout         time.Duration `yaml:"connect_timeout"`
	ServerSelectionTimeout time.Duration `yaml:"server_selection_timeout"`
	TLSEnabled             bool          `yaml:"tls_enabled"`
	TLSCAFile              string        `yaml:"tls_ca_file"`
	TLSCertFile            string        `yaml:"tls_cert_file"`
	TLSKeyFile             string        `yaml:"tls_key_file"`
}

type PostgresConfig struct {
	Host          string        `yaml:"host"`
	Port          int           `yaml:"port"`
	User          string        `yaml:"user"`
	Password      string        `yaml:"password"`
	Name          string        `yaml:"name"`
	SSLMode       string        `yaml:"sslmode"`
	MaxPoolSize   int32         `yaml:"max_pool_size"`
	ConnTimeout   time.Duration `yaml:"conn_timeout"`
	MigrationsDir string        `yaml:"migrations_dir"`
}

type ElasticsearchConfig struct {
	Addresses   []string `yaml:"addresses"`
	Username    string   `yaml:"username"`
	Password    string   `yaml:"password"`
	IndexPrefix string   `yaml:"index_prefix"`
}

type AuthConfig struct {
	Enabled     bool          `yaml:"enabled"`
	JWTSecret   string        `yaml:"jwt_secret"`
	TokenExpiry time.Duration `yaml:"token_expiry"`
}

type Config struct {
	Server ServerConfig `yaml:"server"`

	Storage struct {
		Backend string `yaml:"backend"`
	} `yaml:"storage"`

	Mongo         MongoConfig         `yaml:"mongo"`
	Postgres      PostgresConfig      `yaml:"postgres"`
	Elasticsearch ElasticsearchConfig `yaml:"elasticsearch"`
	Auth          AuthConfig          `yaml:"auth"`

	Registration struct {
		MaxAttempts int `yaml:"max_attempts"`
	} `yaml:"registration"`

	RateLimit struct {
		RPS   float64 `yaml:"rps"`
		Burst int     `yaml:"burst"`
	} `yaml:"rate_limit"`

	Logging struct {
		Level       string `yaml:"level"`
		Development bool   `yaml:"development"`
	} `yaml:"logging"`

	Alerts struct {
		ClientBuffer   int      `yaml:"client_buffer"`
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"alerts"`
}

// Default returns the configuration used when no file is found. It matches the
// original single-node setup: MongoDB on localhost, port 5000, no auth.
func Default() *Config {
	cfg := &Config{}
	cfg.Server.Host = "0.0.0.0"
	cfg.Server.Port = 5000
	cfg.Server.Mode = "release"
	cfg.Server.Timeout = 15 * time.Second
	cfg.Server.CORSOrigins = []string{"http://localhost:5173"}

	cfg.Storage.Backend = BackendMongo

	cfg.Mongo.URI = "mongodb://localhost:27017"
	cfg.Mongo.Database = "patient_care_portal"
	cfg.Mongo.MaxPoolSize = 20
	cfg.Mongo.ConnectTimeout = 10 * time.Second
	cfg.Mongo.ServerSelectionTimeout = 5 * time.Second

	cfg.Postgres.Host = "localhost"
	cfg.Postgres.Port = 5432
	cfg.Postgres.User = "postgres"
	cfg.Postgres.Name = "patient_care_portal"
	cfg.Postgres.SSLMode = "disable"
	cfg.Postgres.MaxPoolSize = 10
	cfg.Postgres.ConnTimeout = 5 * time.Second
	cfg.Postgres.MigrationsDir = "internal/db/migrations"

	cfg.Elasticsearch.IndexPrefix = "pcp_audit_"

	cfg.Auth.TokenExpiry = 12 * time.Hour

	cfg.Registration.MaxAttempts = 100

	cfg.RateLimit.RPS = 30
	cfg.RateLimit.Burst = 60

	cfg.Logging.Level = "info"

	cfg.Alerts.ClientBuffer = 64
	return cfg
}

var configPaths = []string{
	"./configs/config.yaml",
	"../configs/config.yaml",
	"/etc/patient-care-portal/config.yaml",
}

// Load reads the first config file found in the usual locations, applies
// environment overrides and validates the result.
func Load() (*Config, error) {
	for _, path := range configPaths {
		absPath, err := filepath.Abs(path)
		if err != nil {
			continue
		}
		if _, err := os.Stat(absPath); err != nil {
			continue
		}
		return LoadFile(absPath)
	}

	cfg := Default()
	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile reads a single YAML file on top of Default.
func LoadFile(path string) (*Config, error) {
	configFile, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(configFile, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays environment variables. PCP_* names take precedence; the
// bare names are the ones the original deployment used.
func applyEnv(cfg *Config) {
	v := viper.New()
	bind := func(key string, envs ...string) {
		_ = v.BindEnv(append([]string{key}, envs...)...)
	}

	bind("server.port", "PCP_SERVER_PORT", "PORT")
	bind("server.mode", "PCP_SERVER_MODE", "GIN_MODE")
	bind("server.cors_origins", "PCP_CORS_ORIGINS", "FRONTEND_URL")
	bind("storage.backend", "PCP_STORAGE_BACKEND")
	bind("mongo.uri", "PCP_MONGO_URI", "MONGO_URI")
	bind("mongo.database", "PCP_MONGO_DATABASE")
	bind("postgres.host", "PCP_POSTGRES_HOST", "POSTGRES_HOST")
	bind("postgres.port", "PCP_POSTGRES_PORT", "POSTGRES_PORT")
	bind("postgres.user", "PCP_POSTGRES_USER", "POSTGRES_USER")
	bind("postgres.password", "PCP_POSTGRES_PASSWORD", "POSTGRES_PASSWORD")
	bind("postgres.name", "PCP_POSTGRES_DB", "POSTGRES_DB")
	bind("postgres.sslmode", "PCP_POSTGRES_SSLMODE", "POSTGRES_SSLMODE")
	bind("elasticsearch.addresses", "PCP_ELASTICSEARCH_URL", "ELASTICSEARCH_URL")
	bind("elasticsearch.username", "PCP_ELASTICSEARCH_USERNAME", "ELASTICSEARCH_USERNAME")
	bind("elasticsearch.password", "PCP_ELASTICSEARCH_PASSWORD", "ELASTICSEARCH_PASSWORD")
	bind("auth.enabled", "PCP_AUTH_ENABLED")
	bind("auth.jwt_secret", "PCP_JWT_SECRET", "JWT_SECRET")
	bind("registration.max_attempts", "PCP_REGISTRATION_MAX_ATTEMPTS")
	bind("logging.level", "PCP_LOG_LEVEL")
	bind("logging.development", "PCP_LOG_DEVELOPMENT")

	if v.IsSet("server.port") {
		cfg.Server.Port = v.GetInt("server.port")
	}
	if v.IsSet("server.mode") {
		cfg.Server.Mode = v.GetString("server.mode")
	}
	if v.IsSet("server.cors_origins") {
		cfg.Server.CORSOrigins = splitList(v.GetString("server.cors_origins"))
	}
	if v.IsSet("storage.backend") {
		cfg.Storage.Backend = v.GetString("storage.backend")
	}
	if v.IsSet("mongo.uri") {
		cfg.Mongo.URI = v.GetString("mongo.uri")
	}
	if v.IsSet("mongo.database") {
		cfg.Mongo.Database = v.GetString("mongo.database")
	}
	if v.IsSet("postgres.host") {
		cfg.Postgres.Host = v.GetString("postgres.host")
	}
	if v.IsSet("postgres.port") {
		cfg.Postgres.Port = v.GetInt("postgres.port")
	}
	if v.IsSet("postgres.user") {
		cfg.Postgres.User = v.GetString("postgres.user")
	}
	if v.IsSet("postgres.password") {
		cfg.Postgres.Password = v.GetString("postgres.password")
	}
	if v.IsSet("postgres.name") {
		cfg.Postgres.Name = v.GetString("postgres.name")
	}
	if v.IsSet("postgres.sslmode") {
		cfg.Postgres.SSLMode = v.GetString("postgres.sslmode")
	}
	if v.IsSet("elasticsearch.addresses") {
		cfg.Elasticsearch.Addresses = splitList(v.GetString("elasticsearch.addresses"))
	}
	if v.IsSet("elasticsearch.username") {
		cfg.Elasticsearch.Username = v.GetString("elasticsearch.username")
	}
	if v.IsSet("elasticsearch.password") {
		cfg.Elasticsearch.Password = v.GetString("elasticsearch.password")
	}
	if v.IsSet("auth.enabled") {
		cfg.Auth.Enabled = v.GetBool("auth.enabled")
	}
	if v.IsSet("auth.jwt_secret") {
		cfg.Auth.JWTSecret = v.GetString("auth.jwt_secret")
	}
	if v.IsSet("registration.max_attempts") {
		cfg.Registration.MaxAttempts = v.GetInt("registration.max_attempts")
	}
	if v.IsSet("logging.level") {
		cfg.Logging.Level = v.GetString("logging.level")
	}
	if v.IsSet("logging.development") {
		cfg.Logging.Development = v.GetBool("logging.development")
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate checks that the configuration can start a server.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendMongo:
		if c.Mongo.URI == "" || c.Mongo.Database == "" {
			return errors.New("mongo.uri and mongo.database are required for the mongo backend")
		}
	case BackendPostgres:
		if c.Postgres.Host == "" || c.Postgres.Name == "" {
			return errors.New("postgres.host and postgres.name are required for the postgres backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Auth.Enabled && c.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required when auth is enabled")
	}
	if c.Registration.MaxAttempts <= 0 {
		return errors.New("registration.max_attempts must be positive")
	}
	if c.Server.TLS.Enabled && (c.Server.TLS.CertFile == "" || c.Server.TLS.KeyFile == "") {
		return errors.New("server.tls.cert_file and server.tls.key_file are required when TLS is enabled")
	}
	return nil
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
