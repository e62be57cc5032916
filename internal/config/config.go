package config

import (
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const (
	ConfigPathEnv = "DOCFLOW_CONFIG"

	databaseURLEnv   = "DATABASE_URL"
	mongoURLEnv      = "MONGODB_URL"
	openRouterKeyEnv = "OPENROUTER_API_KEY"
	openRouterModel  = "OPENROUTER_MODEL"
	portEnv          = "PORT"
	appEnv           = "APP_ENV"
	nodeEnv          = "NODE_ENV"
)

type Configuration struct {
	Environment string           `yaml:"environment"`
	Server      ServerConfig     `yaml:"server"`
	Security    SecurityConfig   `yaml:"security"`
	Logging     LoggingConfig    `yaml:"logging"`
	Database    DatabaseConfig   `yaml:"database"`
	Mongo       MongoConfig      `yaml:"mongo"`
	OpenRouter  OpenRouterConfig `yaml:"openrouter"`
	Scheduler   SchedulerConfig  `yaml:"scheduler"`
}

type ServerConfig struct {
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes"`
}

type SecurityConfig struct {
	// GenerateRequestsPerWindow bounds AI generation calls per caller. Zero disables the limit.
	GenerateRequestsPerWindow int           `yaml:"generate_requests_per_window"`
	GenerateWindow            time.Duration `yaml:"generate_window"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type DatabaseConfig struct {
	// URL, when set, is used verbatim as the DSN.
	URL             string `yaml:"url"`
	Host            string `yaml:"host"`
	Port            string `yaml:"port"`
	Username        string `yaml:"username"`
	Password        string `yaml:"password"`
	Name            string `yaml:"name"`
	SSLMode         string `yaml:"ssl_mode"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	ConnMaxLifetime int    `yaml:"conn_max_lifetime"`
	Seed            bool   `yaml:"seed"`
}

type MongoConfig struct {
	URL        string `yaml:"url"`
	Database   string `yaml:"database"`
	Collection string `yaml:"collection"`
}

type OpenRouterConfig struct {
	BaseURL  string        `yaml:"base_url"`
	APIKey   string        `yaml:"api_key"`
	Model    string        `yaml:"model"`
	Timeout  time.Duration `yaml:"timeout"`
	SiteURL  string        `yaml:"site_url"`
	SiteName string        `yaml:"site_name"`
}

type SchedulerConfig struct {
	Enabled               bool          `yaml:"enabled"`
	ExpireApprovalsEvery  time.Duration `yaml:"expire_approvals_every"`
	PublishScheduledEvery time.Duration `yaml:"publish_scheduled_every"`
}

var (
	config     *Configuration
	configLock sync.RWMutex
)

// DSN returns the Postgres connection string.
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		d.Host, d.Username, d.Password, d.Name, d.Port, d.SSLMode)
}

// IsProduction reports whether error details must be hidden.
func (c *Configuration) IsProduction() bool {
	return c.Environment == "production"
}

// LoadConfig layers the YAML file at filePath (optional) and the environment
// over the defaults, then installs the result as the process configuration.
func LoadConfig(filePath string) (*Configuration, error) {
	cfg := defaultConfig()

	if filePath != "" {
		raw, err := os.ReadFile(filePath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode config file: %w", err)
		}
	}

	cfg.applyEnvOverrides()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	configLock.Lock()
	config = cfg
	configLock.Unlock()
	return cfg, nil
}

func GetConfig() *Configuration {
	configLock.RLock()
	defer configLock.RUnlock()
	return config
}

// InitializeDefaultConfig installs defaults plus environment overrides.
func InitializeDefaultConfig() *Configuration {
	cfg := defaultConfig()
	cfg.applyEnvOverrides()

	configLock.Lock()
	defer configLock.Unlock()
	config = cfg
	return config
}

func (c *Configuration) applyEnvOverrides() {
	if v := os.Getenv(databaseURLEnv); v != "" {
		c.Database.URL = v
	}
	if v := os.Getenv(mongoURLEnv); v != "" {
		c.Mongo.URL = v
	}
	if v := os.Getenv(openRouterKeyEnv); v != "" {
		c.OpenRouter.APIKey = v
	}
	if v := os.Getenv(openRouterModel); v != "" {
		c.OpenRouter.Model = v
	}
	if v := os.Getenv(portEnv); v != "" {
		c.Server.Port = v
	}
	if v := os.Getenv(appEnv); v != "" {
		c.Environment = v
	} else if v := os.Getenv(nodeEnv); v != "" {
		c.Environment = v
	}
}

func (c *Configuration) validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server.port must not be empty")
	}
	if c.Database.URL == "" && c.Database.Host == "" {
		return fmt.Errorf("database url or host must be configured")
	}
	if c.Security.GenerateRequestsPerWindow < 0 {
		return fmt.Errorf("security.generate_requests_per_window must not be negative")
	}
	return nil
}

func defaultConfig() *Configuration {
	return &Configuration{
		Environment: "development",
		Server: ServerConfig{
			Port:            "4000",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    5 * time.Minute,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			MaxBodyBytes:    10 << 20,
		},
		Security: SecurityConfig{
			GenerateRequestsPerWindow: 5,
			GenerateWindow:            time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            "5432",
			Username:        "dms_user",
			Password:        "dms_password",
			Name:            "dms",
			SSLMode:         "disable",
			MaxIdleConns:    10,
			MaxOpenConns:    100,
			ConnMaxLifetime: 300,
			Seed:            true,
		},
		Mongo: MongoConfig{
			Database:   "dms_documents",
			Collection: "documents",
		},
		OpenRouter: OpenRouterConfig{
			BaseURL:  "https://openrouter.ai/api/v1",
			Model:    "anthropic/claude-3-haiku",
			Timeout:  3 * time.Minute,
			SiteURL:  "http://localhost:3000",
			SiteName: "Document Generator",
		},
		Scheduler: SchedulerConfig{
			Enabled:               true,
			ExpireApprovalsEvery:  time.Hour,
			PublishScheduledEvery: time.Minute,
		},
	}
}

// LogConfig logs the active configuration with secrets redacted.
func LogConfig(logger *zap.Logger) {
	configLock.RLock()
	defer configLock.RUnlock()
	if config == nil {
		return
	}

	redacted := *config
	redacted.Database.Password = "[REDACTED]"
	if redacted.OpenRouter.APIKey != "" {
		redacted.OpenRouter.APIKey = "[REDACTED]"
	}

	logger.Info("Application configuration",
		zap.String("environment", redacted.Environment),
		zap.String("port", redacted.Server.Port),
		zap.Duration("read_timeout", redacted.Server.ReadTimeout),
		zap.Duration("write_timeout", redacted.Server.WriteTimeout),
		zap.Bool("database_url_set", redacted.Database.URL != ""),
		zap.String("database_host", redacted.Database.Host),
		zap.String("database_name", redacted.Database.Name),
		zap.Bool("mongo_enabled", redacted.Mongo.URL != ""),
		zap.String("openrouter_model", redacted.OpenRouter.Model),
		zap.Bool("openrouter_key_set", config.OpenRouter.APIKey != ""),
		zap.Bool("scheduler_enabled", redacted.Scheduler.Enabled),
	)
}
