package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	SourceKindDrive = "drive"
	SourceKindLocal = "local"

	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

// Config holds all application configuration
type Config struct {
	Source   SourceConfig   `yaml:"source"`
	LLM      LLMConfig      `yaml:"llm"`
	Storage  StorageConfig  `yaml:"storage"`
	Database DatabaseConfig `yaml:"database"`
	Server   ServerConfig   `yaml:"server"`
	Schedule ScheduleConfig `yaml:"schedule"`
	Log      LogConfig      `yaml:"log"`
}

// SourceConfig selects where PDFs are listed from.
type SourceConfig struct {
	Kind             string `yaml:"kind"`
	DriveCredentials string `yaml:"driveCredentials"` // inline service-account JSON or a path to it
	DriveFolderID    string `yaml:"driveFolderId"`
	LocalDir         string `yaml:"localDir"`
}

// LLMConfig holds LLM-related configuration
type LLMConfig struct {
	Provider    string        `yaml:"provider"`
	APIKey      string        `yaml:"apiKey"`
	Model       string        `yaml:"model"`
	BaseURL     string        `yaml:"baseUrl"`
	MaxTokens   int           `yaml:"maxTokens"`
	Temperature float32       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
}

// StorageConfig holds the on-disk locations of generated artifacts.
type StorageConfig struct {
	ControlFile string `yaml:"controlFile"`
	ReportsDir  string `yaml:"reportsDir"`
	RenderDir   string `yaml:"renderDir"`
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	DSN              string        `yaml:"dsn"`
	SQLitePath       string        `yaml:"sqlitePath"`
	MaxConns         int32         `yaml:"maxConns"`
	MinConns         int32         `yaml:"minConns"`
	MaxConnLifetime  time.Duration `yaml:"maxConnLifetime"`
	MaxConnIdleTime  time.Duration `yaml:"maxConnIdleTime"`
	DialTimeout      time.Duration `yaml:"dialTimeout"`
	StatementTimeout time.Duration `yaml:"statementTimeout"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"httpAddr"`
	GRPCAddr string `yaml:"grpcAddr"`
}

// ScheduleConfig drives the daemon's polling.
type ScheduleConfig struct {
	Interval      time.Duration `yaml:"interval"`
	RunOnStart    bool          `yaml:"runOnStart"`
	Watch         bool          `yaml:"watch"`
	WatchDebounce time.Duration `yaml:"watchDebounce"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

func defaultConfig() *Config {
	return &Config{
		Source: SourceConfig{Kind: SourceKindDrive},
		LLM: LLMConfig{
			Provider:  ProviderAnthropic,
			MaxTokens: 4000,
			Timeout:   120 * time.Second,
		},
		Storage: StorageConfig{
			ControlFile: "control.json",
			ReportsDir:  "data/reports",
			RenderDir:   "web/reports",
		},
		Database: DatabaseConfig{
			SQLitePath:      "data/catalog.db",
			MaxConns:        10,
			MinConns:        1,
			MaxConnLifetime: 30 * time.Minute,
			MaxConnIdleTime: 5 * time.Minute,
			DialTimeout:     3 * time.Second,
		},
		Server: ServerConfig{
			HTTPAddr: ":8081",
			GRPCAddr: ":8080",
		},
		Schedule: ScheduleConfig{
			Interval:      15 * time.Minute,
			RunOnStart:    true,
			WatchDebounce: 2 * time.Second,
		},
		Log: LogConfig{Level: "info"},
	}
}

// LoadConfig builds the configuration from defaults, an optional YAML file
// named by CONFIG_FILE, and finally environment variables.
func LoadConfig() (*Config, error) {
	cfg := defaultConfig()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadYAML(path, cfg); err != nil {
			return nil, err
		}
	}
	applyEnv(cfg)
	return cfg, nil
}

func loadYAML(path string, cfg *Config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return NewAppError("CONFIG_ERROR", "read "+path, err)
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return NewAppError("CONFIG_ERROR", "parse "+path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.Source.Kind = strings.ToLower(getEnv("SOURCE_KIND", cfg.Source.Kind))
	cfg.Source.DriveCredentials = getEnv("GOOGLE_DRIVE_CREDENTIALS", cfg.Source.DriveCredentials)
	cfg.Source.DriveFolderID = getEnv("GOOGLE_DRIVE_FOLDER_ID", cfg.Source.DriveFolderID)
	cfg.Source.LocalDir = getEnv("SOURCE_DIR", cfg.Source.LocalDir)

	cfg.LLM.Provider = strings.ToLower(getEnv("LLM_PROVIDER", cfg.LLM.Provider))
	switch cfg.LLM.Provider {
	case ProviderOpenAI:
		cfg.LLM.APIKey = getEnv("OPENAI_API_KEY", cfg.LLM.APIKey)
		cfg.LLM.Model = getEnv("OPENAI_MODEL", cfg.LLM.Model)
		cfg.LLM.BaseURL = getEnv("OPENAI_BASE_URL", cfg.LLM.BaseURL)
	default:
		cfg.LLM.APIKey = getEnv("CLAUDE_API_KEY", cfg.LLM.APIKey)
		cfg.LLM.Model = getEnv("CLAUDE_MODEL", cfg.LLM.Model)
		cfg.LLM.BaseURL = getEnv("CLAUDE_BASE_URL", cfg.LLM.BaseURL)
	}
	cfg.LLM.MaxTokens = getEnvAsInt("LLM_MAX_TOKENS", cfg.LLM.MaxTokens)
	cfg.LLM.Temperature = getEnvAsFloat32("LLM_TEMPERATURE", cfg.LLM.Temperature)
	cfg.LLM.Timeout = getEnvAsDuration("LLM_TIMEOUT", cfg.LLM.Timeout)

	cfg.Storage.ControlFile = getEnv("CONTROL_FILE", cfg.Storage.ControlFile)
	cfg.Storage.ReportsDir = getEnv("REPORTS_DATA_DIR", cfg.Storage.ReportsDir)
	cfg.Storage.RenderDir = getEnv("RENDER_DIR", cfg.Storage.RenderDir)

	cfg.Database.DSN = getEnv("DB_URL", cfg.Database.DSN)
	cfg.Database.SQLitePath = getEnv("SQLITE_PATH", cfg.Database.SQLitePath)
	cfg.Database.MaxConns = getEnvAsInt32("DB_MAX_CONNS", cfg.Database.MaxConns)
	cfg.Database.MinConns = getEnvAsInt32("DB_MIN_CONNS", cfg.Database.MinConns)
	cfg.Database.MaxConnLifetime = getEnvAsDuration("DB_MAX_CONN_LIFETIME", cfg.Database.MaxConnLifetime)
	cfg.Database.MaxConnIdleTime = getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", cfg.Database.MaxConnIdleTime)
	cfg.Database.DialTimeout = getEnvAsDuration("DB_DIAL_TIMEOUT", cfg.Database.DialTimeout)
	cfg.Database.StatementTimeout = getEnvAsDuration("DB_STATEMENT_TIMEOUT", cfg.Database.StatementTimeout)

	cfg.Server.HTTPAddr = getEnv("HTTP_ADDR", cfg.Server.HTTPAddr)
	cfg.Server.GRPCAddr = getEnv("GRPC_ADDR", cfg.Server.GRPCAddr)

	cfg.Schedule.Interval = getEnvAsDuration("POLL_INTERVAL", cfg.Schedule.Interval)
	cfg.Schedule.RunOnStart = getEnvAsBool("RUN_ON_START", cfg.Schedule.RunOnStart)
	cfg.Schedule.Watch = getEnvAsBool("WATCH_SOURCE", cfg.Schedule.Watch)
	cfg.Schedule.WatchDebounce = getEnvAsDuration("WATCH_DEBOUNCE", cfg.Schedule.WatchDebounce)

	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// ValidateCredentials checks the settings a run cannot start without.
func (c *Config) ValidateCredentials() error {
	if err := c.ValidateLLMCredentials(); err != nil {
		return err
	}
	return c.ValidateSourceCredentials()
}

// ValidateLLMCredentials checks the model provider settings alone.
func (c *Config) ValidateLLMCredentials() error {
	switch c.LLM.Provider {
	case ProviderAnthropic:
		if c.LLM.APIKey == "" {
			return NewAppError("CONFIG_ERROR", "CLAUDE_API_KEY is required", ErrMissingCredentials)
		}
	case ProviderOpenAI:
		if c.LLM.APIKey == "" {
			return NewAppError("CONFIG_ERROR", "OPENAI_API_KEY is required", ErrMissingCredentials)
		}
	default:
		return NewAppError("CONFIG_ERROR", fmt.Sprintf("unknown LLM_PROVIDER %q", c.LLM.Provider), ErrInvalidInput)
	}
	return nil
}

// ValidateSourceCredentials checks the file source settings alone.
func (c *Config) ValidateSourceCredentials() error {
	switch c.Source.Kind {
	case SourceKindDrive:
		if c.Source.DriveCredentials == "" {
			return NewAppError("CONFIG_ERROR", "GOOGLE_DRIVE_CREDENTIALS is required", ErrMissingCredentials)
		}
	case SourceKindLocal:
		if c.Source.LocalDir == "" {
			return NewAppError("CONFIG_ERROR", "SOURCE_DIR is required when SOURCE_KIND=local", ErrInvalidInput)
		}
	default:
		return NewAppError("CONFIG_ERROR", fmt.Sprintf("unknown SOURCE_KIND %q", c.Source.Kind), ErrInvalidInput)
	}
	return nil
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if err := c.ValidateCredentials(); err != nil {
		return err
	}
	if c.Storage.ControlFile == "" {
		return NewAppError("CONFIG_ERROR", "CONTROL_FILE is required", ErrInvalidInput)
	}
	if c.Storage.ReportsDir == "" || c.Storage.RenderDir == "" {
		return NewAppError("CONFIG_ERROR", "REPORTS_DATA_DIR and RENDER_DIR are required", ErrInvalidInput)
	}
	if c.Schedule.Interval < 0 {
		return NewAppError("CONFIG_ERROR", "POLL_INTERVAL must not be negative", ErrInvalidInput)
	}
	return nil
}
