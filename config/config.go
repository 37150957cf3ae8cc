package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Generation constants
const (
	DefaultBaseURL    = "https://dashscope.aliyuncs.com/compatible-mode/v1"
	DefaultModel      = "qwen-plus"
	DefaultListenAddr = ":8089"
	DefaultBucket     = "planner"
)

// Config holds the service configuration
type Config struct {
	// Server settings
	ListenAddr string `yaml:"listenAddr"`
	LogFormat  string `yaml:"logFormat"`

	// Generation backend
	BackendProvider string        `yaml:"backendProvider"`
	BaseURL         string        `yaml:"baseURL"`
	APIKey          string        `yaml:"-"`
	Model           string        `yaml:"model"`
	Temperature     float64       `yaml:"temperature"`
	Timeout         time.Duration `yaml:"timeout"`
	MaxRetries      int           `yaml:"maxRetries"`
	RetryBackoff    time.Duration `yaml:"retryBackoff"`
	StageDelay      time.Duration `yaml:"stageDelay"`

	// Task and plan records
	TaskTTL    time.Duration `yaml:"taskTTL"`
	NATSURL    string        `yaml:"natsURL"`
	NATSBucket string        `yaml:"natsBucket"`

	DatabaseURL string `yaml:"-"`
	AutoMigrate bool   `yaml:"autoMigrate"`
}

// Defaults returns the configuration used when nothing is set
func Defaults() *Config {
	return &Config{
		ListenAddr:      DefaultListenAddr,
		LogFormat:       "text",
		BackendProvider: "openai",
		BaseURL:         DefaultBaseURL,
		Model:           DefaultModel,
		Temperature:     0.7,
		Timeout:         5 * time.Minute,
		MaxRetries:      3,
		RetryBackoff:    3 * time.Second,
		StageDelay:      500 * time.Millisecond,
		TaskTTL:         24 * time.Hour,
		NATSBucket:      DefaultBucket,
		AutoMigrate:     true,
	}
}

// Load builds the config from defaults, an optional YAML file named by
// PLANNER_CONFIG, and environment variables (a .env file is read first).
// Environment variables win over the file. Secrets are env-only.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warnf("Failed to read .env: %v", err)
	}

	cfg := Defaults()

	if path := os.Getenv("PLANNER_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.ListenAddr = getEnv("LISTEN_ADDR", cfg.ListenAddr)
	cfg.LogFormat = getEnv("LOG_FORMAT", cfg.LogFormat)
	cfg.BackendProvider = getEnv("BACKEND_PROVIDER", cfg.BackendProvider)
	cfg.BaseURL = getEnv("AI_BASE_URL", cfg.BaseURL)
	cfg.APIKey = os.Getenv("AI_API_KEY")
	cfg.Model = getEnv("AI_MODEL", cfg.Model)
	cfg.Temperature = getEnvFloat("AI_TEMPERATURE", cfg.Temperature)
	cfg.Timeout = getEnvDuration("AI_TIMEOUT", cfg.Timeout)
	cfg.MaxRetries = getEnvInt("AI_MAX_RETRIES", cfg.MaxRetries)
	cfg.RetryBackoff = getEnvDuration("AI_RETRY_BACKOFF", cfg.RetryBackoff)
	cfg.StageDelay = getEnvDuration("STAGE_DELAY", cfg.StageDelay)
	cfg.TaskTTL = getEnvDuration("TASK_TTL", cfg.TaskTTL)
	cfg.NATSURL = getEnv("NATS_URL", cfg.NATSURL)
	cfg.NATSBucket = getEnv("NATS_BUCKET", cfg.NATSBucket)
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.AutoMigrate = getEnvBool("DB_MIGRATE", cfg.AutoMigrate)

	if cfg.MaxRetries < 1 {
		return nil, fmt.Errorf("AI_MAX_RETRIES must be at least 1, got %d", cfg.MaxRetries)
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	switch strings.ToLower(val) {
	case "true", "1":
		return true
	case "false", "0":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		log.Warnf("Ignoring invalid %s=%q", key, val)
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		log.Warnf("Ignoring invalid %s=%q", key, val)
		return fallback
	}
	return f
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		log.Warnf("Ignoring invalid %s=%q", key, val)
		return fallback
	}
	return d
}
