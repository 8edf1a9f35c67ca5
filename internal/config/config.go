package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the console and worker settings.
type Config struct {
	// Remote classification API
	Backend BackendConfig `yaml:"backend"`

	// Console HTTP server
	Server ServerConfig `yaml:"server"`

	DatabaseURL string `yaml:"database_url"`
	RedisAddr   string `yaml:"redis_addr"`

	Storage StorageConfig `yaml:"storage"`

	Worker WorkerConfig `yaml:"worker"`

	Logging LoggingConfig `yaml:"logging"`
}

type BackendConfig struct {
	URL              string `yaml:"url"`
	Timeout          string `yaml:"timeout"`
	PredictionsLimit int    `yaml:"predictions_limit"`
}

type ServerConfig struct {
	Addr           string   `yaml:"addr"`
	APIToken       string   `yaml:"api_token"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	MaxUploadBytes int64    `yaml:"max_upload_bytes"`
	SessionTTL     string   `yaml:"session_ttl"`
}

// StorageConfig points at the S3-compatible bucket (MinIO in development).
type StorageConfig struct {
	Endpoint  string `yaml:"endpoint"`
	Bucket    string `yaml:"bucket"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Region    string `yaml:"region"`
}

type WorkerConfig struct {
	Concurrency int `yaml:"concurrency"`
	MaxRetry    int `yaml:"max_retry"`
}

type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

func DefaultConfig() *Config {
	return &Config{
		Backend: BackendConfig{
			URL:              "http://localhost:8000",
			Timeout:          "30s",
			PredictionsLimit: 200,
		},
		Server: ServerConfig{
			Addr:           ":8080",
			AllowedOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
			MaxUploadBytes: 10 << 20,
			SessionTTL:     "12h",
		},
		RedisAddr: "localhost:6379",
		Storage: StorageConfig{
			Bucket: "mri-console",
			Region: "us-east-1",
		},
		Worker: WorkerConfig{
			Concurrency: 5,
			MaxRetry:    3,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads the YAML file at path over the defaults, then applies
// environment overrides. An empty path or a missing file yields defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() error {
	str := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	str("MRI_API_URL", &c.Backend.URL)
	str("BACKEND_TIMEOUT", &c.Backend.Timeout)
	str("LISTEN_ADDR", &c.Server.Addr)
	str("API_TOKEN", &c.Server.APIToken)
	str("SESSION_TTL", &c.Server.SessionTTL)
	str("DATABASE_URL", &c.DatabaseURL)
	str("REDIS_ADDR", &c.RedisAddr)
	str("MINIO_ENDPOINT", &c.Storage.Endpoint)
	str("MINIO_BUCKET", &c.Storage.Bucket)
	str("MINIO_ACCESS_KEY", &c.Storage.AccessKey)
	str("MINIO_SECRET_KEY", &c.Storage.SecretKey)
	str("LOG_LEVEL", &c.Logging.Level)

	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		c.Server.AllowedOrigins = origins
	}
	if v := os.Getenv("MAX_UPLOAD_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("MAX_UPLOAD_BYTES: %w", err)
		}
		c.Server.MaxUploadBytes = n
	}
	if v := os.Getenv("WORKER_CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("WORKER_CONCURRENCY: %w", err)
		}
		c.Worker.Concurrency = n
	}
	return nil
}

// GetBackendTimeout returns the backend HTTP timeout as a duration.
func (c *Config) GetBackendTimeout() time.Duration {
	d, err := time.ParseDuration(c.Backend.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// GetSessionTTL returns how long an idle session keeps its result.
func (c *Config) GetSessionTTL() time.Duration {
	d, err := time.ParseDuration(c.Server.SessionTTL)
	if err != nil {
		return 12 * time.Hour
	}
	return d
}

func (c *Config) Validate() error {
	if c.Backend.URL == "" {
		return fmt.Errorf("backend url not configured (set MRI_API_URL)")
	}
	if c.Backend.PredictionsLimit <= 0 {
		return fmt.Errorf("backend.predictions_limit must be positive, got %d", c.Backend.PredictionsLimit)
	}
	if c.Server.MaxUploadBytes <= 0 {
		return fmt.Errorf("server.max_upload_bytes must be positive, got %d", c.Server.MaxUploadBytes)
	}
	if c.Worker.Concurrency <= 0 {
		return fmt.Errorf("worker.concurrency must be positive, got %d", c.Worker.Concurrency)
	}
	if c.Worker.MaxRetry < 0 {
		return fmt.Errorf("worker.max_retry cannot be negative, got %d", c.Worker.MaxRetry)
	}
	return nil
}

// ArchiveEnabled reports whether a database is configured for archiving.
func (c *Config) ArchiveEnabled() bool {
	return c.DatabaseURL != ""
}

// StorageEnabled reports whether scans and reports can be written to S3.
func (c *Config) StorageEnabled() bool {
	return c.Storage.Endpoint != "" && c.Storage.Bucket != ""
}
