package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/multierr"
)

type Config struct {
	ListenAddr     string
	Workers        int
	QueueBound     int
	ReadBufferSize int
	ErrorLogPath   string
	DiagDBPath     string
	DiagRetention  time.Duration
	DiagWebhookURL string
	AdminAddr      string
	AdminAPIKeys   []string
	ConnRateLimit  int
	LogLevel       string
}

// Load reads the TODOGATE_* environment variables. The result is not
// validated, since flags may still override it; call Validate afterwards.
func Load() (*Config, error) {
	cfg := &Config{
		ListenAddr:     getEnv("TODOGATE_LISTEN_ADDR", "127.0.0.1:8080"),
		ErrorLogPath:   getEnvAllowEmpty("TODOGATE_ERROR_LOG", "error.log"),
		DiagDBPath:     getEnv("TODOGATE_DIAG_DB", ""),
		DiagWebhookURL: getEnv("TODOGATE_DIAG_WEBHOOK_URL", ""),
		AdminAddr:      getEnv("TODOGATE_ADMIN_ADDR", ""),
		AdminAPIKeys:   splitKeys(getEnv("TODOGATE_ADMIN_API_KEYS", "")),
		LogLevel:       getEnv("TODOGATE_LOG_LEVEL", "info"),
	}

	var err error
	if cfg.Workers, err = getEnvInt("TODOGATE_WORKERS", 4); err != nil {
		return nil, fmt.Errorf("TODOGATE_WORKERS: %w", err)
	}
	if cfg.QueueBound, err = getEnvInt("TODOGATE_QUEUE_BOUND", 0); err != nil {
		return nil, fmt.Errorf("TODOGATE_QUEUE_BOUND: %w", err)
	}
	if cfg.ReadBufferSize, err = getEnvInt("TODOGATE_READ_BUFFER", 1024); err != nil {
		return nil, fmt.Errorf("TODOGATE_READ_BUFFER: %w", err)
	}
	if cfg.ConnRateLimit, err = getEnvInt("TODOGATE_CONN_RATE_LIMIT", 0); err != nil {
		return nil, fmt.Errorf("TODOGATE_CONN_RATE_LIMIT: %w", err)
	}
	retentionHours, err := getEnvInt("TODOGATE_DIAG_RETENTION_HOURS", 168)
	if err != nil {
		return nil, fmt.Errorf("TODOGATE_DIAG_RETENTION_HOURS: %w", err)
	}
	cfg.DiagRetention = time.Duration(retentionHours) * time.Hour
	return cfg, nil
}

// AddFlags registers command-line flags whose defaults are the current
// values, so flags given on the command line override the environment.
func (c *Config) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.ListenAddr, "listen", c.ListenAddr, "address of the todo protocol listener")
	fs.IntVar(&c.Workers, "workers", c.Workers, "number of worker goroutines")
	fs.IntVar(&c.QueueBound, "queue-bound", c.QueueBound, "maximum pending connections, 0 for unbounded")
	fs.IntVar(&c.ReadBufferSize, "read-buffer", c.ReadBufferSize, "bytes read from each connection")
	fs.StringVar(&c.ErrorLogPath, "error-log", c.ErrorLogPath, "diagnostics log file, empty to disable")
	fs.StringVar(&c.DiagDBPath, "diag-db", c.DiagDBPath, "SQLite diagnostics database, empty to disable")
	fs.DurationVar(&c.DiagRetention, "diag-retention", c.DiagRetention, "age after which stored diagnostics are deleted, 0 keeps them")
	fs.StringVar(&c.DiagWebhookURL, "diag-webhook", c.DiagWebhookURL, "URL that receives diagnostics as JSON, empty to disable")
	fs.StringVar(&c.AdminAddr, "admin-listen", c.AdminAddr, "address of the admin HTTP endpoint, empty to disable")
	fs.StringSliceVar(&c.AdminAPIKeys, "admin-api-keys", c.AdminAPIKeys, "API keys accepted by the admin endpoint")
	fs.IntVar(&c.ConnRateLimit, "conn-rate-limit", c.ConnRateLimit, "new connections per second per IP, 0 for no limit")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "log level: debug, info, warn or error")
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var err error
	if c.ListenAddr == "" {
		err = multierr.Append(err, errors.New("listen address must not be empty"))
	}
	if c.Workers < 1 {
		err = multierr.Append(err, errors.New("workers must be > 0"))
	}
	if c.QueueBound < 0 {
		err = multierr.Append(err, errors.New("queue bound must be >= 0"))
	}
	if c.ReadBufferSize < 1 {
		err = multierr.Append(err, errors.New("read buffer must be > 0"))
	}
	if c.DiagRetention < 0 {
		err = multierr.Append(err, errors.New("diagnostics retention must be >= 0"))
	}
	if c.ConnRateLimit < 0 {
		err = multierr.Append(err, errors.New("connection rate limit must be >= 0"))
	}
	if _, lerr := c.SlogLevel(); lerr != nil {
		err = multierr.Append(err, lerr)
	}
	return err
}

// SlogLevel parses LogLevel.
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("log level %q: %w", c.LogLevel, err)
	}
	return level, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvAllowEmpty is getEnv, except a variable set to "" stays empty.
func getEnvAllowEmpty(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid integer %q", v)
	}
	return n, nil
}

func splitKeys(raw string) []string {
	var keys []string
	for _, k := range strings.Split(raw, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}
