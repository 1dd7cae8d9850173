package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Job store backends.
const (
	JobStoreMemory = "memory"
	JobStoreSQLite = "sqlite"
	JobStoreRedis  = "redis"
)

// Mail transports.
const (
	MailTransportLog  = "log"
	MailTransportAMQP = "amqp"
)

// Config captures environment driven configuration values for the internship service.
type Config struct {
	HTTPPort int
	LogLevel slog.Level

	JobStore    string
	SQLitePath  string
	RedisAddr   string
	RedisPrefix string

	MailTransport string
	AMQPURL       string

	SchedulerWorkers  int
	PollInterval      time.Duration
	MaxRetries        int
	FallbackRecipient string

	SessionTTL time.Duration
	AdminEmail string
	AdminToken string
}

// Load reads an optional .env file from the working directory and then
// parses the process environment. Variables already set in the environment
// win over the file.
func Load() (Config, error) {
	_ = godotenv.Load()
	return Parse(os.LookupEnv)
}

// LoadFile parses the process environment with path as a fallback source.
// Unlike Load, a missing file is an error.
func LoadFile(path string) (Config, error) {
	values, err := godotenv.Read(path)
	if err != nil {
		return Config{}, fmt.Errorf("read env file %s: %w", path, err)
	}
	return Parse(func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := values[key]
		return v, ok
	})
}

// Parse builds a Config from lookup, applying defaults for optional values
// and reporting every missing or invalid variable at once.
func Parse(lookup func(string) (string, bool)) (Config, error) {
	cfg := Config{
		HTTPPort:         8080,
		LogLevel:         slog.LevelInfo,
		JobStore:         JobStoreMemory,
		SQLitePath:       "internship.db",
		RedisPrefix:      "internship:jobs:",
		MailTransport:    MailTransportLog,
		SchedulerWorkers: 4,
		PollInterval:     time.Second,
		MaxRetries:       3,
		SessionTTL:       24 * time.Hour,
	}

	get := func(key string) string {
		v, _ := lookup(key)
		return strings.TrimSpace(v)
	}
	missing := make([]string, 0, 2)
	invalid := make([]string, 0, 2)

	positiveInt := func(key string, dst *int) {
		if value := get(key); value != "" {
			n, err := strconv.Atoi(value)
			if err != nil || n <= 0 {
				invalid = append(invalid, key)
				return
			}
			*dst = n
		}
	}
	positiveDuration := func(key string, dst *time.Duration) {
		if value := get(key); value != "" {
			d, err := time.ParseDuration(value)
			if err != nil || d <= 0 {
				invalid = append(invalid, key)
				return
			}
			*dst = d
		}
	}

	positiveInt("INTERNSHIP_HTTP_PORT", &cfg.HTTPPort)
	positiveInt("INTERNSHIP_SCHEDULER_WORKERS", &cfg.SchedulerWorkers)
	positiveInt("INTERNSHIP_MAX_RETRIES", &cfg.MaxRetries)
	positiveDuration("INTERNSHIP_POLL_INTERVAL", &cfg.PollInterval)
	positiveDuration("INTERNSHIP_SESSION_TTL", &cfg.SessionTTL)

	if level := get("INTERNSHIP_LOG_LEVEL"); level != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(level)); err != nil {
			invalid = append(invalid, "INTERNSHIP_LOG_LEVEL")
		}
	}

	if store := strings.ToLower(get("INTERNSHIP_JOB_STORE")); store != "" {
		cfg.JobStore = store
	}
	if path := get("INTERNSHIP_SQLITE_PATH"); path != "" {
		cfg.SQLitePath = path
	}
	cfg.RedisAddr = get("INTERNSHIP_REDIS_ADDR")
	if prefix := get("INTERNSHIP_REDIS_PREFIX"); prefix != "" {
		cfg.RedisPrefix = prefix
	}
	switch cfg.JobStore {
	case JobStoreMemory, JobStoreSQLite:
	case JobStoreRedis:
		if cfg.RedisAddr == "" {
			missing = append(missing, "INTERNSHIP_REDIS_ADDR")
		}
	default:
		invalid = append(invalid, "INTERNSHIP_JOB_STORE")
	}

	if transport := strings.ToLower(get("INTERNSHIP_MAIL_TRANSPORT")); transport != "" {
		cfg.MailTransport = transport
	}
	cfg.AMQPURL = get("INTERNSHIP_AMQP_URL")
	switch cfg.MailTransport {
	case MailTransportLog:
	case MailTransportAMQP:
		if cfg.AMQPURL == "" {
			missing = append(missing, "INTERNSHIP_AMQP_URL")
		}
	default:
		invalid = append(invalid, "INTERNSHIP_MAIL_TRANSPORT")
	}

	if email := get("INTERNSHIP_ADMIN_EMAIL"); email == "" {
		missing = append(missing, "INTERNSHIP_ADMIN_EMAIL")
	} else {
		cfg.AdminEmail = strings.ToLower(email)
	}
	cfg.AdminToken = get("INTERNSHIP_ADMIN_TOKEN")
	cfg.FallbackRecipient = cfg.AdminEmail
	if fallback := get("INTERNSHIP_FALLBACK_EMAIL"); fallback != "" {
		cfg.FallbackRecipient = strings.ToLower(fallback)
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("required environment variables are not set: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("invalid environment variable values: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}
