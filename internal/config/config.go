package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	ProviderTwilio  = "twilio"
	ProviderWebhook = "webhook"
)

type Config struct {
	Env       string
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Queue     QueueConfig
	Scheduler SchedulerConfig
	Provider  ProviderConfig
	Message   MessageConfig
}

type ServerConfig struct {
	Address string
}

type DatabaseConfig struct {
	PostgresURL string
	Migrate     bool
}

type RedisConfig struct {
	Enabled  bool
	Address  string
	Password string
	DB       int
	TTL      time.Duration
}

type QueueConfig struct {
	Name        string
	Concurrency int
	MaxRetry    int
	Timeout     time.Duration
}

type SchedulerConfig struct {
	Spec string
}

type ProviderConfig struct {
	Kind    string
	Timeout time.Duration
	Twilio  TwilioConfig
	Webhook WebhookConfig
}

type TwilioConfig struct {
	AccountSID        string
	AuthToken         string
	FromNumber        string
	BaseURL           string
	StatusCallbackURL string
}

type WebhookConfig struct {
	URL     string
	AuthKey string
}

type MessageConfig struct {
	ContentMax    int
	DefaultRegion string
}

func (c *Config) Development() bool {
	return strings.EqualFold(c.Env, "development")
}

// LoadAll reads the configuration from the environment and reports every
// problem it finds at once.
func LoadAll() (*Config, error) {
	var errs []error

	str := func(key string) string {
		v, err := requireEnv(key)
		if err != nil {
			errs = append(errs, err)
		}
		return v
	}
	num := func(key string, def int) int {
		v, err := getEnvInt(key, def)
		if err != nil {
			errs = append(errs, err)
		}
		return v
	}
	flag := func(key string, def bool) bool {
		v, err := getEnvBool(key, def)
		if err != nil {
			errs = append(errs, err)
		}
		return v
	}

	cfg := &Config{
		Env: getEnv("APP_ENV", "production"),
		Server: ServerConfig{
			Address: getEnv("SERVER_ADDRESS", ":8080"),
		},
		Database: DatabaseConfig{
			PostgresURL: str("POSTGRES_URL"),
			Migrate:     flag("DB_MIGRATE", true),
		},
		Queue: QueueConfig{
			Name:        getEnv("QUEUE_NAME", "sms"),
			Concurrency: num("QUEUE_CONCURRENCY", 10),
			MaxRetry:    num("QUEUE_MAX_RETRY", 3),
			Timeout:     time.Duration(num("QUEUE_TIMEOUT_SECONDS", 300)) * time.Second,
		},
		Scheduler: SchedulerConfig{
			Spec: getEnv("SCHED_SPEC", "CRON_TZ=UTC 0 9 * * *"),
		},
		Provider: ProviderConfig{
			Kind:    strings.ToLower(getEnv("PROVIDER", ProviderTwilio)),
			Timeout: time.Duration(num("PROVIDER_TIMEOUT_SECONDS", 10)) * time.Second,
		},
		Message: MessageConfig{
			ContentMax:    num("CONTENT_MAX", 1600),
			DefaultRegion: strings.ToUpper(getEnv("PHONE_DEFAULT_REGION", "US")),
		},
	}

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Redis = RedisConfig{
			Enabled:  true,
			Address:  addr,
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       num("REDIS_DB", 0),
			TTL:      time.Duration(num("REDIS_TTL_SECONDS", 86400)) * time.Second,
		}
	}

	switch cfg.Provider.Kind {
	case ProviderTwilio:
		cfg.Provider.Twilio = TwilioConfig{
			AccountSID:        str("TWILIO_ACCOUNT_SID"),
			AuthToken:         str("TWILIO_AUTH_TOKEN"),
			FromNumber:        str("TWILIO_FROM_NUMBER"),
			BaseURL:           getEnv("TWILIO_BASE_URL", ""),
			StatusCallbackURL: getEnv("TWILIO_STATUS_CALLBACK_URL", ""),
		}
	case ProviderWebhook:
		cfg.Provider.Webhook = WebhookConfig{
			URL:     str("WEBHOOK_URL"),
			AuthKey: getEnv("WEBHOOK_AUTH_KEY", ""),
		}
	default:
		errs = append(errs, fmt.Errorf("PROVIDER must be %q or %q, got %q", ProviderTwilio, ProviderWebhook, cfg.Provider.Kind))
	}

	errs = append(errs, validate(cfg)...)
	if err := joinErrors(errs); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validate(cfg *Config) []error {
	var errs []error
	if cfg.Message.ContentMax <= 0 {
		errs = append(errs, errors.New("CONTENT_MAX must be > 0"))
	}
	if cfg.Queue.Concurrency <= 0 {
		errs = append(errs, errors.New("QUEUE_CONCURRENCY must be > 0"))
	}
	if cfg.Queue.MaxRetry < 0 {
		errs = append(errs, errors.New("QUEUE_MAX_RETRY must be >= 0"))
	}
	if cfg.Queue.Timeout <= 0 {
		errs = append(errs, errors.New("QUEUE_TIMEOUT_SECONDS must be > 0"))
	}
	if cfg.Provider.Timeout <= 0 {
		errs = append(errs, errors.New("PROVIDER_TIMEOUT_SECONDS must be > 0"))
	}
	if strings.TrimSpace(cfg.Scheduler.Spec) == "" {
		errs = append(errs, errors.New("SCHED_SPEC must not be empty"))
	}
	return errs
}

func requireEnv(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("missing required env var: %s", key)
	}
	return val, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def, fmt.Errorf("invalid int for env %s: %s", key, v)
	}
	return i, nil
}

func getEnvBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def, fmt.Errorf("invalid bool for env %s: %s", key, v)
	}
	return b, nil
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return errors.Join(errs...)
}
