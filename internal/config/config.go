// Package config loads the service configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"account_backend/internal/feature/auth/usecase"
	"account_backend/internal/platform/db"
	"account_backend/internal/platform/logger"
	"account_backend/internal/platform/telegram"
)

// Store drivers.
const (
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
	StoreMongo    = "mongo"
)

// Notification sinks.
const (
	SinkLog   = "log"
	SinkKafka = "kafka"
)

// EnvProduction is the APP_ENV value that enables production checks.
const EnvProduction = "production"

// Config is the full service configuration.
type Config struct {
	AppEnv   string
	HTTPAddr string

	StoreDriver  string
	DB           db.Config
	MongoURI     string
	MongoDB      string
	StoreTimeout time.Duration

	RedisAddr       string
	RedisPassword   string
	// AccountCacheTTL bounds how long a verified account stays in the Redis cache.
	AccountCacheTTL time.Duration

	JWTSecret     string
	JWTExpiration time.Duration

	TelegramBotToken string
	SignatureMode    telegram.Mode

	Policy usecase.Policy

	NotifySink   string
	KafkaBrokers []string
	KafkaTopic   string

	RateLimit       int
	RateLimitWindow time.Duration

	Log logger.Config
}

// Load reads the environment. Malformed numbers and durations fall back to
// their defaults; Validate catches the rest.
func Load() Config {
	policy := usecase.DefaultPolicy()
	policy.CodeTTL = getEnvDuration("CODE_TTL", policy.CodeTTL)
	policy.ResendCooldown = getEnvDuration("RESEND_COOLDOWN", policy.ResendCooldown)
	policy.PhoneDigits = getEnvInt("PHONE_DIGITS", policy.PhoneDigits)
	policy.ResetPolicy = usecase.ResetPolicy(strings.ToLower(getEnv("PASSWORD_RESET_POLICY", string(policy.ResetPolicy))))

	dbCfg := db.LoadConfigFromEnv()
	redisAddr := ""
	if host := os.Getenv("REDIS_HOST"); host != "" {
		redisAddr = host + ":" + getEnv("REDIS_PORT", "6379")
	}

	return Config{
		AppEnv:   strings.ToLower(getEnv("APP_ENV", "development")),
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),

		StoreDriver:  dbCfg.Driver,
		DB:           dbCfg,
		MongoURI:     getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:      getEnv("MONGO_DB", "accounts"),
		StoreTimeout: getEnvDuration("STORE_TIMEOUT", 5*time.Second),

		RedisAddr:       redisAddr,
		RedisPassword:   os.Getenv("REDIS_PASSWORD"),
		AccountCacheTTL: getEnvDuration("ACCOUNT_CACHE_TTL", time.Minute),

		JWTSecret:     os.Getenv("JWT_SECRET"),
		JWTExpiration: getEnvDuration("JWT_EXPIRATION", 24*time.Hour),

		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		SignatureMode:    telegram.Mode(strings.ToLower(getEnv("SIGNATURE_MODE", string(telegram.ModeStrict)))),

		Policy: policy,

		NotifySink:   strings.ToLower(getEnv("NOTIFY_SINK", SinkLog)),
		KafkaBrokers: getEnvSlice("KAFKA_BROKERS", []string{"localhost:9092"}),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "account.verification-codes"),

		RateLimit:       getEnvInt("RATE_LIMIT", 30),
		RateLimitWindow: getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),

		Log: logger.ConfigFromEnv(),
	}
}

// IsProduction reports whether APP_ENV is production.
func (c Config) IsProduction() bool {
	return c.AppEnv == EnvProduction
}

// Validate reports every configuration defect at once.
func (c Config) Validate() error {
	var errs []error

	switch c.StoreDriver {
	case StorePostgres, StoreSQLite, StoreMongo:
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver))
	}
	if _, err := telegram.ParseMode(string(c.SignatureMode)); err != nil {
		errs = append(errs, err)
	}
	switch c.Policy.ResetPolicy {
	case usecase.ResetDirect, usecase.ResetWithCode:
	default:
		errs = append(errs, fmt.Errorf("unknown PASSWORD_RESET_POLICY %q", c.Policy.ResetPolicy))
	}
	switch c.NotifySink {
	case SinkLog, SinkKafka:
	default:
		errs = append(errs, fmt.Errorf("unknown NOTIFY_SINK %q", c.NotifySink))
	}
	if c.NotifySink == SinkKafka && (len(c.KafkaBrokers) == 0 || c.KafkaTopic == "") {
		errs = append(errs, errors.New("KAFKA_BROKERS and KAFKA_TOPIC are required for the kafka sink"))
	}
	if c.Policy.PhoneDigits <= 0 {
		errs = append(errs, errors.New("PHONE_DIGITS must be positive"))
	}
	if c.Policy.CodeTTL <= 0 || c.Policy.ResendCooldown < 0 {
		errs = append(errs, errors.New("CODE_TTL must be positive and RESEND_COOLDOWN not negative"))
	}
	if c.AccountCacheTTL < 0 {
		errs = append(errs, errors.New("ACCOUNT_CACHE_TTL must not be negative"))
	}
	if c.RateLimit <= 0 || c.RateLimitWindow <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT and RATE_LIMIT_WINDOW must be positive"))
	}

	if c.IsProduction() {
		if c.JWTSecret == "" {
			errs = append(errs, errors.New("JWT_SECRET is required in production"))
		}
		if c.SignatureMode == telegram.ModePermissive {
			errs = append(errs, errors.New("SIGNATURE_MODE=permissive is not allowed in production"))
		}
	}
	return errors.Join(errs...)
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return def
	}
	return v
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return def
	}
	return d
}

func getEnvSlice(key string, def []string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
