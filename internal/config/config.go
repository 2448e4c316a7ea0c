package config

import (
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	defaultBaseURL         = "http://localhost:8080"
	defaultHTTPTimeout     = 10 * time.Second
	defaultReconcileDelay  = 2 * time.Second
	defaultCredentialTTL   = 24 * time.Hour
	defaultProfile         = "default"
	defaultFakeshopAddr    = ":8080"
	defaultJWTSecret       = "fakeshop-dev-secret"
	defaultTransitionDelay = 500 * time.Millisecond
)

type Config struct {
	BaseURL        string
	HTTPTimeout    time.Duration
	ReconcileDelay time.Duration
	CredentialTTL  time.Duration
	Profile        string

	// RedisAddr empty keeps credentials in memory
	RedisAddr string

	// Token seeds the in-memory credential store when Redis is not used
	Token string

	// MySQLDSN empty disables the command journal
	MySQLDSN string

	LogLevel       logrus.Level
	EnableTracing  bool
	FakeshopAddr   string
	JWTSecret      string
	TransitionWait time.Duration
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{
		BaseURL:      strings.TrimRight(getenv("ORDER_API_BASE_URL", defaultBaseURL), "/"),
		Profile:      getenv("PROFILE", defaultProfile),
		RedisAddr:    os.Getenv("REDIS_ADDR"),
		MySQLDSN:     os.Getenv("MYSQL_DSN"),
		Token:        os.Getenv("ORDER_API_TOKEN"),
		FakeshopAddr: getenv("FAKESHOP_ADDR", defaultFakeshopAddr),
		JWTSecret:    getenv("FAKESHOP_JWT_SECRET", defaultJWTSecret),
	}
	cfg.EnableTracing = os.Getenv("ENABLE_TRACING") == "1"

	level, err := logrus.ParseLevel(getenv("LOG_LEVEL", "info"))
	if err != nil {
		return nil, errors.Wrap(err, "LOG_LEVEL")
	}
	cfg.LogLevel = level

	durations := []struct {
		key  string
		def  time.Duration
		dest *time.Duration
	}{
		{"HTTP_TIMEOUT", defaultHTTPTimeout, &cfg.HTTPTimeout},
		{"RECONCILE_DELAY", defaultReconcileDelay, &cfg.ReconcileDelay},
		{"CREDENTIAL_TTL", defaultCredentialTTL, &cfg.CredentialTTL},
		{"FAKESHOP_TRANSITION_DELAY", defaultTransitionDelay, &cfg.TransitionWait},
	}
	for _, d := range durations {
		v, err := getenvDuration(d.key, d.def)
		if err != nil {
			return nil, err
		}
		*d.dest = v
	}
	return cfg, nil
}

// NewLogger builds the JSON logger shared by the binaries.
func (c *Config) NewLogger() *logrus.Logger {
	log := logrus.New()
	log.Level = c.LogLevel
	log.Formatter = &logrus.JSONFormatter{
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "severity",
			logrus.FieldKeyMsg:   "message",
		},
		TimestampFormat: time.RFC3339Nano,
	}
	log.Out = os.Stderr
	return log
}

func getenv(key, d string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return d
}

func getenvDuration(key string, d time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return d, nil
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return 0, errors.Wrapf(err, "%s", key)
	}
	if parsed < 0 {
		return 0, errors.Errorf("%s must not be negative", key)
	}
	return parsed, nil
}

// Fallback is the logger used when the configuration itself cannot be loaded.
func Fallback() *logrus.Logger {
	return (&Config{LogLevel: logrus.InfoLevel}).NewLogger()
}
