package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
)

const (
	StorageCRDB   = "crdb"
	StorageMemory = "memory"
)

type Config struct {
	Storage      string
	CRDBDSN      string
	MongoURI     string
	MongoDB      string
	RedisAddr    string
	RabbitURL    string
	HTTPAddr     string
	OTLPEndpoint string

	HoldTTL       time.Duration
	SweepInterval time.Duration

	JWTSecret string
	JWTTTL    time.Duration

	PaystackSecretKey string
	PaystackPublicKey string

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	MailFrom     string
	MailFromName string

	AdminEmail    string
	AdminPassword string

	CORSOrigins    []string
	RateLimit      int
	RateLimitReset time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	holdTTL, err := durationEnv("HOLD_TTL", 15*time.Minute)
	if err != nil {
		return nil, err
	}
	sweepInterval, err := durationEnv("SWEEP_INTERVAL", time.Minute)
	if err != nil {
		return nil, err
	}
	jwtTTL, err := durationEnv("JWT_TTL", 12*time.Hour)
	if err != nil {
		return nil, err
	}

	rateLimit := 60
	if v := os.Getenv("RATE_LIMIT"); v != "" {
		rateLimit, err = strconv.Atoi(v)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid RATE_LIMIT %q", v)
		}
	}
	rateReset, err := durationEnv("RATE_LIMIT_PERIOD", time.Minute)
	if err != nil {
		return nil, err
	}

	smtpPort := 587
	if v := os.Getenv("SMTP_PORT"); v != "" {
		smtpPort, err = strconv.Atoi(v)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid SMTP_PORT %q", v)
		}
	}

	cfg := &Config{
		Storage:           envOr("STORAGE", StorageCRDB),
		CRDBDSN:           os.Getenv("CRDB_DSN"),
		MongoURI:          os.Getenv("MONGO_URI"),
		MongoDB:           envOr("MONGO_DB", "busbook"),
		RedisAddr:         os.Getenv("REDIS_ADDR"),
		RabbitURL:         os.Getenv("RABBIT_URL"),
		HTTPAddr:          envOr("HTTP_ADDR", ":8080"),
		OTLPEndpoint:      os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		HoldTTL:           holdTTL,
		SweepInterval:     sweepInterval,
		JWTSecret:         os.Getenv("JWT_SECRET"),
		JWTTTL:            jwtTTL,
		PaystackSecretKey: os.Getenv("PAYSTACK_SECRET_KEY"),
		PaystackPublicKey: os.Getenv("PAYSTACK_PUBLIC_KEY"),
		SMTPHost:          os.Getenv("SMTP_HOST"),
		SMTPPort:          smtpPort,
		SMTPUsername:      os.Getenv("SMTP_USERNAME"),
		SMTPPassword:      os.Getenv("SMTP_PASSWORD"),
		MailFrom:          os.Getenv("MAIL_FROM"),
		MailFromName:      envOr("MAIL_FROM_NAME", "Khompatek Transport"),
		AdminEmail:        os.Getenv("ADMIN_EMAIL"),
		AdminPassword:     os.Getenv("ADMIN_PASSWORD"),
		CORSOrigins:       splitList(envOr("CORS_ORIGINS", "*")),
		RateLimit:         rateLimit,
		RateLimitReset:    rateReset,
	}
	return cfg, nil
}

// Validate checks the settings the API process cannot run without.
func (c *Config) Validate() error {
	switch c.Storage {
	case StorageCRDB:
		if c.CRDBDSN == "" {
			return errors.New("CRDB_DSN is required when STORAGE=crdb")
		}
	case StorageMemory:
	default:
		return errors.Newf("unknown STORAGE %q", c.Storage)
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.HoldTTL <= 0 {
		return errors.New("HOLD_TTL must be positive")
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid %s %q", key, v)
	}
	return d, nil
}
