package config

import (
	"errors"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything the service reads from the environment.
type Config struct {
	Port       string
	AppEnv     string
	CORSOrigin string

	StoreDriver        string
	DBURL              string
	FirestoreProjectID string

	JWTSecret    string
	OIDCIssuer   string
	OIDCAudience string

	StripeSecretKey     string
	StripeWebhookSecret string
	PriceScanLimit      int64

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	EmailProvider      string
	EmailFrom          string
	EmailFromName      string
	SendGridAPIKey     string
	SendGridTemplateID string
	SMTPHost           string
	SMTPPort           string
	SMTPPassword       string

	ArchiveBucket string
	AWSRegion     string
	S3Endpoint    string

	StripeTimeout      time.Duration
	StoreTimeout       time.Duration
	EmailTimeout       time.Duration
	ReceiptLockTTL     time.Duration
	RateLimitPerMinute int
}

const (
	StoreDriverPostgres  = "postgres"
	StoreDriverFirestore = "firestore"

	EmailProviderSendGrid = "sendgrid"
	EmailProviderSMTP     = "smtp"
)

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found. Using system environment variables.")
	}
	return FromEnv()
}

// FromEnv builds a Config from the current environment without touching .env.
func FromEnv() (*Config, error) {
	cfg := &Config{
		Port:       getEnv("PORT", "8080"),
		AppEnv:     getEnv("APP_ENV", "development"),
		CORSOrigin: getEnv("CORS_ORIGIN", "http://localhost:5173"),

		StoreDriver:        strings.ToLower(getEnv("STORE_DRIVER", StoreDriverPostgres)),
		DBURL:              getEnv("DB_URL", ""),
		FirestoreProjectID: getEnv("FIRESTORE_PROJECT_ID", ""),

		JWTSecret:    getEnv("JWT_SECRET", ""),
		OIDCIssuer:   getEnv("OIDC_ISSUER", ""),
		OIDCAudience: getEnv("OIDC_AUDIENCE", ""),

		StripeSecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
		PriceScanLimit:      int64(getEnvInt("PRICE_SCAN_LIMIT", 100)),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		EmailProvider:      strings.ToLower(getEnv("EMAIL_PROVIDER", EmailProviderSendGrid)),
		EmailFrom:          getEnv("EMAIL_FROM", ""),
		EmailFromName:      getEnv("EMAIL_FROM_NAME", ""),
		SendGridAPIKey:     getEnv("SENDGRID_API_KEY", ""),
		SendGridTemplateID: getEnv("SENDGRID_TEMPLATE_ID", ""),
		SMTPHost:           getEnv("SMTP_HOST", ""),
		SMTPPort:           getEnv("SMTP_PORT", "587"),
		SMTPPassword:       getEnv("SMTP_PASSWORD", ""),

		ArchiveBucket: getEnv("WEBHOOK_ARCHIVE_BUCKET", ""),
		AWSRegion:     getEnv("AWS_REGION", "eu-west-2"),
		S3Endpoint:    getEnv("S3_ENDPOINT", ""),

		StripeTimeout:      getEnvDuration("STRIPE_TIMEOUT", 10*time.Second),
		StoreTimeout:       getEnvDuration("STORE_TIMEOUT", 5*time.Second),
		EmailTimeout:       getEnvDuration("EMAIL_TIMEOUT", 10*time.Second),
		ReceiptLockTTL:     getEnvDuration("RECEIPT_LOCK_TTL", 2*time.Minute),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
	}

	if cfg.PriceScanLimit <= 0 || cfg.PriceScanLimit > 100 {
		cfg.PriceScanLimit = 100
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var missing []string
	if c.StripeSecretKey == "" {
		missing = append(missing, "STRIPE_SECRET_KEY")
	}
	if c.StripeWebhookSecret == "" {
		missing = append(missing, "STRIPE_WEBHOOK_SECRET")
	}
	if c.JWTSecret == "" && c.OIDCIssuer == "" {
		missing = append(missing, "JWT_SECRET or OIDC_ISSUER")
	}
	switch c.StoreDriver {
	case StoreDriverPostgres:
		if c.DBURL == "" {
			missing = append(missing, "DB_URL")
		}
	case StoreDriverFirestore:
		if c.FirestoreProjectID == "" {
			missing = append(missing, "FIRESTORE_PROJECT_ID")
		}
	default:
		return errors.New("STORE_DRIVER must be postgres or firestore")
	}
	if len(missing) > 0 {
		return errors.New("missing required environment variables: " + strings.Join(missing, ", "))
	}
	return nil
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func getEnv(key string, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return strings.TrimSpace(value)
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return v
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(getEnv(key, "")); err == nil && d > 0 {
		return d
	}
	return fallback
}
