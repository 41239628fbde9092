package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Port        string `validate:"required"`
	Environment string
	LogLevel    string
	Database    DatabaseConfig
	Shopify     ShopifyConfig
	Turum       TurumConfig
	Redis       RedisConfig
	Jobs        JobsConfig
	Admin       AdminConfig
}

type DatabaseConfig struct {
	Host     string `validate:"required"`
	Port     string `validate:"required"`
	User     string
	Password string
	DBName   string `validate:"required"`
	SSLMode  string
}

// DSN returns the lib/pq key/value connection string
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// URL returns the connection string in URL form (golang-migrate)
func (c DatabaseConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

type ShopifyConfig struct {
	ShopDomain              string `validate:"required"`
	AccessToken             string `validate:"required"`
	APIVersion              string `validate:"required"`
	WebhookSecret           string // SHOPIFY_WEBHOOK_SECRET: verify incoming order webhooks (X-Shopify-Hmac-Sha256)
	AllowUnverifiedWebhooks bool   // SHOPIFY_WEBHOOK_ALLOW_UNVERIFIED: process webhooks whose signature does not match
	Timeout                 time.Duration
	Retries                 int
	RetryWait               time.Duration
}

// TurumConfig is used to call the Turum B2B supplier API
type TurumConfig struct {
	BaseURL        string `validate:"required,url"`
	Username       string
	Password       string
	Timeout        time.Duration
	Retries        int `validate:"gte=1"`
	RetryWait      time.Duration
	TokenTTL       time.Duration `validate:"gt=0"`
	MarginPercent  float64       `validate:"gte=0"`
	Vendor         string        `validate:"required"`
	DefaultCountry string        `validate:"required"`
	DefaultPhone   string
	BillingCompany string
	BillingVATID   string
}

// RedisConfig enables a shared supplier token cache when Addr is set
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type JobsConfig struct {
	ReservationPollInterval time.Duration `validate:"gt=0"`
	CatalogSyncInterval     time.Duration `validate:"gt=0"`
	OrderQueueSize          int           `validate:"gte=1"`
	OrderWorkers            int           `validate:"gte=1"`
	OrderMaxAttempts        int           `validate:"gte=1"`
	OrderClaimLease         time.Duration `validate:"gt=0"` // ORDER_CLAIM_LEASE: age after which an unfinished order claim is taken over
}

type AdminConfig struct {
	APIKeyHash string // ADMIN_API_KEY_HASH: bcrypt hash guarding /debug; empty disables the debug routes
}

func Load() (*Config, error) {
	if err := readEnv(); err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:        getEnvOrViper("PORT", "8080"),
		Environment: getEnvOrViper("ENVIRONMENT", "development"),
		LogLevel:    getEnvOrViper("LOG_LEVEL", "info"),
		Database:    databaseConfig(),
		Shopify: ShopifyConfig{
			ShopDomain:              strings.TrimSpace(getEnvOrViper("SHOPIFY_SHOP_DOMAIN", "")),
			AccessToken:             strings.TrimSpace(getEnvOrViper("SHOPIFY_ACCESS_TOKEN", "")),
			APIVersion:              getEnvOrViper("SHOPIFY_API_VERSION", "2026-01"),
			WebhookSecret:           strings.TrimSpace(getEnvOrViper("SHOPIFY_WEBHOOK_SECRET", "")),
			AllowUnverifiedWebhooks: getBool("SHOPIFY_WEBHOOK_ALLOW_UNVERIFIED", false),
			Timeout:                 getDuration("SHOPIFY_TIMEOUT", 30*time.Second),
			Retries:                 getInt("SHOPIFY_RETRIES", 3),
			RetryWait:               getDuration("SHOPIFY_RETRY_WAIT", 2*time.Second),
		},
		Turum: TurumConfig{
			BaseURL:        strings.TrimSuffix(strings.TrimSpace(getEnvOrViper("TURUM_BASE_URL", "https://api.b2b.turum.pl/v1")), "/"),
			Username:       strings.TrimSpace(getEnvOrViper("TURUM_USERNAME", "")),
			Password:       getEnvOrViper("TURUM_PASSWORD", ""),
			Timeout:        getDuration("TURUM_TIMEOUT", 60*time.Second),
			Retries:        getInt("TURUM_RETRIES", 3),
			RetryWait:      getDuration("TURUM_RETRY_WAIT", 2*time.Second),
			TokenTTL:       getDuration("TURUM_TOKEN_TTL", 23*time.Hour),
			MarginPercent:  getFloat("TURUM_PRICE_MARGIN_PERCENTAGE", 0),
			Vendor:         getEnvOrViper("TURUM_VENDOR", "Turum"),
			DefaultCountry: getEnvOrViper("TURUM_DEFAULT_COUNTRY", "NL"),
			DefaultPhone:   strings.TrimSpace(getEnvOrViper("TURUM_DEFAULT_PHONE", "")),
			BillingCompany: strings.TrimSpace(getEnvOrViper("TURUM_BILLING_COMPANY", "")),
			BillingVATID:   strings.TrimSpace(getEnvOrViper("TURUM_BILLING_VAT_ID", "")),
		},
		Redis: RedisConfig{
			Addr:     strings.TrimSpace(getEnvOrViper("REDIS_ADDR", "")),
			Password: getEnvOrViper("REDIS_PASSWORD", ""),
			DB:       getInt("REDIS_DB", 0),
		},
		Jobs: JobsConfig{
			ReservationPollInterval: getDuration("RESERVATION_POLL_INTERVAL", 30*time.Minute),
			CatalogSyncInterval:     getDuration("CATALOG_SYNC_INTERVAL", 2*time.Hour),
			OrderQueueSize:          getInt("ORDER_QUEUE_SIZE", 100),
			OrderWorkers:            getInt("ORDER_WORKERS", 1),
			OrderMaxAttempts:        getInt("ORDER_MAX_ATTEMPTS", 1),
			OrderClaimLease:         getDuration("ORDER_CLAIM_LEASE", 15*time.Minute),
		},
		Admin: AdminConfig{
			APIKeyHash: strings.TrimSpace(getEnvOrViper("ADMIN_API_KEY_HASH", "")),
		},
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadDatabase reads only the database settings, for tools that do not talk to the remote APIs
func LoadDatabase() (DatabaseConfig, error) {
	if err := readEnv(); err != nil {
		return DatabaseConfig{}, err
	}
	cfg := databaseConfig()
	if err := validator.New().Struct(cfg); err != nil {
		return DatabaseConfig{}, fmt.Errorf("invalid database configuration: %w", err)
	}
	return cfg, nil
}

func readEnv() error {
	// .env values never override the real environment
	_ = godotenv.Load()

	viper.SetConfigType("env")
	viper.SetConfigName(".env")
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.AddConfigPath("../..")

	// Set defaults
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("ENVIRONMENT", "development")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("LOG_LEVEL", "info")

	// Read from environment variables
	viper.AutomaticEnv()

	// Try to read .env file (optional)
	if err := viper.ReadInConfig(); err != nil {
		// It's okay if .env doesn't exist, we'll use env vars
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}
	return nil
}

func databaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Host:     getEnvOrViper("DB_HOST", "localhost"),
		Port:     getEnvOrViper("DB_PORT", "5432"),
		User:     getEnvOrViper("DB_USER", "postgres"),
		Password: getEnvOrViper("DB_PASSWORD", "postgres"),
		DBName:   getEnvOrViper("DB_NAME", "turum"),
		SSLMode:  getEnvOrViper("DB_SSLMODE", "disable"),
	}
}

// Validate checks required fields and ranges
func Validate(cfg *Config) error {
	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid configuration: %s failed %q", fe.Namespace(), fe.Tag())
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func getEnvOrViper(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	if viper.IsSet(key) {
		return viper.GetString(key)
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	raw := getEnvOrViper(key, "")
	if raw == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return defaultValue
	}
	return n
}

func getFloat(key string, defaultValue float64) float64 {
	raw := getEnvOrViper(key, "")
	if raw == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return defaultValue
	}
	return f
}

func getBool(key string, defaultValue bool) bool {
	raw := getEnvOrViper(key, "")
	if raw == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return defaultValue
	}
	return b
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	raw := getEnvOrViper(key, "")
	if raw == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return defaultValue
	}
	return d
}
