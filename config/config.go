package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	aws_pkg "github.com/arrxxhh/Payment-gateway/pkg/aws"
	"github.com/arrxxhh/Payment-gateway/security"
	"github.com/shopspring/decimal"
)

const (
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
	DriverDynamoDB = "dynamodb"
	DriverMemory   = "memory"
)

// Config holds all configuration for the ledger service.
type Config struct {
	Port string
	Env  string

	StoreDriver      string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresHost     string
	PostgresPort     string
	PostgresSSLMode  string
	PostgresTimeZone string
	MongoURL         string
	MongoDB          string
	DynamoDBTable    string

	RedisURL          string
	AnalyticsCacheTTL time.Duration

	AESKeyHex string
	AESIVHex  string
	JWTSecret string
	// set only when a gateway that verifies tokens fronts the service
	TrustGatewayHeaders bool

	PaymentLinkBase    string
	LedgerTimezone     string
	HighValueThreshold decimal.Decimal
	RiskNoiseRate      float64

	// comma separated: sns, kafka, none
	EventBus          []string
	LedgerSNSTopicARN string
	KafkaBrokers      []string
	KafkaLedgerTopic  string

	CheckoutRequestQueueURL string
	ExportBucket            string
	AllowedOrigins          string
	CloudWatchEnabled       bool
}

// SecretSource resolves a JSON secret into its key/value pairs.
type SecretSource interface {
	GetSecretMap(ctx context.Context, name string) (map[string]string, error)
}

const (
	dbCredentialsSecret = "ledger/DB_CREDENTIALS"
	aesKeysSecret       = "ledger/AES_KEYS"
)

// LoadConfig reads configuration from environment variables with optional
// Secrets Manager override.
func LoadConfig() (*Config, error) {
	cfg, err := fromEnv()
	if err != nil {
		return nil, err
	}

	if os.Getenv("AWS_USE_SECRETS") == "true" {
		if awsCfg, err := aws_pkg.LoadAWSConfig(context.Background()); err == nil {
			ApplySecrets(context.Background(), cfg, aws_pkg.NewSecretsClient(awsCfg))
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func fromEnv() (*Config, error) {
	cfg := &Config{
		Port:             getEnv("PORT", "8092"),
		Env:              getEnv("ENV", "development"),
		StoreDriver:      strings.ToLower(getEnv("STORE_DRIVER", DriverPostgres)),
		PostgresUser:     os.Getenv("POSTGRES_USER"),
		PostgresPassword: os.Getenv("POSTGRES_PASSWORD"),
		PostgresDB:       os.Getenv("POSTGRES_DB"),
		PostgresHost:     os.Getenv("POSTGRES_HOST"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		PostgresTimeZone: getEnv("POSTGRES_TIMEZONE", "UTC"),
		MongoURL:         os.Getenv("MONGO_URL"),
		MongoDB:          getEnv("MONGO_DB", "ledger"),
		DynamoDBTable:    getEnv("DYNAMODB_TABLE", "ledger-transactions"),

		RedisURL: os.Getenv("REDIS_URL"),

		AESKeyHex: os.Getenv("AES_KEY_HEX"),
		AESIVHex:  os.Getenv("AES_IV_HEX"),
		JWTSecret: os.Getenv("JWT_SECRET"),

		TrustGatewayHeaders: os.Getenv("TRUST_GATEWAY_HEADERS") == "true",

		PaymentLinkBase: getEnv("PAYMENT_LINK_BASE", "https://pay.example.test"),
		LedgerTimezone:  getEnv("LEDGER_TIMEZONE", "Local"),

		EventBus:          splitList(getEnv("EVENT_BUS", "none")),
		LedgerSNSTopicARN: os.Getenv("LEDGER_SNS_TOPIC_ARN"),
		KafkaBrokers:      splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaLedgerTopic:  getEnv("KAFKA_LEDGER_TOPIC", "ledger-events"),

		CheckoutRequestQueueURL: os.Getenv("CHECKOUT_REQUEST_QUEUE_URL"),
		ExportBucket:            os.Getenv("EXPORT_BUCKET"),
		AllowedOrigins:          os.Getenv("ALLOWED_ORIGINS"),
		CloudWatchEnabled:       os.Getenv("CLOUDWATCH_ENABLED") == "true",
	}

	ttl, err := time.ParseDuration(getEnv("ANALYTICS_CACHE_TTL", "5m"))
	if err != nil {
		return nil, fmt.Errorf("invalid ANALYTICS_CACHE_TTL: %w", err)
	}
	cfg.AnalyticsCacheTTL = ttl

	threshold, err := decimal.NewFromString(getEnv("HIGH_VALUE_THRESHOLD", "50000"))
	if err != nil {
		return nil, fmt.Errorf("invalid HIGH_VALUE_THRESHOLD: %w", err)
	}
	cfg.HighValueThreshold = threshold

	noise, err := strconv.ParseFloat(getEnv("RISK_NOISE_RATE", "0.05"), 64)
	if err != nil || noise < 0 || noise > 1 {
		return nil, fmt.Errorf("invalid RISK_NOISE_RATE: must be between 0 and 1")
	}
	cfg.RiskNoiseRate = noise

	return cfg, nil
}

// ApplySecrets overrides database credentials and AES material with values
// found in the secret store. Missing secrets leave the env values in place.
func ApplySecrets(ctx context.Context, cfg *Config, src SecretSource) {
	if m, err := src.GetSecretMap(ctx, dbCredentialsSecret); err == nil {
		override(&cfg.PostgresUser, m, "POSTGRES_USER")
		override(&cfg.PostgresPassword, m, "POSTGRES_PASSWORD")
		override(&cfg.PostgresDB, m, "POSTGRES_DB")
		override(&cfg.PostgresHost, m, "POSTGRES_HOST")
		override(&cfg.PostgresPort, m, "POSTGRES_PORT")
		override(&cfg.MongoURL, m, "MONGO_URL")
	}
	if m, err := src.GetSecretMap(ctx, aesKeysSecret); err == nil {
		override(&cfg.AESKeyHex, m, "AES_KEY_HEX")
		override(&cfg.AESIVHex, m, "AES_IV_HEX")
		override(&cfg.JWTSecret, m, "JWT_SECRET")
	}
}

func override(dst *string, m map[string]string, key string) {
	if v, ok := m[key]; ok && v != "" {
		*dst = v
	}
}

// Validate checks presence only; key/IV lengths are checked by the cipher.
func (c *Config) Validate() error {
	if c.AESKeyHex == "" {
		return &security.ConfigError{Field: "AES_KEY_HEX", Reason: "is not set"}
	}
	if c.AESIVHex == "" {
		return &security.ConfigError{Field: "AES_IV_HEX", Reason: "is not set"}
	}

	switch c.StoreDriver {
	case DriverPostgres:
		if c.PostgresUser == "" || c.PostgresPassword == "" || c.PostgresDB == "" || c.PostgresHost == "" {
			return fmt.Errorf("database config incomplete")
		}
	case DriverMongo:
		if c.MongoURL == "" {
			return fmt.Errorf("MONGO_URL is required for the mongo store")
		}
	case DriverDynamoDB:
		if c.DynamoDBTable == "" {
			return fmt.Errorf("DYNAMODB_TABLE is required for the dynamodb store")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}

	for _, bus := range c.EventBus {
		switch bus {
		case "sns":
			if c.LedgerSNSTopicARN == "" {
				return fmt.Errorf("LEDGER_SNS_TOPIC_ARN is required when EVENT_BUS includes sns")
			}
		case "kafka":
			if len(c.KafkaBrokers) == 0 {
				return fmt.Errorf("KAFKA_BROKERS is required when EVENT_BUS includes kafka")
			}
		case "none":
		default:
			return fmt.Errorf("unknown EVENT_BUS %q", bus)
		}
	}
	return nil
}

// ValidateAuth checks that the HTTP API has a way to identify callers.
func (c *Config) ValidateAuth() error {
	if c.JWTSecret == "" && !c.TrustGatewayHeaders {
		return fmt.Errorf("JWT_SECRET is required unless TRUST_GATEWAY_HEADERS=true")
	}
	return nil
}

// Location resolves LedgerTimezone; "Local" keeps the host zone.
func (c *Config) Location() (*time.Location, error) {
	if c.LedgerTimezone == "" || c.LedgerTimezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(c.LedgerTimezone)
}

func (c *Config) UsesBus(name string) bool {
	for _, b := range c.EventBus {
		if b == name {
			return true
		}
	}
	return false
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			out = append(out, p)
		}
	}
	return out
}
