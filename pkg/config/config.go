package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App       AppConfig
	Server    ServerConfig
	Database  DatabaseConfig
	Mongo     MongoConfig
	JWT       JWTConfig
	Mailjet   MailjetConfig
	Payment   PaymentConfig
	Redis     RedisConfig
	Security  SecurityConfig
	Tracing   TracingConfig
	Scheduler SchedulerConfig
}

type MailjetConfig struct {
	MailjetBaseUrl           string
	MailjetBasicAuthUsername string
	MailjetBasicAuthPassword string
	MailjetSenderEmail       string
	MailjetSenderName        string
}

type AppConfig struct {
	Name             string
	Version          string
	Environment      string
	AppDeploymentUrl string
	AppLinkCodeKey   string
	ResetLinkTTL     time.Duration
}

func (a AppConfig) IsProduction() bool {
	return strings.EqualFold(a.Environment, "production")
}

type ServerConfig struct {
	Port           string
	RequestTimeout time.Duration
	AllowOrigins   []string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

type MongoConfig struct {
	URI               string
	Database          string
	DocumentBucket    string
	WebhookCollection string
}

type JWTConfig struct {
	SecretKey string
	TTL       time.Duration
}

type RedisConfig struct {
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
}

type SecurityConfig struct {
	MaxFailedLogins int
	LockDuration    time.Duration
}

type TracingConfig struct {
	OTLPEndpoint string
	ServiceName  string
}

type SchedulerConfig struct {
	PaymentExpirySchedule string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, errors.New("invalid redis database")
	}

	payment, err := loadPayment()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		App: AppConfig{
			Name:             getEnv("APP_NAME", "Garage Booking API"),
			Version:          getEnv("APP_VERSION", "1.0.0"),
			Environment:      getEnv("APP_ENV", "development"),
			AppDeploymentUrl: getEnv("APP_DEPLOYMENT_URL", ""),
			AppLinkCodeKey:   getEnv("APP_LINK_CODE_KEY", ""),
			ResetLinkTTL:     getDuration("RESET_LINK_TTL", 30*time.Minute),
		},
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			RequestTimeout: getDuration("REQUEST_TIMEOUT", 30*time.Second),
			AllowOrigins:   splitList(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:3000,http://localhost:8080")),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Name:     getEnv("DB_NAME", "garage_booking"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		},
		Mongo: MongoConfig{
			URI:               getEnv("MONGO_URI", "mongodb://localhost:27017"),
			Database:          getEnv("MONGO_DATABASE", "garage_booking"),
			DocumentBucket:    getEnv("MONGO_DOCUMENT_BUCKET", "garage_documents"),
			WebhookCollection: getEnv("MONGO_WEBHOOK_COLLECTION", "payment_webhook_events"),
		},
		JWT: JWTConfig{
			SecretKey: getEnv("JWT_SECRET", ""),
			TTL:       getDuration("JWT_EXPIRE", 7*24*time.Hour),
		},
		Mailjet: MailjetConfig{
			MailjetBaseUrl:           getEnv("MAILJET_BASE_URL", "https://api.mailjet.com"),
			MailjetBasicAuthUsername: getEnv("MAILJET_BASIC_AUTH_USERNAME", ""),
			MailjetBasicAuthPassword: getEnv("MAILJET_BASIC_AUTH_PASSWORD", ""),
			MailjetSenderEmail:       getEnv("MAILJET_SENDER_EMAIL", ""),
			MailjetSenderName:        getEnv("MAILJET_SENDER_NAME", "Garage Booking"),
		},
		Payment: payment,
		Redis: RedisConfig{
			RedisHost:     getEnv("REDIS_HOST", "localhost"),
			RedisPort:     getEnv("REDIS_PORT", "6379"),
			RedisPassword: getEnv("REDIS_PASSWORD", ""),
			RedisDB:       redisDB,
		},
		Security: SecurityConfig{
			MaxFailedLogins: getInt("MAX_FAILED_LOGINS", 5),
			LockDuration:    getDuration("LOGIN_LOCK_DURATION", 2*time.Hour),
		},
		Tracing: TracingConfig{
			OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			ServiceName:  getEnv("OTEL_SERVICE_NAME", "garage-booking-api"),
		},
		Scheduler: SchedulerConfig{
			PaymentExpirySchedule: getEnv("PAYMENT_EXPIRY_SCHEDULE", "@every 15m"),
		},
	}

	if cfg.JWT.SecretKey == "" {
		return nil, errors.New("missing jwt secret")
	}

	if cfg.App.AppDeploymentUrl == "" {
		return nil, errors.New("missing app deployment url")
	}

	if cfg.App.AppLinkCodeKey == "" {
		return nil, errors.New("missing app link code key")
	}

	if n := len(cfg.App.AppLinkCodeKey); n != 16 && n != 24 && n != 32 {
		return nil, errors.New("app link code key must be 16, 24 or 32 bytes")
	}

	if cfg.Database.Password == "" {
		return nil, errors.New("missing database password")
	}

	if err := cfg.Payment.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadPayment() (PaymentConfig, error) {
	plans := map[string]int64{}
	for _, plan := range KnownPlans {
		key := "PLAN_" + strings.ToUpper(plan) + "_PRICE"
		amount, err := strconv.ParseInt(getEnv(key, strconv.FormatInt(defaultPlanPrices[plan], 10)), 10, 64)
		if err != nil {
			return PaymentConfig{}, fmt.Errorf("invalid %s: %w", key, err)
		}
		plans[plan] = amount
	}

	return PaymentConfig{
		Provider:      getEnv("PAYMENT_PROVIDER", "chapa"),
		SecretKey:     getEnv("CHAPA_SECRET_KEY", ""),
		WebhookSecret: getEnv("CHAPA_WEBHOOK_SECRET", ""),
		BaseURL:       getEnv("CHAPA_BASE_URL", "https://api.chapa.co"),
		CallbackURL:   getEnv("CHAPA_CALLBACK_URL", ""),
		ReturnURL:     getEnv("CHAPA_RETURN_URL", ""),
		Currency:      getEnv("PAYMENT_CURRENCY", "ETB"),
		Plans:         plans,
		Timeout:       getDuration("PAYMENT_PROVIDER_TIMEOUT", 15*time.Second),
		ProcessingTTL: getDuration("PAYMENT_PROCESSING_TTL", 24*time.Hour),
	}, nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}

	return defaultVal
}

func getInt(key string, defaultVal int) int {
	val, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return defaultVal
	}

	return val
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	val, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return defaultVal
	}

	return val
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}

	return out
}
