package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Store backends understood by cmd/api.
const (
	StoreFirestore = "firestore"
	StorePostgres  = "postgres"
	StoreMemory    = "memory"
)

// Config holds application configuration
type Config struct {
	Port               string
	Env                string
	PublicBaseURL      string
	LogLevel           string
	CORSAllowedOrigins []string

	StoreBackend string
	DatabaseURL  string

	// Firestore service account
	FirebaseProjectID    string
	FirebasePrivateKeyID string
	FirebasePrivateKey   string
	FirebaseClientEmail  string
	FirebaseClientID     string
	FirestoreCollection  string

	// Twilio
	TwilioAccountSID    string
	TwilioAuthToken     string
	TwilioFromNumber    string
	TwilioWebhookSecret string
	SMSRecipient        string

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool
	DedupeTTL     time.Duration

	// Email notifications
	EmailProvider     string
	AWSRegion         string
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string
	NotifyEmailTo     string

	NotifyTimezone  string
	LaunchAt        time.Time
	LiveReloadDelay time.Duration
}

// DefaultLaunchAt is the service launch instant shown by the countdown banners.
var DefaultLaunchAt = time.Date(2025, time.July, 14, 0, 0, 0, 0, time.FixedZone("AEST", 10*60*60))

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:               getEnv("PORT", "8080"),
		Env:                getEnv("ENV", "development"),
		PublicBaseURL:      getEnv("PUBLIC_BASE_URL", ""),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"}),

		StoreBackend: strings.ToLower(strings.TrimSpace(getEnv("STORE_BACKEND", StoreFirestore))),
		DatabaseURL:  getEnv("DATABASE_URL", ""),

		FirebaseProjectID:    getEnvFallback("FIREBASE_PROJECT_ID", "NETLIFY_FIREBASE_PROJECT_ID", "ask-stuart"),
		FirebasePrivateKeyID: getEnvFallback("FIREBASE_PRIVATE_KEY_ID", "NETLIFY_FIREBASE_PRIVATE_KEY_ID", ""),
		FirebasePrivateKey:   expandKeyNewlines(getEnvFallback("FIREBASE_PRIVATE_KEY", "NETLIFY_FIREBASE_PRIVATE_KEY", "")),
		FirebaseClientEmail:  getEnvFallback("FIREBASE_CLIENT_EMAIL", "NETLIFY_FIREBASE_CLIENT_EMAIL", ""),
		FirebaseClientID:     getEnvFallback("FIREBASE_CLIENT_ID", "NETLIFY_FIREBASE_CLIENT_ID", ""),
		FirestoreCollection:  getEnv("FIRESTORE_COLLECTION", "messages"),

		TwilioAccountSID:    getEnvFallback("TWILIO_ACCOUNT_SID", "NETLIFY_TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:     getEnvFallback("TWILIO_AUTH_TOKEN", "NETLIFY_TWILIO_AUTH_TOKEN", ""),
		TwilioFromNumber:    getEnvFallback("TWILIO_FROM_NUMBER", "NETLIFY_TWILIO_PHONE_NUMBER", ""),
		TwilioWebhookSecret: getEnv("TWILIO_WEBHOOK_SECRET", ""),
		SMSRecipient:        getEnvFallback("SMS_RECIPIENT", "NETLIFY_SMS_RECIPIENT", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),
		DedupeTTL:     getEnvAsDuration("INBOUND_DEDUPE_TTL", 24*time.Hour),

		EmailProvider:     strings.ToLower(getEnv("EMAIL_PROVIDER", "sendgrid")),
		AWSRegion:         getEnv("AWS_REGION", "ap-southeast-2"),
		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "Ask Stuart"),
		NotifyEmailTo:     getEnv("NOTIFY_EMAIL_TO", ""),

		NotifyTimezone:  getEnv("NOTIFY_TIMEZONE", "Australia/Sydney"),
		LaunchAt:        getEnvAsTime("LAUNCH_AT", DefaultLaunchAt),
		LiveReloadDelay: getEnvAsDuration("LIVE_RELOAD_DELAY", 5*time.Second),
	}
}

// FirestoreConfigured reports whether service-account credentials are present.
func (c *Config) FirestoreConfigured() bool {
	return c.FirebaseProjectID != "" && c.FirebasePrivateKey != ""
}

// TwilioConfigured reports whether carrier credentials are present.
func (c *Config) TwilioConfigured() bool {
	return c.TwilioAccountSID != "" && c.TwilioAuthToken != ""
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvFallback prefers key, then the legacy key, then the default.
func getEnvFallback(key, legacyKey, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return getEnv(legacyKey, defaultValue)
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsTime(key string, defaultValue time.Time) time.Time {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.Parse(time.RFC3339, valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

// expandKeyNewlines turns literal "\n" sequences (as stored in most env UIs) into newlines.
func expandKeyNewlines(key string) string {
	return strings.ReplaceAll(key, `\n`, "\n")
}
