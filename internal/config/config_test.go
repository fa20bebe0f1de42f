package config

import (
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "ENV", "LOG_LEVEL", "STORE_BACKEND", "CORS_ALLOWED_ORIGINS",
		"FIREBASE_PROJECT_ID", "NETLIFY_FIREBASE_PROJECT_ID",
		"FIREBASE_PRIVATE_KEY", "NETLIFY_FIREBASE_PRIVATE_KEY",
		"TWILIO_ACCOUNT_SID", "NETLIFY_TWILIO_ACCOUNT_SID",
		"TWILIO_AUTH_TOKEN", "NETLIFY_TWILIO_AUTH_TOKEN",
		"TWILIO_FROM_NUMBER", "NETLIFY_TWILIO_PHONE_NUMBER",
		"SMS_RECIPIENT", "NETLIFY_SMS_RECIPIENT",
		"LAUNCH_AT", "LIVE_RELOAD_DELAY",
		"EMAIL_PROVIDER", "AWS_REGION",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port, got %s", cfg.Port)
	}
	if cfg.Env != "development" {
		t.Fatalf("expected default env, got %s", cfg.Env)
	}
	if cfg.StoreBackend != StoreFirestore {
		t.Fatalf("expected firestore backend by default, got %s", cfg.StoreBackend)
	}
	if cfg.FirebaseProjectID != "ask-stuart" {
		t.Fatalf("expected default project id, got %s", cfg.FirebaseProjectID)
	}
	if cfg.FirestoreCollection != "messages" {
		t.Fatalf("expected messages collection, got %s", cfg.FirestoreCollection)
	}
	if len(cfg.CORSAllowedOrigins) != 1 || cfg.CORSAllowedOrigins[0] != "*" {
		t.Fatalf("expected permissive CORS by default, got %v", cfg.CORSAllowedOrigins)
	}
	if !cfg.LaunchAt.Equal(DefaultLaunchAt) {
		t.Fatalf("expected default launch time, got %s", cfg.LaunchAt)
	}
	if cfg.LiveReloadDelay != 5*time.Second {
		t.Fatalf("expected 5s reload delay, got %s", cfg.LiveReloadDelay)
	}
	if cfg.FirestoreConfigured() || cfg.TwilioConfigured() {
		t.Fatalf("expected integrations unconfigured by default")
	}
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("STORE_BACKEND", " Postgres ")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("TWILIO_ACCOUNT_SID", "AC123")
	t.Setenv("TWILIO_AUTH_TOKEN", "secret")
	t.Setenv("LAUNCH_AT", "2026-01-02T03:04:05Z")
	t.Setenv("LIVE_RELOAD_DELAY", "250ms")
	cfg := Load()
	if cfg.Port != "9090" {
		t.Fatalf("expected override port, got %s", cfg.Port)
	}
	if cfg.StoreBackend != StorePostgres {
		t.Fatalf("expected postgres backend, got %q", cfg.StoreBackend)
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://b.example" {
		t.Fatalf("unexpected origins %v", cfg.CORSAllowedOrigins)
	}
	if !cfg.TwilioConfigured() {
		t.Fatalf("expected twilio configured")
	}
	if !cfg.LaunchAt.Equal(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)) {
		t.Fatalf("unexpected launch time %s", cfg.LaunchAt)
	}
	if cfg.LiveReloadDelay != 250*time.Millisecond {
		t.Fatalf("unexpected reload delay %s", cfg.LiveReloadDelay)
	}
}

func TestLoadLegacyNetlifyNames(t *testing.T) {
	clearEnv(t)
	t.Setenv("NETLIFY_FIREBASE_PROJECT_ID", "legacy-project")
	t.Setenv("NETLIFY_FIREBASE_PRIVATE_KEY", `-----BEGIN KEY-----\nabc\n-----END KEY-----`)
	t.Setenv("NETLIFY_TWILIO_PHONE_NUMBER", "+61400000000")
	t.Setenv("NETLIFY_SMS_RECIPIENT", "+61411111111")
	t.Setenv("SMS_RECIPIENT", "")
	cfg := Load()
	if cfg.FirebaseProjectID != "legacy-project" {
		t.Fatalf("expected legacy project id, got %s", cfg.FirebaseProjectID)
	}
	if cfg.FirebasePrivateKey != "-----BEGIN KEY-----\nabc\n-----END KEY-----" {
		t.Fatalf("expected escaped newlines expanded, got %q", cfg.FirebasePrivateKey)
	}
	if cfg.TwilioFromNumber != "+61400000000" || cfg.SMSRecipient != "+61411111111" {
		t.Fatalf("expected legacy numbers, got from=%s to=%s", cfg.TwilioFromNumber, cfg.SMSRecipient)
	}
	if !cfg.FirestoreConfigured() {
		t.Fatalf("expected firestore configured from legacy vars")
	}
}

func TestPreferredNameWinsOverLegacy(t *testing.T) {
	clearEnv(t)
	t.Setenv("SMS_RECIPIENT", "+61422222222")
	t.Setenv("NETLIFY_SMS_RECIPIENT", "+61411111111")
	if got := Load().SMSRecipient; got != "+61422222222" {
		t.Fatalf("expected SMS_RECIPIENT to win, got %s", got)
	}
}

func TestInvalidValuesFallBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("LAUNCH_AT", "not-a-time")
	t.Setenv("LIVE_RELOAD_DELAY", "soon")
	cfg := Load()
	if !cfg.LaunchAt.Equal(DefaultLaunchAt) {
		t.Fatalf("expected default launch on parse failure, got %s", cfg.LaunchAt)
	}
	if cfg.LiveReloadDelay != 5*time.Second {
		t.Fatalf("expected default delay on parse failure, got %s", cfg.LiveReloadDelay)
	}
}

func TestLoadEmailProvider(t *testing.T) {
	clearEnv(t)
	cfg := Load()
	if cfg.EmailProvider != "sendgrid" || cfg.AWSRegion != "ap-southeast-2" {
		t.Fatalf("unexpected email defaults %q %q", cfg.EmailProvider, cfg.AWSRegion)
	}

	t.Setenv("EMAIL_PROVIDER", "SES")
	t.Setenv("AWS_REGION", "us-east-1")
	cfg = Load()
	if cfg.EmailProvider != "ses" {
		t.Fatalf("expected lowercased provider, got %q", cfg.EmailProvider)
	}
	if cfg.AWSRegion != "us-east-1" {
		t.Fatalf("expected region override, got %q", cfg.AWSRegion)
	}
}
