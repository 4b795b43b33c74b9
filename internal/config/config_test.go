package config

import (
	"testing"
	"time"
)

func validBase() Config {
	return Config{
		App:     AppConfig{Env: "local", Port: 8080},
		DB:      DBConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "x", Name: "callbridge"},
		Redis:   RedisConfig{Host: "localhost", Port: 6379},
		VoiceAI: VoiceAIConfig{APIKey: "key"},
	}
}

func TestValidate_ReportsMissingRequired(t *testing.T) {
	c := Config{}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestValidate_RequiresProviderAPIKey(t *testing.T) {
	c := validBase()
	c.VoiceAI.APIKey = ""
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for missing VOICEAI_API_KEY")
	}
}

func TestValidate_ProductionRequiresSSLModeAndWebhookSecret(t *testing.T) {
	c := validBase()
	c.App.Env = "production"
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for production without DB_SSLMODE and webhook secret")
	}

	c = validBase()
	c.App.Env = "production"
	c.DB.SSLMode = "require"
	c.VoiceAI.WebhookSecret = "s"
	if err := c.Validate(); err != nil {
		t.Fatalf("expected valid production config, got %v", err)
	}
}

func TestValidate_LocalDefaults(t *testing.T) {
	c := validBase()
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.DB.SSLMode != "disable" {
		t.Fatalf("expected sslmode disable default, got %q", c.DB.SSLMode)
	}
	if c.VoiceAI.ParkedEventTTL != 15*time.Minute {
		t.Fatalf("expected parked event TTL default, got %v", c.VoiceAI.ParkedEventTTL)
	}
}

func TestValidate_AuthTTLDefaultsOnlyWhenEnabled(t *testing.T) {
	c := validBase()
	if err := c.Validate(); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if c.Auth.AccessTokenTTL != 0 {
		t.Fatalf("TTL must stay zero while auth is disabled")
	}

	c = validBase()
	c.Auth.JWTSecret = "s"
	if err := c.Validate(); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if c.Auth.AccessTokenTTL != 15*time.Minute {
		t.Fatalf("expected access TTL default, got %v", c.Auth.AccessTokenTTL)
	}
	if !c.AuthEnabled() {
		t.Fatalf("expected auth enabled")
	}
}
