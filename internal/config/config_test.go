package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("AUTH_JWT_SECRET", "")
	t.Setenv("CORS_ALLOWED_ORIGINS", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Session.CookieName != "crm_session" {
		t.Errorf("CookieName = %q, want crm_session", cfg.Session.CookieName)
	}
	if cfg.Auth.SessionTTL() != 24*time.Hour {
		t.Errorf("SessionTTL() = %v, want 24h", cfg.Auth.SessionTTL())
	}
	if len(cfg.CORS.AllowedOrigins) != 1 || cfg.CORS.AllowedOrigins[0] != "http://localhost:3000" {
		t.Errorf("AllowedOrigins = %v", cfg.CORS.AllowedOrigins)
	}
}

func TestLoadRejectsDevSecretInProduction(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("AUTH_JWT_SECRET", "")

	if _, err := Load(); err == nil {
		t.Fatal("Load() should fail without a real secret in production")
	}

	t.Setenv("AUTH_JWT_SECRET", "a-real-secret-value")
	if _, err := Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
}

func TestGetEnvAsList(t *testing.T) {
	t.Setenv("TEST_ORIGINS", " https://a.example/ , ,https://b.example")

	got := getEnvAsList("TEST_ORIGINS", "")
	want := []string{"https://a.example", "https://b.example"}
	if len(got) != len(want) {
		t.Fatalf("getEnvAsList() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("getEnvAsList()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
