package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.App.Port != 8080 {
		t.Fatalf("expected default port 8080, got %d", cfg.App.Port)
	}
	if cfg.Verification.CodeLength != 6 {
		t.Fatalf("expected 6 digit codes, got %d", cfg.Verification.CodeLength)
	}
	if cfg.Verification.CodeTTL != 10*time.Minute {
		t.Fatalf("expected 10m code ttl, got %s", cfg.Verification.CodeTTL)
	}
	if cfg.Verification.MaxAttempts != 5 {
		t.Fatalf("expected 5 max attempts, got %d", cfg.Verification.MaxAttempts)
	}
	if cfg.Auth.MinPasswordLength != 6 {
		t.Fatalf("expected min password length 6, got %d", cfg.Auth.MinPasswordLength)
	}
	if cfg.Mail.Driver != MailDriverLog || cfg.Verification.Store != StoreRedis {
		t.Fatalf("unexpected drivers: mail=%s store=%s", cfg.Mail.Driver, cfg.Verification.Store)
	}
	if cfg.Timeouts.Store != 2*time.Second || cfg.Timeouts.Mailer != 5*time.Second {
		t.Fatalf("unexpected timeouts: %+v", cfg.Timeouts)
	}
	if cfg.IsProduction() {
		t.Fatal("default env should not be production")
	}
}

func TestLoadPrefixedEnvironment(t *testing.T) {
	t.Setenv("FINWISE_APP_PORT", "9191")
	t.Setenv("FINWISE_VERIFICATION_STORE", "postgres")
	t.Setenv("FINWISE_KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("TIMEOUTS_MAILER", "750ms")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.App.Port != 9191 {
		t.Fatalf("expected port override, got %d", cfg.App.Port)
	}
	if cfg.Verification.Store != StorePostgres {
		t.Fatalf("expected postgres store, got %s", cfg.Verification.Store)
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "k2:9092" {
		t.Fatalf("unexpected brokers: %v", cfg.Kafka.Brokers)
	}
	if cfg.Timeouts.Mailer != 750*time.Millisecond {
		t.Fatalf("expected unprefixed fallback to apply, got %s", cfg.Timeouts.Mailer)
	}
}

func TestLoadRequiresSecretInProduction(t *testing.T) {
	t.Setenv("FINWISE_APP_ENV", "production")

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "auth.secret is required") {
		t.Fatalf("expected missing secret error, got %v", err)
	}

	t.Setenv("FINWISE_AUTH_SECRET", "too-short")
	_, err = Load()
	if err == nil || !strings.Contains(err.Error(), "at least 32 bytes") {
		t.Fatalf("expected short secret error, got %v", err)
	}

	t.Setenv("FINWISE_AUTH_SECRET", strings.Repeat("s", 32))
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !cfg.IsProduction() {
		t.Fatal("expected production env")
	}
}

func TestValidateRejectsUnknownDrivers(t *testing.T) {
	t.Setenv("FINWISE_MAIL_DRIVER", "pigeon")
	t.Setenv("FINWISE_VERIFICATION_STORE", "memory")

	_, err := Load()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"mail.driver", "verification.store"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %q in error, got %v", want, err)
		}
	}
}

func TestValidateSMTPRequiresHost(t *testing.T) {
	t.Setenv("FINWISE_MAIL_DRIVER", "smtp")

	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "mail.smtp_host") {
		t.Fatalf("expected smtp host error, got %v", err)
	}
}
