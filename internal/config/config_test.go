package config

import (
	"os"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Env != "development" {
		t.Errorf("expected env=development, got %s", cfg.Env)
	}
	if cfg.Production() {
		t.Errorf("expected development to not be production")
	}
	if cfg.DB.Path != "negotiation.db" {
		t.Errorf("unexpected db path: %s", cfg.DB.Path)
	}
	if cfg.Automation.IntervalSec != 15 {
		t.Errorf("expected automation interval 15, got %d", cfg.Automation.IntervalSec)
	}
	if !cfg.Sealing.AllowInsecureDevKeys {
		t.Errorf("expected dev keys allowed by default")
	}
}

func TestLoadFromEnv(t *testing.T) {
	os.Setenv("NEG_ENV", "production")
	os.Setenv("NEG_SIGNER_KMS_KEY_ID", "arn:aws:kms:us-east-1:123456:key/test-key")
	defer os.Unsetenv("NEG_ENV")
	defer os.Unsetenv("NEG_SIGNER_KMS_KEY_ID")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Env != "production" || !cfg.Production() {
		t.Errorf("expected env=production, got %s", cfg.Env)
	}
	if cfg.Signer.KMSKeyID != "arn:aws:kms:us-east-1:123456:key/test-key" {
		t.Errorf("unexpected kms key id: %s", cfg.Signer.KMSKeyID)
	}
}
