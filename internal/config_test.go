package internal

import (
	"strings"
	"testing"
	"time"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestFullConfig_AuthValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Auth.Mode = "token"
	cfg.Auth.Token = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("full config validate should catch auth error")
	}
}

func TestDefaultConfig_Valid(t *testing.T) {
	if err := NewDefaultConfig().Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestStorageConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     StorageConfig
		wantErr bool
	}{
		{"empty defaults to sqlite", StorageConfig{}, false},
		{"fs with dir", StorageConfig{Backend: StorageFS, Dir: "./docs"}, false},
		{"fs without dir", StorageConfig{Backend: StorageFS}, true},
		{"minio missing bucket", StorageConfig{Backend: StorageMinio, Minio: MinioConfig{Endpoint: "localhost:9000"}}, true},
		{"minio complete", StorageConfig{Backend: StorageMinio, Minio: MinioConfig{
			Endpoint: "localhost:9000", Bucket: "docs", AccessKey: "a", SecretKey: "s",
		}}, false},
		{"unknown backend", StorageConfig{Backend: "indexeddb"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestStorageConfig_EmptyBackendNormalised(t *testing.T) {
	cfg := StorageConfig{}
	_ = cfg.Validate()
	if cfg.Backend != StorageSQLite {
		t.Errorf("backend = %q, want %q", cfg.Backend, StorageSQLite)
	}
}

func TestBackendConfig_URL(t *testing.T) {
	cfg := NewDefaultConfig().Backend
	cfg.URL = "localhost:8000"
	if err := cfg.Validate(); err == nil {
		t.Error("URL without scheme should fail")
	}
	cfg.URL = "https://analysis.example.com"
	if err := cfg.Validate(); err != nil {
		t.Errorf("https URL should pass: %v", err)
	}
}

func TestBreakerConfig_DisabledSkipsChecks(t *testing.T) {
	cfg := BreakerConfig{Enabled: false}
	if err := cfg.Validate(); err != nil {
		t.Errorf("disabled breaker should pass: %v", err)
	}
	cfg.Enabled = true
	if err := cfg.Validate(); err == nil {
		t.Error("enabled breaker without thresholds should fail")
	}
}

func TestHistoryConfig_Capacity(t *testing.T) {
	if err := (&HistoryConfig{Capacity: 0}).Validate(); err == nil {
		t.Error("zero capacity should fail")
	}
	if err := (&HistoryConfig{Capacity: 25}).Validate(); err != nil {
		t.Errorf("capacity 25 should pass: %v", err)
	}
}

func TestSessionConfig_TTL(t *testing.T) {
	cfg := NewDefaultConfig().Session
	cfg.TTL = time.Second
	if err := cfg.Validate(); err == nil {
		t.Error("sub-minute TTL should fail")
	}
}
