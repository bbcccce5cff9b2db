package ssh

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func testConfig(t *testing.T) *Config {
	t.Helper()
	cfg := DefaultConfig("pve1.example.com", "root")
	cfg.Password = "secret"
	cfg.StrictHostKeyChecking = false
	return cfg
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"missing host", func(c *Config) { c.Host = "" }, true},
		{"missing user", func(c *Config) { c.User = "" }, true},
		{"realm in user", func(c *Config) { c.User = "root@pam" }, true},
		{"bad port", func(c *Config) { c.Port = 0 }, true},
		{"bad timeout", func(c *Config) { c.ConnectTimeout = 0 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_BuildSSHClientConfig_PasswordAuth(t *testing.T) {
	cfg := testConfig(t)
	cfg.PrivateKeyPath = ""
	// Point HOME somewhere empty so no default key is picked up.
	t.Setenv("HOME", t.TempDir())

	clientConfig, err := cfg.BuildSSHClientConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if clientConfig.User != "root" {
		t.Errorf("user = %q, want root", clientConfig.User)
	}
	// Password plus keyboard-interactive fallback.
	if len(clientConfig.Auth) != 2 {
		t.Errorf("got %d auth methods, want 2", len(clientConfig.Auth))
	}
	if clientConfig.Timeout != cfg.ConnectTimeout {
		t.Errorf("timeout = %v, want %v", clientConfig.Timeout, cfg.ConnectTimeout)
	}
}

func TestConfig_BuildSSHClientConfig_NoAuth(t *testing.T) {
	cfg := testConfig(t)
	cfg.Password = ""
	t.Setenv("HOME", t.TempDir())

	if _, err := cfg.BuildSSHClientConfig(); err == nil {
		t.Fatal("expected an error with no usable auth method")
	}
}

func TestConfig_BuildSSHClientConfig_MissingKeyFile(t *testing.T) {
	cfg := testConfig(t)
	cfg.PrivateKeyPath = filepath.Join(t.TempDir(), "absent")

	if _, err := cfg.BuildSSHClientConfig(); err == nil {
		t.Fatal("expected an error for a missing key file")
	}
}

func TestConfig_AuthMode(t *testing.T) {
	cfg := testConfig(t)
	t.Setenv("HOME", t.TempDir())
	if got := cfg.AuthMode(); got != "password" {
		t.Errorf("AuthMode = %q, want password", got)
	}

	keyPath := filepath.Join(t.TempDir(), "id_test")
	if err := os.WriteFile(keyPath, []byte("not a real key"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg.PrivateKeyPath = keyPath
	if got := cfg.AuthMode(); got != "key" {
		t.Errorf("AuthMode = %q, want key", got)
	}
}

func TestConfig_Address(t *testing.T) {
	cfg := &Config{Host: "pve1", Port: 2222, User: "root", Password: "x", ConnectTimeout: time.Second}
	if got := cfg.Address(); got != "pve1:2222" {
		t.Errorf("Address = %q", got)
	}
}
