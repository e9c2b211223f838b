package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lendingd.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
auth:
  api_tokens:
    - " token-one "
    - ""
`))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddress != ":8646" {
		t.Fatalf("listen address: got %q", cfg.ListenAddress)
	}
	if len(cfg.Auth.APITokens) != 1 || cfg.Auth.APITokens[0] != "token-one" {
		t.Fatalf("tokens: %+v", cfg.Auth.APITokens)
	}
	if cfg.RateLimit.RequestsPerMinute != 600 || cfg.RateLimit.Burst != 20 {
		t.Fatalf("rate limit defaults: %+v", cfg.RateLimit)
	}
}

func TestLoadHonorsExplicitSettings(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
listen: "127.0.0.1:9000"
auth:
  api_tokens: ["secret"]
rate_limit:
  requests_per_minute: 60
  burst: 5
`))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddress != "127.0.0.1:9000" {
		t.Fatalf("listen address: got %q", cfg.ListenAddress)
	}
	if cfg.RateLimit.RequestsPerMinute != 60 || cfg.RateLimit.Burst != 5 {
		t.Fatalf("rate limit: %+v", cfg.RateLimit)
	}
}

func TestLoadRequiresTokens(t *testing.T) {
	if _, err := Load(writeConfig(t, "listen: \":9000\"\n")); err == nil {
		t.Fatalf("expected error for missing api tokens")
	}
}

func TestLoadRequiresPath(t *testing.T) {
	if _, err := Load(""); err == nil {
		t.Fatalf("expected error for empty path")
	}
}
