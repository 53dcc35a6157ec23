package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestLoadConfig_Defaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.ServerPort != "8090" {
		t.Fatalf("expected default server port 8090, got %q", cfg.ServerPort)
	}
	if cfg.SessionStore != SessionStoreFile {
		t.Fatalf("expected default session store %q, got %q", SessionStoreFile, cfg.SessionStore)
	}
	if cfg.ScanTick() != 50*time.Millisecond {
		t.Fatalf("expected default scan tick 50ms, got %v", cfg.ScanTick())
	}
}

func TestLoadConfig_EnvOverridesDefaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	t.Setenv("LEDGER_BASE_URL", "http://ledger.internal:9000")
	t.Setenv("SESSION_STORE", SessionStoreRedis)
	t.Setenv("SESSION_TOKEN_TTL_MINUTES", "30")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.LedgerBaseURL != "http://ledger.internal:9000" {
		t.Fatalf("expected ledger base URL from env, got %q", cfg.LedgerBaseURL)
	}
	if cfg.SessionStore != SessionStoreRedis {
		t.Fatalf("expected redis session store, got %q", cfg.SessionStore)
	}
	if cfg.SessionTokenTTL() != 30*time.Minute {
		t.Fatalf("expected 30m token TTL, got %v", cfg.SessionTokenTTL())
	}
}

func TestAllowedOrigins_SplitsAndTrims(t *testing.T) {
	cfg := Config{CORSAllowedOrigins: "http://localhost:5173, http://localhost:3000 ,"}
	got := cfg.AllowedOrigins()
	if len(got) != 2 {
		t.Fatalf("expected 2 origins, got %d (%v)", len(got), got)
	}
	if got[1] != "http://localhost:3000" {
		t.Fatalf("expected trimmed origin, got %q", got[1])
	}
}
