package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig without a file should use defaults, got: %v", err)
	}
	if cfg.Server.HTTPAddress != ":8080" {
		t.Errorf("Expected default http address, got %q", cfg.Server.HTTPAddress)
	}
	if cfg.Game.MaxAdmins != 3 {
		t.Errorf("Expected 3 admins max, got %d", cfg.Game.MaxAdmins)
	}
	if cfg.Game.NearbyRadius != 50 {
		t.Errorf("Expected 50m radius, got %f", cfg.Game.NearbyRadius)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("Expected sqlite driver, got %q", cfg.Database.Driver)
	}
	if cfg.AI.Timeout != time.Minute {
		t.Errorf("Expected 60s AI timeout, got %v", cfg.AI.Timeout)
	}
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	yaml := []byte(`
server:
  http_address: ":9090"
database:
  driver: memory
game:
  max_admins: 5
`)
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), yaml, 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("GARDIEN_SERVER_RPC_ADDRESS", ":9191")
	t.Setenv("GEMINI_API_KEY", "secret-key")

	cfg, err := LoadConfig(dir)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Server.HTTPAddress != ":9090" {
		t.Errorf("Expected file value :9090, got %q", cfg.Server.HTTPAddress)
	}
	if cfg.Server.RPCAddress != ":9191" {
		t.Errorf("Expected env override :9191, got %q", cfg.Server.RPCAddress)
	}
	if cfg.Database.Driver != "memory" || cfg.Game.MaxAdmins != 5 {
		t.Errorf("File values not applied: %+v %+v", cfg.Database, cfg.Game)
	}
	if cfg.AI.APIKey != "secret-key" {
		t.Errorf("Expected API key from GEMINI_API_KEY, got %q", cfg.AI.APIKey)
	}
}
