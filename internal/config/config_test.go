package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadSyncConfigDefaults(t *testing.T) {
	t.Setenv("SYNC_CONFIG_PATH", "")
	t.Setenv("SYNC_WORKERS", "")
	t.Setenv("LOCATION_PLACEMENT", "")

	cfg, err := LoadSyncConfig()
	if err != nil {
		t.Fatalf("LoadSyncConfig: %v", err)
	}
	if cfg.LocationPlacement != PlacementFile {
		t.Errorf("placement = %q, want %q", cfg.LocationPlacement, PlacementFile)
	}
	if cfg.Workers != 2 {
		t.Errorf("workers = %d, want 2", cfg.Workers)
	}
	if cfg.Timeout() != 30*time.Second {
		t.Errorf("timeout = %v, want 30s", cfg.Timeout())
	}
}

func TestLoadSyncConfigEnvAndProfile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sync.yaml")
	profile := "auto_sync_interval: 60\nlocation_placement: LOG\nworkers: 4\n"
	if err := os.WriteFile(path, []byte(profile), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("SYNC_CONFIG_PATH", path)
	t.Setenv("SYNC_TIMEOUT", "5")
	t.Setenv("SYNC_WORKERS", "1")

	cfg, err := LoadSyncConfig()
	if err != nil {
		t.Fatalf("LoadSyncConfig: %v", err)
	}
	if cfg.Workers != 4 {
		t.Errorf("profile should override env: workers = %d", cfg.Workers)
	}
	if cfg.Timeout() != 5*time.Second {
		t.Errorf("timeout = %v, want 5s", cfg.Timeout())
	}
	if cfg.Interval() != time.Minute {
		t.Errorf("interval = %v, want 1m", cfg.Interval())
	}
	if cfg.LocationPlacement != PlacementLog {
		t.Errorf("placement = %q, want %q", cfg.LocationPlacement, PlacementLog)
	}
}

func TestLoadSyncConfigRejectsBadPlacement(t *testing.T) {
	t.Setenv("SYNC_CONFIG_PATH", "")
	t.Setenv("LOCATION_PLACEMENT", "shelf")

	if _, err := LoadSyncConfig(); err == nil {
		t.Fatal("expected an error for an unknown placement")
	}
}

func TestValidateClampsWorkers(t *testing.T) {
	cfg := &SyncConfig{LocationPlacement: PlacementFile, Workers: 0}
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	if cfg.Workers != 1 {
		t.Errorf("workers = %d, want 1", cfg.Workers)
	}
}

func TestLoad(t *testing.T) {
	t.Setenv("DB_DRIVER", "")
	t.Setenv("ODOO_SYNC_TRANSPORT", "XMLRPC")
	t.Setenv("ODOO_URL", "https://erp.example.com/")
	t.Setenv("ODOO_DB", "prod")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("driver = %q, want sqlite", cfg.Database.Driver)
	}
	if cfg.Odoo.URL != "https://erp.example.com" {
		t.Errorf("trailing slash kept: %q", cfg.Odoo.URL)
	}
	if !cfg.Odoo.SyncEnabled() {
		t.Error("xmlrpc with url and db should be enabled")
	}

	t.Setenv("ODOO_SYNC_TRANSPORT", "soap")
	if _, err := Load(); err == nil {
		t.Error("expected an error for an unknown transport")
	}

	t.Setenv("ODOO_SYNC_TRANSPORT", "")
	t.Setenv("DB_DRIVER", "mysql")
	if _, err := Load(); err == nil {
		t.Error("expected an error for an unknown driver")
	}
}

func TestSyncEnabledJSONRPC(t *testing.T) {
	o := OdooConfig{Transport: TransportJSONRPC}
	if o.SyncEnabled() {
		t.Error("jsonrpc without a sync url should be disabled")
	}
	o.SyncURL = "https://erp.example.com/parc_prep/sync"
	if !o.SyncEnabled() {
		t.Error("jsonrpc with a sync url should be enabled")
	}
}
