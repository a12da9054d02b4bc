package watch

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadCapacityConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capacity.json")
	if err := os.WriteFile(path, []byte(`{"maxAllocs": 2048}`), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadCapacityConfig(path)
	if err != nil {
		t.Fatalf("LoadCapacityConfig: %v", err)
	}

	if cfg.MaxAllocs != 2048 {
		t.Errorf("MaxAllocs = %d, want 2048", cfg.MaxAllocs)
	}
}

func TestLoadCapacityConfigRejectsZero(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capacity.json")
	if err := os.WriteFile(path, []byte(`{"maxAllocs": 0}`), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := LoadCapacityConfig(path); err == nil {
		t.Errorf("expected maxAllocs=0 to be rejected")
	}
}

func TestLoadCapacityConfigMissingFile(t *testing.T) {
	if _, err := LoadCapacityConfig(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Errorf("expected missing file to error")
	}
}
