package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSave_RoundTrip(t *testing.T) {
	path := writeTempConfig(t, "imu:\n  source: sim\nsim:\n  yaw_rate_dps: 5\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	beta := 0.25
	cfg.Fusion.Beta = &beta
	cfg.Fusion.SampleInterval = 5 * time.Millisecond
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load() after save error: %v", err)
	}
	if got.Fusion.Beta == nil || *got.Fusion.Beta != 0.25 {
		t.Fatalf("beta=%v", got.Fusion.Beta)
	}
	if got.Fusion.SampleInterval != 5*time.Millisecond {
		t.Fatalf("sample_interval=%s", got.Fusion.SampleInterval)
	}
	if got.IMU.Source != SourceSim || got.Sim.YawRateDps != 5 {
		t.Fatalf("imu=%+v sim=%+v", got.IMU, got.Sim)
	}

	// No temp files left behind.
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("dir entries=%d want 1", len(entries))
	}
}

func TestSave_RejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	bad := -1.0
	cfg := Config{Fusion: FusionConfig{Beta: &bad}}
	requireErrEq(t, Save(path, cfg), "fusion.beta must be finite and >= 0")
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("file written for invalid config: %v", err)
	}
}
