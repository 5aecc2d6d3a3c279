package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	tmp := t.TempDir()
	path := filepath.Join(tmp, "cfg.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	return path
}

func requireErrEq(t *testing.T, err error, want string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error %q, got nil", want)
	}
	if err.Error() != want {
		t.Fatalf("error=%q want %q", err.Error(), want)
	}
}

func TestLoad_DefaultsApplied(t *testing.T) {
	path := writeTempConfig(t, "{}\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Fusion.Filter != FilterMadgwick {
		t.Fatalf("filter=%q want %q", cfg.Fusion.Filter, FilterMadgwick)
	}
	if cfg.Fusion.SampleInterval != 20*time.Millisecond {
		t.Fatalf("sample_interval=%s want 20ms", cfg.Fusion.SampleInterval)
	}
	if cfg.Fusion.InvSqrt != "fast" {
		t.Fatalf("inv_sqrt=%q want fast", cfg.Fusion.InvSqrt)
	}
	if cfg.Fusion.ComplementaryWeight != nil || cfg.Fusion.RateWeight != nil || cfg.Fusion.Beta != nil {
		t.Fatalf("expected tuning to stay unset so filter defaults apply")
	}
	if cfg.IMU.Source != SourceICM20948 || cfg.IMU.I2CBus != 1 {
		t.Fatalf("imu=%+v", cfg.IMU)
	}
	if cfg.Output.Interval != 200*time.Millisecond {
		t.Fatalf("output.interval=%s want 200ms", cfg.Output.Interval)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("expected error")
	}
}

func TestLoad_FullConfig(t *testing.T) {
	path := writeTempConfig(t, `
fusion:
  filter: Complementary
  sample_interval: 10ms
  complementary_weight: 0.98
  rate_weight: 0
  beta: 0.033
  inv_sqrt: exact
imu:
  source: sim
sim:
  yaw_rate_dps: 15
output:
  dest: 127.0.0.1:4000
  interval: 1s
web:
  listen: ":8080"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Fusion.Filter != FilterComplementary {
		t.Fatalf("filter=%q", cfg.Fusion.Filter)
	}
	if cfg.Fusion.SampleInterval != 10*time.Millisecond {
		t.Fatalf("sample_interval=%s", cfg.Fusion.SampleInterval)
	}
	if cfg.Fusion.ComplementaryWeight == nil || *cfg.Fusion.ComplementaryWeight != 0.98 {
		t.Fatalf("complementary_weight=%v", cfg.Fusion.ComplementaryWeight)
	}
	if cfg.Fusion.RateWeight == nil || *cfg.Fusion.RateWeight != 0 {
		t.Fatalf("rate_weight=%v want explicit 0", cfg.Fusion.RateWeight)
	}
	if cfg.Fusion.Beta == nil || *cfg.Fusion.Beta != 0.033 {
		t.Fatalf("beta=%v", cfg.Fusion.Beta)
	}
	if cfg.Fusion.InvSqrt != "exact" {
		t.Fatalf("inv_sqrt=%q", cfg.Fusion.InvSqrt)
	}
	if cfg.Sim.YawRateDps != 15 || cfg.Sim.Seed != 1 {
		t.Fatalf("sim=%+v", cfg.Sim)
	}
	if cfg.Output.Dest != "127.0.0.1:4000" || cfg.Output.Interval != time.Second {
		t.Fatalf("output=%+v", cfg.Output)
	}
	if cfg.Web.Listen != ":8080" {
		t.Fatalf("web.listen=%q", cfg.Web.Listen)
	}
}

func TestLoad_Validation(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "UnknownFilter",
			yaml: "fusion:\n  filter: kalman\n",
			want: "fusion.filter must be 'complementary' or 'madgwick'",
		},
		{
			name: "NegativeInterval",
			yaml: "fusion:\n  sample_interval: -5ms\n",
			want: "fusion.sample_interval must be > 0",
		},
		{
			name: "ComplementaryWeightOne",
			yaml: "fusion:\n  complementary_weight: 1.0\n",
			want: "fusion.complementary_weight must be in [0,1)",
		},
		{
			name: "RateWeightTooLarge",
			yaml: "fusion:\n  rate_weight: 1.5\n",
			want: "fusion.rate_weight must be in [0,1)",
		},
		{
			name: "NegativeBeta",
			yaml: "fusion:\n  beta: -0.1\n",
			want: "fusion.beta must be finite and >= 0",
		},
		{
			name: "InfiniteBeta",
			yaml: "fusion:\n  beta: .inf\n",
			want: "fusion.beta must be finite and >= 0",
		},
		{
			name: "NaNBeta",
			yaml: "fusion:\n  beta: .nan\n",
			want: "fusion.beta must be finite and >= 0",
		},
		{
			name: "UnknownInvSqrt",
			yaml: "fusion:\n  inv_sqrt: newton\n",
			want: "fusion.inv_sqrt must be 'fast' or 'exact'",
		},
		{
			name: "UnknownSource",
			yaml: "imu:\n  source: usb\n",
			want: "imu.source must be one of 'icm20948', 'replay', 'sim'",
		},
		{
			name: "ReplayRequiresPath",
			yaml: "imu:\n  source: replay\n",
			want: "replay.path is required when imu.source is 'replay'",
		},
		{
			name: "ReplayNegativeSpeed",
			yaml: "imu:\n  source: replay\nreplay:\n  path: x.log\n  speed: -1\n",
			want: "replay.speed must be > 0",
		},
		{
			name: "RecordRequiresPath",
			yaml: "record:\n  enable: true\n",
			want: "record.path is required when record.enable is true",
		},
		{
			name: "RecordAndReplay",
			yaml: "imu:\n  source: replay\nreplay:\n  path: a.log\nrecord:\n  enable: true\n  path: b.log\n",
			want: "record and replay cannot both be enabled",
		},
		{
			name: "NegativeGPIO",
			yaml: "imu:\n  data_ready_gpio: -4\n",
			want: "imu.data_ready_gpio must be >= 0",
		},
		{
			name: "NegativeNoise",
			yaml: "imu:\n  source: sim\nsim:\n  noise_dps: -1\n",
			want: "sim.noise_dps must be >= 0",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.yaml))
			requireErrEq(t, err, tc.want)
		})
	}
}

func TestParse_ReplaySpeedDefault(t *testing.T) {
	cfg, err := Parse([]byte("imu:\n  source: replay\nreplay:\n  path: samples.log\n"))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if cfg.Replay.Speed != 1 {
		t.Fatalf("speed=%v want 1", cfg.Replay.Speed)
	}
}
