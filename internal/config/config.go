package config

import (
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Fusion FusionConfig `yaml:"fusion"`
	IMU    IMUConfig    `yaml:"imu"`
	Replay ReplayConfig `yaml:"replay"`
	Record RecordConfig `yaml:"record"`
	Sim    SimConfig    `yaml:"sim"`
	Output OutputConfig `yaml:"output"`
	Web    WebConfig    `yaml:"web"`
}

type FusionConfig struct {
	// Filter selects the attitude estimator: "complementary" or "madgwick".
	Filter         string        `yaml:"filter"`
	SampleInterval time.Duration `yaml:"sample_interval"`
	// Pointers so an explicit 0 is distinguishable from "unset".
	ComplementaryWeight *float64 `yaml:"complementary_weight"`
	RateWeight          *float64 `yaml:"rate_weight"`
	Beta                *float64 `yaml:"beta"`
	InvSqrt             string   `yaml:"inv_sqrt"`
}

type IMUConfig struct {
	Source        string `yaml:"source"`
	I2CBus        int    `yaml:"i2c_bus"`
	Address       uint16 `yaml:"address"`
	DataReadyGPIO int    `yaml:"data_ready_gpio"`
}

type ReplayConfig struct {
	Path  string  `yaml:"path"`
	Speed float64 `yaml:"speed"`
	Loop  bool    `yaml:"loop"`
}

type RecordConfig struct {
	Enable bool   `yaml:"enable"`
	Path   string `yaml:"path"`
}

type SimConfig struct {
	RollRateDps  float64 `yaml:"roll_rate_dps"`
	PitchRateDps float64 `yaml:"pitch_rate_dps"`
	YawRateDps   float64 `yaml:"yaw_rate_dps"`
	// NoiseDps adds deterministic pseudo-random gyro noise.
	NoiseDps float64 `yaml:"noise_dps"`
	Seed     int64   `yaml:"seed"`
}

type OutputConfig struct {
	Dest     string        `yaml:"dest"`
	Interval time.Duration `yaml:"interval"`
}

type WebConfig struct {
	Listen string `yaml:"listen"`
}

const (
	FilterComplementary = "complementary"
	FilterMadgwick      = "madgwick"

	SourceICM20948 = "icm20948"
	SourceReplay   = "replay"
	SourceSim      = "sim"
)

func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return Parse(b)
}

// Parse decodes YAML bytes, applies defaults and validates.
func Parse(b []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.applyDefaults(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (cfg *Config) applyDefaults() error {
	f := &cfg.Fusion
	f.Filter = strings.ToLower(strings.TrimSpace(f.Filter))
	if f.Filter == "" {
		f.Filter = FilterMadgwick
	}
	if f.Filter != FilterComplementary && f.Filter != FilterMadgwick {
		return fmt.Errorf("fusion.filter must be 'complementary' or 'madgwick'")
	}
	if f.SampleInterval < 0 {
		return fmt.Errorf("fusion.sample_interval must be > 0")
	}
	if f.SampleInterval == 0 {
		f.SampleInterval = 20 * time.Millisecond
	}
	if f.ComplementaryWeight != nil && !validWeight(*f.ComplementaryWeight) {
		return fmt.Errorf("fusion.complementary_weight must be in [0,1)")
	}
	if f.RateWeight != nil && !validWeight(*f.RateWeight) {
		return fmt.Errorf("fusion.rate_weight must be in [0,1)")
	}
	if f.Beta != nil && !(*f.Beta >= 0 && !math.IsInf(*f.Beta, 1)) {
		return fmt.Errorf("fusion.beta must be finite and >= 0")
	}
	f.InvSqrt = strings.ToLower(strings.TrimSpace(f.InvSqrt))
	if f.InvSqrt == "" {
		f.InvSqrt = "fast"
	}
	if f.InvSqrt != "fast" && f.InvSqrt != "exact" {
		return fmt.Errorf("fusion.inv_sqrt must be 'fast' or 'exact'")
	}

	imu := &cfg.IMU
	imu.Source = strings.ToLower(strings.TrimSpace(imu.Source))
	if imu.Source == "" {
		imu.Source = SourceICM20948
	}
	switch imu.Source {
	case SourceICM20948:
		if imu.I2CBus == 0 {
			imu.I2CBus = 1
		}
		if imu.DataReadyGPIO < 0 {
			return fmt.Errorf("imu.data_ready_gpio must be >= 0")
		}
	case SourceReplay:
		if cfg.Replay.Path == "" {
			return fmt.Errorf("replay.path is required when imu.source is 'replay'")
		}
		if cfg.Replay.Speed == 0 {
			cfg.Replay.Speed = 1
		}
		if cfg.Replay.Speed < 0 {
			return fmt.Errorf("replay.speed must be > 0")
		}
	case SourceSim:
	default:
		return fmt.Errorf("imu.source must be one of 'icm20948', 'replay', 'sim'")
	}

	if cfg.Record.Enable {
		if cfg.Record.Path == "" {
			return fmt.Errorf("record.path is required when record.enable is true")
		}
		if imu.Source == SourceReplay {
			return fmt.Errorf("record and replay cannot both be enabled")
		}
	}

	if cfg.Sim.NoiseDps < 0 {
		return fmt.Errorf("sim.noise_dps must be >= 0")
	}
	if cfg.Sim.Seed == 0 {
		cfg.Sim.Seed = 1
	}

	if cfg.Output.Interval <= 0 {
		cfg.Output.Interval = 200 * time.Millisecond
	}
	return nil
}

func validWeight(a float64) bool {
	return !math.IsNaN(a) && a >= 0 && a < 1
}
