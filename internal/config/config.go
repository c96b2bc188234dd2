package config

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config is the file configuration of a planet generator run.
type Config struct {
	Planet    PlanetConfig    `toml:"planet"`
	Generator GeneratorConfig `toml:"generator"`
	Physics   PhysicsConfig   `toml:"physics"`
	Log       LogConfig       `toml:"log"`
}

// PlanetConfig describes the terrain and climate functions of one planet.
type PlanetConfig struct {
	Radius      float32 `toml:"radius"`
	Seed        int64   `toml:"seed"`
	Octaves     int     `toml:"octaves"`
	Frequency   float64 `toml:"frequency"`
	Persistence float64 `toml:"persistence"`
	Lacunarity  float64 `toml:"lacunarity"`
	Amplitude   float64 `toml:"amplitude"` // meters
	Offset      float64 `toml:"offset"`    // meters added to every sample

	BaseTemperature     float32 `toml:"base_temperature"`
	BaseHumidity        float32 `toml:"base_humidity"`
	TempLatitudeFalloff float32 `toml:"temp_latitude_falloff"`
	HumLatitudeFalloff  float32 `toml:"hum_latitude_falloff"`
	TempFalloffExponent float32 `toml:"temp_falloff_exponent"`
	HumFalloffExponent  float32 `toml:"hum_falloff_exponent"`

	LiquidTint [3]uint8 `toml:"liquid_tint"`
}

// GeneratorConfig tunes the terrain generation pipeline.
type GeneratorConfig struct {
	TimeoutFrames  int `toml:"timeout_frames"`
	WaterQuadSpan  int `toml:"water_quad_span"`
	CacheBytes     int `toml:"cache_bytes"`
	SubdivisionLOD int `toml:"subdivision_lod"`
}

// PhysicsConfig tunes the cellular automata workers.
type PhysicsConfig struct {
	Workers         int `toml:"workers"`
	QueueSize       int `toml:"queue_size"`
	LiquidFlowLimit int `toml:"liquid_flow_limit"`
}

// LogConfig selects the log level and an optional rotating log file.
type LogConfig struct {
	Level   string `toml:"level"`
	Logfile string `toml:"logfile"`
	MaxSize int    `toml:"max_log_size"` // megabytes
	MaxAge  int    `toml:"max_log_age"`  // days
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Planet: PlanetConfig{
			Radius:              6000,
			Seed:                1337,
			Octaves:             6,
			Frequency:           2.5,
			Persistence:         0.5,
			Lacunarity:          2.0,
			Amplitude:           120,
			Offset:              -40,
			BaseTemperature:     230,
			BaseHumidity:        200,
			TempLatitudeFalloff: 190,
			HumLatitudeFalloff:  120,
			TempFalloffExponent: 2,
			HumFalloffExponent:  3,
			LiquidTint:          [3]uint8{60, 110, 200},
		},
		Generator: GeneratorConfig{
			TimeoutFrames:  120,
			WaterQuadSpan:  8,
			CacheBytes:     32 << 20,
			SubdivisionLOD: 2,
		},
		Physics: PhysicsConfig{
			LiquidFlowLimit: 4,
		},
		Log: LogConfig{
			Level:   "info",
			MaxSize: 64,
			MaxAge:  14,
		},
	}
}

// Load reads a TOML file on top of Default. Unknown keys are an error.
func Load(path string) (Config, error) {
	cfg := Default()
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return cfg, fmt.Errorf("could not read config file %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return cfg, fmt.Errorf("config file %s: unknown keys %s", path, strings.Join(keys, ", "))
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks values that would make generation meaningless.
func (c Config) Validate() error {
	if c.Planet.Radius <= 0 {
		return fmt.Errorf("planet radius must be positive, got %v", c.Planet.Radius)
	}
	if c.Planet.Octaves <= 0 {
		return fmt.Errorf("planet octaves must be positive, got %d", c.Planet.Octaves)
	}
	if c.Generator.TimeoutFrames < 2 {
		return fmt.Errorf("generator timeout must cover the two-frame readback, got %d", c.Generator.TimeoutFrames)
	}
	if c.Generator.SubdivisionLOD < 0 {
		return fmt.Errorf("subdivision lod must not be negative, got %d", c.Generator.SubdivisionLOD)
	}
	return nil
}

// Apply pushes the tunable values into the runtime settings.
func (c Config) Apply() {
	SetTimeoutFrames(c.Generator.TimeoutFrames)
	SetWaterQuadSpan(c.Generator.WaterQuadSpan)
	SetLiquidFlowLimit(c.Physics.LiquidFlowLimit)
}
