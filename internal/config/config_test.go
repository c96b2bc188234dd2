package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "planet.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
[planet]
radius = 1200.0
seed = 42
liquid_tint = [1, 2, 3]

[generator]
timeout_frames = 30

[log]
level = "debug"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Planet.Radius != 1200 || cfg.Planet.Seed != 42 {
		t.Fatalf("planet section not decoded: %+v", cfg.Planet)
	}
	if cfg.Planet.LiquidTint != [3]uint8{1, 2, 3} {
		t.Fatalf("liquid tint = %v", cfg.Planet.LiquidTint)
	}
	if cfg.Planet.Octaves != Default().Planet.Octaves {
		t.Fatal("unset key lost its default")
	}
	if cfg.Generator.TimeoutFrames != 30 || cfg.Log.Level != "debug" {
		t.Fatalf("got timeout %d level %q", cfg.Generator.TimeoutFrames, cfg.Log.Level)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := writeConfig(t, "[planet]\nradiuss = 10.0\n")
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "radiuss") {
		t.Fatalf("expected unknown key error, got %v", err)
	}
}

func TestLoadValidates(t *testing.T) {
	path := writeConfig(t, "[generator]\ntimeout_frames = 1\n")
	if _, err := Load(path); err == nil {
		t.Fatal("timeout below two frames accepted")
	}
}

func TestSettingsClamp(t *testing.T) {
	defer SetTimeoutFrames(GetTimeoutFrames())
	defer SetWaterQuadSpan(GetWaterQuadSpan())

	SetTimeoutFrames(0)
	if GetTimeoutFrames() != 2 {
		t.Fatalf("timeout = %d, want 2", GetTimeoutFrames())
	}
	SetWaterQuadSpan(100)
	if GetWaterQuadSpan() != 32 {
		t.Fatalf("water span = %d, want 32", GetWaterQuadSpan())
	}
}
