package config

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func writeConfig(t *testing.T, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "retarget.toml")
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
workers = 3
lookup = "distance"
max_distance = 0.25
scale = 0.08
flip_z = true
frame_rate = 60

[aliases]
"上半身" = "spine"
Hips = "hips"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Workers != 3 || cfg.Lookup != LookupDistance || cfg.MaxDistance != 0.25 || !cfg.FlipZ {
		t.Error("values: ", cfg)
	}
	if cfg.LogLevel != "info" {
		t.Error("defaults should be kept: ", cfg.LogLevel)
	}
	if cfg.Aliases["上半身"] != "spine" || len(cfg.Aliases) != 2 {
		t.Error("aliases: ", cfg.Aliases)
	}
	if s := cfg.Step(30); s != 0.5 {
		t.Error("step: ", s)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(writeConfig(t, "wokers = 3\n")); !errors.Is(err, ErrInvalid) {
		t.Error("unknown key should be rejected: ", err)
	}
	if _, err := Load(writeConfig(t, "workers = \"three\"\n")); err == nil {
		t.Error("type mismatch should fail")
	}
	if _, err := Load(filepath.Join(t.TempDir(), "none.toml")); !errors.Is(err, os.ErrNotExist) {
		t.Error("missing file: ", err)
	}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name  string
		cfg   Config
		flags Flags
		want  Config
		err   error
	}{
		{"defaults", Config{}, Flags{},
			Config{LogLevel: "info", Lookup: LookupName, MaxDistance: 1, Scale: 1}, nil},
		{"flags override", Config{Workers: 2, Lookup: LookupName, LogLevel: "warn"}, Flags{Workers: 8, Lookup: LookupDistance, LogLevel: "debug", Anchor: true, Watch: true},
			Config{LogLevel: "debug", Workers: 8, Lookup: LookupDistance, AnchorToParent: true, Watch: true, MaxDistance: 1, Scale: 1}, nil},
		{"zero flags keep file", Config{Workers: 2, AnchorToParent: true, Scale: 0.08}, Flags{},
			Config{LogLevel: "info", Workers: 2, Lookup: LookupName, AnchorToParent: true, MaxDistance: 1, Scale: 0.08}, nil},
		{"bad lookup", Config{Lookup: "fuzzy"}, Flags{}, Config{}, ErrInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			err := cfg.Resolve(tt.flags)
			if !errors.Is(err, tt.err) {
				t.Fatal("error: ", err)
			}
			if err != nil {
				return
			}
			if cfg.LogLevel != tt.want.LogLevel || cfg.Workers != tt.want.Workers || cfg.Lookup != tt.want.Lookup ||
				cfg.AnchorToParent != tt.want.AnchorToParent || cfg.Watch != tt.want.Watch ||
				cfg.MaxDistance != tt.want.MaxDistance || cfg.Scale != tt.want.Scale {
				t.Error("resolved: ", cfg, " want: ", tt.want)
			}
		})
	}
}

func TestThreadCount(t *testing.T) {
	cfg := Config{}
	if cfg.ThreadCount() != runtime.NumCPU() {
		t.Error("default thread count: ", cfg.ThreadCount())
	}
	cfg.Workers = 5
	if cfg.ThreadCount() != 5 {
		t.Error("thread count: ", cfg.ThreadCount())
	}
}
