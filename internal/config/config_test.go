package config

import (
	"errors"
	"testing"
)

func TestNewConfig(t *testing.T) {
	cfg := NewConfig("/input", "/output", "/log")

	if cfg.InputDir != "/input" {
		t.Errorf("expected InputDir=/input, got %s", cfg.InputDir)
	}
	if cfg.OutputDir != "/output" {
		t.Errorf("expected OutputDir=/output, got %s", cfg.OutputDir)
	}
	if cfg.LogDir != "/log" {
		t.Errorf("expected LogDir=/log, got %s", cfg.LogDir)
	}
	if cfg.SVTAV1Preset != DefaultSVTAV1Preset {
		t.Errorf("expected SVTAV1Preset=%d, got %d", DefaultSVTAV1Preset, cfg.SVTAV1Preset)
	}
	if cfg.CRFSD != DefaultCRFSD {
		t.Errorf("expected CRFSD=%d, got %d", DefaultCRFSD, cfg.CRFSD)
	}
	if cfg.ToleranceRatio != DefaultToleranceRatio {
		t.Errorf("expected ToleranceRatio=%g, got %g", DefaultToleranceRatio, cfg.ToleranceRatio)
	}
	if cfg.Workers < 1 {
		t.Errorf("expected Workers >= 1, got %d", cfg.Workers)
	}
}

func TestNewConfigOptions(t *testing.T) {
	cfg := New("/in", "/out", "/log",
		WithSearchFlags(true, true, true),
		WithUltimate(true),
		WithAllowSizeTolerance(false),
		WithAppleCompat(true),
		WithWorkers(8),
		WithChildThreads(2),
	)

	if !cfg.Explore || !cfg.MatchQuality || !cfg.Compress || !cfg.Ultimate {
		t.Error("expected full search-flag triple and ultimate set")
	}
	if cfg.ToleranceRatio != StrictToleranceRatio {
		t.Errorf("expected strict tolerance, got %g", cfg.ToleranceRatio)
	}
	if !cfg.AppleCompat {
		t.Error("expected AppleCompat=true")
	}
	if cfg.Workers != 8 || cfg.ChildThreads != 2 {
		t.Errorf("expected Workers=8 ChildThreads=2, got %d %d", cfg.Workers, cfg.ChildThreads)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name         string
		modify       func(*Config)
		wantErr      bool
		wantSentinel error
	}{
		{
			name:    "default config is valid",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:         "preset 14 is invalid",
			modify:       func(c *Config) { c.SVTAV1Preset = 14 },
			wantErr:      true,
			wantSentinel: ErrInvalidSVTPreset,
		},
		{
			name:    "preset 13 is valid",
			modify:  func(c *Config) { c.SVTAV1Preset = 13 },
			wantErr: false,
		},
		{
			name:         "crf_sd 64 is invalid",
			modify:       func(c *Config) { c.CRFSD = 64 },
			wantErr:      true,
			wantSentinel: ErrInvalidCRF,
		},
		{
			name:         "tolerance below 1.0 is invalid",
			modify:       func(c *Config) { c.ToleranceRatio = 0.99 },
			wantErr:      true,
			wantSentinel: ErrInvalidTolerance,
		},
		{
			name:         "illegal search flag triple is invalid",
			modify:       func(c *Config) { c.Explore = true; c.MatchQuality = false; c.Compress = true },
			wantErr:      true,
			wantSentinel: ErrInvalidSearchModeFlags,
		},
		{
			name:    "workers zero is invalid",
			modify:  func(c *Config) { c.Workers = 0 },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig("/input", "/output", "/log")
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantSentinel != nil && !errors.Is(err, tt.wantSentinel) {
				t.Errorf("Validate() error = %v, want sentinel %v", err, tt.wantSentinel)
			}
		})
	}
}

func TestCRFForWidth(t *testing.T) {
	cfg := NewConfig("/input", "/output", "/log")
	cfg.CRFSD = 25
	cfg.CRFHD = 27
	cfg.CRFUHD = 29

	tests := []struct {
		width    uint32
		expected uint8
	}{
		{1280, 25},
		{1919, 25},
		{1920, 27},
		{2560, 27},
		{3839, 27},
		{3840, 29},
		{7680, 29},
	}

	for _, tt := range tests {
		got := cfg.CRFForWidth(tt.width)
		if got != tt.expected {
			t.Errorf("CRFForWidth(%d) = %d, want %d", tt.width, got, tt.expected)
		}
	}
}

func TestThreadBudget(t *testing.T) {
	tests := []struct {
		cpus             int
		wantParallel     int
		wantChildThreads int
	}{
		{1, 1, 1},
		{2, 1, 2},
		{4, 2, 2},
		{8, 4, 2},
		{16, 4, 4},
		{32, 4, 8},
	}

	for _, tt := range tests {
		parallel, child := ThreadBudget(tt.cpus)
		if parallel != tt.wantParallel || child != tt.wantChildThreads {
			t.Errorf("ThreadBudget(%d) = (%d, %d), want (%d, %d)",
				tt.cpus, parallel, child, tt.wantParallel, tt.wantChildThreads)
		}
		if parallel*child < tt.cpus/2 || parallel*child > 2*tt.cpus {
			t.Errorf("ThreadBudget(%d) product %d out of [N/2, 2N]", tt.cpus, parallel*child)
		}
	}
}

func TestMinSizeBytes(t *testing.T) {
	if MinSizeBytes(true) != DefaultMinVideoSizeBytes {
		t.Errorf("MinSizeBytes(true) = %d, want %d", MinSizeBytes(true), DefaultMinVideoSizeBytes)
	}
	if MinSizeBytes(false) != DefaultMinImageSizeBytes {
		t.Errorf("MinSizeBytes(false) = %d, want %d", MinSizeBytes(false), DefaultMinImageSizeBytes)
	}
}
