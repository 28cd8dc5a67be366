package config

import (
	"fmt"
	"runtime"

	"github.com/hadronmedia/recompress/internal/modevalidator"
)

// Default constants.
const (
	// DefaultCRFSD is the default CRF quality setting for SD content (<1920 width).
	DefaultCRFSD uint8 = 25

	// DefaultCRFHD is the default CRF quality setting for HD content (>=1920, <3840 width).
	DefaultCRFHD uint8 = 27

	// DefaultCRFUHD is the default CRF quality setting for UHD content (>=3840 width).
	DefaultCRFUHD uint8 = 29

	// HDWidthThreshold is the minimum width for HD resolution.
	HDWidthThreshold uint32 = 1920

	// UHDWidthThreshold is the minimum width for UHD resolution.
	UHDWidthThreshold uint32 = 3840

	// DefaultSVTAV1Preset is the SVT-AV1 preset (0-13, lower is slower/better).
	DefaultSVTAV1Preset uint8 = 6

	// DefaultSVTAV1Tune is the SVT-AV1 tune parameter.
	DefaultSVTAV1Tune uint8 = 0

	// DefaultHEVCPreset is the libx265 preset.
	DefaultHEVCPreset string = "medium"

	// DefaultToleranceRatio is the size-tolerance ceiling relative to input size (I2).
	DefaultToleranceRatio float64 = 1.01

	// StrictToleranceRatio is the tolerance ratio when allow_size_tolerance=false.
	StrictToleranceRatio float64 = 1.00

	// DefaultUltimateEpsilon is the marginal-SSIM-gain-per-CRF-step threshold
	// below which Ultimate mode stops extending the bisection (§4.4).
	DefaultUltimateEpsilon float64 = 0.002

	// DefaultMinVideoSizeBytes is the minimum committed output size for a
	// video before the original is eligible for deletion (I4).
	DefaultMinVideoSizeBytes int64 = 1024

	// DefaultMinImageSizeBytes is the minimum committed output size for an
	// image before the original is eligible for deletion (I4).
	DefaultMinImageSizeBytes int64 = 100

	// DefaultEncodeTimeoutMinutes is the per-encode wall timeout (§5).
	DefaultEncodeTimeoutMinutes int = 30

	// DefaultEncodeCooldownSecs is the cooldown period between encodes.
	DefaultEncodeCooldownSecs uint64 = 3
)

// ThreadBudget returns the parallel-task count and per-task child-thread
// count for the given logical CPU count, per §4.7's clamp formula:
// parallel_tasks = clamp(N/2, 1, 4), child_threads = clamp(N/parallel_tasks, 1, N).
func ThreadBudget(cpuCount int) (parallelTasks, childThreads int) {
	if cpuCount < 1 {
		cpuCount = 1
	}
	parallelTasks = clampInt(cpuCount/2, 1, 4)
	childThreads = clampInt(cpuCount/parallelTasks, 1, cpuCount)
	return parallelTasks, childThreads
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Config holds all configuration for a recompress batch run.
type Config struct {
	// Input/output paths.
	InputDir  string
	OutputDir string
	LogDir    string
	TempDir   string // Optional, defaults to OutputDir
	BaseDir   string // Base directory relative paths are mirrored under

	// Search policy flags (§4.6, §6 input side).
	Explore      bool
	MatchQuality bool
	Compress     bool
	Ultimate     bool

	// Run-level flags.
	Force              bool // bypass the ledger/exists short-circuit
	InPlace            bool
	DeleteOriginal     bool
	AllowSizeTolerance bool // false selects StrictToleranceRatio
	AppleCompat        bool
	Lossless           bool
	Verbose            bool
	NoLog              bool

	// Size/quality gates.
	ToleranceRatio  float64
	UltimateEpsilon float64

	// Video encoder parameters.
	SVTAV1Preset uint8
	SVTAV1Tune   uint8
	HEVCPreset   string
	CRFSD        uint8
	CRFHD        uint8
	CRFUHD       uint8

	// Parallel encoding options.
	Workers      int
	ChildThreads int

	// Per-encode wall timeout.
	EncodeTimeoutMinutes int
	EncodeCooldownSecs   uint64

	// Ledger persistence (optional side feature, §4.8).
	LedgerPath string
}

// Option configures a Config returned by New.
type Option func(*Config)

// WithTempDir sets the scratch directory used for atomic-commit temp files.
func WithTempDir(dir string) Option { return func(c *Config) { c.TempDir = dir } }

// WithBaseDir sets the base directory relative output paths mirror under.
func WithBaseDir(dir string) Option { return func(c *Config) { c.BaseDir = dir } }

// WithSearchFlags sets the (explore, match-quality, compress) triple consumed by C6.
func WithSearchFlags(explore, matchQuality, compress bool) Option {
	return func(c *Config) {
		c.Explore = explore
		c.MatchQuality = matchQuality
		c.Compress = compress
	}
}

// WithUltimate enables Ultimate mode (requires the full search-flag triple).
func WithUltimate(ultimate bool) Option { return func(c *Config) { c.Ultimate = ultimate } }

// WithForce sets the force flag, bypassing the ledger and exists short-circuit.
func WithForce(force bool) Option { return func(c *Config) { c.Force = force } }

// WithInPlace selects in-place replacement instead of adjacent-output-directory mode.
func WithInPlace(inPlace bool) Option { return func(c *Config) { c.InPlace = inPlace } }

// WithDeleteOriginal enables deletion of the original after a verified commit.
func WithDeleteOriginal(del bool) Option { return func(c *Config) { c.DeleteOriginal = del } }

// WithAllowSizeTolerance toggles the 1.01x tolerance ceiling vs. strict 1.00x.
func WithAllowSizeTolerance(allow bool) Option {
	return func(c *Config) {
		c.AllowSizeTolerance = allow
		if allow {
			c.ToleranceRatio = DefaultToleranceRatio
		} else {
			c.ToleranceRatio = StrictToleranceRatio
		}
	}
}

// WithAppleCompat enables Apple-compatible output selection (hvc1 tagging, GIF retention).
func WithAppleCompat(appleCompat bool) Option { return func(c *Config) { c.AppleCompat = appleCompat } }

// WithLossless selects the lossless AV1/HEVC pipeline.
func WithLossless(lossless bool) Option { return func(c *Config) { c.Lossless = lossless } }

// WithVerbose enables debug-level logging.
func WithVerbose(verbose bool) Option { return func(c *Config) { c.Verbose = verbose } }

// WithNoLog disables file logging entirely.
func WithNoLog(noLog bool) Option { return func(c *Config) { c.NoLog = noLog } }

// WithWorkers overrides the auto-detected parallel-task count.
func WithWorkers(n int) Option { return func(c *Config) { c.Workers = n } }

// WithChildThreads overrides the auto-detected per-task encoder thread count.
func WithChildThreads(n int) Option { return func(c *Config) { c.ChildThreads = n } }

// WithEncodeTimeout overrides the per-encode wall timeout, in minutes.
func WithEncodeTimeout(minutes int) Option { return func(c *Config) { c.EncodeTimeoutMinutes = minutes } }

// WithLedgerPath enables optional disk persistence of the de-duplication ledger.
func WithLedgerPath(path string) Option { return func(c *Config) { c.LedgerPath = path } }

// New creates a Config with recompress's defaults, then applies opts in order.
func New(inputDir, outputDir, logDir string, opts ...Option) *Config {
	parallelTasks, childThreads := ThreadBudget(runtime.NumCPU())

	c := &Config{
		InputDir:             inputDir,
		OutputDir:            outputDir,
		LogDir:               logDir,
		SVTAV1Preset:         DefaultSVTAV1Preset,
		SVTAV1Tune:           DefaultSVTAV1Tune,
		HEVCPreset:           DefaultHEVCPreset,
		CRFSD:                DefaultCRFSD,
		CRFHD:                DefaultCRFHD,
		CRFUHD:               DefaultCRFUHD,
		ToleranceRatio:       DefaultToleranceRatio,
		UltimateEpsilon:      DefaultUltimateEpsilon,
		AllowSizeTolerance:   true,
		Workers:              parallelTasks,
		ChildThreads:         childThreads,
		EncodeTimeoutMinutes: DefaultEncodeTimeoutMinutes,
		EncodeCooldownSecs:   DefaultEncodeCooldownSecs,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewConfig is a legacy-named alias for New, retained for call-site familiarity
// with the teacher's constructor.
func NewConfig(inputDir, outputDir, logDir string, opts ...Option) *Config {
	return New(inputDir, outputDir, logDir, opts...)
}

// SearchMode resolves the configured flag triple into a modevalidator.SearchMode,
// rejecting illegal combinations (§4.6).
func (c *Config) SearchMode() (modevalidator.SearchMode, error) {
	mode, err := modevalidator.Resolve(c.Explore, c.MatchQuality, c.Compress, c.Ultimate)
	if err != nil {
		return mode, fmt.Errorf("%w: %v", ErrInvalidSearchModeFlags, err)
	}
	return mode, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.SVTAV1Preset > 13 {
		return fmt.Errorf("%w: svt_av1_preset must be 0-13, got %d", ErrInvalidSVTPreset, c.SVTAV1Preset)
	}
	if c.CRFSD > 63 {
		return fmt.Errorf("%w: crf-sd must be 0-63, got %d", ErrInvalidCRF, c.CRFSD)
	}
	if c.CRFHD > 63 {
		return fmt.Errorf("%w: crf-hd must be 0-63, got %d", ErrInvalidCRF, c.CRFHD)
	}
	if c.CRFUHD > 63 {
		return fmt.Errorf("%w: crf-uhd must be 0-63, got %d", ErrInvalidCRF, c.CRFUHD)
	}
	if c.ToleranceRatio < 1.0 {
		return fmt.Errorf("%w: got %g", ErrInvalidTolerance, c.ToleranceRatio)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if c.ChildThreads < 1 {
		return fmt.Errorf("child_threads must be at least 1, got %d", c.ChildThreads)
	}
	if _, err := c.SearchMode(); err != nil {
		return err
	}
	return nil
}

// GetTempDir returns the temp directory, falling back to OutputDir if not set.
func (c *Config) GetTempDir() string {
	if c.TempDir != "" {
		return c.TempDir
	}
	return c.OutputDir
}

// CRFForWidth returns the appropriate CRF value based on video width.
func (c *Config) CRFForWidth(width uint32) uint8 {
	if width >= UHDWidthThreshold {
		return c.CRFUHD
	}
	if width >= HDWidthThreshold {
		return c.CRFHD
	}
	return c.CRFSD
}

// MinSizeBytes returns the I4 minimum committed-output size below which the
// original must never be deleted, for the given target kind.
func MinSizeBytes(isVideo bool) int64 {
	if isVideo {
		return DefaultMinVideoSizeBytes
	}
	return DefaultMinImageSizeBytes
}
