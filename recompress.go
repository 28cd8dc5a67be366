// Package recompress provides a Go library for re-encoding stills, video,
// and animations into smaller files at equal or better perceptual quality.
//
// recompress routes each input to a modern format (JPEG XL for stills,
// AV1 or HEVC for video, AVIF for Apple-targeted raster stills) and
// searches for the smallest parameter that clears a quality floor, before
// atomically committing the result in place of, or alongside, the
// original.
//
// Basic usage:
//
//	r, err := recompress.New(
//	    recompress.WithExplore(),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	summary, err := r.Run(ctx, "photos/", "photos-out/")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Printf("succeeded: %d/%d\n", summary.Succeeded, summary.TotalFiles)
package recompress

import (
	"context"
	"fmt"

	"github.com/hadronmedia/recompress/internal/batch"
	"github.com/hadronmedia/recompress/internal/config"
	"github.com/hadronmedia/recompress/internal/logging"
	"github.com/hadronmedia/recompress/internal/reporter"
)

// Option configures a Recompressor returned by New.
type Option = config.Option

// Re-export the config package's functional options so callers never need
// to import internal/config directly.
var (
	WithBaseDir            = config.WithBaseDir
	WithTempDir            = config.WithTempDir
	WithForce              = config.WithForce
	WithInPlace            = config.WithInPlace
	WithDeleteOriginal     = config.WithDeleteOriginal
	WithAllowSizeTolerance = config.WithAllowSizeTolerance
	WithAppleCompat        = config.WithAppleCompat
	WithLossless           = config.WithLossless
	WithVerbose            = config.WithVerbose
	WithNoLog              = config.WithNoLog
	WithWorkers            = config.WithWorkers
	WithChildThreads       = config.WithChildThreads
	WithEncodeTimeout      = config.WithEncodeTimeout
	WithLedgerPath         = config.WithLedgerPath
)

// WithExplore selects Explore mode: a sweep from the seeded parameter
// upward in steps of 5, keeping the smallest output; no quality gate.
func WithExplore() Option { return config.WithSearchFlags(true, false, false) }

// WithMatchQuality selects Match-quality mode: a single encode at the
// seeded parameter, rejected if its SSIM is below the adaptive floor.
func WithMatchQuality() Option { return config.WithSearchFlags(false, true, false) }

// WithCompress selects Compress mode: a single deterministic encode at
// the default parameter, no search.
func WithCompress() Option { return config.WithSearchFlags(false, false, true) }

// WithUltimate sets the ultimate flag. It takes effect only together with
// explore, match-quality and compress all set: after the bisection it keeps
// raising the parameter while each step loses less than 0.002 SSIM and the
// output stays within the size tolerance.
func WithUltimate() Option { return config.WithUltimate(true) }

// Result summarizes one batch run.
type Result struct {
	TotalFiles      int
	Succeeded       int
	Failed          int
	Skipped         int
	TotalInputBytes int64
	TotalOutputBytes int64
	Failures        []batch.FailedFile
	MetricsText     string
}

// Recompressor is the main entry point for re-encoding files.
type Recompressor struct {
	opts []Option
	rep  reporter.Reporter
}

// New creates a Recompressor with recompress's defaults, then applies opts.
// Validation of the resulting configuration happens per-Run, once the
// input/output paths are known.
func New(opts ...Option) (*Recompressor, error) {
	return &Recompressor{opts: opts}, nil
}

// WithReporter attaches a custom Reporter that receives progress events
// for every subsequent Run call. Without this, Run discards all progress
// events (reporter.NullReporter).
func (r *Recompressor) WithReporter(rep reporter.Reporter) *Recompressor {
	r.rep = rep
	return r
}

// Run discovers every supported input under inputPath and processes it,
// writing results under outputDir (pass "" together with config.WithInPlace
// to replace inputs in place instead).
func (r *Recompressor) Run(ctx context.Context, inputPath, outputDir string) (*Result, error) {
	cfg := config.New(inputPath, outputDir, cfg0LogDir(outputDir), r.opts...)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	rep := r.rep
	if rep == nil {
		rep = reporter.NullReporter{}
	}

	driver, err := batch.NewDriver(cfg, (*logging.Logger)(nil), rep)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize batch driver: %w", err)
	}
	defer func() { _ = driver.Close() }()

	summary, err := driver.Run(ctx)
	if err != nil {
		return nil, err
	}

	return &Result{
		TotalFiles:       summary.TotalFiles,
		Succeeded:        summary.Succeeded,
		Failed:           summary.Failed,
		Skipped:          summary.Skipped,
		TotalInputBytes:  summary.TotalInputBytes,
		TotalOutputBytes: summary.TotalOutputBytes,
		Failures:         summary.Failures,
		MetricsText:      summary.MetricsText,
	}, nil
}

// cfg0LogDir derives a default log directory alongside outputDir for
// library callers that don't otherwise care where logs land; CLI callers
// use cmd/recompress, which resolves a proper XDG state directory instead.
func cfg0LogDir(outputDir string) string {
	if outputDir == "" {
		return "."
	}
	return outputDir
}
