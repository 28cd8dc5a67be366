// Package main provides the CLI entry point for recompress.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hadronmedia/recompress/internal/batch"
	"github.com/hadronmedia/recompress/internal/config"
	"github.com/hadronmedia/recompress/internal/logging"
	"github.com/hadronmedia/recompress/internal/reporter"
	"github.com/hadronmedia/recompress/internal/util"
)

const appVersion = "0.1.0"

// runArgs holds the parsed command-line flags for the root command.
type runArgs struct {
	output             string
	logDir             string
	tempDir            string
	baseDir            string
	ledgerPath         string
	crfSD              uint8
	crfHD              uint8
	crfUHD             uint8
	svtAV1Preset       uint8
	hevcPreset         string
	workers            int
	encodeTimeout      int
	explore            bool
	matchQuality       bool
	compress           bool
	ultimate           bool
	force              bool
	inPlace            bool
	deleteOriginal     bool
	allowSizeTolerance bool
	appleCompat        bool
	lossless           bool
	verbose            bool
	noLog              bool
	jsonOutput         bool
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var ra runArgs

	cmd := &cobra.Command{
		Use:     "recompress <input>",
		Short:   "Recompress stills, video, and animations into smaller, equal-quality formats",
		Version: appVersion,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd.Context(), args[0], ra)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&ra.output, "output", "o", "", "Output directory (defaults to in-place replacement if unset)")
	flags.StringVarP(&ra.logDir, "log-dir", "l", "", "Log directory (defaults to ~/.local/state/recompress/logs)")
	flags.StringVar(&ra.tempDir, "temp-dir", "", "Scratch directory for atomic-commit temp files (defaults to output dir)")
	flags.StringVar(&ra.baseDir, "base-dir", "", "Base directory relative output paths are mirrored under")
	flags.StringVar(&ra.ledgerPath, "ledger", "", "Path to a disk-backed de-duplication ledger (in-memory if unset)")

	flags.Uint8Var(&ra.crfSD, "crf-sd", config.DefaultCRFSD, "Stored CRF for SD content (<1920 width); the encode seed comes from the quality matcher, not this value")
	flags.Uint8Var(&ra.crfHD, "crf-hd", config.DefaultCRFHD, "Stored CRF for HD content; the encode seed comes from the quality matcher, not this value")
	flags.Uint8Var(&ra.crfUHD, "crf-uhd", config.DefaultCRFUHD, "Stored CRF for UHD content; the encode seed comes from the quality matcher, not this value")
	flags.Uint8Var(&ra.svtAV1Preset, "preset", config.DefaultSVTAV1Preset, "SVT-AV1 encoder preset (0-13, lower is slower/better)")
	flags.StringVar(&ra.hevcPreset, "hevc-preset", config.DefaultHEVCPreset, "libx265 preset")

	flags.IntVarP(&ra.workers, "workers", "j", 0, "Parallel files in flight (0 selects the CPU-derived default)")
	flags.IntVar(&ra.encodeTimeout, "encode-timeout", config.DefaultEncodeTimeoutMinutes, "Wall timeout for each encode attempt, in minutes (0 disables it)")

	flags.BoolVarP(&ra.explore, "explore", "e", false, "Explore mode: alone, sweeps the parameter and keeps the smallest output with no quality gate; with -m, bisects for the highest parameter that clears the SSIM floor")
	flags.BoolVarP(&ra.matchQuality, "match-quality", "m", false, "Match-quality mode: alone, one encode at the seeded parameter, rejected if SSIM is below the floor")
	flags.BoolVarP(&ra.compress, "compress", "c", false, "Compress mode: single deterministic encode at the seeded parameter, rejected if larger than the size tolerance")
	flags.BoolVar(&ra.ultimate, "ultimate", false, "Ultimate mode (needs -e -m -c): after the bisection, keep raising the parameter while each step loses less than 0.002 SSIM and the size tolerance holds")

	flags.BoolVarP(&ra.force, "force", "f", false, "Bypass the de-duplication ledger and re-encode even if an output already exists")
	flags.BoolVar(&ra.inPlace, "in-place", false, "Replace each input in place instead of writing to -o")
	flags.BoolVar(&ra.deleteOriginal, "delete-original", false, "Delete the original after a verified commit")
	flags.BoolVar(&ra.allowSizeTolerance, "allow-size-tolerance", true, "Allow a 1% size-tolerance ceiling instead of a strict 1.00x ceiling")
	flags.BoolVar(&ra.appleCompat, "apple-compat", false, "Prefer Apple-compatible output selection (hvc1 tagging, GIF retention)")
	flags.BoolVar(&ra.lossless, "lossless", false, "Select the lossless AV1/HEVC pipeline instead of a quality-gated search")

	flags.BoolVarP(&ra.verbose, "verbose", "v", false, "Enable debug-level logging")
	flags.BoolVar(&ra.noLog, "no-log", false, "Disable log file creation")
	flags.BoolVar(&ra.jsonOutput, "json", false, "Emit NDJSON progress events instead of terminal output")

	return cmd
}

func runBatch(ctx context.Context, inputArg string, ra runArgs) error {
	inputPath, err := filepath.Abs(inputArg)
	if err != nil {
		return fmt.Errorf("invalid input path: %w", err)
	}
	if _, err := os.Stat(inputPath); err != nil {
		return fmt.Errorf("input path does not exist: %s", inputPath)
	}

	outputDir := ra.output
	inPlace := ra.inPlace || outputDir == ""
	if !inPlace {
		outputDir, err = filepath.Abs(outputDir)
		if err != nil {
			return fmt.Errorf("invalid output path: %w", err)
		}
		if err := util.EnsureDirectory(outputDir); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	logDir := ra.logDir
	if logDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		logDir = filepath.Join(homeDir, ".local", "state", "recompress", "logs")
	}

	logger, err := logging.Setup(logDir, ra.verbose, ra.noLog)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	if logger != nil {
		defer func() { _ = logger.Close() }()
	}

	baseDir := ra.baseDir
	if baseDir == "" {
		baseDir = inputPath
	}

	cfg := config.New(inputPath, outputDir, logDir,
		config.WithBaseDir(baseDir),
		config.WithTempDir(ra.tempDir),
		config.WithSearchFlags(ra.explore, ra.matchQuality, ra.compress),
		config.WithUltimate(ra.ultimate),
		config.WithForce(ra.force),
		config.WithInPlace(inPlace),
		config.WithDeleteOriginal(ra.deleteOriginal),
		config.WithAllowSizeTolerance(ra.allowSizeTolerance),
		config.WithAppleCompat(ra.appleCompat),
		config.WithLossless(ra.lossless),
		config.WithVerbose(ra.verbose),
		config.WithNoLog(ra.noLog),
		config.WithLedgerPath(ra.ledgerPath),
	)
	cfg.CRFSD, cfg.CRFHD, cfg.CRFUHD = ra.crfSD, ra.crfHD, ra.crfUHD
	cfg.HEVCPreset = ra.hevcPreset
	if ra.workers > 0 {
		cfg.Workers = ra.workers
	}
	if ra.encodeTimeout > 0 {
		cfg.EncodeTimeoutMinutes = ra.encodeTimeout
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	var rep reporter.Reporter
	if ra.jsonOutput {
		rep = reporter.NewJSONReporter()
	} else {
		rep = reporter.NewTerminalReporter()
	}

	driver, err := batch.NewDriver(cfg, logger, rep)
	if err != nil {
		return fmt.Errorf("failed to initialize batch driver: %w", err)
	}
	defer func() { _ = driver.Close() }()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		cancel()
	}()

	summary, err := driver.Run(runCtx)
	if err != nil {
		return err
	}

	if summary.Failed > 0 {
		return fmt.Errorf("%d of %d files failed", summary.Failed, summary.TotalFiles)
	}
	return nil
}
