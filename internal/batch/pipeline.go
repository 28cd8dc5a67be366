package batch

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/hadronmedia/recompress/internal/avifexec"
	"github.com/hadronmedia/recompress/internal/commit"
	"github.com/hadronmedia/recompress/internal/config"
	"github.com/hadronmedia/recompress/internal/explore"
	"github.com/hadronmedia/recompress/internal/ffmpegexec"
	"github.com/hadronmedia/recompress/internal/jxlexec"
	"github.com/hadronmedia/recompress/internal/ledger"
	"github.com/hadronmedia/recompress/internal/logging"
	"github.com/hadronmedia/recompress/internal/magickexec"
	"github.com/hadronmedia/recompress/internal/modevalidator"
	"github.com/hadronmedia/recompress/internal/probe"
	"github.com/hadronmedia/recompress/internal/quality"
	"github.com/hadronmedia/recompress/internal/reporter"
	"github.com/hadronmedia/recompress/internal/router"
	"github.com/hadronmedia/recompress/internal/safety"
	"github.com/hadronmedia/recompress/internal/util"
)

// FileOutcome is the per-file result a pipeline run produces, enough for
// C7 to aggregate a Summary and for the reporter to render progress.
type FileOutcome struct {
	InputPath     string
	FinalPath     string
	Target        router.Target
	Skipped       bool
	SkipReason    string
	CommitOutcome commit.Outcome
	InputBytes    int64
	OutputBytes   int64
	SSIM          *float64
	Rounds        int
}

// videoTargets is every router.Target whose output belongs in a video
// container rather than a still-image one (used for the I4 minimum
// deletable-output-size gate, which differs between the two).
var videoTargets = map[router.Target]bool{
	router.AV1Video:         true,
	router.AV1VideoLossless: true,
	router.HEVCVideo:        true,
	router.HEVCVideoLossless: true,
	router.GIFAppleCompat:   true,
}

// targetExtension returns the final output extension for t, or "" for
// Skip (the original extension is kept).
func targetExtension(t router.Target) string {
	switch t {
	case router.JXLStatic, router.JXLStaticMatched, router.JXLLosslessJPEGTranscode:
		return ".jxl"
	case router.AV1Video, router.AV1VideoLossless, router.HEVCVideo, router.HEVCVideoLossless:
		return ".mkv"
	case router.GIFAppleCompat:
		return ".gif"
	case router.AVIFStatic:
		return ".avif"
	default:
		return ""
	}
}

// commitFormat returns the magic-byte format tag commit's health check
// uses, or "" for formats it doesn't specifically verify.
func commitFormat(t router.Target) string {
	switch t {
	case router.JXLStatic, router.JXLStaticMatched, router.JXLLosslessJPEGTranscode:
		return "jxl"
	case router.AVIFStatic:
		return "avif"
	default:
		return ""
	}
}

// resolveOutputPath mirrors inputPath's position under cfg.BaseDir into
// cfg.OutputDir (or, in-place mode, replaces the input's own extension),
// per §4.7's output-path rule.
func resolveOutputPath(cfg *config.Config, inputPath, newExt string) (string, error) {
	if newExt == "" {
		newExt = filepath.Ext(inputPath)
	}

	if cfg.InPlace {
		stem := inputPath[:len(inputPath)-len(filepath.Ext(inputPath))]
		return stem + newExt, nil
	}

	base := cfg.BaseDir
	if base == "" {
		base = cfg.InputDir
	}
	rel, err := filepath.Rel(base, inputPath)
	if err != nil {
		return "", fmt.Errorf("cannot compute relative output path for %s: %w", inputPath, err)
	}
	relStem := rel[:len(rel)-len(filepath.Ext(rel))]
	return filepath.Join(cfg.OutputDir, relStem+newExt), nil
}

// qualityPlan bundles the per-target search-space shape C3/C4 need.
type qualityPlan struct {
	target            quality.Target
	paramMin          float64
	paramMax          float64
	losslessTranscode bool
	searchable        bool // false for targets with no meaningful parameter sweep (gif palette, lossless jpeg transcode)
}

// isDistanceTarget reports whether t's parameter is a JXL/AVIF distance
// value rather than an encoder CRF, for explore.Params.IsDistance.
func isDistanceTarget(t quality.Target) bool {
	return t == quality.TargetJXL
}

func planFor(t router.Target) qualityPlan {
	switch t {
	case router.JXLStatic, router.JXLStaticMatched:
		return qualityPlan{target: quality.TargetJXL, paramMin: 0, paramMax: 15, searchable: true}
	case router.JXLLosslessJPEGTranscode:
		return qualityPlan{target: quality.TargetJXL, losslessTranscode: true}
	case router.AV1Video, router.AV1VideoLossless:
		return qualityPlan{target: quality.TargetAV1, paramMin: 0, paramMax: 63, searchable: t == router.AV1Video}
	case router.HEVCVideo, router.HEVCVideoLossless:
		return qualityPlan{target: quality.TargetHEVC, paramMin: 0, paramMax: 51, searchable: t == router.HEVCVideo}
	case router.AVIFStatic:
		return qualityPlan{target: quality.TargetJXL, paramMin: 0, paramMax: 10, searchable: true}
	default:
		return qualityPlan{}
	}
}

// preprocessIfNeeded converts formats cjxl can't read directly (TIFF, BMP,
// HEIC/HEIF, GIF-as-static) to an intermediate PNG under tempDir, returning
// the path cjxl should actually read. Returns inputPath unchanged when no
// preprocessing is required.
func preprocessIfNeeded(ctx context.Context, inputPath, tempDir string) (string, func(), error) {
	ext := filepath.Ext(inputPath)
	if !magickexec.NeedsPNGPreprocess(ext) {
		return inputPath, func() {}, nil
	}

	pngPath := filepath.Join(tempDir, fmt.Sprintf(".pre-%s.png", filepath.Base(inputPath)))
	if err := magickexec.PreprocessToPNG(ctx, inputPath, pngPath); err != nil {
		return "", func() {}, fmt.Errorf("preprocessing %s to PNG: %w", inputPath, err)
	}
	return pngPath, func() { _ = os.Remove(pngPath) }, nil
}

// buildEncodeFuncs constructs the explore.EncodeFunc/SSIMFunc pair for
// decision.Target, routing to the matching codec-specific executor
// package. progressCB, if non-nil, is wired into the video targets' ffmpeg
// invocations so callers can surface per-frame EncodingProgress; JXL/AVIF/GIF
// targets have no comparable frame-by-frame signal and ignore it.
func buildEncodeFuncs(mp *probe.MediaProbe, cfg *config.Config, decision router.TargetDecision, encodeInputPath, originalPath, tempDir string, progressCB ffmpegexec.ProgressCallback) (explore.EncodeFunc, explore.SSIMFunc) {
	switch decision.Target {
	case router.JXLStatic, router.JXLStaticMatched:
		base := jxlexec.EncodeParams{InputPath: encodeInputPath, Effort: 7}
		return jxlexec.NewEncodeFunc(base, tempDir), jxlexec.NewSSIMFunc(originalPath)

	case router.JXLLosslessJPEGTranscode:
		base := jxlexec.EncodeParams{InputPath: encodeInputPath, LosslessJPEGTranscode: true}
		return jxlexec.NewEncodeFunc(base, tempDir), jxlexec.NewSSIMFunc(originalPath)

	case router.AV1Video, router.AV1VideoLossless:
		base := ffmpegexec.EncodeParams{
			InputPath: encodeInputPath, Codec: "av1",
			Preset: cfg.SVTAV1Preset, Tune: cfg.SVTAV1Tune,
			Lossless: decision.Target == router.AV1VideoLossless,
			AppleCompat: cfg.AppleCompat, Duration: mp.DurationSecs,
		}
		return ffmpegexec.NewEncodeFuncWithProgress(base, tempDir, progressCB), ffmpegexec.NewSSIMFunc(originalPath)

	case router.HEVCVideo, router.HEVCVideoLossless:
		base := ffmpegexec.EncodeParams{
			InputPath: encodeInputPath, Codec: "hevc",
			HEVCPreset: cfg.HEVCPreset,
			Lossless:   decision.Target == router.HEVCVideoLossless,
			AppleCompat: cfg.AppleCompat, Duration: mp.DurationSecs,
		}
		return ffmpegexec.NewEncodeFuncWithProgress(base, tempDir, progressCB), ffmpegexec.NewSSIMFunc(originalPath)

	case router.GIFAppleCompat:
		base := ffmpegexec.EncodeParams{InputPath: encodeInputPath, Codec: "gif", Duration: mp.DurationSecs}
		return ffmpegexec.NewEncodeFunc(base, tempDir), nil

	case router.AVIFStatic:
		base := avifexec.EncodeParams{InputPath: encodeInputPath, Speed: 6}
		return avifexec.NewEncodeFunc(base, tempDir), avifexec.NewSSIMFunc(originalPath)

	default:
		return nil, nil
	}
}

// targetEncoderName names decision.Target's encoder for EncodingConfig.
func targetEncoderName(t router.Target) string {
	switch t {
	case router.JXLStatic, router.JXLStaticMatched, router.JXLLosslessJPEGTranscode:
		return "libjxl"
	case router.AV1Video, router.AV1VideoLossless:
		return "libsvtav1"
	case router.HEVCVideo, router.HEVCVideoLossless:
		return "libx265"
	case router.GIFAppleCompat:
		return "gif-palette"
	case router.AVIFStatic:
		return "libavif"
	default:
		return "copy"
	}
}

// isVideoTarget reports whether t is encoded through ffmpeg's CRF-driven
// video path, the only targets with a real per-frame progress signal.
func isVideoTarget(t router.Target) bool {
	return videoTargets[t] && t != router.GIFAppleCompat
}

// relocateToCommitDir moves explorePath (somewhere under the scratch temp
// directory) next to finalPath under commit's temp naming convention, so
// the eventual rename-into-place is same-filesystem and atomic.
func relocateToCommitDir(explorePath, finalPath string) (string, error) {
	if err := os.MkdirAll(filepath.Dir(finalPath), 0o755); err != nil {
		return "", fmt.Errorf("creating output directory: %w", err)
	}
	commitTemp := commit.TempName(finalPath)

	if err := os.Rename(explorePath, commitTemp); err == nil {
		return commitTemp, nil
	}

	// Cross-device: fall back to copy + remove.
	if err := copyFile(explorePath, commitTemp); err != nil {
		return "", err
	}
	_ = os.Remove(explorePath)
	return commitTemp, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	_, err = io.Copy(out, in)
	return err
}

// copyThrough writes a byte-identical copy of inputPath at finalPath, for
// Skip decisions with CopyThrough set and for the unsupported-file pass.
func copyThrough(inputPath, finalPath string) error {
	if err := os.MkdirAll(filepath.Dir(finalPath), 0o755); err != nil {
		return err
	}
	if err := copyFile(inputPath, finalPath); err != nil {
		return err
	}
	if info, err := os.Stat(inputPath); err == nil {
		_ = os.Chmod(finalPath, info.Mode())
		_ = os.Chtimes(finalPath, info.ModTime(), info.ModTime())
	}
	return nil
}

// ProcessFile runs one input through C1 (probe) - C5 (commit), the full
// per-file pipeline §4.7's batch driver invokes concurrently for every
// discovered input. rep receives StageProgress at each C1-C5 transition
// plus the per-file Initialization/EncodingConfig/EncodingComplete/
// ValidationComplete/OperationComplete events; pass reporter.NullReporter{}
// to discard them.
func ProcessFile(ctx context.Context, cfg *config.Config, log *logging.Logger, rep reporter.Reporter, led *ledger.Ledger, flags router.Flags, inputPath string) (*FileOutcome, error) {
	start := time.Now()

	if err := safety.ValidatePath(inputPath); err != nil {
		return nil, err
	}

	if led.IsDuplicate(inputPath, cfg.Force) {
		rep.OperationComplete(fmt.Sprintf("skipped %s: duplicate", inputPath))
		return &FileOutcome{InputPath: inputPath, Skipped: true, SkipReason: "duplicate"}, nil
	}

	rep.StageProgress(reporter.StageProgress{Stage: "probe", Message: inputPath})
	mp, err := probe.Probe(ctx, log, inputPath)
	if err != nil {
		return nil, err
	}

	rep.StageProgress(reporter.StageProgress{Stage: "route", Message: inputPath})
	decision := router.Route(inputPath, mp, flags)

	finalPath, err := resolveOutputPath(cfg, inputPath, targetExtension(decision.Target))
	if err != nil {
		return nil, err
	}

	rep.Initialization(reporter.InitializationSummary{
		InputFile:    inputPath,
		OutputFile:   finalPath,
		Duration:     util.FormatDurationFromSecs(int64(mp.DurationSecs)),
		Resolution:   fmt.Sprintf("%dx%d", mp.Width, mp.Height),
		DynamicRange: dynamicRangeLabel(mp.IsHDR),
	})

	if decision.Target == router.Skip {
		if decision.CopyThrough {
			if err := copyThrough(inputPath, finalPath); err != nil {
				return nil, fmt.Errorf("copy-through for skipped %s: %w", inputPath, err)
			}
		}
		_ = led.Mark(inputPath)
		rep.OperationComplete(fmt.Sprintf("skipped %s: %s", inputPath, decision.Reason))
		return &FileOutcome{InputPath: inputPath, FinalPath: finalPath, Target: decision.Target, Skipped: true, SkipReason: decision.Reason}, nil
	}

	if err := safety.CheckAliasing(inputPath, finalPath); err != nil {
		return nil, err
	}

	mode, err := cfg.SearchMode()
	if err != nil {
		return nil, err
	}

	rep.StageProgress(reporter.StageProgress{Stage: "match", Message: fmt.Sprintf("computing initial parameter for %s", inputPath)})
	plan := planFor(decision.Target)
	tempDir := cfg.GetTempDir()

	encodeInputPath, cleanup, err := preprocessIfNeeded(ctx, inputPath, tempDir)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	runMode := mode
	var seed float64
	if plan.losslessTranscode || !plan.searchable {
		// Bit-exact transcodes and palette-only targets have no meaningful
		// parameter to search over: always a single probe.
		runMode = modevalidator.Default
	} else {
		seed, err = quality.InitialParameter(mp, plan.target, nil)
		if err != nil {
			return nil, fmt.Errorf("computing initial parameter for %s: %w", inputPath, err)
		}
		if decision.InitialParamHint != nil {
			seed = *decision.InitialParamHint
		}
	}

	rep.EncodingConfig(reporter.EncodingConfigSummary{
		Encoder:            targetEncoderName(decision.Target),
		Preset:             presetLabel(cfg, decision.Target),
		Tune:               tuneLabel(cfg, decision.Target),
		Quality:            fmt.Sprintf("%.2f", seed),
		PixelFormat:        mp.PixFmt,
		MatrixCoefficients: mp.ColorSpace,
		SVTAV1Params:       svtav1ParamsLabel(cfg, decision.Target),
	})

	var progressCB ffmpegexec.ProgressCallback
	if isVideoTarget(decision.Target) {
		progressCB = func(p ffmpegexec.Progress) {
			rep.EncodingProgress(reporter.ProgressSnapshot{
				CurrentFrame: p.CurrentFrame, TotalFrames: p.TotalFrames,
				Percent: p.Percent, Speed: p.Speed, FPS: p.FPS,
				ETA: p.ETA, Bitrate: p.Bitrate,
			})
		}
		rep.EncodingStarted(mp.FrameCount)
	}

	encodeFunc, ssimFunc := buildEncodeFuncs(mp, cfg, decision, encodeInputPath, inputPath, tempDir, progressCB)
	if encodeFunc == nil {
		return nil, fmt.Errorf("no encoder wired for target %s", decision.Target)
	}
	if cfg.EncodeTimeoutMinutes > 0 {
		inner := encodeFunc
		limit := time.Duration(cfg.EncodeTimeoutMinutes) * time.Minute
		encodeFunc = func(ctx context.Context, param float64) (string, int64, error) {
			encodeCtx, cancel := context.WithTimeout(ctx, limit)
			defer cancel()
			return inner(encodeCtx, param)
		}
	}

	rep.StageProgress(reporter.StageProgress{Stage: "explore", Message: fmt.Sprintf("searching %s (mode=%v, seed=%.2f)", inputPath, runMode, seed)})
	result, err := explore.Run(ctx, explore.Params{
		Mode:           runMode,
		Seed:           seed,
		ParamMin:       plan.paramMin,
		ParamMax:       plan.paramMax,
		InputBytes:     mp.TotalFileSize,
		ToleranceRatio: cfg.ToleranceRatio,
		IsDistance:     isDistanceTarget(plan.target),
		Encode:         encodeFunc,
		SSIM:           ssimFunc,
	})
	if err != nil {
		return nil, fmt.Errorf("exploring parameters for %s: %w", inputPath, err)
	}
	if result.FailReason != "" {
		rep.OperationComplete(fmt.Sprintf("skipped %s: %s", inputPath, result.FailReason))
		return nil, fmt.Errorf("no acceptable encode found for %s: %s", inputPath, result.FailReason)
	}
	if !result.QualityPassed {
		if result.OutputPath != "" {
			_ = os.Remove(result.OutputPath)
		}
		if decision.CopyThrough {
			if err := copyThrough(inputPath, finalPath); err != nil {
				return nil, fmt.Errorf("copy-through for quality-rejected %s: %w", inputPath, err)
			}
		}
		rep.OperationComplete(fmt.Sprintf("skipped %s: quality_failed", inputPath))
		return &FileOutcome{InputPath: inputPath, FinalPath: finalPath, Target: decision.Target, Skipped: true, SkipReason: "quality_failed", InputBytes: mp.TotalFileSize, SSIM: result.SSIM, Rounds: result.Rounds}, nil
	}
	rep.Verbose(fmt.Sprintf("%s: settled on param %.2f after %d round(s)", inputPath, result.Param, result.Rounds))
	defer func() {
		if result.OutputPath != "" {
			_ = os.Remove(result.OutputPath)
		}
	}()

	commitTemp, err := relocateToCommitDir(result.OutputPath, finalPath)
	if err != nil {
		return nil, fmt.Errorf("relocating encode for %s: %w", inputPath, err)
	}

	rep.StageProgress(reporter.StageProgress{Stage: "commit", Message: finalPath})
	commitResult, err := commit.Commit(ctx, log, commit.Request{
		TempPath:             commitTemp,
		FinalPath:            finalPath,
		OriginalPath:         inputPath,
		Format:               commitFormat(decision.Target),
		InputBytes:           mp.TotalFileSize,
		ToleranceRatio:       cfg.ToleranceRatio,
		RequireSizeTolerance: true,
		Force:                cfg.Force,
		ShouldDeleteOriginal: cfg.DeleteOriginal,
		MinDeleteSizeBytes:   config.MinSizeBytes(videoTargets[decision.Target]),
		PreserveMetadata:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("committing %s: %w", inputPath, err)
	}

	rep.ValidationComplete(reporter.ValidationSummary{
		Passed: commitResult.Health.OK(),
		Steps:  healthStepsToValidationSteps(commitResult.Health.Steps),
	})

	if commitResult.Outcome == commit.SkippedExists || commitResult.Outcome == commit.SkippedSizeIncrease {
		rep.OperationComplete(fmt.Sprintf("skipped %s: %s", inputPath, commitResult.Outcome))
		return &FileOutcome{
			InputPath: inputPath, FinalPath: finalPath, Target: decision.Target,
			CommitOutcome: commitResult.Outcome, Skipped: true, SkipReason: commitResult.Outcome.String(),
			InputBytes: mp.TotalFileSize, SSIM: result.SSIM, Rounds: result.Rounds,
		}, nil
	}

	_ = led.Mark(inputPath)

	rep.EncodingComplete(reporter.EncodingOutcome{
		InputFile: inputPath, OutputFile: finalPath,
		OriginalSize: uint64(mp.TotalFileSize), EncodedSize: uint64(result.OutputBytes),
		TotalTime: time.Since(start), OutputPath: finalPath,
	})

	return &FileOutcome{
		InputPath: inputPath, FinalPath: finalPath, Target: decision.Target,
		CommitOutcome: commitResult.Outcome,
		InputBytes:    mp.TotalFileSize, OutputBytes: result.OutputBytes,
		SSIM: result.SSIM, Rounds: result.Rounds,
	}, nil
}

// dynamicRangeLabel renders mp.IsHDR for Initialization's human-readable field.
func dynamicRangeLabel(isHDR bool) string {
	if isHDR {
		return "HDR"
	}
	return "SDR"
}

// presetLabel renders the preset EncodingConfig reports for t, matching
// whichever of cfg's preset fields actually applies to t's encoder.
func presetLabel(cfg *config.Config, t router.Target) string {
	switch t {
	case router.AV1Video, router.AV1VideoLossless:
		return fmt.Sprintf("%d", cfg.SVTAV1Preset)
	case router.HEVCVideo, router.HEVCVideoLossless:
		return cfg.HEVCPreset
	case router.JXLStatic, router.JXLStaticMatched, router.JXLLosslessJPEGTranscode:
		return "effort 7"
	case router.AVIFStatic:
		return "speed 6"
	default:
		return ""
	}
}

// tuneLabel renders the tune EncodingConfig reports; only SVT-AV1 has one.
func tuneLabel(cfg *config.Config, t router.Target) string {
	if t == router.AV1Video || t == router.AV1VideoLossless {
		return fmt.Sprintf("%d", cfg.SVTAV1Tune)
	}
	return ""
}

// svtav1ParamsLabel mirrors the teacher's "svt-params" reporter field for AV1
// targets; other encoders have no equivalent free-form params string.
func svtav1ParamsLabel(cfg *config.Config, t router.Target) string {
	if t == router.AV1Video || t == router.AV1VideoLossless {
		return fmt.Sprintf("preset=%d:tune=%d", cfg.SVTAV1Preset, cfg.SVTAV1Tune)
	}
	return ""
}

// healthStepsToValidationSteps adapts commit's health-check steps (§4.5 step
// 2) into the reporter's generic ValidationStep shape.
func healthStepsToValidationSteps(steps []commit.Step) []reporter.ValidationStep {
	out := make([]reporter.ValidationStep, len(steps))
	for i, s := range steps {
		out[i] = reporter.ValidationStep{Name: s.Name, Passed: s.Passed, Details: s.Details}
	}
	return out
}
