package batch

import (
	"path/filepath"
	"testing"

	"github.com/hadronmedia/recompress/internal/config"
	"github.com/hadronmedia/recompress/internal/router"
)

func TestTargetExtension(t *testing.T) {
	tests := []struct {
		target router.Target
		want   string
	}{
		{router.JXLStatic, ".jxl"},
		{router.JXLStaticMatched, ".jxl"},
		{router.JXLLosslessJPEGTranscode, ".jxl"},
		{router.AV1Video, ".mkv"},
		{router.AV1VideoLossless, ".mkv"},
		{router.HEVCVideo, ".mkv"},
		{router.HEVCVideoLossless, ".mkv"},
		{router.GIFAppleCompat, ".gif"},
		{router.AVIFStatic, ".avif"},
		{router.Skip, ""},
	}
	for _, tt := range tests {
		if got := targetExtension(tt.target); got != tt.want {
			t.Errorf("targetExtension(%v) = %q, want %q", tt.target, got, tt.want)
		}
	}
}

func TestCommitFormat(t *testing.T) {
	if got := commitFormat(router.JXLStatic); got != "jxl" {
		t.Errorf("commitFormat(JXLStatic) = %q, want jxl", got)
	}
	if got := commitFormat(router.AVIFStatic); got != "avif" {
		t.Errorf("commitFormat(AVIFStatic) = %q, want avif", got)
	}
	if got := commitFormat(router.AV1Video); got != "" {
		t.Errorf("commitFormat(AV1Video) = %q, want empty", got)
	}
}

func TestResolveOutputPathMirrorsUnderOutputDir(t *testing.T) {
	cfg := &config.Config{
		InputDir:  "/data/in",
		OutputDir: "/data/out",
		BaseDir:   "/data/in",
	}
	got, err := resolveOutputPath(cfg, "/data/in/sub/clip.mov", ".mkv")
	if err != nil {
		t.Fatalf("resolveOutputPath() error = %v", err)
	}
	want := filepath.Join("/data/out", "sub", "clip.mkv")
	if got != want {
		t.Errorf("resolveOutputPath() = %s, want %s", got, want)
	}
}

func TestResolveOutputPathInPlaceReplacesExtension(t *testing.T) {
	cfg := &config.Config{InPlace: true}
	got, err := resolveOutputPath(cfg, "/data/in/clip.mov", ".mkv")
	if err != nil {
		t.Fatalf("resolveOutputPath() error = %v", err)
	}
	if got != "/data/in/clip.mkv" {
		t.Errorf("resolveOutputPath() = %s, want /data/in/clip.mkv", got)
	}
}

func TestResolveOutputPathKeepsOriginalExtensionWhenUnspecified(t *testing.T) {
	cfg := &config.Config{InputDir: "/data/in", OutputDir: "/data/out", BaseDir: "/data/in"}
	got, err := resolveOutputPath(cfg, "/data/in/readme.txt", "")
	if err != nil {
		t.Fatalf("resolveOutputPath() error = %v", err)
	}
	if got != filepath.Join("/data/out", "readme.txt") {
		t.Errorf("resolveOutputPath() = %s, want mirrored readme.txt", got)
	}
}

func TestPlanForSearchability(t *testing.T) {
	if !planFor(router.JXLStatic).searchable {
		t.Error("JXLStatic should be searchable")
	}
	if planFor(router.JXLLosslessJPEGTranscode).searchable {
		t.Error("JXLLosslessJPEGTranscode should not be searchable")
	}
	if !planFor(router.JXLLosslessJPEGTranscode).losslessTranscode {
		t.Error("JXLLosslessJPEGTranscode should be flagged as a lossless transcode")
	}
	if planFor(router.AV1VideoLossless).searchable {
		t.Error("AV1VideoLossless should not be searchable (CRF is ignored)")
	}
	if planFor(router.GIFAppleCompat).searchable {
		t.Error("GIFAppleCompat has no parameter sweep")
	}
}

func TestVideoTargetsUsedForMinDeleteSize(t *testing.T) {
	if !videoTargets[router.AV1Video] {
		t.Error("AV1Video should use the video minimum-delete-size threshold")
	}
	if videoTargets[router.JXLStatic] {
		t.Error("JXLStatic should use the image minimum-delete-size threshold")
	}
}

func TestTargetEncoderName(t *testing.T) {
	tests := []struct {
		target router.Target
		want   string
	}{
		{router.JXLStatic, "libjxl"},
		{router.JXLStaticMatched, "libjxl"},
		{router.JXLLosslessJPEGTranscode, "libjxl"},
		{router.AV1Video, "libsvtav1"},
		{router.AV1VideoLossless, "libsvtav1"},
		{router.HEVCVideo, "libx265"},
		{router.HEVCVideoLossless, "libx265"},
		{router.GIFAppleCompat, "gif-palette"},
		{router.AVIFStatic, "libavif"},
		{router.Skip, "copy"},
	}
	for _, tt := range tests {
		if got := targetEncoderName(tt.target); got != tt.want {
			t.Errorf("targetEncoderName(%v) = %q, want %q", tt.target, got, tt.want)
		}
	}
}

func TestIsVideoTarget(t *testing.T) {
	if !isVideoTarget(router.AV1Video) {
		t.Error("AV1Video should report a per-frame progress signal")
	}
	if !isVideoTarget(router.HEVCVideoLossless) {
		t.Error("HEVCVideoLossless should report a per-frame progress signal")
	}
	if isVideoTarget(router.GIFAppleCompat) {
		t.Error("GIFAppleCompat has no frame-by-frame ffmpeg progress")
	}
	if isVideoTarget(router.JXLStatic) {
		t.Error("JXLStatic is not an ffmpeg video target")
	}
}

func TestIsDistanceTargetOnlyJXL(t *testing.T) {
	if !isDistanceTarget(planFor(router.JXLStatic).target) {
		t.Error("JXLStatic's quality target should report a distance parameter")
	}
	if isDistanceTarget(planFor(router.AV1Video).target) {
		t.Error("AV1Video's quality target is a CRF, not a distance")
	}
}

func TestPresetLabel(t *testing.T) {
	cfg := &config.Config{SVTAV1Preset: 6, HEVCPreset: "medium"}
	if got := presetLabel(cfg, router.AV1Video); got != "6" {
		t.Errorf("presetLabel(AV1Video) = %q, want 6", got)
	}
	if got := presetLabel(cfg, router.HEVCVideo); got != "medium" {
		t.Errorf("presetLabel(HEVCVideo) = %q, want medium", got)
	}
	if got := presetLabel(cfg, router.Skip); got != "" {
		t.Errorf("presetLabel(Skip) = %q, want empty", got)
	}
}

func TestDynamicRangeLabel(t *testing.T) {
	if dynamicRangeLabel(true) != "HDR" {
		t.Error("dynamicRangeLabel(true) should report HDR")
	}
	if dynamicRangeLabel(false) != "SDR" {
		t.Error("dynamicRangeLabel(false) should report SDR")
	}
}
