// Package router classifies a probed input and selects a target format
// (C2, spec §4.2). Route is a pure total function: no I/O beyond what C1
// already performed.
package router

import (
	"path/filepath"
	"strings"

	"github.com/hadronmedia/recompress/internal/probe"
)

// Target is the chosen output pipeline for an input.
type Target int

const (
	// Skip means the input is left untouched (still copied through when an
	// output directory is set).
	Skip Target = iota
	// JXLStatic is a standard lossy/lossless JXL still-image re-encode.
	JXLStatic
	// JXLStaticMatched is JXL-static with quality matched to the estimated source quality.
	JXLStaticMatched
	// JXLLosslessJPEGTranscode is a bit-exact DCT-coefficient JPEG -> JXL transcode.
	JXLLosslessJPEGTranscode
	// AV1Video is a lossy AV1 video re-encode.
	AV1Video
	// AV1VideoLossless is a lossless AV1 video re-encode.
	AV1VideoLossless
	// HEVCVideo is a lossy HEVC video re-encode.
	HEVCVideo
	// HEVCVideoLossless is a lossless HEVC video re-encode.
	HEVCVideoLossless
	// GIFAppleCompat retains the GIF container with a Bayer-dithered 256-color palette.
	GIFAppleCompat
	// AVIFStatic is a modern-raster-lossy re-encode kept in the AVIF container
	// under apple_compat, since a JXL re-encode of an already-lossy modern
	// still would compound generation loss.
	AVIFStatic
)

// String renders the target's human-readable name.
func (t Target) String() string {
	switch t {
	case Skip:
		return "skip"
	case JXLStatic:
		return "jxl_static"
	case JXLStaticMatched:
		return "jxl_static_matched"
	case JXLLosslessJPEGTranscode:
		return "jxl_lossless_jpeg_transcode"
	case AV1Video:
		return "av1_video"
	case AV1VideoLossless:
		return "av1_video_lossless"
	case HEVCVideo:
		return "hevc_video"
	case HEVCVideoLossless:
		return "hevc_video_lossless"
	case GIFAppleCompat:
		return "gif_apple_compat"
	case AVIFStatic:
		return "avif_static"
	default:
		return "unknown"
	}
}

// TargetDecision is the output of Route (§3).
type TargetDecision struct {
	Target           Target
	Reason           string
	InitialParamHint *float64
	CopyThrough      bool
}

// Flags are the subset of run flags the router consults.
type Flags struct {
	AppleCompat  bool
	MatchQuality bool
	Lossless     bool
	AV1Available bool
	HEVCAvailable bool
	OutputDirSet bool
}

const (
	highQualityMinWidth  = 1280
	highQualityMinHeight = 720
	highQualityMinPixels = 921600
	shortAnimationSecs   = 3.0
	staticAnimatedSecs   = 0.01

	// losslessModernRasterBppThreshold is the bits-per-pixel-per-frame above
	// which a webp/avif/heic still is assumed to be encoded losslessly
	// rather than lossy, absent a reliable lossless flag from the analyzer.
	losslessModernRasterBppThreshold = 4.0
)

func isHighQuality(mp *probe.MediaProbe) bool {
	pixels := uint64(mp.Width) * uint64(mp.Height)
	return mp.Width >= highQualityMinWidth || mp.Height >= highQualityMinHeight || pixels >= highQualityMinPixels
}

func extLower(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

func isJPEGExt(ext string) bool {
	e := extLower(ext)
	return e == "jpg" || e == "jpeg"
}

func isLegacyLosslessRasterExt(ext string) bool {
	switch extLower(ext) {
	case "png", "tiff", "tif", "bmp", "gif":
		return true
	default:
		return false
	}
}

func isModernRasterExt(ext string) bool {
	switch extLower(ext) {
	case "webp", "avif", "heic", "heif":
		return true
	default:
		return false
	}
}

// videoTarget picks AV1 or HEVC depending on which encoder is installed,
// preferring AV1 when both are available (§4.2's "depending on installed tool").
func videoTarget(flags Flags) (lossy, lossless Target) {
	if flags.AV1Available {
		return AV1Video, AV1VideoLossless
	}
	return HEVCVideo, HEVCVideoLossless
}

// Route maps (extension, probe, flags) to a TargetDecision, evaluating the
// routing table top-to-bottom; first match wins (§4.2).
func Route(path string, mp *probe.MediaProbe, flags Flags) TargetDecision {
	ext := filepath.Ext(path)
	copyThrough := flags.OutputDirSet

	if mp.CodecClass == probe.CodecClassModern && !flags.AppleCompat {
		return TargetDecision{Target: Skip, Reason: "modern", CopyThrough: copyThrough}
	}

	// "Static animated" (is_animated but duration < 0.01s) is forced to the
	// JXL-static path and never treated as video.
	if mp.IsAnimated && mp.DurationSecs < staticAnimatedSecs {
		return TargetDecision{Target: JXLStatic, Reason: "static_animated", CopyThrough: copyThrough}
	}

	if isJPEGExt(ext) && !mp.IsAnimated {
		if flags.MatchQuality {
			return TargetDecision{Target: JXLStaticMatched, Reason: "jpeg_match_quality", CopyThrough: copyThrough}
		}
		return TargetDecision{Target: JXLLosslessJPEGTranscode, Reason: "jpeg_lossless_transcode", CopyThrough: copyThrough}
	}

	if isLegacyLosslessRasterExt(ext) && !mp.IsAnimated {
		return TargetDecision{Target: JXLStatic, Reason: "legacy_lossless_raster", CopyThrough: copyThrough}
	}

	if isModernRasterExt(ext) && !mp.IsAnimated {
		if mp.BitsPerPixelPerFrame > losslessModernRasterBppThreshold {
			return TargetDecision{Target: JXLStatic, Reason: "modern_raster_lossless", CopyThrough: copyThrough}
		}
		if !flags.AppleCompat {
			return TargetDecision{Target: Skip, Reason: "modern_lossy", CopyThrough: copyThrough}
		}
		return TargetDecision{Target: AVIFStatic, Reason: "modern_lossy_apple_compat", CopyThrough: copyThrough}
	}

	if mp.IsAnimated {
		highQuality := isHighQuality(mp)
		lossy, lossless := videoTarget(flags)

		switch {
		case mp.DurationSecs < shortAnimationSecs && !highQuality && flags.AppleCompat:
			return TargetDecision{Target: GIFAppleCompat, Reason: "short_animation_apple_compat", CopyThrough: copyThrough}
		case mp.DurationSecs >= shortAnimationSecs || highQuality:
			if flags.Lossless {
				return TargetDecision{Target: lossless, Reason: "animated_video_lossless", CopyThrough: copyThrough}
			}
			return TargetDecision{Target: lossy, Reason: "animated_video", CopyThrough: copyThrough}
		case mp.DurationSecs < shortAnimationSecs && !flags.AppleCompat:
			return TargetDecision{Target: Skip, Reason: "short_animation", CopyThrough: copyThrough}
		}
	}

	// Video (any non-modern codec).
	lossy, lossless := videoTarget(flags)
	if flags.Lossless {
		return TargetDecision{Target: lossless, Reason: "video_lossless", CopyThrough: copyThrough}
	}
	return TargetDecision{Target: lossy, Reason: "video", CopyThrough: copyThrough}
}
