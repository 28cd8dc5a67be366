// Package quality computes the initial encoder parameter (CRF or JXL
// distance) from a MediaProbe, with no I/O (C3, spec §4.3).
package quality

import (
	"fmt"
	"math"

	"github.com/hadronmedia/recompress/internal/probe"
)

// Target identifies which parameter-mapping curve to apply.
type Target int

const (
	// TargetAV1 maps bpp-eff to an AV1 CRF.
	TargetAV1 Target = iota
	// TargetHEVC maps bpp-eff to an HEVC CRF.
	TargetHEVC
	// TargetJXL maps bpp-eff (or a source JPEG quality estimate) to a JXL distance.
	TargetJXL
)

// codecFactor is the source-codec efficiency relative to H.264 baseline (§4.3).
var codecFactor = map[string]float64{
	"h264": 1.0, "avc": 1.0,
	"hevc": 0.7, "h265": 0.7,
	"vp9":    0.75,
	"av1":    0.5,
	"prores": 1.5,
	"dnxhd":  1.5,
	"mjpeg":  2.0,
	"gif":    2.5,
	"jpeg":   1.0, "jpg": 1.0,
	"png": 1.5,
}

const (
	webpStaticFactor   = 0.8
	webpAnimatedFactor = 1.0
	unknownCodecFactor = 1.0

	bigResolutionPixels    = 8_000_000
	mediumResolutionPixels = 2_000_000
	smallResolutionPixels  = 500_000

	bigResolutionFactor    = 0.85
	mediumResolutionFactor = 0.9
	smallResolutionFactor  = 0.95
	defaultResolutionFactor = 1.0

	bframeFactorYes = 1.1
	bframeFactorNo  = 1.0

	alphaFactorYes = 0.9
	alphaFactorNo  = 1.0

	targetAdjustmentAV1  = 0.5
	targetAdjustmentHEVC = 0.7
	targetAdjustmentJXL  = 0.8
)

// colorDepthDivisor divides bpp rather than multiplying it (§4.3).
func colorDepthDivisor(bitDepth uint8) float64 {
	switch bitDepth {
	case 10:
		return 1.25
	case 12:
		return 1.5
	case 16:
		return 2.0
	default:
		return 1.0
	}
}

func lookupCodecFactor(mp *probe.MediaProbe) float64 {
	if mp.Codec == "webp" {
		if mp.IsAnimated {
			return webpAnimatedFactor
		}
		return webpStaticFactor
	}
	if f, ok := codecFactor[mp.Codec]; ok {
		return f
	}
	return unknownCodecFactor
}

func resolutionFactor(width, height uint32) float64 {
	pixels := uint64(width) * uint64(height)
	switch {
	case pixels > bigResolutionPixels:
		return bigResolutionFactor
	case pixels > mediumResolutionPixels:
		return mediumResolutionFactor
	case pixels > smallResolutionPixels:
		return smallResolutionFactor
	default:
		return defaultResolutionFactor
	}
}

func targetAdjustment(target Target) float64 {
	switch target {
	case TargetAV1:
		return targetAdjustmentAV1
	case TargetHEVC:
		return targetAdjustmentHEVC
	default:
		return targetAdjustmentJXL
	}
}

// rawBPP computes the uncorrected bits-per-pixel-per-frame feature,
// preferring the probe's own field and falling back to per-stream or
// per-file estimates (§4.3 step 1).
func rawBPP(mp *probe.MediaProbe) (float64, error) {
	if mp.Width == 0 || mp.Height == 0 {
		return 0, fmt.Errorf("invalid dimensions")
	}
	if mp.BitsPerPixelPerFrame > 0 {
		return mp.BitsPerPixelPerFrame, nil
	}
	if mp.FrameCount > 0 && mp.VideoStreamSize > 0 {
		return float64(mp.VideoStreamSize) * 8 / (float64(mp.Width) * float64(mp.Height) * float64(mp.FrameCount)), nil
	}
	if mp.TotalFileSize > 0 {
		return float64(mp.TotalFileSize) * 8 / (float64(mp.Width) * float64(mp.Height)), nil
	}
	return 0, fmt.Errorf("no usable size data to derive bpp")
}

// EffectiveBPP computes bpp-eff for the given probe and target encoder,
// applying the §4.3 multiplicative factor chain.
func EffectiveBPP(mp *probe.MediaProbe, target Target) (float64, error) {
	raw, err := rawBPP(mp)
	if err != nil {
		return 0, fmt.Errorf("invalid dimensions: %w", err)
	}

	codec := lookupCodecFactor(mp)
	resolution := resolutionFactor(mp.Width, mp.Height)

	bframe := bframeFactorNo
	if mp.HasBFrames {
		bframe = bframeFactorYes
	}

	alpha := alphaFactorNo
	if mp.HasAlpha {
		alpha = alphaFactorYes
	}

	colorDepth := colorDepthDivisor(mp.BitDepth)
	adjustment := targetAdjustment(target)

	bppEff := raw * codec * bframe * resolution * alpha / colorDepth / adjustment
	return bppEff, nil
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// AV1CRF maps bpp-eff to an AV1 CRF, clamped to [18, 35].
func AV1CRF(bppEff float64) uint8 {
	crf := 50 - 8*math.Log2(bppEff*100)
	return uint8(clampFloat(math.Round(crf), 18, 35))
}

// HEVCCRF maps bpp-eff to an HEVC CRF, clamped to [0, 32].
func HEVCCRF(bppEff float64) uint8 {
	crf := 51 - 10*math.Log2(bppEff*1000)
	return uint8(clampFloat(math.Round(crf), 0, 32))
}

// JXLDistanceFromJPEGQuality maps a source JPEG quality estimate to a JXL
// distance, clamped to [0.0, 5.0].
func JXLDistanceFromJPEGQuality(q float64) float64 {
	return clampFloat((100-q)/10, 0.0, 5.0)
}

// JXLDistanceFromBPP estimates a JPEG quality from bpp-eff, then maps it to
// a JXL distance, for sources with no available quality estimate.
func JXLDistanceFromBPP(bppEff float64) float64 {
	q := 70 + 15*math.Log2(bppEff*5)
	q = clampFloat(q, 50, 100)
	return JXLDistanceFromJPEGQuality(q)
}

// InitialParameter computes the seed parameter (CRF or JXL distance) for
// the given probe and target. jpegQuality, if non-nil, is a source JPEG
// quality estimate (0-100) used instead of the bpp-eff-derived estimate.
func InitialParameter(mp *probe.MediaProbe, target Target, jpegQuality *float64) (float64, error) {
	if target == TargetJXL && jpegQuality != nil {
		return JXLDistanceFromJPEGQuality(*jpegQuality), nil
	}

	bppEff, err := EffectiveBPP(mp, target)
	if err != nil {
		return 0, err
	}

	switch target {
	case TargetAV1:
		return float64(AV1CRF(bppEff)), nil
	case TargetHEVC:
		return float64(HEVCCRF(bppEff)), nil
	default:
		return JXLDistanceFromBPP(bppEff), nil
	}
}
