// Package ffmpegexec builds and runs ffmpeg command lines for the AV1/HEVC
// video targets (adapted from five82-drapto's internal/ffmpeg) and computes
// SSIM for the explore probe loop.
package ffmpegexec

import (
	"fmt"
	"strings"
)

// SvtAv1ParamsBuilder builds SVT-AV1 --svtav1-params with method chaining.
type SvtAv1ParamsBuilder struct {
	params []paramKV
}

type paramKV struct {
	key   string
	value string
}

// NewSvtAv1ParamsBuilder creates a new SVT-AV1 parameters builder.
func NewSvtAv1ParamsBuilder() *SvtAv1ParamsBuilder {
	return &SvtAv1ParamsBuilder{}
}

// WithTune sets the tune parameter.
func (b *SvtAv1ParamsBuilder) WithTune(tune uint8) *SvtAv1ParamsBuilder {
	b.params = append(b.params, paramKV{"tune", fmt.Sprintf("%d", tune)})
	return b
}

// WithFilmGrain sets SVT-AV1's film-grain synthesis strength (0 disables it).
func (b *SvtAv1ParamsBuilder) WithFilmGrain(strength uint8) *SvtAv1ParamsBuilder {
	if strength > 0 {
		b.params = append(b.params, paramKV{"film-grain", fmt.Sprintf("%d", strength)})
	}
	return b
}

// AddParam adds a custom key=value parameter.
func (b *SvtAv1ParamsBuilder) AddParam(key, value string) *SvtAv1ParamsBuilder {
	b.params = append(b.params, paramKV{key, value})
	return b
}

// Build joins the parameters into SVT-AV1's colon-separated form.
func (b *SvtAv1ParamsBuilder) Build() string {
	parts := make([]string, 0, len(b.params))
	for _, p := range b.params {
		parts = append(parts, fmt.Sprintf("%s=%s", p.key, p.value))
	}
	return strings.Join(parts, ":")
}

// X265ParamsBuilder builds libx265's -x265-params for the HEVC fallback path.
type X265ParamsBuilder struct {
	params []paramKV
}

// NewX265ParamsBuilder creates a new libx265 parameters builder.
func NewX265ParamsBuilder() *X265ParamsBuilder {
	return &X265ParamsBuilder{}
}

// AddParam adds a custom key=value parameter.
func (b *X265ParamsBuilder) AddParam(key, value string) *X265ParamsBuilder {
	b.params = append(b.params, paramKV{key, value})
	return b
}

// Build joins the parameters into libx265's colon-separated form.
func (b *X265ParamsBuilder) Build() string {
	parts := make([]string, 0, len(b.params))
	for _, p := range b.params {
		parts = append(parts, fmt.Sprintf("%s=%s", p.key, p.value))
	}
	return strings.Join(parts, ":")
}

// EncodeParams describes one video encode invocation.
type EncodeParams struct {
	InputPath   string
	OutputPath  string
	Codec       string // "av1", "hevc" or "gif"
	CRF         uint8
	Preset      uint8  // SVT-AV1 preset (0-13); ignored for HEVC
	Tune        uint8  // SVT-AV1 tune; ignored for HEVC
	HEVCPreset  string // libx265 preset name; ignored for AV1
	Lossless    bool
	AppleCompat bool // tag hvc1 for QuickTime/Apple compatibility
	CropFilter  string
	Duration    float64
	DisableAudio bool
}

// CalculateAudioBitrate returns an Opus bitrate in kbps based on channel count.
func CalculateAudioBitrate(channels uint32) uint32 {
	switch channels {
	case 1:
		return 64
	case 2:
		return 128
	case 6:
		return 256
	case 8:
		return 384
	default:
		return channels * 48
	}
}

// BuildCommand assembles the ffmpeg argv for params (excluding the "ffmpeg"
// argv[0] itself). This is the function five82-drapto's own executor.go
// referenced but never defined; recompress implements it for real,
// generalized from one fixed AV1 pipeline to the AV1/HEVC, lossy/lossless,
// apple-compat branches §4.2 routes into.
func BuildCommand(p *EncodeParams) []string {
	if p.Codec == "gif" {
		return buildGIFCommand(p)
	}

	args := []string{"-y", "-i", p.InputPath}

	filterChain := NewVideoFilterChain().AddCrop(p.CropFilter).Build()
	if filterChain != "" {
		args = append(args, "-vf", filterChain)
	}

	switch p.Codec {
	case "hevc":
		args = append(args, "-c:v", "libx265")
		if p.HEVCPreset != "" {
			args = append(args, "-preset", p.HEVCPreset)
		}
		if p.Lossless {
			args = append(args, "-x265-params", "lossless=1")
		} else {
			args = append(args, "-crf", fmt.Sprintf("%d", p.CRF))
		}
		if p.AppleCompat {
			args = append(args, "-tag:v", "hvc1")
		}
	default: // "av1"
		args = append(args, "-c:v", "libsvtav1")
		args = append(args, "-preset", fmt.Sprintf("%d", p.Preset))
		if p.Lossless {
			args = append(args, "-crf", "0")
		} else {
			args = append(args, "-crf", fmt.Sprintf("%d", p.CRF))
		}
		params := NewSvtAv1ParamsBuilder().WithTune(p.Tune).Build()
		if params != "" {
			args = append(args, "-svtav1-params", params)
		}
	}

	if p.DisableAudio {
		args = append(args, "-an")
	} else {
		args = append(args, "-c:a", "libopus")
	}

	args = append(args, "-map_metadata", "0", "-map", "0", p.OutputPath)
	return args
}

// buildGIFCommand assembles the two-pass palettegen/paletteuse filter
// graph GIFAppleCompat re-encodes through: a 256-color palette with Bayer
// dithering, the closest GIF can get to source fidelity in Apple's Photos
// viewer (which otherwise renders re-encoded GIFs with banding).
func buildGIFCommand(p *EncodeParams) []string {
	crop := NewVideoFilterChain().AddCrop(p.CropFilter).Build()
	split := "split[a][b]"
	palette := "[a]palettegen=reserve_transparent=1[p]"
	use := "[b][p]paletteuse=dither=bayer:bayer_scale=3"

	graph := split + ";" + palette + ";" + use
	if crop != "" {
		graph = crop + "," + split + ";" + palette + ";" + use
	}

	return []string{
		"-y", "-i", p.InputPath,
		"-filter_complex", graph,
		"-map_metadata", "0",
		p.OutputPath,
	}
}
