// Package probe extracts a MediaProbe from a filesystem path via a single
// external analyzer invocation (C1, spec §4.1).
package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/hadronmedia/recompress/internal/errors"
	"github.com/hadronmedia/recompress/internal/logging"
)

// CodecClass buckets a source codec by re-encode efficiency/safety.
type CodecClass int

const (
	// CodecClassUnknown is used for codecs absent from the lookup table.
	CodecClassUnknown CodecClass = iota
	// CodecClassModern covers codecs recompression should skip by default (hevc, av1, vp9, vvc).
	CodecClassModern
	// CodecClassLegacyIntra covers intra-only legacy codecs (mjpeg, cinepak, indeo, ...).
	CodecClassLegacyIntra
	// CodecClassLegacyInter covers inter-predicted legacy codecs (h264, vp8, theora, rv, wmv, ...).
	CodecClassLegacyInter
	// CodecClassLosslessIntermediate covers mezzanine/lossless codecs (ffv1, huffyuv, prores-lossless).
	CodecClassLosslessIntermediate
)

var codecClassTable = map[string]CodecClass{
	"hevc": CodecClassModern, "h265": CodecClassModern,
	"av1": CodecClassModern,
	"vp9": CodecClassModern,
	"vvc": CodecClassModern, "h266": CodecClassModern,

	"mjpeg": CodecClassLegacyIntra,
	"cinepak": CodecClassLegacyIntra,
	"indeo2": CodecClassLegacyIntra, "indeo3": CodecClassLegacyIntra, "indeo4": CodecClassLegacyIntra, "indeo5": CodecClassLegacyIntra,
	"dvvideo": CodecClassLegacyIntra,

	"h264": CodecClassLegacyInter, "avc": CodecClassLegacyInter,
	"vp8":     CodecClassLegacyInter,
	"theora":  CodecClassLegacyInter,
	"rv10":    CodecClassLegacyInter, "rv20": CodecClassLegacyInter, "rv30": CodecClassLegacyInter, "rv40": CodecClassLegacyInter,
	"wmv1": CodecClassLegacyInter, "wmv2": CodecClassLegacyInter, "wmv3": CodecClassLegacyInter, "vc1": CodecClassLegacyInter,
	"mpeg1video": CodecClassLegacyInter, "mpeg2video": CodecClassLegacyInter, "mpeg4": CodecClassLegacyInter,

	"ffv1":            CodecClassLosslessIntermediate,
	"huffyuv":         CodecClassLosslessIntermediate,
	"prores":          CodecClassLosslessIntermediate,
	"magicyuv":        CodecClassLosslessIntermediate,
	"utvideo":         CodecClassLosslessIntermediate,
}

// ClassifyCodec looks up the CodecClass for a (lowercased) codec name.
func ClassifyCodec(codec string) CodecClass {
	if class, ok := codecClassTable[strings.ToLower(codec)]; ok {
		return class
	}
	return CodecClassUnknown
}

// FPSCategory buckets the detected frame rate (§3).
type FPSCategory int

const (
	// FPSInvalid is fps <= 0 or > 10000; a CannotProcess condition.
	FPSInvalid FPSCategory = iota
	// FPSNormal is 1-239 fps.
	FPSNormal
	// FPSExtended is 240-2000 fps.
	FPSExtended
	// FPSExtreme is 2000-10000 fps.
	FPSExtreme
)

// ClassifyFPS buckets a frame rate into its FPSCategory.
func ClassifyFPS(fps float64) FPSCategory {
	switch {
	case fps <= 0 || fps > 10000:
		return FPSInvalid
	case fps <= 239:
		return FPSNormal
	case fps <= 2000:
		return FPSExtended
	default:
		return FPSExtreme
	}
}

// MediaProbe is the immutable output of a single Probe invocation (§3).
type MediaProbe struct {
	Path   string
	Width  uint32
	Height uint32

	Codec      string
	CodecClass CodecClass

	DurationSecs float64
	FPS          float64
	FPSCategory  FPSCategory
	FrameCount   uint64

	TotalFileSize   int64
	VideoStreamSize int64

	BitDepth           uint8
	PixFmt             string
	ChromaSubsampling  string

	HasAlpha    bool
	HasBFrames  bool
	IsAnimated  bool
	IsHDR       bool

	ColorPrimaries string
	ColorTransfer  string
	ColorSpace     string

	// BitsPerPixelPerFrame is video_stream_size*8/(width*height*frame_count).
	BitsPerPixelPerFrame float64
}

// containerOverheadPct returns the approximate fraction of total file size
// consumed by container framing/metadata overhead, keyed by extension.
func containerOverheadPct(ext string) float64 {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "mp4", "mov", "m4v":
		return 0.0015
	case "mkv", "webm":
		return 0.002
	case "avi":
		return 0.005
	case "gif", "png", "jpg", "jpeg":
		return 0.0005
	default:
		return 0.003
	}
}

type ffprobeOutput struct {
	Format  ffprobeFormat   `json:"format"`
	Streams []ffprobeStream `json:"streams"`
}

type ffprobeFormat struct {
	Duration string `json:"duration"`
	BitRate  string `json:"bit_rate"`
	Size     string `json:"size"`
}

type ffprobeStream struct {
	CodecType        string `json:"codec_type"`
	CodecName        string `json:"codec_name"`
	Width            int64  `json:"width"`
	Height           int64  `json:"height"`
	RFrameRate       string `json:"r_frame_rate"`
	Duration         string `json:"duration"`
	NbFrames         string `json:"nb_frames"`
	BitRate          string `json:"bit_rate"`
	ColorPrimaries   string `json:"color_primaries"`
	ColorTransfer    string `json:"color_transfer"`
	ColorSpace       string `json:"color_space"`
	PixFmt           string `json:"pix_fmt"`
	BitsPerRawSample string `json:"bits_per_raw_sample"`
	HasBFrames       int    `json:"has_b_frames"`
}

// runAnalyzer issues the single ffprobe invocation §4.1 and §6 specify:
// one JSON result covering both the primary video stream and the container.
func runAnalyzer(ctx context.Context, path string) (*ffprobeOutput, error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=codec_name,codec_type,width,height,r_frame_rate,duration,nb_frames,bit_rate,color_space,color_transfer,color_primaries,pix_fmt,bits_per_raw_sample,has_b_frames",
		"-show_entries", "format=duration,bit_rate,size",
		"-of", "json",
		"--", path,
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, errors.WrapExecError("ffprobe", err, stderr.String())
	}

	var out ffprobeOutput
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		return nil, errors.NewJSONParseError("failed to parse ffprobe output", err)
	}
	return &out, nil
}

// Probe produces a MediaProbe for path, or a typed ProbeError (see
// internal/errors: KindVideoInfo for CannotProcess conditions,
// KindJSONParse/KindNoStreamsFound/KindCommand for analyzer failures).
func Probe(ctx context.Context, log *logging.Logger, path string) (*MediaProbe, error) {
	out, err := runAnalyzer(ctx, path)
	if err != nil {
		return nil, err
	}

	var vs *ffprobeStream
	for i := range out.Streams {
		if out.Streams[i].CodecType == "video" {
			vs = &out.Streams[i]
			break
		}
	}
	if vs == nil {
		return nil, errors.NewNoStreamsFoundError(path)
	}

	if vs.Width < 16 || vs.Width > 16384 || vs.Height < 16 || vs.Height > 16384 {
		return nil, errors.NewVideoInfoError(fmt.Sprintf("%s: cannot process, resolution %dx%d out of bounds", path, vs.Width, vs.Height))
	}

	fps, err := parseFrameRate(vs.RFrameRate)
	if err != nil {
		log.Warn("%s: could not parse frame rate %q: %v", path, vs.RFrameRate, err)
	}

	duration, durErr := resolveDuration(ctx, log, path, out, vs, fps)
	if durErr != nil {
		return nil, durErr
	}

	fpsCat := ClassifyFPS(fps)
	if fpsCat == FPSInvalid {
		return nil, errors.NewVideoInfoError(fmt.Sprintf("%s: cannot process, fps %g out of bounds", path, fps))
	}

	frameCount := parseFrameCount(vs.NbFrames, duration, fps)

	totalSize := fileSize(path)
	videoStreamSize := videoStreamSizeBytes(out, vs, totalSize, duration, filepath.Ext(path))

	bitDepth := parseBitDepth(vs.BitsPerRawSample, vs.PixFmt)

	bpp := 0.0
	if frameCount > 0 && vs.Width > 0 && vs.Height > 0 {
		bpp = float64(videoStreamSize) * 8 / (float64(vs.Width) * float64(vs.Height) * float64(frameCount))
	}

	codec := strings.ToLower(vs.CodecName)
	isAnimated := frameCount > 1 && isStillImageCodec(codec)

	mp := &MediaProbe{
		Path:                 path,
		Width:                uint32(vs.Width),
		Height:               uint32(vs.Height),
		Codec:                codec,
		CodecClass:           ClassifyCodec(codec),
		DurationSecs:         duration,
		FPS:                  fps,
		FPSCategory:          fpsCat,
		FrameCount:           frameCount,
		TotalFileSize:        totalSize,
		VideoStreamSize:      videoStreamSize,
		BitDepth:             bitDepth,
		PixFmt:               vs.PixFmt,
		ChromaSubsampling:    chromaSubsampling(vs.PixFmt),
		HasAlpha:             hasAlphaPixFmt(vs.PixFmt),
		HasBFrames:           vs.HasBFrames > 0,
		IsAnimated:           isAnimated,
		IsHDR:                detectHDR(vs.ColorPrimaries, vs.ColorTransfer, vs.ColorSpace),
		ColorPrimaries:       vs.ColorPrimaries,
		ColorTransfer:        vs.ColorTransfer,
		ColorSpace:           vs.ColorSpace,
		BitsPerPixelPerFrame: bpp,
	}
	return mp, nil
}

func parseFrameRate(rFrameRate string) (float64, error) {
	parts := strings.SplitN(rFrameRate, "/", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("unexpected r_frame_rate format %q", rFrameRate)
	}
	num, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return 0, err
	}
	den, err := strconv.ParseFloat(parts[1], 64)
	if err != nil || den == 0 {
		return 0, fmt.Errorf("invalid r_frame_rate denominator in %q", rFrameRate)
	}
	return num / den, nil
}

// resolveDuration implements the §3 detection chain: stream.duration ->
// format.duration -> frame_count/fps -> ImageMagick identify (animated
// stills) -> CannotProcess(duration).
func resolveDuration(ctx context.Context, log *logging.Logger, path string, out *ffprobeOutput, vs *ffprobeStream, fps float64) (float64, error) {
	if d, err := strconv.ParseFloat(vs.Duration, 64); err == nil && d >= 0.001 {
		return d, nil
	}
	if d, err := strconv.ParseFloat(out.Format.Duration, 64); err == nil && d >= 0.001 {
		return d, nil
	}
	if fps > 0 && vs.NbFrames != "" {
		if frames, err := strconv.ParseFloat(vs.NbFrames, 64); err == nil && frames > 0 {
			d := frames / fps
			if d >= 0.001 {
				return d, nil
			}
		}
	}
	log.Warn("%s: duration recovery via stream/format/frame-count all failed, trying ImageMagick identify", path)
	if d, frames, err := identifyAnimatedDuration(ctx, path); err == nil {
		_ = frames
		return d, nil
	}
	log.Warn("%s: duration could not be recovered by any method", path)
	return 0, errors.NewVideoInfoError(fmt.Sprintf("%s: cannot process, duration undetectable", path))
}

// identifyAnimatedDuration shells out to ImageMagick's identify to recover
// duration and frame count for animated stills ffprobe cannot time (§4.1).
func identifyAnimatedDuration(ctx context.Context, path string) (durationSecs float64, frameCount int, err error) {
	cmd := exec.CommandContext(ctx, "identify", "-format", "%T|", "--", path)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if runErr := cmd.Run(); runErr != nil {
		return 0, 0, errors.WrapExecError("identify", runErr, stderr.String())
	}
	fields := strings.Split(strings.Trim(stdout.String(), "|"), "|")
	frameCount = len(fields)
	totalCentiseconds := 0
	for _, f := range fields {
		if f == "" {
			continue
		}
		if v, parseErr := strconv.Atoi(f); parseErr == nil {
			totalCentiseconds += v
		}
	}
	if totalCentiseconds == 0 || frameCount == 0 {
		return 0, 0, fmt.Errorf("identify produced no usable per-frame delay data for %s", path)
	}
	return float64(totalCentiseconds) / 100.0, frameCount, nil
}

func parseFrameCount(nbFrames string, duration, fps float64) uint64 {
	if nbFrames != "" {
		if frames, err := strconv.ParseUint(nbFrames, 10, 64); err == nil && frames > 0 {
			return frames
		}
	}
	if fps > 0 && duration > 0 {
		return uint64(math.Round(duration * fps))
	}
	return 0
}

func fileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}

func videoStreamSizeBytes(out *ffprobeOutput, vs *ffprobeStream, totalSize int64, duration float64, ext string) int64 {
	bitrateStr := vs.BitRate
	if bitrateStr == "" {
		bitrateStr = out.Format.BitRate
	}
	if bitrateStr != "" && duration > 0 {
		if bitrate, err := strconv.ParseFloat(bitrateStr, 64); err == nil && bitrate > 0 {
			return int64(bitrate * duration / 8)
		}
	}
	overhead := containerOverheadPct(ext)
	return int64(float64(totalSize) * (1 - overhead))
}

func parseBitDepth(bitsPerRawSample, pixFmt string) uint8 {
	if bitsPerRawSample != "" {
		if bd, err := strconv.ParseUint(bitsPerRawSample, 10, 8); err == nil && bd > 0 {
			return uint8(bd)
		}
	}
	lower := strings.ToLower(pixFmt)
	switch {
	case strings.Contains(lower, "16le"), strings.Contains(lower, "16be"):
		return 16
	case strings.Contains(lower, "12le"), strings.Contains(lower, "12be"):
		return 12
	case strings.Contains(lower, "10le"), strings.Contains(lower, "10be"):
		return 10
	default:
		return 8
	}
}

func chromaSubsampling(pixFmt string) string {
	lower := strings.ToLower(pixFmt)
	switch {
	case strings.Contains(lower, "444"):
		return "4:4:4"
	case strings.Contains(lower, "422"):
		return "4:2:2"
	case strings.Contains(lower, "420"):
		return "4:2:0"
	case strings.Contains(lower, "gray"), strings.Contains(lower, "monob"):
		return "4:0:0"
	default:
		return "unknown"
	}
}

func hasAlphaPixFmt(pixFmt string) bool {
	lower := strings.ToLower(pixFmt)
	for _, marker := range []string{"yuva", "rgba", "bgra", "argb", "abgr", "ya8", "ya16", "pal8"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func isStillImageCodec(codec string) bool {
	switch codec {
	case "gif", "webp", "apng", "png", "bmp", "tiff", "heif", "heic", "avif":
		return true
	default:
		return false
	}
}

// detectHDR reports whether color metadata indicates HDR content (BT.2020
// primaries and a PQ/HLG transfer function).
func detectHDR(primaries, transfer, matrix string) bool {
	hasBT2020Primaries := containsCI(primaries, "bt2020") || containsCI(primaries, "bt.2020") || containsCI(primaries, "bt2100")
	hasPQOrHLG := containsCI(transfer, "smpte2084") || containsCI(transfer, "pq") || containsCI(transfer, "hlg") || containsCI(transfer, "arib-std-b67")
	return hasBT2020Primaries && hasPQOrHLG
}

func containsCI(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
