// Package avifexec shells out to avifenc for the AV1-in-HEIF/AVIF still
// fallback path (used when a modern-raster lossy still needs re-encoding
// under apple_compat).
package avifexec

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/hadronmedia/recompress/internal/explore"
	"github.com/hadronmedia/recompress/internal/ffmpegexec"
)

// EncodeParams describes one avifenc invocation.
type EncodeParams struct {
	InputPath  string
	OutputPath string
	Quality    uint8 // 0-100, avifenc's -q
	Speed      uint8 // 0-10, avifenc's -s
}

// Run invokes avifenc and returns an error if it exits non-zero.
func Run(ctx context.Context, p *EncodeParams) error {
	speed := p.Speed
	if speed == 0 {
		speed = 6
	}
	args := []string{
		"-q", fmt.Sprintf("%d", p.Quality),
		"-s", fmt.Sprintf("%d", speed),
		p.InputPath, p.OutputPath,
	}
	cmd := exec.CommandContext(ctx, "avifenc", args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("avifenc failed: %w: %s", err, out)
	}
	return nil
}

// qualityFromParam maps the explorer's distance-like parameter (0 = best
// quality, larger = more compression, the same convention quality.TargetJXL
// uses) onto avifenc's inverted 0-100 quality scale.
func qualityFromParam(param float64) uint8 {
	q := 100 - param*10
	switch {
	case q < 0:
		return 0
	case q > 100:
		return 100
	default:
		return uint8(q)
	}
}

// NewEncodeFunc adapts Run into an explore.EncodeFunc for the AVIFStatic
// route, converting the explorer's distance-like parameter to avifenc's
// quality scale.
func NewEncodeFunc(base EncodeParams, tempDir string) explore.EncodeFunc {
	return func(ctx context.Context, param float64) (string, int64, error) {
		p := base
		p.Quality = qualityFromParam(param)
		p.OutputPath = fmt.Sprintf("%s/.probe-%d.avif", tempDir, int(param*1000))

		if err := Run(ctx, &p); err != nil {
			return "", 0, err
		}
		info, err := os.Stat(p.OutputPath)
		if err != nil {
			return "", 0, err
		}
		return p.OutputPath, info.Size(), nil
	}
}

// NewSSIMFunc builds an explore.SSIMFunc for AVIF candidates. ffmpeg's AVIF
// decode support is inconsistent across builds, so each candidate is
// decoded to a temporary PNG with avifdec first, mirroring
// jxlexec.NewSSIMFunc's djxl-based adapter.
func NewSSIMFunc(originalPath string) explore.SSIMFunc {
	return func(ctx context.Context, candidatePath string) (*float64, error) {
		pngPath := candidatePath + ".ssim.png"
		defer func() { _ = os.Remove(pngPath) }()

		cmd := exec.CommandContext(ctx, "avifdec", candidatePath, pngPath)
		if out, err := cmd.CombinedOutput(); err != nil {
			return nil, fmt.Errorf("avifdec decode for ssim: %w: %s", err, out)
		}
		return ffmpegexec.ComputeSSIM(ctx, originalPath, pngPath)
	}
}
