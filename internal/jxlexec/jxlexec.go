// Package jxlexec shells out to cjxl/djxl for JPEG XL still-image encodes
// (C2's JXLStatic/JXLStaticMatched/JXLLosslessJPEGTranscode targets).
package jxlexec

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"

	"github.com/hadronmedia/recompress/internal/explore"
	"github.com/hadronmedia/recompress/internal/ffmpegexec"
)

// EncodeParams describes one cjxl invocation.
type EncodeParams struct {
	InputPath  string
	OutputPath string
	Distance   float64 // libjxl's "distance" quality parameter, 0 = lossless
	Effort     uint8   // cjxl -e, 1-9
	LosslessJPEGTranscode bool
}

// Run invokes cjxl and returns an error if it exits non-zero.
func Run(ctx context.Context, p *EncodeParams) error {
	args := []string{p.InputPath, p.OutputPath}

	if p.LosslessJPEGTranscode {
		args = append(args, "--lossless_jpeg=1")
	} else {
		args = append(args, "--distance", strconv.FormatFloat(p.Distance, 'f', -1, 64))
		effort := p.Effort
		if effort == 0 {
			effort = 7
		}
		args = append(args, "-e", fmt.Sprintf("%d", effort))
	}

	cmd := exec.CommandContext(ctx, "cjxl", args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("cjxl failed: %w: %s", err, out)
	}
	return nil
}

// Probe runs djxl to verify a JXL file decodes (used by C5's health check).
func Probe(ctx context.Context, path string) error {
	cmd := exec.CommandContext(ctx, "djxl", path, os.DevNull)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("djxl probe failed: %w: %s", err, out)
	}
	return nil
}

// NewEncodeFunc adapts Run into an explore.EncodeFunc, mapping the
// explorer's float parameter onto libjxl's distance for non-transcode paths.
func NewEncodeFunc(base EncodeParams, tempDir string) explore.EncodeFunc {
	return func(ctx context.Context, param float64) (string, int64, error) {
		p := base
		p.Distance = param
		p.OutputPath = fmt.Sprintf("%s/.probe-%d.jxl", tempDir, int(param*1000))

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

// NewSSIMFunc builds an explore.SSIMFunc for JXL candidates. ffmpeg has no
// reliable native JXL decoder, so each candidate is first decoded to a
// temporary PNG with djxl, then compared against originalPath the same way
// video candidates are (ffmpegexec.ComputeSSIM).
func NewSSIMFunc(originalPath string) explore.SSIMFunc {
	return func(ctx context.Context, candidatePath string) (*float64, error) {
		pngPath := candidatePath + ".ssim.png"
		defer func() { _ = os.Remove(pngPath) }()

		cmd := exec.CommandContext(ctx, "djxl", candidatePath, pngPath)
		if out, err := cmd.CombinedOutput(); err != nil {
			return nil, fmt.Errorf("djxl decode for ssim: %w: %s", err, out)
		}
		return ffmpegexec.ComputeSSIM(ctx, originalPath, pngPath)
	}
}
