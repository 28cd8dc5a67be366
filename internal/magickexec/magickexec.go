// Package magickexec shells out to ImageMagick's identify/magick for
// animated-duration fallback probing and legacy still re-encodes that
// ffprobe/cjxl cannot handle directly.
package magickexec

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// FrameDelays runs `identify -format "%T|"` and returns each frame's delay
// in centiseconds. C1's animated-duration fallback runs its own identify
// call and does not go through this function.
func FrameDelays(ctx context.Context, path string) ([]int, error) {
	cmd := exec.CommandContext(ctx, "identify", "-format", "%T|", path)
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("identify failed: %w", err)
	}

	var delays []int
	for _, field := range strings.Split(strings.TrimSuffix(string(out), "|"), "|") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		d, err := strconv.Atoi(field)
		if err != nil {
			continue
		}
		delays = append(delays, d)
	}
	return delays, nil
}

// ConvertParams describes one `magick`/`convert` invocation.
type ConvertParams struct {
	InputPath  string
	OutputPath string
	Args       []string // extra ImageMagick flags, e.g. quality settings
}

// Run invokes magick (or convert, if magick is unavailable) and returns an
// error if it exits non-zero.
func Run(ctx context.Context, p *ConvertParams) error {
	args := append(append([]string{}, p.Args...), p.InputPath, p.OutputPath)
	bin := "magick"
	if _, err := exec.LookPath(bin); err != nil {
		bin = "convert"
	}
	cmd := exec.CommandContext(ctx, bin, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s failed: %w: %s", bin, err, out)
	}
	return nil
}

// NeedsPNGPreprocess reports whether ext is a format the JXL encoder
// doesn't accept directly and must first be converted to PNG (TIFF/BMP at
// 16-bit depth, HEIC/HEIF, and first-frame extraction for GIF).
func NeedsPNGPreprocess(ext string) bool {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "tiff", "tif", "bmp", "heic", "heif", "gif":
		return true
	default:
		return false
	}
}

// PreprocessToPNG converts inputPath to a 16-bit PNG at outputPath (first
// frame only, for animated sources being treated as static), the fallback
// path for formats cjxl can't read natively.
func PreprocessToPNG(ctx context.Context, inputPath, outputPath string) error {
	source := inputPath
	if strings.HasSuffix(strings.ToLower(inputPath), ".gif") {
		source = inputPath + "[0]"
	}
	return Run(ctx, &ConvertParams{
		InputPath:  source,
		OutputPath: outputPath,
		Args:       []string{"-depth", "16"},
	})
}
