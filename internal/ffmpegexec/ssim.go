package ffmpegexec

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
)

var ssimAllRegex = regexp.MustCompile(`All:([0-9.]+)`)

// ComputeSSIM runs `ffmpeg -lavfi ssim -f null -` comparing candidatePath
// against originalPath and parses the aggregate "All:" score from stderr.
// Returns nil if the score could not be parsed (§4.4's SSIM probe).
func ComputeSSIM(ctx context.Context, originalPath, candidatePath string) (*float64, error) {
	args := []string{
		"-i", candidatePath,
		"-i", originalPath,
		"-lavfi", "ssim",
		"-f", "null", "-",
	}
	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		// ffmpeg -f null always "succeeds" at decoding when ssim is emitted,
		// but tolerate a non-zero exit and still try to parse the score.
		if stderr.Len() == 0 {
			return nil, fmt.Errorf("ffmpeg ssim: %w", err)
		}
	}

	matches := ssimAllRegex.FindStringSubmatch(stderr.String())
	if len(matches) < 2 {
		return nil, nil
	}
	score, err := strconv.ParseFloat(matches[1], 64)
	if err != nil {
		return nil, nil
	}
	return &score, nil
}
