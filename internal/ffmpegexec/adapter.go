package ffmpegexec

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/hadronmedia/recompress/internal/explore"
)

// NewEncodeFunc builds an explore.EncodeFunc that writes each probe to a
// unique temp path next to base, varying only CRF between calls. tempDir is
// typically the same directory as the eventual commit target, matching C5's
// same-filesystem-rename requirement.
func NewEncodeFunc(base EncodeParams, tempDir string) explore.EncodeFunc {
	return NewEncodeFuncWithProgress(base, tempDir, nil)
}

// NewEncodeFuncWithProgress is NewEncodeFunc plus a ProgressCallback forwarded
// to every probe's ffmpeg invocation, letting a caller surface per-frame
// progress for video targets (nil callback behaves exactly like NewEncodeFunc).
func NewEncodeFuncWithProgress(base EncodeParams, tempDir string, callback ProgressCallback) explore.EncodeFunc {
	return func(ctx context.Context, param float64) (string, int64, error) {
		p := base
		p.CRF = uint8(param)
		ext := ".mkv"
		if p.Codec == "gif" {
			ext = ".gif"
		}
		p.OutputPath = fmt.Sprintf("%s/.probe-%s%s", tempDir, uuid.NewString()[:8], ext)

		res := RunEncode(ctx, &p, callback)
		if !res.Success {
			return "", 0, res.Error
		}

		size, err := fileSize(p.OutputPath)
		if err != nil {
			return "", 0, err
		}
		return p.OutputPath, size, nil
	}
}

// NewSSIMFunc builds an explore.SSIMFunc comparing each probe against originalPath.
func NewSSIMFunc(originalPath string) explore.SSIMFunc {
	return func(ctx context.Context, candidatePath string) (*float64, error) {
		return ComputeSSIM(ctx, originalPath, candidatePath)
	}
}

func fileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}
