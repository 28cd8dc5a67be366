// Package commit implements the C5 atomic committer: moving a validated
// temp encode into its final location with no observable partial state,
// then best-effort metadata preservation (spec §4.5).
package commit

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
	"github.com/google/uuid"

	"github.com/hadronmedia/recompress/internal/errors"
	"github.com/hadronmedia/recompress/internal/jxlexec"
	"github.com/hadronmedia/recompress/internal/logging"
	"github.com/hadronmedia/recompress/internal/metadata"
)

// Outcome enumerates the named terminal states a commit can reach (§4.5, §7).
type Outcome int

const (
	// Committed means the temp file was renamed into place successfully.
	Committed Outcome = iota
	// SkippedExists means the final path already existed and force was false.
	SkippedExists
	// SkippedSizeIncrease means the size-tolerance post-check failed.
	SkippedSizeIncrease
	// OriginalDeleted means, in addition to Committed, the original was removed.
	OriginalDeleted
)

// String renders the outcome's human-readable name.
func (o Outcome) String() string {
	switch o {
	case Committed:
		return "committed"
	case SkippedExists:
		return "skipped_exists"
	case SkippedSizeIncrease:
		return "skipped_size_increase"
	case OriginalDeleted:
		return "original_deleted"
	default:
		return "unknown"
	}
}

// Health check step identifiers, kept as named constants (not an enum)
// because each is independently reported (§4.5 step 2).
const (
	stepSizePositive   = "output size > 0"
	stepReprobeable    = "output re-probeable"
	stepMagicBytes     = "container magic bytes"
	stepSizeTolerance  = "size within tolerance"
)

// Step is a single named health-check result.
type Step struct {
	Name    string
	Passed  bool
	Details string
}

// HealthResult is the outcome of step 2's pre-commit checks.
type HealthResult struct {
	Steps []Step
}

// OK reports whether every step passed.
func (r HealthResult) OK() bool {
	for _, s := range r.Steps {
		if !s.Passed {
			return false
		}
	}
	return true
}

// Failures returns the names of failed steps.
func (r HealthResult) Failures() []string {
	var out []string
	for _, s := range r.Steps {
		if !s.Passed {
			out = append(out, s.Name+": "+s.Details)
		}
	}
	return out
}

// Request bundles one commit operation's inputs.
type Request struct {
	TempPath             string
	FinalPath            string
	OriginalPath         string
	Format               string // "jxl", "avif", or "" for anything else (video)
	InputBytes           int64
	ToleranceRatio       float64
	RequireSizeTolerance bool // true for modes where compression is a hard gate
	Force                bool
	ShouldDeleteOriginal bool
	MinDeleteSizeBytes   int64
	PreserveMetadata     bool
}

// Result reports what happened.
type Result struct {
	Outcome Outcome
	Health  HealthResult
}

// TempName builds the `<final>.tmp.<8-hex-random>` temp path in the same
// directory as final (same filesystem, required for an atomic rename).
func TempName(final string) string {
	dir := filepath.Dir(final)
	base := filepath.Base(final)
	suffix := uuid.NewString()
	return filepath.Join(dir, fmt.Sprintf("%s.tmp.%s", base, suffix[:8]))
}

// Commit runs the full C5 protocol for req.
func Commit(ctx context.Context, log *logging.Logger, req Request) (*Result, error) {
	health := checkHealth(req)
	if !health.OK() {
		_ = os.Remove(req.TempPath)
		return &Result{Health: health}, fmt.Errorf("health check failed: %v", health.Failures())
	}

	if req.RequireSizeTolerance {
		outputBytes, err := fileSize(req.TempPath)
		if err == nil && !sizeWithinTolerance(outputBytes, req.InputBytes, req.ToleranceRatio) {
			_ = os.Remove(req.TempPath)
			if err := copyOriginalThrough(req.OriginalPath, req.FinalPath); err != nil {
				log.Warn("%s: failed to copy original through after size rejection: %v", req.OriginalPath, err)
			}
			return &Result{Outcome: SkippedSizeIncrease, Health: health}, nil
		}
	}

	if !req.Force {
		if _, err := os.Stat(req.FinalPath); err == nil {
			_ = os.Remove(req.TempPath)
			return &Result{Outcome: SkippedExists, Health: health}, nil
		}
	}

	if err := renameio.Rename(req.TempPath, req.FinalPath); err != nil {
		_ = os.Remove(req.TempPath)
		return nil, errors.NewOperationFailedError("atomic rename into final path", err)
	}

	if req.PreserveMetadata {
		if err := metadata.Preserve(req.OriginalPath, req.FinalPath); err != nil {
			log.Warn("%s: metadata preservation failed (non-fatal): %v", req.FinalPath, err)
		}
	}

	outcome := Committed
	if req.ShouldDeleteOriginal {
		if deleteOriginalIfSafe(log, req) {
			outcome = OriginalDeleted
		}
	}

	return &Result{Outcome: outcome, Health: health}, nil
}

func deleteOriginalIfSafe(log *logging.Logger, req Request) bool {
	finalSize, err := fileSize(req.FinalPath)
	if err != nil || finalSize < req.MinDeleteSizeBytes {
		log.Warn("%s: not deleting original, final output below minimum size threshold", req.OriginalPath)
		return false
	}
	if _, err := os.Stat(req.FinalPath); err != nil {
		log.Warn("%s: not deleting original, final output not re-readable: %v", req.OriginalPath, err)
		return false
	}
	if err := os.Remove(req.OriginalPath); err != nil {
		log.Warn("%s: failed to delete original: %v", req.OriginalPath, err)
		return false
	}
	return true
}

func checkHealth(req Request) HealthResult {
	var steps []Step

	size, err := fileSize(req.TempPath)
	steps = append(steps, Step{
		Name:    stepSizePositive,
		Passed:  err == nil && size > 0,
		Details: sizeDetails(size, err),
	})

	steps = append(steps, Step{
		Name:    stepReprobeable,
		Passed:  isReprobeable(req),
		Details: "dimensions readable",
	})

	if req.Format == "jxl" || req.Format == "avif" {
		magicOK, details := checkMagicBytes(req)
		steps = append(steps, Step{Name: stepMagicBytes, Passed: magicOK, Details: details})
	}

	return HealthResult{Steps: steps}
}

func sizeDetails(size int64, err error) string {
	if err != nil {
		return err.Error()
	}
	return fmt.Sprintf("%d bytes", size)
}

// isReprobeable does a minimal re-readability check (a full re-probe is the
// caller's job via internal/probe; this only confirms the file opens).
func isReprobeable(req Request) bool {
	f, err := os.Open(req.TempPath)
	if err != nil {
		return false
	}
	defer func() { _ = f.Close() }()
	return true
}

var jxlBareMagic = []byte{0xFF, 0x0A}
var jxlContainerMagic = []byte{0x00, 0x00, 0x00, 0x0C, 'J', 'X', 'L', ' '}

func checkMagicBytes(req Request) (bool, string) {
	f, err := os.Open(req.TempPath)
	if err != nil {
		return false, err.Error()
	}
	defer func() { _ = f.Close() }()

	header := make([]byte, 12)
	n, _ := f.Read(header)
	header = header[:n]

	switch req.Format {
	case "jxl":
		if bytes.HasPrefix(header, jxlBareMagic) || bytes.HasPrefix(header, jxlContainerMagic) {
			if err := jxlexec.Probe(context.Background(), req.TempPath); err != nil {
				return false, fmt.Sprintf("djxl probe failed: %v", err)
			}
			return true, "bare codestream or ISOBMFF container"
		}
		return false, "neither bare FF0A codestream nor JXL container signature"
	case "avif":
		// A minimal box-walker: look for an "ftyp" box naming an avif/avis brand.
		if len(header) >= 12 && string(header[4:8]) == "ftyp" {
			if brand := string(header[8:12]); brand == "avif" || brand == "avis" {
				return true, "ftyp box with " + brand + " brand"
			}
		}
		return false, "no ftyp box with an avif/avis brand found"
	default:
		return true, ""
	}
}

func fileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func sizeWithinTolerance(outputBytes, inputBytes int64, tolerance float64) bool {
	if inputBytes <= 0 {
		return true
	}
	return float64(outputBytes) <= float64(inputBytes)*tolerance
}

func copyOriginalThrough(originalPath, destPath string) error {
	src, err := os.Open(originalPath)
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()

	info, err := src.Stat()
	if err != nil {
		return err
	}

	pending, err := renameio.NewPendingFile(destPath)
	if err != nil {
		return err
	}
	defer func() { _ = pending.Cleanup() }()

	if _, err := copyAll(pending, src); err != nil {
		return err
	}
	if err := os.Chmod(pending.Name(), info.Mode()); err != nil {
		return err
	}
	return pending.CloseAtomicallyReplace()
}

func copyAll(dst *renameio.PendingFile, src *os.File) (int64, error) {
	buf := make([]byte, 1<<20)
	var total int64
	for {
		n, err := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return total, werr
			}
			total += int64(n)
		}
		if err != nil {
			if err == io.EOF {
				return total, nil
			}
			return total, err
		}
	}
}
