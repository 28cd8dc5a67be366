// Package safety implements the C9 gate: rejecting shell-metacharacter
// paths, aliased input/output, and destructive operations against
// system-critical roots, before any subprocess is invoked.
package safety

import (
	"path/filepath"
	"runtime"
	"strings"

	"github.com/hadronmedia/recompress/internal/errors"
)

// dangerousChars are shell metacharacters that must never reach exec.Command
// argv unescaped; recompress never shells through a string interpreter, but
// a path containing these is rejected outright as a defense-in-depth gate
// against downstream tools that might (§4.9).
const dangerousChars = ";|&$`(){}<>\n\r\x00"

// ValidatePath rejects any path whose string form contains a shell
// metacharacter.
func ValidatePath(path string) error {
	if strings.ContainsAny(path, dangerousChars) {
		return errors.NewPathSafetyError(path)
	}
	return nil
}

// dangerousRoots lists canonical paths that delete_original/in_place must
// never touch, platform-specific (§4.9).
func dangerousRoots() []string {
	switch runtime.GOOS {
	case "windows":
		return []string{`C:\`, `C:\Windows`, `C:\Program Files`, `C:\Program Files (x86)`}
	case "darwin":
		return []string{"/", "/System", "/Applications", "/Library", "/usr", "/bin", "/sbin"}
	default:
		return []string{"/", "/usr", "/bin", "/sbin", "/etc", "/boot", "/lib", "/lib64", "/root"}
	}
}

// CheckDangerousRoot rejects destructive operations (delete_original,
// in_place) whose canonical path equals a system-critical root.
func CheckDangerousRoot(path string) error {
	canonical := filepath.Clean(path)
	for _, root := range dangerousRoots() {
		if canonical == root {
			return errors.NewDangerousRootError(path)
		}
	}
	return nil
}

// CheckAliasing rejects an (input, output) pair that resolve to the same
// file. When output does not yet exist, its parent is canonicalized and
// joined with its filename instead.
func CheckAliasing(inputPath, outputPath string) error {
	in := filepath.Clean(inputPath)
	if resolved, err := filepath.EvalSymlinks(in); err == nil {
		in = resolved
	}
	out := canonicalizeOutput(outputPath)

	if in == out || filepath.Clean(inputPath) == filepath.Clean(outputPath) {
		return errors.NewInputOutputConflictError(inputPath, outputPath)
	}
	return nil
}

func canonicalizeOutput(path string) string {
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		return resolved
	}
	dir := filepath.Clean(filepath.Dir(path))
	if resolved, err := filepath.EvalSymlinks(dir); err == nil {
		dir = resolved
	}
	return filepath.Join(dir, filepath.Base(path))
}
