// Package metadata implements preserve_metadata(src, dst), the thin
// external-collaborator boundary C5 treats as best-effort (spec §1, §4.5).
package metadata

import (
	"os"
	"os/exec"
)

// Preserve copies timestamps and permissions from src to dst via the
// standard library, then best-effort copies richer tags (EXIF, XMP, IPTC)
// via exiftool if it is present on PATH. A missing exiftool is not an
// error; only truly failed invocations are reported.
func Preserve(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}

	if err := os.Chmod(dst, info.Mode()); err != nil {
		return err
	}
	if err := os.Chtimes(dst, info.ModTime(), info.ModTime()); err != nil {
		return err
	}

	return preserveTagsBestEffort(src, dst)
}

func preserveTagsBestEffort(src, dst string) error {
	if _, err := exec.LookPath("exiftool"); err != nil {
		return nil
	}
	cmd := exec.Command("exiftool", "-overwrite_original", "-TagsFromFile", src, dst)
	return cmd.Run()
}
