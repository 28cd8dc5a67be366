package batch

import (
	"os"
	"path/filepath"
	"time"
)

// dirSnapshot captures one directory's mode and timestamps before a batch
// run starts writing into it, so they can be restored afterward. Creating
// output files under a directory bumps its mtime; recompress preserves the
// tree's original metadata the same way it preserves each file's (§4.7).
type dirSnapshot struct {
	relPath string
	mode    os.FileMode
	atime   time.Time
	mtime   time.Time
}

// snapshotDirs walks root and records every directory's mode and
// timestamps, keyed by path relative to root.
func snapshotDirs(root string) ([]dirSnapshot, error) {
	var snaps []dirSnapshot
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if !d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		atime, mtime := statTimes(info)
		snaps = append(snaps, dirSnapshot{relPath: rel, mode: info.Mode(), atime: atime, mtime: mtime})
		return nil
	})
	return snaps, err
}

// restoreDirs re-applies each snapshot's mode, timestamps, and best-effort
// xattrs under outputRoot (copied from the matching directory under
// inputRoot), deepest directories first so a parent's restored mtime isn't
// immediately bumped again by a child being touched afterward. Best
// effort: a failure on one directory is not fatal to the run.
func restoreDirs(snaps []dirSnapshot, inputRoot, outputRoot string) {
	for i := len(snaps) - 1; i >= 0; i-- {
		s := snaps[i]
		src := filepath.Join(inputRoot, s.relPath)
		dst := filepath.Join(outputRoot, s.relPath)
		copyXattrs(src, dst)
		_ = os.Chmod(dst, s.mode)
		_ = os.Chtimes(dst, s.atime, s.mtime)
	}
}
