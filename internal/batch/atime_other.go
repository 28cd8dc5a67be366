//go:build !linux

package batch

import (
	"os"
	"time"
)

// statTimes falls back to ModTime for both atime and mtime on platforms
// without a linux-shaped syscall.Stat_t.
func statTimes(info os.FileInfo) (atime, mtime time.Time) {
	return info.ModTime(), info.ModTime()
}
