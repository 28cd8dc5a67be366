//go:build linux

package batch

import (
	"os"
	"syscall"
	"time"
)

// statTimes extracts atime/mtime from info's underlying syscall.Stat_t,
// falling back to info.ModTime() for both if the underlying type isn't
// available (e.g. a non-native filesystem shim).
func statTimes(info os.FileInfo) (atime, mtime time.Time) {
	mtime = info.ModTime()
	atime = mtime
	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		atime = time.Unix(st.Atim.Sec, st.Atim.Nsec)
		mtime = time.Unix(st.Mtim.Sec, st.Mtim.Nsec)
	}
	return atime, mtime
}
