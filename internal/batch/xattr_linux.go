//go:build linux

package batch

import "golang.org/x/sys/unix"

// copyXattrs best-effort copies extended attributes from src to dst.
// Failures (unsupported filesystem, permission denied) are silently
// ignored; xattr preservation is a nice-to-have, never a hard requirement.
func copyXattrs(src, dst string) {
	names := make([]byte, 4096)
	n, err := unix.Llistxattr(src, names)
	if err != nil || n == 0 {
		return
	}

	for _, name := range splitXattrNames(names[:n]) {
		value := make([]byte, 4096)
		vn, err := unix.Lgetxattr(src, name, value)
		if err != nil {
			continue
		}
		_ = unix.Lsetxattr(dst, name, value[:vn], 0)
	}
}

// splitXattrNames parses the NUL-separated name list Llistxattr returns.
func splitXattrNames(buf []byte) []string {
	var names []string
	start := 0
	for i, b := range buf {
		if b == 0 {
			if i > start {
				names = append(names, string(buf[start:i]))
			}
			start = i + 1
		}
	}
	return names
}
