//go:build unix

package app

import "golang.org/x/sys/unix"

// freeSpace returns the bytes available to the process on dir's file system.
func freeSpace(dir string) (uint64, error) {
	if dir == "" {
		dir = "."
	}
	var st unix.Statfs_t
	if err := unix.Statfs(dir, &st); err != nil {
		return 0, err
	}
	return uint64(st.Bavail) * uint64(st.Bsize), nil
}
