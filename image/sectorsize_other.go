//go:build !linux

package image

import "ext2fsck/backend"

// checkSectorSize is a no-op outside Linux: the BLKSSZGET ioctl this check
// relies on is Linux-specific, and non-Linux callers of this tool are
// expected to operate on plain image files rather than raw block devices.
func checkSectorSize(storage backend.Storage) error {
	return nil
}
