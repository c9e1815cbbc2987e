//go:build linux

package image

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"ext2fsck/backend"
)

const blkssZget = 0x1268 // BLKSSZGET: query a block device's logical sector size

// checkSectorSize warns the caller, via the returned error, when storage is
// backed by a real block device whose logical sector size isn't 512 bytes.
// diskio addresses everything in fixed 512-byte sectors (see spec's data
// model); a 4Kn-native device would silently misalign every sector read.
// Plain image files (the common case for this tool) have no such notion and
// are skipped.
func checkSectorSize(storage backend.Storage) error {
	info, err := storage.Stat()
	if err != nil || info.Mode()&os.ModeDevice == 0 {
		return nil
	}
	f, err := storage.Sys()
	if err != nil {
		return nil
	}
	logical, err := unix.IoctlGetInt(int(f.Fd()), blkssZget)
	if err != nil {
		return nil
	}
	if logical != 512 {
		return fmt.Errorf("device reports %d-byte logical sectors, this tool assumes 512", logical)
	}
	return nil
}
