// Package diskio provides sector-granular positioned reads and writes against
// a disk image, and a partition-relative Device built on top of it.
//
// It plays the role that the sector I/O layer plays in the source this tool is
// based on: the ext2 filesystem model reaches the image only through here.
// The partition parser (package mbr) reads the partition table through
// backend.File directly.
package diskio

import (
	"fmt"

	"ext2fsck/backend"
)

// SectorSize is the fixed physical sector size this tool operates on.
const SectorSize = 512

// ReadSectors reads count sectors starting at absolute sector start from f.
// A short read is treated as fatal, matching the source's "short reads are
// fatal" rule: there is no partial-sector recovery for filesystem metadata.
func ReadSectors(f backend.File, start, count uint64) ([]byte, error) {
	buf := make([]byte, count*SectorSize)
	off := int64(start) * SectorSize
	n, err := f.ReadAt(buf, off)
	if err != nil && n != len(buf) {
		return nil, fmt.Errorf("read sectors %d..%d: %w", start, start+count, err)
	}
	if n != len(buf) {
		return nil, fmt.Errorf("short read at sector %d: got %d of %d bytes", start, n, len(buf))
	}
	return buf, nil
}

// WriteSectors writes src to count sectors starting at absolute sector start.
// len(src) must equal count*SectorSize.
func WriteSectors(f backend.WritableFile, start, count uint64, src []byte) error {
	want := int(count * SectorSize)
	if len(src) != want {
		return fmt.Errorf("write sectors %d..%d: have %d bytes, want %d", start, start+count, len(src), want)
	}
	off := int64(start) * SectorSize
	n, err := f.WriteAt(src, off)
	if err != nil {
		return fmt.Errorf("write sectors %d..%d: %w", start, start+count, err)
	}
	if n != want {
		return fmt.Errorf("short write at sector %d: wrote %d of %d bytes", start, n, want)
	}
	return nil
}

// Device is a sector-addressable window onto an image, rooted at a partition's
// base sector. All reads and writes performed through it are expressed in
// sectors relative to that base, matching the partition parser's contract of
// {base_sector, start_sect}.
type Device struct {
	img        backend.Storage
	baseSector uint64
}

// NewDevice returns a Device whose sector 0 is the image's absolute sector
// baseSector.
func NewDevice(img backend.Storage, baseSector uint64) *Device {
	return &Device{img: img, baseSector: baseSector}
}

// ReadSectors reads count sectors starting at the partition-relative sector start.
func (d *Device) ReadSectors(start, count uint64) ([]byte, error) {
	return ReadSectors(d.img, d.baseSector+start, count)
}

// WriteSectors writes src to count sectors starting at the partition-relative sector start.
func (d *Device) WriteSectors(start, count uint64, src []byte) error {
	w, err := d.img.Writable()
	if err != nil {
		return fmt.Errorf("device not writable: %w", err)
	}
	return WriteSectors(w, d.baseSector+start, count, src)
}
