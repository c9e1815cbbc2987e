// Package image opens a raw disk image file and exposes its partitions.
// It is the driver's view of the "Image" entity from the data model: a file
// of sector-addressable 512-byte units, addressed by absolute sector number.
package image

import (
	"fmt"

	"ext2fsck/backend"
	"ext2fsck/backend/file"
	"ext2fsck/diskio"
	"ext2fsck/partition/mbr"
)

// MaxPathLength is the longest image path the CLI will accept.
const MaxPathLength = 255

// Image is an open disk image file, read-write, addressed in 512-byte sectors.
type Image struct {
	path    string
	storage backend.Storage
}

// Open opens path read-write. The image file must already exist; this tool
// never creates filesystems or images (see spec Non-goals).
func Open(path string) (*Image, error) {
	if len(path) == 0 {
		return nil, fmt.Errorf("no image path given")
	}
	if len(path) > MaxPathLength {
		return nil, fmt.Errorf("image path exceeds %d characters", MaxPathLength)
	}
	storage, err := file.OpenFromPath(path, false)
	if err != nil {
		return nil, fmt.Errorf("could not open image %s: %w", path, err)
	}
	if err := checkSectorSize(storage); err != nil {
		storage.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &Image{path: path, storage: storage}, nil
}

// Close releases the underlying file handle.
func (img *Image) Close() error {
	return img.storage.Close()
}

// Partition locates partition index (1-based) by walking the MBR and, for
// index >= 5, the extended partition chain.
func (img *Image) Partition(index int) (*mbr.Partition, error) {
	return mbr.Locate(img.storage, index)
}

// Partitions probes 1, 2, ... and returns every partition the image describes.
func (img *Image) Partitions() ([]*mbr.Partition, error) {
	return mbr.Enumerate(img.storage)
}

// Device returns a sector-addressable view of the image windowed to p: a
// backend.SubStorage scoped to the partition's byte range, with a diskio.Device
// on top translating partition-relative sector numbers against it.
func (img *Image) Device(p *mbr.Partition) *diskio.Device {
	offset := int64(p.AbsoluteStart()) * diskio.SectorSize
	size := int64(p.SectorCount) * diskio.SectorSize
	sub := backend.Sub(img.storage, offset, size)
	return diskio.NewDevice(sub, 0)
}
