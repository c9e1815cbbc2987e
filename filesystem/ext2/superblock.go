package ext2

import (
	"encoding/binary"
	"fmt"
)

// superblockMagic is the fixed ext2 superblock magic number.
const superblockMagic = 0xEF53

// superblockSize is the on-disk size of the ext2 superblock. Only the leading
// fields decoded below are used; the rest (compat feature flags, volume
// label, journal fields, ...) is not load-bearing for the passes this tool
// runs.
const superblockSize = 1024

// superblockByteOffset is the superblock's fixed byte offset within a partition.
const superblockByteOffset = 1024

// Superblock is the decoded subset of the ext2 superblock this tool needs.
type Superblock struct {
	InodesCount         uint32
	BlocksCount         uint32
	ReservedBlocksCount uint32
	FreeBlocksCount     uint32
	FreeInodesCount     uint32
	FirstDataBlock      uint32
	LogBlockSize        uint32
	BlocksPerGroup       uint32
	InodesPerGroup       uint32
	Magic               uint16
}

// BlockSize returns the partition's block size in bytes: 1024 << LogBlockSize.
func (sb *Superblock) BlockSize() uint32 {
	return 1024 << sb.LogBlockSize
}

// GroupCount returns the number of block groups: ceil(BlocksCount / BlocksPerGroup).
func (sb *Superblock) GroupCount() int {
	if sb.BlocksPerGroup == 0 {
		return 0
	}
	return int((sb.BlocksCount + sb.BlocksPerGroup - 1) / sb.BlocksPerGroup)
}

func decodeSuperblock(b []byte) (*Superblock, error) {
	if len(b) < 84 {
		return nil, fmt.Errorf("superblock buffer too short: %d bytes", len(b))
	}
	sb := &Superblock{
		InodesCount:         binary.LittleEndian.Uint32(b[0:4]),
		BlocksCount:         binary.LittleEndian.Uint32(b[4:8]),
		ReservedBlocksCount: binary.LittleEndian.Uint32(b[8:12]),
		FreeBlocksCount:     binary.LittleEndian.Uint32(b[12:16]),
		FreeInodesCount:     binary.LittleEndian.Uint32(b[16:20]),
		FirstDataBlock:      binary.LittleEndian.Uint32(b[20:24]),
		LogBlockSize:        binary.LittleEndian.Uint32(b[24:28]),
		BlocksPerGroup:      binary.LittleEndian.Uint32(b[32:36]),
		InodesPerGroup:      binary.LittleEndian.Uint32(b[40:44]),
		Magic:               binary.LittleEndian.Uint16(b[56:58]),
	}
	if sb.Magic != superblockMagic {
		return nil, fmt.Errorf("%w: got 0x%X, want 0x%X", ErrMalformed, sb.Magic, superblockMagic)
	}
	return sb, nil
}

func (sb *Superblock) encode(b []byte) {
	binary.LittleEndian.PutUint32(b[0:4], sb.InodesCount)
	binary.LittleEndian.PutUint32(b[4:8], sb.BlocksCount)
	binary.LittleEndian.PutUint32(b[8:12], sb.ReservedBlocksCount)
	binary.LittleEndian.PutUint32(b[12:16], sb.FreeBlocksCount)
	binary.LittleEndian.PutUint32(b[16:20], sb.FreeInodesCount)
	binary.LittleEndian.PutUint32(b[20:24], sb.FirstDataBlock)
	binary.LittleEndian.PutUint32(b[24:28], sb.LogBlockSize)
	binary.LittleEndian.PutUint32(b[32:36], sb.BlocksPerGroup)
	binary.LittleEndian.PutUint32(b[40:44], sb.InodesPerGroup)
	binary.LittleEndian.PutUint16(b[56:58], sb.Magic)
}
