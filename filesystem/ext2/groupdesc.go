package ext2

import "encoding/binary"

// groupDescSize is the on-disk size of one group descriptor entry.
const groupDescSize = 32

// GroupDescriptor is one block group's metadata as recorded in the group
// descriptor table that immediately follows the superblock's block.
type GroupDescriptor struct {
	BlockBitmap     uint32
	InodeBitmap     uint32
	InodeTable      uint32
	FreeBlocksCount uint16
	FreeInodesCount uint16
	UsedDirsCount   uint16
}

func decodeGroupDescriptor(b []byte) GroupDescriptor {
	return GroupDescriptor{
		BlockBitmap:     binary.LittleEndian.Uint32(b[0:4]),
		InodeBitmap:     binary.LittleEndian.Uint32(b[4:8]),
		InodeTable:      binary.LittleEndian.Uint32(b[8:12]),
		FreeBlocksCount: binary.LittleEndian.Uint16(b[12:14]),
		FreeInodesCount: binary.LittleEndian.Uint16(b[14:16]),
		UsedDirsCount:   binary.LittleEndian.Uint16(b[16:18]),
	}
}

func (gd *GroupDescriptor) encode(b []byte) {
	binary.LittleEndian.PutUint32(b[0:4], gd.BlockBitmap)
	binary.LittleEndian.PutUint32(b[4:8], gd.InodeBitmap)
	binary.LittleEndian.PutUint32(b[8:12], gd.InodeTable)
	binary.LittleEndian.PutUint16(b[12:14], gd.FreeBlocksCount)
	binary.LittleEndian.PutUint16(b[14:16], gd.FreeInodesCount)
	binary.LittleEndian.PutUint16(b[16:18], gd.UsedDirsCount)
}

// Group is the in-memory projection of one block group: its descriptor plus
// cached copies of its bitmaps and inode table. Bitmaps and the inode table
// are mutated only through the filesystem model's write-through methods;
// direct field writes here do not reach disk.
type Group struct {
	Index       int
	Desc        GroupDescriptor
	descDirty   bool
	BlockBitmap []byte // blockSize bytes, bit k set iff block k of this group is allocated
	InodeBitmap []byte // blockSize bytes, bit k set iff inode k+1 of this group is allocated
	InodeTable  []byte // inodesPerGroup * inodeSize bytes
	dirtyInodeBlocks map[int]bool // block-relative index within InodeTable
	bitmapDirty      bool
}

func (g *Group) blockBitmapBit(offset int) bool {
	return g.BlockBitmap[offset/8]&(1<<uint(offset%8)) != 0
}

func (g *Group) inodeBitmapBit(offset int) bool {
	return g.InodeBitmap[offset/8]&(1<<uint(offset%8)) != 0
}
