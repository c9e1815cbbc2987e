package testhelper

import (
	"encoding/binary"

	"ext2fsck/diskio"
)

// Ext2Fixture is a small, single-group ext2 image built by hand (not
// through the ext2 package itself, so a fixture bug and a decoder bug don't
// cancel each other out) for exercising the filesystem model and the check
// passes. It starts with a root directory containing one subdirectory,
// lost+found, both well-formed; tests corrupt specific fields from there.
type Ext2Fixture struct {
	BlockSize      uint32
	FirstDataBlock uint32
	BlocksPerGroup uint32
	InodesPerGroup uint32
	BlocksCount    uint32
	InodesCount    uint32

	RootInode       uint32
	LostFoundInode  uint32
	RootBlock       uint32
	LostFoundBlock  uint32

	Storage *MemStorage
}

const (
	fixtureBlockSize  = 1024
	fixtureBlocks     = 20
	fixtureInodeSize  = 128
	fixtureInodeCount = 16
)

// NewExt2Fixture builds a minimal, single-group ext2 image:
//
//	block 0: boot block (unused)
//	block 1: superblock
//	block 2: group descriptor table
//	block 3: block bitmap
//	block 4: inode bitmap
//	block 5-6: inode table (16 inodes * 128 bytes = 2 blocks)
//	block 7: root directory data
//	block 8: lost+found directory data
//
// Root (inode 2) contains "." -> 2, ".." -> 2, "lost+found" -> 11.
// lost+found (inode 11) contains "." -> 11, ".." -> 2.
func NewExt2Fixture() *Ext2Fixture {
	fx := &Ext2Fixture{
		BlockSize:      fixtureBlockSize,
		FirstDataBlock: 1,
		BlocksPerGroup: fixtureBlocks, // one group covers the whole image
		InodesPerGroup: fixtureInodeCount,
		BlocksCount:    fixtureBlocks,
		InodesCount:    fixtureInodeCount,
		RootInode:      2,
		LostFoundInode: 11,
		RootBlock:      7,
		LostFoundBlock: 8,
		Storage:        NewMemStorage(fixtureBlocks * fixtureBlockSize),
	}

	fx.writeSuperblock()
	fx.writeGroupDescriptor()
	fx.markBlocksAllocated([]uint32{1, 2, 3, 4, 5, 6, 7, 8})
	fx.markInodesAllocated([]uint32{fx.RootInode, fx.LostFoundInode})

	fx.writeInode(fx.RootInode, dirMode, 3, fx.RootBlock)
	fx.writeInode(fx.LostFoundInode, dirMode, 2, fx.LostFoundBlock)

	fx.writeDirBlock(fx.RootBlock, []fixtureDirEntry{
		{inode: fx.RootInode, name: ".", fileType: 2},
		{inode: fx.RootInode, name: "..", fileType: 2},
		{inode: fx.LostFoundInode, name: "lost+found", fileType: 2},
	})
	fx.writeDirBlock(fx.LostFoundBlock, []fixtureDirEntry{
		{inode: fx.LostFoundInode, name: ".", fileType: 2},
		{inode: fx.RootInode, name: "..", fileType: 2},
	})

	return fx
}

const dirMode = 0x4000 | 0o755

func (fx *Ext2Fixture) block(num uint32) []byte {
	start := int(num) * int(fx.BlockSize)
	return fx.Storage.Data[start : start+int(fx.BlockSize)]
}

func (fx *Ext2Fixture) writeSuperblock() {
	b := fx.Storage.Data[1024:2048]
	binary.LittleEndian.PutUint32(b[0:4], fx.InodesCount)
	binary.LittleEndian.PutUint32(b[4:8], fx.BlocksCount)
	binary.LittleEndian.PutUint32(b[20:24], fx.FirstDataBlock)
	binary.LittleEndian.PutUint32(b[24:28], 0) // log block size => 1024 bytes
	binary.LittleEndian.PutUint32(b[32:36], fx.BlocksPerGroup)
	binary.LittleEndian.PutUint32(b[40:44], fx.InodesPerGroup)
	binary.LittleEndian.PutUint16(b[56:58], 0xEF53)
}

func (fx *Ext2Fixture) writeGroupDescriptor() {
	b := fx.block(2)
	binary.LittleEndian.PutUint32(b[0:4], 3)  // block bitmap
	binary.LittleEndian.PutUint32(b[4:8], 4)  // inode bitmap
	binary.LittleEndian.PutUint32(b[8:12], 5) // inode table
}

func (fx *Ext2Fixture) markBlocksAllocated(blocks []uint32) {
	bitmap := fx.block(3)
	for _, b := range blocks {
		rel := b - fx.FirstDataBlock
		bitmap[rel/8] |= 1 << (rel % 8)
	}
}

func (fx *Ext2Fixture) markInodesAllocated(inodes []uint32) {
	bitmap := fx.block(4)
	for _, i := range inodes {
		rel := i - 1
		bitmap[rel/8] |= 1 << (rel % 8)
	}
}

func (fx *Ext2Fixture) writeInode(inum uint32, mode uint16, linksCount uint16, block0 uint32) {
	itStart := int(5) * int(fx.BlockSize)
	off := itStart + int(inum-1)*fixtureInodeSize
	b := fx.Storage.Data[off : off+fixtureInodeSize]
	binary.LittleEndian.PutUint16(b[0:2], mode)
	binary.LittleEndian.PutUint16(b[26:28], linksCount)
	binary.LittleEndian.PutUint32(b[40:44], block0) // i_block[0]
}

type fixtureDirEntry struct {
	inode    uint32
	name     string
	fileType byte
}

func (fx *Ext2Fixture) writeDirBlock(blockNum uint32, entries []fixtureDirEntry) {
	b := fx.block(blockNum)
	offset := 0
	for i, e := range entries {
		recLen := (8 + len(e.name) + 3) &^ 3
		if i == len(entries)-1 {
			recLen = len(b) - offset // last entry consumes the rest of the block
		}
		binary.LittleEndian.PutUint32(b[offset:offset+4], e.inode)
		binary.LittleEndian.PutUint16(b[offset+4:offset+6], uint16(recLen))
		b[offset+6] = byte(len(e.name))
		b[offset+7] = e.fileType
		copy(b[offset+8:], e.name)
		offset += recLen
	}
}

// Device returns a diskio.Device over the fixture's storage, rooted at
// sector 0, as if the fixture were an already-located partition.
func (fx *Ext2Fixture) Device() *diskio.Device {
	return diskio.NewDevice(fx.Storage, 0)
}

// AddInode allocates inode inum (marking it used in the inode bitmap) and
// writes it with the given mode, link count, and first direct block
// pointer, without adding any directory entry for it. Tests use this to
// set up orphaned inodes that pass 2 must reconnect.
func (fx *Ext2Fixture) AddInode(inum uint32, mode uint16, linksCount uint16, block0 uint32) {
	fx.markInodesAllocated([]uint32{inum})
	fx.writeInode(inum, mode, linksCount, block0)
}

// RegularFileMode and DirMode are the inode mode values NewExt2Fixture and
// AddInode use for plain files and directories.
const (
	RegularFileMode = 0x8000 | 0o644
	DirMode         = dirMode
)
