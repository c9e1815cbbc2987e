package ext2

import (
	"fmt"

	"ext2fsck/diskio"
)

// LostFoundName is the directory this tool reconnects orphaned inodes into.
const LostFoundName = "lost+found"

// RootInode is the fixed inode number of the filesystem root directory.
const RootInode = 2

// FileSystem is a read-mostly in-memory projection of one ext2 partition's
// metadata: the superblock, every group descriptor, and every group's
// bitmaps and inode table. Data blocks belonging to regular files are never
// read; only the metadata this tool's passes need is cached.
//
// Inode, block bitmap and group descriptor changes go through the methods
// below, which update the in-memory copy and mark it dirty;
// FlushDirtyInodeBlocks, WriteBlockBitmaps and FlushGroupDescriptors push
// that dirty state back to dev. WriteBlock, WriteDirectoryBlock,
// AppendDirEntry and RecomputeSuperblockFreeCounts write to dev directly.
type FileSystem struct {
	dev        *diskio.Device
	Superblock *Superblock
	groups     []*Group
	blockSize  uint32
}

// Open reads the superblock and every group descriptor from dev and builds
// a FileSystem over them. The superblock must carry the standard ext2 magic
// number; anything else is reported via ErrMalformed.
func Open(dev *diskio.Device) (*FileSystem, error) {
	sbSectors, err := dev.ReadSectors(superblockByteOffset/diskio.SectorSize, superblockSize/diskio.SectorSize)
	if err != nil {
		return nil, fmt.Errorf("reading superblock: %w", err)
	}
	sb, err := decodeSuperblock(sbSectors)
	if err != nil {
		return nil, err
	}

	fs := &FileSystem{dev: dev, Superblock: sb, blockSize: sb.BlockSize()}

	groupCount := sb.GroupCount()
	gdtBlock := sb.FirstDataBlock + 1
	gdtBytes, err := fs.readBlocks(gdtBlock, blocksFor(uint32(groupCount)*groupDescSize, fs.blockSize))
	if err != nil {
		return nil, fmt.Errorf("reading group descriptor table: %w", err)
	}

	fs.groups = make([]*Group, groupCount)
	for i := 0; i < groupCount; i++ {
		off := i * groupDescSize
		desc := decodeGroupDescriptor(gdtBytes[off : off+groupDescSize])
		g := &Group{Index: i, Desc: desc, dirtyInodeBlocks: map[int]bool{}}

		bb, err := fs.readBlocks(desc.BlockBitmap, 1)
		if err != nil {
			return nil, fmt.Errorf("reading block bitmap for group %d: %w", i, err)
		}
		g.BlockBitmap = bb

		ib, err := fs.readBlocks(desc.InodeBitmap, 1)
		if err != nil {
			return nil, fmt.Errorf("reading inode bitmap for group %d: %w", i, err)
		}
		g.InodeBitmap = ib

		itBlocks := blocksFor(sb.InodesPerGroup*inodeSize, fs.blockSize)
		it, err := fs.readBlocks(desc.InodeTable, itBlocks)
		if err != nil {
			return nil, fmt.Errorf("reading inode table for group %d: %w", i, err)
		}
		g.InodeTable = it

		fs.groups[i] = g
	}
	return fs, nil
}

func blocksFor(bytes, blockSize uint32) uint32 {
	return (bytes + blockSize - 1) / blockSize
}

// BlockSize returns the filesystem's block size in bytes.
func (fs *FileSystem) BlockSize() uint32 { return fs.blockSize }

// Groups returns every block group, in order.
func (fs *FileSystem) Groups() []*Group { return fs.groups }

func (fs *FileSystem) sectorsPerBlock() uint64 {
	return uint64(fs.blockSize) / diskio.SectorSize
}

func (fs *FileSystem) readBlocks(startBlock, count uint32) ([]byte, error) {
	spb := fs.sectorsPerBlock()
	return fs.dev.ReadSectors(uint64(startBlock)*spb, uint64(count)*spb)
}

// ReadBlock returns the contents of filesystem block num.
func (fs *FileSystem) ReadBlock(num uint32) ([]byte, error) {
	if num == 0 {
		return make([]byte, fs.blockSize), nil
	}
	return fs.readBlocks(num, 1)
}

// WriteBlock writes data (exactly one block's worth of bytes) to filesystem
// block num.
func (fs *FileSystem) WriteBlock(num uint32, data []byte) error {
	spb := fs.sectorsPerBlock()
	return fs.dev.WriteSectors(uint64(num)*spb, spb, data)
}

// inodeGroupAndIndex splits a 1-based inode number into its containing group
// and within-group offset; blockGroupAndIndex does the same for a block
// number, counted from FirstDataBlock.
func (fs *FileSystem) inodeGroupAndIndex(inum uint32) (int, int) {
	group := int((inum - 1) / fs.Superblock.InodesPerGroup)
	index := int((inum - 1) % fs.Superblock.InodesPerGroup)
	return group, index
}

func (fs *FileSystem) blockGroupAndIndex(bnum uint32) (int, int) {
	rel := bnum - fs.Superblock.FirstDataBlock
	group := int(rel / fs.Superblock.BlocksPerGroup)
	index := int(rel % fs.Superblock.BlocksPerGroup)
	return group, index
}

// GroupStartBlock returns the first block number a group's own metadata
// (superblock backup + GDT backup + bitmaps + inode table) can occupy.
func (fs *FileSystem) GroupStartBlock(group int) uint32 {
	return fs.Superblock.FirstDataBlock + uint32(group)*fs.Superblock.BlocksPerGroup
}

// GetInode reads and decodes inode number inum (1-based).
func (fs *FileSystem) GetInode(inum uint32) (*Inode, error) {
	if inum == 0 || inum > fs.Superblock.InodesCount {
		return nil, fmt.Errorf("%w: inode number %d out of range", ErrMalformed, inum)
	}
	group, index := fs.inodeGroupAndIndex(inum)
	if group < 0 || group >= len(fs.groups) {
		return nil, fmt.Errorf("%w: inode %d maps to out-of-range group %d", ErrMalformed, inum, group)
	}
	g := fs.groups[group]
	off := index * inodeSize
	if off+inodeSize > len(g.InodeTable) {
		return nil, fmt.Errorf("%w: inode %d offset exceeds inode table", ErrMalformed, inum)
	}
	return decodeInode(inum, g.InodeTable[off:off+inodeSize]), nil
}

// PutInode writes in back into its group's cached inode table and marks
// that table block dirty. Callers must also call FlushDirtyInodeBlocks to
// push the change to dev.
func (fs *FileSystem) PutInode(in *Inode) {
	group, index := fs.inodeGroupAndIndex(in.Number)
	g := fs.groups[group]
	off := index * inodeSize
	in.encode(g.InodeTable[off : off+inodeSize])
	g.dirtyInodeBlocks[off/int(fs.blockSize)] = true
}

// SetInodeLinksCount updates inum's link count in place.
func (fs *FileSystem) SetInodeLinksCount(inum uint32, count uint16) error {
	in, err := fs.GetInode(inum)
	if err != nil {
		return err
	}
	in.LinksCount = count
	fs.PutInode(in)
	return nil
}

// FlushDirtyInodeBlocks writes every modified inode-table block back to dev
// and clears the dirty set.
func (fs *FileSystem) FlushDirtyInodeBlocks() error {
	for _, g := range fs.groups {
		itBlocks := blocksFor(fs.Superblock.InodesPerGroup*inodeSize, fs.blockSize)
		for blk := range g.dirtyInodeBlocks {
			start := g.Desc.InodeTable + uint32(blk)
			if uint32(blk) >= itBlocks {
				continue
			}
			data := g.InodeTable[blk*int(fs.blockSize) : (blk+1)*int(fs.blockSize)]
			if err := fs.WriteBlock(start, data); err != nil {
				return fmt.Errorf("flushing inode table block %d of group %d: %w", blk, g.Index, err)
			}
		}
		g.dirtyInodeBlocks = map[int]bool{}
	}
	return nil
}

// BlockAllocated reports whether bnum is marked allocated in its group's
// block bitmap.
func (fs *FileSystem) BlockAllocated(bnum uint32) bool {
	group, index := fs.blockGroupAndIndex(bnum)
	if group < 0 || group >= len(fs.groups) {
		return false
	}
	return fs.groups[group].blockBitmapBit(index)
}

// InodeAllocated reports whether inum is marked allocated in its group's
// inode bitmap.
func (fs *FileSystem) InodeAllocated(inum uint32) bool {
	group, index := fs.inodeGroupAndIndex(inum)
	if group < 0 || group >= len(fs.groups) {
		return false
	}
	return fs.groups[group].inodeBitmapBit(index)
}

// IsReservedBlock reports whether bnum falls inside any group's own metadata
// region: that group's superblock/GDT backup, block bitmap, inode bitmap, or
// inode table. Every group is assumed to carry a superblock and GDT backup;
// see the design notes for why this is the simplest sound reading available.
func (fs *FileSystem) IsReservedBlock(bnum uint32) bool {
	gdtBlocks := blocksFor(uint32(len(fs.groups))*groupDescSize, fs.blockSize)
	itBlocks := blocksFor(fs.Superblock.InodesPerGroup*inodeSize, fs.blockSize)
	for g := range fs.groups {
		start := fs.GroupStartBlock(g)
		end := start + 1 + gdtBlocks
		if bnum >= start && bnum < end {
			return true
		}
		desc := fs.groups[g].Desc
		if bnum == desc.BlockBitmap || bnum == desc.InodeBitmap {
			return true
		}
		if bnum >= desc.InodeTable && bnum < desc.InodeTable+itBlocks {
			return true
		}
	}
	return false
}

// BlocksOf returns every block number an inode directly or indirectly
// references, in file order, by walking the 12 direct pointers followed by
// the single, double, and triple indirect pointers. Each indirect index block
// is included too, just before the blocks it points to. Sparse holes (a zero
// pointer) are omitted rather than represented as block 0.
func (fs *FileSystem) BlocksOf(in *Inode) ([]uint32, error) {
	var blocks []uint32
	ptrsPerBlock := fs.blockSize / 4

	appendIfSet := func(b uint32) {
		if b != 0 {
			blocks = append(blocks, b)
		}
	}

	for i := 0; i < 12; i++ {
		appendIfSet(in.Block[i])
	}

	var walkIndirect func(block uint32, depth int) error
	walkIndirect = func(block uint32, depth int) error {
		if block == 0 {
			return nil
		}
		blocks = append(blocks, block) // the indirect block itself occupies space too
		data, err := fs.ReadBlock(block)
		if err != nil {
			return fmt.Errorf("reading indirect block %d: %w", block, err)
		}
		for i := uint32(0); i < ptrsPerBlock; i++ {
			ptr := leUint32(data[i*4 : i*4+4])
			if ptr == 0 {
				continue
			}
			if depth == 0 {
				blocks = append(blocks, ptr)
			} else if err := walkIndirect(ptr, depth-1); err != nil {
				return err
			}
		}
		return nil
	}

	if err := walkIndirect(in.Block[12], 0); err != nil {
		return nil, err
	}
	if err := walkIndirect(in.Block[13], 1); err != nil {
		return nil, err
	}
	if err := walkIndirect(in.Block[14], 2); err != nil {
		return nil, err
	}
	return blocks, nil
}

func leUint32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

// ChildDirEntries returns the decoded directory entries of directory inode
// in's first data block. A directory whose entries are not confined to that
// one block is reported via ErrDirectorySpansBlocks: this tool's repairs
// never touch such a directory.
func (fs *FileSystem) ChildDirEntries(in *Inode) ([]DirEntry, error) {
	if !in.IsDir() {
		return nil, fmt.Errorf("inode %d is not a directory", in.Number)
	}
	blocks, err := fs.BlocksOf(in)
	if err != nil {
		return nil, err
	}
	if len(blocks) == 0 {
		return nil, nil
	}
	if len(blocks) > 1 {
		return nil, fmt.Errorf("%w: inode %d", ErrDirectorySpansBlocks, in.Number)
	}
	data, err := fs.ReadBlock(blocks[0])
	if err != nil {
		return nil, err
	}
	return decodeDirBlock(data), nil
}

// ChildInodes returns the inode numbers directory inode in points to,
// excluding "." and "..".
func (fs *FileSystem) ChildInodes(in *Inode) ([]uint32, error) {
	entries, err := fs.ChildDirEntries(in)
	if err != nil {
		return nil, err
	}
	var out []uint32
	for _, e := range entries {
		if e.Name == "." || e.Name == ".." {
			continue
		}
		out = append(out, e.Inode)
	}
	return out, nil
}

// WriteDirectoryBlock rewrites directory inode in's first data block with
// entries, repacked consecutively by layoutDirEntries. Callers may reorder,
// append, or drop entries freely between reading them and calling this.
func (fs *FileSystem) WriteDirectoryBlock(in *Inode, entries []DirEntry) error {
	blocks, err := fs.BlocksOf(in)
	if err != nil {
		return err
	}
	if len(blocks) != 1 {
		return fmt.Errorf("%w: inode %d", ErrDirectorySpansBlocks, in.Number)
	}
	data, err := fs.ReadBlock(blocks[0])
	if err != nil {
		return err
	}
	if err := layoutDirEntries(entries, len(data)); err != nil {
		return fmt.Errorf("inode %d: %w", in.Number, err)
	}
	for i := range entries {
		entries[i].encode(data)
	}
	return fs.WriteBlock(blocks[0], data)
}

// AppendDirEntry adds a new entry named name to directory inode in, then
// rewrites its first data block with the result via WriteDirectoryBlock.
func (fs *FileSystem) AppendDirEntry(in *Inode, name string, inode uint32, fileType byte) error {
	entries, err := fs.ChildDirEntries(in)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return fmt.Errorf("directory inode %d has no entries", in.Number)
	}
	entries = append(entries, DirEntry{Inode: inode, FileType: fileType, Name: name})
	return fs.WriteDirectoryBlock(in, entries)
}

// HasDirEntry reports whether directory inode in already has an entry named name.
func (fs *FileSystem) HasDirEntry(in *Inode, name string) (bool, error) {
	entries, err := fs.ChildDirEntries(in)
	if err != nil {
		return false, err
	}
	for _, e := range entries {
		if e.Name == name {
			return true, nil
		}
	}
	return false, nil
}

// LostFoundInode searches the root directory for an entry named lost+found
// and returns its inode number, or an error if none exists.
func (fs *FileSystem) LostFoundInode() (uint32, error) {
	root, err := fs.GetInode(RootInode)
	if err != nil {
		return 0, err
	}
	entries, err := fs.ChildDirEntries(root)
	if err != nil {
		return 0, err
	}
	for _, e := range entries {
		if e.Name == LostFoundName {
			return e.Inode, nil
		}
	}
	return 0, fmt.Errorf("no %s directory found in root", LostFoundName)
}

// Resolve walks a slash-separated absolute path from the root inode,
// following each directory's child entries, and returns the inode number
// the path names. It is the read-only lookup the -l CLI flag exercises.
func (fs *FileSystem) Resolve(path string) (uint32, error) {
	if path == "" || path == "/" {
		return RootInode, nil
	}
	if path[0] != '/' {
		return 0, fmt.Errorf("path must be absolute: %s", path)
	}
	parts := splitPath(path)
	cur := uint32(RootInode)
	for _, name := range parts {
		in, err := fs.GetInode(cur)
		if err != nil {
			return 0, err
		}
		entries, err := fs.ChildDirEntries(in)
		if err != nil {
			return 0, err
		}
		found := false
		for _, e := range entries {
			if e.Name == name {
				cur = e.Inode
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("no such path component %q in %s", name, path)
		}
	}
	return cur, nil
}

func splitPath(path string) []string {
	var parts []string
	start := 0
	for i := 0; i <= len(path); i++ {
		if i == len(path) || path[i] == '/' {
			if i > start {
				parts = append(parts, path[start:i])
			}
			start = i + 1
		}
	}
	return parts
}

// WriteBlockBitmaps flushes every group's in-memory block bitmap to dev.
// Callers mark a group dirty by calling SetBlockBit before invoking this.
func (fs *FileSystem) WriteBlockBitmaps() error {
	for _, g := range fs.groups {
		if !g.bitmapDirty {
			continue
		}
		if err := fs.WriteBlock(g.Desc.BlockBitmap, g.BlockBitmap); err != nil {
			return fmt.Errorf("writing block bitmap for group %d: %w", g.Index, err)
		}
		g.bitmapDirty = false
	}
	return nil
}

// SetBlockBit sets or clears bnum's bit in its group's in-memory block
// bitmap and marks that group's bitmap dirty.
func (fs *FileSystem) SetBlockBit(bnum uint32, allocated bool) {
	group, index := fs.blockGroupAndIndex(bnum)
	if group < 0 || group >= len(fs.groups) {
		return
	}
	g := fs.groups[group]
	byteIdx, bit := index/8, uint(index%8)
	if allocated {
		g.BlockBitmap[byteIdx] |= 1 << bit
	} else {
		g.BlockBitmap[byteIdx] &^= 1 << bit
	}
	g.bitmapDirty = true
}

// FlushGroupDescriptors writes every group descriptor marked dirty back to
// its slot in the on-disk group descriptor table.
func (fs *FileSystem) FlushGroupDescriptors() error {
	gdtBlock := fs.Superblock.FirstDataBlock + 1
	gdtBlocks := blocksFor(uint32(len(fs.groups))*groupDescSize, fs.blockSize)
	buf, err := fs.readBlocks(gdtBlock, gdtBlocks)
	if err != nil {
		return fmt.Errorf("reading group descriptor table: %w", err)
	}
	dirty := false
	for _, g := range fs.groups {
		if !g.descDirty {
			continue
		}
		off := g.Index * groupDescSize
		g.Desc.encode(buf[off : off+groupDescSize])
		g.descDirty = false
		dirty = true
	}
	if !dirty {
		return nil
	}
	spb := fs.sectorsPerBlock()
	return fs.dev.WriteSectors(uint64(gdtBlock)*spb, uint64(gdtBlocks)*spb, buf)
}

// RecomputeGroupFreeCounts recounts group g's free blocks and free inodes
// from its bitmaps and stores the result in its descriptor, marking it
// dirty if it changed. It returns whether a correction was made.
func (fs *FileSystem) RecomputeGroupFreeCounts(g *Group) (blocksChanged, inodesChanged bool) {
	freeBlocks := uint16(0)
	for i := 0; i < int(fs.Superblock.BlocksPerGroup); i++ {
		if !g.blockBitmapBit(i) {
			freeBlocks++
		}
	}
	freeInodes := uint16(0)
	for i := 0; i < int(fs.Superblock.InodesPerGroup); i++ {
		if !g.inodeBitmapBit(i) {
			freeInodes++
		}
	}
	if g.Desc.FreeBlocksCount != freeBlocks {
		g.Desc.FreeBlocksCount = freeBlocks
		g.descDirty = true
		blocksChanged = true
	}
	if g.Desc.FreeInodesCount != freeInodes {
		g.Desc.FreeInodesCount = freeInodes
		g.descDirty = true
		inodesChanged = true
	}
	return blocksChanged, inodesChanged
}

// RecomputeSuperblockFreeCounts sums every group's free block/inode counts
// into the superblock's totals, writing the superblock back to dev if
// either total changed. This is the supplemental pass run after group
// descriptor free counts have been reconciled.
func (fs *FileSystem) RecomputeSuperblockFreeCounts() (bool, error) {
	var totalBlocks, totalInodes uint32
	for _, g := range fs.groups {
		totalBlocks += uint32(g.Desc.FreeBlocksCount)
		totalInodes += uint32(g.Desc.FreeInodesCount)
	}
	changed := false
	if fs.Superblock.FreeBlocksCount != totalBlocks {
		fs.Superblock.FreeBlocksCount = totalBlocks
		changed = true
	}
	if fs.Superblock.FreeInodesCount != totalInodes {
		fs.Superblock.FreeInodesCount = totalInodes
		changed = true
	}
	if !changed {
		return false, nil
	}
	spb := uint64(superblockSize / diskio.SectorSize)
	buf, err := fs.dev.ReadSectors(superblockByteOffset/diskio.SectorSize, spb)
	if err != nil {
		return false, fmt.Errorf("reading superblock: %w", err)
	}
	fs.Superblock.encode(buf)
	if err := fs.dev.WriteSectors(superblockByteOffset/diskio.SectorSize, spb, buf); err != nil {
		return false, fmt.Errorf("writing superblock: %w", err)
	}
	return true, nil
}
