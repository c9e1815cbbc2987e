package ext2

import (
	"encoding/binary"
	"fmt"
)

// dirEntryHeaderSize is the fixed portion of an on-disk directory entry:
// inode(4) + rec_len(2) + name_len(1) + file_type(1), followed by the name.
const dirEntryHeaderSize = 8

// DirEntry is a decoded directory entry, plus the byte offset within its
// containing block where it starts. Offset/RecLen are whatever decodeDirBlock
// last read them as; WriteDirectoryBlock recomputes both from scratch via
// layoutDirEntries before encoding, so callers may freely reorder, insert, or
// drop entries between reading and writing.
type DirEntry struct {
	Inode    uint32
	RecLen   uint16
	FileType byte
	Name     string
	Offset   int // byte offset of this entry within its block
}

// decodeDirBlock decodes every directory entry in a single block, stopping
// at the first of: offset running off the end of the block, a zero
// rec_len, or a zero inode number. A zero inode marks a deleted entry
// whose slot has not been reused; this tool treats it the same as the
// block's end, matching the reference checker's traversal.
func decodeDirBlock(block []byte) []DirEntry {
	var entries []DirEntry
	offset := 0
	for offset+dirEntryHeaderSize <= len(block) {
		recLen := binary.LittleEndian.Uint16(block[offset+4 : offset+6])
		if recLen == 0 {
			break
		}
		inode := binary.LittleEndian.Uint32(block[offset : offset+4])
		if inode == 0 {
			break
		}
		nameLen := int(block[offset+6])
		fileType := block[offset+7]
		nameEnd := offset + dirEntryHeaderSize + nameLen
		if nameEnd > len(block) {
			break
		}
		name := string(block[offset+dirEntryHeaderSize : nameEnd])
		entries = append(entries, DirEntry{
			Inode:    inode,
			RecLen:   recLen,
			FileType: fileType,
			Name:     name,
			Offset:   offset,
		})
		offset += int(recLen)
	}
	return entries
}

// encode writes e into block at e.Offset using e.RecLen as the record's
// physical span. Callers lay out Offset/RecLen first (see layoutDirEntries).
func (e *DirEntry) encode(block []byte) {
	binary.LittleEndian.PutUint32(block[e.Offset:e.Offset+4], e.Inode)
	binary.LittleEndian.PutUint16(block[e.Offset+4:e.Offset+6], e.RecLen)
	block[e.Offset+6] = byte(len(e.Name))
	block[e.Offset+7] = e.FileType
	copy(block[e.Offset+dirEntryHeaderSize:], e.Name)
}

// direntRecLen rounds a name's encoded entry size up to a 4-byte boundary,
// the allocation granularity directory entries use on disk.
func direntRecLen(nameLen int) uint16 {
	size := dirEntryHeaderSize + nameLen
	return uint16((size + 3) &^ 3)
}

// layoutDirEntries lays entries out consecutively starting at offset 0, each
// taking direntRecLen(len(name)) bytes, and expands the last entry's rec_len
// to cover the rest of the block. This is how the engine always rewrites a
// directory's first data block, so repairs that reorder or insert entries
// (pushing a misplaced "." or ".." back as a regular entry, adopting an
// orphan) never need to reason about stale offsets from a prior read.
func layoutDirEntries(entries []DirEntry, blockSize int) error {
	if len(entries) == 0 {
		return nil
	}
	offset := 0
	for i := range entries {
		entries[i].Offset = offset
		entries[i].RecLen = direntRecLen(len(entries[i].Name))
		offset += int(entries[i].RecLen)
	}
	if offset > blockSize {
		return fmt.Errorf("%w: entries require %d bytes, block is %d", ErrDirectorySpansBlocks, offset, blockSize)
	}
	last := &entries[len(entries)-1]
	last.RecLen = uint16(blockSize - last.Offset)
	return nil
}
