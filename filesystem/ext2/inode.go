package ext2

import "encoding/binary"

// inodeSize is the fixed on-disk size of an ext2 inode record.
const inodeSize = 128

// fileType masks the top bits of Inode.Mode, matching the i_mode file-type
// bits the Linux kernel defines for ext2 (S_IFxxx).
type fileType uint16

const (
	fileTypeFIFO       fileType = 0x1000
	fileTypeCharDevice fileType = 0x2000
	fileTypeDirectory  fileType = 0x4000
	fileTypeBlockDevice fileType = 0x6000
	fileTypeRegular    fileType = 0x8000
	fileTypeSymlink    fileType = 0xA000
	fileTypeSocket     fileType = 0xC000
	fileTypeMask       fileType = 0xF000
)

// directory entry file_type byte values (EXT2_FT_*), independent of the
// inode mode bits above.
const (
	DirEntryTypeUnknown byte = 0
	DirEntryTypeRegular byte = 1
	DirEntryTypeDir     byte = 2
	DirEntryTypeChar    byte = 3
	DirEntryTypeBlock   byte = 4
	DirEntryTypeFIFO    byte = 5
	DirEntryTypeSocket  byte = 6
	DirEntryTypeSymlink byte = 7
)

// Inode is the decoded subset of the 128-byte on-disk inode record this tool
// needs: file-type/permission bits, link count, size, and the 15-entry block
// pointer array (12 direct, single/double/triple indirect).
type Inode struct {
	Number     uint32
	Mode       uint16
	LinksCount uint16
	Blocks     uint32 // 512-byte sectors, not filesystem blocks
	Size       uint32
	Block      [15]uint32
}

func decodeInode(number uint32, b []byte) *Inode {
	in := &Inode{
		Number:     number,
		Mode:       binary.LittleEndian.Uint16(b[0:2]),
		Size:       binary.LittleEndian.Uint32(b[4:8]),
		LinksCount: binary.LittleEndian.Uint16(b[26:28]),
		Blocks:     binary.LittleEndian.Uint32(b[28:32]),
	}
	for i := 0; i < 15; i++ {
		off := 40 + i*4
		in.Block[i] = binary.LittleEndian.Uint32(b[off : off+4])
	}
	return in
}

func (in *Inode) encode(b []byte) {
	binary.LittleEndian.PutUint16(b[0:2], in.Mode)
	binary.LittleEndian.PutUint32(b[4:8], in.Size)
	binary.LittleEndian.PutUint16(b[26:28], in.LinksCount)
	binary.LittleEndian.PutUint32(b[28:32], in.Blocks)
	for i := 0; i < 15; i++ {
		off := 40 + i*4
		binary.LittleEndian.PutUint32(b[off:off+4], in.Block[i])
	}
}

func (in *Inode) fileType() fileType {
	return fileType(in.Mode) & fileTypeMask
}

// IsDir reports whether the inode is a directory.
func (in *Inode) IsDir() bool { return in.fileType() == fileTypeDirectory }

// IsSymlink reports whether the inode is a symbolic link.
func (in *Inode) IsSymlink() bool { return in.fileType() == fileTypeSymlink }

// IsLive reports whether the inode is in use: a zero mode means the slot is free.
func (in *Inode) IsLive() bool { return in.Mode != 0 }

// DirEntryFileType derives a directory-entry file_type byte from an inode's
// mode, testing file-type bits in the order the repair engine's orphan
// adoption into lost+found uses: socket, symlink, regular, block device,
// directory, character device, FIFO, else unknown.
func DirEntryFileType(mode uint16) byte {
	switch fileType(mode) & fileTypeMask {
	case fileTypeSocket:
		return DirEntryTypeSocket
	case fileTypeSymlink:
		return DirEntryTypeSymlink
	case fileTypeRegular:
		return DirEntryTypeRegular
	case fileTypeBlockDevice:
		return DirEntryTypeBlock
	case fileTypeDirectory:
		return DirEntryTypeDir
	case fileTypeCharDevice:
		return DirEntryTypeChar
	case fileTypeFIFO:
		return DirEntryTypeFIFO
	default:
		return DirEntryTypeUnknown
	}
}
