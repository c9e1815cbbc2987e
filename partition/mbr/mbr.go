// Package mbr locates partitions described by a DOS/MBR partition table,
// including logical partitions reached by walking the extended partition
// chain. It only reads the table; this tool never creates or rewrites one.
package mbr

import (
	"encoding/binary"
	"errors"
	"fmt"

	"ext2fsck/backend"
)

// ErrNoSuchPartition is returned when the requested 1-based partition index
// does not exist, either because it is out of the primary table's range or
// because the extended partition chain ends before reaching it.
var ErrNoSuchPartition = errors.New("no such partition")

// SysIndExt2 is the partition type byte used by second-extended-filesystem partitions.
const SysIndExt2 = 0x83

const (
	sysIndExtendedCHS = 0x05
	sysIndExtendedLBA = 0x0F
	partitionTableOff = 0x1BE
	entrySize         = 16
)

// Partition is one entry resolved from the MBR or an extended boot record.
type Partition struct {
	Index       int    // 1-based index, as requested
	SysInd      byte   // partition type byte
	StartSect   uint32 // start sector relative to BaseSector
	SectorCount uint32
	BaseSector  uint32 // absolute sector that StartSect is relative to
}

// IsExt2 reports whether this partition is marked as a second-extended-filesystem partition.
func (p *Partition) IsExt2() bool {
	return p.SysInd == SysIndExt2
}

// AbsoluteStart returns the partition's first sector as an absolute sector number on the image.
func (p *Partition) AbsoluteStart() uint32 {
	return p.BaseSector + p.StartSect
}

type rawEntry struct {
	sysInd      byte
	startSect   uint32
	sectorCount uint32
}

func parseEntry(b []byte) rawEntry {
	return rawEntry{
		sysInd:      b[4],
		startSect:   binary.LittleEndian.Uint32(b[8:12]),
		sectorCount: binary.LittleEndian.Uint32(b[12:16]),
	}
}

func readEntries(f backend.File, sector uint64) ([4]rawEntry, error) {
	var entries [4]rawEntry
	buf, err := readSector(f, sector)
	if err != nil {
		return entries, err
	}
	for i := 0; i < 4; i++ {
		off := partitionTableOff + i*entrySize
		entries[i] = parseEntry(buf[off : off+entrySize])
	}
	return entries, nil
}

func readSector(f backend.File, sector uint64) ([]byte, error) {
	buf := make([]byte, 512)
	n, err := f.ReadAt(buf, int64(sector)*512)
	if err != nil && n != len(buf) {
		return nil, fmt.Errorf("error reading MBR from file: %w", err)
	}
	if n != len(buf) {
		return nil, fmt.Errorf("read only %d bytes of MBR", n)
	}
	return buf, nil
}

// Locate resolves partition index (1-based) against the MBR at sector 0 of f.
//
// Indices 1..4 are the primary table entries, with BaseSector always 0.
// Indices 5.. walk the extended partition chain: the MBR's extended entry
// (sys_ind 0x05 or 0x0F) gives the chain's base sector; each extended boot
// record (EBR) holds one logical partition in its first entry and, in its
// second entry, a pointer to the next EBR relative to that same base.
func Locate(f backend.File, index int) (*Partition, error) {
	if index < 1 {
		return nil, ErrNoSuchPartition
	}
	primary, err := readEntries(f, 0)
	if err != nil {
		return nil, err
	}
	if index <= 4 {
		e := primary[index-1]
		if e.sysInd == 0 {
			return nil, ErrNoSuchPartition
		}
		return &Partition{
			Index:       index,
			SysInd:      e.sysInd,
			StartSect:   e.startSect,
			SectorCount: e.sectorCount,
			BaseSector:  0,
		}, nil
	}

	var extendedBase uint32
	found := false
	for _, e := range primary {
		if e.sysInd == sysIndExtendedCHS || e.sysInd == sysIndExtendedLBA {
			extendedBase = e.startSect
			found = true
			break
		}
	}
	if !found {
		return nil, ErrNoSuchPartition
	}

	hops := index - 5
	var ebrOffset uint32
	for i := 0; i < hops; i++ {
		entries, err := readEntries(f, uint64(extendedBase+ebrOffset))
		if err != nil {
			return nil, err
		}
		next := entries[1]
		if next.startSect == 0 {
			return nil, ErrNoSuchPartition
		}
		ebrOffset = next.startSect
	}

	entries, err := readEntries(f, uint64(extendedBase+ebrOffset))
	if err != nil {
		return nil, err
	}
	data := entries[0]
	if data.sysInd == 0 {
		return nil, ErrNoSuchPartition
	}
	return &Partition{
		Index:       index,
		SysInd:      data.sysInd,
		StartSect:   data.startSect,
		SectorCount: data.sectorCount,
		BaseSector:  extendedBase + ebrOffset,
	}, nil
}

// Enumerate probes indices 1, 2, ... and returns every partition up to (but
// not including) the first missing index.
func Enumerate(f backend.File) ([]*Partition, error) {
	var out []*Partition
	for i := 1; ; i++ {
		p, err := Locate(f, i)
		if err != nil {
			if errors.Is(err, ErrNoSuchPartition) {
				return out, nil
			}
			return out, err
		}
		out = append(out, p)
	}
}
