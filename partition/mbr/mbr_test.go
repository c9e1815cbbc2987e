package mbr_test

import (
	"encoding/binary"
	"errors"
	iofs "io/fs"
	"testing"

	"ext2fsck/partition/mbr"
)

// fakeFile is a minimal backend.File over an in-memory byte slice, in the
// style of go-diskfs's testhelper.FileImpl fakes.
type fakeFile struct {
	data []byte
}

func (f *fakeFile) ReadAt(p []byte, off int64) (int, error) {
	n := copy(p, f.data[off:])
	return n, nil
}
func (f *fakeFile) Read(p []byte) (int, error)                   { return 0, nil }
func (f *fakeFile) Close() error                                 { return nil }
func (f *fakeFile) Seek(offset int64, whence int) (int64, error) { return 0, nil }
func (f *fakeFile) Stat() (iofs.FileInfo, error)                 { return nil, nil }

func putEntry(buf []byte, idx int, sysInd byte, start, count uint32) {
	off := 0x1BE + idx*16
	buf[off+4] = sysInd
	binary.LittleEndian.PutUint32(buf[off+8:], start)
	binary.LittleEndian.PutUint32(buf[off+12:], count)
}

func newDisk(extraSectors int) *fakeFile {
	return &fakeFile{data: make([]byte, 512*(2+extraSectors))}
}

func TestLocatePrimary(t *testing.T) {
	f := newDisk(0)
	putEntry(f.data, 0, mbr.SysIndExt2, 63, 1048257)
	p, err := mbr.Locate(f, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.SysInd != 0x83 || p.StartSect != 63 || p.SectorCount != 1048257 || p.BaseSector != 0 {
		t.Errorf("unexpected partition: %+v", p)
	}
	if !p.IsExt2() {
		t.Errorf("expected ext2 partition")
	}
	if p.AbsoluteStart() != 63 {
		t.Errorf("expected absolute start 63, got %d", p.AbsoluteStart())
	}
}

func TestLocateOutOfRangePrimary(t *testing.T) {
	f := newDisk(0)
	putEntry(f.data, 0, mbr.SysIndExt2, 63, 1000)
	if _, err := mbr.Locate(f, 2); !errors.Is(err, mbr.ErrNoSuchPartition) {
		t.Errorf("expected ErrNoSuchPartition, got %v", err)
	}
}

func TestLocateLogical(t *testing.T) {
	// primary entry 4 is the extended partition, base sector 1000.
	f := newDisk(4000)
	putEntry(f.data, 3, 0x05, 1000, 3000)

	// first EBR at sector 1000: data entry is the first logical partition,
	// pointer entry chains to the next EBR 2000 sectors further in.
	ebr1 := make([]byte, 512)
	putEntry(ebr1, 0, mbr.SysIndExt2, 2, 500)
	putEntry(ebr1, 1, 0x05, 2000, 1000)
	copy(f.data[1000*512:], ebr1)

	// second EBR at sector 1000+2000=3000: data entry is the second logical partition.
	ebr2 := make([]byte, 512)
	putEntry(ebr2, 0, mbr.SysIndExt2, 2, 700)
	copy(f.data[3000*512:], ebr2)

	p5, err := mbr.Locate(f, 5)
	if err != nil {
		t.Fatalf("unexpected error locating partition 5: %v", err)
	}
	if p5.BaseSector != 1000 || p5.StartSect != 2 || p5.SectorCount != 500 {
		t.Errorf("unexpected partition 5: %+v", p5)
	}

	p6, err := mbr.Locate(f, 6)
	if err != nil {
		t.Fatalf("unexpected error locating partition 6: %v", err)
	}
	if p6.BaseSector != 3000 || p6.StartSect != 2 || p6.SectorCount != 700 {
		t.Errorf("unexpected partition 6: %+v", p6)
	}

	if _, err := mbr.Locate(f, 7); !errors.Is(err, mbr.ErrNoSuchPartition) {
		t.Errorf("expected ErrNoSuchPartition for partition 7, got %v", err)
	}
}

func TestEnumerate(t *testing.T) {
	f := newDisk(0)
	putEntry(f.data, 0, mbr.SysIndExt2, 63, 1000)
	putEntry(f.data, 1, 0x0C, 2000, 1000)

	parts, err := mbr.Enumerate(f)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(parts) != 2 {
		t.Fatalf("expected 2 partitions, got %d", len(parts))
	}
	if !parts[0].IsExt2() || parts[1].IsExt2() {
		t.Errorf("unexpected ext2 classification: %+v, %+v", parts[0], parts[1])
	}
}
