package ext2

import "testing"

func TestDecodeGroupDescriptorRoundTrip(t *testing.T) {
	want := GroupDescriptor{
		BlockBitmap:     3,
		InodeBitmap:     4,
		InodeTable:      5,
		FreeBlocksCount: 900,
		FreeInodesCount: 120,
		UsedDirsCount:   2,
	}
	buf := make([]byte, groupDescSize)
	want.encode(buf)

	got := decodeGroupDescriptor(buf)
	if got != want {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, want)
	}
}

func TestGroupBitmapBits(t *testing.T) {
	g := &Group{
		BlockBitmap: []byte{0b00000101},
		InodeBitmap: []byte{0b00000010},
	}
	if !g.blockBitmapBit(0) {
		t.Error("expected block bit 0 set")
	}
	if g.blockBitmapBit(1) {
		t.Error("expected block bit 1 clear")
	}
	if !g.blockBitmapBit(2) {
		t.Error("expected block bit 2 set")
	}
	if !g.inodeBitmapBit(1) {
		t.Error("expected inode bit 1 set")
	}
	if g.inodeBitmapBit(0) {
		t.Error("expected inode bit 0 clear")
	}
}
