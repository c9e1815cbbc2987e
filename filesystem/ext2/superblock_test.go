package ext2

import "testing"

func TestDecodeSuperblockRoundTrip(t *testing.T) {
	want := &Superblock{
		InodesCount:         128,
		BlocksCount:         1024,
		ReservedBlocksCount: 51,
		FreeBlocksCount:     900,
		FreeInodesCount:     100,
		FirstDataBlock:      1,
		LogBlockSize:        0,
		BlocksPerGroup:      8192,
		InodesPerGroup:      128,
		Magic:               superblockMagic,
	}
	buf := make([]byte, superblockSize)
	want.encode(buf)

	got, err := decodeSuperblock(buf)
	if err != nil {
		t.Fatalf("decodeSuperblock: %v", err)
	}
	if *got != *want {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, want)
	}
}

func TestDecodeSuperblockBadMagic(t *testing.T) {
	buf := make([]byte, superblockSize)
	sb := &Superblock{Magic: 0x1234}
	sb.encode(buf)

	if _, err := decodeSuperblock(buf); err == nil {
		t.Fatal("expected error for bad magic, got nil")
	}
}

func TestBlockSize(t *testing.T) {
	cases := []struct {
		log  uint32
		want uint32
	}{
		{0, 1024},
		{1, 2048},
		{2, 4096},
	}
	for _, c := range cases {
		sb := &Superblock{LogBlockSize: c.log}
		if got := sb.BlockSize(); got != c.want {
			t.Errorf("LogBlockSize=%d: got %d, want %d", c.log, got, c.want)
		}
	}
}

func TestGroupCount(t *testing.T) {
	sb := &Superblock{BlocksCount: 100, BlocksPerGroup: 32}
	if got, want := sb.GroupCount(), 4; got != want {
		t.Errorf("GroupCount() = %d, want %d", got, want)
	}
}
