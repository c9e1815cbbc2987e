package ext2

import "testing"

func buildDirBlock(blockSize int, entries []DirEntry) []byte {
	block := make([]byte, blockSize)
	for _, e := range entries {
		e.encode(block)
	}
	return block
}

func TestDecodeDirBlock(t *testing.T) {
	blockSize := 64
	entries := []DirEntry{
		{Inode: 2, RecLen: direntRecLen(1), FileType: DirEntryTypeDir, Name: ".", Offset: 0},
	}
	entries = append(entries, DirEntry{
		Inode: 2, RecLen: direntRecLen(2), FileType: DirEntryTypeDir, Name: "..",
		Offset: int(entries[0].RecLen),
	})
	lastOffset := entries[0].Offset + int(entries[0].RecLen) + int(entries[1].RecLen)
	entries = append(entries, DirEntry{
		Inode: 11, RecLen: uint16(blockSize - lastOffset), FileType: DirEntryTypeRegular,
		Name: "hello.txt", Offset: lastOffset,
	})

	block := buildDirBlock(blockSize, entries)
	got := decodeDirBlock(block)

	if len(got) != 3 {
		t.Fatalf("decoded %d entries, want 3", len(got))
	}
	if got[0].Name != "." || got[0].Inode != 2 {
		t.Errorf("entry 0 = %+v", got[0])
	}
	if got[1].Name != ".." || got[1].Inode != 2 {
		t.Errorf("entry 1 = %+v", got[1])
	}
	if got[2].Name != "hello.txt" || got[2].Inode != 11 || got[2].FileType != DirEntryTypeRegular {
		t.Errorf("entry 2 = %+v", got[2])
	}
}

func TestDecodeDirBlockStopsOnZeroInode(t *testing.T) {
	blockSize := 32
	block := make([]byte, blockSize)
	e := DirEntry{Inode: 0, RecLen: direntRecLen(1), FileType: DirEntryTypeUnknown, Name: "x", Offset: 0}
	e.encode(block)

	got := decodeDirBlock(block)
	if len(got) != 0 {
		t.Fatalf("expected no entries for a leading zero-inode entry, got %d", len(got))
	}
}

func TestDirentRecLenRounding(t *testing.T) {
	cases := []struct {
		nameLen int
		want    uint16
	}{
		{1, 12}, // 8 + 1 -> rounds to 12
		{4, 12}, // 8 + 4 = 12, already aligned
		{5, 16}, // 8 + 5 = 13 -> rounds to 16
	}
	for _, c := range cases {
		if got := direntRecLen(c.nameLen); got != c.want {
			t.Errorf("direntRecLen(%d) = %d, want %d", c.nameLen, got, c.want)
		}
	}
}
