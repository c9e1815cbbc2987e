package ext2_test

import (
	"testing"

	"ext2fsck/filesystem/ext2"
	"ext2fsck/testhelper"
)

func TestOpenAndReadRoot(t *testing.T) {
	fx := testhelper.NewExt2Fixture()
	fs, err := ext2.Open(fx.Device())
	if err != nil {
		t.Fatalf("ext2.Open: %v", err)
	}

	root, err := fs.GetInode(ext2.RootInode)
	if err != nil {
		t.Fatalf("GetInode(root): %v", err)
	}
	if !root.IsDir() {
		t.Fatal("expected root to be a directory")
	}
	if root.LinksCount != 3 {
		t.Errorf("root LinksCount = %d, want 3", root.LinksCount)
	}

	entries, err := fs.ChildDirEntries(root)
	if err != nil {
		t.Fatalf("ChildDirEntries(root): %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("root has %d entries, want 3", len(entries))
	}
	if entries[2].Name != "lost+found" || entries[2].Inode != fx.LostFoundInode {
		t.Errorf("third root entry = %+v", entries[2])
	}
}

func TestLostFoundInode(t *testing.T) {
	fx := testhelper.NewExt2Fixture()
	fs, err := ext2.Open(fx.Device())
	if err != nil {
		t.Fatalf("ext2.Open: %v", err)
	}

	inum, err := fs.LostFoundInode()
	if err != nil {
		t.Fatalf("LostFoundInode: %v", err)
	}
	if inum != fx.LostFoundInode {
		t.Errorf("LostFoundInode() = %d, want %d", inum, fx.LostFoundInode)
	}
}

func TestResolve(t *testing.T) {
	fx := testhelper.NewExt2Fixture()
	fs, err := ext2.Open(fx.Device())
	if err != nil {
		t.Fatalf("ext2.Open: %v", err)
	}

	inum, err := fs.Resolve("/lost+found")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if inum != fx.LostFoundInode {
		t.Errorf("Resolve(/lost+found) = %d, want %d", inum, fx.LostFoundInode)
	}

	if _, err := fs.Resolve("/nope"); err == nil {
		t.Fatal("expected error resolving nonexistent path")
	}
}

func TestBlockAndInodeAllocated(t *testing.T) {
	fx := testhelper.NewExt2Fixture()
	fs, err := ext2.Open(fx.Device())
	if err != nil {
		t.Fatalf("ext2.Open: %v", err)
	}

	if !fs.BlockAllocated(7) {
		t.Error("expected block 7 (root data) to be allocated")
	}
	if fs.BlockAllocated(15) {
		t.Error("expected block 15 to be free")
	}
	if !fs.InodeAllocated(ext2.RootInode) {
		t.Error("expected root inode to be allocated")
	}
	if fs.InodeAllocated(12) {
		t.Error("expected inode 12 to be free")
	}
}

func TestIsReservedBlock(t *testing.T) {
	fx := testhelper.NewExt2Fixture()
	fs, err := ext2.Open(fx.Device())
	if err != nil {
		t.Fatalf("ext2.Open: %v", err)
	}

	for _, b := range []uint32{1, 2, 3, 4, 5, 6} {
		if !fs.IsReservedBlock(b) {
			t.Errorf("expected block %d to be reserved", b)
		}
	}
	if fs.IsReservedBlock(7) {
		t.Error("expected root directory data block 7 not to be reserved metadata")
	}
}

func TestAppendDirEntry(t *testing.T) {
	fx := testhelper.NewExt2Fixture()
	fs, err := ext2.Open(fx.Device())
	if err != nil {
		t.Fatalf("ext2.Open: %v", err)
	}

	lf, err := fs.GetInode(fx.LostFoundInode)
	if err != nil {
		t.Fatalf("GetInode(lost+found): %v", err)
	}
	if err := fs.AppendDirEntry(lf, "#12", 12, ext2.DirEntryTypeRegular); err != nil {
		t.Fatalf("AppendDirEntry: %v", err)
	}

	entries, err := fs.ChildDirEntries(lf)
	if err != nil {
		t.Fatalf("ChildDirEntries: %v", err)
	}
	found := false
	for _, e := range entries {
		if e.Name == "#12" && e.Inode == 12 {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected #12 entry after append, got %+v", entries)
	}
}
