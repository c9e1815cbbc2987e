package check_test

import (
	"testing"

	"ext2fsck/check"
	"ext2fsck/filesystem/ext2"
	"ext2fsck/testhelper"
)

func TestPass2ReconnectsOrphanFile(t *testing.T) {
	fx := testhelper.NewExt2Fixture()
	fx.AddInode(12, testhelper.RegularFileMode, 1, 0)

	fs, err := ext2.Open(fx.Device())
	if err != nil {
		t.Fatalf("ext2.Open: %v", err)
	}

	out := captureStdout(t, func() {
		if err := check.NewChecker(fs, true).Run(); err != nil {
			t.Fatalf("Run: %v", err)
		}
	})

	want := "Unconnected directory inode 12"
	if !containsLine(out, want) {
		t.Errorf("output missing %q for a non-directory orphan, got:\n%s", want, out)
	}

	lf, err := fs.GetInode(fx.LostFoundInode)
	if err != nil {
		t.Fatalf("GetInode(lost+found): %v", err)
	}
	has, err := fs.HasDirEntry(lf, "12")
	if err != nil {
		t.Fatalf("HasDirEntry: %v", err)
	}
	if !has {
		t.Fatal("expected orphan inode 12 to be reconnected under lost+found as \"12\"")
	}
}

func TestPass2FixesLinkCountMismatch(t *testing.T) {
	fx := testhelper.NewExt2Fixture()
	// lost+found is really only referenced twice ("." and root's entry) but
	// its on-disk link count claims three.
	fx.AddInode(fx.LostFoundInode, testhelper.DirMode, 3, fx.LostFoundBlock)

	fs, err := ext2.Open(fx.Device())
	if err != nil {
		t.Fatalf("ext2.Open: %v", err)
	}

	out := captureStdout(t, func() {
		if err := check.NewChecker(fs, true).Run(); err != nil {
			t.Fatalf("Run: %v", err)
		}
	})

	want := "Inode 11 ref count is 3, should be 2."
	if !containsLine(out, want) {
		t.Errorf("output missing %q, got:\n%s", want, out)
	}

	in, err := fs.GetInode(fx.LostFoundInode)
	if err != nil {
		t.Fatalf("GetInode: %v", err)
	}
	if in.LinksCount != 2 {
		t.Errorf("lost+found LinksCount = %d after fix, want 2", in.LinksCount)
	}
}
