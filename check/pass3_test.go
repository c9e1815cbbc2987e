package check_test

import (
	"strings"
	"testing"

	"ext2fsck/check"
	"ext2fsck/filesystem/ext2"
	"ext2fsck/testhelper"
)

func clearBlockBitmapBit(fx *testhelper.Ext2Fixture, block uint32) {
	rel := block - fx.FirstDataBlock
	byteOffset := int(3)*int(fx.BlockSize) + int(rel/8)
	fx.Storage.Data[byteOffset] &^= 1 << (rel % 8)
}

func TestPass3ReportsAndFixesMissingBlockBit(t *testing.T) {
	fx := testhelper.NewExt2Fixture()
	clearBlockBitmapBit(fx, fx.RootBlock) // root's own data block, reachable but unmarked

	fs, err := ext2.Open(fx.Device())
	if err != nil {
		t.Fatalf("ext2.Open: %v", err)
	}

	out := captureStdout(t, func() {
		if err := check.NewChecker(fs, true).Run(); err != nil {
			t.Fatalf("Run: %v", err)
		}
	})

	want := "Block bitmap differences +7"
	if !containsLine(out, want) {
		t.Errorf("output missing %q, got:\n%s", want, out)
	}

	if !fs.BlockAllocated(fx.RootBlock) {
		t.Error("expected block 7 to be marked allocated after the fix")
	}
}

func TestPass3NoDiffOnCleanImage(t *testing.T) {
	fx := testhelper.NewExt2Fixture()
	fs, err := ext2.Open(fx.Device())
	if err != nil {
		t.Fatalf("ext2.Open: %v", err)
	}

	out := captureStdout(t, func() {
		if err := check.NewChecker(fs, true).Run(); err != nil {
			t.Fatalf("Run: %v", err)
		}
	})

	if strings.Contains(out, "Block bitmap differences") {
		t.Errorf("expected no bitmap diffs on a clean image, got:\n%s", out)
	}
}
