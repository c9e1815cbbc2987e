package check

import (
	"errors"
	"fmt"

	"ext2fsck/container"
	"ext2fsck/filesystem/ext2"
)

// dirJob is one directory waiting to have its "." and ".." pointers checked,
// paired with the inode number its ".." entry is expected to point at.
type dirJob struct {
	inode          uint32
	expectedParent uint32
}

// runPass1 walks the directory tree breadth-first from the root inode,
// verifying that every directory's "." entry points at itself and its ".."
// entry points at its true parent. With c.Fix set, mismatches are corrected
// in place and a "fixed" line follows the diagnostic that triggered the
// correction.
func (c *Checker) runPass1() error {
	if !c.pass1HeaderPrinted {
		fmt.Println("Pass 1: Checking directory structure")
		c.pass1HeaderPrinted = true
	}

	root, err := c.fs.GetInode(ext2.RootInode)
	if err != nil {
		return fmt.Errorf("pass 1: reading root inode: %w", err)
	}
	if err := c.checkSelfAndParent(root, ext2.RootInode, ext2.RootInode, true); err != nil {
		if errors.Is(err, ext2.ErrDirectorySpansBlocks) {
			fmt.Println("warning: more than one block")
			return nil
		}
		return err
	}

	queue := container.NewDeque[dirJob]()
	if err := c.enqueueChildren(root, ext2.RootInode, queue); err != nil {
		return err
	}

	for !queue.Empty() {
		job := queue.PopFront()
		in, err := c.fs.GetInode(job.inode)
		if err != nil {
			return fmt.Errorf("pass 1: reading inode %d: %w", job.inode, err)
		}
		if err := c.checkSelfAndParent(in, job.inode, job.expectedParent, false); err != nil {
			if errors.Is(err, ext2.ErrDirectorySpansBlocks) {
				fmt.Println("warning: more than one block")
				continue
			}
			return err
		}
		if err := c.enqueueChildren(in, job.inode, queue); err != nil {
			return err
		}
	}
	return nil
}

// checkSelfAndParent verifies, by position rather than by name, that in's
// first directory entry is its own "." and its second is its parent's "..".
// With c.Fix set, either entry is repaired in place; if the misplaced
// original entry's name didn't already match (".", ".."), that entry is
// preserved by pushing it onto the end of the directory as a regular entry
// rather than simply discarded. Repairing "..", when the previous parent
// was some other valid directory, also strips any entry in that old parent
// that still references in, so in is never claimed by two parents at once.
func (c *Checker) checkSelfAndParent(in *ext2.Inode, self, expectedParent uint32, isRoot bool) error {
	entries, err := c.fs.ChildDirEntries(in)
	if err != nil {
		return err
	}
	if len(entries) < 2 {
		return fmt.Errorf("directory inode %d has fewer than two entries", self)
	}
	dirty := false

	if entries[0].Inode != self || entries[0].Name != "." {
		if isRoot {
			fmt.Println("root self ptr error")
		} else {
			fmt.Printf("self ptr error for inode %d\n", self)
		}
		if c.Fix {
			if entries[0].Name != "." {
				entries = append(entries, entries[0])
			}
			entries[0] = ext2.DirEntry{Inode: self, FileType: ext2.DirEntryTypeDir, Name: "."}
			dirty = true
		}
	}

	oldParent := entries[1].Inode
	if entries[1].Inode != expectedParent || entries[1].Name != ".." {
		if isRoot {
			fmt.Println("root parent ptr error")
		} else {
			fmt.Printf("parent ptr error for inode %d, should point to %d, found %d\n", self, expectedParent, entries[1].Inode)
		}
		if c.Fix {
			if entries[1].Name != ".." {
				entries = append(entries, entries[1])
			}
			entries[1] = ext2.DirEntry{Inode: expectedParent, FileType: ext2.DirEntryTypeDir, Name: ".."}
			dirty = true

			if !isRoot && oldParent != 0 && oldParent != expectedParent {
				if err := c.stripStaleChildEntry(oldParent, self); err != nil {
					return err
				}
			}
		}
	}

	if dirty {
		fmt.Println("fixed")
		if err := c.fs.WriteDirectoryBlock(in, entries); err != nil {
			return fmt.Errorf("pass 1: rewriting directory block for inode %d: %w", self, err)
		}
	}
	return nil
}

// stripStaleChildEntry removes any entry referencing child from oldParent's
// own directory block, so that repairing child's ".." to point elsewhere
// doesn't leave it claimed by its old parent too. A missing, non-directory,
// or multi-block oldParent is left alone: there is nothing sound to strip.
func (c *Checker) stripStaleChildEntry(oldParent, child uint32) error {
	if oldParent == 0 || oldParent > c.fs.Superblock.InodesCount || !c.fs.InodeAllocated(oldParent) {
		return nil
	}
	parent, err := c.fs.GetInode(oldParent)
	if err != nil || !parent.IsDir() {
		return nil
	}
	entries, err := c.fs.ChildDirEntries(parent)
	if err != nil {
		if errors.Is(err, ext2.ErrDirectorySpansBlocks) {
			return nil
		}
		return err
	}
	kept := entries[:0]
	removed := false
	for _, e := range entries {
		if e.Inode == child && e.Name != "." && e.Name != ".." {
			removed = true
			continue
		}
		kept = append(kept, e)
	}
	if !removed {
		return nil
	}
	if err := c.fs.WriteDirectoryBlock(parent, kept); err != nil {
		return fmt.Errorf("pass 1: stripping stale entry for inode %d from old parent %d: %w", child, oldParent, err)
	}
	return nil
}

// enqueueChildren adds every directory child of in (excluding "." and "..")
// to queue, expecting its ".." to point back at parent.
func (c *Checker) enqueueChildren(in *ext2.Inode, parent uint32, queue *container.Deque[dirJob]) error {
	entries, err := c.fs.ChildDirEntries(in)
	if err != nil {
		if errors.Is(err, ext2.ErrDirectorySpansBlocks) {
			return nil
		}
		return err
	}
	for _, e := range entries {
		if e.Name == "." || e.Name == ".." || e.Inode == 0 {
			continue
		}
		child, err := c.fs.GetInode(e.Inode)
		if err != nil {
			return fmt.Errorf("pass 1: reading child inode %d of %d: %w", e.Inode, parent, err)
		}
		if child.IsDir() {
			queue.PushBack(dirJob{inode: e.Inode, expectedParent: parent})
		}
	}
	return nil
}
