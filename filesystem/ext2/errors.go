package ext2

import "errors"

// Sentinel errors matching the taxonomy this tool reports by: callers branch
// on these with errors.Is rather than on a discriminated error-kind field.
var (
	// ErrMalformed marks a decoded on-disk structure that violates a hard
	// invariant (e.g. a bad superblock magic). Fatal: the caller should abort.
	ErrMalformed = errors.New("malformed ext2 structure")

	// ErrNotExt2 marks a partition that exists but is not typed 0x83.
	ErrNotExt2 = errors.New("not an ext2 partition")

	// ErrDirectorySpansBlocks marks a directory whose entries would not fit
	// in its first data block. Pass 1 and lost+found adoption both refuse to
	// rewrite such a directory; see spec §7.
	ErrDirectorySpansBlocks = errors.New("directory entries do not fit in one block")
)
