// Package common contains definitions of fundamental types and functions used
// across the image plumbing and the file system driver.
package common

// LogicalBlock is a zero-based block index within a volume image.
type LogicalBlock uint

// DiskImage is a block-granular, read-only view of a volume image.
type DiskImage interface {
	// ReadAt fills `buffer` with data beginning at the given block, returning
	// the number of bytes read. The buffer need not be a multiple of the
	// block size.
	ReadAt(buffer []byte, start LogicalBlock) (int, error)
	// GetSlice returns `count` whole blocks beginning at `start`. The
	// returned slice aliases the image's cache and must not be modified.
	GetSlice(start LogicalBlock, count uint) ([]byte, error)
	// BytesPerBlock returns the size of a single block, in bytes.
	BytesPerBlock() uint
	// TotalBlocks returns the size of the image, in blocks.
	TotalBlocks() uint
	// Size gives the size of the image, in bytes (not blocks!).
	Size() int64
}
