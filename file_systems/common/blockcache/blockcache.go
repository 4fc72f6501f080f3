// Package blockcache provides a read-only, block-oriented cache that gives a
// linear view of a volume image scattered across discontiguous blocks. Blocks
// are fetched from the backing storage on first access and kept for the
// lifetime of the cache; the image is never written to.
//
// All block indices begin at 0.
package blockcache

import (
	"fmt"
	"io"

	"github.com/boljen/go-bitmap"
	c "github.com/irmxtools/irmxfs/file_systems/common"
)

// FetchBlockCallback is a pointer to a function that writes the contents of a
// single block from the backing storage into `buffer`. The following guarantees
// apply:
//
// - `blockIndex` is in the range [0, TotalBlocks).
// - `buffer` is always BytesPerBlock bytes.
type FetchBlockCallback func(blockIndex c.LogicalBlock, buffer []byte) error

type BlockCache struct {
	loadedBlocks  bitmap.Bitmap
	fetch         FetchBlockCallback
	bytesPerBlock uint
	totalBlocks   uint
	data          []byte
}

// New creates a new BlockCache. `fetchCb` reads a single block from the
// backing storage; it is the cache's only connection to the outside world.
func New(
	bytesPerBlock uint,
	totalBlocks uint,
	fetchCb FetchBlockCallback,
) *BlockCache {
	return &BlockCache{
		loadedBlocks:  bitmap.NewSlice(int(totalBlocks)),
		data:          make([]byte, int(bytesPerBlock*totalBlocks)),
		fetch:         fetchCb,
		bytesPerBlock: bytesPerBlock,
		totalBlocks:   totalBlocks,
	}
}

// WrapStream creates a [BlockCache] over any [io.ReadSeeker]. Fetches restore
// the stream's position afterwards, so probe reads through the cache never
// disturb a caller that is also seeking around the same stream.
func WrapStream(
	stream io.ReadSeeker,
	bytesPerBlock uint,
	totalBlocks uint,
) *BlockCache {
	fetchCb := func(block c.LogicalBlock, buffer []byte) error {
		originalPosition, err := stream.Seek(0, io.SeekCurrent)
		if err != nil {
			return err
		}

		err = seekToBlock(stream, block, c.LogicalBlock(totalBlocks), bytesPerBlock)
		if err != nil {
			return err
		}

		_, err = io.ReadFull(stream, buffer)
		if err != nil {
			return err
		}

		_, err = stream.Seek(originalPosition, io.SeekStart)
		return err
	}

	return New(bytesPerBlock, totalBlocks, fetchCb)
}

// seekToBlock sets the stream pointer for a stream to the offset of a block.
func seekToBlock(stream io.Seeker, block, totalBlocks c.LogicalBlock, bytesPerBlock uint) error {
	if block >= totalBlocks {
		return fmt.Errorf(
			"invalid block number: %d not in range [0, %d)",
			block,
			totalBlocks,
		)
	}

	blockOffset := int64(block) * int64(bytesPerBlock)
	_, err := stream.Seek(blockOffset, io.SeekStart)
	return err
}

// BytesPerBlock returns the size of a single block, in bytes.
func (cache *BlockCache) BytesPerBlock() uint {
	return cache.bytesPerBlock
}

// TotalBlocks returns the size of the cache, in blocks.
func (cache *BlockCache) TotalBlocks() uint {
	return cache.totalBlocks
}

// Size gives the size of the cache, in bytes (not blocks!).
func (cache *BlockCache) Size() int64 {
	return int64(cache.bytesPerBlock) * int64(cache.totalBlocks)
}

// LengthToNumBlocks gives the minimum number of blocks required to hold the
// given number of bytes.
func (cache *BlockCache) LengthToNumBlocks(size uint) uint {
	return (size + cache.bytesPerBlock - 1) / cache.bytesPerBlock
}

// checkBounds verifies that `bufferSize` bytes can be accessed in the cache
// starting from block `start`. If not, it returns an error describing the exact
// conditions. If no error would occur, this returns nil.
func (cache *BlockCache) checkBounds(start c.LogicalBlock, bufferSize uint) error {
	numBlocks := cache.LengthToNumBlocks(bufferSize)

	if uint(start) >= cache.totalBlocks || uint(start)+numBlocks > cache.totalBlocks {
		return fmt.Errorf(
			"can't access %d bytes (%d blocks) from block %d; range not in [0, %d)",
			bufferSize,
			numBlocks,
			start,
			cache.totalBlocks,
		)
	}
	return nil
}

// GetSlice returns a slice pointing to the cache's storage, beginning at block
// `start` and continuing for `count` blocks. The slice must not be modified.
func (cache *BlockCache) GetSlice(
	start c.LogicalBlock,
	count uint,
) ([]byte, error) {
	err := cache.loadBlockRange(start, count)
	if err != nil {
		return nil, err
	}

	startOffset := uint(start) * cache.bytesPerBlock
	endOffset := startOffset + (count * cache.bytesPerBlock)
	return cache.data[startOffset:endOffset], nil
}

// Data returns a slice of the entire cache's data. This requires loading all
// blocks not yet in the cache, so it may incur a one-time performance penalty
// for large images.
func (cache *BlockCache) Data() ([]byte, error) {
	err := cache.LoadAll()
	if err != nil {
		return nil, err
	}
	return cache.data[:], nil
}

// loadBlockRange ensures that all blocks in the range [start, start + count)
// are present in the cache, and loads any missing ones from storage.
func (cache *BlockCache) loadBlockRange(start c.LogicalBlock, count uint) error {
	err := cache.checkBounds(start, count*cache.bytesPerBlock)
	if err != nil {
		return err
	}

	for blockIndex := int(start); uint(blockIndex) < uint(start)+count; blockIndex++ {
		if cache.loadedBlocks.Get(blockIndex) {
			continue
		}

		startOffset := uint(blockIndex) * cache.bytesPerBlock
		buffer := cache.data[startOffset : startOffset+cache.bytesPerBlock]

		// Load the block from backing storage directly into the cache.
		err = cache.fetch(c.LogicalBlock(blockIndex), buffer)
		if err != nil {
			return fmt.Errorf(
				"failed to load block %d from source: %s",
				blockIndex,
				err.Error(),
			)
		}

		cache.loadedBlocks.Set(blockIndex, true)
	}

	return nil
}

// LoadAll ensures all missing blocks are loaded from storage into the cache.
func (cache *BlockCache) LoadAll() error {
	return cache.loadBlockRange(0, cache.totalBlocks)
}

// ReadAt fills `buffer` with data beginning at block `start`, loading any
// missing blocks first. `buffer` does not need to be an exact multiple of the
// size of one block.
//
// Attempting to read past the end of the cache will result in an error, and
// `buffer` will be left unmodified.
func (cache *BlockCache) ReadAt(buffer []byte, start c.LogicalBlock) (int, error) {
	bufLen := uint(len(buffer))
	err := cache.checkBounds(start, bufLen)
	if err != nil {
		return 0, err
	}

	numBlocks := cache.LengthToNumBlocks(bufLen)
	sourceData, err := cache.GetSlice(start, numBlocks)
	if err != nil {
		return 0, err
	}

	copy(buffer, sourceData)
	return len(buffer), nil
}
