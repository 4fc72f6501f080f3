package irmx86

import (
	"testing"
	"time"

	"github.com/irmxtools/irmxfs"
	imgtesting "github.com/irmxtools/irmxfs/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildTestVolume assembles the synthetic volume most tests mount:
//
//	/
//	├── SUB/
//	│   └── HELLO.TXT      "hi"
//	├── A B.TXT            "alpha beta"
//	└── BIG.DAT            long file, 128×'A' + 72×'B'
//
// The root directory also carries one free slot, one record with an
// undecodable name, one dangling record and one record pointing at a
// bookkeeping node; none of those may surface as entries. Fnode 10 is a
// deleted data node and must never enter the node map.
func buildTestVolume(t *testing.T) *imgtesting.ImageBuilder {
	b := imgtesting.NewImageBuilder(t, 128, 64, 16, 1024, 100, 5)

	// Bookkeeping nodes.
	b.AddFnode(imgtesting.FnodeSpec{
		ID: 0, Flags: 0x0001, Type: 0, // fnode file
		TotalSize: 1600,
		Pointers:  []imgtesting.BlockRun{{Count: 13, First: 8}},
	})
	b.AddFnode(imgtesting.FnodeSpec{
		ID: 1, Flags: 0x0001, Type: 1, // free space map
		TotalSize: 8,
		Pointers:  []imgtesting.BlockRun{{Count: 1, First: 30}},
	})
	// Blocks 0-39 allocated, 40-63 free. A set bit marks a free block.
	b.WriteData(30, []byte{0, 0, 0, 0, 0, 0xFF, 0xFF, 0xFF})
	b.AddFnode(imgtesting.FnodeSpec{
		ID: 2, Flags: 0x0001, Type: 2, // free fnodes map
		TotalSize: 2,
		Pointers:  []imgtesting.BlockRun{{Count: 1, First: 32}},
	})

	// Root directory.
	b.AddFnode(imgtesting.FnodeSpec{
		ID: 5, Flags: 0x0021, Type: 6,
		Granularity: 1, Owner: 0xFFFF,
		Created: 100, Accessed: 200, Modified: 300,
		TotalSize: 112, TotalBlocks: 1,
		Pointers:  []imgtesting.BlockRun{{Count: 1, First: 24}},
		IDCount:   1,
		Accessors: [9]byte{irmxfs.AccessAll, 0xFF, 0xFF},
	})
	b.WriteDirectory(24, []imgtesting.DirentSpec{
		{Fnode: 6, Name: "SUB"},
		{Fnode: 8, Name: "A B.TXT"},
		{Fnode: 9, Name: "BIG.DAT"},
		{Free: true},
		{Fnode: 8, RawName: []byte{0xFF, 'B', 'A', 'D'}},
		{Fnode: 15, Name: "GHOST"},
		{Fnode: 1, Name: "BOOKKEEP"},
	})

	// /SUB
	b.AddFnode(imgtesting.FnodeSpec{
		ID: 6, Flags: 0x0021, Type: 6,
		Granularity: 1, Owner: 0xFFFF,
		Created: 400, Accessed: 500, Modified: 600,
		TotalSize: 16, TotalBlocks: 1,
		Pointers: []imgtesting.BlockRun{{Count: 1, First: 25}},
		Parent:   5,
	})
	b.WriteDirectory(25, []imgtesting.DirentSpec{
		{Fnode: 7, Name: "HELLO.TXT"},
	})

	// /SUB/HELLO.TXT
	b.AddFnode(imgtesting.FnodeSpec{
		ID: 7, Flags: 0x0021, Type: 8,
		Granularity: 1, Owner: 5,
		Created: 1000, Accessed: 2000, Modified: 3000,
		TotalSize: 2, TotalBlocks: 1,
		Pointers:    []imgtesting.BlockRun{{Count: 1, First: 26}},
		LogicalSize: 128,
		IDCount:     1,
		Accessors:   [9]byte{irmxfs.AccessAll, 0x05, 0x00},
		Parent:      6,
	})
	b.WriteData(26, []byte("hi"))

	// /A B.TXT
	b.AddFnode(imgtesting.FnodeSpec{
		ID: 8, Flags: 0x0021, Type: 8,
		TotalSize: 10, TotalBlocks: 1,
		Pointers: []imgtesting.BlockRun{{Count: 1, First: 27}},
		Parent:   5,
	})
	b.WriteData(27, []byte("alpha beta"))

	// /BIG.DAT: a long file. The single inline pointer names an indirect
	// region of two records, each mapping one data block.
	b.AddFnode(imgtesting.FnodeSpec{
		ID: 9, Flags: 0x0023, Type: 8,
		TotalSize: 200, TotalBlocks: 2,
		Pointers: []imgtesting.BlockRun{{Count: 2, First: 28}},
		Parent:   5,
	})
	b.WriteIndirect(28, []imgtesting.BlockRun{
		{Count: 1, First: 29},
		{Count: 1, First: 31},
	})
	b.WriteData(29, fillBlock(128, 'A'))
	b.WriteData(31, fillBlock(128, 'B'))

	// Deleted node: allocated bit plus deleted bit.
	b.AddFnode(imgtesting.FnodeSpec{
		ID: 10, Flags: 0x0041, Type: 8,
		TotalSize: 5,
	})

	return b
}

func fillBlock(size int, value byte) []byte {
	block := make([]byte, size)
	for i := range block {
		block[i] = value
	}
	return block
}

func mountTestVolume(t *testing.T) *Driver {
	driver := NewDriverFromStream(buildTestVolume(t).Stream())
	require.NoError(t, driver.Mount(), "failed to mount the test volume")
	return driver
}

func TestMount__DescriptorsDecoded(t *testing.T) {
	driver := mountTestVolume(t)

	label := driver.ISOLabel()
	assert.Equal(t, "VOL", label.Label)
	assert.Equal(t, "TESTVL", label.Name)
	assert.Equal(t, "1", label.Structure)
	assert.Equal(t, 0, label.RecordingSide)
	assert.Equal(t, 1, label.InterleaveFactor)
	assert.Equal(t, 1, label.Version)

	info := driver.VolumeInformation()
	assert.Equal(t, "TESTVOLUME", info.Name)
	assert.EqualValues(t, 4, info.FileDriver)
	assert.EqualValues(t, 128, info.BlockSize)
	assert.EqualValues(t, 64, info.VolumeSize)
	assert.EqualValues(t, 16, info.NumFnodes)
	assert.EqualValues(t, 1024, info.FnodeStart)
	assert.EqualValues(t, 100, info.FnodeSize)
	assert.EqualValues(t, 5, info.RootFnode)
}

func TestMount__SecondMountFails(t *testing.T) {
	driver := mountTestVolume(t)
	assert.ErrorIs(t, driver.Mount(), irmxfs.ErrAlreadyInProgress)
}

// The node map contains exactly the live fnodes: allocated and not deleted.
func TestMount__NodeMapContainsOnlyLiveNodes(t *testing.T) {
	driver := mountTestVolume(t)

	liveIDs := make([]uint16, 0, len(driver.fnodes))
	for id := range driver.fnodes {
		liveIDs = append(liveIDs, id)
	}
	assert.ElementsMatch(t, []uint16{0, 1, 2, 5, 6, 7, 8, 9}, liveIDs)

	_, deletedPresent := driver.fnodes[10]
	assert.False(t, deletedPresent, "deleted fnode 10 must not be in the node map")
}

func TestMount__RejectsUndersizedFnodeRecords(t *testing.T) {
	b := imgtesting.NewImageBuilder(t, 128, 64, 16, 1024, 20, 5)
	driver := NewDriverFromStream(b.Stream())

	err := driver.Mount()
	assert.ErrorIs(t, err, irmxfs.ErrFileSystemCorrupted)
}

func TestMount__RejectsZeroBlockSize(t *testing.T) {
	b := buildTestVolume(t)

	// Corrupt the block size field of the volume information block.
	raw := b.Bytes()
	raw[384+12] = 0
	raw[384+13] = 0

	driver := NewDriverFromStream(b.Stream())
	assert.ErrorIs(t, driver.Mount(), irmxfs.ErrInvalidFileSystem)
}

func TestMount__RejectsUnallocatedRoot(t *testing.T) {
	b := imgtesting.NewImageBuilder(t, 128, 64, 16, 1024, 100, 12)
	driver := NewDriverFromStream(b.Stream())

	err := driver.Mount()
	require.Error(t, err)
	assert.ErrorIs(t, err, irmxfs.ErrFileSystemCorrupted)
	assert.Contains(t, err.Error(), "root fnode 12")
}

func TestMount__RejectsNonDirectoryRoot(t *testing.T) {
	b := imgtesting.NewImageBuilder(t, 128, 64, 16, 1024, 100, 7)
	b.AddFnode(imgtesting.FnodeSpec{
		ID: 7, Flags: 0x0001, Type: 8, TotalSize: 2,
		Pointers: []imgtesting.BlockRun{{Count: 1, First: 26}},
	})

	driver := NewDriverFromStream(b.Stream())
	err := driver.Mount()
	require.Error(t, err)
	assert.ErrorIs(t, err, irmxfs.ErrFileSystemCorrupted)
	assert.Contains(t, err.Error(), "not directory")
}

// An fnode type byte outside the known set poisons the whole table, even when
// the record itself is dead.
func TestMount__UnknownTypeByteIsFatal(t *testing.T) {
	b := imgtesting.NewImageBuilder(t, 128, 64, 16, 1024, 100, 5)
	b.AddFnode(imgtesting.FnodeSpec{
		ID: 5, Flags: 0x0001, Type: 6, TotalSize: 0,
	})
	b.AddFnode(imgtesting.FnodeSpec{
		ID: 3, Flags: 0x0000, Type: 5, // reserved type byte, unallocated slot
	})

	driver := NewDriverFromStream(b.Stream())
	err := driver.Mount()
	require.Error(t, err)
	assert.ErrorIs(t, err, irmxfs.ErrFileSystemCorrupted)
	assert.Contains(t, err.Error(), "type byte 5")
}

func TestUnmount(t *testing.T) {
	driver := mountTestVolume(t)
	require.NoError(t, driver.Unmount())

	// Everything after unmount reports the volume as unmounted.
	_, err := driver.Ls("/")
	assert.ErrorIs(t, err, irmxfs.ErrNotMounted)

	assert.ErrorIs(t, driver.Unmount(), irmxfs.ErrNotMounted)
}

func TestFSStat(t *testing.T) {
	driver := mountTestVolume(t)
	stat := driver.FSStat()

	assert.EqualValues(t, 128, stat.BlockSize)
	assert.EqualValues(t, 64, stat.TotalBlocks)
	assert.EqualValues(t, 24, stat.BlocksFree, "free count must come from the free space map")
	assert.EqualValues(t, 8, stat.Files)
	assert.EqualValues(t, 8, stat.FilesFree)
	assert.EqualValues(t, 14, stat.MaxNameLength)
}

// Timestamps are seconds relative to the session's epoch.
func TestTimestampEpoch(t *testing.T) {
	epoch := time.Date(1992, time.March, 1, 0, 0, 0, 0, time.UTC)
	driver := NewDriverFromStreamWithEpoch(buildTestVolume(t).Stream(), epoch)
	require.NoError(t, driver.Mount())

	stat, err := driver.Stat("/SUB/HELLO.TXT")
	require.NoError(t, err)
	assert.Equal(t, epoch.Add(1000*time.Second), stat.CreatedAt)
	assert.Equal(t, epoch.Add(2000*time.Second), stat.AccessedAt)
	assert.Equal(t, epoch.Add(3000*time.Second), stat.ModifiedAt)
}

func TestGetFSFeatures(t *testing.T) {
	driver := mountTestVolume(t)
	features := driver.GetFSFeatures()

	assert.True(t, features.IsReadOnly)
	assert.True(t, features.HasDirectories)
	assert.Equal(t, DefaultEpoch, features.TimestampEpoch)
	assert.EqualValues(t, 14, features.MaxNameLength)
}
