package irmx86

import (
	"testing"

	"github.com/irmxtools/irmxfs"
	imgtesting "github.com/irmxtools/irmxfs/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsFreeSlot(t *testing.T) {
	assert.True(t, isFreeSlot([]byte("@@@@@@@@@@@@@@")))
	assert.False(t, isFreeSlot([]byte("@@@@@@@@@@@@@A")))
	assert.False(t, isFreeSlot([]byte("HELLO.TXT\x00\x00\x00\x00\x00")))
}

// Free slots, undecodable names, dangling records and records pointing at
// bookkeeping nodes are all skipped; the remaining entries still resolve, in
// on-disk order.
func TestReadDirectory__SkipsUnbrowsableRecords(t *testing.T) {
	driver := mountTestVolume(t)

	names, err := driver.Ls("/")
	require.NoError(t, err)
	assert.Equal(t, []string{"SUB", "A B.TXT", "BIG.DAT"}, names)
}

func TestReadDirectory__RejectsDataNodes(t *testing.T) {
	driver := mountTestVolume(t)

	_, err := driver.ReadDir("/A B.TXT")
	require.Error(t, err)
	assert.ErrorIs(t, err, irmxfs.ErrNotADirectory)
}

// Two records with the same name: the name keeps its first on-disk position
// but resolves to the later record's node.
func TestReadDirectory__DuplicateNameLastRecordWins(t *testing.T) {
	b := imgtesting.NewImageBuilder(t, 128, 64, 16, 1024, 100, 5)
	b.AddFnode(imgtesting.FnodeSpec{
		ID: 5, Flags: 0x0021, Type: 6,
		TotalSize: 64, TotalBlocks: 1, // four 16-byte records
		Pointers: []imgtesting.BlockRun{{Count: 1, First: 24}},
	})
	b.AddFnode(imgtesting.FnodeSpec{
		ID: 7, Flags: 0x0021, Type: 8,
		TotalSize: 3, TotalBlocks: 1,
		Pointers: []imgtesting.BlockRun{{Count: 1, First: 26}},
		Parent:   5,
	})
	b.WriteData(26, []byte("old"))
	b.AddFnode(imgtesting.FnodeSpec{
		ID: 8, Flags: 0x0021, Type: 8,
		TotalSize: 3, TotalBlocks: 1,
		Pointers: []imgtesting.BlockRun{{Count: 1, First: 27}},
		Parent:   5,
	})
	b.WriteData(27, []byte("new"))
	b.WriteDirectory(24, []imgtesting.DirentSpec{
		{Fnode: 7, Name: "NOTE"},
		{Fnode: 9, Name: "OTHER"},
		{Fnode: 7, Name: "NOTE"}, // same node again, no effect
		{Fnode: 8, Name: "NOTE"}, // later record takes over
	})
	b.AddFnode(imgtesting.FnodeSpec{
		ID: 9, Flags: 0x0021, Type: 8,
		TotalSize: 0, TotalBlocks: 0,
		Parent: 5,
	})

	driver := NewDriverFromStream(b.Stream())
	require.NoError(t, driver.Mount())

	names, err := driver.Ls("/")
	require.NoError(t, err)
	assert.Equal(t, []string{"NOTE", "OTHER"}, names, "duplicate keeps its first position")

	content, err := driver.ReadFile("/NOTE")
	require.NoError(t, err)
	assert.Equal(t, []byte("new"), content, "last record must win")
}

// A trailing partial record is ignored rather than decoded.
func TestReadDirectory__IgnoresTrailingPartialRecord(t *testing.T) {
	b := imgtesting.NewImageBuilder(t, 128, 64, 16, 1024, 100, 5)
	b.AddFnode(imgtesting.FnodeSpec{
		ID: 5, Flags: 0x0021, Type: 6,
		TotalSize: 24, TotalBlocks: 1, // one full record plus half of another
		Pointers: []imgtesting.BlockRun{{Count: 1, First: 24}},
	})
	b.AddFnode(imgtesting.FnodeSpec{
		ID: 7, Flags: 0x0021, Type: 8,
		TotalSize: 2, TotalBlocks: 1,
		Pointers: []imgtesting.BlockRun{{Count: 1, First: 26}},
		Parent:   5,
	})
	b.WriteData(26, []byte("hi"))
	b.WriteDirectory(24, []imgtesting.DirentSpec{
		{Fnode: 7, Name: "KEEP.TXT"},
		{Fnode: 7, Name: "TRUNCATED"},
	})

	driver := NewDriverFromStream(b.Stream())
	require.NoError(t, driver.Mount())

	names, err := driver.Ls("/")
	require.NoError(t, err)
	assert.Equal(t, []string{"KEEP.TXT"}, names)
}

func TestDirEntriesOrdering(t *testing.T) {
	entries := newDirEntries()
	a := &FNode{ID: 1}
	b := &FNode{ID: 2}

	entries.put("X", a)
	entries.put("Y", a)
	entries.put("X", b)

	assert.Equal(t, []string{"X", "Y"}, entries.names)
	got, ok := entries.get("X")
	require.True(t, ok)
	assert.Same(t, b, got)
}
