package irmx86

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/irmxtools/irmxfs"
)

// FNode is one decoded record of the volume's fnode table. FNodes are built
// exactly once while the table is loaded and are immutable afterwards; they
// are owned by the driver's id-keyed node map, and parent/child relations are
// expressed purely as id lookups into that map.
type FNode struct {
	// ID is the node's index in the fnode table.
	ID          uint16
	Flags       Flags
	Type        FileType
	Granularity uint8
	Owner       uint16

	CreationTime     time.Time
	AccessTime       time.Time
	ModificationTime time.Time

	// TotalSize is the byte length of the node's content.
	TotalSize   uint32
	TotalBlocks uint32

	// BlockPointers is the node's fully resolved pointer list: for long files
	// the inline slots have already been expanded through their indirect
	// regions.
	BlockPointers []BlockPointer

	// LogicalSize is the number of bytes reserved on disk for the node.
	LogicalSize uint32
	IDCount     uint16
	// AccessorData holds the raw accessor-rights bytes, preserved but not
	// interpreted by the traversal logic.
	AccessorData [9]byte
	Parent       uint16
}

// decodeFNode decodes the fixed header of one fnode record. The returned
// pointer list is the raw inline one; callers expand it through the indirect
// regions when the long-file flag is set.
func decodeFNode(raw []byte, id uint16, epoch time.Time) (*FNode, []BlockPointer, irmxfs.DriverError) {
	flags := parseFlags(binary.LittleEndian.Uint16(raw[0:2]))

	fileType, err := parseFileType(raw[2])
	if err != nil {
		return nil, nil, err.WithMessage(fmt.Sprintf("fnode %d", id))
	}

	fnode := &FNode{
		ID:               id,
		Flags:            flags,
		Type:             fileType,
		Granularity:      raw[3],
		Owner:            binary.LittleEndian.Uint16(raw[4:6]),
		CreationTime:     resolveTimestamp(epoch, binary.LittleEndian.Uint32(raw[6:10])),
		AccessTime:       resolveTimestamp(epoch, binary.LittleEndian.Uint32(raw[10:14])),
		ModificationTime: resolveTimestamp(epoch, binary.LittleEndian.Uint32(raw[14:18])),
		TotalSize:        binary.LittleEndian.Uint32(raw[18:22]),
		TotalBlocks:      binary.LittleEndian.Uint32(raw[22:26]),
		LogicalSize:      binary.LittleEndian.Uint32(raw[66:70]),
		IDCount:          binary.LittleEndian.Uint16(raw[74:76]),
		Parent:           binary.LittleEndian.Uint16(raw[85:87]),
	}
	copy(fnode.AccessorData[:], raw[76:85])

	inline := decodeInlinePointers(raw[26:66])
	return fnode, inline, nil
}

// resolveTimestamp interprets an fnode time field as seconds since the
// session's epoch.
func resolveTimestamp(epoch time.Time, seconds uint32) time.Time {
	return epoch.Add(time.Duration(seconds) * time.Second)
}

// IsLive reports whether the node occupies its table slot: allocated and not
// deleted. Nodes failing this test never enter the driver's node map.
func (f *FNode) IsLive() bool {
	return f.Flags.Allocated && !f.Flags.Deleted
}

// IsDirectory returns true for directory nodes.
func (f *FNode) IsDirectory() bool {
	return f.Type == TypeDirectory
}

// IsData returns true for ordinary data-file nodes.
func (f *FNode) IsData() bool {
	return f.Type == TypeData
}

// isBrowsable reports whether directory listings may surface this node.
// Bookkeeping node types (maps, accounting and the fnode file itself) never
// appear as entries.
func (f *FNode) isBrowsable() bool {
	return f.IsData() || f.IsDirectory()
}

// Accessors decodes the node's access list: up to three (rights, id) pairs,
// of which the first IDCount are meaningful.
func (f *FNode) Accessors() []irmxfs.Accessor {
	count := int(f.IDCount)
	if count > 3 {
		count = 3
	}
	accessors := make([]irmxfs.Accessor, count)
	for i := 0; i < count; i++ {
		accessors[i] = irmxfs.Accessor{
			Rights: f.AccessorData[i*3],
			ID:     binary.LittleEndian.Uint16(f.AccessorData[i*3+1 : i*3+3]),
		}
	}
	return accessors
}

// Stat converts the node's metadata to the portable stat form.
func (f *FNode) Stat() irmxfs.FileStat {
	return irmxfs.FileStat{
		NodeID:      f.ID,
		ParentID:    f.Parent,
		Type:        f.Type.String(),
		IsDir:       f.IsDirectory(),
		Size:        int64(f.TotalSize),
		LogicalSize: int64(f.LogicalSize),
		Blocks:      int64(f.TotalBlocks),
		Granularity: uint(f.Granularity),
		Owner:       f.Owner,
		CreatedAt:   f.CreationTime,
		AccessedAt:  f.AccessTime,
		ModifiedAt:  f.ModificationTime,
		Accessors:   f.Accessors(),
	}
}
