package irmx86

import (
	"encoding/binary"
	"fmt"

	"github.com/irmxtools/irmxfs"
	c "github.com/irmxtools/irmxfs/file_systems/common"
)

// decodeInlinePointers decodes the 8 inline pointer slots of an fnode record:
// 5 bytes each, a 16-bit block count followed by a 24-bit block address.
// Slots with a zero count are unused and skipped; the rest keep slot order.
func decodeInlinePointers(raw []byte) []BlockPointer {
	pointers := make([]BlockPointer, 0, numPointerSlots)
	for slot := 0; slot < numPointerSlots; slot++ {
		record := raw[slot*5 : slot*5+5]
		count := binary.LittleEndian.Uint16(record[0:2])
		if count == 0 {
			continue
		}
		pointers = append(pointers, BlockPointer{
			NumBlocks:  uint32(count),
			FirstBlock: decode24BitAddress(record[2:5]),
		})
	}
	return pointers
}

// resolvePointers produces a node's final pointer list from its inline slots.
// Short files use the inline pointers directly. For long files each inline
// pointer locates an indirect region instead, and the regions' records are
// concatenated in slot order. The format has no third level of indirection.
func (d *Driver) resolvePointers(flags Flags, inline []BlockPointer) ([]BlockPointer, irmxfs.DriverError) {
	if !flags.LongFile {
		return inline, nil
	}

	pointers := make([]BlockPointer, 0, len(inline))
	for _, region := range inline {
		expanded, err := d.readIndirectRegion(region)
		if err != nil {
			return nil, err
		}
		pointers = append(pointers, expanded...)
	}
	return pointers, nil
}

// readIndirectRegion decodes a run of 4-byte indirect pointer records (an
// 8-bit block count followed by a 24-bit block address) starting at the
// region's first block. `region.NumBlocks` gives the record count.
func (d *Driver) readIndirectRegion(region BlockPointer) ([]BlockPointer, irmxfs.DriverError) {
	regionSize := region.NumBlocks * indirectRecordSize
	blockSpan := (uint(regionSize) + d.image.BytesPerBlock() - 1) / d.image.BytesPerBlock()

	raw, err := d.image.GetSlice(c.LogicalBlock(region.FirstBlock), blockSpan)
	if err != nil {
		return nil, irmxfs.ErrIOFailed.WithMessage(fmt.Sprintf(
			"reading indirect block at %d: %s", region.FirstBlock, err.Error()))
	}
	raw = raw[:regionSize]

	pointers := make([]BlockPointer, 0, region.NumBlocks)
	for start := 0; start < len(raw); start += indirectRecordSize {
		record := raw[start : start+indirectRecordSize]
		pointers = append(pointers, BlockPointer{
			NumBlocks:  uint32(record[0]),
			FirstBlock: decode24BitAddress(record[1:4]),
		})
	}
	return pointers, nil
}

// contentOf assembles a node's byte content: the concatenation, in pointer
// order, of each extent's blocks, trimmed to the node's recorded size.
func (d *Driver) contentOf(fnode *FNode) ([]byte, irmxfs.DriverError) {
	content := make([]byte, 0, fnode.TotalSize)
	for _, pointer := range fnode.BlockPointers {
		raw, err := d.image.GetSlice(
			c.LogicalBlock(pointer.FirstBlock), uint(pointer.NumBlocks))
		if err != nil {
			return nil, irmxfs.ErrIOFailed.WithMessage(fmt.Sprintf(
				"reading %d blocks at %d for fnode %d: %s",
				pointer.NumBlocks, pointer.FirstBlock, fnode.ID, err.Error()))
		}
		content = append(content, raw...)
	}

	// The final extent is block-granular, so allocation can overshoot the
	// recorded byte length.
	if uint32(len(content)) > fnode.TotalSize {
		content = content[:fnode.TotalSize]
	}
	return content, nil
}
