package testing

import (
	"encoding/binary"
	"io"
	"testing"

	"github.com/noxer/bytewriter"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/bytesextra"
)

const (
	isoLabelOffset   = 768
	volumeInfoOffset = 384
)

// BlockRun is one (block count, first block) extent used when declaring a
// synthetic fnode's pointer slots or an indirect region's records.
type BlockRun struct {
	Count uint32
	First uint32
}

// FnodeSpec declares one record of a synthetic volume's fnode table. Zero
// values are written verbatim, so an unallocated slot is simply never declared.
type FnodeSpec struct {
	ID          uint16
	Flags       uint16
	Type        uint8
	Granularity uint8
	Owner       uint16
	Created     uint32
	Accessed    uint32
	Modified    uint32
	TotalSize   uint32
	TotalBlocks uint32
	Pointers    []BlockRun
	LogicalSize uint32
	IDCount     uint16
	Accessors   [9]byte
	Parent      uint16
}

// DirentSpec declares one 16-byte directory record. When RawName is non-nil it
// is written instead of Name, which lets tests plant undecodable name bytes.
// Free slots use the reserved all-'@' name.
type DirentSpec struct {
	Fnode   uint16
	Name    string
	RawName []byte
	Free    bool
}

// ImageBuilder assembles a synthetic volume image in memory: both volume
// descriptors, an fnode table and any data, directory or indirect blocks the
// test needs. The geometry is fixed at construction.
type ImageBuilder struct {
	BlockSize   uint
	TotalBlocks uint
	NumFnodes   uint16
	FnodeStart  uint32 // byte offset of the fnode table
	FnodeSize   uint16
	RootFnode   uint16

	t    *testing.T
	data []byte
}

// NewImageBuilder creates a zero-filled image of blockSize*totalBlocks bytes
// and writes both volume descriptors into it.
func NewImageBuilder(
	t *testing.T,
	blockSize uint,
	totalBlocks uint,
	numFnodes uint16,
	fnodeStart uint32,
	fnodeSize uint16,
	rootFnode uint16,
) *ImageBuilder {
	require.GreaterOrEqual(t, blockSize*totalBlocks, uint(1024),
		"image too small to hold the volume descriptors")

	builder := &ImageBuilder{
		BlockSize:   blockSize,
		TotalBlocks: totalBlocks,
		NumFnodes:   numFnodes,
		FnodeStart:  fnodeStart,
		FnodeSize:   fnodeSize,
		RootFnode:   rootFnode,
		t:           t,
		data:        make([]byte, blockSize*totalBlocks),
	}
	builder.writeISOLabel()
	builder.writeVolumeInfo()
	return builder
}

func (b *ImageBuilder) writeISOLabel() {
	writer := bytewriter.New(b.data[isoLabelOffset : isoLabelOffset+128])
	b.mustWrite(writer, []byte("VOL"))
	b.mustWrite(writer, []byte{0})
	b.mustWrite(writer, []byte("TESTVL"))
	b.mustWrite(writer, []byte("1"))
	b.mustWrite(writer, make([]byte, 60))
	b.mustWrite(writer, []byte("0")) // recording side
	b.mustWrite(writer, make([]byte, 4))
	b.mustWrite(writer, []byte("01")) // interleave factor
	b.mustWrite(writer, []byte{0})
	b.mustWrite(writer, []byte("1")) // version
}

func (b *ImageBuilder) writeVolumeInfo() {
	writer := bytewriter.New(b.data[volumeInfoOffset : volumeInfoOffset+128])
	name := make([]byte, 10)
	copy(name, "TESTVOLUME")
	b.mustWrite(writer, name)
	b.mustWrite(writer, []byte{0})    // pad
	b.mustWrite(writer, []byte{0x04}) // file driver: named files
	b.mustBinaryWrite(writer, uint16(b.BlockSize))
	b.mustBinaryWrite(writer, uint32(b.TotalBlocks))
	b.mustBinaryWrite(writer, b.NumFnodes)
	b.mustBinaryWrite(writer, b.FnodeStart)
	b.mustBinaryWrite(writer, b.FnodeSize)
	b.mustBinaryWrite(writer, b.RootFnode)
}

// AddFnode serializes one fnode record into the table. Records may be declared
// in any order; undeclared slots stay zeroed (unallocated).
func (b *ImageBuilder) AddFnode(spec FnodeSpec) {
	require.Less(b.t, spec.ID, b.NumFnodes, "fnode id outside the declared table")
	require.LessOrEqual(b.t, len(spec.Pointers), 8, "an fnode has at most 8 pointer slots")

	start := b.FnodeStart + uint32(spec.ID)*uint32(b.FnodeSize)
	writer := bytewriter.New(b.data[start : start+uint32(b.FnodeSize)])

	b.mustBinaryWrite(writer, spec.Flags)
	b.mustWrite(writer, []byte{spec.Type, spec.Granularity})
	b.mustBinaryWrite(writer, spec.Owner)
	b.mustBinaryWrite(writer, spec.Created)
	b.mustBinaryWrite(writer, spec.Accessed)
	b.mustBinaryWrite(writer, spec.Modified)
	b.mustBinaryWrite(writer, spec.TotalSize)
	b.mustBinaryWrite(writer, spec.TotalBlocks)

	for slot := 0; slot < 8; slot++ {
		var run BlockRun
		if slot < len(spec.Pointers) {
			run = spec.Pointers[slot]
		}
		b.mustBinaryWrite(writer, uint16(run.Count))
		b.mustWrite(writer, []byte{
			byte(run.First),
			byte(run.First >> 8),
			byte(run.First >> 16),
		})
	}

	b.mustBinaryWrite(writer, spec.LogicalSize)
	b.mustWrite(writer, make([]byte, 4)) // reserved
	b.mustBinaryWrite(writer, spec.IDCount)
	b.mustWrite(writer, spec.Accessors[:])
	b.mustBinaryWrite(writer, spec.Parent)
}

// WriteData copies raw bytes into the image starting at the given block.
func (b *ImageBuilder) WriteData(firstBlock uint32, data []byte) {
	start := firstBlock * uint32(b.BlockSize)
	require.LessOrEqual(b.t, int(start)+len(data), len(b.data),
		"data extends past the end of the image")
	copy(b.data[start:], data)
}

// WriteDirectory serializes 16-byte directory records contiguously starting
// at the given block.
func (b *ImageBuilder) WriteDirectory(firstBlock uint32, entries []DirentSpec) {
	start := firstBlock * uint32(b.BlockSize)
	writer := bytewriter.New(b.data[start : int(start)+16*len(entries)])

	for _, entry := range entries {
		name := make([]byte, 14)
		switch {
		case entry.Free:
			for i := range name {
				name[i] = '@'
			}
		case entry.RawName != nil:
			copy(name, entry.RawName)
		default:
			require.LessOrEqual(b.t, len(entry.Name), 14, "directory names are 14 bytes")
			copy(name, entry.Name)
		}
		b.mustBinaryWrite(writer, entry.Fnode)
		b.mustWrite(writer, name)
	}
}

// WriteIndirect serializes 4-byte indirect pointer records (count byte plus a
// 24-bit block address) starting at the given block.
func (b *ImageBuilder) WriteIndirect(firstBlock uint32, runs []BlockRun) {
	start := firstBlock * uint32(b.BlockSize)
	writer := bytewriter.New(b.data[start : int(start)+4*len(runs)])

	for _, run := range runs {
		b.mustWrite(writer, []byte{
			byte(run.Count),
			byte(run.First),
			byte(run.First >> 8),
			byte(run.First >> 16),
		})
	}
}

// Bytes returns the raw image contents.
func (b *ImageBuilder) Bytes() []byte {
	return b.data
}

// Stream wraps the image in an in-memory ReadWriteSeeker suitable for
// mounting. Writes through the stream alter the builder's buffer; the builder
// itself never writes after construction.
func (b *ImageBuilder) Stream() io.ReadWriteSeeker {
	return bytesextra.NewReadWriteSeeker(b.data)
}

func (b *ImageBuilder) mustWrite(writer io.Writer, data []byte) {
	_, err := writer.Write(data)
	require.NoError(b.t, err, "write overran a fixed-size record")
}

func (b *ImageBuilder) mustBinaryWrite(writer io.Writer, value interface{}) {
	err := binary.Write(writer, binary.LittleEndian, value)
	require.NoError(b.t, err, "write overran a fixed-size record")
}
