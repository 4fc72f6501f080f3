// Package irmx86 reads volume images formatted with the iRMX 86 named-file
// structure. The driver is strictly read-only: it decodes the two fixed-offset
// volume descriptors, loads the fnode table once at mount, and resolves paths
// and file contents purely from the in-memory node map plus block reads.
package irmx86

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/irmxtools/irmxfs"
)

const (
	isoLabelOffset   = 768
	isoLabelSize     = 128
	volumeInfoOffset = 384
	volumeInfoSize   = 128

	// fnodeHeaderSize is the fixed little-endian field layout of one fnode
	// record; the rest of the record, up to the volume's declared fnode size,
	// is padding.
	fnodeHeaderSize = 87
	numPointerSlots = 8

	direntSize     = 16
	direntNameSize = 14
	direntFillByte = '@'

	indirectRecordSize = 4

	maxNameLength = 14
)

// DefaultEpoch is the date fnode timestamps are counted from unless the
// caller supplies one.
var DefaultEpoch = time.Date(1978, time.January, 1, 0, 0, 0, 0, time.UTC)

// FileType is the closed enumeration of fnode types. Any type byte outside
// this set marks the volume as corrupt.
type FileType uint8

const (
	TypeFnodeFile       FileType = 0
	TypeFreeSpaceMap    FileType = 1
	TypeFreeFnodesMap   FileType = 2
	TypeSpaceAccounting FileType = 3
	TypeBadDeviceBlocks FileType = 4
	TypeDirectory       FileType = 6
	TypeData            FileType = 8
	TypeUnknown         FileType = 9
)

var fileTypeNames = map[FileType]string{
	TypeFnodeFile:       "fnode_file",
	TypeFreeSpaceMap:    "free_space_map",
	TypeFreeFnodesMap:   "free_fnodes_map",
	TypeSpaceAccounting: "space_accounting_file",
	TypeBadDeviceBlocks: "bad_device_blocks_file",
	TypeDirectory:       "directory",
	TypeData:            "data",
	TypeUnknown:         "unknown",
}

func (t FileType) String() string {
	name, ok := fileTypeNames[t]
	if ok {
		return name
	}
	return fmt.Sprintf("invalid(%d)", uint8(t))
}

func parseFileType(raw uint8) (FileType, irmxfs.DriverError) {
	fileType := FileType(raw)
	if _, ok := fileTypeNames[fileType]; !ok {
		return 0, irmxfs.ErrFileSystemCorrupted.WithMessage(
			fmt.Sprintf("unrecognized fnode type byte %d", raw))
	}
	return fileType, nil
}

// Flags is the decoded form of an fnode's 16-bit flag word. A node is live,
// and therefore visible to lookups, iff Allocated && !Deleted.
type Flags struct {
	Allocated bool
	LongFile  bool
	Modified  bool
	Deleted   bool
}

func parseFlags(raw uint16) Flags {
	return Flags{
		Allocated: raw&0x0001 != 0,
		LongFile:  raw&0x0002 != 0,
		Modified:  raw&0x0020 != 0,
		Deleted:   raw&0x0040 != 0,
	}
}

// ISOVolumeLabel is the ISO session label stored at byte 768. All fields are
// fixed at image-creation time.
type ISOVolumeLabel struct {
	Label            string
	Name             string
	Structure        string
	RecordingSide    int
	InterleaveFactor int
	Version          int
}

// VolumeInformation is the vendor volume-information block at byte 384.
// Every later computation (block addressing, fnode table slicing) depends on
// these fields.
type VolumeInformation struct {
	Name       string
	FileDriver uint8
	BlockSize  uint16
	// VolumeSize is the size of the volume, in blocks.
	VolumeSize uint32
	NumFnodes  uint16
	// FnodeStart is the byte offset of the fnode table. The format's own
	// documentation calls this a block number, but every known implementation
	// stores a raw byte offset here.
	FnodeStart uint32
	FnodeSize  uint16
	RootFnode  uint16
}

// BlockPointer is one (block count, first block) extent of a node's content.
// The node's content is the concatenation of its pointers' byte ranges in
// array order.
type BlockPointer struct {
	NumBlocks  uint32
	FirstBlock uint32
}

// decode24BitAddress zero-extends a 3-byte little-endian block address.
func decode24BitAddress(raw []byte) uint32 {
	return uint32(raw[0]) | uint32(raw[1])<<8 | uint32(raw[2])<<16
}

// decodeASCII validates that every byte is 7-bit ASCII and returns the string.
func decodeASCII(raw []byte) (string, error) {
	for _, b := range raw {
		if b > 0x7f {
			return "", fmt.Errorf("byte 0x%02x is not ASCII in %q", b, raw)
		}
	}
	return string(raw), nil
}

// decodeASCIIInt parses a fixed-width, space-padded run of ASCII digits.
func decodeASCIIInt(raw []byte) (int, error) {
	text, err := decodeASCII(raw)
	if err != nil {
		return 0, err
	}
	value, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		return 0, fmt.Errorf("%q is not a decimal integer", text)
	}
	return value, nil
}

func decodeISOVolumeLabel(raw []byte) (ISOVolumeLabel, irmxfs.DriverError) {
	formatError := func(field string, err error) irmxfs.DriverError {
		return irmxfs.ErrInvalidFileSystem.WithMessage(
			fmt.Sprintf("bad ISO volume label field %s: %s", field, err.Error()))
	}

	label, err := decodeASCII(raw[0:3])
	if err != nil {
		return ISOVolumeLabel{}, formatError("label", err)
	}
	name, err := decodeASCII(raw[4:10])
	if err != nil {
		return ISOVolumeLabel{}, formatError("name", err)
	}
	structure, err := decodeASCII(raw[10:11])
	if err != nil {
		return ISOVolumeLabel{}, formatError("structure", err)
	}
	side, err := decodeASCIIInt(raw[71:72])
	if err != nil {
		return ISOVolumeLabel{}, formatError("recording side", err)
	}
	interleave, err := decodeASCIIInt(raw[76:78])
	if err != nil {
		return ISOVolumeLabel{}, formatError("interleave factor", err)
	}
	version, err := decodeASCIIInt(raw[79:80])
	if err != nil {
		return ISOVolumeLabel{}, formatError("version", err)
	}

	return ISOVolumeLabel{
		Label:            strings.TrimSpace(label),
		Name:             strings.TrimSpace(name),
		Structure:        strings.TrimSpace(structure),
		RecordingSide:    side,
		InterleaveFactor: interleave,
		Version:          version,
	}, nil
}

func decodeVolumeInformation(raw []byte) (VolumeInformation, irmxfs.DriverError) {
	name, err := decodeASCII(raw[0:10])
	if err != nil {
		return VolumeInformation{}, irmxfs.ErrInvalidFileSystem.WithMessage(
			fmt.Sprintf("bad volume name: %s", err.Error()))
	}

	return VolumeInformation{
		Name:       strings.Trim(name, "\x00"),
		FileDriver: raw[11],
		BlockSize:  binary.LittleEndian.Uint16(raw[12:14]),
		VolumeSize: binary.LittleEndian.Uint32(raw[14:18]),
		NumFnodes:  binary.LittleEndian.Uint16(raw[18:20]),
		FnodeStart: binary.LittleEndian.Uint32(raw[20:24]),
		FnodeSize:  binary.LittleEndian.Uint16(raw[24:26]),
		RootFnode:  binary.LittleEndian.Uint16(raw[26:28]),
	}, nil
}
