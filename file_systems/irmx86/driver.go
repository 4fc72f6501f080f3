package irmx86

import (
	"fmt"
	"io"
	"time"

	"github.com/boljen/go-bitmap"
	"github.com/irmxtools/irmxfs"
	c "github.com/irmxtools/irmxfs/file_systems/common"
	"github.com/irmxtools/irmxfs/file_systems/common/blockcache"
)

// Driver is a read-only driver for one iRMX 86 volume image. A driver is a
// session: it exclusively owns its image stream from Mount until Unmount, and
// its lookup caches never outlive it. Drivers are meant for single-threaded,
// synchronous use.
type Driver struct {
	stream  io.ReadSeeker
	epoch   time.Time
	mounted bool

	isoLabel   ISOVolumeLabel
	volumeInfo VolumeInformation
	image      c.DiskImage

	// fnodes maps node id to node for every live node; deleted and
	// unallocated table slots are never inserted.
	fnodes map[uint16]*FNode
	root   *FNode

	cwd       string
	pathCache map[string]*FNode
	dirCache  map[uint16]*dirEntries
}

// Interface guard.
var _ irmxfs.Driver = (*Driver)(nil)

// NewDriverFromStream creates an unmounted driver over a volume image, using
// the default timestamp epoch.
func NewDriverFromStream(stream io.ReadSeeker) *Driver {
	return NewDriverFromStreamWithEpoch(stream, DefaultEpoch)
}

// NewDriverFromStreamWithEpoch creates an unmounted driver whose fnode
// timestamps are resolved against the given epoch.
func NewDriverFromStreamWithEpoch(stream io.ReadSeeker, epoch time.Time) *Driver {
	return &Driver{
		stream: stream,
		epoch:  epoch,
	}
}

// Mount decodes both volume descriptors and loads the entire fnode table.
// There is no partial-success mode: any descriptor or table decoding failure
// leaves the driver unusable.
func (d *Driver) Mount() irmxfs.DriverError {
	if d.mounted {
		return irmxfs.ErrAlreadyInProgress
	}

	rawLabel, err := d.readAt(isoLabelOffset, isoLabelSize)
	if err != nil {
		return err
	}
	isoLabel, err := decodeISOVolumeLabel(rawLabel)
	if err != nil {
		return err
	}

	rawInfo, err := d.readAt(volumeInfoOffset, volumeInfoSize)
	if err != nil {
		return err
	}
	volumeInfo, err := decodeVolumeInformation(rawInfo)
	if err != nil {
		return err
	}

	if volumeInfo.BlockSize == 0 || volumeInfo.VolumeSize == 0 {
		return irmxfs.ErrInvalidFileSystem.WithMessage(fmt.Sprintf(
			"implausible geometry: %d blocks of %d bytes",
			volumeInfo.VolumeSize, volumeInfo.BlockSize))
	}
	if volumeInfo.FnodeSize < fnodeHeaderSize {
		return irmxfs.ErrFileSystemCorrupted.WithMessage(fmt.Sprintf(
			"declared fnode size %d is smaller than the %d-byte fixed layout",
			volumeInfo.FnodeSize, fnodeHeaderSize))
	}

	d.isoLabel = isoLabel
	d.volumeInfo = volumeInfo
	d.image = blockcache.WrapStream(
		d.stream, uint(volumeInfo.BlockSize), uint(volumeInfo.VolumeSize))

	loadErr := d.loadFnodeTable()
	if loadErr != nil {
		return loadErr
	}

	root, ok := d.fnodes[volumeInfo.RootFnode]
	if !ok {
		return irmxfs.ErrFileSystemCorrupted.WithMessage(fmt.Sprintf(
			"root fnode %d is not allocated", volumeInfo.RootFnode))
	}
	if !root.IsDirectory() {
		return irmxfs.ErrFileSystemCorrupted.WithMessage(fmt.Sprintf(
			"root fnode %d has type %s, not directory",
			volumeInfo.RootFnode, root.Type))
	}

	d.root = root
	d.cwd = "/"
	d.pathCache = make(map[string]*FNode)
	d.dirCache = make(map[uint16]*dirEntries)
	d.mounted = true
	return nil
}

// Unmount drops the session's caches and releases the image stream. The
// driver must not be used afterwards.
func (d *Driver) Unmount() irmxfs.DriverError {
	if !d.mounted {
		return irmxfs.ErrNotMounted
	}

	d.pathCache = nil
	d.dirCache = nil
	d.fnodes = nil
	d.root = nil
	d.image = nil
	d.mounted = false

	if closer, ok := d.stream.(io.Closer); ok {
		err := closer.Close()
		if err != nil {
			return irmxfs.ErrIOFailed.Wrap(err)
		}
	}
	d.stream = nil
	return nil
}

// ISOLabel returns the session label decoded at mount.
func (d *Driver) ISOLabel() ISOVolumeLabel {
	return d.isoLabel
}

// VolumeInformation returns the volume-information block decoded at mount.
func (d *Driver) VolumeInformation() VolumeInformation {
	return d.volumeInfo
}

// Epoch returns the date this session resolves fnode timestamps against.
func (d *Driver) Epoch() time.Time {
	return d.epoch
}

// readAt reads exactly `length` bytes at absolute byte offset `offset` in the
// image, restoring the stream position afterwards so probe reads never
// disturb other users of the stream.
func (d *Driver) readAt(offset int64, length int) ([]byte, irmxfs.DriverError) {
	originalPosition, err := d.stream.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, irmxfs.ErrIOFailed.Wrap(err)
	}

	if _, err = d.stream.Seek(offset, io.SeekStart); err != nil {
		return nil, irmxfs.ErrIOFailed.Wrap(err)
	}

	buffer := make([]byte, length)
	if _, err = io.ReadFull(d.stream, buffer); err != nil {
		return nil, irmxfs.ErrIOFailed.WithMessage(fmt.Sprintf(
			"short read of %d bytes at offset %d: %s", length, offset, err.Error()))
	}

	if _, err = d.stream.Seek(originalPosition, io.SeekStart); err != nil {
		return nil, irmxfs.ErrIOFailed.Wrap(err)
	}
	return buffer, nil
}

// loadFnodeTable reads the whole fnode table in one pass and decodes every
// record, keeping only live nodes.
func (d *Driver) loadFnodeTable() irmxfs.DriverError {
	info := d.volumeInfo
	tableSize := int(info.NumFnodes) * int(info.FnodeSize)

	raw, err := d.readAt(int64(info.FnodeStart), tableSize)
	if err != nil {
		return err.WithMessage("reading fnode table")
	}

	d.fnodes = make(map[uint16]*FNode, info.NumFnodes)
	for id := uint16(0); id < info.NumFnodes; id++ {
		start := int(id) * int(info.FnodeSize)
		record := raw[start : start+int(info.FnodeSize)]

		fnode, inline, err := decodeFNode(record, id, d.epoch)
		if err != nil {
			return err
		}
		if !fnode.IsLive() {
			continue
		}

		fnode.BlockPointers, err = d.resolvePointers(fnode.Flags, inline)
		if err != nil {
			return err.WithMessage(fmt.Sprintf("expanding pointers of fnode %d", id))
		}
		d.fnodes[id] = fnode
	}
	return nil
}

// FSStat reports volume statistics. Free-block counts come from the volume's
// own free-space-map node; a volume without one reports zero free blocks.
func (d *Driver) FSStat() irmxfs.FSStat {
	freeBlocks := uint64(0)
	if freeMap := d.findFreeSpaceMap(); freeMap != nil {
		data, err := d.contentOf(freeMap)
		if err == nil {
			// A set bit marks a free block.
			freeBitmap := bitmap.Bitmap(data)
			limit := int(d.volumeInfo.VolumeSize)
			if limit > len(data)*8 {
				limit = len(data) * 8
			}
			for i := 0; i < limit; i++ {
				if freeBitmap.Get(i) {
					freeBlocks++
				}
			}
		}
	}

	return irmxfs.FSStat{
		BlockSize:     uint(d.volumeInfo.BlockSize),
		TotalBlocks:   uint64(d.volumeInfo.VolumeSize),
		BlocksFree:    freeBlocks,
		Files:         uint64(len(d.fnodes)),
		FilesFree:     uint64(d.volumeInfo.NumFnodes) - uint64(len(d.fnodes)),
		MaxNameLength: maxNameLength,
	}
}

func (d *Driver) findFreeSpaceMap() *FNode {
	var found *FNode
	for _, fnode := range d.fnodes {
		if fnode.Type != TypeFreeSpaceMap {
			continue
		}
		if found == nil || fnode.ID < found.ID {
			found = fnode
		}
	}
	return found
}

// GetFSFeatures describes the format's static capabilities.
func (d *Driver) GetFSFeatures() irmxfs.FSFeatures {
	return irmxfs.FSFeatures{
		HasCreatedTime:      true,
		HasAccessedTime:     true,
		HasDirectories:      true,
		HasAccessControl:    true,
		HasUserID:           true,
		IsReadOnly:          true,
		TimestampEpoch:      d.epoch,
		DefaultNameEncoding: "ascii",
		MaxNameLength:       maxNameLength,
	}
}
