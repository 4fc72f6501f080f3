package irmxfs

import (
	"time"
)

// ReadingDriver is the interface for drivers supporting read operations.
// Every driver in this module is read-only, so this is the whole
// path-addressed surface.
type ReadingDriver interface {
	// ReadDir returns the entries of the directory at the given path, in the
	// order they appear on disk.
	ReadDir(path string) ([]DirectoryEntry, error)
	// ReadFile returns the contents of the file at the given path.
	ReadFile(path string) ([]byte, error)
	// Stat returns information about the directory entry at the given path.
	Stat(path string) (FileStat, error)
}

// Driver is the interface for a mountable read-only volume driver.
type Driver interface {
	ReadingDriver

	// Mount initializes the driver from its disk image. It must be called
	// before any other method, and must not be called more than once;
	// drivers return an error on a second call.
	Mount() DriverError

	// Unmount releases all resources held for the image. The driver must not
	// be used after this function is called.
	Unmount() DriverError
}

// FSStat reports statistics for a mounted volume, in the spirit of statvfs(3).
type FSStat struct {
	// BlockSize is the size of a single volume block, in bytes.
	BlockSize uint
	// TotalBlocks is the declared size of the volume, in blocks.
	TotalBlocks uint64
	// BlocksFree is the number of unallocated blocks according to the
	// volume's own free-space accounting.
	BlocksFree uint64
	// Files is the number of allocated file nodes.
	Files uint64
	// FilesFree is the number of unused slots in the node table.
	FilesFree uint64
	// MaxNameLength is the longest file name the format can store.
	MaxNameLength uint
}

// FSFeatures describes the static properties of an on-disk format.
type FSFeatures struct {
	HasCreatedTime      bool
	HasAccessedTime     bool
	HasDirectories      bool
	HasAccessControl    bool
	HasUserID           bool
	IsReadOnly          bool
	TimestampEpoch      time.Time
	DefaultNameEncoding string
	MaxNameLength       uint
}

// Accessor is one entry of a file node's access list: a set of access-right
// bits (see flags.go) granted to a user or group id.
type Accessor struct {
	Rights uint8
	ID     uint16
}

// FileStat is a portable stat result carrying the metadata this format
// stores for a file node. Drivers fill every field they have a value for.
type FileStat struct {
	// NodeID is the index of the object's node in the volume's node table.
	NodeID   uint16
	ParentID uint16
	// Type is the format's name for the node type, e.g. "data" or "directory".
	Type  string
	IsDir bool
	// Size is the byte length of the object's content.
	Size int64
	// LogicalSize is the number of bytes reserved on disk for the object.
	LogicalSize int64
	Blocks      int64
	// Granularity is the node's allocation unit multiplier. It is preserved
	// as metadata and never interpreted here.
	Granularity uint
	Owner       uint16
	CreatedAt   time.Time
	AccessedAt  time.Time
	ModifiedAt  time.Time
	Accessors   []Accessor
}

// DirectoryEntry represents one file or directory encountered in a
// directory's on-disk record list.
type DirectoryEntry struct {
	name string
	Stat FileStat
}

// NewDirectoryEntry builds a DirectoryEntry from a name and its stat result.
func NewDirectoryEntry(name string, stat FileStat) DirectoryEntry {
	return DirectoryEntry{name: name, Stat: stat}
}

// Name returns the base name of the directory entry on the file system.
func (d DirectoryEntry) Name() string {
	return d.name
}

// IsDir returns true if the entry is a directory.
func (d DirectoryEntry) IsDir() bool {
	return d.Stat.IsDir
}

// Size returns the byte length of the entry's content.
func (d DirectoryEntry) Size() int64 {
	return d.Stat.Size
}

// ModTime returns the last-modification timestamp of the entry.
func (d DirectoryEntry) ModTime() time.Time {
	return d.Stat.ModifiedAt
}
