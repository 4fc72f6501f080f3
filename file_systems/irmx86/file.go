package irmx86

import (
	gopath "path"
	"time"

	"github.com/irmxtools/irmxfs"
)

// File is a handle to one data file on the volume.
type File struct {
	driver *Driver
	fnode  *FNode

	// Path is the absolute path the handle was opened with.
	Path string
}

// GetFile resolves a path to a data file handle.
func (d *Driver) GetFile(path string) (*File, error) {
	abspath := d.Abspath(path)

	fnode, err := d.pathToFnode(abspath)
	if err != nil {
		return nil, err
	}
	if !fnode.IsData() {
		return nil, irmxfs.ErrIsADirectory.WithMessage(abspath)
	}

	return &File{driver: d, fnode: fnode, Path: abspath}, nil
}

// Name returns the file's base name.
func (f *File) Name() string {
	return gopath.Base(f.Path)
}

// Read assembles and returns the file's entire content.
func (f *File) Read() ([]byte, error) {
	content, err := f.driver.contentOf(f.fnode)
	if err != nil {
		return nil, err
	}
	return content, nil
}

// Stat returns the file's metadata.
func (f *File) Stat() irmxfs.FileStat {
	return f.fnode.Stat()
}

// CreationTime returns the file's creation timestamp.
func (f *File) CreationTime() time.Time {
	return f.fnode.CreationTime
}

// AccessTime returns the file's last-access timestamp.
func (f *File) AccessTime() time.Time {
	return f.fnode.AccessTime
}

// ModificationTime returns the file's last-modification timestamp.
func (f *File) ModificationTime() time.Time {
	return f.fnode.ModificationTime
}

// Directory is a handle to one directory on the volume. Its entries are
// partitioned into files and subdirectories once, at construction, by each
// entry's node type.
type Directory struct {
	driver *Driver
	fnode  *FNode

	// Path is the absolute path the handle was opened with.
	Path string

	files       []string
	directories []string
}

// GetDirectory resolves a path to a directory handle.
func (d *Driver) GetDirectory(path string) (*Directory, error) {
	abspath := d.Abspath(path)

	fnode, err := d.pathToFnode(abspath)
	if err != nil {
		return nil, err
	}

	entries, err := d.readDirectory(fnode)
	if err != nil {
		return nil, err
	}

	dir := &Directory{driver: d, fnode: fnode, Path: abspath}
	for _, name := range entries.names {
		target, _ := entries.get(name)
		switch {
		case target.IsData():
			dir.files = append(dir.files, name)
		case target.IsDirectory():
			dir.directories = append(dir.directories, name)
		}
	}
	return dir, nil
}

// Name returns the directory's base name.
func (dir *Directory) Name() string {
	return gopath.Base(dir.Path)
}

// Files returns the names of the directory's data files, in on-disk order.
func (dir *Directory) Files() []string {
	return dir.files
}

// Directories returns the names of the directory's subdirectories, in
// on-disk order.
func (dir *Directory) Directories() []string {
	return dir.directories
}

// Stat returns the directory's metadata.
func (dir *Directory) Stat() irmxfs.FileStat {
	return dir.fnode.Stat()
}
