// This file implements the irmxfs.ReadingDriver interface.
package irmx86

import (
	"github.com/irmxtools/irmxfs"
)

// ReadDir returns the entries of the directory at the given path, in the
// order their records appear on disk.
func (d *Driver) ReadDir(path string) ([]irmxfs.DirectoryEntry, error) {
	fnode, err := d.pathToFnode(path)
	if err != nil {
		return nil, err
	}

	entries, err := d.readDirectory(fnode)
	if err != nil {
		return nil, err
	}

	result := make([]irmxfs.DirectoryEntry, 0, len(entries.names))
	for _, name := range entries.names {
		target, _ := entries.get(name)
		result = append(result, irmxfs.NewDirectoryEntry(name, target.Stat()))
	}
	return result, nil
}

// ReadFile returns the contents of the file at the given path.
func (d *Driver) ReadFile(path string) ([]byte, error) {
	fnode, err := d.pathToFnode(path)
	if err != nil {
		return nil, err
	}
	if fnode.IsDirectory() {
		return nil, irmxfs.ErrIsADirectory.WithMessage(d.Abspath(path))
	}

	content, err := d.contentOf(fnode)
	if err != nil {
		return nil, err
	}
	return content, nil
}

// Stat returns information about the directory entry at the given path.
func (d *Driver) Stat(path string) (irmxfs.FileStat, error) {
	fnode, err := d.pathToFnode(path)
	if err != nil {
		return irmxfs.FileStat{}, err
	}
	return fnode.Stat(), nil
}
