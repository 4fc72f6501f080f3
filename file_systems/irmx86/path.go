package irmx86

import (
	gopath "path"
	"strings"

	"github.com/irmxtools/irmxfs"
)

// Abspath resolves a path against the session's current working directory.
// Absolute paths are returned unchanged.
func (d *Driver) Abspath(path string) string {
	if strings.HasPrefix(path, "/") {
		return path
	}
	return gopath.Join(d.cwd, path)
}

// pathToFnode walks a slash-separated path from the root node, one directory
// per segment. A missing name at any step reports the full resolved path, not
// the failing segment. An empty final segment (a trailing slash, or the root
// itself) yields the last directory reached.
func (d *Driver) pathToFnode(path string) (*FNode, irmxfs.DriverError) {
	if !d.mounted {
		return nil, irmxfs.ErrNotMounted
	}

	abspath := d.Abspath(path)
	if cached, ok := d.pathCache[abspath]; ok {
		return cached, nil
	}

	segments := strings.Split(abspath, "/")[1:]
	intermediate, final := segments[:len(segments)-1], segments[len(segments)-1]

	currentNode := d.root
	currentDir, err := d.readDirectory(d.root)
	if err != nil {
		return nil, err
	}

	for _, segment := range intermediate {
		next, ok := currentDir.get(segment)
		if !ok {
			return nil, irmxfs.ErrNotFound.WithMessage(abspath)
		}
		currentNode = next
		currentDir, err = d.readDirectory(next)
		if err != nil {
			return nil, err
		}
	}

	node := currentNode
	if final != "" {
		found, ok := currentDir.get(final)
		if !ok {
			return nil, irmxfs.ErrNotFound.WithMessage(abspath)
		}
		node = found
	}

	d.pathCache[abspath] = node
	return node, nil
}

// Cd changes the session's current working directory. Passing an empty path
// returns to the root.
func (d *Driver) Cd(path string) error {
	if path == "" {
		path = "/"
	}
	abspath := d.Abspath(path)

	fnode, err := d.pathToFnode(abspath)
	if err != nil {
		return err
	}
	if !fnode.IsDirectory() {
		return irmxfs.ErrNotADirectory.WithMessage(abspath)
	}

	d.cwd = abspath
	return nil
}

// Pwd returns the session's current working directory.
func (d *Driver) Pwd() string {
	return d.cwd
}

// Ls lists the names in a directory, in on-disk order. An empty path lists
// the current working directory; a path naming a data file lists just that
// path.
func (d *Driver) Ls(path string) ([]string, error) {
	if path == "" {
		path = d.cwd
	}
	abspath := d.Abspath(path)

	fnode, err := d.pathToFnode(abspath)
	if err != nil {
		return nil, err
	}
	if fnode.IsData() {
		return []string{abspath}, nil
	}

	entries, err := d.readDirectory(fnode)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(entries.names))
	copy(names, entries.names)
	return names, nil
}
