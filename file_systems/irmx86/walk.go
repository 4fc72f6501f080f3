package irmx86

import (
	gopath "path"
)

// WalkStep is one directory visited during a tree walk: the directory's
// absolute path, its subdirectories and its files, both in on-disk order.
type WalkStep struct {
	Path        string
	Directories []*Directory
	Files       []*File
}

// Walker traverses the tree under a base directory depth-first, visiting
// subdirectories in the order they appear at each level. It is driven by an
// explicit worklist rather than recursion, so pathological tree depth cannot
// exhaust the call stack. The on-disk tree is assumed acyclic; a cyclic
// volume would walk forever.
//
// Usage follows the bufio.Scanner pattern:
//
//	walker, err := driver.Walk("/")
//	for walker.Next() {
//	    step := walker.Step()
//	    ...
//	}
//	if walker.Err() != nil { ... }
type Walker struct {
	driver  *Driver
	pending []string
	current WalkStep
	err     error
}

// Walk starts a depth-first traversal at the given base path, which must
// resolve to a directory.
func (d *Driver) Walk(base string) (*Walker, error) {
	if base == "" {
		base = d.cwd
	}
	abspath := d.Abspath(base)

	// Fail fast if the base is missing or not a directory.
	if _, err := d.GetDirectory(abspath); err != nil {
		return nil, err
	}

	return &Walker{
		driver:  d,
		pending: []string{abspath},
	}, nil
}

// Next advances to the next directory in the traversal. It returns false when
// the walk is exhausted or an error occurred; check Err afterwards.
func (w *Walker) Next() bool {
	if w.err != nil || len(w.pending) == 0 {
		return false
	}

	// Pop the top of the worklist.
	path := w.pending[len(w.pending)-1]
	w.pending = w.pending[:len(w.pending)-1]

	dir, err := w.driver.GetDirectory(path)
	if err != nil {
		w.err = err
		return false
	}

	step := WalkStep{Path: path}
	for _, name := range dir.Directories() {
		subdir, err := w.driver.GetDirectory(gopath.Join(path, name))
		if err != nil {
			w.err = err
			return false
		}
		step.Directories = append(step.Directories, subdir)
	}
	for _, name := range dir.Files() {
		file, err := w.driver.GetFile(gopath.Join(path, name))
		if err != nil {
			w.err = err
			return false
		}
		step.Files = append(step.Files, file)
	}

	// Push subdirectories in reverse so the first one encountered is the
	// next one visited.
	for i := len(step.Directories) - 1; i >= 0; i-- {
		w.pending = append(w.pending, step.Directories[i].Path)
	}

	w.current = step
	return true
}

// Step returns the directory produced by the last successful call to Next.
func (w *Walker) Step() WalkStep {
	return w.current
}

// Err returns the first error encountered during the walk, if any.
func (w *Walker) Err() error {
	return w.err
}
