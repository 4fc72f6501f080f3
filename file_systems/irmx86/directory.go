package irmx86

import (
	"encoding/binary"
	"fmt"
	"log"
	"strings"

	"github.com/irmxtools/irmxfs"
)

// dirEntries is a directory's decoded content: a name-to-node mapping that
// remembers the order names first appeared on disk. Duplicate names keep
// their original position but take the later record's node (last record
// wins, matching the reference behavior).
type dirEntries struct {
	names []string
	nodes map[string]*FNode
}

func newDirEntries() *dirEntries {
	return &dirEntries{nodes: make(map[string]*FNode)}
}

func (e *dirEntries) put(name string, fnode *FNode) {
	if _, exists := e.nodes[name]; !exists {
		e.names = append(e.names, name)
	}
	e.nodes[name] = fnode
}

func (e *dirEntries) get(name string) (*FNode, bool) {
	fnode, ok := e.nodes[name]
	return fnode, ok
}

// readDirectory decodes a directory node's content into its entry list.
// Directory content is assembled exactly like any file's content, then
// interpreted as a run of 16-byte (node id, 14-byte name) records.
//
// Undecodable or dangling records are not errors: the volume may carry
// bookkeeping nodes and stale slots that must never surface as browsable
// entries. Such records are skipped with a warning, and the remaining
// entries still resolve.
func (d *Driver) readDirectory(fnode *FNode) (*dirEntries, irmxfs.DriverError) {
	if !fnode.IsDirectory() {
		return nil, irmxfs.ErrNotADirectory.WithMessage(fmt.Sprintf(
			"fnode %d has type %s", fnode.ID, fnode.Type))
	}

	if cached, ok := d.dirCache[fnode.ID]; ok {
		return cached, nil
	}

	data, err := d.contentOf(fnode)
	if err != nil {
		return nil, err
	}

	entries := newDirEntries()
	for start := 0; start+direntSize <= len(data); start += direntSize {
		record := data[start : start+direntSize]
		id := binary.LittleEndian.Uint16(record[0:2])
		rawName := record[2:direntSize]

		if isFreeSlot(rawName) {
			continue
		}

		name, decodeErr := decodeASCII(rawName)
		if decodeErr != nil {
			log.Printf(
				"warning: skipping directory entry %q (fnode %d) in directory %d: %s",
				rawName, id, fnode.ID, decodeErr.Error())
			continue
		}
		name = strings.Trim(name, "\x00")

		target, ok := d.fnodes[id]
		if !ok {
			log.Printf(
				"warning: directory %d entry %q references fnode %d, which is not allocated",
				fnode.ID, name, id)
			continue
		}
		if !target.isBrowsable() {
			log.Printf(
				"warning: directory %d entry %q references fnode %d of type %s",
				fnode.ID, name, id, target.Type)
			continue
		}

		entries.put(name, target)
	}

	d.dirCache[fnode.ID] = entries
	return entries, nil
}

// isFreeSlot reports whether a name field is the reserved all-'@' fill
// pattern marking an unused directory slot.
func isFreeSlot(rawName []byte) bool {
	for _, b := range rawName {
		if b != direntFillByte {
			return false
		}
	}
	return true
}
