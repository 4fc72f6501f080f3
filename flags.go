package irmxfs

// Access-right bits stored in a node's accessor list. For data files the
// "append" and "update" bits govern writing; for directories they govern
// adding and renaming entries.
const (
	AccessDelete = 1 << iota // 0001
	AccessRead
	AccessAppend
	AccessUpdate
)

const AccessAll = AccessDelete | AccessRead | AccessAppend | AccessUpdate

// String renders the accessor's rights in the compact "DRAU" notation used
// by the original operating system's directory listings.
func (a Accessor) String() string {
	buf := make([]byte, 0, 4)
	if a.Rights&AccessDelete != 0 {
		buf = append(buf, 'D')
	}
	if a.Rights&AccessRead != 0 {
		buf = append(buf, 'R')
	}
	if a.Rights&AccessAppend != 0 {
		buf = append(buf, 'A')
	}
	if a.Rights&AccessUpdate != 0 {
		buf = append(buf, 'U')
	}
	return string(buf)
}
