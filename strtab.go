package tbd

import (
	"bytes"

	"github.com/appsworld/go-tbd/pkg/container"
	"github.com/pkg/errors"
)

const (
	// maxTableSize bounds any table buffered in memory.
	maxTableSize = 1 << 31
	// strtabBufferLimit is the largest string table read in one piece.
	// Larger tables, like the shared linkedit of a dyld cache, are read a
	// chunk at a time.
	strtabBufferLimit = 4 << 20
	strtabChunk       = 256
)

// A stringTable is a lazily loaded view of LC_SYMTAB's string table.
// Strings are addressed by byte offset into the table.
type stringTable struct {
	c    *container.Container
	off  uint64
	size uint64
	buf  []byte
}

func newStringTable(c *container.Container, stroff, strsize uint32) (*stringTable, error) {
	off, size := uint64(stroff), uint64(strsize)
	switch {
	case off < c.HeaderSize():
		return nil, errors.Wrapf(ErrInvalidStringTable, "stroff %#x overlaps the mach header", off)
	case off >= c.Size:
		return nil, errors.Wrapf(ErrInvalidStringTable, "stroff %#x is past the end of the container (%#x)", off, c.Size)
	case size == 0:
		return nil, errors.Wrap(ErrInvalidStringTable, "strsize is zero")
	}
	if err := c.Check(off, size); err != nil {
		return nil, errors.Wrapf(ErrInvalidStringTable, "stroff %#x strsize %#x: %v", off, size, err)
	}
	if size > maxTableSize {
		return nil, errors.Wrapf(ErrTooLarge, "string table is %d bytes", size)
	}

	t := &stringTable{c: c, off: off, size: size}
	first, err := t.read(0, 1)
	if err != nil {
		return nil, err
	}
	if first[0] != 0 {
		return nil, errors.Wrap(ErrInvalidStringTable, "string table does not begin with a NUL byte")
	}
	return t, nil
}

// read returns length bytes at table offset i. Small tables are buffered
// on first use.
func (t *stringTable) read(i, length uint64) ([]byte, error) {
	if t.buf == nil && t.size <= strtabBufferLimit {
		buf, err := t.c.ReadAt(t.off, t.size)
		if err != nil {
			return nil, err
		}
		t.buf = buf
	}
	if t.buf != nil {
		return t.buf[i : i+length], nil
	}
	return t.c.ReadAt(t.off+i, length)
}

// At returns the string starting at table offset i. A string without a
// terminator ends at the end of the table.
func (t *stringTable) At(i uint32) (string, error) {
	idx := uint64(i)
	if idx >= t.size {
		return "", errors.Wrapf(ErrInvalidStringIndex, "index %d (table size %d)", i, t.size)
	}
	var name []byte
	for idx < t.size {
		n := min(uint64(strtabChunk), t.size-idx)
		chunk, err := t.read(idx, n)
		if err != nil {
			return "", err
		}
		if j := bytes.IndexByte(chunk, 0); j >= 0 {
			return string(append(name, chunk[:j]...)), nil
		}
		name = append(name, chunk...)
		idx += n
	}
	return string(name), nil
}

// Next returns the offset of the string following the one at i, or false
// at the end of the table.
func (t *stringTable) Next(i uint32) (uint32, bool, error) {
	s, err := t.At(i)
	if err != nil {
		return 0, false, err
	}
	next := uint64(i) + uint64(len(s)) + 1
	if next >= t.size {
		return 0, false, nil
	}
	return uint32(next), true, nil
}

// Prev returns the offset of the string preceding the one at i, or false
// when i is the first string of the table.
func (t *stringTable) Prev(i uint32) (uint32, bool, error) {
	idx := uint64(i)
	if idx >= t.size {
		return 0, false, errors.Wrapf(ErrInvalidStringIndex, "index %d (table size %d)", i, t.size)
	}
	if idx == 0 {
		return 0, false, nil
	}
	// idx-1 is the previous terminator, or the previous string's last byte
	// when i points into the middle of a string.
	end := idx - 1
	for end > 0 {
		start := end - min(uint64(strtabChunk), end)
		chunk, err := t.read(start, end-start)
		if err != nil {
			return 0, false, err
		}
		if j := bytes.LastIndexByte(chunk, 0); j >= 0 {
			return uint32(start + uint64(j) + 1), true, nil
		}
		end = start
	}
	return 0, true, nil
}
