// Package container exposes the architecture slices of a Mach-O file as
// bounds-checked byte ranges.
package container

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"math/bits"

	"github.com/appsworld/go-tbd/types"
	"github.com/pkg/errors"
)

var (
	ErrInvalidRange   = errors.New("range lies outside of the container")
	ErrOverlapsHeader = errors.New("range overlaps the mach header or load commands")
	ErrSeekFailed     = errors.New("failed to seek")
	ErrReadFailed     = errors.New("failed to read")
	ErrNotMachO       = errors.New("not a mach-o file")
	ErrInvalidFatArch = errors.New("invalid fat arch")
)

// A Container is one architecture's Mach-O image inside a larger stream.
//
// File offsets stored in the image (symbol table, sections, export info) are
// relative to Base and must fall inside [0, Size). The mach header itself
// starts HeaderOffset bytes past Base: zero for thin and fat slices, the
// image's file offset for images embedded in a dyld shared cache.
type Container struct {
	types.FileHeader

	Is64         bool
	BigEndian    bool
	Base         uint64
	Size         uint64
	HeaderOffset uint64

	r io.ReaderAt
}

// New reads the mach header of a slice occupying [base, base+size) of r.
func New(r io.ReaderAt, base, size uint64) (*Container, error) {
	return NewAt(r, base, size, 0)
}

// NewAt is New for images whose header is not at the start of the range.
func NewAt(r io.ReaderAt, base, size, headerOffset uint64) (*Container, error) {
	c := &Container{Base: base, Size: size, HeaderOffset: headerOffset, r: r}

	ident, err := c.ReadAt(headerOffset, 4)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read magic")
	}

	be := binary.BigEndian.Uint32(ident)
	le := binary.LittleEndian.Uint32(ident)
	switch types.Magic(be) {
	case types.Magic32:
		c.BigEndian = true
	case types.Magic64:
		c.BigEndian, c.Is64 = true, true
	default:
		switch types.Magic(le) {
		case types.Magic32:
		case types.Magic64:
			c.Is64 = true
		default:
			return nil, errors.Wrapf(ErrNotMachO, "invalid magic number %#x", be)
		}
	}

	hdr, err := c.ReadAt(headerOffset, c.HeaderSize())
	if err != nil {
		return nil, errors.Wrap(err, "failed to read mach header")
	}
	bo := c.ByteOrder()
	c.Magic = types.Magic(bo.Uint32(hdr[0:]))
	c.CPU = types.CPU(bo.Uint32(hdr[4:]))
	c.SubCPU = types.CPUSubtype(bo.Uint32(hdr[8:]))
	c.Type = types.HeaderFileType(bo.Uint32(hdr[12:]))
	c.NCommands = bo.Uint32(hdr[16:])
	c.SizeCommands = bo.Uint32(hdr[20:])
	c.Flags = types.HeaderFlag(bo.Uint32(hdr[24:]))
	if c.Is64 {
		c.Reserved = bo.Uint32(hdr[28:])
	}

	return c, nil
}

// Raw returns a header-less range over [0, size) of r, used to bounds-check
// reads of wrapper formats such as fat headers and shared cache tables.
func Raw(r io.ReaderAt, size uint64, bo binary.ByteOrder) *Container {
	return &Container{Size: size, BigEndian: bo == binary.BigEndian, r: r}
}

// ByteOrder returns the byte order of the image's multi-byte fields.
func (c *Container) ByteOrder() binary.ByteOrder {
	if c.BigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// HeaderSize is the size of the mach header alone.
func (c *Container) HeaderSize() uint64 {
	if c.Is64 {
		return types.FileHeaderSize64
	}
	return types.FileHeaderSize32
}

// CommandsOffset is the container offset of the first load command.
func (c *Container) CommandsOffset() uint64 {
	return c.HeaderOffset + c.HeaderSize()
}

// HeaderEnd is the container offset just past the last load command.
func (c *Container) HeaderEnd() uint64 {
	end, overflow := add(c.CommandsOffset(), uint64(c.SizeCommands))
	if overflow {
		return math.MaxUint64
	}
	return end
}

func (c *Container) String() string {
	return fmt.Sprintf("%s %s at %#x (%d bytes)", c.CPU, c.SubCPU.String(c.CPU), c.Base+c.HeaderOffset, c.Size)
}

func add(a, b uint64) (uint64, bool) {
	sum, carry := bits.Add64(a, b, 0)
	return sum, carry != 0
}
