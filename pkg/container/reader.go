package container

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"

	"github.com/pkg/errors"
)

// Check validates that [off, off+length) lies within the container.
func (c *Container) Check(off, length uint64) error {
	end, overflow := add(off, length)
	if overflow || end > c.Size {
		return errors.Wrapf(ErrInvalidRange, "offset %#x length %#x (container size %#x)", off, length, c.Size)
	}
	return nil
}

// ReadAt reads length bytes at container offset off.
// The range is validated before the underlying stream is touched.
func (c *Container) ReadAt(off, length uint64) ([]byte, error) {
	if err := c.Check(off, length); err != nil {
		return nil, err
	}
	abs, overflow := add(c.Base, off)
	if overflow || abs > math.MaxInt64 || length > math.MaxInt {
		return nil, errors.Wrapf(ErrSeekFailed, "offset %#x is not addressable", off)
	}

	dat := make([]byte, length)
	n, err := c.r.ReadAt(dat, int64(abs))
	if n == len(dat) {
		return dat, nil
	}
	if err == nil || err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return nil, errors.Wrapf(ErrReadFailed, "%d of %d bytes at %#x: %v", n, length, abs, err)
}

// ReadData is ReadAt for section contents: ranges overlapping the mach
// header or the load commands are rejected.
func (c *Container) ReadData(off, length uint64) ([]byte, error) {
	if err := c.Check(off, length); err != nil {
		return nil, err
	}
	end := off + length
	if length > 0 && off < c.HeaderEnd() && end > c.HeaderOffset {
		return nil, errors.Wrapf(ErrOverlapsHeader, "offset %#x length %#x", off, length)
	}
	return c.ReadAt(off, length)
}

// ReadStruct decodes the fixed size value v at container offset off using
// the image's byte order.
func (c *Container) ReadStruct(off uint64, v any) error {
	size := binary.Size(v)
	if size < 0 {
		return errors.Errorf("cannot decode %T", v)
	}
	dat, err := c.ReadAt(off, uint64(size))
	if err != nil {
		return err
	}
	if err := binary.Read(bytes.NewReader(dat), c.ByteOrder(), v); err != nil {
		return errors.Wrapf(ErrReadFailed, "failed to decode %T: %v", v, err)
	}
	return nil
}

// Uint32 reads a single uint32 at container offset off.
func (c *Container) Uint32(off uint64) (uint32, error) {
	dat, err := c.ReadAt(off, 4)
	if err != nil {
		return 0, err
	}
	return c.ByteOrder().Uint32(dat), nil
}
