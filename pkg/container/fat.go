package container

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/appsworld/go-tbd/types"
	"github.com/pkg/errors"
)

// Open returns the containers of a thin or fat Mach-O file of the given size.
// Fat files yield one container per fat_arch entry, in table order.
func Open(r io.ReaderAt, size uint64) ([]*Container, error) {
	var ident [4]byte
	if size < uint64(len(ident)) {
		return nil, errors.Wrap(ErrNotMachO, "file too small")
	}
	if _, err := r.ReadAt(ident[:], 0); err != nil {
		return nil, errors.Wrapf(ErrReadFailed, "failed to read magic: %v", err)
	}

	switch types.Magic(binary.BigEndian.Uint32(ident[:])) {
	case types.MagicFat, types.MagicFat64:
		return openFat(r, size)
	}

	c, err := New(r, 0, size)
	if err != nil {
		return nil, err
	}
	return []*Container{c}, nil
}

// IsFat reports whether the first bytes of a file are a fat header.
func IsFat(ident []byte) bool {
	if len(ident) < 4 {
		return false
	}
	m := types.Magic(binary.BigEndian.Uint32(ident))
	return m == types.MagicFat || m == types.MagicFat64
}

func openFat(r io.ReaderAt, size uint64) ([]*Container, error) {
	file := Raw(r, size, binary.BigEndian)

	var hdr types.FatHeader
	if err := file.ReadStruct(0, &hdr); err != nil {
		return nil, errors.Wrap(err, "failed to read fat header")
	}
	// Java class files share the fat magic; their "count" is a version number.
	if hdr.Count == 0 || hdr.Count > types.MaxFatArchs {
		return nil, errors.Wrapf(ErrNotMachO, "implausible fat arch count %d", hdr.Count)
	}

	entSize := uint64(types.FatArchSize)
	if hdr.Magic == types.MagicFat64 {
		entSize = types.FatArch64Size
	}
	tbl, err := file.ReadAt(types.FatHeaderSize, uint64(hdr.Count)*entSize)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read fat arch table")
	}
	tableEnd := types.FatHeaderSize + uint64(hdr.Count)*entSize

	br := bytes.NewReader(tbl)
	cs := make([]*Container, 0, hdr.Count)
	for i := uint32(0); i < hdr.Count; i++ {
		var fa types.FatArch64
		if hdr.Magic == types.MagicFat64 {
			if err := binary.Read(br, binary.BigEndian, &fa); err != nil {
				return nil, errors.Wrapf(ErrReadFailed, "fat arch %d: %v", i, err)
			}
		} else {
			var fa32 types.FatArch
			if err := binary.Read(br, binary.BigEndian, &fa32); err != nil {
				return nil, errors.Wrapf(ErrReadFailed, "fat arch %d: %v", i, err)
			}
			fa = types.FatArch64{
				CPU:    fa32.CPU,
				SubCPU: fa32.SubCPU,
				Offset: uint64(fa32.Offset),
				Size:   uint64(fa32.Size),
				Align:  fa32.Align,
			}
		}

		if fa.Size == 0 || fa.Offset < tableEnd || fa.Align > types.MaxFatAlign {
			return nil, errors.Wrapf(ErrInvalidFatArch, "arch %d (%s): offset %#x size %#x align 2^%d", i, fa.CPU, fa.Offset, fa.Size, fa.Align)
		}
		if err := file.Check(fa.Offset, fa.Size); err != nil {
			return nil, errors.Wrapf(ErrInvalidFatArch, "arch %d (%s): %v", i, fa.CPU, err)
		}

		c, err := New(r, fa.Offset, fa.Size)
		if err != nil {
			return nil, errors.Wrapf(err, "fat arch %d", i)
		}
		if c.CPU != fa.CPU {
			return nil, errors.Wrapf(ErrInvalidFatArch, "arch %d: fat table says %s, mach header says %s", i, fa.CPU, c.CPU)
		}
		cs = append(cs, c)
	}

	return cs, nil
}
