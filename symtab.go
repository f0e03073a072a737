package tbd

import (
	"bytes"
	"encoding/binary"
	"math/bits"

	"github.com/appsworld/go-tbd/pkg/container"
	"github.com/appsworld/go-tbd/types"
	"github.com/pkg/errors"
)

// An nlist is a symbol table entry of either width.
type nlist struct {
	Strx  uint32
	Type  types.NLType
	Sect  uint8
	Desc  types.NLDesc
	Value uint64
}

// A symbolTable is the nlist array of LC_SYMTAB.
type symbolTable struct {
	c     *container.Container
	off   uint64
	count uint32
}

func newSymbolTable(c *container.Container, symoff, nsyms uint32) (*symbolTable, error) {
	if nsyms == 0 {
		return &symbolTable{c: c}, nil
	}
	off := uint64(symoff)
	if off < c.HeaderSize() {
		return nil, errors.Wrapf(ErrInvalidSymbolTable, "symoff %#x overlaps the mach header", off)
	}
	hi, size := bits.Mul64(uint64(nsyms), entrySize(c))
	if hi != 0 {
		return nil, errors.Wrapf(ErrInvalidSymbolTable, "%d symbols overflow", nsyms)
	}
	if err := c.Check(off, size); err != nil {
		return nil, errors.Wrapf(ErrInvalidSymbolTable, "symoff %#x nsyms %d: %v", off, nsyms, err)
	}
	if size > maxTableSize {
		return nil, errors.Wrapf(ErrTooLarge, "symbol table is %d bytes", size)
	}
	return &symbolTable{c: c, off: off, count: nsyms}, nil
}

func entrySize(c *container.Container) uint64 {
	if c.Is64 {
		return types.Nlist64Size
	}
	return types.Nlist32Size
}

// Each decodes every entry in table order and calls fn. Iteration stops at
// the first error fn returns.
func (t *symbolTable) Each(fn func(n nlist) error) error {
	if t.count == 0 {
		return nil
	}
	dat, err := t.c.ReadAt(t.off, uint64(t.count)*entrySize(t.c))
	if err != nil {
		return err
	}
	r := bytes.NewReader(dat)
	bo := t.c.ByteOrder()
	for i := uint32(0); i < t.count; i++ {
		var n nlist
		if t.c.Is64 {
			var sym types.Nlist64
			if err := binary.Read(r, bo, &sym); err != nil {
				return errors.Wrapf(ErrInvalidSymbolTable, "failed to read nlist %d: %v", i, err)
			}
			n = nlist{sym.Name, sym.Type, sym.Sect, sym.Desc, sym.Value}
		} else {
			var sym types.Nlist32
			if err := binary.Read(r, bo, &sym); err != nil {
				return errors.Wrapf(ErrInvalidSymbolTable, "failed to read nlist %d: %v", i, err)
			}
			n = nlist{sym.Name, sym.Type, sym.Sect, sym.Desc, uint64(sym.Value)}
		}
		if err := fn(n); err != nil {
			return err
		}
	}
	return nil
}
