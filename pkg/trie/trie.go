// Package trie decodes the dyld export trie of LC_DYLD_INFO and
// LC_DYLD_EXPORTS_TRIE.
package trie

import (
	"bytes"
	"fmt"
	"io"

	"github.com/appsworld/go-tbd/types"
	"github.com/pkg/errors"
)

// ErrMalformed is returned for a trie that cannot be walked.
var ErrMalformed = errors.New("malformed export trie")

// maxSymbolLength bounds the name accumulated along one path.
const maxSymbolLength = 32768

// An Export is one terminal node of an export trie.
type Export struct {
	Name     string
	Flags    types.ExportFlag
	Address  uint64
	Other    uint64 // library ordinal of a re-export, resolver of a stub
	ReExport string // imported name of a re-export, "" if unchanged
}

func (e Export) String() string {
	switch {
	case e.Flags.ReExport():
		if e.ReExport != "" {
			return fmt.Sprintf("%s (re-exported from ordinal %d as %s)", e.Name, e.Other, e.ReExport)
		}
		return fmt.Sprintf("%s (re-exported from ordinal %d)", e.Name, e.Other)
	case e.Flags.StubAndResolver():
		return fmt.Sprintf("%#016x: %s (resolver %#x)", e.Address, e.Name, e.Other)
	}
	return fmt.Sprintf("%#016x: %s", e.Address, e.Name)
}

type node struct {
	offset uint64
	prefix []byte
}

// ReadUleb128 reads one unsigned LEB128 value.
func ReadUleb128(r *bytes.Reader) (uint64, error) {
	var result uint64
	var shift uint
	for {
		b, err := r.ReadByte()
		if err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return 0, errors.Wrap(ErrMalformed, err.Error())
		}
		if shift >= 64 || (shift == 63 && b&0x7e != 0) {
			return 0, errors.Wrap(ErrMalformed, "uleb128 overflows 64 bits")
		}
		result |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return result, nil
		}
		shift += 7
	}
}

func readCString(r *bytes.Reader, dst []byte) ([]byte, error) {
	for {
		b, err := r.ReadByte()
		if err != nil {
			return nil, errors.Wrap(ErrMalformed, "unterminated string")
		}
		if b == 0 {
			return dst, nil
		}
		if len(dst) >= maxSymbolLength {
			return nil, errors.Wrapf(ErrMalformed, "symbol longer than %d bytes", maxSymbolLength)
		}
		dst = append(dst, b)
	}
}

// Parse walks the trie in data and returns every exported symbol.
// Every node is visited at most once, so a trie with cycles or shared
// children is rejected.
func Parse(data []byte) ([]Export, error) {
	if len(data) == 0 {
		return nil, nil
	}

	var exports []Export
	visited := make(map[uint64]bool)
	nodes := []node{{offset: 0}}
	r := bytes.NewReader(data)

	for len(nodes) > 0 {
		n := nodes[len(nodes)-1]
		nodes = nodes[:len(nodes)-1]

		if n.offset >= uint64(len(data)) {
			return nil, errors.Wrapf(ErrMalformed, "node offset %#x is past the end of the trie (%#x)", n.offset, len(data))
		}
		if visited[n.offset] {
			return nil, errors.Wrapf(ErrMalformed, "node %#x is reachable more than once", n.offset)
		}
		visited[n.offset] = true

		r.Seek(int64(n.offset), io.SeekStart)
		terminalSize, err := ReadUleb128(r)
		if err != nil {
			return nil, err
		}
		// children follow the terminal info
		childOff := uint64(len(data)) - uint64(r.Len())
		if terminalSize > uint64(r.Len()) {
			return nil, errors.Wrapf(ErrMalformed, "terminal at %#x is %d bytes", n.offset, terminalSize)
		}
		childOff += terminalSize

		if terminalSize != 0 {
			e, err := readTerminal(bytes.NewReader(data[childOff-terminalSize:childOff]))
			if err != nil {
				return nil, errors.Wrapf(err, "terminal at %#x", n.offset)
			}
			e.Name = string(n.prefix)
			exports = append(exports, e)
		}

		if childOff >= uint64(len(data)) {
			return nil, errors.Wrapf(ErrMalformed, "node %#x has no child count", n.offset)
		}
		r.Seek(int64(childOff), io.SeekStart)
		count, _ := r.ReadByte()
		for i := 0; i < int(count); i++ {
			prefix, err := readCString(r, append([]byte(nil), n.prefix...))
			if err != nil {
				return nil, err
			}
			off, err := ReadUleb128(r)
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, node{offset: off, prefix: prefix})
		}
	}

	return exports, nil
}

func readTerminal(r *bytes.Reader) (Export, error) {
	var e Export
	flags, err := ReadUleb128(r)
	if err != nil {
		return e, err
	}
	e.Flags = types.ExportFlag(flags)

	switch {
	case e.Flags.ReExport():
		if e.Other, err = ReadUleb128(r); err != nil {
			return e, err
		}
		name, err := readCString(r, nil)
		if err != nil {
			return e, err
		}
		e.ReExport = string(name)
	case e.Flags.StubAndResolver():
		if e.Address, err = ReadUleb128(r); err != nil {
			return e, err
		}
		if e.Other, err = ReadUleb128(r); err != nil {
			return e, err
		}
	default:
		if e.Address, err = ReadUleb128(r); err != nil {
			return e, err
		}
	}
	return e, nil
}
