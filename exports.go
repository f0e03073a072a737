package tbd

import (
	"github.com/appsworld/go-tbd/pkg/container"
	"github.com/appsworld/go-tbd/pkg/trie"
	"github.com/appsworld/go-tbd/types"
	"github.com/pkg/errors"
)

// readExportTrie adds the symbols of the dyld export trie. Every trie
// entry is externally visible, so no private symbol filter applies.
func (res *containerResult) readExportTrie(c *container.Container, t linkedit) error {
	off, size := uint64(t.off), uint64(t.size)
	if size > maxTableSize {
		return errors.Wrapf(ErrTooLarge, "export trie is %d bytes", size)
	}
	dat, err := c.ReadData(off, size)
	if err != nil {
		if errors.Is(err, container.ErrInvalidRange) || errors.Is(err, container.ErrOverlapsHeader) {
			return errors.Wrapf(ErrInvalidExportTrie, "offset %#x size %#x: %v", off, size, err)
		}
		return err
	}
	exports, err := trie.Parse(dat)
	if err != nil {
		return errors.Wrapf(ErrInvalidExportTrie, "%v", err)
	}
	for _, e := range exports {
		var desc types.NLDesc
		if e.Flags.WeakDefinition() {
			desc |= types.N_WEAK_DEF
		}
		kind, name := Classify(e.Name, desc)
		res.addSymbol(name, kind)
	}
	return nil
}
