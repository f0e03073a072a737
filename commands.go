package tbd

import (
	"bytes"
	"encoding/binary"

	"github.com/appsworld/go-tbd/pkg/container"
	"github.com/appsworld/go-tbd/types"
	"github.com/pkg/errors"
)

// A loadCommand is one raw load command. Data holds exactly cmdsize bytes.
type loadCommand struct {
	Cmd    types.LoadCmd
	Offset uint64 // container offset of the command
	Data   []byte
	bo     binary.ByteOrder
}

// minCommandSize is the fixed part of every command the scanner decodes.
var minCommandSize = map[types.LoadCmd]int{
	types.LC_ID_DYLIB:             binary.Size(types.DylibCmd{}),
	types.LC_REEXPORT_DYLIB:       binary.Size(types.DylibCmd{}),
	types.LC_SUB_CLIENT:           binary.Size(types.SubClientCmd{}),
	types.LC_SUB_UMBRELLA:         binary.Size(types.SubUmbrellaCmd{}),
	types.LC_UUID:                 binary.Size(types.UUIDCmd{}),
	types.LC_SYMTAB:               binary.Size(types.SymtabCmd{}),
	types.LC_SEGMENT:              binary.Size(types.Segment32{}),
	types.LC_SEGMENT_64:           binary.Size(types.Segment64{}),
	types.LC_BUILD_VERSION:        binary.Size(types.BuildVersionCmd{}),
	types.LC_VERSION_MIN_MACOSX:   binary.Size(types.VersionMinCmd{}),
	types.LC_VERSION_MIN_IPHONEOS: binary.Size(types.VersionMinCmd{}),
	types.LC_VERSION_MIN_TVOS:     binary.Size(types.VersionMinCmd{}),
	types.LC_VERSION_MIN_WATCHOS:  binary.Size(types.VersionMinCmd{}),
	types.LC_DYLD_INFO:            binary.Size(types.DyldInfoCmd{}),
	types.LC_DYLD_INFO_ONLY:       binary.Size(types.DyldInfoCmd{}),
	types.LC_DYLD_EXPORTS_TRIE:    binary.Size(types.LinkEditDataCmd{}),
}

// walkCommands validates the load command area of c and calls fn for each
// command in file order. Commands the scanner does not decode are only
// checked for a well-formed size.
func walkCommands(c *container.Container, fn func(lc loadCommand) error) error {
	if c.HeaderEnd() > c.Size {
		return errors.Wrapf(ErrInvalidLoadCommands, "sizeofcmds %#x exceeds container size %#x", c.SizeCommands, c.Size)
	}
	dat, err := c.ReadAt(c.CommandsOffset(), uint64(c.SizeCommands))
	if err != nil {
		return err
	}

	bo := c.ByteOrder()
	off := c.CommandsOffset()
	for i := uint32(0); i < c.NCommands; i++ {
		if len(dat) < 8 {
			return errors.Wrapf(ErrInvalidLoadCommands, "command %d of %d is past sizeofcmds", i, c.NCommands)
		}
		cmd, siz := types.LoadCmd(bo.Uint32(dat[0:4])), bo.Uint32(dat[4:8])
		if siz < 8 || uint64(siz) > uint64(len(dat)) {
			return errors.Wrapf(ErrInvalidLoadCommand, "%s at %#x has size %d", cmd, off, siz)
		}
		if min, ok := minCommandSize[cmd]; ok && int(siz) < min {
			return errors.Wrapf(ErrInvalidLoadCommand, "%s at %#x is %d bytes, need at least %d", cmd, off, siz, min)
		}
		if err := fn(loadCommand{Cmd: cmd, Offset: off, Data: dat[:siz], bo: bo}); err != nil {
			return err
		}
		dat = dat[siz:]
		off += uint64(siz)
	}
	return nil
}

// decode reads the fixed part of the command into v.
func (lc loadCommand) decode(v any) error {
	if err := binary.Read(bytes.NewReader(lc.Data), lc.bo, v); err != nil {
		return errors.Wrapf(ErrInvalidLoadCommand, "failed to read %s: %v", lc.Cmd, err)
	}
	return nil
}

// str returns the NUL terminated string embedded at offset strOff. The
// string must start after the fixed part of the command and is bounded by
// cmdsize.
func (lc loadCommand) str(strOff uint32, fixed int) (string, error) {
	if strOff < uint32(fixed) || uint64(strOff) >= uint64(len(lc.Data)) {
		return "", errors.Wrapf(ErrInvalidLoadCommand, "%s at %#x has string offset %d", lc.Cmd, lc.Offset, strOff)
	}
	return types.CString(lc.Data[strOff:]), nil
}
