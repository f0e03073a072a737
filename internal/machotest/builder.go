// Package machotest builds small synthetic Mach-O dylibs for tests.
package machotest

import (
	"bytes"
	"encoding/binary"

	"github.com/appsworld/go-tbd/types"
)

// A Symbol is one nlist entry. Type defaults to N_SECT|N_EXT.
type Symbol struct {
	Name string
	Type types.NLType
	Desc types.NLDesc
}

// An Export is one terminal node of a generated export trie.
type Export struct {
	Name  string
	Flags types.ExportFlag
}

// An Image describes a dylib to synthesize. Zero values pick sensible
// defaults: a little-endian 64-bit MH_DYLIB with no optional commands.
type Image struct {
	Is32      bool
	BigEndian bool
	CPU       types.CPU
	SubCPU    types.CPUSubtype
	Type      types.HeaderFileType
	Flags     types.HeaderFlag

	InstallName    string
	CurrentVersion types.Version
	CompatVersion  types.Version

	Platform      types.Platform
	MinOS         types.Version
	UseVersionMin bool // emit LC_VERSION_MIN_* instead of LC_BUILD_VERSION

	UUID           *types.UUID
	Reexports      []string
	Clients        []string
	ParentUmbrella string

	ObjC       *types.ObjCImageInfo
	LegacyObjC bool // place image info in __OBJC,__image_info

	Symbols  []Symbol
	NoSymtab bool
	Exports  []Export // emitted as LC_DYLD_EXPORTS_TRIE when non-empty

	// LinkeditBase is added to every file offset stored in the load
	// commands; shared cache images use cache-relative offsets.
	LinkeditBase uint32

	// Symtab, when set, may rewrite the LC_SYMTAB command before it is encoded.
	Symtab func(*types.SymtabCmd)
	// Commands are raw load commands appended after the generated ones.
	Commands [][]byte
}

func (img *Image) order() binary.ByteOrder {
	if img.BigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

func (img *Image) headerSize() uint32 {
	if img.Is32 {
		return types.FileHeaderSize32
	}
	return types.FileHeaderSize64
}

// layout holds the slice offsets of everything placed after the load commands.
type layout struct {
	objc   uint32
	trie   uint32
	symoff uint32
	stroff uint32
	end    uint32
}

func (l layout) rebase(base uint32) layout {
	l.objc += base
	l.trie += base
	l.symoff += base
	l.stroff += base
	l.end += base
	return l
}

// Bytes encodes the image.
func (img *Image) Bytes() []byte {
	if img.Type == 0 {
		img.Type = types.MH_DYLIB
	}

	strtab, nlists := img.symbols()
	trie := BuildTrie(img.Exports)

	// first pass sizes the load commands
	var sizeofcmds uint32
	for _, c := range img.commands(layout{}) {
		sizeofcmds += uint32(len(c))
	}

	var l layout
	off := align(img.headerSize()+sizeofcmds, 8)
	if img.ObjC != nil {
		l.objc = off
		off += types.ObjCImageInfoSize
	}
	if len(trie) > 0 {
		off = align(off, 8)
		l.trie = off
		off += uint32(len(trie))
	}
	off = align(off, 8)
	l.symoff = off
	off += uint32(len(nlists))
	l.stroff = off
	off += uint32(len(strtab))
	l.end = off

	cmds := img.commands(l.rebase(img.LinkeditBase))
	o := img.order()

	hdr := types.FileHeader{
		Magic:        types.Magic64,
		CPU:          img.CPU,
		SubCPU:       img.SubCPU,
		Type:         img.Type,
		NCommands:    uint32(len(cmds)),
		SizeCommands: sizeofcmds,
		Flags:        img.Flags,
	}
	if img.Is32 {
		hdr.Magic = types.Magic32
	}

	out := make([]byte, l.end)
	n := hdr.Put(out, o)
	for _, c := range cmds {
		n += copy(out[n:], c)
	}
	if img.ObjC != nil {
		o.PutUint32(out[l.objc:], img.ObjC.Version)
		o.PutUint32(out[l.objc+4:], uint32(img.ObjC.Flags))
	}
	copy(out[l.trie:], trie)
	copy(out[l.symoff:], nlists)
	copy(out[l.stroff:], strtab)

	return out
}

func (img *Image) symbols() (strtab []byte, nlists []byte) {
	o := img.order()
	strtab = []byte{0}
	for _, s := range img.Symbols {
		typ := s.Type
		if typ == 0 {
			typ = types.N_SECT | types.N_EXT
		}
		var sect uint8
		if typ.IsDefinedInSection() {
			sect = 1
		}
		strx := uint32(len(strtab))
		strtab = append(strtab, s.Name...)
		strtab = append(strtab, 0)

		if img.Is32 {
			b := make([]byte, types.Nlist32Size)
			n := types.Nlist32{Name: strx, Type: typ, Sect: sect, Desc: s.Desc}
			n.Put32(b, o)
			nlists = append(nlists, b...)
		} else {
			b := make([]byte, types.Nlist64Size)
			n := types.Nlist64{Name: strx, Type: typ, Sect: sect, Desc: s.Desc}
			n.Put64(b, o)
			nlists = append(nlists, b...)
		}
	}
	return strtab, nlists
}

func (img *Image) commands(l layout) [][]byte {
	var cmds [][]byte
	o := img.order()

	if img.InstallName != "" {
		cmds = append(cmds, DylibCommand(o, types.LC_ID_DYLIB, img.InstallName, img.CurrentVersion, img.CompatVersion))
	}
	if img.Platform != types.Unknown {
		if img.UseVersionMin {
			cmds = append(cmds, VersionMinCommand(o, img.Platform, img.MinOS))
		} else {
			cmds = append(cmds, encode(o, types.BuildVersionCmd{
				LoadCmd:  types.LC_BUILD_VERSION,
				Len:      24,
				Platform: img.Platform,
				Minos:    img.MinOS,
				Sdk:      img.MinOS,
			}))
		}
	}
	if img.UUID != nil {
		cmds = append(cmds, encode(o, types.UUIDCmd{LoadCmd: types.LC_UUID, Len: 24, UUID: *img.UUID}))
	}
	for _, r := range img.Reexports {
		cmds = append(cmds, DylibCommand(o, types.LC_REEXPORT_DYLIB, r, types.NewVersion(1, 0, 0), types.NewVersion(1, 0, 0)))
	}
	for _, c := range img.Clients {
		cmds = append(cmds, StringCommand(o, types.LC_SUB_CLIENT, c))
	}
	if img.ParentUmbrella != "" {
		cmds = append(cmds, StringCommand(o, types.LC_SUB_UMBRELLA, img.ParentUmbrella))
	}
	if img.ObjC != nil {
		seg, sect := "__DATA", "__objc_imageinfo"
		if img.LegacyObjC {
			seg, sect = "__OBJC", "__image_info"
		}
		cmds = append(cmds, SegmentCommand(o, !img.Is32, seg, sect, uint64(l.objc), types.ObjCImageInfoSize))
	}
	if len(img.Exports) > 0 {
		cmds = append(cmds, encode(o, types.LinkEditDataCmd{
			LoadCmd: types.LC_DYLD_EXPORTS_TRIE,
			Len:     16,
			Offset:  l.trie,
			Size:    uint32(len(BuildTrie(img.Exports))),
		}))
	}
	if !img.NoSymtab {
		st := types.SymtabCmd{
			LoadCmd: types.LC_SYMTAB,
			Len:     24,
			Symoff:  l.symoff,
			Nsyms:   uint32(len(img.Symbols)),
			Stroff:  l.stroff,
			Strsize: l.end - l.stroff,
		}
		if img.Symtab != nil {
			img.Symtab(&st)
		}
		cmds = append(cmds, encode(o, st))
	}
	cmds = append(cmds, img.Commands...)

	return cmds
}

// DylibCommand encodes an LC_ID_DYLIB style command.
func DylibCommand(o binary.ByteOrder, cmd types.LoadCmd, name string, cur, compat types.Version) []byte {
	fixed := uint32(binary.Size(types.DylibCmd{}))
	size := align(fixed+uint32(len(name))+1, 8)
	b := encode(o, types.DylibCmd{
		LoadCmd:        cmd,
		Len:            size,
		Name:           fixed,
		Time:           2,
		CurrentVersion: cur,
		CompatVersion:  compat,
	})
	return pad(append(b, name...), size)
}

// StringCommand encodes LC_SUB_CLIENT, LC_SUB_UMBRELLA and friends.
func StringCommand(o binary.ByteOrder, cmd types.LoadCmd, s string) []byte {
	size := align(12+uint32(len(s))+1, 8)
	b := encode(o, types.SubClientCmd{LoadCmd: cmd, Len: size, Client: 12})
	return pad(append(b, s...), size)
}

// VersionMinCommand encodes the LC_VERSION_MIN_* command for platform.
func VersionMinCommand(o binary.ByteOrder, p types.Platform, v types.Version) []byte {
	cmd := types.LC_VERSION_MIN_MACOSX
	switch p {
	case types.IOS:
		cmd = types.LC_VERSION_MIN_IPHONEOS
	case types.TvOS:
		cmd = types.LC_VERSION_MIN_TVOS
	case types.WatchOS:
		cmd = types.LC_VERSION_MIN_WATCHOS
	}
	return encode(o, types.VersionMinCmd{LoadCmd: cmd, Len: 16, Version: v, Sdk: v})
}

// SegmentCommand encodes a segment holding a single section.
func SegmentCommand(o binary.ByteOrder, is64 bool, seg, sect string, off, size uint64) []byte {
	var segName, sectName [16]byte
	copy(segName[:], seg)
	copy(sectName[:], sect)

	if is64 {
		l := uint32(binary.Size(types.Segment64{}) + binary.Size(types.Section64{}))
		b := encode(o, types.Segment64{
			LoadCmd: types.LC_SEGMENT_64,
			Len:     l,
			Name:    segName,
			Offset:  off,
			Filesz:  size,
			Memsz:   size,
			Nsect:   1,
		})
		return append(b, encode(o, types.Section64{
			Name:   sectName,
			Seg:    segName,
			Size:   size,
			Offset: uint32(off),
		})...)
	}

	l := uint32(binary.Size(types.Segment32{}) + binary.Size(types.Section32{}))
	b := encode(o, types.Segment32{
		LoadCmd: types.LC_SEGMENT,
		Len:     l,
		Name:    segName,
		Offset:  uint32(off),
		Filesz:  uint32(size),
		Memsz:   uint32(size),
		Nsect:   1,
	})
	return append(b, encode(o, types.Section32{
		Name:   sectName,
		Seg:    segName,
		Size:   uint32(size),
		Offset: uint32(off),
	})...)
}

// BuildTrie encodes a flat export trie: a root node with one edge per export.
// Child offsets use padded four byte ulebs so the root size is fixed.
func BuildTrie(exports []Export) []byte {
	if len(exports) == 0 {
		return nil
	}
	root := 2 // terminal size + child count
	for _, e := range exports {
		root += len(e.Name) + 1 + 4
	}

	var nodes bytes.Buffer
	var edges bytes.Buffer
	for _, e := range exports {
		off := root + nodes.Len()
		edges.WriteString(e.Name)
		edges.WriteByte(0)
		edges.Write([]byte{
			byte(off&0x7f) | 0x80,
			byte((off>>7)&0x7f) | 0x80,
			byte((off>>14)&0x7f) | 0x80,
			byte((off >> 21) & 0x7f),
		})
		// terminal: size, flags, address; no children
		nodes.Write([]byte{2, byte(e.Flags), 0, 0})
	}

	out := []byte{0, byte(len(exports))}
	out = append(out, edges.Bytes()...)
	return append(out, nodes.Bytes()...)
}

// A Slice is one architecture of a fat file.
type Slice struct {
	CPU    types.CPU
	SubCPU types.CPUSubtype
	Data   []byte
}

// Fat wraps slices in a 32-bit fat header, page aligning each slice.
func Fat(slices ...Slice) []byte {
	const alignBits = 12
	var out bytes.Buffer
	binary.Write(&out, binary.BigEndian, types.FatHeader{Magic: types.MagicFat, Count: uint32(len(slices))})

	off := align(uint32(types.FatHeaderSize+types.FatArchSize*len(slices)), 1<<alignBits)
	for _, s := range slices {
		binary.Write(&out, binary.BigEndian, types.FatArch{
			CPU:    s.CPU,
			SubCPU: s.SubCPU,
			Offset: off,
			Size:   uint32(len(s.Data)),
			Align:  alignBits,
		})
		off = align(off+uint32(len(s.Data)), 1<<alignBits)
	}
	for _, s := range slices {
		out.Write(make([]byte, int(align(uint32(out.Len()), 1<<alignBits))-out.Len()))
		out.Write(s.Data)
	}
	return out.Bytes()
}

// A CacheImage is one dylib placed in a synthetic shared cache.
type CacheImage struct {
	Path  string
	Image *Image
}

// CacheBase is the unslid address of the first byte of a synthetic cache.
const CacheBase = 0x180000000

// Cache builds a minimal little-endian dyld shared cache with a single
// identity mapping. Legacy selects the original image table header fields.
func Cache(legacy bool, images ...CacheImage) []byte {
	const (
		mappingOff = 0x200
		imagesOff  = 0x240
	)
	pathsOff := uint32(imagesOff + 32*len(images))

	var paths bytes.Buffer
	for _, ci := range images {
		paths.WriteString(ci.Path)
		paths.WriteByte(0)
	}

	off := align(pathsOff+uint32(paths.Len()), 0x1000)
	var blobs [][]byte
	var offsets []uint32
	for _, ci := range images {
		ci.Image.LinkeditBase = off
		b := ci.Image.Bytes()
		blobs = append(blobs, b)
		offsets = append(offsets, off)
		off = align(off+uint32(len(b)), 0x1000)
	}
	out := make([]byte, off)

	copy(out, "dyld_v1   arm64e")
	o := binary.LittleEndian
	o.PutUint32(out[16:], mappingOff)
	o.PutUint32(out[20:], 1)
	if legacy {
		o.PutUint32(out[24:], imagesOff)
		o.PutUint32(out[28:], uint32(len(images)))
	} else {
		o.PutUint32(out[0x1c0:], imagesOff)
		o.PutUint32(out[0x1c4:], uint32(len(images)))
	}
	if legacy {
		// legacy headers end before the mappings
		o.PutUint32(out[16:], 0x68)
		mappingAt := 0x68
		o.PutUint64(out[mappingAt:], CacheBase)
		o.PutUint64(out[mappingAt+8:], uint64(off))
	} else {
		o.PutUint64(out[mappingOff:], CacheBase)
		o.PutUint64(out[mappingOff+8:], uint64(off))
	}

	pathOff := pathsOff
	for i, ci := range images {
		ent := imagesOff + 32*i
		o.PutUint64(out[ent:], CacheBase+uint64(offsets[i]))
		o.PutUint32(out[ent+24:], pathOff)
		pathOff += uint32(len(ci.Path) + 1)
		copy(out[offsets[i]:], blobs[i])
	}
	copy(out[pathsOff:], paths.Bytes())

	return out
}

func encode(o binary.ByteOrder, v any) []byte {
	var buf bytes.Buffer
	binary.Write(&buf, o, v)
	return buf.Bytes()
}

func pad(b []byte, size uint32) []byte {
	for uint32(len(b)) < size {
		b = append(b, 0)
	}
	return b
}

func align(n, a uint32) uint32 {
	return (n + a - 1) &^ (a - 1)
}
