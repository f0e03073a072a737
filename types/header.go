package types

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// A FileHeader is a mach_header or mach_header_64. Reserved is only
// present in the 64-bit form.
type FileHeader struct {
	Magic        Magic
	CPU          CPU
	SubCPU       CPUSubtype
	Type         HeaderFileType
	NCommands    uint32
	SizeCommands uint32
	Flags        HeaderFlag
	Reserved     uint32
}

const (
	FileHeaderSize32 = 7 * 4
	FileHeaderSize64 = 8 * 4
)

// encodedSize depends on the magic.
func (h *FileHeader) encodedSize() int {
	if h.Magic == Magic32 {
		return FileHeaderSize32
	}
	return FileHeaderSize64
}

// Put encodes h into b and returns the number of bytes written.
func (h *FileHeader) Put(b []byte, o binary.ByteOrder) int {
	fields := [...]uint32{
		uint32(h.Magic), uint32(h.CPU), uint32(h.SubCPU), uint32(h.Type),
		h.NCommands, h.SizeCommands, uint32(h.Flags), h.Reserved,
	}
	n := h.encodedSize()
	for i := 0; i*4 < n; i++ {
		o.PutUint32(b[i*4:], fields[i])
	}
	return n
}

func (h *FileHeader) String() string {
	return fmt.Sprintf("%s %s %s/%s, %d commands (%d bytes), flags %s",
		h.Magic, h.Type, h.CPU, h.SubCPU.String(h.CPU), h.NCommands, h.SizeCommands, h.Flags)
}

// A Magic identifies a thin or fat Mach-O file. Values are as read in
// the file's own byte order.
type Magic uint32

const (
	Magic32    Magic = 0xfeedface
	Magic64    Magic = 0xfeedfacf
	MagicFat   Magic = 0xcafebabe
	MagicFat64 Magic = 0xcafebabf
)

var magicNames = map[Magic]string{
	Magic32:    "mach-o 32",
	Magic64:    "mach-o 64",
	MagicFat:   "fat",
	MagicFat64: "fat64",
}

func (m Magic) Int() uint32 { return uint32(m) }

func (m Magic) String() string {
	if s, ok := magicNames[m]; ok {
		return s
	}
	return fmt.Sprintf("magic(%#x)", uint32(m))
}

// A HeaderFileType is the filetype field of a mach header.
type HeaderFileType uint32

const (
	MH_OBJECT     HeaderFileType = 0x1
	MH_EXECUTE    HeaderFileType = 0x2
	MH_DYLIB      HeaderFileType = 0x6
	MH_BUNDLE     HeaderFileType = 0x8
	MH_DYLIB_STUB HeaderFileType = 0x9
)

var fileTypeNames = map[HeaderFileType]string{
	MH_OBJECT:     "object",
	MH_EXECUTE:    "executable",
	MH_DYLIB:      "dylib",
	MH_BUNDLE:     "bundle",
	MH_DYLIB_STUB: "dylib stub",
}

func (t HeaderFileType) String() string {
	if s, ok := fileTypeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("filetype(%#x)", uint32(t))
}

// A HeaderFlag is the flags field of a mach header.
type HeaderFlag uint32

const (
	NoUndefs           HeaderFlag = 0x1
	DyldLink           HeaderFlag = 0x4
	TwoLevel           HeaderFlag = 0x80
	WeakDefines        HeaderFlag = 0x8000
	BindsToWeak        HeaderFlag = 0x10000
	NoReexportedDylibs HeaderFlag = 0x100000
	AppExtensionSafe   HeaderFlag = 0x2000000
	DylibInCache       HeaderFlag = 0x80000000
)

var headerFlagNames = []struct {
	f HeaderFlag
	s string
}{
	{NoUndefs, "noundefs"},
	{DyldLink, "dyldlink"},
	{TwoLevel, "twolevel"},
	{WeakDefines, "weak_defines"},
	{BindsToWeak, "binds_to_weak"},
	{NoReexportedDylibs, "no_reexported_dylibs"},
	{AppExtensionSafe, "app_extension_safe"},
	{DylibInCache, "dylib_in_cache"},
}

func (f HeaderFlag) TwoLevel() bool         { return f&TwoLevel != 0 }
func (f HeaderFlag) AppExtensionSafe() bool { return f&AppExtensionSafe != 0 }
func (f HeaderFlag) DylibInCache() bool     { return f&DylibInCache != 0 }

func (f HeaderFlag) String() string {
	var names []string
	rest := f
	for _, n := range headerFlagNames {
		if f&n.f != 0 {
			names = append(names, n.s)
			rest &^= n.f
		}
	}
	if rest != 0 {
		names = append(names, fmt.Sprintf("%#x", uint32(rest)))
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, "|")
}
