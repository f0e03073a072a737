package types

import "fmt"

// A LoadCmd is the cmd field shared by every load command.
type LoadCmd uint32

// LC_REQ_DYLD marks commands dyld must understand to load the image.
const LC_REQ_DYLD LoadCmd = 0x80000000

const (
	LC_SEGMENT              LoadCmd = 0x1
	LC_SYMTAB               LoadCmd = 0x2
	LC_DYSYMTAB             LoadCmd = 0xb
	LC_LOAD_DYLIB           LoadCmd = 0xc
	LC_ID_DYLIB             LoadCmd = 0xd
	LC_SUB_FRAMEWORK        LoadCmd = 0x12
	LC_SUB_UMBRELLA         LoadCmd = 0x13
	LC_SUB_CLIENT           LoadCmd = 0x14
	LC_SUB_LIBRARY          LoadCmd = 0x15
	LC_LOAD_WEAK_DYLIB      LoadCmd = 0x18 | LC_REQ_DYLD
	LC_SEGMENT_64           LoadCmd = 0x19
	LC_UUID                 LoadCmd = 0x1b
	LC_REEXPORT_DYLIB       LoadCmd = 0x1f | LC_REQ_DYLD
	LC_DYLD_INFO            LoadCmd = 0x22
	LC_DYLD_INFO_ONLY       LoadCmd = 0x22 | LC_REQ_DYLD
	LC_VERSION_MIN_MACOSX   LoadCmd = 0x24
	LC_VERSION_MIN_IPHONEOS LoadCmd = 0x25
	LC_VERSION_MIN_TVOS     LoadCmd = 0x2f
	LC_VERSION_MIN_WATCHOS  LoadCmd = 0x30
	LC_BUILD_VERSION        LoadCmd = 0x32
	LC_DYLD_EXPORTS_TRIE    LoadCmd = 0x33 | LC_REQ_DYLD
)

var loadCmdNames = map[LoadCmd]string{
	LC_SEGMENT:              "LC_SEGMENT",
	LC_SYMTAB:               "LC_SYMTAB",
	LC_DYSYMTAB:             "LC_DYSYMTAB",
	LC_LOAD_DYLIB:           "LC_LOAD_DYLIB",
	LC_ID_DYLIB:             "LC_ID_DYLIB",
	LC_SUB_FRAMEWORK:        "LC_SUB_FRAMEWORK",
	LC_SUB_UMBRELLA:         "LC_SUB_UMBRELLA",
	LC_SUB_CLIENT:           "LC_SUB_CLIENT",
	LC_SUB_LIBRARY:          "LC_SUB_LIBRARY",
	LC_LOAD_WEAK_DYLIB:      "LC_LOAD_WEAK_DYLIB",
	LC_SEGMENT_64:           "LC_SEGMENT_64",
	LC_UUID:                 "LC_UUID",
	LC_REEXPORT_DYLIB:       "LC_REEXPORT_DYLIB",
	LC_DYLD_INFO:            "LC_DYLD_INFO",
	LC_DYLD_INFO_ONLY:       "LC_DYLD_INFO_ONLY",
	LC_VERSION_MIN_MACOSX:   "LC_VERSION_MIN_MACOSX",
	LC_VERSION_MIN_IPHONEOS: "LC_VERSION_MIN_IPHONEOS",
	LC_VERSION_MIN_TVOS:     "LC_VERSION_MIN_TVOS",
	LC_VERSION_MIN_WATCHOS:  "LC_VERSION_MIN_WATCHOS",
	LC_BUILD_VERSION:        "LC_BUILD_VERSION",
	LC_DYLD_EXPORTS_TRIE:    "LC_DYLD_EXPORTS_TRIE",
}

func (c LoadCmd) String() string {
	if s, ok := loadCmdNames[c]; ok {
		return s
	}
	return fmt.Sprintf("LC(%#x)", uint32(c))
}

// The command layouts below match their C definitions field for field and
// decode with encoding/binary.

type Segment32 struct {
	LoadCmd
	Len     uint32
	Name    [16]byte
	Addr    uint32
	Memsz   uint32
	Offset  uint32
	Filesz  uint32
	Maxprot VmProtection
	Prot    VmProtection
	Nsect   uint32
	Flag    uint32
}

type Segment64 struct {
	LoadCmd
	Len     uint32
	Name    [16]byte
	Addr    uint64
	Memsz   uint64
	Offset  uint64
	Filesz  uint64
	Maxprot VmProtection
	Prot    VmProtection
	Nsect   uint32
	Flag    uint32
}

type Section32 struct {
	Name     [16]byte
	Seg      [16]byte
	Addr     uint32
	Size     uint32
	Offset   uint32
	Align    uint32
	Reloff   uint32
	Nreloc   uint32
	Flags    uint32
	Reserve1 uint32
	Reserve2 uint32
}

type Section64 struct {
	Name     [16]byte
	Seg      [16]byte
	Addr     uint64
	Size     uint64
	Offset   uint32
	Align    uint32
	Reloff   uint32
	Nreloc   uint32
	Flags    uint32
	Reserve1 uint32
	Reserve2 uint32
	Reserve3 uint32
}

type SymtabCmd struct {
	LoadCmd
	Len     uint32
	Symoff  uint32
	Nsyms   uint32
	Stroff  uint32
	Strsize uint32
}

// A DylibCmd is LC_ID_DYLIB, LC_LOAD_DYLIB or LC_REEXPORT_DYLIB. Name is
// the offset of the path from the start of the command.
type DylibCmd struct {
	LoadCmd
	Len            uint32
	Name           uint32
	Time           uint32
	CurrentVersion Version
	CompatVersion  Version
}

type SubUmbrellaCmd struct {
	LoadCmd
	Len      uint32
	Umbrella uint32
}

type SubClientCmd struct {
	LoadCmd
	Len    uint32
	Client uint32
}

type UUIDCmd struct {
	LoadCmd
	Len  uint32
	UUID UUID
}

// A LinkEditDataCmd points at a blob in __LINKEDIT, e.g. the exports trie.
type LinkEditDataCmd struct {
	LoadCmd
	Len    uint32
	Offset uint32
	Size   uint32
}

type DyldInfoCmd struct {
	LoadCmd
	Len          uint32
	RebaseOff    uint32
	RebaseSize   uint32
	BindOff      uint32
	BindSize     uint32
	WeakBindOff  uint32
	WeakBindSize uint32
	LazyBindOff  uint32
	LazyBindSize uint32
	ExportOff    uint32
	ExportSize   uint32
}

type VersionMinCmd struct {
	LoadCmd
	Len     uint32
	Version Version
	Sdk     Version
}

type BuildVersionCmd struct {
	LoadCmd
	Len      uint32
	Platform Platform
	Minos    Version
	Sdk      Version
	NumTools uint32
}
