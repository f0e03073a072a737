package types

// A FatHeader is the big-endian header of a universal binary.
type FatHeader struct {
	Magic Magic
	Count uint32
}

const (
	FatHeaderSize = 8
	FatArchSize   = 20
	FatArch64Size = 32
	MaxFatArchs   = 64
	MaxFatAlign   = 15 // log2 of the largest plausible slice alignment
)

// A FatArch is a 32-bit fat_arch entry.
type FatArch struct {
	CPU    CPU
	SubCPU CPUSubtype
	Offset uint32
	Size   uint32
	Align  uint32
}

// A FatArch64 is a fat_arch_64 entry, used with MagicFat64.
type FatArch64 struct {
	CPU      CPU
	SubCPU   CPUSubtype
	Offset   uint64
	Size     uint64
	Align    uint32
	Reserved uint32
}
