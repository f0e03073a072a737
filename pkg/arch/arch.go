// Package arch maps Mach-O cputype/cpusubtype pairs to the architectures
// understood by text-based stubs.
package arch

import (
	"github.com/appsworld/go-tbd/types"
	"github.com/pkg/errors"
)

var (
	// ErrUnrecognizedCPU is returned when no architecture uses the cputype.
	ErrUnrecognizedCPU = errors.New("unrecognized cputype/cpusubtype pair")
	// ErrInvalidSubtype is returned when the cputype is known but the subtype is not.
	ErrInvalidSubtype = errors.New("invalid cpusubtype")
)

// An Arch is one architecture. Index is the bit used in every ArchSet.
type Arch struct {
	Index  uint8
	CPU    types.CPU
	SubCPU types.CPUSubtype
	Name   string
}

func (a Arch) String() string { return a.Name }

func (a Arch) MarshalText() ([]byte, error) { return []byte(a.Name), nil }

// table is ordered by Index. Indices are never reused.
var table = []Arch{
	{0, types.CPUArm, types.CPUSubtypeArmAll, "arm"},
	{1, types.CPUArm, types.CPUSubtypeArmV4T, "armv4t"},
	{2, types.CPUArm, types.CPUSubtypeArmV5Tej, "armv5"},
	{3, types.CPUArm, types.CPUSubtypeArmXscale, "xscale"},
	{4, types.CPUArm, types.CPUSubtypeArmV6, "armv6"},
	{5, types.CPUArm, types.CPUSubtypeArmV6M, "armv6m"},
	{6, types.CPUArm, types.CPUSubtypeArmV7, "armv7"},
	{7, types.CPUArm, types.CPUSubtypeArmV7F, "armv7f"},
	{8, types.CPUArm, types.CPUSubtypeArmV7S, "armv7s"},
	{9, types.CPUArm, types.CPUSubtypeArmV7K, "armv7k"},
	{10, types.CPUArm, types.CPUSubtypeArmV7M, "armv7m"},
	{11, types.CPUArm, types.CPUSubtypeArmV7Em, "armv7em"},
	{12, types.CPUArm, types.CPUSubtypeArmV8, "armv8"},
	{13, types.CPUArm64, types.CPUSubtypeArm64All, "arm64"},
	{14, types.CPUArm64, types.CPUSubtypeArm64V8, "arm64v8"},
	{15, types.CPUArm64, types.CPUSubtypeArm64E, "arm64e"},
	{16, types.CPUArm6432, types.CPUSubtypeArm6432V8, "arm64_32"},
	{17, types.CPU386, types.CPUSubtypeI386All, "i386"},
	{18, types.CPUAmd64, types.CPUSubtypeX8664All, "x86_64"},
	{19, types.CPUAmd64, types.CPUSubtypeX86_64H, "x86_64h"},
	{20, types.CPUPpc, types.CPUSubtypePpcAll, "ppc"},
	{21, types.CPUPpc64, types.CPUSubtypePpcAll, "ppc64"},
}

// Resolve returns the architecture for a cputype/cpusubtype pair.
// Capability bits in the subtype (arm64e ptrauth ABI, x86_64 LIB64) are ignored.
func Resolve(cpu types.CPU, sub types.CPUSubtype) (Arch, error) {
	sub &= types.CpuSubtypeMask
	known := false
	for _, a := range table {
		if a.CPU != cpu {
			continue
		}
		known = true
		if a.SubCPU == sub {
			return a, nil
		}
	}
	if known {
		return Arch{}, errors.Wrapf(ErrInvalidSubtype, "%s subtype %d", cpu, uint32(sub))
	}
	return Arch{}, errors.Wrapf(ErrUnrecognizedCPU, "cputype %#x subtype %d", uint32(cpu), uint32(sub))
}

// Lookup returns the architecture with the given name.
func Lookup(name string) (Arch, bool) {
	for _, a := range table {
		if a.Name == name {
			return a, true
		}
	}
	return Arch{}, false
}

// ByIndex returns the architecture occupying bit i.
func ByIndex(i uint8) (Arch, bool) {
	if int(i) >= len(table) {
		return Arch{}, false
	}
	return table[i], true
}

// All returns every known architecture ordered by index.
func All() []Arch {
	return append([]Arch(nil), table...)
}
