package types

import "fmt"

// A CPU is the cputype field of a Mach-O header.
type CPU uint32

const (
	cpuArchMask = 0xff000000
	cpuArch64   = 0x01000000
	cpuArch6432 = 0x02000000 // 64-bit hardware, 32-bit pointers
)

const (
	CPU386     CPU = 7
	CPUAmd64   CPU = CPU386 | cpuArch64
	CPUArm     CPU = 12
	CPUArm64   CPU = CPUArm | cpuArch64
	CPUArm6432 CPU = CPUArm | cpuArch6432
	CPUPpc     CPU = 18
	CPUPpc64   CPU = CPUPpc | cpuArch64
)

var cpuNames = map[CPU]string{
	CPU386:     "i386",
	CPUAmd64:   "x86_64",
	CPUArm:     "arm",
	CPUArm64:   "arm64",
	CPUArm6432: "arm64_32",
	CPUPpc:     "ppc",
	CPUPpc64:   "ppc64",
}

func (c CPU) String() string {
	if s, ok := cpuNames[c]; ok {
		return s
	}
	return fmt.Sprintf("cpu(%#x)", uint32(c))
}

// Is64 reports whether c uses the 64-bit ABI.
func (c CPU) Is64() bool { return c&cpuArchMask == cpuArch64 }

// A CPUSubtype is the cpusubtype field of a Mach-O header. The low 24 bits
// select the subtype; the high byte carries capability bits.
type CPUSubtype uint32

const (
	CPUSubtypeI386All  CPUSubtype = 3
	CPUSubtypeX8664All CPUSubtype = 3
	CPUSubtypeX86_64H  CPUSubtype = 8

	CPUSubtypeArmAll    CPUSubtype = 0
	CPUSubtypeArmV4T    CPUSubtype = 5
	CPUSubtypeArmV6     CPUSubtype = 6
	CPUSubtypeArmV5Tej  CPUSubtype = 7
	CPUSubtypeArmXscale CPUSubtype = 8
	CPUSubtypeArmV7     CPUSubtype = 9
	CPUSubtypeArmV7F    CPUSubtype = 10
	CPUSubtypeArmV7S    CPUSubtype = 11
	CPUSubtypeArmV7K    CPUSubtype = 12
	CPUSubtypeArmV8     CPUSubtype = 13
	CPUSubtypeArmV6M    CPUSubtype = 14
	CPUSubtypeArmV7M    CPUSubtype = 15
	CPUSubtypeArmV7Em   CPUSubtype = 16

	CPUSubtypeArm64All CPUSubtype = 0
	CPUSubtypeArm64V8  CPUSubtype = 1
	CPUSubtypeArm64E   CPUSubtype = 2

	CPUSubtypeArm6432V8 CPUSubtype = 1

	CPUSubtypePpcAll CPUSubtype = 0
)

// Capability bits.
const (
	CpuSubtypeFeatureMask CPUSubtype = 0xff000000
	CpuSubtypeMask                   = ^CpuSubtypeFeatureMask
	CpuSubtypeLib64       CPUSubtype = 0x80000000
	CpuSubtypePtrauthAbi  CPUSubtype = 0x80000000
)

var subtypeNames = map[CPU]map[CPUSubtype]string{
	CPU386:   {CPUSubtypeI386All: "i386"},
	CPUAmd64: {CPUSubtypeX8664All: "x86_64", CPUSubtypeX86_64H: "x86_64h"},
	CPUArm: {
		CPUSubtypeArmAll:    "arm",
		CPUSubtypeArmV4T:    "armv4t",
		CPUSubtypeArmV6:     "armv6",
		CPUSubtypeArmV5Tej:  "armv5",
		CPUSubtypeArmXscale: "xscale",
		CPUSubtypeArmV7:     "armv7",
		CPUSubtypeArmV7F:    "armv7f",
		CPUSubtypeArmV7S:    "armv7s",
		CPUSubtypeArmV7K:    "armv7k",
		CPUSubtypeArmV8:     "armv8",
		CPUSubtypeArmV6M:    "armv6m",
		CPUSubtypeArmV7M:    "armv7m",
		CPUSubtypeArmV7Em:   "armv7em",
	},
	CPUArm64:   {CPUSubtypeArm64All: "arm64", CPUSubtypeArm64V8: "arm64v8", CPUSubtypeArm64E: "arm64e"},
	CPUArm6432: {CPUSubtypeArm6432V8: "arm64_32"},
	CPUPpc:     {CPUSubtypePpcAll: "ppc"},
	CPUPpc64:   {CPUSubtypePpcAll: "ppc64"},
}

// String names the subtype relative to cpu, ignoring capability bits.
func (st CPUSubtype) String(cpu CPU) string {
	if s, ok := subtypeNames[cpu][st&CpuSubtypeMask]; ok {
		return s
	}
	return fmt.Sprintf("subtype(%#x)", uint32(st))
}
