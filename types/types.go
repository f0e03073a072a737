// Package types holds the fixed-layout Mach-O structures and constants
// read by the consolidation engine.
package types

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// VmProtection is a segment's vm_prot_t.
type VmProtection int32

func (v VmProtection) Read() bool    { return v&0x01 != 0 }
func (v VmProtection) Write() bool   { return v&0x02 != 0 }
func (v VmProtection) Execute() bool { return v&0x04 != 0 }

// String renders v as "rwx" with dashes for missing bits.
func (v VmProtection) String() string {
	b := []byte("---")
	if v.Read() {
		b[0] = 'r'
	}
	if v.Write() {
		b[1] = 'w'
	}
	if v.Execute() {
		b[2] = 'x'
	}
	return string(b)
}

// UUID is the payload of LC_UUID.
type UUID [16]byte

func (u UUID) String() string {
	return fmt.Sprintf("%X-%X-%X-%X-%X", u[0:4], u[4:6], u[6:8], u[8:10], u[10:16])
}

// Platform is a PLATFORM_* value from LC_BUILD_VERSION.
type Platform uint32

const (
	Unknown          Platform = 0
	MacOS            Platform = 1
	IOS              Platform = 2
	TvOS             Platform = 3
	WatchOS          Platform = 4
	BridgeOS         Platform = 5
	MacCatalyst      Platform = 6
	IOSSimulator     Platform = 7
	TvOSSimulator    Platform = 8
	WatchOSSimulator Platform = 9
	DriverKit        Platform = 10
)

// platformNames is indexed by Platform and uses stub spellings.
var platformNames = [...]string{
	Unknown:          "unknown",
	MacOS:            "macosx",
	IOS:              "ios",
	TvOS:             "tvos",
	WatchOS:          "watchos",
	BridgeOS:         "bridgeos",
	MacCatalyst:      "maccatalyst",
	IOSSimulator:     "ios-simulator",
	TvOSSimulator:    "tvos-simulator",
	WatchOSSimulator: "watchos-simulator",
	DriverKit:        "driverkit",
}

func (p Platform) String() string {
	if int(p) < len(platformNames) {
		return platformNames[p]
	}
	return "platform(" + strconv.FormatUint(uint64(p), 10) + ")"
}

// Known reports whether p is one of the PLATFORM_* values.
func (p Platform) Known() bool { return p > Unknown && p <= DriverKit }

func (p Platform) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// ParsePlatform is the case-insensitive inverse of Platform.String.
func ParsePlatform(s string) (Platform, error) {
	for p := MacOS; p <= DriverKit; p++ {
		if strings.EqualFold(platformNames[p], s) {
			return p, nil
		}
	}
	return Unknown, fmt.Errorf("unknown platform %q", s)
}

// Version is a packed xxxx.yy.zz version number.
type Version uint32

// NewVersion packs major, minor and patch into a Version.
func NewVersion(major uint16, minor, patch uint8) Version {
	return Version(uint32(major)<<16 | uint32(minor)<<8 | uint32(patch))
}

func (v Version) Major() uint16 { return uint16(v >> 16) }
func (v Version) Minor() uint8  { return uint8(v >> 8) }
func (v Version) Patch() uint8  { return uint8(v) }

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major(), v.Minor(), v.Patch())
}

// Short drops trailing zero components, e.g. 1.2.0 => 1.2 and 1.0.0 => 1.
func (v Version) Short() string {
	switch {
	case v.Patch() != 0:
		return v.String()
	case v.Minor() != 0:
		return fmt.Sprintf("%d.%d", v.Major(), v.Minor())
	}
	return strconv.Itoa(int(v.Major()))
}

func (v Version) MarshalText() ([]byte, error) { return []byte(v.String()), nil }

// CString returns the NUL-terminated prefix of b.
func CString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

// SegName returns a segment or section name.
func SegName(b [16]byte) string {
	return CString(b[:])
}
