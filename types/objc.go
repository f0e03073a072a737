package types

import "strings"

// ObjCImageInfo is the objc_image_info record found in __objc_imageinfo,
// or __image_info in the legacy __OBJC segment.
type ObjCImageInfo struct {
	Version uint32
	Flags   ImageInfoFlag
}

const ObjCImageInfoSize = 8

type ImageInfoFlag uint32

const (
	IsReplacement   ImageInfoFlag = 1 << 0
	SupportsGC      ImageInfoFlag = 1 << 1
	RequiresGC      ImageInfoFlag = 1 << 2
	OptimizedByDyld ImageInfoFlag = 1 << 3
	SignedClassRO   ImageInfoFlag = 1 << 4
	IsSimulated     ImageInfoFlag = 1 << 5

	swiftVersionShift               = 8
	swiftVersionMask  ImageInfoFlag = 0xff << swiftVersionShift
)

func (f ImageInfoFlag) SupportsGC() bool      { return f&SupportsGC != 0 }
func (f ImageInfoFlag) RequiresGC() bool      { return f&RequiresGC != 0 }
func (f ImageInfoFlag) OptimizedByDyld() bool { return f&OptimizedByDyld != 0 }
func (f ImageInfoFlag) IsSimulated() bool     { return f&IsSimulated != 0 }

// SwiftVersion is the swift ABI byte, 0 for images without swift.
func (f ImageInfoFlag) SwiftVersion() uint32 {
	return uint32(f&swiftVersionMask) >> swiftVersionShift
}

var imageInfoNames = []struct {
	f ImageInfoFlag
	s string
}{
	{IsReplacement, "replacement"},
	{SupportsGC, "supports_gc"},
	{RequiresGC, "requires_gc"},
	{OptimizedByDyld, "optimized_by_dyld"},
	{SignedClassRO, "signed_class_ro"},
	{IsSimulated, "simulated"},
}

func (f ImageInfoFlag) String() string {
	var names []string
	for _, n := range imageInfoNames {
		if f&n.f != 0 {
			names = append(names, n.s)
		}
	}
	return strings.Join(names, "|")
}
