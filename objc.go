package tbd

import (
	"strings"

	"github.com/appsworld/go-tbd/pkg/container"
	"github.com/appsworld/go-tbd/types"
	"github.com/pkg/errors"
)

// isObjcImageInfo reports whether a section holds the objc image info.
func isObjcImageInfo(seg, sect string) bool {
	switch {
	case strings.HasPrefix(seg, "__DATA"):
		return sect == "__objc_imageinfo"
	case seg == "__OBJC":
		return sect == "__image_info"
	}
	return false
}

// objcSegment reports whether a segment may carry the objc image info.
func objcSegment(seg string) bool {
	return strings.HasPrefix(seg, "__DATA") || seg == "__OBJC"
}

// readObjcImageInfo decodes the image info section at container offset off
// and derives the objc constraint and swift ABI version (0 when absent).
func readObjcImageInfo(c *container.Container, off, size uint64) (ObjcConstraint, uint32, error) {
	if size < types.ObjCImageInfoSize {
		return ObjcNone, 0, errors.Wrapf(ErrInvalidSection, "objc image info is %d bytes", size)
	}
	if err := c.Check(off, size); err != nil {
		return ObjcNone, 0, errors.Wrapf(ErrInvalidSection, "objc image info: %v", err)
	}
	dat, err := c.ReadData(off, types.ObjCImageInfoSize)
	if err != nil {
		if errors.Is(err, container.ErrInvalidRange) || errors.Is(err, container.ErrOverlapsHeader) {
			return ObjcNone, 0, errors.Wrapf(ErrInvalidSection, "objc image info: %v", err)
		}
		return ObjcNone, 0, err
	}
	info := types.ObjCImageInfo{
		Version: c.ByteOrder().Uint32(dat[0:4]),
		Flags:   types.ImageInfoFlag(c.ByteOrder().Uint32(dat[4:8])),
	}
	return objcConstraint(info.Flags), info.Flags.SwiftVersion(), nil
}

func objcConstraint(f types.ImageInfoFlag) ObjcConstraint {
	switch {
	case f.RequiresGC():
		return ObjcGC
	case f.SupportsGC():
		return ObjcRetainReleaseOrGC
	case f.IsSimulated():
		return ObjcRetainReleaseForSimulator
	}
	return ObjcRetainRelease
}
