// Package dsc enumerates the dylibs embedded in a dyld shared cache.
//
// Only what is needed to hand each image to the consolidation engine is
// parsed: the cache header, its mappings and its image table.
package dsc

import (
	"bytes"
	"encoding/binary"
	"io"
	"path/filepath"
	"strings"

	"github.com/appsworld/go-tbd/pkg/container"
	"github.com/appsworld/go-tbd/types"
	"github.com/pkg/errors"
)

var (
	ErrNotCache      = errors.New("not a dyld shared cache")
	ErrImageNotFound = errors.New("image not found in dyld shared cache")
	ErrUnmapped      = errors.New("address is not mapped by the dyld shared cache")
)

const (
	imagesOffsetField = 0x1c0 // offset of imagesOffset in newer headers
	maxPathLen        = 1024
	maxImages         = 1 << 16
	maxMappings       = 64
)

// A Header is the fixed prefix shared by every dyld_cache_header revision.
type Header struct {
	Magic               [16]byte
	MappingOffset       uint32
	MappingCount        uint32
	ImagesOffsetOld     uint32
	ImagesCountOld      uint32
	DyldBaseAddress     uint64
	CodeSignatureOffset uint64
	CodeSignatureSize   uint64
	SlideInfoOffset     uint64
	SlideInfoSize       uint64
	LocalSymbolsOffset  uint64
	LocalSymbolsSize    uint64
	UUID                types.UUID
}

// A Mapping is a dyld_cache_mapping_info.
type Mapping struct {
	Address    uint64
	Size       uint64
	FileOffset uint64
	MaxProt    types.VmProtection
	InitProt   types.VmProtection
}

type imageInfo struct {
	Address        uint64
	ModTime        uint64
	Inode          uint64
	PathFileOffset uint32
	Pad            uint32
}

// An Image is one dylib in the cache.
type Image struct {
	Path    string
	Address uint64
	Offset  uint64 // file offset of the image's mach header
}

func (i *Image) Name() string { return filepath.Base(i.Path) }

// A Cache is an opened dyld shared cache.
type Cache struct {
	Header
	Mappings []Mapping
	Images   []*Image

	ImagesOffset uint32
	ImagesCount  uint32

	file *container.Container
	r    io.ReaderAt
	size uint64
}

// Open parses the cache header, mappings and image table of r.
func Open(r io.ReaderAt, size uint64) (*Cache, error) {
	// the whole file is one big-range "container" for bounds checking
	c := &Cache{r: r, size: size, file: container.Raw(r, size, binary.LittleEndian)}

	if err := c.file.ReadStruct(0, &c.Header); err != nil {
		return nil, errors.Wrapf(ErrNotCache, "failed to read header: %v", err)
	}
	if !strings.HasPrefix(types.CString(c.Magic[:]), "dyld_v1") {
		return nil, errors.Wrapf(ErrNotCache, "bad magic %q", types.CString(c.Magic[:]))
	}

	c.ImagesOffset, c.ImagesCount = c.ImagesOffsetOld, c.ImagesCountOld
	if c.MappingOffset >= imagesOffsetField+8 {
		var err error
		if c.ImagesOffset, err = c.file.Uint32(imagesOffsetField); err != nil {
			return nil, errors.Wrap(err, "failed to read images offset")
		}
		if c.ImagesCount, err = c.file.Uint32(imagesOffsetField + 4); err != nil {
			return nil, errors.Wrap(err, "failed to read images count")
		}
	}

	if err := c.readMappings(); err != nil {
		return nil, err
	}
	if err := c.readImages(); err != nil {
		return nil, err
	}

	return c, nil
}

func (c *Cache) readMappings() error {
	if c.MappingCount > maxMappings {
		return errors.Wrapf(ErrNotCache, "implausible mapping count %d", c.MappingCount)
	}
	entSize := uint64(binary.Size(Mapping{}))
	dat, err := c.file.ReadAt(uint64(c.MappingOffset), uint64(c.MappingCount)*entSize)
	if err != nil {
		return errors.Wrap(err, "failed to read mappings")
	}
	c.Mappings = make([]Mapping, c.MappingCount)
	if err := binary.Read(bytes.NewReader(dat), binary.LittleEndian, c.Mappings); err != nil {
		return errors.Wrap(err, "failed to decode mappings")
	}
	return nil
}

func (c *Cache) readImages() error {
	if c.ImagesCount > maxImages {
		return errors.Wrapf(ErrNotCache, "implausible image count %d", c.ImagesCount)
	}
	entSize := uint64(binary.Size(imageInfo{}))
	dat, err := c.file.ReadAt(uint64(c.ImagesOffset), uint64(c.ImagesCount)*entSize)
	if err != nil {
		return errors.Wrap(err, "failed to read image table")
	}
	infos := make([]imageInfo, c.ImagesCount)
	if err := binary.Read(bytes.NewReader(dat), binary.LittleEndian, infos); err != nil {
		return errors.Wrap(err, "failed to decode image table")
	}

	c.Images = make([]*Image, 0, len(infos))
	for i, info := range infos {
		path, err := c.cstring(uint64(info.PathFileOffset))
		if err != nil {
			return errors.Wrapf(err, "image %d: failed to read path", i)
		}
		off, err := c.FileOffset(info.Address)
		if err != nil {
			return errors.Wrapf(err, "image %d (%s)", i, path)
		}
		c.Images = append(c.Images, &Image{Path: path, Address: info.Address, Offset: off})
	}
	return nil
}

func (c *Cache) cstring(off uint64) (string, error) {
	n := uint64(maxPathLen)
	if off < c.size && c.size-off < n {
		n = c.size - off
	}
	dat, err := c.file.ReadAt(off, n)
	if err != nil {
		return "", err
	}
	if bytes.IndexByte(dat, 0) < 0 {
		return "", errors.Errorf("unterminated string at %#x", off)
	}
	return types.CString(dat), nil
}

// FileOffset converts an unslid cache address to a file offset.
func (c *Cache) FileOffset(addr uint64) (uint64, error) {
	for _, m := range c.Mappings {
		if addr >= m.Address && addr-m.Address < m.Size {
			return m.FileOffset + (addr - m.Address), nil
		}
	}
	return 0, errors.Wrapf(ErrUnmapped, "%#x", addr)
}

// Image returns the image with the given install path or base name.
func (c *Cache) Image(name string) (*Image, error) {
	for _, img := range c.Images {
		if img.Path == name {
			return img, nil
		}
	}
	for _, img := range c.Images {
		if img.Name() == name {
			return img, nil
		}
	}
	return nil, errors.Wrap(ErrImageNotFound, name)
}

// Container returns the image as a container. Linkedit offsets inside cache
// images are relative to the start of the cache, so the whole cache is the
// container's range and the mach header sits at the image's file offset.
func (c *Cache) Container(img *Image) (*container.Container, error) {
	return container.NewAt(c.r, 0, c.size, img.Offset)
}

// Containers returns one container per image, in image table order.
func (c *Cache) Containers() ([]*container.Container, error) {
	cs := make([]*container.Container, 0, len(c.Images))
	for _, img := range c.Images {
		ctr, err := c.Container(img)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to open %s", img.Path)
		}
		cs = append(cs, ctr)
	}
	return cs, nil
}
