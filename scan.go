package tbd

import (
	"bytes"
	"encoding/binary"
	"strings"

	"github.com/appsworld/go-tbd/pkg/arch"
	"github.com/appsworld/go-tbd/pkg/container"
	"github.com/appsworld/go-tbd/types"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// linkedit locates a blob of linkedit data.
type linkedit struct {
	off, size uint32
}

// A containerResult is everything one container contributes to a record.
// It is discarded if the container fails.
type containerResult struct {
	arch arch.Arch

	installName    optional[string]
	currentVersion optional[types.Version]
	compatVersion  optional[types.Version]
	platform       optional[types.Platform]
	parentUmbrella optional[string]
	objcConstraint optional[ObjcConstraint]
	swiftVersion   optional[uint32]
	flags          optional[Flags]
	uuid           optional[uuid.UUID]

	reexports []string
	clients   []string
	symbols   []symbolKey

	symtab optional[types.SymtabCmd]
	trie   optional[linkedit]

	seen map[symbolKey]bool
}

// scanContainer reads every field opts asks for from one container.
func scanContainer(c *container.Container, a arch.Arch, opts *Options) (*containerResult, error) {
	res := &containerResult{arch: a, seen: make(map[symbolKey]bool)}

	if opts.parseFlags() {
		res.flags = some(flagsFromHeader(c.Flags))
	}
	if err := walkCommands(c, func(lc loadCommand) error {
		return res.handle(c, lc, opts)
	}); err != nil {
		return nil, err
	}
	if opts.parseExports() {
		if err := res.readExports(c, opts); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func (res *containerResult) handle(c *container.Container, lc loadCommand, opts *Options) error {
	switch lc.Cmd {
	case types.LC_ID_DYLIB:
		return res.idDylib(lc, opts)
	case types.LC_REEXPORT_DYLIB:
		if opts.IgnoreReexports {
			return nil
		}
		var hdr types.DylibCmd
		if err := lc.decode(&hdr); err != nil {
			return err
		}
		name, err := lc.str(hdr.Name, binary.Size(hdr))
		if err != nil {
			return err
		}
		res.reexports = appendUnique(res.reexports, name)
	case types.LC_SUB_CLIENT:
		if opts.IgnoreClients {
			return nil
		}
		var hdr types.SubClientCmd
		if err := lc.decode(&hdr); err != nil {
			return err
		}
		name, err := lc.str(hdr.Client, binary.Size(hdr))
		if err != nil {
			return err
		}
		res.clients = appendUnique(res.clients, name)
	case types.LC_SUB_UMBRELLA:
		if !opts.parseParentUmbrella() {
			return nil
		}
		var hdr types.SubUmbrellaCmd
		if err := lc.decode(&hdr); err != nil {
			return err
		}
		name, err := lc.str(hdr.Umbrella, binary.Size(hdr))
		if err != nil {
			return err
		}
		if strings.TrimSpace(name) == "" {
			return errors.Wrapf(ErrEmptyParentUmbrella, "LC_SUB_UMBRELLA at %#x", lc.Offset)
		}
		return res.parentUmbrella.set(name, ErrMultipleParentUmbrellas)
	case types.LC_BUILD_VERSION:
		if !opts.parsePlatform() {
			return nil
		}
		var hdr types.BuildVersionCmd
		if err := lc.decode(&hdr); err != nil {
			return err
		}
		return res.setPlatform(hdr.Platform, lc)
	case types.LC_VERSION_MIN_MACOSX, types.LC_VERSION_MIN_IPHONEOS, types.LC_VERSION_MIN_TVOS, types.LC_VERSION_MIN_WATCHOS:
		if !opts.parsePlatform() {
			return nil
		}
		return res.setPlatform(versionMinPlatform(lc.Cmd), lc)
	case types.LC_UUID:
		if !opts.parseUUIDs() {
			return nil
		}
		var hdr types.UUIDCmd
		if err := lc.decode(&hdr); err != nil {
			return err
		}
		return res.uuid.set(uuid.UUID(hdr.UUID), ErrMultipleUUIDs)
	case types.LC_SYMTAB:
		if !opts.parseExports() {
			return nil
		}
		var hdr types.SymtabCmd
		if err := lc.decode(&hdr); err != nil {
			return err
		}
		hdr.LoadCmd, hdr.Len = 0, 0
		return res.symtab.set(hdr, ErrMultipleSymbolTables)
	case types.LC_DYLD_INFO, types.LC_DYLD_INFO_ONLY:
		if !opts.parseExports() || !opts.ExportTrie {
			return nil
		}
		var hdr types.DyldInfoCmd
		if err := lc.decode(&hdr); err != nil {
			return err
		}
		if hdr.ExportSize == 0 {
			return nil
		}
		return res.trie.set(linkedit{hdr.ExportOff, hdr.ExportSize}, ErrMultipleExportTries)
	case types.LC_DYLD_EXPORTS_TRIE:
		if !opts.parseExports() || !opts.ExportTrie {
			return nil
		}
		var hdr types.LinkEditDataCmd
		if err := lc.decode(&hdr); err != nil {
			return err
		}
		if hdr.Size == 0 {
			return nil
		}
		return res.trie.set(linkedit{hdr.Offset, hdr.Size}, ErrMultipleExportTries)
	case types.LC_SEGMENT, types.LC_SEGMENT_64:
		if !opts.parseObjcConstraint() && !opts.parseSwiftVersion() {
			return nil
		}
		return res.segment(c, lc, opts)
	}
	return nil
}

func (res *containerResult) idDylib(lc loadCommand, opts *Options) error {
	var hdr types.DylibCmd
	if err := lc.decode(&hdr); err != nil {
		return err
	}
	if opts.parseInstallName() {
		name, err := lc.str(hdr.Name, binary.Size(hdr))
		if err != nil {
			return err
		}
		if strings.TrimSpace(name) == "" {
			return errors.Wrapf(ErrEmptyInstallName, "LC_ID_DYLIB at %#x", lc.Offset)
		}
		if err := res.installName.set(name, ErrMultipleInstallNames); err != nil {
			return err
		}
	}
	if opts.parseCurrentVersion() {
		if err := res.currentVersion.set(hdr.CurrentVersion, ErrMultipleCurrentVersions); err != nil {
			return err
		}
	}
	if opts.parseCompatVersion() {
		if err := res.compatVersion.set(hdr.CompatVersion, ErrMultipleCompatVersions); err != nil {
			return err
		}
	}
	return nil
}

func (res *containerResult) setPlatform(p types.Platform, lc loadCommand) error {
	if !p.Known() {
		return errors.Wrapf(ErrInvalidPlatform, "%s at %#x has platform %d", lc.Cmd, lc.Offset, uint32(p))
	}
	return res.platform.set(p, ErrMultiplePlatforms)
}

// versionMinPlatform maps a legacy version command to its platform.
func versionMinPlatform(cmd types.LoadCmd) types.Platform {
	switch cmd {
	case types.LC_VERSION_MIN_IPHONEOS:
		return types.IOS
	case types.LC_VERSION_MIN_TVOS:
		return types.TvOS
	case types.LC_VERSION_MIN_WATCHOS:
		return types.WatchOS
	}
	return types.MacOS
}

// segment looks for the objc image info in a __DATA* or __OBJC segment.
func (res *containerResult) segment(c *container.Container, lc loadCommand, opts *Options) error {
	var (
		name     string
		nsect    uint32
		fixed    int
		sectSize int
	)
	if lc.Cmd == types.LC_SEGMENT_64 {
		var seg types.Segment64
		if err := lc.decode(&seg); err != nil {
			return err
		}
		name, nsect, fixed, sectSize = types.SegName(seg.Name), seg.Nsect, binary.Size(seg), binary.Size(types.Section64{})
	} else {
		var seg types.Segment32
		if err := lc.decode(&seg); err != nil {
			return err
		}
		name, nsect, fixed, sectSize = types.SegName(seg.Name), seg.Nsect, binary.Size(seg), binary.Size(types.Section32{})
	}
	if !objcSegment(name) {
		return nil
	}
	if uint64(fixed)+uint64(nsect)*uint64(sectSize) > uint64(len(lc.Data)) {
		return errors.Wrapf(ErrInvalidSegment, "%s has %d sections but is only %d bytes", name, nsect, len(lc.Data))
	}

	r := bytes.NewReader(lc.Data[fixed:])
	for i := uint32(0); i < nsect; i++ {
		var sectName, segName string
		var off, size uint64
		if lc.Cmd == types.LC_SEGMENT_64 {
			var s types.Section64
			if err := binary.Read(r, lc.bo, &s); err != nil {
				return errors.Wrapf(ErrInvalidSection, "failed to read section %d of %s: %v", i, name, err)
			}
			sectName, segName, off, size = types.SegName(s.Name), types.SegName(s.Seg), uint64(s.Offset), s.Size
		} else {
			var s types.Section32
			if err := binary.Read(r, lc.bo, &s); err != nil {
				return errors.Wrapf(ErrInvalidSection, "failed to read section %d of %s: %v", i, name, err)
			}
			sectName, segName, off, size = types.SegName(s.Name), types.SegName(s.Seg), uint64(s.Offset), uint64(s.Size)
		}
		if segName == "" {
			segName = name
		}
		if !isObjcImageInfo(segName, sectName) {
			continue
		}

		constraint, swift, err := readObjcImageInfo(c, off, size)
		if err != nil {
			return errors.Wrapf(err, "%s,%s", segName, sectName)
		}
		if opts.parseObjcConstraint() {
			if err := res.objcConstraint.set(constraint, ErrMultipleObjcConstraints); err != nil {
				return err
			}
		}
		if opts.parseSwiftVersion() && swift != 0 {
			if err := res.swiftVersion.set(swift, ErrMultipleSwiftVersions); err != nil {
				return err
			}
		}
	}
	return nil
}

// readExports reads the symbol table and, when enabled, the export trie.
func (res *containerResult) readExports(c *container.Container, opts *Options) error {
	if !res.symtab.ok && !res.trie.ok {
		if opts.IgnoreMissingSymbolTable {
			return nil
		}
		return ErrMissingSymbolTable
	}
	if st, ok := res.symtab.get(); ok {
		if err := res.readSymbolTable(c, st, opts); err != nil {
			return err
		}
	}
	if t, ok := res.trie.get(); ok {
		if err := res.readExportTrie(c, t); err != nil {
			return err
		}
	}
	return nil
}

func (res *containerResult) readSymbolTable(c *container.Container, st types.SymtabCmd, opts *Options) error {
	strs, err := newStringTable(c, st.Stroff, st.Strsize)
	if err != nil {
		return err
	}
	syms, err := newSymbolTable(c, st.Symoff, st.Nsyms)
	if err != nil {
		return err
	}
	return syms.Each(func(n nlist) error {
		if n.Type.IsDebugSym() || !n.Type.IsDefinedInSection() {
			return nil
		}
		name, err := strs.At(n.Strx)
		if err != nil {
			return err
		}
		kind, display := Classify(name, n.Desc)
		if !n.Type.IsExternalSym() && !opts.allowPrivate(kind) {
			return nil
		}
		res.addSymbol(display, kind)
		return nil
	})
}

func (res *containerResult) addSymbol(name string, kind SymbolKind) {
	if name == "" {
		return
	}
	k := symbolKey{name, kind}
	if res.seen[k] {
		return
	}
	res.seen[k] = true
	res.symbols = append(res.symbols, k)
}

// appendUnique appends s unless it is blank or already present.
func appendUnique(list []string, s string) []string {
	if strings.TrimSpace(s) == "" {
		return list
	}
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}
