package tbd

import (
	"bytes"
	"context"
	"encoding/binary"
	"testing"

	"github.com/appsworld/go-tbd/internal/machotest"
	"github.com/appsworld/go-tbd/pkg/arch"
	"github.com/appsworld/go-tbd/pkg/container"
	"github.com/appsworld/go-tbd/pkg/dsc"
	"github.com/appsworld/go-tbd/types"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const installName = "/usr/lib/libFoo.dylib"

var le = binary.LittleEndian

func mustArch(t *testing.T, name string) arch.Arch {
	t.Helper()
	a, ok := arch.Lookup(name)
	if !ok {
		t.Fatalf("unknown arch %q", name)
	}
	return a
}

func testUUID(b byte) *types.UUID {
	u := types.UUID{b, 0x12, 0x34, 0x56, 0x78, 0x9a, 0xbc, 0xde, 0xf0, 1, 2, 3, 4, 5, 6, b}
	return &u
}

func arm64Dylib() *machotest.Image {
	return &machotest.Image{
		CPU:            types.CPUArm64,
		SubCPU:         types.CPUSubtypeArm64All,
		Flags:          types.TwoLevel | types.AppExtensionSafe,
		InstallName:    installName,
		CurrentVersion: types.NewVersion(1, 0, 0),
		CompatVersion:  types.NewVersion(1, 0, 0),
		Platform:       types.IOS,
		MinOS:          types.NewVersion(14, 0, 0),
		UUID:           testUUID(0x64),
		Symbols:        []machotest.Symbol{{Name: "_foo"}},
	}
}

func armv7Dylib() *machotest.Image {
	img := arm64Dylib()
	img.Is32 = true
	img.CPU = types.CPUArm
	img.SubCPU = types.CPUSubtypeArmV7
	img.UUID = testUUID(0x07)
	return img
}

func openImages(t *testing.T, imgs ...*machotest.Image) []*container.Container {
	t.Helper()
	var cs []*container.Container
	for _, img := range imgs {
		dat := img.Bytes()
		c, err := container.New(bytes.NewReader(dat), 0, uint64(len(dat)))
		if err != nil {
			t.Fatalf("container.New() error = %v", err)
		}
		cs = append(cs, c)
	}
	return cs
}

func consolidate(t *testing.T, opts *Options, imgs ...*machotest.Image) (*Record, error) {
	t.Helper()
	return Consolidate(context.Background(), openImages(t, imgs...), opts)
}

func TestConsolidateSingle(t *testing.T) {
	img := arm64Dylib()
	img.CurrentVersion = types.NewVersion(1, 2, 3)
	img.ParentUmbrella = "Foundation"
	img.ObjC = &types.ObjCImageInfo{Flags: types.ImageInfoFlag(5 << 8)}
	img.Reexports = []string{"/usr/lib/libB.dylib", "/usr/lib/libA.dylib", "  "}
	img.Clients = []string{"Zed", "Alpha", ""}
	img.Symbols = []machotest.Symbol{
		{Name: "_foo"},
		{Name: "_bar", Desc: types.N_WEAK_DEF},
		{Name: "_OBJC_CLASS_$_Baz"},
		{Name: "_OBJC_METACLASS_$_Baz"},
		{Name: "_OBJC_IVAR_$_Baz._x"},
		{Name: "_hidden", Type: types.N_SECT},
		{Name: "_undef", Type: types.N_UNDF | types.N_EXT},
		{Name: "_stab", Type: types.NLType(0x2e)},
		{Name: "_OBJC_CLASS_$"},
		{Name: "_foo"},
	}

	rec, err := consolidate(t, nil, img)
	if err != nil {
		t.Fatalf("Consolidate() error = %v", err)
	}

	a := mustArch(t, "arm64")
	set := arch.Of(a)
	want := &Record{
		Version:        V2,
		Archs:          set,
		Platform:       types.IOS,
		InstallName:    installName,
		CurrentVersion: types.NewVersion(1, 2, 3),
		CompatVersion:  types.NewVersion(1, 0, 0),
		ParentUmbrella: "Foundation",
		ObjcConstraint: ObjcRetainRelease,
		SwiftVersion:   5,
		UUIDs:          []UUIDEntry{{Arch: a, UUID: uuid.UUID(*img.UUID)}},
		Reexports: []Entry{
			{String: "/usr/lib/libA.dylib", Archs: set},
			{String: "/usr/lib/libB.dylib", Archs: set},
		},
		Clients: []Entry{
			{String: "Alpha", Archs: set},
			{String: "Zed", Archs: set},
		},
		Symbols: []Symbol{
			{Name: "_Baz", Kind: SymbolObjcClass, Archs: set},
			{Name: "_Baz._x", Kind: SymbolObjcIvar, Archs: set},
			{Name: "_bar", Kind: SymbolWeak, Archs: set},
			{Name: "_foo", Kind: SymbolNormal, Archs: set},
		},
		Groups: []ExportGroup{{
			Archs:       set,
			Reexports:   []string{"/usr/lib/libA.dylib", "/usr/lib/libB.dylib"},
			Clients:     []string{"Alpha", "Zed"},
			Symbols:     []string{"_foo"},
			WeakSymbols: []string{"_bar"},
			ObjcClasses: []string{"_Baz"},
			ObjcIvars:   []string{"_Baz._x"},
		}},
	}
	if diff := cmp.Diff(want, rec, cmpopts.IgnoreUnexported(Record{})); diff != "" {
		t.Errorf("Consolidate() mismatch (-want +got):\n%s", diff)
	}
	if rec.Archs.Count() != 1 || !rec.Archs.Has(a.Index) {
		t.Errorf("Archs = %s, want only arm64", rec.Archs)
	}
}

func TestConsolidateUnion(t *testing.T) {
	v7, v8 := armv7Dylib(), arm64Dylib()
	v7.Symbols = []machotest.Symbol{{Name: "_a"}, {Name: "_common"}}
	v8.Symbols = []machotest.Symbol{{Name: "_common"}, {Name: "_b"}}

	rec, err := consolidate(t, nil, v7, v8)
	if err != nil {
		t.Fatalf("Consolidate() error = %v", err)
	}
	armv7, arm64 := arch.Of(mustArch(t, "armv7")), arch.Of(mustArch(t, "arm64"))
	both := armv7.Union(arm64)

	if rec.Archs != both {
		t.Errorf("Archs = %s, want %s", rec.Archs, both)
	}
	wantSyms := []Symbol{
		{Name: "_a", Kind: SymbolNormal, Archs: armv7},
		{Name: "_b", Kind: SymbolNormal, Archs: arm64},
		{Name: "_common", Kind: SymbolNormal, Archs: both},
	}
	if diff := cmp.Diff(wantSyms, rec.Symbols); diff != "" {
		t.Errorf("Symbols mismatch (-want +got):\n%s", diff)
	}
	wantGroups := []ExportGroup{
		{Archs: armv7, Symbols: []string{"_a"}},
		{Archs: arm64, Symbols: []string{"_b"}},
		{Archs: both, Symbols: []string{"_common"}},
	}
	if diff := cmp.Diff(wantGroups, rec.Groups); diff != "" {
		t.Errorf("Groups mismatch (-want +got):\n%s", diff)
	}
}

func TestConsolidateEndToEnd(t *testing.T) {
	rec, err := consolidate(t, nil, armv7Dylib(), arm64Dylib())
	if err != nil {
		t.Fatalf("Consolidate() error = %v", err)
	}
	if rec.Archs.Count() != 2 {
		t.Errorf("Archs = %s, want two architectures", rec.Archs)
	}
	if rec.InstallName != installName || rec.Platform != types.IOS || rec.CurrentVersion != types.NewVersion(1, 0, 0) {
		t.Errorf("identification = %q %s %s", rec.InstallName, rec.Platform, rec.CurrentVersion)
	}
	want := []Symbol{{Name: "_foo", Kind: SymbolNormal, Archs: rec.Archs}}
	if diff := cmp.Diff(want, rec.Symbols); diff != "" {
		t.Errorf("Symbols mismatch (-want +got):\n%s", diff)
	}
	if len(rec.UUIDs) != 2 {
		t.Fatalf("got %d uuids, want 2", len(rec.UUIDs))
	}
	if rec.UUIDs[0].Arch.Name != "armv7" || rec.UUIDs[1].Arch.Name != "arm64" {
		t.Errorf("uuids ordered %s, %s", rec.UUIDs[0].Arch, rec.UUIDs[1].Arch)
	}
	if len(rec.Groups) != 1 || rec.Groups[0].Archs != rec.Archs {
		t.Errorf("Groups = %+v, want one group for every arch", rec.Groups)
	}
}

func TestInstallNameMismatch(t *testing.T) {
	foo, bar := armv7Dylib(), arm64Dylib()
	bar.InstallName = "/usr/lib/libBar.dylib"

	rec, err := consolidate(t, nil, foo, bar)
	if !errors.Is(err, ErrInstallNameMismatch) {
		t.Fatalf("Consolidate() error = %v, want ErrInstallNameMismatch", err)
	}
	if rec != nil {
		t.Errorf("Consolidate() returned a record on failure: %+v", rec)
	}
	var cerr *ContainerError
	if !errors.As(err, &cerr) || cerr.Index != 1 || cerr.Arch != "arm64" {
		t.Errorf("error = %#v, want ContainerError for container 1 (arm64)", err)
	}
	if got := ErrorClass(err); got != ClassMismatch {
		t.Errorf("ErrorClass() = %s, want %s", got, ClassMismatch)
	}
}

func TestFieldMismatch(t *testing.T) {
	objc := func(f types.ImageInfoFlag) *types.ObjCImageInfo { return &types.ObjCImageInfo{Flags: f} }
	tests := []struct {
		name          string
		first, second func(*machotest.Image)
		want          error
	}{
		{"current version", nil, func(i *machotest.Image) { i.CurrentVersion = types.NewVersion(2, 0, 0) }, ErrCurrentVersionMismatch},
		{"compat version", nil, func(i *machotest.Image) { i.CompatVersion = types.NewVersion(0, 9, 0) }, ErrCompatVersionMismatch},
		{"platform", nil, func(i *machotest.Image) { i.Platform = types.MacOS }, ErrPlatformMismatch},
		{"platform absent first", func(i *machotest.Image) { i.Platform = types.Unknown }, nil, ErrPlatformMismatch},
		{"install name absent first", func(i *machotest.Image) { i.InstallName = "" }, nil, ErrInstallNameMismatch},
		{"flags", nil, func(i *machotest.Image) { i.Flags = types.TwoLevel }, ErrFlagsMismatch},
		{"parent umbrella", func(i *machotest.Image) { i.ParentUmbrella = "Foo" }, func(i *machotest.Image) { i.ParentUmbrella = "Bar" }, ErrParentUmbrellaMismatch},
		{"parent umbrella absent later", func(i *machotest.Image) { i.ParentUmbrella = "Foo" }, nil, ErrParentUmbrellaMismatch},
		{"parent umbrella absent first", nil, func(i *machotest.Image) { i.ParentUmbrella = "Foo" }, ErrParentUmbrellaMismatch},
		{"objc constraint", func(i *machotest.Image) { i.ObjC = objc(0) }, func(i *machotest.Image) { i.ObjC = objc(types.SupportsGC) }, ErrObjcConstraintMismatch},
		{"objc constraint absent later", func(i *machotest.Image) { i.ObjC = objc(0) }, nil, ErrObjcConstraintMismatch},
		{"swift version", func(i *machotest.Image) { i.ObjC = objc(5 << 8) }, func(i *machotest.Image) { i.ObjC = objc(6 << 8) }, ErrSwiftVersionMismatch},
		{"swift version absent later", func(i *machotest.Image) { i.ObjC = objc(5 << 8) }, func(i *machotest.Image) { i.ObjC = objc(0) }, ErrSwiftVersionMismatch},
		{"uuid absent later", nil, func(i *machotest.Image) { i.UUID = nil }, ErrUUIDMismatch},
		{"uuid absent first", func(i *machotest.Image) { i.UUID = nil }, nil, ErrUUIDMismatch},
		{"uuid not unique", nil, func(i *machotest.Image) { i.UUID = testUUID(0x07) }, ErrNonUniqueUUIDs},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			first, second := armv7Dylib(), arm64Dylib()
			if tt.first != nil {
				tt.first(first)
			}
			if tt.second != nil {
				tt.second(second)
			}
			rec, err := consolidate(t, nil, first, second)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Consolidate() error = %v, want %v", err, tt.want)
			}
			if rec != nil {
				t.Errorf("Consolidate() returned a record on failure")
			}
			var cerr *ContainerError
			if !errors.As(err, &cerr) || cerr.Index != 1 {
				t.Errorf("error = %v, want ContainerError for container 1", err)
			}
			if got := ErrorClass(err); got != ClassMismatch {
				t.Errorf("ErrorClass() = %s, want %s", got, ClassMismatch)
			}
		})
	}
}

func TestMismatchWaived(t *testing.T) {
	tests := []struct {
		name   string
		second func(*machotest.Image)
		opts   *Options
		check  func(t *testing.T, rec *Record)
	}{
		{
			name:   "ignore install name",
			second: func(i *machotest.Image) { i.InstallName = "/usr/lib/libBar.dylib" },
			opts:   &Options{IgnoreInstallName: true},
			check: func(t *testing.T, rec *Record) {
				if rec.InstallName != "" {
					t.Errorf("InstallName = %q, want empty", rec.InstallName)
				}
			},
		},
		{
			name:   "override install name",
			second: func(i *machotest.Image) { i.InstallName = "/usr/lib/libBar.dylib" },
			opts:   &Options{Overrides: Overrides{InstallName: "/usr/lib/libBaz.dylib"}},
			check: func(t *testing.T, rec *Record) {
				if rec.InstallName != "/usr/lib/libBaz.dylib" {
					t.Errorf("InstallName = %q, want override", rec.InstallName)
				}
			},
		},
		{
			name:   "override platform",
			second: func(i *machotest.Image) { i.Platform = types.MacOS },
			opts:   &Options{Overrides: Overrides{Platform: types.TvOS}},
			check: func(t *testing.T, rec *Record) {
				if rec.Platform != types.TvOS {
					t.Errorf("Platform = %s, want tvos", rec.Platform)
				}
			},
		},
		{
			name:   "missing uuid",
			second: func(i *machotest.Image) { i.UUID = nil },
			opts:   &Options{IgnoreMissingUUIDs: true},
			check: func(t *testing.T, rec *Record) {
				if len(rec.UUIDs) != 1 {
					t.Errorf("got %d uuids, want 1", len(rec.UUIDs))
				}
			},
		},
		{
			name:   "non-unique uuid",
			second: func(i *machotest.Image) { i.UUID = testUUID(0x07) },
			opts:   &Options{IgnoreNonUniqueUUIDs: true},
			check: func(t *testing.T, rec *Record) {
				if len(rec.UUIDs) != 2 || rec.UUIDs[0].UUID != rec.UUIDs[1].UUID {
					t.Errorf("uuids = %v, want two equal entries", rec.UUIDs)
				}
			},
		},
		{
			name:   "ignore uuids",
			second: func(i *machotest.Image) { i.UUID = nil },
			opts:   &Options{IgnoreUUIDs: true},
			check: func(t *testing.T, rec *Record) {
				if len(rec.UUIDs) != 0 {
					t.Errorf("got %d uuids, want none", len(rec.UUIDs))
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			second := arm64Dylib()
			tt.second(second)
			rec, err := consolidate(t, tt.opts, armv7Dylib(), second)
			if err != nil {
				t.Fatalf("Consolidate() error = %v", err)
			}
			tt.check(t, rec)
		})
	}
}

func uuidCommand(u *types.UUID) []byte {
	var buf bytes.Buffer
	binary.Write(&buf, le, types.UUIDCmd{LoadCmd: types.LC_UUID, Len: 24, UUID: *u})
	return buf.Bytes()
}

func buildVersionCommand(p types.Platform) []byte {
	var buf bytes.Buffer
	binary.Write(&buf, le, types.BuildVersionCmd{LoadCmd: types.LC_BUILD_VERSION, Len: 24, Platform: p})
	return buf.Bytes()
}

func symtabCommand(symoff, nsyms, stroff, strsize uint32) []byte {
	var buf bytes.Buffer
	binary.Write(&buf, le, types.SymtabCmd{LoadCmd: types.LC_SYMTAB, Len: 24, Symoff: symoff, Nsyms: nsyms, Stroff: stroff, Strsize: strsize})
	return buf.Bytes()
}

func TestMultipleInContainer(t *testing.T) {
	v := types.NewVersion(1, 0, 0)
	tests := []struct {
		name string
		cmd  []byte
		want error
	}{
		{"install name", machotest.DylibCommand(le, types.LC_ID_DYLIB, "/usr/lib/libOther.dylib", v, v), ErrMultipleInstallNames},
		{"current version", machotest.DylibCommand(le, types.LC_ID_DYLIB, installName, types.NewVersion(3, 0, 0), v), ErrMultipleCurrentVersions},
		{"platform", buildVersionCommand(types.MacOS), ErrMultiplePlatforms},
		{"uuid", uuidCommand(testUUID(0x99)), ErrMultipleUUIDs},
		{"symbol table", symtabCommand(0, 0, 0, 0), ErrMultipleSymbolTables},
		{"parent umbrella", machotest.StringCommand(le, types.LC_SUB_UMBRELLA, "Other"), ErrMultipleParentUmbrellas},
		{"repeated install name", machotest.DylibCommand(le, types.LC_ID_DYLIB, installName, v, v), nil},
		{"repeated platform", buildVersionCommand(types.IOS), nil},
		{"repeated uuid", uuidCommand(testUUID(0x64)), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := arm64Dylib()
			img.ParentUmbrella = "Umbrella"
			img.Commands = [][]byte{tt.cmd}
			_, err := consolidate(t, nil, img)
			if tt.want == nil {
				if err != nil {
					t.Fatalf("Consolidate() error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Fatalf("Consolidate() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func rawCommand(cmd types.LoadCmd, size uint32, body ...byte) []byte {
	b := make([]byte, 8, 8+len(body))
	le.PutUint32(b[0:], uint32(cmd))
	le.PutUint32(b[4:], size)
	return append(b, body...)
}

func TestLoadCommandErrors(t *testing.T) {
	badClient := machotest.StringCommand(le, types.LC_SUB_CLIENT, "Client")
	le.PutUint32(badClient[8:], 4)
	pastClient := machotest.StringCommand(le, types.LC_SUB_CLIENT, "Client")
	le.PutUint32(pastClient[8:], uint32(len(pastClient)))

	badSegment := machotest.SegmentCommand(le, true, "__DATA", "__objc_imageinfo", 0x100, 8)
	le.PutUint32(badSegment[64:], 5)

	tests := []struct {
		name string
		cmds [][]byte
		want error
	}{
		{"cmdsize below 8", [][]byte{rawCommand(0x7777, 4)}, ErrInvalidLoadCommand},
		{"cmdsize below minimum", [][]byte{rawCommand(types.LC_UUID, 16, make([]byte, 8)...)}, ErrInvalidLoadCommand},
		{"cmdsize past sizeofcmds", [][]byte{rawCommand(types.LC_UUID, 0x1000, make([]byte, 16)...)}, ErrInvalidLoadCommand},
		{"string inside fixed part", [][]byte{badClient}, ErrInvalidLoadCommand},
		{"string past cmdsize", [][]byte{pastClient}, ErrInvalidLoadCommand},
		{"invalid platform", [][]byte{buildVersionCommand(types.Platform(99))}, ErrInvalidPlatform},
		{"too many sections", [][]byte{badSegment}, ErrInvalidSegment},
		{"image info past end", [][]byte{machotest.SegmentCommand(le, true, "__DATA_CONST", "__objc_imageinfo", 0xfffff0, 8)}, ErrInvalidSection},
		{"image info too small", [][]byte{machotest.SegmentCommand(le, true, "__DATA", "__objc_imageinfo", 0x100, 4)}, ErrInvalidSection},
		{"image info in header", [][]byte{machotest.SegmentCommand(le, true, "__DATA", "__objc_imageinfo", 0, 8)}, ErrInvalidSection},
		{"unknown command", [][]byte{rawCommand(0x7777, 16, make([]byte, 8)...)}, nil},
		{"other segment", [][]byte{machotest.SegmentCommand(le, true, "__TEXT", "__objc_imageinfo", 0xfffff0, 8)}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := arm64Dylib()
			img.Commands = tt.cmds
			_, err := consolidate(t, nil, img)
			if tt.want == nil {
				if err != nil {
					t.Fatalf("Consolidate() error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Fatalf("Consolidate() error = %v, want %v", err, tt.want)
			}
			if got := ErrorClass(err); got != ClassStructural {
				t.Errorf("ErrorClass() = %s, want %s", got, ClassStructural)
			}
		})
	}
}

func TestEmptyIdentity(t *testing.T) {
	img := arm64Dylib()
	img.InstallName = " \t"
	if _, err := consolidate(t, nil, img); !errors.Is(err, ErrEmptyInstallName) {
		t.Errorf("Consolidate() error = %v, want ErrEmptyInstallName", err)
	}

	img = arm64Dylib()
	img.ParentUmbrella = " "
	if _, err := consolidate(t, nil, img); !errors.Is(err, ErrEmptyParentUmbrella) {
		t.Errorf("Consolidate() error = %v, want ErrEmptyParentUmbrella", err)
	}
}

func TestMissingFields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*machotest.Image)
		opts   *Options
		want   error
	}{
		{"install name", func(i *machotest.Image) { i.InstallName = "" }, nil, ErrMissingInstallName},
		{"install name waived", func(i *machotest.Image) { i.InstallName = "" }, &Options{IgnoreMissingIdentification: true}, nil},
		{"platform", func(i *machotest.Image) { i.Platform = types.Unknown }, nil, ErrMissingPlatform},
		{"platform waived", func(i *machotest.Image) { i.Platform = types.Unknown }, &Options{IgnoreMissingPlatform: true}, nil},
		{"platform ignored", func(i *machotest.Image) { i.Platform = types.Unknown }, &Options{IgnorePlatform: true}, nil},
		{"uuid", func(i *machotest.Image) { i.UUID = nil }, nil, ErrMissingUUIDs},
		{"uuid waived", func(i *machotest.Image) { i.UUID = nil }, &Options{IgnoreMissingUUIDs: true}, nil},
		{"uuid on v1", func(i *machotest.Image) { i.UUID = nil }, &Options{Version: V1}, nil},
		{"uuid on v1 with unsupported fields", func(i *machotest.Image) { i.UUID = nil }, &Options{Version: V1, ParseUnsupportedFieldsForVersion: true}, ErrMissingUUIDs},
		{"symbol table", func(i *machotest.Image) { i.NoSymtab = true }, nil, ErrMissingSymbolTable},
		{"symbol table waived", func(i *machotest.Image) { i.NoSymtab = true }, &Options{IgnoreMissingSymbolTable: true}, nil},
		{"symbol table with exports ignored", func(i *machotest.Image) { i.NoSymtab = true }, &Options{IgnoreExports: true}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := arm64Dylib()
			tt.mutate(img)
			rec, err := consolidate(t, tt.opts, img)
			if tt.want == nil {
				if err != nil {
					t.Fatalf("Consolidate() error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Fatalf("Consolidate() error = %v, want %v", err, tt.want)
			}
			if rec != nil {
				t.Errorf("Consolidate() returned a record on failure")
			}
			if got := ErrorClass(err); got != ClassMissing {
				t.Errorf("ErrorClass() = %s, want %s", got, ClassMissing)
			}
		})
	}
}

func TestVersion1Fields(t *testing.T) {
	img := arm64Dylib()
	img.Flags = 0
	img.ParentUmbrella = "Foundation"
	img.ObjC = &types.ObjCImageInfo{Flags: types.ImageInfoFlag(5 << 8)}

	rec, err := consolidate(t, &Options{Version: V1}, img)
	if err != nil {
		t.Fatalf("Consolidate() error = %v", err)
	}
	if rec.Version != V1 || rec.ParentUmbrella != "" || rec.ObjcConstraint != ObjcNone || rec.HasFlags() || len(rec.UUIDs) != 0 {
		t.Errorf("v1 record carries v2 fields: %+v", rec)
	}
	if rec.SwiftVersion != 5 {
		t.Errorf("SwiftVersion = %d, want 5", rec.SwiftVersion)
	}

	rec, err = consolidate(t, &Options{Version: V1, ParseUnsupportedFieldsForVersion: true}, img)
	if err != nil {
		t.Fatalf("Consolidate() error = %v", err)
	}
	want := Flags{FlatNamespace: true, NotAppExtensionSafe: true}
	if rec.ParentUmbrella != "Foundation" || rec.ObjcConstraint != ObjcRetainRelease || rec.Flags != want || len(rec.UUIDs) != 1 {
		t.Errorf("v1 record with unsupported fields: %+v", rec)
	}
}

func TestObjcConstraint(t *testing.T) {
	tests := []struct {
		flags  types.ImageInfoFlag
		legacy bool
		want   ObjcConstraint
	}{
		{0, false, ObjcRetainRelease},
		{types.SupportsGC, false, ObjcRetainReleaseOrGC},
		{types.SupportsGC | types.RequiresGC, false, ObjcGC},
		{types.IsSimulated, false, ObjcRetainReleaseForSimulator},
		{types.SupportsGC | types.IsSimulated, true, ObjcRetainReleaseOrGC},
		{types.RequiresGC, true, ObjcGC},
	}
	for _, tt := range tests {
		img := arm64Dylib()
		img.ObjC = &types.ObjCImageInfo{Flags: tt.flags}
		img.LegacyObjC = tt.legacy
		rec, err := consolidate(t, nil, img)
		if err != nil {
			t.Fatalf("flags %#x: Consolidate() error = %v", uint32(tt.flags), err)
		}
		if rec.ObjcConstraint != tt.want {
			t.Errorf("flags %#x legacy=%v: ObjcConstraint = %s, want %s", uint32(tt.flags), tt.legacy, rec.ObjcConstraint, tt.want)
		}
	}
}

func TestPrivateSymbols(t *testing.T) {
	img := arm64Dylib()
	img.Symbols = []machotest.Symbol{
		{Name: "_normal", Type: types.N_SECT},
		{Name: "_weak", Type: types.N_SECT, Desc: types.N_WEAK_DEF},
		{Name: "_OBJC_CLASS_$_Cls", Type: types.N_SECT | types.N_PEXT},
		{Name: "_OBJC_IVAR_$_Cls._i", Type: types.N_SECT},
		{Name: "_public"},
	}
	names := func(rec *Record) []string {
		var out []string
		for _, s := range rec.Symbols {
			out = append(out, s.Kind.String()+":"+s.Name)
		}
		return out
	}
	tests := []struct {
		name string
		opts *Options
		want []string
	}{
		{"default", &Options{}, []string{"normal:_public"}},
		{"normal", &Options{AllowPrivateNormalSymbols: true}, []string{"normal:_normal", "normal:_public"}},
		{"weak", &Options{AllowPrivateWeakSymbols: true}, []string{"normal:_public", "weak:_weak"}},
		{"objc class", &Options{AllowPrivateObjcClassSymbols: true}, []string{"objc_class:_Cls", "normal:_public"}},
		{"objc ivar", &Options{AllowPrivateObjcIvarSymbols: true}, []string{"objc_ivar:_Cls._i", "normal:_public"}},
		{"all", &Options{AllowAllPrivateSymbols: true}, []string{"objc_class:_Cls", "objc_ivar:_Cls._i", "normal:_normal", "normal:_public", "weak:_weak"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := consolidate(t, tt.opts, img)
			if err != nil {
				t.Fatalf("Consolidate() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, names(rec)); diff != "" {
				t.Errorf("symbols mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestIgnoreLists(t *testing.T) {
	img := arm64Dylib()
	img.Reexports = []string{"/usr/lib/libA.dylib"}
	img.Clients = []string{"Client"}

	rec, err := consolidate(t, &Options{IgnoreReexports: true, IgnoreClients: true, IgnoreExports: true}, img)
	if err != nil {
		t.Fatalf("Consolidate() error = %v", err)
	}
	if len(rec.Reexports)+len(rec.Clients)+len(rec.Symbols)+len(rec.Groups) != 0 {
		t.Errorf("ignored lists were parsed: %+v", rec)
	}
}

func TestStringTableBounds(t *testing.T) {
	tests := []struct {
		name   string
		symtab func(*types.SymtabCmd)
		want   error
	}{
		{"stroff equals size", func(st *types.SymtabCmd) { st.Stroff += st.Strsize; st.Strsize = 0 }, ErrInvalidStringTable},
		{"stroff past size", func(st *types.SymtabCmd) { st.Stroff += st.Strsize + 8 }, ErrInvalidStringTable},
		{"strsize past size", func(st *types.SymtabCmd) { st.Strsize += 1 }, ErrInvalidStringTable},
		{"strsize overflows", func(st *types.SymtabCmd) { st.Strsize = 0xffffffff }, ErrInvalidStringTable},
		{"empty table", func(st *types.SymtabCmd) { st.Strsize = 0 }, ErrInvalidStringTable},
		{"stroff in header", func(st *types.SymtabCmd) { st.Stroff = 4 }, ErrInvalidStringTable},
		{"no leading NUL", func(st *types.SymtabCmd) { st.Stroff++; st.Strsize-- }, ErrInvalidStringTable},
		{"index past strsize", func(st *types.SymtabCmd) { st.Strsize = 1 }, ErrInvalidStringIndex},
		{"symoff in header", func(st *types.SymtabCmd) { st.Symoff = 8 }, ErrInvalidSymbolTable},
		{"nsyms past size", func(st *types.SymtabCmd) { st.Nsyms = 0xffffffff }, ErrInvalidSymbolTable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := arm64Dylib()
			img.Symtab = tt.symtab
			rec, err := consolidate(t, nil, img)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Consolidate() error = %v, want %v", err, tt.want)
			}
			if rec != nil {
				t.Errorf("Consolidate() returned a record on failure")
			}
		})
	}
}

func TestEngineErrors(t *testing.T) {
	if _, err := Consolidate(context.Background(), nil, nil); !errors.Is(err, ErrNoContainers) {
		t.Errorf("no containers: error = %v", err)
	}

	if _, err := consolidate(t, nil, arm64Dylib(), arm64Dylib()); !errors.Is(err, ErrDuplicateArch) {
		t.Errorf("duplicate arch: error = %v", err)
	}

	img := arm64Dylib()
	img.CPU = types.CPU(0x42)
	if _, err := consolidate(t, nil, img); !errors.Is(err, arch.ErrUnrecognizedCPU) {
		t.Errorf("unknown cpu: error = %v", err)
	}

	img = arm64Dylib()
	img.SubCPU = types.CPUSubtype(0x42)
	if _, err := consolidate(t, nil, img); !errors.Is(err, arch.ErrInvalidSubtype) {
		t.Errorf("unknown subtype: error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Consolidate(ctx, openImages(t, arm64Dylib()), nil); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled: error = %v", err)
	}
}

func TestBigEndian(t *testing.T) {
	img := &machotest.Image{
		Is32:           true,
		BigEndian:      true,
		CPU:            types.CPUPpc,
		SubCPU:         types.CPUSubtypePpcAll,
		Flags:          types.TwoLevel,
		InstallName:    "/usr/lib/libSystem.B.dylib",
		CurrentVersion: types.NewVersion(88, 3, 11),
		CompatVersion:  types.NewVersion(1, 0, 0),
		Platform:       types.MacOS,
		UseVersionMin:  true,
		MinOS:          types.NewVersion(10, 4, 0),
		UUID:           testUUID(0xbe),
		ObjC:           &types.ObjCImageInfo{Flags: types.SupportsGC},
		LegacyObjC:     true,
		Symbols:        []machotest.Symbol{{Name: "_printf"}, {Name: ".objc_class_name_NSObject"}},
	}
	rec, err := consolidate(t, nil, img)
	if err != nil {
		t.Fatalf("Consolidate() error = %v", err)
	}
	if rec.InstallName != "/usr/lib/libSystem.B.dylib" || rec.CurrentVersion.String() != "88.3.11" {
		t.Errorf("identification = %q %s", rec.InstallName, rec.CurrentVersion)
	}
	if rec.Platform != types.MacOS || rec.ObjcConstraint != ObjcRetainReleaseOrGC {
		t.Errorf("platform %s objc %s", rec.Platform, rec.ObjcConstraint)
	}
	if rec.Flags != (Flags{NotAppExtensionSafe: true}) {
		t.Errorf("Flags = %+v", rec.Flags)
	}
	if _, ok := rec.Symbol("_NSObject", SymbolObjcClass); !ok {
		t.Errorf("legacy objc class not classified: %+v", rec.Symbols)
	}
	if _, ok := rec.Symbol("_printf", SymbolNormal); !ok {
		t.Errorf("_printf missing: %+v", rec.Symbols)
	}
}

func TestFat(t *testing.T) {
	v7, v8 := armv7Dylib(), arm64Dylib()
	v8.Symbols = append(v8.Symbols, machotest.Symbol{Name: "_arm64_only"})
	dat := machotest.Fat(
		machotest.Slice{CPU: v7.CPU, SubCPU: v7.SubCPU, Data: v7.Bytes()},
		machotest.Slice{CPU: v8.CPU, SubCPU: v8.SubCPU, Data: v8.Bytes()},
	)
	rec, err := ConsolidateReader(context.Background(), bytes.NewReader(dat), uint64(len(dat)), nil)
	if err != nil {
		t.Fatalf("ConsolidateReader() error = %v", err)
	}
	if got := rec.Archs.Names(); !cmp.Equal(got, []string{"armv7", "arm64"}) {
		t.Errorf("archs = %v", got)
	}
	if len(rec.Groups) != 2 {
		t.Fatalf("got %d groups, want 2", len(rec.Groups))
	}
	if rec.Groups[0].Symbols[0] != "_arm64_only" || rec.Groups[1].Symbols[0] != "_foo" {
		t.Errorf("groups = %+v", rec.Groups)
	}
}

func TestExportTrie(t *testing.T) {
	img := arm64Dylib()
	img.NoSymtab = true
	img.Exports = []machotest.Export{
		{Name: "_foo"},
		{Name: "_bar", Flags: types.EXPORT_SYMBOL_FLAGS_WEAK_DEFINITION},
		{Name: "_OBJC_CLASS_$_Baz"},
	}

	if _, err := consolidate(t, nil, img); !errors.Is(err, ErrMissingSymbolTable) {
		t.Fatalf("without ExportTrie: error = %v, want ErrMissingSymbolTable", err)
	}

	rec, err := consolidate(t, &Options{ExportTrie: true}, img)
	if err != nil {
		t.Fatalf("Consolidate() error = %v", err)
	}
	set := rec.Archs
	want := []Symbol{
		{Name: "_Baz", Kind: SymbolObjcClass, Archs: set},
		{Name: "_bar", Kind: SymbolWeak, Archs: set},
		{Name: "_foo", Kind: SymbolNormal, Archs: set},
	}
	if diff := cmp.Diff(want, rec.Symbols); diff != "" {
		t.Errorf("Symbols mismatch (-want +got):\n%s", diff)
	}

	// symbols found in both tables are merged
	img = arm64Dylib()
	img.Exports = []machotest.Export{{Name: "_foo"}, {Name: "_trie_only"}}
	rec, err = consolidate(t, &Options{ExportTrie: true}, img)
	if err != nil {
		t.Fatalf("Consolidate() error = %v", err)
	}
	if len(rec.Symbols) != 2 {
		t.Errorf("Symbols = %+v, want _foo and _trie_only", rec.Symbols)
	}
}

func TestSharedCache(t *testing.T) {
	foo := arm64Dylib()
	foo.SubCPU = types.CPUSubtypeArm64E
	foo.Flags |= types.DylibInCache
	foo.ObjC = &types.ObjCImageInfo{Flags: types.OptimizedByDyld}
	bar := arm64Dylib()
	bar.SubCPU = types.CPUSubtypeArm64E
	bar.Flags |= types.DylibInCache
	bar.InstallName = "/usr/lib/libBar.dylib"
	bar.UUID = testUUID(0xba)
	bar.Symbols = []machotest.Symbol{{Name: "_bar"}, {Name: "_OBJC_IVAR_$_Bar._x"}}

	dat := machotest.Cache(false,
		machotest.CacheImage{Path: installName, Image: foo},
		machotest.CacheImage{Path: "/usr/lib/libBar.dylib", Image: bar},
	)
	cache, err := dsc.Open(bytes.NewReader(dat), uint64(len(dat)))
	if err != nil {
		t.Fatalf("dsc.Open() error = %v", err)
	}
	containers, err := cache.Containers()
	if err != nil {
		t.Fatalf("Containers() error = %v", err)
	}

	var jobs []Job
	for i, c := range containers {
		jobs = append(jobs, Job{Name: cache.Images[i].Path, Containers: []*container.Container{c}})
	}
	results, err := ConsolidateAll(context.Background(), jobs, nil, 2, nil)
	if err != nil {
		t.Fatalf("ConsolidateAll() error = %v", err)
	}
	for _, res := range results {
		if res.Err != nil {
			t.Fatalf("%s: %v", res.Name, res.Err)
		}
		if res.Record.InstallName != res.Name {
			t.Errorf("%s: InstallName = %q", res.Name, res.Record.InstallName)
		}
		if res.Record.Archs.Names()[0] != "arm64e" {
			t.Errorf("%s: archs = %s", res.Name, res.Record.Archs)
		}
	}
	if results[0].Record.ObjcConstraint != ObjcRetainRelease {
		t.Errorf("ObjcConstraint = %s", results[0].Record.ObjcConstraint)
	}
	if _, ok := results[1].Record.Symbol("_Bar._x", SymbolObjcIvar); !ok {
		t.Errorf("cache image symbols = %+v", results[1].Record.Symbols)
	}
}
