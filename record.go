package tbd

import (
	"github.com/appsworld/go-tbd/pkg/arch"
	"github.com/appsworld/go-tbd/types"
	"github.com/google/uuid"
)

// A SymbolKind is the export category of a symbol.
type SymbolKind uint8

const (
	SymbolNormal SymbolKind = iota
	SymbolWeak
	SymbolObjcClass
	SymbolObjcIvar
)

func (k SymbolKind) String() string {
	switch k {
	case SymbolNormal:
		return "normal"
	case SymbolWeak:
		return "weak"
	case SymbolObjcClass:
		return "objc_class"
	case SymbolObjcIvar:
		return "objc_ivar"
	}
	return "unknown"
}

func (k SymbolKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// An ObjcConstraint is the garbage collection mode derived from the objc image info.
type ObjcConstraint uint8

const (
	ObjcNone ObjcConstraint = iota
	ObjcRetainRelease
	ObjcRetainReleaseOrGC
	ObjcRetainReleaseForSimulator
	ObjcGC
)

var objcConstraintNames = map[ObjcConstraint]string{
	ObjcNone:                      "none",
	ObjcRetainRelease:             "retain_release",
	ObjcRetainReleaseOrGC:         "retain_release_or_gc",
	ObjcRetainReleaseForSimulator: "retain_release_for_simulator",
	ObjcGC:                        "gc",
}

func (c ObjcConstraint) String() string {
	if s, ok := objcConstraintNames[c]; ok {
		return s
	}
	return "unknown"
}

func (c ObjcConstraint) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

// ParseObjcConstraint is the inverse of ObjcConstraint.String.
func ParseObjcConstraint(s string) (ObjcConstraint, bool) {
	for c, name := range objcConstraintNames {
		if name == s {
			return c, true
		}
	}
	return ObjcNone, false
}

// Flags are the stub flags derived from the mach header.
type Flags struct {
	FlatNamespace       bool `json:"flat_namespace,omitempty"`
	NotAppExtensionSafe bool `json:"not_app_extension_safe,omitempty"`
}

// Names returns the stub spelling of each set flag.
func (f Flags) Names() []string {
	var names []string
	if f.FlatNamespace {
		names = append(names, "flat_namespace")
	}
	if f.NotAppExtensionSafe {
		names = append(names, "not_app_extension_safe")
	}
	return names
}

func flagsFromHeader(h types.HeaderFlag) Flags {
	return Flags{
		FlatNamespace:       !h.TwoLevel(),
		NotAppExtensionSafe: !h.AppExtensionSafe(),
	}
}

// An Entry is a re-exported library or an allowable client.
type Entry struct {
	String string       `json:"string"`
	Archs  arch.ArchSet `json:"archs"`
}

// A Symbol is one exported symbol with its type prefix stripped.
type Symbol struct {
	Name  string       `json:"name"`
	Kind  SymbolKind   `json:"kind"`
	Archs arch.ArchSet `json:"archs"`
}

type symbolKey struct {
	name string
	kind SymbolKind
}

// A UUIDEntry pairs a container's architecture with its LC_UUID.
type UUIDEntry struct {
	Arch arch.Arch `json:"arch"`
	UUID uuid.UUID `json:"uuid"`
}

// A Record is the consolidated metadata of one image.
//
// Records are built by Consolidate and are read-only once returned.
type Record struct {
	Version        Version        `json:"version"`
	Archs          arch.ArchSet   `json:"archs"`
	Platform       types.Platform `json:"platform"`
	InstallName    string         `json:"install_name"`
	CurrentVersion types.Version  `json:"current_version"`
	CompatVersion  types.Version  `json:"compatibility_version"`
	Flags          Flags          `json:"flags"`
	ParentUmbrella string         `json:"parent_umbrella,omitempty"`
	ObjcConstraint ObjcConstraint `json:"objc_constraint"`
	SwiftVersion   uint32         `json:"swift_version,omitempty"`
	UUIDs          []UUIDEntry    `json:"uuids,omitempty"`
	Reexports      []Entry        `json:"reexports,omitempty"`
	Clients        []Entry        `json:"clients,omitempty"`
	Symbols        []Symbol       `json:"symbols,omitempty"`
	Groups         []ExportGroup  `json:"-"`

	state *mergeState
}

// Symbol returns the symbol with the given display name and kind.
func (r *Record) Symbol(name string, kind SymbolKind) (Symbol, bool) {
	for _, s := range r.Symbols {
		if s.Name == name && s.Kind == kind {
			return s, true
		}
	}
	return Symbol{}, false
}

// HasFlags reports whether any stub flag is set.
func (r *Record) HasFlags() bool {
	return len(r.Flags.Names()) > 0
}
