package tbd

import (
	"fmt"

	"github.com/appsworld/go-tbd/types"
)

// Version is a text-based stub format version.
type Version int

const (
	V1 Version = 1
	V2 Version = 2
)

func (v Version) String() string { return fmt.Sprintf("v%d", int(v)) }

// ParseVersion parses "v1", "1", "v2" or "2".
func ParseVersion(s string) (Version, error) {
	switch s {
	case "v1", "1":
		return V1, nil
	case "v2", "2", "":
		return V2, nil
	}
	return 0, fmt.Errorf("unsupported tbd version %q", s)
}

// Options control which fields are parsed and which checks are enforced.
type Options struct {
	AllowPrivateNormalSymbols    bool `mapstructure:"allow-private-normal-symbols"`
	AllowPrivateWeakSymbols      bool `mapstructure:"allow-private-weak-symbols"`
	AllowPrivateObjcClassSymbols bool `mapstructure:"allow-private-objc-class-symbols"`
	AllowPrivateObjcIvarSymbols  bool `mapstructure:"allow-private-objc-ivar-symbols"`
	AllowAllPrivateSymbols       bool `mapstructure:"allow-all-private-symbols"`

	IgnoreCurrentVersion bool `mapstructure:"ignore-current-version"`
	IgnoreCompatVersion  bool `mapstructure:"ignore-compatibility-version"`
	IgnoreInstallName    bool `mapstructure:"ignore-install-name"`
	IgnoreFlags          bool `mapstructure:"ignore-flags"`
	IgnorePlatform       bool `mapstructure:"ignore-platform"`
	IgnoreObjcConstraint bool `mapstructure:"ignore-objc-constraint"`
	IgnoreSwiftVersion   bool `mapstructure:"ignore-swift-version"`
	IgnoreParentUmbrella bool `mapstructure:"ignore-parent-umbrella"`
	IgnoreUUIDs          bool `mapstructure:"ignore-uuids"`
	IgnoreReexports      bool `mapstructure:"ignore-reexports"`
	IgnoreClients        bool `mapstructure:"ignore-clients"`
	IgnoreExports        bool `mapstructure:"ignore-exports"`

	IgnoreMissingIdentification bool `mapstructure:"ignore-missing-identification"`
	IgnoreMissingPlatform       bool `mapstructure:"ignore-missing-platform"`
	IgnoreMissingUUIDs          bool `mapstructure:"ignore-missing-uuids"`
	IgnoreMissingSymbolTable    bool `mapstructure:"ignore-missing-symbol-table"`
	IgnoreNonUniqueUUIDs        bool `mapstructure:"ignore-non-unique-uuids"`

	// ParseUnsupportedFieldsForVersion parses fields the target version cannot express.
	ParseUnsupportedFieldsForVersion bool `mapstructure:"parse-unsupported-fields"`
	// ExportTrie also reads exports from LC_DYLD_INFO / LC_DYLD_EXPORTS_TRIE.
	ExportTrie bool `mapstructure:"export-trie"`

	Version Version `mapstructure:"-"`

	Overrides Overrides `mapstructure:"-"`
}

// Overrides force field values instead of parsing them. A forced field is
// neither read from the containers nor reconciled between them.
type Overrides struct {
	InstallName    string
	CurrentVersion *types.Version
	CompatVersion  *types.Version
	Platform       types.Platform
	ParentUmbrella string
	ObjcConstraint ObjcConstraint
	SwiftVersion   *uint32
}

// DefaultOptions returns options for a v2 stub with every check enabled.
func DefaultOptions() *Options {
	return &Options{Version: V2}
}

func (o *Options) version() Version {
	if o.Version == 0 {
		return V2
	}
	return o.Version
}

// v2Only reports whether a field missing from v1 stubs should be parsed.
func (o *Options) v2Only() bool {
	return o.version() >= V2 || o.ParseUnsupportedFieldsForVersion
}

func (o *Options) parseInstallName() bool { return !o.IgnoreInstallName && o.Overrides.InstallName == "" }
func (o *Options) parseCurrentVersion() bool {
	return !o.IgnoreCurrentVersion && o.Overrides.CurrentVersion == nil
}
func (o *Options) parseCompatVersion() bool {
	return !o.IgnoreCompatVersion && o.Overrides.CompatVersion == nil
}
func (o *Options) parsePlatform() bool {
	return !o.IgnorePlatform && o.Overrides.Platform == types.Unknown
}
func (o *Options) parseParentUmbrella() bool {
	return !o.IgnoreParentUmbrella && o.Overrides.ParentUmbrella == "" && o.v2Only()
}
func (o *Options) parseObjcConstraint() bool {
	return !o.IgnoreObjcConstraint && o.Overrides.ObjcConstraint == ObjcNone && o.v2Only()
}
func (o *Options) parseSwiftVersion() bool {
	return !o.IgnoreSwiftVersion && o.Overrides.SwiftVersion == nil
}
func (o *Options) parseFlags() bool   { return !o.IgnoreFlags && o.v2Only() }
func (o *Options) parseUUIDs() bool   { return !o.IgnoreUUIDs && o.v2Only() }
func (o *Options) parseExports() bool { return !o.IgnoreExports }

func (o *Options) allowPrivate(k SymbolKind) bool {
	if o.AllowAllPrivateSymbols {
		return true
	}
	switch k {
	case SymbolNormal:
		return o.AllowPrivateNormalSymbols
	case SymbolWeak:
		return o.AllowPrivateWeakSymbols
	case SymbolObjcClass:
		return o.AllowPrivateObjcClassSymbols
	case SymbolObjcIvar:
		return o.AllowPrivateObjcIvarSymbols
	}
	return false
}
