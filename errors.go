package tbd

import (
	"fmt"

	"github.com/appsworld/go-tbd/pkg/arch"
	"github.com/appsworld/go-tbd/pkg/container"
	"github.com/pkg/errors"
)

// Structural errors.
var (
	ErrNoContainers        = errors.New("no containers to consolidate")
	ErrDuplicateArch       = errors.New("duplicate architecture")
	ErrInvalidLoadCommands = errors.New("invalid load command area")
	ErrInvalidLoadCommand  = errors.New("invalid load command")
	ErrInvalidSegment      = errors.New("invalid segment")
	ErrInvalidSection      = errors.New("invalid section")
	ErrInvalidSymbolTable  = errors.New("invalid symbol table")
	ErrInvalidStringTable  = errors.New("invalid string table")
	ErrInvalidStringIndex  = errors.New("string table index out of range")
	ErrInvalidExportTrie   = errors.New("invalid export trie")
	ErrInvalidPlatform     = errors.New("invalid platform")
	ErrEmptyInstallName    = errors.New("empty install name")
	ErrEmptyParentUmbrella = errors.New("empty parent umbrella")
)

// Fields found more than once in a single container.
var (
	ErrMultipleInstallNames    = errors.New("multiple install names")
	ErrMultipleCurrentVersions = errors.New("multiple current versions")
	ErrMultipleCompatVersions  = errors.New("multiple compatibility versions")
	ErrMultiplePlatforms       = errors.New("multiple platforms")
	ErrMultipleParentUmbrellas = errors.New("multiple parent umbrellas")
	ErrMultipleUUIDs           = errors.New("multiple uuids")
	ErrMultipleObjcConstraints = errors.New("multiple objc constraints")
	ErrMultipleSwiftVersions   = errors.New("multiple swift versions")
	ErrMultipleSymbolTables    = errors.New("multiple symbol tables")
	ErrMultipleExportTries     = errors.New("multiple export tries")
)

// Fields that differ between containers of one image.
var (
	ErrInstallNameMismatch    = errors.New("install name mismatch")
	ErrCurrentVersionMismatch = errors.New("current version mismatch")
	ErrCompatVersionMismatch  = errors.New("compatibility version mismatch")
	ErrPlatformMismatch       = errors.New("platform mismatch")
	ErrParentUmbrellaMismatch = errors.New("parent umbrella mismatch")
	ErrObjcConstraintMismatch = errors.New("objc constraint mismatch")
	ErrSwiftVersionMismatch   = errors.New("swift version mismatch")
	ErrFlagsMismatch          = errors.New("flags mismatch")
	ErrUUIDMismatch           = errors.New("uuid presence mismatch")
	ErrNonUniqueUUIDs         = errors.New("non-unique uuids")
)

// Required fields absent from every container.
var (
	ErrMissingInstallName    = errors.New("missing install name")
	ErrMissingCurrentVersion = errors.New("missing current version")
	ErrMissingCompatVersion  = errors.New("missing compatibility version")
	ErrMissingPlatform       = errors.New("missing platform")
	ErrMissingUUIDs          = errors.New("missing uuids")
	ErrMissingSymbolTable    = errors.New("missing symbol table")
)

// ErrTooLarge is returned when a table is too large to buffer.
var ErrTooLarge = errors.New("table too large")

// A ContainerError records which container of an image failed.
type ContainerError struct {
	Index int
	Arch  string
	Err   error
}

func (e *ContainerError) Error() string {
	if e.Arch != "" {
		return fmt.Sprintf("container %d (%s): %v", e.Index, e.Arch, e.Err)
	}
	return fmt.Sprintf("container %d: %v", e.Index, e.Err)
}

func (e *ContainerError) Unwrap() error { return e.Err }

// Class groups errors by how a caller may react to them.
type Class int

const (
	ClassUnknown    Class = iota
	ClassStructural       // malformed input; never retried
	ClassMismatch         // containers disagree; retry with ignore or override
	ClassMissing          // a required field is absent; retry with ignore or override
	ClassIO               // the stream failed
	ClassResource         // a table was too large to buffer
)

func (c Class) String() string {
	switch c {
	case ClassStructural:
		return "structural"
	case ClassMismatch:
		return "mismatch"
	case ClassMissing:
		return "missing"
	case ClassIO:
		return "io"
	case ClassResource:
		return "resource"
	}
	return "unknown"
}

var classes = map[Class][]error{
	ClassStructural: {
		ErrNoContainers, ErrDuplicateArch, ErrInvalidLoadCommands, ErrInvalidLoadCommand,
		ErrInvalidSegment, ErrInvalidSection, ErrInvalidSymbolTable, ErrInvalidStringTable,
		ErrInvalidStringIndex, ErrInvalidExportTrie, ErrInvalidPlatform, ErrEmptyInstallName,
		ErrEmptyParentUmbrella, arch.ErrUnrecognizedCPU, arch.ErrInvalidSubtype,
		container.ErrInvalidRange, container.ErrOverlapsHeader, container.ErrNotMachO,
		container.ErrInvalidFatArch,
	},
	ClassMismatch: {
		ErrMultipleInstallNames, ErrMultipleCurrentVersions, ErrMultipleCompatVersions,
		ErrMultiplePlatforms, ErrMultipleParentUmbrellas, ErrMultipleUUIDs,
		ErrMultipleObjcConstraints, ErrMultipleSwiftVersions, ErrMultipleSymbolTables,
		ErrMultipleExportTries, ErrInstallNameMismatch, ErrCurrentVersionMismatch,
		ErrCompatVersionMismatch, ErrPlatformMismatch, ErrParentUmbrellaMismatch,
		ErrObjcConstraintMismatch, ErrSwiftVersionMismatch, ErrFlagsMismatch,
		ErrUUIDMismatch, ErrNonUniqueUUIDs,
	},
	ClassMissing: {
		ErrMissingInstallName, ErrMissingCurrentVersion, ErrMissingCompatVersion,
		ErrMissingPlatform, ErrMissingUUIDs, ErrMissingSymbolTable,
	},
	ClassIO:       {container.ErrSeekFailed, container.ErrReadFailed},
	ClassResource: {ErrTooLarge},
}

// ErrorClass reports the class of err.
func ErrorClass(err error) Class {
	for class, errs := range classes {
		for _, e := range errs {
			if errors.Is(err, e) {
				return class
			}
		}
	}
	return ClassUnknown
}
