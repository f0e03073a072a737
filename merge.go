package tbd

import (
	"github.com/appsworld/go-tbd/pkg/arch"
	"github.com/appsworld/go-tbd/types"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// mergeState is the bookkeeping Consolidate keeps while a record is built.
type mergeState struct {
	containers int

	installName    optional[string]
	currentVersion optional[types.Version]
	compatVersion  optional[types.Version]
	platform       optional[types.Platform]
	parentUmbrella optional[string]
	objcConstraint optional[ObjcConstraint]
	swiftVersion   optional[uint32]
	flags          optional[Flags]
	firstHasUUID   bool

	uuids     map[uuid.UUID]bool
	reexports map[string]int
	clients   map[string]int
	symbols   map[symbolKey]int
}

func newRecord(opts *Options) *Record {
	return &Record{
		Version: opts.version(),
		state: &mergeState{
			uuids:     make(map[uuid.UUID]bool),
			reexports: make(map[string]int),
			clients:   make(map[string]int),
			symbols:   make(map[symbolKey]int),
		},
	}
}

// merge folds container idx into the record. Every check runs before the
// record is touched, so a failing container leaves the record unchanged.
func (r *Record) merge(res *containerResult, idx int, opts *Options) error {
	st := r.state

	installName, err := reconcile(st.installName, res.installName, idx, false, ErrInstallNameMismatch)
	if err != nil {
		return err
	}
	currentVersion, err := reconcile(st.currentVersion, res.currentVersion, idx, false, ErrCurrentVersionMismatch)
	if err != nil {
		return err
	}
	compatVersion, err := reconcile(st.compatVersion, res.compatVersion, idx, false, ErrCompatVersionMismatch)
	if err != nil {
		return err
	}
	platform, err := reconcile(st.platform, res.platform, idx, false, ErrPlatformMismatch)
	if err != nil {
		return err
	}
	flags, err := reconcile(st.flags, res.flags, idx, false, ErrFlagsMismatch)
	if err != nil {
		return err
	}
	parentUmbrella, err := reconcile(st.parentUmbrella, res.parentUmbrella, idx, true, ErrParentUmbrellaMismatch)
	if err != nil {
		return err
	}
	objcConstraint, err := reconcile(st.objcConstraint, res.objcConstraint, idx, true, ErrObjcConstraintMismatch)
	if err != nil {
		return err
	}
	swiftVersion, err := reconcile(st.swiftVersion, res.swiftVersion, idx, true, ErrSwiftVersionMismatch)
	if err != nil {
		return err
	}

	id, hasUUID := res.uuid.get()
	if opts.parseUUIDs() {
		if idx > 0 && hasUUID != st.firstHasUUID && !opts.IgnoreMissingUUIDs {
			if hasUUID {
				return errors.Wrapf(ErrUUIDMismatch, "absent from first container, found in container %d", idx)
			}
			return errors.Wrapf(ErrUUIDMismatch, "found in first container, absent from container %d", idx)
		}
		if hasUUID && st.uuids[id] && !opts.IgnoreNonUniqueUUIDs {
			return errors.Wrapf(ErrNonUniqueUUIDs, "%s", types.UUID(id))
		}
	}

	// nothing below can fail
	st.installName = installName
	st.currentVersion = currentVersion
	st.compatVersion = compatVersion
	st.platform = platform
	st.flags = flags
	st.parentUmbrella = parentUmbrella
	st.objcConstraint = objcConstraint
	st.swiftVersion = swiftVersion
	if idx == 0 {
		st.firstHasUUID = hasUUID
	}
	if hasUUID {
		st.uuids[id] = true
		r.UUIDs = append(r.UUIDs, UUIDEntry{Arch: res.arch, UUID: id})
	}

	bit := res.arch.Index
	only := arch.ArchSet(0).Set(bit)
	r.Archs = r.Archs.Set(bit)
	for _, s := range res.reexports {
		if i, ok := st.reexports[s]; ok {
			r.Reexports[i].Archs = r.Reexports[i].Archs.Set(bit)
			continue
		}
		st.reexports[s] = len(r.Reexports)
		r.Reexports = append(r.Reexports, Entry{String: s, Archs: only})
	}
	for _, s := range res.clients {
		if i, ok := st.clients[s]; ok {
			r.Clients[i].Archs = r.Clients[i].Archs.Set(bit)
			continue
		}
		st.clients[s] = len(r.Clients)
		r.Clients = append(r.Clients, Entry{String: s, Archs: only})
	}
	for _, k := range res.symbols {
		if i, ok := st.symbols[k]; ok {
			r.Symbols[i].Archs = r.Symbols[i].Archs.Set(bit)
			continue
		}
		st.symbols[k] = len(r.Symbols)
		r.Symbols = append(r.Symbols, Symbol{Name: k.name, Kind: k.kind, Archs: only})
	}
	st.containers++
	return nil
}
