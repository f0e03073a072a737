// Package tbd consolidates the Mach-O containers of one dynamic library into
// a single Record describing its text-based stub.
package tbd

import (
	"context"
	"io"
	"sort"

	"github.com/apex/log"
	"github.com/appsworld/go-tbd/pkg/arch"
	"github.com/appsworld/go-tbd/pkg/container"
	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
)

// Consolidate parses every container of one image and merges them into a
// Record. Containers are processed in order; the first one is authoritative
// for single-value fields. On error no Record is returned.
//
// ctx is checked between containers.
func Consolidate(ctx context.Context, containers []*container.Container, opts *Options) (*Record, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	if len(containers) == 0 {
		return nil, ErrNoContainers
	}

	rec := newRecord(opts)
	for i, c := range containers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		a, err := arch.Resolve(c.CPU, c.SubCPU)
		if err != nil {
			return nil, &ContainerError{Index: i, Err: err}
		}
		if rec.Archs.Has(a.Index) {
			return nil, &ContainerError{Index: i, Arch: a.Name, Err: errors.Wrapf(ErrDuplicateArch, "%s", a.Name)}
		}

		res, err := scanContainer(c, a, opts)
		if err != nil {
			return nil, &ContainerError{Index: i, Arch: a.Name, Err: err}
		}
		if err := rec.merge(res, i, opts); err != nil {
			return nil, &ContainerError{Index: i, Arch: a.Name, Err: err}
		}

		log.WithFields(log.Fields{
			"arch":      a.Name,
			"size":      humanize.Bytes(c.Size),
			"reexports": len(res.reexports),
			"clients":   len(res.clients),
			"symbols":   len(res.symbols),
		}).Debug("Merged container")
	}

	if err := rec.finalize(opts); err != nil {
		return nil, err
	}
	return rec, nil
}

// ConsolidateReader consolidates a thin or fat Mach-O file.
func ConsolidateReader(ctx context.Context, r io.ReaderAt, size uint64, opts *Options) (*Record, error) {
	containers, err := container.Open(r, size)
	if err != nil {
		return nil, err
	}
	return Consolidate(ctx, containers, opts)
}

// finalize runs the checks that need every container, applies overrides
// and freezes the record.
func (r *Record) finalize(opts *Options) error {
	st := r.state

	if !opts.IgnoreMissingIdentification {
		if _, ok := st.installName.get(); !ok && opts.parseInstallName() {
			return ErrMissingInstallName
		}
		if _, ok := st.currentVersion.get(); !ok && opts.parseCurrentVersion() {
			return ErrMissingCurrentVersion
		}
		if _, ok := st.compatVersion.get(); !ok && opts.parseCompatVersion() {
			return ErrMissingCompatVersion
		}
	}
	if _, ok := st.platform.get(); !ok && opts.parsePlatform() && !opts.IgnoreMissingPlatform {
		return ErrMissingPlatform
	}
	if opts.parseUUIDs() && !opts.IgnoreMissingUUIDs && len(r.UUIDs) != st.containers {
		return errors.Wrapf(ErrMissingUUIDs, "%d of %d containers have a uuid", len(r.UUIDs), st.containers)
	}

	r.InstallName, _ = st.installName.get()
	r.CurrentVersion, _ = st.currentVersion.get()
	r.CompatVersion, _ = st.compatVersion.get()
	r.Platform, _ = st.platform.get()
	r.ParentUmbrella, _ = st.parentUmbrella.get()
	r.ObjcConstraint, _ = st.objcConstraint.get()
	r.SwiftVersion, _ = st.swiftVersion.get()
	r.Flags, _ = st.flags.get()

	o := opts.Overrides
	if o.InstallName != "" {
		r.InstallName = o.InstallName
	}
	if o.CurrentVersion != nil {
		r.CurrentVersion = *o.CurrentVersion
	}
	if o.CompatVersion != nil {
		r.CompatVersion = *o.CompatVersion
	}
	if o.Platform.Known() {
		r.Platform = o.Platform
	}
	if o.ParentUmbrella != "" {
		r.ParentUmbrella = o.ParentUmbrella
	}
	if o.ObjcConstraint != ObjcNone {
		r.ObjcConstraint = o.ObjcConstraint
	}
	if o.SwiftVersion != nil {
		r.SwiftVersion = *o.SwiftVersion
	}

	sort.Slice(r.UUIDs, func(i, j int) bool { return r.UUIDs[i].Arch.Index < r.UUIDs[j].Arch.Index })
	r.Reexports = sortedEntries(r.Reexports)
	r.Clients = sortedEntries(r.Clients)
	r.Symbols = sortedSymbols(r.Symbols)
	r.Groups = BuildExportGroups(r.Reexports, r.Clients, r.Symbols)
	r.state = nil
	return nil
}
