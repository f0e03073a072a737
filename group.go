package tbd

import (
	"sort"

	"github.com/appsworld/go-tbd/pkg/arch"
)

// An ExportGroup is every reexport, client and symbol exported by exactly
// the same set of architectures.
type ExportGroup struct {
	Archs       arch.ArchSet `json:"archs"`
	Reexports   []string     `json:"reexports,omitempty"`
	Clients     []string     `json:"allowable_clients,omitempty"`
	Symbols     []string     `json:"symbols,omitempty"`
	WeakSymbols []string     `json:"weak_def_symbols,omitempty"`
	ObjcClasses []string     `json:"objc_classes,omitempty"`
	ObjcIvars   []string     `json:"objc_ivars,omitempty"`
}

// Len is the number of members of the group.
func (g *ExportGroup) Len() int {
	return len(g.Reexports) + len(g.Clients) + len(g.Symbols) +
		len(g.WeakSymbols) + len(g.ObjcClasses) + len(g.ObjcIvars)
}

// BuildExportGroups partitions entries by their exact architecture set.
// Members keep the order of their sorted input lists; groups are ordered by
// ascending member count, ties in order of first appearance. The inputs are
// not modified.
func BuildExportGroups(reexports, clients []Entry, symbols []Symbol) []ExportGroup {
	reexports = sortedEntries(reexports)
	clients = sortedEntries(clients)
	symbols = sortedSymbols(symbols)

	var groups []ExportGroup
	index := make(map[arch.ArchSet]int)
	group := func(s arch.ArchSet) *ExportGroup {
		i, ok := index[s]
		if !ok {
			i = len(groups)
			index[s] = i
			groups = append(groups, ExportGroup{Archs: s})
		}
		return &groups[i]
	}

	for _, e := range reexports {
		g := group(e.Archs)
		g.Reexports = append(g.Reexports, e.String)
	}
	for _, e := range clients {
		g := group(e.Archs)
		g.Clients = append(g.Clients, e.String)
	}
	for _, s := range symbols {
		g := group(s.Archs)
		switch s.Kind {
		case SymbolWeak:
			g.WeakSymbols = append(g.WeakSymbols, s.Name)
		case SymbolObjcClass:
			g.ObjcClasses = append(g.ObjcClasses, s.Name)
		case SymbolObjcIvar:
			g.ObjcIvars = append(g.ObjcIvars, s.Name)
		default:
			g.Symbols = append(g.Symbols, s.Name)
		}
	}

	sort.SliceStable(groups, func(i, j int) bool { return groups[i].Len() < groups[j].Len() })
	return groups
}

func sortedEntries(in []Entry) []Entry {
	out := append([]Entry(nil), in...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].String < out[j].String })
	return out
}

func sortedSymbols(in []Symbol) []Symbol {
	out := append([]Symbol(nil), in...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Kind < out[j].Kind
	})
	return out
}
