// Package stub renders consolidated records as text-based stubs.
package stub

import (
	"bytes"
	"fmt"
	"io"
	"path"
	"strings"
	"text/template"

	tbd "github.com/appsworld/go-tbd"
	"github.com/appsworld/go-tbd/types"
	"github.com/pkg/errors"
)

const (
	// valueColumn is where values start, relative to the key's indent.
	valueColumn = 17
	// lineWidth is the column lists are wrapped at.
	lineWidth = 105
)

var tmpl = template.Must(template.New("tbd").Funcs(template.FuncMap{
	"header": header,
	"scalar": scalar,
	"list":   list,
}).Parse(stubTemplate))

// A Stub is the rendered view of a Record.
type Stub struct {
	V2             bool
	Archs          []string
	UUIDs          []string
	Platform       string
	Flags          []string
	InstallName    string
	CurrentVersion string
	CompatVersion  string
	SwiftVersion   string
	ObjcConstraint string
	ParentUmbrella string
	Exports        []Export
}

// An Export is one exports block.
type Export struct {
	Archs       []string
	Clients     []string
	Reexports   []string
	Symbols     []string
	WeakSymbols []string
	ObjcClasses []string
	ObjcIvars   []string
}

// New builds the stub view of rec, dropping the fields its version cannot
// express.
func New(rec *tbd.Record) *Stub {
	s := &Stub{
		V2:             rec.Version >= tbd.V2,
		Archs:          rec.Archs.Names(),
		Platform:       platformName(rec.Platform),
		InstallName:    rec.InstallName,
		CurrentVersion: rec.CurrentVersion.Short(),
		CompatVersion:  rec.CompatVersion.Short(),
	}
	if rec.SwiftVersion != 0 {
		s.SwiftVersion = fmt.Sprint(rec.SwiftVersion)
	}
	if rec.ObjcConstraint != tbd.ObjcNone {
		s.ObjcConstraint = rec.ObjcConstraint.String()
	}
	if s.V2 {
		for _, u := range rec.UUIDs {
			s.UUIDs = append(s.UUIDs, fmt.Sprintf("%s: %s", u.Arch.Name, strings.ToUpper(u.UUID.String())))
		}
		s.Flags = rec.Flags.Names()
		s.ParentUmbrella = rec.ParentUmbrella
	}

	groups := rec.Groups
	if groups == nil {
		groups = tbd.BuildExportGroups(rec.Reexports, rec.Clients, rec.Symbols)
	}
	for _, g := range groups {
		e := Export{
			Archs:       g.Archs.Names(),
			Reexports:   g.Reexports,
			Symbols:     g.Symbols,
			WeakSymbols: g.WeakSymbols,
			ObjcClasses: g.ObjcClasses,
			ObjcIvars:   g.ObjcIvars,
		}
		if s.V2 {
			e.Clients = g.Clients
		}
		if e.empty() {
			continue
		}
		s.Exports = append(s.Exports, e)
	}
	return s
}

func (e *Export) empty() bool {
	return len(e.Clients)+len(e.Reexports)+len(e.Symbols)+len(e.WeakSymbols)+len(e.ObjcClasses)+len(e.ObjcIvars) == 0
}

// Write renders rec to w.
func Write(w io.Writer, rec *tbd.Record) error {
	return New(rec).Write(w)
}

// Write renders the stub to w.
func (s *Stub) Write(w io.Writer) error {
	if err := tmpl.Execute(w, s); err != nil {
		return errors.Wrap(err, "failed to execute template")
	}
	return nil
}

// Generate renders rec as a string.
func Generate(rec *tbd.Record) (string, error) {
	var buf bytes.Buffer
	if err := Write(&buf, rec); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// FileName returns the stub file name for rec: the install name's base
// name with its extension replaced by .tbd.
func FileName(rec *tbd.Record) string {
	base := path.Base(rec.InstallName)
	if rec.InstallName == "" || base == "/" || base == "." {
		return "stub.tbd"
	}
	return strings.TrimSuffix(base, path.Ext(base)) + ".tbd"
}

// platformName maps a platform to its stub spelling. Simulator and catalyst
// builds share their device platform's name.
func platformName(p types.Platform) string {
	switch p {
	case types.Unknown:
		return ""
	case types.IOSSimulator:
		return "ios"
	case types.TvOSSimulator:
		return "tvos"
	case types.WatchOSSimulator:
		return "watchos"
	case types.MacCatalyst:
		return "iosmac"
	}
	return p.String()
}

func header(v2 bool) string {
	if v2 {
		return "--- !tapi-tbd-v2\n"
	}
	return "---\n"
}

// key returns the padded "key:" prefix the value is written after.
func key(indent, name string) string {
	k := indent + name + ":"
	col := len(indent) + valueColumn
	if len(k) >= col {
		return k + " "
	}
	return k + strings.Repeat(" ", col-len(k))
}

func scalar(indent, name string, v any) string {
	return key(indent, name) + quote(fmt.Sprint(v)) + "\n"
}

// list renders items as a flow sequence wrapped at lineWidth, continuation
// lines aligned with the first item.
func list(indent, name string, items []string) string {
	var b strings.Builder
	b.WriteString(key(indent, name))
	b.WriteString("[ ")
	cont := b.Len()

	lineLen := cont
	for i, item := range items {
		text := quote(item)
		if i < len(items)-1 {
			text += ","
		}
		if i > 0 {
			if lineLen+1+len(text) > lineWidth {
				b.WriteString("\n")
				b.WriteString(strings.Repeat(" ", cont))
				lineLen = cont
			} else {
				b.WriteString(" ")
				lineLen++
			}
		}
		b.WriteString(text)
		lineLen += len(text)
	}
	b.WriteString(" ]\n")
	return b.String()
}

// quote single-quotes strings a YAML reader would not take as plain scalars.
func quote(s string) string {
	if !needsQuote(s) {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func needsQuote(s string) bool {
	if s == "" || strings.HasPrefix(s, "$ld") {
		return true
	}
	if strings.ContainsAny(s[:1], "!&*-:?{}[],#|>@`\"'%") || s[0] == ' ' || s[len(s)-1] == ' ' {
		return true
	}
	return strings.Contains(s, ": ") || strings.Contains(s, " #") || strings.ContainsAny(s, "[]{},")
}
