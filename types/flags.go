package types

import "strings"

// An ExportFlag is the flags value of an export trie terminal.
type ExportFlag uint64

// Export trie terminal flags.
const (
	EXPORT_SYMBOL_FLAGS_KIND_MASK         ExportFlag = 0x03
	EXPORT_SYMBOL_FLAGS_KIND_REGULAR      ExportFlag = 0x00
	EXPORT_SYMBOL_FLAGS_KIND_THREAD_LOCAL ExportFlag = 0x01
	EXPORT_SYMBOL_FLAGS_KIND_ABSOLUTE     ExportFlag = 0x02
	EXPORT_SYMBOL_FLAGS_WEAK_DEFINITION   ExportFlag = 0x04
	EXPORT_SYMBOL_FLAGS_REEXPORT          ExportFlag = 0x08
	EXPORT_SYMBOL_FLAGS_STUB_AND_RESOLVER ExportFlag = 0x10
)

// Kind is the symbol kind encoded in the low bits.
func (f ExportFlag) Kind() ExportFlag { return f & EXPORT_SYMBOL_FLAGS_KIND_MASK }

func (f ExportFlag) WeakDefinition() bool  { return f&EXPORT_SYMBOL_FLAGS_WEAK_DEFINITION != 0 }
func (f ExportFlag) ReExport() bool        { return f&EXPORT_SYMBOL_FLAGS_REEXPORT != 0 }
func (f ExportFlag) StubAndResolver() bool { return f&EXPORT_SYMBOL_FLAGS_STUB_AND_RESOLVER != 0 }

var exportKindNames = map[ExportFlag]string{
	EXPORT_SYMBOL_FLAGS_KIND_REGULAR:      "regular",
	EXPORT_SYMBOL_FLAGS_KIND_THREAD_LOCAL: "thread_local",
	EXPORT_SYMBOL_FLAGS_KIND_ABSOLUTE:     "absolute",
}

// String lists the kind followed by any set attribute, e.g. "regular|weak".
func (f ExportFlag) String() string {
	kind, ok := exportKindNames[f.Kind()]
	if !ok {
		kind = "unknown"
	}
	parts := []string{kind}
	if f.WeakDefinition() {
		parts = append(parts, "weak")
	}
	if f.ReExport() {
		parts = append(parts, "reexport")
	}
	if f.StubAndResolver() {
		parts = append(parts, "resolver")
	}
	return strings.Join(parts, "|")
}
