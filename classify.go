package tbd

import (
	"strings"

	"github.com/appsworld/go-tbd/types"
)

var objcClassPrefixes = []string{
	"_OBJC_CLASS_$",
	"_OBJC_METACLASS_$",
	".objc_class_name",
}

const objcIvarPrefix = "_OBJC_IVAR_$"

// Classify returns the export category of a symbol and its name as written
// in a stub. Weak definitions keep their name; objc class and ivar symbols
// lose their type prefix.
func Classify(name string, desc types.NLDesc) (SymbolKind, string) {
	if desc.WeakDefinition() {
		return SymbolWeak, name
	}
	for _, prefix := range objcClassPrefixes {
		if rest, ok := strings.CutPrefix(name, prefix); ok {
			return SymbolObjcClass, rest
		}
	}
	if rest, ok := strings.CutPrefix(name, objcIvarPrefix); ok {
		return SymbolObjcIvar, rest
	}
	return SymbolNormal, name
}
