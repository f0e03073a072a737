package stub

// Every helper emits whole lines, so actions trim the template's own newlines.
const stubTemplate = `{{ header .V2 -}}
{{ list "" "archs" .Archs -}}
{{ if .UUIDs }}{{ list "" "uuids" .UUIDs }}{{ end -}}
{{ with .Platform }}{{ scalar "" "platform" . }}{{ end -}}
{{ if .Flags }}{{ list "" "flags" .Flags }}{{ end -}}
{{ scalar "" "install-name" .InstallName -}}
{{ scalar "" "current-version" .CurrentVersion -}}
{{ scalar "" "compatibility-version" .CompatVersion -}}
{{ with .SwiftVersion }}{{ scalar "" "swift-version" . }}{{ end -}}
{{ with .ObjcConstraint }}{{ scalar "" "objc-constraint" . }}{{ end -}}
{{ with .ParentUmbrella }}{{ scalar "" "parent-umbrella" . }}{{ end -}}
{{ if .Exports }}exports:
{{ range .Exports -}}
{{ list "  - " "archs" .Archs -}}
{{ if .Clients }}{{ list "    " "allowable-clients" .Clients }}{{ end -}}
{{ if .Reexports }}{{ list "    " "re-exports" .Reexports }}{{ end -}}
{{ if .Symbols }}{{ list "    " "symbols" .Symbols }}{{ end -}}
{{ if .WeakSymbols }}{{ list "    " "weak-def-symbols" .WeakSymbols }}{{ end -}}
{{ if .ObjcClasses }}{{ list "    " "objc-classes" .ObjcClasses }}{{ end -}}
{{ if .ObjcIvars }}{{ list "    " "objc-ivars" .ObjcIvars }}{{ end -}}
{{ end -}}
{{ end -}}
...
`
