package cmd

import (
	"github.com/appsworld/go-tbd/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// optionFlags mirror tbd.Options; each binds to "options.<name>".
var optionFlags = []struct {
	name  string
	usage string
}{
	{"allow-private-normal-symbols", "Export private (non-external) normal symbols"},
	{"allow-private-weak-symbols", "Export private weak-def symbols"},
	{"allow-private-objc-class-symbols", "Export private objc class symbols"},
	{"allow-private-objc-ivar-symbols", "Export private objc ivar symbols"},
	{"allow-all-private-symbols", "Export every private symbol"},
	{"ignore-current-version", "Do not parse the current version"},
	{"ignore-compatibility-version", "Do not parse the compatibility version"},
	{"ignore-install-name", "Do not parse the install name"},
	{"ignore-flags", "Do not parse the header flags"},
	{"ignore-platform", "Do not parse the platform"},
	{"ignore-objc-constraint", "Do not parse the objc constraint"},
	{"ignore-swift-version", "Do not parse the swift version"},
	{"ignore-parent-umbrella", "Do not parse the parent umbrella"},
	{"ignore-uuids", "Do not parse uuids"},
	{"ignore-reexports", "Do not parse re-exports"},
	{"ignore-clients", "Do not parse allowable clients"},
	{"ignore-exports", "Do not parse exported symbols"},
	{"ignore-missing-identification", "Allow a missing LC_ID_DYLIB"},
	{"ignore-missing-platform", "Allow a missing platform"},
	{"ignore-missing-uuids", "Allow containers without an LC_UUID"},
	{"ignore-missing-symbol-table", "Allow containers without an LC_SYMTAB"},
	{"ignore-non-unique-uuids", "Allow containers to share a uuid"},
	{"parse-unsupported-fields", "Parse fields the stub version cannot express"},
	{"export-trie", "Also read exports from the dyld export trie"},
}

// overrideFlags force record fields; each binds to "overrides.<name>".
var overrideFlags = []struct {
	name  string
	usage string
}{
	{config.KeyInstallName, "Force the install name"},
	{config.KeyCurrentVersion, "Force the current version (e.g. 1.2.3)"},
	{config.KeyCompatVersion, "Force the compatibility version"},
	{config.KeyPlatform, "Force the platform (macosx, ios, tvos, ...)"},
	{config.KeyParentUmbrella, "Force the parent umbrella"},
	{config.KeyObjcConstraint, "Force the objc constraint"},
	{config.KeySwiftVersion, "Force the swift version"},
}

// addStubFlags registers the consolidation and output flags.
func addStubFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	for _, fl := range optionFlags {
		f.Bool(fl.name, false, fl.usage)
	}
	for _, fl := range overrideFlags {
		f.String(fl.name, "", fl.usage)
	}
	f.String("version", "v2", "Stub format version (v1 or v2)")
	f.StringP("output", "o", "", "Directory to write stubs to (default: CWD)")
	f.Bool("json", false, "Print records as JSON instead of writing stubs")
	f.BoolP("interactive", "i", false, "Prompt to resolve mismatched or missing fields")
	cmd.MarkFlagDirname("output")
}

// bindStubFlags binds cmd's flags to viper. It runs when cmd is executed
// because every subcommand shares the same keys.
func bindStubFlags(cmd *cobra.Command) error {
	f := cmd.Flags()
	for _, fl := range optionFlags {
		if err := viper.BindPFlag("options."+fl.name, f.Lookup(fl.name)); err != nil {
			return err
		}
	}
	for _, fl := range overrideFlags {
		if err := viper.BindPFlag("overrides."+fl.name, f.Lookup(fl.name)); err != nil {
			return err
		}
	}
	for key, name := range map[string]string{
		"options.version": "version",
		"output":          "output",
		"json":            "json",
		"interactive":     "interactive",
	} {
		if err := viper.BindPFlag(key, f.Lookup(name)); err != nil {
			return err
		}
	}
	return nil
}
