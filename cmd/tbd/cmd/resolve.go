package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
	"github.com/apex/log"
	tbd "github.com/appsworld/go-tbd"
	"github.com/appsworld/go-tbd/internal/config"
	"github.com/appsworld/go-tbd/pkg/container"
	"github.com/appsworld/go-tbd/pkg/stub"
	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

var (
	colorField = color.New(color.Bold, color.FgHiBlue).SprintFunc()
	colorError = color.New(color.FgHiRed).SprintFunc()
)

// errSkipped is returned when the user chooses to skip an image.
var errSkipped = errors.New("skipped")

// A resolution is how a mismatched or missing field can be waived.
type resolution struct {
	field    string
	ignore   func(*tbd.Options)
	override string // config override key; empty when the field cannot be forced
}

func ignoreInstallName(o *tbd.Options)    { o.IgnoreInstallName = true }
func ignoreCurrentVersion(o *tbd.Options) { o.IgnoreCurrentVersion = true }
func ignoreCompatVersion(o *tbd.Options)  { o.IgnoreCompatVersion = true }
func ignorePlatform(o *tbd.Options)       { o.IgnorePlatform = true }
func ignoreUmbrella(o *tbd.Options)       { o.IgnoreParentUmbrella = true }
func ignoreObjc(o *tbd.Options)           { o.IgnoreObjcConstraint = true }
func ignoreSwift(o *tbd.Options)          { o.IgnoreSwiftVersion = true }
func ignoreUUIDs(o *tbd.Options)          { o.IgnoreUUIDs = true }

var resolutions = map[error]resolution{
	tbd.ErrInstallNameMismatch:     {"install name", ignoreInstallName, config.KeyInstallName},
	tbd.ErrMultipleInstallNames:    {"install name", ignoreInstallName, config.KeyInstallName},
	tbd.ErrMissingInstallName:      {"install name", func(o *tbd.Options) { o.IgnoreMissingIdentification = true }, config.KeyInstallName},
	tbd.ErrCurrentVersionMismatch:  {"current version", ignoreCurrentVersion, config.KeyCurrentVersion},
	tbd.ErrMultipleCurrentVersions: {"current version", ignoreCurrentVersion, config.KeyCurrentVersion},
	tbd.ErrMissingCurrentVersion:   {"current version", func(o *tbd.Options) { o.IgnoreMissingIdentification = true }, config.KeyCurrentVersion},
	tbd.ErrCompatVersionMismatch:   {"compatibility version", ignoreCompatVersion, config.KeyCompatVersion},
	tbd.ErrMultipleCompatVersions:  {"compatibility version", ignoreCompatVersion, config.KeyCompatVersion},
	tbd.ErrMissingCompatVersion:    {"compatibility version", func(o *tbd.Options) { o.IgnoreMissingIdentification = true }, config.KeyCompatVersion},
	tbd.ErrPlatformMismatch:        {"platform", ignorePlatform, config.KeyPlatform},
	tbd.ErrMultiplePlatforms:       {"platform", ignorePlatform, config.KeyPlatform},
	tbd.ErrMissingPlatform:         {"platform", func(o *tbd.Options) { o.IgnoreMissingPlatform = true }, config.KeyPlatform},
	tbd.ErrParentUmbrellaMismatch:  {"parent umbrella", ignoreUmbrella, config.KeyParentUmbrella},
	tbd.ErrMultipleParentUmbrellas: {"parent umbrella", ignoreUmbrella, config.KeyParentUmbrella},
	tbd.ErrObjcConstraintMismatch:  {"objc constraint", ignoreObjc, config.KeyObjcConstraint},
	tbd.ErrMultipleObjcConstraints: {"objc constraint", ignoreObjc, config.KeyObjcConstraint},
	tbd.ErrSwiftVersionMismatch:    {"swift version", ignoreSwift, config.KeySwiftVersion},
	tbd.ErrMultipleSwiftVersions:   {"swift version", ignoreSwift, config.KeySwiftVersion},
	tbd.ErrFlagsMismatch:           {"flags", func(o *tbd.Options) { o.IgnoreFlags = true }, ""},
	tbd.ErrUUIDMismatch:            {"uuids", func(o *tbd.Options) { o.IgnoreMissingUUIDs = true }, ""},
	tbd.ErrMultipleUUIDs:           {"uuids", ignoreUUIDs, ""},
	tbd.ErrMissingUUIDs:            {"uuids", func(o *tbd.Options) { o.IgnoreMissingUUIDs = true }, ""},
	tbd.ErrNonUniqueUUIDs:          {"uuids", func(o *tbd.Options) { o.IgnoreNonUniqueUUIDs = true }, ""},
	tbd.ErrMissingSymbolTable:      {"symbol table", func(o *tbd.Options) { o.IgnoreMissingSymbolTable = true }, ""},
	tbd.ErrMultipleSymbolTables:    {"symbol table", func(o *tbd.Options) { o.IgnoreExports = true }, ""},
	tbd.ErrMultipleExportTries:     {"export trie", func(o *tbd.Options) { o.ExportTrie = false }, ""},
}

func lookupResolution(err error) (resolution, bool) {
	for sentinel, r := range resolutions {
		if errors.Is(err, sentinel) {
			return r, true
		}
	}
	return resolution{}, false
}

// consolidate builds the record for one image. With interactive set,
// mismatched and missing fields are offered to the user to ignore or
// override, and the image is consolidated again with the amended options.
func consolidate(ctx context.Context, name string, containers []*container.Container, opts *tbd.Options, interactive bool) (*tbd.Record, error) {
	opts = cloneOptions(opts)
	for {
		rec, err := tbd.Consolidate(ctx, containers, opts)
		if err == nil {
			return rec, nil
		}
		class := tbd.ErrorClass(err)
		if !interactive || (class != tbd.ClassMismatch && class != tbd.ClassMissing) {
			return nil, err
		}
		res, ok := lookupResolution(err)
		if !ok {
			return nil, err
		}
		if err := prompt(name, err, res, opts); err != nil {
			return nil, err
		}
	}
}

func cloneOptions(o *tbd.Options) *tbd.Options {
	if o == nil {
		return tbd.DefaultOptions()
	}
	c := *o
	return &c
}

func prompt(name string, cause error, res resolution, opts *tbd.Options) error {
	fmt.Fprintf(os.Stderr, "%s: %s\n", colorField(name), colorError(cause.Error()))

	const (
		choiceIgnore   = "Ignore the field"
		choiceOverride = "Enter a value"
		choiceSkip     = "Skip this image"
	)
	choices := []string{choiceIgnore}
	if res.override != "" {
		choices = append(choices, choiceOverride)
	}
	choices = append(choices, choiceSkip)

	var choice string
	if err := survey.AskOne(&survey.Select{
		Message: fmt.Sprintf("How should the %s be resolved?", res.field),
		Options: choices,
	}, &choice); err != nil {
		if err == terminal.InterruptErr {
			return errSkipped
		}
		return err
	}

	switch choice {
	case choiceIgnore:
		res.ignore(opts)
	case choiceOverride:
		var value string
		if err := survey.AskOne(&survey.Input{
			Message: fmt.Sprintf("%s:", res.field),
		}, &value, survey.WithValidator(survey.Required), survey.WithValidator(func(ans any) error {
			var o tbd.Overrides
			return config.SetOverride(&o, res.override, ans.(string))
		})); err != nil {
			if err == terminal.InterruptErr {
				return errSkipped
			}
			return err
		}
		if err := config.SetOverride(&opts.Overrides, res.override, value); err != nil {
			return err
		}
	default:
		return errSkipped
	}
	return nil
}

// emit writes rec as a stub file, or as JSON on stdout with --json.
func emit(rec *tbd.Record) error {
	if viper.GetBool("json") {
		dat, err := json.MarshalIndent(rec, "", "  ")
		if err != nil {
			return errors.Wrap(err, "failed to marshal record")
		}
		fmt.Println(string(dat))
		return nil
	}

	out, err := stub.Generate(rec)
	if err != nil {
		return err
	}
	fname := stub.FileName(rec)
	if dir := viper.GetString("output"); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return errors.Wrapf(err, "failed to create output directory %s", dir)
		}
		fname = filepath.Join(dir, fname)
	}
	if err := os.WriteFile(fname, []byte(out), 0o660); err != nil {
		return errors.Wrapf(err, "failed to write %s", fname)
	}
	log.WithFields(log.Fields{
		"archs":   rec.Archs.String(),
		"symbols": len(rec.Symbols),
		"size":    humanize.Bytes(uint64(len(out))),
	}).Info("Created " + fname)
	return nil
}
