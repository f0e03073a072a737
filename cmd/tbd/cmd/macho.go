package cmd

import (
	"context"
	"os"
	"path/filepath"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/apex/log"
	tbd "github.com/appsworld/go-tbd"
	"github.com/appsworld/go-tbd/internal/config"
	"github.com/appsworld/go-tbd/pkg/container"
	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	addStubFlags(machoCmd)
}

var machoCmd = &cobra.Command{
	Use:   "macho <FILE>...",
	Short: "Create stubs for thin or fat Mach-O dylibs",
	Example: heredoc.Doc(`
		# Write libFoo.tbd to the current directory
		❯ tbd macho /usr/lib/libFoo.dylib

		# Build a v1 stub and force the install name
		❯ tbd macho --version v1 --install-name /usr/lib/libBar.dylib libFoo.dylib

		# Dump the consolidated record
		❯ tbd macho --json libFoo.dylib`),
	Args: cobra.MinimumNArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return bindStubFlags(cmd)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := config.Load(viper.GetViper())
		if err != nil {
			return err
		}
		interactive := viper.GetBool("interactive")

		var failed int
		for _, path := range args {
			if err := machoStub(cmd.Context(), filepath.Clean(path), opts, interactive); err != nil {
				if errors.Is(err, errSkipped) {
					log.WithField("file", path).Warn("Skipped")
					continue
				}
				log.WithError(err).WithField("file", path).Error("Failed to create stub")
				failed++
			}
		}
		if failed > 0 {
			return errors.Errorf("failed to create %d of %d stubs", failed, len(args))
		}
		return nil
	},
}

func machoStub(ctx context.Context, path string, opts *tbd.Options, interactive bool) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"file": path,
		"size": humanize.Bytes(uint64(fi.Size())),
	}).Debug("Parsing")

	containers, err := container.Open(f, uint64(fi.Size()))
	if err != nil {
		return err
	}
	rec, err := consolidate(ctx, path, containers, opts, interactive)
	if err != nil {
		return err
	}
	return emit(rec)
}
