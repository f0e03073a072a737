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
	"github.com/appsworld/go-tbd/pkg/dsc"
	"github.com/caarlos0/ctrlc"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

func init() {
	addStubFlags(dscCmd)
	dscCmd.Flags().BoolP("all", "a", false, "Create a stub for every image in the cache")
	dscCmd.Flags().IntP("workers", "w", 0, "Images to parse in parallel with --all (default: GOMAXPROCS)")
}

var dscCmd = &cobra.Command{
	Use:   "dsc <DSC> [IMAGE...]",
	Short: "Create stubs for images in a dyld shared cache",
	Example: heredoc.Doc(`
		# Write Foundation.tbd
		❯ tbd dsc dyld_shared_cache_arm64e Foundation

		# Every image in the cache, into ./stubs
		❯ tbd dsc --all -o stubs dyld_shared_cache_arm64e`),
	Args: cobra.MinimumNArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if err := bindStubFlags(cmd); err != nil {
			return err
		}
		viper.BindPFlag("dsc.all", cmd.Flags().Lookup("all"))
		viper.BindPFlag("dsc.workers", cmd.Flags().Lookup("workers"))
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		all := viper.GetBool("dsc.all")
		if !all && len(args) < 2 {
			return errors.New("specify at least one image or --all")
		}
		opts, err := config.Load(viper.GetViper())
		if err != nil {
			return err
		}

		dscPath := filepath.Clean(args[0])
		f, err := os.Open(dscPath)
		if err != nil {
			return err
		}
		defer f.Close()
		fi, err := f.Stat()
		if err != nil {
			return err
		}
		cache, err := dsc.Open(f, uint64(fi.Size()))
		if err != nil {
			return errors.Wrapf(err, "failed to open %s", dscPath)
		}

		if all {
			return dscAll(cmd.Context(), cache, opts, viper.GetInt("dsc.workers"))
		}

		interactive := viper.GetBool("interactive")
		var failed int
		for _, name := range args[1:] {
			img, err := cache.Image(name)
			if err != nil {
				log.WithError(err).Error("Image not found")
				failed++
				continue
			}
			c, err := cache.Container(img)
			if err != nil {
				return err
			}
			rec, err := consolidate(cmd.Context(), img.Path, []*container.Container{c}, opts, interactive)
			if err == nil {
				err = emit(rec)
			}
			if err != nil {
				if errors.Is(err, errSkipped) {
					log.WithField("image", img.Path).Warn("Skipped")
					continue
				}
				log.WithError(err).WithField("image", img.Path).Error("Failed to create stub")
				failed++
			}
		}
		if failed > 0 {
			return errors.Errorf("failed to create %d of %d stubs", failed, len(args)-1)
		}
		return nil
	},
}

func dscAll(ctx context.Context, cache *dsc.Cache, opts *tbd.Options, workers int) error {
	if viper.GetBool("interactive") {
		log.Warn("--interactive is ignored with --all")
	}
	containers, err := cache.Containers()
	if err != nil {
		return err
	}
	jobs := make([]tbd.Job, len(containers))
	for i, c := range containers {
		jobs[i] = tbd.Job{Name: cache.Images[i].Path, Containers: []*container.Container{c}}
	}

	p := mpb.New(mpb.WithWidth(60))
	bar := p.AddBar(int64(len(jobs)),
		mpb.PrependDecorators(
			decor.Name("images ", decor.WC{C: decor.DindentRight}),
			decor.CountersNoUnit("%d / %d", decor.WCSyncWidth),
		),
		mpb.AppendDecorators(
			decor.OnComplete(decor.Percentage(decor.WC{W: 5}), "done"),
		),
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var results []tbd.Result
	err = ctrlc.Default.Run(ctx, func() error {
		var err error
		results, err = tbd.ConsolidateAll(ctx, jobs, opts, workers, func(tbd.Result) {
			bar.Increment()
		})
		return err
	})
	if err != nil {
		cancel()
		bar.Abort(false)
		p.Wait()
		return err
	}
	p.Wait()

	var failed int
	for _, res := range results {
		if res.Err != nil {
			log.WithError(res.Err).WithFields(log.Fields{
				"image": res.Name,
				"class": tbd.ErrorClass(res.Err).String(),
			}).Warn("Failed to create stub")
			failed++
			continue
		}
		if err := emit(res.Record); err != nil {
			return err
		}
	}
	log.Infof("Created %d of %d stubs", len(results)-failed, len(results))
	return nil
}
