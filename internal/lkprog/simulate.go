// Public domain.

package lkprog

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/chapinalc/New-NewLinker/internal/catalog"
	"github.com/chapinalc/New-NewLinker/internal/evaluate"
	"github.com/chapinalc/New-NewLinker/internal/grow"
	"github.com/chapinalc/New-NewLinker/internal/merge"
	"github.com/chapinalc/New-NewLinker/internal/oracle"
	"github.com/chapinalc/New-NewLinker/internal/sift"
	"github.com/chapinalc/New-NewLinker/internal/store"
	"github.com/chapinalc/New-NewLinker/internal/synth"
	"github.com/chapinalc/New-NewLinker/internal/track"
)

func (a *app) simulateCmd() *cobra.Command {
	opt := synth.DefaultOptions
	var catOut, dbOut string
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Link a synthetic catalog with the in-memory oracle",
		Long: `simulate generates a catalog of linearly moving sources and noise,
then sifts the seed tracks, grows them, merges the hypotheses and scores
the result against the known sources.  No external programs are run.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sc := synth.Generate(opt)
			if catOut != "" {
				if err := catalog.WriteFile(catOut, sc.Dets); err != nil {
					return err
				}
			}
			var db *store.SQLite
			if dbOut != "" {
				var err error
				if db, err = store.Open(dbOut, a.log); err != nil {
					return err
				}
				defer db.Close()
			}
			o := a.ora
			if o == nil {
				o = oracle.NewMemory()
			}
			cat := track.NewCatalog(sc.Dets)
			r, err := a.simulate(cmd.Context(), o, cat, sc.Seeds, db)
			if err != nil {
				return err
			}
			a.printReport(r, cat, true)
			return nil
		},
	}
	f := cmd.Flags()
	f.Uint64Var(&opt.Seed, "seed", opt.Seed, "random seed, 0 seeds from the clock")
	f.IntVar(&opt.Objects, "objects", opt.Objects, "moving sources")
	f.IntVar(&opt.Noise, "noise", opt.Noise, "noise detections")
	f.IntVar(&opt.Nights, "nights", opt.Nights, "nights observed")
	f.IntVar(&opt.Spurious, "spurious", opt.Spurious, "seed tracks made of noise")
	f.Float64Var(&opt.Err, "err", opt.Err, "astrometric error, arcsec")
	f.StringVar(&catOut, "catalog", "", "also write the catalog to this CSV file")
	f.StringVar(&dbOut, "db", "", "also save every stage to this track database")
	return cmd
}

// simulate runs the linking workflow on seeds, saving each stage to db if
// it is not nil.
func (a *app) simulate(ctx context.Context, o oracle.Oracle, cat *track.Catalog, seeds []*track.Track, db *store.SQLite) (evaluate.Report, error) {
	save := func(stage string, tracks []*track.Track) error {
		if db == nil {
			return nil
		}
		return db.Save(ctx, a.cfg.Run, stage, tracks)
	}
	if err := save("seeds", seeds); err != nil {
		return evaluate.Report{}, err
	}

	res, err := sift.New(o, a.cfg.Sift.Threshold, a.log).Tracks(ctx, "seeds", seeds, 1)
	if err != nil {
		return evaluate.Report{}, err
	}
	a.printSift(res)
	if err := save("sift", res.Good); err != nil {
		return evaluate.Report{}, err
	}

	grown, err := grow.New(a.cfg.GrowParams(), o, a.log).Grow(ctx, "grow", res.Good, cat, res.Orbits)
	if err != nil {
		return evaluate.Report{}, err
	}
	a.printGrow(res.Good, grown)
	if err := save("grow", grown); err != nil {
		return evaluate.Report{}, err
	}

	hyp := expand(grown)
	a.log.Info("hypotheses", zap.Int("tracks", len(hyp)))
	linked, st, err := merge.New(a.cfg.MergeParams(), o, a.log).Link(ctx, hyp, false)
	if err != nil {
		return evaluate.Report{}, err
	}
	a.printMerge(len(hyp), linked, st)
	if err := save("merge", linked); err != nil {
		return evaluate.Report{}, err
	}
	return evaluate.Evaluate(linked, cat, a.cfg.Sift.Threshold), nil
}
