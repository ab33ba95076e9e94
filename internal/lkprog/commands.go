// Public domain.

package lkprog

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/chapinalc/New-NewLinker/internal/evaluate"
	"github.com/chapinalc/New-NewLinker/internal/grow"
	"github.com/chapinalc/New-NewLinker/internal/merge"
	"github.com/chapinalc/New-NewLinker/internal/oracle"
	"github.com/chapinalc/New-NewLinker/internal/orbscript"
	"github.com/chapinalc/New-NewLinker/internal/sift"
	"github.com/chapinalc/New-NewLinker/internal/track"
)

var (
	cyan   = color.New(color.FgCyan)
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed)
)

func (a *app) siftCmd() *cobra.Command {
	var out string
	var keepBad, suppress bool
	cmd := &cobra.Command{
		Use:   "sift <tracks>",
		Short: "Fit tracks and keep those with good fits",
		Long: `sift fits the tracks in one batch and keeps those whose χ² per degree
of freedom is below the threshold.  With --suppress no fit is run; tracks
without a χ² from an earlier fit are dropped and the rest kept as they are.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cat, err := a.catalog()
			if err != nil {
				return err
			}
			tracks, err := a.readTracks(ctx, cat, args[0])
			if err != nil {
				return err
			}
			if suppress {
				kept := sift.RemoveUnfit(tracks)
				cyan.Fprintln(a.out, "sift")
				fmt.Fprintf(a.out, "  tracks %d\n", len(tracks))
				green.Fprintf(a.out, "  fit    %d\n", len(kept))
				return a.writeTracks(ctx, out, "sift", kept)
			}
			o, err := a.openOracle()
			if err != nil {
				return err
			}
			res, err := sift.New(o, a.cfg.Sift.Threshold, a.log).Tracks(ctx, "sift", tracks, 1)
			if err != nil {
				return err
			}
			a.printSift(res)
			kept := res.Good
			if keepBad {
				kept = append(kept, res.Bad...)
			}
			return a.writeTracks(ctx, out, "sift", kept)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&out, "out", "o", "", "output track file (default list on stdout)")
	f.BoolVar(&keepBad, "keep-bad", false, "also write tracks with bad fits")
	f.BoolVar(&suppress, "suppress", false, "do not run the fitter, only drop tracks that were never fit")
	f.Float64("threshold", 0, "χ² per degree of freedom threshold (default sift.threshold)")
	_ = a.v.BindPFlag("sift.threshold", f.Lookup("threshold"))
	return cmd
}

func (a *app) printSift(res sift.Result) {
	cyan.Fprintln(a.out, "sift")
	green.Fprintf(a.out, "  good   %d\n", len(res.Good))
	red.Fprintf(a.out, "  bad    %d\n", len(res.Bad))
	fmt.Fprintf(a.out, "  orbits %s\n", res.Orbits)
}

func (a *app) growCmd() *cobra.Command {
	var out string
	var hypotheses bool
	cmd := &cobra.Command{
		Use:   "grow <tracks> [orbits]",
		Short: "Find candidate detections for tracks",
		Long: `grow predicts each track's position at the catalog's observation times
and collects detections consistent with the predictions.  Without an
orbit file the tracks are fit first.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cat, err := a.catalog()
			if err != nil {
				return err
			}
			tracks, err := a.readTracks(ctx, cat, args[0])
			if err != nil {
				return err
			}
			o, err := a.openOracle()
			if err != nil {
				return err
			}
			var orbits oracle.Orbits
			if len(args) == 2 {
				orbits = oracle.Orbits(args[1])
			} else {
				res, err := sift.New(o, a.cfg.Sift.Threshold, a.log).Tracks(ctx, "grow-fit", tracks, 1)
				if err != nil {
					return err
				}
				a.printSift(res)
				tracks, orbits = res.Good, res.Orbits
			}
			grown, err := grow.New(a.cfg.GrowParams(), o, a.log).Grow(ctx, "grow", tracks, cat, orbits)
			if err != nil {
				return err
			}
			a.printGrow(tracks, grown)
			if hypotheses {
				grown = expand(grown)
			}
			return a.writeTracks(ctx, out, "grow", grown)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&out, "out", "o", "", "output track file (default list on stdout)")
	f.BoolVar(&hypotheses, "hypotheses", false, "write one track per candidate")
	f.Float64("interval", 0, "bucket width in days (default grow.interval)")
	_ = a.v.BindPFlag("grow.interval", f.Lookup("interval"))
	return cmd
}

// expand returns the hypotheses of grown tracks, numbered from 1.
func expand(grown []*track.Track) []*track.Track {
	var h []*track.Track
	for _, t := range grown {
		h = append(h, t.Hypotheses()...)
	}
	for i, t := range h {
		t.ID = int64(i + 1)
	}
	return h
}

func (a *app) printGrow(in, grown []*track.Track) {
	n := 0
	for _, t := range grown {
		n += len(t.Cands)
	}
	cyan.Fprintln(a.out, "grow")
	fmt.Fprintf(a.out, "  tracks     %d\n", len(in))
	green.Fprintf(a.out, "  grown      %d\n", len(grown))
	fmt.Fprintf(a.out, "  candidates %d\n", n)
}

func (a *app) mergeCmd() *cobra.Command {
	var out string
	var fake bool
	cmd := &cobra.Command{
		Use:   "merge <tracks>...",
		Short: "Merge tracks sharing detections",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cat, err := a.catalog()
			if err != nil {
				return err
			}
			tracks, err := a.readTracks(ctx, cat, args...)
			if err != nil {
				return err
			}
			var o oracle.Oracle
			if !fake {
				if o, err = a.openOracle(); err != nil {
					return err
				}
			}
			linked, st, err := merge.New(a.cfg.MergeParams(), o, a.log).Link(ctx, tracks, fake)
			if err != nil {
				return err
			}
			a.printMerge(len(tracks), linked, st)
			return a.writeTracks(ctx, out, "merge", linked)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&out, "out", "o", "", "output track file (default list on stdout)")
	f.BoolVar(&fake, "fake", false, "merge by fake id instead of fitting")
	return cmd
}

func (a *app) printMerge(in int, linked []*track.Track, st merge.Stats) {
	cyan.Fprintln(a.out, "merge")
	fmt.Fprintf(a.out, "  tracks   %d\n", in)
	fmt.Fprintf(a.out, "  passes   %d\n", st.Passes)
	green.Fprintf(a.out, "  merged   %d\n", st.Merged)
	yellow.Fprintf(a.out, "  rejected %d\n", st.Rejected)
	green.Fprintf(a.out, "  linked   %d\n", len(linked))
}

func (a *app) scriptCmd() *cobra.Command {
	var dir, prefix string
	opt := orbscript.DefaultOptions
	cmd := &cobra.Command{
		Use:   "script <tracks>",
		Short: "Write observation files for an orbit fitter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := a.catalog()
			if err != nil {
				return err
			}
			tracks, err := a.readTracks(cmd.Context(), cat, args[0])
			if err != nil {
				return err
			}
			if dir == "" {
				dir = a.cfg.WorkDir
			}
			files, err := orbscript.WriteFiles(dir, prefix, tracks, opt)
			if err != nil {
				return err
			}
			a.log.Info("wrote scripts", zap.String("dir", dir), zap.Int("files", len(files)))
			green.Fprintf(a.out, "%d files in %s\n", len(files), dir)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&dir, "dir", "", "output directory (default work dir)")
	f.StringVarP(&prefix, "prefix", "o", "track", "file name prefix")
	f.Float64Var(&opt.Err, "err", opt.Err, "astrometric error, arcsec")
	f.StringVar(&opt.ObsCode, "obscode", opt.ObsCode, "observatory code")
	return cmd
}

func (a *app) evalCmd() *cobra.Command {
	var missed bool
	cmd := &cobra.Command{
		Use:   "eval <tracks>",
		Short: "Score tracks against the fake ids of the catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := a.catalog()
			if err != nil {
				return err
			}
			tracks, err := a.readTracks(cmd.Context(), cat, args[0])
			if err != nil {
				return err
			}
			a.printReport(evaluate.Evaluate(tracks, cat, a.cfg.Sift.Threshold), cat, missed)
			return nil
		},
	}
	cmd.Flags().BoolVar(&missed, "missed", false, "list fake ids with no pure track")
	return cmd
}

func (a *app) printReport(r evaluate.Report, cat *track.Catalog, missed bool) {
	cyan.Fprintln(a.out, "evaluation")
	r.Print(a.out)
	if !missed {
		return
	}
	if m := r.Missed(cat); len(m) > 0 {
		yellow.Fprintf(a.out, "missed %v\n", m)
	}
}
