// Public domain.

// Package merge combines tracks that describe the same object.
//
// The engine runs in passes.  Each pass numbers the tracks, indexes them by
// detection, and pairs every unpaired track with its lowest numbered
// mergeable partner.  All pairs of a pass are fit in one oracle call.  A
// pair with a good fit becomes one track; otherwise the better parent is
// kept and the other dropped.  Passes repeat until one finds no pairs.
// Every pair reduces the track count by one, so the loop terminates.
package merge

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/chapinalc/New-NewLinker/internal/oracle"
	"github.com/chapinalc/New-NewLinker/internal/sift"
	"github.com/chapinalc/New-NewLinker/internal/track"
)

// Config holds merge parameters.
type Config struct {
	Threshold     float64           // χ²/dof acceptance of merged fits
	InitThreshold float64           // χ²/dof acceptance reported for initial fits
	Rule          track.OverlapRule // shared detections needed to merge
	MaxPasses     int               // 0 runs to fixpoint
	MinRealLength int               // tracks shorter than this are dropped at the end
}

// DefaultConfig returns the usual merge parameters.
func DefaultConfig() Config {
	return Config{
		Threshold:     10,
		InitThreshold: 30,
		Rule:          track.Majority,
		MinRealLength: 5,
	}
}

// Stats counts what a run did.
type Stats struct {
	Passes   int
	Merged   int // pairs replaced by a merged track
	Rejected int // pairs resolved by keeping one parent
}

// Engine merges tracks using an oracle for fits.
type Engine struct {
	cfg Config
	o   oracle.Oracle
	log *zap.Logger
}

// New returns an Engine.
func New(cfg Config, o oracle.Oracle, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{cfg: cfg, o: o, log: log}
}

// Prepare fits copies of tracks once, numbering them from 1, so that every
// track entering the merge carries a χ².  Tracks with bad fits are kept and
// logged.
func (e *Engine) Prepare(ctx context.Context, tracks []*track.Track) ([]*track.Track, error) {
	res, err := sift.New(e.o, e.cfg.InitThreshold, e.log).Tracks(ctx, "init", tracks, 1)
	if err != nil {
		return nil, err
	}
	for _, t := range res.Bad {
		e.log.Info("bad initial track",
			zap.Int64("track", t.ID),
			zap.Int64s("dets", t.IDs()),
			zap.Float64("chisq", t.ChiSq))
	}
	return append(res.Good, res.Bad...), nil
}

// Run merges copies of tracks to fixpoint.  Output tracks are numbered
// from 0.
func (e *Engine) Run(ctx context.Context, tracks []*track.Track) ([]*track.Track, Stats, error) {
	var st Stats
	cur := make([]*track.Track, len(tracks))
	for i, t := range tracks {
		cur[i] = t.Clone()
	}
	for {
		if e.cfg.MaxPasses > 0 && st.Passes == e.cfg.MaxPasses {
			e.log.Warn("merge stopped before fixpoint", zap.Int("passes", st.Passes))
			for i, t := range cur {
				t.ID = int64(i)
			}
			return cur, st, nil
		}
		st.Passes++
		next, merged, rejected, err := e.pass(ctx, cur, st.Passes)
		if err != nil {
			return nil, st, err
		}
		st.Merged += merged
		st.Rejected += rejected
		e.log.Info("merge pass",
			zap.Int("pass", st.Passes),
			zap.Int("tracks", len(cur)),
			zap.Int("merged", merged),
			zap.Int("rejected", rejected))
		cur = next
		if merged+rejected == 0 {
			return cur, st, nil
		}
	}
}

type pair struct {
	a, b *track.Track
	dets []*track.Detection
}

// pass runs one merge pass.  Track ids are reassigned from 0.
func (e *Engine) pass(ctx context.Context, tracks []*track.Track, n int) (out []*track.Track, merged, rejected int, err error) {
	byDet := map[int64][]int{}
	for i, t := range tracks {
		t.ID = int64(i)
		for _, d := range t.Dets {
			byDet[d.ObjID] = append(byDet[d.ObjID], i)
		}
	}
	used := make([]bool, len(tracks))
	var pairs []pair
	for i, a := range tracks {
		if used[i] {
			continue
		}
		used[i] = true
		p := e.partner(a, tracks, byDet, used)
		if p < 0 {
			out = append(out, a)
			continue
		}
		used[p] = true
		pairs = append(pairs, pair{a, tracks[p], a.Union(tracks[p])})
	}
	if len(pairs) == 0 {
		return out, 0, 0, nil
	}

	reqs := make([]oracle.TrackDets, len(pairs))
	for k, p := range pairs {
		reqs[k] = oracle.TrackDets{TrackID: int64(k), Dets: p.dets}
	}
	ft, err := e.o.Fit(ctx, fmt.Sprintf("merge-%d", n), reqs)
	if err != nil {
		return nil, 0, 0, err
	}
	good, _ := sift.Sift(ft.Sorted(), e.cfg.Threshold)
	isGood := make(map[int64]bool, len(good))
	for _, id := range good {
		isGood[id] = true
	}
	for k, p := range pairs {
		if isGood[int64(k)] {
			t := track.New(p.dets)
			sift.Apply(t, ft.Results[int64(k)])
			out = append(out, t)
			merged++
			continue
		}
		keep := Better(p.a, p.b)
		e.log.Debug("merge rejected",
			zap.Int64s("a", p.a.IDs()),
			zap.Int64s("b", p.b.IDs()),
			zap.Int64s("kept", keep.IDs()))
		out = append(out, keep)
		rejected++
	}
	return out, merged, rejected, nil
}

// partner returns the lowest numbered unused track mergeable with a, or -1.
func (e *Engine) partner(a *track.Track, tracks []*track.Track, byDet map[int64][]int, used []bool) int {
	var cand []int
	seen := map[int]bool{}
	for _, d := range a.Dets {
		for _, j := range byDet[d.ObjID] {
			if !used[j] && !seen[j] {
				seen[j] = true
				cand = append(cand, j)
			}
		}
	}
	sort.Ints(cand)
	for _, j := range cand {
		if track.Mergeable(a, tracks[j], e.cfg.Rule) {
			return j
		}
	}
	return -1
}

// Better returns the parent to keep when the merge of a and b fails.  If
// both are fit the lower χ² per detection wins, ties going to a.  Otherwise
// the track with more distinct exposures wins, ties going to b.
func Better(a, b *track.Track) *track.Track {
	if a.ChiSq > 0 && b.ChiSq > 0 {
		if a.NormChiSq() > b.NormChiSq() {
			return b
		}
		return a
	}
	if a.RealLength() > b.RealLength() {
		return a
	}
	return b
}

// Reduce returns the tracks with at least minLen distinct exposures.
func Reduce(tracks []*track.Track, minLen int) []*track.Track {
	var out []*track.Track
	for _, t := range tracks {
		if t.RealLength() >= minLen {
			out = append(out, t)
		}
	}
	return out
}

// Link is the whole merge stage.  With fake set, tracks are merged by fake
// id instead of by fitting and numbered from 0.  Results are reduced by
// MinRealLength.
func (e *Engine) Link(ctx context.Context, tracks []*track.Track, fake bool) ([]*track.Track, Stats, error) {
	var (
		merged []*track.Track
		st     Stats
	)
	if fake {
		merged = track.MergeByFake(tracks)
		for i, t := range merged {
			c := t.Clone()
			c.ID = int64(i)
			merged[i] = c
		}
	} else {
		prepared, err := e.Prepare(ctx, tracks)
		if err != nil {
			return nil, st, err
		}
		if merged, st, err = e.Run(ctx, prepared); err != nil {
			return nil, st, err
		}
	}
	out := Reduce(merged, e.cfg.MinRealLength)
	e.log.Info("linked",
		zap.Int("in", len(tracks)),
		zap.Int("merged", len(merged)),
		zap.Int("kept", len(out)))
	return out, st, nil
}
