// Public domain.

// Package grow finds detections lying near the predicted paths of tracks.
//
// For each track and each bucket time, the oracle predicts the track
// position at the bucket time and one interval either side.  The bucket's
// spatial index is searched about the central prediction with a radius that
// covers the neighboring predictions and their uncertainties.  Detections
// found this way are then scored by the oracle against the track orbit and
// kept if the score is small enough.
package grow

import (
	"context"
	"runtime"
	"sort"

	"go.uber.org/zap"

	"github.com/chapinalc/New-NewLinker/internal/bucket"
	"github.com/chapinalc/New-NewLinker/internal/oracle"
	"github.com/chapinalc/New-NewLinker/internal/skyproj"
	"github.com/chapinalc/New-NewLinker/internal/track"
)

// Config holds growth parameters.
type Config struct {
	Interval      float64 // bucket width and prediction offset, days
	ErrSize       float64 // multiplier on predicted uncertainty
	MaxCands      int     // capacity of one spatial query
	FinalMaxCands int     // most candidates kept per track after scoring
	Margin        float64 // days searched outside a track's arc; <= 0 searches all buckets
	SigmaFactor   float64 // keep candidates scoring below ErrSize*SigmaFactor
	MinErr        float64 // floor on predicted uncertainty, arcseconds
	MinCands      int     // tracks with fewer kept candidates are not returned
}

// DefaultConfig returns the usual growth parameters.
func DefaultConfig() Config {
	return Config{
		Interval:      2,
		ErrSize:       2,
		MaxCands:      20,
		FinalMaxCands: 100,
		SigmaFactor:   10,
		MinCands:      2,
	}
}

// Grower runs candidate searches against an oracle.
type Grower struct {
	cfg Config
	o   oracle.Oracle
	log *zap.Logger
}

// New returns a Grower.
func New(cfg Config, o oracle.Oracle, log *zap.Logger) *Grower {
	if log == nil {
		log = zap.NewNop()
	}
	return &Grower{cfg: cfg, o: o, log: log}
}

// times returns the bucket times to search for t.
func (g *Grower) times(t *track.Track, all []float64) []float64 {
	if g.cfg.Margin <= 0 || len(t.Dets) == 0 {
		return all
	}
	lo, hi := t.First()-g.cfg.Margin, t.Last()+g.cfg.Margin
	var in []float64
	for _, k := range all {
		if k+g.cfg.Interval > lo && k <= hi {
			in = append(in, k)
		}
	}
	return in
}

// PredictRequests lists, for each track and each bucket time t it is
// searched at, predictions at t and t plus and minus one interval.
// Duplicates are removed.
func (g *Grower) PredictRequests(tracks []*track.Track, times []float64) []oracle.PredictRequest {
	var reqs []oracle.PredictRequest
	for _, t := range tracks {
		for _, tm := range g.times(t, times) {
			reqs = append(reqs,
				oracle.PredictRequest{TrackID: t.ID, MJD: tm},
				oracle.PredictRequest{TrackID: t.ID, MJD: tm + g.cfg.Interval},
				oracle.PredictRequest{TrackID: t.ID, MJD: tm - g.cfg.Interval})
		}
	}
	return oracle.DedupPredict(reqs)
}

// search finds the candidates of one track.  Candidates are distinct and
// exclude members.
func (g *Grower) search(t *track.Track, set *bucket.Set, times []float64, preds oracle.PredictionTable) []*track.Detection {
	var cands []*track.Detection
	seen := map[int64]bool{}
	for _, tm := range g.times(t, times) {
		c, ok := preds.At(t.ID, tm)
		if !ok {
			continue
		}
		if !skyproj.Visible(c.Pos(), set.Ref) {
			g.log.Debug("prediction too far from plane center",
				zap.Int64("track", t.ID), zap.Float64("mjd", tm))
			continue
		}
		var nb []oracle.Prediction
		if p, ok := preds.At(t.ID, tm+g.cfg.Interval); ok {
			nb = append(nb, p)
		}
		if p, ok := preds.At(t.ID, tm-g.cfg.Interval); ok {
			nb = append(nb, p)
		}
		r := SearchRadius(set.Ref, c, nb, g.cfg.ErrSize, g.cfg.MinErr)
		x, y := skyproj.Project(c.Pos(), set.Ref)
		m, ok := set.Query(tm, x, y, r, g.cfg.MaxCands)
		if !ok {
			continue
		}
		if len(m) == g.cfg.MaxCands {
			g.log.Warn("candidate search at capacity",
				zap.Int64("track", t.ID),
				zap.Float64("mjd", tm),
				zap.Float64("radius", r),
				zap.Int("cands", len(m)))
		}
		for _, hit := range m {
			id := hit.Det.ObjID
			if seen[id] || t.Has(id) {
				continue
			}
			seen[id] = true
			cands = append(cands, hit.Det)
		}
	}
	return cands
}

// CandidatesInRadius searches every track concurrently and returns
// candidate lists by track id.
func (g *Grower) CandidatesInRadius(tracks []*track.Track, set *bucket.Set, preds oracle.PredictionTable) map[int64][]*track.Detection {
	times := set.Times()

	type job struct {
		t   *track.Track
		rch chan []*track.Detection
	}
	maxWorkers := runtime.GOMAXPROCS(0)
	jobs := make(chan job)
	// tickets in submission order
	prCh := make(chan job, maxWorkers*2)
	go func() {
		for _, t := range tracks {
			j := job{t, make(chan []*track.Detection, 1)}
			jobs <- j
			prCh <- j
		}
		close(jobs)
		close(prCh)
	}()
	for n := 0; n < maxWorkers; n++ {
		go func() {
			for j := range jobs {
				j.rch <- g.search(j.t, set, times, preds)
			}
		}()
	}
	out := make(map[int64][]*track.Detection, len(tracks))
	for j := range prCh {
		c := <-j.rch
		g.log.Debug("searched", zap.Int64("track", j.t.ID), zap.Int("cands", len(c)))
		out[j.t.ID] = c
	}
	return out
}

type scored struct {
	det   *track.Detection
	chisq float64
}

// filter keeps the candidates of t that the oracle scored below the
// acceptance limit, best first.
func (g *Grower) filter(t *track.Track, cands []*track.Detection, scores map[int64]float64) []*track.Detection {
	limit := g.cfg.ErrSize * g.cfg.SigmaFactor
	var s []scored
	for _, d := range cands {
		c, ok := scores[d.ObjID]
		if !ok || !(c < limit) || t.Has(d.ObjID) {
			continue
		}
		s = append(s, scored{d, c})
	}
	sort.SliceStable(s, func(i, j int) bool {
		if s[i].chisq != s[j].chisq {
			return s[i].chisq < s[j].chisq
		}
		return s[i].det.ObjID < s[j].det.ObjID
	})
	if g.cfg.FinalMaxCands > 0 && len(s) > g.cfg.FinalMaxCands {
		s = s[:g.cfg.FinalMaxCands]
	}
	kept := make([]*track.Detection, len(s))
	for i, c := range s {
		kept[i] = c.det
	}
	return kept
}

// Grow finds scored candidates for tracks, whose fitted orbits the oracle
// holds as orbits.  It returns copies of the tracks with at least MinCands
// candidates, in input order.  The tangent plane is centered on the first
// detection of the first track.
func (g *Grower) Grow(ctx context.Context, batch string, tracks []*track.Track, cat *track.Catalog, orbits oracle.Orbits) ([]*track.Track, error) {
	var ref *track.Detection
	for _, t := range tracks {
		if len(t.Dets) > 0 {
			ref = t.Dets[0]
			break
		}
	}
	if ref == nil || cat.Len() == 0 {
		return nil, nil
	}
	set := bucket.NewSet(cat.All(), g.cfg.Interval, ref.Pos())
	if set.Skipped > 0 {
		g.log.Warn("detections too far from plane center, not searched",
			zap.Int("skipped", set.Skipped))
	}
	g.log.Info("bucketed", zap.Int("buckets", len(set.Bins)), zap.Int("dets", cat.Len()))

	preds, err := g.o.Predict(ctx, batch, g.PredictRequests(tracks, set.Times()), orbits)
	if err != nil {
		return nil, err
	}
	cands := g.CandidatesInRadius(tracks, set, preds)

	var reqs []oracle.TrackDets
	for _, t := range tracks {
		if c := cands[t.ID]; len(c) > 0 {
			reqs = append(reqs, oracle.TrackDets{TrackID: t.ID, Dets: c})
		}
	}
	if len(reqs) == 0 {
		return nil, nil
	}
	scores, err := g.o.Proximity(ctx, batch, reqs, orbits)
	if err != nil {
		return nil, err
	}
	var grown []*track.Track
	for _, t := range tracks {
		kept := g.filter(t, cands[t.ID], scores[t.ID])
		if len(kept) < g.cfg.MinCands {
			continue
		}
		c := t.Clone()
		c.Cands = kept
		grown = append(grown, c)
	}
	g.log.Info("grown", zap.Int("tracks", len(tracks)), zap.Int("grown", len(grown)))
	return grown, nil
}
