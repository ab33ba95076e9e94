// Public domain.

// Package sift separates tracks with acceptable orbit fits from the rest.
package sift

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/chapinalc/New-NewLinker/internal/oracle"
	"github.com/chapinalc/New-NewLinker/internal/track"
)

// Good reports whether r is an acceptable fit: positive χ² below
// threshold times the degrees of freedom, and no fit flags.
func Good(r oracle.FitResult, threshold float64) bool {
	return r.ChiSq > 0 && r.ChiSq < threshold*float64(r.DOF) && r.Flags == 0
}

// Sift partitions results by track id.  Every result lands in exactly one
// of good and bad, each in ascending id order.
func Sift(results []oracle.FitResult, threshold float64) (good, bad []int64) {
	for _, r := range results {
		if Good(r, threshold) {
			good = append(good, r.TrackID)
		} else {
			bad = append(bad, r.TrackID)
		}
	}
	asc := func(s []int64) {
		sort.Slice(s, func(i, j int) bool { return s[i] < s[j] })
	}
	asc(good)
	asc(bad)
	return
}

// Apply copies the fit of r onto t.
func Apply(t *track.Track, r oracle.FitResult) {
	t.ChiSq = r.ChiSq
	t.DOF = r.DOF
	t.Elements = r.Elements
}

// Sifter fits whole track lists.
type Sifter struct {
	o         oracle.Oracle
	threshold float64
	log       *zap.Logger
}

// New returns a Sifter accepting fits below threshold per degree of freedom.
func New(o oracle.Oracle, threshold float64, log *zap.Logger) *Sifter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Sifter{o: o, threshold: threshold, log: log}
}

// Result is the outcome of sifting a track list.
type Result struct {
	Good, Bad []*track.Track
	Orbits    oracle.Orbits // orbits of the fitted tracks, by track id
}

// Tracks fits copies of tracks, numbered by position starting from first,
// and partitions them.  Fitted copies carry their χ²; tracks the oracle did
// not report on are bad and stay unfit.
func (s *Sifter) Tracks(ctx context.Context, batch string, tracks []*track.Track, first int64) (Result, error) {
	cp := make([]*track.Track, len(tracks))
	reqs := make([]oracle.TrackDets, len(tracks))
	for i, t := range tracks {
		c := t.Clone()
		c.ID = first + int64(i)
		cp[i] = c
		reqs[i] = oracle.TrackDets{TrackID: c.ID, Dets: c.Dets}
	}
	ft, err := s.o.Fit(ctx, batch, reqs)
	if err != nil {
		return Result{}, err
	}
	res := Result{Orbits: ft.Orbits}
	for _, c := range cp {
		r, ok := ft.Results[c.ID]
		if ok {
			Apply(c, r)
		}
		if ok && Good(r, s.threshold) {
			res.Good = append(res.Good, c)
			continue
		}
		s.log.Debug("bad fit",
			zap.Int64("track", c.ID),
			zap.Bool("reported", ok),
			zap.Float64("chisq", r.ChiSq),
			zap.Int("dof", r.DOF),
			zap.Int("flags", r.Flags))
		res.Bad = append(res.Bad, c)
	}
	s.log.Info("sifted", zap.String("batch", batch),
		zap.Int("good", len(res.Good)), zap.Int("bad", len(res.Bad)))
	return res, nil
}

// RemoveUnfit returns the tracks that carry a χ².
func RemoveUnfit(tracks []*track.Track) []*track.Track {
	var fit []*track.Track
	for _, t := range tracks {
		if t.Fit() {
			fit = append(fit, t)
		}
	}
	return fit
}
