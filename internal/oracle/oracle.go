// Public domain.

// Package oracle is the port to the external orbit fitting service: batch
// prediction, fitting, and proximity scoring.
package oracle

import (
	"context"
	"errors"
	"math"
	"slices"

	"github.com/chapinalc/New-NewLinker/internal/skyproj"
	"github.com/chapinalc/New-NewLinker/internal/track"
)

var (
	// ErrOracleFailed wraps a nonzero exit of an oracle command.
	ErrOracleFailed = errors.New("oracle command failed")
	// ErrMissingOutput is returned when an oracle call produced no result.
	ErrMissingOutput = errors.New("oracle produced no output")
)

// Orbits names a set of fitted orbits held by the oracle, for example the
// orbit file written by a fit.
type Orbits string

// PredictRequest asks for the position of a track at one time.
type PredictRequest struct {
	TrackID int64
	MJD     float64
}

// Prediction is a predicted position.  Err is the 1-sigma uncertainty in
// arcseconds.
type Prediction struct {
	TrackID int64
	MJD     float64
	RA, Dec float64
	Err     float64
}

// Pos returns the predicted position.
func (p Prediction) Pos() skyproj.Pos {
	return skyproj.Pos{RA: p.RA, Dec: p.Dec}
}

// TrackDets is the unit of a fit or proximity request.
type TrackDets struct {
	TrackID int64
	Dets    []*track.Detection
}

// FitResult is the outcome of fitting one track.
type FitResult struct {
	TrackID  int64
	ChiSq    float64
	DOF      int
	Flags    int
	Elements *track.Elements
}

// Oracle is the external fitting service.  batch labels a call for
// bookkeeping, and calls with the same batch label may be served from
// earlier results.
type Oracle interface {
	Predict(ctx context.Context, batch string, reqs []PredictRequest, orbits Orbits) (PredictionTable, error)
	Fit(ctx context.Context, batch string, reqs []TrackDets) (FitTable, error)
	Proximity(ctx context.Context, batch string, reqs []TrackDets, orbits Orbits) (ProximityTable, error)
}

// Epoch quantizes a time to microdays so that times round tripped through
// the oracle compare equal.
func Epoch(mjd float64) int64 {
	return int64(math.Round(mjd * 1e6))
}

// PredictionTable holds predictions by track and epoch.
type PredictionTable map[int64]map[int64]Prediction

// Add stores p.
func (t PredictionTable) Add(p Prediction) {
	m, ok := t[p.TrackID]
	if !ok {
		m = map[int64]Prediction{}
		t[p.TrackID] = m
	}
	m[Epoch(p.MJD)] = p
}

// At returns the prediction for track id at time mjd.
func (t PredictionTable) At(id int64, mjd float64) (Prediction, bool) {
	p, ok := t[id][Epoch(mjd)]
	return p, ok
}

// FitTable is the result of a batch fit.
type FitTable struct {
	Orbits  Orbits
	Results map[int64]FitResult
}

// Sorted returns the results in ascending track id order.
func (t FitTable) Sorted() []FitResult {
	ids := make([]int64, 0, len(t.Results))
	for id := range t.Results {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	r := make([]FitResult, len(ids))
	for i, id := range ids {
		r[i] = t.Results[id]
	}
	return r
}

// ProximityTable holds χ² of candidate detections against track orbits, by
// track then ObjID.  A track absent from the table has no scored candidates.
type ProximityTable map[int64]map[int64]float64

// Add stores the score of detection obj against track id.
func (t ProximityTable) Add(id, obj int64, chisq float64) {
	m, ok := t[id]
	if !ok {
		m = map[int64]float64{}
		t[id] = m
	}
	m[obj] = chisq
}

// DedupPredict removes duplicate (track, epoch) requests, keeping first
// occurrences in order.
func DedupPredict(reqs []PredictRequest) []PredictRequest {
	type key struct{ id, e int64 }
	seen := make(map[key]bool, len(reqs))
	out := reqs[:0:0]
	for _, r := range reqs {
		k := key{r.TrackID, Epoch(r.MJD)}
		if !seen[k] {
			seen[k] = true
			out = append(out, r)
		}
	}
	return out
}
