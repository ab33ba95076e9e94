// Public domain.

package oracle

import (
	"context"
	"fmt"
	"math"
	"sync"

	"gonum.org/v1/gonum/stat"

	"github.com/chapinalc/New-NewLinker/internal/skyproj"
	"github.com/chapinalc/New-NewLinker/internal/track"
)

// Fit flags reported by Memory.
const (
	FlagTooFew = 1 << iota // fewer than two detections
	FlagNoSpan              // all detections at one time
)

// Memory is an in-process Oracle that models each track as uniform motion
// on the tangent plane at its first detection.  It stands in for the
// external fitter in simulations and tests.
type Memory struct {
	// MinErr is the floor on predicted uncertainty, arcseconds.
	MinErr float64

	mu     sync.Mutex
	seq    int
	orbits map[Orbits]map[int64]motion
	calls  map[string]int
}

// NewMemory returns a Memory oracle with a 0.1 arcsecond error floor.
func NewMemory() *Memory {
	return &Memory{MinErr: .1, orbits: map[Orbits]map[int64]motion{}, calls: map[string]int{}}
}

// motion is a fitted linear path, plane coordinates in degrees.
type motion struct {
	ref            skyproj.Pos
	t0, t1         float64 // fitted time span
	ax, bx, ay, by float64
	rms            float64 // degrees
}

func (m motion) at(t float64) skyproj.Pos {
	dt := t - m.t0
	return skyproj.Unproject(m.ax+m.bx*dt, m.ay+m.by*dt, m.ref)
}

// errAt grows the fit rms with extrapolation beyond the fitted span.
func (m motion) errAt(t, floor float64) float64 {
	e := math.Max(m.rms*3600, floor)
	span := m.t1 - m.t0
	var out float64
	switch {
	case t < m.t0:
		out = m.t0 - t
	case t > m.t1:
		out = t - m.t1
	}
	if span > 0 {
		e *= 1 + out/span
	}
	return e
}

// Calls returns how many times the named operation has been called.
func (o *Memory) Calls(op string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.calls[op]
}

func (o *Memory) count(op string) {
	o.mu.Lock()
	o.calls[op]++
	o.mu.Unlock()
}

func (o *Memory) lookup(orbits Orbits) (map[int64]motion, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	m, ok := o.orbits[orbits]
	if !ok {
		return nil, fmt.Errorf("%w: unknown orbits %q", ErrMissingOutput, orbits)
	}
	return m, nil
}

// Fit fits uniform motion to each request.
func (o *Memory) Fit(ctx context.Context, batch string, reqs []TrackDets) (FitTable, error) {
	o.count("fit")
	res := make(map[int64]FitResult, len(reqs))
	fitted := make(map[int64]motion, len(reqs))
	for _, r := range reqs {
		if err := ctx.Err(); err != nil {
			return FitTable{}, err
		}
		m, fr := fitMotion(r.Dets)
		fr.TrackID = r.TrackID
		res[r.TrackID] = fr
		if fr.Flags == 0 {
			fitted[r.TrackID] = m
		}
	}
	o.mu.Lock()
	o.seq++
	orbits := Orbits(fmt.Sprintf("memory:%s:%d", batch, o.seq))
	o.orbits[orbits] = fitted
	o.mu.Unlock()
	return FitTable{Orbits: orbits, Results: res}, nil
}

func fitMotion(dets []*track.Detection) (motion, FitResult) {
	if len(dets) < 2 {
		return motion{}, FitResult{Flags: FlagTooFew}
	}
	m := motion{ref: dets[0].Pos(), t0: dets[0].MJD, t1: dets[0].MJD}
	n := len(dets)
	ts := make([]float64, n)
	xs := make([]float64, n)
	ys := make([]float64, n)
	ws := make([]float64, n)
	for i, d := range dets {
		m.t0 = math.Min(m.t0, d.MJD)
		m.t1 = math.Max(m.t1, d.MJD)
		xs[i], ys[i] = skyproj.Project(d.Pos(), m.ref)
		s := sigmaDeg(d)
		ws[i] = 1 / (s * s)
	}
	if m.t1 == m.t0 {
		return motion{}, FitResult{Flags: FlagNoSpan}
	}
	for i, d := range dets {
		ts[i] = d.MJD - m.t0
	}
	m.ax, m.bx = stat.LinearRegression(ts, xs, ws, false)
	m.ay, m.by = stat.LinearRegression(ts, ys, ws, false)
	var chi, ss float64
	for i, d := range dets {
		dx := xs[i] - (m.ax + m.bx*ts[i])
		dy := ys[i] - (m.ay + m.by*ts[i])
		r2 := dx*dx + dy*dy
		s := sigmaDeg(d)
		chi += r2 / (s * s)
		ss += r2
	}
	m.rms = math.Sqrt(ss / float64(n))
	return m, FitResult{ChiSq: chi, DOF: 2*n - 4}
}

// sigmaDeg is the detection error with a 0.01 arcsecond floor.
func sigmaDeg(d *track.Detection) float64 {
	return math.Max(d.Err, .01/3600)
}

// Predict extrapolates fitted motion to the requested times.
func (o *Memory) Predict(ctx context.Context, batch string, reqs []PredictRequest, orbits Orbits) (PredictionTable, error) {
	o.count("predict")
	fitted, err := o.lookup(orbits)
	if err != nil {
		return nil, err
	}
	pt := PredictionTable{}
	for _, r := range DedupPredict(reqs) {
		m, ok := fitted[r.TrackID]
		if !ok {
			continue
		}
		p := m.at(r.MJD)
		pt.Add(Prediction{TrackID: r.TrackID, MJD: r.MJD, RA: p.RA, Dec: p.Dec, Err: m.errAt(r.MJD, o.MinErr)})
	}
	return pt, nil
}

// Proximity scores each candidate against its track's fitted motion.
func (o *Memory) Proximity(ctx context.Context, batch string, reqs []TrackDets, orbits Orbits) (ProximityTable, error) {
	o.count("proximity")
	fitted, err := o.lookup(orbits)
	if err != nil {
		return nil, err
	}
	pt := ProximityTable{}
	for _, r := range reqs {
		m, ok := fitted[r.TrackID]
		if !ok {
			continue
		}
		for _, d := range r.Dets {
			sep := skyproj.Separation(m.at(d.MJD), d.Pos()) * 3600
			pe := m.errAt(d.MJD, o.MinErr)
			de := d.Sigma().Sec()
			pt.Add(r.TrackID, d.ObjID, sep*sep/(pe*pe+de*de))
		}
	}
	return pt, nil
}
