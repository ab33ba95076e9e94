// Public domain.

// Package bucket partitions detections into fixed width time bins and keeps
// a spatial index of each bin on a common tangent plane.
package bucket

import (
	"math"
	"sort"
	"sync"

	"github.com/chapinalc/New-NewLinker/internal/skyproj"
	"github.com/chapinalc/New-NewLinker/internal/track"
)

// Key returns the bin start for time t: floor(t/interval)*interval.
func Key(t, interval float64) float64 {
	if interval <= 0 {
		return t
	}
	return math.Floor(t/interval) * interval
}

// Bucket groups dets by bin.  Every detection lands in exactly one bin.
func Bucket(dets []*track.Detection, interval float64) map[float64][]*track.Detection {
	b := map[float64][]*track.Detection{}
	for _, d := range dets {
		k := Key(d.MJD, interval)
		b[k] = append(b[k], d)
	}
	return b
}

// BuildIndices projects each bin about ref and indexes it.  Detections on
// the far hemisphere from ref cannot be projected and are left out; their
// count is returned.  Bins are indexed concurrently.
func BuildIndices(bins map[float64][]*track.Detection, ref skyproj.Pos) (map[float64]*Index, int) {
	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		skipped int
	)
	ix := make(map[float64]*Index, len(bins))
	for k, dets := range bins {
		wg.Add(1)
		go func(k float64, dets []*track.Detection) {
			defer wg.Done()
			kept := make([]*track.Detection, 0, len(dets))
			xs := make([]float64, 0, len(dets))
			ys := make([]float64, 0, len(dets))
			for _, d := range dets {
				p := d.Pos()
				if !skyproj.Visible(p, ref) {
					continue
				}
				x, y := skyproj.Project(p, ref)
				kept = append(kept, d)
				xs = append(xs, x)
				ys = append(ys, y)
			}
			idx := NewIndex(kept, xs, ys)
			mu.Lock()
			ix[k] = idx
			skipped += len(dets) - len(kept)
			mu.Unlock()
		}(k, dets)
	}
	wg.Wait()
	return ix, skipped
}

// Set is a bucketed, indexed catalog.
type Set struct {
	Interval float64
	Ref      skyproj.Pos
	Bins     map[float64][]*track.Detection
	Index    map[float64]*Index
	Skipped  int
}

// NewSet bins dets and indexes every bin about ref.
func NewSet(dets []*track.Detection, interval float64, ref skyproj.Pos) *Set {
	s := &Set{Interval: interval, Ref: ref, Bins: Bucket(dets, interval)}
	s.Index, s.Skipped = BuildIndices(s.Bins, ref)
	return s
}

// Times returns the bin keys in ascending order.
func (s *Set) Times() []float64 {
	t := make([]float64, 0, len(s.Bins))
	for k := range s.Bins {
		t = append(t, k)
	}
	sort.Float64s(t)
	return t
}

// Query searches the bin keyed t.  It reports false if there is no such bin.
func (s *Set) Query(t, x, y, radius float64, k int) ([]Match, bool) {
	ix, ok := s.Index[t]
	if !ok {
		return nil, false
	}
	return ix.Query(x, y, radius, k), true
}
