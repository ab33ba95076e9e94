// Public domain.

package bucket

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/kdtree"

	"github.com/chapinalc/New-NewLinker/internal/track"
)

// point is a detection on the tangent plane.
type point struct {
	x, y float64
	det  *track.Detection
}

func (p point) coord(d kdtree.Dim) float64 {
	if d == 0 {
		return p.x
	}
	return p.y
}

func (p point) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	return p.coord(d) - c.(point).coord(d)
}

func (p point) Dims() int { return 2 }

// Distance returns squared euclidean distance, as kdtree requires.
func (p point) Distance(c kdtree.Comparable) float64 {
	q := c.(point)
	dx, dy := p.x-q.x, p.y-q.y
	return dx*dx + dy*dy
}

type points []point

func (p points) Index(i int) kdtree.Comparable         { return p[i] }
func (p points) Len() int                              { return len(p) }
func (p points) Pivot(d kdtree.Dim) int                { return plane{Dim: d, points: p}.Pivot() }
func (p points) Slice(start, end int) kdtree.Interface { return p[start:end] }

// plane pivots points on one dimension.
type plane struct {
	kdtree.Dim
	points
}

func (p plane) Less(i, j int) bool { return p.points[i].coord(p.Dim) < p.points[j].coord(p.Dim) }
func (p plane) Swap(i, j int)      { p.points[i], p.points[j] = p.points[j], p.points[i] }
func (p plane) Pivot() int         { return kdtree.Partition(p, kdtree.MedianOfMedians(p)) }
func (p plane) Slice(start, end int) kdtree.SortSlicer {
	p.points = p.points[start:end]
	return p
}

// Match is a detection found by a query, with its plane distance in degrees.
type Match struct {
	Det  *track.Detection
	Dist float64
}

// Index is a static 2-d tree over projected detections.
type Index struct {
	tree *kdtree.Tree
	n    int
}

// NewIndex builds an index from plane coordinates xs, ys of dets.
func NewIndex(dets []*track.Detection, xs, ys []float64) *Index {
	p := make(points, len(dets))
	for i, d := range dets {
		p[i] = point{x: xs[i], y: ys[i], det: d}
	}
	return &Index{tree: kdtree.New(p, false), n: len(p)}
}

// Len returns the number of indexed detections.
func (ix *Index) Len() int { return ix.n }

// Query returns at most k detections within radius of (x, y), nearest
// first.  Ties in distance are broken by ascending ObjID.
func (ix *Index) Query(x, y, radius float64, k int) []Match {
	if ix == nil || ix.tree == nil || k <= 0 || !(radius >= 0) {
		return nil
	}
	keep := kdtree.NewNKeeper(k)
	keep.Heap[0].Dist = radius * radius
	ix.tree.NearestSet(keep, point{x: x, y: y})
	m := make([]Match, 0, len(keep.Heap))
	for _, c := range keep.Heap {
		if c.Comparable == nil {
			continue
		}
		m = append(m, Match{Det: c.Comparable.(point).det, Dist: math.Sqrt(c.Dist)})
	}
	sort.SliceStable(m, func(i, j int) bool {
		if m[i].Dist != m[j].Dist {
			return m[i].Dist < m[j].Dist
		}
		return m[i].Det.ObjID < m[j].Det.ObjID
	})
	return m
}
