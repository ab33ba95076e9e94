// Public domain.

package bucket_test

import (
	"math"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	xrand "golang.org/x/exp/rand"

	"github.com/chapinalc/New-NewLinker/internal/bucket"
	"github.com/chapinalc/New-NewLinker/internal/skyproj"
	"github.com/chapinalc/New-NewLinker/internal/track"
)

func TestKey(t *testing.T) {
	assert.Equal(t, 57000., bucket.Key(57013.7, 20))
	assert.Equal(t, 57020., bucket.Key(57020, 20))
	assert.Equal(t, 57018., bucket.Key(57019.99, 2))
	assert.Equal(t, 5.5, bucket.Key(5.5, 0))
}

func TestBucketPartition(t *testing.T) {
	r := xrand.New(&xrand.PCGSource{})
	r.Seed(11)
	dets := make([]*track.Detection, 300)
	for i := range dets {
		dets[i] = &track.Detection{ObjID: int64(i), MJD: 56500 + 400*r.Float64()}
	}
	const interval = 20.
	bins := bucket.Bucket(dets, interval)
	seen := map[int64]int{}
	for k, b := range bins {
		for _, d := range b {
			seen[d.ObjID]++
			require.True(t, k <= d.MJD && d.MJD < k+interval, "det %v in bin %v", d.MJD, k)
		}
	}
	require.Len(t, seen, len(dets))
	for id, n := range seen {
		require.Equal(t, 1, n, "det %d", id)
	}
}

// cloud returns n detections scattered within a degree of ref.
func cloud(r *xrand.Rand, n int, ref skyproj.Pos, mjd float64) []*track.Detection {
	dets := make([]*track.Detection, n)
	for i := range dets {
		dets[i] = &track.Detection{
			ObjID: int64(i + 1),
			MJD:   mjd,
			RA:    ref.RA + 2*r.Float64() - 1,
			Dec:   ref.Dec + 2*r.Float64() - 1,
		}
	}
	return dets
}

func TestQueryMatchesBruteForce(t *testing.T) {
	r := xrand.New(&xrand.PCGSource{})
	r.Seed(5)
	ref := skyproj.Pos{RA: 40, Dec: -10}
	dets := cloud(r, 400, ref, 57001)
	s := bucket.NewSet(dets, 20, ref)
	require.Equal(t, []float64{57000}, s.Times())
	require.Zero(t, s.Skipped)

	for q := 0; q < 50; q++ {
		qx, qy := 2*r.Float64()-1, 2*r.Float64()-1
		radius := .3 * r.Float64()
		var want []int64
		for _, d := range dets {
			x, y := skyproj.Project(d.Pos(), ref)
			if math.Hypot(x-qx, y-qy) <= radius {
				want = append(want, d.ObjID)
			}
		}
		got, ok := s.Query(57000, qx, qy, radius, len(dets))
		require.True(t, ok)
		ids := make([]int64, len(got))
		for i, m := range got {
			ids[i] = m.Det.ObjID
			require.LessOrEqual(t, m.Dist, radius)
			if i > 0 {
				require.LessOrEqual(t, got[i-1].Dist, m.Dist)
			}
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		require.Equal(t, want, nilIfEmpty(ids))
	}
}

func nilIfEmpty(s []int64) []int64 {
	if len(s) == 0 {
		return nil
	}
	return s
}

func TestQueryCapacity(t *testing.T) {
	r := xrand.New(&xrand.PCGSource{})
	r.Seed(8)
	ref := skyproj.Pos{RA: 200, Dec: 30}
	dets := cloud(r, 200, ref, 57100)
	s := bucket.NewSet(dets, 20, ref)
	all, _ := s.Query(57100, 0, 0, 5, 1000)
	require.Len(t, all, 200)
	got, _ := s.Query(57100, 0, 0, 5, 20)
	require.Len(t, got, 20)
	assert.Equal(t, all[:20], got, "capacity keeps the nearest")
}

func TestQueryEdges(t *testing.T) {
	ref := skyproj.Pos{RA: 10, Dec: 0}
	dets := []*track.Detection{{ObjID: 1, MJD: 57000, RA: 10, Dec: 0}}
	s := bucket.NewSet(dets, 2, ref)

	got, ok := s.Query(57000, 0, 0, 0, 5)
	require.True(t, ok)
	require.Len(t, got, 1, "zero radius finds exact position")

	got, _ = s.Query(57000, 1, 1, .5, 5)
	assert.Empty(t, got)
	got, _ = s.Query(57000, 0, 0, 1, 0)
	assert.Empty(t, got)

	_, ok = s.Query(57002, 0, 0, 1, 5)
	assert.False(t, ok, "missing bin")
}

func TestFarSideSkipped(t *testing.T) {
	ref := skyproj.Pos{RA: 0, Dec: 0}
	dets := []*track.Detection{
		{ObjID: 1, MJD: 57000, RA: 1, Dec: 1},
		{ObjID: 2, MJD: 57000, RA: 180, Dec: 0},
	}
	s := bucket.NewSet(dets, 20, ref)
	assert.Equal(t, 1, s.Skipped)
	assert.Equal(t, 1, s.Index[57000].Len())
}
