// Public domain.

package track_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	xrand "golang.org/x/exp/rand"

	"github.com/chapinalc/New-NewLinker/internal/track"
)

// det makes a detection whose time and exposure follow its id.
func det(id int64) *track.Detection {
	return &track.Detection{ObjID: id, MJD: 57000 + float64(id), ExpNum: 1000 + id}
}

func trk(ids ...int64) *track.Track {
	dets := make([]*track.Detection, len(ids))
	for i, id := range ids {
		dets[i] = det(id)
	}
	return track.New(dets)
}

func TestNewSortsAndDedups(t *testing.T) {
	tr := trk(5, 2, 9, 2, 5)
	assert.Equal(t, []int64{2, 5, 9}, tr.IDs())
	assert.Equal(t, track.NotFit, tr.ChiSq)
	assert.False(t, tr.Fit())
	assert.Equal(t, 57002., tr.First())
	assert.Equal(t, 57009., tr.Last())
}

func TestMergeable(t *testing.T) {
	for _, tc := range []struct {
		name string
		a, b *track.Track
		want bool
	}{
		{"majority", trk(1, 2, 3), trk(2, 3, 4), true},
		{"single shared", trk(1, 2, 3), trk(3, 4, 5), false},
		{"subset", trk(1, 2), trk(1, 2, 3, 4, 5), true},
		{"disjoint", trk(1, 2, 3), trk(4, 5, 6), false},
		{"identical", trk(1, 2, 3), trk(1, 2, 3), true},
		{"long minority", trk(1, 2, 3, 4, 5, 6), trk(5, 6, 7, 8, 9, 10), false},
		{"long majority", trk(1, 2, 3, 4, 5, 6), trk(3, 4, 5, 6, 7, 8), true},
		{"empty", trk(), trk(1, 2), false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, track.Mergeable(tc.a, tc.b, track.Majority))
			assert.Equal(t, tc.want, track.Mergeable(tc.b, tc.a, track.Majority), "symmetry")
		})
	}
}

func TestQuorum(t *testing.T) {
	assert.Equal(t, 2, track.Majority.Quorum(3, 3))
	assert.Equal(t, 3, track.Majority.Quorum(4, 2))
	assert.Equal(t, 4, track.Majority.Quorum(3, 6))
	assert.Equal(t, 3, track.OverlapRule{Divisor: 3, Offset: 1}.Quorum(6, 6))
	assert.Equal(t, 6, track.OverlapRule{}.Quorum(6, 6))
}

func TestMergeSymmetricRandom(t *testing.T) {
	r := xrand.New(&xrand.PCGSource{})
	r.Seed(3)
	pick := func() *track.Track {
		n := 1 + r.Intn(6)
		ids := make([]int64, n)
		for i := range ids {
			ids[i] = int64(r.Intn(10))
		}
		return trk(ids...)
	}
	for i := 0; i < 500; i++ {
		a, b := pick(), pick()
		require.Equal(t, track.Mergeable(a, b, track.Majority), track.Mergeable(b, a, track.Majority))
		require.Equal(t, a.Union(b), b.Union(a))
		u := track.New(a.Union(b))
		require.True(t, a.IsSubset(u))
		require.True(t, b.IsSubset(u))
	}
}

func TestUnionOrder(t *testing.T) {
	u := trk(4, 1, 3).Union(trk(3, 2))
	ids := make([]int64, len(u))
	for i, d := range u {
		ids[i] = d.ObjID
	}
	if diff := cmp.Diff([]int64{1, 2, 3, 4}, ids); diff != "" {
		t.Fatal(diff)
	}
}

func TestRealLength(t *testing.T) {
	tr := trk(1, 2, 3)
	assert.Equal(t, 3, tr.RealLength())
	tr.Dets[1].ExpNum = tr.Dets[0].ExpNum
	assert.Equal(t, 2, tr.RealLength())
}

func TestSameFake(t *testing.T) {
	tr := trk(1, 2, 3)
	_, ok := tr.SameFake()
	assert.False(t, ok, "unlabeled")
	for _, d := range tr.Dets {
		d.FakeID = 77
	}
	f, ok := tr.SameFake()
	assert.True(t, ok)
	assert.Equal(t, int64(77), f)
	tr.Dets[2].FakeID = 78
	_, ok = tr.SameFake()
	assert.False(t, ok)
}

func TestHypotheses(t *testing.T) {
	tr := trk(1, 2, 3)
	tr.Cands = []*track.Detection{det(7), det(5)}
	h := tr.Hypotheses()
	require.Len(t, h, 2)
	assert.Equal(t, []int64{1, 2, 3, 7}, h[0].IDs())
	assert.Equal(t, []int64{1, 2, 3, 5}, h[1].IDs())
	assert.Equal(t, []int64{1, 2, 3}, tr.IDs())
}

func TestMergeByFake(t *testing.T) {
	a, b, c, u := trk(1, 2), trk(3, 4), trk(5, 6), trk(8, 9)
	for _, d := range a.Dets {
		d.FakeID = 10
	}
	for _, d := range b.Dets {
		d.FakeID = 11
	}
	for _, d := range c.Dets {
		d.FakeID = 10
	}
	v := trk(12, 13)
	got := track.MergeByFake([]*track.Track{a, u, b, c, v, {}})
	require.Len(t, got, 4)
	assert.Equal(t, []int64{1, 2, 5, 6}, got[0].IDs())
	assert.Equal(t, []int64{8, 9, 12, 13}, got[1].IDs(), "unlabeled tracks group together")
	assert.Equal(t, []int64{3, 4}, got[2].IDs())
	assert.Empty(t, got[3].Dets)
}

func TestCatalog(t *testing.T) {
	c := track.NewCatalog([]*track.Detection{det(3), det(1), det(2)})
	assert.Equal(t, 3, c.Len())
	d, ok := c.Lookup(2)
	require.True(t, ok)
	assert.Equal(t, int64(2), d.ObjID)
	_, ok = c.Lookup(4)
	assert.False(t, ok)
	dets, missing := c.Resolve([]int64{1, 4, 3})
	assert.Equal(t, 1, missing)
	require.Len(t, dets, 2)
	assert.Equal(t, 57001., c.All()[0].MJD)
}
