// Public domain.

package sift_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	xrand "golang.org/x/exp/rand"

	"github.com/chapinalc/New-NewLinker/internal/oracle"
	"github.com/chapinalc/New-NewLinker/internal/sift"
	"github.com/chapinalc/New-NewLinker/internal/track"
)

func TestGood(t *testing.T) {
	for _, tc := range []struct {
		name string
		r    oracle.FitResult
		want bool
	}{
		{"good", oracle.FitResult{ChiSq: 5, DOF: 2}, true},
		{"at limit", oracle.FitResult{ChiSq: 20, DOF: 2}, false},
		{"too big", oracle.FitResult{ChiSq: 25, DOF: 2}, false},
		{"flagged", oracle.FitResult{ChiSq: 5, DOF: 2, Flags: 4}, false},
		{"zero", oracle.FitResult{ChiSq: 0, DOF: 2}, false},
		{"unfit", oracle.FitResult{ChiSq: track.NotFit, DOF: 2}, false},
		{"no dof", oracle.FitResult{ChiSq: 1, DOF: 0}, false},
	} {
		assert.Equal(t, tc.want, sift.Good(tc.r, 10), tc.name)
	}
}

func TestSiftPartition(t *testing.T) {
	r := xrand.New(&xrand.PCGSource{})
	r.Seed(99)
	for trial := 0; trial < 50; trial++ {
		n := r.Intn(40)
		results := make([]oracle.FitResult, n)
		for i, id := range r.Perm(n) {
			results[i] = oracle.FitResult{
				TrackID: int64(id),
				ChiSq:   60*r.Float64() - 5,
				DOF:     r.Intn(4),
				Flags:   r.Intn(3) / 2,
			}
		}
		good, bad := sift.Sift(results, 10)
		require.Equal(t, n, len(good)+len(bad))
		seen := map[int64]bool{}
		for _, id := range append(append([]int64(nil), good...), bad...) {
			require.False(t, seen[id])
			seen[id] = true
		}
		assert.IsIncreasing(t, append([]int64{-1}, good...))
		assert.IsIncreasing(t, append([]int64{-1}, bad...))
	}
}

func TestSiftScenario(t *testing.T) {
	good, bad := sift.Sift([]oracle.FitResult{
		{TrackID: 3, ChiSq: 5, DOF: 2},
		{TrackID: 1, ChiSq: 25, DOF: 2},
	}, 10)
	assert.Equal(t, []int64{3}, good)
	assert.Equal(t, []int64{1}, bad)
}

func line(first int64, n int, dec float64) *track.Track {
	dets := make([]*track.Detection, n)
	for i := range dets {
		dets[i] = &track.Detection{
			ObjID: first + int64(i), MJD: 57000 + float64(i),
			RA: 10 + .05*float64(i), Dec: dec + float64(i%2)*.1/3600, Err: .3 / 3600, ExpNum: first + int64(i),
		}
	}
	return track.New(dets)
}

func TestTracks(t *testing.T) {
	straight := line(1, 4, 0)
	bent := line(10, 4, 0)
	bent.Dets[2].Dec += .01
	short := line(20, 1, 0)
	o := oracle.NewMemory()
	res, err := sift.New(o, 50, nil).Tracks(context.Background(), "s", []*track.Track{straight, bent, short}, 0)
	require.NoError(t, err)
	require.Len(t, res.Good, 1)
	assert.Equal(t, int64(0), res.Good[0].ID)
	assert.True(t, res.Good[0].Fit())
	require.Len(t, res.Bad, 2)
	assert.Equal(t, []int64{1, 2}, []int64{res.Bad[0].ID, res.Bad[1].ID})
	assert.Greater(t, res.Bad[0].ChiSq, 100.)
	assert.False(t, straight.Fit(), "input not modified")
	assert.NotEmpty(t, res.Orbits)

	assert.Equal(t, []*track.Track{res.Good[0], res.Bad[0], res.Bad[1]},
		sift.RemoveUnfit([]*track.Track{res.Good[0], res.Bad[0], res.Bad[1]}))
	assert.Len(t, sift.RemoveUnfit([]*track.Track{straight, res.Good[0]}), 1)
}
