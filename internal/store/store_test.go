// Public domain.

package store_test

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/chapinalc/New-NewLinker/internal/store"
	"github.com/chapinalc/New-NewLinker/internal/track"
)

func fixture() (*track.Catalog, []*track.Track) {
	var dets []*track.Detection
	for i := int64(1); i <= 8; i++ {
		dets = append(dets, &track.Detection{
			ObjID: i, MJD: 57000 + float64(i), RA: 10 + float64(i)/10, Dec: -3, ExpNum: 500 + i,
		})
	}
	cat := track.NewCatalog(dets)
	a := track.New(dets[:3])
	a.ID = 4
	a.ChiSq, a.DOF = 2.5, 2
	a.Cands = []*track.Detection{dets[6], dets[5]}
	a.Elements = &track.Elements{A: 43.2, E: .1, I: 5}
	b := track.New(dets[3:6])
	b.ID = 9
	return cat, []*track.Track{a, b}
}

func TestGobRoundTrip(t *testing.T) {
	cat, tracks := fixture()
	fn := filepath.Join(t.TempDir(), "tracks.gob")
	require.NoError(t, store.WriteFile(fn, tracks))
	recs, written, err := store.ReadFile(fn)
	require.NoError(t, err)
	assert.False(t, written.IsZero())
	if diff := cmp.Diff(store.Records(tracks), recs); diff != "" {
		t.Fatal(diff)
	}
	got, missing := store.Resolve(recs, cat)
	assert.Zero(t, missing)
	require.Len(t, got, 2)
	assert.Equal(t, int64(4), got[0].ID)
	assert.Equal(t, []int64{1, 2, 3}, got[0].IDs())
	assert.Equal(t, []int64{7, 6}, got[0].CandIDs())
	assert.Equal(t, 2.5, got[0].ChiSq)
	assert.Equal(t, track.NotFit, got[1].ChiSq)
}

func TestResolveMissing(t *testing.T) {
	cat, _ := fixture()
	got, missing := store.Resolve([]store.Record{{ID: 1, Dets: []int64{1, 99, 2}, ChiSq: -1}}, cat)
	assert.Equal(t, 1, missing)
	assert.Equal(t, []int64{1, 2}, got[0].IDs())
}

func TestReadFileMissing(t *testing.T) {
	_, _, err := store.ReadFile(filepath.Join(t.TempDir(), "nope.gob"))
	assert.Error(t, err)
}

func TestSQLite(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "tracks.db")
	s, err := store.Open(path, zaptest.NewLogger(t))
	require.NoError(t, err)

	_, tracks := fixture()
	require.NoError(t, s.Save(ctx, "run-a", "grow", tracks))
	require.NoError(t, s.Save(ctx, "run-a", "merge", tracks[1:]))
	recs, err := s.Load(ctx, "run-a", "grow")
	require.NoError(t, err)
	if diff := cmp.Diff(store.Records(tracks), recs); diff != "" {
		t.Fatal(diff)
	}

	// saving a stage again replaces it
	require.NoError(t, s.Save(ctx, "run-a", "grow", tracks[:1]))
	recs, err = s.Load(ctx, "run-a", "grow")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.NoError(t, s.Close())

	// reopening finds the schema current and the data intact
	s, err = store.Open(path, nil)
	require.NoError(t, err)
	defer s.Close()
	recs, err = s.Load(ctx, "run-a", "merge")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, int64(9), recs[0].ID)
	assert.Nil(t, recs[0].Elements)
	runs, err := s.Runs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"run-a"}, runs)
	recs, err = s.Load(ctx, "run-b", "grow")
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestWriteText(t *testing.T) {
	_, tracks := fixture()
	var buf bytes.Buffer
	require.NoError(t, store.WriteText(&buf, tracks))
	s := buf.String()
	assert.Contains(t, s, "track 4  dets 3  exposures 3  chisq 2.50  dof 2  a 43.200")
	assert.Contains(t, s, "candidates [7 6]")
	assert.Contains(t, s, "track 9  dets 3  exposures 3\n")
}

func TestReadIDs(t *testing.T) {
	recs, err := store.ReadIDs(strings.NewReader("# seeds\n1,2,3\n\n4 5\t6\n 7: 8, 9,10\n"))
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, int64(1), recs[0].ID)
	assert.Equal(t, []int64{1, 2, 3}, recs[0].Dets)
	assert.Equal(t, int64(2), recs[1].ID)
	assert.Equal(t, []int64{4, 5, 6}, recs[1].Dets)
	assert.Equal(t, track.NotFit, recs[1].ChiSq)
	assert.Equal(t, int64(7), recs[2].ID)
	assert.Equal(t, []int64{8, 9, 10}, recs[2].Dets)

	_, err = store.ReadIDs(strings.NewReader("1,x,3\n"))
	assert.ErrorContains(t, err, "line 1")
	_, err = store.ReadIDs(strings.NewReader("1,2,3\nx: 4,5\n"))
	assert.ErrorContains(t, err, "line 2: track id")
}

func TestWriteIDs(t *testing.T) {
	_, tracks := fixture()
	tracks[0].ID, tracks[1].ID = 7, 3
	var buf bytes.Buffer
	require.NoError(t, store.WriteIDs(&buf, tracks))
	assert.Equal(t, "7: 1,2,3\n3: 4,5,6\n", buf.String())
	recs, err := store.ReadIDs(&buf)
	require.NoError(t, err)
	require.Len(t, recs, len(tracks))
	for i, tk := range tracks {
		assert.Equal(t, tk.ID, recs[i].ID)
		assert.Equal(t, tk.IDs(), recs[i].Dets)
	}
}
