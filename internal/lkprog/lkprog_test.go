// Public domain.

package lkprog

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/chapinalc/New-NewLinker/internal/catalog"
	"github.com/chapinalc/New-NewLinker/internal/config"
	"github.com/chapinalc/New-NewLinker/internal/oracle"
	"github.com/chapinalc/New-NewLinker/internal/store"
	"github.com/chapinalc/New-NewLinker/internal/synth"
	"github.com/chapinalc/New-NewLinker/internal/track"
)

// env is a scratch directory with a config file pointing oracle files at
// it.
type env struct {
	dir, cfg string
}

func newEnv(t *testing.T, extra string) env {
	t.Helper()
	dir := t.TempDir()
	cfg := filepath.Join(dir, "linker.toml")
	body := "work_dir = " + `"` + filepath.ToSlash(dir) + `"` + "\n" + extra
	require.NoError(t, os.WriteFile(cfg, []byte(body), 0o644))
	return env{dir: dir, cfg: cfg}
}

func (e env) path(name string) string { return filepath.Join(e.dir, name) }

// run executes one command line with a test logger and, if o is not nil,
// an in-process oracle.
func (e env) run(t *testing.T, o oracle.Oracle, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	a := newApp(&out)
	a.log = zaptest.NewLogger(t)
	a.ora = o
	cmd := a.rootCmd()
	cmd.SetArgs(append([]string{"--config", e.cfg}, args...))
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestSimulate(t *testing.T) {
	e := newEnv(t, "")
	db, cat := e.path("tracks.db"), e.path("dets.csv")
	out, err := e.run(t, nil, "simulate", "--run", "sim", "--db", db, "--catalog", cat)
	require.NoError(t, err)
	for _, s := range []string{"sift", "grow", "merge", "evaluation", "Matthews correlation coefficient"} {
		assert.Contains(t, out, s)
	}

	s, err := store.Open(db, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()
	runs, err := s.Runs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"sim"}, runs)
	seeds, err := s.Load(ctx, "sim", "seeds")
	require.NoError(t, err)
	o := synth.DefaultOptions
	assert.Len(t, seeds, o.Objects+o.Spurious)

	dets, err := catalog.ReadFile(cat)
	require.NoError(t, err)
	assert.Equal(t, o.Objects*o.Nights*o.PerNight+o.Noise, dets.Len())

	// the stored stages read back through the command line
	out, err = e.run(t, nil, "eval", db, "--run", "sim", "--stage", "merge", "-d", cat, "--missed")
	require.NoError(t, err)
	assert.Contains(t, out, "Sources found:")

	gob := e.path("fake.gob")
	_, err = e.run(t, nil, "merge", db, "--run", "sim", "--stage", "seeds", "-d", cat, "--fake", "-o", gob)
	require.NoError(t, err)
	_, _, err = store.ReadFile(gob)
	assert.NoError(t, err)
}

func scene(t *testing.T, e env) (cat, ids string, sc synth.Scene) {
	t.Helper()
	sc = synth.Generate(synth.DefaultOptions)
	cat, ids = e.path("dets.csv"), e.path("seeds.csv")
	require.NoError(t, catalog.WriteFile(cat, sc.Dets))
	writeIDs(t, ids, sc.Seeds)
	return
}

func writeIDs(t *testing.T, fn string, tracks []*track.Track) {
	t.Helper()
	f, err := os.Create(fn)
	require.NoError(t, err)
	require.NoError(t, store.WriteIDs(f, tracks))
	require.NoError(t, f.Close())
}

// orbitsOf returns the orbits reported in a sift summary.
func orbitsOf(t *testing.T, out string) string {
	t.Helper()
	for _, l := range strings.Split(out, "\n") {
		if f := strings.Fields(l); len(f) == 2 && f[0] == "orbits" {
			return f[1]
		}
	}
	t.Fatalf("no orbits in %q", out)
	return ""
}

func TestSiftGrowMerge(t *testing.T) {
	e := newEnv(t, "")
	cat, ids, sc := scene(t, e)
	o := oracle.NewMemory()

	sifted := e.path("sifted.gob")
	out, err := e.run(t, o, "sift", ids, "-d", cat, "-o", sifted)
	require.NoError(t, err)
	assert.Contains(t, out, "good")
	recs, _, err := store.ReadFile(sifted)
	require.NoError(t, err)
	assert.NotEmpty(t, recs)
	assert.LessOrEqual(t, len(recs), len(sc.Seeds))

	grown := e.path("grown.csv")
	out, err = e.run(t, o, "grow", sifted, "-d", cat, "--hypotheses", "-o", grown)
	require.NoError(t, err)
	assert.Contains(t, out, "candidates")
	assert.Equal(t, 1, o.Calls("predict"))

	linked := e.path("linked.txt")
	out, err = e.run(t, o, "merge", grown, "-d", cat, "-o", linked)
	require.NoError(t, err)
	assert.Contains(t, out, "passes")
	_, err = os.Stat(linked)
	assert.NoError(t, err)
}

func TestScript(t *testing.T) {
	e := newEnv(t, "")
	cat, ids, sc := scene(t, e)
	out, err := e.run(t, nil, "script", ids, "-d", cat, "-o", "obj")
	require.NoError(t, err)
	assert.Contains(t, out, "files in")
	f, ok := sc.Seeds[0].SameFake()
	require.True(t, ok)
	b, err := os.ReadFile(e.path("obj_" + strconv.FormatInt(f, 10) + ".dat"))
	require.NoError(t, err)
	assert.Equal(t, 3, strings.Count(string(b), "\n"))
}

func TestConfigErrors(t *testing.T) {
	e := newEnv(t, "[grow]\ninterval = -1\n")
	_, err := e.run(t, nil, "simulate")
	assert.True(t, errors.Is(err, config.ErrInvalid))

	e = newEnv(t, "")
	_, err = e.run(t, nil, "sift", e.path("none.csv"))
	assert.ErrorContains(t, err, "--dets")

	_, err = e.run(t, nil, "eval", e.path("t.db"), "-d", e.path("none.csv"))
	assert.Error(t, err)
}

func TestReadTracksNeedsRun(t *testing.T) {
	e := newEnv(t, "")
	a := newApp(&bytes.Buffer{})
	a.log = zaptest.NewLogger(t)
	_, err := a.readTracks(context.Background(), track.NewCatalog(nil), e.path("t.db"))
	assert.ErrorContains(t, err, "--run")
}

func TestExpand(t *testing.T) {
	dets := make([]*track.Detection, 6)
	for i := range dets {
		dets[i] = &track.Detection{ObjID: int64(i + 1), MJD: 57000 + float64(i), ExpNum: int64(i + 1)}
	}
	a, b := track.New(dets[:3]), track.New(dets[1:4])
	a.Cands = dets[4:]
	b.Cands = dets[5:]
	h := expand([]*track.Track{a, b})
	require.Len(t, h, 3)
	for i, tk := range h {
		assert.Equal(t, int64(i+1), tk.ID)
		assert.Equal(t, 4, tk.Len())
	}
	assert.Equal(t, []int64{2, 3, 4, 6}, h[2].IDs())
}

// Tracks written to an id list keep their ids, so a later grow pairs
// each track with its own orbit.
func TestSiftGrowThroughIDList(t *testing.T) {
	e := newEnv(t, "")
	cat, _, sc := scene(t, e)
	n := synth.DefaultOptions.Objects
	// spurious seeds first, so that bad fits leave gaps in the numbering
	seeds := append(append([]*track.Track(nil), sc.Seeds[n:]...), sc.Seeds[:n]...)
	ids := e.path("reordered.csv")
	writeIDs(t, ids, seeds)
	o := oracle.NewMemory()

	sifted := e.path("sifted.csv")
	out, err := e.run(t, o, "sift", ids, "-d", cat, "-o", sifted)
	require.NoError(t, err)
	orbits := orbitsOf(t, out)

	f, err := os.Open(sifted)
	require.NoError(t, err)
	recs, err := store.ReadIDs(f)
	f.Close()
	require.NoError(t, err)
	require.NotEmpty(t, recs)
	for _, r := range recs {
		assert.GreaterOrEqual(t, r.ID, int64(1))
		assert.LessOrEqual(t, r.ID, int64(len(seeds)))
		assert.Equal(t, seeds[r.ID-1].IDs(), r.Dets, "track %d", r.ID)
	}

	grown := e.path("grown.gob")
	_, err = e.run(t, o, "grow", sifted, orbits, "-d", cat, "-o", grown)
	require.NoError(t, err)
	grecs, _, err := store.ReadFile(grown)
	require.NoError(t, err)
	dets, err := catalog.ReadFile(cat)
	require.NoError(t, err)
	tracks, missing := store.Resolve(grecs, dets)
	assert.Zero(t, missing)
	require.NotEmpty(t, tracks)
	for _, tk := range tracks {
		fake, ok := tk.SameFake()
		if !ok {
			continue
		}
		for _, c := range tk.Cands {
			if c.FakeID != 0 {
				assert.Equal(t, fake, c.FakeID, "track %d candidate %d", tk.ID, c.ObjID)
			}
		}
	}
}

func TestSiftSuppress(t *testing.T) {
	e := newEnv(t, "")
	cat, _, sc := scene(t, e)
	fit := sc.Seeds[1].Clone()
	fit.ChiSq, fit.DOF = 1.5, 2
	in := e.path("fitted.gob")
	require.NoError(t, store.WriteFile(in, []*track.Track{sc.Seeds[0], fit, sc.Seeds[2]}))

	o := oracle.NewMemory()
	outFile := e.path("kept.gob")
	out, err := e.run(t, o, "sift", in, "-d", cat, "--suppress", "-o", outFile)
	require.NoError(t, err)
	assert.Contains(t, out, "fit")
	assert.Zero(t, o.Calls("fit"))
	recs, _, err := store.ReadFile(outFile)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, fit.ID, recs[0].ID)
	assert.Equal(t, 1.5, recs[0].ChiSq)
}
