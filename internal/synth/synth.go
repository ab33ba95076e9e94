// Public domain.

// Package synth generates synthetic detection catalogs of linearly moving
// sources, for exercising the linker end to end.
package synth

import (
	"math"
	"time"

	"github.com/soniakeys/unit"
	xrand "golang.org/x/exp/rand"

	"github.com/chapinalc/New-NewLinker/internal/skyproj"
	"github.com/chapinalc/New-NewLinker/internal/track"
)

// Options describe a synthetic survey.
type Options struct {
	Seed     uint64      // 0 seeds from the clock
	Center   skyproj.Pos // field center
	Field    float64     // field half width, degrees
	Start    float64     // MJD of the first night
	Nights   int
	PerNight int     // exposures per night, .02 day apart
	Objects  int     // moving sources
	Noise    int     // unrelated detections
	Rate     float64 // largest source rate in each coordinate, degrees/day
	Err      float64 // astrometric error, arcseconds
	Spurious int     // seed tracks made of noise
}

// DefaultOptions is a small survey.
var DefaultOptions = Options{
	Seed:     3,
	Center:   skyproj.Pos{RA: 30, Dec: -5},
	Field:    1,
	Start:    57000,
	Nights:   6,
	PerNight: 2,
	Objects:  8,
	Noise:    200,
	Rate:     .05,
	Err:      .2,
	Spurious: 4,
}

// Scene is a generated catalog with seed tracks.  Seeds of sources come
// first, in fake id order, followed by spurious seeds.  Seeds are numbered
// from 1.
type Scene struct {
	Dets  []*track.Detection
	Seeds []*track.Track
}

type gen struct {
	o    Options
	r    *xrand.Rand
	next int64
}

func (g *gen) det(t float64, p skyproj.Pos, exp, fake int64) *track.Detection {
	g.next++
	e := g.o.Err / 3600
	cd := math.Cos(p.Dec * math.Pi / 180)
	return &track.Detection{
		ObjID:  g.next,
		MJD:    t,
		RA:     unit.PMod(p.RA+g.r.NormFloat64()*e/cd, 360),
		Dec:    p.Dec + g.r.NormFloat64()*e,
		Err:    e,
		ExpNum: exp,
		FakeID: fake,
	}
}

func (g *gen) exposure(night, slot int) (t float64, exp int64) {
	return g.o.Start + float64(night) + .02*float64(slot), int64(100000 + night*g.o.PerNight + slot)
}

// Generate builds a scene.
func Generate(o Options) Scene {
	rnd := xrand.New(&xrand.PCGSource{})
	if o.Seed == 0 {
		rnd.Seed(uint64(time.Now().UnixNano()))
	} else {
		rnd.Seed(o.Seed)
	}
	g := &gen{o: o, r: rnd}
	var sc Scene
	cd := math.Cos(o.Center.Dec * math.Pi / 180)
	uniform := func(half float64) float64 { return (2*g.r.Float64() - 1) * half }

	for k := 0; k < o.Objects; k++ {
		fake := int64(k + 1)
		p0 := skyproj.Pos{RA: o.Center.RA + uniform(o.Field)/cd, Dec: o.Center.Dec + uniform(o.Field)}
		vra, vdec := uniform(o.Rate)/cd, uniform(o.Rate)
		var mine []*track.Detection
		for n := 0; n < o.Nights; n++ {
			for s := 0; s < o.PerNight; s++ {
				t, exp := g.exposure(n, s)
				dt := t - o.Start
				d := g.det(t, skyproj.Pos{RA: p0.RA + vra*dt, Dec: p0.Dec + vdec*dt}, exp, fake)
				mine = append(mine, d)
			}
		}
		sc.Dets = append(sc.Dets, mine...)
		if s := seed(mine, o.PerNight); s != nil {
			sc.Seeds = append(sc.Seeds, s)
		}
	}

	var early []*track.Detection
	for i := 0; i < o.Noise; i++ {
		n, s := g.r.Intn(max(o.Nights, 1)), g.r.Intn(max(o.PerNight, 1))
		t, exp := g.exposure(n, s)
		p := skyproj.Pos{RA: o.Center.RA + uniform(o.Field)/cd, Dec: o.Center.Dec + uniform(o.Field)}
		d := g.det(t, p, exp, 0)
		sc.Dets = append(sc.Dets, d)
		if n < 2 {
			early = append(early, d)
		}
	}
	for i := 0; i < o.Spurious && len(early) >= 3; i++ {
		perm := g.r.Perm(len(early))
		sc.Seeds = append(sc.Seeds, track.New([]*track.Detection{
			early[perm[0]], early[perm[1]], early[perm[2]],
		}))
	}
	for i, s := range sc.Seeds {
		s.ID = int64(i + 1)
	}
	return sc
}

// seed picks a starting triplet from the first two nights of one source.
func seed(dets []*track.Detection, perNight int) *track.Track {
	switch {
	case perNight >= 2 && len(dets) >= perNight+1:
		return track.New([]*track.Detection{dets[0], dets[1], dets[perNight]})
	case len(dets) >= 3:
		return track.New(dets[:3])
	}
	return nil
}
