// Public domain.

package track

import (
	"sort"

	"github.com/soniakeys/unit"

	"github.com/chapinalc/New-NewLinker/internal/skyproj"
)

// Detection is a single observed point source.
type Detection struct {
	ObjID  int64   // unique within a catalog
	MJD    float64 // modified Julian date of the exposure
	RA     float64 // degrees
	Dec    float64 // degrees
	Err    float64 // positional uncertainty, degrees
	ExpNum int64   // exposure number
	CCD    int
	FakeID int64 // truth label of a synthetic source, 0 if none
}

// Pos returns the detection position.
func (d *Detection) Pos() skyproj.Pos {
	return skyproj.Pos{RA: d.RA, Dec: d.Dec}
}

// Sigma returns the positional uncertainty as an angle.
func (d *Detection) Sigma() unit.Angle {
	return unit.AngleFromDeg(d.Err)
}

// Catalog is the read-only detection table, indexed by ObjID.
type Catalog struct {
	byID map[int64]*Detection
	all  []*Detection
}

// NewCatalog indexes dets.  A later detection with a duplicate ObjID
// replaces an earlier one.
func NewCatalog(dets []*Detection) *Catalog {
	c := &Catalog{byID: make(map[int64]*Detection, len(dets))}
	for _, d := range dets {
		if _, ok := c.byID[d.ObjID]; !ok {
			c.all = append(c.all, d)
		}
		c.byID[d.ObjID] = d
	}
	for i, d := range c.all {
		c.all[i] = c.byID[d.ObjID]
	}
	sort.SliceStable(c.all, func(i, j int) bool { return c.all[i].MJD < c.all[j].MJD })
	return c
}

// Lookup returns the detection with the given id.
func (c *Catalog) Lookup(id int64) (*Detection, bool) {
	d, ok := c.byID[id]
	return d, ok
}

// Resolve looks up each id, skipping ids not in the catalog.  It returns the
// number skipped.
func (c *Catalog) Resolve(ids []int64) (dets []*Detection, missing int) {
	for _, id := range ids {
		if d, ok := c.byID[id]; ok {
			dets = append(dets, d)
		} else {
			missing++
		}
	}
	return
}

// All returns every detection in time order.  The slice must not be modified.
func (c *Catalog) All() []*Detection { return c.all }

// Len returns the number of detections.
func (c *Catalog) Len() int { return len(c.all) }

// FakeCounts returns the number of catalog detections per nonzero fake id.
func (c *Catalog) FakeCounts() map[int64]int {
	m := map[int64]int{}
	for _, d := range c.all {
		if d.FakeID != 0 {
			m[d.FakeID]++
		}
	}
	return m
}
