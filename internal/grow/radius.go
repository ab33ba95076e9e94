// Public domain.

package grow

import (
	"math"

	"github.com/soniakeys/unit"

	"github.com/chapinalc/New-NewLinker/internal/oracle"
	"github.com/chapinalc/New-NewLinker/internal/skyproj"
)

// clipErr returns the prediction uncertainty to use, in arcseconds.
func clipErr(reported, floor float64) float64 {
	if floor <= 0 {
		// no floor configured, trust the oracle
		return reported
	} else if reported <= 0 {
		// oracle reported nothing usable
		return floor
	}
	return math.Max(reported, floor)
}

// SearchRadius returns the radius in plane degrees to search about center,
// the prediction at a bucket time.  Each neighbor, a prediction one interval
// before or after, contributes its plane distance from center plus its
// uncertainty scaled by errSize.  The radius is the largest contribution.
// Neighbors on the far hemisphere from ref have no plane position and are
// ignored.
//
// With no usable neighbors the radius is the scaled uncertainty of center.
// The radius is NaN if center itself is on the far hemisphere.
func SearchRadius(ref skyproj.Pos, center oracle.Prediction, neighbors []oracle.Prediction, errSize, minErr float64) float64 {
	if !skyproj.Visible(center.Pos(), ref) {
		return math.NaN()
	}
	cx, cy := skyproj.Project(center.Pos(), ref)
	r := math.Inf(-1)
	for _, n := range neighbors {
		if !skyproj.Visible(n.Pos(), ref) {
			continue
		}
		x, y := skyproj.Project(n.Pos(), ref)
		d := math.Hypot(x-cx, y-cy) +
			unit.AngleFromSec(clipErr(n.Err, minErr)*errSize).Deg()
		r = math.Max(r, d)
	}
	if math.IsInf(r, -1) {
		return unit.AngleFromSec(clipErr(center.Err, minErr) * errSize).Deg()
	}
	return r
}
