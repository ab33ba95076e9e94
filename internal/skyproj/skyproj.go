// Public domain.

// Package skyproj flattens sky positions onto the plane tangent to the sky at
// a reference point, so that small regions can be searched with euclidean
// geometry.
//
// All angles at the package boundary are in degrees.
package skyproj

import (
	"math"

	"github.com/soniakeys/meeus/v3/angle"
	"github.com/soniakeys/unit"
)

// Pos is an equatorial position in degrees.
type Pos struct {
	RA, Dec float64
}

// NormalizeLon wraps a longitude in degrees into (-180, 180].
func NormalizeLon(lon float64) float64 {
	lon = unit.PMod(lon, 360)
	if lon > 180 {
		lon -= 360
	}
	return lon
}

// Project computes the gnomonic projection of p about ref.  Results are
// tangent plane coordinates in degrees, x increasing with RA.
//
// The projection is defined only for points less than 90 degrees from ref.
// See Visible.
func Project(p, ref Pos) (x, y float64) {
	sd0, cd0 := unit.AngleFromDeg(ref.Dec).Sincos()
	sd, cd := unit.AngleFromDeg(p.Dec).Sincos()
	sr, cr := unit.AngleFromDeg(NormalizeLon(p.RA - ref.RA)).Sincos()
	cosc := sd0*sd + cd0*cd*cr
	x = cd * sr / cosc
	y = (cd0*sd - sd0*cd*cr) / cosc
	return unit.Angle(x).Deg(), unit.Angle(y).Deg()
}

// Unproject is the inverse of Project.  RA of the result is in [0, 360).
func Unproject(x, y float64, ref Pos) Pos {
	xi := unit.AngleFromDeg(x).Rad()
	eta := unit.AngleFromDeg(y).Rad()
	sd0, cd0 := unit.AngleFromDeg(ref.Dec).Sincos()
	den := cd0 - eta*sd0
	ra := ref.RA + unit.Angle(math.Atan2(xi, den)).Deg()
	dec := math.Atan2(sd0+eta*cd0, math.Hypot(xi, den))
	return Pos{RA: unit.PMod(ra, 360), Dec: unit.Angle(dec).Deg()}
}

// Separation returns the angular distance between a and b in degrees.
func Separation(a, b Pos) float64 {
	return angle.Sep(
		unit.AngleFromDeg(a.RA), unit.AngleFromDeg(a.Dec),
		unit.AngleFromDeg(b.RA), unit.AngleFromDeg(b.Dec)).Deg()
}

// Visible reports whether p lies on the near hemisphere about ref, where
// Project is defined.
func Visible(p, ref Pos) bool {
	return Separation(p, ref) < 90
}
