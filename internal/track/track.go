// Public domain.

// Package track models candidate orbit tracks: ordered sets of detections
// hypothesized to be the same moving object.
package track

import (
	"sort"
)

// NotFit is the χ² of a track that has not been fit.
const NotFit = -1.

// Elements holds the orbital elements reported for a fitted track.
type Elements struct {
	A float64 // semimajor axis, AU
	E float64 // eccentricity
	I float64 // inclination, degrees
}

// Track is a candidate trajectory.
//
// Dets is sorted by time and holds no duplicate ObjIDs.  Cands are
// detections found near the predicted path that are not yet members.
type Track struct {
	ID       int64
	Dets     []*Detection
	Cands    []*Detection
	ChiSq    float64
	DOF      int
	Elements *Elements
}

// New returns an unfit track holding dets, deduplicated by ObjID and sorted
// by time.
func New(dets []*Detection) *Track {
	return &Track{Dets: normalize(dets), ChiSq: NotFit}
}

func normalize(dets []*Detection) []*Detection {
	seen := make(map[int64]bool, len(dets))
	out := make([]*Detection, 0, len(dets))
	for _, d := range dets {
		if !seen[d.ObjID] {
			seen[d.ObjID] = true
			out = append(out, d)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].MJD != out[j].MJD {
			return out[i].MJD < out[j].MJD
		}
		return out[i].ObjID < out[j].ObjID
	})
	return out
}

// Len returns the number of member detections.
func (t *Track) Len() int { return len(t.Dets) }

// IDs returns member ObjIDs in time order, nil for an empty track.
func (t *Track) IDs() []int64 { return objIDs(t.Dets) }

// CandIDs returns candidate ObjIDs.
func (t *Track) CandIDs() []int64 { return objIDs(t.Cands) }

func objIDs(dets []*Detection) (ids []int64) {
	for _, d := range dets {
		ids = append(ids, d.ObjID)
	}
	return
}

// Has reports whether a detection with the given id is a member.
func (t *Track) Has(objID int64) bool {
	for _, d := range t.Dets {
		if d.ObjID == objID {
			return true
		}
	}
	return false
}

// Fit reports whether the track carries a χ² from a fit.
func (t *Track) Fit() bool { return t.ChiSq != NotFit }

// NormChiSq returns χ² per member detection.
func (t *Track) NormChiSq() float64 {
	if len(t.Dets) == 0 {
		return 0
	}
	return t.ChiSq / float64(len(t.Dets))
}

// First and Last return the times of the earliest and latest members.
func (t *Track) First() float64 { return t.Dets[0].MJD }
func (t *Track) Last() float64  { return t.Dets[len(t.Dets)-1].MJD }

// RealLength returns the number of distinct exposures among the members.
// Detections sharing an exposure cannot all be the same object.
func (t *Track) RealLength() int {
	exp := map[int64]bool{}
	for _, d := range t.Dets {
		exp[d.ExpNum] = true
	}
	return len(exp)
}

// SameFake returns the fake id shared by every member, if there is one.
func (t *Track) SameFake() (int64, bool) {
	if len(t.Dets) == 0 {
		return 0, false
	}
	f := t.Dets[0].FakeID
	if f == 0 {
		return 0, false
	}
	for _, d := range t.Dets[1:] {
		if d.FakeID != f {
			return 0, false
		}
	}
	return f, true
}

// Shared returns the number of ObjIDs t and o have in common.
func (t *Track) Shared(o *Track) (n int) {
	ids := make(map[int64]bool, len(o.Dets))
	for _, d := range o.Dets {
		ids[d.ObjID] = true
	}
	for _, d := range t.Dets {
		if ids[d.ObjID] {
			n++
		}
	}
	return
}

// ShareM reports whether t and o share at least m detections.
func (t *Track) ShareM(o *Track, m int) bool {
	return t.Shared(o) >= m
}

// IsSubset reports whether every member of t is a member of o.
func (t *Track) IsSubset(o *Track) bool {
	return t.Shared(o) == len(t.Dets)
}

// Union returns the members of both tracks, deduplicated and in time order.
func (t *Track) Union(o *Track) []*Detection {
	all := make([]*Detection, 0, len(t.Dets)+len(o.Dets))
	all = append(all, t.Dets...)
	return normalize(append(all, o.Dets...))
}

// Clone returns a copy of t sharing detections but not slices.
func (t *Track) Clone() *Track {
	c := *t
	c.Dets = append([]*Detection(nil), t.Dets...)
	c.Cands = append([]*Detection(nil), t.Cands...)
	if t.Elements != nil {
		e := *t.Elements
		c.Elements = &e
	}
	return &c
}

// Hypotheses returns one unfit track per candidate, each holding the members
// of t plus that candidate.
func (t *Track) Hypotheses() []*Track {
	h := make([]*Track, 0, len(t.Cands))
	for _, c := range t.Cands {
		dets := append(append([]*Detection(nil), t.Dets...), c)
		h = append(h, New(dets))
	}
	return h
}

// OverlapRule sets how many shared detections make two tracks the same
// object: at least max(len(a), len(b))/Divisor + Offset, integer division.
type OverlapRule struct {
	Divisor int
	Offset  int
}

// Majority is the default rule, a strict majority of the longer track.
var Majority = OverlapRule{Divisor: 2, Offset: 1}

// Quorum returns the required number of shared detections for tracks of
// length a and b.
func (r OverlapRule) Quorum(a, b int) int {
	if b > a {
		a = b
	}
	d := r.Divisor
	if d <= 0 {
		d = 1
	}
	return a/d + r.Offset
}

// Mergeable reports whether a and b should be merged.  They must share a
// detection, and either share a quorum or one must be a subset of the other.
func Mergeable(a, b *Track, r OverlapRule) bool {
	n := a.Shared(b)
	if n == 0 {
		return false
	}
	return n >= r.Quorum(len(a.Dets), len(b.Dets)) ||
		n == len(a.Dets) || n == len(b.Dets)
}

// MergeByFake groups tracks by the fake id of their first detection and
// returns one track per group holding every detection of the group.  Groups
// are returned in order of first appearance.  Unlabeled tracks, fake id 0,
// form one group like any other.  Empty tracks are returned unchanged.
func MergeByFake(tracks []*Track) []*Track {
	var out []*Track
	group := map[int64]int{}
	for _, t := range tracks {
		if len(t.Dets) == 0 {
			out = append(out, t)
			continue
		}
		f := t.Dets[0].FakeID
		if i, ok := group[f]; ok {
			out[i] = New(out[i].Union(t))
			continue
		}
		group[f] = len(out)
		out = append(out, New(t.Dets))
	}
	return out
}
