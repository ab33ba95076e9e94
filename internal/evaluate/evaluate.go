// Public domain.

// Package evaluate scores linked tracks against the fake source labels of
// a synthetic or injected catalog.
//
// A track is pure if every detection carries the same nonzero fake id.
// Tracks are classified as accepted when their fit passes a χ² per degree
// of freedom threshold, and the Matthews correlation coefficient measures
// how well acceptance predicts purity.  Compared to similar statistics, MCC
// gives a meaningful measure even when pure and impure tracks are present
// in very different numbers.
package evaluate

import (
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/chapinalc/New-NewLinker/internal/track"
)

// Confusion counts tracks by acceptance and purity.
type Confusion struct {
	TP int // accepted, pure
	FN int // rejected, pure
	FP int // accepted, impure
	TN int // rejected, impure
}

// MCC returns the Matthews correlation coefficient, 0 when undefined.
func (c Confusion) MCC() float64 {
	tpf := float64(c.TP)
	fnf := float64(c.FN)
	fpf := float64(c.FP)
	tnf := float64(c.TN)
	mcc := 0.
	if d := (tpf + fpf) * (tpf + fnf) * (tnf + fpf) * (tnf + fnf); d > 0 {
		mcc = (tpf*tnf - fpf*fnf) / math.Sqrt(d)
	}
	return mcc
}

// Report summarizes a track list.
type Report struct {
	Tracks    int
	Pure      int
	Mixed     int // labeled detections from more than one source, or some unlabeled
	Unlabeled int // no labeled detections
	Found     int // fake sources with a pure track
	Sources   int // fake sources in the catalog
	// Completeness is, per fake source, the largest fraction of its catalog
	// detections found in any single track.
	Completeness map[int64]float64
	Confusion    Confusion
	Threshold    float64
}

// Accepted reports whether t passes threshold: fit, positive χ², and χ²
// below threshold times the degrees of freedom.
func Accepted(t *track.Track, threshold float64) bool {
	return t.Fit() && t.ChiSq > 0 && t.ChiSq < threshold*float64(t.DOF)
}

// Evaluate scores tracks against cat.
func Evaluate(tracks []*track.Track, cat *track.Catalog, threshold float64) Report {
	counts := cat.FakeCounts()
	r := Report{
		Tracks:       len(tracks),
		Sources:      len(counts),
		Completeness: make(map[int64]float64, len(counts)),
		Threshold:    threshold,
	}
	for _, t := range tracks {
		f, pure := t.SameFake()
		labeled := false
		for _, d := range t.Dets {
			if d.FakeID != 0 {
				labeled = true
				break
			}
		}
		switch {
		case pure:
			r.Pure++
		case labeled:
			r.Mixed++
		default:
			r.Unlabeled++
		}
		acc := Accepted(t, threshold)
		switch {
		case acc && pure:
			r.Confusion.TP++
		case pure:
			r.Confusion.FN++
		case acc:
			r.Confusion.FP++
		default:
			r.Confusion.TN++
		}
		if pure && counts[f] > 0 {
			if c := float64(t.Len()) / float64(counts[f]); c > r.Completeness[f] {
				r.Completeness[f] = c
			}
		}
	}
	r.Found = len(r.Completeness)
	return r
}

// MeanCompleteness averages completeness over all catalog sources,
// counting unfound sources as zero.
func (r Report) MeanCompleteness() float64 {
	if r.Sources == 0 {
		return 0
	}
	s := 0.
	for _, c := range r.Completeness {
		s += c
	}
	return s / float64(r.Sources)
}

// Print writes the report in the form of a confusion table.
func (r Report) Print(w io.Writer) {
	fmt.Fprintln(w, "Tracks:            ", r.Tracks)
	fmt.Fprintln(w, "Pure:              ", r.Pure)
	fmt.Fprintln(w, "Mixed:             ", r.Mixed)
	fmt.Fprintln(w, "Unlabeled:         ", r.Unlabeled)
	fmt.Fprintf(w, "Sources found:       %d of %d\n", r.Found, r.Sources)
	fmt.Fprintf(w, "Mean completeness:   %.2f\n", r.MeanCompleteness())
	fmt.Fprintf(w, "Threshold:           %g\n", r.Threshold)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "                        fit acceptance")
	fmt.Fprintln(w, "                    -----------------------")
	fmt.Fprintln(w, "                     accepted      rejected")
	fmt.Fprintf(w, "Pure                  %7d       %7d\n", r.Confusion.TP, r.Confusion.FN)
	fmt.Fprintf(w, "Impure                %7d       %7d\n", r.Confusion.FP, r.Confusion.TN)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Matthews correlation coefficient: %.2f\n", r.Confusion.MCC())
}

// Missed returns fake ids of catalog sources with no pure track, ascending.
func (r Report) Missed(cat *track.Catalog) []int64 {
	var m []int64
	for f := range cat.FakeCounts() {
		if _, ok := r.Completeness[f]; !ok {
			m = append(m, f)
		}
	}
	sort.Slice(m, func(i, j int) bool { return m[i] < m[j] })
	return m
}
