// Public domain.

// Package store persists tracks.  Tracks are stored by detection id and
// resolved against a detection catalog when read back.
package store

import (
	"encoding/gob"
	"os"
	"time"

	"github.com/chapinalc/New-NewLinker/internal/track"
)

// Record is a track by detection id.
type Record struct {
	ID       int64
	Dets     []int64
	Cands    []int64
	ChiSq    float64
	DOF      int
	Elements *track.Elements
}

// Records converts tracks to records.
func Records(tracks []*track.Track) []Record {
	r := make([]Record, len(tracks))
	for i, t := range tracks {
		r[i] = Record{
			ID:       t.ID,
			Dets:     t.IDs(),
			Cands:    t.CandIDs(),
			ChiSq:    t.ChiSq,
			DOF:      t.DOF,
			Elements: t.Elements,
		}
	}
	return r
}

// Resolve rebuilds tracks from records.  Detection ids missing from the
// catalog are skipped; their count is returned.
func Resolve(recs []Record, cat *track.Catalog) (tracks []*track.Track, missing int) {
	tracks = make([]*track.Track, len(recs))
	for i, r := range recs {
		dets, m := cat.Resolve(r.Dets)
		cands, mc := cat.Resolve(r.Cands)
		missing += m + mc
		t := track.New(dets)
		t.ID = r.ID
		t.Cands = cands
		t.ChiSq = r.ChiSq
		t.DOF = r.DOF
		t.Elements = r.Elements
		tracks[i] = t
	}
	return
}

// WriteFile writes tracks in gob format.
func WriteFile(fn string, tracks []*track.Track) (err error) {
	var f *os.File
	if f, err = os.Create(fn); err != nil {
		return
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	enc := gob.NewEncoder(f)
	if err = enc.Encode(time.Now().UTC()); err != nil {
		return
	}
	err = enc.Encode(Records(tracks))
	return
}

// ReadFile reads a file written by WriteFile.
func ReadFile(fn string) (recs []Record, written time.Time, err error) {
	var f *os.File
	f, err = os.Open(fn)
	if err != nil {
		return
	}
	defer f.Close()
	dec := gob.NewDecoder(f)
	if err = dec.Decode(&written); err != nil {
		return
	}
	err = dec.Decode(&recs)
	return
}
