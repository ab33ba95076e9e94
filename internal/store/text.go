// Public domain.

package store

import (
	"bufio"
	"fmt"
	"io"

	"github.com/chapinalc/New-NewLinker/internal/track"
)

// WriteText writes a readable listing of tracks, one block per track.
func WriteText(w io.Writer, tracks []*track.Track) error {
	b := bufio.NewWriter(w)
	for _, t := range tracks {
		fmt.Fprintf(b, "track %d  dets %d  exposures %d", t.ID, t.Len(), t.RealLength())
		if t.Fit() {
			fmt.Fprintf(b, "  chisq %.2f  dof %d", t.ChiSq, t.DOF)
		}
		if e := t.Elements; e != nil {
			fmt.Fprintf(b, "  a %.3f  e %.3f  i %.2f", e.A, e.E, e.I)
		}
		fmt.Fprintln(b)
		for _, d := range t.Dets {
			fmt.Fprintf(b, "  %12d %12.5f %11.6f %+11.6f %8d %d\n",
				d.ObjID, d.MJD, d.RA, d.Dec, d.ExpNum, d.FakeID)
		}
		if len(t.Cands) > 0 {
			fmt.Fprintf(b, "  candidates %v\n", t.CandIDs())
		}
	}
	return b.Flush()
}
