// Public domain.

package store

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/chapinalc/New-NewLinker/internal/track"
)

// ReadIDs reads tracks given as lines of detection ids separated by commas
// or white space, optionally preceded by a track id and a colon, as in
// "7: 1,2,3".  Blank lines and lines starting with # are skipped.  Lines
// without a track id are numbered by position from 1.  Tracks are not fit.
func ReadIDs(r io.Reader) ([]Record, error) {
	var recs []Record
	sc := bufio.NewScanner(r)
	for line := 1; sc.Scan(); line++ {
		s := strings.TrimSpace(sc.Text())
		if s == "" || s[0] == '#' {
			continue
		}
		id := int64(len(recs) + 1)
		if head, rest, ok := strings.Cut(s, ":"); ok {
			n, err := strconv.ParseInt(strings.TrimSpace(head), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: track id: %w", line, err)
			}
			id, s = n, rest
		}
		f := strings.FieldsFunc(s, func(r rune) bool {
			return r == ',' || r == ' ' || r == '\t'
		})
		dets := make([]int64, len(f))
		for i, fs := range f {
			d, err := strconv.ParseInt(fs, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			dets[i] = d
		}
		recs = append(recs, Record{ID: id, Dets: dets, ChiSq: track.NotFit})
	}
	return recs, sc.Err()
}

// WriteIDs writes each track as its id, a colon and its detection ids, the
// form read by ReadIDs.
func WriteIDs(w io.Writer, tracks []*track.Track) error {
	b := bufio.NewWriter(w)
	for _, t := range tracks {
		b.WriteString(strconv.FormatInt(t.ID, 10))
		b.WriteString(":")
		for i, id := range t.IDs() {
			if i > 0 {
				b.WriteByte(',')
			} else {
				b.WriteByte(' ')
			}
			b.WriteString(strconv.FormatInt(id, 10))
		}
		b.WriteByte('\n')
	}
	return b.Flush()
}
