// Public domain.

// Package catalog reads detection tables.
//
// A table is CSV with a header row.  Column names are case insensitive and
// the survey names SNOBJID, SNFAKE_ID, ERRAWIN_WORLD and CCDNUM are accepted
// for objid, fakeid, err and ccd.  Columns objid, mjd, ra, dec, err and
// expnum are required; fakeid and ccd are optional.
package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/chapinalc/New-NewLinker/internal/track"
)

// ErrMissingColumn is returned for a table lacking a required column.
var ErrMissingColumn = errors.New("missing column")

var renames = map[string]string{
	"snobjid":       "objid",
	"snfake_id":     "fakeid",
	"errawin_world": "err",
	"ccdnum":        "ccd",
}

var required = []string{"objid", "mjd", "ra", "dec", "err", "expnum"}

// Read reads detections from r.  Rows are returned in file order.
func Read(r io.Reader) ([]*track.Detection, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true
	hdr, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("catalog header: %w", err)
	}
	col := map[string]int{}
	for i, h := range hdr {
		h = strings.ToLower(strings.TrimSpace(h))
		if n, ok := renames[h]; ok {
			h = n
		}
		col[h] = i
	}
	for _, n := range required {
		if _, ok := col[n]; !ok {
			return nil, fmt.Errorf("%w %s", ErrMissingColumn, n)
		}
	}
	fakeCol, hasFake := col["fakeid"]
	ccdCol, hasCCD := col["ccd"]

	var dets []*track.Detection
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			return dets, nil
		}
		if err != nil {
			return nil, err
		}
		p := parser{rec: rec, line: line}
		d := &track.Detection{
			ObjID:  p.i64(col["objid"]),
			MJD:    p.f64(col["mjd"]),
			RA:     p.f64(col["ra"]),
			Dec:    p.f64(col["dec"]),
			Err:    p.f64(col["err"]),
			ExpNum: p.i64(col["expnum"]),
		}
		if hasFake {
			d.FakeID = p.i64(fakeCol)
		}
		if hasCCD {
			d.CCD = int(p.i64(ccdCol))
		}
		if p.err != nil {
			return nil, p.err
		}
		dets = append(dets, d)
	}
}

// parser converts fields of one record, keeping the first error.
type parser struct {
	rec  []string
	line int
	err  error
}

func (p *parser) field(i int) string {
	if p.err != nil {
		return ""
	}
	if i >= len(p.rec) {
		p.err = fmt.Errorf("line %d: too few fields", p.line)
		return ""
	}
	return strings.TrimSpace(p.rec[i])
}

func (p *parser) f64(i int) float64 {
	s := p.field(i)
	if p.err != nil {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		p.err = fmt.Errorf("line %d: %w", p.line, err)
	}
	return f
}

func (p *parser) i64(i int) int64 {
	s := p.field(i)
	if p.err != nil {
		return 0
	}
	if s == "" {
		return 0
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		// integer columns exported as floats
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			p.err = fmt.Errorf("line %d: %w", p.line, err)
			return 0
		}
		n = int64(f)
	}
	return n
}

// ReadFile reads a detection table and indexes it.
func ReadFile(path string) (*track.Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	dets, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return track.NewCatalog(dets), nil
}

// Write writes dets as a table Read accepts.
func Write(w io.Writer, dets []*track.Detection) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"objid", "mjd", "ra", "dec", "err", "expnum", "ccd", "fakeid"}); err != nil {
		return err
	}
	for _, d := range dets {
		err := cw.Write([]string{
			strconv.FormatInt(d.ObjID, 10),
			strconv.FormatFloat(d.MJD, 'g', -1, 64),
			strconv.FormatFloat(d.RA, 'g', -1, 64),
			strconv.FormatFloat(d.Dec, 'g', -1, 64),
			strconv.FormatFloat(d.Err, 'g', -1, 64),
			strconv.FormatInt(d.ExpNum, 10),
			strconv.Itoa(d.CCD),
			strconv.FormatInt(d.FakeID, 10),
		})
		if err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFile writes dets to path.
func WriteFile(path string, dets []*track.Detection) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return Write(f, dets)
}
