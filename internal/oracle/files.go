// Public domain.

package oracle

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/chapinalc/New-NewLinker/internal/track"
)

// Column names of the oracle request and result tables.
const (
	colOrbitID = "ORBITID"
	colObjID   = "OBJ_ID"
	colExpNum  = "EXPNUM"
	colMJD     = "MJD"
	colRA      = "RA"
	colDec     = "DEC"
	colSigma   = "SIGMA"
	colErrA    = "ERROR_A"
	colChiSq   = "CHISQ"
	colDOF     = "DOF"
	colFlags   = "FLAGS"
	colA       = "A"
	colE       = "E"
	colI       = "I"
)

func ftoa(f float64) string { return strconv.FormatFloat(f, 'g', -1, 64) }
func itoa(i int64) string   { return strconv.FormatInt(i, 10) }

func writeTable(path string, header []string, rows func(w *csv.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	w := csv.NewWriter(f)
	if err = w.Write(header); err != nil {
		return err
	}
	if err = rows(w); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

// WritePredictRequests writes an ORBITID,MJD table.
func WritePredictRequests(path string, reqs []PredictRequest) error {
	return writeTable(path, []string{colOrbitID, colMJD}, func(w *csv.Writer) error {
		for _, r := range reqs {
			if err := w.Write([]string{itoa(r.TrackID), ftoa(r.MJD)}); err != nil {
				return err
			}
		}
		return nil
	})
}

// WriteTrackDets writes one row per detection of each request.  SIGMA is
// the detection uncertainty in arcseconds.
func WriteTrackDets(path string, reqs []TrackDets) error {
	hdr := []string{colOrbitID, colObjID, colExpNum, colMJD, colRA, colDec, colSigma}
	return writeTable(path, hdr, func(w *csv.Writer) error {
		for _, r := range reqs {
			for _, d := range r.Dets {
				err := w.Write([]string{
					itoa(r.TrackID), itoa(d.ObjID), itoa(d.ExpNum),
					ftoa(d.MJD), ftoa(d.RA), ftoa(d.Dec), ftoa(d.Sigma().Sec()),
				})
				if err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// table is a CSV file with named columns.
type table struct {
	path string
	col  map[string]int
	rows [][]string
}

func readTable(path string, need ...string) (*table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	hdr, err := r.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%s: empty table", path)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	t := &table{path: path, col: make(map[string]int, len(hdr))}
	for i, h := range hdr {
		t.col[strings.ToUpper(strings.TrimSpace(h))] = i
	}
	for _, n := range need {
		if _, ok := t.col[n]; !ok {
			return nil, fmt.Errorf("%s: missing column %s", path, n)
		}
	}
	if t.rows, err = r.ReadAll(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

func (t *table) has(name string) bool {
	_, ok := t.col[name]
	return ok
}

func (t *table) field(row []string, name string) (string, error) {
	i := t.col[name]
	if i >= len(row) {
		return "", fmt.Errorf("%s: short row %v", t.path, row)
	}
	return strings.TrimSpace(row[i]), nil
}

func (t *table) float(row []string, name string) (float64, error) {
	s, err := t.field(row, name)
	if err != nil {
		return 0, err
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %s: %w", t.path, name, err)
	}
	return f, nil
}

func (t *table) integer(row []string, name string) (int64, error) {
	s, err := t.field(row, name)
	if err != nil {
		return 0, err
	}
	// some fitters write integer columns as floats
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %s: %w", t.path, name, err)
	}
	return int64(f), nil
}

// ReadPredictions reads an ORBITID,MJD,RA,DEC,ERROR_A table.
func ReadPredictions(path string) (PredictionTable, error) {
	t, err := readTable(path, colOrbitID, colMJD, colRA, colDec, colErrA)
	if err != nil {
		return nil, err
	}
	pt := PredictionTable{}
	for _, row := range t.rows {
		var p Prediction
		if p.TrackID, err = t.integer(row, colOrbitID); err != nil {
			return nil, err
		}
		if p.MJD, err = t.float(row, colMJD); err != nil {
			return nil, err
		}
		if p.RA, err = t.float(row, colRA); err != nil {
			return nil, err
		}
		if p.Dec, err = t.float(row, colDec); err != nil {
			return nil, err
		}
		if p.Err, err = t.float(row, colErrA); err != nil {
			return nil, err
		}
		pt.Add(p)
	}
	return pt, nil
}

// ReadFitResults reads an ORBITID,CHISQ,DOF,FLAGS table.  Optional A,E,I
// columns fill in orbital elements.
func ReadFitResults(path string) (map[int64]FitResult, error) {
	t, err := readTable(path, colOrbitID, colChiSq, colDOF, colFlags)
	if err != nil {
		return nil, err
	}
	withEl := t.has(colA) && t.has(colE) && t.has(colI)
	res := make(map[int64]FitResult, len(t.rows))
	for _, row := range t.rows {
		var r FitResult
		var n int64
		if r.TrackID, err = t.integer(row, colOrbitID); err != nil {
			return nil, err
		}
		if r.ChiSq, err = t.float(row, colChiSq); err != nil {
			return nil, err
		}
		if n, err = t.integer(row, colDOF); err != nil {
			return nil, err
		}
		r.DOF = int(n)
		if n, err = t.integer(row, colFlags); err != nil {
			return nil, err
		}
		r.Flags = int(n)
		if withEl {
			var el track.Elements
			if el.A, err = t.float(row, colA); err != nil {
				return nil, err
			}
			if el.E, err = t.float(row, colE); err != nil {
				return nil, err
			}
			if el.I, err = t.float(row, colI); err != nil {
				return nil, err
			}
			r.Elements = &el
		}
		res[r.TrackID] = r
	}
	return res, nil
}

// ReadProximity reads an ORBITID,OBJ_ID,CHISQ table.
func ReadProximity(path string) (ProximityTable, error) {
	t, err := readTable(path, colOrbitID, colObjID, colChiSq)
	if err != nil {
		return nil, err
	}
	pt := ProximityTable{}
	for _, row := range t.rows {
		id, err := t.integer(row, colOrbitID)
		if err != nil {
			return nil, err
		}
		obj, err := t.integer(row, colObjID)
		if err != nil {
			return nil, err
		}
		c, err := t.float(row, colChiSq)
		if err != nil {
			return nil, err
		}
		pt.Add(id, obj, c)
	}
	return pt, nil
}
