// Public domain.

// Package orbscript writes per-track observation files for an external
// orbit fitter.
//
// Each line of a file is one detection:
//
//	YYYY MM DD.ddddd HH:MM:SS.sss ±DD:MM:SS.ss err obscode
//
// where the date is UTC calendar date with fractional day, followed by RA,
// Dec, the astrometric error in arcseconds and the observatory code.
package orbscript

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/soniakeys/meeus/v3/julian"
	"github.com/soniakeys/unit"

	"github.com/chapinalc/New-NewLinker/internal/track"
)

// MJDOffset is JD - MJD.
const MJDOffset = 2400000.5

// Options control the observation lines.
type Options struct {
	Err     float64 // astrometric error, arcseconds
	ObsCode string
}

// DefaultOptions are for DECam at CTIO.
var DefaultOptions = Options{Err: .1, ObsCode: "807"}

// Date formats mjd as a calendar date with fractional day.
func Date(mjd float64) string {
	y, m, d := julian.JDToCalendar(mjd + MJDOffset)
	return fmt.Sprintf("%d %02d %08.5f", y, m, d)
}

// HMS formats an RA in degrees as hours, minutes and seconds.
func HMS(ra float64) string {
	ms := int64(math.Round(unit.PMod(ra, 360) / 15 * 3600 * 1000))
	ms %= 24 * 3600 * 1000
	h := ms / 3600000
	ms -= h * 3600000
	m := ms / 60000
	ms -= m * 60000
	return fmt.Sprintf("%02d:%02d:%06.3f", h, m, float64(ms)/1000)
}

// DMS formats a declination in degrees as signed degrees, arcminutes and
// arcseconds.
func DMS(dec float64) string {
	sign := '+'
	if dec < 0 {
		sign = '-'
	}
	cs := int64(math.Round(math.Abs(unit.AngleFromDeg(dec).Sec()) * 100))
	d := cs / 360000
	cs -= d * 360000
	m := cs / 6000
	cs -= m * 6000
	return fmt.Sprintf("%c%02d:%02d:%05.2f", sign, d, m, float64(cs)/100)
}

// Write writes the observation lines of t.
func Write(w io.Writer, t *track.Track, opt Options) error {
	b := bufio.NewWriter(w)
	for _, d := range t.Dets {
		fmt.Fprintf(b, "%s %s %s %g %s\n", Date(d.MJD), HMS(d.RA), DMS(d.Dec), opt.Err, opt.ObsCode)
	}
	return b.Flush()
}

// Name returns the file name for t: prefix_<fake id> for a track of one
// fake source, otherwise prefix_t<track id>.
func Name(prefix string, t *track.Track) string {
	if f, ok := t.SameFake(); ok {
		return fmt.Sprintf("%s_%d.dat", prefix, f)
	}
	return fmt.Sprintf("%s_t%d.dat", prefix, t.ID)
}

// WriteFiles writes one file per track into dir and returns the paths.
func WriteFiles(dir, prefix string, tracks []*track.Track, opt Options) ([]string, error) {
	var paths []string
	for _, t := range tracks {
		p := filepath.Join(dir, Name(prefix, t))
		if err := writeFile(p, t, opt); err != nil {
			return paths, err
		}
		paths = append(paths, p)
	}
	return paths, nil
}

func writeFile(p string, t *track.Track, opt Options) (err error) {
	f, err := os.Create(p)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return Write(f, t, opt)
}
