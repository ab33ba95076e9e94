// Public domain.

package oracle

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// Commands names the oracle programs.  Elements is optional; when set it is
// run on the orbit file after each fit.
type Commands struct {
	Predict   string
	Fit       string
	Proximity string
	Elements  string
	FitArgs   []string
}

// DefaultCommands are the Bulk* programs found on PATH.
var DefaultCommands = Commands{
	Predict:   "BulkPredict",
	Fit:       "BulkFit",
	Proximity: "BulkProximity",
}

// Runner runs one external command to completion and returns its combined
// output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Exec is an Oracle backed by command line programs exchanging CSV files in
// Dir.  Files are named <Run>-<batch>.<kind>.csv.  Unless Overwrite is set,
// a call whose result file already exists is not run again.
type Exec struct {
	Dir       string
	Run       string
	Cmd       Commands
	Overwrite bool

	log *zap.Logger
	run Runner
}

// NewExec returns an Exec oracle.  A nil runner runs real processes.
func NewExec(dir, run string, cmd Commands, overwrite bool, runner Runner, log *zap.Logger) *Exec {
	if runner == nil {
		runner = runCommand
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Exec{Dir: dir, Run: run, Cmd: cmd, Overwrite: overwrite, log: log, run: runner}
}

// Path returns the file used for kind within batch.
func (e *Exec) Path(batch, kind string) string {
	return filepath.Join(e.Dir, fmt.Sprintf("%s-%s.%s.csv", e.Run, batch, kind))
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// fresh reports whether out must be produced.
func (e *Exec) fresh(out string) bool {
	if e.Overwrite || !exists(out) {
		return true
	}
	e.log.Info("oracle result exists, reusing", zap.String("file", out))
	return false
}

func (e *Exec) call(ctx context.Context, out, name string, args ...string) error {
	e.log.Debug("oracle call", zap.String("cmd", name), zap.Strings("args", args))
	b, err := e.run(ctx, name, args...)
	if err != nil {
		msg := strings.TrimSpace(string(b))
		if len(msg) > 500 {
			msg = msg[len(msg)-500:]
		}
		return fmt.Errorf("%w: %s %s: %v: %s",
			ErrOracleFailed, name, strings.Join(args, " "), err, msg)
	}
	if !exists(out) {
		return fmt.Errorf("%w: %s %s: %s", ErrMissingOutput, name, strings.Join(args, " "), out)
	}
	return nil
}

// Predict runs the predict program on reqs.
func (e *Exec) Predict(ctx context.Context, batch string, reqs []PredictRequest, orbits Orbits) (PredictionTable, error) {
	out := e.Path(batch, "pred")
	if e.fresh(out) {
		req := e.Path(batch, "predreq")
		if err := WritePredictRequests(req, DedupPredict(reqs)); err != nil {
			return nil, err
		}
		err := e.call(ctx, out, e.Cmd.Predict,
			"-observationFile="+req,
			"-orbitFile="+string(orbits),
			"-predictFile="+out)
		if err != nil {
			return nil, err
		}
	}
	return ReadPredictions(out)
}

// Fit runs the fit program, then the elements program if one is set.
func (e *Exec) Fit(ctx context.Context, batch string, reqs []TrackDets) (FitTable, error) {
	orb := e.Path(batch, "orbit")
	if e.fresh(orb) {
		req := e.Path(batch, "fitreq")
		if err := WriteTrackDets(req, reqs); err != nil {
			return FitTable{}, err
		}
		args := append([]string{"-observationFile=" + req, "-orbitFile=" + orb}, e.Cmd.FitArgs...)
		if err := e.call(ctx, orb, e.Cmd.Fit, args...); err != nil {
			return FitTable{}, err
		}
		if e.Cmd.Elements != "" {
			if err := e.call(ctx, orb, e.Cmd.Elements, "-orbitFile="+orb); err != nil {
				return FitTable{}, err
			}
		}
	}
	res, err := ReadFitResults(orb)
	if err != nil {
		return FitTable{}, err
	}
	return FitTable{Orbits: Orbits(orb), Results: res}, nil
}

// Proximity runs the proximity program on candidate lists.
func (e *Exec) Proximity(ctx context.Context, batch string, reqs []TrackDets, orbits Orbits) (ProximityTable, error) {
	out := e.Path(batch, "chisq")
	if e.fresh(out) {
		req := e.Path(batch, "proxreq")
		if err := WriteTrackDets(req, reqs); err != nil {
			return nil, err
		}
		err := e.call(ctx, out, e.Cmd.Proximity,
			"-observationFile="+req,
			"-orbitFile="+string(orbits),
			"-chisqFile="+out)
		if err != nil {
			return nil, err
		}
	}
	return ReadProximity(out)
}

// IsFatal reports whether err is an oracle failure that must end the run.
func IsFatal(err error) bool {
	return errors.Is(err, ErrOracleFailed) || errors.Is(err, ErrMissingOutput)
}
