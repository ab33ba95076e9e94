// Public domain.

package lkprog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/chapinalc/New-NewLinker/internal/catalog"
	"github.com/chapinalc/New-NewLinker/internal/config"
	"github.com/chapinalc/New-NewLinker/internal/store"
	"github.com/chapinalc/New-NewLinker/internal/track"
)

// Track files are chosen by extension: .db and .sqlite are track
// databases keyed by run and stage, .gob is a gob track file, .txt is a
// readable listing that cannot be read back, anything else holds lines of
// detection ids.

func oracleConfigPath(c config.Config) string {
	return filepath.Join(c.WorkDir, c.Run+".toml")
}

func isDB(fn string) bool {
	switch strings.ToLower(filepath.Ext(fn)) {
	case ".db", ".sqlite":
		return true
	}
	return false
}

func isGob(fn string) bool { return strings.ToLower(filepath.Ext(fn)) == ".gob" }

func isListing(fn string) bool { return strings.ToLower(filepath.Ext(fn)) == ".txt" }

func (a *app) catalog() (*track.Catalog, error) {
	if a.dets == "" {
		return nil, errors.New("detection catalog required, use --dets")
	}
	cat, err := catalog.ReadFile(a.dets)
	if err != nil {
		return nil, err
	}
	a.log.Info("read detections", zap.String("file", a.dets), zap.Int("dets", cat.Len()))
	return cat, nil
}

func (a *app) readRecords(ctx context.Context, fn string) ([]store.Record, error) {
	switch {
	case isDB(fn):
		if !a.runGiven {
			return nil, fmt.Errorf("%s: --run required to read a track database", fn)
		}
		s, err := store.Open(fn, a.log)
		if err != nil {
			return nil, err
		}
		defer s.Close()
		return s.Load(ctx, a.cfg.Run, a.stage)
	case isGob(fn):
		recs, written, err := store.ReadFile(fn)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", fn, err)
		}
		a.log.Debug("track file", zap.String("file", fn), zap.Time("written", written))
		return recs, nil
	}
	f, err := os.Open(fn)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	recs, err := store.ReadIDs(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fn, err)
	}
	return recs, nil
}

// readTracks reads and resolves the tracks of each file in turn.
func (a *app) readTracks(ctx context.Context, cat *track.Catalog, files ...string) ([]*track.Track, error) {
	var all []*track.Track
	for _, fn := range files {
		recs, err := a.readRecords(ctx, fn)
		if err != nil {
			return nil, err
		}
		tracks, missing := store.Resolve(recs, cat)
		if missing > 0 {
			a.log.Warn("track detections not in catalog",
				zap.String("file", fn), zap.Int("missing", missing))
		}
		a.log.Info("read tracks", zap.String("file", fn), zap.Int("tracks", len(tracks)))
		all = append(all, tracks...)
	}
	return all, nil
}

// writeTracks writes tracks to fn, or lists them on the command output if
// fn is empty.  Databases store them under the run id and stage.
func (a *app) writeTracks(ctx context.Context, fn, stage string, tracks []*track.Track) (err error) {
	switch {
	case fn == "" || fn == "-":
		return store.WriteText(a.out, tracks)
	case isDB(fn):
		s, err := store.Open(fn, a.log)
		if err != nil {
			return err
		}
		defer s.Close()
		return s.Save(ctx, a.cfg.Run, stage, tracks)
	case isGob(fn):
		return store.WriteFile(fn, tracks)
	}
	f, err := os.Create(fn)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if isListing(fn) {
		return store.WriteText(f, tracks)
	}
	return store.WriteIDs(f, tracks)
}
