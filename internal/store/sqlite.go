// Public domain.

package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/chapinalc/New-NewLinker/internal/track"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLite keeps the tracks of many runs and stages in one database.
type SQLite struct {
	db  *sql.DB
	log *zap.Logger
}

// Open opens or creates the database at path and brings its schema up to
// date.
func Open(path string, log *zap.Logger) (*SQLite, error) {
	if log == nil {
		log = zap.NewNop()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	s := &SQLite{db: db, log: log}
	if err := s.migrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *SQLite) Close() error { return s.db.Close() }

// migrateLogger routes migrate output to zap.
type migrateLogger struct{ log *zap.Logger }

func (l migrateLogger) Printf(format string, v ...interface{}) {
	l.log.Debug(fmt.Sprintf("migrate: "+format, v...))
}

func (l migrateLogger) Verbose() bool { return false }

func (s *SQLite) migrateUp() error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("migration source: %w", err)
	}
	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("sqlite migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	// m is not closed, that would close s.db
	m.Log = migrateLogger{s.log}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// Save replaces the tracks stored for run and stage.
func (s *SQLite) Save(ctx context.Context, run, stage string, tracks []*track.Track) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO runs (run_id) VALUES (?)`, run); err != nil {
		return err
	}
	for _, q := range []string{
		`DELETE FROM track_detections WHERE run_id = ? AND stage = ?`,
		`DELETE FROM tracks WHERE run_id = ? AND stage = ?`,
	} {
		if _, err := tx.ExecContext(ctx, q, run, stage); err != nil {
			return err
		}
	}
	insTrack, err := tx.PrepareContext(ctx,
		`INSERT INTO tracks (run_id, stage, track_id, chisq, dof, a, e, i)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer insTrack.Close()
	insDet, err := tx.PrepareContext(ctx,
		`INSERT INTO track_detections (run_id, stage, track_id, obj_id, is_cand, seq)
		 VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer insDet.Close()

	for _, r := range Records(tracks) {
		var a, e, i sql.NullFloat64
		if el := r.Elements; el != nil {
			a = sql.NullFloat64{Float64: el.A, Valid: true}
			e = sql.NullFloat64{Float64: el.E, Valid: true}
			i = sql.NullFloat64{Float64: el.I, Valid: true}
		}
		if _, err := insTrack.ExecContext(ctx, run, stage, r.ID, r.ChiSq, r.DOF, a, e, i); err != nil {
			return fmt.Errorf("track %d: %w", r.ID, err)
		}
		for seq, id := range r.Dets {
			if _, err := insDet.ExecContext(ctx, run, stage, r.ID, id, 0, seq); err != nil {
				return err
			}
		}
		for seq, id := range r.Cands {
			if _, err := insDet.ExecContext(ctx, run, stage, r.ID, id, 1, seq); err != nil {
				return err
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	s.log.Debug("saved tracks",
		zap.String("run", run), zap.String("stage", stage), zap.Int("tracks", len(tracks)))
	return nil
}

// Load returns the records stored for run and stage in track id order.
func (s *SQLite) Load(ctx context.Context, run, stage string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT track_id, chisq, dof, a, e, i FROM tracks
		 WHERE run_id = ? AND stage = ? ORDER BY track_id`, run, stage)
	if err != nil {
		return nil, err
	}
	var recs []Record
	at := map[int64]int{}
	for rows.Next() {
		var r Record
		var a, e, i sql.NullFloat64
		if err := rows.Scan(&r.ID, &r.ChiSq, &r.DOF, &a, &e, &i); err != nil {
			rows.Close()
			return nil, err
		}
		if a.Valid && e.Valid && i.Valid {
			r.Elements = &track.Elements{A: a.Float64, E: e.Float64, I: i.Float64}
		}
		at[r.ID] = len(recs)
		recs = append(recs, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	drows, err := s.db.QueryContext(ctx,
		`SELECT track_id, obj_id, is_cand FROM track_detections
		 WHERE run_id = ? AND stage = ? ORDER BY track_id, is_cand, seq`, run, stage)
	if err != nil {
		return nil, err
	}
	defer drows.Close()
	for drows.Next() {
		var id, obj int64
		var cand bool
		if err := drows.Scan(&id, &obj, &cand); err != nil {
			return nil, err
		}
		k, ok := at[id]
		if !ok {
			continue
		}
		if cand {
			recs[k].Cands = append(recs[k].Cands, obj)
		} else {
			recs[k].Dets = append(recs[k].Dets, obj)
		}
	}
	return recs, drows.Err()
}

// Runs lists stored run ids, oldest first.
func (s *SQLite) Runs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT run_id FROM runs ORDER BY created_at, run_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var runs []string
	for rows.Next() {
		var r string
		if err := rows.Scan(&r); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
