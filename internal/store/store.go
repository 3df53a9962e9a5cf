// Package store archives generation runs in a local SQLite database so
// earlier levels can be listed and reloaded later.
package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/piwi3910/levelforge/internal/geom"
	"github.com/piwi3910/levelforge/internal/model"
)

// Run is one archived generation result. Seed and LibraryHash together
// identify the inputs, so a run can be regenerated from the same library.
type Run struct {
	ID          string
	CreatedAt   time.Time
	Seed        int64
	LibraryHash string
	Dim         int
	Size        geom.Size
	Chunks      []RunChunk
}

// RunChunk is one placed chunk inside an archived run.
type RunChunk struct {
	ID       string
	Tag      string
	Template int
	Position geom.Vec
	Size     geom.Size
	RotY     int // degrees
	RotX     int
	RotZ     int
	Anchors  []RunAnchor
}

// RunAnchor is an anchor with its absolute level-space position.
type RunAnchor struct {
	Name     string
	Tag      string
	Position geom.Vec
}

// RunSummary is the listing row for an archived run.
type RunSummary struct {
	ID          string
	CreatedAt   time.Time
	Seed        int64
	LibraryHash string
	Dim         int
	ChunkKind   int // distinct templates used
	Chunks      int
}

// HashLibrary returns a hex SHA-256 digest over the library's template
// definitions in insertion order. Two libraries with the same templates
// hash identically regardless of the file format they were loaded from.
func HashLibrary(lib *model.ChunkLibrary) string {
	h := sha256.New()
	if lib != nil {
		for _, tpl := range lib.Templates() {
			fmt.Fprintf(h, "%s|%d|%g|%g|%g|%d|%t\n",
				tpl.Tag, int(tpl.Dim), tpl.Size.W, tpl.Size.H, tpl.Size.D,
				tpl.Weight, tpl.AllowRotation)
			for _, c := range tpl.Contexts {
				fmt.Fprintf(h, "c:%s|%s|%g|%g|%g\n", c.Name, c.Tag, c.Position.X, c.Position.Y, c.Position.Z)
			}
			for _, a := range tpl.Anchors {
				fmt.Fprintf(h, "a:%s|%s|%g|%g|%g\n", a.Name, a.Tag, a.Position.X, a.Position.Y, a.Position.Z)
			}
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

// NewRun captures a generated level into an archivable run.
func NewRun(level *model.Level, seed int64, libraryHash string) Run {
	run := Run{
		ID:          uuid.New().String()[:8],
		CreatedAt:   time.Now().UTC(),
		Seed:        seed,
		LibraryHash: libraryHash,
		Dim:         int(level.Dim()),
		Size:        level.Size(),
	}
	for _, c := range level.Chunks() {
		yDeg, xDeg, zDeg := c.Rotation()
		rc := RunChunk{
			ID:       c.ID,
			Tag:      c.Tag(),
			Template: c.Index(),
			Position: c.Position,
			Size:     c.Size,
			RotY:     yDeg,
			RotX:     xDeg,
			RotZ:     zDeg,
		}
		for _, a := range c.Anchors {
			rc.Anchors = append(rc.Anchors, RunAnchor{
				Name:     a.Name,
				Tag:      a.Tag,
				Position: a.AbsolutePosition(),
			})
		}
		run.Chunks = append(run.Chunks, rc)
	}
	return run
}

// Archive is a SQLite-backed run store.
type Archive struct {
	db *sql.DB
}

// Open opens (or creates) the archive database at path.
func Open(path string) (*Archive, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: empty archive path", model.ErrInvalidArgument)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Archive{db: db}, nil
}

// Close releases the underlying database handle.
func (a *Archive) Close() error {
	return a.db.Close()
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			created_at TEXT NOT NULL,
			seed INTEGER NOT NULL,
			library_hash TEXT NOT NULL DEFAULT '',
			dim INTEGER NOT NULL,
			width REAL NOT NULL,
			height REAL NOT NULL,
			depth REAL NOT NULL,
			chunk_count INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS chunks (
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			seq INTEGER NOT NULL,
			chunk_id TEXT NOT NULL,
			tag TEXT NOT NULL,
			template INTEGER NOT NULL,
			x REAL NOT NULL, y REAL NOT NULL, z REAL NOT NULL,
			w REAL NOT NULL, h REAL NOT NULL, d REAL NOT NULL,
			rot_y INTEGER NOT NULL,
			rot_x INTEGER NOT NULL,
			rot_z INTEGER NOT NULL,
			PRIMARY KEY (run_id, seq)
		);`,
		`CREATE TABLE IF NOT EXISTS anchors (
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			chunk_seq INTEGER NOT NULL,
			name TEXT NOT NULL,
			tag TEXT NOT NULL,
			x REAL NOT NULL, y REAL NOT NULL, z REAL NOT NULL
		);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// SaveRun archives a run in a single transaction.
func (a *Archive) SaveRun(ctx context.Context, run Run) error {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, created_at, seed, library_hash, dim, width, height, depth, chunk_count)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.CreatedAt.Format(time.RFC3339), run.Seed, run.LibraryHash, run.Dim,
		run.Size.W, run.Size.H, run.Size.D, len(run.Chunks))
	if err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}

	for seq, c := range run.Chunks {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO chunks (run_id, seq, chunk_id, tag, template, x, y, z, w, h, d, rot_y, rot_x, rot_z)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID, seq, c.ID, c.Tag, c.Template,
			c.Position.X, c.Position.Y, c.Position.Z,
			c.Size.W, c.Size.H, c.Size.D,
			c.RotY, c.RotX, c.RotZ)
		if err != nil {
			return fmt.Errorf("insert chunk %s: %w", c.ID, err)
		}

		for _, an := range c.Anchors {
			_, err = tx.ExecContext(ctx,
				`INSERT INTO anchors (run_id, chunk_seq, name, tag, x, y, z)
				 VALUES (?, ?, ?, ?, ?, ?, ?)`,
				run.ID, seq, an.Name, an.Tag,
				an.Position.X, an.Position.Y, an.Position.Z)
			if err != nil {
				return fmt.Errorf("insert anchor %s: %w", an.Name, err)
			}
		}
	}

	return tx.Commit()
}

// LoadRun reads an archived run back, chunks in placement order.
func (a *Archive) LoadRun(ctx context.Context, id string) (Run, error) {
	var run Run
	var createdAt string

	err := a.db.QueryRowContext(ctx,
		`SELECT id, created_at, seed, library_hash, dim, width, height, depth FROM runs WHERE id = ?`, id).
		Scan(&run.ID, &createdAt, &run.Seed, &run.LibraryHash, &run.Dim,
			&run.Size.W, &run.Size.H, &run.Size.D)
	if err == sql.ErrNoRows {
		return run, fmt.Errorf("%w: run %s", model.ErrNotFound, id)
	}
	if err != nil {
		return run, err
	}
	run.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return run, fmt.Errorf("run %s has malformed timestamp: %w", id, err)
	}

	rows, err := a.db.QueryContext(ctx,
		`SELECT seq, chunk_id, tag, template, x, y, z, w, h, d, rot_y, rot_x, rot_z
		 FROM chunks WHERE run_id = ? ORDER BY seq`, id)
	if err != nil {
		return run, err
	}
	defer rows.Close()

	seqIndex := map[int]int{}
	for rows.Next() {
		var seq int
		var c RunChunk
		err = rows.Scan(&seq, &c.ID, &c.Tag, &c.Template,
			&c.Position.X, &c.Position.Y, &c.Position.Z,
			&c.Size.W, &c.Size.H, &c.Size.D,
			&c.RotY, &c.RotX, &c.RotZ)
		if err != nil {
			return run, err
		}
		seqIndex[seq] = len(run.Chunks)
		run.Chunks = append(run.Chunks, c)
	}
	if err := rows.Err(); err != nil {
		return run, err
	}

	anchorRows, err := a.db.QueryContext(ctx,
		`SELECT chunk_seq, name, tag, x, y, z FROM anchors WHERE run_id = ? ORDER BY rowid`, id)
	if err != nil {
		return run, err
	}
	defer anchorRows.Close()

	for anchorRows.Next() {
		var seq int
		var an RunAnchor
		if err := anchorRows.Scan(&seq, &an.Name, &an.Tag,
			&an.Position.X, &an.Position.Y, &an.Position.Z); err != nil {
			return run, err
		}
		idx, ok := seqIndex[seq]
		if !ok {
			return run, fmt.Errorf("run %s has anchor for unknown chunk %d", id, seq)
		}
		run.Chunks[idx].Anchors = append(run.Chunks[idx].Anchors, an)
	}
	return run, anchorRows.Err()
}

// ListRuns returns summaries of all archived runs, newest first.
func (a *Archive) ListRuns(ctx context.Context) ([]RunSummary, error) {
	rows, err := a.db.QueryContext(ctx,
		`SELECT r.id, r.created_at, r.seed, r.library_hash, r.dim, r.chunk_count,
		        (SELECT COUNT(DISTINCT template) FROM chunks c WHERE c.run_id = r.id)
		 FROM runs r ORDER BY r.created_at DESC, r.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []RunSummary
	for rows.Next() {
		var s RunSummary
		var createdAt string
		if err := rows.Scan(&s.ID, &createdAt, &s.Seed, &s.LibraryHash, &s.Dim, &s.Chunks, &s.ChunkKind); err != nil {
			return nil, err
		}
		s.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("run %s has malformed timestamp: %w", s.ID, err)
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

// DeleteRun removes an archived run and its chunks and anchors.
func (a *Archive) DeleteRun(ctx context.Context, id string) error {
	res, err := a.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: run %s", model.ErrNotFound, id)
	}
	return nil
}
