// Package sqlite implements core.Store on an embedded SQLite database using
// the pure Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"github.com/JonMunkholm/assayimport/internal/core"
)

var (
	_ core.Store = (*Store)(nil)
	_ core.Tx    = (*queries)(nil)
)

//go:embed schema.sql
var schema string

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// timeLayout is fixed width so that stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store is a core.Store backed by a single SQLite file.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		path = "assayimport.db"
	}
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection: every in-memory connection is its own database, and
	// SQLite serializes writers anyway.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Migrate creates the tables the importer needs. It is safe to run repeatedly.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// InTx implements core.Store.
func (s *Store) InTx(ctx context.Context, fn func(core.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(&queries{db: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

const insertImportRun = `
INSERT INTO import_run (
    id, source, entity_type, column_names, update_info,
    records, created, updated, failed, started_at, finished_at, error
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

// RecordRun implements core.Store.
func (s *Store) RecordRun(ctx context.Context, run core.ImportRun) error {
	columns, err := json.Marshal(nonNil(run.ColumnNames))
	if err != nil {
		return fmt.Errorf("encode column names: %w", err)
	}
	_, err = s.db.ExecContext(ctx, insertImportRun,
		run.ID, run.Source, string(run.EntityType), string(columns), run.UpdateInfo,
		run.Records, run.Created, run.Updated, run.Failed,
		run.StartedAt.UTC().Format(timeLayout),
		run.FinishedAt.UTC().Format(timeLayout),
		run.Error,
	)
	if err != nil {
		return fmt.Errorf("record import run: %w", err)
	}
	return nil
}

const listImportRuns = `
SELECT id, source, entity_type, column_names, update_info,
       records, created, updated, failed, started_at, finished_at, error
FROM import_run
ORDER BY started_at DESC, rowid DESC
LIMIT ?
`

// ListRuns implements core.Store.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]core.ImportRun, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, listImportRuns, limit)
	if err != nil {
		return nil, fmt.Errorf("list import runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []core.ImportRun
	for rows.Next() {
		var (
			run               core.ImportRun
			entityType        string
			columns           string
			started, finished string
		)
		if err := rows.Scan(
			&run.ID, &run.Source, &entityType, &columns, &run.UpdateInfo,
			&run.Records, &run.Created, &run.Updated, &run.Failed,
			&started, &finished, &run.Error,
		); err != nil {
			return nil, fmt.Errorf("scan import run: %w", err)
		}
		run.EntityType = core.EntityType(entityType)
		if err := json.Unmarshal([]byte(columns), &run.ColumnNames); err != nil {
			return nil, fmt.Errorf("decode column names: %w", err)
		}
		if run.StartedAt, err = time.Parse(timeLayout, started); err != nil {
			return nil, fmt.Errorf("parse started_at: %w", err)
		}
		if run.FinishedAt, err = time.Parse(timeLayout, finished); err != nil {
			return nil, fmt.Errorf("parse finished_at: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close implements core.Store.
func (s *Store) Close() error {
	return s.db.Close()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// queries runs the entity statements on one transaction.
type queries struct {
	db *sql.Tx
}

const findTreatmentByStableID = `
SELECT id, stable_id, name, description, reference_url
FROM treatment
WHERE stable_id = ?
`

func (q *queries) FindTreatmentByStableID(ctx context.Context, stableID string) (*core.Treatment, error) {
	var t core.Treatment
	err := q.db.QueryRowContext(ctx, findTreatmentByStableID, stableID).Scan(
		&t.ID, &t.StableID, &t.Name, &t.Description, &t.ReferenceURL,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

const ensureTreatmentEntity = `
INSERT INTO genetic_entity (entity_type, stable_id)
VALUES (?, ?)
ON CONFLICT (stable_id) DO NOTHING
`

const insertTreatment = `
INSERT INTO treatment (genetic_entity_id, stable_id, name, description, reference_url)
SELECT id, ?, ?, ?, ? FROM genetic_entity WHERE stable_id = ?
`

func (q *queries) InsertTreatment(ctx context.Context, t *core.Treatment) error {
	if _, err := q.db.ExecContext(ctx, ensureTreatmentEntity, string(core.EntityTreatment), t.StableID); err != nil {
		return fmt.Errorf("insert treatment entity: %w", err)
	}
	res, err := q.db.ExecContext(ctx, insertTreatment, t.StableID, t.Name, t.Description, t.ReferenceURL, t.StableID)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	t.ID = id
	return nil
}

const updateTreatment = `
UPDATE treatment
SET name = ?, description = ?, reference_url = ?
WHERE stable_id = ?
`

func (q *queries) UpdateTreatment(ctx context.Context, t *core.Treatment) error {
	res, err := q.db.ExecContext(ctx, updateTreatment, t.Name, t.Description, t.ReferenceURL, t.StableID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("treatment %q not found", t.StableID)
	}
	return nil
}

const findGeneticEntityByStableID = `
SELECT id, entity_type, stable_id
FROM genetic_entity
WHERE stable_id = ?
`

func (q *queries) FindGeneticEntityByStableID(ctx context.Context, stableID string) (*core.GeneticEntity, error) {
	var e core.GeneticEntity
	var entityType string
	err := q.db.QueryRowContext(ctx, findGeneticEntityByStableID, stableID).Scan(&e.ID, &entityType, &e.StableID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	e.EntityType = core.EntityType(entityType)
	return &e, nil
}

const insertGeneticEntity = `
INSERT INTO genetic_entity (entity_type, stable_id)
VALUES (?, ?)
`

func (q *queries) InsertGeneticEntity(ctx context.Context, e *core.GeneticEntity) error {
	res, err := q.db.ExecContext(ctx, insertGeneticEntity, string(e.EntityType), e.StableID)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	e.ID = id
	return nil
}

const deleteProperties = `
DELETE FROM generic_entity_properties
WHERE genetic_entity_id = (SELECT id FROM genetic_entity WHERE stable_id = ?)
`

func (q *queries) DeleteProperties(ctx context.Context, stableID string) error {
	_, err := q.db.ExecContext(ctx, deleteProperties, stableID)
	return err
}

const insertProperty = `
INSERT INTO generic_entity_properties (genetic_entity_id, name, value)
SELECT id, ?, ? FROM genetic_entity WHERE stable_id = ?
`

func (q *queries) InsertProperty(ctx context.Context, stableID, key, value string) error {
	res, err := q.db.ExecContext(ctx, insertProperty, key, value, stableID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("violates foreign key constraint: no genetic entity %q", stableID)
	}
	return nil
}

const listProperties = `
SELECT p.name, p.value
FROM generic_entity_properties p
JOIN genetic_entity e ON e.id = p.genetic_entity_id
WHERE e.stable_id = ?
`

func (q *queries) Properties(ctx context.Context, stableID string) (core.PropertyMap, error) {
	rows, err := q.db.QueryContext(ctx, listProperties, stableID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	props := make(core.PropertyMap)
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, err
		}
		props[name] = value
	}
	return props, rows.Err()
}

// PathFromDSN strips the sqlite:// or sqlite: scheme from dsn.
func PathFromDSN(dsn string) string {
	for _, prefix := range []string{"sqlite://", "sqlite:"} {
		if strings.HasPrefix(dsn, prefix) {
			return strings.TrimPrefix(dsn, prefix)
		}
	}
	return dsn
}
