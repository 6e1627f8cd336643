package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/assayimport/internal/core"
)

const findTreatmentByStableID = `
SELECT id, stable_id, name, description, reference_url
FROM treatment
WHERE stable_id = $1
`

func (q *Queries) FindTreatmentByStableID(ctx context.Context, stableID string) (*core.Treatment, error) {
	var t core.Treatment
	err := q.db.QueryRow(ctx, findTreatmentByStableID, stableID).Scan(
		&t.ID, &t.StableID, &t.Name, &t.Description, &t.ReferenceURL,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// insertTreatment creates the TREATMENT genetic entity when it is missing and
// the treatment row in one statement.
const insertTreatment = `
WITH entity AS (
    INSERT INTO genetic_entity (entity_type, stable_id)
    VALUES ($1, $2)
    ON CONFLICT (stable_id) DO UPDATE SET stable_id = EXCLUDED.stable_id
    RETURNING id
)
INSERT INTO treatment (genetic_entity_id, stable_id, name, description, reference_url)
SELECT id, $2, $3, $4, $5 FROM entity
RETURNING id
`

func (q *Queries) InsertTreatment(ctx context.Context, t *core.Treatment) error {
	return q.db.QueryRow(ctx, insertTreatment,
		string(core.EntityTreatment), t.StableID, t.Name, t.Description, t.ReferenceURL,
	).Scan(&t.ID)
}

const updateTreatment = `
UPDATE treatment
SET name = $2, description = $3, reference_url = $4
WHERE stable_id = $1
`

func (q *Queries) UpdateTreatment(ctx context.Context, t *core.Treatment) error {
	tag, err := q.db.Exec(ctx, updateTreatment, t.StableID, t.Name, t.Description, t.ReferenceURL)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("treatment %q not found", t.StableID)
	}
	return nil
}

const findGeneticEntityByStableID = `
SELECT id, entity_type, stable_id
FROM genetic_entity
WHERE stable_id = $1
`

func (q *Queries) FindGeneticEntityByStableID(ctx context.Context, stableID string) (*core.GeneticEntity, error) {
	var e core.GeneticEntity
	var entityType string
	err := q.db.QueryRow(ctx, findGeneticEntityByStableID, stableID).Scan(&e.ID, &entityType, &e.StableID)
	if errors.Is(err, pgx.ErrNoRows) {
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
VALUES ($1, $2)
RETURNING id
`

func (q *Queries) InsertGeneticEntity(ctx context.Context, e *core.GeneticEntity) error {
	return q.db.QueryRow(ctx, insertGeneticEntity, string(e.EntityType), e.StableID).Scan(&e.ID)
}

const deleteProperties = `
DELETE FROM generic_entity_properties
WHERE genetic_entity_id = (SELECT id FROM genetic_entity WHERE stable_id = $1)
`

func (q *Queries) DeleteProperties(ctx context.Context, stableID string) error {
	_, err := q.db.Exec(ctx, deleteProperties, stableID)
	return err
}

const insertProperty = `
INSERT INTO generic_entity_properties (genetic_entity_id, name, value)
SELECT id, $2, $3 FROM genetic_entity WHERE stable_id = $1
`

func (q *Queries) InsertProperty(ctx context.Context, stableID, key, value string) error {
	tag, err := q.db.Exec(ctx, insertProperty, stableID, key, value)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("violates foreign key constraint: no genetic entity %q", stableID)
	}
	return nil
}

const listProperties = `
SELECT p.name, p.value
FROM generic_entity_properties p
JOIN genetic_entity e ON e.id = p.genetic_entity_id
WHERE e.stable_id = $1
`

func (q *Queries) Properties(ctx context.Context, stableID string) (core.PropertyMap, error) {
	rows, err := q.db.Query(ctx, listProperties, stableID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

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

const insertImportRun = `
INSERT INTO import_run (
    id, source, entity_type, column_names, update_info,
    records, created, updated, failed, started_at, finished_at, error
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
`

func (q *Queries) InsertImportRun(ctx context.Context, run core.ImportRun) error {
	id, err := uuid.Parse(run.ID)
	if err != nil {
		return fmt.Errorf("run id: %w", err)
	}
	columns := run.ColumnNames
	if columns == nil {
		columns = []string{}
	}
	_, err = q.db.Exec(ctx, insertImportRun,
		pgtype.UUID{Bytes: id, Valid: true},
		run.Source,
		string(run.EntityType),
		columns,
		run.UpdateInfo,
		run.Records,
		run.Created,
		run.Updated,
		run.Failed,
		pgtype.Timestamptz{Time: run.StartedAt, Valid: true},
		pgtype.Timestamptz{Time: run.FinishedAt, Valid: true},
		run.Error,
	)
	return err
}

const listImportRuns = `
SELECT id, source, entity_type, column_names, update_info,
       records, created, updated, failed, started_at, finished_at, error
FROM import_run
ORDER BY started_at DESC
LIMIT $1
`

func (q *Queries) ListImportRuns(ctx context.Context, limit int) ([]core.ImportRun, error) {
	rows, err := q.db.Query(ctx, listImportRuns, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []core.ImportRun
	for rows.Next() {
		var (
			run        core.ImportRun
			id         pgtype.UUID
			entityType string
			started    pgtype.Timestamptz
			finished   pgtype.Timestamptz
		)
		if err := rows.Scan(
			&id, &run.Source, &entityType, &run.ColumnNames, &run.UpdateInfo,
			&run.Records, &run.Created, &run.Updated, &run.Failed,
			&started, &finished, &run.Error,
		); err != nil {
			return nil, err
		}
		run.ID = uuid.UUID(id.Bytes).String()
		run.EntityType = core.EntityType(entityType)
		run.StartedAt = timeOf(started)
		run.FinishedAt = timeOf(finished)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func timeOf(ts pgtype.Timestamptz) time.Time {
	if !ts.Valid {
		return time.Time{}
	}
	return ts.Time
}
