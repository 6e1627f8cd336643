// Package storetest holds the behavior checks every core.Store must pass.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/assayimport/internal/core"
)

// Run exercises s. The store must start empty.
func Run(t *testing.T, newStore func(t *testing.T) core.Store) {
	t.Run("treatment insert and update", func(t *testing.T) { testTreatment(t, newStore(t)) })
	t.Run("genetic entity and properties", func(t *testing.T) { testProperties(t, newStore(t)) })
	t.Run("rollback discards writes", func(t *testing.T) { testRollback(t, newStore(t)) })
	t.Run("property requires entity", func(t *testing.T) { testOrphanProperty(t, newStore(t)) })
	t.Run("run history", func(t *testing.T) { testRuns(t, newStore(t)) })
}

func testTreatment(t *testing.T, s core.Store) {
	ctx := context.Background()

	err := s.InTx(ctx, func(tx core.Tx) error {
		got, err := tx.FindTreatmentByStableID(ctx, "T1")
		require.NoError(t, err)
		assert.Nil(t, got)

		return tx.InsertTreatment(ctx, &core.Treatment{
			StableID: "T1", Name: "A", Description: "B", ReferenceURL: "C",
		})
	})
	require.NoError(t, err)

	err = s.InTx(ctx, func(tx core.Tx) error {
		got, err := tx.FindTreatmentByStableID(ctx, "T1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "A", got.Name)
		assert.NotZero(t, got.ID)

		entity, err := tx.FindGeneticEntityByStableID(ctx, "T1")
		require.NoError(t, err)
		require.NotNil(t, entity)
		assert.Equal(t, core.EntityTreatment, entity.EntityType)

		got.Name, got.Description, got.ReferenceURL = "X", "Y", "Z"
		return tx.UpdateTreatment(ctx, got)
	})
	require.NoError(t, err)

	err = s.InTx(ctx, func(tx core.Tx) error {
		got, err := tx.FindTreatmentByStableID(ctx, "T1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, core.Treatment{ID: got.ID, StableID: "T1", Name: "X", Description: "Y", ReferenceURL: "Z"}, *got)
		return nil
	})
	require.NoError(t, err)
}

func testProperties(t *testing.T, s core.Store) {
	ctx := context.Background()

	err := s.InTx(ctx, func(tx core.Tx) error {
		e := &core.GeneticEntity{EntityType: core.EntityGenericAssay, StableID: "A"}
		require.NoError(t, tx.InsertGeneticEntity(ctx, e))
		assert.NotZero(t, e.ID)
		require.NoError(t, tx.InsertProperty(ctx, "A", "foo", "1"))
		return tx.InsertProperty(ctx, "A", "bar", "2")
	})
	require.NoError(t, err)

	err = s.InTx(ctx, func(tx core.Tx) error {
		props, err := tx.Properties(ctx, "A")
		require.NoError(t, err)
		assert.Equal(t, core.PropertyMap{"foo": "1", "bar": "2"}, props)

		require.NoError(t, tx.DeleteProperties(ctx, "A"))
		require.NoError(t, tx.InsertProperty(ctx, "A", "foo", "3"))
		return nil
	})
	require.NoError(t, err)

	err = s.InTx(ctx, func(tx core.Tx) error {
		props, err := tx.Properties(ctx, "A")
		require.NoError(t, err)
		assert.Equal(t, core.PropertyMap{"foo": "3"}, props)

		missing, err := tx.FindGeneticEntityByStableID(ctx, "nope")
		require.NoError(t, err)
		assert.Nil(t, missing)
		return nil
	})
	require.NoError(t, err)
}

func testRollback(t *testing.T, s core.Store) {
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.InTx(ctx, func(tx core.Tx) error {
		require.NoError(t, tx.InsertGeneticEntity(ctx, &core.GeneticEntity{EntityType: core.EntityGenericAssay, StableID: "R"}))
		require.NoError(t, tx.InsertProperty(ctx, "R", "k", "v"))
		return boom
	})
	require.ErrorIs(t, err, boom)

	err = s.InTx(ctx, func(tx core.Tx) error {
		e, err := tx.FindGeneticEntityByStableID(ctx, "R")
		require.NoError(t, err)
		assert.Nil(t, e)
		props, err := tx.Properties(ctx, "R")
		require.NoError(t, err)
		assert.Empty(t, props)
		return nil
	})
	require.NoError(t, err)
}

func testOrphanProperty(t *testing.T, s core.Store) {
	ctx := context.Background()
	err := s.InTx(ctx, func(tx core.Tx) error {
		return tx.InsertProperty(ctx, "ghost", "k", "v")
	})
	assert.Error(t, err)
}

func testRuns(t *testing.T, s core.Store) {
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	first := core.ImportRun{
		ID:         uuid.NewString(),
		Source:     "a.tsv",
		EntityType: core.EntityTreatment,
		Records:    2,
		Created:    2,
		StartedAt:  base,
		FinishedAt: base.Add(time.Second),
	}
	second := core.ImportRun{
		ID:          uuid.NewString(),
		Source:      "b.tsv",
		EntityType:  core.EntityGenericAssay,
		ColumnNames: []string{"foo", "bar"},
		UpdateInfo:  true,
		Records:     3,
		Updated:     2,
		Failed:      1,
		StartedAt:   base.Add(time.Minute),
		FinishedAt:  base.Add(time.Minute + 500*time.Millisecond),
	}
	require.NoError(t, s.RecordRun(ctx, first))
	require.NoError(t, s.RecordRun(ctx, second))

	runs, err := s.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, second.ID, runs[0].ID, "newest first")
	assert.Equal(t, []string{"foo", "bar"}, runs[0].ColumnNames)
	assert.True(t, runs[0].UpdateInfo)
	assert.Equal(t, 1, runs[0].Failed)
	assert.True(t, second.StartedAt.Equal(runs[0].StartedAt))
	assert.Equal(t, first.ID, runs[1].ID)
	assert.Empty(t, runs[1].ColumnNames)

	limited, err := s.ListRuns(ctx, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, second.ID, limited[0].ID)
}
