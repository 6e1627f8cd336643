// Package memory provides an in-memory implementation of core.Store used for
// tests and dry runs.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/JonMunkholm/assayimport/internal/core"
)

var _ core.Store = (*Store)(nil)

// Faults injects errors into store operations. Each hook runs before the
// operation it names; a non-nil return fails the operation.
type Faults struct {
	InsertTreatment     func(stableID string) error
	UpdateTreatment     func(stableID string) error
	InsertGeneticEntity func(stableID string) error
	InsertProperty      func(stableID, key string) error
	RecordRun           func(run core.ImportRun) error
}

type memoryState struct {
	nextID     int64
	entities   map[string]core.GeneticEntity
	treatments map[string]core.Treatment
	properties map[string]core.PropertyMap
}

func newMemoryState() memoryState {
	return memoryState{
		entities:   make(map[string]core.GeneticEntity),
		treatments: make(map[string]core.Treatment),
		properties: make(map[string]core.PropertyMap),
	}
}

func (s memoryState) clone() memoryState {
	out := memoryState{
		nextID:     s.nextID,
		entities:   make(map[string]core.GeneticEntity, len(s.entities)),
		treatments: make(map[string]core.Treatment, len(s.treatments)),
		properties: make(map[string]core.PropertyMap, len(s.properties)),
	}
	for k, v := range s.entities {
		out.entities[k] = v
	}
	for k, v := range s.treatments {
		out.treatments[k] = v
	}
	for k, v := range s.properties {
		out.properties[k] = cloneProperties(v)
	}
	return out
}

func cloneProperties(m core.PropertyMap) core.PropertyMap {
	out := make(core.PropertyMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Store is a transactional in-memory store. Each transaction works on a copy
// of the state that replaces the live state on commit.
type Store struct {
	mu     sync.RWMutex
	state  memoryState
	runs   []core.ImportRun
	faults Faults
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{state: newMemoryState()}
}

// SetFaults replaces the fault hooks.
func (s *Store) SetFaults(f Faults) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults = f
}

// InTx implements core.Store.
func (s *Store) InTx(ctx context.Context, fn func(core.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{state: s.state.clone(), faults: s.faults}
	if err := fn(tx); err != nil {
		return err
	}
	s.state = tx.state
	return nil
}

// RecordRun implements core.Store.
func (s *Store) RecordRun(_ context.Context, run core.ImportRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.faults.RecordRun != nil {
		if err := s.faults.RecordRun(run); err != nil {
			return err
		}
	}
	s.runs = append(s.runs, run)
	return nil
}

// ListRuns implements core.Store.
func (s *Store) ListRuns(_ context.Context, limit int) ([]core.ImportRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.ImportRun, 0, len(s.runs))
	for i := len(s.runs) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, s.runs[i])
	}
	return out, nil
}

// Close implements core.Store.
func (s *Store) Close() error { return nil }

// Treatment returns the committed treatment with stableID.
func (s *Store) Treatment(stableID string) (core.Treatment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.state.treatments[stableID]
	return t, ok
}

// GeneticEntity returns the committed genetic entity with stableID.
func (s *Store) GeneticEntity(stableID string) (core.GeneticEntity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.state.entities[stableID]
	return e, ok
}

// PropertiesOf returns a copy of the committed properties of stableID.
func (s *Store) PropertiesOf(stableID string) core.PropertyMap {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneProperties(s.state.properties[stableID])
}

// Counts returns the number of committed treatments and genetic entities.
func (s *Store) Counts() (treatments, entities int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.state.treatments), len(s.state.entities)
}

// StableIDs returns the stable ids of every committed genetic entity, sorted.
func (s *Store) StableIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.state.entities))
	for id := range s.state.entities {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

type transaction struct {
	state  memoryState
	faults Faults
}

func (tx *transaction) FindTreatmentByStableID(_ context.Context, stableID string) (*core.Treatment, error) {
	t, ok := tx.state.treatments[stableID]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

// InsertTreatment also registers the TREATMENT genetic entity, matching the
// relational stores.
func (tx *transaction) InsertTreatment(_ context.Context, t *core.Treatment) error {
	if tx.faults.InsertTreatment != nil {
		if err := tx.faults.InsertTreatment(t.StableID); err != nil {
			return err
		}
	}
	if _, exists := tx.state.treatments[t.StableID]; exists {
		return fmt.Errorf("duplicate key value: treatment %q", t.StableID)
	}
	entity, ok := tx.state.entities[t.StableID]
	if !ok {
		entity = core.GeneticEntity{EntityType: core.EntityTreatment, StableID: t.StableID}
		if err := tx.insertEntity(&entity); err != nil {
			return err
		}
	}
	tx.state.nextID++
	t.ID = tx.state.nextID
	tx.state.treatments[t.StableID] = *t
	return nil
}

func (tx *transaction) UpdateTreatment(_ context.Context, t *core.Treatment) error {
	if tx.faults.UpdateTreatment != nil {
		if err := tx.faults.UpdateTreatment(t.StableID); err != nil {
			return err
		}
	}
	existing, ok := tx.state.treatments[t.StableID]
	if !ok {
		return fmt.Errorf("update treatment %q: not found", t.StableID)
	}
	existing.Name = t.Name
	existing.Description = t.Description
	existing.ReferenceURL = t.ReferenceURL
	tx.state.treatments[t.StableID] = existing
	return nil
}

func (tx *transaction) FindGeneticEntityByStableID(_ context.Context, stableID string) (*core.GeneticEntity, error) {
	e, ok := tx.state.entities[stableID]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (tx *transaction) InsertGeneticEntity(_ context.Context, e *core.GeneticEntity) error {
	if tx.faults.InsertGeneticEntity != nil {
		if err := tx.faults.InsertGeneticEntity(e.StableID); err != nil {
			return err
		}
	}
	return tx.insertEntity(e)
}

func (tx *transaction) insertEntity(e *core.GeneticEntity) error {
	if _, exists := tx.state.entities[e.StableID]; exists {
		return fmt.Errorf("duplicate key value: genetic entity %q", e.StableID)
	}
	tx.state.nextID++
	e.ID = tx.state.nextID
	tx.state.entities[e.StableID] = *e
	return nil
}

func (tx *transaction) DeleteProperties(_ context.Context, stableID string) error {
	delete(tx.state.properties, stableID)
	return nil
}

func (tx *transaction) InsertProperty(_ context.Context, stableID, key, value string) error {
	if tx.faults.InsertProperty != nil {
		if err := tx.faults.InsertProperty(stableID, key); err != nil {
			return err
		}
	}
	if _, ok := tx.state.entities[stableID]; !ok {
		return fmt.Errorf("insert property %q: violates foreign key constraint: no genetic entity %q", key, stableID)
	}
	props, ok := tx.state.properties[stableID]
	if !ok {
		props = make(core.PropertyMap)
		tx.state.properties[stableID] = props
	}
	if _, exists := props[key]; exists {
		return fmt.Errorf("duplicate key value: property %q of %q", key, stableID)
	}
	props[key] = value
	return nil
}

func (tx *transaction) Properties(_ context.Context, stableID string) (core.PropertyMap, error) {
	return cloneProperties(tx.state.properties[stableID]), nil
}
