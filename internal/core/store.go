package core

import "context"

// Store is the persistence boundary consumed by the importer.
//
// The importer opens one transaction per record with InTx and performs every
// lookup and write for that record on the Tx it receives. Implementations must
// provide read-your-writes between consecutive transactions; they do not need
// to lock against other writers, exclusive access during a run is an
// operational precondition.
type Store interface {
	// InTx runs fn in a transaction, committing when fn returns nil and
	// rolling back otherwise.
	InTx(ctx context.Context, fn func(Tx) error) error

	// RecordRun appends an entry to the import run history.
	RecordRun(ctx context.Context, run ImportRun) error

	// ListRuns returns the most recent runs, newest first.
	ListRuns(ctx context.Context, limit int) ([]ImportRun, error)

	// Close releases the store's resources.
	Close() error
}

// Tx is the set of entity operations available inside a transaction.
// Find methods return (nil, nil) when no row matches.
type Tx interface {
	FindTreatmentByStableID(ctx context.Context, stableID string) (*Treatment, error)
	InsertTreatment(ctx context.Context, t *Treatment) error
	UpdateTreatment(ctx context.Context, t *Treatment) error

	FindGeneticEntityByStableID(ctx context.Context, stableID string) (*GeneticEntity, error)
	InsertGeneticEntity(ctx context.Context, e *GeneticEntity) error

	DeleteProperties(ctx context.Context, stableID string) error
	InsertProperty(ctx context.Context, stableID, key, value string) error
	Properties(ctx context.Context, stableID string) (PropertyMap, error)
}
