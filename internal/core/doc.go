// Package core provides the business logic for tab-separated entity imports.
//
// This package contains all domain logic independent of any store, transport
// or UI. It is used by the CLI, the HTTP server and tests without
// modification; persistence is reached only through the [Store] interface.
//
// # Architecture
//
// The package is organized around a few key concepts:
//
//   - Streaming: [RecordStream] reads one line at a time, skipping a UTF-8
//     BOM, blank lines and carriage returns.
//   - Header resolution: [ResolveHeader] indexes column names
//     case-insensitively; entity_stable_id is required.
//   - Reconcilers: one [Reconciler] is selected per run from the entity type.
//     TREATMENT uses [TreatmentReconciler]; every other type uses
//     [GenericAssayReconciler].
//   - Importer: [Importer.Run] walks the records, one store transaction each,
//     and returns an [ImportResult].
//   - Reporting: progress is pushed to an injected [Reporter]; [LogReporter]
//     and [Metrics] are the stock implementations.
//
// # Import Flow
//
//  1. The caller validates arguments (entity type is required) before any file access
//  2. The header is read and resolved; a missing entity_stable_id aborts the run
//  3. Each record is reconciled inside [Store.InTx]
//  4. A malformed record aborts the run; earlier records stay committed
//  5. Any other record failure is collected and the run continues
//  6. The run is appended to the import history and reported as finished
//
// # Treatment Records
//
// Treatments are created or overwritten by stable id. A stable id already
// held by a non-treatment genetic entity is a failed record. The name,
// description and url columns (optionally prefixed) are used only when all
// three are in the header; otherwise each takes the stable id.
//
// # Generic Assay Records
//
// Missing entities are created with the run's entity type. On every import the
// entity's property set is replaced by the requested columns that exist in the
// header; requested columns absent from the header are skipped silently. A
// failed property write rolls back the whole entity.
//
// # Error Handling
//
// Technical errors are mapped to operator-facing messages using [MapError].
// Each error category has a unique code for support reference:
//
//   - USE001: invalid arguments
//   - HDR001-HDR002: header faults (missing column, empty file)
//   - REC001-REC002: malformed record, entity type mismatch
//   - PROP001: property write rolled back
//   - DB001-DB007: database errors (duplicates, constraints, connections)
//   - SRC001-SRC003: input source errors
//   - IMP001-IMP002: import admission and partial runs
//
// # Concurrency
//
// A run is strictly sequential. Exclusive store access during a run is an
// operational precondition; the HTTP server enforces it across requests with
// an [ImportLimiter].
package core
