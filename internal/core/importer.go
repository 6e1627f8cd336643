package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// ImporterConfig holds the settings of an Importer.
type ImporterConfig struct {
	// MetaFieldPrefix is prepended to the optional treatment columns
	// (name, description, url).
	MetaFieldPrefix string

	// Reporter receives progress events. Nil disables reporting.
	Reporter Reporter

	// Logger returns the logger for a run context. Nil uses slog.Default.
	Logger func(ctx context.Context) *slog.Logger
}

// Importer reconciles tab-separated files against a Store.
//
// A run is strictly sequential: one line is read, its transaction commits or
// rolls back, then the next line is read.
type Importer struct {
	store Store
	cfg   ImporterConfig
	newID func() string
	now   func() time.Time
}

// NewImporter creates an importer bound to store.
func NewImporter(store Store, cfg ImporterConfig) *Importer {
	if cfg.Reporter == nil {
		cfg.Reporter = Reporters(nil)
	}
	if cfg.Logger == nil {
		cfg.Logger = func(context.Context) *slog.Logger { return slog.Default() }
	}
	return &Importer{
		store: store,
		cfg:   cfg,
		newID: uuid.NewString,
		now:   time.Now,
	}
}

// Store returns the store the importer writes to.
func (im *Importer) Store() Store { return im.store }

// Run imports every record of r.
//
// Header faults and malformed records abort the run and are returned as the
// error; records committed before the fault stay committed. Any other
// per-record failure is collected in the result and the run continues; the
// run then ends with an error wrapping ErrRecordsFailed.
//
// The returned result is non-nil whenever the run got past argument checks.
func (im *Importer) Run(ctx context.Context, r io.Reader, opts ImportOptions) (*ImportResult, error) {
	if opts.EntityType == "" {
		return nil, fmt.Errorf("%w: entity type is required", ErrUsage)
	}

	started := im.now()
	result := &ImportResult{
		RunID:      im.newID(),
		Source:     opts.Source,
		EntityType: opts.EntityType,
	}
	ctx = ContextWithRunID(ctx, result.RunID)
	ctx = ContextWithSource(ctx, opts.Source)
	mode := opts.EntityType.Mode()

	im.cfg.Reporter.Report(ctx, Event{Kind: EventRunStarted, Mode: mode, Source: opts.Source})

	err := im.process(ctx, r, opts, result)
	if err != nil {
		result.Error = err.Error()
	}
	im.finish(ctx, opts, result, started)

	if err != nil {
		return result, err
	}
	if n := len(result.Failed); n > 0 {
		return result, fmt.Errorf("%w: %d of %d records", ErrRecordsFailed, n, result.Records)
	}
	return result, nil
}

// process reads the header, selects the reconciler and walks the records.
func (im *Importer) process(ctx context.Context, r io.Reader, opts ImportOptions, result *ImportResult) error {
	mode := opts.EntityType.Mode()
	counter := NewCountingReader(r, opts.Size)
	stream := NewRecordStream(counter)

	header, err := stream.Header()
	if err != nil {
		return err
	}
	idx, err := ResolveHeader(header)
	if err != nil {
		return err
	}

	reconciler := NewReconciler(im.store, idx, opts, im.cfg.MetaFieldPrefix)

	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("import cancelled after %d records: %w", result.Records, err)
		}

		rec, err := stream.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		result.Records++

		out, err := reconciler.Reconcile(ctx, rec)
		if err != nil {
			if IsFatal(err) {
				return err
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return fmt.Errorf("import cancelled at line %d: %w", rec.Line, ctxErr)
			}
			result.Failed = append(result.Failed, FailedRecord{
				Line:     rec.Line,
				StableID: out.StableID,
				Reason:   err.Error(),
				Code:     MapError(err).Code,
			})
			im.cfg.Reporter.Report(ctx, Event{
				Kind:     EventFailed,
				Mode:     mode,
				StableID: out.StableID,
				Line:     rec.Line,
				Progress: counter.Progress(),
				Err:      &RecordError{Line: rec.Line, StableID: out.StableID, Err: err},
			})
			continue
		}

		ev := Event{
			Mode:       mode,
			StableID:   out.StableID,
			Line:       rec.Line,
			Properties: out.Properties,
			Progress:   counter.Progress(),
		}
		switch out.Action {
		case ActionCreated:
			result.Created++
			ev.Kind = EventAdding
		case ActionUpdated:
			result.Updated++
			ev.Kind = EventUpdating
		}
		im.cfg.Reporter.Report(ctx, ev)
	}
}

// finish stamps the duration, records the run history and reports the end
// of the run. A history write failure is logged but does not fail the run;
// the records are already committed.
func (im *Importer) finish(ctx context.Context, opts ImportOptions, result *ImportResult, started time.Time) {
	result.Duration = im.now().Sub(started)

	histCtx := context.WithoutCancel(ctx)
	if err := im.store.RecordRun(histCtx, result.Run(opts, started)); err != nil {
		im.cfg.Logger(ctx).Warn("failed to record import run",
			"run_id", result.RunID,
			"error", err,
		)
	}

	im.cfg.Reporter.Report(ctx, Event{
		Kind:   EventRunFinished,
		Mode:   opts.EntityType.Mode(),
		Source: opts.Source,
		Result: result,
	})
}
