package core

import (
	"context"
	"log/slog"
)

// EventKind identifies a progress event.
type EventKind string

const (
	EventRunStarted  EventKind = "run_started"
	EventAdding      EventKind = "adding"
	EventUpdating    EventKind = "updating"
	EventFailed      EventKind = "failed"
	EventRunFinished EventKind = "run_finished"
)

// Event is a single progress notification emitted during a run.
type Event struct {
	Kind       EventKind
	Mode       Mode
	Source     string
	StableID   string
	Line       int
	Properties int           // Properties written for the entity
	Progress   int           // Percent of the input read; 0 when the size is unknown
	Err        error         // Set for EventFailed and aborted runs
	Result     *ImportResult // Set for EventRunFinished
}

// Reporter receives progress events. It is passed to the importer explicitly;
// nothing in this package writes progress to a global.
type Reporter interface {
	Report(ctx context.Context, ev Event)
}

// ReporterFunc adapts a function to the Reporter interface.
type ReporterFunc func(ctx context.Context, ev Event)

// Report implements Reporter.
func (f ReporterFunc) Report(ctx context.Context, ev Event) { f(ctx, ev) }

// Reporters fans an event out to every reporter in order.
type Reporters []Reporter

// Report implements Reporter.
func (rs Reporters) Report(ctx context.Context, ev Event) {
	for _, r := range rs {
		if r != nil {
			r.Report(ctx, ev)
		}
	}
}

// LogReporter writes human-readable progress lines to a structured logger.
type LogReporter struct {
	Logger func(ctx context.Context) *slog.Logger
}

// NewLogReporter returns a reporter that logs through loggerFor. A nil
// loggerFor uses slog.Default.
func NewLogReporter(loggerFor func(ctx context.Context) *slog.Logger) *LogReporter {
	if loggerFor == nil {
		loggerFor = func(context.Context) *slog.Logger { return slog.Default() }
	}
	return &LogReporter{Logger: loggerFor}
}

// Report implements Reporter.
func (r *LogReporter) Report(ctx context.Context, ev Event) {
	logger := r.Logger(ctx)
	switch ev.Kind {
	case EventRunStarted:
		logger.Info("reading data", "source", ev.Source, "mode", ev.Mode)
	case EventAdding:
		logger.Info("adding "+entityNoun(ev.Mode)+": "+ev.StableID, recordAttrs(ev)...)
	case EventUpdating:
		logger.Info("updating "+entityNoun(ev.Mode)+": "+ev.StableID, recordAttrs(ev)...)
	case EventFailed:
		logger.Warn("record not imported", "line", ev.Line, "stable_id", ev.StableID, "error", ev.Err)
	case EventRunFinished:
		if ev.Result == nil {
			return
		}
		logger.Info("finished loading "+entityNoun(ev.Mode)+"s",
			"source", ev.Result.Source,
			"records", ev.Result.Records,
			"created", ev.Result.Created,
			"updated", ev.Result.Updated,
			"failed", len(ev.Result.Failed),
			"duration_ms", ev.Result.Duration.Milliseconds(),
		)
	}
}

func recordAttrs(ev Event) []any {
	attrs := []any{"line", ev.Line, "properties", ev.Properties}
	if ev.Progress > 0 {
		attrs = append(attrs, "progress_pct", ev.Progress)
	}
	return attrs
}

func entityNoun(m Mode) string {
	if m == ModeTreatment {
		return "treatment"
	}
	return "generic assay"
}
