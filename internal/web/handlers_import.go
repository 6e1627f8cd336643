package web

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/JonMunkholm/assayimport/internal/core"
	"github.com/JonMunkholm/assayimport/internal/logging"
)

const (
	defaultRunsLimit = 20
	maxRunsLimit     = 500
)

// ImportResponse is the body of POST /api/imports. Result is set whenever the
// run started; Problem is set when it did not finish cleanly.
type ImportResponse struct {
	Result  *core.ImportResult `json:"result,omitempty"`
	Problem *ErrorResponse     `json:"problem,omitempty"`
}

// RunResponse is one entry of GET /api/runs.
type RunResponse struct {
	ID          string    `json:"id"`
	Source      string    `json:"source"`
	EntityType  string    `json:"entityType"`
	ColumnNames []string  `json:"columnNames,omitempty"`
	UpdateInfo  bool      `json:"updateInfo"`
	Records     int       `json:"records"`
	Created     int       `json:"created"`
	Updated     int       `json:"updated"`
	Failed      int       `json:"failed"`
	StartedAt   time.Time `json:"startedAt"`
	FinishedAt  time.Time `json:"finishedAt"`
	Error       string    `json:"error,omitempty"`
}

// parseImportOptions reads the query parameters of an import request.
// update_info is a presence flag: any value, including "0", sets it.
func parseImportOptions(r *http.Request) (core.ImportOptions, error) {
	q := r.URL.Query()

	raw := q.Get("entity_type")
	if raw == "" {
		return core.ImportOptions{}, fmt.Errorf("%w: entity_type is required", core.ErrUsage)
	}
	entityType, err := core.ParseEntityType(raw)
	if err != nil {
		return core.ImportOptions{}, err
	}

	source := q.Get("source")
	if source == "" {
		source = "http:" + r.RemoteAddr
	}

	return core.ImportOptions{
		Source:      source,
		EntityType:  entityType,
		ColumnNames: core.ParseColumnNames(q.Get("column_names")),
		UpdateInfo:  q.Has("update_info"),
		Size:        max(r.ContentLength, 0),
	}, nil
}

// handleImport streams the request body through the importer.
// Only one import holds the store at a time; others wait for the limiter
// up to the configured time and are then rejected with 429.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	opts, err := parseImportOptions(r)
	if err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}

	if err := s.limiter.Acquire(r.Context()); err != nil {
		w.Header().Set("Retry-After", strconv.Itoa(int(s.cfg.Import.MaxWaitTime.Seconds())))
		s.respondError(w, r, err, statusFor(err))
		return
	}
	defer s.limiter.Release()

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Import.MaxUploadSize)
	defer r.Body.Close()

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.Import.Timeout)
	defer cancel()

	logger := logging.WithFields(ctx, "entity_type", opts.EntityType, "update_info", opts.UpdateInfo)
	logger.Info("import requested", "columns", len(opts.ColumnNames))

	result, err := s.importer.Run(ctx, r.Body, opts)
	if err != nil {
		status := statusFor(err)
		logger.Warn("import did not complete cleanly", "status", status, "error", err)
		writeJSON(w, status, ImportResponse{Result: result, Problem: newErrorResponse(err)})
		return
	}
	writeJSON(w, http.StatusOK, ImportResponse{Result: result})
}

// handleListRuns returns the most recent import runs, newest first.
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := defaultRunsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			s.respondError(w, r, fmt.Errorf("%w: invalid limit %q", core.ErrUsage, raw), http.StatusBadRequest)
			return
		}
		limit = min(n, maxRunsLimit)
	}

	runs, err := s.importer.Store().ListRuns(r.Context(), limit)
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}

	out := make([]RunResponse, len(runs))
	for i, run := range runs {
		out[i] = RunResponse{
			ID:          run.ID,
			Source:      run.Source,
			EntityType:  string(run.EntityType),
			ColumnNames: run.ColumnNames,
			UpdateInfo:  run.UpdateInfo,
			Records:     run.Records,
			Created:     run.Created,
			Updated:     run.Updated,
			Failed:      run.Failed,
			StartedAt:   run.StartedAt,
			FinishedAt:  run.FinishedAt,
			Error:       run.Error,
		}
	}
	writeJSON(w, http.StatusOK, out)
}
