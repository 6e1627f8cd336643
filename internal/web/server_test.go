package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/assayimport/internal/config"
	"github.com/JonMunkholm/assayimport/internal/core"
	"github.com/JonMunkholm/assayimport/internal/store/memory"
)

type testServer struct {
	*Server
	store   *memory.Store
	limiter *core.ImportLimiter
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	cfg := &config.Config{
		Server: config.ServerConfig{Host: "127.0.0.1", Port: 8080, ShutdownTimeout: time.Second},
		Import: config.ImportConfig{
			Timeout:       time.Minute,
			MaxConcurrent: 1,
			MaxWaitTime:   20 * time.Millisecond,
			MaxUploadSize: 1 << 20,
		},
	}
	store := memory.NewStore()
	reg := prometheus.NewRegistry()
	importer := core.NewImporter(store, core.ImporterConfig{Reporter: core.NewMetrics(reg)})
	limiter := core.NewImportLimiter(cfg.Import.MaxConcurrent, cfg.Import.MaxWaitTime)
	return &testServer{
		Server:  NewServer(importer, limiter, reg, cfg),
		store:   store,
		limiter: limiter,
	}
}

func (ts *testServer) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	ts.Router().ServeHTTP(rec, req)
	return rec
}

func decodeImport(t *testing.T, rec *httptest.ResponseRecorder) ImportResponse {
	t.Helper()
	var resp ImportResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestHandleImport_Treatment(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/imports?entity_type=treatment&source=drugs.tsv",
		"entity_stable_id\tname\tdescription\turl\nT1\tDrug\tA drug\thttp://x\n")

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decodeImport(t, rec)
	require.NotNil(t, resp.Result)
	assert.Nil(t, resp.Problem)
	assert.Equal(t, 1, resp.Result.Created)
	assert.Equal(t, "drugs.tsv", resp.Result.Source)

	tr, ok := ts.store.Treatment("T1")
	require.True(t, ok)
	assert.Equal(t, "Drug", tr.Name)
}

func TestHandleImport_GenericAssay(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/imports?entity_type=GENERIC_ASSAY&column_names=foo,bar,baz&update_info=0",
		"entity_stable_id\tfoo\tbar\nG1\tv1\tv2\n")

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, core.PropertyMap{"foo": "v1", "bar": "v2"}, ts.store.PropertiesOf("G1"))

	runs, err := ts.store.ListRuns(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.True(t, runs[0].UpdateInfo)
	assert.Equal(t, []string{"foo", "bar", "baz"}, runs[0].ColumnNames)
}

func TestHandleImport_UsageErrors(t *testing.T) {
	ts := newTestServer(t)

	for _, target := range []string{"/api/imports", "/api/imports?entity_type=bogus"} {
		rec := ts.do(t, http.MethodPost, target, "entity_stable_id\nT1\n")
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)

		var resp ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "USE001", resp.Code)
	}

	treatments, _ := ts.store.Counts()
	assert.Zero(t, treatments)
}

func TestHandleImport_HeaderFault(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/imports?entity_type=TREATMENT", "stable_id\tname\nT1\tx\n")

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	resp := decodeImport(t, rec)
	require.NotNil(t, resp.Problem)
	assert.Equal(t, "HDR001", resp.Problem.Code)
	require.NotNil(t, resp.Result)
	assert.Zero(t, resp.Result.Records)
}

func TestHandleImport_FailedRecords(t *testing.T) {
	ts := newTestServer(t)
	ts.store.SetFaults(memory.Faults{
		InsertTreatment: func(stableID string) error {
			if stableID == "T2" {
				return errors.New("connection reset by peer")
			}
			return nil
		},
	})

	rec := ts.do(t, http.MethodPost, "/api/imports?entity_type=TREATMENT", "entity_stable_id\nT1\nT2\nT3\n")

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	resp := decodeImport(t, rec)
	require.NotNil(t, resp.Result)
	assert.Equal(t, 2, resp.Result.Created)
	require.Len(t, resp.Result.Failed, 1)
	assert.Equal(t, "T2", resp.Result.Failed[0].StableID)
	assert.Equal(t, "IMP002", resp.Problem.Code)
}

func TestHandleImport_Busy(t *testing.T) {
	ts := newTestServer(t)
	require.True(t, ts.limiter.TryAcquire())
	defer ts.limiter.Release()

	rec := ts.do(t, http.MethodPost, "/api/imports?entity_type=TREATMENT", "entity_stable_id\nT1\n")

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "IMP001", resp.Code)

	treatments, _ := ts.store.Counts()
	assert.Zero(t, treatments)
}

func TestHandleImport_BodyTooLarge(t *testing.T) {
	ts := newTestServer(t)
	ts.cfg.Import.MaxUploadSize = 32

	body := "entity_stable_id\n" + strings.Repeat("T1\n", 100)
	rec := ts.do(t, http.MethodPost, "/api/imports?entity_type=TREATMENT", body)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, 0, ts.limiter.ActiveCount())
}

func TestHandleListRuns(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, http.MethodPost, "/api/imports?entity_type=TREATMENT&source=first", "entity_stable_id\nT1\n")
	ts.do(t, http.MethodPost, "/api/imports?entity_type=TREATMENT&source=second", "entity_stable_id\nT1\n")

	rec := ts.do(t, http.MethodGet, "/api/runs?limit=1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var runs []RunResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, "second", runs[0].Source)
	assert.Equal(t, 1, runs[0].Updated)

	rec = ts.do(t, http.MethodGet, "/api/runs?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	ts.do(t, http.MethodPost, "/api/imports?entity_type=TREATMENT", "entity_stable_id\nT1\n")

	rec = ts.do(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `assayimport_records_total{action="created",mode="treatment"} 1`)

	rec = ts.do(t, http.MethodGet, "/api/limiter", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"max_concurrent":1`)
}

func TestShutdown_WaitsForImports(t *testing.T) {
	ts := newTestServer(t)
	require.True(t, ts.limiter.TryAcquire())

	go func() {
		time.Sleep(20 * time.Millisecond)
		ts.limiter.Release()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, ts.Shutdown(ctx))
	assert.Equal(t, 0, ts.limiter.ActiveCount())
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{core.ErrUsage, http.StatusBadRequest},
		{core.ErrTooManyImports, http.StatusTooManyRequests},
		{core.ErrEmptyFile, http.StatusUnprocessableEntity},
		{&core.MalformedRecordError{Line: 2}, http.StatusUnprocessableEntity},
		{&http.MaxBytesError{Limit: 1}, http.StatusRequestEntityTooLarge},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}
