package main

import (
	"FlowTagger/internal/config"
	"FlowTagger/internal/engine/manager"
	"FlowTagger/internal/metrics"
	"FlowTagger/internal/query"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const flowLog = "2 123456789012 eni-0a1b2c3d 10.0.1.201 198.51.100.2 1234 443 6 25 20000 1620140761 1620140821 ACCEPT OK\n" +
	"2 123456789012 eni-4d3c2b1a 192.168.1.100 203.0.113.101 1234 23 6 15 12000 1620140761 1620140821 REJECT OK\n" +
	"too short\n"

type fakeQuerier struct {
	window query.Window
	err    error
}

func (q *fakeQuerier) TagTotals(_ context.Context, w query.Window) ([]query.TagTotal, error) {
	q.window = w
	return []query.TagTotal{{Tag: "sv_p2", Count: 10, Runs: 2}}, q.err
}

func (q *fakeQuerier) PortProtocolTotals(_ context.Context, w query.Window) ([]query.PortProtocolTotal, error) {
	q.window = w
	return []query.PortProtocolTotal{{Port: 443, Protocol: "tcp", Count: 10}}, q.err
}

func (q *fakeQuerier) Close() error { return nil }

func newTestServer(t *testing.T, querier query.Querier) (*apiServer, string) {
	t.Helper()
	logger, _ := test.NewNullLogger()
	dir := t.TempDir()

	cfg := config.Default()
	cfg.Input.LookupTable = filepath.Join(dir, "lookup_table.txt")
	cfg.Output.Writers[0].Text.RootPath = filepath.Join(dir, "out")
	require.NoError(t, os.WriteFile(cfg.Input.LookupTable,
		[]byte("dstport,protocol,tag\n443,tcp,sv_P2\n23,tcp,sv_P1\n25,tcp,sv_P1\n"), 0644))

	registry := prometheus.NewRegistry()
	m := metrics.NewMetrics()
	require.NoError(t, m.Register(registry))

	mgr, err := manager.NewManager(cfg, logger, m)
	require.NoError(t, err)
	return &apiServer{manager: mgr, metrics: m, registry: registry, querier: querier, log: logger}, dir
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestClassifyEndpoint(t *testing.T) {
	s, _ := newTestServer(t, nil)
	h := newHTTPHandler(s)

	rec := do(t, h, http.MethodPost, "/api/v1/classify", flowLog)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp ClassifyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, uint64(1), resp.TagCounts["sv_p2"])
	assert.Equal(t, uint64(1), resp.TagCounts["sv_p1"])
	assert.Equal(t, []pairCount{{23, "tcp", 1}, {443, "tcp", 1}}, resp.PortProtocolCounts)
	assert.Equal(t, uint64(1), resp.Stats.Skipped)
	assert.False(t, resp.Persisted)
	assert.NotEmpty(t, resp.RunID)
}

func TestClassifyEndpoint_CustomFormat(t *testing.T) {
	s, _ := newTestServer(t, nil)
	h := newHTTPHandler(s)

	rec := do(t, h, http.MethodPost, "/api/v1/classify?format=protocol+dstport", "6 25\n17 53\n")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ClassifyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, uint64(1), resp.TagCounts["sv_p1"])
	assert.Equal(t, uint64(1), resp.TagCounts["Untagged"])

	rec = do(t, h, http.MethodPost, "/api/v1/classify?format=srcaddr+dstaddr", "x y\n")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestClassifyEndpoint_Persist(t *testing.T) {
	s, dir := newTestServer(t, nil)
	h := newHTTPHandler(s)

	rec := do(t, h, http.MethodPost, "/api/v1/classify?persist=true", flowLog)
	require.Equal(t, http.StatusOK, rec.Code)

	data, err := os.ReadFile(filepath.Join(dir, "out", "tag_counts.txt"))
	require.NoError(t, err)
	assert.Equal(t, "sv_p1,1\nsv_p2,1\n", string(data))
}

func TestLookupEndpoint(t *testing.T) {
	s, _ := newTestServer(t, nil)

	rec := do(t, newHTTPHandler(s), http.MethodGet, "/api/v1/lookup", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp LookupResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.Entries)
	assert.Equal(t, 3, resp.Ports)
	assert.Contains(t, resp.Layout, "dstport protocol")
}

func TestHistoryEndpoints(t *testing.T) {
	q := &fakeQuerier{}
	s, _ := newTestServer(t, q)
	h := newHTTPHandler(s)

	rec := do(t, h, http.MethodGet, "/api/v1/history/tags?since=2024-01-01T00:00:00Z&source=log_files.txt&limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "log_files.txt", q.window.Source)
	assert.Equal(t, 5, q.window.Limit)
	assert.Equal(t, 2024, q.window.Since.Year())
	assert.True(t, q.window.Until.IsZero())

	var totals []query.TagTotal
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &totals))
	assert.Equal(t, []query.TagTotal{{Tag: "sv_p2", Count: 10, Runs: 2}}, totals)

	rec = do(t, h, http.MethodGet, "/api/v1/history/pairs", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/v1/history/tags?until=yesterday", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	q.err = errors.New("clickhouse down")
	rec = do(t, h, http.MethodGet, "/api/v1/history/tags", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHistoryEndpoints_NoQuerier(t *testing.T) {
	s, _ := newTestServer(t, nil)

	rec := do(t, newHTTPHandler(s), http.MethodGet, "/api/v1/history/tags", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsAndHealth(t *testing.T) {
	s, _ := newTestServer(t, nil)
	h := newHTTPHandler(s)

	do(t, h, http.MethodPost, "/api/v1/classify", flowLog)

	rec := do(t, h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "flowtagger_lines_processed_total 2")
	assert.Contains(t, rec.Body.String(), "flowtagger_lookup_entries 3")

	rec = do(t, h, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
