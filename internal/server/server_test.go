package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/fund-data/internal/metrics"
	"github.com/rickgao/fund-data/internal/model"
	"github.com/rickgao/fund-data/internal/partition"
	"github.com/rickgao/fund-data/internal/returns"
)

// fakeStore serves one entity with a quote on each of the first five days of
// January 2024 and a 1% January benchmark rate.
type fakeStore struct {
	pingErr  error
	queryErr error
}

func (s *fakeStore) Ping(context.Context) error { return s.pingErr }

func (s *fakeStore) QueryQuotes(_ context.Context, keys []string, start, end time.Time, fn func(model.QuoteRecord) error) error {
	if s.queryErr != nil {
		return s.queryErr
	}
	for i := range 5 {
		d := time.Date(2024, time.January, 1+i, 0, 0, 0, 0, time.UTC)
		if d.Before(start) || d.After(end) {
			continue
		}
		q := 1 + float64(i)/100
		if err := fn(model.QuoteRecord{EntityKey: "A", AsOf: d, QuoteValue: &q}); err != nil {
			return err
		}
	}
	return nil
}

func (s *fakeStore) FirstDates(_ context.Context, keys []string) (map[string]time.Time, error) {
	if s.queryErr != nil {
		return nil, s.queryErr
	}
	out := make(map[string]time.Time)
	for _, k := range keys {
		if k == "A" {
			out[k] = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
		}
	}
	return out, nil
}

func (s *fakeStore) BenchmarkRates(_ context.Context, name string, _, _ time.Time) ([]model.BenchmarkRate, error) {
	return []model.BenchmarkRate{{MonthEnd: time.Date(2024, time.January, 31, 0, 0, 0, 0, time.UTC), Name: name, Rate: 0.01}}, nil
}

func newTestServer(t *testing.T, store *fakeStore, opts ...Option) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(New(returns.NewEngine(store), store, opts...))
	t.Cleanup(srv.Close)
	return srv
}

func getJSON(t *testing.T, url string, v any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Contains(t, resp.Header.Get("Content-Type"), "application/json")
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	return resp.StatusCode
}

func TestReturns(t *testing.T) {
	srv := newTestServer(t, &fakeStore{})

	q := url.Values{}
	q.Add("entity", "A")
	q.Add("entity", "GHOST")
	q.Set("start", "2024-01-01")
	q.Set("end", "2024-01-31")

	var body resultResponse
	status := getJSON(t, srv.URL+"/v1/returns?"+q.Encode(), &body)
	require.Equal(t, http.StatusOK, status)

	assert.Equal(t, "2024-01-01", body.TrueStart)
	assert.Equal(t, []string{"2024-01-01", "2024-01-02", "2024-01-03", "2024-01-04", "2024-01-05"}, body.Dates)
	require.Len(t, body.Series, 1)
	assert.Equal(t, "A", body.Series[0].EntityKey)
	assert.Equal(t, 0.0, body.Series[0].CumulativeReturn[0])
	assert.InDelta(t, 0.04, body.Series[0].CumulativeReturn[4], 1e-12)

	require.NotNil(t, body.Benchmark)
	assert.Equal(t, "CDI", body.Benchmark.EntityKey)
	assert.InDelta(t, 0.0, body.Benchmark.CumulativeReturn[0], 0)
	assert.Equal(t, "monthly_geometric", body.Proxy)

	require.Len(t, body.Diagnostics, 1)
	assert.Equal(t, returns.KindUnknownEntity, body.Diagnostics[0].Kind)
	assert.Equal(t, []string{"GHOST"}, body.Diagnostics[0].EntityKeys)
}

func TestReturnsEmptyWindow(t *testing.T) {
	srv := newTestServer(t, &fakeStore{})

	var body resultResponse
	status := getJSON(t, srv.URL+"/v1/returns?entity=A&start=2023-01-01&end=2023-12-31", &body)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, body.TrueStart)
	assert.Empty(t, body.Series)
	assert.Nil(t, body.Benchmark)
	assert.Empty(t, body.Proxy)
	require.Len(t, body.Diagnostics, 1)
	assert.Equal(t, returns.KindEmptyWindow, body.Diagnostics[0].Kind)
}

func TestReturnsBadRequest(t *testing.T) {
	srv := newTestServer(t, &fakeStore{})

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"malformed date", "entity=A&start=01/02/2024&end=2024-01-31", []string{"start must be YYYY-MM-DD"}},
		{"no entity", "start=2024-01-01&end=2024-01-31", []string{"at least one entity is required"}},
		{"inverted window", "entity=A&start=2024-02-01&end=2024-01-01", []string{"end must not be before start"}},
		{"missing dates", "entity=A", []string{"start is required", "end is required"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body errorResponse
			status := getJSON(t, srv.URL+"/v1/returns?"+tt.query, &body)
			assert.Equal(t, http.StatusBadRequest, status)
			assert.Equal(t, tt.want, body.Problems)
		})
	}
}

func TestReturnsStoreFailure(t *testing.T) {
	srv := newTestServer(t, &fakeStore{queryErr: errors.New("connection reset")})

	var body errorResponse
	status := getJSON(t, srv.URL+"/v1/returns?entity=A&start=2024-01-01&end=2024-01-31", &body)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "aggregation failed", body.Error)
}

func TestHealth(t *testing.T) {
	dir := partition.NewDir(t.TempDir(), nil)

	t.Run("degraded without partitions", func(t *testing.T) {
		srv := newTestServer(t, &fakeStore{}, WithPartitions(dir))
		var body healthResponse
		status := getJSON(t, srv.URL+"/health", &body)
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, "degraded", body.Status)
		assert.Equal(t, "connected", body.Components["warehouse"])
	})

	t.Run("healthy", func(t *testing.T) {
		b := dir.Begin(model.Month{Year: 2024, Month: time.March})
		q := 1.0
		b.Add([]model.QuoteRecord{{EntityKey: "A", AsOf: time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC), QuoteValue: &q}})
		_, err := b.Publish(context.Background())
		require.NoError(t, err)

		srv := newTestServer(t, &fakeStore{}, WithPartitions(dir))
		var body healthResponse
		status := getJSON(t, srv.URL+"/health", &body)
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, "healthy", body.Status)
		assert.Equal(t, map[string]any{"latest_month": "202403"}, body.Components["partitions"])
	})

	t.Run("unhealthy", func(t *testing.T) {
		srv := newTestServer(t, &fakeStore{pingErr: errors.New("down")})
		var body healthResponse
		status := getJSON(t, srv.URL+"/health", &body)
		assert.Equal(t, http.StatusServiceUnavailable, status)
		assert.Equal(t, "unhealthy", body.Status)
	})
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.MonthOutcome(metrics.OutcomePublished)

	store := &fakeStore{}
	srv := httptest.NewServer(New(returns.NewEngine(store, returns.WithMetrics(m)), store, WithGatherer(reg)))
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `funddata_ingest_months_total{outcome="published"} 1`)
}
