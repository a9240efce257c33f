package loader

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/fund-data/internal/model"
	"github.com/rickgao/fund-data/internal/partition"
	"github.com/rickgao/fund-data/internal/warehouse"
)

var (
	jan = model.Month{Year: 2020, Month: time.January}
	feb = model.Month{Year: 2020, Month: time.February}
	mar = model.Month{Year: 2020, Month: time.March}
)

func fp(v float64) *float64 { return &v }

type fixture struct {
	store  *warehouse.DuckDBStore
	dir    *partition.Dir
	loader *Loader
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := warehouse.OpenDuckDB(context.Background(), "", nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	dir := partition.NewDir(t.TempDir(), nil)
	return &fixture{store: store, dir: dir, loader: New(store, dir, WithRunID("test-run"))}
}

func (f *fixture) publish(t *testing.T, m model.Month, quotes ...float64) partition.Info {
	t.Helper()
	b := f.dir.Begin(m)
	for i, q := range quotes {
		b.Add([]model.QuoteRecord{{EntityKey: "A", AsOf: m.Start().AddDate(0, 0, i), QuoteValue: fp(q)}})
	}
	info, err := b.Publish(context.Background())
	require.NoError(t, err)
	return info
}

func (f *fixture) quotes(t *testing.T) []float64 {
	t.Helper()
	var out []float64
	err := f.store.QueryQuotes(context.Background(), []string{"A"},
		time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2100, 1, 1, 0, 0, 0, 0, time.UTC),
		func(r model.QuoteRecord) error {
			out = append(out, *r.QuoteValue)
			return nil
		})
	require.NoError(t, err)
	return out
}

func TestSyncLoadsNewAndStaleMonths(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.publish(t, jan, 1, 2)
	f.publish(t, feb, 3)

	report, err := f.loader.Sync(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, report.Err())
	assert.Equal(t, []model.Month{jan, feb}, report.Loaded)
	assert.Equal(t, int64(3), report.Rows)

	// Nothing changed: nothing reloads.
	report, err = f.loader.Sync(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, report.Loaded)

	// Republishing January makes it stale.
	f.publish(t, jan, 10, 20, 30)
	report, err = f.loader.Sync(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, []model.Month{jan}, report.Loaded)
	assert.Equal(t, []float64{10, 20, 30, 3}, f.quotes(t))
}

func TestSyncRequestedMonths(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.publish(t, jan, 1)
	_, err := f.loader.Sync(ctx, nil)
	require.NoError(t, err)

	report, err := f.loader.Sync(ctx, []model.Month{mar, jan})
	require.NoError(t, err)
	assert.Equal(t, []model.Month{jan}, report.Loaded, "requested months reload even when current")
	assert.Equal(t, []model.Month{mar}, report.Skipped)

	// Idempotent: the warehouse content is unchanged.
	assert.Equal(t, []float64{1}, f.quotes(t))

	loads, err := f.store.Loads(ctx)
	require.NoError(t, err)
	assert.Equal(t, "test-run", loads[jan].RunID)
}

func TestSyncContinuesAfterFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	broken := f.publish(t, jan, 1)
	f.publish(t, feb, 2)
	require.NoError(t, os.WriteFile(broken.Path, []byte("not parquet"), 0o644))

	report, err := f.loader.Sync(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, []model.Month{feb}, report.Loaded)
	require.Contains(t, report.Failed, jan)

	var txErr *warehouse.TxError
	assert.True(t, errors.As(report.Err(), &txErr))
	assert.Equal(t, []float64{2}, f.quotes(t))
}

func TestRebuild(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.publish(t, jan, 1)
	_, err := f.loader.Sync(ctx, nil)
	require.NoError(t, err)

	f.publish(t, jan, 5)
	f.publish(t, feb, 6)

	report, err := f.loader.Rebuild(ctx)
	require.NoError(t, err)
	assert.Equal(t, []model.Month{jan, feb}, report.Loaded)
	assert.Equal(t, []float64{5, 6}, f.quotes(t))
}
