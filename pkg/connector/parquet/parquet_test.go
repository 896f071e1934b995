package parquet

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/confluxdata/conflux/pkg/connector/core"
	"github.com/confluxdata/conflux/pkg/dataset"
)

func newTestConnector(t *testing.T) *Connector {
	t.Helper()
	return New("warehouse", t.TempDir(), zap.NewNop())
}

func sampleData(t *testing.T) *dataset.Dataset {
	t.Helper()
	d, err := dataset.New(
		[]string{"id", "name", "score", "active", "created_at"},
		[][]dataset.Value{
			{dataset.Int(1), dataset.String("alpha"), dataset.Float(1.5), dataset.Bool(true),
				dataset.Time(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))},
			{dataset.Int(2), dataset.String("beta"), dataset.Float(2.5), dataset.Bool(false),
				dataset.Time(time.Date(2024, 5, 2, 12, 30, 0, 0, time.UTC))},
		})
	require.NoError(t, err)
	return d
}

func assertSameValues(t *testing.T, want, got *dataset.Dataset) {
	t.Helper()
	require.Equal(t, want.NumRows(), got.NumRows())
	for i := 0; i < want.NumRows(); i++ {
		for _, col := range want.Columns() {
			w, _ := want.Value(i, col)
			g, ok := got.Value(i, col)
			require.True(t, ok, "missing column %s", col)
			assert.True(t, g.Equal(w), "row %d column %s: got %v (%s), want %v (%s)",
				i, col, g, g.Kind(), w, w.Kind())
		}
	}
}

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := newTestConnector(t)
	in := sampleData(t)

	require.True(t, c.Load(ctx, in, core.LoadParams{Destination: "events"}))
	out := c.Extract(ctx, core.ExtractParams{File: "events"})
	assertSameValues(t, in, out)
}

func TestRoundTripCompressions(t *testing.T) {
	ctx := context.Background()
	in := sampleData(t)

	for _, codec := range []string{"snappy", "zstd", "gzip", "none"} {
		t.Run(codec, func(t *testing.T) {
			c := newTestConnector(t)
			require.True(t, c.Load(ctx, in, core.LoadParams{Destination: "events", Compression: codec}))
			out := c.Extract(ctx, core.ExtractParams{File: "events"})
			assertSameValues(t, in, out)
		})
	}
}

func TestAppendMerges(t *testing.T) {
	ctx := context.Background()
	c := newTestConnector(t)
	in := sampleData(t)

	require.True(t, c.Load(ctx, in, core.LoadParams{Destination: "events"}))
	require.True(t, c.Load(ctx, in, core.LoadParams{Destination: "events"}))

	out := c.Extract(ctx, core.ExtractParams{File: "events"})
	assert.Equal(t, 4, out.NumRows())
}

func TestOverwriteReplaces(t *testing.T) {
	ctx := context.Background()
	c := newTestConnector(t)
	in := sampleData(t)

	require.True(t, c.Load(ctx, in, core.LoadParams{Destination: "events"}))
	require.True(t, c.Load(ctx, in, core.LoadParams{Destination: "events", Mode: core.WriteOverwrite}))

	out := c.Extract(ctx, core.ExtractParams{File: "events"})
	assert.Equal(t, 2, out.NumRows())
}

func TestExtractLimit(t *testing.T) {
	ctx := context.Background()
	c := newTestConnector(t)
	require.True(t, c.Load(ctx, sampleData(t), core.LoadParams{Destination: "events"}))

	out := c.Extract(ctx, core.ExtractParams{File: "events", Limit: 1})
	assert.Equal(t, 1, out.NumRows())
}

func TestExtractMissingFile(t *testing.T) {
	c := newTestConnector(t)
	out := c.Extract(context.Background(), core.ExtractParams{File: "nope"})
	assert.True(t, out.IsEmpty())
}

func TestListFiles(t *testing.T) {
	ctx := context.Background()
	c := newTestConnector(t)
	in := sampleData(t)

	require.True(t, c.Load(ctx, in, core.LoadParams{Destination: "b_second"}))
	require.True(t, c.Load(ctx, in, core.LoadParams{Destination: "a_first"}))

	assert.Equal(t, []string{"a_first.parquet", "b_second.parquet"}, c.ListFiles())
}
