package sqlite

import (
	"context"
	"path/filepath"
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
	c := New("test_db", filepath.Join(t.TempDir(), "test.db"), zap.NewNop())
	t.Cleanup(c.Disconnect)
	return c
}

func sampleData(t *testing.T) *dataset.Dataset {
	t.Helper()
	d, err := dataset.New(
		[]string{"id", "name", "score", "active", "created_at"},
		[][]dataset.Value{
			{dataset.Int(1), dataset.String("alpha"), dataset.Float(1.5), dataset.Bool(true),
				dataset.Time(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))},
			{dataset.Int(2), dataset.String("beta"), dataset.Float(2.5), dataset.Bool(false),
				dataset.Time(time.Date(2024, 5, 2, 12, 0, 0, 0, time.UTC))},
			{dataset.Int(3), dataset.Null(), dataset.Float(3.5), dataset.Bool(true),
				dataset.Time(time.Date(2024, 5, 3, 12, 0, 0, 0, time.UTC))},
		})
	require.NoError(t, err)
	return d
}

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := newTestConnector(t)
	in := sampleData(t)

	require.True(t, c.Load(ctx, in, core.LoadParams{Destination: "events"}))

	out := c.Extract(ctx, core.ExtractParams{Table: "events"})
	require.Equal(t, in.NumRows(), out.NumRows())
	require.Equal(t, in.Columns(), out.Columns())

	for i := 0; i < in.NumRows(); i++ {
		for _, col := range in.Columns() {
			want, _ := in.Value(i, col)
			got, ok := out.Value(i, col)
			require.True(t, ok)
			assert.True(t, got.Equal(want), "row %d column %s: got %v (%s), want %v (%s)",
				i, col, got, got.Kind(), want, want.Kind())
		}
	}
}

func TestExtractQuery(t *testing.T) {
	ctx := context.Background()
	c := newTestConnector(t)
	require.True(t, c.Load(ctx, sampleData(t), core.LoadParams{Destination: "events"}))

	out := c.Extract(ctx, core.ExtractParams{Query: "SELECT id FROM events WHERE score > 2"})
	assert.Equal(t, 2, out.NumRows())
	assert.Equal(t, []string{"id"}, out.Columns())
}

func TestExtractLimit(t *testing.T) {
	ctx := context.Background()
	c := newTestConnector(t)
	require.True(t, c.Load(ctx, sampleData(t), core.LoadParams{Destination: "events"}))

	out := c.Extract(ctx, core.ExtractParams{Table: "events", Limit: 2})
	assert.Equal(t, 2, out.NumRows())
}

func TestExtractNoSelector(t *testing.T) {
	ctx := context.Background()
	c := newTestConnector(t)
	require.True(t, c.Load(ctx, sampleData(t), core.LoadParams{Destination: "events"}))

	out := c.Extract(ctx, core.ExtractParams{})
	assert.True(t, out.IsEmpty())
}

func TestExtractBadQuery(t *testing.T) {
	ctx := context.Background()
	c := newTestConnector(t)

	out := c.Extract(ctx, core.ExtractParams{Query: "SELECT * FROM no_such_table"})
	assert.True(t, out.IsEmpty(), "failures surface as an empty dataset")
}

func TestLoadModes(t *testing.T) {
	ctx := context.Background()
	c := newTestConnector(t)
	in := sampleData(t)

	require.True(t, c.Load(ctx, in, core.LoadParams{Destination: "events"}))
	require.True(t, c.Load(ctx, in, core.LoadParams{Destination: "events"}))
	out := c.Extract(ctx, core.ExtractParams{Table: "events"})
	assert.Equal(t, 6, out.NumRows(), "default mode appends")

	require.True(t, c.Load(ctx, in, core.LoadParams{Destination: "events", Mode: core.WriteOverwrite}))
	out = c.Extract(ctx, core.ExtractParams{Table: "events"})
	assert.Equal(t, 3, out.NumRows(), "overwrite replaces the table")
}

func TestLoadNoDestination(t *testing.T) {
	c := newTestConnector(t)
	assert.False(t, c.Load(context.Background(), sampleData(t), core.LoadParams{}))
}

func TestConnectLifecycle(t *testing.T) {
	c := newTestConnector(t)
	assert.False(t, c.Connected())

	require.True(t, c.Connect(context.Background()))
	assert.True(t, c.Connected())
	require.True(t, c.Connect(context.Background()), "connect is idempotent")

	c.Disconnect()
	assert.False(t, c.Connected())
	c.Disconnect() // safe when already disconnected
}
