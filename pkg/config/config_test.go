package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const validConfig = `
connectors:
  - name: sales_db
    type: sqlite
    path: /tmp/sales.db
  - name: warehouse
    type: parquet
    path: /tmp/warehouse

pipelines:
  - name: sales_to_warehouse
    source: sales_db
    target: warehouse
    extract:
      table: sales
      limit: 100
    load:
      destination: sales_filtered
      mode: overwrite
      compression: zstd
    steps:
      - type: filter
        condition: quantity > 5
      - type: aggregate
        group_by: [region]
        aggregations:
          quantity: sum
      - type: clean
        clean:
          remove_duplicates: true
          drop_nulls: true
          coercions:
            quantity: int
      - type: compute
        columns:
          - name: revenue
            expression: quantity * price
`

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	require.NoError(t, err)

	require.Len(t, cfg.Connectors, 2)
	assert.Equal(t, "sqlite", cfg.Connectors[0].Type)

	require.Len(t, cfg.Pipelines, 1)
	p := cfg.Pipelines[0]
	assert.Equal(t, "sales_db", p.Source)
	assert.Equal(t, "sales", p.Extract.Table)
	assert.Equal(t, 100, p.Extract.Limit)
	assert.Equal(t, "overwrite", p.Load.Mode)
	require.Len(t, p.Steps, 4)
	assert.Equal(t, "quantity > 5", p.Steps[0].Condition)
	assert.Equal(t, map[string]string{"quantity": "sum"}, p.Steps[1].Aggregations)
	require.NotNil(t, p.Steps[2].Clean)
	assert.True(t, p.Steps[2].Clean.RemoveDuplicates)
	require.Len(t, p.Steps[3].Columns, 1)
	assert.Equal(t, "revenue", p.Steps[3].Columns[0].Name)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_DATA_DIR", "/data/conflux")

	cfg, err := Load(writeConfig(t, `
connectors:
  - name: db
    type: sqlite
    path: ${TEST_DATA_DIR}/sales.db
`))
	require.NoError(t, err)
	assert.Equal(t, "/data/conflux/sales.db", cfg.Connectors[0].Path)
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"connector without name", `
connectors:
  - type: sqlite
    path: /tmp/x.db
`},
		{"connector without type", `
connectors:
  - name: db
    path: /tmp/x.db
`},
		{"unknown source connector", `
pipelines:
  - name: p
    source: ghost
`},
		{"unknown target connector", `
connectors:
  - name: db
    type: sqlite
    path: /tmp/x.db
pipelines:
  - name: p
    source: db
    target: ghost
`},
		{"filter without condition", `
connectors:
  - name: db
    type: sqlite
    path: /tmp/x.db
pipelines:
  - name: p
    source: db
    steps:
      - type: filter
`},
		{"aggregate without group_by", `
connectors:
  - name: db
    type: sqlite
    path: /tmp/x.db
pipelines:
  - name: p
    source: db
    steps:
      - type: aggregate
        aggregations:
          n: sum
`},
		{"unknown step type", `
connectors:
  - name: db
    type: sqlite
    path: /tmp/x.db
pipelines:
  - name: p
    source: db
    steps:
      - type: shuffle
`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.content))
			assert.Error(t, err)
		})
	}
}
