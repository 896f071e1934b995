// Package conflux provides a small, configurable ETL engine: pipelines
// extract a tabular Dataset from a source connector, apply an ordered list
// of transformation steps, and load the result into a target connector,
// recording metrics for every run.
//
// # Architecture
//
// Conflux is organized around four layers:
//
// 1. Dataset: the immutable tabular value passed between stages. Columns
// are named and ordered; cells are tagged scalars (null, string, int,
// float, bool, timestamp).
//
// 2. Connectors: pluggable gateways to storage backends (SQLite tables,
// Parquet files, JSON documents). Failures never propagate as control
// flow; Connect and Load report false, Extract reports an empty Dataset.
//
// 3. Transformer: stateless operations over Datasets (filter, aggregate,
// clean, computed columns) that fail soft, logging the cause and passing
// the input through unchanged.
//
// 4. Pipeline and Framework: the extract, transform, load state machine
// with per-run Metrics, and a named catalog with reporting views.
//
// # Quick Start
//
// Build and run a pipeline in code:
//
//	import (
//	    "context"
//	    "github.com/confluxdata/conflux/pkg/connector/core"
//	    "github.com/confluxdata/conflux/pkg/connector/sqlite"
//	    "github.com/confluxdata/conflux/pkg/connector/parquet"
//	    "github.com/confluxdata/conflux/pkg/framework"
//	)
//
//	fw := framework.New(nil)
//	fw.RegisterConnector("sales", sqlite.New("sales", "sales.db", nil))
//	fw.RegisterConnector("warehouse", parquet.New("warehouse", "./warehouse", nil))
//
//	src, _ := fw.Connector("sales")
//	dst, _ := fw.Connector("warehouse")
//	fw.CreatePipeline("daily").
//	    SetSource(src).
//	    SetTarget(dst).
//	    AddFilter("quantity > 5")
//
//	ok := fw.RunPipeline(context.Background(), "daily",
//	    core.ExtractParams{Table: "sales"},
//	    core.LoadParams{Destination: "sales_filtered"})
//
// Or drive it from YAML with the conflux CLI:
//
//	conflux run --config config.yaml
//
// # Key Packages
//
//	pkg/dataset    - Immutable tabular value type
//	pkg/expr       - Expression language for filters and computed columns
//	pkg/transform  - Stateless dataset operations
//	pkg/connector  - Connector contract, registry and backends
//	pkg/pipeline   - ETL state machine and metrics
//	pkg/framework  - Named catalog and reporting views
package conflux
