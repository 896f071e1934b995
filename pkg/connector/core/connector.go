// Package core defines the capability contract every storage connector
// implements: connect, disconnect, extract and load. The pipeline depends
// only on this contract, never on a backend's encoding details.
//
// Failures never cross the contract as control flow. Connect and Load
// report failure as false; Extract reports it as an empty dataset. The
// cause is logged by the connector. An empty dataset therefore means
// either "nothing matched" or "extraction failed"; callers distinguish
// the two only through logs and pipeline metrics.
package core

import (
	"context"

	"github.com/confluxdata/conflux/pkg/dataset"
)

// WriteMode controls how Load treats an existing destination
type WriteMode string

const (
	// WriteAppend adds rows to the existing destination
	WriteAppend WriteMode = "append"
	// WriteOverwrite replaces the destination
	WriteOverwrite WriteMode = "overwrite"
)

// ExtractParams selects what to read from a source. Query takes precedence
// over Table for relational backends; file backends use File. Limit caps the
// number of rows when positive.
type ExtractParams struct {
	Query string
	Table string
	File  string
	Limit int
}

// Selector returns the first populated selector field, for logging
func (p ExtractParams) Selector() string {
	switch {
	case p.Query != "":
		return p.Query
	case p.Table != "":
		return p.Table
	default:
		return p.File
	}
}

// LoadParams identifies the destination and write behavior for Load
type LoadParams struct {
	// Destination is a table name or file name, backend dependent
	Destination string
	// Mode defaults to WriteAppend when empty
	Mode WriteMode
	// Compression names a codec for backends that support one
	// (parquet: snappy, zstd, gzip, none; json: gzip)
	Compression string
}

// Connector is the polymorphic gateway to a concrete storage backend. A
// connector owns its connection handle exclusively; concurrent use of one
// instance must be externally serialized.
type Connector interface {
	// Name identifies the connector instance
	Name() string
	// Connected reports the logical connection state
	Connected() bool
	// Connect establishes the backing resource. Idempotent when already
	// connected; returns false on failure.
	Connect(ctx context.Context) bool
	// Disconnect tears down the connection. Safe when not connected.
	Disconnect()
	// Extract reads the selected data. Auto-connects when needed. Returns
	// an empty dataset on failure.
	Extract(ctx context.Context, params ExtractParams) *dataset.Dataset
	// Load writes the dataset to the destination. Auto-connects when
	// needed. Returns true iff every row was durably written.
	Load(ctx context.Context, data *dataset.Dataset, params LoadParams) bool
}
