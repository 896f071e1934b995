// Package parquet implements the columnar-file connector. Files live under
// a base directory and are read and written through Arrow.
package parquet

import (
	"context"
	stderrors "errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"go.uber.org/zap"

	"github.com/confluxdata/conflux/pkg/connector/core"
	"github.com/confluxdata/conflux/pkg/dataset"
	"github.com/confluxdata/conflux/pkg/errors"
	"github.com/confluxdata/conflux/pkg/logger"
)

// Connector reads and writes Parquet files under a base directory
type Connector struct {
	name      string
	baseDir   string
	connected bool
	log       *zap.Logger
}

// New creates a Parquet connector rooted at baseDir
func New(name, baseDir string, log *zap.Logger) *Connector {
	if log == nil {
		log = logger.Get()
	}
	return &Connector{
		name:    name,
		baseDir: baseDir,
		log: log.With(
			zap.String("connector", name),
			zap.String("type", "parquet")),
	}
}

// Name returns the connector instance name
func (c *Connector) Name() string { return c.name }

// Connected reports the logical connection state
func (c *Connector) Connected() bool { return c.connected }

// Connect ensures the base directory exists
func (c *Connector) Connect(ctx context.Context) bool {
	if c.connected {
		return true
	}
	if err := os.MkdirAll(c.baseDir, 0o755); err != nil {
		c.log.Error("failed to prepare base directory", zap.String("dir", c.baseDir), zap.Error(err))
		return false
	}
	c.connected = true
	c.log.Info("connected", zap.String("dir", c.baseDir))
	return true
}

// Disconnect releases the directory handle state
func (c *Connector) Disconnect() {
	if c.connected {
		c.connected = false
		c.log.Info("disconnected")
	}
}

// Extract reads the named Parquet file into a dataset. A missing file or
// read failure is logged and surfaces as an empty dataset.
func (c *Connector) Extract(ctx context.Context, params core.ExtractParams) *dataset.Dataset {
	if !c.Connect(ctx) {
		return dataset.Empty()
	}
	if params.File == "" {
		c.log.Warn("no file given", zap.Strings("available_files", c.ListFiles()))
		return dataset.Empty()
	}

	path := c.resolve(params.File)
	out, err := c.readFile(ctx, path, params.Limit)
	if err != nil {
		c.log.Error("extraction failed", zap.String("file", path), zap.Error(err))
		return dataset.Empty()
	}
	c.log.Info("extraction complete", zap.String("file", params.File), zap.Int("rows", out.NumRows()))
	return out
}

// Load writes the dataset to the named Parquet file. Parquet files are
// immutable, so append mode reads the existing file and rewrites the
// merged rows. True means every row was written and the file closed.
func (c *Connector) Load(ctx context.Context, data *dataset.Dataset, params core.LoadParams) bool {
	if !c.Connect(ctx) {
		return false
	}
	if params.Destination == "" {
		c.log.Error("load failed: no destination file")
		return false
	}
	if data.NumColumns() == 0 {
		c.log.Error("load failed: dataset has no columns")
		return false
	}

	path := c.resolve(params.Destination)

	toWrite := data
	if params.Mode != core.WriteOverwrite {
		if _, err := os.Stat(path); err == nil {
			existing, err := c.readFile(ctx, path, 0)
			if err != nil {
				c.log.Error("load failed reading existing file for append", zap.Error(err))
				return false
			}
			merged, err := mergeRows(existing, data)
			if err != nil {
				c.log.Error("load failed merging for append", zap.Error(err))
				return false
			}
			toWrite = merged
		}
	}

	if err := c.writeFile(path, toWrite, params.Compression); err != nil {
		c.log.Error("load failed", zap.String("file", path), zap.Error(err))
		return false
	}

	c.log.Info("load complete",
		zap.String("file", params.Destination),
		zap.Int("rows", data.NumRows()))
	return true
}

// ListFiles returns the Parquet file names under the base directory
func (c *Connector) ListFiles() []string {
	entries, err := os.ReadDir(c.baseDir)
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".parquet") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names
}

// resolve joins a file name with the base directory, defaulting the
// .parquet extension.
func (c *Connector) resolve(name string) string {
	if filepath.Ext(name) == "" {
		name += ".parquet"
	}
	return filepath.Join(c.baseDir, name)
}

func (c *Connector) readFile(ctx context.Context, path string, limit int) (*dataset.Dataset, error) {
	f, err := os.Open(path) //nolint:gosec // G304: path is rooted in the base directory
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to open parquet file")
	}
	defer f.Close()

	fr, err := file.NewParquetReader(f)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to read parquet file")
	}
	defer fr.Close()

	arrowReader, err := pqarrow.NewFileReader(fr, pqarrow.ArrowReadProperties{}, memory.NewGoAllocator())
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to create arrow reader")
	}

	schema, err := arrowReader.Schema()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to read schema")
	}
	columns := make([]string, schema.NumFields())
	for i := 0; i < schema.NumFields(); i++ {
		columns[i] = schema.Field(i).Name
	}

	b := dataset.NewBuilder(columns)

	rr, err := arrowReader.GetRecordReader(ctx, nil, nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to read records")
	}
	defer rr.Release()

	for rr.Next() {
		rec := rr.Record()
		for rowIdx := 0; rowIdx < int(rec.NumRows()); rowIdx++ {
			row := make([]dataset.Value, rec.NumCols())
			for colIdx := 0; colIdx < int(rec.NumCols()); colIdx++ {
				row[colIdx] = columnValue(rec.Column(colIdx), rowIdx)
			}
			b.AppendRow(row)
			if limit > 0 && b.Len() >= limit {
				return b.Build()
			}
		}
	}
	if err := rr.Err(); err != nil && !stderrors.Is(err, io.EOF) {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed while reading records")
	}

	return b.Build()
}

func (c *Connector) writeFile(path string, data *dataset.Dataset, compression string) error {
	schema, err := arrowSchema(data)
	if err != nil {
		return err
	}

	mem := memory.NewGoAllocator()
	builder := array.NewRecordBuilder(mem, schema)
	defer builder.Release()

	for i := 0; i < data.NumRows(); i++ {
		for j, v := range data.Row(i) {
			if err := appendValue(builder.Field(j), v); err != nil {
				return err
			}
		}
	}

	rec := builder.NewRecord()
	defer rec.Release()

	f, err := os.Create(path) //nolint:gosec // G304: path is rooted in the base directory
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to create parquet file")
	}

	props := parquet.NewWriterProperties(
		parquet.WithCompression(parquetCompression(compression)),
	)
	arrowProps := pqarrow.NewArrowWriterProperties(pqarrow.WithAllocator(mem))

	fw, err := pqarrow.NewFileWriter(schema, f, props, arrowProps)
	if err != nil {
		_ = f.Close()
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to create parquet writer")
	}

	if err := fw.Write(rec); err != nil {
		_ = fw.Close()
		return errors.Wrap(err, errors.ErrorTypeLoad, "failed to write record batch")
	}
	if err := fw.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeLoad, "failed to close parquet writer")
	}
	return nil
}

// mergeRows appends the rows of b to a. The column sets must match.
func mergeRows(a, b *dataset.Dataset) (*dataset.Dataset, error) {
	aCols := a.Columns()
	bCols := b.Columns()
	if len(aCols) != len(bCols) {
		return nil, errors.New(errors.ErrorTypeData, "append column mismatch")
	}
	for i, col := range aCols {
		if bCols[i] != col {
			return nil, errors.Newf(errors.ErrorTypeData,
				"append column mismatch: %q vs %q", col, bCols[i])
		}
	}
	builder := dataset.NewBuilder(aCols)
	for i := 0; i < a.NumRows(); i++ {
		builder.AppendRow(a.Row(i))
	}
	for i := 0; i < b.NumRows(); i++ {
		builder.AppendRow(b.Row(i))
	}
	return builder.Build()
}

func arrowSchema(data *dataset.Dataset) (*arrow.Schema, error) {
	fields := make([]arrow.Field, 0, data.NumColumns())
	for _, col := range data.Columns() {
		fields = append(fields, arrow.Field{
			Name:     col,
			Type:     arrowType(data.ColumnKind(col)),
			Nullable: true,
		})
	}
	return arrow.NewSchema(fields, nil), nil
}

func arrowType(kind dataset.Kind) arrow.DataType {
	switch kind {
	case dataset.KindInt:
		return arrow.PrimitiveTypes.Int64
	case dataset.KindFloat:
		return arrow.PrimitiveTypes.Float64
	case dataset.KindBool:
		return arrow.FixedWidthTypes.Boolean
	case dataset.KindTime:
		return arrow.FixedWidthTypes.Timestamp_ns
	default:
		// Strings and all-null columns
		return arrow.BinaryTypes.String
	}
}

func appendValue(b array.Builder, v dataset.Value) error {
	if v.IsNull() {
		b.AppendNull()
		return nil
	}
	switch builder := b.(type) {
	case *array.BooleanBuilder:
		if x, ok := v.Boolean(); ok {
			builder.Append(x)
		} else {
			builder.AppendNull()
		}
	case *array.Int64Builder:
		if x, ok := v.Int64(); ok {
			builder.Append(x)
		} else {
			builder.AppendNull()
		}
	case *array.Float64Builder:
		if x, ok := v.Float64(); ok {
			builder.Append(x)
		} else {
			builder.AppendNull()
		}
	case *array.StringBuilder:
		builder.Append(v.String())
	case *array.TimestampBuilder:
		if t, ok := v.Timestamp(); ok {
			builder.Append(arrow.Timestamp(t.UnixNano()))
		} else {
			builder.AppendNull()
		}
	default:
		return errors.Newf(errors.ErrorTypeData, "unsupported builder type %T", b)
	}
	return nil
}

func columnValue(col arrow.Array, rowIdx int) dataset.Value {
	if col.IsNull(rowIdx) {
		return dataset.Null()
	}
	switch c := col.(type) {
	case *array.Boolean:
		return dataset.Bool(c.Value(rowIdx))
	case *array.Int64:
		return dataset.Int(c.Value(rowIdx))
	case *array.Float64:
		return dataset.Float(c.Value(rowIdx))
	case *array.String:
		return dataset.String(c.Value(rowIdx))
	case *array.Timestamp:
		unit := arrow.Nanosecond
		if tt, ok := c.DataType().(*arrow.TimestampType); ok {
			unit = tt.Unit
		}
		return dataset.Time(timestampToTime(c.Value(rowIdx), unit))
	default:
		return dataset.Null()
	}
}

func timestampToTime(ts arrow.Timestamp, unit arrow.TimeUnit) time.Time {
	switch unit {
	case arrow.Second:
		return time.Unix(int64(ts), 0).UTC()
	case arrow.Millisecond:
		return time.UnixMilli(int64(ts)).UTC()
	case arrow.Microsecond:
		return time.UnixMicro(int64(ts)).UTC()
	default:
		return time.Unix(0, int64(ts)).UTC()
	}
}

func parquetCompression(name string) compress.Compression {
	switch strings.ToLower(name) {
	case "zstd":
		return compress.Codecs.Zstd
	case "gzip":
		return compress.Codecs.Gzip
	case "none", "uncompressed":
		return compress.Codecs.Uncompressed
	default:
		return compress.Codecs.Snappy
	}
}
