// Package jsonfile implements the document-file connector. Documents are
// JSON arrays of flat objects under a base directory, optionally
// gzip-compressed.
package jsonfile

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	gojson "github.com/goccy/go-json"
	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"

	"github.com/confluxdata/conflux/pkg/connector/core"
	"github.com/confluxdata/conflux/pkg/dataset"
	"github.com/confluxdata/conflux/pkg/errors"
	"github.com/confluxdata/conflux/pkg/logger"
)

// Connector reads and writes JSON document files under a base directory
type Connector struct {
	name      string
	baseDir   string
	connected bool
	log       *zap.Logger
}

// New creates a JSON connector rooted at baseDir
func New(name, baseDir string, log *zap.Logger) *Connector {
	if log == nil {
		log = logger.Get()
	}
	return &Connector{
		name:    name,
		baseDir: baseDir,
		log: log.With(
			zap.String("connector", name),
			zap.String("type", "json")),
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

// Extract reads the named document into a dataset. Column names are the
// union of object keys, sorted; integral numbers decode as integers and
// RFC3339 strings as timestamps. Failures surface as an empty dataset.
func (c *Connector) Extract(ctx context.Context, params core.ExtractParams) *dataset.Dataset {
	if !c.Connect(ctx) {
		return dataset.Empty()
	}
	if params.File == "" {
		c.log.Warn("no file given", zap.Strings("available_files", c.ListFiles()))
		return dataset.Empty()
	}

	path := c.resolve(params.File, "")
	out, err := c.readFile(path, params.Limit)
	if err != nil {
		c.log.Error("extraction failed", zap.String("file", path), zap.Error(err))
		return dataset.Empty()
	}
	c.log.Info("extraction complete", zap.String("file", params.File), zap.Int("rows", out.NumRows()))
	return out
}

// Load writes the dataset as a JSON array of objects. Append mode merges
// with the existing document. Compression "gzip" writes a .gz file.
func (c *Connector) Load(ctx context.Context, data *dataset.Dataset, params core.LoadParams) bool {
	if !c.Connect(ctx) {
		return false
	}
	if params.Destination == "" {
		c.log.Error("load failed: no destination file")
		return false
	}

	path := c.resolve(params.Destination, params.Compression)

	docs := toDocuments(data)
	if params.Mode != core.WriteOverwrite {
		if _, err := os.Stat(path); err == nil {
			existing, err := c.readDocuments(path)
			if err != nil {
				c.log.Error("load failed reading existing document for append", zap.Error(err))
				return false
			}
			docs = append(existing, docs...)
		}
	}

	if err := c.writeDocuments(path, docs); err != nil {
		c.log.Error("load failed", zap.String("file", path), zap.Error(err))
		return false
	}

	c.log.Info("load complete",
		zap.String("file", params.Destination),
		zap.Int("rows", data.NumRows()))
	return true
}

// ListFiles returns the JSON document names under the base directory
func (c *Connector) ListFiles() []string {
	entries, err := os.ReadDir(c.baseDir)
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasSuffix(e.Name(), ".json") || strings.HasSuffix(e.Name(), ".json.gz") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names
}

// resolve joins a file name with the base directory, defaulting the .json
// extension and appending .gz when gzip compression is requested.
func (c *Connector) resolve(name, compression string) string {
	if filepath.Ext(name) == "" {
		name += ".json"
	}
	if strings.EqualFold(compression, "gzip") && !strings.HasSuffix(name, ".gz") {
		name += ".gz"
	}
	return filepath.Join(c.baseDir, name)
}

func (c *Connector) readFile(path string, limit int) (*dataset.Dataset, error) {
	docs, err := c.readDocuments(path)
	if err != nil {
		// A plain name may refer to a compressed document
		if !strings.HasSuffix(path, ".gz") {
			if alt, altErr := c.readDocuments(path + ".gz"); altErr == nil {
				docs = alt
				err = nil
			}
		}
		if err != nil {
			return nil, err
		}
	}

	if limit > 0 && len(docs) > limit {
		docs = docs[:limit]
	}

	// Columns are the sorted union of keys
	keySet := map[string]struct{}{}
	for _, doc := range docs {
		for k := range doc {
			keySet[k] = struct{}{}
		}
	}
	columns := make([]string, 0, len(keySet))
	for k := range keySet {
		columns = append(columns, k)
	}
	sort.Strings(columns)

	b := dataset.NewBuilder(columns)
	for _, doc := range docs {
		row := make([]dataset.Value, len(columns))
		for i, col := range columns {
			row[i] = decodeValue(doc[col])
		}
		b.AppendRow(row)
	}
	return b.Build()
}

func (c *Connector) readDocuments(path string) ([]map[string]interface{}, error) {
	f, err := os.Open(path) //nolint:gosec // G304: path is rooted in the base directory
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to open document")
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to open gzip document")
		}
		defer gz.Close()
		r = gz
	}

	dec := gojson.NewDecoder(r)
	dec.UseNumber()

	var docs []map[string]interface{}
	if err := dec.Decode(&docs); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to decode document")
	}
	return docs, nil
}

func (c *Connector) writeDocuments(path string, docs []map[string]interface{}) error {
	f, err := os.Create(path) //nolint:gosec // G304: path is rooted in the base directory
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to create document")
	}

	var w io.Writer = f
	var gz *gzip.Writer
	if strings.HasSuffix(path, ".gz") {
		gz = gzip.NewWriter(f)
		w = gz
	}

	enc := gojson.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(docs); err != nil {
		if gz != nil {
			_ = gz.Close()
		}
		_ = f.Close()
		return errors.Wrap(err, errors.ErrorTypeLoad, "failed to encode document")
	}

	if gz != nil {
		if err := gz.Close(); err != nil {
			_ = f.Close()
			return errors.Wrap(err, errors.ErrorTypeLoad, "failed to flush gzip stream")
		}
	}
	if err := f.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeLoad, "failed to close document")
	}
	return nil
}

func toDocuments(data *dataset.Dataset) []map[string]interface{} {
	columns := data.Columns()
	docs := make([]map[string]interface{}, data.NumRows())
	for i := 0; i < data.NumRows(); i++ {
		doc := make(map[string]interface{}, len(columns))
		for j, col := range columns {
			doc[col] = encodeValue(data.Row(i)[j])
		}
		docs[i] = doc
	}
	return docs
}

func encodeValue(v dataset.Value) interface{} {
	if t, ok := v.Timestamp(); ok {
		return t.UTC().Format(time.RFC3339Nano)
	}
	return v.Any()
}

// decodeValue restores the richest scalar from a decoded JSON value:
// integral numbers become integers and RFC3339 strings become timestamps.
func decodeValue(v interface{}) dataset.Value {
	switch x := v.(type) {
	case nil:
		return dataset.Null()
	case bool:
		return dataset.Bool(x)
	case gojson.Number:
		if i, err := x.Int64(); err == nil {
			return dataset.Int(i)
		}
		if f, err := x.Float64(); err == nil {
			return dataset.Float(f)
		}
		return dataset.String(x.String())
	case string:
		if t, err := time.Parse(time.RFC3339Nano, x); err == nil {
			return dataset.Time(t)
		}
		return dataset.String(x)
	default:
		return dataset.FromAny(v)
	}
}
