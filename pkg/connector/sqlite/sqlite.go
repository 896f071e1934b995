// Package sqlite implements the relational-table connector backed by an
// embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite" // SQLite driver (pure Go)

	"github.com/confluxdata/conflux/pkg/connector/core"
	"github.com/confluxdata/conflux/pkg/dataset"
	"github.com/confluxdata/conflux/pkg/logger"
)

// Connector reads and writes SQLite tables. The *sql.DB handle is owned
// exclusively by the connector.
type Connector struct {
	name string
	path string
	db   *sql.DB
	log  *zap.Logger
}

// New creates a SQLite connector for the database file at path. The
// connection is established lazily on first use.
func New(name, path string, log *zap.Logger) *Connector {
	if log == nil {
		log = logger.Get()
	}
	return &Connector{
		name: name,
		path: path,
		log: log.With(
			zap.String("connector", name),
			zap.String("type", "sqlite")),
	}
}

// Name returns the connector instance name
func (c *Connector) Name() string { return c.name }

// Connected reports whether a database handle is open
func (c *Connector) Connected() bool { return c.db != nil }

// Connect opens the database. Idempotent when already connected.
func (c *Connector) Connect(ctx context.Context) bool {
	if c.db != nil {
		return true
	}
	db, err := sql.Open("sqlite", c.path)
	if err != nil {
		c.log.Error("failed to open database", zap.String("path", c.path), zap.Error(err))
		return false
	}
	if err := db.PingContext(ctx); err != nil {
		c.log.Error("failed to reach database", zap.String("path", c.path), zap.Error(err))
		_ = db.Close()
		return false
	}
	c.db = db
	c.log.Info("connected", zap.String("path", c.path))
	return true
}

// Disconnect closes the database handle. Safe when not connected.
func (c *Connector) Disconnect() {
	if c.db != nil {
		_ = c.db.Close()
		c.db = nil
		c.log.Info("disconnected")
	}
}

// Extract reads rows selected by Query, or all rows of Table. With no
// selector it logs the available tables and returns an empty dataset.
// Any failure is logged and surfaces as an empty dataset.
func (c *Connector) Extract(ctx context.Context, params core.ExtractParams) *dataset.Dataset {
	if !c.Connect(ctx) {
		return dataset.Empty()
	}

	query := params.Query
	if query == "" {
		if params.Table == "" {
			c.log.Warn("no query or table given", zap.Strings("available_tables", c.tableNames(ctx)))
			return dataset.Empty()
		}
		query = "SELECT * FROM " + quoteIdent(params.Table)
		if params.Limit > 0 {
			query += " LIMIT " + strconv.Itoa(params.Limit)
		}
	}

	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		c.log.Error("extraction failed", zap.String("query", query), zap.Error(err))
		return dataset.Empty()
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		c.log.Error("extraction failed", zap.Error(err))
		return dataset.Empty()
	}
	colTypes, _ := rows.ColumnTypes()

	b := dataset.NewBuilder(columns)
	raw := make([]interface{}, len(columns))
	ptrs := make([]interface{}, len(columns))
	for i := range raw {
		ptrs[i] = &raw[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			c.log.Error("extraction failed while scanning", zap.Error(err))
			return dataset.Empty()
		}
		row := make([]dataset.Value, len(columns))
		for i, v := range raw {
			row[i] = decodeValue(v, declaredType(colTypes, i))
		}
		b.AppendRow(row)
		if params.Limit > 0 && b.Len() >= params.Limit {
			break
		}
	}
	if err := rows.Err(); err != nil {
		c.log.Error("extraction failed", zap.Error(err))
		return dataset.Empty()
	}

	out, err := b.Build()
	if err != nil {
		c.log.Error("extraction produced invalid dataset", zap.Error(err))
		return dataset.Empty()
	}
	c.log.Info("extraction complete", zap.String("query", query), zap.Int("rows", out.NumRows()))
	return out
}

// Load writes the dataset into the destination table, creating it when
// absent. Overwrite mode drops and recreates the table. All rows are
// written in one transaction; true means every row committed.
func (c *Connector) Load(ctx context.Context, data *dataset.Dataset, params core.LoadParams) bool {
	if !c.Connect(ctx) {
		return false
	}
	if params.Destination == "" {
		c.log.Error("load failed: no destination table")
		return false
	}
	if data.NumColumns() == 0 {
		c.log.Error("load failed: dataset has no columns")
		return false
	}

	table := quoteIdent(params.Destination)

	if params.Mode == core.WriteOverwrite {
		if _, err := c.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
			c.log.Error("load failed dropping table", zap.Error(err))
			return false
		}
	}

	if _, err := c.db.ExecContext(ctx, createTableSQL(table, data)); err != nil {
		c.log.Error("load failed creating table", zap.Error(err))
		return false
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		c.log.Error("load failed starting transaction", zap.Error(err))
		return false
	}

	stmt, err := tx.PrepareContext(ctx, insertSQL(table, data.Columns()))
	if err != nil {
		_ = tx.Rollback()
		c.log.Error("load failed preparing insert", zap.Error(err))
		return false
	}
	defer stmt.Close()

	for i := 0; i < data.NumRows(); i++ {
		args := make([]interface{}, data.NumColumns())
		for j, v := range data.Row(i) {
			args[j] = encodeValue(v)
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			_ = tx.Rollback()
			c.log.Error("load failed inserting row", zap.Int("row", i), zap.Error(err))
			return false
		}
	}

	if err := tx.Commit(); err != nil {
		c.log.Error("load failed committing", zap.Error(err))
		return false
	}

	c.log.Info("load complete",
		zap.String("table", params.Destination),
		zap.Int("rows", data.NumRows()))
	return true
}

// tableNames lists the user tables in the database
func (c *Connector) tableNames(ctx context.Context) []string {
	rows, err := c.db.QueryContext(ctx,
		"SELECT name FROM sqlite_master WHERE type='table' ORDER BY name")
	if err != nil {
		return nil
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err == nil {
			names = append(names, name)
		}
	}
	return names
}

func createTableSQL(table string, data *dataset.Dataset) string {
	var sb strings.Builder
	sb.WriteString("CREATE TABLE IF NOT EXISTS ")
	sb.WriteString(table)
	sb.WriteString(" (")
	for i, col := range data.Columns() {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(quoteIdent(col))
		sb.WriteByte(' ')
		sb.WriteString(sqlType(data.ColumnKind(col)))
	}
	sb.WriteString(")")
	return sb.String()
}

func insertSQL(table string, columns []string) string {
	var sb strings.Builder
	sb.WriteString("INSERT INTO ")
	sb.WriteString(table)
	sb.WriteString(" (")
	for i, col := range columns {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(quoteIdent(col))
	}
	sb.WriteString(") VALUES (")
	for i := range columns {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteByte('?')
	}
	sb.WriteString(")")
	return sb.String()
}

// sqlType maps a dataset kind onto a SQLite column declaration. Timestamps
// are stored as RFC3339 TEXT and booleans as INTEGER; the declared type
// name lets extraction restore the original kind.
func sqlType(kind dataset.Kind) string {
	switch kind {
	case dataset.KindInt:
		return "INTEGER"
	case dataset.KindFloat:
		return "REAL"
	case dataset.KindBool:
		return "BOOLEAN"
	case dataset.KindTime:
		return "TIMESTAMP"
	default:
		return "TEXT"
	}
}

func encodeValue(v dataset.Value) interface{} {
	switch v.Kind() {
	case dataset.KindBool:
		b, _ := v.Boolean()
		if b {
			return int64(1)
		}
		return int64(0)
	case dataset.KindTime:
		t, _ := v.Timestamp()
		return t.UTC().Format(time.RFC3339Nano)
	default:
		return v.Any()
	}
}

// decodeValue restores a Value from a driver value, consulting the
// column's declared type to recover booleans and timestamps.
func decodeValue(v interface{}, declared string) dataset.Value {
	if v == nil {
		return dataset.Null()
	}
	switch declared {
	case "BOOLEAN":
		if i, ok := v.(int64); ok {
			return dataset.Bool(i != 0)
		}
	case "TIMESTAMP", "DATETIME", "DATE":
		switch x := v.(type) {
		case time.Time:
			return dataset.Time(x)
		case string:
			if t, err := time.Parse(time.RFC3339Nano, x); err == nil {
				return dataset.Time(t)
			}
		case []byte:
			if t, err := time.Parse(time.RFC3339Nano, string(x)); err == nil {
				return dataset.Time(t)
			}
		}
	}
	return dataset.FromAny(v)
}

func declaredType(colTypes []*sql.ColumnType, i int) string {
	if i < len(colTypes) && colTypes[i] != nil {
		return strings.ToUpper(colTypes[i].DatabaseTypeName())
	}
	return ""
}

// quoteIdent quotes an identifier for use in SQL
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
