// Package framework provides the named catalog of connectors and
// pipelines, plus read-only reporting views over them.
package framework

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"go.uber.org/zap"

	"github.com/confluxdata/conflux/pkg/connector/core"
	"github.com/confluxdata/conflux/pkg/logger"
	"github.com/confluxdata/conflux/pkg/pipeline"
)

// Framework maps names to connectors and pipelines. Registration
// overwrites silently on name collision. Safe for concurrent use; a
// single pipeline must still not be run concurrently with itself.
type Framework struct {
	mu         sync.RWMutex
	connectors map[string]core.Connector
	pipelines  map[string]*pipeline.Pipeline
	log        *zap.Logger
}

// New creates an empty framework
func New(log *zap.Logger) *Framework {
	if log == nil {
		log = logger.Get()
	}
	return &Framework{
		connectors: make(map[string]core.Connector),
		pipelines:  make(map[string]*pipeline.Pipeline),
		log:        log.With(zap.String("component", "framework")),
	}
}

// RegisterConnector adds a connector under name, replacing any existing one
func (f *Framework) RegisterConnector(name string, c core.Connector) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connectors[name] = c
	f.log.Info("connector registered", zap.String("name", name))
}

// Connector returns the connector registered under name
func (f *Framework) Connector(name string) (core.Connector, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	c, ok := f.connectors[name]
	return c, ok
}

// CreatePipeline creates and registers a pipeline under name, replacing
// any existing one, and returns it for builder chaining.
func (f *Framework) CreatePipeline(name string) *pipeline.Pipeline {
	p := pipeline.New(name, f.log)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pipelines[name] = p
	f.log.Info("pipeline created", zap.String("name", name))
	return p
}

// Pipeline returns the pipeline registered under name
func (f *Framework) Pipeline(name string) (*pipeline.Pipeline, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	p, ok := f.pipelines[name]
	return p, ok
}

// RemovePipeline deletes the pipeline registered under name
func (f *Framework) RemovePipeline(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.pipelines[name]; !ok {
		return false
	}
	delete(f.pipelines, name)
	f.log.Info("pipeline removed", zap.String("name", name))
	return true
}

// RunPipeline runs the named pipeline, returning false when absent
func (f *Framework) RunPipeline(ctx context.Context, name string, extract core.ExtractParams, load core.LoadParams) bool {
	f.mu.RLock()
	p, ok := f.pipelines[name]
	f.mu.RUnlock()
	if !ok {
		f.log.Error("pipeline not found", zap.String("name", name))
		return false
	}
	return p.Run(ctx, extract, load)
}

// ConnectorNames returns the registered connector names, sorted
func (f *Framework) ConnectorNames() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	names := make([]string, 0, len(f.connectors))
	for name := range f.connectors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PipelineNames returns the registered pipeline names, sorted
func (f *Framework) PipelineNames() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	names := make([]string, 0, len(f.pipelines))
	for name := range f.pipelines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ConnectorsReport renders the registered connectors as a table
func (f *Framework) ConnectorsReport() string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	t := newReportTable("Registered Connectors")
	t.AppendHeader(table.Row{"Name", "Connected"})
	for _, name := range sortedKeys(f.connectors) {
		t.AppendRow(table.Row{name, f.connectors[name].Connected()})
	}
	return t.Render()
}

// PipelinesReport renders the registered pipelines and their status
func (f *Framework) PipelinesReport() string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	t := newReportTable("Registered Pipelines")
	t.AppendHeader(table.Row{"Name", "Status", "Steps"})
	for _, name := range sortedKeys(f.pipelines) {
		p := f.pipelines[name]
		t.AppendRow(table.Row{name, string(p.Status()), p.NumSteps()})
	}
	return t.Render()
}

// MetricsReport renders the last-run metrics of the named pipeline.
// An unknown name renders an empty table.
func (f *Framework) MetricsReport(name string) string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	t := newReportTable("Pipeline Metrics: " + name)
	t.AppendHeader(metricsHeader())
	if p, ok := f.pipelines[name]; ok {
		t.AppendRow(metricsRow(name, p.Metrics()))
	}
	return t.Render()
}

// AllMetricsReport renders one metrics row per registered pipeline
func (f *Framework) AllMetricsReport() string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	t := newReportTable("Pipeline Metrics")
	t.AppendHeader(metricsHeader())
	for _, name := range sortedKeys(f.pipelines) {
		t.AppendRow(metricsRow(name, f.pipelines[name].Metrics()))
	}
	return t.Render()
}

func newReportTable(title string) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.SetTitle(title)
	return t
}

func metricsHeader() table.Row {
	return table.Row{"Pipeline", "Status", "Rows Extracted", "Rows Loaded", "Duration", "Start", "End"}
}

func metricsRow(name string, m pipeline.Metrics) table.Row {
	start, end := "", ""
	if !m.StartTime.IsZero() {
		start = m.StartTime.Format("2006-01-02 15:04:05")
	}
	if !m.EndTime.IsZero() {
		end = m.EndTime.Format("2006-01-02 15:04:05")
	}
	return table.Row{name, string(m.Status), m.RowsExtracted, m.RowsLoaded, m.Duration().Round(time.Millisecond).String(), start, end}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
