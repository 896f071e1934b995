// Package pipeline executes the extract, transform, load cycle. A Pipeline
// binds one source connector, one optional target connector, and an ordered
// list of steps, and records Metrics for every run.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/confluxdata/conflux/pkg/connector/core"
	"github.com/confluxdata/conflux/pkg/dataset"
	"github.com/confluxdata/conflux/pkg/logger"
	"github.com/confluxdata/conflux/pkg/transform"
)

// Status is the lifecycle state of a pipeline
type Status string

const (
	StatusPending Status = "PENDING"
	StatusRunning Status = "RUNNING"
	StatusSuccess Status = "SUCCESS"
	StatusWarning Status = "WARNING"
	StatusFailed  Status = "FAILED"
)

// Metrics is the per-run bookkeeping record. One record exists per
// pipeline and is overwritten at the start of each run.
type Metrics struct {
	RunID         string
	Status        Status
	StartTime     time.Time
	EndTime       time.Time
	RowsExtracted int
	RowsLoaded    int
}

// Duration returns end minus start once both timestamps are set
func (m Metrics) Duration() time.Duration {
	if m.StartTime.IsZero() || m.EndTime.IsZero() {
		return 0
	}
	return m.EndTime.Sub(m.StartTime)
}

// TransformFunc is an injected whole-dataset transformation step
type TransformFunc func(*dataset.Dataset) *dataset.Dataset

type stepKind int

const (
	stepTransform stepKind = iota
	stepFilter
	stepAggregate
	stepClean
	stepCompute
)

func (k stepKind) String() string {
	switch k {
	case stepTransform:
		return "transform"
	case stepFilter:
		return "filter"
	case stepAggregate:
		return "aggregate"
	case stepClean:
		return "clean"
	case stepCompute:
		return "compute"
	default:
		return "unknown"
	}
}

// step is a tagged variant; exactly the payload for its kind is set
type step struct {
	kind      stepKind
	fn        TransformFunc
	condition string
	groupBy   []string
	aggSpec   transform.AggregationSpec
	clean     transform.CleanOptions
	computed  []transform.ComputedColumn
}

// Pipeline is the ETL execution unit. Connector references are shared,
// not owned; the pipeline never manages connector lifecycle. Not safe
// for concurrent use.
type Pipeline struct {
	name    string
	source  core.Connector
	target  core.Connector
	steps   []step
	metrics Metrics
	tf      *transform.Transformer
	log     *zap.Logger
}

// New creates a pipeline with no source, target, or steps. Such a
// pipeline is valid to construct but fails at Run.
func New(name string, log *zap.Logger) *Pipeline {
	if log == nil {
		log = logger.Get()
	}
	log = log.With(zap.String("pipeline", name))
	return &Pipeline{
		name:    name,
		metrics: Metrics{Status: StatusPending},
		tf:      transform.New(log),
		log:     log,
	}
}

// Name returns the pipeline name
func (p *Pipeline) Name() string { return p.name }

// SetSource attaches the source connector
func (p *Pipeline) SetSource(c core.Connector) *Pipeline {
	p.source = c
	return p
}

// SetTarget attaches the target connector
func (p *Pipeline) SetTarget(c core.Connector) *Pipeline {
	p.target = c
	return p
}

// AddTransformation appends an injected dataset transformation step
func (p *Pipeline) AddTransformation(fn TransformFunc) *Pipeline {
	p.steps = append(p.steps, step{kind: stepTransform, fn: fn})
	return p
}

// AddFilter appends a row filter step with a boolean condition over columns
func (p *Pipeline) AddFilter(condition string) *Pipeline {
	p.steps = append(p.steps, step{kind: stepFilter, condition: condition})
	return p
}

// AddAggregation appends a group-by aggregation step
func (p *Pipeline) AddAggregation(groupBy []string, spec transform.AggregationSpec) *Pipeline {
	p.steps = append(p.steps, step{kind: stepAggregate, groupBy: groupBy, aggSpec: spec})
	return p
}

// AddClean appends a data cleaning step
func (p *Pipeline) AddClean(opts transform.CleanOptions) *Pipeline {
	p.steps = append(p.steps, step{kind: stepClean, clean: opts})
	return p
}

// AddComputedColumns appends a step deriving new columns from expressions
func (p *Pipeline) AddComputedColumns(cols []transform.ComputedColumn) *Pipeline {
	p.steps = append(p.steps, step{kind: stepCompute, computed: cols})
	return p
}

// NumSteps returns the number of steps appended so far
func (p *Pipeline) NumSteps() int { return len(p.steps) }

// Metrics returns a copy of the current metrics record
func (p *Pipeline) Metrics() Metrics { return p.metrics }

// Status returns the current lifecycle state
func (p *Pipeline) Status() Status { return p.metrics.Status }

// Run executes extract, the step list in order, then load. It returns
// true only on SUCCESS. An extraction yielding zero rows ends the run
// with WARNING before any step executes; a load failure or a missing
// source ends it with FAILED. The end timestamp is recorded on every
// exit path.
func (p *Pipeline) Run(ctx context.Context, extract core.ExtractParams, load core.LoadParams) bool {
	p.metrics = Metrics{
		RunID:     uuid.NewString(),
		Status:    StatusRunning,
		StartTime: time.Now(),
	}
	defer func() {
		p.metrics.EndTime = time.Now()
	}()

	log := p.log.With(zap.String("run_id", p.metrics.RunID))
	log.Info("pipeline started")

	if p.source == nil {
		p.metrics.Status = StatusFailed
		log.Error("pipeline failed: no source connector set")
		return false
	}

	data := p.source.Extract(ctx, extract)
	if data.NumRows() == 0 {
		p.metrics.RowsExtracted = 0
		p.metrics.Status = StatusWarning
		log.Warn("pipeline completed with warning: extraction returned no rows")
		return false
	}
	p.metrics.RowsExtracted = data.NumRows()
	log.Info("extraction complete", zap.Int("rows", data.NumRows()))

	for i, s := range p.steps {
		data = p.applyStep(data, s, i, log)
	}

	if p.target != nil {
		if !p.target.Load(ctx, data, load) {
			p.metrics.Status = StatusFailed
			log.Error("pipeline failed: load returned false")
			return false
		}
		p.metrics.RowsLoaded = data.NumRows()
	}

	p.metrics.Status = StatusSuccess
	log.Info("pipeline succeeded",
		zap.Int("rows_extracted", p.metrics.RowsExtracted),
		zap.Int("rows_loaded", p.metrics.RowsLoaded))
	return true
}

// applyStep runs one step, failing soft: a panicking injected transform
// leaves the working dataset unchanged.
func (p *Pipeline) applyStep(data *dataset.Dataset, s step, i int, log *zap.Logger) (out *dataset.Dataset) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("transformation step panicked, keeping dataset unchanged",
				zap.Int("step", i),
				zap.String("kind", s.kind.String()),
				zap.Any("panic", r))
			out = data
		}
	}()

	switch s.kind {
	case stepTransform:
		if s.fn == nil {
			return data
		}
		if res := s.fn(data); res != nil {
			return res
		}
		log.Error("transformation step returned nil, keeping dataset unchanged", zap.Int("step", i))
		return data
	case stepFilter:
		return p.tf.Filter(data, s.condition)
	case stepAggregate:
		return p.tf.Aggregate(data, s.groupBy, s.aggSpec)
	case stepClean:
		return p.tf.Clean(data, s.clean)
	case stepCompute:
		return p.tf.AddComputedColumns(data, s.computed)
	default:
		return data
	}
}
