package main

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/confluxdata/conflux/pkg/config"
	"github.com/confluxdata/conflux/pkg/connector/core"
	"github.com/confluxdata/conflux/pkg/connector/registry"
	"github.com/confluxdata/conflux/pkg/dataset"
	"github.com/confluxdata/conflux/pkg/framework"
	"github.com/confluxdata/conflux/pkg/logger"
	"github.com/confluxdata/conflux/pkg/pipeline"
	"github.com/confluxdata/conflux/pkg/transform"

	// Import all available connectors to register them
	_ "github.com/confluxdata/conflux/pkg/connector/jsonfile"
	_ "github.com/confluxdata/conflux/pkg/connector/parquet"
	_ "github.com/confluxdata/conflux/pkg/connector/sqlite"
)

var version = "0.1.0"

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:   "conflux",
		Short: "Conflux - configurable ETL pipelines over embedded storage backends",
	}

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Conflux v%s\n", version)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List available connector types",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("Available connector types:")
			for _, name := range registry.List() {
				fmt.Printf("  - %s\n", name)
			}
		},
	})

	var configFile, pipelineName, logLevel string
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the pipelines defined in a configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipelines(configFile, pipelineName, logLevel)
		},
	}
	runCmd.Flags().StringVarP(&configFile, "config", "c", "", "configuration file (required)")
	runCmd.Flags().StringVarP(&pipelineName, "pipeline", "p", "", "run only the named pipeline")
	runCmd.Flags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	_ = runCmd.MarkFlagRequired("config")
	root.AddCommand(runCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runPipelines(configFile, only, logLevel string) error {
	if err := logger.Init(logger.Config{Level: logLevel}); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	log := logger.Get()
	defer func() { _ = log.Sync() }()

	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}

	ctx := context.Background()
	fw := framework.New(log)

	for _, cc := range cfg.Connectors {
		c, err := registry.Create(cc, log)
		if err != nil {
			return fmt.Errorf("connector %q: %w", cc.Name, err)
		}
		fw.RegisterConnector(cc.Name, c)
		defer c.Disconnect()
	}

	var failed bool
	for _, pc := range cfg.Pipelines {
		if only != "" && pc.Name != only {
			continue
		}
		p, err := assemblePipeline(fw, pc)
		if err != nil {
			return err
		}

		ok := p.Run(ctx, extractParams(pc.Extract), loadParams(pc.Load))
		m := p.Metrics()
		if !ok && m.Status == pipeline.StatusFailed {
			failed = true
		}
		log.Info("pipeline finished",
			zap.String("pipeline", pc.Name),
			zap.String("status", string(m.Status)))
	}

	fmt.Println(fw.AllMetricsReport())

	if failed {
		os.Exit(1)
	}
	return nil
}

// assemblePipeline builds a registered pipeline from its configuration
func assemblePipeline(fw *framework.Framework, pc config.PipelineConfig) (*pipeline.Pipeline, error) {
	p := fw.CreatePipeline(pc.Name)

	if pc.Source != "" {
		src, ok := fw.Connector(pc.Source)
		if !ok {
			return nil, fmt.Errorf("pipeline %q: unknown source connector %q", pc.Name, pc.Source)
		}
		p.SetSource(src)
	}
	if pc.Target != "" {
		dst, ok := fw.Connector(pc.Target)
		if !ok {
			return nil, fmt.Errorf("pipeline %q: unknown target connector %q", pc.Name, pc.Target)
		}
		p.SetTarget(dst)
	}

	for i, sc := range pc.Steps {
		if err := addStep(p, sc); err != nil {
			return nil, fmt.Errorf("pipeline %q step %d: %w", pc.Name, i, err)
		}
	}
	return p, nil
}

func addStep(p *pipeline.Pipeline, sc config.StepConfig) error {
	switch sc.Type {
	case "filter":
		p.AddFilter(sc.Condition)
	case "aggregate":
		spec := make(transform.AggregationSpec, len(sc.Aggregations))
		for col, fn := range sc.Aggregations {
			f, err := transform.ParseAggregateFunc(fn)
			if err != nil {
				return err
			}
			spec[col] = f
		}
		p.AddAggregation(sc.GroupBy, spec)
	case "clean":
		opts, err := cleanOptions(sc.Clean)
		if err != nil {
			return err
		}
		p.AddClean(opts)
	case "compute":
		cols := make([]transform.ComputedColumn, len(sc.Columns))
		for i, cc := range sc.Columns {
			cols[i] = transform.ComputedColumn{Name: cc.Name, Expression: cc.Expression}
		}
		p.AddComputedColumns(cols)
	default:
		return fmt.Errorf("unknown step type %q", sc.Type)
	}
	return nil
}

func cleanOptions(cc *config.CleanConfig) (transform.CleanOptions, error) {
	opts := transform.CleanOptions{
		RemoveDuplicates: cc.RemoveDuplicates,
		DropNulls:        cc.DropNulls,
	}
	if cc.FillValue != nil {
		v := dataset.String(*cc.FillValue)
		opts.FillValue = &v
	}
	if len(cc.Coercions) > 0 {
		opts.Coercions = make(map[string]dataset.Kind, len(cc.Coercions))
		for col, kind := range cc.Coercions {
			k, err := dataset.ParseKind(kind)
			if err != nil {
				return opts, err
			}
			opts.Coercions[col] = k
		}
	}
	return opts, nil
}

func extractParams(ec config.ExtractConfig) core.ExtractParams {
	return core.ExtractParams{
		Query: ec.Query,
		Table: ec.Table,
		File:  ec.File,
		Limit: ec.Limit,
	}
}

func loadParams(lc config.LoadConfig) core.LoadParams {
	return core.LoadParams{
		Destination: lc.Destination,
		Mode:        core.WriteMode(lc.Mode),
		Compression: lc.Compression,
	}
}
