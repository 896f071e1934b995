// Package config provides configuration loading for Conflux. Connector and
// pipeline definitions are YAML with ${VAR} environment substitution.
package config

import (
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/confluxdata/conflux/pkg/errors"
)

// ConnectorConfig declares one connector instance
type ConnectorConfig struct {
	// Name is the registration name in the framework
	Name string `yaml:"name"`
	// Type selects the connector factory (sqlite, parquet, json)
	Type string `yaml:"type"`
	// Path is the database file or base directory, backend dependent
	Path string `yaml:"path"`
	// Options carries backend-specific settings
	Options map[string]string `yaml:"options,omitempty"`
}

// CleanConfig mirrors transform.CleanOptions in configuration form
type CleanConfig struct {
	RemoveDuplicates bool              `yaml:"remove_duplicates"`
	FillValue        *string           `yaml:"fill_value,omitempty"`
	DropNulls        bool              `yaml:"drop_nulls"`
	Coercions        map[string]string `yaml:"coercions,omitempty"`
}

// ComputedColumnConfig declares one computed column. A list preserves the
// declaration order, which matters when later columns reference earlier
// ones.
type ComputedColumnConfig struct {
	Name       string `yaml:"name"`
	Expression string `yaml:"expression"`
}

// StepConfig declares one pipeline step
type StepConfig struct {
	// Type is one of filter, aggregate, clean, compute
	Type string `yaml:"type"`
	// Condition is the filter expression (filter steps)
	Condition string `yaml:"condition,omitempty"`
	// GroupBy and Aggregations configure aggregate steps
	GroupBy      []string          `yaml:"group_by,omitempty"`
	Aggregations map[string]string `yaml:"aggregations,omitempty"`
	// Clean configures clean steps
	Clean *CleanConfig `yaml:"clean,omitempty"`
	// Columns configures compute steps
	Columns []ComputedColumnConfig `yaml:"columns,omitempty"`
}

// ExtractConfig carries the extraction selector for a pipeline run
type ExtractConfig struct {
	Query string `yaml:"query,omitempty"`
	Table string `yaml:"table,omitempty"`
	File  string `yaml:"file,omitempty"`
	Limit int    `yaml:"limit,omitempty"`
}

// LoadConfig carries the load destination for a pipeline run
type LoadConfig struct {
	Destination string `yaml:"destination"`
	Mode        string `yaml:"mode,omitempty"`
	Compression string `yaml:"compression,omitempty"`
}

// PipelineConfig declares one pipeline
type PipelineConfig struct {
	Name    string        `yaml:"name"`
	Source  string        `yaml:"source"`
	Target  string        `yaml:"target,omitempty"`
	Extract ExtractConfig `yaml:"extract"`
	Load    LoadConfig    `yaml:"load,omitempty"`
	Steps   []StepConfig  `yaml:"steps,omitempty"`
}

// FileConfig is the root of a configuration file
type FileConfig struct {
	Connectors []ConnectorConfig `yaml:"connectors"`
	Pipelines  []PipelineConfig  `yaml:"pipelines"`
}

// Load reads a YAML configuration file, substituting ${VAR} references
// with environment variable values.
func Load(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is operator supplied
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to read config file")
	}

	content := substituteEnvVars(string(data))

	var cfg FileConfig
	if err := yaml.Unmarshal([]byte(content), &cfg); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to parse YAML")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-references and required fields
func (c *FileConfig) Validate() error {
	connectors := map[string]struct{}{}
	for i, cc := range c.Connectors {
		if cc.Name == "" {
			return errors.Newf(errors.ErrorTypeConfig, "connector %d: missing name", i)
		}
		if cc.Type == "" {
			return errors.Newf(errors.ErrorTypeConfig, "connector %q: missing type", cc.Name)
		}
		connectors[cc.Name] = struct{}{}
	}
	for i, pc := range c.Pipelines {
		if pc.Name == "" {
			return errors.Newf(errors.ErrorTypeConfig, "pipeline %d: missing name", i)
		}
		if pc.Source != "" {
			if _, ok := connectors[pc.Source]; !ok {
				return errors.Newf(errors.ErrorTypeConfig,
					"pipeline %q: unknown source connector %q", pc.Name, pc.Source)
			}
		}
		if pc.Target != "" {
			if _, ok := connectors[pc.Target]; !ok {
				return errors.Newf(errors.ErrorTypeConfig,
					"pipeline %q: unknown target connector %q", pc.Name, pc.Target)
			}
		}
		for j, sc := range pc.Steps {
			switch sc.Type {
			case "filter":
				if sc.Condition == "" {
					return errors.Newf(errors.ErrorTypeConfig,
						"pipeline %q step %d: filter requires a condition", pc.Name, j)
				}
			case "aggregate":
				if len(sc.GroupBy) == 0 || len(sc.Aggregations) == 0 {
					return errors.Newf(errors.ErrorTypeConfig,
						"pipeline %q step %d: aggregate requires group_by and aggregations", pc.Name, j)
				}
			case "clean":
				if sc.Clean == nil {
					return errors.Newf(errors.ErrorTypeConfig,
						"pipeline %q step %d: clean requires options", pc.Name, j)
				}
			case "compute":
				if len(sc.Columns) == 0 {
					return errors.Newf(errors.ErrorTypeConfig,
						"pipeline %q step %d: compute requires columns", pc.Name, j)
				}
			default:
				return errors.Newf(errors.ErrorTypeConfig,
					"pipeline %q step %d: unknown step type %q", pc.Name, j, sc.Type)
			}
		}
	}
	return nil
}

// substituteEnvVars replaces ${VAR_NAME} with environment variable values
func substituteEnvVars(content string) string {
	for {
		start := strings.Index(content, "${")
		if start == -1 {
			break
		}
		end := strings.Index(content[start:], "}")
		if end == -1 {
			break
		}
		end += start

		varName := content[start+2 : end]
		envValue := os.Getenv(varName)
		content = content[:start] + envValue + content[end+1:]
	}
	return content
}
