package parquet

import (
	"go.uber.org/zap"

	"github.com/confluxdata/conflux/pkg/config"
	"github.com/confluxdata/conflux/pkg/connector/core"
	"github.com/confluxdata/conflux/pkg/connector/registry"
	"github.com/confluxdata/conflux/pkg/errors"
)

func init() {
	_ = registry.Register("parquet", func(cfg config.ConnectorConfig, log *zap.Logger) (core.Connector, error) {
		if cfg.Path == "" {
			return nil, errors.New(errors.ErrorTypeConfig, "parquet connector requires a path")
		}
		return New(cfg.Name, cfg.Path, log), nil
	})
}
