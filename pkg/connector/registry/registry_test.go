package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/confluxdata/conflux/pkg/config"
	"github.com/confluxdata/conflux/pkg/connector/core"
	"github.com/confluxdata/conflux/pkg/dataset"
	"github.com/confluxdata/conflux/pkg/errors"
)

type nullConnector struct{ name string }

func (n *nullConnector) Name() string                 { return n.name }
func (n *nullConnector) Connected() bool              { return false }
func (n *nullConnector) Connect(context.Context) bool { return true }
func (n *nullConnector) Disconnect()                  {}
func (n *nullConnector) Extract(context.Context, core.ExtractParams) *dataset.Dataset {
	return dataset.Empty()
}
func (n *nullConnector) Load(context.Context, *dataset.Dataset, core.LoadParams) bool {
	return true
}

func nullFactory(cfg config.ConnectorConfig, _ *zap.Logger) (core.Connector, error) {
	return &nullConnector{name: cfg.Name}, nil
}

func TestRegisterAndCreate(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.Register("null", nullFactory))
	assert.True(t, r.Has("null"))
	assert.Equal(t, []string{"null"}, r.List())

	c, err := r.Create(config.ConnectorConfig{Name: "inst", Type: "null"}, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "inst", c.Name())
}

func TestRegisterDuplicate(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("null", nullFactory))
	err := r.Register("null", nullFactory)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestCreateUnknownType(t *testing.T) {
	r := NewRegistry()
	_, err := r.Create(config.ConnectorConfig{Name: "x", Type: "ghost"}, zap.NewNop())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
}

func TestCreateFactoryError(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("broken", func(config.ConnectorConfig, *zap.Logger) (core.Connector, error) {
		return nil, errors.New(errors.ErrorTypeConfig, "missing path")
	}))

	_, err := r.Create(config.ConnectorConfig{Name: "x", Type: "broken"}, zap.NewNop())
	assert.Error(t, err)
}

func TestClear(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("null", nullFactory))
	r.Clear()
	assert.False(t, r.Has("null"))
	assert.Empty(t, r.List())
}
