package otel

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/myplaces/placemap/internal/config"
)

func TestNew_Disabled(t *testing.T) {
	p, err := New(config.OTelConfig{}, nil)
	require.NoError(t, err)
	assert.False(t, p.Enabled())
	assert.Nil(t, p.LoggerProvider())
	assert.NoError(t, p.Flush(context.Background()))
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestNew_EnabledWithoutSink(t *testing.T) {
	_, err := New(config.OTelConfig{Enabled: true}, nil)
	assert.ErrorIs(t, err, ErrNoSink)
}

func TestNew_DefaultServiceName(t *testing.T) {
	p, err := New(config.OTelConfig{}, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultServiceName, p.ServiceName())

	p, err = New(config.OTelConfig{ServiceName: "map-kiosk"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "map-kiosk", p.ServiceName())
}

func TestNew_FileExporter(t *testing.T) {
	var buf bytes.Buffer
	p, err := New(config.OTelConfig{
		Enabled:      true,
		BatchTimeout: time.Second,
	}, &buf)
	require.NoError(t, err)
	require.NotNil(t, p.LoggerProvider())
	assert.True(t, p.Enabled())

	ctx := context.Background()
	assert.NoError(t, p.Flush(ctx))
	assert.NoError(t, p.Shutdown(ctx))
}
