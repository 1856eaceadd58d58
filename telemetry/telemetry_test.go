package telemetry

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestInitNone(t *testing.T) {
	shutdown, err := Init(context.Background(), DefaultConfig())
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))

	_, err = Init(nil, DefaultConfig())
	assert.ErrorIs(t, err, ErrNilContext)
}

func TestInitUnknown(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TraceExporter = "jaeger"
	_, err := Init(context.Background(), cfg)
	assert.ErrorIs(t, err, ErrUnknownExporter)

	cfg = DefaultConfig()
	cfg.MetricExporter = "statsd"
	_, err = Init(context.Background(), cfg)
	assert.ErrorIs(t, err, ErrUnknownExporter)

	cfg.MetricExporter = "prometheus"
	_, err = Init(context.Background(), cfg)
	assert.ErrorIs(t, err, ErrUnknownExporter)
}

func TestInitStdout(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.TraceExporter = "stdout"
	cfg.MetricExporter = "stdout"
	cfg.Writer = &buf
	ctx := context.Background()
	shutdown, err := Init(ctx, cfg)
	require.NoError(t, err)

	_, span := otel.Tracer("telemetry_test").Start(ctx, "probe-span")
	span.End()
	counter, err := otel.Meter("telemetry_test").Int64Counter("probe_counter")
	require.NoError(t, err)
	counter.Add(ctx, 3)

	require.NoError(t, shutdown(ctx))
	assert.Contains(t, buf.String(), "probe-span")
	assert.Contains(t, buf.String(), "probe_counter")
	assert.Contains(t, buf.String(), "femassemble")
}

func TestInitPrometheus(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MetricExporter = "prometheus"
	cfg.PrometheusFile = filepath.Join(t.TempDir(), "femassemble.prom")
	ctx := context.Background()
	shutdown, err := Init(ctx, cfg)
	require.NoError(t, err)

	counter, err := otel.Meter("telemetry_test").Int64Counter("prom_probe")
	require.NoError(t, err)
	counter.Add(ctx, 2)
	require.NoError(t, shutdown(ctx))

	data, err := os.ReadFile(cfg.PrometheusFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "prom_probe")
}
