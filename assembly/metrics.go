package assembly

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var meter = otel.Meter("femassemble.assembly")

var (
	stageLatency  metric.Float64Histogram
	assembleTotal metric.Int64Counter
	systemDOFs    metric.Int64Histogram
	systemNNZ     metric.Int64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

func initMetrics() error {
	metricsOnce.Do(func() {
		var err error
		if stageLatency, err = meter.Float64Histogram(
			"femassemble_stage_duration_seconds",
			metric.WithDescription("Duration of each assembly stage"),
			metric.WithUnit("s"),
		); err != nil {
			metricsErr = err
			return
		}
		if assembleTotal, err = meter.Int64Counter(
			"femassemble_assemble_total",
			metric.WithDescription("Number of assemblies by outcome"),
		); err != nil {
			metricsErr = err
			return
		}
		if systemDOFs, err = meter.Int64Histogram(
			"femassemble_system_dofs",
			metric.WithDescription("Free DOFs per assembled system"),
		); err != nil {
			metricsErr = err
			return
		}
		systemNNZ, metricsErr = meter.Int64Histogram(
			"femassemble_system_nnz",
			metric.WithDescription("Stored non-zeros per assembled matrix"),
		)
	})
	return metricsErr
}

func recordStage(ctx context.Context, name string, d time.Duration, err error) {
	if initMetrics() != nil {
		return
	}
	stageLatency.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String("stage", name),
		attribute.Bool("success", err == nil),
	))
}

func recordAssemble(ctx context.Context, sys *System, err error) {
	if initMetrics() != nil {
		return
	}
	assembleTotal.Add(ctx, 1, metric.WithAttributes(attribute.Bool("success", err == nil)))
	if err != nil || sys == nil {
		return
	}
	nr, _ := sys.Matrix.Dims()
	systemDOFs.Record(ctx, int64(nr))
	systemNNZ.Record(ctx, int64(sys.Matrix.NNZ()))
}
