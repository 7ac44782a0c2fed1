package otelcol

import (
	"context"
	"time"

	"smallbiznis-points/pkg/config"
	"smallbiznis-points/pkg/otelcol/exporters"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("otelcol",
	fx.Provide(
		NewResource,
		ProvideTracerProvider,
		ProvideMeterProvider,
	),
)

func NewResource(cfg *config.Config) (*resource.Resource, error) {
	return resource.Merge(resource.Default(), resource.NewSchemaless(
		attribute.String("service.name", cfg.AppName),
		attribute.String("service.version", cfg.AppVersion),
		attribute.String("deployment.environment", cfg.AppEnv),
	))
}

func ProvideTrace(exporter sdktrace.SpanExporter, opts ...sdktrace.TracerProviderOption) *sdktrace.TracerProvider {
	if len(opts) == 0 {
		opts = []sdktrace.TracerProviderOption{sdktrace.WithResource(resource.Default())}
	}

	opts = append(opts, sdktrace.WithBatcher(exporter))

	return sdktrace.NewTracerProvider(opts...)
}

func ProvideMetric(reader sdkmetric.Reader, opts ...sdkmetric.Option) *sdkmetric.MeterProvider {
	if len(opts) == 0 {
		opts = []sdkmetric.Option{sdkmetric.WithResource(resource.Default())}
	}

	opts = append(opts, sdkmetric.WithReader(reader))

	return sdkmetric.NewMeterProvider(opts...)
}

// ProvideTracerProvider exports spans over OTEL.PROTOCOL when OTEL.ADDR is set
// and falls back to the global no-op provider otherwise.
func ProvideTracerProvider(lc fx.Lifecycle, cfg *config.Config, res *resource.Resource) (trace.TracerProvider, error) {
	if cfg.Otel.Addr == "" {
		return otel.GetTracerProvider(), nil
	}

	exporter, err := exporters.NewTraceExporter(context.Background(), cfg)
	if err != nil {
		zap.L().Error("failed to create trace exporter", zap.Error(err))
		return nil, err
	}

	tp := ProvideTrace(exporter, sdktrace.WithResource(res))
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	lc.Append(fx.Hook{OnStop: tp.Shutdown})
	return tp, nil
}

func ProvideMeterProvider(lc fx.Lifecycle, cfg *config.Config, res *resource.Resource) (metric.MeterProvider, error) {
	if cfg.Otel.Addr == "" {
		return otel.GetMeterProvider(), nil
	}

	exporter, err := exporters.NewMetricExporter(context.Background(), cfg)
	if err != nil {
		zap.L().Error("failed to create metric exporter", zap.Error(err))
		return nil, err
	}

	mp := ProvideMetric(
		sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(15*time.Second)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	lc.Append(fx.Hook{OnStop: mp.Shutdown})
	return mp, nil
}
