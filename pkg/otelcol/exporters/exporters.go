package exporters

import (
	"context"
	"strings"
	"time"

	"smallbiznis-points/pkg/config"

	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const (
	ProtocolGRPC = "grpc"
	ProtocolHTTP = "http"
)

// NewTraceExporter dials the collector at OTEL.ADDR with OTEL.PROTOCOL (grpc by default).
func NewTraceExporter(ctx context.Context, cfg *config.Config) (*otlptrace.Exporter, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if strings.EqualFold(cfg.Otel.Protocol, ProtocolHTTP) {
		return otlptrace.New(ctx, otlptracehttp.NewClient(
			otlptracehttp.WithEndpoint(cfg.Otel.Addr),
			otlptracehttp.WithInsecure(),
			otlptracehttp.WithCompression(otlptracehttp.GzipCompression),
		))
	}

	return otlptrace.New(ctx, otlptracegrpc.NewClient(
		otlptracegrpc.WithEndpoint(cfg.Otel.Addr),
		otlptracegrpc.WithInsecure(),
		otlptracegrpc.WithCompressor("gzip"),
	))
}

// NewMetricExporter pushes OTLP metrics over http to OTEL.ADDR.
func NewMetricExporter(ctx context.Context, cfg *config.Config) (sdkmetric.Exporter, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	return otlpmetrichttp.New(ctx,
		otlpmetrichttp.WithEndpoint(cfg.Otel.Addr),
		otlpmetrichttp.WithInsecure(),
		otlpmetrichttp.WithCompression(otlpmetrichttp.GzipCompression),
	)
}
