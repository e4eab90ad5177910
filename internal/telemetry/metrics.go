package telemetry

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	instrumentationName = "github.com/wolfeidau/assetpack"
	buildDurationMetric = "assetpack.builds.duration"
)

// Metrics holds all the OpenTelemetry metric instruments
type Metrics struct {
	// Build metrics
	BuildsTotal       metric.Int64Counter
	BuildErrorsTotal  metric.Int64Counter
	BuildDuration     metric.Float64Histogram
	AssetsEmitted     metric.Int64Counter
	BytesEmitted      metric.Int64Counter
	RebuildsTriggered metric.Int64Counter

	// Remote module metrics
	RemoteFetchTotal     metric.Int64Counter
	RemoteFetchCacheHits metric.Int64Counter
}

var (
	once    sync.Once
	metrics *Metrics
)

// GetMetrics returns the singleton Metrics instance, initializing it if necessary
func GetMetrics() *Metrics {
	once.Do(func() {
		metrics = initMetrics()
	})
	return metrics
}

// Tracer returns the tracer used for build spans. It is a no-op until
// InitTelemetry installs a provider.
func Tracer() trace.Tracer {
	return otel.GetTracerProvider().Tracer(instrumentationName)
}

// initMetrics creates and registers all metric instruments
func initMetrics() *Metrics {
	meter := otel.GetMeterProvider().Meter(instrumentationName)

	m := &Metrics{}

	m.BuildsTotal, _ = meter.Int64Counter(
		"assetpack.builds.total",
		metric.WithDescription("Total number of builds started"),
		metric.WithUnit("{build}"),
	)

	m.BuildErrorsTotal, _ = meter.Int64Counter(
		"assetpack.builds.errors.total",
		metric.WithDescription("Total number of builds that failed"),
		metric.WithUnit("{error}"),
	)

	m.BuildDuration, _ = meter.Float64Histogram(
		buildDurationMetric,
		metric.WithDescription("Duration of builds"),
		metric.WithUnit("ms"),
	)

	m.AssetsEmitted, _ = meter.Int64Counter(
		"assetpack.assets.emitted.total",
		metric.WithDescription("Total number of assets written to the output directory"),
		metric.WithUnit("{asset}"),
	)

	m.BytesEmitted, _ = meter.Int64Counter(
		"assetpack.assets.emitted.bytes",
		metric.WithDescription("Total number of bytes written to the output directory"),
		metric.WithUnit("By"),
	)

	m.RebuildsTriggered, _ = meter.Int64Counter(
		"assetpack.watch.rebuilds.total",
		metric.WithDescription("Total number of rebuilds triggered by file changes"),
		metric.WithUnit("{build}"),
	)

	m.RemoteFetchTotal, _ = meter.Int64Counter(
		"assetpack.remote.fetch.total",
		metric.WithDescription("Total number of remote module fetches"),
		metric.WithUnit("{request}"),
	)

	m.RemoteFetchCacheHits, _ = meter.Int64Counter(
		"assetpack.remote.fetch.cache_hits.total",
		metric.WithDescription("Total number of remote module fetches served from cache"),
		metric.WithUnit("{request}"),
	)

	return m
}
