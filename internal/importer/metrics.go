package importer

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/vonshlovens/fieldguide/internal/telemetry"
)

const scopeName = "github.com/vonshlovens/fieldguide/importer"

// importMetrics holds lazily-initialized OTel instruments for imports.
var importMetrics struct {
	documents metric.Int64Counter
	duration  metric.Float64Histogram
}

var importMetricsOnce sync.Once

func initImportMetrics() {
	m := telemetry.Meter(scopeName)
	importMetrics.documents, _ = m.Int64Counter("fieldguide.import.documents",
		metric.WithDescription("Documents processed by the importers"),
		metric.WithUnit("{document}"),
	)
	importMetrics.duration, _ = m.Float64Histogram("fieldguide.import.duration_ms",
		metric.WithDescription("Import duration in milliseconds"),
		metric.WithUnit("ms"),
	)
}

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	importMetricsOnce.Do(initImportMetrics)
	return telemetry.Tracer(scopeName).Start(ctx, name, trace.WithAttributes(attrs...))
}

// finishSpan records the outcome of one document import
func finishSpan(ctx context.Context, span trace.Span, kind, outcome string, start time.Time, err error) {
	attrs := metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("outcome", outcome),
	)
	if importMetrics.documents != nil {
		importMetrics.documents.Add(ctx, 1, attrs)
		importMetrics.duration.Record(ctx, float64(time.Since(start).Milliseconds()), attrs)
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.SetAttributes(attribute.String("fieldguide.outcome", outcome))
	span.End()
}
