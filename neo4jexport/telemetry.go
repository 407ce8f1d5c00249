package neo4jexport

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var tracer = otel.Tracer("github.com/go-plugraph/plugraph/neo4jexport")
var meter = otel.Meter("github.com/go-plugraph/plugraph/neo4jexport")

// graphNameKey associates each record with the name of the exported graph.
const graphNameKey = "plugraph.graph"

var (
	// exportDuration measures the duration of a single export transaction,
	// including retries performed by the driver.
	exportDuration metric.Float64Histogram
	// exportFailures counts exports that did not commit.
	exportFailures metric.Int64Counter
)

func init() {
	var err error
	exportDuration, err = meter.Float64Histogram(
		"export.duration",
		metric.WithDescription("The duration of a single graph export, including retried transactions."),
		metric.WithUnit("ms"),
	)
	if err != nil {
		panic("neo4jexport: failed to init 'export.duration' instrument")
	}

	exportFailures, err = meter.Int64Counter(
		"export.failures",
		metric.WithDescription("The number of graph exports that have failed."),
	)
	if err != nil {
		panic("neo4jexport: failed to init 'export.failures' instrument")
	}
}

func measureExport(ctx context.Context, graphName string, succeeded bool, d time.Duration) {
	attrs := attribute.NewSet(attribute.String(graphNameKey, graphName))
	if succeeded {
		exportDuration.Record(ctx, float64(d)/float64(time.Millisecond), metric.WithAttributeSet(attrs))
	} else {
		exportFailures.Add(ctx, 1, metric.WithAttributeSet(attrs))
	}
}
