package plugraph

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var tracer = otel.Tracer("github.com/go-plugraph/plugraph")
var meter = otel.Meter("github.com/go-plugraph/plugraph")

const (
	// graphNameKey associates each record with the name of the graph that
	// produced it, so records may be analysed across all graphs of a process or
	// per graph.
	graphNameKey = "plugraph.graph"
	// nodeTypeKey associates compute records with the type of the computing node.
	nodeTypeKey = "plugraph.node.type"
)

// ---- evaluate.go ----

var (
	// computeDuration measures the duration of a single Node.Compute call,
	// including the evaluation of the upstream plugs it reads that were not
	// cached.
	//
	// Each record is associated with the graphNameKey and nodeTypeKey.
	computeDuration metric.Float64Histogram
	// computeFailures counts failed Node.Compute calls. Cancellations are not
	// failures.
	//
	// Each record is associated with the graphNameKey and nodeTypeKey.
	computeFailures metric.Int64Counter
)

// ---- notifier.go ----

var (
	// splitDuration measures the duration of splitting a single PlugsDirtied
	// notification, including publishing every NodeDirtied notification.
	splitDuration metric.Float64Histogram
	// splitFailures counts failed splits.
	splitFailures metric.Int64Counter
)

func init() {
	var err error
	computeDuration, err = meter.Float64Histogram(
		"plug.compute.duration",
		metric.WithDescription("The duration of a single plug computation, including uncached upstream evaluations."),
		metric.WithUnit("ms"),
	)
	if err != nil {
		panic("plugraph: failed to init 'plug.compute.duration' instrument")
	}

	computeFailures, err = meter.Int64Counter(
		"plug.compute.failures",
		metric.WithDescription("The number of plug computations that have failed."),
	)
	if err != nil {
		panic("plugraph: failed to init 'plug.compute.failures' instrument")
	}

	splitDuration, err = meter.Float64Histogram(
		"plugsDirtied.split.duration",
		metric.WithDescription("The duration of a single PlugsDirtied split, including the duration it took to publish every NodeDirtied message."),
		metric.WithUnit("ms"),
	)
	if err != nil {
		panic("plugraph: failed to init 'plugsDirtied.split.duration' instrument")
	}

	splitFailures, err = meter.Int64Counter(
		"plugsDirtied.split.failures",
		metric.WithDescription("The number of PlugsDirtied splits that have failed."),
	)
	if err != nil {
		panic("plugraph: failed to init 'plugsDirtied.split.failures' instrument")
	}
}

// measureCompute records the duration of a successful computation, or counts a
// failed one.
//
// According to [metric] documentation, [metric.WithAttributeSet] should be used
// instead of [metric.WithAttributes] for performance optimization.
func measureCompute(ctx context.Context, graphName, nodeType string, succeeded bool, d time.Duration) {
	attrs := attribute.NewSet(
		attribute.String(graphNameKey, graphName),
		attribute.String(nodeTypeKey, nodeType),
	)
	if succeeded {
		// floating-point division keeps sub-millisecond precision.
		computeDuration.Record(ctx, float64(d)/float64(time.Millisecond), metric.WithAttributeSet(attrs))
	} else {
		computeFailures.Add(ctx, 1, metric.WithAttributeSet(attrs))
	}
}

func measureSplit(ctx context.Context, graphName string, succeeded bool, d time.Duration) {
	attrs := attribute.NewSet(attribute.String(graphNameKey, graphName))
	if succeeded {
		splitDuration.Record(ctx, float64(d)/float64(time.Millisecond), metric.WithAttributeSet(attrs))
	} else {
		splitFailures.Add(ctx, 1, metric.WithAttributeSet(attrs))
	}
}
