// Package telemetry provides optional in-process OpenTelemetry counters
// and histograms for merges, planned queries, journal appends, and
// live-query deltas. Instruments are registered against the global
// meter at package init: they are no-ops until a caller installs a real
// MeterProvider via Init, and cost nothing if nobody does.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const instrumentationName = "github.com/replikv/replikv"

var meter = otel.Meter(instrumentationName)

var instruments struct {
	merges          metric.Int64Counter
	mergeRejections metric.Int64Counter
	queriesPlanned  metric.Int64Counter
	queryCost       metric.Float64Histogram
	journalAppends  metric.Int64Counter
	liveQueryDeltas metric.Int64Counter
}

func init() {
	registerInstruments()
}

// RecordMerge counts one LWW/OR-Set merge.
func RecordMerge(ctx context.Context) {
	instruments.merges.Add(ctx, 1)
}

// RecordMergeRejection counts one resolver-rejected merge.
func RecordMergeRejection(ctx context.Context) {
	instruments.mergeRejections.Add(ctx, 1)
}

// RecordQueryPlanned counts one planned query and records its estimated cost.
func RecordQueryPlanned(ctx context.Context, estimatedCost float64) {
	instruments.queriesPlanned.Add(ctx, 1)
	instruments.queryCost.Record(ctx, estimatedCost)
}

// RecordJournalAppend counts one journal append.
func RecordJournalAppend(ctx context.Context) {
	instruments.journalAppends.Add(ctx, 1)
}

// RecordLiveQueryDelta counts one delta dispatched to a live-query subscriber.
func RecordLiveQueryDelta(ctx context.Context) {
	instruments.liveQueryDeltas.Add(ctx, 1)
}

// Init installs a stdout-exporting MeterProvider as the global provider and
// re-registers this package's instruments against it, so the counters
// above start producing periodic stdout metric output. It is entirely
// optional: without calling Init, every Record* call above is a no-op
// against the default global no-op provider. Returns a shutdown function
// the caller must invoke to flush and stop the exporter.
func Init(ctx context.Context) (shutdown func(context.Context) error, err error) {
	exporter, err := stdoutmetric.New()
	if err != nil {
		return nil, err
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)),
	)
	otel.SetMeterProvider(provider)

	meter = otel.Meter(instrumentationName)
	registerInstruments()

	return provider.Shutdown, nil
}

// registerInstruments re-creates every instrument against the current
// global meter; called once at package init and again by Init after a
// real MeterProvider is installed.
func registerInstruments() {
	instruments.merges, _ = meter.Int64Counter("replikv.merges",
		metric.WithDescription("LWW/OR-Set merges applied"),
		metric.WithUnit("{merge}"),
	)
	instruments.mergeRejections, _ = meter.Int64Counter("replikv.merge_rejections",
		metric.WithDescription("merges rejected by a resolver"),
		metric.WithUnit("{rejection}"),
	)
	instruments.queriesPlanned, _ = meter.Int64Counter("replikv.queries_planned",
		metric.WithDescription("query plans produced by the cost-based planner"),
		metric.WithUnit("{query}"),
	)
	instruments.queryCost, _ = meter.Float64Histogram("replikv.query_cost",
		metric.WithDescription("estimated cost of the plan chosen for a query"),
	)
	instruments.journalAppends, _ = meter.Int64Counter("replikv.journal_appends",
		metric.WithDescription("events appended to the journal ring"),
		metric.WithUnit("{event}"),
	)
	instruments.liveQueryDeltas, _ = meter.Int64Counter("replikv.livequery_deltas",
		metric.WithDescription("delta events dispatched to live-query subscribers"),
		metric.WithUnit("{delta}"),
	)
}
