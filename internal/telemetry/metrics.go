package telemetry

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName = "github.com/wolfeidau/orgmgr"
)

// Metrics holds all the OpenTelemetry metric instruments
type Metrics struct {
	// Organization lifecycle metrics
	OrgOperationsTotal     metric.Int64Counter
	OrgCompensationsTotal  metric.Int64Counter
	OrgMigratedDocuments   metric.Int64Histogram
	OrgOperationDuration   metric.Float64Histogram
	IndexCreateErrorsTotal metric.Int64Counter

	// Authentication metrics
	LoginsTotal metric.Int64Counter

	// HTTP metrics
	HTTPRequestsTotal metric.Int64Counter
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

// RecordOrgOperation counts a lifecycle operation and its duration in ms.
func (m *Metrics) RecordOrgOperation(ctx context.Context, operation, outcome string, durationMs float64) {
	attrs := metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("outcome", outcome),
	)
	m.OrgOperationsTotal.Add(ctx, 1, attrs)
	m.OrgOperationDuration.Record(ctx, durationMs, attrs)
}

// RecordLogin counts a login attempt by result.
func (m *Metrics) RecordLogin(ctx context.Context, result string) {
	m.LoginsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

// RecordHTTPRequest counts a served request by method and status class.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method string, status int) {
	m.HTTPRequestsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("status_class", fmt.Sprintf("%dxx", status/100)),
	))
}

// initMetrics creates and registers all metric instruments
func initMetrics() *Metrics {
	meter := otel.GetMeterProvider().Meter(meterName)

	m := &Metrics{}

	m.OrgOperationsTotal, _ = meter.Int64Counter(
		"orgmgr.orgs.operations.total",
		metric.WithDescription("Total number of organization lifecycle operations by operation and outcome"),
		metric.WithUnit("{operation}"),
	)

	m.OrgCompensationsTotal, _ = meter.Int64Counter(
		"orgmgr.orgs.create_compensations.total",
		metric.WithDescription("Total number of compensating deletes issued after a failed create"),
		metric.WithUnit("{compensation}"),
	)

	m.OrgMigratedDocuments, _ = meter.Int64Histogram(
		"orgmgr.orgs.rename.migrated_documents",
		metric.WithDescription("Number of tenant documents copied when an organization is renamed"),
		metric.WithUnit("{document}"),
	)

	m.OrgOperationDuration, _ = meter.Float64Histogram(
		"orgmgr.orgs.operations.duration",
		metric.WithDescription("Duration of organization lifecycle operations"),
		metric.WithUnit("ms"),
	)

	m.IndexCreateErrorsTotal, _ = meter.Int64Counter(
		"orgmgr.store.index_create.errors.total",
		metric.WithDescription("Total number of unique index creation failures at startup"),
		metric.WithUnit("{error}"),
	)

	m.LoginsTotal, _ = meter.Int64Counter(
		"orgmgr.auth.logins.total",
		metric.WithDescription("Total number of admin login attempts by result"),
		metric.WithUnit("{login}"),
	)

	m.HTTPRequestsTotal, _ = meter.Int64Counter(
		"orgmgr.http.requests.total",
		metric.WithDescription("Total number of HTTP requests by route and status class"),
		metric.WithUnit("{request}"),
	)

	return m
}
