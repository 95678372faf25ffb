package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Dialog metric attribute keys
var (
	AttrDocumentType = attribute.Key("document_type")
	AttrRecordSource = attribute.Key("record_source")
	AttrOutcome      = attribute.Key("outcome")
)

// renderBuckets are in seconds; barcode encoding dominates large manifests
var renderBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5}

// DialogMetrics records print dialog lifecycle metrics. Print outcomes are
// counted by the orchestrator itself.
type DialogMetrics struct {
	opened   metric.Int64Counter
	closed   metric.Int64Counter
	active   metric.Int64UpDownCounter
	render   metric.Float64Histogram
	spooled  metric.Int64Counter
	exported metric.Int64Counter
}

// NewDialogMetrics registers the dialog instruments on meter
func NewDialogMetrics(meter metric.Meter) (*DialogMetrics, error) {
	m := &DialogMetrics{}
	var err error
	if m.opened, err = meter.Int64Counter("dialog.opened",
		metric.WithDescription("Print dialogs opened"), metric.WithUnit("{dialog}")); err != nil {
		return nil, err
	}
	if m.closed, err = meter.Int64Counter("dialog.closed",
		metric.WithDescription("Print dialogs closed"), metric.WithUnit("{dialog}")); err != nil {
		return nil, err
	}
	if m.active, err = meter.Int64UpDownCounter("dialog.active",
		metric.WithDescription("Print dialogs currently open on this instance"), metric.WithUnit("{dialog}")); err != nil {
		return nil, err
	}
	if m.render, err = meter.Float64Histogram("document.render.duration",
		metric.WithDescription("Layout render time including barcode encoding"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(renderBuckets...)); err != nil {
		return nil, err
	}
	if m.spooled, err = meter.Int64Counter("document.spooled",
		metric.WithDescription("Printed documents handed to the spooler"), metric.WithUnit("{document}")); err != nil {
		return nil, err
	}
	if m.exported, err = meter.Int64Counter("document.exported",
		metric.WithDescription("Spreadsheet exports"), metric.WithUnit("{document}")); err != nil {
		return nil, err
	}
	return m, nil
}

// DialogOpened counts a new dialog by the record source it resolved
func (m *DialogMetrics) DialogOpened(ctx context.Context, source string) {
	m.opened.Add(ctx, 1, metric.WithAttributes(AttrRecordSource.String(source)))
	m.active.Add(ctx, 1)
}

// DialogClosed counts a closed dialog
func (m *DialogMetrics) DialogClosed(ctx context.Context) {
	m.closed.Add(ctx, 1)
	m.active.Add(ctx, -1)
}

// RenderCompleted records one layout render
func (m *DialogMetrics) RenderCompleted(ctx context.Context, documentType string, d time.Duration) {
	m.render.Record(ctx, d.Seconds(), metric.WithAttributes(AttrDocumentType.String(documentType)))
}

// Spooled counts a spool attempt
func (m *DialogMetrics) Spooled(ctx context.Context, ok bool) {
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	m.spooled.Add(ctx, 1, metric.WithAttributes(AttrOutcome.String(outcome)))
}

// Exported counts a spreadsheet export
func (m *DialogMetrics) Exported(ctx context.Context) {
	m.exported.Add(ctx, 1)
}
