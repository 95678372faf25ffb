package printing

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"html"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/crosswms/loadorder/internal/domain/printing"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const instrumentationName = "github.com/crosswms/loadorder/printing"

// ErrContextClosed is returned by a PrintContext after Close. The orchestrator
// treats it as a late callback from a superseded context.
var ErrContextClosed = errors.New("printing: print context closed")

// PrintContextOpener opens secondary print contexts. A nil context with a nil
// error means the environment refused to open one.
type PrintContextOpener interface {
	Open(ctx context.Context) (PrintContext, error)
}

// PrintContext is a secondary document that can load markup and print it
type PrintContext interface {
	// Write replaces the document content and closes the stream
	Write(ctx context.Context, document string) error
	// WaitLoaded blocks until the document finished loading
	WaitLoaded(ctx context.Context) error
	// AwaitImage blocks until the image at index settles. Load and error both settle.
	AwaitImage(ctx context.Context, index int) (loaded bool, err error)
	// Print issues the native print command
	Print(ctx context.Context, opts PrintOptions) ([]byte, error)
	// Close is idempotent
	Close() error
}

// StylesheetSource supplies the print-only stylesheet
type StylesheetSource interface {
	Stylesheet() string
}

// OrchestratorConfig holds the print timing parameters
type OrchestratorConfig struct {
	GracePeriod     time.Duration
	FallbackTimeout time.Duration
	CloseDelay      time.Duration
	Options         PrintOptions
}

// DefaultOrchestratorConfig returns 500ms grace, 4s fallback and 1s close delay
func DefaultOrchestratorConfig() OrchestratorConfig {
	return OrchestratorConfig{
		GracePeriod:     500 * time.Millisecond,
		FallbackTimeout: 4 * time.Second,
		CloseDelay:      time.Second,
		Options:         DefaultPrintOptions(),
	}
}

func (c OrchestratorConfig) withDefaults() OrchestratorConfig {
	d := DefaultOrchestratorConfig()
	if c.GracePeriod < 0 {
		c.GracePeriod = 0
	}
	if c.FallbackTimeout <= 0 {
		c.FallbackTimeout = d.FallbackTimeout
	}
	if c.CloseDelay < 0 {
		c.CloseDelay = 0
	}
	if !c.Options.PaperSize.IsValid() {
		c.Options.PaperSize = d.Options.PaperSize
	}
	if !c.Options.Orientation.IsValid() {
		c.Options.Orientation = d.Options.Orientation
	}
	if c.Options.Margins.IsZero() {
		c.Options.Margins = d.Options.Margins
	}
	if c.Options.Scale <= 0 {
		c.Options.Scale = d.Options.Scale
	}
	return c
}

// PrintOutcome is the result of one Print call
type PrintOutcome struct {
	Status      printing.PrintStatus
	Trigger     printing.PrintTrigger
	Images      int
	Substituted int
	Document    []byte
	Duration    time.Duration
	// CloseSuggested is set after a successful print so the caller may offer to close the dialog
	CloseSuggested bool
	Err            error
}

// PrintOrchestrator drives a rendered document through a secondary print context
type PrintOrchestrator struct {
	opener     PrintContextOpener
	stylesheet StylesheetSource
	config     OrchestratorConfig
	logger     *zap.Logger
	tracer     trace.Tracer

	outcomes  metric.Int64Counter
	fallbacks metric.Int64Counter

	mu     sync.Mutex
	active map[string]PrintContext
}

// OrchestratorOption configures a PrintOrchestrator
type OrchestratorOption func(*PrintOrchestrator)

// WithTracer overrides the global tracer
func WithTracer(tracer trace.Tracer) OrchestratorOption {
	return func(o *PrintOrchestrator) {
		o.tracer = tracer
	}
}

// WithMeter registers print counters on meter instead of the global provider
func WithMeter(meter metric.Meter) OrchestratorOption {
	return func(o *PrintOrchestrator) {
		o.registerMetrics(meter)
	}
}

// NewPrintOrchestrator creates an orchestrator
func NewPrintOrchestrator(opener PrintContextOpener, stylesheet StylesheetSource, config OrchestratorConfig, logger *zap.Logger, opts ...OrchestratorOption) *PrintOrchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := &PrintOrchestrator{
		opener:     opener,
		stylesheet: stylesheet,
		config:     config.withDefaults(),
		logger:     logger,
		tracer:     otel.Tracer(instrumentationName),
		active:     make(map[string]PrintContext),
	}
	o.registerMetrics(otel.Meter(instrumentationName))
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *PrintOrchestrator) registerMetrics(meter metric.Meter) {
	var err error
	o.outcomes, err = meter.Int64Counter("print.outcomes",
		metric.WithDescription("Print attempts by final status"),
		metric.WithUnit("{attempt}"))
	if err != nil {
		o.logger.Warn("failed to create print outcome counter", zap.Error(err))
	}
	o.fallbacks, err = meter.Int64Counter("print.fallback_triggers",
		metric.WithDescription("Prints forced by the fallback timer"),
		metric.WithUnit("{attempt}"))
	if err != nil {
		o.logger.Warn("failed to create fallback counter", zap.Error(err))
	}
}

// Config returns the effective configuration
func (o *PrintOrchestrator) Config() OrchestratorConfig {
	return o.config
}

var canvasPattern = regexp.MustCompile(`<canvas class="barcode" data-surface="([^"]+)"[^>]*></canvas>`)

// Compose builds the complete print document: page rule, stylesheet and body,
// with every exportable surface inlined as a PNG image. Surfaces that fail to
// export keep their canvas placeholder.
func (o *PrintOrchestrator) Compose(doc *RenderedDocument, opts PrintOptions) (string, int) {
	substituted := 0
	body := canvasPattern.ReplaceAllStringFunc(doc.HTML, func(tag string) string {
		id := canvasPattern.FindStringSubmatch(tag)[1]
		surface, ok := doc.Surfaces[id]
		if !ok {
			o.logger.Warn("no surface for placeholder", zap.String("surface_id", id))
			return tag
		}
		data, err := surface.ExportPNG()
		if err != nil {
			o.logger.Warn("surface export failed, keeping canvas",
				zap.String("surface_id", id),
				zap.Error(err))
			return tag
		}
		substituted++
		w, h := surface.DisplaySize()
		return fmt.Sprintf(`<img class="barcode-image" data-surface="%s" src="data:image/png;base64,%s" width="%d" height="%d" alt="">`,
			id, base64.StdEncoding.EncodeToString(data), w, h)
	})

	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html><html lang=\"pt-BR\"><head><meta charset=\"UTF-8\">")
	sb.WriteString("<title>")
	sb.WriteString(html.EscapeString(doc.Title))
	sb.WriteString("</title><style>")
	sb.WriteString(pageRule(opts))
	if o.stylesheet != nil {
		sb.WriteString("\n")
		sb.WriteString(o.stylesheet.Stylesheet())
	}
	sb.WriteString("</style></head><body>")
	sb.WriteString(body)
	sb.WriteString("</body></html>")
	return sb.String(), substituted
}

func pageRule(opts PrintOptions) string {
	size := "A4"
	switch opts.PaperSize {
	case printing.PaperSizeA5:
		size = "A5"
	case printing.PaperSizeLetter:
		size = "letter"
	}
	orientation := "portrait"
	if opts.Orientation == printing.OrientationLandscape {
		orientation = "landscape"
	}
	m := opts.Margins
	return fmt.Sprintf("@page { size: %s %s; margin: %dmm %dmm %dmm %dmm; }", size, orientation, m.Top, m.Right, m.Bottom, m.Left)
}

// Print composes doc and prints it through a fresh context for dialogID.
// Print fires exactly once, either when every image settled plus the grace
// period, or when the fallback timer expires, whichever comes first.
func (o *PrintOrchestrator) Print(ctx context.Context, dialogID string, doc *RenderedDocument) (*PrintOutcome, error) {
	if doc == nil {
		return nil, NewRenderError(ErrCodeInvalidHTML, "rendered document is nil", nil)
	}
	start := time.Now()
	ctx, span := o.tracer.Start(ctx, "printing.Print", trace.WithAttributes(
		attribute.String("dialog.id", dialogID),
		attribute.String("document.type", doc.DocumentType.String()),
	))
	defer span.End()

	opts := o.config.Options
	markup, substituted := o.Compose(doc, opts)
	outcome := &PrintOutcome{Images: substituted, Substituted: substituted}

	fallback := time.NewTimer(o.config.FallbackTimeout)
	defer fallback.Stop()

	o.Release(dialogID)
	pc, err := o.opener.Open(ctx)
	if err != nil || pc == nil {
		o.logger.Warn("print context refused",
			zap.String("dialog_id", dialogID),
			zap.Error(err))
		outcome.Status = printing.PrintStatusBlocked
		outcome.Err = err
		return o.finish(ctx, span, outcome, start), nil
	}
	o.track(dialogID, pc)

	prepCtx, cancelPrep := context.WithCancel(ctx)
	defer cancelPrep()
	ready := make(chan error, 1)
	go func() {
		ready <- o.prepare(prepCtx, pc, markup, substituted)
	}()

	outcome.Trigger, err = o.await(ctx, ready, fallback.C)
	cancelPrep()
	if err != nil {
		outcome.Status = printing.PrintStatusCancelled
		outcome.Err = err
		o.Release(dialogID)
		return o.finish(ctx, span, outcome, start), nil
	}

	data, err := pc.Print(ctx, opts)
	switch {
	case errors.Is(err, ErrContextClosed):
		outcome.Status = printing.PrintStatusCancelled
		outcome.Err = err
	case err != nil:
		outcome.Status = printing.PrintStatusFailed
		outcome.Err = NewRenderError(ErrCodePrintFailed, "print command failed", err)
	default:
		outcome.Status = printing.PrintStatusPrinted
		outcome.Document = data
		outcome.CloseSuggested = true
	}

	time.AfterFunc(o.config.CloseDelay, func() {
		o.closeIfCurrent(dialogID, pc)
	})
	return o.finish(ctx, span, outcome, start), nil
}

// prepare writes the document and runs the readiness gate
func (o *PrintOrchestrator) prepare(ctx context.Context, pc PrintContext, markup string, images int) error {
	if err := pc.Write(ctx, markup); err != nil {
		return fmt.Errorf("write document: %w", err)
	}
	if err := pc.WaitLoaded(ctx); err != nil {
		return fmt.Errorf("wait for load: %w", err)
	}
	if images == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < images; i++ {
		i := i
		g.Go(func() error {
			loaded, err := pc.AwaitImage(gctx, i)
			if err != nil {
				return err
			}
			if !loaded {
				o.logger.Debug("image settled with error", zap.Int("index", i))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("await images: %w", err)
	}

	grace := time.NewTimer(o.config.GracePeriod)
	defer grace.Stop()
	select {
	case <-grace.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// await blocks until the document is ready or the fallback fires. A failed
// preparation waits for the fallback, except when the context was closed.
func (o *PrintOrchestrator) await(ctx context.Context, ready <-chan error, fallback <-chan time.Time) (printing.PrintTrigger, error) {
	select {
	case err := <-ready:
		if err == nil {
			return printing.PrintTriggerSettled, nil
		}
		if errors.Is(err, ErrContextClosed) {
			return printing.PrintTriggerNone, err
		}
		o.logger.Warn("print preparation failed, waiting for fallback", zap.Error(err))
	case <-fallback:
		return printing.PrintTriggerFallback, nil
	case <-ctx.Done():
		return printing.PrintTriggerNone, ctx.Err()
	}

	select {
	case <-fallback:
		return printing.PrintTriggerFallback, nil
	case <-ctx.Done():
		return printing.PrintTriggerNone, ctx.Err()
	}
}

func (o *PrintOrchestrator) finish(ctx context.Context, span trace.Span, outcome *PrintOutcome, start time.Time) *PrintOutcome {
	outcome.Duration = time.Since(start)

	attrs := []attribute.KeyValue{
		attribute.String("print.status", outcome.Status.String()),
		attribute.String("print.trigger", outcome.Trigger.String()),
	}
	span.SetAttributes(append(attrs,
		attribute.Int("print.images", outcome.Images),
		attribute.Int("print.substituted", outcome.Substituted))...)
	if outcome.Err != nil {
		span.RecordError(outcome.Err)
	}
	if outcome.Status == printing.PrintStatusFailed {
		span.SetStatus(codes.Error, "print failed")
	}

	if o.outcomes != nil {
		o.outcomes.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
	if outcome.Trigger == printing.PrintTriggerFallback && o.fallbacks != nil {
		o.fallbacks.Add(ctx, 1)
	}

	o.logger.Info("print finished",
		zap.String("status", outcome.Status.String()),
		zap.String("trigger", outcome.Trigger.String()),
		zap.Int("images", outcome.Images),
		zap.Int("bytes", len(outcome.Document)),
		zap.Duration("duration", outcome.Duration))
	return outcome
}

// track makes pc the dialog's context. A context left by a concurrent Print
// for the same dialog is closed, so at most one stays open per dialog.
func (o *PrintOrchestrator) track(dialogID string, pc PrintContext) {
	o.mu.Lock()
	prev, ok := o.active[dialogID]
	o.active[dialogID] = pc
	o.mu.Unlock()
	if ok && prev != pc {
		closeQuietly(prev, o.logger)
	}
}

func (o *PrintOrchestrator) closeIfCurrent(dialogID string, pc PrintContext) {
	o.mu.Lock()
	if o.active[dialogID] == pc {
		delete(o.active, dialogID)
	}
	o.mu.Unlock()
	closeQuietly(pc, o.logger)
}

// Release closes the print context held for dialogID, if any
func (o *PrintOrchestrator) Release(dialogID string) {
	o.mu.Lock()
	pc, ok := o.active[dialogID]
	delete(o.active, dialogID)
	o.mu.Unlock()
	if ok {
		closeQuietly(pc, o.logger)
	}
}

// Active reports whether a context is open for dialogID
func (o *PrintOrchestrator) Active(dialogID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.active[dialogID]
	return ok
}

// Shutdown closes every open context
func (o *PrintOrchestrator) Shutdown() {
	o.mu.Lock()
	contexts := o.active
	o.active = make(map[string]PrintContext)
	o.mu.Unlock()
	for _, pc := range contexts {
		closeQuietly(pc, o.logger)
	}
}

func closeQuietly(pc PrintContext, logger *zap.Logger) {
	if err := pc.Close(); err != nil && !errors.Is(err, ErrContextClosed) {
		logger.Warn("failed to close print context", zap.Error(err))
	}
}
