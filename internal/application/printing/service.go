package printing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/crosswms/loadorder/internal/domain/printing"
	"github.com/crosswms/loadorder/internal/domain/shared"
	infra "github.com/crosswms/loadorder/internal/infrastructure/printing"
	"github.com/crosswms/loadorder/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DocumentRenderer turns a dialog session into a rendered document
type DocumentRenderer interface {
	Render(ctx context.Context, job *printing.DocumentJob) (*infra.RenderedDocument, error)
}

// PrintRunner composes and prints rendered documents through secondary contexts
type PrintRunner interface {
	Compose(doc *infra.RenderedDocument, opts infra.PrintOptions) (string, int)
	Print(ctx context.Context, dialogID string, doc *infra.RenderedDocument) (*infra.PrintOutcome, error)
	Release(dialogID string)
}

// PageCounter reads the page count of printed output
type PageCounter interface {
	PageCount(data []byte) (int, error)
}

// SpreadsheetExporter writes a dialog's records to a spreadsheet
type SpreadsheetExporter interface {
	Export(job *printing.DocumentJob, generatedAt time.Time) ([]byte, error)
	FileName(job *printing.DocumentJob, at time.Time) string
}

// DialogMetrics records dialog lifecycle metrics
type DialogMetrics interface {
	DialogOpened(ctx context.Context, source string)
	DialogClosed(ctx context.Context)
	RenderCompleted(ctx context.Context, documentType string, d time.Duration)
	Spooled(ctx context.Context, ok bool)
	Exported(ctx context.Context)
}

// DialogService handles the load-order print dialog: opening a session,
// switching layouts, previewing, printing and closing.
type DialogService struct {
	repo       printing.DocumentJobRepository
	normalizer *infra.RecordNormalizer
	renderer   DocumentRenderer
	printer    PrintRunner
	options    infra.PrintOptions
	pages      PageCounter
	spooler    infra.Spooler
	exporter   SpreadsheetExporter
	metrics    DialogMetrics
	now        func() time.Time
	logger     *zap.Logger
}

// DialogServiceOption configures optional collaborators
type DialogServiceOption func(*DialogService)

// WithPageCounter enables page counting of printed output
func WithPageCounter(pc PageCounter) DialogServiceOption {
	return func(s *DialogService) {
		s.pages = pc
	}
}

// WithSpooler hands printed output to a spool location
func WithSpooler(sp infra.Spooler) DialogServiceOption {
	return func(s *DialogService) {
		s.spooler = sp
	}
}

// WithExporter enables spreadsheet export
func WithExporter(e SpreadsheetExporter) DialogServiceOption {
	return func(s *DialogService) {
		s.exporter = e
	}
}

// WithMetrics records dialog metrics
func WithMetrics(m DialogMetrics) DialogServiceOption {
	return func(s *DialogService) {
		s.metrics = m
	}
}

// WithPrintOptions sets the page setup used for previews
func WithPrintOptions(opts infra.PrintOptions) DialogServiceOption {
	return func(s *DialogService) {
		s.options = opts
	}
}

// WithServiceClock overrides the clock used for export timestamps
func WithServiceClock(now func() time.Time) DialogServiceOption {
	return func(s *DialogService) {
		s.now = now
	}
}

// NewDialogService creates a new DialogService
func NewDialogService(
	repo printing.DocumentJobRepository,
	normalizer *infra.RecordNormalizer,
	renderer DocumentRenderer,
	printer PrintRunner,
	logger *zap.Logger,
	opts ...DialogServiceOption,
) *DialogService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if normalizer == nil {
		normalizer = infra.NewRecordNormalizer(logger)
	}
	s := &DialogService{
		repo:       repo,
		normalizer: normalizer,
		renderer:   renderer,
		printer:    printer,
		options:    infra.DefaultPrintOptions(),
		metrics:    noopMetrics{},
		now:        time.Now,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// =============================================================================
// Dialog Session Operations
// =============================================================================

// Open creates a dialog session from whichever record source is present
func (s *DialogService) Open(ctx context.Context, req OpenDialogRequest) (*DialogResponse, error) {
	res := s.normalizer.Normalize(toNormalizeInput(req.RecordSourceRequest))
	job := printing.NewDocumentJob(res.Records, s.normalizer.Header(req.FormData))

	if req.DocumentType != "" {
		if _, err := job.SelectDocumentType(printing.DocumentType(req.DocumentType)); err != nil {
			return nil, err
		}
	}

	if err := s.repo.Save(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to save dialog session: %w", err)
	}

	s.metrics.DialogOpened(ctx, string(res.Source))
	s.logger.Info("dialog opened",
		zap.String("dialog_id", job.ID.String()),
		zap.String("source", string(res.Source)),
		zap.Int("records", len(job.Records)))

	resp := toDialogResponse(job)
	resp.RecordSource = string(res.Source)
	return resp, nil
}

// Get returns the current view of a dialog session
func (s *DialogService) Get(ctx context.Context, dialogID uuid.UUID) (*DialogResponse, error) {
	job, err := s.load(ctx, dialogID)
	if err != nil {
		return nil, err
	}
	return toDialogResponse(job), nil
}

// SelectDocumentType switches the layout. Re-selecting the current type
// leaves the session untouched and reports Changed=false.
func (s *DialogService) SelectDocumentType(ctx context.Context, dialogID uuid.UUID, req SelectDocumentTypeRequest) (*DialogResponse, error) {
	job, err := s.load(ctx, dialogID)
	if err != nil {
		return nil, err
	}

	changed, err := job.SelectDocumentType(printing.DocumentType(req.DocumentType))
	if err != nil {
		return nil, err
	}
	if changed {
		if err := s.repo.Save(ctx, job); err != nil {
			return nil, fmt.Errorf("failed to save dialog session: %w", err)
		}
		s.logger.Debug("document type selected",
			zap.String("dialog_id", dialogID.String()),
			zap.String("document_type", req.DocumentType),
			zap.Int("revision", job.Revision))
	}

	resp := toDialogResponse(job)
	resp.Changed = changed
	return resp, nil
}

// UpdateRecords replaces the record source, e.g. once a full order fetched
// after opening resolves. A form object also refreshes the header block.
func (s *DialogService) UpdateRecords(ctx context.Context, dialogID uuid.UUID, req UpdateRecordsRequest) (*DialogResponse, error) {
	job, err := s.load(ctx, dialogID)
	if err != nil {
		return nil, err
	}

	res := s.normalizer.Normalize(toNormalizeInput(req.RecordSourceRequest))
	job.ReplaceRecords(res.Records)
	if req.FormData != nil {
		job.UpdateHeader(s.normalizer.Header(req.FormData))
	}

	if err := s.repo.Save(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to save dialog session: %w", err)
	}

	resp := toDialogResponse(job)
	resp.RecordSource = string(res.Source)
	resp.Changed = true
	return resp, nil
}

// Close releases any print context and discards the session. Closing an
// unknown or already closed dialog is not an error.
func (s *DialogService) Close(ctx context.Context, dialogID uuid.UUID) error {
	s.printer.Release(dialogID.String())
	if err := s.repo.Delete(ctx, dialogID); err != nil {
		return fmt.Errorf("failed to delete dialog session: %w", err)
	}
	s.metrics.DialogClosed(ctx)
	s.logger.Info("dialog closed", zap.String("dialog_id", dialogID.String()))
	return nil
}

// =============================================================================
// Preview, Print and Export
// =============================================================================

// Preview renders the current layout and returns the composed document
// exactly as it would be written to the print context
func (s *DialogService) Preview(ctx context.Context, dialogID uuid.UUID) (*PreviewResponse, error) {
	job, err := s.load(ctx, dialogID)
	if err != nil {
		return nil, err
	}

	doc, err := s.render(ctx, job)
	if err != nil {
		return nil, err
	}

	html, images := s.printer.Compose(doc, s.options)
	m := s.options.Margins
	return &PreviewResponse{
		HTML:        html,
		Title:       doc.Title,
		Revision:    doc.Revision,
		Images:      images,
		PaperSize:   string(s.options.PaperSize),
		Orientation: string(s.options.Orientation),
		Margins:     MarginsDTO{Top: m.Top, Right: m.Right, Bottom: m.Bottom, Left: m.Left},
	}, nil
}

// Print renders the current layout and drives it through a print context.
// BLOCKED, FAILED and CANCELLED are reported in the response, not as errors.
func (s *DialogService) Print(ctx context.Context, dialogID uuid.UUID) (*PrintResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "dialog", "print", telemetry.SpanAttrDialogID, dialogID.String())
	defer span.End()

	job, err := s.load(ctx, dialogID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetAttributes(span,
		telemetry.SpanAttrDocumentType, job.DocumentType.String(),
		telemetry.SpanAttrRevision, job.Revision,
		telemetry.SpanAttrRecordCount, len(job.Records))

	doc, err := s.render(ctx, job)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	outcome, err := s.printer.Print(ctx, dialogID.String(), doc)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, toServiceError(err, "failed to print document")
	}
	telemetry.SetAttributes(span,
		telemetry.SpanAttrPrintStatus, string(outcome.Status),
		telemetry.SpanAttrPrintTrigger, string(outcome.Trigger))

	resp := &PrintResponse{
		DialogID:       dialogID.String(),
		Status:         string(outcome.Status),
		Trigger:        string(outcome.Trigger),
		Images:         outcome.Images,
		Substituted:    outcome.Substituted,
		DurationMS:     outcome.Duration.Milliseconds(),
		CloseSuggested: outcome.CloseSuggested,
		Document:       outcome.Document,
	}
	if outcome.Err != nil {
		resp.Error = outcome.Err.Error()
	}

	if outcome.Status == printing.PrintStatusPrinted && len(outcome.Document) > 0 {
		resp.Pages = s.countPages(dialogID, outcome.Document)
		resp.SpoolURL = s.spool(ctx, job, outcome.Document)
	}

	s.recordOutcome(ctx, dialogID, printing.PrintSummary{
		Status:    outcome.Status,
		Trigger:   outcome.Trigger,
		Images:    outcome.Images,
		Pages:     resp.Pages,
		SpoolURL:  resp.SpoolURL,
		PrintedAt: s.now(),
	})

	return resp, nil
}

// Export writes the dialog's records and totals to a spreadsheet
func (s *DialogService) Export(ctx context.Context, dialogID uuid.UUID) (*ExportResult, error) {
	if s.exporter == nil {
		return nil, shared.NewDomainError("EXPORT_UNAVAILABLE", "Spreadsheet export is not configured")
	}
	job, err := s.load(ctx, dialogID)
	if err != nil {
		return nil, err
	}

	at := s.now()
	data, err := s.exporter.Export(job, at)
	if err != nil {
		return nil, toServiceError(err, "failed to export records")
	}
	s.metrics.Exported(ctx)
	return &ExportResult{
		FileName:    s.exporter.FileName(job, at),
		ContentType: infra.XLSXContentType,
		Data:        data,
	}, nil
}

// =============================================================================
// Reference Data
// =============================================================================

// GetDocumentTypes returns the selectable document types
func (s *DialogService) GetDocumentTypes() []DocumentTypeResponse {
	docTypes := printing.SelectableDocumentTypes()
	result := make([]DocumentTypeResponse, len(docTypes))
	for i, dt := range docTypes {
		result[i] = DocumentTypeResponse{
			Code:        string(dt),
			DisplayName: dt.DisplayName(),
		}
	}
	return result
}

// GetPaperSizes returns all available paper sizes
func (s *DialogService) GetPaperSizes() []PaperSizeResponse {
	paperSizes := printing.AllPaperSizes()
	result := make([]PaperSizeResponse, len(paperSizes))
	for i, ps := range paperSizes {
		w, h := ps.Dimensions()
		result[i] = PaperSizeResponse{
			Code:   string(ps),
			Width:  w,
			Height: h,
		}
	}
	return result
}

// =============================================================================
// Helper Functions
// =============================================================================

func (s *DialogService) render(ctx context.Context, job *printing.DocumentJob) (*infra.RenderedDocument, error) {
	start := time.Now()
	doc, err := s.renderer.Render(ctx, job)
	if err != nil {
		return nil, toServiceError(err, "failed to render document")
	}
	s.metrics.RenderCompleted(ctx, job.DocumentType.String(), time.Since(start))
	return doc, nil
}

func (s *DialogService) load(ctx context.Context, dialogID uuid.UUID) (*printing.DocumentJob, error) {
	job, err := s.repo.FindByID(ctx, dialogID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewDomainError("NOT_FOUND", "Dialog not found or expired")
		}
		return nil, fmt.Errorf("failed to load dialog session: %w", err)
	}
	return job, nil
}

// recordOutcome attaches the summary to the session as it is now. Changes
// made while printing are kept, and a dialog closed meanwhile stays closed.
func (s *DialogService) recordOutcome(ctx context.Context, dialogID uuid.UUID, summary printing.PrintSummary) {
	job, err := s.repo.FindByID(ctx, dialogID)
	if err != nil {
		return
	}
	job.RecordPrint(summary)
	if err := s.repo.Save(ctx, job); err != nil {
		s.logger.Warn("failed to record print outcome",
			zap.String("dialog_id", dialogID.String()),
			zap.Error(err))
	}
}

func (s *DialogService) countPages(dialogID uuid.UUID, data []byte) int {
	if s.pages == nil {
		return 0
	}
	n, err := s.pages.PageCount(data)
	if err != nil {
		s.logger.Warn("could not count printed pages",
			zap.String("dialog_id", dialogID.String()),
			zap.Error(err))
		return 0
	}
	return n
}

func (s *DialogService) spool(ctx context.Context, job *printing.DocumentJob, data []byte) string {
	if s.spooler == nil {
		return ""
	}
	res, err := s.spooler.Spool(ctx, &infra.SpoolRequest{
		DialogID:     job.ID,
		DocumentType: job.DocumentType,
		Revision:     job.Revision,
		Data:         data,
	})
	s.metrics.Spooled(ctx, err == nil)
	if err != nil {
		s.logger.Error("spooling printed document failed",
			zap.String("dialog_id", job.ID.String()),
			zap.Error(err))
		return ""
	}
	s.logger.Info("printed document spooled",
		zap.String("dialog_id", job.ID.String()),
		zap.String("path", res.Path),
		zap.Int64("size", res.Size))
	return res.URL
}

// toServiceError maps render errors to domain errors the HTTP layer understands
func toServiceError(err error, msg string) error {
	var renderErr *infra.RenderError
	if errors.As(err, &renderErr) {
		return shared.NewDomainError(renderErr.Code, renderErr.Message)
	}
	return fmt.Errorf("%s: %w", msg, err)
}

func toNormalizeInput(req RecordSourceRequest) infra.NormalizeInput {
	return infra.NormalizeInput{
		Records:  req.Records,
		Invoices: req.NotasFiscais,
		Form:     req.FormData,
	}
}

func toDialogResponse(job *printing.DocumentJob) *DialogResponse {
	records := job.Records
	if records == nil {
		records = []printing.DisplayRecord{}
	}
	return &DialogResponse{
		ID:               job.ID.String(),
		DocumentType:     string(job.DocumentType),
		DocumentTypeName: job.DocumentType.DisplayName(),
		CanPrint:         job.CanRender(),
		Records:          records,
		Totals:           job.Totals(),
		Header:           job.Header,
		Revision:         job.Revision,
		LastPrint:        job.LastPrint,
		OpenedAt:         job.OpenedAt,
		UpdatedAt:        job.UpdatedAt,
	}
}

type noopMetrics struct{}

func (noopMetrics) DialogOpened(context.Context, string) {}
func (noopMetrics) DialogClosed(context.Context) {}
func (noopMetrics) RenderCompleted(context.Context, string, time.Duration) {}
func (noopMetrics) Spooled(context.Context, bool) {}
func (noopMetrics) Exported(context.Context) {}
