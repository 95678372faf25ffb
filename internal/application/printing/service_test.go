package printing_test

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/crosswms/loadorder/internal/application/printing"
	domain "github.com/crosswms/loadorder/internal/domain/printing"
	"github.com/crosswms/loadorder/internal/domain/shared"
	"github.com/crosswms/loadorder/internal/infrastructure/cache"
	infra "github.com/crosswms/loadorder/internal/infrastructure/printing"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// =============================================================================
// Mock Implementations
// =============================================================================

type MockJobRepository struct {
	mock.Mock
}

func (m *MockJobRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.DocumentJob, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.DocumentJob), args.Error(1)
}

func (m *MockJobRepository) Save(ctx context.Context, job *domain.DocumentJob) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

func (m *MockJobRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type MockRenderer struct {
	mock.Mock
}

func (m *MockRenderer) Render(ctx context.Context, job *domain.DocumentJob) (*infra.RenderedDocument, error) {
	args := m.Called(ctx, job)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*infra.RenderedDocument), args.Error(1)
}

type MockPrinter struct {
	mock.Mock
}

func (m *MockPrinter) Compose(doc *infra.RenderedDocument, opts infra.PrintOptions) (string, int) {
	args := m.Called(doc, opts)
	return args.String(0), args.Int(1)
}

func (m *MockPrinter) Print(ctx context.Context, dialogID string, doc *infra.RenderedDocument) (*infra.PrintOutcome, error) {
	args := m.Called(ctx, dialogID, doc)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*infra.PrintOutcome), args.Error(1)
}

func (m *MockPrinter) Release(dialogID string) {
	m.Called(dialogID)
}

type MockPageCounter struct {
	mock.Mock
}

func (m *MockPageCounter) PageCount(data []byte) (int, error) {
	args := m.Called(data)
	return args.Int(0), args.Error(1)
}

type MockSpooler struct {
	mock.Mock
}

func (m *MockSpooler) Spool(ctx context.Context, req *infra.SpoolRequest) (*infra.SpoolResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*infra.SpoolResult), args.Error(1)
}

func (m *MockSpooler) Get(ctx context.Context, path string) (io.ReadCloser, error) {
	args := m.Called(ctx, path)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(io.ReadCloser), args.Error(1)
}

func (m *MockSpooler) Delete(ctx context.Context, path string) error {
	args := m.Called(ctx, path)
	return args.Error(0)
}

func (m *MockSpooler) CleanupOlderThan(ctx context.Context, age time.Duration) (int, error) {
	args := m.Called(ctx, age)
	return args.Int(0), args.Error(1)
}

type MockExporter struct {
	mock.Mock
}

func (m *MockExporter) Export(job *domain.DocumentJob, generatedAt time.Time) ([]byte, error) {
	args := m.Called(job, generatedAt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockExporter) FileName(job *domain.DocumentJob, at time.Time) string {
	args := m.Called(job, at)
	return args.String(0)
}

// =============================================================================
// Fixtures
// =============================================================================

var fixedNow = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

type serviceDeps struct {
	repo     *MockJobRepository
	renderer *MockRenderer
	printer  *MockPrinter
	pages    *MockPageCounter
	spooler  *MockSpooler
	exporter *MockExporter
}

func newTestService() (*printing.DialogService, *serviceDeps) {
	d := &serviceDeps{
		repo:     new(MockJobRepository),
		renderer: new(MockRenderer),
		printer:  new(MockPrinter),
		pages:    new(MockPageCounter),
		spooler:  new(MockSpooler),
		exporter: new(MockExporter),
	}
	svc := printing.NewDialogService(d.repo, nil, d.renderer, d.printer, zap.NewNop(),
		printing.WithPageCounter(d.pages),
		printing.WithSpooler(d.spooler),
		printing.WithExporter(d.exporter),
		printing.WithServiceClock(func() time.Time { return fixedNow }),
	)
	return svc, d
}

func testRecords() []domain.DisplayRecord {
	return []domain.DisplayRecord{
		{
			ID:            "r1",
			AccessKey:     "35250312345678000190550010000012341000012345",
			Number:        "1234",
			DeclaredValue: decimal.RequireFromString("1500.50"),
			Weight:        decimal.RequireFromString("12.5"),
			VolumeCount:   2,
		},
		{
			ID:            "r2",
			Number:        "5678",
			DeclaredValue: decimal.NewFromInt(250),
			Weight:        decimal.NewFromInt(3),
			VolumeCount:   1,
		},
	}
}

func testJob(docType domain.DocumentType) *domain.DocumentJob {
	job := domain.NewDocumentJob(testRecords(), domain.HeaderInfo{OrderNumber: "OC-77"})
	if docType.IsSelectable() {
		_, _ = job.SelectDocumentType(docType)
	}
	return job
}

// =============================================================================
// Dialog Session Tests
// =============================================================================

func TestDialogService_Open_WithRecords(t *testing.T) {
	svc, d := newTestService()
	d.repo.On("Save", mock.Anything, mock.AnythingOfType("*printing.DocumentJob")).Return(nil)

	resp, err := svc.Open(context.Background(), printing.OpenDialogRequest{
		RecordSourceRequest: printing.RecordSourceRequest{Records: testRecords()},
	})

	require.NoError(t, err)
	assert.Equal(t, string(domain.DocumentTypeNone), resp.DocumentType)
	assert.False(t, resp.CanPrint)
	assert.Equal(t, string(infra.RecordSourceRecords), resp.RecordSource)
	assert.Len(t, resp.Records, 2)
	assert.Equal(t, 3, resp.Totals.Volumes)
	assert.True(t, decimal.RequireFromString("1750.50").Equal(resp.Totals.Value))
	assert.Equal(t, 2, resp.Totals.Count)
	d.repo.AssertExpectations(t)
}

func TestDialogService_Open_FromForm(t *testing.T) {
	svc, d := newTestService()
	d.repo.On("Save", mock.Anything, mock.Anything).Return(nil)

	resp, err := svc.Open(context.Background(), printing.OpenDialogRequest{
		RecordSourceRequest: printing.RecordSourceRequest{
			FormData: map[string]any{
				"numero_ordem":     "OC-99",
				"subtipo_operacao": "Entrega",
				"notasFiscais": []any{
					map[string]any{"numero_nota": "42", "quantidade_volumes": 3},
				},
			},
		},
		DocumentType: "BARCODE_MANIFEST",
	})

	require.NoError(t, err)
	assert.Equal(t, string(infra.RecordSourceForm), resp.RecordSource)
	assert.Equal(t, "BARCODE_MANIFEST", resp.DocumentType)
	assert.True(t, resp.CanPrint)
	assert.Equal(t, "OC-99", resp.Header.OrderNumber)
	assert.Equal(t, "Entrega", resp.Header.Subtype())
	assert.Len(t, resp.Records, 1)
}

func TestDialogService_Open_EmptySources(t *testing.T) {
	svc, d := newTestService()
	d.repo.On("Save", mock.Anything, mock.Anything).Return(nil)

	resp, err := svc.Open(context.Background(), printing.OpenDialogRequest{})

	require.NoError(t, err)
	assert.Empty(t, resp.Records)
	assert.NotNil(t, resp.Records)
	assert.Equal(t, 0, resp.Totals.Count)
	assert.True(t, resp.Totals.Weight.IsZero())
}

func TestDialogService_Open_InvalidDocumentType(t *testing.T) {
	svc, d := newTestService()

	_, err := svc.Open(context.Background(), printing.OpenDialogRequest{DocumentType: "NONE"})

	assert.ErrorIs(t, err, shared.ErrInvalidInput)
	d.repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestDialogService_Get_NotFound(t *testing.T) {
	svc, d := newTestService()
	id := uuid.New()
	d.repo.On("FindByID", mock.Anything, id).Return(nil, shared.ErrNotFound)

	_, err := svc.Get(context.Background(), id)

	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestDialogService_Get_BackendError(t *testing.T) {
	svc, d := newTestService()
	id := uuid.New()
	d.repo.On("FindByID", mock.Anything, id).Return(nil, errors.New("redis down"))

	_, err := svc.Get(context.Background(), id)

	require.Error(t, err)
	assert.NotErrorIs(t, err, shared.ErrNotFound)
}

func TestDialogService_SelectDocumentType(t *testing.T) {
	svc, d := newTestService()
	job := testJob(domain.DocumentTypeNone)
	d.repo.On("FindByID", mock.Anything, job.ID).Return(job, nil)
	d.repo.On("Save", mock.Anything, job).Return(nil).Once()

	resp, err := svc.SelectDocumentType(context.Background(), job.ID,
		printing.SelectDocumentTypeRequest{DocumentType: "MANIFEST"})

	require.NoError(t, err)
	assert.True(t, resp.Changed)
	assert.Equal(t, 1, resp.Revision)
	assert.Equal(t, "Ordem de Carga", resp.DocumentTypeName)

	// Selecting the same type again is a no-op
	resp, err = svc.SelectDocumentType(context.Background(), job.ID,
		printing.SelectDocumentTypeRequest{DocumentType: "MANIFEST"})

	require.NoError(t, err)
	assert.False(t, resp.Changed)
	assert.Equal(t, 1, resp.Revision)
	d.repo.AssertNumberOfCalls(t, "Save", 1)
}

func TestDialogService_UpdateRecords(t *testing.T) {
	svc, d := newTestService()
	job := domain.NewDocumentJob(nil, domain.HeaderInfo{})
	d.repo.On("FindByID", mock.Anything, job.ID).Return(job, nil)
	d.repo.On("Save", mock.Anything, job).Return(nil)

	resp, err := svc.UpdateRecords(context.Background(), job.ID, printing.UpdateRecordsRequest{
		RecordSourceRequest: printing.RecordSourceRequest{Records: testRecords()},
	})

	require.NoError(t, err)
	assert.Len(t, resp.Records, 2)
	assert.Equal(t, 3, resp.Totals.Volumes)
	assert.Equal(t, 1, resp.Revision)
}

func TestDialogService_Close(t *testing.T) {
	svc, d := newTestService()
	id := uuid.New()
	d.printer.On("Release", id.String()).Return()
	d.repo.On("Delete", mock.Anything, id).Return(nil)

	require.NoError(t, svc.Close(context.Background(), id))
	d.printer.AssertExpectations(t)
	d.repo.AssertExpectations(t)
}

// =============================================================================
// Preview / Print / Export Tests
// =============================================================================

func TestDialogService_Preview(t *testing.T) {
	svc, d := newTestService()
	job := testJob(domain.DocumentTypeBarcodeManifest)
	doc := &infra.RenderedDocument{Title: "ROMANEIO EXPEDIÇÃO", Revision: job.Revision}
	d.repo.On("FindByID", mock.Anything, job.ID).Return(job, nil)
	d.renderer.On("Render", mock.Anything, job).Return(doc, nil)
	d.printer.On("Compose", doc, infra.DefaultPrintOptions()).Return("<!DOCTYPE html>...", 2)

	resp, err := svc.Preview(context.Background(), job.ID)

	require.NoError(t, err)
	assert.Equal(t, "<!DOCTYPE html>...", resp.HTML)
	assert.Equal(t, 2, resp.Images)
	assert.Equal(t, "A4", resp.PaperSize)
	assert.Equal(t, 20, resp.Margins.Top)
	assert.Equal(t, 15, resp.Margins.Left)
}

func TestDialogService_Preview_NoDocumentType(t *testing.T) {
	svc, d := newTestService()
	job := testJob(domain.DocumentTypeNone)
	d.repo.On("FindByID", mock.Anything, job.ID).Return(job, nil)
	d.renderer.On("Render", mock.Anything, job).
		Return(nil, infra.NewRenderError(infra.ErrCodeNoDocumentType, "no document type selected", nil))

	_, err := svc.Preview(context.Background(), job.ID)

	var domainErr *shared.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, infra.ErrCodeNoDocumentType, domainErr.Code)
}

func TestDialogService_Print_Printed(t *testing.T) {
	svc, d := newTestService()
	job := testJob(domain.DocumentTypeManifest)
	doc := &infra.RenderedDocument{Revision: job.Revision}
	pdf := []byte("%PDF-1.4 fake")

	d.repo.On("FindByID", mock.Anything, job.ID).Return(job, nil)
	d.repo.On("Save", mock.Anything, job).Return(nil)
	d.renderer.On("Render", mock.Anything, job).Return(doc, nil)
	d.printer.On("Print", mock.Anything, job.ID.String(), doc).Return(&infra.PrintOutcome{
		Status:         domain.PrintStatusPrinted,
		Trigger:        domain.PrintTriggerSettled,
		Document:       pdf,
		Duration:       750 * time.Millisecond,
		CloseSuggested: true,
	}, nil)
	d.pages.On("PageCount", pdf).Return(2, nil)
	d.spooler.On("Spool", mock.Anything, mock.MatchedBy(func(req *infra.SpoolRequest) bool {
		return req.DialogID == job.ID && req.Revision == job.Revision &&
			req.DocumentType == domain.DocumentTypeManifest
	})).Return(&infra.SpoolResult{Path: "2025/03/x.pdf", URL: "/spool/2025/03/x.pdf", Size: 13}, nil)

	resp, err := svc.Print(context.Background(), job.ID)

	require.NoError(t, err)
	assert.Equal(t, "PRINTED", resp.Status)
	assert.Equal(t, "SETTLED", resp.Trigger)
	assert.Equal(t, 2, resp.Pages)
	assert.Equal(t, "/spool/2025/03/x.pdf", resp.SpoolURL)
	assert.Equal(t, int64(750), resp.DurationMS)
	assert.True(t, resp.CloseSuggested)
	assert.Equal(t, pdf, resp.Document)

	require.NotNil(t, job.LastPrint)
	assert.Equal(t, domain.PrintStatusPrinted, job.LastPrint.Status)
	assert.Equal(t, 2, job.LastPrint.Pages)
	assert.Equal(t, fixedNow, job.LastPrint.PrintedAt)
	assert.Equal(t, 1, job.Revision)
	d.spooler.AssertExpectations(t)
}

func TestDialogService_Print_Blocked(t *testing.T) {
	svc, d := newTestService()
	job := testJob(domain.DocumentTypeManifest)
	doc := &infra.RenderedDocument{}

	d.repo.On("FindByID", mock.Anything, job.ID).Return(job, nil)
	d.repo.On("Save", mock.Anything, job).Return(nil)
	d.renderer.On("Render", mock.Anything, job).Return(doc, nil)
	d.printer.On("Print", mock.Anything, job.ID.String(), doc).
		Return(&infra.PrintOutcome{Status: domain.PrintStatusBlocked}, nil)

	resp, err := svc.Print(context.Background(), job.ID)

	require.NoError(t, err)
	assert.Equal(t, "BLOCKED", resp.Status)
	assert.False(t, resp.CloseSuggested)
	d.pages.AssertNotCalled(t, "PageCount", mock.Anything)
	d.spooler.AssertNotCalled(t, "Spool", mock.Anything, mock.Anything)
}

func TestDialogService_Print_SpoolFailureIsNotFatal(t *testing.T) {
	svc, d := newTestService()
	job := testJob(domain.DocumentTypeManifest)
	doc := &infra.RenderedDocument{}
	pdf := []byte("%PDF")

	d.repo.On("FindByID", mock.Anything, job.ID).Return(job, nil)
	d.repo.On("Save", mock.Anything, job).Return(nil)
	d.renderer.On("Render", mock.Anything, job).Return(doc, nil)
	d.printer.On("Print", mock.Anything, job.ID.String(), doc).
		Return(&infra.PrintOutcome{Status: domain.PrintStatusPrinted, Trigger: domain.PrintTriggerFallback, Document: pdf}, nil)
	d.pages.On("PageCount", pdf).Return(0, errors.New("malformed"))
	d.spooler.On("Spool", mock.Anything, mock.Anything).Return(nil, errors.New("disk full"))

	resp, err := svc.Print(context.Background(), job.ID)

	require.NoError(t, err)
	assert.Equal(t, "PRINTED", resp.Status)
	assert.Equal(t, "FALLBACK", resp.Trigger)
	assert.Zero(t, resp.Pages)
	assert.Empty(t, resp.SpoolURL)
}

func TestDialogService_Print_ClosedWhilePrinting(t *testing.T) {
	svc, d := newTestService()
	job := testJob(domain.DocumentTypeManifest)
	doc := &infra.RenderedDocument{}

	d.repo.On("FindByID", mock.Anything, job.ID).Return(job, nil).Once()
	d.repo.On("FindByID", mock.Anything, job.ID).Return(nil, shared.ErrNotFound).Once()
	d.renderer.On("Render", mock.Anything, job).Return(doc, nil)
	d.printer.On("Print", mock.Anything, job.ID.String(), doc).
		Return(&infra.PrintOutcome{Status: domain.PrintStatusCancelled, Err: infra.ErrContextClosed}, nil)

	resp, err := svc.Print(context.Background(), job.ID)

	require.NoError(t, err)
	assert.Equal(t, "CANCELLED", resp.Status)
	assert.Equal(t, infra.ErrContextClosed.Error(), resp.Error)
	d.repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestDialogService_Print_KeepsChangesMadeWhilePrinting(t *testing.T) {
	store := cache.NewInMemorySessionStore(time.Hour)
	defer store.Close()
	renderer := new(MockRenderer)
	printer := new(MockPrinter)
	svc := printing.NewDialogService(store, nil, renderer, printer, zap.NewNop(),
		printing.WithServiceClock(func() time.Time { return fixedNow }))

	job := testJob(domain.DocumentTypeManifest)
	require.NoError(t, store.Save(context.Background(), job))
	doc := &infra.RenderedDocument{}

	renderer.On("Render", mock.Anything, mock.Anything).Return(doc, nil)
	printer.On("Print", mock.Anything, job.ID.String(), doc).
		Run(func(args mock.Arguments) {
			_, err := svc.SelectDocumentType(context.Background(), job.ID, printing.SelectDocumentTypeRequest{
				DocumentType: string(domain.DocumentTypeBarcodeManifest),
			})
			require.NoError(t, err)
		}).
		Return(&infra.PrintOutcome{Status: domain.PrintStatusFailed, Err: errors.New("printer jammed")}, nil)

	resp, err := svc.Print(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, "FAILED", resp.Status)

	live, err := store.FindByID(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DocumentTypeBarcodeManifest, live.DocumentType)
	assert.Equal(t, 2, live.Revision)
	require.NotNil(t, live.LastPrint)
	assert.Equal(t, domain.PrintStatusFailed, live.LastPrint.Status)
	assert.Equal(t, fixedNow, live.LastPrint.PrintedAt)
}

func TestDialogService_Export(t *testing.T) {
	svc, d := newTestService()
	job := testJob(domain.DocumentTypeManifest)
	d.repo.On("FindByID", mock.Anything, job.ID).Return(job, nil)
	d.exporter.On("Export", job, fixedNow).Return([]byte("xlsx"), nil)
	d.exporter.On("FileName", job, fixedNow).Return("romaneio.xlsx")

	res, err := svc.Export(context.Background(), job.ID)

	require.NoError(t, err)
	assert.Equal(t, "romaneio.xlsx", res.FileName)
	assert.Equal(t, infra.XLSXContentType, res.ContentType)
	assert.Equal(t, []byte("xlsx"), res.Data)
}

func TestDialogService_Export_NotConfigured(t *testing.T) {
	repo := new(MockJobRepository)
	svc := printing.NewDialogService(repo, nil, new(MockRenderer), new(MockPrinter), nil)

	_, err := svc.Export(context.Background(), uuid.New())

	var domainErr *shared.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "EXPORT_UNAVAILABLE", domainErr.Code)
}

func TestDialogService_ReferenceData(t *testing.T) {
	svc, _ := newTestService()

	types := svc.GetDocumentTypes()
	require.Len(t, types, 2)
	assert.Equal(t, "MANIFEST", types[0].Code)
	assert.Equal(t, "Romaneio Expedição", types[1].DisplayName)

	sizes := svc.GetPaperSizes()
	require.Len(t, sizes, 3)
	assert.Equal(t, 210, sizes[0].Width)
}
