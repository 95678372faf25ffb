package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	printingapp "github.com/crosswms/loadorder/internal/application/printing"
	"github.com/crosswms/loadorder/internal/domain/shared"
	"github.com/crosswms/loadorder/internal/interfaces/http/dto"
	"github.com/crosswms/loadorder/internal/interfaces/http/middleware"
	"github.com/crosswms/loadorder/internal/interfaces/http/router"
)

type MockDialogService struct {
	mock.Mock
}

func (m *MockDialogService) Open(ctx context.Context, req printingapp.OpenDialogRequest) (*printingapp.DialogResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*printingapp.DialogResponse), args.Error(1)
}

func (m *MockDialogService) Get(ctx context.Context, id uuid.UUID) (*printingapp.DialogResponse, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*printingapp.DialogResponse), args.Error(1)
}

func (m *MockDialogService) SelectDocumentType(ctx context.Context, id uuid.UUID, req printingapp.SelectDocumentTypeRequest) (*printingapp.DialogResponse, error) {
	args := m.Called(ctx, id, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*printingapp.DialogResponse), args.Error(1)
}

func (m *MockDialogService) UpdateRecords(ctx context.Context, id uuid.UUID, req printingapp.UpdateRecordsRequest) (*printingapp.DialogResponse, error) {
	args := m.Called(ctx, id, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*printingapp.DialogResponse), args.Error(1)
}

func (m *MockDialogService) Close(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockDialogService) Preview(ctx context.Context, id uuid.UUID) (*printingapp.PreviewResponse, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*printingapp.PreviewResponse), args.Error(1)
}

func (m *MockDialogService) Print(ctx context.Context, id uuid.UUID) (*printingapp.PrintResponse, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*printingapp.PrintResponse), args.Error(1)
}

func (m *MockDialogService) Export(ctx context.Context, id uuid.UUID) (*printingapp.ExportResult, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*printingapp.ExportResult), args.Error(1)
}

func (m *MockDialogService) GetDocumentTypes() []printingapp.DocumentTypeResponse {
	return m.Called().Get(0).([]printingapp.DocumentTypeResponse)
}

func (m *MockDialogService) GetPaperSizes() []printingapp.PaperSizeResponse {
	return m.Called().Get(0).([]printingapp.PaperSizeResponse)
}

func setupPrintRouter(svc DialogService) *gin.Engine {
	middleware.SetupValidator()
	engine := gin.New()
	engine.Use(middleware.RequestID())
	router.NewRouter(engine).Register(PrintRoutes(NewPrintHandler(svc))).Setup()
	return engine
}

func do(engine *gin.Engine, method, target, body string, headers ...string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func dialogPath(id uuid.UUID, suffix string) string {
	return "/api/v1/print/dialogs/" + id.String() + suffix
}

func TestPrintHandler_OpenDialog(t *testing.T) {
	svc := new(MockDialogService)
	engine := setupPrintRouter(svc)
	id := uuid.New()

	svc.On("Open", mock.Anything, mock.MatchedBy(func(req printingapp.OpenDialogRequest) bool {
		return len(req.Records) == 1 && req.Records[0].Number == "1234" && req.DocumentType == "MANIFEST"
	})).Return(&printingapp.DialogResponse{ID: id.String(), DocumentType: "MANIFEST", CanPrint: true, RecordSource: "records"}, nil)

	w := do(engine, http.MethodPost, "/api/v1/print/dialogs",
		`{"document_type":"MANIFEST","records":[{"number":"1234","volume_count":2}]}`)

	require.Equal(t, http.StatusCreated, w.Code)
	data := decode(t, w).Data.(map[string]any)
	assert.Equal(t, id.String(), data["id"])
	assert.Equal(t, true, data["can_print"])
	svc.AssertExpectations(t)
}

func TestPrintHandler_OpenDialog_InvalidDocumentType(t *testing.T) {
	svc := new(MockDialogService)
	engine := setupPrintRouter(svc)

	w := do(engine, http.MethodPost, "/api/v1/print/dialogs", `{"document_type":"INVOICE"}`)

	require.Equal(t, http.StatusBadRequest, w.Code)
	resp := decode(t, w)
	assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
	require.Len(t, resp.Error.Details, 1)
	assert.Equal(t, "document_type", resp.Error.Details[0].Field)
	svc.AssertNotCalled(t, "Open", mock.Anything, mock.Anything)
}

func TestPrintHandler_GetDialog(t *testing.T) {
	svc := new(MockDialogService)
	engine := setupPrintRouter(svc)
	id := uuid.New()

	t.Run("found", func(t *testing.T) {
		svc.On("Get", mock.Anything, id).Return(&printingapp.DialogResponse{ID: id.String(), Revision: 2}, nil).Once()

		w := do(engine, http.MethodGet, dialogPath(id, ""), "")

		require.Equal(t, http.StatusOK, w.Code)
		assert.EqualValues(t, 2, decode(t, w).Data.(map[string]any)["revision"])
	})

	t.Run("not found", func(t *testing.T) {
		missing := uuid.New()
		svc.On("Get", mock.Anything, missing).Return(nil, shared.NewDomainError("NOT_FOUND", "dialog not found")).Once()

		w := do(engine, http.MethodGet, dialogPath(missing, ""), "")

		require.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, dto.ErrCodeNotFound, decode(t, w).Error.Code)
	})

	t.Run("malformed id", func(t *testing.T) {
		w := do(engine, http.MethodGet, "/api/v1/print/dialogs/not-a-uuid", "")

		require.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestPrintHandler_SelectDocumentType(t *testing.T) {
	svc := new(MockDialogService)
	engine := setupPrintRouter(svc)
	id := uuid.New()

	svc.On("SelectDocumentType", mock.Anything, id, printingapp.SelectDocumentTypeRequest{DocumentType: "BARCODE_MANIFEST"}).
		Return(&printingapp.DialogResponse{ID: id.String(), DocumentType: "BARCODE_MANIFEST", Changed: false}, nil)

	w := do(engine, http.MethodPut, dialogPath(id, "/document-type"), `{"document_type":"BARCODE_MANIFEST"}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decode(t, w).Data.(map[string]any)["changed"])

	w = do(engine, http.MethodPut, dialogPath(id, "/document-type"), `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	svc.AssertNumberOfCalls(t, "SelectDocumentType", 1)
}

func TestPrintHandler_UpdateRecords(t *testing.T) {
	svc := new(MockDialogService)
	engine := setupPrintRouter(svc)
	id := uuid.New()

	svc.On("UpdateRecords", mock.Anything, id, mock.MatchedBy(func(req printingapp.UpdateRecordsRequest) bool {
		return len(req.NotasFiscais) == 2
	})).Return(&printingapp.DialogResponse{ID: id.String(), RecordSource: "invoices", Revision: 3}, nil)

	w := do(engine, http.MethodPut, dialogPath(id, "/records"), `{"notas_fiscais":[{"numero":"1"},{"numero":"2"}]}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "invoices", decode(t, w).Data.(map[string]any)["record_source"])
}

func TestPrintHandler_Preview(t *testing.T) {
	svc := new(MockDialogService)
	engine := setupPrintRouter(svc)
	id := uuid.New()

	svc.On("Preview", mock.Anything, id).Return(&printingapp.PreviewResponse{
		HTML:     "<html><body>ORDEM DE CARREGAMENTO</body></html>",
		Title:    "Ordem de Carregamento",
		Revision: 4,
	}, nil)

	t.Run("html by default", func(t *testing.T) {
		w := do(engine, http.MethodGet, dialogPath(id, "/preview"), "")

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "text/html; charset=utf-8", w.Header().Get("Content-Type"))
		assert.Equal(t, "4", w.Header().Get("X-Document-Revision"))
		assert.Contains(t, w.Body.String(), "ORDEM DE CARREGAMENTO")
	})

	t.Run("json when asked", func(t *testing.T) {
		w := do(engine, http.MethodGet, dialogPath(id, "/preview"), "", "Accept", "application/json")

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "Ordem de Carregamento", decode(t, w).Data.(map[string]any)["title"])
	})
}

func TestPrintHandler_Preview_NoDocumentType(t *testing.T) {
	svc := new(MockDialogService)
	engine := setupPrintRouter(svc)
	id := uuid.New()

	svc.On("Preview", mock.Anything, id).Return(nil, shared.NewDomainError("NO_DOCUMENT_TYPE", "no document type selected"))

	w := do(engine, http.MethodGet, dialogPath(id, "/preview"), "")

	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, dto.ErrCodeNoDocumentType, decode(t, w).Error.Code)
}

func TestPrintHandler_Print(t *testing.T) {
	svc := new(MockDialogService)
	engine := setupPrintRouter(svc)
	id := uuid.New()
	pdf := []byte("%PDF-1.7 fake")

	svc.On("Print", mock.Anything, id).Return(&printingapp.PrintResponse{
		DialogID:       id.String(),
		Status:         "PRINTED",
		Trigger:        "READY",
		Images:         3,
		CloseSuggested: true,
		Document:       pdf,
	}, nil)

	t.Run("json outcome", func(t *testing.T) {
		w := do(engine, http.MethodPost, dialogPath(id, "/print"), "")

		require.Equal(t, http.StatusOK, w.Code)
		data := decode(t, w).Data.(map[string]any)
		assert.Equal(t, "PRINTED", data["status"])
		assert.Equal(t, true, data["close_suggested"])
		assert.NotContains(t, w.Body.String(), "PDF-1.7")
	})

	t.Run("pdf bytes", func(t *testing.T) {
		w := do(engine, http.MethodPost, dialogPath(id, "/print"), "", "Accept", "application/pdf")

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
		assert.Equal(t, "PRINTED", w.Header().Get("X-Print-Status"))
		assert.Contains(t, w.Header().Get("Content-Disposition"), id.String())
		assert.Equal(t, pdf, w.Body.Bytes())
	})
}

func TestPrintHandler_Print_BlockedFallsBackToJSON(t *testing.T) {
	svc := new(MockDialogService)
	engine := setupPrintRouter(svc)
	id := uuid.New()

	svc.On("Print", mock.Anything, id).Return(&printingapp.PrintResponse{
		DialogID: id.String(),
		Status:   "BLOCKED",
		Error:    "print context could not be opened",
	}, nil)

	w := do(engine, http.MethodPost, dialogPath(id, "/print"), "", "Accept", "application/pdf")

	require.Equal(t, http.StatusOK, w.Code)
	data := decode(t, w).Data.(map[string]any)
	assert.Equal(t, "BLOCKED", data["status"])
	assert.Equal(t, false, data["close_suggested"])
}

func TestPrintHandler_Export(t *testing.T) {
	svc := new(MockDialogService)
	engine := setupPrintRouter(svc)
	id := uuid.New()

	t.Run("attachment", func(t *testing.T) {
		svc.On("Export", mock.Anything, id).Return(&printingapp.ExportResult{
			FileName:    "ordem-carregamento-OC-77.xlsx",
			ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
			Data:        []byte("PK\x03\x04"),
		}, nil).Once()

		w := do(engine, http.MethodGet, dialogPath(id, "/export"), "")

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, `attachment; filename="ordem-carregamento-OC-77.xlsx"`, w.Header().Get("Content-Disposition"))
		assert.Equal(t, []byte("PK\x03\x04"), w.Body.Bytes())
	})

	t.Run("not configured", func(t *testing.T) {
		svc.On("Export", mock.Anything, id).Return(nil, shared.NewDomainError("EXPORT_UNAVAILABLE", "export is not configured")).Once()

		w := do(engine, http.MethodGet, dialogPath(id, "/export"), "")

		assert.Equal(t, http.StatusNotImplemented, w.Code)
	})
}

func TestPrintHandler_CloseDialog(t *testing.T) {
	svc := new(MockDialogService)
	engine := setupPrintRouter(svc)
	id := uuid.New()

	svc.On("Close", mock.Anything, id).Return(nil)

	w := do(engine, http.MethodDelete, dialogPath(id, ""), "")

	assert.Equal(t, http.StatusNoContent, w.Code)
	svc.AssertExpectations(t)
}

func TestPrintHandler_ReferenceData(t *testing.T) {
	svc := new(MockDialogService)
	engine := setupPrintRouter(svc)

	svc.On("GetDocumentTypes").Return([]printingapp.DocumentTypeResponse{
		{Code: "MANIFEST", DisplayName: "Ordem de Carregamento"},
		{Code: "BARCODE_MANIFEST", DisplayName: "Ordem de Carregamento com Código de Barras"},
	})
	svc.On("GetPaperSizes").Return([]printingapp.PaperSizeResponse{{Code: "A4", Width: 210, Height: 297}})

	w := do(engine, http.MethodGet, "/api/v1/print/document-types", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w).Data.([]any), 2)

	w = do(engine, http.MethodGet, "/api/v1/print/paper-sizes", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w).Data.([]any), 1)
}

func TestAccepts(t *testing.T) {
	c, _ := testContext()
	c.Request.Header.Set("Accept", "text/html, application/PDF;q=0.9")

	assert.True(t, accepts(c, "application/pdf"))
	assert.False(t, accepts(c, "application/json"))
}
