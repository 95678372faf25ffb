package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	printingapp "github.com/crosswms/loadorder/internal/application/printing"
	"github.com/crosswms/loadorder/internal/interfaces/http/middleware"
)

// DialogService is the print dialog use case surface the handler drives
type DialogService interface {
	Open(ctx context.Context, req printingapp.OpenDialogRequest) (*printingapp.DialogResponse, error)
	Get(ctx context.Context, dialogID uuid.UUID) (*printingapp.DialogResponse, error)
	SelectDocumentType(ctx context.Context, dialogID uuid.UUID, req printingapp.SelectDocumentTypeRequest) (*printingapp.DialogResponse, error)
	UpdateRecords(ctx context.Context, dialogID uuid.UUID, req printingapp.UpdateRecordsRequest) (*printingapp.DialogResponse, error)
	Close(ctx context.Context, dialogID uuid.UUID) error
	Preview(ctx context.Context, dialogID uuid.UUID) (*printingapp.PreviewResponse, error)
	Print(ctx context.Context, dialogID uuid.UUID) (*printingapp.PrintResponse, error)
	Export(ctx context.Context, dialogID uuid.UUID) (*printingapp.ExportResult, error)
	GetDocumentTypes() []printingapp.DocumentTypeResponse
	GetPaperSizes() []printingapp.PaperSizeResponse
}

// PrintHandler handles the loading order print dialog endpoints
type PrintHandler struct {
	dialogs DialogService
}

// NewPrintHandler creates a new PrintHandler
func NewPrintHandler(dialogs DialogService) *PrintHandler {
	return &PrintHandler{dialogs: dialogs}
}

// OpenDialog godoc
//
//	@ID				openPrintDialog
//	@Summary		Open a print dialog
//	@Description	Normalizes the record source and opens a dialog session
//	@Tags			print-dialogs
//	@Accept			json
//	@Produce		json
//	@Param			request	body		printingapp.OpenDialogRequest	true	"Record source"
//	@Success		201		{object}	dto.Response
//	@Failure		400		{object}	dto.Response
//	@Router			/print/dialogs [post]
func (h *PrintHandler) OpenDialog(c *gin.Context) {
	var req printingapp.OpenDialogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	result, err := h.dialogs.Open(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, result)
}

// GetDialog godoc
//
//	@ID				getPrintDialog
//	@Summary		Get a print dialog
//	@Tags			print-dialogs
//	@Produce		json
//	@Param			id	path		string	true	"Dialog ID"
//	@Success		200	{object}	dto.Response
//	@Failure		404	{object}	dto.Response
//	@Router			/print/dialogs/{id} [get]
func (h *PrintHandler) GetDialog(c *gin.Context) {
	id, ok := dialogIDParam(c)
	if !ok {
		return
	}

	result, err := h.dialogs.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, result)
}

// SelectDocumentType godoc
//
//	@ID				selectPrintDialogDocumentType
//	@Summary		Choose the layout of a dialog
//	@Description	Idempotent; choosing the current layout reports changed=false
//	@Tags			print-dialogs
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string									true	"Dialog ID"
//	@Param			request	body		printingapp.SelectDocumentTypeRequest	true	"Layout"
//	@Success		200		{object}	dto.Response
//	@Failure		400		{object}	dto.Response
//	@Failure		404		{object}	dto.Response
//	@Router			/print/dialogs/{id}/document-type [put]
func (h *PrintHandler) SelectDocumentType(c *gin.Context) {
	id, ok := dialogIDParam(c)
	if !ok {
		return
	}

	var req printingapp.SelectDocumentTypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	result, err := h.dialogs.SelectDocumentType(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, result)
}

// UpdateRecords godoc
//
//	@ID				updatePrintDialogRecords
//	@Summary		Replace the records of a dialog
//	@Tags			print-dialogs
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string							true	"Dialog ID"
//	@Param			request	body		printingapp.UpdateRecordsRequest	true	"Record source"
//	@Success		200		{object}	dto.Response
//	@Failure		404		{object}	dto.Response
//	@Router			/print/dialogs/{id}/records [put]
func (h *PrintHandler) UpdateRecords(c *gin.Context) {
	id, ok := dialogIDParam(c)
	if !ok {
		return
	}

	var req printingapp.UpdateRecordsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	result, err := h.dialogs.UpdateRecords(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, result)
}

// Preview godoc
//
//	@ID				previewPrintDialog
//	@Summary		Print-ready HTML of the current layout
//	@Description	Returns text/html by default, or the JSON envelope when Accept is application/json
//	@Tags			print-dialogs
//	@Produce		html
//	@Produce		json
//	@Param			id	path		string	true	"Dialog ID"
//	@Success		200	{string}	string
//	@Failure		404	{object}	dto.Response
//	@Failure		422	{object}	dto.Response
//	@Router			/print/dialogs/{id}/preview [get]
func (h *PrintHandler) Preview(c *gin.Context) {
	id, ok := dialogIDParam(c)
	if !ok {
		return
	}

	result, err := h.dialogs.Preview(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	if accepts(c, "application/json") {
		respond(c, http.StatusOK, result)
		return
	}
	c.Header("X-Document-Revision", strconv.Itoa(result.Revision))
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(result.HTML))
}

// Print godoc
//
//	@ID				printPrintDialog
//	@Summary		Print the current layout
//	@Description	Runs the print orchestrator. BLOCKED, FAILED and CANCELLED are reported in the body with 200.
//	@Description	With Accept: application/pdf the printed document itself is returned.
//	@Tags			print-dialogs
//	@Produce		json
//	@Produce		application/pdf
//	@Param			id	path		string	true	"Dialog ID"
//	@Success		200	{object}	dto.Response
//	@Failure		404	{object}	dto.Response
//	@Failure		422	{object}	dto.Response
//	@Router			/print/dialogs/{id}/print [post]
func (h *PrintHandler) Print(c *gin.Context) {
	id, ok := dialogIDParam(c)
	if !ok {
		return
	}

	result, err := h.dialogs.Print(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	if accepts(c, "application/pdf") && len(result.Document) > 0 {
		c.Header("X-Print-Status", result.Status)
		c.Header("Content-Disposition", fmt.Sprintf(`inline; filename="ordem-carregamento-%s.pdf"`, id))
		c.Data(http.StatusOK, "application/pdf", result.Document)
		return
	}
	respond(c, http.StatusOK, result)
}

// Export godoc
//
//	@ID				exportPrintDialog
//	@Summary		Spreadsheet of the dialog records and totals
//	@Tags			print-dialogs
//	@Produce		application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
//	@Param			id	path		string	true	"Dialog ID"
//	@Success		200	{file}		file
//	@Failure		404	{object}	dto.Response
//	@Failure		501	{object}	dto.Response
//	@Router			/print/dialogs/{id}/export [get]
func (h *PrintHandler) Export(c *gin.Context) {
	id, ok := dialogIDParam(c)
	if !ok {
		return
	}

	result, err := h.dialogs.Export(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, result.FileName))
	c.Data(http.StatusOK, result.ContentType, result.Data)
}

// CloseDialog godoc
//
//	@ID				closePrintDialog
//	@Summary		Close or cancel a dialog
//	@Tags			print-dialogs
//	@Param			id	path	string	true	"Dialog ID"
//	@Success		204
//	@Failure		404	{object}	dto.Response
//	@Router			/print/dialogs/{id} [delete]
func (h *PrintHandler) CloseDialog(c *gin.Context) {
	id, ok := dialogIDParam(c)
	if !ok {
		return
	}

	if err := h.dialogs.Close(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetDocumentTypes godoc
//
//	@ID				getPrintDocumentTypes
//	@Summary		List the printable layouts
//	@Tags			print-reference
//	@Produce		json
//	@Success		200	{object}	dto.Response
//	@Router			/print/document-types [get]
func (h *PrintHandler) GetDocumentTypes(c *gin.Context) {
	respond(c, http.StatusOK, h.dialogs.GetDocumentTypes())
}

// GetPaperSizes godoc
//
//	@ID				getPrintPaperSizes
//	@Summary		List the supported paper sizes
//	@Tags			print-reference
//	@Produce		json
//	@Success		200	{object}	dto.Response
//	@Router			/print/paper-sizes [get]
func (h *PrintHandler) GetPaperSizes(c *gin.Context) {
	respond(c, http.StatusOK, h.dialogs.GetPaperSizes())
}

// accepts reports whether the Accept header names mime explicitly
func accepts(c *gin.Context, mime string) bool {
	for _, part := range strings.Split(c.GetHeader("Accept"), ",") {
		if strings.EqualFold(strings.TrimSpace(strings.SplitN(part, ";", 2)[0]), mime) {
			return true
		}
	}
	return false
}
