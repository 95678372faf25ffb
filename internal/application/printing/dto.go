package printing

import (
	"time"

	"github.com/crosswms/loadorder/internal/domain/printing"
)

// =============================================================================
// Dialog DTOs
// =============================================================================

// RecordSourceRequest carries the three possible record sources. Only the
// first non-empty one is used: records, then notas_fiscais, then the
// invoices nested in form_data.
type RecordSourceRequest struct {
	Records      []printing.DisplayRecord `json:"records"`
	NotasFiscais []any                    `json:"notas_fiscais"`
	FormData     map[string]any           `json:"form_data"`
}

// OpenDialogRequest opens a dialog session
type OpenDialogRequest struct {
	RecordSourceRequest
	// DocumentType optionally preselects a layout
	DocumentType string `json:"document_type" binding:"omitempty,document_type"`
}

// SelectDocumentTypeRequest switches the layout of an open dialog
type SelectDocumentTypeRequest struct {
	DocumentType string `json:"document_type" binding:"required,document_type"`
}

// UpdateRecordsRequest replaces the record source of an open dialog
type UpdateRecordsRequest struct {
	RecordSourceRequest
}

// DialogResponse is the view of one dialog session
type DialogResponse struct {
	ID               string                   `json:"id"`
	DocumentType     string                   `json:"document_type"`
	DocumentTypeName string                   `json:"document_type_name"`
	CanPrint         bool                     `json:"can_print"`
	RecordSource     string                   `json:"record_source,omitempty"`
	Records          []printing.DisplayRecord `json:"records"`
	Totals           printing.Totals          `json:"totals"`
	Header           printing.HeaderInfo      `json:"header"`
	Revision         int                      `json:"revision"`
	Changed          bool                     `json:"changed"`
	LastPrint        *printing.PrintSummary   `json:"last_print,omitempty"`
	OpenedAt         time.Time                `json:"opened_at"`
	UpdatedAt        time.Time                `json:"updated_at"`
}

// =============================================================================
// Preview, Print and Export DTOs
// =============================================================================

// MarginsDTO represents page margins in millimeters
type MarginsDTO struct {
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
	Left   int `json:"left"`
}

// PreviewResponse is the composed print-ready document
type PreviewResponse struct {
	HTML        string     `json:"html"`
	Title       string     `json:"title"`
	Revision    int        `json:"revision"`
	Images      int        `json:"images"`
	PaperSize   string     `json:"paper_size"`
	Orientation string     `json:"orientation"`
	Margins     MarginsDTO `json:"margins"`
}

// PrintResponse reports one print attempt
type PrintResponse struct {
	DialogID       string `json:"dialog_id"`
	Status         string `json:"status"`
	Trigger        string `json:"trigger,omitempty"`
	Images         int    `json:"images"`
	Substituted    int    `json:"substituted"`
	Pages          int    `json:"pages,omitempty"`
	SpoolURL       string `json:"spool_url,omitempty"`
	DurationMS     int64  `json:"duration_ms"`
	CloseSuggested bool   `json:"close_suggested"`
	Error          string `json:"error,omitempty"`
	// Document is the printed output, served raw when the client asks for PDF
	Document []byte `json:"-"`
}

// ExportResult is a generated spreadsheet
type ExportResult struct {
	FileName    string
	ContentType string
	Data        []byte
}

// =============================================================================
// Reference Data DTOs
// =============================================================================

// DocumentTypeResponse represents a document type
type DocumentTypeResponse struct {
	Code        string `json:"code"`
	DisplayName string `json:"display_name"`
}

// PaperSizeResponse represents a paper size
type PaperSizeResponse struct {
	Code   string `json:"code"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}
