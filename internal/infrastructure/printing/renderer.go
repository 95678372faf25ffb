package printing

import (
	"errors"
	"time"

	"github.com/crosswms/loadorder/internal/domain/printing"
)

// Drawable is a raster that can be exported for embedding in a document
type Drawable interface {
	// ExportPNG returns the encoded image, or an error when nothing can be exported
	ExportPNG() ([]byte, error)
	// DisplaySize is the on-paper size in CSS pixels
	DisplaySize() (width, height int)
}

// RenderedDocument is the output of one layout render. Each render replaces
// the previous one entirely, surfaces included.
type RenderedDocument struct {
	Title        string
	DocumentType printing.DocumentType
	Revision     int
	// HTML is the document body fragment; barcode slots are <canvas> placeholders
	HTML string
	// Surfaces maps placeholder IDs to their rasters
	Surfaces map[string]Drawable
	// SurfaceOrder lists surface IDs in document order
	SurfaceOrder []string
	Totals       printing.Totals
	GeneratedAt  time.Time
}

// PrintOptions controls the native print command
type PrintOptions struct {
	PaperSize       printing.PaperSize
	Orientation     printing.Orientation
	Margins         printing.Margins
	Scale           float64
	PrintBackground bool
}

// DefaultPrintOptions returns A4 portrait with 2cm/1.5cm margins
func DefaultPrintOptions() PrintOptions {
	return PrintOptions{
		PaperSize:       printing.PaperSizeA4,
		Orientation:     printing.OrientationPortrait,
		Margins:         printing.DefaultMargins(),
		Scale:           1.0,
		PrintBackground: true,
	}
}

// RenderError represents an error while producing or printing a document
type RenderError struct {
	Code    string
	Message string
	Cause   error
}

func (e *RenderError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *RenderError) Unwrap() error {
	return e.Cause
}

// Error codes for rendering and printing failures
const (
	ErrCodeRenderTimeout    = "RENDER_TIMEOUT"
	ErrCodeRenderFailed     = "RENDER_FAILED"
	ErrCodeInvalidHTML      = "INVALID_HTML"
	ErrCodeInvalidPaperSize = "INVALID_PAPER_SIZE"
	ErrCodeTemplateNotFound = "TEMPLATE_NOT_FOUND"
	ErrCodeNoDocumentType   = "NO_DOCUMENT_TYPE"
	ErrCodePrintFailed      = "PRINT_FAILED"
	ErrCodeSpoolFailed      = "SPOOL_FAILED"
	ErrCodeExportFailed     = "EXPORT_FAILED"
)

// NewRenderError creates a new RenderError
func NewRenderError(code, message string, cause error) *RenderError {
	return &RenderError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// ErrorCode returns the RenderError code carried by err, or "" if none
func ErrorCode(err error) string {
	var rerr *RenderError
	if errors.As(err, &rerr) {
		return rerr.Code
	}
	return ""
}
