package dto

import "net/http"

// Error codes returned by the API.
// Format: ERR_<CATEGORY>_<DESCRIPTION>

// General error codes
const (
	ErrCodeUnknown  = "ERR_UNKNOWN"
	ErrCodeInternal = "ERR_INTERNAL"
)

// Input error codes
const (
	ErrCodeValidation   = "ERR_VALIDATION"
	ErrCodeBadRequest   = "ERR_BAD_REQUEST"
	ErrCodeInvalidInput = "ERR_INVALID_INPUT"
	ErrCodeInvalidJSON  = "ERR_INVALID_JSON"
)

// Dialog error codes
const (
	ErrCodeNotFound     = "ERR_NOT_FOUND"
	ErrCodeInvalidState = "ERR_INVALID_STATE"
	// ErrCodeNoDocumentType is returned by preview and print before a layout is chosen
	ErrCodeNoDocumentType = "ERR_NO_DOCUMENT_TYPE"
)

// Rendering and printing error codes
const (
	ErrCodeRenderFailed     = "ERR_RENDER_FAILED"
	ErrCodeRenderTimeout    = "ERR_RENDER_TIMEOUT"
	ErrCodeTemplateNotFound = "ERR_TEMPLATE_NOT_FOUND"
	ErrCodeInvalidHTML      = "ERR_INVALID_HTML"
	ErrCodeInvalidPaperSize = "ERR_INVALID_PAPER_SIZE"
	ErrCodePrintFailed      = "ERR_PRINT_FAILED"
	ErrCodeSpoolFailed      = "ERR_SPOOL_FAILED"
)

// Export error codes
const (
	ErrCodeExportFailed      = "ERR_EXPORT_FAILED"
	ErrCodeExportUnavailable = "ERR_EXPORT_UNAVAILABLE"
)

// ErrCodeRequestTooLarge matches the body limit middleware
const ErrCodeRequestTooLarge = "ERR_REQUEST_TOO_LARGE"

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeUnknown:  http.StatusInternalServerError,
	ErrCodeInternal: http.StatusInternalServerError,

	ErrCodeValidation:   http.StatusBadRequest,
	ErrCodeBadRequest:   http.StatusBadRequest,
	ErrCodeInvalidInput: http.StatusBadRequest,
	ErrCodeInvalidJSON:  http.StatusBadRequest,

	ErrCodeNotFound:       http.StatusNotFound,
	ErrCodeInvalidState:   http.StatusUnprocessableEntity,
	ErrCodeNoDocumentType: http.StatusUnprocessableEntity,

	ErrCodeRenderFailed:     http.StatusInternalServerError,
	ErrCodeRenderTimeout:    http.StatusGatewayTimeout,
	ErrCodeTemplateNotFound: http.StatusInternalServerError,
	ErrCodeInvalidHTML:      http.StatusBadRequest,
	ErrCodeInvalidPaperSize: http.StatusBadRequest,
	ErrCodePrintFailed:      http.StatusBadGateway,
	ErrCodeSpoolFailed:      http.StatusBadGateway,

	ErrCodeExportFailed:      http.StatusInternalServerError,
	ErrCodeExportUnavailable: http.StatusNotImplemented,

	ErrCodeRequestTooLarge: http.StatusRequestEntityTooLarge,
}

// GetHTTPStatus returns the HTTP status code for an error code.
// Unknown codes map to 500.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DomainErrorCodeMapping maps the codes raised by the domain, application
// and rendering layers to API codes
var DomainErrorCodeMapping = map[string]string{
	"NOT_FOUND":          ErrCodeNotFound,
	"INVALID_INPUT":      ErrCodeInvalidInput,
	"INVALID_STATE":      ErrCodeInvalidState,
	"VALIDATION_ERROR":   ErrCodeValidation,
	"BAD_REQUEST":        ErrCodeBadRequest,
	"INTERNAL_ERROR":     ErrCodeInternal,
	"NO_DOCUMENT_TYPE":   ErrCodeNoDocumentType,
	"RENDER_FAILED":      ErrCodeRenderFailed,
	"RENDER_TIMEOUT":     ErrCodeRenderTimeout,
	"TEMPLATE_NOT_FOUND": ErrCodeTemplateNotFound,
	"INVALID_HTML":       ErrCodeInvalidHTML,
	"INVALID_PAPER_SIZE": ErrCodeInvalidPaperSize,
	"PRINT_FAILED":       ErrCodePrintFailed,
	"SPOOL_FAILED":       ErrCodeSpoolFailed,
	"EXPORT_FAILED":      ErrCodeExportFailed,
	"EXPORT_UNAVAILABLE": ErrCodeExportUnavailable,
	"REQUEST_TOO_LARGE":  ErrCodeRequestTooLarge,
}

// NormalizeErrorCode converts a domain code to its API form.
// Codes already in API form, or unknown, are returned as-is.
func NormalizeErrorCode(code string) string {
	if apiCode, ok := DomainErrorCodeMapping[code]; ok {
		return apiCode
	}
	return code
}
