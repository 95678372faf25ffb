package printing

// DocumentType identifies which manifest layout a dialog session renders
type DocumentType string

const (
	DocumentTypeNone            DocumentType = "NONE"             // nothing selected yet
	DocumentTypeManifest        DocumentType = "MANIFEST"         // Ordem de Carga
	DocumentTypeBarcodeManifest DocumentType = "BARCODE_MANIFEST" // Romaneio Expedição
)

// IsValid checks if the DocumentType is a known value, including NONE
func (d DocumentType) IsValid() bool {
	switch d {
	case DocumentTypeNone, DocumentTypeManifest, DocumentTypeBarcodeManifest:
		return true
	}
	return false
}

// IsSelectable reports whether a user may pick this type. NONE is only the initial state.
func (d DocumentType) IsSelectable() bool {
	return d == DocumentTypeManifest || d == DocumentTypeBarcodeManifest
}

// String returns the string representation of DocumentType
func (d DocumentType) String() string {
	return string(d)
}

// DisplayName returns the pt-BR label shown on the document and in the selector
func (d DocumentType) DisplayName() string {
	switch d {
	case DocumentTypeManifest:
		return "Ordem de Carga"
	case DocumentTypeBarcodeManifest:
		return "Romaneio Expedição"
	case DocumentTypeNone:
		return "Nenhum"
	default:
		return string(d)
	}
}

// SelectableDocumentTypes returns the types a dialog can switch between
func SelectableDocumentTypes() []DocumentType {
	return []DocumentType{DocumentTypeManifest, DocumentTypeBarcodeManifest}
}

// PaperSize represents the paper size for printing
type PaperSize string

const (
	PaperSizeA4     PaperSize = "A4"     // 210mm x 297mm
	PaperSizeA5     PaperSize = "A5"     // 148mm x 210mm
	PaperSizeLetter PaperSize = "LETTER" // 216mm x 279mm
)

// IsValid checks if the PaperSize is a valid value
func (p PaperSize) IsValid() bool {
	switch p {
	case PaperSizeA4, PaperSizeA5, PaperSizeLetter:
		return true
	}
	return false
}

// String returns the string representation of PaperSize
func (p PaperSize) String() string {
	return string(p)
}

// AllPaperSizes returns all supported paper sizes
func AllPaperSizes() []PaperSize {
	return []PaperSize{PaperSizeA4, PaperSizeA5, PaperSizeLetter}
}

// Dimensions returns the paper dimensions in millimeters (width, height)
func (p PaperSize) Dimensions() (width, height int) {
	switch p {
	case PaperSizeA5:
		return 148, 210
	case PaperSizeLetter:
		return 216, 279
	default:
		return 210, 297
	}
}

// Orientation represents the page orientation for printing
type Orientation string

const (
	OrientationPortrait  Orientation = "PORTRAIT"
	OrientationLandscape Orientation = "LANDSCAPE"
)

// IsValid checks if the Orientation is a valid value
func (o Orientation) IsValid() bool {
	switch o {
	case OrientationPortrait, OrientationLandscape:
		return true
	}
	return false
}

// String returns the string representation of Orientation
func (o Orientation) String() string {
	return string(o)
}

// PrintStatus is the terminal state of one print attempt
type PrintStatus string

const (
	PrintStatusPrinted   PrintStatus = "PRINTED"   // print command issued
	PrintStatusBlocked   PrintStatus = "BLOCKED"   // secondary context refused
	PrintStatusFailed    PrintStatus = "FAILED"    // context opened but write/print failed
	PrintStatusCancelled PrintStatus = "CANCELLED" // caller gave up before print
)

// String returns the string representation of PrintStatus
func (s PrintStatus) String() string {
	return string(s)
}

// PrintTrigger records which path invoked the print command
type PrintTrigger string

const (
	PrintTriggerNone     PrintTrigger = ""
	PrintTriggerSettled  PrintTrigger = "SETTLED"  // assets settled plus grace
	PrintTriggerFallback PrintTrigger = "FALLBACK" // fallback timer won the race
)

// String returns the string representation of PrintTrigger
func (t PrintTrigger) String() string {
	return string(t)
}
