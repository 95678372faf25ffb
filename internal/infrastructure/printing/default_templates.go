package printing

import (
	"embed"
	"fmt"

	"github.com/crosswms/loadorder/internal/domain/printing"
)

//go:embed templates/*.html templates/*.css
var templateFS embed.FS

const (
	partialsPath   = "templates/partials.html"
	stylesheetPath = "templates/print.css"
)

// DefaultTemplate describes one built-in manifest layout
type DefaultTemplate struct {
	DocumentType printing.DocumentType
	Name         string
	Description  string
	PaperSize    printing.PaperSize
	Orientation  printing.Orientation
	Margins      printing.Margins
	FilePath     string // Path within embed.FS
}

// GetDefaultTemplates returns the built-in layouts, one per selectable document type
func GetDefaultTemplates() []DefaultTemplate {
	return []DefaultTemplate{
		{
			DocumentType: printing.DocumentTypeManifest,
			Name:         "Ordem de Carga - A4",
			Description:  "Tabela com remetente, destinatário, chave de acesso, volumes, peso e valor por nota",
			PaperSize:    printing.PaperSizeA4,
			Orientation:  printing.OrientationPortrait,
			Margins:      printing.DefaultMargins(),
			FilePath:     "templates/manifest.html",
		},
		{
			DocumentType: printing.DocumentTypeBarcodeManifest,
			Name:         "Romaneio Expedição - A4",
			Description:  "Um bloco por nota com código de barras CODE128 da chave de acesso",
			PaperSize:    printing.PaperSizeA4,
			Orientation:  printing.OrientationPortrait,
			Margins:      printing.DefaultMargins(),
			FilePath:     "templates/barcode_manifest.html",
		},
	}
}

// LoadTemplateContent reads a file from the embedded template directory
func LoadTemplateContent(filePath string) (string, error) {
	content, err := templateFS.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to read template file %s: %w", filePath, err)
	}
	return string(content), nil
}
