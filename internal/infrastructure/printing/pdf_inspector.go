package printing

import (
	"bytes"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"go.uber.org/zap"
)

// PDFInspector reads metadata from printed output
type PDFInspector struct {
	conf   *model.Configuration
	logger *zap.Logger
}

// NewPDFInspector creates an inspector with relaxed validation
func NewPDFInspector(logger *zap.Logger) *PDFInspector {
	if logger == nil {
		logger = zap.NewNop()
	}
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &PDFInspector{conf: conf, logger: logger}
}

// PageCount returns the number of pages in a PDF document
func (i *PDFInspector) PageCount(data []byte) (int, error) {
	if len(data) == 0 {
		return 0, NewRenderError(ErrCodePrintFailed, "PDF is empty", nil)
	}
	n, err := api.PageCount(bytes.NewReader(data), i.conf)
	if err != nil {
		i.logger.Debug("pdf page count failed", zap.Int("bytes", len(data)), zap.Error(err))
		return 0, fmt.Errorf("count pages: %w", err)
	}
	return n, nil
}
