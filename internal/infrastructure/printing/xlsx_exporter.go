package printing

import (
	"fmt"
	"time"

	"github.com/crosswms/loadorder/internal/domain/printing"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const (
	recordsSheet = "Romaneio"
	summarySheet = "Resumo"
	// XLSXContentType is the MIME type of the exported workbook
	XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var recordColumns = []struct {
	title string
	width float64
}{
	{"NFe", 12},
	{"Chave de Acesso", 48},
	{"Remetente", 36},
	{"CNPJ Remetente", 20},
	{"Cidade-UF Remetente", 24},
	{"Destinatário", 36},
	{"CNPJ Destinatário", 20},
	{"Cidade-UF Destinatário", 24},
	{"Volumes", 10},
	{"Peso (kg)", 12},
	{"Valor (R$)", 14},
	{"Cubagem (m³)", 14},
}

// XLSXExporter writes a job's records and totals to a spreadsheet
type XLSXExporter struct {
	location *time.Location
	logger   *zap.Logger
}

// NewXLSXExporter creates an exporter. Timestamps are written in loc.
func NewXLSXExporter(loc *time.Location, logger *zap.Logger) *XLSXExporter {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &XLSXExporter{location: loc, logger: logger}
}

// FileName returns the download name for a job's workbook
func (e *XLSXExporter) FileName(job *printing.DocumentJob, at time.Time) string {
	return fmt.Sprintf("romaneio-%s-%s.xlsx", at.In(e.location).Format("20060102-1504"), job.ID.String()[:8])
}

// Export renders the job into an XLSX workbook
func (e *XLSXExporter) Export(job *printing.DocumentJob, generatedAt time.Time) ([]byte, error) {
	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			e.logger.Warn("failed to close workbook", zap.Error(err))
		}
	}()

	if err := f.SetSheetName("Sheet1", recordsSheet); err != nil {
		return nil, NewRenderError(ErrCodeExportFailed, "rename sheet", err)
	}
	if err := e.writeRecords(f, job); err != nil {
		return nil, NewRenderError(ErrCodeExportFailed, "write records", err)
	}
	if err := e.writeSummary(f, job, generatedAt); err != nil {
		return nil, NewRenderError(ErrCodeExportFailed, "write summary", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, NewRenderError(ErrCodeExportFailed, "serialize workbook", err)
	}
	e.logger.Debug("workbook exported",
		zap.String("job_id", job.ID.String()),
		zap.Int("records", len(job.Records)),
		zap.Int("bytes", buf.Len()))
	return buf.Bytes(), nil
}

func (e *XLSXExporter) writeRecords(f *excelize.File, job *printing.DocumentJob) error {
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#F0F0F0"}},
	})
	if err != nil {
		return err
	}
	moneyFmt := "#,##0.00"
	moneyStyle, err := f.NewStyle(&excelize.Style{CustomNumFmt: &moneyFmt})
	if err != nil {
		return err
	}
	weightFmt := "#,##0.0"
	weightStyle, err := f.NewStyle(&excelize.Style{CustomNumFmt: &weightFmt})
	if err != nil {
		return err
	}

	for i, col := range recordColumns {
		name, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(recordsSheet, name, name, col.width); err != nil {
			return err
		}
		if err := setCell(f, recordsSheet, i+1, 1, col.title); err != nil {
			return err
		}
	}
	if err := f.SetCellStyle(recordsSheet, "A1", "L1", headerStyle); err != nil {
		return err
	}

	row := 2
	for _, r := range job.Records {
		values := []any{
			r.Number,
			r.AccessKey,
			r.Sender.LegalName,
			r.Sender.FormattedTaxID(),
			r.Sender.Location(),
			r.Recipient.LegalName,
			r.Recipient.FormattedTaxID(),
			r.Recipient.Location(),
			r.VolumeCount,
			r.Weight.InexactFloat64(),
			r.DeclaredValue.InexactFloat64(),
			r.CubicVolume.InexactFloat64(),
		}
		for i, v := range values {
			if err := setCell(f, recordsSheet, i+1, row, v); err != nil {
				return err
			}
		}
		row++
	}

	totals := job.Totals()
	totalRow := []struct {
		col int
		v   any
	}{
		{1, "TOTAIS"},
		{9, totals.Volumes},
		{10, totals.Weight.InexactFloat64()},
		{11, totals.Value.InexactFloat64()},
	}
	for _, c := range totalRow {
		if err := setCell(f, recordsSheet, c.col, row, c.v); err != nil {
			return err
		}
	}
	last := fmt.Sprintf("L%d", row)
	if err := f.SetCellStyle(recordsSheet, fmt.Sprintf("A%d", row), last, headerStyle); err != nil {
		return err
	}
	if err := f.SetCellStyle(recordsSheet, "J2", fmt.Sprintf("J%d", row), weightStyle); err != nil {
		return err
	}
	if err := f.SetCellStyle(recordsSheet, "K2", fmt.Sprintf("K%d", row), moneyStyle); err != nil {
		return err
	}
	return f.SetPanes(recordsSheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
}

func (e *XLSXExporter) writeSummary(f *excelize.File, job *printing.DocumentJob, generatedAt time.Time) error {
	if _, err := f.NewSheet(summarySheet); err != nil {
		return err
	}
	totals := job.Totals()
	rows := [][2]any{
		{"Documento", job.DocumentType.DisplayName()},
		{"Tipo", job.Header.Subtype()},
		{"Ordem", job.Header.OrderNumber},
		{"Remetente", job.Header.Sender.DisplayName()},
		{"Destinatário", job.Header.Recipient.DisplayName()},
		{"Quantidade NFes", totals.Count},
		{"Volumes", totals.Volumes},
		{"Peso Total (kg)", totals.Weight.InexactFloat64()},
		{"Valor Total (R$)", totals.Value.InexactFloat64()},
		{"Gerado em", generatedAt.In(e.location).Format("02/01/2006 15:04")},
	}
	for i, r := range rows {
		if err := setCell(f, summarySheet, 1, i+1, r[0]); err != nil {
			return err
		}
		if err := setCell(f, summarySheet, 2, i+1, r[1]); err != nil {
			return err
		}
	}
	return f.SetColWidth(summarySheet, "A", "B", 28)
}

func setCell(f *excelize.File, sheet string, col, row int, v any) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	return f.SetCellValue(sheet, cell, v)
}
