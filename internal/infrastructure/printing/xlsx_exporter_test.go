package printing

import (
	"bytes"
	"testing"
	"time"

	"github.com/crosswms/loadorder/internal/domain/printing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap/zaptest"
)

func TestXLSXExporter_Export(t *testing.T) {
	exporter := NewXLSXExporter(time.UTC, zaptest.NewLogger(t))
	job := newTestJob(t, printing.DocumentTypeManifest)

	data, err := exporter.Export(job, fixedClock())
	require.NoError(t, err)
	require.NotEmpty(t, data)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Romaneio", "Resumo"}, f.GetSheetList())

	get := func(sheet, cell string) string {
		v, err := f.GetCellValue(sheet, cell, excelize.Options{RawCellValue: true})
		require.NoError(t, err)
		return v
	}

	assert.Equal(t, "NFe", get("Romaneio", "A1"))
	assert.Equal(t, "Cubagem (m³)", get("Romaneio", "L1"))
	assert.Equal(t, "1234", get("Romaneio", "A2"))
	assert.Equal(t, "35250312345678000190550010000012341000012345", get("Romaneio", "B2"))
	assert.Equal(t, "12.345.678/0001-90", get("Romaneio", "D2"))
	assert.Equal(t, "Campinas-SP", get("Romaneio", "E2"))
	assert.Equal(t, "2", get("Romaneio", "I2"))
	assert.Equal(t, "1500.5", get("Romaneio", "K2"))
	assert.Equal(t, "N/A-N/A", get("Romaneio", "H3"))

	assert.Equal(t, "TOTAIS", get("Romaneio", "A4"))
	assert.Equal(t, "3", get("Romaneio", "I4"))
	assert.Equal(t, "15.5", get("Romaneio", "J4"))
	assert.Equal(t, "1750.5", get("Romaneio", "K4"))

	assert.Equal(t, "Ordem de Carga", get("Resumo", "B1"))
	assert.Equal(t, "Entrega", get("Resumo", "B2"))
	assert.Equal(t, "OC-77", get("Resumo", "B3"))
	assert.Equal(t, "2", get("Resumo", "B6"))
	assert.Equal(t, "14/03/2025 09:30", get("Resumo", "B10"))
}

func TestXLSXExporter_EmptyJob(t *testing.T) {
	exporter := NewXLSXExporter(nil, nil)
	job := printing.NewDocumentJob(nil, printing.HeaderInfo{})

	data, err := exporter.Export(job, fixedClock())
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	v, err := f.GetCellValue("Romaneio", "A2")
	require.NoError(t, err)
	assert.Equal(t, "TOTAIS", v)

	v, err = f.GetCellValue("Resumo", "B2")
	require.NoError(t, err)
	assert.Equal(t, "Coleta", v)
}

func TestXLSXExporter_FileName(t *testing.T) {
	exporter := NewXLSXExporter(time.UTC, nil)
	job := newTestJob(t, printing.DocumentTypeManifest)

	name := exporter.FileName(job, fixedClock())
	assert.Equal(t, "romaneio-20250314-0930-"+job.ID.String()[:8]+".xlsx", name)
}
