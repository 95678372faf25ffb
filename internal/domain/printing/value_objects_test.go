package printing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMargins(t *testing.T) {
	tests := []struct {
		name    string
		top     int
		right   int
		bottom  int
		left    int
		wantErr bool
	}{
		{"valid", 20, 15, 20, 15, false},
		{"zero", 0, 0, 0, 0, false},
		{"negative", -1, 0, 0, 0, true},
		{"too large", 0, 101, 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewMargins(tt.top, tt.right, tt.bottom, tt.left)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.top, m.Top)
			assert.Equal(t, tt.left, m.Left)
		})
	}
}

func TestDefaultMargins(t *testing.T) {
	m := DefaultMargins()
	assert.Equal(t, Margins{Top: 20, Right: 15, Bottom: 20, Left: 15}, m)
	assert.False(t, m.IsZero())
}

func TestParty_Placeholders(t *testing.T) {
	var p Party
	assert.True(t, p.IsZero())
	assert.Equal(t, PlaceholderText, p.DisplayName())
	assert.Equal(t, "N/A-N/A", p.Location())
	assert.Equal(t, PlaceholderText, p.FormattedTaxID())

	p = Party{LegalName: "ACME LTDA", City: "Campinas", State: "SP"}
	assert.Equal(t, "ACME LTDA", p.DisplayName())
	assert.Equal(t, "Campinas-SP", p.Location())
}

func TestParty_FormattedTaxID(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"12345678000195", "12.345.678/0001-95"},
		{"12.345.678/0001-95", "12.345.678/0001-95"},
		{"123", "123"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Party{TaxID: tt.in}.FormattedTaxID())
		})
	}
}

func TestDisplayRecord_Sanitized(t *testing.T) {
	r := DisplayRecord{
		DeclaredValue: decimal.NewFromInt(-5),
		Weight:        decimal.NewFromInt(-1),
		CubicVolume:   decimal.NewFromInt(-2),
		VolumeCount:   0,
	}.Sanitized()

	assert.True(t, r.DeclaredValue.IsZero())
	assert.True(t, r.Weight.IsZero())
	assert.True(t, r.CubicVolume.IsZero())
	assert.Equal(t, 1, r.VolumeCount)
}

func TestComputeTotals(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		totals := ComputeTotals(nil)
		assert.Equal(t, 0, totals.Volumes)
		assert.Equal(t, 0, totals.Count)
		assert.True(t, totals.Weight.IsZero())
		assert.True(t, totals.Value.IsZero())
	})

	t.Run("sums every record", func(t *testing.T) {
		records := []DisplayRecord{
			{VolumeCount: 3, Weight: decimal.RequireFromString("12.5"), DeclaredValue: decimal.RequireFromString("1000.10")},
			{VolumeCount: 1, Weight: decimal.RequireFromString("0.5"), DeclaredValue: decimal.RequireFromString("234.46")},
		}
		totals := ComputeTotals(records)
		assert.Equal(t, 4, totals.Volumes)
		assert.Equal(t, 2, totals.Count)
		assert.Equal(t, "13", totals.Weight.String())
		assert.Equal(t, "1234.56", totals.Value.String())
	})
}

func TestHeaderInfo_Subtype(t *testing.T) {
	assert.Equal(t, "Coleta", HeaderInfo{}.Subtype())
	assert.Equal(t, "Transferência", HeaderInfo{OperationSubtype: "Transferência"}.Subtype())
}
