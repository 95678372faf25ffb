package printing

import (
	"strings"

	"github.com/crosswms/loadorder/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// PlaceholderText is rendered wherever a party field is missing
const PlaceholderText = "N/A"

// Margins represents the page margins in millimeters
type Margins struct {
	Top    int `json:"top"`    // Top margin in mm
	Right  int `json:"right"`  // Right margin in mm
	Bottom int `json:"bottom"` // Bottom margin in mm
	Left   int `json:"left"`   // Left margin in mm
}

// NewMargins creates a new Margins value object
func NewMargins(top, right, bottom, left int) (Margins, error) {
	if top < 0 || right < 0 || bottom < 0 || left < 0 {
		return Margins{}, shared.NewDomainError("INVALID_MARGINS", "Margins cannot be negative")
	}
	if top > 100 || right > 100 || bottom > 100 || left > 100 {
		return Margins{}, shared.NewDomainError("INVALID_MARGINS", "Margins cannot exceed 100mm")
	}
	return Margins{Top: top, Right: right, Bottom: bottom, Left: left}, nil
}

// DefaultMargins returns the manifest page margins: 2cm top/bottom, 1.5cm sides
func DefaultMargins() Margins {
	return Margins{Top: 20, Right: 15, Bottom: 20, Left: 15}
}

// IsZero returns true if all margins are zero
func (m Margins) IsZero() bool {
	return m.Top == 0 && m.Right == 0 && m.Bottom == 0 && m.Left == 0
}

// Party is the sender or recipient of an invoice
type Party struct {
	LegalName string `json:"legal_name"`
	TaxID     string `json:"tax_id"`
	State     string `json:"state"`
	City      string `json:"city"`
}

// IsZero reports whether every field of the party is empty
func (p Party) IsZero() bool {
	return p.LegalName == "" && p.TaxID == "" && p.State == "" && p.City == ""
}

// DisplayName returns the legal name or the placeholder
func (p Party) DisplayName() string {
	return orPlaceholder(p.LegalName)
}

// Location returns "City-UF", substituting the placeholder for missing parts
func (p Party) Location() string {
	return orPlaceholder(p.City) + "-" + orPlaceholder(p.State)
}

// FormattedTaxID renders a 14-digit CNPJ as 00.000.000/0000-00. Anything else
// is returned as given, or the placeholder when empty.
func (p Party) FormattedTaxID() string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, p.TaxID)
	if len(digits) != 14 {
		return orPlaceholder(p.TaxID)
	}
	return digits[0:2] + "." + digits[2:5] + "." + digits[5:8] + "/" + digits[8:12] + "-" + digits[12:14]
}

func orPlaceholder(s string) string {
	if strings.TrimSpace(s) == "" {
		return PlaceholderText
	}
	return s
}

// DisplayRecord is one normalized invoice line, ready for layout
type DisplayRecord struct {
	ID            string          `json:"id"`
	AccessKey     string          `json:"access_key"`
	Number        string          `json:"number"`
	DeclaredValue decimal.Decimal `json:"declared_value"`
	Weight        decimal.Decimal `json:"weight"`
	VolumeCount   int             `json:"volume_count"`
	CubicVolume   decimal.Decimal `json:"cubic_volume"`
	Sender        Party           `json:"sender"`
	Recipient     Party           `json:"recipient"`
}

// Sanitized returns a copy with numeric invariants enforced: non-negative
// decimals and at least one volume.
func (r DisplayRecord) Sanitized() DisplayRecord {
	if r.DeclaredValue.IsNegative() {
		r.DeclaredValue = decimal.Zero
	}
	if r.Weight.IsNegative() {
		r.Weight = decimal.Zero
	}
	if r.CubicVolume.IsNegative() {
		r.CubicVolume = decimal.Zero
	}
	if r.VolumeCount < 1 {
		r.VolumeCount = 1
	}
	return r
}

// Totals aggregates a record set. It is always derived, never stored.
type Totals struct {
	Volumes int             `json:"volumes"`
	Weight  decimal.Decimal `json:"weight"`
	Value   decimal.Decimal `json:"value"`
	Count   int             `json:"count"`
}

// ComputeTotals folds records into Totals. An empty slice yields all zeros.
func ComputeTotals(records []DisplayRecord) Totals {
	t := Totals{Weight: decimal.Zero, Value: decimal.Zero}
	for _, r := range records {
		t.Volumes += r.VolumeCount
		t.Weight = t.Weight.Add(r.Weight)
		t.Value = t.Value.Add(r.DeclaredValue)
		t.Count++
	}
	return t
}

// HeaderInfo is the order-level block printed above the record list
type HeaderInfo struct {
	Sender           Party  `json:"sender"`
	Recipient        Party  `json:"recipient"`
	OperationSubtype string `json:"operation_subtype"`
	OrderNumber      string `json:"order_number"`
}

// Subtype returns the operation subtype, defaulting to "Coleta"
func (h HeaderInfo) Subtype() string {
	if strings.TrimSpace(h.OperationSubtype) == "" {
		return "Coleta"
	}
	return h.OperationSubtype
}
