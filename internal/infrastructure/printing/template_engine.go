package printing

import (
	"bytes"
	"context"
	"html/template"
	"maps"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

var (
	ptBR        = language.BrazilianPortuguese
	ptBRPrinter = message.NewPrinter(ptBR)
	ptBRUpper   = cases.Upper(ptBR)
)

// TemplateEngine parses and executes manifest templates with pt-BR
// formatting helpers.
type TemplateEngine struct {
	funcMap  template.FuncMap
	location *time.Location
}

// TemplateEngineOption configures the template engine
type TemplateEngineOption func(*TemplateEngine)

// WithLocation sets the time zone used by the date helpers
func WithLocation(loc *time.Location) TemplateEngineOption {
	return func(e *TemplateEngine) {
		if loc != nil {
			e.location = loc
		}
	}
}

// NewTemplateEngine creates a new template engine with default configuration
func NewTemplateEngine(opts ...TemplateEngineOption) *TemplateEngine {
	e := &TemplateEngine{location: time.Local}
	for _, opt := range opts {
		opt(e)
	}

	e.funcMap = template.FuncMap{
		// Money and numbers
		"formatMoney":    formatMoney,
		"formatMoneyRaw": formatMoneyRaw,
		"formatWeight":   formatWeight,
		"formatInt":      formatInt,

		// Dates
		"formatDate":     e.formatDate,
		"formatDateTime": e.formatDateTime,

		// Strings
		"truncate":    truncate,
		"clip":        clip,
		"padLeft":     padLeft,
		"upper":       upper,
		"placeholder": placeholder,
		"safeCSS":     safeCSS,
	}
	return e
}

// Parse builds a template named name from the main content plus partials.
// Partials are expected to define their own {{define}} blocks.
func (e *TemplateEngine) Parse(name, content string, partials ...string) (*template.Template, error) {
	if strings.TrimSpace(content) == "" {
		return nil, NewRenderError(ErrCodeInvalidHTML, "template content is empty", nil)
	}
	tmpl := template.New(name).Funcs(e.funcMap)
	for _, p := range partials {
		if _, err := tmpl.New("").Parse(p); err != nil {
			return nil, NewRenderError(ErrCodeInvalidHTML, "failed to parse partial", err)
		}
	}
	if _, err := tmpl.Parse(content); err != nil {
		return nil, NewRenderError(ErrCodeInvalidHTML, "failed to parse template", err)
	}
	return tmpl, nil
}

// Execute runs a parsed template against data
func (e *TemplateEngine) Execute(ctx context.Context, tmpl *template.Template, data any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", NewRenderError(ErrCodeRenderTimeout, "render cancelled", err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", NewRenderError(ErrCodeRenderFailed, "failed to execute template", err)
	}
	return buf.String(), nil
}

// RenderString parses and executes a template string in one step
func (e *TemplateEngine) RenderString(ctx context.Context, name, content string, data any) (string, error) {
	tmpl, err := e.Parse(name, content)
	if err != nil {
		return "", err
	}
	return e.Execute(ctx, tmpl, data)
}

// GetFuncMap returns a copy of the template function map
func (e *TemplateEngine) GetFuncMap() template.FuncMap {
	funcMap := make(template.FuncMap, len(e.funcMap))
	maps.Copy(funcMap, e.funcMap)
	return funcMap
}

// =============================================================================
// Money and numbers
// =============================================================================

// formatMoney formats a value as Brazilian currency
// Example: 1234.5 -> "R$ 1.234,50"
func formatMoney(v any) string {
	return "R$ " + formatMoneyRaw(v)
}

// formatMoneyRaw formats with two decimals, '.' thousands and ',' decimals
// Example: 1234.5 -> "1.234,50"
func formatMoneyRaw(v any) string {
	return formatFixed(toDecimal(v), 2)
}

// formatWeight formats with one decimal and a decimal comma
// Example: 12.345 -> "12,3"
func formatWeight(v any) string {
	return formatFixed(toDecimal(v), 1)
}

// formatInt groups thousands the pt-BR way
// Example: 12345 -> "12.345"
func formatInt(v any) string {
	return ptBRPrinter.Sprintf("%d", toDecimal(v).Round(0).IntPart())
}

// formatFixed prints d with exactly places fraction digits through the pt-BR
// printer. d is rounded half away from zero before printing.
func formatFixed(d decimal.Decimal, places int32) string {
	return ptBRPrinter.Sprint(number.Decimal(d.Round(places).InexactFloat64(), number.Scale(int(places))))
}

// =============================================================================
// Dates
// =============================================================================

// formatDate formats as dd/mm/yyyy
func (e *TemplateEngine) formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.In(e.location).Format("02/01/2006")
}

// formatDateTime formats as dd/mm/yyyy hh:mm
func (e *TemplateEngine) formatDateTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.In(e.location).Format("02/01/2006 15:04")
}

// =============================================================================
// Strings
// =============================================================================

// truncate cuts s to max runes, appending suffix (default "...") only when
// something was cut. The result never exceeds max+len(suffix) runes.
func truncate(s string, max int, suffix ...string) string {
	suf := "..."
	if len(suffix) > 0 {
		suf = suffix[0]
	}
	runes := []rune(s)
	if max < 0 || len(runes) <= max {
		return s
	}
	return string(runes[:max]) + suf
}

// clip cuts s to max runes with no suffix
func clip(s string, max int) string {
	return truncate(s, max, "")
}

// padLeft pads s on the left with pad until it is length runes long
// Example: padLeft "1234" 8 "0" -> "00001234"
func padLeft(s string, length int, pad string) string {
	n := len([]rune(s))
	if n >= length || pad == "" {
		return s
	}
	padding := []rune(strings.Repeat(pad, length-n))
	return string(padding[:length-n]) + s
}

func upper(s string) string {
	return ptBRUpper.String(s)
}

// placeholder returns "N/A" for blank strings
func placeholder(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}

func safeCSS(s string) template.CSS {
	return template.CSS(s)
}

// toDecimal converts template values to decimal.Decimal
func toDecimal(v any) decimal.Decimal {
	switch val := v.(type) {
	case decimal.Decimal:
		return val
	case *decimal.Decimal:
		if val == nil {
			return decimal.Zero
		}
		return *val
	case int:
		return decimal.NewFromInt(int64(val))
	case int64:
		return decimal.NewFromInt(val)
	case float64:
		return decimal.NewFromFloat(val)
	case string:
		d, err := decimal.NewFromString(val)
		if err != nil {
			return decimal.Zero
		}
		return d
	default:
		return decimal.Zero
	}
}
