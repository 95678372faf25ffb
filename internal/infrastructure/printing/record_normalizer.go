package printing

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/crosswms/loadorder/internal/domain/printing"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// RecordSource tells which input the normalizer resolved records from
type RecordSource string

const (
	RecordSourceRecords  RecordSource = "records"  // pre-shaped display records
	RecordSourceInvoices RecordSource = "invoices" // raw invoice list
	RecordSourceForm     RecordSource = "form"     // invoices nested in the form object
	RecordSourceEmpty    RecordSource = "empty"
)

// fieldChain lists candidate field names in priority order. Dotted names
// descend into nested objects.
type fieldChain []string

type partyChains struct {
	legalName fieldChain
	taxID     fieldChain
	state     fieldChain
	city      fieldChain
}

type recordTable struct {
	id            fieldChain
	accessKey     fieldChain
	number        fieldChain
	declaredValue fieldChain
	weight        fieldChain
	volumeCount   fieldChain
	cubicVolume   fieldChain
	sender        partyChains
	recipient     partyChains
}

// rawInvoiceTable maps a standalone invoice list
var rawInvoiceTable = recordTable{
	id:            fieldChain{"id"},
	accessKey:     fieldChain{"chave_nota", "chave_acesso", "chaveAcesso"},
	number:        fieldChain{"numero_nota", "numero", "numero_nfe"},
	declaredValue: fieldChain{"valor_nota_fiscal", "valorDeclarado"},
	weight:        fieldChain{"peso_bruto", "peso"},
	volumeCount:   fieldChain{"quantidade_volumes", "volume"},
	cubicVolume:   fieldChain{"volume_m3", "m3"},
	sender: partyChains{
		legalName: fieldChain{"emitente_razao_social", "remetente_razao_social", "remetente.razaoSocial"},
		taxID:     fieldChain{"emitente_cnpj", "remetente_cnpj", "remetente.cnpj"},
		state:     fieldChain{"emitente_uf", "remetente_uf", "remetente.uf"},
		city:      fieldChain{"emitente_cidade", "remetente_cidade", "remetente.cidade"},
	},
	recipient: partyChains{
		legalName: fieldChain{"destinatario_razao_social", "destinatario.razaoSocial"},
		taxID:     fieldChain{"destinatario_cnpj", "destinatario.cnpj"},
		state:     fieldChain{"destinatario_uf", "destinatario.uf"},
		city:      fieldChain{"destinatario_cidade", "destinatario.cidade"},
	},
}

// nestedInvoiceTable maps invoices embedded in the order form
var nestedInvoiceTable = recordTable{
	id:            fieldChain{"id"},
	accessKey:     fieldChain{"chave_nota_fiscal", "chave_nota", "chave_acesso", "chaveAcesso"},
	number:        fieldChain{"numero_nota", "numero", "numero_nfe"},
	declaredValue: fieldChain{"valor_nota_fiscal", "valorDeclarado"},
	weight:        fieldChain{"peso_bruto", "peso"},
	volumeCount:   fieldChain{"quantidade_volumes", "volume"},
	cubicVolume:   fieldChain{"volume_m3", "m3"},
	sender: partyChains{
		legalName: fieldChain{"emitente_razao_social", "remetente_razao_social"},
		taxID:     fieldChain{"emitente_cnpj", "remetente_cnpj"},
		state:     fieldChain{"emitente_uf", "remetente_uf"},
		city:      fieldChain{"emitente_cidade", "remetente_cidade"},
	},
	recipient: partyChains{
		legalName: fieldChain{"destinatario_razao_social"},
		taxID:     fieldChain{"destinatario_cnpj"},
		state:     fieldChain{"destinatario_uf"},
		city:      fieldChain{"destinatario_cidade"},
	},
}

// formParties is the order-level fallback for party fields
var formParties = struct {
	sender    partyChains
	recipient partyChains
}{
	sender: partyChains{
		legalName: fieldChain{"remetente_razao_social", "remetente.razaoSocial"},
		taxID:     fieldChain{"remetente_cnpj", "remetente.cnpj"},
		state:     fieldChain{"remetente_uf", "remetente.uf"},
		city:      fieldChain{"remetente_cidade", "remetente.cidade"},
	},
	recipient: partyChains{
		legalName: fieldChain{"destinatario_razao_social", "destinatario.razaoSocial"},
		taxID:     fieldChain{"destinatario_cnpj", "destinatario.cnpj"},
		state:     fieldChain{"destinatario_uf", "destinatario.uf"},
		city:      fieldChain{"destinatario_cidade", "destinatario.cidade"},
	},
}

var (
	formInvoicesKey  = "notasFiscais"
	formSubtypeChain = fieldChain{"subtipo_operacao", "subtipoOperacao"}
	formNumberChain  = fieldChain{"numero_ordem", "numero"}
)

// NormalizeInput carries the three possible record sources
type NormalizeInput struct {
	Records  []printing.DisplayRecord
	Invoices []any
	Form     map[string]any
}

// NormalizeResult is the resolved record list
type NormalizeResult struct {
	Records []printing.DisplayRecord
	Source  RecordSource
}

// RecordNormalizer reconciles loosely typed invoice data into DisplayRecords.
// Sources are tried in order and never merged; malformed fields fall back to
// documented defaults instead of failing.
type RecordNormalizer struct {
	logger *zap.Logger
	newID  func() string
}

// NormalizerOption configures a RecordNormalizer
type NormalizerOption func(*RecordNormalizer)

// WithIDGenerator overrides the ID source used for records without a usable ID
func WithIDGenerator(fn func() string) NormalizerOption {
	return func(n *RecordNormalizer) {
		n.newID = fn
	}
}

// NewRecordNormalizer creates a normalizer
func NewRecordNormalizer(logger *zap.Logger, opts ...NormalizerOption) *RecordNormalizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	n := &RecordNormalizer{
		logger: logger,
		newID:  func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Normalize resolves records from the first non-empty source
func (n *RecordNormalizer) Normalize(in NormalizeInput) NormalizeResult {
	var res NormalizeResult
	switch {
	case len(in.Records) > 0:
		res = NormalizeResult{Records: n.fromRecords(in.Records), Source: RecordSourceRecords}
	case len(in.Invoices) > 0:
		res = NormalizeResult{Records: n.fromRaw(in.Invoices, rawInvoiceTable, in.Form), Source: RecordSourceInvoices}
	case len(formInvoices(in.Form)) > 0:
		res = NormalizeResult{Records: n.fromRaw(formInvoices(in.Form), nestedInvoiceTable, in.Form), Source: RecordSourceForm}
	default:
		res = NormalizeResult{Records: []printing.DisplayRecord{}, Source: RecordSourceEmpty}
	}

	n.logger.Debug("records normalized",
		zap.String("source", string(res.Source)),
		zap.Int("count", len(res.Records)))
	return res
}

// Header extracts the order-level header block from the form object
func (n *RecordNormalizer) Header(form map[string]any) printing.HeaderInfo {
	if form == nil {
		return printing.HeaderInfo{}
	}
	return printing.HeaderInfo{
		Sender:           resolveParty(form, formParties.sender, printing.Party{}),
		Recipient:        resolveParty(form, formParties.recipient, printing.Party{}),
		OperationSubtype: lookupString(form, formSubtypeChain),
		OrderNumber:      lookupString(form, formNumberChain),
	}
}

func formInvoices(form map[string]any) []any {
	if form == nil {
		return nil
	}
	list, _ := form[formInvoicesKey].([]any)
	return list
}

func (n *RecordNormalizer) fromRecords(records []printing.DisplayRecord) []printing.DisplayRecord {
	seen := make(map[string]struct{}, len(records))
	out := make([]printing.DisplayRecord, 0, len(records))
	for _, r := range records {
		r = r.Sanitized()
		r.ID = n.uniqueID(r.ID, seen)
		out = append(out, r)
	}
	return out
}

func (n *RecordNormalizer) fromRaw(entries []any, table recordTable, form map[string]any) []printing.DisplayRecord {
	var senderFallback, recipientFallback printing.Party
	if form != nil {
		senderFallback = resolveParty(form, formParties.sender, printing.Party{})
		recipientFallback = resolveParty(form, formParties.recipient, printing.Party{})
	}

	seen := make(map[string]struct{}, len(entries))
	out := make([]printing.DisplayRecord, 0, len(entries))
	for i, entry := range entries {
		obj, ok := entry.(map[string]any)
		if !ok {
			n.logger.Debug("invoice entry is not an object, using defaults", zap.Int("index", i))
			obj = map[string]any{}
		}
		r := printing.DisplayRecord{
			AccessKey:     lookupString(obj, table.accessKey),
			Number:        lookupString(obj, table.number),
			DeclaredValue: lookupDecimal(obj, table.declaredValue),
			Weight:        lookupDecimal(obj, table.weight),
			VolumeCount:   lookupVolumeCount(obj, table.volumeCount),
			CubicVolume:   lookupDecimal(obj, table.cubicVolume),
			Sender:        resolveParty(obj, table.sender, senderFallback),
			Recipient:     resolveParty(obj, table.recipient, recipientFallback),
		}
		r.ID = n.uniqueID(lookupString(obj, table.id), seen)
		out = append(out, r)
	}
	return out
}

func (n *RecordNormalizer) uniqueID(id string, seen map[string]struct{}) string {
	if _, dup := seen[id]; id == "" || dup {
		id = n.newID()
	}
	seen[id] = struct{}{}
	return id
}

// resolveParty walks the entry's chains and, field by field, falls back to
// the order-level party when the entry has nothing.
func resolveParty(obj map[string]any, chains partyChains, fallback printing.Party) printing.Party {
	return printing.Party{
		LegalName: firstNonEmpty(lookupString(obj, chains.legalName), fallback.LegalName),
		TaxID:     firstNonEmpty(lookupString(obj, chains.taxID), fallback.TaxID),
		State:     firstNonEmpty(lookupString(obj, chains.state), fallback.State),
		City:      firstNonEmpty(lookupString(obj, chains.city), fallback.City),
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// lookup returns the first present value along the chain
func lookup(obj map[string]any, chain fieldChain) (any, bool) {
	for _, name := range chain {
		if v, ok := lookupPath(obj, name); ok && isPresent(v) {
			return v, true
		}
	}
	return nil, false
}

func lookupPath(obj map[string]any, path string) (any, bool) {
	var cur any = obj
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// isPresent treats nil, blank strings, numeric zero and false as absent
func isPresent(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(val) != ""
	case bool:
		return val
	case float64:
		return val != 0 && !math.IsNaN(val)
	case int:
		return val != 0
	case int64:
		return val != 0
	case json.Number:
		f, err := val.Float64()
		return err != nil || f != 0
	default:
		return true
	}
}

func lookupString(obj map[string]any, chain fieldChain) string {
	v, ok := lookup(obj, chain)
	if !ok {
		return ""
	}
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// parseDecimal is locale-agnostic: only "1234.56" style strings parse
func parseDecimal(v any) (decimal.Decimal, bool) {
	switch val := v.(type) {
	case decimal.Decimal:
		return val, true
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return decimal.Zero, false
		}
		return decimal.NewFromFloat(val), true
	case int:
		return decimal.NewFromInt(int64(val)), true
	case int64:
		return decimal.NewFromInt(val), true
	case json.Number:
		d, err := decimal.NewFromString(val.String())
		return d, err == nil
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(val))
		return d, err == nil
	default:
		return decimal.Zero, false
	}
}

func lookupDecimal(obj map[string]any, chain fieldChain) decimal.Decimal {
	v, ok := lookup(obj, chain)
	if !ok {
		return decimal.Zero
	}
	d, ok := parseDecimal(v)
	if !ok || d.IsNegative() {
		return decimal.Zero
	}
	return d
}

func lookupVolumeCount(obj map[string]any, chain fieldChain) int {
	v, ok := lookup(obj, chain)
	if !ok {
		return 1
	}
	if s, isString := v.(string); isString {
		if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return atLeastOne(n)
		}
	}
	d, ok := parseDecimal(v)
	if !ok {
		return 1
	}
	return atLeastOne(int(d.IntPart()))
}

func atLeastOne(n int) int {
	if n < 1 {
		return 1
	}
	return n
}
