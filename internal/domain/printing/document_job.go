package printing

import (
	"time"

	"github.com/crosswms/loadorder/internal/domain/shared"
	"github.com/google/uuid"
)

// DocumentJob is one open print dialog: a record set, the selected layout,
// and a revision counter bumped on every effective change. It lives only
// while the dialog is open and is discarded on close.
type DocumentJob struct {
	ID           uuid.UUID       `json:"id"`
	DocumentType DocumentType    `json:"document_type"`
	Records      []DisplayRecord `json:"records"`
	Header       HeaderInfo      `json:"header"`
	Revision     int             `json:"revision"`
	OpenedAt     time.Time       `json:"opened_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	LastPrint    *PrintSummary   `json:"last_print,omitempty"`
}

// PrintSummary is what the dialog remembers about its latest print attempt
type PrintSummary struct {
	Status    PrintStatus  `json:"status"`
	Trigger   PrintTrigger `json:"trigger,omitempty"`
	Images    int          `json:"images"`
	Pages     int          `json:"pages,omitempty"`
	SpoolURL  string       `json:"spool_url,omitempty"`
	PrintedAt time.Time    `json:"printed_at"`
}

// NewDocumentJob opens a dialog session with no document type selected
func NewDocumentJob(records []DisplayRecord, header HeaderInfo) *DocumentJob {
	now := time.Now()
	if records == nil {
		records = []DisplayRecord{}
	}
	return &DocumentJob{
		ID:           uuid.New(),
		DocumentType: DocumentTypeNone,
		Records:      records,
		Header:       header,
		OpenedAt:     now,
		UpdatedAt:    now,
	}
}

// SelectDocumentType switches the layout. Selecting the current type is a
// no-op and reports changed=false; NONE can never be selected.
func (j *DocumentJob) SelectDocumentType(t DocumentType) (changed bool, err error) {
	if !t.IsSelectable() {
		return false, shared.NewDomainError("INVALID_INPUT",
			"Document type must be MANIFEST or BARCODE_MANIFEST, got: "+t.String())
	}
	if j.DocumentType == t {
		return false, nil
	}
	j.DocumentType = t
	j.touch()
	return true, nil
}

// ReplaceRecords swaps the record set, e.g. when a lazily fetched full order
// resolves after the dialog opened. Totals follow automatically.
func (j *DocumentJob) ReplaceRecords(records []DisplayRecord) {
	if records == nil {
		records = []DisplayRecord{}
	}
	j.Records = records
	j.touch()
}

// UpdateHeader replaces the order-level header block
func (j *DocumentJob) UpdateHeader(header HeaderInfo) {
	j.Header = header
	j.touch()
}

// CanRender is true once a document type has been selected
func (j *DocumentJob) CanRender() bool {
	return j.DocumentType.IsSelectable()
}

// Totals folds the current records. There is no cached copy to drift.
func (j *DocumentJob) Totals() Totals {
	return ComputeTotals(j.Records)
}

// RecordPrint stores the outcome of a print attempt without changing the revision
func (j *DocumentJob) RecordPrint(summary PrintSummary) {
	if summary.PrintedAt.IsZero() {
		summary.PrintedAt = time.Now()
	}
	j.LastPrint = &summary
	j.UpdatedAt = summary.PrintedAt
}

func (j *DocumentJob) touch() {
	j.Revision++
	j.UpdatedAt = time.Now()
}
