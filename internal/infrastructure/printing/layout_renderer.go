package printing

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/crosswms/loadorder/internal/domain/printing"
	"github.com/crosswms/loadorder/internal/infrastructure/barcode"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const defaultSystemName = "CrossWMS - Sistema de Gestão Logística | www.crosswms.com.br"

// LayoutRenderer turns a DocumentJob into printable markup. Output depends
// only on the job and the clock, so re-rendering is byte-identical.
type LayoutRenderer struct {
	store      *TemplateStore
	engine     *TemplateEngine
	encode     func(payload string) Drawable
	clock      func() time.Time
	systemName string
	logger     *zap.Logger
}

// LayoutRendererOption configures a LayoutRenderer
type LayoutRendererOption func(*LayoutRenderer)

// WithClock injects the emission timestamp source
func WithClock(clock func() time.Time) LayoutRendererOption {
	return func(r *LayoutRenderer) {
		r.clock = clock
	}
}

// WithSystemName sets the footer line
func WithSystemName(name string) LayoutRendererOption {
	return func(r *LayoutRenderer) {
		if name != "" {
			r.systemName = name
		}
	}
}

// WithRendererLogger sets the logger
func WithRendererLogger(logger *zap.Logger) LayoutRendererOption {
	return func(r *LayoutRenderer) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewLayoutRenderer creates a renderer backed by the given store, engine and encoder
func NewLayoutRenderer(store *TemplateStore, engine *TemplateEngine, encoder *barcode.Encoder, opts ...LayoutRendererOption) *LayoutRenderer {
	r := &LayoutRenderer{
		store:      store,
		engine:     engine,
		encode:     func(payload string) Drawable { return encoder.Encode(payload) },
		clock:      time.Now,
		systemName: defaultSystemName,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type partyBlockView struct {
	Heading string
	Party   printing.Party
}

type layoutRow struct {
	Record        printing.DisplayRecord
	SurfaceID     string
	DisplayWidth  int
	DisplayHeight int
}

type layoutView struct {
	Title          string
	DocumentType   printing.DocumentType
	Revision       int
	Header         printing.HeaderInfo
	SenderBlock    partyBlockView
	RecipientBlock partyBlockView
	GeneratedAt    time.Time
	Rows           []layoutRow
	Totals         printing.Totals
	SystemName     string
}

// Render produces the layout for the job's selected document type
func (r *LayoutRenderer) Render(ctx context.Context, job *printing.DocumentJob) (*RenderedDocument, error) {
	if job == nil {
		return nil, NewRenderError(ErrCodeInvalidHTML, "document job is nil", nil)
	}
	if !job.CanRender() {
		return nil, NewRenderError(ErrCodeNoDocumentType, "no document type selected", nil)
	}

	layout, err := r.store.Layout(job.DocumentType)
	if err != nil {
		return nil, err
	}
	tmpl, err := r.engine.Parse(layout.ID, layout.Content, r.store.Partials())
	if err != nil {
		return nil, err
	}

	view := r.buildView(job)
	doc := &RenderedDocument{
		Title:        job.DocumentType.DisplayName(),
		DocumentType: job.DocumentType,
		Revision:     job.Revision,
		Surfaces:     map[string]Drawable{},
		Totals:       view.Totals,
		GeneratedAt:  view.GeneratedAt,
	}

	if job.DocumentType == printing.DocumentTypeBarcodeManifest {
		if err := r.attachSurfaces(ctx, view.Rows, doc); err != nil {
			return nil, err
		}
	}

	html, err := r.engine.Execute(ctx, tmpl, view)
	if err != nil {
		return nil, err
	}
	doc.HTML = html

	r.logger.Debug("layout rendered",
		zap.String("job_id", job.ID.String()),
		zap.String("document_type", job.DocumentType.String()),
		zap.Int("revision", job.Revision),
		zap.Int("records", len(job.Records)),
		zap.Int("surfaces", len(doc.Surfaces)))
	return doc, nil
}

func (r *LayoutRenderer) buildView(job *printing.DocumentJob) layoutView {
	header := job.Header
	if len(job.Records) > 0 {
		if header.Sender.IsZero() {
			header.Sender = job.Records[0].Sender
		}
		if header.Recipient.IsZero() {
			header.Recipient = job.Records[0].Recipient
		}
	}

	rows := make([]layoutRow, len(job.Records))
	for i, rec := range job.Records {
		rows[i] = layoutRow{Record: rec, SurfaceID: fmt.Sprintf("barcode-%d", i+1)}
	}

	return layoutView{
		Title:          upper(job.DocumentType.DisplayName()),
		DocumentType:   job.DocumentType,
		Revision:       job.Revision,
		Header:         header,
		SenderBlock:    partyBlockView{Heading: upper("remetentes"), Party: header.Sender},
		RecipientBlock: partyBlockView{Heading: upper("destinatários"), Party: header.Recipient},
		GeneratedAt:    r.clock(),
		Rows:           rows,
		Totals:         job.Totals(),
		SystemName:     r.systemName,
	}
}

// attachSurfaces encodes one barcode per row. Encoding cannot fail, so the
// group only propagates cancellation.
func (r *LayoutRenderer) attachSurfaces(ctx context.Context, rows []layoutRow, doc *RenderedDocument) error {
	surfaces := make([]Drawable, len(rows))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range rows {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			surfaces[i] = r.encode(rows[i].Record.AccessKey)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return NewRenderError(ErrCodeRenderTimeout, "barcode encoding cancelled", err)
	}

	doc.SurfaceOrder = make([]string, 0, len(rows))
	for i := range rows {
		rows[i].DisplayWidth, rows[i].DisplayHeight = surfaces[i].DisplaySize()
		doc.Surfaces[rows[i].SurfaceID] = surfaces[i]
		doc.SurfaceOrder = append(doc.SurfaceOrder, rows[i].SurfaceID)
	}
	return nil
}
