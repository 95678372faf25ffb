package printing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/crosswms/loadorder/internal/domain/printing"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

const (
	defaultChromeTimeout = 30 * time.Second
	defaultMaxContexts   = 4
)

// ChromedpConfig contains configuration for the chromedp print backend
type ChromedpConfig struct {
	// DefaultTimeout bounds every single browser round trip
	DefaultTimeout time.Duration
	// RemoteURL is the websocket URL of a running Chrome instance (optional).
	// If empty, chromedp launches its own browser on first use.
	RemoteURL string
	// Headless mode (default: true)
	Headless bool
	// DisableGPU disables GPU hardware acceleration (default: true for server environments)
	DisableGPU bool
	// NoSandbox runs Chrome without sandbox (required for Docker/root)
	NoSandbox bool
	// MaxContexts caps concurrently open print contexts; Open refuses beyond it
	MaxContexts int64
	Logger      *zap.Logger
}

func (c *ChromedpConfig) applyDefaults() {
	if c.DefaultTimeout == 0 {
		c.DefaultTimeout = defaultChromeTimeout
	}
	if c.MaxContexts <= 0 {
		c.MaxContexts = defaultMaxContexts
	}
	// Default to headless and disable GPU for server environments
	if !c.Headless {
		c.Headless = true
	}
	if !c.DisableGPU {
		c.DisableGPU = true
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
}

// ChromedpContextOpener opens print contexts as tabs of a shared headless
// browser. The browser is started on the first Open.
type ChromedpContextOpener struct {
	config *ChromedpConfig
	logger *zap.Logger
	slots  *semaphore.Weighted

	startOnce     sync.Once
	startErr      error
	allocCtx      context.Context
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
}

// NewChromedpContextOpener creates an opener. No browser is launched until Open.
func NewChromedpContextOpener(config *ChromedpConfig) *ChromedpContextOpener {
	if config == nil {
		config = &ChromedpConfig{}
	}
	config.applyDefaults()
	return &ChromedpContextOpener{
		config: config,
		logger: config.Logger,
		slots:  semaphore.NewWeighted(config.MaxContexts),
	}
}

func (o *ChromedpContextOpener) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", o.config.Headless),
		chromedp.Flag("disable-gpu", o.config.DisableGPU),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-dev-shm-usage", true), // Important for Docker
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("disable-translate", true),
		chromedp.Flag("font-render-hinting", "none"),
	)
	if o.config.NoSandbox {
		opts = append(opts, chromedp.Flag("no-sandbox", true))
	}
	return opts
}

func (o *ChromedpContextOpener) ensureBrowser() error {
	o.startOnce.Do(func() {
		if o.config.RemoteURL != "" {
			o.allocCtx, o.allocCancel = chromedp.NewRemoteAllocator(context.Background(), o.config.RemoteURL)
		} else {
			o.allocCtx, o.allocCancel = chromedp.NewExecAllocator(context.Background(), o.allocatorOptions()...)
		}
		o.browserCtx, o.browserCancel = chromedp.NewContext(o.allocCtx,
			chromedp.WithLogf(func(format string, args ...any) {
				o.logger.Debug(fmt.Sprintf(format, args...))
			}),
		)
		// Run with no actions starts the browser
		if err := chromedp.Run(o.browserCtx); err != nil {
			o.startErr = fmt.Errorf("start browser: %w", err)
			o.logger.Error("chromedp browser failed to start", zap.Error(err))
			return
		}
		o.logger.Info("chromedp browser started", zap.Bool("remote", o.config.RemoteURL != ""))
	})
	return o.startErr
}

// Open creates a new tab. When every slot is taken it returns a nil context,
// the headless equivalent of a blocked popup.
func (o *ChromedpContextOpener) Open(ctx context.Context) (PrintContext, error) {
	if !o.slots.TryAcquire(1) {
		o.logger.Warn("print context limit reached", zap.Int64("max_contexts", o.config.MaxContexts))
		return nil, nil
	}
	if err := o.ensureBrowser(); err != nil {
		o.slots.Release(1)
		return nil, err
	}

	tabCtx, tabCancel := chromedp.NewContext(o.browserCtx)
	if err := attachTab(ctx, tabCtx, tabCancel, o.config.DefaultTimeout, chromedp.Run); err != nil {
		tabCancel()
		o.slots.Release(1)
		return nil, fmt.Errorf("attach tab: %w", err)
	}
	pc := &chromedpContext{
		tabCtx:  tabCtx,
		cancel:  tabCancel,
		release: func() { o.slots.Release(1) },
		timeout: o.config.DefaultTimeout,
		logger:  o.logger,
	}
	if err := pc.run(ctx, chromedp.Navigate("about:blank")); err != nil {
		_ = pc.Close()
		return nil, fmt.Errorf("open tab: %w", err)
	}
	return pc, nil
}

// Close shuts the browser down. Open contexts become unusable.
func (o *ChromedpContextOpener) Close() error {
	if o.browserCancel != nil {
		o.browserCancel()
	}
	if o.allocCancel != nil {
		o.allocCancel()
	}
	return nil
}

// attachTab performs the first, action-less run on a new tab. chromedp ties
// the tab's event loop to the context of its first run, so that run gets
// tabCtx itself. ctx and timeout only bound the attach, by cancelling the tab.
func attachTab(ctx, tabCtx context.Context, tabCancel context.CancelFunc, timeout time.Duration,
	run func(context.Context, ...chromedp.Action) error) error {
	timer := time.AfterFunc(timeout, tabCancel)
	stop := context.AfterFunc(ctx, tabCancel)
	err := run(tabCtx)
	timer.Stop()
	stop()
	if err != nil {
		return err
	}
	// the timer or ctx may have fired right as run returned
	return tabCtx.Err()
}

type chromedpContext struct {
	tabCtx  context.Context
	cancel  context.CancelFunc
	release func()
	timeout time.Duration
	logger  *zap.Logger

	mu     sync.Mutex
	closed bool
}

func (c *chromedpContext) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// run executes actions on an attached tab, bounded by both ctx and the tab
// timeout. Cancelling the derived context aborts the actions without closing
// the tab.
func (c *chromedpContext) run(ctx context.Context, actions ...chromedp.Action) error {
	if c.isClosed() {
		return ErrContextClosed
	}
	runCtx, cancel := context.WithTimeout(c.tabCtx, c.timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && c.isClosed() {
		return ErrContextClosed
	}
	return err
}

func (c *chromedpContext) Write(ctx context.Context, document string) error {
	return c.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		frameTree, err := page.GetFrameTree().Do(ctx)
		if err != nil {
			return err
		}
		return page.SetDocumentContent(frameTree.Frame.ID, document).Do(ctx)
	}))
}

func (c *chromedpContext) WaitLoaded(ctx context.Context) error {
	return c.run(ctx, chromedp.WaitReady("body", chromedp.ByQuery))
}

const awaitImageScript = `new Promise((resolve) => {
  const img = document.images[%d];
  if (!img) { resolve(false); return; }
  if (img.complete) { resolve(img.naturalWidth > 0); return; }
  img.addEventListener("load", () => resolve(true), { once: true });
  img.addEventListener("error", () => resolve(false), { once: true });
})`

func (c *chromedpContext) AwaitImage(ctx context.Context, index int) (bool, error) {
	var loaded bool
	err := c.run(ctx, chromedp.Evaluate(fmt.Sprintf(awaitImageScript, index), &loaded,
		func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
			return p.WithAwaitPromise(true)
		}))
	return loaded, err
}

func (c *chromedpContext) Print(ctx context.Context, opts PrintOptions) ([]byte, error) {
	params := buildPrintParams(opts)
	var data []byte
	err := c.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		data, _, err = page.PrintToPDF().
			WithPreferCSSPageSize(true).
			WithPrintBackground(params.printBackground).
			WithPaperWidth(params.paperWidth).
			WithPaperHeight(params.paperHeight).
			WithMarginTop(params.marginTop).
			WithMarginRight(params.marginRight).
			WithMarginBottom(params.marginBottom).
			WithMarginLeft(params.marginLeft).
			WithScale(params.scale).
			WithLandscape(params.landscape).
			Do(ctx)
		return err
	}))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, NewRenderError(ErrCodePrintFailed, "generated PDF is empty", nil)
	}
	return data, nil
}

func (c *chromedpContext) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	if c.cancel != nil {
		c.cancel()
	}
	if c.release != nil {
		c.release()
	}
	return nil
}

// printParams holds the parameters for PDF printing
type printParams struct {
	paperWidth      float64
	paperHeight     float64
	marginTop       float64
	marginRight     float64
	marginBottom    float64
	marginLeft      float64
	scale           float64
	landscape       bool
	printBackground bool
}

// buildPrintParams converts print options to Chrome's inch-based parameters
func buildPrintParams(opts PrintOptions) *printParams {
	params := &printParams{
		scale:           opts.Scale,
		printBackground: opts.PrintBackground,
		landscape:       opts.Orientation == printing.OrientationLandscape,
	}
	if params.scale <= 0 {
		params.scale = 1.0
	}

	width, height := opts.PaperSize.Dimensions()
	params.paperWidth = mmToInches(float64(width))
	params.paperHeight = mmToInches(float64(height))

	params.marginTop = mmToInches(float64(opts.Margins.Top))
	params.marginRight = mmToInches(float64(opts.Margins.Right))
	params.marginBottom = mmToInches(float64(opts.Margins.Bottom))
	params.marginLeft = mmToInches(float64(opts.Margins.Left))
	return params
}

// mmToInches converts millimeters to inches
func mmToInches(mm float64) float64 {
	return mm / 25.4
}

var _ PrintContextOpener = (*ChromedpContextOpener)(nil)
