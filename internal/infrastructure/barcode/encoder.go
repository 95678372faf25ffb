// Package barcode rasterizes CODE128 symbols for fiscal access keys.
package barcode

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/code128"
	"go.uber.org/zap"
)

// standardModules is the module count of a 44-digit key in code set C:
// start + 22 digit pairs + check + stop.
const standardModules = 11 + 22*11 + 11 + 13

// Options controls symbol geometry. Widths are in print pixels; the raster is
// Supersample times larger in both directions so it stays sharp when printed.
type Options struct {
	ModuleWidth int
	Height      int
	Margin      int
	Supersample int
}

// DefaultOptions returns module width 1, bar height 25, margin 5 at 4x
func DefaultOptions() Options {
	return Options{
		ModuleWidth: 1,
		Height:      25,
		Margin:      5,
		Supersample: 4,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.ModuleWidth <= 0 {
		o.ModuleWidth = d.ModuleWidth
	}
	if o.Height <= 0 {
		o.Height = d.Height
	}
	if o.Margin < 0 {
		o.Margin = d.Margin
	}
	if o.Supersample <= 0 {
		o.Supersample = d.Supersample
	}
	return o
}

// Encoder turns payloads into raster surfaces. It is safe for concurrent use.
type Encoder struct {
	opts   Options
	logger *zap.Logger
}

// NewEncoder creates an encoder; a nil logger is replaced with a no-op one
func NewEncoder(opts Options, logger *zap.Logger) *Encoder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Encoder{opts: opts.withDefaults(), logger: logger}
}

// Options returns the effective geometry
func (e *Encoder) Options() Options {
	return e.opts
}

// Encode renders payload verbatim as CODE128 without a human-readable line.
// It never fails: an unencodable payload is logged and yields a blank surface
// with the standard footprint.
func (e *Encoder) Encode(payload string) *Surface {
	img, modules, err := e.rasterize(payload)
	if err != nil {
		e.logger.Warn("barcode encoding failed, using blank surface",
			zap.String("payload", payload),
			zap.Int("payload_length", len([]rune(payload))),
			zap.Error(err))
		return e.blank(payload)
	}
	e.logger.Debug("barcode encoded",
		zap.String("payload", payload),
		zap.Int("modules", modules),
		zap.Int("raster_width", img.Bounds().Dx()))
	return &Surface{
		payload:     payload,
		img:         img,
		supersample: e.opts.Supersample,
	}
}

func (e *Encoder) rasterize(payload string) (*image.Gray, int, error) {
	if payload == "" {
		return nil, 0, errors.New("empty payload")
	}
	code, err := code128.Encode(payload)
	if err != nil {
		return nil, 0, fmt.Errorf("code128: %w", err)
	}

	modules := code.Bounds().Dx()
	module := e.opts.ModuleWidth * e.opts.Supersample
	height := e.opts.Height * e.opts.Supersample
	scaled, err := barcode.Scale(code, modules*module, height)
	if err != nil {
		return nil, 0, fmt.Errorf("scale: %w", err)
	}

	margin := e.opts.Margin * e.opts.Supersample
	img := e.canvas(modules)
	bars := image.Rect(margin, margin, margin+scaled.Bounds().Dx(), margin+scaled.Bounds().Dy())
	draw.Draw(img, bars, scaled, scaled.Bounds().Min, draw.Src)
	return img, modules, nil
}

// canvas allocates a white raster sized for the given module count plus margins
func (e *Encoder) canvas(modules int) *image.Gray {
	s := e.opts.Supersample
	w := (modules*e.opts.ModuleWidth + 2*e.opts.Margin) * s
	h := (e.opts.Height + 2*e.opts.Margin) * s
	img := image.NewGray(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	return img
}

func (e *Encoder) blank(payload string) *Surface {
	return &Surface{
		payload:     payload,
		img:         e.canvas(standardModules),
		supersample: e.opts.Supersample,
		blank:       true,
	}
}
