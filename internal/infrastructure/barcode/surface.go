package barcode

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
)

// ErrSurfaceBlank is returned when exporting a surface whose encoding failed
var ErrSurfaceBlank = errors.New("barcode: surface is blank")

// Surface is a rendered barcode raster
type Surface struct {
	payload     string
	img         *image.Gray
	supersample int
	blank       bool
}

// Payload returns the text that was encoded
func (s *Surface) Payload() string { return s.payload }

// Blank reports whether encoding failed
func (s *Surface) Blank() bool { return s.blank }

// Image exposes the raster
func (s *Surface) Image() image.Image { return s.img }

// RasterSize is the bitmap size in device pixels
func (s *Surface) RasterSize() (width, height int) {
	b := s.img.Bounds()
	return b.Dx(), b.Dy()
}

// DisplaySize is the size in print pixels, i.e. the raster divided by the
// supersampling factor
func (s *Surface) DisplaySize() (width, height int) {
	w, h := s.RasterSize()
	return w / s.supersample, h / s.supersample
}

// ExportPNG encodes the raster. The same surface always yields the same bytes.
func (s *Surface) ExportPNG() ([]byte, error) {
	if s.blank {
		return nil, ErrSurfaceBlank
	}
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestCompression}
	if err := enc.Encode(&buf, s.img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
