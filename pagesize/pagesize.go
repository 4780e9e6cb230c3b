// Package pagesize converts pixel dimensions to physical page sizes.
package pagesize

import (
	"fmt"

	"github.com/wudi/img2pdf/coords"
)

// DefaultDPI is the resolution at which images are rendered.
const DefaultDPI = 300.0

// Size is a physical page size in millimetres.
type Size struct {
	WidthMM  float64
	HeightMM float64
}

// Points returns the size in PDF points.
func (s Size) Points() (width, height float64) {
	return coords.MillimetersToPoints(s.WidthMM), coords.MillimetersToPoints(s.HeightMM)
}

// Sizer maps pixels to millimetres at a fixed resolution.
type Sizer struct {
	DPI float64
}

// New returns a Sizer for dpi dots per inch.
func New(dpi float64) (Sizer, error) {
	if dpi <= 0 {
		return Sizer{}, fmt.Errorf("dpi must be positive, got %v", dpi)
	}
	return Sizer{DPI: dpi}, nil
}

// DotsPerMillimeter returns the sizer's resolution per millimetre.
func (s Sizer) DotsPerMillimeter() float64 { return s.DPI / coords.MillimetersPerInch }

// PixelsToMillimeters converts a pixel count to millimetres without rounding.
func (s Sizer) PixelsToMillimeters(px int) float64 {
	return float64(px) / s.DotsPerMillimeter()
}

// Size returns the page size of a width x height pixel image.
func (s Sizer) Size(width, height int) (Size, error) {
	if s.DPI <= 0 {
		return Size{}, fmt.Errorf("dpi must be positive, got %v", s.DPI)
	}
	if width <= 0 || height <= 0 {
		return Size{}, fmt.Errorf("degenerate pixel dimensions %dx%d", width, height)
	}
	return Size{
		WidthMM:  s.PixelsToMillimeters(width),
		HeightMM: s.PixelsToMillimeters(height),
	}, nil
}
