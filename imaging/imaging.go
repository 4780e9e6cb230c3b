// Package imaging decodes BMP, PNG and JPEG inputs into the sample data
// embedded in the output PDF.
package imaging

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"

	"golang.org/x/image/bmp"

	"github.com/wudi/img2pdf/ir/semantic"
	"github.com/wudi/img2pdf/observability"
	"github.com/wudi/img2pdf/sniff"
)

// SourceImage is one decoded input.
type SourceImage struct {
	Path   string
	Format sniff.Format
	Width  int
	Height int
	// ColorSpace describes Pixels or Encoded.
	ColorSpace semantic.ColorSpace
	// Pixels holds 8-bit row-major samples for BMP and PNG inputs.
	Pixels []byte
	// Encoded holds the original JPEG stream, embedded without re-encoding.
	Encoded []byte
	// Decode is the sample decode array, set for inverted Adobe CMYK JPEGs.
	Decode []float64
	// Flattened reports that transparency was composited over white.
	Flattened bool
}

// DecodeError reports an input the format decoder rejected.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string { return fmt.Sprintf("decode %s: %v", e.Path, e.Err) }
func (e *DecodeError) Unwrap() error { return e.Err }

// DegenerateImageError reports an input that decoded to zero pixels.
type DegenerateImageError struct {
	Path          string
	Width, Height int
}

func (e *DegenerateImageError) Error() string {
	return fmt.Sprintf("%s has degenerate dimensions %dx%d", e.Path, e.Width, e.Height)
}

// Decoder turns image files into SourceImages.
type Decoder struct {
	Sniffer *sniff.Sniffer
	Logger  observability.Logger
	Limits  Limits
}

// NewDecoder returns a Decoder using s for classification. A nil s uses
// the default signature table.
func NewDecoder(s *sniff.Sniffer, logger observability.Logger) *Decoder {
	if s == nil {
		s = &sniff.Sniffer{}
	}
	if logger == nil {
		logger = observability.NopLogger{}
	}
	return &Decoder{Sniffer: s, Logger: logger, Limits: DefaultLimits()}
}

// Load opens and decodes the file at path.
func (d *Decoder) Load(path string) (*SourceImage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &DecodeError{Path: path, Err: err}
	}
	defer f.Close()
	return d.Decode(path, f)
}

// Decode classifies and decodes r. name identifies the input in errors.
// The signature is peeked from a buffer, so r never needs to be rewound.
func (d *Decoder) Decode(name string, r io.Reader) (*SourceImage, error) {
	br := bufio.NewReader(r)
	prefix, err := br.Peek(sniff.PrefixLen)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, &DecodeError{Path: name, Err: err}
	}
	format, err := d.sniffer().Classify(name, prefix)
	if err != nil {
		return nil, err
	}
	data, err := io.ReadAll(br)
	if err != nil {
		return nil, &DecodeError{Path: name, Err: err}
	}

	var src *SourceImage
	switch format {
	case sniff.BMP:
		src, err = d.decodeRaster(name, format, data, bmp.DecodeConfig, bmp.Decode)
	case sniff.PNG:
		src, err = d.decodeRaster(name, format, data, png.DecodeConfig, png.Decode)
	case sniff.JPEG:
		src, err = d.decodeJPEG(name, data)
	default:
		return nil, &sniff.UnrecognizedFormatError{Path: name}
	}
	if err != nil {
		return nil, err
	}
	d.logger().Debug("image decoded",
		observability.String("path", name),
		observability.String("format", format.String()),
		observability.Int("width", src.Width),
		observability.Int("height", src.Height),
	)
	return src, nil
}

type (
	configFunc func(io.Reader) (image.Config, error)
	decodeFunc func(io.Reader) (image.Image, error)
)

func (d *Decoder) decodeRaster(name string, format sniff.Format, data []byte, config configFunc, decode decodeFunc) (*SourceImage, error) {
	cfg, err := config(bytes.NewReader(data))
	if err != nil {
		return nil, &DecodeError{Path: name, Err: err}
	}
	if err := d.checkBounds(name, cfg.Width, cfg.Height); err != nil {
		return nil, err
	}
	img, err := decode(bytes.NewReader(data))
	if err != nil {
		return nil, &DecodeError{Path: name, Err: err}
	}
	b := img.Bounds()
	if err := d.checkBounds(name, b.Dx(), b.Dy()); err != nil {
		return nil, err
	}
	flatten := HasAlpha(img)
	if flatten {
		d.logger().Debug("flattening transparency over white", observability.String("path", name))
	}
	return &SourceImage{
		Path:       name,
		Format:     format,
		Width:      b.Dx(),
		Height:     b.Dy(),
		ColorSpace: semantic.DeviceRGB,
		Pixels:     RGBSamples(img),
		Flattened:  flatten,
	}, nil
}

func (d *Decoder) decodeJPEG(name string, data []byte) (*SourceImage, error) {
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, &DecodeError{Path: name, Err: err}
	}
	if err := d.checkBounds(name, cfg.Width, cfg.Height); err != nil {
		return nil, err
	}
	// The pixels are discarded; a full decode catches truncated scan data
	// that DecodeConfig never reaches.
	if _, err := jpeg.Decode(bytes.NewReader(data)); err != nil {
		return nil, &DecodeError{Path: name, Err: err}
	}
	src := &SourceImage{
		Path:       name,
		Format:     sniff.JPEG,
		Width:      cfg.Width,
		Height:     cfg.Height,
		ColorSpace: jpegColorSpace(cfg),
		Encoded:    data,
	}
	if src.ColorSpace == semantic.DeviceCMYK && hasAdobeMarker(data) {
		src.Decode = []float64{1, 0, 1, 0, 1, 0, 1, 0}
	}
	return src, nil
}

func (d *Decoder) checkBounds(name string, w, h int) error {
	if w <= 0 || h <= 0 {
		return &DegenerateImageError{Path: name, Width: w, Height: h}
	}
	if err := d.Limits.Validate(w, h); err != nil {
		return &DecodeError{Path: name, Err: err}
	}
	return nil
}

func (d *Decoder) sniffer() *sniff.Sniffer {
	if d.Sniffer == nil {
		return &sniff.Sniffer{}
	}
	return d.Sniffer
}

func (d *Decoder) logger() observability.Logger {
	if d.Logger == nil {
		return observability.NopLogger{}
	}
	return d.Logger
}
