package builder

import (
	"fmt"

	"github.com/wudi/img2pdf/imaging"
	"github.com/wudi/img2pdf/ir/semantic"
)

// FromSource converts a decoded input to an image XObject. JPEG inputs keep
// their encoded bytes behind DCTDecode; other inputs carry raw samples.
func FromSource(src *imaging.SourceImage) (*semantic.Image, error) {
	img := &semantic.Image{
		Subtype:          "Image",
		Width:            src.Width,
		Height:           src.Height,
		ColorSpace:       src.ColorSpace,
		BitsPerComponent: 8,
	}
	if img.ColorSpace == nil {
		img.ColorSpace = semantic.DeviceRGB
	}
	switch {
	case len(src.Encoded) > 0:
		img.Data = src.Encoded
		img.Filter = semantic.FilterDCT
		img.Decode = src.Decode
	case len(src.Pixels) > 0:
		want := src.Width * src.Height * img.ColorSpace.Components()
		if len(src.Pixels) != want {
			return nil, fmt.Errorf("%s: have %d samples, want %d", src.Path, len(src.Pixels), want)
		}
		img.Data = src.Pixels
	default:
		return nil, fmt.Errorf("%s: no image data", src.Path)
	}
	return img, nil
}
