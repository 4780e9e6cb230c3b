package imaging

import (
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"
)

// HasAlpha reports whether img has any pixel that is not fully opaque.
func HasAlpha(img image.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return !o.Opaque()
	}
	return true
}

// RGBSamples returns img as 8-bit RGB samples, row-major from the top-left
// pixel. Transparent pixels are composited over an opaque white background.
func RGBSamples(img image.Image) []byte {
	b := img.Bounds()
	nrgba, ok := img.(*image.NRGBA)
	if !ok || nrgba.Rect.Min != (image.Point{}) {
		nrgba = image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(nrgba, nrgba.Bounds(), img, b.Min, draw.Src)
	}
	w, h := b.Dx(), b.Dy()
	out := make([]byte, 0, w*h*3)
	for y := 0; y < h; y++ {
		row := nrgba.Pix[y*nrgba.Stride : y*nrgba.Stride+w*4]
		for x := 0; x < w; x++ {
			px := row[x*4 : x*4+4]
			if px[3] == 0xFF {
				out = append(out, px[0], px[1], px[2])
				continue
			}
			rgb := BlendOverWhite(color.NRGBA{R: px[0], G: px[1], B: px[2], A: px[3]})
			out = append(out, rgb[0], rgb[1], rgb[2])
		}
	}
	return out
}

// BlendOverWhite composites a non-premultiplied pixel over white:
// out = (1-a)*255 + a*c per channel, a in [0,1]. Channel order is kept.
func BlendOverWhite(c color.NRGBA) [3]uint8 {
	a := float64(c.A) / 255
	blend := func(v uint8) uint8 {
		out := (1-a)*255 + a*float64(v)
		return uint8(math.Min(255, math.Max(0, math.Round(out))))
	}
	return [3]uint8{blend(c.R), blend(c.G), blend(c.B)}
}
