package imaging

import (
	"bytes"
	"image"
	"image/color"

	"github.com/wudi/img2pdf/ir/semantic"
)

func jpegColorSpace(cfg image.Config) semantic.ColorSpace {
	switch cfg.ColorModel {
	case color.GrayModel:
		return semantic.DeviceGray
	case color.CMYKModel:
		return semantic.DeviceCMYK
	default:
		return semantic.DeviceRGB
	}
}

// hasAdobeMarker walks the JPEG header segments up to the first scan and
// reports whether an Adobe APP14 segment is present. Adobe writes CMYK
// samples inverted.
func hasAdobeMarker(data []byte) bool {
	i := 2 // SOI
	for i+4 <= len(data) {
		if data[i] != 0xFF {
			return false
		}
		marker := data[i+1]
		if marker == 0xFF {
			i++
			continue
		}
		if marker == 0xDA || marker == 0xD9 {
			return false
		}
		length := int(data[i+2])<<8 | int(data[i+3])
		if length < 2 || i+2+length > len(data) {
			return false
		}
		seg := data[i+4 : i+2+length]
		if marker == 0xEE && bytes.HasPrefix(seg, []byte("Adobe")) {
			return true
		}
		i += 2 + length
	}
	return false
}
