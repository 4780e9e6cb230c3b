package imaging

import "fmt"

const (
	// DefaultMaxDimension caps width and height of a single input.
	DefaultMaxDimension = 32768
	// DefaultMaxPixels bounds the total pixel count (roughly 64MP), which
	// keeps the RGB sample buffer under 192 MB.
	DefaultMaxPixels int64 = 64 * 1024 * 1024
)

// Limits bounds the size of images the decoder accepts. Zero fields
// disable the corresponding check.
type Limits struct {
	MaxDimension int
	MaxPixels    int64
}

func DefaultLimits() Limits {
	return Limits{MaxDimension: DefaultMaxDimension, MaxPixels: DefaultMaxPixels}
}

// Validate reports whether a width x height image fits the limits.
func (l Limits) Validate(width, height int) error {
	if l.MaxDimension > 0 && (width > l.MaxDimension || height > l.MaxDimension) {
		return fmt.Errorf("image dimension exceeds limit (%d x %d)", width, height)
	}
	pixels := int64(width) * int64(height)
	if l.MaxPixels > 0 && pixels > l.MaxPixels {
		return fmt.Errorf("image pixel count %d exceeds limit %d", pixels, l.MaxPixels)
	}
	return nil
}
