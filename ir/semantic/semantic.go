package semantic

import "time"

// Document is the semantic representation of the PDF being assembled.
// Page order is output order.
type Document struct {
	Pages    []*Page
	Info     *DocumentInfo
	Metadata *XMPMetadata
	Lang     string
}

// Page models a single PDF page. MediaBox is in PDF points.
type Page struct {
	Index     int
	MediaBox  Rectangle
	Resources *Resources
	Contents  []ContentStream
	// Source names the input the page was made from, for diagnostics.
	Source string
}

// ContentStream holds page drawing operations.
type ContentStream struct {
	Operations []Operation
	RawBytes   []byte
}

// Operation represents a PDF operator and operands.
type Operation struct {
	Operator string
	Operands []Operand
}

// Operand is a type-safe operand value.
type Operand interface {
	operand()
	Type() string
}

type NumberOperand struct{ Value float64 }

func (NumberOperand) operand()     {}
func (NumberOperand) Type() string { return "number" }

type NameOperand struct{ Value string }

func (NameOperand) operand()     {}
func (NameOperand) Type() string { return "name" }

// Resources holds the named resources referenced by a page's content.
type Resources struct {
	XObjects map[string]XObject
}

// ColorSpace names the color space of image samples.
type ColorSpace interface {
	ColorSpaceName() string
	Components() int
}

type DeviceColorSpace struct {
	Name string
}

func (cs DeviceColorSpace) ColorSpaceName() string { return cs.Name }

func (cs DeviceColorSpace) Components() int {
	switch cs.Name {
	case "DeviceGray":
		return 1
	case "DeviceCMYK":
		return 4
	default:
		return 3
	}
}

var (
	DeviceGray = DeviceColorSpace{Name: "DeviceGray"}
	DeviceRGB  = DeviceColorSpace{Name: "DeviceRGB"}
	DeviceCMYK = DeviceColorSpace{Name: "DeviceCMYK"}
)

// Stream filter names understood by the writer.
const (
	FilterNone  = ""
	FilterDCT   = "DCTDecode"
	FilterFlate = "FlateDecode"
)

// XObject is an external object drawn with the Do operator.
type XObject struct {
	Subtype string // Image
	Width   int
	Height  int
	ColorSpace
	BitsPerComponent int
	Data             []byte
	// Filter is set when Data is already encoded, e.g. DCTDecode for
	// JPEG bytes passed through unchanged.
	Filter      string
	Decode      []float64
	Interpolate bool
}

// Image is an alias for XObject for image convenience APIs.
type Image = XObject

// Rectangle is a PDF rectangle in default user space units.
type Rectangle struct {
	LLX, LLY, URX, URY float64
}

func (r Rectangle) Width() float64  { return r.URX - r.LLX }
func (r Rectangle) Height() float64 { return r.URY - r.LLY }

// DocumentInfo is written as the trailer /Info dictionary.
type DocumentInfo struct {
	Title        string
	Author       string
	Subject      string
	Creator      string
	Producer     string
	Keywords     []string
	CreationDate time.Time
}

// XMPMetadata holds a serialized XMP packet for the catalog /Metadata stream.
type XMPMetadata struct {
	Raw []byte
}
