package convert

import (
	"errors"
	"fmt"

	"github.com/wudi/img2pdf/imaging"
	"github.com/wudi/img2pdf/sniff"
)

// ErrNoInputs is returned when Convert is called without sources.
var ErrNoInputs = errors.New("no input files specified")

type (
	// UnrecognizedFormatError reports an input whose signature matched no
	// supported format.
	UnrecognizedFormatError = sniff.UnrecognizedFormatError
	// DecodeError reports an input its format decoder rejected.
	DecodeError = imaging.DecodeError
	// DegenerateImageError reports an input with a zero dimension.
	DegenerateImageError = imaging.DegenerateImageError
)

// SerializationError reports a failure while producing or writing the PDF.
// It only occurs after every input decoded successfully.
type SerializationError struct {
	Err error
}

func (e *SerializationError) Error() string { return fmt.Sprintf("write pdf: %v", e.Err) }
func (e *SerializationError) Unwrap() error { return e.Err }
