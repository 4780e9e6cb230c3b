// Package sniff classifies image encodings by their leading magic bytes.
package sniff

import (
	"bytes"
	"fmt"
)

// PrefixLen is the number of leading bytes a Sniffer inspects.
const PrefixLen = 8

// Format is the closed set of encodings the converter accepts.
type Format int

const (
	Unsupported Format = iota
	BMP
	PNG
	JPEG
)

func (f Format) String() string {
	switch f {
	case BMP:
		return "bmp"
	case PNG:
		return "png"
	case JPEG:
		return "jpeg"
	default:
		return "unsupported"
	}
}

// Signature maps a byte prefix to a format. Bytes past len(Magic) within
// the inspected prefix are unconstrained.
type Signature struct {
	Format Format
	Magic  []byte
}

// DefaultSignatures returns the BMP, PNG and JPEG signature table in match
// priority order.
func DefaultSignatures() []Signature {
	return []Signature{
		{Format: BMP, Magic: []byte{0x42, 0x4D}},
		{Format: PNG, Magic: []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}},
		{Format: JPEG, Magic: []byte{0xFF, 0xD8, 0xFF, 0xDB}},
		{Format: JPEG, Magic: []byte{0xFF, 0xD8, 0xFF, 0xEE}},
		{Format: JPEG, Magic: []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 0x4A, 0x46}},
	}
}

// Sniffer classifies prefixes against a signature table. The zero value
// uses DefaultSignatures.
type Sniffer struct {
	Signatures []Signature
}

// New returns a Sniffer over the given table.
func New(sigs []Signature) *Sniffer {
	return &Sniffer{Signatures: sigs}
}

// Sniff classifies prefix. Fewer than PrefixLen bytes is always Unsupported;
// extra bytes are ignored.
func (s *Sniffer) Sniff(prefix []byte) Format {
	if len(prefix) < PrefixLen {
		return Unsupported
	}
	prefix = prefix[:PrefixLen]
	sigs := s.Signatures
	if sigs == nil {
		sigs = DefaultSignatures()
	}
	for _, sig := range sigs {
		if len(sig.Magic) > 0 && bytes.HasPrefix(prefix, sig.Magic) {
			return sig.Format
		}
	}
	return Unsupported
}

// UnrecognizedFormatError reports an input whose signature matched no entry.
type UnrecognizedFormatError struct {
	Path string
}

func (e *UnrecognizedFormatError) Error() string {
	return fmt.Sprintf("%s has an unsupported file format", e.Path)
}

// Classify is Sniff with an error carrying name when nothing matched.
func (s *Sniffer) Classify(name string, prefix []byte) (Format, error) {
	f := s.Sniff(prefix)
	if f == Unsupported {
		return Unsupported, &UnrecognizedFormatError{Path: name}
	}
	return f, nil
}
