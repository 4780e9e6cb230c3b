// Package filters implements the stream filters the writer applies to
// page content and image samples.
package filters

import (
	"bytes"
	"compress/zlib"
	"context"
	"errors"
	"fmt"
	"io"
)

// Names of the PDF filters this package knows about.
const (
	FlateDecode = "FlateDecode"
	DCTDecode   = "DCTDecode"
)

type Encoder interface {
	Name() string
	Encode(ctx context.Context, input []byte) ([]byte, error)
}

type Decoder interface {
	Name() string
	Decode(ctx context.Context, input []byte) ([]byte, error)
}

type Limits struct {
	MaxDecompressedSize int64
}

type Pipeline struct {
	decoders []Decoder
	limits   Limits
}

// NewPipeline constructs a pipeline with provided decoders and limits.
func NewPipeline(decoders []Decoder, limits Limits) *Pipeline {
	return &Pipeline{decoders: decoders, limits: limits}
}

func (p *Pipeline) findDecoder(name string) Decoder {
	for _, d := range p.decoders {
		if d.Name() == name {
			return d
		}
	}
	return nil
}

// Decode undoes filterNames in order.
func (p *Pipeline) Decode(ctx context.Context, input []byte, filterNames []string) ([]byte, error) {
	data := input
	for _, name := range filterNames {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		dec := p.findDecoder(name)
		if dec == nil {
			return nil, errors.New("unknown filter: " + name)
		}
		out, err := dec.Decode(ctx, data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		if p.limits.MaxDecompressedSize > 0 && int64(len(out)) > p.limits.MaxDecompressedSize {
			return nil, errors.New("decompressed size exceeds limit")
		}
		data = out
	}
	return data, nil
}

type flateEncoder struct{ level int }

// NewFlateEncoder returns a FlateDecode encoder at the given zlib level,
// zlib.HuffmanOnly (-2) through zlib.BestCompression (9).
func NewFlateEncoder(level int) (Encoder, error) {
	if level < zlib.HuffmanOnly || level > zlib.BestCompression {
		return nil, fmt.Errorf("invalid flate level %d", level)
	}
	return flateEncoder{level: level}, nil
}

func (flateEncoder) Name() string { return FlateDecode }

func (e flateEncoder) Encode(ctx context.Context, in []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	w, err := zlib.NewWriterLevel(&buf, e.level)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(in); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type flateDecoder struct{}

func NewFlateDecoder() Decoder { return flateDecoder{} }

func (flateDecoder) Name() string { return FlateDecode }

func (flateDecoder) Decode(ctx context.Context, in []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(in))
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var out bytes.Buffer
	if _, err := io.Copy(&out, r); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// dctPassthrough leaves JPEG data untouched; viewers decode it.
type dctPassthrough struct{}

func NewDCTPassthrough() Decoder { return dctPassthrough{} }

func (dctPassthrough) Name() string { return DCTDecode }

func (dctPassthrough) Decode(_ context.Context, in []byte) ([]byte, error) {
	if len(in) < 2 || in[0] != 0xFF || in[1] != 0xD8 {
		return nil, errors.New("missing JPEG start of image marker")
	}
	return in, nil
}

// Default returns a pipeline that understands every filter the writer emits.
func Default() *Pipeline {
	return NewPipeline([]Decoder{NewFlateDecoder(), NewDCTPassthrough()}, Limits{})
}
