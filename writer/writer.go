package writer

import (
	"context"
	"io"

	"github.com/wudi/img2pdf/ir/raw"
	"github.com/wudi/img2pdf/ir/semantic"
	"github.com/wudi/img2pdf/observability"
)

type PDFVersion string

const (
	PDF14 PDFVersion = "1.4"
	PDF17 PDFVersion = "1.7"
)

type Config struct {
	Version PDFVersion
	// Compression is the flate level applied to raw image samples and
	// content streams. 0 stores them uncompressed. JPEG data is never
	// recompressed.
	Compression int
	// Deterministic derives /ID from the document and drops CreationDate,
	// so identical documents serialize to identical bytes.
	Deterministic bool
	// DeduplicateImages embeds byte-identical image streams once and
	// points every page using them at the shared object.
	DeduplicateImages bool
	// Verify reads the cross-reference table back from the serialized
	// bytes and checks every entry before anything reaches the sink.
	Verify bool
}

type Writer interface {
	// Write serializes doc and hands the complete file to w in a single
	// Write call. Nothing is written if serialization fails.
	Write(ctx context.Context, doc *semantic.Document, w io.Writer, cfg Config) error
	SerializeObject(ref raw.ObjectRef, obj raw.Object) ([]byte, error)
}

// Interceptor observes each indirect object as it is serialized.
type Interceptor interface {
	BeforeWrite(ctx context.Context, ref raw.ObjectRef, obj raw.Object) error
	AfterWrite(ctx context.Context, ref raw.ObjectRef, obj raw.Object, bytesWritten int64) error
}

type WriterBuilder struct {
	interceptors []Interceptor
	logger       observability.Logger
}

func (b *WriterBuilder) WithInterceptor(i Interceptor) *WriterBuilder {
	b.interceptors = append(b.interceptors, i)
	return b
}

func (b *WriterBuilder) WithLogger(l observability.Logger) *WriterBuilder {
	b.logger = l
	return b
}

func (b *WriterBuilder) Build() Writer {
	logger := b.logger
	if logger == nil {
		logger = observability.NopLogger{}
	}
	return &impl{interceptors: b.interceptors, logger: logger}
}

// NewWriter returns a Writer with no interceptors.
func NewWriter() Writer { return (&WriterBuilder{}).Build() }
