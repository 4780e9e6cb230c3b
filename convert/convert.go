// Package convert assembles a sequence of images into a single PDF, one
// page per image, each page sized so the image renders at a fixed DPI.
package convert

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/wudi/img2pdf/builder"
	"github.com/wudi/img2pdf/config"
	"github.com/wudi/img2pdf/imaging"
	"github.com/wudi/img2pdf/ir/semantic"
	"github.com/wudi/img2pdf/metadata"
	"github.com/wudi/img2pdf/observability"
	"github.com/wudi/img2pdf/pagesize"
	"github.com/wudi/img2pdf/sniff"
	"github.com/wudi/img2pdf/writer"
)

// DefaultProducer is written to /Producer when Info leaves it empty.
const DefaultProducer = "img2pdf"

// Options configures a conversion. The zero value converts at 300 DPI
// with the default signature table and no image size limits.
type Options struct {
	DPI        float64
	Signatures []sniff.Signature
	Limits     imaging.Limits
	Info       semantic.DocumentInfo
	Lang       string
	Writer     writer.Config
	Logger     observability.Logger
	Tracer     observability.Tracer
	// Now stamps CreationDate. Ignored in deterministic mode.
	Now func() time.Time
}

// DefaultOptions returns Options matching config.Default.
func DefaultOptions() Options {
	return OptionsFromConfig(config.Default())
}

// OptionsFromConfig maps a loaded configuration onto Options.
func OptionsFromConfig(cfg *config.Config) Options {
	doc := cfg.Document
	return Options{
		DPI: cfg.DPI,
		Limits: imaging.Limits{
			MaxDimension: cfg.Limits.MaxDimension,
			MaxPixels:    cfg.Limits.MaxPixels,
		},
		Info: semantic.DocumentInfo{
			Title:    doc.Title,
			Author:   doc.Author,
			Subject:  doc.Subject,
			Creator:  doc.Creator,
			Producer: doc.Producer,
			Keywords: append([]string(nil), doc.Keywords...),
		},
		Lang: doc.Lang,
		Writer: writer.Config{
			Compression:       cfg.Compression,
			Deterministic:     cfg.Deterministic,
			DeduplicateImages: cfg.DedupeImages,
			Verify:            cfg.Verify,
		},
	}
}

func (o Options) logger() observability.Logger {
	if o.Logger == nil {
		return observability.NopLogger{}
	}
	return o.Logger
}

func (o Options) tracer() observability.Tracer {
	if o.Tracer == nil {
		return observability.NopTracer()
	}
	return o.Tracer
}

// Convert decodes every source in order and writes one PDF to sink.
// Any failure aborts the whole run; sink receives nothing unless every
// image decoded and the document serialized completely.
func Convert(ctx context.Context, sources []string, sink io.Writer, opts Options) (err error) {
	if len(sources) == 0 {
		return ErrNoInputs
	}
	ctx, span := opts.tracer().StartSpan(ctx, observability.SpanConvert)
	span.SetTag("sources", len(sources))
	defer func() {
		span.SetError(err)
		span.Finish()
	}()

	doc, err := assemble(ctx, sources, opts)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return serialize(ctx, doc, sink, opts)
}

func assemble(ctx context.Context, sources []string, opts Options) (*semantic.Document, error) {
	log := opts.logger()
	dpi := opts.DPI
	if dpi == 0 {
		dpi = pagesize.DefaultDPI
	}
	sizer, err := pagesize.New(dpi)
	if err != nil {
		return nil, err
	}
	dec := imaging.NewDecoder(sniff.New(opts.Signatures), log)
	dec.Limits = opts.Limits

	b := builder.NewBuilder()
	for _, path := range sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		src, err := decode(ctx, dec, path, opts.tracer())
		if err != nil {
			return nil, err
		}
		size, err := sizer.Size(src.Width, src.Height)
		if err != nil {
			return nil, &DegenerateImageError{Path: path, Width: src.Width, Height: src.Height}
		}
		log.Debug("page sized",
			observability.String("path", path),
			observability.Float64("width_mm", size.WidthMM),
			observability.Float64("height_mm", size.HeightMM),
		)
		b.AddImagePage(src, size)
	}

	info := opts.Info
	if info.Producer == "" {
		info.Producer = DefaultProducer
	}
	if !opts.Writer.Deterministic {
		now := time.Now
		if opts.Now != nil {
			now = opts.Now
		}
		info.CreationDate = now()
	}
	xmp, err := metadata.Encode(&info, opts.Lang)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	return b.SetInfo(&info).SetMetadata(xmp).SetLanguage(opts.Lang).Build()
}

func decode(ctx context.Context, dec *imaging.Decoder, path string, tracer observability.Tracer) (src *imaging.SourceImage, err error) {
	_, span := tracer.StartSpan(ctx, observability.SpanDecode)
	span.SetTag("path", path)
	defer func() {
		span.SetError(err)
		span.Finish()
	}()
	return dec.Load(path)
}

func serialize(ctx context.Context, doc *semantic.Document, sink io.Writer, opts Options) (err error) {
	ctx, span := opts.tracer().StartSpan(ctx, observability.SpanSerialize)
	span.SetTag("pages", len(doc.Pages))
	defer func() {
		span.SetError(err)
		span.Finish()
	}()

	start := time.Now()
	w := (&writer.WriterBuilder{}).WithLogger(opts.logger()).Build()
	if err := w.Write(ctx, doc, sink, opts.Writer); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return &SerializationError{Err: err}
	}
	opts.logger().Debug("pdf serialized",
		observability.Int("pages", len(doc.Pages)),
		observability.Duration("elapsed", time.Since(start)),
	)
	return nil
}

// ConvertFile converts sources into the file at outPath, or DefaultOutput
// when outPath is empty. The PDF is written to a temporary file in the
// destination directory and renamed into place only on success.
func ConvertFile(ctx context.Context, sources []string, outPath string, opts Options) error {
	if len(sources) == 0 {
		return ErrNoInputs
	}
	if outPath == "" {
		outPath = config.DefaultOutput
	}
	tmp, err := os.CreateTemp(filepath.Dir(outPath), "."+filepath.Base(outPath)+".*.tmp")
	if err != nil {
		return &SerializationError{Err: err}
	}
	tmpName := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpName)
	}

	if err := Convert(ctx, sources, tmp, opts); err != nil {
		cleanup()
		return err
	}
	if err := tmp.Chmod(0o644); err != nil {
		cleanup()
		return &SerializationError{Err: err}
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return &SerializationError{Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return &SerializationError{Err: err}
	}
	if err := os.Rename(tmpName, outPath); err != nil {
		os.Remove(tmpName)
		return &SerializationError{Err: err}
	}
	opts.logger().Debug("pdf saved", observability.String("path", outPath), observability.Int("pages", len(sources)))
	return nil
}
