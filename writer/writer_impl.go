package writer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/wudi/img2pdf/ir/raw"
	"github.com/wudi/img2pdf/ir/semantic"
	"github.com/wudi/img2pdf/observability"
)

type impl struct {
	interceptors []Interceptor
	logger       observability.Logger
}

func (w *impl) SerializeObject(ref raw.ObjectRef, obj raw.Object) ([]byte, error) {
	if obj == nil {
		return nil, fmt.Errorf("object %s is nil", ref)
	}
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%d %d obj\n", ref.Num, ref.Gen)
	buf.Write(serializePrimitive(obj))
	buf.WriteString("\nendobj\n")
	return buf.Bytes(), nil
}

func (w *impl) Write(ctx context.Context, doc *semantic.Document, out io.Writer, cfg Config) error {
	if doc == nil || len(doc.Pages) == 0 {
		return errors.New("document has no pages")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	ob := newObjectBuilder(ctx, doc, cfg)
	objects, catalogRef, infoRef, err := ob.Build()
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%%PDF-%s\n%%\xE2\xE3\xCF\xD3\n", pdfVersion(cfg))
	offsets := make(map[int]int64, len(objects))

	ordered := make([]raw.ObjectRef, 0, len(objects))
	for ref := range objects {
		ordered = append(ordered, ref)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Num < ordered[j].Num })
	for _, ref := range ordered {
		obj := objects[ref]
		for _, ic := range w.interceptors {
			if err := ic.BeforeWrite(ctx, ref, obj); err != nil {
				return err
			}
		}
		serialized, err := w.SerializeObject(ref, obj)
		if err != nil {
			return err
		}
		offsets[ref.Num] = int64(buf.Len())
		buf.Write(serialized)
		for _, ic := range w.interceptors {
			if err := ic.AfterWrite(ctx, ref, obj, int64(len(serialized))); err != nil {
				return err
			}
		}
	}

	maxObjNum := ordered[len(ordered)-1].Num
	xrefOffset := int64(buf.Len())
	writeXRefTable(&buf, offsets, maxObjNum)

	trailer := buildTrailer(maxObjNum+1, catalogRef, infoRef, fileID(doc, cfg))
	buf.WriteString("trailer\n")
	buf.Write(serializePrimitive(trailer))
	fmt.Fprintf(&buf, "\nstartxref\n%d\n%%%%EOF\n", xrefOffset)

	data := buf.Bytes()
	if cfg.Verify {
		if err := VerifyXRef(ctx, data); err != nil {
			return fmt.Errorf("verify output: %w", err)
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	n, err := out.Write(data)
	if err == nil && n < len(data) {
		err = io.ErrShortWrite
	}
	if err != nil {
		return err
	}
	w.logger.Debug("pdf written",
		observability.Int("pages", len(doc.Pages)),
		observability.Int("objects", len(objects)),
		observability.Int("bytes", len(data)),
	)
	return nil
}

// writeXRefTable emits a single-section classic table covering objects
// 0..maxObjNum. Unused numbers are recorded as free entries.
func writeXRefTable(buf *bytes.Buffer, offsets map[int]int64, maxObjNum int) {
	buf.WriteString("xref\n")
	fmt.Fprintf(buf, "0 %d\n", maxObjNum+1)
	buf.WriteString("0000000000 65535 f \n")
	for i := 1; i <= maxObjNum; i++ {
		if off, ok := offsets[i]; ok {
			fmt.Fprintf(buf, "%010d 00000 n \n", off)
		} else {
			buf.WriteString("0000000000 65535 f \n")
		}
	}
}
