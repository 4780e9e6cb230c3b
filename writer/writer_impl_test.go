package writer

import (
	"bytes"
	"compress/zlib"
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/wudi/img2pdf/builder"
	"github.com/wudi/img2pdf/filters"
	"github.com/wudi/img2pdf/ir/raw"
	"github.com/wudi/img2pdf/ir/semantic"
	"github.com/wudi/img2pdf/xref"
)

func rgbImage(w, h int) *semantic.Image {
	data := make([]byte, w*h*3)
	for i := range data {
		data[i] = byte(i)
	}
	return &semantic.Image{
		Subtype:          "Image",
		Width:            w,
		Height:           h,
		ColorSpace:       semantic.DeviceRGB,
		BitsPerComponent: 8,
		Data:             data,
	}
}

func jpegLike() *semantic.Image {
	return &semantic.Image{
		Subtype:          "Image",
		Width:            4,
		Height:           2,
		ColorSpace:       semantic.DeviceRGB,
		BitsPerComponent: 8,
		Data:             []byte{0xFF, 0xD8, 0xFF, 0xDB, 'n', 'o', 't', 'r', 'e', 'a', 'l', 0xFF, 0xD9},
		Filter:           semantic.FilterDCT,
	}
}

func imageDoc(t *testing.T, pages int) *semantic.Document {
	t.Helper()
	b := builder.NewBuilder()
	for i := 0; i < pages; i++ {
		b.NewPage(72, 36).DrawImage(rgbImage(2, 1), 0, 0, 72, 36, builder.ImageOptions{}).Finish()
	}
	doc, err := b.Build()
	if err != nil {
		t.Fatalf("build doc: %v", err)
	}
	return doc
}

func write(t *testing.T, doc *semantic.Document, cfg Config) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := NewWriter().Write(context.Background(), doc, &buf, cfg); err != nil {
		t.Fatalf("write pdf: %v", err)
	}
	return buf.Bytes()
}

func startXRef(data []byte) int64 {
	re := regexp.MustCompile(`startxref\s+(\d+)`)
	m := re.FindSubmatch(data)
	if len(m) < 2 {
		return 0
	}
	v, _ := strconv.ParseInt(string(m[1]), 10, 64)
	return v
}

func scanObjectOffsets(data []byte) map[int]int64 {
	re := regexp.MustCompile(`(?m)^(\d+) 0 obj`)
	out := make(map[int]int64)
	for _, m := range re.FindAllSubmatchIndex(data, -1) {
		n, _ := strconv.Atoi(string(data[m[2]:m[3]]))
		out[n] = int64(m[0])
	}
	return out
}

func TestWriter_XRefTableOffsets(t *testing.T) {
	for _, pages := range []int{1, 50} {
		t.Run(fmt.Sprintf("%d pages", pages), func(t *testing.T) {
			data := write(t, imageDoc(t, pages), Config{Deterministic: true})
			start := startXRef(data)
			if start <= 0 || start >= int64(len(data)) {
				t.Fatalf("invalid startxref: %d", start)
			}
			if !bytes.HasPrefix(data[start:], []byte("xref\n")) {
				t.Fatalf("startxref does not point to xref table")
			}
			table, err := xref.NewResolver(xref.ResolverConfig{}).Resolve(context.Background(), bytes.NewReader(data))
			if err != nil {
				t.Fatalf("resolve xref table: %v", err)
			}
			// catalog, page tree, then image, content and page per page
			wantObjects := 2 + 3*pages
			if got := len(table.Objects()); got != wantObjects {
				t.Fatalf("xref lists %d objects, want %d", got, wantObjects)
			}
			if table.Size() != wantObjects+1 {
				t.Fatalf("xref size %d, want %d", table.Size(), wantObjects+1)
			}
			actual := scanObjectOffsets(data)
			for _, num := range table.Objects() {
				off, gen, _ := table.Lookup(num)
				if gen != 0 || actual[num] != off {
					t.Fatalf("object %d: xref offset %d gen %d, actual %d", num, off, gen, actual[num])
				}
			}
			if !bytes.Contains(data, []byte(fmt.Sprintf("/Size %d", wantObjects+1))) {
				t.Fatalf("trailer /Size missing")
			}
		})
	}
}

func TestWriter_XRefEntriesAreTwentyBytes(t *testing.T) {
	data := write(t, imageDoc(t, 3), Config{})
	start := startXRef(data)
	section := data[start:]
	section = section[:bytes.Index(section, []byte("trailer"))]
	lines := bytes.SplitAfter(section, []byte("\n"))
	// "xref\n", "0 N\n", entries, trailing empty
	for _, line := range lines[2 : len(lines)-1] {
		if len(line) != 20 {
			t.Fatalf("xref entry %q is %d bytes", line, len(line))
		}
	}
}

func TestWriter_HeaderAndTrailer(t *testing.T) {
	data := write(t, imageDoc(t, 1), Config{})
	if !bytes.HasPrefix(data, []byte("%PDF-1.7\n%\xE2\xE3\xCF\xD3\n")) {
		t.Fatalf("unexpected header %q", data[:16])
	}
	if !bytes.HasSuffix(data, []byte("%%EOF\n")) {
		t.Fatalf("missing EOF marker")
	}
	for _, want := range []string{"/Root 1 0 R", "/ID [<", "/Type /Catalog", "/Pages 2 0 R"} {
		if !bytes.Contains(data, []byte(want)) {
			t.Fatalf("output missing %q", want)
		}
	}
	old := write(t, imageDoc(t, 1), Config{Version: PDF14})
	if !bytes.HasPrefix(old, []byte("%PDF-1.4\n")) {
		t.Fatalf("version not honoured: %q", old[:9])
	}
}

func TestWriter_PageCountMatchesPages(t *testing.T) {
	data := write(t, imageDoc(t, 7), Config{})
	if !bytes.Contains(data, []byte("/Count 7")) {
		t.Fatalf("page tree count missing")
	}
	if got := len(regexp.MustCompile(`/Type /Page[^s]`).FindAll(data, -1)); got != 7 {
		t.Fatalf("found %d page objects, want 7", got)
	}
	if !bytes.Contains(data, []byte("/MediaBox [0 0 72 36]")) {
		t.Fatalf("media box missing")
	}
	if !bytes.Contains(data, []byte("/ProcSet [/PDF /ImageC]")) {
		t.Fatalf("procset missing")
	}
}

func TestWriter_JPEGPassThrough(t *testing.T) {
	img := jpegLike()
	doc, err := builder.NewBuilder().NewPage(10, 5).DrawImage(img, 0, 0, 10, 5, builder.ImageOptions{}).Finish().Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	data := write(t, doc, Config{Compression: zlib.BestCompression})
	if !bytes.Contains(data, []byte("/Filter /DCTDecode")) {
		t.Fatalf("DCTDecode filter missing")
	}
	framed := append(append([]byte("stream\n"), img.Data...), []byte("\nendstream")...)
	if !bytes.Contains(data, framed) {
		t.Fatalf("jpeg bytes not embedded unchanged")
	}
	if !bytes.Contains(data, []byte(fmt.Sprintf("/Length %d", len(img.Data)))) {
		t.Fatalf("stream length mismatch")
	}
}

func TestWriter_RawSamples(t *testing.T) {
	img := rgbImage(2, 1)
	doc, err := builder.NewBuilder().NewPage(10, 5).DrawImage(img, 0, 0, 10, 5, builder.ImageOptions{}).Finish().Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	data := write(t, doc, Config{})
	for _, want := range []string{"/Width 2", "/Height 1", "/ColorSpace /DeviceRGB", "/BitsPerComponent 8", "/Length 6"} {
		if !bytes.Contains(data, []byte(want)) {
			t.Fatalf("image dict missing %q", want)
		}
	}
	if !bytes.Contains(data, append([]byte("stream\n"), img.Data...)) {
		t.Fatalf("raw samples not embedded")
	}
	if !bytes.Contains(data, []byte("q\n10 0 0 5 0 0 cm\n/Im1 Do\nQ\n")) {
		t.Fatalf("placement operators missing:\n%s", data)
	}
}

func TestWriter_RejectsShortSamples(t *testing.T) {
	img := rgbImage(2, 2)
	img.Data = img.Data[:5]
	doc, err := builder.NewBuilder().NewPage(10, 5).DrawImage(img, 0, 0, 10, 5, builder.ImageOptions{}).Finish().Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	var buf bytes.Buffer
	if err := NewWriter().Write(context.Background(), doc, &buf, Config{}); err == nil {
		t.Fatalf("expected sample length error")
	}
	if buf.Len() != 0 {
		t.Fatalf("partial output written: %d bytes", buf.Len())
	}
}

func TestWriter_FlateCompression(t *testing.T) {
	img := rgbImage(16, 16)
	doc, err := builder.NewBuilder().NewPage(10, 10).DrawImage(img, 0, 0, 10, 10, builder.ImageOptions{}).Finish().Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	data := write(t, doc, Config{Compression: zlib.DefaultCompression, Verify: true})
	if got := bytes.Count(data, []byte("/Filter /FlateDecode")); got != 2 {
		t.Fatalf("expected image and content compressed, got %d filters", got)
	}

	re := regexp.MustCompile(`/Subtype /Image[^>]*>>\nstream\n`)
	loc := re.FindIndex(data)
	if loc == nil {
		t.Fatalf("image stream not found")
	}
	rest := data[loc[1]:]
	payload := rest[:bytes.Index(rest, []byte("\nendstream"))]
	decoded, err := filters.Default().Decode(context.Background(), payload, []string{filters.FlateDecode})
	if err != nil {
		t.Fatalf("inflate: %v", err)
	}
	if diff := cmp.Diff(img.Data, decoded); diff != "" {
		t.Fatalf("samples mismatch (-want +got):\n%s", diff)
	}
}

// FlateDecode streams must carry zlib framing, not bare deflate.
func TestWriter_FlateStreamsAreZlib(t *testing.T) {
	img := rgbImage(2, 2)
	doc, err := builder.NewBuilder().NewPage(10, 10).DrawImage(img, 0, 0, 10, 10, builder.ImageOptions{}).Finish().Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	data := write(t, doc, Config{Compression: 6})

	re := regexp.MustCompile(`/Filter /FlateDecode[^>]*>>\nstream\n`)
	locs := re.FindAllIndex(data, -1)
	if len(locs) != 2 {
		t.Fatalf("found %d flate streams, want 2", len(locs))
	}
	var payloads [][]byte
	for _, loc := range locs {
		rest := data[loc[1]:]
		packed := rest[:bytes.Index(rest, []byte("\nendstream"))]
		r, err := zlib.NewReader(bytes.NewReader(packed))
		if err != nil {
			t.Fatalf("zlib header rejected (% x): %v", packed[:2], err)
		}
		out, err := io.ReadAll(r)
		if err != nil {
			t.Fatalf("zlib read: %v", err)
		}
		payloads = append(payloads, out)
	}
	// image samples come before the content stream
	if diff := cmp.Diff(img.Data, payloads[0]); diff != "" {
		t.Fatalf("samples mismatch (-want +got):\n%s", diff)
	}
	if string(payloads[1]) != "q\n10 0 0 10 0 0 cm\n/Im1 Do\nQ\n" {
		t.Fatalf("content stream = %q", payloads[1])
	}
}

func TestWriter_DeterministicOutput(t *testing.T) {
	info := &semantic.DocumentInfo{Title: "scan", CreationDate: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)}
	a := imageDoc(t, 2)
	a.Info = info
	b := imageDoc(t, 2)
	b.Info = info
	first := write(t, a, Config{Deterministic: true})
	second := write(t, b, Config{Deterministic: true})
	if !bytes.Equal(first, second) {
		t.Fatalf("deterministic output differs")
	}
	if bytes.Contains(first, []byte("/CreationDate")) {
		t.Fatalf("deterministic output carries a creation date")
	}

	c := imageDoc(t, 2)
	c.Info = &semantic.DocumentInfo{Title: "other"}
	if bytes.Equal(first, write(t, c, Config{Deterministic: true})) {
		t.Fatalf("different documents produced identical output")
	}

	x := write(t, imageDoc(t, 1), Config{})
	y := write(t, imageDoc(t, 1), Config{})
	if bytes.Equal(x, y) {
		t.Fatalf("random file identifiers collided")
	}
}

func TestWriter_InfoFields(t *testing.T) {
	doc := imageDoc(t, 1)
	doc.Info = &semantic.DocumentInfo{
		Title:        "Résumé (draft)",
		Author:       "Ada",
		Producer:     "img2pdf",
		Keywords:     []string{"scan", "invoice"},
		CreationDate: time.Date(2024, 5, 1, 10, 30, 0, 0, time.FixedZone("", 2*3600)),
	}
	data := write(t, doc, Config{})
	for _, want := range []string{
		"/Author (Ada)",
		"/Producer (img2pdf)",
		"/Keywords (scan, invoice)",
		"/CreationDate (D:20240501103000+02'00')",
		"/Info 3 0 R",
	} {
		if !bytes.Contains(data, []byte(want)) {
			t.Fatalf("info dict missing %q", want)
		}
	}
	title := textString("Résumé (draft)")
	if !bytes.HasPrefix(title.Bytes, []byte{0xFE, 0xFF}) {
		t.Fatalf("non-ascii title not UTF-16BE: % x", title.Bytes)
	}
	if !bytes.Contains(data, append([]byte("/Title "), escapeLiteralString(title.Bytes)...)) {
		t.Fatalf("title not written as UTF-16")
	}
}

func TestWriter_MetadataAndLang(t *testing.T) {
	doc := imageDoc(t, 1)
	doc.Metadata = &semantic.XMPMetadata{Raw: []byte("<x:xmpmeta/>")}
	doc.Lang = "en-GB"
	data := write(t, doc, Config{Compression: 6})
	for _, want := range []string{"/Metadata 3 0 R", "/Lang (en-GB)", "/Subtype /XML", "stream\n<x:xmpmeta/>\nendstream"} {
		if !bytes.Contains(data, []byte(want)) {
			t.Fatalf("output missing %q", want)
		}
	}
}

func TestWriter_Errors(t *testing.T) {
	w := NewWriter()
	var buf bytes.Buffer
	if err := w.Write(context.Background(), &semantic.Document{}, &buf, Config{}); err == nil {
		t.Fatalf("expected error for empty document")
	}
	doc := imageDoc(t, 1)
	doc.Pages[0].MediaBox = semantic.Rectangle{}
	if err := w.Write(context.Background(), doc, &buf, Config{}); err == nil {
		t.Fatalf("expected error for empty media box")
	}
	if buf.Len() != 0 {
		t.Fatalf("output written on failure")
	}
}

type failingSink struct{ err error }

func (f failingSink) Write([]byte) (int, error) { return 0, f.err }

type shortSink struct{}

func (shortSink) Write(p []byte) (int, error) { return len(p) / 2, nil }

func TestWriter_SinkFailure(t *testing.T) {
	boom := errors.New("disk full")
	err := NewWriter().Write(context.Background(), imageDoc(t, 1), failingSink{err: boom}, Config{})
	if !errors.Is(err, boom) {
		t.Fatalf("expected sink error, got %v", err)
	}
	err = NewWriter().Write(context.Background(), imageDoc(t, 1), shortSink{}, Config{})
	if !errors.Is(err, io.ErrShortWrite) {
		t.Fatalf("expected short write, got %v", err)
	}
}

type countingSink struct {
	calls int
	bytes.Buffer
}

func (c *countingSink) Write(p []byte) (int, error) {
	c.calls++
	return c.Buffer.Write(p)
}

func TestWriter_SingleSinkWrite(t *testing.T) {
	sink := &countingSink{}
	if err := NewWriter().Write(context.Background(), imageDoc(t, 5), sink, Config{Verify: true}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if sink.calls != 1 {
		t.Fatalf("sink written %d times, want 1", sink.calls)
	}
}

type recordingInterceptor struct {
	before, after []int
	fail          error
}

func (r *recordingInterceptor) BeforeWrite(_ context.Context, ref raw.ObjectRef, _ raw.Object) error {
	r.before = append(r.before, ref.Num)
	return r.fail
}

func (r *recordingInterceptor) AfterWrite(_ context.Context, ref raw.ObjectRef, _ raw.Object, n int64) error {
	if n <= 0 {
		return fmt.Errorf("object %d reported %d bytes", ref.Num, n)
	}
	r.after = append(r.after, ref.Num)
	return nil
}

func TestWriter_Interceptors(t *testing.T) {
	rec := &recordingInterceptor{}
	w := (&WriterBuilder{}).WithInterceptor(rec).Build()
	var buf bytes.Buffer
	if err := w.Write(context.Background(), imageDoc(t, 1), &buf, Config{}); err != nil {
		t.Fatalf("write: %v", err)
	}
	want := []int{1, 2, 3, 4, 5}
	if diff := cmp.Diff(want, rec.before); diff != "" {
		t.Fatalf("before order (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want, rec.after); diff != "" {
		t.Fatalf("after order (-want +got):\n%s", diff)
	}

	veto := errors.New("veto")
	buf.Reset()
	w = (&WriterBuilder{}).WithInterceptor(&recordingInterceptor{fail: veto}).Build()
	if err := w.Write(context.Background(), imageDoc(t, 1), &buf, Config{}); !errors.Is(err, veto) {
		t.Fatalf("expected interceptor error, got %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("output written after interceptor failure")
	}
}

func TestWriter_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var buf bytes.Buffer
	if err := NewWriter().Write(ctx, imageDoc(t, 1), &buf, Config{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("output written after cancellation")
	}
}

func TestVerifyXRefDetectsBadOffsets(t *testing.T) {
	data := write(t, imageDoc(t, 2), Config{Deterministic: true})
	if err := VerifyXRef(context.Background(), data); err != nil {
		t.Fatalf("verify valid output: %v", err)
	}
	// Shift every object by one byte without touching the table.
	broken := append([]byte("%PDF-1.7\n "), data[len("%PDF-1.7\n"):]...)
	if err := VerifyXRef(context.Background(), broken); err == nil {
		t.Fatalf("expected verification failure")
	}
}

func TestSerializePrimitive(t *testing.T) {
	cases := []struct {
		obj  raw.Object
		want string
	}{
		{raw.NumberInt(42), "42"},
		{raw.NumberFloat(203.2), "203.2"},
		{raw.NumberFloat(0.000001), "0.000001"},
		{raw.HexStr([]byte{0xAB, 0x01}), "<AB01>"},
		{raw.Str([]byte("a(b)\\")), `(a\(b\)\\)`},
		{raw.NameLiteral("A B"), "/A#20B"},
		{raw.NewArray(raw.Bool(true), raw.NullObj{}, raw.Ref(3, 0)), "[true null 3 0 R]"},
	}
	for _, tc := range cases {
		if got := string(serializePrimitive(tc.obj)); got != tc.want {
			t.Errorf("serialize %#v = %q, want %q", tc.obj, got, tc.want)
		}
	}
	d := raw.Dict()
	d.Set(raw.NameLiteral("Type"), raw.NameLiteral("Page"))
	d.Set(raw.NameLiteral("Count"), raw.NumberInt(1))
	if got := string(serializePrimitive(d)); got != "<</Count 1/Type /Page>>" {
		t.Errorf("dict serialized as %q", got)
	}
}

func TestNumberKeepsIntegers(t *testing.T) {
	if n := number(720); !n.IsInteger() || n.Int() != 720 {
		t.Fatalf("720 not kept as integer: %#v", n)
	}
	if n := number(575.9999); n.IsInteger() {
		t.Fatalf("fraction rounded to integer: %#v", n)
	}
}

func TestWriter_DeduplicateImages(t *testing.T) {
	data := write(t, imageDoc(t, 3), Config{DeduplicateImages: true, Verify: true})
	if got := bytes.Count(data, []byte("/Subtype /Image")); got != 1 {
		t.Fatalf("found %d image objects, want 1", got)
	}
	table, err := xref.NewResolver(xref.ResolverConfig{}).Resolve(context.Background(), bytes.NewReader(data))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got := len(table.Objects()); got != 2+1+2*3 {
		t.Fatalf("xref lists %d objects", got)
	}

	plain := write(t, imageDoc(t, 3), Config{})
	if got := bytes.Count(plain, []byte("/Subtype /Image")); got != 3 {
		t.Fatalf("found %d image objects without dedup, want 3", got)
	}
}

func TestHashObjectDistinguishesStreams(t *testing.T) {
	a := raw.NewStream(nil, []byte{1, 2, 3})
	b := raw.NewStream(nil, []byte{1, 2, 3})
	c := raw.NewStream(nil, []byte{1, 2, 4})
	if hashObject(a) != hashObject(b) {
		t.Fatalf("equal streams hash differently")
	}
	if hashObject(a) == hashObject(c) {
		t.Fatalf("different streams hash alike")
	}
}
