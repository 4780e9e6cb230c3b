package builder

import (
	"errors"
	"fmt"

	"github.com/wudi/img2pdf/coords"
	"github.com/wudi/img2pdf/imaging"
	"github.com/wudi/img2pdf/ir/semantic"
	"github.com/wudi/img2pdf/pagesize"
)

// ErrNoPages is returned by Build when no page was added.
var ErrNoPages = errors.New("document has no pages")

// PDFBuilder provides a fluent API for PDF construction.
type PDFBuilder interface {
	NewPage(width, height float64) PageBuilder
	AddPage(page *semantic.Page) PDFBuilder
	AddImagePage(src *imaging.SourceImage, size pagesize.Size) PDFBuilder
	SetInfo(info *semantic.DocumentInfo) PDFBuilder
	SetMetadata(xmp []byte) PDFBuilder
	SetLanguage(lang string) PDFBuilder
	Build() (*semantic.Document, error)
}

// PageBuilder provides a fluent API for page construction.
type PageBuilder interface {
	DrawImage(img *semantic.Image, x, y, width, height float64, opts ImageOptions) PageBuilder
	SetMediaBox(box semantic.Rectangle) PageBuilder
	SetSource(name string) PageBuilder
	Finish() PDFBuilder
}

// ImageOptions configures image drawing.
type ImageOptions struct {
	Interpolate bool
}

type builderImpl struct {
	pages        []*semantic.Page
	info         *semantic.DocumentInfo
	metadata     []byte
	lang         string
	xobjectCount int
	xobjectNames map[*semantic.Image]string
	err          error
}

type pageBuilderImpl struct {
	parent *builderImpl
	page   *semantic.Page
}

// NewBuilder constructs a PDFBuilder.
func NewBuilder() PDFBuilder { return &builderImpl{} }

// NewPage starts a page whose media box is width x height points.
func (b *builderImpl) NewPage(w, h float64) PageBuilder {
	p := &semantic.Page{MediaBox: semantic.Rectangle{LLX: 0, LLY: 0, URX: w, URY: h}}
	b.pages = append(b.pages, p)
	return &pageBuilderImpl{parent: b, page: p}
}

func (b *builderImpl) AddPage(p *semantic.Page) PDFBuilder {
	if p == nil {
		return b
	}
	b.pages = append(b.pages, p)
	return b
}

// AddImagePage appends a page sized to size whose only content is src
// drawn from the origin across the whole page.
func (b *builderImpl) AddImagePage(src *imaging.SourceImage, size pagesize.Size) PDFBuilder {
	if src == nil {
		b.setErr(errors.New("nil source image"))
		return b
	}
	img, err := FromSource(src)
	if err != nil {
		b.setErr(err)
		return b
	}
	w, h := size.Points()
	return b.NewPage(w, h).
		SetSource(src.Path).
		DrawImage(img, 0, 0, w, h, ImageOptions{}).
		Finish()
}

func (b *builderImpl) SetInfo(info *semantic.DocumentInfo) PDFBuilder {
	b.info = info
	return b
}

func (b *builderImpl) SetMetadata(xmp []byte) PDFBuilder {
	b.metadata = xmp
	return b
}

func (b *builderImpl) SetLanguage(lang string) PDFBuilder {
	b.lang = lang
	return b
}

func (b *builderImpl) Build() (*semantic.Document, error) {
	if b.err != nil {
		return nil, b.err
	}
	if len(b.pages) == 0 {
		return nil, ErrNoPages
	}
	for i, p := range b.pages {
		if p.MediaBox.Width() <= 0 || p.MediaBox.Height() <= 0 {
			return nil, fmt.Errorf("page %d: media box %v is empty", i, p.MediaBox)
		}
		p.Index = i
	}
	doc := &semantic.Document{
		Pages: b.pages,
		Info:  b.info,
		Lang:  b.lang,
	}
	if len(b.metadata) > 0 {
		doc.Metadata = &semantic.XMPMetadata{Raw: b.metadata}
	}
	return doc, nil
}

func (b *builderImpl) setErr(err error) {
	if b.err == nil {
		b.err = err
	}
}

func (p *pageBuilderImpl) DrawImage(img *semantic.Image, x, y, width, height float64, opts ImageOptions) PageBuilder {
	if img == nil {
		return p
	}
	res := p.ensureResources()

	name := p.parent.imageName(img)
	if _, exists := res.XObjects[name]; !exists {
		xobj := semantic.XObject(*img)
		xobj.Subtype = "Image"
		if opts.Interpolate {
			xobj.Interpolate = true
		}
		res.XObjects[name] = xobj
	}
	w := width
	if w == 0 {
		w = float64(img.Width)
	}
	h := height
	if h == 0 {
		h = float64(img.Height)
	}

	m := coords.ImagePlacement(x, y, w, h)
	cm := make([]semantic.Operand, len(m))
	for i, v := range m {
		cm[i] = semantic.NumberOperand{Value: v}
	}
	ops := p.ensureContentOps()
	*ops = append(*ops,
		semantic.Operation{Operator: "q"},
		semantic.Operation{Operator: "cm", Operands: cm},
		semantic.Operation{Operator: "Do", Operands: []semantic.Operand{semantic.NameOperand{Value: name}}},
		semantic.Operation{Operator: "Q"},
	)
	return p
}

func (p *pageBuilderImpl) SetMediaBox(box semantic.Rectangle) PageBuilder {
	p.page.MediaBox = box
	return p
}

func (p *pageBuilderImpl) SetSource(name string) PageBuilder {
	p.page.Source = name
	return p
}

func (p *pageBuilderImpl) Finish() PDFBuilder { return p.parent }

func (b *builderImpl) imageName(img *semantic.Image) string {
	if b.xobjectNames == nil {
		b.xobjectNames = make(map[*semantic.Image]string)
	}
	if name, ok := b.xobjectNames[img]; ok {
		return name
	}
	b.xobjectCount++
	name := fmt.Sprintf("Im%d", b.xobjectCount)
	b.xobjectNames[img] = name
	return name
}

func (p *pageBuilderImpl) ensureResources() *semantic.Resources {
	if p.page.Resources == nil {
		p.page.Resources = &semantic.Resources{}
	}
	if p.page.Resources.XObjects == nil {
		p.page.Resources.XObjects = make(map[string]semantic.XObject)
	}
	return p.page.Resources
}

func (p *pageBuilderImpl) ensureContentOps() *[]semantic.Operation {
	if len(p.page.Contents) == 0 {
		p.page.Contents = append(p.page.Contents, semantic.ContentStream{})
	}
	return &p.page.Contents[0].Operations
}
