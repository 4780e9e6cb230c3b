package writer

import (
	"context"
	"fmt"
	"sort"

	"github.com/wudi/img2pdf/filters"
	"github.com/wudi/img2pdf/ir/raw"
	"github.com/wudi/img2pdf/ir/semantic"
)

type objectBuilder struct {
	ctx     context.Context
	doc     *semantic.Document
	cfg     Config
	objects map[raw.ObjectRef]raw.Object
	images  map[string]raw.ObjectRef
	objNum  int
}

func newObjectBuilder(ctx context.Context, doc *semantic.Document, cfg Config) *objectBuilder {
	return &objectBuilder{
		ctx:     ctx,
		doc:     doc,
		cfg:     cfg,
		objects: make(map[raw.ObjectRef]raw.Object),
		images:  make(map[string]raw.ObjectRef),
		objNum:  1,
	}
}

func (b *objectBuilder) nextRef() raw.ObjectRef {
	ref := raw.ObjectRef{Num: b.objNum, Gen: 0}
	b.objNum++
	return ref
}

// Build lays out the catalog, page tree, pages, content streams and image
// XObjects as numbered objects. It returns the catalog and info references.
func (b *objectBuilder) Build() (map[raw.ObjectRef]raw.Object, raw.ObjectRef, *raw.ObjectRef, error) {
	catalogRef := b.nextRef()
	pagesRef := b.nextRef()

	var infoRef *raw.ObjectRef
	if info := b.infoDict(); info != nil {
		ref := b.nextRef()
		b.objects[ref] = info
		infoRef = &ref
	}

	var metadataRef *raw.ObjectRef
	if b.doc.Metadata != nil && len(b.doc.Metadata.Raw) > 0 {
		ref := b.nextRef()
		dict := raw.Dict()
		dict.Set(raw.NameLiteral("Type"), raw.NameLiteral("Metadata"))
		dict.Set(raw.NameLiteral("Subtype"), raw.NameLiteral("XML"))
		b.objects[ref] = raw.NewStream(dict, b.doc.Metadata.Raw)
		metadataRef = &ref
	}

	kids := raw.NewArray()
	for i, p := range b.doc.Pages {
		if p == nil {
			return nil, raw.ObjectRef{}, nil, fmt.Errorf("page %d is nil", i)
		}
		pageRef, err := b.addPage(p, pagesRef)
		if err != nil {
			return nil, raw.ObjectRef{}, nil, fmt.Errorf("page %d: %w", i, err)
		}
		kids.Append(raw.Ref(pageRef.Num, pageRef.Gen))
	}

	pagesDict := raw.Dict()
	pagesDict.Set(raw.NameLiteral("Type"), raw.NameLiteral("Pages"))
	pagesDict.Set(raw.NameLiteral("Count"), raw.NumberInt(int64(kids.Len())))
	pagesDict.Set(raw.NameLiteral("Kids"), kids)
	b.objects[pagesRef] = pagesDict

	catalogDict := raw.Dict()
	catalogDict.Set(raw.NameLiteral("Type"), raw.NameLiteral("Catalog"))
	catalogDict.Set(raw.NameLiteral("Pages"), raw.Ref(pagesRef.Num, pagesRef.Gen))
	if metadataRef != nil {
		catalogDict.Set(raw.NameLiteral("Metadata"), raw.Ref(metadataRef.Num, metadataRef.Gen))
	}
	if b.doc.Lang != "" {
		catalogDict.Set(raw.NameLiteral("Lang"), textString(b.doc.Lang))
	}
	b.objects[catalogRef] = catalogDict

	return b.objects, catalogRef, infoRef, nil
}

func (b *objectBuilder) addPage(p *semantic.Page, parent raw.ObjectRef) (raw.ObjectRef, error) {
	if p.MediaBox.Width() <= 0 || p.MediaBox.Height() <= 0 {
		return raw.ObjectRef{}, fmt.Errorf("empty media box %v", p.MediaBox)
	}

	resDict := raw.Dict()
	procSet := raw.NewArray(raw.NameLiteral("PDF"))
	if p.Resources != nil && len(p.Resources.XObjects) > 0 {
		names := make([]string, 0, len(p.Resources.XObjects))
		for name := range p.Resources.XObjects {
			names = append(names, name)
		}
		sort.Strings(names)
		xobjDict := raw.Dict()
		gray, color := false, false
		for _, name := range names {
			xo := p.Resources.XObjects[name]
			ref, err := b.addImage(xo)
			if err != nil {
				return raw.ObjectRef{}, fmt.Errorf("image %s: %w", name, err)
			}
			xobjDict.Set(raw.NameLiteral(pdfNameLiteral(name)), raw.Ref(ref.Num, ref.Gen))
			if xo.ColorSpace != nil && xo.ColorSpace.Components() == 1 {
				gray = true
			} else {
				color = true
			}
		}
		resDict.Set(raw.NameLiteral("XObject"), xobjDict)
		if gray {
			procSet.Append(raw.NameLiteral("ImageB"))
		}
		if color {
			procSet.Append(raw.NameLiteral("ImageC"))
		}
	}
	resDict.Set(raw.NameLiteral("ProcSet"), procSet)

	var content []byte
	for _, cs := range p.Contents {
		content = append(content, serializeContentStream(cs)...)
	}
	contentDict := raw.Dict()
	if b.cfg.Compression != 0 && len(content) > 0 {
		enc, err := b.compress(content)
		if err != nil {
			return raw.ObjectRef{}, fmt.Errorf("compress content: %w", err)
		}
		content = enc
		contentDict.Set(raw.NameLiteral("Filter"), raw.NameLiteral(semantic.FilterFlate))
	}
	contentRef := b.nextRef()
	b.objects[contentRef] = raw.NewStream(contentDict, content)

	pageRef := b.nextRef()
	pageDict := raw.Dict()
	pageDict.Set(raw.NameLiteral("Type"), raw.NameLiteral("Page"))
	pageDict.Set(raw.NameLiteral("Parent"), raw.Ref(parent.Num, parent.Gen))
	pageDict.Set(raw.NameLiteral("MediaBox"), rectArray(p.MediaBox))
	pageDict.Set(raw.NameLiteral("Resources"), resDict)
	pageDict.Set(raw.NameLiteral("Contents"), raw.Ref(contentRef.Num, contentRef.Gen))
	b.objects[pageRef] = pageDict
	return pageRef, nil
}

func (b *objectBuilder) addImage(xo semantic.XObject) (raw.ObjectRef, error) {
	if xo.Subtype != "" && xo.Subtype != "Image" {
		return raw.ObjectRef{}, fmt.Errorf("unsupported xobject subtype %q", xo.Subtype)
	}
	if xo.Width <= 0 || xo.Height <= 0 {
		return raw.ObjectRef{}, fmt.Errorf("invalid image size %dx%d", xo.Width, xo.Height)
	}
	if len(xo.Data) == 0 {
		return raw.ObjectRef{}, fmt.Errorf("image has no data")
	}
	bpc := xo.BitsPerComponent
	if bpc == 0 {
		bpc = 8
	}
	color := "DeviceRGB"
	if xo.ColorSpace != nil && xo.ColorSpace.ColorSpaceName() != "" {
		color = xo.ColorSpace.ColorSpaceName()
	}

	dict := raw.Dict()
	dict.Set(raw.NameLiteral("Type"), raw.NameLiteral("XObject"))
	dict.Set(raw.NameLiteral("Subtype"), raw.NameLiteral("Image"))
	dict.Set(raw.NameLiteral("Width"), raw.NumberInt(int64(xo.Width)))
	dict.Set(raw.NameLiteral("Height"), raw.NumberInt(int64(xo.Height)))
	dict.Set(raw.NameLiteral("ColorSpace"), raw.NameLiteral(color))
	dict.Set(raw.NameLiteral("BitsPerComponent"), raw.NumberInt(int64(bpc)))
	if len(xo.Decode) > 0 {
		arr := raw.NewArray()
		for _, v := range xo.Decode {
			arr.Append(number(v))
		}
		dict.Set(raw.NameLiteral("Decode"), arr)
	}
	if xo.Interpolate {
		dict.Set(raw.NameLiteral("Interpolate"), raw.Bool(true))
	}

	data := xo.Data
	if xo.Filter == semantic.FilterNone {
		components := 3
		if xo.ColorSpace != nil {
			components = xo.ColorSpace.Components()
		}
		want := (xo.Width*components*bpc + 7) / 8 * xo.Height
		if len(data) != want {
			return raw.ObjectRef{}, fmt.Errorf("image has %d sample bytes, want %d", len(data), want)
		}
	}
	switch {
	case xo.Filter != semantic.FilterNone:
		dict.Set(raw.NameLiteral("Filter"), raw.NameLiteral(xo.Filter))
	case b.cfg.Compression != 0:
		enc, err := b.compress(data)
		if err != nil {
			return raw.ObjectRef{}, fmt.Errorf("compress samples: %w", err)
		}
		data = enc
		dict.Set(raw.NameLiteral("Filter"), raw.NameLiteral(semantic.FilterFlate))
	}

	stream := raw.NewStream(dict, data)
	var key string
	if b.cfg.DeduplicateImages {
		key = hashObject(stream)
		if ref, ok := b.images[key]; ok {
			return ref, nil
		}
	}
	ref := b.nextRef()
	b.objects[ref] = stream
	if key != "" {
		b.images[key] = ref
	}
	return ref, nil
}

func (b *objectBuilder) infoDict() *raw.DictObj {
	info := b.doc.Info
	if info == nil {
		return nil
	}
	dict := raw.Dict()
	set := func(key, value string) {
		if value != "" {
			dict.Set(raw.NameLiteral(key), textString(value))
		}
	}
	set("Title", info.Title)
	set("Author", info.Author)
	set("Subject", info.Subject)
	set("Creator", info.Creator)
	set("Producer", info.Producer)
	if len(info.Keywords) > 0 {
		set("Keywords", joinKeywords(info.Keywords))
	}
	if !info.CreationDate.IsZero() && !b.cfg.Deterministic {
		dict.Set(raw.NameLiteral("CreationDate"), raw.Str([]byte(pdfDate(info.CreationDate))))
	}
	if dict.Len() == 0 {
		return nil
	}
	return dict
}

func (b *objectBuilder) compress(data []byte) ([]byte, error) {
	enc, err := filters.NewFlateEncoder(b.cfg.Compression)
	if err != nil {
		return nil, err
	}
	return enc.Encode(b.ctx, data)
}
