// Package metadata builds the XMP packet stored as the document's
// /Metadata stream.
package metadata

import (
	"bytes"
	"strings"

	"golang.org/x/text/language"
	"seehuhn.de/go/xmp"

	"github.com/wudi/img2pdf/ir/semantic"
)

// PDF is the XMP namespace for PDF metadata.
// See https://developer.adobe.com/xmp/docs/XMPNamespaces/pdf/
type PDF struct {
	_        xmp.Namespace `xmp:"http://ns.adobe.com/pdf/1.3/"`
	_        xmp.Prefix    `xmp:"pdf"`
	Keywords xmp.Text
	Producer xmp.AgentName
}

var defaultLang = language.MustParse("x-default")

// Packet returns an XMP packet mirroring info. lang, if not empty, adds a
// language-specific title alongside the x-default one.
func Packet(info *semantic.DocumentInfo, lang string) (*xmp.Packet, error) {
	packet := xmp.NewPacket()
	if info == nil {
		return packet, nil
	}

	dc := &xmp.DublinCore{}
	if info.Title != "" {
		dc.Title.Set(defaultLang, info.Title)
		if lang != "" {
			if tag, err := language.Parse(lang); err == nil {
				dc.Title.Set(tag, info.Title)
			}
		}
	}
	if info.Author != "" {
		dc.Creator.Append(xmp.NewProperName(info.Author))
	}
	if info.Subject != "" {
		dc.Description.Set(defaultLang, info.Subject)
	}

	pdfInfo := &PDF{}
	if len(info.Keywords) > 0 {
		pdfInfo.Keywords = xmp.NewText(strings.Join(info.Keywords, ", "))
	}
	if info.Producer != "" {
		pdfInfo.Producer = xmp.NewAgentName(info.Producer)
	}

	if err := packet.Set(dc, pdfInfo); err != nil {
		return nil, err
	}
	return packet, nil
}

// Encode serializes the packet for info.
func Encode(info *semantic.DocumentInfo, lang string) ([]byte, error) {
	packet, err := Packet(info, lang)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := packet.Write(&buf, nil); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
