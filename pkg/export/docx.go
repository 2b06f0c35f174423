// docx.go - Minimal WordprocessingML package: one A4-sized page holding the canvas as
// an inline PNG picture of 595×842 pt.
package export

import (
	"archive/zip"
	"bytes"
	"fmt"
	"image"
	"image/png"
	"io"
)

// Picture and page geometry.
const (
	docxWidthPt  = 595
	docxHeightPt = 842
	emuPerPt     = 12700
	twipsPerPt   = 20
)

const contentTypesXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
<Default Extension="xml" ContentType="application/xml"/>
<Default Extension="png" ContentType="image/png"/>
<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>
</Types>`

const packageRelsXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>
</Relationships>`

const documentRelsXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rIdImage1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/image" Target="media/image1.png"/>
</Relationships>`

// documentXML takes the picture extent in EMU (twice) and the page size in twips.
const documentXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships" xmlns:wp="http://schemas.openxmlformats.org/drawingml/2006/wordprocessingDrawing" xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" xmlns:pic="http://schemas.openxmlformats.org/drawingml/2006/picture">
<w:body>
<w:p><w:pPr><w:spacing w:before="0" w:after="0"/></w:pPr><w:r><w:drawing>
<wp:inline distT="0" distB="0" distL="0" distR="0"><wp:extent cx="%[1]d" cy="%[2]d"/><wp:docPr id="1" name="Biodata"/>
<a:graphic><a:graphicData uri="http://schemas.openxmlformats.org/drawingml/2006/picture"><pic:pic>
<pic:nvPicPr><pic:cNvPr id="1" name="image1.png"/><pic:cNvPicPr/></pic:nvPicPr>
<pic:blipFill><a:blip r:embed="rIdImage1"/><a:stretch><a:fillRect/></a:stretch></pic:blipFill>
<pic:spPr><a:xfrm><a:off x="0" y="0"/><a:ext cx="%[1]d" cy="%[2]d"/></a:xfrm><a:prstGeom prst="rect"><a:avLst/></a:prstGeom></pic:spPr>
</pic:pic></a:graphicData></a:graphic></wp:inline>
</w:drawing></w:r></w:p>
<w:sectPr><w:pgSz w:w="%[3]d" w:h="%[4]d"/><w:pgMar w:top="0" w:right="0" w:bottom="0" w:left="0" w:header="0" w:footer="0" w:gutter="0"/></w:sectPr>
</w:body>
</w:document>`

// docxPart is one file of the package, in write order.
type docxPart struct {
	name string
	data []byte
}

func writeDOCX(w io.Writer, img image.Image) error {
	var pic bytes.Buffer
	if err := png.Encode(&pic, img); err != nil {
		return fmt.Errorf("encode PNG: %w", err)
	}

	doc := fmt.Sprintf(documentXML,
		docxWidthPt*emuPerPt, docxHeightPt*emuPerPt,
		docxWidthPt*twipsPerPt, docxHeightPt*twipsPerPt)

	parts := []docxPart{
		{"[Content_Types].xml", []byte(contentTypesXML)},
		{"_rels/.rels", []byte(packageRelsXML)},
		{"word/document.xml", []byte(doc)},
		{"word/_rels/document.xml.rels", []byte(documentRelsXML)},
		{"word/media/image1.png", pic.Bytes()},
	}

	zw := zip.NewWriter(w)
	for _, p := range parts {
		method := zip.Deflate
		if p.name == "word/media/image1.png" {
			method = zip.Store
		}
		fw, err := zw.CreateHeader(&zip.FileHeader{Name: p.name, Method: method})
		if err != nil {
			return fmt.Errorf("create %s: %w", p.name, err)
		}
		if _, err := fw.Write(p.data); err != nil {
			return fmt.Errorf("write %s: %w", p.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalize docx: %w", err)
	}
	return nil
}
