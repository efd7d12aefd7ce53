package extract

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"fmt"
	"strings"
)

const docxDocumentPart = "word/document.xml"

// DOCX extracts the body paragraphs of a Word document, one per line.
// Paragraphs inside tables, text boxes and drawings are not included.
type DOCX struct{}

func (DOCX) Extract(ctx context.Context, path string) (string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("open docx: %w", err)
	}
	defer zr.Close()

	dec, rc, err := openPart(&zr.Reader, docxDocumentPart)
	if err != nil {
		return "", err
	}
	defer rc.Close()

	paras, err := docxParagraphs(dec)
	if err != nil {
		return "", fmt.Errorf("parse docx: %w", err)
	}
	return strings.Join(paras, "\n"), nil
}

func docxParagraphs(dec *xml.Decoder) ([]string, error) {
	if err := findStart(dec, "body"); err != nil {
		return nil, err
	}

	var paras []string
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local != "p" {
				if err := dec.Skip(); err != nil {
					return nil, err
				}
				continue
			}
			text, err := docxParagraph(dec)
			if err != nil {
				return nil, err
			}
			paras = append(paras, text)
		case xml.EndElement:
			// </w:body>
			return paras, nil
		}
	}
}

// docxParagraph reads run text up to the paragraph's end element.
func docxParagraph(dec *xml.Decoder) (string, error) {
	var b strings.Builder
	depth := 0
	for {
		tok, err := dec.Token()
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				s, err := charData(dec, t)
				if err != nil {
					return "", err
				}
				b.WriteString(s)
			case "tab":
				b.WriteByte('\t')
				if err := dec.Skip(); err != nil {
					return "", err
				}
			case "br":
				if typ := attr(t, "type"); typ == "" || typ == "textWrapping" {
					b.WriteByte('\n')
				}
				if err := dec.Skip(); err != nil {
					return "", err
				}
			case "cr":
				b.WriteByte('\n')
				if err := dec.Skip(); err != nil {
					return "", err
				}
			case "noBreakHyphen":
				b.WriteByte('-')
				if err := dec.Skip(); err != nil {
					return "", err
				}
			case "pPr", "rPr", "drawing", "pict", "object", "txbxContent", "AlternateContent":
				if err := dec.Skip(); err != nil {
					return "", err
				}
			default:
				depth++
			}
		case xml.EndElement:
			if depth == 0 {
				return b.String(), nil
			}
			depth--
		}
	}
}
