package extract

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"fmt"
	"path"
	"strings"
)

const (
	pptxPresentationPart = "ppt/presentation.xml"
	pptxRelsPart         = "ppt/_rels/presentation.xml.rels"
)

// PPTX extracts slide text in presentation order. Every top-level text
// shape on a slide contributes its text followed by a newline; pictures,
// groups, connectors and graphic frames contribute nothing.
type PPTX struct{}

func (PPTX) Extract(ctx context.Context, p string) (string, error) {
	zr, err := zip.OpenReader(p)
	if err != nil {
		return "", fmt.Errorf("open pptx: %w", err)
	}
	defer zr.Close()

	slides, err := pptxSlideParts(&zr.Reader)
	if err != nil {
		return "", fmt.Errorf("parse pptx: %w", err)
	}

	var b strings.Builder
	for _, part := range slides {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		shapes, err := pptxSlideShapes(&zr.Reader, part)
		if err != nil {
			return "", fmt.Errorf("parse pptx %s: %w", part, err)
		}
		for _, s := range shapes {
			b.WriteString(s)
			b.WriteByte('\n')
		}
	}
	return b.String(), nil
}

type pptxPresentation struct {
	SlideIDs []struct {
		RID string `xml:"http://schemas.openxmlformats.org/officeDocument/2006/relationships id,attr"`
	} `xml:"sldIdLst>sldId"`
}

type pptxRelationships struct {
	Relationships []struct {
		ID     string `xml:"Id,attr"`
		Target string `xml:"Target,attr"`
	} `xml:"Relationship"`
}

// pptxSlideParts resolves the slide list to zip part names.
func pptxSlideParts(zr *zip.Reader) ([]string, error) {
	var pres pptxPresentation
	if err := decodePart(zr, pptxPresentationPart, &pres); err != nil {
		return nil, err
	}
	var rels pptxRelationships
	if err := decodePart(zr, pptxRelsPart, &rels); err != nil {
		return nil, err
	}

	targets := make(map[string]string, len(rels.Relationships))
	for _, r := range rels.Relationships {
		targets[r.ID] = r.Target
	}

	parts := make([]string, 0, len(pres.SlideIDs))
	for _, s := range pres.SlideIDs {
		target, ok := targets[s.RID]
		if !ok {
			return nil, fmt.Errorf("%w: relationship %s", ErrMissingPart, s.RID)
		}
		if strings.HasPrefix(target, "/") {
			parts = append(parts, strings.TrimPrefix(target, "/"))
		} else {
			parts = append(parts, path.Join("ppt", target))
		}
	}
	return parts, nil
}

func decodePart(zr *zip.Reader, name string, v any) error {
	dec, rc, err := openPart(zr, name)
	if err != nil {
		return err
	}
	defer rc.Close()
	return dec.Decode(v)
}

// pptxSlideShapes returns the text of each top-level p:sp in tree order.
func pptxSlideShapes(zr *zip.Reader, part string) ([]string, error) {
	dec, rc, err := openPart(zr, part)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	if err := findStart(dec, "spTree"); err != nil {
		return nil, err
	}

	var shapes []string
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local != "sp" {
				if err := dec.Skip(); err != nil {
					return nil, err
				}
				continue
			}
			text, err := pptxShapeText(dec)
			if err != nil {
				return nil, err
			}
			shapes = append(shapes, text)
		case xml.EndElement:
			// </p:spTree>
			return shapes, nil
		}
	}
}

// pptxShapeText reads a shape's text body; paragraphs are joined by "\n".
func pptxShapeText(dec *xml.Decoder) (string, error) {
	var paras []string
	var cur *strings.Builder
	depth := 0
	for {
		tok, err := dec.Token()
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p":
				cur = &strings.Builder{}
				depth++
			case "t":
				s, err := charData(dec, t)
				if err != nil {
					return "", err
				}
				if cur != nil {
					cur.WriteString(s)
				}
			case "br":
				if cur != nil {
					cur.WriteByte('\n')
				}
				if err := dec.Skip(); err != nil {
					return "", err
				}
			case "nvSpPr", "spPr", "style", "pPr", "rPr", "endParaRPr":
				if err := dec.Skip(); err != nil {
					return "", err
				}
			default:
				depth++
			}
		case xml.EndElement:
			if depth == 0 {
				return strings.Join(paras, "\n"), nil
			}
			depth--
			if t.Name.Local == "p" && cur != nil {
				paras = append(paras, cur.String())
				cur = nil
			}
		}
	}
}
