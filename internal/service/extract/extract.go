// Package extract pulls plain text out of uploaded office documents and PDFs.
package extract

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
)

// Extractor returns the text of the document at path.
type Extractor interface {
	Extract(ctx context.Context, path string) (string, error)
}

// ErrMissingPart is returned when a required package part is absent.
var ErrMissingPart = errors.New("document part not found")

// openPart returns a decoder over one XML part of an OOXML package.
func openPart(zr *zip.Reader, name string) (*xml.Decoder, io.Closer, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, nil, fmt.Errorf("open %s: %w", name, err)
		}
		return xml.NewDecoder(rc), rc, nil
	}
	return nil, nil, fmt.Errorf("%w: %s", ErrMissingPart, name)
}

// findStart advances dec to the first start element named local.
func findStart(dec *xml.Decoder, local string) error {
	for {
		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return fmt.Errorf("%w: <%s>", ErrMissingPart, local)
			}
			return err
		}
		if se, ok := tok.(xml.StartElement); ok && se.Name.Local == local {
			return nil
		}
	}
}

// charData reads the text content of the element just opened.
func charData(dec *xml.Decoder, se xml.StartElement) (string, error) {
	var v struct {
		Text string `xml:",chardata"`
	}
	if err := dec.DecodeElement(&v, &se); err != nil {
		return "", err
	}
	return v.Text, nil
}

func attr(se xml.StartElement, local string) string {
	for _, a := range se.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}
