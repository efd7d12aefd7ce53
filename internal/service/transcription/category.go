package transcription

import (
	"path/filepath"
	"strings"
)

// Category is the closed set of upload kinds the service understands.
type Category int

const (
	CategoryUnsupported Category = iota
	CategoryMedia
	CategoryDOCX
	CategoryPPTX
	CategoryPDF
)

func (c Category) String() string {
	switch c {
	case CategoryMedia:
		return "media"
	case CategoryDOCX:
		return "docx"
	case CategoryPPTX:
		return "pptx"
	case CategoryPDF:
		return "pdf"
	default:
		return "unsupported"
	}
}

var categoriesByExt = map[string]Category{
	".mp4":  CategoryMedia,
	".mkv":  CategoryMedia,
	".avi":  CategoryMedia,
	".docx": CategoryDOCX,
	".pptx": CategoryPPTX,
	".pdf":  CategoryPDF,
}

// Classify maps a filename to its category by its final extension,
// ignoring case.
func Classify(filename string) Category {
	return categoriesByExt[strings.ToLower(filepath.Ext(filename))]
}

// AllowedExtensions lists every accepted extension.
func AllowedExtensions() []string {
	return []string{".mp4", ".mkv", ".avi", ".docx", ".pptx", ".pdf"}
}
