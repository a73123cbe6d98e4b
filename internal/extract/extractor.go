// Package extract turns note source files into plain note text.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Extractor reads plain text out of note source files. Plain text files are returned
// verbatim; office documents and PDFs have their visible text pulled out.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract reads the file at path and returns its text, choosing a decoder by extension.
func (e *Extractor) Extract(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	return e.ExtractBytes(content, filepath.Ext(path))
}

// ExtractBytes decodes content according to ext (with leading dot, any case).
// Unknown extensions are treated as plain text.
func (e *Extractor) ExtractBytes(content []byte, ext string) (string, error) {
	switch strings.ToLower(ext) {
	case ".pdf":
		return extractPDF(content)
	case ".docx":
		return extractDOCX(content)
	case ".pptx":
		return extractPPTX(content)
	case ".xlsx":
		return extractXLSX(content)
	case ".odt", ".odp", ".ods":
		return extractOpenDocument(content, ext)
	case ".rtf":
		return extractRTF(content)
	default:
		return extractPlain(content), nil
	}
}
