package extract

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	docxDefaultPart  = "word/document.xml"
	contentTypesPart = "[Content_Types].xml"
	docxMainType     = "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"
	pptxSlidePrefix  = "ppt/slides/slide"
)

var (
	wordText  = regexp.MustCompile(`<w:t[^>]*>([^<]*)</w:t>`)
	slideText = regexp.MustCompile(`<a:t[^>]*>([^<]*)</a:t>`)

	// Override elements list PartName and ContentType in either order.
	mainPartAfter  = regexp.MustCompile(`<Override[^>]+PartName="([^"]+)"[^>]+ContentType="` + regexp.QuoteMeta(docxMainType) + `"`)
	mainPartBefore = regexp.MustCompile(`<Override[^>]+ContentType="` + regexp.QuoteMeta(docxMainType) + `"[^>]+PartName="([^"]+)"`)
)

// extractDOCX joins every <w:t> run of the main document part. Runs are matched with any
// attributes so documents written by Word (which decorates every element) still yield text.
func extractDOCX(content []byte) (string, error) {
	zr, err := openZip(content, "DOCX")
	if err != nil {
		return "", err
	}
	part := docxDefaultPart
	if types, err := readEntry(zr, contentTypesPart); err == nil && types != nil {
		for _, re := range []*regexp.Regexp{mainPartAfter, mainPartBefore} {
			if m := re.FindSubmatch(types); m != nil {
				part = strings.TrimPrefix(string(m[1]), "/")
				break
			}
		}
	}
	doc, err := readEntry(zr, part)
	if err != nil {
		return "", fmt.Errorf("extract DOCX: %w", err)
	}
	if doc == nil {
		return "", fmt.Errorf("extract DOCX: %s not found", part)
	}
	var b strings.Builder
	textRuns(&b, wordText, doc)
	return b.String(), nil
}

// extractPPTX joins the <a:t> runs of every slide in slide order.
func extractPPTX(content []byte) (string, error) {
	zr, err := openZip(content, "PPTX")
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for _, name := range entriesWithPrefix(zr, pptxSlidePrefix) {
		slide, err := readEntry(zr, name)
		if err != nil {
			return "", fmt.Errorf("extract PPTX: %w", err)
		}
		textRuns(&b, slideText, slide)
	}
	return b.String(), nil
}
