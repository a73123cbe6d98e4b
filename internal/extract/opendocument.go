package extract

import (
	"fmt"
	"regexp"
	"strings"
)

const openDocumentContent = "content.xml"

// Element text without nested markup. Headings only occur in text and presentation documents.
var (
	odParagraph = regexp.MustCompile(`<text:p[^>]*>([^<]*)</text:p>`)
	odSpan      = regexp.MustCompile(`<text:span[^>]*>([^<]*)</text:span>`)
	odHeading   = regexp.MustCompile(`<text:h[^>]*>([^<]*)</text:h>`)
)

// extractOpenDocument reads content.xml of an .odt, .odp or .ods package.
func extractOpenDocument(content []byte, ext string) (string, error) {
	kind := strings.ToUpper(strings.TrimPrefix(ext, "."))
	zr, err := openZip(content, kind)
	if err != nil {
		return "", err
	}
	doc, err := readEntry(zr, openDocumentContent)
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", kind, err)
	}
	if doc == nil {
		return "", fmt.Errorf("extract %s: %s not found", kind, openDocumentContent)
	}
	var b strings.Builder
	textRuns(&b, odHeading, doc)
	textRuns(&b, odParagraph, doc)
	textRuns(&b, odSpan, doc)
	return b.String(), nil
}
