package notebook

import (
	"fmt"
	"strings"

	"github.com/hyperjump/knowling/internal/models"
	"github.com/hyperjump/knowling/pkg/utils"
)

const (
	untitled       = "Untitled"
	maxTitleLength = 100
	titleEdge      = 50
)

// DeriveTitle turns the first line of text into a file-system safe title: leading '#' and
// spaces are stripped, anything outside [a-zA-Z0-9_-] becomes '_', runs of '_' collapse and
// edge underscores are trimmed. Titles longer than 100 characters keep their first and last
// 50 characters around "...". Text without a usable first line yields "Untitled".
func DeriveTitle(text string) string {
	line := strings.TrimLeft(utils.FirstLine(text), "# ")

	var b strings.Builder
	prevUnderscore := false
	for _, r := range line {
		if !isTitleRune(r) {
			r = '_'
		}
		if r == '_' {
			if prevUnderscore {
				continue
			}
			prevUnderscore = true
		} else {
			prevUnderscore = false
		}
		b.WriteRune(r)
	}
	title := strings.Trim(b.String(), "_")
	if title == "" {
		return untitled
	}
	if len(title) > maxTitleLength {
		title = title[:titleEdge] + "..." + title[len(title)-titleEdge:]
	}
	return title
}

func isTitleRune(r rune) bool {
	return r >= 'a' && r <= 'z' ||
		r >= 'A' && r <= 'Z' ||
		r >= '0' && r <= '9' ||
		r == '_' || r == '-'
}

// ExportTitles derives one title per note. A title already taken in the batch gets
// "-dupe_{i}" appended, where i is the note's position in notes. Titles are compared
// ignoring case so the names also stay distinct on case-insensitive file systems.
func ExportTitles(notes []*models.Note) []string {
	titles := make([]string, len(notes))
	taken := make(map[string]bool, len(notes))
	for i, note := range notes {
		title := DeriveTitle(note.Text)
		if taken[strings.ToLower(title)] {
			base := title
			title = fmt.Sprintf("%s-dupe_%d", base, i)
			for k := 1; taken[strings.ToLower(title)]; k++ {
				title = fmt.Sprintf("%s-dupe_%d_%d", base, i, k)
			}
		}
		taken[strings.ToLower(title)] = true
		titles[i] = title
	}
	return titles
}
