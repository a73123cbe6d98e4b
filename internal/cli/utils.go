// Package cli provides output helpers for the Knowling command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/knowling/internal/models"
	"github.com/hyperjump/knowling/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

const (
	separator  = "─────────────────────────────────────────────────────────"
	previewLen = 200
)

// ParseOutputFormat maps a flag value to an OutputFormat. Unknown values fall back to text.
func ParseOutputFormat(s string) OutputFormat {
	if strings.EqualFold(strings.TrimSpace(s), string(OutputJSON)) {
		return OutputJSON
	}
	return OutputText
}

// WriteNotes writes a note listing to w in the given format.
func WriteNotes(w io.Writer, notes []*models.Note, format OutputFormat) error {
	if format == OutputJSON {
		if notes == nil {
			notes = []*models.Note{}
		}
		return writeJSON(w, notes)
	}
	fmt.Fprintf(w, "\n%d notes\n\n", len(notes))
	for _, n := range notes {
		writeNoteText(w, n, previewLen)
	}
	return nil
}

// WriteNote writes a single note with its full text.
func WriteNote(w io.Writer, note *models.Note, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, note)
	}
	writeNoteText(w, note, 0)
	return nil
}

// WriteSimilarNotes writes similarity results, nearest first.
func WriteSimilarNotes(w io.Writer, results []models.SimilarNote, format OutputFormat) error {
	if format == OutputJSON {
		if results == nil {
			results = []models.SimilarNote{}
		}
		return writeJSON(w, results)
	}
	fmt.Fprintf(w, "\nFound %d similar notes\n\n", len(results))
	for i, r := range results {
		fmt.Fprintln(w, separator)
		fmt.Fprintf(w, "Rank: %d | Distance: %.4f\n", i+1, r.Distance)
		writeNoteBody(w, r.Note, previewLen)
	}
	return nil
}

// WriteStatus writes store counts.
func WriteStatus(w io.Writer, status *models.Status, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, status)
	}
	fmt.Fprintf(w, "Notes:      %d\n", status.Notes)
	fmt.Fprintf(w, "Categories: %d\n", status.Categories)
	fmt.Fprintf(w, "Embeddings: %d\n", status.Embeddings)
	if status.Notes != status.Embeddings {
		fmt.Fprintln(w, "Warning: note and embedding counts differ; run import or reset to resync")
	}
	return nil
}

// FormatCategories joins category labels for display.
func FormatCategories(cats []models.Category) string {
	labels := make([]string, len(cats))
	for i, c := range cats {
		labels[i] = c.Label
	}
	return strings.Join(labels, ", ")
}

func writeNoteText(w io.Writer, n *models.Note, maxLen int) {
	fmt.Fprintln(w, separator)
	writeNoteBody(w, n, maxLen)
}

func writeNoteBody(w io.Writer, n *models.Note, maxLen int) {
	fmt.Fprintf(w, "ID: %s\n", n.ID)
	if len(n.Categories) > 0 {
		fmt.Fprintf(w, "Categories: %s\n", FormatCategories(n.Categories))
	}
	fmt.Fprintf(w, "\n%s\n\n", utils.Truncate(n.Text, maxLen))
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
