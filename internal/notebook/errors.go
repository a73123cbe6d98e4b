package notebook

import "errors"

var (
	// ErrNoteNotFound is returned when a note ID does not resolve.
	ErrNoteNotFound = errors.New("note not found")
	// ErrFileAccess is returned when an import or export path cannot be read or written.
	ErrFileAccess = errors.New("file access error")
	// ErrInvalidCategory is returned for a category label that is empty after trimming.
	ErrInvalidCategory = errors.New("invalid category")
)
