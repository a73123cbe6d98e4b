package models

// SimilarNote is a note returned by similarity search with its distance to the query note.
// Lower distance means more similar.
type SimilarNote struct {
	Note     *Note   `json:"note"`
	Distance float32 `json:"distance"`
}

// Status summarizes the contents of both stores.
// Notes and Embeddings differ only when a write sequence was interrupted.
type Status struct {
	Notes      int64 `json:"notes"`
	Categories int64 `json:"categories"`
	Embeddings int64 `json:"embeddings"`
}
