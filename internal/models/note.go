// Package models defines core data structures for notes, categories, and similarity results.
package models

import (
	"sort"
	"strings"
)

// Category is a label attachable to notes. Labels are unique ignoring case.
type Category struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Note is a user-authored text document with its tagged categories.
// Two notes with the same ID are the same entity regardless of other fields.
type Note struct {
	ID         string     `json:"id"`
	Text       string     `json:"text"`
	Categories []Category `json:"categories"`
	CreatedAt  int64      `json:"created"`
	ModifiedAt int64      `json:"modified"`
}

// GetID returns the note ID.
func (n *Note) GetID() string { return n.ID }

// GetText returns the note text.
func (n *Note) GetText() string { return n.Text }

// GetCreated returns the creation timestamp in seconds since epoch.
func (n *Note) GetCreated() int64 { return n.CreatedAt }

// GetModified returns the modification timestamp in seconds since epoch.
func (n *Note) GetModified() int64 { return n.ModifiedAt }

// HasCategory reports whether a category with the given ID is attached.
func (n *Note) HasCategory(id string) bool {
	for _, c := range n.Categories {
		if c.ID == id {
			return true
		}
	}
	return false
}

// AddCategory attaches c unless a category with the same ID is already present.
// Returns true when the set changed.
func (n *Note) AddCategory(c Category) bool {
	if n.HasCategory(c.ID) {
		return false
	}
	n.Categories = append(n.Categories, c)
	SortCategories(n.Categories)
	return true
}

// RemoveCategory detaches the category with the given ID. Returns true when the set changed.
func (n *Note) RemoveCategory(id string) bool {
	for i, c := range n.Categories {
		if c.ID == id {
			n.Categories = append(n.Categories[:i], n.Categories[i+1:]...)
			return true
		}
	}
	return false
}

// SortCategories orders categories by case-folded label, then ID.
func SortCategories(cats []Category) {
	sort.Slice(cats, func(i, j int) bool {
		li, lj := strings.ToLower(cats[i].Label), strings.ToLower(cats[j].Label)
		if li != lj {
			return li < lj
		}
		return cats[i].ID < cats[j].ID
	})
}
