package models

import (
	"testing"
)

func TestNote_AddCategory(t *testing.T) {
	n := &Note{ID: "n1"}
	if !n.AddCategory(Category{ID: "c2", Label: "work"}) {
		t.Fatal("expected first add to change the set")
	}
	if n.AddCategory(Category{ID: "c2", Label: "Work"}) {
		t.Error("expected duplicate add to be a no-op")
	}
	n.AddCategory(Category{ID: "c1", Label: "Art"})
	if len(n.Categories) != 2 {
		t.Fatalf("expected 2 categories, got %d", len(n.Categories))
	}
	if n.Categories[0].Label != "Art" {
		t.Errorf("expected categories sorted by label, got %v", n.Categories)
	}
}

func TestNote_RemoveCategory(t *testing.T) {
	n := &Note{ID: "n1", Categories: []Category{{ID: "a", Label: "A"}, {ID: "b", Label: "B"}}}
	if !n.RemoveCategory("a") {
		t.Fatal("expected remove to change the set")
	}
	if n.RemoveCategory("a") {
		t.Error("expected second remove to be a no-op")
	}
	if n.HasCategory("a") || !n.HasCategory("b") {
		t.Errorf("unexpected categories: %v", n.Categories)
	}
}

func TestSortCategories(t *testing.T) {
	cats := []Category{{ID: "3", Label: "zeta"}, {ID: "2", Label: "Alpha"}, {ID: "1", Label: "beta"}}
	SortCategories(cats)
	want := []string{"Alpha", "beta", "zeta"}
	for i, w := range want {
		if cats[i].Label != w {
			t.Errorf("position %d: got %s, want %s", i, cats[i].Label, w)
		}
	}
}
