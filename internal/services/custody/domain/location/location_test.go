package location

import (
	"reflect"
	"testing"

	"github.com/louisbranch/custody/internal/services/custody/domain"
)

func TestDescendantsBreadthFirst(t *testing.T) {
	tree := BuildTree([]domain.Location{
		{ID: "campus"},
		{ID: "lab", ParentID: "campus"},
		{ID: "store", ParentID: "campus"},
		{ID: "bench", ParentID: "lab"},
		{ID: "shelf", ParentID: "store"},
		{ID: "annex"},
	})

	got := Descendants(tree, "campus")
	want := []string{"campus", "lab", "store", "bench", "shelf"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Descendants = %v, want %v", got, want)
	}
	if got := Descendants(tree, "annex"); !reflect.DeepEqual(got, []string{"annex"}) {
		t.Fatalf("leaf descendants = %v", got)
	}
	if got := Descendants(tree, ""); got != nil {
		t.Fatalf("empty root = %v, want nil", got)
	}
}

func TestDescendantsTerminatesOnCycle(t *testing.T) {
	tree := BuildTree([]domain.Location{
		{ID: "a", ParentID: "c"},
		{ID: "b", ParentID: "a"},
		{ID: "c", ParentID: "b"},
		{ID: "self", ParentID: "self"},
	})

	got := Descendants(tree, "a")
	want := []string{"a", "b", "c"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Descendants = %v, want %v", got, want)
	}
	if got := Descendants(tree, "self"); !reflect.DeepEqual(got, []string{"self"}) {
		t.Fatalf("self loop = %v", got)
	}
}
