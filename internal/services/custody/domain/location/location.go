// Package location resolves subtrees of the location hierarchy.
package location

import "github.com/louisbranch/custody/internal/services/custody/domain"

// Tree maps a location id to the ids of its direct children.
type Tree map[string][]string

// BuildTree indexes locations by parent.
func BuildTree(locations []domain.Location) Tree {
	tree := make(Tree, len(locations))
	for _, loc := range locations {
		if loc.ParentID == "" {
			continue
		}
		tree[loc.ParentID] = append(tree[loc.ParentID], loc.ID)
	}
	return tree
}

// Descendants returns root followed by every location beneath it in
// breadth-first order. Each id is visited once, so a misconfigured parent
// cycle terminates.
func Descendants(tree Tree, root string) []string {
	if root == "" {
		return nil
	}
	visited := map[string]struct{}{root: {}}
	out := []string{root}
	queue := []string{root}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, child := range tree[current] {
			if _, seen := visited[child]; seen {
				continue
			}
			visited[child] = struct{}{}
			out = append(out, child)
			queue = append(queue, child)
		}
	}
	return out
}
