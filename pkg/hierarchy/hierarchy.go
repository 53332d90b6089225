// Package hierarchy flattens the category forest into path-annotated rows.
package hierarchy

import (
	"fmt"
	"sort"
	"strings"

	"order-analytics/pkg/models"
)

// PathSeparator joins category names inside a path string.
const PathSeparator = " > "

// CycleError reports category nodes that are their own transitive ancestor.
// It is fatal for hierarchy resolution only; the revenue analyses do not
// depend on the forest.
type CycleError struct {
	NodeIDs []uint64
}

func (e *CycleError) Error() string {
	ids := make([]string, len(e.NodeIDs))
	for i, id := range e.NodeIDs {
		ids[i] = fmt.Sprintf("%d", id)
	}
	return fmt.Sprintf("hierarchy: cycle detected involving categories [%s]", strings.Join(ids, " "))
}

// Resolve walks the forest from its roots and produces one row per node with
// its full "Root > ... > Node" path and depth (root = 1). Output is
// depth-first, children in name order, which equals lexicographic order of
// the full paths. A parent reference to a missing node is an integrity
// error; a node unreachable from any root is part of a cycle.
func Resolve(nodes []models.CategoryNode) ([]models.CategoryPathRow, error) {
	byID := make(map[uint64]models.CategoryNode, len(nodes))
	for _, n := range nodes {
		if _, dup := byID[n.ID]; dup {
			return nil, fmt.Errorf("hierarchy: duplicate category id %d", n.ID)
		}
		byID[n.ID] = n
	}

	// Adjacency map built once from the flat input.
	children := make(map[uint64][]uint64)
	var roots []uint64
	for _, n := range nodes {
		if n.ParentID == 0 {
			roots = append(roots, n.ID)
			continue
		}
		if _, ok := byID[n.ParentID]; !ok {
			return nil, &models.IntegrityError{Table: "categories", RowID: n.ID, Ref: "categories", RefID: n.ParentID}
		}
		children[n.ParentID] = append(children[n.ParentID], n.ID)
	}

	byName := func(ids []uint64) {
		sort.Slice(ids, func(i, j int) bool {
			a, b := byID[ids[i]], byID[ids[j]]
			if a.Name != b.Name {
				return a.Name < b.Name
			}
			return a.ID < b.ID
		})
	}
	byName(roots)
	for _, ids := range children {
		byName(ids)
	}

	type frame struct {
		id    uint64
		path  string
		level int
	}
	visited := make(map[uint64]bool, len(nodes))
	out := make([]models.CategoryPathRow, 0, len(nodes))

	// Explicit stack, children pushed in reverse so the name order pops first.
	var stack []frame
	for i := len(roots) - 1; i >= 0; i-- {
		stack = append(stack, frame{id: roots[i], level: 1})
	}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[f.id] {
			return nil, &CycleError{NodeIDs: []uint64{f.id}}
		}
		visited[f.id] = true

		n := byID[f.id]
		path := n.Name
		if f.path != "" {
			path = f.path + PathSeparator + n.Name
		}
		out = append(out, models.CategoryPathRow{
			CategoryID: n.ID,
			Name:       n.Name,
			Path:       path,
			Level:      f.level,
		})

		kids := children[f.id]
		for i := len(kids) - 1; i >= 0; i-- {
			stack = append(stack, frame{id: kids[i], path: path, level: f.level + 1})
		}
	}

	// Nodes never reached from a root sit on a cycle (every acyclic chain
	// ends at a root).
	if len(out) != len(nodes) {
		var cyclic []uint64
		for _, n := range nodes {
			if !visited[n.ID] {
				cyclic = append(cyclic, n.ID)
			}
		}
		sort.Slice(cyclic, func(i, j int) bool { return cyclic[i] < cyclic[j] })
		return nil, &CycleError{NodeIDs: cyclic}
	}
	return out, nil
}
