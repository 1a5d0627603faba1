package catalog

import (
	"sort"
	"strings"

	"snowbank/pkg/errors"
)

// Order returns the scripts selected by f so that every script runs after
// the scripts it depends on. Ties keep layer order then path order.
func (c *Catalog) Order(f Filter) ([]*Script, error) {
	if _, err := c.ObjectOrder(f); err != nil {
		return nil, err
	}

	scripts := c.Select(f)
	index := make(map[*Script]int, len(scripts))
	for i, s := range scripts {
		index[s] = i
	}

	edges := make([][]int, len(scripts))
	for i, s := range scripts {
		seen := make(map[int]bool)
		for _, o := range s.Objects {
			for _, dep := range o.DependsOn {
				owner := c.objects[dep].Script
				j, ok := index[owner]
				if !ok || j == i || seen[j] {
					continue
				}
				seen[j] = true
				edges[j] = append(edges[j], i)
			}
		}
	}

	order, remaining := kahn(len(scripts), edges, func(a, b int) bool {
		return scriptLess(scripts[a], scripts[b])
	})
	if len(remaining) > 0 {
		names := make([]string, len(remaining))
		for i, r := range remaining {
			names[i] = scripts[r].Path
		}
		return nil, errors.Newf(errors.ErrCodeCatalogCycle,
			"circular dependency between scripts: %s", strings.Join(names, ", ")).
			WithContext("scripts", names)
	}

	out := make([]*Script, len(order))
	for i, n := range order {
		out[i] = scripts[n]
	}
	return out, nil
}

// ObjectOrder returns the objects of the selected scripts in dependency
// order. Dependencies outside the selection are assumed to exist already.
func (c *Catalog) ObjectOrder(f Filter) ([]*Object, error) {
	var objects []*Object
	position := make(map[*Script]int)
	for i, s := range c.Select(f) {
		position[s] = i
		objects = append(objects, s.Objects...)
	}

	byName := make(map[string]int)
	for i, o := range objects {
		if o.Type.Creates() {
			if _, exists := byName[o.QualifiedName()]; !exists {
				byName[o.QualifiedName()] = i
			}
		}
	}

	edges := make([][]int, len(objects))
	for i, o := range objects {
		for _, dep := range o.DependsOn {
			if j, ok := byName[dep]; ok && j != i {
				edges[j] = append(edges[j], i)
			}
		}
	}

	order, remaining := kahn(len(objects), edges, func(a, b int) bool {
		sa, sb := position[objects[a].Script], position[objects[b].Script]
		if sa != sb {
			return sa < sb
		}
		return objects[a].Index < objects[b].Index
	})
	if len(remaining) > 0 {
		var names []string
		for _, r := range remaining {
			if objects[r].Type.Creates() {
				names = append(names, objects[r].QualifiedName())
			}
		}
		sort.Strings(names)
		return nil, errors.Newf(errors.ErrCodeCatalogCycle,
			"circular dependency between objects: %s", strings.Join(names, ", ")).
			WithContext("objects", names)
	}

	out := make([]*Object, len(order))
	for i, n := range order {
		out[i] = objects[n]
	}
	return out, nil
}

// kahn sorts nodes 0..n-1 along edges (from -> to). The ready node that sorts
// first under less is taken at each step. Nodes left on a cycle are returned
// as remaining.
func kahn(n int, edges [][]int, less func(a, b int) bool) ([]int, []int) {
	inDegree := make([]int, n)
	for _, targets := range edges {
		for _, t := range targets {
			inDegree[t]++
		}
	}

	var ready []int
	for node := 0; node < n; node++ {
		if inDegree[node] == 0 {
			ready = append(ready, node)
		}
	}

	order := make([]int, 0, n)
	for len(ready) > 0 {
		sort.Slice(ready, func(i, j int) bool { return less(ready[i], ready[j]) })
		current := ready[0]
		ready = ready[1:]
		order = append(order, current)

		for _, next := range edges[current] {
			inDegree[next]--
			if inDegree[next] == 0 {
				ready = append(ready, next)
			}
		}
	}

	var remaining []int
	if len(order) != n {
		for node := 0; node < n; node++ {
			if inDegree[node] > 0 {
				remaining = append(remaining, node)
			}
		}
	}
	return order, remaining
}
