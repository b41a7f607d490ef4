package notebook

import (
	"fmt"
	"sort"
)

// Graph is the dependency graph induced by ProcessingConfig.References.
// Cells are addressed by index; an edge i -> j means cell i references cell j.
type Graph struct {
	ids   []string
	index map[string]int
	deps  [][]int
	users [][]int
}

// BuildGraph resolves references by cell id first, then by block name. A
// block name belongs to the first cell in order that declares it.
// References to cells outside the list are ignored.
func BuildGraph(cells []Cell) *Graph {
	g := &Graph{
		ids:   make([]string, len(cells)),
		index: make(map[string]int, len(cells)),
		deps:  make([][]int, len(cells)),
		users: make([][]int, len(cells)),
	}
	aliases := make(map[string]int)
	for i, c := range cells {
		g.ids[i] = c.ID
		g.index[c.ID] = i
		if c.ProcessingConfig == nil || c.ProcessingConfig.BlockName == "" {
			continue
		}
		if _, taken := aliases[c.ProcessingConfig.BlockName]; !taken {
			aliases[c.ProcessingConfig.BlockName] = i
		}
	}

	for i, c := range cells {
		if c.ProcessingConfig == nil {
			continue
		}
		seen := make(map[int]bool)
		for _, ref := range c.ProcessingConfig.References {
			j, ok := g.index[ref]
			if !ok {
				j, ok = aliases[ref]
			}
			if !ok || seen[j] {
				continue
			}
			seen[j] = true
			g.deps[i] = append(g.deps[i], j)
			g.users[j] = append(g.users[j], i)
		}
	}
	return g
}

// Len returns the number of cells in the graph.
func (g *Graph) Len() int {
	return len(g.ids)
}

// Dependencies returns the ids a cell references directly.
func (g *Graph) Dependencies(id string) []string {
	i, ok := g.index[id]
	if !ok {
		return nil
	}
	return g.names(g.deps[i])
}

// Dependents returns the ids of cells referencing id directly.
func (g *Graph) Dependents(id string) []string {
	i, ok := g.index[id]
	if !ok {
		return nil
	}
	return g.names(g.users[i])
}

// Cycle returns the ids along one cycle, if the graph has any.
func (g *Graph) Cycle() ([]string, bool) {
	const (
		white = iota
		grey
		black
	)
	color := make([]int, len(g.ids))
	parent := make([]int, len(g.ids))

	var cycle []int
	var visit func(int) bool
	visit = func(u int) bool {
		color[u] = grey
		for _, v := range g.deps[u] {
			switch color[v] {
			case white:
				parent[v] = u
				if visit(v) {
					return true
				}
			case grey:
				cycle = []int{v}
				for w := u; w != v; w = parent[w] {
					cycle = append(cycle, w)
				}
				return true
			}
		}
		color[u] = black
		return false
	}

	for i := range g.ids {
		if color[i] == white && visit(i) {
			for l, r := 0, len(cycle)-1; l < r; l, r = l+1, r-1 {
				cycle[l], cycle[r] = cycle[r], cycle[l]
			}
			return g.names(cycle), true
		}
	}
	return nil, false
}

// RefreshOrder returns every cell that transitively depends on id, ordered so
// that a cell appears after all of its refreshed dependencies. The changed cell
// itself is not included.
func (g *Graph) RefreshOrder(id string) ([]string, error) {
	start, ok := g.index[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCell, id)
	}

	affected := make(map[int]bool)
	queue := []int{start}
	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		for _, v := range g.users[u] {
			if v == start {
				return nil, fmt.Errorf("%w: through %s", ErrDependencyCycle, id)
			}
			if !affected[v] {
				affected[v] = true
				queue = append(queue, v)
			}
		}
	}

	// Kahn over the affected subgraph; edges from start are already satisfied.
	indegree := make(map[int]int, len(affected))
	for v := range affected {
		for _, d := range g.deps[v] {
			if affected[d] {
				indegree[v]++
			}
		}
	}
	var ready []int
	for v := range affected {
		if indegree[v] == 0 {
			ready = append(ready, v)
		}
	}
	sort.Ints(ready)

	order := make([]int, 0, len(affected))
	for len(ready) > 0 {
		u := ready[0]
		ready = ready[1:]
		order = append(order, u)
		var next []int
		for _, v := range g.users[u] {
			if !affected[v] {
				continue
			}
			indegree[v]--
			if indegree[v] == 0 {
				next = append(next, v)
			}
		}
		ready = append(ready, next...)
		sort.Ints(ready)
	}
	if len(order) != len(affected) {
		return nil, fmt.Errorf("%w: downstream of %s", ErrDependencyCycle, id)
	}
	return g.names(order), nil
}

func (g *Graph) names(idx []int) []string {
	out := make([]string, len(idx))
	for i, j := range idx {
		out[i] = g.ids[j]
	}
	return out
}
