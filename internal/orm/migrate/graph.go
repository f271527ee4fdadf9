package migrate

import "fmt"

// graph is the dependency graph between migration records
type graph struct {
	order []string              // declaration order
	nodes map[string]*Migration // id -> record
	edges map[string][]string   // id -> dependencies
}

func newGraph(records []*Migration) (*graph, error) {
	g := &graph{
		order: make([]string, 0, len(records)),
		nodes: make(map[string]*Migration, len(records)),
		edges: make(map[string][]string, len(records)),
	}

	for _, m := range records {
		id := m.ID()
		if _, dup := g.nodes[id]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateMigration, id)
		}
		g.nodes[id] = m
		g.order = append(g.order, id)
	}

	for _, id := range g.order {
		seen := make(map[string]bool)
		for _, dep := range g.nodes[id].Dependencies {
			if _, ok := g.nodes[dep]; !ok {
				return nil, fmt.Errorf("%w: %s depends on %s", ErrUnknownDependency, id, dep)
			}
			if seen[dep] {
				continue
			}
			seen[dep] = true
			g.edges[id] = append(g.edges[id], dep)
		}
	}

	return g, nil
}

// Plan returns the records in dependency order: every record follows all of
// its dependencies. Among records that are ready at the same time, the one
// declared first wins, so the result does not depend on map iteration.
func Plan(records []*Migration) ([]*Migration, error) {
	g, err := newGraph(records)
	if err != nil {
		return nil, err
	}
	return g.topologicalSort()
}

func (g *graph) topologicalSort() ([]*Migration, error) {
	done := make(map[string]bool, len(g.order))
	result := make([]*Migration, 0, len(g.order))

	for len(result) < len(g.order) {
		progressed := false
		for _, id := range g.order {
			if done[id] || !g.ready(id, done) {
				continue
			}
			done[id] = true
			result = append(result, g.nodes[id])
			progressed = true
			// Restart from the top so earlier-declared records keep priority
			break
		}
		if !progressed {
			return nil, &CycleError{Cycle: g.findCycle(done)}
		}
	}

	return result, nil
}

func (g *graph) ready(id string, done map[string]bool) bool {
	for _, dep := range g.edges[id] {
		if !done[dep] {
			return false
		}
	}
	return true
}

// findCycle returns one cycle among the records not yet planned
func (g *graph) findCycle(done map[string]bool) []string {
	visited := make(map[string]bool)
	onStack := make(map[string]bool)
	var cycle []string

	var dfs func(node string, path []string) bool
	dfs = func(node string, path []string) bool {
		visited[node] = true
		onStack[node] = true
		path = append(path, node)

		for _, dep := range g.edges[node] {
			if done[dep] {
				continue
			}
			if !visited[dep] {
				if dfs(dep, path) {
					return true
				}
			} else if onStack[dep] {
				for i, n := range path {
					if n == dep {
						cycle = append([]string(nil), path[i:]...)
						return true
					}
				}
			}
		}

		onStack[node] = false
		return false
	}

	for _, id := range g.order {
		if done[id] || visited[id] {
			continue
		}
		if dfs(id, nil) {
			break
		}
	}

	return cycle
}

// dependents returns every record that transitively depends on id, including id
func (g *graph) dependents(id string) map[string]bool {
	reverse := make(map[string][]string)
	for node, deps := range g.edges {
		for _, dep := range deps {
			reverse[dep] = append(reverse[dep], node)
		}
	}

	result := map[string]bool{id: true}
	queue := []string{id}
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		for _, dependent := range reverse[node] {
			if !result[dependent] {
				result[dependent] = true
				queue = append(queue, dependent)
			}
		}
	}
	return result
}
