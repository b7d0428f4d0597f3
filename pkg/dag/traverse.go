package dag

import "slices"

// FindCycle returns one directed cycle as a list of node IDs, starting and
// ending with the same node, or nil if the graph is acyclic. Traversal
// follows insertion order so the reported cycle is deterministic.
func (d *DAG) FindCycle() []string {
	const (
		white = iota
		gray
		black
	)

	color := make(map[string]int, len(d.nodes))
	var stack []string
	var cycle []string

	var dfs func(id string) bool
	dfs = func(id string) bool {
		color[id] = gray
		stack = append(stack, id)
		for _, child := range d.outgoing[id] {
			switch color[child] {
			case white:
				if dfs(child) {
					return true
				}
			case gray:
				start := slices.Index(stack, child)
				cycle = append(slices.Clone(stack[start:]), child)
				return true
			}
		}
		stack = stack[:len(stack)-1]
		color[id] = black
		return false
	}

	for _, id := range d.order {
		if color[id] == white && dfs(id) {
			return cycle
		}
	}
	return nil
}

// PathTo returns a shortest path of node IDs from one node to another,
// both included, or nil if to is not reachable from from.
func (d *DAG) PathTo(from, to string) []string {
	if _, ok := d.nodes[from]; !ok {
		return nil
	}
	prev := map[string]string{from: ""}
	queue := []string{from}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur == to {
			var path []string
			for n := to; n != ""; n = prev[n] {
				path = append(path, n)
			}
			slices.Reverse(path)
			return path
		}
		for _, c := range d.outgoing[cur] {
			if _, seen := prev[c]; !seen {
				prev[c] = cur
				queue = append(queue, c)
			}
		}
	}
	return nil
}

// Reaches reports whether to is reachable from from.
func (d *DAG) Reaches(from, to string) bool {
	return d.PathTo(from, to) != nil
}

// Descendants returns every node reachable from id, excluding id, in
// breadth-first order.
func (d *DAG) Descendants(id string) []string {
	seen := map[string]bool{id: true}
	var out []string
	queue := []string{id}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, c := range d.outgoing[cur] {
			if !seen[c] {
				seen[c] = true
				out = append(out, c)
				queue = append(queue, c)
			}
		}
	}
	return out
}

// Ancestors returns every node that can reach id, excluding id, in
// breadth-first order.
func (d *DAG) Ancestors(id string) []string {
	seen := map[string]bool{id: true}
	var out []string
	queue := []string{id}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, p := range d.incoming[cur] {
			if !seen[p] {
				seen[p] = true
				out = append(out, p)
				queue = append(queue, p)
			}
		}
	}
	return out
}

// Levels groups nodes so that every node appears after all of its
// dependencies: level 0 holds the sinks, and each node sits one level above
// its deepest dependency. Within a level, nodes keep insertion order.
//
// Levels uses a longest-path pass over a topological order (Kahn's
// algorithm on reversed edges). It assumes the graph is acyclic; nodes on a
// cycle are omitted.
func (d *DAG) Levels() [][]string {
	outDegree := make(map[string]int, len(d.nodes))
	level := make(map[string]int, len(d.nodes))
	queue := make([]string, 0, len(d.nodes))

	for _, id := range d.order {
		outDegree[id] = len(d.outgoing[id])
		if outDegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	maxLevel := -1
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if level[cur] > maxLevel {
			maxLevel = level[cur]
		}
		for _, p := range d.incoming[cur] {
			if l := level[cur] + 1; l > level[p] {
				level[p] = l
			}
			outDegree[p]--
			if outDegree[p] == 0 {
				queue = append(queue, p)
			}
		}
	}

	levels := make([][]string, maxLevel+1)
	for _, id := range d.order {
		if outDegree[id] != 0 {
			continue
		}
		levels[level[id]] = append(levels[level[id]], id)
	}
	return levels
}

// TopologicalOrder returns node IDs with every dependency before its
// consumers. It is the concatenation of [DAG.Levels].
func (d *DAG) TopologicalOrder() []string {
	var out []string
	for _, l := range d.Levels() {
		out = append(out, l...)
	}
	return out
}
