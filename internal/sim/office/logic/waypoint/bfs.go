package waypoint

// ShortestPath runs breadth-first search from start to goal and returns the
// fewest-hop node sequence including both ends. Neighbours are expanded in
// adjacency order, so ties resolve the same way on every call.
func (g *Graph) ShortestPath(start, goal int) ([]int, bool) {
	n := g.Len()
	if start < 0 || goal < 0 || start >= n || goal >= n {
		return nil, false
	}
	if start == goal {
		return []int{start}, true
	}

	prev := make([]int, n)
	for i := range prev {
		prev[i] = -1
	}
	visited := make([]bool, n)
	visited[start] = true

	queue := make([]int, 0, n)
	queue = append(queue, start)
	for head := 0; head < len(queue); head++ {
		cur := queue[head]
		for _, next := range g.Edges[cur] {
			if visited[next] {
				continue
			}
			visited[next] = true
			prev[next] = cur
			if next == goal {
				return walkBack(prev, goal), true
			}
			queue = append(queue, next)
		}
	}
	return nil, false
}

func walkBack(prev []int, goal int) []int {
	var rev []int
	for at := goal; at != -1; at = prev[at] {
		rev = append(rev, at)
	}
	out := make([]int, len(rev))
	for i, v := range rev {
		out[len(rev)-1-i] = v
	}
	return out
}
