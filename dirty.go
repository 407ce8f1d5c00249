package plugraph

// propagate marks p and everything that depends on it as dirty: the plugs
// connected downstream of it, and the plugs its node declares as affected by it,
// transitively. Each plug is bumped once per propagation, in breadth-first
// order from p.
//
// A plug's dirty count takes part in the key of every hash cached for it, so
// bumping it invalidates those hashes under every context at once. Cached
// values need no invalidation: they are stored alongside the hash they were
// computed for, and a lookup under a new hash misses.
func (w *graphWriter) propagate(p Plug) {
	visited := map[Plug]struct{}{p: {}}
	queue := []Plug{p}
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]

		p.base().markDirty()
		if _, ok := w.seen[p]; !ok {
			w.seen[p] = struct{}{}
			w.dirtied = append(w.dirtied, p.FullName())
		}

		next := p.Outputs()
		if n := p.Node(); n != nil {
			next = append(next, n.Affects(p)...)
		}
		for _, q := range next {
			if _, ok := visited[q]; !ok {
				visited[q] = struct{}{}
				queue = append(queue, q)
			}
		}
	}
}
