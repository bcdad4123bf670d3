package memory

import "context"

// MemoryCluster is a connected component over RelatedMemories edges
// within a scope, a diagnostic view read-only and never fed back into
// retrieval or fusion scoring.
type MemoryCluster struct {
	MemberIDs []string
}

// NetworkHealth is a descriptive summary of a scope's memory graph.
type NetworkHealth struct {
	TotalMemories int
	AvgDegree     float64
	IsolatedCount int
}

// Clusters computes connected components over the RelatedMemories
// adjacency restricted to scopeFilter, using union-find rather than an
// external graph database.
func (s *System) Clusters(ctx context.Context, scopeFilter map[string]any) ([]MemoryCluster, error) {
	chunks, err := s.store.GetByFilter(ctx, scopeFilter, 0)
	if err != nil {
		return nil, err
	}

	parent := map[string]string{}
	var find func(string) string
	find = func(x string) string {
		if parent[x] != x {
			parent[x] = find(parent[x])
		}
		return parent[x]
	}
	union := func(a, b string) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[ra] = rb
		}
	}

	present := map[string]struct{}{}
	for _, c := range chunks {
		parent[c.MemoryID] = c.MemoryID
		present[c.MemoryID] = struct{}{}
	}
	for _, c := range chunks {
		for _, rel := range c.RelatedMemories {
			if _, ok := present[rel]; ok {
				union(c.MemoryID, rel)
			}
		}
	}

	groups := map[string][]string{}
	for _, c := range chunks {
		root := find(c.MemoryID)
		groups[root] = append(groups[root], c.MemoryID)
	}

	out := make([]MemoryCluster, 0, len(groups))
	for _, members := range groups {
		out = append(out, MemoryCluster{MemberIDs: members})
	}
	return out, nil
}

// NetworkHealth summarizes the scope's memory graph: total memory
// count, average RelatedMemories degree, and isolated-memory count.
func (s *System) NetworkHealth(ctx context.Context, scopeFilter map[string]any) (NetworkHealth, error) {
	chunks, err := s.store.GetByFilter(ctx, scopeFilter, 0)
	if err != nil {
		return NetworkHealth{}, err
	}
	h := NetworkHealth{TotalMemories: len(chunks)}
	if len(chunks) == 0 {
		return h, nil
	}
	totalDegree := 0
	for _, c := range chunks {
		deg := len(c.RelatedMemories)
		totalDegree += deg
		if deg == 0 {
			h.IsolatedCount++
		}
	}
	h.AvgDegree = float64(totalDegree) / float64(len(chunks))
	return h, nil
}
