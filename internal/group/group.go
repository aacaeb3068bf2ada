package group

import (
	"slices"
)

// Components merges overlapping groups into connected components.
//
// Every member of a declared group is linked to every other member of the same
// group, so groups sharing a member collapse transitively. The result maps each
// field to the sorted members of its component, itself included. Groups are
// consumed in order and the walk is iterative, so deep chains are safe.
func Components(groups [][]string) map[string][]string {
	neighbors := make(map[string]map[string]struct{})
	var order []string
	for _, g := range groups {
		for _, node := range g {
			set, ok := neighbors[node]
			if !ok {
				set = make(map[string]struct{})
				neighbors[node] = set
				order = append(order, node)
			}
			for _, other := range g {
				set[other] = struct{}{}
			}
		}
	}

	out := make(map[string][]string, len(neighbors))
	seen := make(map[string]struct{}, len(neighbors))
	for _, start := range order {
		if _, ok := seen[start]; ok {
			continue
		}
		var component []string
		stack := []string{start}
		seen[start] = struct{}{}
		for len(stack) > 0 {
			node := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			component = append(component, node)
			for next := range neighbors[node] {
				if _, ok := seen[next]; ok {
					continue
				}
				seen[next] = struct{}{}
				stack = append(stack, next)
			}
		}
		slices.Sort(component)
		for _, node := range component {
			out[node] = component
		}
	}
	return out
}

// Expand returns names plus every member of their components, deduplicated
// and in first-seen order.
func Expand(components map[string][]string, names []string) []string {
	out := make([]string, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	add := func(n string) {
		if _, ok := seen[n]; ok {
			return
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	for _, n := range names {
		add(n)
		for _, member := range components[n] {
			add(member)
		}
	}
	return out
}
