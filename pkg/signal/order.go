package signal

import "sort"

// CallbackLess reports whether a is ordered before b within a receiver:
//   - an exclusive callback precedes a transparent one;
//   - of two exclusive callbacks, the more specific one comes first;
//   - otherwise the higher precedence comes first.
//
// The relation is not transitive when exclusive callbacks of unrelated types
// are mixed, so receivers order their callbacks with sortCallbacks, whose
// result agrees with CallbackLess on every pair the specificity relation
// decides.
func CallbackLess(a, b CallbackBase) bool {
	ae := a.Invocation() == Exclusive
	be := b.Invocation() == Exclusive
	switch {
	case ae && !be:
		return true
	case !ae && be:
		return false
	case ae && be:
		if SpecificityLess(a.Type(), b.Type()) {
			return true
		}
		if SpecificityLess(b.Type(), a.Type()) {
			return false
		}
	}
	return a.Precedence() > b.Precedence()
}

// sortCallbacks returns the exclusive callbacks in a topological order of
// the specificity relation, taking the highest precedence among the ready
// ones at each step, followed by the transparent callbacks by descending
// precedence.
func sortCallbacks(cbs []CallbackBase) []CallbackBase {
	var exclusive, transparent []CallbackBase
	for _, cb := range cbs {
		if cb.Invocation() == Exclusive {
			exclusive = append(exclusive, cb)
		} else {
			transparent = append(transparent, cb)
		}
	}

	sorted := make([]CallbackBase, 0, len(cbs))
	sorted = append(sorted, topoSort(exclusive)...)

	sort.SliceStable(transparent, func(i, j int) bool {
		return transparent[i].Precedence() > transparent[j].Precedence()
	})
	return append(sorted, transparent...)
}

// topoSort runs Kahn's algorithm over the edges "i is more specific than j".
// Types are hierarchical, so the graph is acyclic; equal types have no edge
// between them and fall back to precedence.
func topoSort(cbs []CallbackBase) []CallbackBase {
	n := len(cbs)
	if n < 2 {
		return append([]CallbackBase(nil), cbs...)
	}

	inDegree := make([]int, n)
	edges := make([][]int, n)
	for i := range cbs {
		for j := range cbs {
			if i != j && SpecificityLess(cbs[i].Type(), cbs[j].Type()) {
				edges[i] = append(edges[i], j)
				inDegree[j]++
			}
		}
	}

	ready := make([]int, 0, n)
	for i, degree := range inDegree {
		if degree == 0 {
			ready = append(ready, i)
		}
	}

	result := make([]CallbackBase, 0, n)
	for len(ready) > 0 {
		// Take the highest precedence among the ready nodes.
		best := 0
		for k := 1; k < len(ready); k++ {
			if cbs[ready[k]].Precedence() > cbs[ready[best]].Precedence() {
				best = k
			}
		}
		node := ready[best]
		ready = append(ready[:best], ready[best+1:]...)
		result = append(result, cbs[node])

		for _, next := range edges[node] {
			inDegree[next]--
			if inDegree[next] == 0 {
				ready = append(ready, next)
			}
		}
	}
	return result
}

// sortSlots orders slots most specific first. Ready slots are taken in their
// current order, so unrelated slots keep their registration order.
func sortSlots(slots []SlotBase) []SlotBase {
	n := len(slots)
	inDegree := make([]int, n)
	edges := make([][]int, n)
	for i := range slots {
		for j := range slots {
			if i != j && SpecificityLess(slots[i].Type(), slots[j].Type()) {
				edges[i] = append(edges[i], j)
				inDegree[j]++
			}
		}
	}

	done := make([]bool, n)
	result := make([]SlotBase, 0, n)
	for len(result) < n {
		for i := 0; i < n; i++ {
			if done[i] || inDegree[i] > 0 {
				continue
			}
			done[i] = true
			result = append(result, slots[i])
			for _, next := range edges[i] {
				inDegree[next]--
			}
			break
		}
	}
	return result
}
