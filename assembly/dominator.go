// elCall: a high-performance candidate variant generator based on local reassembly.
// Copyright (c) 2021 imec vzw.

// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version, and Additional Terms
// (see below).

// This program is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Affero General Public License for more details.

// You should have received a copy of the GNU Affero General Public
// License and Additional Terms along with this program. If not, see
// <https://github.com/ExaScience/elcall/blob/master/LICENSE.txt>.

package assembly

import (
	"log"

	"github.com/exascience/elcall/internal"
	"github.com/willf/bitset"
)

// buildDominatorTree computes immediate dominators for every vertex
// reachable from the reference head, using the iterative
// Cooper-Harvey-Kennedy algorithm over a reverse postorder. The result
// maps dense vertex indices to the dense index of the immediate
// dominator; the reference head is its own dominator.
func (a *assembler) buildDominatorTree() []int32 {
	n := len(a.nodes)
	head := a.referenceHead()

	// postorder numbering of a depth-first search from the head
	postorder := make([]int32, n)
	for i := range postorder {
		postorder[i] = -1
	}
	rpo := make([]*vertexInfo, 0, n)
	visited := bitset.New(uint(n))
	visited.Set(uint(head.index))
	stack := []dfsFrame{{head, 0}}
	var postCounter int32
	for len(stack) > 0 {
		frame := &stack[len(stack)-1]
		if edges := a.out[frame.vertex]; frame.next < len(edges) {
			target := edges[frame.next].to
			frame.next++
			if !visited.Test(uint(target.index)) {
				visited.Set(uint(target.index))
				stack = append(stack, dfsFrame{target, 0})
			}
		} else {
			postorder[frame.vertex.index] = postCounter
			postCounter++
			rpo = append(rpo, frame.vertex)
			stack = stack[:len(stack)-1]
		}
	}
	// rpo currently holds the postorder; reverse it
	for i, j := 0, len(rpo)-1; i < j; i, j = i+1, j-1 {
		rpo[i], rpo[j] = rpo[j], rpo[i]
	}
	if internal.PedanticMode && len(rpo) != n {
		log.Panic("assembly: dominator tree requested on a graph with vertices unreachable from the reference head")
	}

	idom := make([]int32, n)
	for i := range idom {
		idom[i] = -1
	}
	idom[head.index] = head.index

	intersect := func(b1, b2 int32) int32 {
		for b1 != b2 {
			for postorder[b1] < postorder[b2] {
				b1 = idom[b1]
			}
			for postorder[b2] < postorder[b1] {
				b2 = idom[b2]
			}
		}
		return b1
	}

	for changed := true; changed; {
		changed = false
		for _, vertex := range rpo {
			if vertex == head {
				continue
			}
			newIdom := int32(-1)
			for _, edge := range a.in[vertex] {
				pred := edge.from.index
				if idom[pred] == -1 {
					continue
				}
				if newIdom == -1 {
					newIdom = pred
				} else {
					newIdom = intersect(pred, newIdom)
				}
			}
			if newIdom != -1 && idom[vertex.index] != newIdom {
				idom[vertex.index] = newIdom
				changed = true
			}
		}
	}
	return idom
}

type subGraph struct {
	head, tail *vertexInfo
}

// findIndependentSubgraphs splits the graph at the reference vertices
// that dominate the reference tail: every head-to-tail path passes
// through each of them, so the bubble clusters between consecutive
// separators are disjoint and can be given local bubble budgets.
func (a *assembler) findIndependentSubgraphs(idom []int32) []subGraph {
	head := a.referenceHead()
	tail := a.referenceTail()
	if head == tail {
		return nil
	}
	separators := []*vertexInfo{tail}
	for vertex := tail.index; vertex != head.index; {
		vertex = idom[vertex]
		if vertex == -1 {
			log.Panic("assembly: dominator tree does not connect the reference tail to the reference head")
		}
		separators = append(separators, a.nodes[vertex])
	}
	// separators run tail to head; pair them up in head-to-tail order
	result := make([]subGraph, 0, len(separators)-1)
	for i := len(separators) - 1; i > 0; i-- {
		result = append(result, subGraph{head: separators[i], tail: separators[i-1]})
	}
	return result
}
