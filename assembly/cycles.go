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

const (
	white = iota
	grey
	black
)

type dfsFrame struct {
	vertex *vertexInfo
	next   int
}

// isAcyclic determines whether a topological order of the graph
// exists, using a three-colour depth-first search.
func (a *assembler) isAcyclic() bool {
	a.regenerateVertexIndices()
	colors := make([]byte, len(a.nodes))
	for _, root := range a.nodes {
		if colors[root.index] != white {
			continue
		}
		colors[root.index] = grey
		stack := []dfsFrame{{root, 0}}
		for len(stack) > 0 {
			frame := &stack[len(stack)-1]
			if edges := a.out[frame.vertex]; frame.next < len(edges) {
				target := edges[frame.next].to
				frame.next++
				switch colors[target.index] {
				case white:
					colors[target.index] = grey
					stack = append(stack, dfsFrame{target, 0})
				case grey:
					return false
				}
			} else {
				colors[frame.vertex.index] = black
				stack = stack[:len(stack)-1]
			}
		}
	}
	return true
}

// removeNonreferenceCycles removes the non-reference edges of every
// strongly connected component that contains a cycle, including
// trivial self loops. The reference path is a simple path, so every
// cycle depends on at least one non-reference edge, and the graph is
// acyclic afterwards.
func (a *assembler) removeNonreferenceCycles() {
	for _, component := range a.stronglyConnectedComponents() {
		if len(component) == 1 {
			vertex := component[0]
			if edge := a.findOutgoingEdge(vertex, vertex); edge != nil && !edge.isRef {
				a.removeEdge(edge)
			}
			continue
		}
		inComponent := make(map[*vertexInfo]bool, len(component))
		for _, vertex := range component {
			inComponent[vertex] = true
		}
		for _, vertex := range component {
			edges := a.out[vertex]
			for i := 0; i < len(edges); {
				if edge := edges[i]; !edge.isRef && inComponent[edge.to] {
					a.removeFromIn(edge)
					edges = append(edges[:i], edges[i+1:]...)
				} else {
					i++
				}
			}
			if len(edges) == 0 {
				delete(a.out, vertex)
			} else {
				a.out[vertex] = edges
			}
		}
	}
	a.removeIsolatedVertices()
	if internal.PedanticMode && !a.isAcyclic() {
		log.Panic("assembly: cycle removal left a cycle")
	}
}

// stronglyConnectedComponents is an iterative Tarjan over the dense
// vertex indices.
func (a *assembler) stronglyConnectedComponents() (components [][]*vertexInfo) {
	a.regenerateVertexIndices()
	n := len(a.nodes)
	number := make([]int32, n) // 1-based visit number, 0 = unvisited
	lowlink := make([]int32, n)
	onStack := bitset.New(uint(n))
	var sccStack []*vertexInfo
	var counter int32
	discover := func(vertex *vertexInfo) {
		counter++
		number[vertex.index] = counter
		lowlink[vertex.index] = counter
		sccStack = append(sccStack, vertex)
		onStack.Set(uint(vertex.index))
	}
	for _, root := range a.nodes {
		if number[root.index] != 0 {
			continue
		}
		discover(root)
		stack := []dfsFrame{{root, 0}}
		for len(stack) > 0 {
			frame := &stack[len(stack)-1]
			if edges := a.out[frame.vertex]; frame.next < len(edges) {
				target := edges[frame.next].to
				frame.next++
				if number[target.index] == 0 {
					discover(target)
					stack = append(stack, dfsFrame{target, 0})
				} else if onStack.Test(uint(target.index)) {
					if number[target.index] < lowlink[frame.vertex.index] {
						lowlink[frame.vertex.index] = number[target.index]
					}
				}
			} else {
				vertex := frame.vertex
				stack = stack[:len(stack)-1]
				if len(stack) > 0 {
					parent := stack[len(stack)-1].vertex
					if lowlink[vertex.index] < lowlink[parent.index] {
						lowlink[parent.index] = lowlink[vertex.index]
					}
				}
				if lowlink[vertex.index] == number[vertex.index] {
					var component []*vertexInfo
					for {
						member := sccStack[len(sccStack)-1]
						sccStack = sccStack[:len(sccStack)-1]
						onStack.Clear(uint(member.index))
						component = append(component, member)
						if member == vertex {
							break
						}
					}
					components = append(components, component)
				}
			}
		}
	}
	return components
}
