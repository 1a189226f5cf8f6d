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

type (
	vertexInfo struct {
		// dense index for the array-based graph algorithms,
		// valid after regenerateVertexIndices
		index   int32
		kmer    string
		isRef   bool
		deleted bool
	}

	edgeInfo struct {
		from, to        *vertexInfo
		weight          int32
		transitionScore float64
		isRef           bool
	}

	// assembler is a de Bruijn graph over the kmers of a reference
	// window and the reads overlapping it. Kmers are string views into
	// the reference window and the read sequences; they are never
	// copied. An assembler is not safe for concurrent use.
	assembler struct {
		k           int
		refSeq      string
		refUnique   bool
		vertexCache map[string]*vertexInfo
		nodes       []*vertexInfo
		out, in     map[*vertexInfo][]*edgeInfo
		refPath     []*vertexInfo
		// window offset of the kmer of refPath[0]; advances when
		// cleanup pops reference flanks
		refHeadPos int
	}
)

func (vertex *vertexInfo) suffixBase() byte {
	return vertex.kmer[len(vertex.kmer)-1]
}

// newAssembler builds a graph containing the reference path for the
// given window. If the window repeats a kmer, the reference path is
// not unique and the graph is unusable: refUnique is false and all
// further operations are undefined.
func newAssembler(k int, reference string) *assembler {
	a := &assembler{
		k:           k,
		refSeq:      reference,
		refUnique:   true,
		vertexCache: make(map[string]*vertexInfo),
		out:         make(map[*vertexInfo][]*edgeInfo),
		in:          make(map[*vertexInfo][]*edgeInfo),
	}
	if len(reference) < k {
		a.refUnique = false
		return a
	}
	var prev *vertexInfo
	for i := 0; i+k <= len(reference); i++ {
		kmer := reference[i : i+k]
		if _, ok := a.vertexCache[kmer]; ok {
			a.refUnique = false
			return a
		}
		vertex := a.addVertex(kmer, true)
		a.refPath = append(a.refPath, vertex)
		if prev != nil {
			a.addEdge(prev, vertex, 0, true)
		}
		prev = vertex
	}
	return a
}

func (a *assembler) kmerSize() int {
	return a.k
}

func (a *assembler) numKmers() int {
	return len(a.vertexCache)
}

func (a *assembler) isEmpty() bool {
	return len(a.vertexCache) == 0
}

func (a *assembler) referenceHead() *vertexInfo {
	return a.refPath[0]
}

func (a *assembler) referenceTail() *vertexInfo {
	return a.refPath[len(a.refPath)-1]
}

// isAllReference returns true if no read kmer and no read adjacency
// diverges from the reference path.
func (a *assembler) isAllReference() bool {
	for _, vertex := range a.nodes {
		if vertex.deleted {
			continue
		}
		if !vertex.isRef {
			return false
		}
		for _, edge := range a.out[vertex] {
			if !edge.isRef {
				return false
			}
		}
	}
	return true
}

func (a *assembler) clear() {
	a.vertexCache = nil
	a.nodes = nil
	a.out = nil
	a.in = nil
	a.refPath = nil
	a.refSeq = ""
}

func (a *assembler) addVertex(kmer string, isRef bool) *vertexInfo {
	vertex := &vertexInfo{kmer: kmer, isRef: isRef}
	a.vertexCache[kmer] = vertex
	a.nodes = append(a.nodes, vertex)
	return vertex
}

func (a *assembler) deleteVertex(vertex *vertexInfo) {
	for _, edge := range a.out[vertex] {
		a.removeFromIn(edge)
	}
	for _, edge := range a.in[vertex] {
		a.removeFromOut(edge)
	}
	delete(a.out, vertex)
	delete(a.in, vertex)
	delete(a.vertexCache, vertex.kmer)
	vertex.deleted = true
}

func (a *assembler) removeFromOut(edge *edgeInfo) {
	edges := a.out[edge.from]
	for i, e := range edges {
		if e == edge {
			a.out[edge.from] = append(edges[:i], edges[i+1:]...)
			return
		}
	}
}

func (a *assembler) removeFromIn(edge *edgeInfo) {
	edges := a.in[edge.to]
	for i, e := range edges {
		if e == edge {
			a.in[edge.to] = append(edges[:i], edges[i+1:]...)
			return
		}
	}
}

func (a *assembler) removeEdge(edge *edgeInfo) {
	a.removeFromOut(edge)
	a.removeFromIn(edge)
}

func (a *assembler) findOutgoingEdge(from, to *vertexInfo) *edgeInfo {
	for _, edge := range a.out[from] {
		if edge.to == to {
			return edge
		}
	}
	return nil
}

// addEdge adds an edge for the ordered pair (from, to); at most one
// edge exists per pair, so an existing edge is returned unchanged.
func (a *assembler) addEdge(from, to *vertexInfo, weight int32, isRef bool) *edgeInfo {
	if edge := a.findOutgoingEdge(from, to); edge != nil {
		return edge
	}
	edge := &edgeInfo{from: from, to: to, weight: weight, isRef: isRef}
	a.out[from] = append(a.out[from], edge)
	a.in[to] = append(a.in[to], edge)
	return edge
}

// insertRead threads a read sequence into the graph. Windows
// containing non-canonical bases are skipped, breaking the adjacency
// chain at that point.
func (a *assembler) insertRead(sequence string) {
	k := a.k
	if len(sequence) < k {
		return
	}
	var prev *vertexInfo
	lastBad := -1
	for end := 0; end < len(sequence); end++ {
		if !isCanonicalBase(sequence[end]) {
			lastBad = end
		}
		if end < k-1 {
			continue
		}
		start := end - k + 1
		if lastBad >= start {
			prev = nil
			continue
		}
		kmer := sequence[start : end+1]
		vertex, ok := a.vertexCache[kmer]
		if !ok {
			vertex = a.addVertex(kmer, false)
		}
		if prev != nil {
			if edge := a.findOutgoingEdge(prev, vertex); edge != nil {
				edge.weight++
			} else {
				a.addEdge(prev, vertex, 1, false)
			}
		}
		prev = vertex
	}
}

// tryRecoverDanglingBranches bridges non-reference dead ends back to
// the reference path. A dangling tip whose kmer is continued by a
// reference kmer (the tip's k-1 suffix equals the reference kmer's
// k-1 prefix) gets a synthetic edge to that reference vertex, so that
// heterozygous indel paths that stop short of the reference are not
// pruned away.
func (a *assembler) tryRecoverDanglingBranches() {
	for _, vertex := range a.nodes {
		if vertex.deleted || vertex.isRef || len(a.out[vertex]) != 0 || len(a.in[vertex]) == 0 {
			continue
		}
		if joining := a.findJoiningKmer(vertex); joining != nil {
			// the bridge inherits the support of the dangling path so
			// pruning treats both the same way
			var weight int32 = 1
			for _, edge := range a.in[vertex] {
				if edge.weight > weight {
					weight = edge.weight
				}
			}
			a.addEdge(vertex, joining, weight, false)
		}
	}
}

func (a *assembler) findJoiningKmer(vertex *vertexInfo) *vertexInfo {
	suffix := vertex.kmer[1:]
	for _, reference := range a.refPath {
		if reference.kmer[:a.k-1] == suffix {
			return reference
		}
	}
	return nil
}

// prune removes every non-reference edge with weight below minWeight,
// and then every non-reference vertex left without edges.
func (a *assembler) prune(minWeight int32) {
	for _, vertex := range a.nodes {
		if vertex.deleted {
			continue
		}
		edges := a.out[vertex]
		for i := 0; i < len(edges); {
			if edge := edges[i]; !edge.isRef && edge.weight < minWeight {
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
	a.removeIsolatedVertices()
}

func (a *assembler) removeIsolatedVertices() {
	for _, vertex := range a.nodes {
		if !vertex.deleted && !vertex.isRef && len(a.out[vertex]) == 0 && len(a.in[vertex]) == 0 {
			a.deleteVertex(vertex)
		}
	}
}

// regenerateVertexIndices compacts the vertex list and assigns dense
// indices in insertion order.
func (a *assembler) regenerateVertexIndices() {
	nodes := a.nodes[:0]
	for _, vertex := range a.nodes {
		if !vertex.deleted {
			vertex.index = int32(len(nodes))
			nodes = append(nodes, vertex)
		}
	}
	a.nodes = nodes
}

// cleanup removes everything that cannot lie on a path from the
// reference head to the reference tail, and then pops reference
// bridge vertices from both flanks until a bifurcation is reached.
// cleanup is idempotent.
func (a *assembler) cleanup() {
	a.regenerateVertexIndices()
	a.removeVerticesNotReachableFromHead()
	a.removeVerticesThatCantReachTail()
	a.pruneReferenceFlanks()
	a.regenerateVertexIndices()
	if internal.PedanticMode {
		a.checkCleanupInvariant()
	}
}

func (a *assembler) removeVerticesNotReachableFromHead() {
	visited := bitset.New(uint(len(a.nodes)))
	stack := []*vertexInfo{a.referenceHead()}
	visited.Set(uint(a.referenceHead().index))
	for len(stack) > 0 {
		vertex := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, edge := range a.out[vertex] {
			if !visited.Test(uint(edge.to.index)) {
				visited.Set(uint(edge.to.index))
				stack = append(stack, edge.to)
			}
		}
	}
	for _, vertex := range a.nodes {
		if !vertex.deleted && !visited.Test(uint(vertex.index)) {
			a.deleteVertex(vertex)
		}
	}
}

func (a *assembler) removeVerticesThatCantReachTail() {
	visited := bitset.New(uint(len(a.nodes)))
	stack := []*vertexInfo{a.referenceTail()}
	visited.Set(uint(a.referenceTail().index))
	for len(stack) > 0 {
		vertex := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, edge := range a.in[vertex] {
			if !visited.Test(uint(edge.from.index)) {
				visited.Set(uint(edge.from.index))
				stack = append(stack, edge.from)
			}
		}
	}
	for _, vertex := range a.nodes {
		if !vertex.deleted && !visited.Test(uint(vertex.index)) {
			a.deleteVertex(vertex)
		}
	}
}

// pruneReferenceFlanks pops reference vertices that are pure bridges
// (only a reference out-edge at the head side, only a reference
// in-edge at the tail side) so that the remaining reference path
// starts and ends next to the first and last bifurcations.
func (a *assembler) pruneReferenceFlanks() {
	for len(a.refPath) > 1 {
		head := a.refPath[0]
		if len(a.in[head]) != 0 || len(a.out[head]) != 1 || !a.out[head][0].isRef ||
			len(a.in[a.refPath[1]]) != 1 {
			break
		}
		a.deleteVertex(head)
		a.refPath = a.refPath[1:]
		a.refHeadPos++
	}
	for len(a.refPath) > 1 {
		tail := a.refPath[len(a.refPath)-1]
		prev := a.refPath[len(a.refPath)-2]
		if len(a.out[tail]) != 0 || len(a.in[tail]) != 1 || !a.in[tail][0].isRef ||
			len(a.out[prev]) != 1 {
			break
		}
		a.deleteVertex(tail)
		a.refPath = a.refPath[:len(a.refPath)-1]
	}
}

func (a *assembler) checkCleanupInvariant() {
	for _, vertex := range a.nodes {
		if vertex.deleted {
			continue
		}
		if vertex != a.referenceHead() && len(a.in[vertex]) == 0 {
			log.Panicf("assembly: cleanup left vertex %v unreachable from the reference head", vertex.kmer)
		}
		if vertex != a.referenceTail() && len(a.out[vertex]) == 0 {
			log.Panicf("assembly: cleanup left vertex %v that cannot reach the reference tail", vertex.kmer)
		}
	}
}
