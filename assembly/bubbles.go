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
	"container/heap"
	"log"
	"math"
	"strings"

	"github.com/exascience/elcall/internal"

	"gonum.org/v1/gonum/floats"
)

// referenceEdgePenalty is the transition score floor for reference
// edges, so that an unsupported reference edge still scores slightly
// worse than a well-supported alternate edge.
const referenceEdgePenalty = 0.01

// setAllTransitionScores assigns -log(w / sum of sibling weights) to
// every out-edge. Reference edges get a +1 pseudocount so the
// reference path stays traversable without read support, and their
// score never drops below referenceEdgePenalty.
func (a *assembler) setAllTransitionScores() {
	var weights []float64
	for _, vertex := range a.nodes {
		if vertex.deleted {
			continue
		}
		edges := a.out[vertex]
		if len(edges) == 0 {
			continue
		}
		weights = weights[:0]
		for _, edge := range edges {
			weight := float64(edge.weight)
			if edge.isRef {
				weight++
			}
			weights = append(weights, weight)
		}
		total := floats.Sum(weights)
		for i, edge := range edges {
			score := -math.Log(weights[i] / total)
			if edge.isRef && score < referenceEdgePenalty {
				score = referenceEdgePenalty
			}
			edge.transitionScore = score
		}
	}
}

type scoredVertex struct {
	vertex *vertexInfo
	score  float64
}

type vertexHeap []scoredVertex

func (h vertexHeap) Len() int { return len(h) }

func (h vertexHeap) Less(i, j int) bool {
	if h[i].score != h[j].score {
		return h[i].score < h[j].score
	}
	return h[i].vertex.index < h[j].vertex.index
}

func (h vertexHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *vertexHeap) Push(x interface{}) { *h = append(*h, x.(scoredVertex)) }

func (h *vertexHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// shortestScoringPath runs Dijkstra over the transition scores and
// returns the edges of the minimum-score path between two vertices,
// or nil when no path avoiding blocked edges exists.
func (a *assembler) shortestScoringPath(from, to *vertexInfo) []*edgeInfo {
	n := len(a.nodes)
	dist := make([]float64, n)
	for i := range dist {
		dist[i] = math.Inf(1)
	}
	pred := make([]*edgeInfo, n)
	dist[from.index] = 0
	queue := vertexHeap{{from, 0}}
	for queue.Len() > 0 {
		item := heap.Pop(&queue).(scoredVertex)
		if item.score > dist[item.vertex.index] {
			continue
		}
		if item.vertex == to {
			break
		}
		for _, edge := range a.out[item.vertex] {
			if math.IsInf(edge.transitionScore, 1) {
				continue
			}
			if score := item.score + edge.transitionScore; score < dist[edge.to.index] {
				dist[edge.to.index] = score
				pred[edge.to.index] = edge
				heap.Push(&queue, scoredVertex{edge.to, score})
			}
		}
	}
	if math.IsInf(dist[to.index], 1) {
		return nil
	}
	var path []*edgeInfo
	for vertex := to; vertex != from; {
		edge := pred[vertex.index]
		path = append(path, edge)
		vertex = edge.from
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

// bubblePathScore is the support score of a bubble: the mean
// log(1 + weight) over the edges entering, traversing, and leaving
// the bubble.
func bubblePathScore(edges []*edgeInfo) float64 {
	var sum float64
	for _, edge := range edges {
		sum += math.Log1p(float64(edge.weight))
	}
	return sum / float64(len(edges))
}

func bubbleAltSequence(edges []*edgeInfo) string {
	var alt strings.Builder
	for _, edge := range edges {
		alt.WriteByte(edge.to.suffixBase())
	}
	return alt.String()
}

// extractBubblePaths repeatedly finds the minimum-score path between
// the subgraph's reference endpoints, emits the non-reference bubbles
// on it, and blocks their edges so later iterations explore
// alternatives. It stops when maxBubbles bubbles were emitted or the
// shortest path no longer leaves the reference.
func (a *assembler) extractBubblePaths(sg subGraph, refIndex map[*vertexInfo]int, maxBubbles int, minBubbleScore float64) []assemblerVariant {
	var result []assemblerVariant
	for emitted := 0; emitted < maxBubbles; {
		path := a.shortestScoringPath(sg.head, sg.tail)
		if path == nil {
			break
		}
		leftReference := false
		for i := 0; i < len(path) && emitted < maxBubbles; {
			if path[i].to.isRef {
				i++
				continue
			}
			start := i
			for i < len(path) && !path[i].to.isRef {
				i++
			}
			if i == len(path) {
				// the path ends on the reference tail, so a run cannot
				// reach the end of the path
				log.Panic("assembly: bubble path does not end on the reference path")
			}
			bubble := path[start : i+1]
			i++
			leftReference = true
			for _, edge := range bubble {
				edge.transitionScore = math.Inf(1)
			}
			if bubblePathScore(bubble) < minBubbleScore {
				continue
			}
			source := bubble[0].from
			sink := bubble[len(bubble)-1].to
			sourceIndex, sourceOK := refIndex[source]
			sinkIndex, sinkOK := refIndex[sink]
			if !sourceOK || !sinkOK || sourceIndex >= sinkIndex {
				if internal.PedanticMode {
					log.Panic("assembly: bubble does not begin and end on the reference path")
				}
				continue
			}
			begin := a.refHeadPos + sourceIndex + a.k
			end := a.refHeadPos + sinkIndex + a.k
			result = append(result, assemblerVariant{
				beginPos: begin,
				ref:      a.refSeq[begin:end],
				alt:      bubbleAltSequence(bubble),
			})
			emitted++
		}
		if !leftReference {
			break
		}
	}
	return result
}

// extractVariants translates the bubbles of the cleaned graph into
// variants positioned relative to the assemble window. It consumes
// the transition scores; a second call does not see the bubbles
// already extracted.
func (a *assembler) extractVariants(maxBubbles int, minBubbleScore float64) []assemblerVariant {
	if !a.refUnique || a.isEmpty() {
		return nil
	}
	a.regenerateVertexIndices()
	idom := a.buildDominatorTree()
	a.setAllTransitionScores()
	refIndex := make(map[*vertexInfo]int, len(a.refPath))
	for i, vertex := range a.refPath {
		refIndex[vertex] = i
	}
	var result []assemblerVariant
	for _, sg := range a.findIndependentSubgraphs(idom) {
		result = append(result, a.extractBubblePaths(sg, refIndex, maxBubbles, minBubbleScore)...)
	}
	return result
}
