// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package graphutil

import (
	"github.com/yourbasic/graph"
)

// Indexed is a directed graph over nodes of type T, with labelled edges, to work with existing graph libraries.
// Nodes are numbered in insertion order. It implements graph.Iterator of github.com/yourbasic/graph.
type Indexed[T comparable] struct {
	nodes []T
	ids   map[T]int
	edges [][]labelledEdge
}

type labelledEdge struct {
	to    int
	label int64
}

// NewIndexed returns an empty indexed graph
func NewIndexed[T comparable]() *Indexed[T] {
	return &Indexed[T]{ids: map[T]int{}}
}

// AddNode adds the node n if it is not already in the graph, and returns its id
func (g *Indexed[T]) AddNode(n T) int {
	if id, ok := g.ids[n]; ok {
		return id
	}
	id := len(g.nodes)
	g.nodes = append(g.nodes, n)
	g.ids[n] = id
	g.edges = append(g.edges, nil)
	return id
}

// AddEdge adds an edge labelled label from the node from to the node to, adding the nodes if necessary. Edges are
// visited in insertion order.
func (g *Indexed[T]) AddEdge(from, to T, label int64) {
	f := g.AddNode(from)
	t := g.AddNode(to)
	g.edges[f] = append(g.edges[f], labelledEdge{to: t, label: label})
}

// ID returns the id of the node n, and false if n is not in the graph
func (g *Indexed[T]) ID(n T) (int, bool) {
	id, ok := g.ids[n]
	return id, ok
}

// Node returns the node with identifier id
func (g *Indexed[T]) Node(id int) T {
	return g.nodes[id]
}

// Order implements the order of the graph.Iterator interface
func (g *Indexed[T]) Order() int {
	return len(g.nodes)
}

// Visit implements the graph.Iterator interface. The cost of an edge is its label.
func (g *Indexed[T]) Visit(v int, do func(w int, c int64) (skip bool)) (aborted bool) {
	if v < 0 || v >= len(g.edges) {
		return false
	}
	for _, e := range g.edges[v] {
		if do(e.to, e.label) {
			return true
		}
	}
	return false
}

// ShortestLabelPath returns the labels of the edges of a path with the fewest edges from the node from to the
// first node satisfying target in breadth-first order. The second result is false if no node reachable from from
// satisfies target. The node from itself is never a target.
func (g *Indexed[T]) ShortestLabelPath(from T, target func(T) bool) ([]int64, bool) {
	start, ok := g.ids[from]
	if !ok {
		return nil, false
	}
	type parentEdge struct {
		from  int
		label int64
	}
	parents := map[int]parentEdge{}
	found := -1
	graph.BFS(g, start, func(v, w int, c int64) {
		if found >= 0 || w == start {
			return
		}
		if _, seen := parents[w]; seen {
			return
		}
		parents[w] = parentEdge{from: v, label: c}
		if target(g.nodes[w]) {
			found = w
		}
	})
	if found < 0 {
		return nil, false
	}
	var labels []int64
	for v := found; v != start; v = parents[v].from {
		labels = append(labels, parents[v].label)
	}
	for i, j := 0, len(labels)-1; i < j; i, j = i+1, j-1 {
		labels[i], labels[j] = labels[j], labels[i]
	}
	return labels, true
}
