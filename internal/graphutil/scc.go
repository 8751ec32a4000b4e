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

// StronglyConnectedComponents is an implementation of Tarjan's strongly connected component (SCC) algorithm
// for generic nodes T. The traversal uses an explicit stack, so deep graphs (long chains of basic blocks) do not
// grow the goroutine stack.
// Successors returns a slice containing the targets of directed edges out from the given node.
// sccs is a slice of slices containing the nodes in each SCC. The order within the SCC is arbitrary.
// The order of SCCs is toposorted so that successors appear first.
func StronglyConnectedComponents[T comparable](nodes []T, successors func(T) []T) (sccs [][]T) {
	type frame struct {
		v     T
		succs []T
		next  int
	}
	var stack []T
	onStack := map[T]bool{}
	index := map[T]int{}
	lowlink := map[T]int{}
	nextIndex := 0

	push := func(v T) frame {
		index[v] = nextIndex
		lowlink[v] = nextIndex
		nextIndex++
		stack = append(stack, v)
		onStack[v] = true
		return frame{v: v, succs: successors(v)}
	}

	for _, root := range nodes {
		if _, ok := index[root]; ok {
			continue
		}
		calls := []frame{push(root)}
		for len(calls) > 0 {
			top := &calls[len(calls)-1]
			if top.next < len(top.succs) {
				w := top.succs[top.next]
				top.next++
				if _, visited := index[w]; !visited {
					calls = append(calls, push(w))
				} else if onStack[w] && index[w] < lowlink[top.v] {
					lowlink[top.v] = index[w]
				}
				continue
			}
			// all successors of top.v have been visited
			v := top.v
			calls = calls[:len(calls)-1]
			if len(calls) > 0 {
				parent := calls[len(calls)-1].v
				if lowlink[v] < lowlink[parent] {
					lowlink[parent] = lowlink[v]
				}
			}
			if lowlink[v] == index[v] {
				var scc []T
				for {
					w := stack[len(stack)-1]
					stack = stack[:len(stack)-1]
					onStack[w] = false
					scc = append(scc, w)
					if w == v {
						break
					}
				}
				sccs = append(sccs, scc)
			}
		}
	}
	return sccs
}

// CyclicNodes returns the set of nodes that lie on a cycle: the nodes of SCCs with more than one node, and the
// nodes with an edge to themselves.
func CyclicNodes[T comparable](nodes []T, successors func(T) []T) map[T]bool {
	cyclic := map[T]bool{}
	for _, scc := range StronglyConnectedComponents(nodes, successors) {
		if len(scc) > 1 {
			for _, v := range scc {
				cyclic[v] = true
			}
			continue
		}
		v := scc[0]
		for _, w := range successors(v) {
			if w == v {
				cyclic[v] = true
			}
		}
	}
	return cyclic
}
