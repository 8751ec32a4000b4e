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

package shape

import (
	"github.com/awslabs/ar-immutability/analysis/ir"
)

// equivalence builds a bijection between the nodes of two graphs
type equivalence struct {
	a, b  *Graph
	fwd   map[*Node]*Node
	bwd   map[*Node]*Node
	order []*Node
}

func sameCallees(x, y map[*ir.Function]bool) bool {
	if (x == nil) != (y == nil) || len(x) != len(y) {
		return false
	}
	for f := range x {
		if !y[f] {
			return false
		}
	}
	return true
}

// sameData returns true if the two nodes hold the same value, ignoring their edges and children
func sameData(x, y *Node) bool {
	if x.kind != y.kind || !ir.Identical(x.typ, y.typ) || x.isThis != y.isThis || x.isRead != y.isRead {
		return false
	}
	switch x.kind {
	case KindInt:
		return x.rng.Equal(y.rng)
	case KindFunction:
		return sameCallees(x.callees, y.callees)
	case KindPointer:
		return x.null == y.null
	case KindStruct, KindSequential:
		return len(x.children) == len(y.children)
	}
	return true
}

// node matches x of a with y of b, and their structure
func (e *equivalence) node(x, y *Node) bool {
	if x == nil || y == nil {
		return x == nil && y == nil
	}
	if fx, ok := e.fwd[x]; ok {
		return fx == y
	}
	if _, ok := e.bwd[y]; ok {
		return false
	}
	if !sameData(x, y) || !sameEntry(e.a.aliases, x, e.b.aliases, y) {
		return false
	}
	e.fwd[x] = y
	e.bwd[y] = x
	e.order = append(e.order, x)
	if !e.node(x.pointee, y.pointee) || !e.node(x.subStruct, y.subStruct) {
		return false
	}
	for i := range x.children {
		if !e.node(x.children[i], y.children[i]) {
			return false
		}
	}
	return true
}

// edges matches the edge sets s of x and t of y. Targets of s that are not matched yet are paired with the targets
// of t that are not matched yet, when there is only one of each. Targets outside the compared part of the graphs are
// ignored when ignoreUnmatched is set.
func (e *equivalence) edges(s, t map[*Node]bool, ignoreUnmatched bool) bool {
	var xs, ys []*Node
	for x := range s {
		y, ok := e.fwd[x]
		if !ok {
			xs = append(xs, x)
			continue
		}
		if !t[y] {
			return false
		}
	}
	for y := range t {
		if _, ok := e.bwd[y]; !ok {
			ys = append(ys, y)
			continue
		}
		if !s[e.bwd[y]] {
			return false
		}
	}
	if ignoreUnmatched {
		return true
	}
	switch {
	case len(xs) == 0 && len(ys) == 0:
		return true
	case len(xs) == 1 && len(ys) == 1:
		return e.node(xs[0], ys[0])
	}
	return false
}

// Equivalent returns true if the graphs are equal up to a renaming of their nodes. The comparison covers the values
// of the function fn, or all the values if fn is nil, and the returned value.
func Equivalent(a, b *Graph, fn *ir.Function) bool {
	if a.bottom || b.bottom {
		return a.bottom == b.bottom
	}
	e := &equivalence{a: a, b: b, fwd: map[*Node]*Node{}, bwd: map[*Node]*Node{}}
	count := 0
	for _, v := range a.Values() {
		if !isRelevant(v, fn) {
			continue
		}
		count++
		bn, ok := b.mapping[v]
		if !ok || !e.node(a.mapping[v], bn) {
			return false
		}
	}
	for v := range b.mapping {
		if isRelevant(v, fn) {
			count--
		}
	}
	if count != 0 || !e.node(a.ret, b.ret) {
		return false
	}
	// pairing this targets may extend the bijection
	for i := 0; i < len(e.order); i++ {
		x := e.order[i]
		if !e.edges(x.this, e.fwd[x].this, false) {
			return false
		}
	}
	for _, x := range e.order {
		y := e.fwd[x]
		if !e.edges(x.weak, y.weak, true) || !e.edges(x.copies, y.copies, true) {
			return false
		}
	}
	return true
}
