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

type nodePair struct {
	a, b *Node
}

// merger computes the join of two graphs. Each node of the result has an origin: a node of a, a node of b, or both.
// A node of either graph may have several images in the result.
type merger struct {
	memo    map[nodePair]*Node
	sideA   map[*Node]*Node
	sideB   map[*Node]*Node
	aImg    map[*Node][]*Node
	bImg    map[*Node][]*Node
	origin  map[*Node]nodePair
	created []*Node
}

func newMerger() *merger {
	return &merger{
		memo:   map[nodePair]*Node{},
		sideA:  map[*Node]*Node{},
		sideB:  map[*Node]*Node{},
		aImg:   map[*Node][]*Node{},
		bImg:   map[*Node][]*Node{},
		origin: map[*Node]nodePair{},
	}
}

func (m *merger) record(r *Node, x, y *Node) {
	m.origin[r] = nodePair{x, y}
	m.created = append(m.created, r)
	if x != nil {
		m.aImg[x] = append(m.aImg[x], r)
	}
	if y != nil {
		m.bImg[y] = append(m.bImg[y], r)
	}
}

// cloneSide copies a node that exists in only one of the graphs
func (m *merger) cloneSide(n *Node, fromA bool) *Node {
	if n == nil {
		return nil
	}
	memo := m.sideB
	if fromA {
		memo = m.sideA
	}
	if r, ok := memo[n]; ok {
		return r
	}
	r := copyData(n)
	memo[n] = r
	if fromA {
		m.record(r, n, nil)
	} else {
		m.record(r, nil, n)
	}
	r.pointee = m.cloneSide(n.pointee, fromA)
	for i, c := range n.children {
		r.children[i] = m.cloneSide(c, fromA)
	}
	r.subStruct = m.cloneSide(n.subStruct, fromA)
	return r
}

// merge joins x of graph a and y of graph b
//
//gocyclo:ignore
func (m *merger) merge(x, y *Node) *Node {
	switch {
	case x == nil && y == nil:
		return nil
	case y == nil:
		return m.cloneSide(x, true)
	case x == nil:
		return m.cloneSide(y, false)
	}
	p := nodePair{x, y}
	if r, ok := m.memo[p]; ok {
		return r
	}
	if x.kind != y.kind || !ir.Identical(x.typ, y.typ) {
		r := NewTop(x.typ)
		r.isThis = x.isThis && y.isThis
		m.memo[p] = r
		m.record(r, x, y)
		return r
	}
	r := newNode(x.kind, x.typ)
	m.memo[p] = r
	m.record(r, x, y)
	r.isThis = x.isThis && y.isThis
	r.isRead = x.isRead && y.isRead
	switch x.kind {
	case KindInt:
		r.rng = x.rng.Union(y.rng)
	case KindFunction:
		if x.callees != nil && y.callees != nil {
			r.callees = map[*ir.Function]bool{}
			for f := range x.callees {
				r.callees[f] = true
			}
			for f := range y.callees {
				r.callees[f] = true
			}
		}
	case KindPointer:
		r.null = x.null.Join(y.null)
		switch {
		case x.pointee != nil && y.pointee != nil:
			r.pointee = m.merge(x.pointee, y.pointee)
		case x.pointee != nil && (y.null == Null || y.null == Bottom):
			r.pointee = m.cloneSide(x.pointee, true)
		case y.pointee != nil && (x.null == Null || x.null == Bottom):
			r.pointee = m.cloneSide(y.pointee, false)
		}
	case KindStruct, KindSequential:
		r.children = make([]*Node, len(x.children))
		for i := range x.children {
			if x.children[i] != nil && y.children[i] != nil {
				r.children[i] = m.merge(x.children[i], y.children[i])
			}
		}
		if x.subStruct != nil && y.subStruct != nil {
			r.subStruct = m.merge(x.subStruct, y.subStruct)
		}
	}
	return r
}

// thisImages returns the images of the this target t of the graph on one side, cloning it if it has none
func (m *merger) thisImages(t *Node, fromA bool) []*Node {
	imgs := m.bImg
	if fromA {
		imgs = m.aImg
	}
	if len(imgs[t]) == 0 {
		m.cloneSide(t, fromA)
	}
	return imgs[t]
}

// finishEdges adds the this, weak and copy edges of the result nodes
//
//gocyclo:ignore
func (m *merger) finishEdges() {
	// the list grows while this targets without image are cloned
	for i := 0; i < len(m.created); i++ {
		r := m.created[i]
		o := m.origin[r]
		if o.a != nil {
			for _, t := range o.a.ThisEdges() {
				for _, img := range m.thisImages(t, true) {
					r.AddThisEdge(img)
				}
			}
		}
		if o.b != nil {
			for _, t := range o.b.ThisEdges() {
				for _, img := range m.thisImages(t, false) {
					r.AddThisEdge(img)
				}
			}
		}
		// the join of a receiver node and another node may hold the receiver value
		if o.a != nil && o.b != nil && o.a.isThis != o.b.isThis {
			side, fromA := o.a, true
			if o.b.isThis {
				side, fromA = o.b, false
			}
			for _, img := range m.thisImages(side, fromA) {
				if img != r && img.isThis {
					r.AddThisEdge(img)
				}
			}
		}
	}
	for _, r := range m.created {
		o := m.origin[r]
		if o.a != nil {
			for w := range o.a.weak {
				for _, img := range m.aImg[w] {
					AddWeakEdge(r, img)
				}
			}
		}
		if o.b != nil {
			for w := range o.b.weak {
				for _, img := range m.bImg[w] {
					AddWeakEdge(r, img)
				}
			}
		}
		m.mergeCopyEdges(r, o)
	}
	for _, imgs := range []map[*Node][]*Node{m.aImg, m.bImg} {
		for _, s := range imgs {
			for i := range s {
				for j := i + 1; j < len(s); j++ {
					AddWeakEdge(s[i], s[j])
				}
			}
		}
	}
}

// mergeCopyEdges keeps the copy edges of r whose both origins agree
func (m *merger) mergeCopyEdges(r *Node, o nodePair) {
	switch {
	case o.a != nil && o.b != nil:
		for x := range o.a.copies {
			for _, r2 := range m.aImg[x] {
				if o2 := m.origin[r2]; o2.b != nil && o.b.copies[o2.b] {
					AddCopyEdge(r, r2)
				}
			}
		}
	case o.a != nil:
		for x := range o.a.copies {
			for _, r2 := range m.aImg[x] {
				if m.origin[r2].b == nil {
					AddCopyEdge(r, r2)
				}
			}
		}
	case o.b != nil:
		for y := range o.b.copies {
			for _, r2 := range m.bImg[y] {
				if m.origin[r2].a == nil {
					AddCopyEdge(r, r2)
				}
			}
		}
	}
}

// Merge returns the join of the graphs a and b. Bottom is the identity of the join. The graphs are not modified.
func Merge(a, b *Graph) *Graph {
	if a.bottom {
		res := b.Clone()
		if res.first == nil {
			res.first = a.first
		}
		return res
	}
	if b.bottom {
		return a.Clone()
	}
	res := NewGraph(a.oracle)
	res.first = a.first
	m := newMerger()
	for _, v := range a.Values() {
		if bn, ok := b.mapping[v]; ok {
			res.mapping[v] = m.merge(a.mapping[v], bn)
		} else {
			res.mapping[v] = m.cloneSide(a.mapping[v], true)
		}
	}
	for _, v := range b.Values() {
		if _, ok := a.mapping[v]; !ok {
			res.mapping[v] = m.cloneSide(b.mapping[v], false)
		}
	}
	res.ret = m.merge(a.ret, b.ret)
	m.finishEdges()
	for _, r := range m.created {
		o := m.origin[r]
		var ea, eb aliasEntry
		okA, okB := false, false
		if o.a != nil {
			ea, okA = a.aliases.entry(o.a)
		}
		if o.b != nil {
			eb, okB = b.aliases.entry(o.b)
		}
		switch {
		case okA && okB:
			res.aliases.setEntry(r, joinEntries(ea, eb))
		case okA:
			res.aliases.setEntry(r, ea)
		case okB:
			res.aliases.setEntry(r, eb)
		}
	}
	return res
}

// joinEntries returns the entry of a node registered differently in the two merged graphs. Unknown memory wins.
func joinEntries(x, y aliasEntry) aliasEntry {
	unknown := func(e aliasEntry) bool { return e.kind == Unknown || e.kind == UnknownElement }
	switch {
	case x == y:
		return x
	case unknown(x) && !unknown(y):
		return x
	case unknown(y) && !unknown(x):
		return y
	case x.kind != y.kind:
		if x.kind > y.kind {
			return x
		}
		return y
	case x.elem.container != y.elem.container:
		if x.elem.container < y.elem.container {
			return x
		}
		return y
	case x.elem.index != y.elem.index:
		if x.elem.index < y.elem.index {
			return x
		}
		return y
	}
	if x.typ < y.typ {
		return x
	}
	return y
}
