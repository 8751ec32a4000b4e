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

import "github.com/awslabs/ar-immutability/analysis/ir"

// cloner copies nodes, preserving sharing
type cloner struct {
	img   map[*Node]*Node
	order []*Node
}

func newCloner() *cloner {
	return &cloner{img: map[*Node]*Node{}}
}

// copyData copies the flags and the value of n into a fresh node, without edges and children
func copyData(n *Node) *Node {
	m := newNode(n.kind, n.typ)
	m.isThis, m.isRead = n.isThis, n.isRead
	m.rng, m.null = n.rng, n.null
	if n.callees != nil {
		m.callees = make(map[*ir.Function]bool, len(n.callees))
		for f := range n.callees {
			m.callees[f] = true
		}
	}
	if n.children != nil {
		m.children = make([]*Node, len(n.children))
	}
	return m
}

// clone copies n and the nodes it owns: its pointee, children, sub-struct and the targets of its this edges
func (c *cloner) clone(n *Node) *Node {
	if n == nil {
		return nil
	}
	if m, ok := c.img[n]; ok {
		return m
	}
	m := copyData(n)
	c.img[n] = m
	c.order = append(c.order, n)
	m.pointee = c.clone(n.pointee)
	for i, x := range n.children {
		m.children[i] = c.clone(x)
	}
	m.subStruct = c.clone(n.subStruct)
	for t := range n.this {
		m.this[c.clone(t)] = true
	}
	return m
}

// finish copies the weak and copy edges between cloned nodes. Edges to nodes that were not cloned are dropped.
func (c *cloner) finish() {
	for _, n := range c.order {
		m := c.img[n]
		for w := range n.weak {
			if wm, ok := c.img[w]; ok {
				AddWeakEdge(m, wm)
			}
		}
		for x := range n.copies {
			if xm, ok := c.img[x]; ok {
				AddCopyEdge(m, xm)
			}
		}
	}
}

func (c *cloner) lookup(n *Node) *Node { return c.img[n] }

// Clone returns a deep copy of the graph. The copy shares no node with g.
func (g *Graph) Clone() *Graph {
	res := NewGraph(g.oracle)
	res.first = g.first
	res.bottom = g.bottom
	c := newCloner()
	for _, v := range g.Values() {
		res.mapping[v] = c.clone(g.mapping[v])
	}
	res.ret = c.clone(g.ret)
	c.finish()
	g.aliases.cloneInto(res.aliases, c.lookup)
	return res
}
