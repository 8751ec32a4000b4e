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

import "fmt"

// references counts the references to each node of g: mappings, structural edges and this edges
func references(g *Graph) map[*Node]int {
	refs := map[*Node]int{}
	for _, r := range g.roots() {
		refs[r]++
	}
	for _, n := range g.Nodes() {
		n.forEachStructural(func(m *Node) { refs[m]++ })
		for t := range n.this {
			refs[t]++
		}
	}
	return refs
}

// prunable returns true if n is a materialized child that holds no information and is referenced only by its parent
func prunable(n *Node, parentThis bool, refs map[*Node]int) bool {
	return n != nil && refs[n] == 1 && n.isTopEquivalent(parentThis)
}

// canonicalizer walks two graphs in parallel
type canonicalizer struct {
	a, b       *Graph
	refA, refB map[*Node]int
	visited    map[nodePair]bool
	check      bool
	err        error
}

// slot prunes the children x of a and y of b at the same position when only one of them is materialized and it is
// prunable, and walks them when both are materialized.
func (c *canonicalizer) slot(x, y *Node, xThis, yThis bool, clearX, clearY func()) {
	switch {
	case x != nil && y == nil:
		if prunable(x, xThis, c.refA) {
			if c.check {
				c.fail("node %s of the first graph is not canonical", x)
				return
			}
			c.a.aliases.Remove(x)
			clearX()
		}
	case x == nil && y != nil:
		if prunable(y, yThis, c.refB) {
			if c.check {
				c.fail("node %s of the second graph is not canonical", y)
				return
			}
			c.b.aliases.Remove(y)
			clearY()
		}
	case x != nil && y != nil:
		c.walk(x, y)
	}
}

func (c *canonicalizer) fail(format string, args ...any) {
	if c.err == nil {
		c.err = fmt.Errorf(format, args...)
	}
}

func (c *canonicalizer) walk(x, y *Node) {
	p := nodePair{x, y}
	if c.visited[p] || x.kind != y.kind || len(x.children) != len(y.children) {
		return
	}
	c.visited[p] = true
	switch x.kind {
	case KindPointer:
		c.slot(x.pointee, y.pointee, x.isThis, y.isThis, func() { x.pointee = nil }, func() { y.pointee = nil })
	case KindStruct, KindSequential:
		for i := range x.children {
			c.slot(x.children[i], y.children[i], x.isThis, y.isThis,
				func() { x.children[i] = nil }, func() { y.children[i] = nil })
		}
		if x.subStruct != nil && y.subStruct != nil {
			c.walk(x.subStruct, y.subStruct)
		}
	}
}

func (c *canonicalizer) run() {
	for _, v := range c.a.Values() {
		if bn, ok := c.b.mapping[v]; ok {
			c.walk(c.a.mapping[v], bn)
		}
	}
	if c.a.ret != nil && c.b.ret != nil {
		c.walk(c.a.ret, c.b.ret)
	}
}

// Canonicalize prunes the children materialized in one graph and not in the other, when they hold no information.
// Two graphs that describe the same states, and that were built along different paths, are Equivalent after
// canonicalization.
func Canonicalize(a, b *Graph) {
	if a.bottom || b.bottom {
		return
	}
	c := &canonicalizer{a: a, b: b, refA: references(a), refB: references(b), visited: map[nodePair]bool{}}
	c.run()
}

// CheckCanonicalized returns an error if Canonicalize would prune a node of a or b
func CheckCanonicalized(a, b *Graph) error {
	if a.bottom || b.bottom {
		return nil
	}
	c := &canonicalizer{a: a, b: b, refA: references(a), refB: references(b), visited: map[nodePair]bool{},
		check: true}
	c.run()
	return c.err
}
